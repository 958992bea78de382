package recipe

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
)

// buildType selects the default hook bodies a declarative recipe gets when
// it omits an explicit build.*_script and instead names a recognized
// build.type. Unknown or absent build types leave the hook empty.
var buildTypeDefaults = map[string]map[string]string{
	"native-toolchain": {
		HookBuild: "make",
		HookCheck: "make check",
		HookPackage: "make DESTDIR=\"${package_directory}\" install",
	},
	"c": {
		HookPrepare: "./configure --prefix=/usr",
		HookBuild:   "make",
		HookPackage: "make DESTDIR=\"${package_directory}\" install",
	},
	"cpp": {
		HookPrepare: "cmake -S . -B build -DCMAKE_INSTALL_PREFIX=/usr",
		HookBuild:   "cmake --build build",
		HookPackage: "cmake --install build --prefix \"${package_directory}/usr\"",
	},
}

// LowerToShell renders a declarative Recipe into shell-recipe text that
// ParseShell would parse back into an equivalent Recipe. It exists so a
// declarative front-end caller can hand the pipeline and error messages a
// single canonical text form, and so authors can migrate a declarative
// recipe to the shell dialect mechanically.
func LowerToShell(r *Recipe, buildType string) []byte {
	var b bytes.Buffer

	writeScalar(&b, "name", r.Name)
	writeScalar(&b, "version", r.Version)
	writeScalar(&b, "release", r.Release)
	writeScalar(&b, "description", r.Description)
	writeScalar(&b, "url", r.URL)

	writeArray(&b, "architectures", r.Architectures)
	writeArray(&b, "licenses", r.Licenses)
	writeArray(&b, "conflicts", r.Conflicts)
	writeArray(&b, "sources", r.Sources)
	writeArray(&b, "checksums", r.Checksums)
	writeArray(&b, "runtime_dependencies", constrainedStrings(r.RuntimeDependencies))
	writeArray(&b, "build_dependencies", constrainedStrings(r.BuildDependencies))

	hooks := r.Hooks
	if defaults, ok := buildTypeDefaults[buildType]; ok {
		hooks = mergeHooks(defaults, r.Hooks)
	}
	for _, name := range hookNames {
		body, ok := hooks[name]
		if !ok || body == "" {
			continue
		}
		fmt.Fprintf(&b, "%s() {\n%s\n}\n", name, body)
	}

	return b.Bytes()
}

// mergeHooks returns defaults overridden by any non-empty entry in overrides.
func mergeHooks(defaults, overrides map[string]string) map[string]string {
	merged := make(map[string]string, len(defaults))
	for k, v := range defaults {
		merged[k] = v
	}
	for k, v := range overrides {
		if v != "" {
			merged[k] = v
		}
	}
	return merged
}

func constrainedStrings(names []ConstrainedName) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		out = append(out, n.String())
	}
	return out
}

func writeScalar(b *bytes.Buffer, key, value string) {
	if value == "" {
		return
	}
	fmt.Fprintf(b, "%s=%q\n", key, value)
}

func writeArray(b *bytes.Buffer, key string, items []string) {
	if len(items) == 0 {
		return
	}
	quoted := make([]string, len(items))
	for i, item := range items {
		quoted[i] = fmt.Sprintf("%q", item)
	}
	fmt.Fprintf(b, "%s=(%s)\n", key, strings.Join(quoted, " "))
}

// tomlDocument mirrors the subset of Recipe fields that round-trip through a
// strict TOML document, for ToTOML's encoder-backed serialization. It is
// deliberately narrower than the lenient declarative front-end: ToTOML
// produces output for tooling that consumes real TOML (editors, linters),
// not for ParseDeclarative's own bare-list dialect.
type tomlDocument struct {
	Package struct {
		Name        string   `toml:"name"`
		Version     string   `toml:"version"`
		Release     string   `toml:"release"`
		Description string   `toml:"description,omitempty"`
		URL         string   `toml:"url,omitempty"`
		Arch        []string `toml:"arch"`
		License     []string `toml:"license,omitempty"`
		Conflicts   []string `toml:"conflicts,omitempty"`
	} `toml:"package"`
	Build struct {
		Sources   []string `toml:"sources,omitempty"`
		Checksums []string `toml:"checksums,omitempty"`
	} `toml:"build"`
	Dependencies struct {
		Runtime []string `toml:"runtime,omitempty"`
		Build   []string `toml:"build,omitempty"`
	} `toml:"dependencies"`
}

// ToTOML serializes a Recipe's declarative-representable fields (excluding
// hook bodies, which don't have a natural strict-TOML shape) using the
// standard encoder, for callers that need a well-formed TOML document
// rather than the lenient dialect ParseDeclarative accepts.
func ToTOML(r *Recipe) ([]byte, error) {
	var doc tomlDocument
	doc.Package.Name = r.Name
	doc.Package.Version = r.Version
	doc.Package.Release = r.Release
	doc.Package.Description = r.Description
	doc.Package.URL = r.URL
	doc.Package.Arch = r.Architectures
	doc.Package.License = r.Licenses
	doc.Package.Conflicts = r.Conflicts
	doc.Build.Sources = r.Sources
	doc.Build.Checksums = r.Checksums
	doc.Dependencies.Runtime = constrainedStrings(r.RuntimeDependencies)
	doc.Dependencies.Build = constrainedStrings(r.BuildDependencies)

	var b bytes.Buffer
	enc := toml.NewEncoder(&b)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("encoding recipe as toml: %w", err)
	}
	return b.Bytes(), nil
}
