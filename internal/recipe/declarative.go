package recipe

import (
	"bufio"
	"bytes"
	"fmt"
	"strings"
)

// declarativeListFields maps "section.key" to the list-valued recipe field it
// populates; scalar keys are handled separately by declarativeScalarFields.
var declarativeListFields = map[string]func(*Recipe, []string){
	"package.license":          func(r *Recipe, v []string) { r.Licenses = v },
	"package.arch":             func(r *Recipe, v []string) { r.Architectures = v },
	"package.conflicts":        func(r *Recipe, v []string) { r.Conflicts = v },
	"build.sources":            func(r *Recipe, v []string) { r.Sources = v },
	"build.checksums":          func(r *Recipe, v []string) { r.Checksums = v },
	"dependencies.runtime":     func(r *Recipe, v []string) { r.RuntimeDependencies = ParseConstrainedNames(v) },
	"dependencies.build":       func(r *Recipe, v []string) { r.BuildDependencies = ParseConstrainedNames(v) },
}

var declarativeScalarFields = map[string]func(*Recipe, string){
	"package.name":        func(r *Recipe, v string) { r.Name = v },
	"package.version":     func(r *Recipe, v string) { r.Version = v },
	"package.release":     func(r *Recipe, v string) { r.Release = v },
	"package.description": func(r *Recipe, v string) { r.Description = v },
	"package.url":         func(r *Recipe, v string) { r.URL = v },
}

var declarativeHookFields = map[string]string{
	"build.prepare_script": HookPrepare,
	"build.build_script":   HookBuild,
	"build.check_script":   HookCheck,
	"build.package_script": HookPackage,
}

// ParseDeclarative parses a declarative (TOML-style) recipe: bracketed
// section headers "[name]" and "key = value" lines. Recognized sections are
// package, build, dependencies (see the field tables above). Values are
// trimmed of surrounding whitespace
// and one layer of quotes. List values accept either bracketed form
// "[a, b, c]" or bare comma-separated form; elements are comma-split and
// individually trimmed.
func ParseDeclarative(data []byte) (*Recipe, error) {
	r := &Recipe{Hooks: map[string]string{}}

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	section := ""
	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}

		if strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]") {
			section = strings.TrimSpace(trimmed[1 : len(trimmed)-1])
			continue
		}

		key, rawValue, ok := strings.Cut(trimmed, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value := strings.TrimSpace(rawValue)
		fullKey := section + "." + key

		if hookName, isHook := declarativeHookFields[fullKey]; isHook {
			r.Hooks[hookName] = unquote(value)
			continue
		}
		if setter, ok := declarativeScalarFields[fullKey]; ok {
			setter(r, unquote(value))
			continue
		}
		if setter, ok := declarativeListFields[fullKey]; ok {
			setter(r, parseDeclarativeList(value))
			continue
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning declarative recipe: %w", err)
	}

	return r, nil
}

// parseDeclarativeList accepts either "[a, b, c]" or bare "a, b, c" and
// returns the trimmed, unquoted elements. An empty bracketed list yields an
// empty, non-nil slice.
func parseDeclarativeList(value string) []string {
	value = strings.TrimSpace(value)
	value = strings.TrimPrefix(value, "[")
	value = strings.TrimSuffix(value, "]")
	value = strings.TrimSpace(value)
	if value == "" {
		return []string{}
	}

	parts := strings.Split(value, ",")
	items := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		items = append(items, unquote(p))
	}
	return items
}
