package archive

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/GhostKellz/zmake/internal/recipe"
)

// PackageInfo is the sidecar metadata written alongside the archive payload,
// mirroring the fields makepkg's .PKGINFO records: identity, architecture,
// dependency lists, and build provenance.
type PackageInfo struct {
	Name         string
	Version      string
	Release      string
	Description  string
	URL          string
	Architecture string
	Licenses     []string
	RuntimeDeps  []string
	BuildDate    time.Time
	Packager     string
	SizeBytes    int64
}

// Render formats PackageInfo as the newline-delimited "key = value" text
// that ships inside the archive as ".PKGINFO". Singular fields are emitted
// first in declared order, then the repeated license/depend lines.
func (p *PackageInfo) Render() []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "name = %s\n", p.Name)
	fmt.Fprintf(&b, "version = %s\n", p.Version)
	fmt.Fprintf(&b, "release = %s\n", p.Release)
	fmt.Fprintf(&b, "builddate = %d\n", p.BuildDate.Unix())
	if p.Packager != "" {
		fmt.Fprintf(&b, "packager = %s\n", p.Packager)
	}
	fmt.Fprintf(&b, "size = %d\n", p.SizeBytes)
	fmt.Fprintf(&b, "architecture = %s\n", p.Architecture)
	if p.Description != "" {
		fmt.Fprintf(&b, "description = %s\n", p.Description)
	}
	if p.URL != "" {
		fmt.Fprintf(&b, "url = %s\n", p.URL)
	}
	for _, l := range p.Licenses {
		fmt.Fprintf(&b, "license = %s\n", l)
	}
	for _, d := range p.RuntimeDeps {
		fmt.Fprintf(&b, "depend = %s\n", d)
	}
	return []byte(b.String())
}

// NewPackageInfo derives a PackageInfo from a recipe and the computed
// payload size, stamped with the given build time and packager identity.
func NewPackageInfo(r *recipe.Recipe, sizeBytes int64, buildDate time.Time, packager string) *PackageInfo {
	deps := make([]string, 0, len(r.RuntimeDependencies))
	for _, d := range r.RuntimeDependencies {
		deps = append(deps, d.String())
	}
	return &PackageInfo{
		Name:         r.Name,
		Version:      r.Version,
		Release:      r.Release,
		Description:  r.Description,
		URL:          r.URL,
		Architecture: r.DefaultArchitecture(),
		Licenses:     r.Licenses,
		RuntimeDeps:  deps,
		BuildDate:    buildDate,
		Packager:     packager,
		SizeBytes:    sizeBytes,
	}
}

// ManifestEntry is one payload file's recorded path and content digest.
type ManifestEntry struct {
	Path     string
	SHA256   string
	SizeBytes int64
}

// BuildManifest walks payloadDir and returns a sorted (by path) list of
// every regular file's relative path and digest, the basis for the
// ".MANIFEST" sidecar and for archive verification after extraction.
func BuildManifest(payloadDir string) ([]ManifestEntry, error) {
	var entries []ManifestEntry

	err := filepath.Walk(payloadDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if info.Mode()&os.ModeSymlink != 0 {
			return nil
		}

		rel, err := filepath.Rel(payloadDir, path)
		if err != nil {
			return err
		}

		sum, err := sha256File(path)
		if err != nil {
			return fmt.Errorf("hashing %s: %w", rel, err)
		}

		entries = append(entries, ManifestEntry{Path: rel, SHA256: sum, SizeBytes: info.Size()})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries, nil
}

// RenderManifest formats manifest entries as an mtree-style listing: a
// "#mtree" header, a /set line declaring the default file attributes, then
// one "./<relative_path> size=<N> md5digest=<hex>" line per regular file,
// excluding any whose relative path begins with ".". Lines are sorted
// lexicographically by their full text (not just by path) so the manifest
// is reproducible regardless of entry order. The md5digest field name is
// kept for installer compatibility even though the digest itself is SHA-256.
func RenderManifest(entries []ManifestEntry) []byte {
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		rel := filepath.ToSlash(e.Path)
		if strings.HasPrefix(rel, ".") {
			continue
		}
		lines = append(lines, fmt.Sprintf("./%s size=%d md5digest=%s", rel, e.SizeBytes, e.SHA256))
	}
	sort.Strings(lines)

	var b strings.Builder
	b.WriteString("#mtree\n")
	b.WriteString("/set type=file uid=0 gid=0 mode=644\n")
	for _, line := range lines {
		b.WriteString(line)
		b.WriteString("\n")
	}
	return []byte(b.String())
}

func sha256File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
