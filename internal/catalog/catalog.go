// Package catalog reports which packages are already present on the build
// host, so the pipeline can probe for dependency and conflict satisfaction
// before running a recipe's hooks.
package catalog

import (
	"os"
	"path/filepath"
	"strings"
)

// Entry is one installed package's identity as recorded in the catalog.
type Entry struct {
	Name    string
	Version string
}

// Catalog answers presence and conflict queries against installed packages.
type Catalog interface {
	// Has reports whether a package named name is installed, and if so its
	// recorded version.
	Has(name string) (Entry, bool)

	// List returns every installed package.
	List() ([]Entry, error)
}

// DirCatalog is a Catalog backed by a directory of installed-package
// records, one subdirectory per package named "<name>-<version>". The
// pipeline only reads this layout; it does not create these directories.
type DirCatalog struct {
	root string
}

// NewDirCatalog opens a directory-scan catalog rooted at root. The
// directory is read lazily on each call, so external changes (installs
// made by other processes) are observed without needing a refresh call.
func NewDirCatalog(root string) *DirCatalog {
	return &DirCatalog{root: root}
}

func (c *DirCatalog) List() ([]Entry, error) {
	entries, err := os.ReadDir(c.root)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var out []Entry
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		name, version, ok := splitNameVersion(e.Name())
		if !ok {
			continue
		}
		out = append(out, Entry{Name: name, Version: version})
	}
	return out, nil
}

func (c *DirCatalog) Has(name string) (Entry, bool) {
	entries, err := c.List()
	if err != nil {
		return Entry{}, false
	}
	for _, e := range entries {
		if e.Name == name {
			return e, true
		}
	}
	return Entry{}, false
}

// splitNameVersion parses a "<name>-<version>" directory name, splitting on
// the last hyphen so names containing hyphens are handled correctly.
func splitNameVersion(dirName string) (name, version string, ok bool) {
	idx := strings.LastIndex(dirName, "-")
	if idx <= 0 || idx == len(dirName)-1 {
		return "", "", false
	}
	return dirName[:idx], dirName[idx+1:], true
}

// EntryDir returns the directory a package's catalog entry would live in.
func EntryDir(root, name, version string) string {
	return filepath.Join(root, name+"-"+version)
}
