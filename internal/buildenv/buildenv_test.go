package buildenv

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/GhostKellz/zmake/internal/recipe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDerivesDirectories(t *testing.T) {
	r := &recipe.Recipe{Name: "hello", Version: "2.10", Release: "1", Architectures: []string{"x86_64"}}
	e := New(r, "/build/abc123", "/recipes/hello", "tester <tester@example.com>")

	assert.Equal(t, "/build/abc123/src", e.SourceDirectory)
	assert.Equal(t, "/build/abc123/pkg", e.PackageDirectory)
	assert.Equal(t, "/recipes/hello", e.StartDirectory)
	assert.Equal(t, "x86_64", e.Architecture)
}

func TestEnsureDirectoriesCreatesBoth(t *testing.T) {
	root := t.TempDir()
	r := &recipe.Recipe{Name: "hello", Version: "1", Release: "1", Architectures: []string{"any"}}
	e := New(r, filepath.Join(root, "build"), "", "")
	require.NoError(t, e.EnsureDirectories())

	for _, dir := range []string{e.SourceDirectory, e.PackageDirectory} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}

func TestEnvironIncludesAllFields(t *testing.T) {
	r := &recipe.Recipe{Name: "hello", Version: "2.10", Release: "1", Architectures: []string{"x86_64"}}
	e := New(r, "/build/abc123", "/recipes/hello", "tester")
	environ := e.Environ()
	assert.Contains(t, environ, "name=hello")
	assert.Contains(t, environ, "version=2.10")
	assert.Contains(t, environ, "packager=tester")
}
