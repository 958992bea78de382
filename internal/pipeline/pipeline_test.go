package pipeline

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/GhostKellz/zmake/internal/archive"
	"github.com/GhostKellz/zmake/internal/catalog"
	"github.com/GhostKellz/zmake/internal/recipe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseOptions(t *testing.T) Options {
	root := t.TempDir()
	return Options{
		WorkDir:     filepath.Join(root, "build"),
		ArtifactDir: filepath.Join(root, "artifacts"),
		StartDir:    root,
		Packager:    "tester",
		Compression: archive.CompressionGzip,
		Shell:       "/bin/sh",
	}
}

func TestRunHappyPathProducesArchive(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("payload"))
	}))
	defer srv.Close()

	body := []byte(`
name="hello"
version="1.0"
release="1"
architectures=(any)
sources=("` + srv.URL + `/hello.txt")

build() {
    cp "${source_directory}/hello.txt" "${package_directory}/hello.txt"
}
`)

	report, err := Run(context.Background(), body, recipe.ParseShell, baseOptions(t))
	require.NoError(t, err)

	assert.Contains(t, report.Steps, StepCompose)
	_, statErr := os.Stat(report.ArchivePath)
	assert.NoError(t, statErr)
}

func TestRunInvalidRecipeFormatFailsAtParse(t *testing.T) {
	opts := baseOptions(t)
	failingParse := func([]byte) (*recipe.Recipe, error) {
		return nil, assert.AnError
	}
	_, err := Run(context.Background(), []byte("garbage"), failingParse, opts)
	require.Error(t, err)
	pe := err.(*Error)
	assert.Equal(t, KindInvalidRecipeFormat, pe.Kind)
}

func TestRunMissingRequiredFieldFailsAtValidate(t *testing.T) {
	body := []byte(`version="1.0"` + "\n")
	_, err := Run(context.Background(), body, recipe.ParseShell, baseOptions(t))
	require.Error(t, err)
	pe := err.(*Error)
	assert.Equal(t, KindMissingRequiredField, pe.Kind)
}

type fakeCatalog struct {
	installed map[string]string
}

func (f *fakeCatalog) Has(name string) (catalog.Entry, bool) {
	v, ok := f.installed[name]
	if !ok {
		return catalog.Entry{}, false
	}
	return catalog.Entry{Name: name, Version: v}, true
}
func (f *fakeCatalog) List() ([]catalog.Entry, error) { return nil, nil }

func TestRunMissingDependencyFailsAtProbe(t *testing.T) {
	opts := baseOptions(t)
	opts.Catalog = &fakeCatalog{installed: map[string]string{}}

	body := []byte(`
name="hello"
version="1.0"
release="1"
architectures=(any)
build_dependencies=(compiler>=4.7)
`)
	_, err := Run(context.Background(), body, recipe.ParseShell, opts)
	require.Error(t, err)
	pe := err.(*Error)
	assert.Equal(t, KindMissingDependency, pe.Kind)
}

func TestRunConflictDetectedFailsAtProbe(t *testing.T) {
	opts := baseOptions(t)
	opts.Catalog = &fakeCatalog{installed: map[string]string{"legacy-hello": "1.0"}}

	body := []byte(`
name="hello"
version="1.0"
release="1"
architectures=(any)
conflicts=(legacy-hello)
`)
	_, err := Run(context.Background(), body, recipe.ParseShell, opts)
	require.Error(t, err)
	pe := err.(*Error)
	assert.Equal(t, KindConflictDetected, pe.Kind)
}

func TestRunChecksumMismatchFailsAtFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("payload"))
	}))
	defer srv.Close()

	body := []byte(`
name="hello"
version="1.0"
release="1"
architectures=(any)
sources=("` + srv.URL + `/hello.txt")
checksums=("` + strings.Repeat("0", 64) + `")
`)
	_, err := Run(context.Background(), body, recipe.ParseShell, baseOptions(t))
	require.Error(t, err)
	pe := err.(*Error)
	assert.Equal(t, KindChecksumMismatch, pe.Kind)
}

func TestRunBuildFailureFailsAtBuild(t *testing.T) {
	body := []byte(`
name="hello"
version="1.0"
release="1"
architectures=(any)

build() {
    exit 1
}
`)
	_, err := Run(context.Background(), body, recipe.ParseShell, baseOptions(t))
	require.Error(t, err)
	pe := err.(*Error)
	assert.Equal(t, KindBuildFailed, pe.Kind)
}
