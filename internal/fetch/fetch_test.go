package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/GhostKellz/zmake/internal/recipe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchAllLocalSourceIsNotDownloaded(t *testing.T) {
	destDir := t.TempDir()
	r := &recipe.Recipe{Sources: []string{"patch.diff"}}

	results, err := New().FetchAll(context.Background(), r, destDir)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, filepath.Join(destDir, "patch.diff"), results[0].Path)
}

func TestFetchAllVerifiesChecksum(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("hello world"))
	}))
	defer srv.Close()

	destDir := t.TempDir()
	r := &recipe.Recipe{
		Sources:   []string{srv.URL + "/hello.txt"},
		Checksums: []string{"b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde"},
	}

	results, err := New().FetchAll(context.Background(), r, destDir)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9", results[0].Checksum)

	data, err := os.ReadFile(results[0].Path)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))
}

func TestFetchAllChecksumMismatchReturnsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("hello world"))
	}))
	defer srv.Close()

	destDir := t.TempDir()
	r := &recipe.Recipe{
		Sources:   []string{srv.URL + "/hello.txt"},
		Checksums: []string{"0000000000000000000000000000000000000000000000000000000000000000"},
	}

	_, err := New().FetchAll(context.Background(), r, destDir)
	require.Error(t, err)
	fe, ok := err.(*Error)
	require.True(t, ok)
	assert.Equal(t, ErrChecksumMismatch, fe.Kind)
}

func TestFetchAllSkipChecksumBypassesVerification(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("anything"))
	}))
	defer srv.Close()

	destDir := t.TempDir()
	r := &recipe.Recipe{
		Sources:   []string{srv.URL + "/a.bin"},
		Checksums: []string{recipe.SkipChecksum},
	}

	results, err := New().FetchAll(context.Background(), r, destDir)
	require.NoError(t, err)
	assert.True(t, results[0].Skipped)
}

func TestFetchAllDownloadFailureReturnsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	destDir := t.TempDir()
	r := &recipe.Recipe{Sources: []string{srv.URL + "/missing.tar.gz"}}

	_, err := New().FetchAll(context.Background(), r, destDir)
	require.Error(t, err)
	fe, ok := err.(*Error)
	require.True(t, ok)
	assert.Equal(t, ErrDownloadFailed, fe.Kind)
}
