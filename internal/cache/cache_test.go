package cache

import (
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name string, size int) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), make([]byte, size), 0o644))
}

func TestKeyIsOrderInsensitiveOverSources(t *testing.T) {
	body := []byte("name=hello\n")
	a := Key(body, []string{"x.tar.gz", "y.tar.gz"})
	b := Key(body, []string{"y.tar.gz", "x.tar.gz"})
	assert.Equal(t, a, b)
}

func TestKeyDiffersOnBody(t *testing.T) {
	a := Key([]byte("name=hello\n"), []string{"x.tar.gz"})
	b := Key([]byte("name=world\n"), []string{"x.tar.gz"})
	assert.NotEqual(t, a, b)
}

func TestStoreAndLookup(t *testing.T) {
	c, err := New(t.TempDir())
	require.NoError(t, err)

	build := t.TempDir()
	writeFile(t, build, "payload.bin", 1024)

	dest, err := c.Store("abc123", build)
	require.NoError(t, err)

	dir, ok, err := c.Lookup("abc123")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, dest, dir)
}

func TestLookupMiss(t *testing.T) {
	c, err := New(t.TempDir())
	require.NoError(t, err)

	_, ok, err := c.Lookup("nope")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEvictionRemovesLeastRecentlyUsed(t *testing.T) {
	c, err := New(t.TempDir(), WithSizeLimit(1500), WithEvictionTarget(0.5))
	require.NoError(t, err)

	b1 := t.TempDir()
	writeFile(t, b1, "f", 1000)
	_, err = c.Store("old", b1)
	require.NoError(t, err)

	b2 := t.TempDir()
	writeFile(t, b2, "f", 1000)
	_, err = c.Store("new", b2)
	require.NoError(t, err)

	_, oldPresent, err := c.Lookup("old")
	require.NoError(t, err)
	_, newPresent, err := c.Lookup("new")
	require.NoError(t, err)

	assert.False(t, oldPresent)
	assert.True(t, newPresent)
}

func TestGetOrBuildCoalescesConcurrentCalls(t *testing.T) {
	c, err := New(t.TempDir())
	require.NoError(t, err)

	var buildCount int32
	var wg sync.WaitGroup
	results := make([]string, 8)

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			dir, err := c.GetOrBuild("shared-key", func() (string, error) {
				atomic.AddInt32(&buildCount, 1)
				d := t.TempDir()
				writeFile(t, d, "out", 64)
				return d, nil
			})
			require.NoError(t, err)
			results[i] = dir
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&buildCount))
	for _, r := range results {
		assert.Equal(t, results[0], r)
	}
}

func TestGCRemovesEntriesMissingOnDisk(t *testing.T) {
	c, err := New(t.TempDir())
	require.NoError(t, err)

	b := t.TempDir()
	writeFile(t, b, "f", 100)
	dest, err := c.Store("k", b)
	require.NoError(t, err)

	require.NoError(t, os.RemoveAll(dest))
	require.NoError(t, c.GC())

	count, _ := c.Size()
	assert.Equal(t, 0, count)
}
