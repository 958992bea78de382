package fanout

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/GhostKellz/zmake/internal/archive"
	"github.com/GhostKellz/zmake/internal/pipeline"
	"github.com/GhostKellz/zmake/internal/recipe"
	"github.com/stretchr/testify/assert"
)

func optsFor(root string) pipeline.Options {
	return pipeline.Options{
		WorkDir:     filepath.Join(root, "build"),
		ArtifactDir: filepath.Join(root, "artifacts"),
		Packager:    "tester",
		Compression: archive.CompressionGzip,
		Shell:       "/bin/sh",
	}
}

func TestRunBuildsAllTargetsIndependently(t *testing.T) {
	root := t.TempDir()
	good := []byte(`
name="hello"
version="1.0"
release="1"
architectures=(any)
`)
	bad := []byte(`version="1.0"` + "\n")

	targets := []Target{
		{Label: "x86_64", Body: good, Opts: optsFor(filepath.Join(root, "x86_64"))},
		{Label: "aarch64", Body: bad, Opts: optsFor(filepath.Join(root, "aarch64"))},
	}

	summary := Run(context.Background(), targets, recipe.ParseShell, 2, nil)
	assert.Equal(t, 1, summary.Succeeded)
	assert.Equal(t, 1, summary.Failed)
	assert.Len(t, summary.Results, 2)
}

func TestRunRespectsConcurrencyFloor(t *testing.T) {
	root := t.TempDir()
	body := []byte(`
name="hello"
version="1.0"
release="1"
architectures=(any)
`)
	targets := []Target{{Label: "only", Body: body, Opts: optsFor(root)}}

	summary := Run(context.Background(), targets, recipe.ParseShell, 0, nil)
	assert.Equal(t, 1, summary.Succeeded)
}
