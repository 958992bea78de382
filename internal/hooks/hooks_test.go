package hooks

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/GhostKellz/zmake/internal/buildenv"
	"github.com/GhostKellz/zmake/internal/recipe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEnv(t *testing.T) *buildenv.Env {
	root := t.TempDir()
	r := &recipe.Recipe{Name: "hello", Version: "1", Release: "1", Architectures: []string{"any"}}
	env := buildenv.New(r, filepath.Join(root, "build"), root, "tester")
	require.NoError(t, env.EnsureDirectories())
	return env
}

func TestRunSkipsUndefinedHook(t *testing.T) {
	e := New()
	r := &recipe.Recipe{Hooks: map[string]string{}}
	result, err := e.Run(context.Background(), r, recipe.HookCheck, testEnv(t))
	require.NoError(t, err)
	assert.True(t, result.Skipped)
}

func TestRunExecutesBodyAndCapturesStdout(t *testing.T) {
	e := New()
	r := &recipe.Recipe{Hooks: map[string]string{recipe.HookBuild: "echo hello-world"}}
	result, err := e.Run(context.Background(), r, recipe.HookBuild, testEnv(t))
	require.NoError(t, err)
	assert.Contains(t, result.Stdout, "hello-world")
}

func TestRunExposesVariablesToScript(t *testing.T) {
	e := New()
	r := &recipe.Recipe{Hooks: map[string]string{recipe.HookBuild: `echo "${name}-${version}"`}}
	result, err := e.Run(context.Background(), r, recipe.HookBuild, testEnv(t))
	require.NoError(t, err)
	assert.Contains(t, result.Stdout, "hello-1")
}

func TestRunFailureReturnsErrHookFailed(t *testing.T) {
	e := New()
	r := &recipe.Recipe{Hooks: map[string]string{recipe.HookBuild: "exit 1"}}
	_, err := e.Run(context.Background(), r, recipe.HookBuild, testEnv(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrHookFailed)
}

func TestRunRespectsTimeout(t *testing.T) {
	e := New(WithTimeout(50 * time.Millisecond))
	r := &recipe.Recipe{Hooks: map[string]string{recipe.HookBuild: "sleep 5"}}
	_, err := e.Run(context.Background(), r, recipe.HookBuild, testEnv(t))
	require.Error(t, err)
}

func TestRunSetExitsOnFirstFailure(t *testing.T) {
	e := New()
	r := &recipe.Recipe{Hooks: map[string]string{recipe.HookBuild: "false\necho should-not-print"}}
	result, err := e.Run(context.Background(), r, recipe.HookBuild, testEnv(t))
	require.Error(t, err)
	assert.NotContains(t, result.Stdout, "should-not-print")
}
