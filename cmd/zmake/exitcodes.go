package main

import (
	"errors"
	"os"

	"github.com/GhostKellz/zmake/internal/pipeline"
)

// Exit codes for failures outside the pipeline's own taxonomy. Pipeline
// failures (recipe, dependency, fetch, build, cache, archive, signing)
// get their code from pipeline.ExitCode instead, keeping one source of
// truth for that mapping.
const (
	ExitSuccess   = 0
	ExitGeneral   = 1
	ExitUsage     = 2
	ExitCancelled = 130
)

func exitWithCode(code int) {
	os.Exit(code)
}

// codeForError maps a pipeline error to the exit code zmake should return;
// any other error type falls back to ExitGeneral.
func codeForError(err error) int {
	var pipelineErr *pipeline.Error
	if errors.As(err, &pipelineErr) {
		return pipelineErr.ExitCode
	}
	return ExitGeneral
}
