// Package errmsg provides enhanced error message formatting with actionable suggestions.
package errmsg

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/GhostKellz/zmake/internal/pipeline"
)

// ErrorContext provides additional context for error formatting
type ErrorContext struct {
	RecipeName string // The recipe being built (for suggestions)
}

// Format returns a formatted error message with possible causes and suggestions.
// The context parameter is optional - pass nil for generic formatting.
func Format(err error, ctx *ErrorContext) string {
	if err == nil {
		return ""
	}

	errMsg := err.Error()

	var pipelineErr *pipeline.Error
	if errors.As(err, &pipelineErr) {
		return formatPipelineError(pipelineErr, ctx)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return formatNetworkError(netErr, ctx)
	}

	if isNetworkError(errMsg) {
		return formatGenericNetworkError(errMsg, ctx)
	}

	if isPermissionError(errMsg) {
		return formatPermissionError(errMsg, ctx)
	}

	return errMsg
}

func formatPipelineError(err *pipeline.Error, ctx *ErrorContext) string {
	var sb strings.Builder
	sb.WriteString(err.Error())
	sb.WriteString("\n")

	switch err.Kind {
	case pipeline.KindInvalidRecipeFormat:
		sb.WriteString("\nPossible causes:\n")
		sb.WriteString("  - Syntax error in the recipe file\n")
		sb.WriteString("  - Unterminated array or hook body\n")

		sb.WriteString("\nSuggestions:\n")
		sb.WriteString("  - Check that every ( has a matching )\n")
		sb.WriteString("  - Check that every hook body's braces balance\n")

	case pipeline.KindMissingRequiredField:
		sb.WriteString("\nPossible causes:\n")
		sb.WriteString("  - name, version, release, or architectures is empty\n")

		sb.WriteString("\nSuggestions:\n")
		sb.WriteString("  - Add the missing field to the recipe\n")

	case pipeline.KindMissingDependency:
		sb.WriteString("\nPossible causes:\n")
		sb.WriteString("  - A listed build or runtime dependency is not installed\n")

		sb.WriteString("\nSuggestions:\n")
		if ctx != nil && ctx.RecipeName != "" {
			sb.WriteString(fmt.Sprintf("  - Install the missing dependency before building %s\n", ctx.RecipeName))
		} else {
			sb.WriteString("  - Install the missing dependency before building\n")
		}

	case pipeline.KindConflictDetected:
		sb.WriteString("\nPossible causes:\n")
		sb.WriteString("  - A package this recipe conflicts with is already installed\n")

		sb.WriteString("\nSuggestions:\n")
		sb.WriteString("  - Remove the conflicting package first\n")

	case pipeline.KindDownloadFailed:
		sb.WriteString("\nPossible causes:\n")
		sb.WriteString("  - Network connectivity issue\n")
		sb.WriteString("  - Source URL no longer exists\n")

		sb.WriteString("\nSuggestions:\n")
		sb.WriteString("  - Check your internet connection\n")
		sb.WriteString("  - Verify the source URL in the recipe is still valid\n")

	case pipeline.KindChecksumMismatch:
		sb.WriteString("\nPossible causes:\n")
		sb.WriteString("  - The upstream source changed without a version bump\n")
		sb.WriteString("  - The recipe's checksum is stale or incorrect\n")

		sb.WriteString("\nSuggestions:\n")
		sb.WriteString("  - Re-download the source and recompute its checksum\n")
		sb.WriteString("  - Use SKIP only if you trust the source unconditionally\n")

	case pipeline.KindPrepareFailed, pipeline.KindBuildFailed, pipeline.KindPackageFailed:
		sb.WriteString("\nPossible causes:\n")
		sb.WriteString("  - The hook script exited non-zero\n")
		sb.WriteString("  - A required build tool is missing from PATH\n")

		sb.WriteString("\nSuggestions:\n")
		sb.WriteString("  - Re-run with a higher log verbosity to see the hook's full output\n")
		sb.WriteString("  - Check that build_dependencies lists every tool the hook invokes\n")

	case pipeline.KindCacheCorruption:
		sb.WriteString("\nPossible causes:\n")
		sb.WriteString("  - The cache index was partially written during a crash\n")
		sb.WriteString("  - A cached entry's directory was removed outside zmake\n")

		sb.WriteString("\nSuggestions:\n")
		sb.WriteString("  - Run 'zmake cache gc' to reconcile the index with what's on disk\n")

	case pipeline.KindArchiveCreationFailed, pipeline.KindArchiveVerifyFailed:
		sb.WriteString("\nPossible causes:\n")
		sb.WriteString("  - Insufficient disk space in the artifact directory\n")
		sb.WriteString("  - The package directory contains an unreadable file or broken symlink\n")

		sb.WriteString("\nSuggestions:\n")
		sb.WriteString("  - Check available disk space\n")
		sb.WriteString("  - Inspect the package directory for unusual permissions\n")

	case pipeline.KindSigningFailed:
		sb.WriteString("\nPossible causes:\n")
		sb.WriteString("  - The signing key is malformed or passphrase-protected\n")

		sb.WriteString("\nSuggestions:\n")
		sb.WriteString("  - Verify the armored private key parses on its own\n")

	default:
		sb.WriteString("\nSuggestions:\n")
		sb.WriteString("  - Try again in a few minutes\n")
	}

	return sb.String()
}

func formatNetworkError(err net.Error, ctx *ErrorContext) string {
	var sb strings.Builder
	sb.WriteString(err.Error())
	sb.WriteString("\n")

	sb.WriteString("\nPossible causes:\n")
	if err.Timeout() {
		sb.WriteString("  - Request timed out\n")
		sb.WriteString("  - Slow or unstable network connection\n")
	} else {
		sb.WriteString("  - Network connectivity issue\n")
		sb.WriteString("  - DNS resolution failure\n")
	}
	sb.WriteString("  - Firewall or proxy blocking the connection\n")

	sb.WriteString("\nSuggestions:\n")
	sb.WriteString("  - Check your internet connection\n")
	sb.WriteString("  - Try again in a few minutes\n")

	return sb.String()
}

func formatGenericNetworkError(errMsg string, ctx *ErrorContext) string {
	var sb strings.Builder
	sb.WriteString(errMsg)
	sb.WriteString("\n")

	sb.WriteString("\nPossible causes:\n")
	sb.WriteString("  - Network connectivity issue\n")
	sb.WriteString("  - DNS resolution failure\n")
	sb.WriteString("  - Service temporarily unavailable\n")

	sb.WriteString("\nSuggestions:\n")
	sb.WriteString("  - Check your internet connection\n")
	sb.WriteString("  - Try again in a few minutes\n")

	return sb.String()
}

func formatPermissionError(errMsg string, ctx *ErrorContext) string {
	var sb strings.Builder
	sb.WriteString(errMsg)
	sb.WriteString("\n")

	sb.WriteString("\nPossible causes:\n")
	sb.WriteString("  - Insufficient permissions on $ZMAKE_HOME directory\n")
	sb.WriteString("  - File or directory owned by a different user\n")

	sb.WriteString("\nSuggestions:\n")
	sb.WriteString("  - Check permissions on ~/.zmake\n")
	sb.WriteString("  - Ensure you own the zmake directories: ls -la ~/.zmake\n")

	return sb.String()
}

func isNetworkError(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "connection refused") ||
		strings.Contains(lower, "connection reset") ||
		strings.Contains(lower, "no such host") ||
		strings.Contains(lower, "network is unreachable") ||
		strings.Contains(lower, "dial tcp") ||
		strings.Contains(lower, "timeout") ||
		strings.Contains(lower, "i/o timeout")
}

func isPermissionError(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "permission denied") ||
		strings.Contains(lower, "access denied") ||
		strings.Contains(lower, "operation not permitted")
}
