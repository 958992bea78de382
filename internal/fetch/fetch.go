// Package fetch downloads a recipe's sources in parallel, verifying each
// against its aligned checksum, and places the results in a build's source
// directory.
package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/GhostKellz/zmake/internal/httputil"
	"github.com/GhostKellz/zmake/internal/log"
	"github.com/GhostKellz/zmake/internal/recipe"
)

// ErrorKind identifies the distinct fetch failure modes, per the error
// taxonomy: a failed transfer is DownloadFailed, a verified-but-wrong
// payload is ChecksumMismatch.
type ErrorKind string

const (
	ErrDownloadFailed   ErrorKind = "DownloadFailed"
	ErrChecksumMismatch ErrorKind = "ChecksumMismatch"
)

// Error reports one source's fetch failure.
type Error struct {
	Kind   ErrorKind
	Source string
	Detail string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Kind, e.Source, e.Detail)
}

// Result records the outcome of fetching one source.
type Result struct {
	Source   string
	Path     string // absolute path to the fetched file inside destDir
	Checksum string // computed SHA-256, hex-encoded
	Skipped  bool   // true when the recipe's checksum entry was SKIP
}

// Fetcher downloads recipe sources concurrently, one goroutine per source.
type Fetcher struct {
	client *http.Client
	logger log.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

func WithLogger(logger log.Logger) Option {
	return func(f *Fetcher) { f.logger = logger }
}

// New creates a Fetcher using a security-hardened default HTTP client.
func New(opts ...Option) *Fetcher {
	f := &Fetcher{
		client: httputil.NewSecureClient(httputil.DefaultOptions()),
		logger: log.NewNoop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// FetchAll retrieves every entry in r.Sources into destDir, one goroutine
// per source, and verifies each downloaded file against the aligned entry in
// r.Checksums (if any). A bare filename with no URL scheme is treated as
// already present in destDir (a local, recipe-adjacent source): it is not
// fetched, its existence is not checked, and it is not verified against its
// checksum.
// The first error encountered is returned; all in-flight fetches are
// allowed to finish before FetchAll returns; it does not cancel siblings on
// a single source's failure, matching independent per-source verification.
func (f *Fetcher) FetchAll(ctx context.Context, r *recipe.Recipe, destDir string) ([]Result, error) {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating destination directory: %w", err)
	}

	results := make([]Result, len(r.Sources))
	errs := make([]error, len(r.Sources))

	var wg sync.WaitGroup
	for i, source := range r.Sources {
		wg.Add(1)
		go func(i int, source string) {
			defer wg.Done()
			checksum := ""
			if i < len(r.Checksums) {
				checksum = r.Checksums[i]
			}
			result, err := f.fetchOne(ctx, source, checksum, destDir)
			results[i] = result
			errs[i] = err
		}(i, source)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return results, err
		}
	}
	return results, nil
}

func (f *Fetcher) fetchOne(ctx context.Context, source, checksum, destDir string) (Result, error) {
	if !isURL(source) {
		return Result{Source: source, Path: filepath.Join(destDir, source)}, nil
	}

	name := filepath.Base(source)
	dest := filepath.Join(destDir, name)

	f.logger.Debug("fetching source", "source", source)
	if err := f.download(ctx, source, dest); err != nil {
		return Result{}, &Error{Kind: ErrDownloadFailed, Source: source, Detail: err.Error()}
	}

	if checksum == recipe.SkipChecksum {
		return Result{Source: source, Path: dest, Skipped: true}, nil
	}

	actual, err := sha256File(dest)
	if err != nil {
		return Result{}, &Error{Kind: ErrDownloadFailed, Source: source, Detail: err.Error()}
	}

	if checksum != "" && actual != checksum {
		return Result{}, &Error{
			Kind:   ErrChecksumMismatch,
			Source: source,
			Detail: fmt.Sprintf("expected %s, got %s", checksum, actual),
		}
	}

	return Result{Source: source, Path: dest, Checksum: actual}, nil
}

func (f *Fetcher) download(ctx context.Context, source, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("requesting %s: %w", source, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	tmp := dest + ".part"
	out, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("creating %s: %w", tmp, err)
	}

	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		os.Remove(tmp)
		return fmt.Errorf("writing %s: %w", dest, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return err
	}

	return os.Rename(tmp, dest)
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

func isURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return strings.HasPrefix(u.Scheme, "http")
}
