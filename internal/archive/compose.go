// Package archive composes a build's package directory into a compressed
// tar archive with package-info and manifest sidecars, and verifies or
// extracts archives produced the same way.
package archive

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/GhostKellz/zmake/internal/recipe"
	"github.com/klauspost/compress/zstd"
	lzip "github.com/sorairolake/lzip-go"
	"github.com/ulikunitz/xz"
)

// Compression identifies the payload compression codec.
type Compression string

const (
	CompressionGzip Compression = "gzip"
	CompressionXz   Compression = "xz"
	CompressionZstd Compression = "zstd"
	CompressionLzip Compression = "lzip"
	CompressionNone Compression = "none"
)

// Extension returns the conventional file extension for the codec.
func (c Compression) Extension() string {
	switch c {
	case CompressionGzip:
		return ".tar.gz"
	case CompressionXz:
		return ".tar.xz"
	case CompressionZstd:
		return ".tar.zst"
	case CompressionLzip:
		return ".tar.lz"
	default:
		return ".tar"
	}
}

// ErrorKind distinguishes archive failure modes per the error taxonomy.
type ErrorKind string

const (
	ErrCreationFailed     ErrorKind = "ArchiveCreationFailed"
	ErrVerificationFailed ErrorKind = "ArchiveVerificationFailed"
	ErrSigningFailed      ErrorKind = "SigningFailed"
)

// Error reports an archive-stage failure.
type Error struct {
	Kind   ErrorKind
	Detail string
}

func (e *Error) Error() string { return fmt.Sprintf("%s: %s", e.Kind, e.Detail) }

const (
	infoFileName     = ".PKGINFO"
	manifestFileName = ".MANIFEST"
)

// Compose builds a compressed tar archive at destPath from payloadDir (a
// build's package directory), embedding a ".PKGINFO" sidecar rendered from
// r and a ".MANIFEST" sidecar listing the digest of every payload file
// whose path does not begin with ".".
func Compose(r *recipe.Recipe, payloadDir, destPath string, codec Compression, packager string) (*PackageInfo, error) {
	entries, err := BuildManifest(payloadDir)
	if err != nil {
		return nil, &Error{Kind: ErrCreationFailed, Detail: err.Error()}
	}

	var totalSize int64
	for _, e := range entries {
		totalSize += e.SizeBytes
	}

	info := NewPackageInfo(r, totalSize, time.Now(), packager)
	manifest := RenderManifest(entries)

	if err := writeTarArchive(destPath, payloadDir, entries, info, manifest, codec); err != nil {
		return nil, &Error{Kind: ErrCreationFailed, Detail: err.Error()}
	}

	return info, nil
}

func writeTarArchive(destPath, payloadDir string, entries []ManifestEntry, info *PackageInfo, manifest []byte, codec Compression) error {
	tmp := destPath + ".part"
	out, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("creating archive file: %w", err)
	}

	compressed, closeCompressed, err := wrapCompressor(out, codec)
	if err != nil {
		out.Close()
		os.Remove(tmp)
		return err
	}

	tw := tar.NewWriter(compressed)

	if err := writeTarEntry(tw, infoFileName, info.Render()); err != nil {
		return finishWithError(tw, compressed, closeCompressed, out, tmp, err)
	}
	if err := writeTarEntry(tw, manifestFileName, manifest); err != nil {
		return finishWithError(tw, compressed, closeCompressed, out, tmp, err)
	}

	for _, e := range entries {
		if err := writeTarFile(tw, payloadDir, e.Path); err != nil {
			return finishWithError(tw, compressed, closeCompressed, out, tmp, err)
		}
	}

	if err := tw.Close(); err != nil {
		out.Close()
		os.Remove(tmp)
		return fmt.Errorf("closing tar writer: %w", err)
	}
	if err := closeCompressed(); err != nil {
		out.Close()
		os.Remove(tmp)
		return fmt.Errorf("closing compressor: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return err
	}

	return os.Rename(tmp, destPath)
}

func finishWithError(tw *tar.Writer, compressed io.Writer, closeCompressed func() error, out *os.File, tmp string, cause error) error {
	tw.Close()
	closeCompressed()
	out.Close()
	os.Remove(tmp)
	return cause
}

// wrapCompressor returns a writer that compresses into w per codec, and a
// close function that must run before the underlying file is closed.
func wrapCompressor(w io.Writer, codec Compression) (io.Writer, func() error, error) {
	switch codec {
	case CompressionGzip:
		gw := gzip.NewWriter(w)
		return gw, gw.Close, nil
	case CompressionXz:
		xw, err := xz.NewWriter(w)
		if err != nil {
			return nil, nil, fmt.Errorf("creating xz writer: %w", err)
		}
		return xw, xw.Close, nil
	case CompressionZstd:
		zw, err := zstd.NewWriter(w)
		if err != nil {
			return nil, nil, fmt.Errorf("creating zstd writer: %w", err)
		}
		return zw, zw.Close, nil
	case CompressionLzip:
		lw, err := lzip.NewWriter(w)
		if err != nil {
			return nil, nil, fmt.Errorf("creating lzip writer: %w", err)
		}
		return lw, lw.Close, nil
	case CompressionNone:
		return w, func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("unsupported compression codec %q", codec)
	}
}

func writeTarEntry(tw *tar.Writer, name string, data []byte) error {
	hdr := &tar.Header{
		Name:     name,
		Mode:     0o644,
		Size:     int64(len(data)),
		ModTime:  time.Now(),
		Typeflag: tar.TypeReg,
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("writing %s header: %w", name, err)
	}
	if _, err := tw.Write(data); err != nil {
		return fmt.Errorf("writing %s body: %w", name, err)
	}
	return nil
}

func writeTarFile(tw *tar.Writer, payloadDir, relPath string) error {
	absPath := filepath.Join(payloadDir, relPath)
	info, err := os.Lstat(absPath)
	if err != nil {
		return fmt.Errorf("stat %s: %w", relPath, err)
	}

	hdr, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return fmt.Errorf("building header for %s: %w", relPath, err)
	}
	hdr.Name = filepath.ToSlash(relPath)

	if err := tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("writing header for %s: %w", relPath, err)
	}

	if info.Mode().IsRegular() {
		f, err := os.Open(absPath)
		if err != nil {
			return fmt.Errorf("opening %s: %w", relPath, err)
		}
		defer f.Close()
		if _, err := io.Copy(tw, f); err != nil {
			return fmt.Errorf("copying %s: %w", relPath, err)
		}
	}

	return nil
}

// DetectCompression infers the codec from an archive's file extension.
func DetectCompression(filename string) Compression {
	lower := strings.ToLower(filename)
	switch {
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		return CompressionGzip
	case strings.HasSuffix(lower, ".tar.xz"), strings.HasSuffix(lower, ".txz"):
		return CompressionXz
	case strings.HasSuffix(lower, ".tar.zst"), strings.HasSuffix(lower, ".tzst"):
		return CompressionZstd
	case strings.HasSuffix(lower, ".tar.lz"), strings.HasSuffix(lower, ".tlz"):
		return CompressionLzip
	default:
		return CompressionNone
	}
}
