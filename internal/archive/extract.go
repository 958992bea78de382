package archive

import (
	"archive/tar"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	lzip "github.com/sorairolake/lzip-go"
	"github.com/ulikunitz/xz"
)

// Extract unpacks the archive at archivePath into destDir, returning the
// parsed PackageInfo sidecar. Entry paths are cleaned and confined under
// destDir, so "../" components cannot escape it; a symlink whose target is
// absolute or resolves outside destDir is rejected with an error.
func Extract(archivePath, destDir string) (*PackageInfo, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return nil, &Error{Kind: ErrVerificationFailed, Detail: err.Error()}
	}
	defer f.Close()

	reader, err := wrapDecompressor(f, DetectCompression(archivePath))
	if err != nil {
		return nil, &Error{Kind: ErrVerificationFailed, Detail: err.Error()}
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, &Error{Kind: ErrVerificationFailed, Detail: err.Error()}
	}

	tr := tar.NewReader(reader)
	var info *PackageInfo

	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &Error{Kind: ErrVerificationFailed, Detail: err.Error()}
		}

		switch hdr.Name {
		case infoFileName:
			data, err := io.ReadAll(tr)
			if err != nil {
				return nil, &Error{Kind: ErrVerificationFailed, Detail: err.Error()}
			}
			info = parsePackageInfo(data)
			continue
		case manifestFileName:
			if _, err := io.Copy(io.Discard, tr); err != nil {
				return nil, &Error{Kind: ErrVerificationFailed, Detail: err.Error()}
			}
			continue
		}

		if err := extractEntry(tr, hdr, destDir); err != nil {
			return nil, &Error{Kind: ErrVerificationFailed, Detail: err.Error()}
		}
	}

	if info == nil {
		return nil, &Error{Kind: ErrVerificationFailed, Detail: "archive missing " + infoFileName}
	}
	return info, nil
}

// Verify checks an archive's embedded manifest against its payload's actual
// digests without extracting anything: entries are hashed as they stream
// past, and any mismatch or missing/extra file fails verification. Payload
// files whose path begins with "." are left out of the manifest by
// RenderManifest and are skipped here as well.
func Verify(archivePath string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return &Error{Kind: ErrVerificationFailed, Detail: err.Error()}
	}
	defer f.Close()

	reader, err := wrapDecompressor(f, DetectCompression(archivePath))
	if err != nil {
		return &Error{Kind: ErrVerificationFailed, Detail: err.Error()}
	}

	tr := tar.NewReader(reader)
	expected := map[string]string{}
	actual := map[string]string{}

	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return &Error{Kind: ErrVerificationFailed, Detail: err.Error()}
		}

		switch hdr.Name {
		case infoFileName:
			io.Copy(io.Discard, tr)
			continue
		case manifestFileName:
			data, err := io.ReadAll(tr)
			if err != nil {
				return &Error{Kind: ErrVerificationFailed, Detail: err.Error()}
			}
			expected = parseManifest(data)
			continue
		}

		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		if strings.HasPrefix(hdr.Name, ".") {
			continue
		}

		h := sha256.New()
		if _, err := io.Copy(h, tr); err != nil {
			return &Error{Kind: ErrVerificationFailed, Detail: err.Error()}
		}
		actual[hdr.Name] = hex.EncodeToString(h.Sum(nil))
	}

	for path, sum := range expected {
		got, ok := actual[path]
		if !ok {
			return &Error{Kind: ErrVerificationFailed, Detail: fmt.Sprintf("manifest entry missing from payload: %s", path)}
		}
		if got != sum {
			return &Error{Kind: ErrVerificationFailed, Detail: fmt.Sprintf("digest mismatch for %s: expected %s, got %s", path, sum, got)}
		}
	}
	for path := range actual {
		if _, ok := expected[path]; !ok {
			return &Error{Kind: ErrVerificationFailed, Detail: fmt.Sprintf("payload entry missing from manifest: %s", path)}
		}
	}

	return nil
}

func extractEntry(tr *tar.Reader, hdr *tar.Header, destDir string) error {
	target := filepath.Join(destDir, filepath.Clean("/"+hdr.Name))

	if !isWithinDir(target, destDir) {
		return fmt.Errorf("archive entry escapes destination: %s", hdr.Name)
	}

	switch hdr.Typeflag {
	case tar.TypeDir:
		return os.MkdirAll(target, os.FileMode(hdr.Mode))

	case tar.TypeReg:
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(hdr.Mode))
		if err != nil {
			return err
		}
		defer out.Close()
		_, err = io.Copy(out, tr)
		return err

	case tar.TypeSymlink:
		if filepath.IsAbs(hdr.Linkname) {
			return fmt.Errorf("absolute symlink target not allowed: %s -> %s", hdr.Name, hdr.Linkname)
		}
		resolved := filepath.Join(filepath.Dir(target), hdr.Linkname)
		if !isWithinDir(resolved, destDir) {
			return fmt.Errorf("symlink escapes destination: %s -> %s", hdr.Name, hdr.Linkname)
		}
		os.Remove(target)
		return os.Symlink(hdr.Linkname, target)

	default:
		return nil
	}
}

func isWithinDir(target, base string) bool {
	absTarget, err := filepath.Abs(target)
	if err != nil {
		return false
	}
	absBase, err := filepath.Abs(base)
	if err != nil {
		return false
	}
	return absTarget == absBase || strings.HasPrefix(absTarget, absBase+string(os.PathSeparator))
}

func wrapDecompressor(r io.Reader, codec Compression) (io.Reader, error) {
	switch codec {
	case CompressionGzip:
		return gzip.NewReader(r)
	case CompressionXz:
		return xz.NewReader(r)
	case CompressionZstd:
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		return zr.IOReadCloser(), nil
	case CompressionLzip:
		return lzip.NewReader(r)
	default:
		return r, nil
	}
}

func parsePackageInfo(data []byte) *PackageInfo {
	info := &PackageInfo{}
	for _, line := range strings.Split(string(data), "\n") {
		key, value, ok := strings.Cut(line, " = ")
		if !ok {
			continue
		}
		switch key {
		case "name":
			info.Name = value
		case "version":
			info.Version = value
		case "release":
			info.Release = value
		case "description":
			info.Description = value
		case "url":
			info.URL = value
		case "architecture":
			info.Architecture = value
		case "license":
			info.Licenses = append(info.Licenses, value)
		case "depend":
			info.RuntimeDeps = append(info.RuntimeDeps, value)
		case "packager":
			info.Packager = value
		}
	}
	return info
}

// parseManifest reads the mtree-style manifest format RenderManifest
// produces, skipping the "#mtree" header and "/set" defaults line, and
// returns a map from payload-relative path (without the leading "./") to
// the recorded md5digest value.
func parseManifest(data []byte) map[string]string {
	result := map[string]string{}
	for _, line := range strings.Split(strings.TrimRight(string(data), "\n"), "\n") {
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "/set") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		path := strings.TrimPrefix(fields[0], "./")
		for _, f := range fields[1:] {
			if digest, ok := strings.CutPrefix(f, "md5digest="); ok {
				result[path] = digest
				break
			}
		}
	}
	return result
}
