package archive

import (
	"archive/tar"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/GhostKellz/zmake/internal/recipe"
	"github.com/ProtonMail/gopenpgp/v2/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samplePayload(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "bin"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bin", "hello"), []byte("#!/bin/sh\necho hi\n"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README"), []byte("hello world\n"), 0o644))
	return dir
}

func sampleRecipe() *recipe.Recipe {
	return &recipe.Recipe{
		Name: "hello", Version: "2.10", Release: "1",
		Architectures: []string{"x86_64"},
		Licenses:      []string{"GPL-3.0-or-later"},
	}
}

func TestComposeThenExtractRoundTrip(t *testing.T) {
	payload := samplePayload(t)
	dest := filepath.Join(t.TempDir(), "hello-2.10-1.tar.gz")

	info, err := Compose(sampleRecipe(), payload, dest, CompressionGzip, "tester")
	require.NoError(t, err)
	assert.Equal(t, "hello", info.Name)
	assert.Greater(t, info.SizeBytes, int64(0))

	extractDir := t.TempDir()
	extractedInfo, err := Extract(dest, extractDir)
	require.NoError(t, err)
	assert.Equal(t, "hello", extractedInfo.Name)
	assert.Equal(t, "2.10", extractedInfo.Version)

	data, err := os.ReadFile(filepath.Join(extractDir, "README"))
	require.NoError(t, err)
	assert.Equal(t, "hello world\n", string(data))
}

func TestComposeThenVerifySucceeds(t *testing.T) {
	payload := samplePayload(t)
	dest := filepath.Join(t.TempDir(), "hello.tar.xz")

	_, err := Compose(sampleRecipe(), payload, dest, CompressionXz, "tester")
	require.NoError(t, err)

	assert.NoError(t, Verify(dest))
}

func TestVerifyAcceptsRecomposedTamperedTree(t *testing.T) {
	payload := samplePayload(t)
	dest := filepath.Join(t.TempDir(), "hello.tar.gz")

	_, err := Compose(sampleRecipe(), payload, dest, CompressionGzip, "tester")
	require.NoError(t, err)

	extractDir := t.TempDir()
	_, err = Extract(dest, extractDir)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(extractDir, "README"), []byte("tampered\n"), 0o644))

	retarred := filepath.Join(t.TempDir(), "tampered.tar.gz")
	_, err = Compose(sampleRecipe(), extractDir, retarred, CompressionGzip, "tester")
	require.NoError(t, err)
	assert.NoError(t, Verify(retarred))
}

func TestExtractEntryRejectsAbsoluteSymlinkTarget(t *testing.T) {
	dest := t.TempDir()
	hdr := &tar.Header{Name: "evil-link", Typeflag: tar.TypeSymlink, Linkname: "/etc/passwd"}
	err := extractEntry(tar.NewReader(strings.NewReader("")), hdr, dest)
	assert.Error(t, err)
}

func TestExtractEntryNeutralizesPathTraversal(t *testing.T) {
	dest := t.TempDir()
	hdr := &tar.Header{Name: "../../escape", Typeflag: tar.TypeReg, Size: 0}
	err := extractEntry(tar.NewReader(strings.NewReader("")), hdr, dest)
	require.NoError(t, err)

	_, statErr := os.Stat(filepath.Join(dest, "escape"))
	assert.NoError(t, statErr)
}

func TestSignAndVerifySignatureRoundTrip(t *testing.T) {
	key, err := crypto.GenerateKey("Test Packager", "packager@example.com", "rsa", 2048)
	require.NoError(t, err)
	armoredPrivate, err := key.Armor()
	require.NoError(t, err)

	publicKey, err := key.ToPublic()
	require.NoError(t, err)
	armoredPublic, err := publicKey.Armor()
	require.NoError(t, err)

	payload := samplePayload(t)
	dest := filepath.Join(t.TempDir(), "hello.tar.gz")
	_, err = Compose(sampleRecipe(), payload, dest, CompressionGzip, "tester")
	require.NoError(t, err)

	sigPath, err := Sign(dest, armoredPrivate)
	require.NoError(t, err)

	sigData, err := os.ReadFile(sigPath)
	require.NoError(t, err)

	assert.NoError(t, VerifySignature(dest, string(sigData), armoredPublic))
}

func TestDetectCompressionFromExtension(t *testing.T) {
	assert.Equal(t, CompressionGzip, DetectCompression("a.tar.gz"))
	assert.Equal(t, CompressionXz, DetectCompression("a.tar.xz"))
	assert.Equal(t, CompressionZstd, DetectCompression("a.tar.zst"))
	assert.Equal(t, CompressionLzip, DetectCompression("a.tar.lz"))
	assert.Equal(t, CompressionNone, DetectCompression("a.tar"))
}
