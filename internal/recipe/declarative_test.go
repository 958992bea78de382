package recipe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleDeclarativeBracketed = `
[package]
name = "hello"
version = "2.10"
release = "1"
arch = [x86_64, aarch64]
license = ["GPL-3.0-or-later"]

[build]
sources = ["https://ftp.gnu.org/gnu/hello/hello-2.10.tar.gz"]
checksums = ["31e066137a962676e89f69d1b65382de95a7ef7d914b8cb956f41ea72e0f516"]
build_script = "make"

[dependencies]
build = [compiler>=4.7, make]
`

const sampleDeclarativeBareList = `
[package]
name = "hello"
version = "2.10"
release = "1"
arch = x86_64, aarch64
`

func TestParseDeclarativeBracketedLists(t *testing.T) {
	r, err := ParseDeclarative([]byte(sampleDeclarativeBracketed))
	require.NoError(t, err)

	assert.Equal(t, "hello", r.Name)
	assert.Equal(t, []string{"x86_64", "aarch64"}, r.Architectures)
	assert.Equal(t, []string{"GPL-3.0-or-later"}, r.Licenses)
	assert.Equal(t, []string{"31e066137a962676e89f69d1b65382de95a7ef7d914b8cb956f41ea72e0f516"}, r.Checksums)
	assert.Equal(t, "make", r.Hook(HookBuild))
	require.Len(t, r.BuildDependencies, 2)
	assert.Equal(t, "compiler", r.BuildDependencies[0].Name)
	assert.Equal(t, RelationGe, r.BuildDependencies[0].Relation)
}

func TestParseDeclarativeBareCommaList(t *testing.T) {
	r, err := ParseDeclarative([]byte(sampleDeclarativeBareList))
	require.NoError(t, err)
	assert.Equal(t, []string{"x86_64", "aarch64"}, r.Architectures)
}

func TestParseDeclarativeEmptyBracketedListYieldsEmptyNonNilSlice(t *testing.T) {
	r, err := ParseDeclarative([]byte("[package]\nconflicts = []\n"))
	require.NoError(t, err)
	assert.NotNil(t, r.Conflicts)
	assert.Len(t, r.Conflicts, 0)
}

func TestParseDeclarativeIgnoresCommentsAndBlankLines(t *testing.T) {
	r, err := ParseDeclarative([]byte("# comment\n\n[package]\nname = \"x\"\n"))
	require.NoError(t, err)
	assert.Equal(t, "x", r.Name)
}
