package parseadapter

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bootlin/elixir/internal/family"
	"github.com/bootlin/elixir/internal/xrefdata"
)

func fakeScript(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "elixir-parse.sh")
	script := `#!/bin/sh
case "$1" in
  tokenize-file)
    printf 'foo\001bar\nbaz\n'
    ;;
  parse-defs)
    printf 'foo f 3\nbar x 9\nbogus ? 1\n'
    ;;
  parse-docs)
    printf 'foo 2\n'
    ;;
esac
`
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func TestTokenizeFile(t *testing.T) {
	a := New(fakeScript(t), 2)
	tokens, err := a.TokenizeFile(context.Background(), "v6.1:/init/main.c", family.C, false)
	require.NoError(t, err)
	require.Len(t, tokens, 2)
	assert.Equal(t, Token{Text: "foo\nbar", IsIdent: true}, tokens[0])
	assert.Equal(t, Token{Text: "baz", IsIdent: false}, tokens[1])
}

func TestParseDefs(t *testing.T) {
	a := New(fakeScript(t), 2)
	defs, err := a.ParseDefs(context.Background(), "aaaa", "main.c", family.C)
	require.NoError(t, err)
	require.Len(t, defs, 2)
	assert.Equal(t, Def{Ident: "foo", Kind: xrefdata.KindFunction, Line: 3}, defs[0])
	assert.Equal(t, Def{Ident: "bar", Kind: xrefdata.KindExternVar, Line: 9}, defs[1])
}

func TestParseDocs(t *testing.T) {
	a := New(fakeScript(t), 2)
	docs, err := a.ParseDocs(context.Background(), "aaaa", "main.c")
	require.NoError(t, err)
	assert.Equal(t, []Doc{{Ident: "foo", Line: 2}}, docs)
}
