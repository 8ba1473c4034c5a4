package query

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bootlin/elixir/internal/family"
	"github.com/bootlin/elixir/internal/kvstore"
	"github.com/bootlin/elixir/internal/parseadapter"
	"github.com/bootlin/elixir/internal/pipeline"
	"github.com/bootlin/elixir/internal/vcsadapter"
)

// fakeVCSScript and fakeParseScript seed one blob at /init/main.c that
// defines both do_fork and main_loop, and whose tokenization references
// only main_loop (which therefore passes the acceptance oracle and lands
// in Refs); do_fork is only exercised as a definition here.
func fakeVCSScript(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "vcs.sh")
	script := `#!/bin/sh
case "$1" in
  list-blobs)
    if [ "$2" = "-f" ]; then
      printf 'aaaa main.c\n'
    else
      printf 'aaaa /init/main.c\n'
    fi
    ;;
  get-blob)
    printf 'irrelevant'
    ;;
esac
`
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func fakeParseScript(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "parse.sh")
	script := `#!/bin/sh
case "$1" in
  tokenize-file)
    printf 'main_loop\n();\n'
    ;;
  parse-defs)
    printf 'do_fork f 10\nmain_loop f 42\n'
    ;;
  parse-docs)
    ;;
esac
`
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func seedEngine(t *testing.T) *Engine {
	t.Helper()
	ctx := context.Background()
	kv, err := kvstore.Open(ctx, t.TempDir(), kvstore.CreateOrOpen)
	require.NoError(t, err)
	t.Cleanup(func() { _ = kv.Close() })

	vcs := vcsadapter.New(fakeVCSScript(t), 2)
	parse := parseadapter.New(fakeParseScript(t), 2)

	p, err := pipeline.New(ctx, pipeline.Config{KV: kv, VCS: vcs, Parse: parse, NumWorkers: 2})
	require.NoError(t, err)
	require.NoError(t, p.UpdateTag(ctx, "v6.1"))

	return NewEngine(kv, vcs, parse)
}

func TestSearchIdentFindsDefinitionAndReference(t *testing.T) {
	e := seedEngine(t)
	q := e.New()
	ctx := context.Background()

	res, err := q.SearchIdent(ctx, "v6.1", "main_loop", family.C)
	require.NoError(t, err)
	require.Len(t, res.Definitions, 1)
	assert.Equal(t, "/init/main.c", res.Definitions[0].Path)
	assert.Equal(t, 42, res.Definitions[0].Line)
	require.Len(t, res.References, 1)
	assert.Equal(t, "/init/main.c", res.References[0].Path)
}

func TestSearchIdentUnknownIdentReturnsEmpty(t *testing.T) {
	e := seedEngine(t)
	q := e.New()
	ctx := context.Background()

	res, err := q.SearchIdent(ctx, "v6.1", "nonexistent_symbol", family.C)
	require.NoError(t, err)
	assert.Empty(t, res.Definitions)
	assert.Empty(t, res.References)
}

func TestFileExists(t *testing.T) {
	e := seedEngine(t)
	q := e.New()
	ctx := context.Background()

	exists, err := q.FileExists(ctx, "v6.1", "/init/main.c")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = q.FileExists(ctx, "v6.1", "/init")
	require.NoError(t, err)
	assert.True(t, exists, "containing directory must also report as existing")

	exists, err = q.FileExists(ctx, "v6.1", "/nope")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestLatestFallsBackToLastTagWhenNoneExist(t *testing.T) {
	e := seedEngine(t)
	q := e.New()
	ctx := context.Background()

	tag, err := q.Latest(ctx, []string{"v6.1"})
	require.NoError(t, err)
	assert.Equal(t, "v6.1", tag)

	tag, err = q.Latest(ctx, []string{"v9.9", "v8.8"})
	require.NoError(t, err)
	assert.Equal(t, "v8.8", tag, "falls back to the last entry when no candidate tag exists in Vers")
}

func TestAutocompleteCPrefix(t *testing.T) {
	e := seedEngine(t)
	q := e.New()
	ctx := context.Background()

	out, err := q.Autocomplete(ctx, "do_", family.C)
	require.NoError(t, err)
	assert.Equal(t, []string{"do_fork"}, out)
}
