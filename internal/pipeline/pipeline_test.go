package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bootlin/elixir/internal/kvstore"
	"github.com/bootlin/elixir/internal/parseadapter"
	"github.com/bootlin/elixir/internal/vcsadapter"
	"github.com/bootlin/elixir/internal/xrefdata"
)

// A single blob "aaaa" at /init/main.c defines identifier "do_fork" and
// references identifier "schedule" (which has no definition anywhere,
// so it must NOT show up in Refs — exercising invariant 6, the
// acceptance oracle).
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
    printf 'do_fork\n = \nschedule\n();\n'
    ;;
  parse-defs)
    printf 'do_fork f 42\n'
    ;;
  parse-docs)
    ;;
esac
`
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func TestUpdateTagEndToEnd(t *testing.T) {
	ctx := context.Background()
	kv, err := kvstore.Open(ctx, t.TempDir(), kvstore.CreateOrOpen)
	require.NoError(t, err)
	t.Cleanup(func() { _ = kv.Close() })

	vcs := vcsadapter.New(fakeVCSScript(t), 2)
	parse := parseadapter.New(fakeParseScript(t), 2)

	p, err := New(ctx, Config{KV: kv, VCS: vcs, Parse: parse, NumWorkers: 2})
	require.NoError(t, err)

	require.NoError(t, p.UpdateTag(ctx, "v6.1"))

	require.NoError(t, kv.View(ctx, func(tx kvstore.Tx) error {
		raw, found, err := tx.Bucket(kvstore.BucketVersions).Get([]byte("v6.1"))
		require.NoError(t, err)
		require.True(t, found)
		pl, err := xrefdata.ParsePathList(raw)
		require.NoError(t, err)
		entries := pl.Iter(false)
		require.Len(t, entries, 1)
		assert.Equal(t, "/init/main.c", entries[0].Path)

		raw, found, err = tx.Bucket(kvstore.BucketDefs).Get([]byte("do_fork"))
		require.NoError(t, err)
		require.True(t, found)
		dl, err := xrefdata.ParseDefList(raw)
		require.NoError(t, err)
		assert.Equal(t, 1, dl.Len())

		_, found, err = tx.Bucket(kvstore.BucketRefs).Get([]byte("schedule"))
		require.NoError(t, err)
		assert.False(t, found, "schedule has no definition anywhere, so it must not be recorded as a reference")
		return nil
	}))

	// Re-running the same tag is a no-op (idempotence, spec §4.4).
	require.NoError(t, p.UpdateTag(ctx, "v6.1"))
}

// fakeBindingsVCSScript adds a blob under the DT-bindings documentation
// prefix alongside the ordinary main.c blob, so classification of a
// bindings-doc path can be exercised (it must never be stored as
// family.B; see stage_versions.go's basename-only classify fix).
func fakeBindingsVCSScript(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "vcs.sh")
	script := `#!/bin/sh
case "$1" in
  list-blobs)
    if [ "$2" = "-f" ]; then
      printf 'aaaa main.c\nbbbb foo.txt\n'
    else
      printf 'aaaa /init/main.c\nbbbb /Documentation/devicetree/bindings/soc/foo.txt\n'
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

func TestBindingsDocIsNotStoredAsFamilyB(t *testing.T) {
	ctx := context.Background()
	kv, err := kvstore.Open(ctx, t.TempDir(), kvstore.CreateOrOpen)
	require.NoError(t, err)
	t.Cleanup(func() { _ = kv.Close() })

	vcs := vcsadapter.New(fakeBindingsVCSScript(t), 2)
	parse := parseadapter.New(fakeParseScript(t), 2)

	p, err := New(ctx, Config{KV: kv, VCS: vcs, Parse: parse, NumWorkers: 2})
	require.NoError(t, err)
	require.NoError(t, p.UpdateTag(ctx, "v6.1"))

	require.NoError(t, kv.View(ctx, func(tx kvstore.Tx) error {
		bm, err := loadBindings(tx, "v6.1")
		require.NoError(t, err)
		assert.Equal(t, uint64(1), bm.GetCardinality(), "the bindings-doc blob must be tracked in the per-tag bindings set")

		raw, found, err := tx.Bucket(kvstore.BucketVersions).Get([]byte("v6.1"))
		require.NoError(t, err)
		require.True(t, found)
		pl, err := xrefdata.ParsePathList(raw)
		require.NoError(t, err)
		require.Len(t, pl.Iter(false), 2)

		// do_fork still gets indexed normally out of /init/main.c; the
		// bindings blob contributes nothing to Defs/Refs/Docs since its
		// classified family is None, not B.
		raw, found, err = tx.Bucket(kvstore.BucketDefs).Get([]byte("do_fork"))
		require.NoError(t, err)
		require.True(t, found)
		return nil
	}))
}
