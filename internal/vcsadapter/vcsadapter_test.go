package vcsadapter

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeScript writes an executable shell script to a temp dir that
// dispatches on its first argument, emulating the line protocol of spec
// §6 well enough to exercise the adapter's parsing without a real VCS.
func fakeScript(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "elixir-data.sh")
	script := `#!/bin/sh
case "$1" in
  list-tags)
    if [ "$2" = "-h" ]; then
      printf 'arch x86 v6.1\nkernel v6.0\nv5.9\n'
    else
      printf 'v6.1\nv6.0\nv5.9\n'
    fi
    ;;
  get-latest-tags)
    printf 'v6.1\nv6.0\n'
    ;;
  list-blobs)
    if [ "$2" = "-f" ]; then
      printf 'aaaa main.c\nbbbb sched.c\n'
    else
      printf 'aaaa /init/main.c\nbbbb /kernel/sched.c\n'
    fi
    ;;
  get-type)
    printf 'blob\n'
    ;;
  get-dir)
    printf 'blob main.c 128 100644\ntree include 4096 40000\n'
    ;;
  get-file)
    printf 'file contents'
    ;;
  get-blob)
    printf 'blob contents'
    ;;
  dts-comp)
    printf '1\n'
    ;;
esac
`
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func TestAdapterListTags(t *testing.T) {
	a := New(fakeScript(t), 2)
	ctx := context.Background()

	tags, err := a.ListTags(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"v6.1", "v6.0", "v5.9"}, tags)

	grouped, err := a.ListTagsGrouped(ctx)
	require.NoError(t, err)
	require.Len(t, grouped, 3)
	assert.Equal(t, Entry{Topmenu: "arch", Submenu: "x86", Tag: "v6.1"}, grouped[0])
	assert.Equal(t, Entry{Topmenu: "kernel", Tag: "v6.0"}, grouped[1])
	assert.Equal(t, Entry{Tag: "v5.9"}, grouped[2])
}

func TestAdapterListBlobs(t *testing.T) {
	a := New(fakeScript(t), 2)
	ctx := context.Background()

	byName, err := a.ListBlobsByFilename(ctx, "v6.1")
	require.NoError(t, err)
	assert.Equal(t, []BlobRef{{Hash: "aaaa", Name: "main.c"}, {Hash: "bbbb", Name: "sched.c"}}, byName)

	byPath, err := a.ListBlobsByPath(ctx, "v6.1")
	require.NoError(t, err)
	assert.Equal(t, []BlobRef{{Hash: "aaaa", Name: "/init/main.c"}, {Hash: "bbbb", Name: "/kernel/sched.c"}}, byPath)
}

func TestAdapterGetDir(t *testing.T) {
	a := New(fakeScript(t), 2)
	entries, err := a.GetDir(context.Background(), "v6.1", "/")
	require.NoError(t, err)
	assert.Equal(t, []DirEntry{
		{Type: "blob", Name: "main.c", Size: 128, Mode: "100644"},
		{Type: "tree", Name: "include", Size: 4096, Mode: "40000"},
	}, entries)
}

func TestAdapterMisc(t *testing.T) {
	a := New(fakeScript(t), 2)
	ctx := context.Background()

	typ, err := a.GetType(ctx, "v6.1", "/init/main.c")
	require.NoError(t, err)
	assert.Equal(t, "blob", typ)

	content, err := a.GetFile(ctx, "v6.1", "/init/main.c")
	require.NoError(t, err)
	assert.Equal(t, "file contents", string(content))

	blob, err := a.GetBlob(ctx, "aaaa")
	require.NoError(t, err)
	assert.Equal(t, "blob contents", string(blob))

	enabled, err := a.DTCompEnabled(ctx)
	require.NoError(t, err)
	assert.True(t, enabled)
}
