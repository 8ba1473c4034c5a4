package query

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bootlin/elixir/internal/kvstore"
	"github.com/bootlin/elixir/internal/parseadapter"
	"github.com/bootlin/elixir/internal/pipeline"
	"github.com/bootlin/elixir/internal/vcsadapter"
)

// Three blobs: a C driver defining compatible "foo,bar", a DTS file
// referencing the same string, and a devicetree-bindings doc mentioning
// it — exercising the three-way Comps/CompsDocs split.
func fakeCompatVCSScript(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "vcs.sh")
	script := `#!/bin/sh
case "$1" in
  list-blobs)
    if [ "$2" = "-f" ]; then
      printf 'cccc driver.c\ndddd board.dts\nbbbb bindings.txt\n'
    else
      printf 'cccc /drivers/soc/driver.c\ndddd /arch/arm/boot/dts/board.dts\nbbbb /Documentation/devicetree/bindings/soc/foo.txt\n'
    fi
    ;;
  dts-comp)
    printf '1'
    ;;
  get-blob)
    case "$2" in
      cccc) printf '\t.compatible = "foo,bar",\n' ;;
      dddd) printf '\tcompatible = "foo,bar";\n' ;;
      bbbb) printf 'Required properties:\n- compatible: foo,bar\n' ;;
    esac
    ;;
esac
`
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func fakeCompatParseScript(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "parse.sh")
	script := `#!/bin/sh
case "$1" in
  tokenize-file) ;;
  parse-defs) ;;
  parse-docs) ;;
esac
`
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func TestCompatibleLookupThreeWaySplit(t *testing.T) {
	ctx := context.Background()
	kv, err := kvstore.Open(ctx, t.TempDir(), kvstore.CreateOrOpen)
	require.NoError(t, err)
	t.Cleanup(func() { _ = kv.Close() })

	vcs := vcsadapter.New(fakeCompatVCSScript(t), 2)
	parse := parseadapter.New(fakeCompatParseScript(t), 2)

	p, err := pipeline.New(ctx, pipeline.Config{KV: kv, VCS: vcs, Parse: parse, NumWorkers: 2, DTSComp: true})
	require.NoError(t, err)
	require.NoError(t, p.UpdateTag(ctx, "v6.1"))

	e := NewEngine(kv, vcs, parse)
	q := e.New()

	res, err := q.CompatibleLookup(ctx, "v6.1", "foo,bar")
	require.NoError(t, err)

	require.Len(t, res.CDefinitions, 1)
	assert.Equal(t, "/drivers/soc/driver.c", res.CDefinitions[0].Path)
	require.Len(t, res.DReferences, 1)
	assert.Equal(t, "/arch/arm/boot/dts/board.dts", res.DReferences[0].Path)
	require.Len(t, res.BDocComments, 1)
	assert.Equal(t, "/Documentation/devicetree/bindings/soc/foo.txt", res.BDocComments[0].Path)
}
