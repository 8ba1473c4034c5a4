package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bootlin/elixir/internal/bookkeep"
)

func TestGetTokenizedFileHighlightsCachedDefinitions(t *testing.T) {
	e := seedEngine(t)
	require.NoError(t, bookkeep.RebuildDefsCache(e.kv))

	q := e.New()
	ctx := context.Background()

	out, err := q.GetTokenizedFile(ctx, "v6.1", "/init/main.c")
	require.NoError(t, err)

	assert.Equal(t, "\033[31mmain_loop\033[0m();", string(out))
}

func TestGetTokenizedFileFallsBackToRawBytesOutsideCachedFamily(t *testing.T) {
	e := seedEngine(t)

	q := e.New()
	ctx := context.Background()

	out, err := q.GetTokenizedFile(ctx, "v6.1", "/README")
	require.NoError(t, err)
	assert.Empty(t, out, "fakeVCSScript has no get-file case, so the raw fallback returns empty bytes")
}
