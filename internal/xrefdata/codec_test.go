package xrefdata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bootlin/elixir/internal/family"
)

func TestDefListRoundTrip(t *testing.T) {
	d := NewDefList()
	d.Append(30, KindFunction, 12, family.C)
	d.Append(5, KindMacro, 8, family.K)
	d.Append(17, KindUnknownSkipped(), 1, family.C) // unknown kind, discarded

	got, err := ParseDefList(d.Pack())
	require.NoError(t, err)
	assert.Equal(t, d.Len(), got.Len())
	assert.Equal(t, d.Families(), got.Families())

	entries := got.Iter(false)
	require.Len(t, entries, 2)
	assert.Equal(t, uint32(5), entries[0].BlobID)
	assert.Equal(t, uint32(30), entries[1].BlobID)

	withSentinel := got.Iter(true)
	require.Len(t, withSentinel, 3)
	last := withSentinel[len(withSentinel)-1]
	assert.True(t, last.Sentinel)
	assert.Equal(t, SentinelBlobID, last.BlobID)
}

func TestDefListMacros(t *testing.T) {
	d := NewDefList()
	d.Append(1, KindMacro, 1, family.C)
	d.Append(2, KindFunction, 2, family.C)
	macros := d.Macros()
	assert.True(t, macros[family.C])
	assert.Len(t, macros, 1)
}

func TestEmptyDefListPack(t *testing.T) {
	d := NewDefList()
	got, err := ParseDefList(d.Pack())
	require.NoError(t, err)
	assert.Equal(t, 0, got.Len())
}

func TestPathListRoundTrip(t *testing.T) {
	p := NewPathList()
	p.Append(1, "/init/main.c")
	p.Append(2, "/kernel/sched.c")

	got, err := ParsePathList(p.Pack())
	require.NoError(t, err)
	entries := got.Iter(false)
	require.Len(t, entries, 2)
	assert.Equal(t, "/init/main.c", entries[0].Path)
	assert.Equal(t, "/kernel/sched.c", entries[1].Path)

	withSentinel := got.Iter(true)
	assert.True(t, withSentinel[len(withSentinel)-1].Sentinel)
}

func TestRefListRoundTripAndOrdering(t *testing.T) {
	r := NewRefList()
	r.Append(42, JoinLines([]int{3, 7, 19}), family.C)
	r.Append(1, JoinLines([]int{1}), family.K)

	got, err := ParseRefList(r.Pack())
	require.NoError(t, err)
	entries := got.Iter(false)
	require.Len(t, entries, 2)
	assert.Equal(t, uint32(1), entries[0].BlobID)
	assert.Equal(t, uint32(42), entries[1].BlobID)

	lines, err := entries[1].LineNumbers()
	require.NoError(t, err)
	assert.Equal(t, []int{3, 7, 19}, lines)
}

func TestParseCorruptInput(t *testing.T) {
	_, err := ParseDefList([]byte{9, 1, 2, 3})
	assert.Error(t, err)

	_, err = ParsePathList([]byte{1, 0xFF})
	assert.Error(t, err)

	_, err = ParseRefList([]byte{1, 5})
	assert.Error(t, err)
}

// KindUnknownSkipped returns a Kind value deliberately absent from
// kindNames, exercising DefList.Append's "unrecognized kind" discard
// path (mirrors data.py DefList.append's early return).
func KindUnknownSkipped() Kind { return Kind('?') }
