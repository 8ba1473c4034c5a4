package bookkeep

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bootlin/elixir/internal/family"
	"github.com/bootlin/elixir/internal/kvstore"
	"github.com/bootlin/elixir/internal/xrefdata"
)

func openTestKV(t *testing.T) kvstore.KV {
	t.Helper()
	kv, err := kvstore.Open(context.Background(), t.TempDir(), kvstore.CreateOrOpen)
	require.NoError(t, err)
	t.Cleanup(func() { _ = kv.Close() })
	return kv
}

func TestAllocatorAssignsDenseIDs(t *testing.T) {
	kv := openTestKV(t)
	alloc := NewAllocator(kv, 0)

	var firstID, secondID uint32
	require.NoError(t, kv.Update(context.Background(), func(tx kvstore.Tx) error {
		id, isNew, err := alloc.LookupOrAllocate(tx, "hash-a", "main.c")
		require.NoError(t, err)
		assert.True(t, isNew)
		firstID = id

		id2, isNew2, err := alloc.LookupOrAllocate(tx, "hash-b", "sched.c")
		require.NoError(t, err)
		assert.True(t, isNew2)
		secondID = id2

		// Re-inserting the same hash must not allocate a new id.
		id3, isNew3, err := alloc.LookupOrAllocate(tx, "hash-a", "main.c")
		require.NoError(t, err)
		assert.False(t, isNew3)
		assert.Equal(t, firstID, id3)
		return nil
	}))

	assert.Equal(t, uint32(0), firstID)
	assert.Equal(t, uint32(1), secondID)

	require.NoError(t, kv.View(context.Background(), func(tx kvstore.Tx) error {
		h, found, err := Hash(tx, firstID)
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, "hash-a", h)

		id, err := ID(tx, "hash-b")
		require.NoError(t, err)
		assert.Equal(t, secondID, id)

		_, err = ID(tx, "never-seen")
		assert.Error(t, err)
		return nil
	}))
}

func TestTagBarrierWaitBlocksUntilSignaled(t *testing.T) {
	b := NewTagBarrier()
	done := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		b.Wait("v6.1", StageIds)
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Wait returned before Signal")
	case <-time.After(20 * time.Millisecond):
	}

	b.Signal("v6.1", StageIds)
	wg.Wait()
	assert.True(t, b.Done("v6.1", StageIds))
	assert.False(t, b.Done("v6.1", StageVersions))
}

func TestRebuildDefsCache(t *testing.T) {
	kv := openTestKV(t)

	require.NoError(t, kv.Update(context.Background(), func(tx kvstore.Tx) error {
		d := xrefdata.NewDefList()
		d.Append(1, xrefdata.KindFunction, 10, family.C)
		return tx.Bucket(kvstore.BucketDefs).Put([]byte("do_fork"), d.Pack())
	}))

	require.NoError(t, RebuildDefsCache(kv))

	require.NoError(t, kv.View(context.Background(), func(tx kvstore.Tx) error {
		found, err := tx.Bucket(kvstore.DefsCacheBucket('C')).Exists([]byte("do_fork"))
		require.NoError(t, err)
		assert.True(t, found)

		found, err = tx.Bucket(kvstore.DefsCacheBucket('D')).Exists([]byte("do_fork"))
		require.NoError(t, err)
		assert.False(t, found)
		return nil
	}))
}

func TestMetricsRegister(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	m.BlobsIndexed.Inc()
	mf, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, mf)
}
