package kvstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bootlin/elixir/internal/xrerrors"
)

func openTestKV(t *testing.T) KV {
	t.Helper()
	dir := t.TempDir()
	kv, err := Open(context.Background(), dir, CreateOrOpen)
	require.NoError(t, err)
	t.Cleanup(func() { _ = kv.Close() })
	return kv
}

func TestPutGetRoundTrip(t *testing.T) {
	kv := openTestKV(t)
	ctx := context.Background()

	require.NoError(t, kv.Update(ctx, func(tx Tx) error {
		return tx.Bucket(BucketBlobs).Put([]byte("deadbeef"), []byte{0, 0, 0, 7})
	}))

	require.NoError(t, kv.View(ctx, func(tx Tx) error {
		v, found, err := tx.Bucket(BucketBlobs).Get([]byte("deadbeef"))
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, []byte{0, 0, 0, 7}, v)

		_, found, err = tx.Bucket(BucketBlobs).Get([]byte("missing"))
		require.NoError(t, err)
		assert.False(t, found)
		return nil
	}))
}

func TestCursorSeekRangeOrdering(t *testing.T) {
	kv := openTestKV(t)
	ctx := context.Background()

	keys := []string{"apple", "apricot", "banana", "cherry"}
	require.NoError(t, kv.Update(ctx, func(tx Tx) error {
		b := tx.Bucket(BucketFilenames)
		for _, k := range keys {
			if err := b.Put([]byte(k), []byte("v")); err != nil {
				return err
			}
		}
		return nil
	}))

	require.NoError(t, kv.View(ctx, func(tx Tx) error {
		cur, err := tx.Bucket(BucketFilenames).Cursor()
		require.NoError(t, err)
		defer cur.Close()

		k, _, ok, err := cur.SeekRange([]byte("ap"))
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "apple", string(k))

		var got []string
		for ; ok; k, _, ok, err = cur.Next() {
			require.NoError(t, err)
			if len(k) < 2 || string(k[:2]) != "ap" {
				break
			}
			got = append(got, string(k))
		}
		assert.Equal(t, []string{"apple", "apricot"}, got)
		return nil
	}))
}

func TestUnknownBucketIsConfigurationError(t *testing.T) {
	kv := openTestKV(t)
	ctx := context.Background()
	err := kv.View(ctx, func(tx Tx) error {
		_, _, err := tx.Bucket("not-a-real-bucket").Get([]byte("x"))
		return err
	})
	assert.ErrorIs(t, err, xrerrors.ErrConfiguration)
}

func TestMigratorSkipsAlreadyApplied(t *testing.T) {
	kv := openTestKV(t)
	ctx := context.Background()

	calls := 0
	m := &Migrator{Migrations: []Migration{{
		Name: "count-calls",
		Up: func(ctx context.Context, kv KV) error {
			calls++
			return nil
		},
	}}}

	require.NoError(t, m.Apply(ctx, kv))
	require.NoError(t, m.Apply(ctx, kv))
	assert.Equal(t, 1, calls)
}

func TestCachedBucketWriteBehind(t *testing.T) {
	kv := openTestKV(t)
	ctx := context.Background()

	require.NoError(t, kv.Update(ctx, func(tx Tx) error {
		cb := NewCachedBucket(tx.Bucket(BucketDefs),
			2,
			func(b []byte) (string, error) { return string(b), nil },
			func(s string) []byte { return []byte(s) },
		)
		cb.Put([]byte("k1"), "v1")
		cb.Put([]byte("k2"), "v2")
		// Third insert evicts the least-recently-used entry (k1), which
		// must write back immediately.
		cb.Put([]byte("k3"), "v3")

		v, found, err := tx.Bucket(BucketDefs).Get([]byte("k1"))
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, "v1", string(v))

		cb.Sync()
		v, found, err = tx.Bucket(BucketDefs).Get([]byte("k3"))
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, "v3", string(v))
		return nil
	}))
}
