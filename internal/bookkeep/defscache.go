package bookkeep

import (
	"context"
	"fmt"

	"github.com/bootlin/elixir/internal/family"
	"github.com/bootlin/elixir/internal/kvstore"
	"github.com/bootlin/elixir/internal/logx"
	"github.com/bootlin/elixir/internal/xrefdata"
)

// clearBucket deletes every key currently in b, used to make Defs-cache
// rebuilds idempotent (a re-run starts from an empty cache rather than
// accumulating stale entries from identifiers that have since lost their
// qualifying family).
func clearBucket(b kvstore.Bucket) error {
	cur, err := b.Cursor()
	if err != nil {
		return err
	}
	defer cur.Close()

	var keys [][]byte
	for k, _, ok, err := cur.First(); ; k, _, ok, err = cur.Next() {
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		keys = append(keys, append([]byte(nil), k...))
	}
	for _, k := range keys {
		if err := b.Delete(k); err != nil {
			return err
		}
	}
	return nil
}

// RebuildDefsCache implements spec §4.4's "Defs-cache derivation": after
// all tags finish, rebuild DefsCache[F] for F in {C,K,D,M} by iterating
// every key of Defs and inserting F if the per-key families/macros
// satisfy C7 (family.SatisfiesCache).
func RebuildDefsCache(kv kvstore.KV) error {
	log := logx.With("component", "bookkeep.defscache")

	return kv.Update(context.Background(), func(tx kvstore.Tx) error {
		for _, f := range family.CachedFamilies {
			if err := clearBucket(tx.Bucket(kvstore.DefsCacheBucket(byte(f)))); err != nil {
				return fmt.Errorf("clearing defs-cache bucket %c: %w", f, err)
			}
		}

		cur, err := tx.Bucket(kvstore.BucketDefs).Cursor()
		if err != nil {
			return err
		}
		defer cur.Close()

		count := 0
		for k, v, ok, err := cur.First(); ; k, v, ok, err = cur.Next() {
			if err != nil {
				return err
			}
			if !ok {
				break
			}
			defList, err := xrefdata.ParseDefList(v)
			if err != nil {
				return fmt.Errorf("parsing DefList for %q: %w", k, err)
			}
			macros := defList.Macros()
			for _, f := range family.CachedFamilies {
				if family.SatisfiesCache(f, defList.Families(), macros) {
					if err := tx.Bucket(kvstore.DefsCacheBucket(byte(f))).Put(k, []byte{1}); err != nil {
						return err
					}
				}
			}
			count++
		}
		log.Info("defs-cache rebuilt", "identifiers", count)
		return nil
	})
}
