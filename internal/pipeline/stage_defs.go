package pipeline

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/bootlin/elixir/internal/bookkeep"
	"github.com/bootlin/elixir/internal/family"
	"github.com/bootlin/elixir/internal/kvstore"
	"github.com/bootlin/elixir/internal/parseadapter"
	"github.com/bootlin/elixir/internal/xrefdata"
)

// runDefs is stage 3 (spec §4.4): partitioned across N workers, each
// owning `index mod N` of this tag's new ids. For each new id whose
// family is neither None nor M, runs the ctags-style definition parser,
// filters by the identifier acceptance rule, and appends to Defs[ident]
// through a write-behind kvstore.CachedBucket (spec §4.1's cached bucket
// variant — the same identifier is appended to repeatedly across a
// tag's many blobs, so decoding/encoding its DefList once per burst
// instead of once per blob matters).
func (p *Pipeline) runDefs(ctx context.Context, st *tagState) error {
	candidates := make([]uint32, 0, len(st.newIDs))
	for _, id := range st.newIDs {
		f := st.familyByID[id]
		if f != family.None && f != family.M {
			candidates = append(candidates, id)
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	return p.kv.Update(ctx, func(tx kvstore.Tx) error {
		cache := kvstore.NewCachedBucket(tx.Bucket(kvstore.BucketDefs), cachedBucketSize,
			xrefdata.ParseDefList, (*xrefdata.DefList).Pack)

		g, gctx := errgroup.WithContext(ctx)
		for w := 0; w < p.numWorkers; w++ {
			w := w
			g.Go(func() error {
				for i := w; i < len(candidates); i += p.numWorkers {
					if err := stopped(gctx); err != nil {
						return err
					}
					if err := p.defsForOne(gctx, tx, cache, st, candidates[i]); err != nil {
						return err
					}
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
		cache.Sync()
		return nil
	})
}

func (p *Pipeline) defsForOne(ctx context.Context, tx kvstore.Tx, cache *kvstore.CachedBucket[*xrefdata.DefList], st *tagState, id uint32) error {
	hash, found, err := bookkeep.Hash(tx, id)
	if err != nil || !found {
		return err
	}
	fam := st.familyByID[id]
	path := st.pathByID[id]

	tctx, cancel := context.WithTimeout(ctx, parserTimeout)
	defs, err := p.parse.ParseDefs(tctx, hash, path, fam)
	cancel()
	if err != nil {
		if tctx.Err() == context.DeadlineExceeded {
			if p.metrics != nil {
				p.metrics.ParserTimeouts.Inc()
			}
			p.log.Warn("parse-defs timed out, skipping blob", "tag", st.tag, "blob", hash, "path", path)
		} else {
			p.log.Warn("parse-defs failed, skipping blob", "tag", st.tag, "blob", hash, "path", path, "err", err)
		}
		return nil
	}

	for _, d := range defs {
		if !xrefdata.AcceptIdentifier(d.Ident) {
			continue
		}
		key := storageKey(d.Ident, fam)
		if err := appendDef(cache, key, id, d, fam); err != nil {
			return err
		}
	}
	return nil
}

// storageKey applies the Kconfig CONFIG_ prefix convention (spec §3:
// "Kconfig symbols are stored with the prefix CONFIG_").
func storageKey(ident string, fam family.Family) string {
	return family.LookupPrefix(fam) + ident
}

func appendDef(cache *kvstore.CachedBucket[*xrefdata.DefList], key string, id uint32, d parseadapter.Def, fam family.Family) error {
	list, err := cache.GetOrNew([]byte(key), xrefdata.NewDefList)
	if err != nil {
		return err
	}
	list.Append(id, d.Kind, d.Line, fam)
	cache.Put([]byte(key), list)
	return nil
}
