package pipeline

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/bootlin/elixir/internal/bookkeep"
	"github.com/bootlin/elixir/internal/dtscomp"
	"github.com/bootlin/elixir/internal/family"
	"github.com/bootlin/elixir/internal/kvstore"
	"github.com/bootlin/elixir/internal/xrefdata"
)

// cachedBucketSize bounds each stage's write-behind CachedBucket (spec
// §4.1's cached bucket variant): large enough that the handful of
// high-frequency identifiers touched across a tag's whole blob set stay
// resident for the run, without holding every distinct key's decoded
// RefList/DefList in memory at once.
const cachedBucketSize = 4096

// runDocs is the Docs half of stage 4 (spec §4.4): partitioned workers,
// dependent only on Ids(T). Unclassified (family None) blobs are
// skipped — doc-comments are never meaningful outside a recognized
// source family, a restriction the spec text leaves implicit (see
// DESIGN.md).
func (p *Pipeline) runDocs(ctx context.Context, st *tagState) error {
	candidates := make([]uint32, 0, len(st.newIDs))
	for _, id := range st.newIDs {
		if st.familyByID[id] != family.None {
			candidates = append(candidates, id)
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	return p.kv.Update(ctx, func(tx kvstore.Tx) error {
		cache := kvstore.NewCachedBucket(tx.Bucket(kvstore.BucketDocs), cachedBucketSize,
			xrefdata.ParseRefList, (*xrefdata.RefList).Pack)

		g, gctx := errgroup.WithContext(ctx)
		for w := 0; w < p.numWorkers; w++ {
			w := w
			g.Go(func() error {
				for i := w; i < len(candidates); i += p.numWorkers {
					if err := stopped(gctx); err != nil {
						return err
					}
					if err := p.docsForOne(gctx, tx, cache, st, candidates[i]); err != nil {
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

func (p *Pipeline) docsForOne(ctx context.Context, tx kvstore.Tx, cache *kvstore.CachedBucket[*xrefdata.RefList], st *tagState, id uint32) error {
	hash, found, err := bookkeep.Hash(tx, id)
	if err != nil || !found {
		return err
	}
	path := st.pathByID[id]

	tctx, cancel := context.WithTimeout(ctx, parserTimeout)
	docs, err := p.parse.ParseDocs(tctx, hash, path)
	cancel()
	if err != nil {
		if tctx.Err() == context.DeadlineExceeded {
			if p.metrics != nil {
				p.metrics.ParserTimeouts.Inc()
			}
			p.log.Warn("parse-docs timed out, skipping blob", "tag", st.tag, "blob", hash, "path", path)
		} else {
			p.log.Warn("parse-docs failed, skipping blob", "tag", st.tag, "blob", hash, "path", path, "err", err)
		}
		return nil
	}

	fam := st.familyByID[id]
	for _, d := range docs {
		if !xrefdata.AcceptIdentifier(d.Ident) {
			continue
		}
		key := storageKey(d.Ident, fam)
		if err := appendRefLike(cache, key, id, xrefdata.JoinLines([]int{int(d.Line)}), fam); err != nil {
			return err
		}
	}
	return nil
}

// runComps indexes devicetree "compatible" strings out of C and DTS
// blobs (spec §4.4: "Comps after Ids(T), skipping families K,M and
// None"). D and C are the only families dtscomp.Find supports besides
// B, so this stage is naturally restricted to them.
func (p *Pipeline) runComps(ctx context.Context, st *tagState) error {
	candidates := make([]uint32, 0, len(st.newIDs))
	for _, id := range st.newIDs {
		f := st.familyByID[id]
		if f == family.C || f == family.D {
			candidates = append(candidates, id)
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	return p.kv.Update(ctx, func(tx kvstore.Tx) error {
		cache := kvstore.NewCachedBucket(tx.Bucket(kvstore.BucketComps), cachedBucketSize,
			xrefdata.ParseRefList, (*xrefdata.RefList).Pack)

		g, gctx := errgroup.WithContext(ctx)
		for w := 0; w < p.numWorkers; w++ {
			w := w
			g.Go(func() error {
				for i := w; i < len(candidates); i += p.numWorkers {
					if err := stopped(gctx); err != nil {
						return err
					}
					if err := p.compsForOne(gctx, tx, cache, st, candidates[i]); err != nil {
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

func (p *Pipeline) compsForOne(ctx context.Context, tx kvstore.Tx, cache *kvstore.CachedBucket[*xrefdata.RefList], st *tagState, id uint32) error {
	hash, found, err := bookkeep.Hash(tx, id)
	if err != nil || !found {
		return err
	}
	content, err := p.vcs.GetBlob(ctx, hash)
	if err != nil {
		return err
	}
	fam := st.familyByID[id]
	matches, err := extractCompatibles(content, fam)
	if err != nil {
		return err
	}
	linesByIdent := groupByIdent(matches)
	for ident, lines := range linesByIdent {
		if err := appendRefLike(cache, ident, id, xrefdata.JoinLines(lines), fam); err != nil {
			return err
		}
	}
	return nil
}

// runCompsDocs indexes the devicetree-bindings documentation half of
// compatible-string discovery, restricted to this tag's bindings set
// and only appending when the compatible string is already known to
// Comps (spec §4.4 stage 4 final clause). It depends on Ids(T), Comps(T)
// and Versions(T).
func (p *Pipeline) runCompsDocs(ctx context.Context, st *tagState) error {
	if len(st.bindingsIDs) == 0 {
		return nil
	}
	ids := make([]uint32, 0, len(st.bindingsIDs))
	for id := range st.bindingsIDs {
		ids = append(ids, id)
	}

	return p.kv.Update(ctx, func(tx kvstore.Tx) error {
		cache := kvstore.NewCachedBucket(tx.Bucket(kvstore.BucketCompsDocs), cachedBucketSize,
			xrefdata.ParseRefList, (*xrefdata.RefList).Pack)

		g, gctx := errgroup.WithContext(ctx)
		for w := 0; w < p.numWorkers; w++ {
			w := w
			g.Go(func() error {
				for i := w; i < len(ids); i += p.numWorkers {
					if err := stopped(gctx); err != nil {
						return err
					}
					if err := p.compsDocsForOne(gctx, tx, cache, ids[i]); err != nil {
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

func (p *Pipeline) compsDocsForOne(ctx context.Context, tx kvstore.Tx, cache *kvstore.CachedBucket[*xrefdata.RefList], id uint32) error {
	hash, found, err := bookkeep.Hash(tx, id)
	if err != nil || !found {
		return err
	}
	content, err := p.vcs.GetBlob(ctx, hash)
	if err != nil {
		return err
	}
	matches, err := dtscomp.Find(content, family.B)
	if err != nil {
		return err
	}
	linesByIdent := groupByIdent(matches)
	for ident, lines := range linesByIdent {
		known, err := tx.Bucket(kvstore.BucketComps).Exists([]byte(ident))
		if err != nil {
			return err
		}
		if !known {
			continue
		}
		if err := appendRefLike(cache, ident, id, xrefdata.JoinLines(lines), family.B); err != nil {
			return err
		}
	}
	return nil
}

func groupByIdent(matches []dtscomp.Match) map[string][]int {
	out := make(map[string][]int)
	for _, m := range matches {
		out[m.Ident] = append(out[m.Ident], m.Line)
	}
	return out
}

// appendRefLike is the shared read-modify-write sequence for the
// RefList-shaped buckets (Docs, Comps, CompsDocs, Refs), backed by a
// stage-local kvstore.CachedBucket whose own lock is the "per-map
// mutex" spec §5 describes serializing posting-list updates.
func appendRefLike(cache *kvstore.CachedBucket[*xrefdata.RefList], key string, id uint32, lines string, fam family.Family) error {
	list, err := cache.GetOrNew([]byte(key), xrefdata.NewRefList)
	if err != nil {
		return err
	}
	list.Append(id, lines, fam)
	cache.Put([]byte(key), list)
	return nil
}
