package pipeline

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/bootlin/elixir/internal/bookkeep"
	"github.com/bootlin/elixir/internal/family"
	"github.com/bootlin/elixir/internal/kvstore"
	"github.com/bootlin/elixir/internal/xrefdata"
)

// runRefs is stage 5 (spec §4.4): partitioned workers, after Defs(T).
// For each new id with a recognized family, tokenizes the blob and for
// every token that already exists in Defs (the acceptance oracle
// enforcing invariant 6) appends (id, line-list, family) to
// Refs[ident].
func (p *Pipeline) runRefs(ctx context.Context, st *tagState) error {
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
		cache := kvstore.NewCachedBucket(tx.Bucket(kvstore.BucketRefs), cachedBucketSize,
			xrefdata.ParseRefList, (*xrefdata.RefList).Pack)

		g, gctx := errgroup.WithContext(ctx)
		for w := 0; w < p.numWorkers; w++ {
			w := w
			g.Go(func() error {
				for i := w; i < len(candidates); i += p.numWorkers {
					if err := stopped(gctx); err != nil {
						return err
					}
					if err := p.refsForOne(gctx, tx, cache, st, candidates[i]); err != nil {
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

func (p *Pipeline) refsForOne(ctx context.Context, tx kvstore.Tx, cache *kvstore.CachedBucket[*xrefdata.RefList], st *tagState, id uint32) error {
	hash, found, err := bookkeep.Hash(tx, id)
	if err != nil || !found {
		return err
	}
	fam := st.familyByID[id]
	path := st.pathByID[id]

	tctx, cancel := context.WithTimeout(ctx, parserTimeout)
	tokens, err := p.parse.TokenizeFile(tctx, hash, fam, false)
	cancel()
	if err != nil {
		if tctx.Err() == context.DeadlineExceeded {
			if p.metrics != nil {
				p.metrics.ParserTimeouts.Inc()
			}
			p.log.Warn("tokenize-file timed out, skipping blob", "tag", st.tag, "blob", hash, "path", path)
		} else {
			p.log.Warn("tokenize-file failed, skipping blob", "tag", st.tag, "blob", hash, "path", path, "err", err)
		}
		return nil
	}

	defsBucket := tx.Bucket(kvstore.BucketDefs)
	linesByKey := make(map[string][]int)
	line := 1
	for _, tok := range tokens {
		if !tok.IsIdent {
			line += strings.Count(tok.Text, "\n")
			continue
		}
		if !xrefdata.AcceptIdentifier(tok.Text) {
			continue
		}
		// In Makefiles, only tokens that already look like Kconfig
		// symbol references are indexed; every other Makefile token is
		// discarded even though the family isn't None (original_source/
		// update.py get_refs).
		if fam == family.M && !strings.HasPrefix(tok.Text, family.KconfigPrefix) {
			continue
		}
		key := storageKey(tok.Text, fam)
		known, err := defsBucket.Exists([]byte(key))
		if err != nil {
			return err
		}
		if !known {
			continue
		}
		if dup, err := definedAtLine(defsBucket, key, id, line); err != nil {
			return err
		} else if dup {
			continue
		}
		linesByKey[key] = append(linesByKey[key], line)
	}

	for key, lines := range linesByKey {
		if err := appendRefLike(cache, key, id, xrefdata.JoinLines(lines), fam); err != nil {
			return err
		}
	}
	return nil
}

// definedAtLine reports whether ident already has a definition record at
// exactly (id, line) — a reference is never recorded at the same
// blob+line as a definition of the same identifier (original_source/
// update.py deflist_exists/add_refs).
func definedAtLine(defsBucket kvstore.Bucket, key string, id uint32, line int) (bool, error) {
	raw, found, err := defsBucket.Get([]byte(key))
	if err != nil || !found {
		return false, err
	}
	defList, err := xrefdata.ParseDefList(raw)
	if err != nil {
		return false, err
	}
	for _, e := range defList.Iter(false) {
		if e.BlobID == id && int(e.Line) == line {
			return true, nil
		}
	}
	return false, nil
}
