// Package pipeline implements C5, the five-stage concurrent update
// pipeline of spec §4.4: Ids -> Versions -> Defs -> {Docs, Comps,
// CompsDocs} -> Refs, synchronized per-tag by bookkeep.TagBarrier and
// fanned out across partitioned workers with golang.org/x/sync/errgroup
// — the Go idiomatization of the teacher's staged-sync pipeline
// (eth/stagedsync), generalized from a block-range cursor walk to a
// per-VCS-tag blob walk.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/RoaringBitmap/roaring"

	"github.com/bootlin/elixir/internal/bookkeep"
	"github.com/bootlin/elixir/internal/dtscomp"
	"github.com/bootlin/elixir/internal/family"
	"github.com/bootlin/elixir/internal/kvstore"
	"github.com/bootlin/elixir/internal/logx"
	"github.com/bootlin/elixir/internal/parseadapter"
	"github.com/bootlin/elixir/internal/vcsadapter"
)

// parserTimeout bounds a single parser subprocess invocation (spec §4.4
// failure handling: "A parser timeout (> 10 s) is logged and the blob is
// skipped for that parser only").
const parserTimeout = 10 * time.Second

// Pipeline owns every piece of shared state the five stages coordinate
// through: the KV environment, the VCS/parser adapters, the blob-id
// allocator, the per-tag barrier, and metrics. Each stage's
// read-modify-write traffic against its own posting-list bucket is
// serialized by a stage-local kvstore.CachedBucket, constructed fresh
// inside that stage's Update transaction (spec §5: "a per-map mutex
// serializes the read-modify-write on posting lists" — the CachedBucket
// is now that mutex, plus a write-behind cache in front of it).
type Pipeline struct {
	kv         kvstore.KV
	vcs        *vcsadapter.Adapter
	parse      *parseadapter.Adapter
	alloc      *bookkeep.Allocator
	barrier    *bookkeep.TagBarrier
	metrics    *bookkeep.Metrics
	numWorkers int
	dtsComp    bool
	log        *logx.Logger
}

// Config bundles the construction-time dependencies of a Pipeline.
type Config struct {
	KV         kvstore.KV
	VCS        *vcsadapter.Adapter
	Parse      *parseadapter.Adapter
	Metrics    *bookkeep.Metrics
	NumWorkers int
	DTSComp    bool
}

// New builds a Pipeline ready to process tags in VCS order. The blob-id
// allocator is seeded from BucketVariables[VarNumBlobs] so a restarted
// process resumes dense id allocation exactly where it left off.
func New(ctx context.Context, cfg Config) (*Pipeline, error) {
	seed := uint32(0)
	if err := cfg.KV.View(ctx, func(tx kvstore.Tx) error {
		raw, found, err := tx.Bucket(kvstore.BucketVariables).Get([]byte(kvstore.VarNumBlobs))
		if err != nil || !found {
			return err
		}
		if len(raw) == 4 {
			seed = uint32(raw[0])<<24 | uint32(raw[1])<<16 | uint32(raw[2])<<8 | uint32(raw[3])
		}
		return nil
	}); err != nil {
		return nil, err
	}

	n := cfg.NumWorkers
	if n <= 0 {
		n = 1
	}
	return &Pipeline{
		kv:         cfg.KV,
		vcs:        cfg.VCS,
		parse:      cfg.Parse,
		alloc:      bookkeep.NewAllocator(cfg.KV, seed),
		barrier:    bookkeep.NewTagBarrier(),
		metrics:    cfg.Metrics,
		numWorkers: n,
		dtsComp:    cfg.DTSComp,
		log:        logx.With("component", "pipeline"),
	}, nil
}

// bindingsKey is the BucketVariables key holding tag's serialized
// devicetree-bindings blob-id set (spec §4.4 stage 2: "records ... into
// a per-tag bindings set").
func bindingsKey(tag string) []byte { return []byte("bindings:" + tag) }

func loadBindings(tx kvstore.Tx, tag string) (*roaring.Bitmap, error) {
	raw, found, err := tx.Bucket(kvstore.BucketVariables).Get(bindingsKey(tag))
	if err != nil {
		return nil, err
	}
	bm := roaring.New()
	if found {
		if _, err := bm.FromBuffer(raw); err != nil {
			return nil, err
		}
	}
	return bm, nil
}

func saveBindings(tx kvstore.Tx, tag string, bm *roaring.Bitmap) error {
	raw, err := bm.ToBytes()
	if err != nil {
		return err
	}
	return tx.Bucket(kvstore.BucketVariables).Put(bindingsKey(tag), raw)
}

// UpdateTag runs every stage for tag, in barrier order, then signals the
// pipeline's done metric. It is idempotent at the top level: if
// Versions already completed for tag, UpdateTag returns immediately
// (spec §4.4: "re-running update on an already-indexed tag ... should
// be skipped at the top level by testing Vers[T] existence").
func (p *Pipeline) UpdateTag(ctx context.Context, tag string) error {
	alreadyDone, err := p.versionsExists(ctx, tag)
	if err != nil {
		return fmt.Errorf("checking existing versions for tag %q: %w", tag, err)
	}
	if alreadyDone {
		p.log.Info("tag already indexed, skipping", "tag", tag)
		return nil
	}

	p.log.Info("indexing tag", "tag", tag)
	st := newTagState(tag)

	if err := p.runIds(ctx, st); err != nil {
		return fmt.Errorf("ids stage for tag %q: %w", tag, err)
	}
	p.barrier.Signal(tag, bookkeep.StageIds)

	if err := p.runVersions(ctx, st); err != nil {
		return fmt.Errorf("versions stage for tag %q: %w", tag, err)
	}
	p.barrier.Signal(tag, bookkeep.StageVersions)

	if err := p.runDefs(ctx, st); err != nil {
		return fmt.Errorf("defs stage for tag %q: %w", tag, err)
	}
	p.barrier.Signal(tag, bookkeep.StageDefs)

	if err := p.runDocs(ctx, st); err != nil {
		return fmt.Errorf("docs stage for tag %q: %w", tag, err)
	}
	p.barrier.Signal(tag, bookkeep.StageDocs)

	if p.dtsComp {
		if err := p.runComps(ctx, st); err != nil {
			return fmt.Errorf("comps stage for tag %q: %w", tag, err)
		}
		p.barrier.Signal(tag, bookkeep.StageComps)

		if err := p.runCompsDocs(ctx, st); err != nil {
			return fmt.Errorf("comps-docs stage for tag %q: %w", tag, err)
		}
		p.barrier.Signal(tag, bookkeep.StageCompsDocs)
	}

	if err := p.runRefs(ctx, st); err != nil {
		return fmt.Errorf("refs stage for tag %q: %w", tag, err)
	}
	p.barrier.Signal(tag, bookkeep.StageRefs)

	if p.metrics != nil {
		p.metrics.TagsIndexed.Inc()
	}
	p.log.Info("finished indexing tag", "tag", tag)
	return nil
}

func (p *Pipeline) versionsExists(ctx context.Context, tag string) (bool, error) {
	var exists bool
	err := p.kv.View(ctx, func(tx kvstore.Tx) error {
		_, found, err := tx.Bucket(kvstore.BucketVersions).Get([]byte(tag))
		exists = found
		return err
	})
	return exists, err
}

// extractCompatibles runs dtscomp.Find over a blob's content for the
// families Comps/CompsDocs care about (spec §4.4 note: "Comps ...
// skipping families K,M and None").
func extractCompatibles(content []byte, fam family.Family) ([]dtscomp.Match, error) {
	return dtscomp.Find(content, fam)
}
