package pipeline

import (
	"context"
	"time"

	"github.com/bootlin/elixir/internal/kvstore"
)

// runIds is stage 1 (spec §4.4): single writer, reads the list-blobs -f
// stream and assigns a fresh dense blob id to every unseen hash.
func (p *Pipeline) runIds(ctx context.Context, st *tagState) error {
	refs, err := p.vcs.ListBlobsByFilename(ctx, st.tag)
	if err != nil {
		return err
	}

	progress := NewProgressLogger("ids", 30*time.Second, func() int { return len(st.newIDs) })
	defer progress.Stop()

	return p.kv.Update(ctx, func(tx kvstore.Tx) error {
		for _, ref := range refs {
			if err := stopped(ctx); err != nil {
				return err
			}
			id, isNew, err := p.alloc.LookupOrAllocate(tx, ref.Hash, ref.Name)
			if err != nil {
				return err
			}
			if isNew {
				st.newIDs = append(st.newIDs, id)
				if p.metrics != nil {
					p.metrics.BlobsIndexed.Inc()
				}
			}
		}
		return nil
	})
}
