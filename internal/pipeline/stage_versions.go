package pipeline

import (
	"context"
	"fmt"
	"sort"

	"github.com/RoaringBitmap/roaring"

	"github.com/bootlin/elixir/internal/bookkeep"
	"github.com/bootlin/elixir/internal/family"
	"github.com/bootlin/elixir/internal/kvstore"
	"github.com/bootlin/elixir/internal/xrefdata"
)

// runVersions is stage 2 (spec §4.4): single writer, reads list-blobs -p,
// resolves hash->id, sorts by id, writes Vers[tag]. It also records
// which new ids fall under the DT-bindings documentation prefix into
// the tag's bindings set, and populates st.pathByID/familyByID for every
// id the later stages need to classify.
func (p *Pipeline) runVersions(ctx context.Context, st *tagState) error {
	refs, err := p.vcs.ListBlobsByPath(ctx, st.tag)
	if err != nil {
		return err
	}

	newIDSet := make(map[uint32]bool, len(st.newIDs))
	for _, id := range st.newIDs {
		newIDSet[id] = true
	}

	type idPath struct {
		id   uint32
		path string
	}
	entries := make([]idPath, 0, len(refs))

	if err := p.kv.View(ctx, func(tx kvstore.Tx) error {
		for _, ref := range refs {
			if err := stopped(ctx); err != nil {
				return err
			}
			id, err := bookkeep.ID(tx, ref.Hash)
			if err != nil {
				return fmt.Errorf("versions stage: %w", err)
			}
			entries = append(entries, idPath{id: id, path: ref.Name})
		}
		return nil
	}); err != nil {
		return err
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].id < entries[j].id })

	pathList := xrefdata.NewPathList()
	bindings := roaring.New()
	for _, e := range entries {
		pathList.Append(e.id, e.path)
		st.pathByID[e.id] = e.path
		st.familyByID[e.id] = family.ClassifyFilename(basename(e.path))
		if newIDSet[e.id] && family.IsUnderDTBindings(e.path) {
			bindings.Add(e.id)
			st.bindingsIDs[e.id] = true
		}
	}

	return p.kv.Update(ctx, func(tx kvstore.Tx) error {
		if err := tx.Bucket(kvstore.BucketVersions).Put([]byte(st.tag), pathList.Pack()); err != nil {
			return err
		}
		return saveBindings(tx, st.tag, bindings)
	})
}

// basename returns the final path component. family.ClassifyFilename
// never returns family.B (original_source/elixir/lib.py's
// getFileFamily has no such case); a path under the DT-bindings
// documentation prefix is tracked separately in st.bindingsIDs and is
// otherwise classified by basename like any other file — see
// runCompsDocs, which passes family.B to dtscomp.Find as a processing
// mode and records it on the CompsDocs entries it appends; no blob's
// classified family is ever B.
func basename(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[i+1:]
		}
	}
	return path
}
