package pipeline

import "github.com/bootlin/elixir/internal/family"

// tagState carries the per-tag working data handed between stages
// within a single UpdateTag call: which blob ids are new to this tag,
// and the family/path each was classified under. It is never shared
// across concurrent tags — see DESIGN.md for the "stages of tag T+k run
// concurrently with tag T" simplification this pipeline makes.
type tagState struct {
	tag string

	// newIDs are blob ids first allocated while processing this tag
	// (spec §4.4 stage 1 "for each unseen hash"). Defs/Docs/Comps/Refs
	// only process these, never ids already indexed by an earlier tag.
	newIDs []uint32

	// pathByID and familyByID are populated by the Versions stage from
	// the list-blobs -p stream, keyed by blob id.
	pathByID   map[uint32]string
	familyByID map[uint32]family.Family

	// bindingsIDs holds the subset of newIDs whose path falls under the
	// DT-bindings documentation prefix (spec §4.4 stage 2).
	bindingsIDs map[uint32]bool
}

func newTagState(tag string) *tagState {
	return &tagState{
		tag:         tag,
		pathByID:    make(map[uint32]string),
		familyByID:  make(map[uint32]family.Family),
		bindingsIDs: make(map[uint32]bool),
	}
}
