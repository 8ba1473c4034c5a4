package bookkeep

import "sync"

// Stage names the seven per-tag completion events of spec §4.4/§5:
// "Per-tag completion events (Ids(T), Versions(T), Defs(T), Comps(T))
// are the only cross-stage synchronization primitives."
type Stage string

const (
	StageIds        Stage = "ids"
	StageVersions   Stage = "versions"
	StageDefs       Stage = "defs"
	StageDocs       Stage = "docs"
	StageComps      Stage = "comps"
	StageCompsDocs  Stage = "comps_docs"
	StageRefs       Stage = "refs"
)

// TagBarrier announces per-(tag, stage) completion events to whichever
// workers are waiting for them — the Go rendering of spec §5's condition
// variable: "a condition variable announces 'next tag ready' to workers
// waiting at the tail of the tag queue."
type TagBarrier struct {
	mu   sync.Mutex
	cond *sync.Cond
	done map[string]bool
}

func NewTagBarrier() *TagBarrier {
	b := &TagBarrier{done: make(map[string]bool)}
	b.cond = sync.NewCond(&b.mu)
	return b
}

func key(tag string, stage Stage) string { return string(stage) + "\x00" + tag }

// Signal marks (tag, stage) complete and wakes every goroutine blocked
// in Wait.
func (b *TagBarrier) Signal(tag string, stage Stage) {
	b.mu.Lock()
	b.done[key(tag, stage)] = true
	b.mu.Unlock()
	b.cond.Broadcast()
}

// Wait blocks until every stage in deps has been Signal-ed for tag. It
// is the barrier a later stage's worker sits on before starting its
// partition's slice of tag (spec §4.4: "Waits on Ids(T); emits
// Versions(T)", etc.).
func (b *TagBarrier) Wait(tag string, deps ...Stage) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for !b.allDone(tag, deps) {
		b.cond.Wait()
	}
}

func (b *TagBarrier) allDone(tag string, deps []Stage) bool {
	for _, d := range deps {
		if !b.done[key(tag, d)] {
			return false
		}
	}
	return true
}

// Done reports whether (tag, stage) has already completed, without
// blocking. It reflects only this barrier's in-memory events; the
// pipeline's top-level idempotence check reads Vers[T] from the store
// instead.
func (b *TagBarrier) Done(tag string, stage Stage) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.done[key(tag, stage)]
}
