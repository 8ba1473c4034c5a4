// Package bookkeep implements C8, the cross-cutting bookkeeping state of
// the update pipeline: the dense blob-id allocator, the Defs-cache
// derivation pass, per-tag readiness signaling, and Prometheus counters.
// Grounded on the teacher's single-mutex-protected allocation pattern
// (eth/stagedsync stage barriers use a comparable "one stage publishes,
// the next waits" shape) and on its declared-but-lightly-used
// prometheus/client_golang dependency, which this package is the first
// direct consumer of.
package bookkeep

import (
	"fmt"
	"sync"

	"github.com/bootlin/elixir/internal/kvstore"
	"github.com/bootlin/elixir/internal/logx"
	"github.com/bootlin/elixir/internal/xrerrors"
)

// Allocator assigns dense, monotonically increasing 32-bit blob ids
// (spec §3 invariant 1/2: "blob ids are dense and monotonic") and
// maintains the Blob[hash]=id / Hash[id]=hash / File[id]=basename triple
// under a single mutex held only during the insertion of one new id
// (spec §5).
type Allocator struct {
	mu    sync.Mutex
	kv    kvstore.KV
	next  uint32
	log   *logx.Logger
}

// NewAllocator seeds the allocator's next-id counter with seed; the
// caller reads it from BucketVariables[VarNumBlobs] (0 on a fresh
// environment).
func NewAllocator(kv kvstore.KV, seed uint32) *Allocator {
	return &Allocator{kv: kv, next: seed, log: logx.With("component", "bookkeep.allocator")}
}

// LookupOrAllocate returns the existing id for hash, or allocates a
// fresh one and records the Blob/Hash/File triple (spec §4.4 stage 1:
// "for each unseen hash assigns a fresh blob-id and writes Blob[hash]=id,
// Hash[id]=hash, File[id]=basename").
func (a *Allocator) LookupOrAllocate(tx kvstore.Tx, hash, basename string) (id uint32, isNew bool, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	blobs := tx.Bucket(kvstore.BucketBlobs)
	if raw, found, err := blobs.Get([]byte(hash)); err != nil {
		return 0, false, err
	} else if found {
		return decodeID(raw), false, nil
	}

	id = a.next
	a.next++

	if err := blobs.Put([]byte(hash), encodeID(id)); err != nil {
		return 0, false, err
	}
	if err := tx.Bucket(kvstore.BucketHashes).Put(encodeID(id), []byte(hash)); err != nil {
		return 0, false, err
	}
	if err := tx.Bucket(kvstore.BucketFilenames).Put(encodeID(id), []byte(basename)); err != nil {
		return 0, false, err
	}
	if err := tx.Bucket(kvstore.BucketVariables).Put([]byte(kvstore.VarNumBlobs), encodeID(a.next)); err != nil {
		return 0, false, err
	}
	return id, true, nil
}

// Hash resolves a blob id back to its hash (spec §4.4 stage 2: "resolves
// hash->id (all hashes are known after Ids)").
func Hash(tx kvstore.Tx, id uint32) (string, bool, error) {
	raw, found, err := tx.Bucket(kvstore.BucketHashes).Get(encodeID(id))
	if err != nil || !found {
		return "", found, err
	}
	return string(raw), true, nil
}

// ID resolves a hash to its previously allocated blob id. A miss here
// during the Versions stage is a fatal bug per spec §4.4: "A lookup miss
// on Blob[hash] during Versions is a fatal bug (Ids must run first) —
// abort the tag."
func ID(tx kvstore.Tx, hash string) (uint32, error) {
	raw, found, err := tx.Bucket(kvstore.BucketBlobs).Get([]byte(hash))
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, fmt.Errorf("%w: blob hash %q has no id (Ids stage must run before Versions)", xrerrors.ErrCorruption, hash)
	}
	return decodeID(raw), nil
}

func encodeID(id uint32) []byte {
	return []byte{byte(id >> 24), byte(id >> 16), byte(id >> 8), byte(id)}
}

func decodeID(b []byte) uint32 {
	if len(b) != 4 {
		return 0
	}
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}
