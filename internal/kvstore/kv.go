// Package kvstore implements the C3 key-value store of spec §4.1: an
// ordered byte-key persistent map abstraction with prefix cursors,
// multi-reader/single-writer semantics, and an optional write-behind LRU
// cache variant. The interfaces below are the Go idiomatization of the
// teacher's KV/Tx/Bucket split (common/dbutils bucket naming,
// ethdb.ObjectDatabase's get/put/walk shape); the concrete backend is
// github.com/ledgerwatch/lmdb-go, one environment with many named DBIs
// rather than one OS file per map (spec §6's ".db" names become DBI
// names within a single environment directory).
package kvstore

import "context"

// Mode selects how a store is opened (spec §4.1: "open(path, mode ∈
// {ReadOnly, CreateOrOpen}, flags)").
type Mode int

const (
	ReadOnly Mode = iota
	CreateOrOpen
)

// KV is a handle to the whole environment: every named bucket the
// caller asked for at open time lives inside it. Exactly one Update
// transaction may be in flight at a time; any number of concurrent View
// transactions are allowed (spec §4.1 "thread-shared read" / §5 "single
// writer per map").
type KV interface {
	// View runs fn inside a read-only transaction. The transaction and
	// every cursor opened from it become invalid once fn returns.
	View(ctx context.Context, fn func(tx Tx) error) error
	// Update runs fn inside the sole read-write transaction; it blocks
	// until any other in-flight Update completes.
	Update(ctx context.Context, fn func(tx Tx) error) error
	// Sync flushes pending writes to stable storage.
	Sync() error
	// Close releases the environment. A Close while readers/writers are
	// active is a programmer error, matching the teacher's Close
	// contract.
	Close() error
}

// Tx is a transaction scoped to one or more named buckets.
type Tx interface {
	// Bucket returns a handle used for single-key operations and cursor
	// creation. Bucket never fails; operations on an unknown name return
	// an error framed with xrerrors.ErrConfiguration.
	Bucket(name string) Bucket
}

// Bucket groups the single-key operations and cursor factory for one
// named map (spec §4.1: get/put/exists/cursor/len).
type Bucket interface {
	// Get returns the value for key, or (nil, false, nil) if absent —
	// "reads return a distinguished absent result for missing keys,
	// never an error" (spec §4.1).
	Get(key []byte) (value []byte, found bool, err error)
	Exists(key []byte) (bool, error)
	// Put is only valid inside an Update transaction.
	Put(key, value []byte) error
	// Delete is only valid inside an Update transaction.
	Delete(key []byte) error
	// Len reports the number of keys currently stored.
	Len() (uint64, error)
	Cursor() (Cursor, error)
}

// Cursor walks a bucket in byte-lexicographic key order — the property
// autocomplete's prefix range walk depends on (spec §4.1).
type Cursor interface {
	// First positions the cursor at the smallest key. ok is false on an
	// empty bucket.
	First() (key, value []byte, ok bool, err error)
	// SeekRange positions the cursor at the smallest key >= prefix (spec
	// §4.1: "seek-range(key) -> (key, value) ... return the smallest key
	// >= the given one").
	SeekRange(prefix []byte) (key, value []byte, ok bool, err error)
	// Next advances the cursor and returns the new current entry.
	Next() (key, value []byte, ok bool, err error)
	// Close releases cursor resources; safe to call multiple times.
	Close()
}
