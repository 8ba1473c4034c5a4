package kvstore

import (
	"context"
	"fmt"
	"os"

	"github.com/ledgerwatch/lmdb-go/lmdb"

	"github.com/bootlin/elixir/internal/logx"
	"github.com/bootlin/elixir/internal/xrerrors"
)

// lmdbMapSize is generous relative to the corpus sizes spec §8 targets
// (multi-release kernel trees); LMDB reserves address space lazily, so
// this costs nothing until actually written.
const lmdbMapSize = 64 << 30 // 64 GiB

// lmdbKV is the LMDB-backed KV implementation (spec §4.1), one
// environment holding every named bucket as a DBI — the Go analog of
// common/dbutils/bucket.go's single-environment, many-buckets layout.
type lmdbKV struct {
	env     *lmdb.Env
	log     *logx.Logger
	dbiByID map[string]lmdb.DBI
}

// OpenLMDB opens (or creates) the environment rooted at dir with the
// given buckets pre-declared. mode == ReadOnly refuses to create the
// directory and opens with lmdb.Readonly (spec §4.1: "open fails with
// NotFound when the data directory is missing").
func OpenLMDB(dir string, mode Mode, buckets []string) (KV, error) {
	if mode == ReadOnly {
		if _, err := os.Stat(dir); err != nil {
			return nil, fmt.Errorf("%w: data directory %q: %v", xrerrors.ErrNotFound, dir, err)
		}
	}
	env, err := lmdb.NewEnv()
	if err != nil {
		return nil, fmt.Errorf("%w: creating lmdb environment: %v", xrerrors.ErrConfiguration, err)
	}
	if err := env.SetMaxDBs(len(buckets) + 4); err != nil {
		return nil, fmt.Errorf("%w: setting max dbs: %v", xrerrors.ErrConfiguration, err)
	}
	if err := env.SetMapSize(lmdbMapSize); err != nil {
		return nil, fmt.Errorf("%w: setting map size: %v", xrerrors.ErrConfiguration, err)
	}

	flags := uint(0)
	if mode == ReadOnly {
		flags |= lmdb.Readonly
	} else {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("%w: creating data directory %q: %v", xrerrors.ErrConfiguration, dir, err)
		}
	}
	if err := env.Open(dir, flags, 0o644); err != nil {
		return nil, fmt.Errorf("%w: opening lmdb environment at %q: %v", xrerrors.ErrConfiguration, dir, err)
	}

	kv := &lmdbKV{env: env, log: logx.With("component", "kvstore", "dir", dir), dbiByID: make(map[string]lmdb.DBI, len(buckets))}

	openDBIs := func(txn *lmdb.Txn) error {
		dbiFlags := uint(0)
		if mode != ReadOnly {
			dbiFlags |= lmdb.Create
		}
		for _, name := range buckets {
			dbi, err := txn.OpenDBI(name, dbiFlags)
			if err != nil {
				return fmt.Errorf("opening bucket %q: %w", name, err)
			}
			kv.dbiByID[name] = dbi
		}
		return nil
	}
	if mode == ReadOnly {
		err = env.View(openDBIs)
	} else {
		err = env.Update(openDBIs)
	}
	if err != nil {
		_ = env.Close()
		return nil, fmt.Errorf("%w: %v", xrerrors.ErrConfiguration, err)
	}
	kv.log.Info("opened environment", "buckets", len(buckets), "readOnly", mode == ReadOnly)
	return kv, nil
}

func (k *lmdbKV) View(ctx context.Context, fn func(tx Tx) error) error {
	return k.env.View(func(txn *lmdb.Txn) error {
		txn.RawRead = true
		return fn(&lmdbTx{kv: k, txn: txn})
	})
}

func (k *lmdbKV) Update(ctx context.Context, fn func(tx Tx) error) error {
	return k.env.Update(func(txn *lmdb.Txn) error {
		return fn(&lmdbTx{kv: k, txn: txn})
	})
}

func (k *lmdbKV) Sync() error {
	return k.env.Sync(true)
}

func (k *lmdbKV) Close() error {
	return k.env.Close()
}

type lmdbTx struct {
	kv  *lmdbKV
	txn *lmdb.Txn
}

func (t *lmdbTx) Bucket(name string) Bucket {
	dbi, ok := t.kv.dbiByID[name]
	if !ok {
		return &errBucket{err: fmt.Errorf("%w: unknown bucket %q", xrerrors.ErrConfiguration, name)}
	}
	return &lmdbBucket{txn: t.txn, dbi: dbi}
}

// errBucket reports a configuration error on every call; returned by
// Bucket() for a name that was never declared to OpenLMDB.
type errBucket struct{ err error }

func (b *errBucket) Get([]byte) ([]byte, bool, error) { return nil, false, b.err }
func (b *errBucket) Exists([]byte) (bool, error)      { return false, b.err }
func (b *errBucket) Put([]byte, []byte) error         { return b.err }
func (b *errBucket) Delete([]byte) error              { return b.err }
func (b *errBucket) Len() (uint64, error)   { return 0, b.err }
func (b *errBucket) Cursor() (Cursor, error) { return nil, b.err }

type lmdbBucket struct {
	txn *lmdb.Txn
	dbi lmdb.DBI
}

func (b *lmdbBucket) Get(key []byte) ([]byte, bool, error) {
	v, err := b.txn.Get(b.dbi, key)
	if lmdb.IsNotFound(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

func (b *lmdbBucket) Exists(key []byte) (bool, error) {
	_, found, err := b.Get(key)
	return found, err
}

func (b *lmdbBucket) Put(key, value []byte) error {
	return b.txn.Put(b.dbi, key, value, 0)
}

func (b *lmdbBucket) Delete(key []byte) error {
	err := b.txn.Del(b.dbi, key, nil)
	if lmdb.IsNotFound(err) {
		return nil
	}
	return err
}

func (b *lmdbBucket) Len() (uint64, error) {
	stat, err := b.txn.Stat(b.dbi)
	if err != nil {
		return 0, err
	}
	return stat.Entries, nil
}

func (b *lmdbBucket) Cursor() (Cursor, error) {
	c, err := b.txn.OpenCursor(b.dbi)
	if err != nil {
		return nil, err
	}
	return &lmdbCursor{c: c}, nil
}

type lmdbCursor struct {
	c *lmdb.Cursor
}

func (c *lmdbCursor) First() ([]byte, []byte, bool, error) {
	k, v, err := c.c.Get(nil, nil, lmdb.First)
	return decodeCursorResult(k, v, err)
}

func (c *lmdbCursor) SeekRange(prefix []byte) ([]byte, []byte, bool, error) {
	k, v, err := c.c.Get(prefix, nil, lmdb.SetRange)
	return decodeCursorResult(k, v, err)
}

func (c *lmdbCursor) Next() ([]byte, []byte, bool, error) {
	k, v, err := c.c.Get(nil, nil, lmdb.Next)
	return decodeCursorResult(k, v, err)
}

func (c *lmdbCursor) Close() {
	c.c.Close()
}

func decodeCursorResult(k, v []byte, err error) ([]byte, []byte, bool, error) {
	if lmdb.IsNotFound(err) {
		return nil, nil, false, nil
	}
	if err != nil {
		return nil, nil, false, err
	}
	kc := make([]byte, len(k))
	copy(kc, k)
	vc := make([]byte, len(v))
	copy(vc, v)
	return kc, vc, true, nil
}
