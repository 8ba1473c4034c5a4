package kvstore

import (
	"context"
	"fmt"

	"github.com/bootlin/elixir/internal/logx"
)

// Migration is one named, idempotent change applied to a freshly-opened
// environment before the update pipeline or a query surface touches it.
// Modeled directly on the teacher's migrations.Migration (migrations
// apply in array order, already-applied ones are skipped by name) —
// generalized here from a blockchain stage-progress migrator to
// elixir's own bucket set (SPEC_FULL.md supplemented feature: "adapted
// migrations ledger").
type Migration struct {
	Name string
	Up   func(ctx context.Context, kv KV) error
}

// bucketMigrations is applied in order; ledger entries for applied
// migrations are recorded in BucketVariables under a "migration:" key
// prefix so a later run can skip them (there is no separate Migrations
// bucket the way the teacher has one — elixir's migration count is
// small enough that variables.db suffices).
var bucketMigrations = []Migration{
	ensureDefsCacheBucketsPresent,
}

const migrationKeyPrefix = "migration:"

// ensureDefsCacheBucketsPresent is a no-op today: AllBuckets() always
// declares the four DefsCache buckets so OpenLMDB already creates them.
// It exists as the first entry of the ledger so the migration mechanism
// itself is exercised from day one, the same way the teacher's own
// migrator ships with two tiny migrations rather than an empty slice.
var ensureDefsCacheBucketsPresent = Migration{
	Name: "ensure-defs-cache-buckets-present",
	Up: func(ctx context.Context, kv KV) error {
		return kv.Update(ctx, func(tx Tx) error {
			for _, f := range []byte{'C', 'K', 'D', 'M'} {
				if _, err := tx.Bucket(DefsCacheBucket(f)).Len(); err != nil {
					return fmt.Errorf("checking defs-cache bucket %c: %w", f, err)
				}
			}
			return nil
		})
	},
}

// Migrator applies a fixed migration list to a KV, skipping migrations
// already recorded as applied.
type Migrator struct {
	Migrations []Migration
	log        *logx.Logger
}

func NewMigrator() *Migrator {
	return &Migrator{Migrations: bucketMigrations, log: logx.With("component", "kvstore.migrator")}
}

// Apply runs every not-yet-applied migration against kv, in order,
// recording each as applied on success.
func (m *Migrator) Apply(ctx context.Context, kv KV) error {
	if len(m.Migrations) == 0 {
		return nil
	}
	if m.log == nil {
		m.log = logx.With("component", "kvstore.migrator")
	}

	applied := map[string]bool{}
	if err := kv.View(ctx, func(tx Tx) error {
		cur, err := tx.Bucket(BucketVariables).Cursor()
		if err != nil {
			return err
		}
		defer cur.Close()
		k, _, ok, err := cur.SeekRange([]byte(migrationKeyPrefix))
		for ; ok && err == nil; k, _, ok, err = cur.Next() {
			if len(k) < len(migrationKeyPrefix) || string(k[:len(migrationKeyPrefix)]) != migrationKeyPrefix {
				break
			}
			applied[string(k[len(migrationKeyPrefix):])] = true
		}
		return err
	}); err != nil {
		return err
	}

	for _, mg := range m.Migrations {
		if applied[mg.Name] {
			continue
		}
		m.log.Info("applying migration", "name", mg.Name)
		if err := mg.Up(ctx, kv); err != nil {
			return fmt.Errorf("migration %q: %w", mg.Name, err)
		}
		if err := kv.Update(ctx, func(tx Tx) error {
			return tx.Bucket(BucketVariables).Put([]byte(migrationKeyPrefix+mg.Name), []byte{1})
		}); err != nil {
			return fmt.Errorf("recording migration %q as applied: %w", mg.Name, err)
		}
		m.log.Info("applied migration", "name", mg.Name)
	}
	return nil
}
