package kvstore

import "context"

// Open opens the elixir data environment at dir (spec §6 "<project>/data/")
// with every bucket in AllBuckets() declared, then applies any pending
// migrations. mode == ReadOnly is used by query processes; CreateOrOpen
// by the update pipeline (spec §5: "exactly one writer per map").
func Open(ctx context.Context, dir string, mode Mode) (KV, error) {
	kv, err := OpenLMDB(dir, mode, AllBuckets())
	if err != nil {
		return nil, err
	}
	if mode == CreateOrOpen {
		if err := NewMigrator().Apply(ctx, kv); err != nil {
			_ = kv.Close()
			return nil, err
		}
	}
	return kv, nil
}
