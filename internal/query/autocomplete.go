package query

import (
	"context"
	"net/url"
	"strings"

	"github.com/bootlin/elixir/internal/family"
	"github.com/bootlin/elixir/internal/kvstore"
)

// percentEncode mirrors the encoding dtscomp applies to
// devicetree "compatible" strings before they're used as Comps/
// CompsDocs keys (original_source/find_compatible_dts.py quotes
// commas; spec §3 GLOSSARY: "compatible strings are percent-encoded
// before use as a posting-list key").
func percentEncode(s string) string {
	return url.QueryEscape(s)
}

func percentDecode(s string) string {
	decoded, err := url.QueryUnescape(s)
	if err != nil {
		return s
	}
	return decoded
}

// Autocomplete implements spec §4.5's prefix search: a forward cursor
// walk over Defs (or Comps, for family B) seeded at prefix, emitting up
// to K=11 keys that still share the prefix. Family-B keys are
// percent-decoded before being returned to the caller.
func (q *Query) Autocomplete(ctx context.Context, prefix string, fam family.Family) ([]string, error) {
	bucket := kvstore.BucketDefs
	seekPrefix := prefix
	if fam == family.B {
		bucket = kvstore.BucketComps
		seekPrefix = percentEncode(prefix)
	} else {
		seekPrefix = family.LookupPrefix(fam) + prefix
	}

	var out []string
	err := q.e.kv.View(ctx, func(tx kvstore.Tx) error {
		c, err := tx.Bucket(bucket).Cursor()
		if err != nil {
			return err
		}
		defer c.Close()

		k, _, ok, err := c.SeekRange([]byte(seekPrefix))
		if err != nil {
			return err
		}
		for ok && len(out) < autocompleteLimit {
			key := string(k)
			if !strings.HasPrefix(key, seekPrefix) {
				break
			}
			if fam == family.B {
				out = append(out, percentDecode(key))
			} else {
				out = append(out, strings.TrimPrefix(key, family.LookupPrefix(fam)))
			}
			k, _, ok, err = c.Next()
			if err != nil {
				return err
			}
		}
		return nil
	})
	return out, err
}
