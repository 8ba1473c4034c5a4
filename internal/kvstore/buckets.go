package kvstore

// Bucket names mirror the persisted-state layout of spec §6: what the
// real bootlin/elixir names as separate "<name>.db" files becomes a set
// of named DBIs inside one LMDB environment (common/dbutils/bucket.go's
// pattern of a flat set of short bucket-name constants).
const (
	BucketVariables = "variables"
	BucketBlobs     = "blobs"
	BucketHashes    = "hashes"
	BucketFilenames = "filenames"
	BucketVersions  = "versions"
	BucketDefs      = "definitions"
	BucketRefs      = "references"
	BucketDocs      = "doccomments"
	BucketComps     = "compatibledts"
	BucketCompsDocs = "compatibledts_docs"

	// defsCacheBucketPrefix + family letter names the per-family
	// DefsCache buckets (spec §6: "definitions-cache-{C,K,D,M}.db").
	defsCacheBucketPrefix = "definitions-cache-"
)

// DefsCacheBucket returns the bucket name for DefsCache[family]. family
// must be one of C, K, D, M (spec §4.4 Defs-cache derivation).
func DefsCacheBucket(family byte) string {
	return defsCacheBucketPrefix + string(rune(family))
}

// AllBuckets is the full, fixed set of DBIs a freshly opened environment
// must declare, including every per-family DefsCache bucket. DT-only
// buckets (Comps/CompsDocs) are always declared; the pipeline simply
// leaves them empty when dts-comp reports disabled (spec §6).
func AllBuckets() []string {
	b := []string{
		BucketVariables,
		BucketBlobs,
		BucketHashes,
		BucketFilenames,
		BucketVersions,
		BucketDefs,
		BucketRefs,
		BucketDocs,
		BucketComps,
		BucketCompsDocs,
	}
	for _, f := range []byte{'C', 'K', 'D', 'M'} {
		b = append(b, DefsCacheBucket(f))
	}
	return b
}

// Variable keys stored in BucketVariables (spec §6: "variables.db
// (scalars, e.g. numBlobs)").
const (
	VarNumBlobs = "numBlobs"
)
