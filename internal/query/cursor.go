package query

import "github.com/bootlin/elixir/internal/xrefdata"

// defCursor and refCursor walk a sentinel-terminated, blob-id-sorted
// posting list in lockstep with the tag's PathList, mirroring the
// merge-join algorithm of spec §4.5 step 3: "advance each of the three
// iterators to the smallest blob id >= the current path's blob id;
// while the iterator's head equals the current blob id, consume it".
//
// The sentinel entry (BlobID == xrefdata.SentinelBlobID) terminates the
// walk early, as in the original's sentinel posting; the cursors also
// check pos against the slice length, so a list without a sentinel ends
// the walk at its last entry.

type defCursor struct {
	entries []xrefdata.DefEntry
	pos     int
}

func newDefCursor(entries []xrefdata.DefEntry) *defCursor {
	return &defCursor{entries: entries}
}

func (c *defCursor) advanceTo(blobID uint32) {
	for c.pos < len(c.entries) && !c.entries[c.pos].Sentinel && c.entries[c.pos].BlobID < blobID {
		c.pos++
	}
}

func (c *defCursor) headEquals(blobID uint32) bool {
	return c.pos < len(c.entries) && !c.entries[c.pos].Sentinel && c.entries[c.pos].BlobID == blobID
}

func (c *defCursor) take() xrefdata.DefEntry {
	e := c.entries[c.pos]
	c.pos++
	return e
}

type refCursor struct {
	entries []xrefdata.RefEntry
	pos     int
}

func newRefCursor(entries []xrefdata.RefEntry) *refCursor {
	return &refCursor{entries: entries}
}

func (c *refCursor) advanceTo(blobID uint32) {
	for c.pos < len(c.entries) && !c.entries[c.pos].Sentinel && c.entries[c.pos].BlobID < blobID {
		c.pos++
	}
}

func (c *refCursor) headEquals(blobID uint32) bool {
	return c.pos < len(c.entries) && !c.entries[c.pos].Sentinel && c.entries[c.pos].BlobID == blobID
}

func (c *refCursor) take() xrefdata.RefEntry {
	e := c.entries[c.pos]
	c.pos++
	return e
}
