// Package xrefdata implements the C4 data model and codecs of spec §4.2:
// PathList, DefList and RefList. The scalar blob-id encoding used by the
// variables/blobs/hashes/filenames buckets lives in package bookkeep.
//
// Spec §9 explicitly allows a binary encoding in place of the legacy
// regex-packed ASCII grammar of the real bootlin/elixir implementation
// (original_source/elixir/data.py), as long as parse(pack(v)) round-trips
// and posting lists stay ordered by blob-id on read. This package keeps
// the legacy *semantics* (a DefList's parallel "families" set updated on
// every append; RefList/Docs/Comps entries keyed by (blob, family) with a
// comma-joined ASCII line list) but uses fixed binary records.
package xrefdata

import (
	"encoding/binary"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/bootlin/elixir/internal/family"
	"github.com/bootlin/elixir/internal/xrerrors"
)

// SentinelBlobID is the synthetic terminal blob id appended by Iter when
// asked for a sentinel-terminated iteration (spec §4.2 "optional sentinel
// iteration mode"): strictly greater than any real blob id, so a
// streaming merge-join can advance without special-casing end-of-list.
const SentinelBlobID uint32 = 1<<30 - 1

const codecVersion = 1

// ---- DefList ----------------------------------------------------------

// DefEntry is one definition record (spec §3). Sentinel marks the
// synthetic terminal entry appended by Iter(withSentinel=true) — callers
// branch on this field rather than comparing BlobID against a magic
// number, the Go rendering of spec §9's "dedicated variant of the
// iterator item type" note.
type DefEntry struct {
	BlobID   uint32
	Kind     Kind
	Line     uint32
	Family   family.Family
	Sentinel bool
}

// DefList is the set of definition records for one identifier, plus the
// distinct set of families it is defined in anywhere (spec §3: "A DefList
// additionally stores the set of families in which this identifier is
// defined anywhere, for fast family-test without scanning").
type DefList struct {
	entries  []DefEntry
	families map[family.Family]bool
}

func NewDefList() *DefList {
	return &DefList{families: make(map[family.Family]bool)}
}

// Append records a new definition. Entries whose kind is not recognized
// are silently discarded, matching original_source/elixir/data.py's
// DefList.append early return on an unknown type letter.
func (d *DefList) Append(blobID uint32, kind Kind, line uint32, fam family.Family) {
	if !kind.Valid() {
		return
	}
	d.entries = append(d.entries, DefEntry{BlobID: blobID, Kind: kind, Line: line, Family: fam})
	if d.families == nil {
		d.families = make(map[family.Family]bool)
	}
	d.families[fam] = true
}

// Families returns the set of families this identifier is defined in
// anywhere in the corpus (spec §3 invariant 5's input).
func (d *DefList) Families() map[family.Family]bool {
	return d.families
}

// Macros returns the family tags of entries whose kind is KindMacro,
// used by the family-compatibility rule (spec §4.2: "get_macros()
// returns the family tags of entries whose kind == macro").
func (d *DefList) Macros() map[family.Family]bool {
	out := make(map[family.Family]bool)
	for _, e := range d.entries {
		if e.Kind == KindMacro {
			out[e.Family] = true
		}
	}
	return out
}

// Iter returns entries sorted by blob-id ascending (spec §4.2: "iter
// returns entries sorted by blob-id ascending"), optionally followed by a
// sentinel entry.
func (d *DefList) Iter(withSentinel bool) []DefEntry {
	out := make([]DefEntry, len(d.entries))
	copy(out, d.entries)
	sort.SliceStable(out, func(i, j int) bool { return out[i].BlobID < out[j].BlobID })
	if withSentinel {
		out = append(out, DefEntry{BlobID: SentinelBlobID, Sentinel: true})
	}
	return out
}

// Len reports the number of definition records (excluding any sentinel).
func (d *DefList) Len() int { return len(d.entries) }

func (d *DefList) Pack() []byte {
	buf := make([]byte, 0, 16+len(d.entries)*10)
	buf = append(buf, codecVersion)
	buf = appendUvarint(buf, uint64(len(d.families)))
	for f := range d.families {
		buf = append(buf, byte(f))
	}
	buf = appendUvarint(buf, uint64(len(d.entries)))
	var tmp [4]byte
	for _, e := range d.entries {
		binary.BigEndian.PutUint32(tmp[:], e.BlobID)
		buf = append(buf, tmp[:]...)
		buf = append(buf, byte(e.Kind))
		binary.BigEndian.PutUint32(tmp[:], e.Line)
		buf = append(buf, tmp[:]...)
		buf = append(buf, byte(e.Family))
	}
	return buf
}

func ParseDefList(b []byte) (*DefList, error) {
	d := NewDefList()
	if len(b) == 0 {
		return d, nil
	}
	r := &byteReader{b: b}
	ver, err := r.readByte()
	if err != nil || ver != codecVersion {
		return nil, xrerrors.NewCorruptionError("definitions", "", fmt.Errorf("bad version"))
	}
	nFam, err := r.readUvarint()
	if err != nil {
		return nil, xrerrors.NewCorruptionError("definitions", "", err)
	}
	for i := uint64(0); i < nFam; i++ {
		fb, err := r.readByte()
		if err != nil {
			return nil, xrerrors.NewCorruptionError("definitions", "", err)
		}
		d.families[family.Family(fb)] = true
	}
	nEntries, err := r.readUvarint()
	if err != nil {
		return nil, xrerrors.NewCorruptionError("definitions", "", err)
	}
	d.entries = make([]DefEntry, 0, nEntries)
	for i := uint64(0); i < nEntries; i++ {
		blobID, err := r.readUint32()
		if err != nil {
			return nil, xrerrors.NewCorruptionError("definitions", "", err)
		}
		kindB, err := r.readByte()
		if err != nil {
			return nil, xrerrors.NewCorruptionError("definitions", "", err)
		}
		line, err := r.readUint32()
		if err != nil {
			return nil, xrerrors.NewCorruptionError("definitions", "", err)
		}
		famB, err := r.readByte()
		if err != nil {
			return nil, xrerrors.NewCorruptionError("definitions", "", err)
		}
		d.entries = append(d.entries, DefEntry{BlobID: blobID, Kind: Kind(kindB), Line: line, Family: family.Family(famB)})
	}
	return d, nil
}

// ---- PathList -----------------------------------------------------------

// PathEntry is one (blob-id, path) association (spec §3 Tag entity).
type PathEntry struct {
	BlobID   uint32
	Path     string
	Sentinel bool
}

// PathList is the per-tag ordered list of (blob-id, path) pairs (spec
// §4.2: "sequence of (blob-id: u32, path: bytes); iterated in insertion
// order. Insertion order is by blob-id ascending, enforced by the
// Versions stage").
type PathList struct {
	entries []PathEntry
}

func NewPathList() *PathList { return &PathList{} }

// Append adds an entry. Callers (the Versions stage) are responsible for
// calling Append in ascending blob-id order; PathList does not re-sort.
func (p *PathList) Append(blobID uint32, path string) {
	p.entries = append(p.entries, PathEntry{BlobID: blobID, Path: path})
}

// Iter returns entries in insertion order, optionally followed by a
// sentinel.
func (p *PathList) Iter(withSentinel bool) []PathEntry {
	out := make([]PathEntry, len(p.entries))
	copy(out, p.entries)
	if withSentinel {
		out = append(out, PathEntry{BlobID: SentinelBlobID, Sentinel: true})
	}
	return out
}

func (p *PathList) Len() int { return len(p.entries) }

func (p *PathList) Pack() []byte {
	buf := make([]byte, 0, 16+len(p.entries)*12)
	buf = append(buf, codecVersion)
	buf = appendUvarint(buf, uint64(len(p.entries)))
	var tmp [4]byte
	for _, e := range p.entries {
		binary.BigEndian.PutUint32(tmp[:], e.BlobID)
		buf = append(buf, tmp[:]...)
		buf = appendUvarint(buf, uint64(len(e.Path)))
		buf = append(buf, e.Path...)
	}
	return buf
}

func ParsePathList(b []byte) (*PathList, error) {
	p := NewPathList()
	if len(b) == 0 {
		return p, nil
	}
	r := &byteReader{b: b}
	ver, err := r.readByte()
	if err != nil || ver != codecVersion {
		return nil, xrerrors.NewCorruptionError("versions", "", fmt.Errorf("bad version"))
	}
	n, err := r.readUvarint()
	if err != nil {
		return nil, xrerrors.NewCorruptionError("versions", "", err)
	}
	p.entries = make([]PathEntry, 0, n)
	for i := uint64(0); i < n; i++ {
		blobID, err := r.readUint32()
		if err != nil {
			return nil, xrerrors.NewCorruptionError("versions", "", err)
		}
		plen, err := r.readUvarint()
		if err != nil {
			return nil, xrerrors.NewCorruptionError("versions", "", err)
		}
		path, err := r.readString(int(plen))
		if err != nil {
			return nil, xrerrors.NewCorruptionError("versions", "", err)
		}
		p.entries = append(p.entries, PathEntry{BlobID: blobID, Path: path})
	}
	return p, nil
}

// ---- RefList --------------------------------------------------------

// RefEntry is one reference/doc-comment/compatible record (spec §3):
// a blob, a comma-joined ASCII line list and the family it was recorded
// under.
type RefEntry struct {
	BlobID   uint32
	Lines    string
	Family   family.Family
	Sentinel bool
}

// LineNumbers parses the comma-joined Lines field back into ints.
func (e RefEntry) LineNumbers() ([]int, error) {
	if e.Lines == "" {
		return nil, nil
	}
	parts := strings.Split(e.Lines, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

// RefList is the shared shape used by References, DocComments,
// Compatibles and CompatibleDocs (spec §3: "same shape as RefList
// entry").
type RefList struct {
	entries []RefEntry
}

func NewRefList() *RefList { return &RefList{} }

// Append adds a reference/doc/compatible record. lines must already be
// comma-joined ASCII decimal (spec §4.2).
func (r *RefList) Append(blobID uint32, lines string, fam family.Family) {
	r.entries = append(r.entries, RefEntry{BlobID: blobID, Lines: lines, Family: fam})
}

// Iter returns entries sorted by blob-id ascending (spec invariant 4:
// "Query code must still treat them as potentially unsorted and sort by
// id on read"), optionally followed by a sentinel.
func (r *RefList) Iter(withSentinel bool) []RefEntry {
	out := make([]RefEntry, len(r.entries))
	copy(out, r.entries)
	sort.SliceStable(out, func(i, j int) bool { return out[i].BlobID < out[j].BlobID })
	if withSentinel {
		out = append(out, RefEntry{BlobID: SentinelBlobID, Sentinel: true})
	}
	return out
}

func (r *RefList) Len() int { return len(r.entries) }

func (r *RefList) Pack() []byte {
	buf := make([]byte, 0, 16+len(r.entries)*16)
	buf = append(buf, codecVersion)
	buf = appendUvarint(buf, uint64(len(r.entries)))
	var tmp [4]byte
	for _, e := range r.entries {
		binary.BigEndian.PutUint32(tmp[:], e.BlobID)
		buf = append(buf, tmp[:]...)
		buf = append(buf, byte(e.Family))
		buf = appendUvarint(buf, uint64(len(e.Lines)))
		buf = append(buf, e.Lines...)
	}
	return buf
}

func ParseRefList(b []byte) (*RefList, error) {
	r := NewRefList()
	if len(b) == 0 {
		return r, nil
	}
	br := &byteReader{b: b}
	ver, err := br.readByte()
	if err != nil || ver != codecVersion {
		return nil, xrerrors.NewCorruptionError("references", "", fmt.Errorf("bad version"))
	}
	n, err := br.readUvarint()
	if err != nil {
		return nil, xrerrors.NewCorruptionError("references", "", err)
	}
	r.entries = make([]RefEntry, 0, n)
	for i := uint64(0); i < n; i++ {
		blobID, err := br.readUint32()
		if err != nil {
			return nil, xrerrors.NewCorruptionError("references", "", err)
		}
		famB, err := br.readByte()
		if err != nil {
			return nil, xrerrors.NewCorruptionError("references", "", err)
		}
		llen, err := br.readUvarint()
		if err != nil {
			return nil, xrerrors.NewCorruptionError("references", "", err)
		}
		lines, err := br.readString(int(llen))
		if err != nil {
			return nil, xrerrors.NewCorruptionError("references", "", err)
		}
		r.entries = append(r.entries, RefEntry{BlobID: blobID, Lines: lines, Family: family.Family(famB)})
	}
	return r, nil
}

// JoinLines renders a sorted slice of line numbers as the comma-joined
// ASCII decimal list RefList expects.
func JoinLines(lines []int) string {
	parts := make([]string, len(lines))
	for i, n := range lines {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ",")
}
