package xrefdata

// Kind is a definition's ctags-style kind (spec §3 Definition record).
// The single-letter codes mirror the real ctags/ctags-like parser output
// consumed through the parse-defs line protocol (spec §6), matching
// original_source/elixir/data.py's defTypeR table.
type Kind byte

const (
	KindConfig     Kind = 'c'
	KindDefine     Kind = 'd'
	KindEnum       Kind = 'e'
	KindEnumerator Kind = 'E'
	KindFunction   Kind = 'f'
	KindLabel      Kind = 'l'
	KindMacro      Kind = 'M'
	KindMember     Kind = 'm'
	KindPrototype  Kind = 'p'
	KindStruct     Kind = 's'
	KindTypedef    Kind = 't'
	KindUnion      Kind = 'u'
	KindVariable   Kind = 'v'
	KindExternVar  Kind = 'x'
)

var kindNames = map[Kind]string{
	KindConfig:     "config",
	KindDefine:     "define",
	KindEnum:       "enum",
	KindEnumerator: "enumerator",
	KindFunction:   "function",
	KindLabel:      "label",
	KindMacro:      "macro",
	KindMember:     "member",
	KindPrototype:  "prototype",
	KindStruct:     "struct",
	KindTypedef:    "typedef",
	KindUnion:      "union",
	KindVariable:   "variable",
	KindExternVar:  "externvar",
}

var namesToKind = func() map[string]Kind {
	m := make(map[string]Kind, len(kindNames))
	for k, v := range kindNames {
		m[v] = k
	}
	return m
}()

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "?"
}

// ParseKindName decodes a kind name as emitted by the CLI layer; letter
// codes are decoded by ParseKindLetter.
func ParseKindName(s string) (Kind, bool) {
	k, ok := namesToKind[s]
	return k, ok
}

// ParseKindLetter decodes the single ctags-style letter code emitted on
// the wire by `parse-defs` (spec §6).
func ParseKindLetter(b byte) (Kind, bool) {
	k := Kind(b)
	_, ok := kindNames[k]
	return k, ok
}

// Valid reports whether k is a recognized kind; DefList.Append silently
// discards entries with an unrecognized kind (matches
// original_source/elixir/data.py DefList.append: "if type not in defTypeD:
// return").
func (k Kind) Valid() bool {
	_, ok := kindNames[k]
	return ok
}
