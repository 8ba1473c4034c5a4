// Package family implements the file-family classifier and the
// definition/reference compatibility rules of spec §4.3 (C7). It is
// grounded on the real bootlin/elixir getFileFamily/compatibleFamily/
// compatibleMacro functions (original_source/elixir/lib.py), translated
// into Go's idiomatic sum-type-ish constant set in the teacher's naming
// style (see common/dbutils/bucket.go's short-string bucket constants).
package family

import "strings"

// Family is one of the six coarse file-type classifications of spec §3.
type Family byte

const (
	// None indicates the classifier found no matching family for a path;
	// it is never a valid search-request family.
	None Family = 0
	A    Family = 'A'
	B    Family = 'B'
	C    Family = 'C'
	D    Family = 'D'
	K    Family = 'K'
	M    Family = 'M'
)

func (f Family) String() string {
	if f == None {
		return ""
	}
	return string(rune(f))
}

// Valid reports whether f is one of the six families accepted on the
// query surface (spec §3 GLOSSARY).
func Valid(f Family) bool {
	switch f {
	case A, B, C, D, K, M:
		return true
	default:
		return false
	}
}

// ParseFamily decodes a single-letter family argument from the CLI/query
// surface. An empty or unrecognized string yields (None, false).
func ParseFamily(s string) (Family, bool) {
	if len(s) != 1 {
		return None, false
	}
	f := Family(s[0])
	return f, Valid(f)
}

var cExtensions = map[string]bool{
	".c": true, ".cc": true, ".cpp": true, ".c++": true, ".cxx": true, ".h": true, ".s": true,
}

var dExtensions = map[string]bool{
	".dts": true, ".dtsi": true,
}

// DTBindingsPrefix is the path prefix under which family B (DT bindings
// documentation) lives; family B is never assigned by filename alone
// (spec §4.3).
const DTBindingsPrefix = "/Documentation/devicetree/bindings/"

// ClassifyFilename implements the table in spec §4.3. filename is the
// basename only (no directory component); matching is case-insensitive.
func ClassifyFilename(filename string) Family {
	name := filename
	ext := ""
	if i := strings.LastIndexByte(filename, '.'); i >= 0 {
		name = filename[:i]
		ext = filename[i:]
	}
	lowerExt := strings.ToLower(ext)
	lowerName := strings.ToLower(name)

	if cExtensions[lowerExt] {
		return C
	}
	if dExtensions[lowerExt] {
		return D
	}
	if strings.HasPrefix(lowerName, "kconfig") && lowerExt != ".rst" {
		return K
	}
	if strings.HasPrefix(lowerName, "makefile") && lowerExt != ".rst" {
		return M
	}
	return None
}

// IsUnderDTBindings reports whether path (slash-rooted) falls under the
// devicetree bindings documentation tree, the only way family B is ever
// assigned (spec §4.3).
func IsUnderDTBindings(path string) bool {
	return strings.HasPrefix(path, DTBindingsPrefix)
}

// defFamilies is the compatibility_list table of spec §4.3: for a
// requested family, the set of definition-families that satisfy it
// directly (not via the macro rule).
var defFamilies = map[Family]map[Family]bool{
	C: {C: true, K: true},
	K: {K: true},
	D: {D: true},
	M: {K: true},
}

// macroFamilies is the "Satisfied by macro def in family" column of the
// same table: for a requested family, the set of families whose *macro*
// definitions additionally satisfy it.
var macroFamilies = map[Family]map[Family]bool{
	C: {K: true},
	K: {K: true},
	D: {C: true, M: true},
	M: {K: true},
}

// CompatibleDef reports whether a definition recorded in defFamily
// satisfies a search requested under `requested`, given the macro
// families of the identifier's DefList (the macros argument — empty if
// the identifier has no macro definitions). requested == A always
// matches.
func CompatibleDef(requested, defFamily Family, macros map[Family]bool) bool {
	if requested == A {
		return true
	}
	if defFamilies[requested][defFamily] {
		return true
	}
	for mf := range macros {
		if macroFamilies[requested][mf] {
			return true
		}
	}
	return false
}

// CompatibleRef reports whether a reference recorded under refFamily
// satisfies a search requested under `requested` (spec §4.5 step 3: "the
// refs iterator ... iff C7's reference rule accepts"). The reference
// rule reuses the same defFamilies table as defs: a reference is
// considered to live in the family it was tokenized under, and that
// family must be able to "see" the requested family exactly as a
// definition would.
func CompatibleRef(requested, refFamily Family) bool {
	if requested == A {
		return true
	}
	return defFamilies[requested][refFamily]
}

// CompatibleFamilySet reports whether any family in families directly
// satisfies requested (used by DefList.families fast-path test, spec §3
// invariant 5).
func CompatibleFamilySet(requested Family, families map[Family]bool) bool {
	if requested == A {
		return len(families) > 0
	}
	for f := range families {
		if defFamilies[requested][f] {
			return true
		}
	}
	return false
}

// CachedFamilies is the set of families for which a DefsCache exists
// (spec §3 invariant 5 / §4.4 "Defs-cache derivation").
var CachedFamilies = []Family{C, K, D, M}

// SatisfiesCache reports whether an identifier whose DefList carries
// `families` and macro families `macros` belongs in DefsCache[cacheFamily].
func SatisfiesCache(cacheFamily Family, families map[Family]bool, macros map[Family]bool) bool {
	return CompatibleFamilySet(cacheFamily, families) || compatibleMacroSet(cacheFamily, macros)
}

func compatibleMacroSet(requested Family, macros map[Family]bool) bool {
	for mf := range macros {
		if macroFamilies[requested][mf] {
			return true
		}
	}
	return false
}

// KconfigPrefix is prepended to Kconfig symbol identifiers before they
// are stored/looked-up (spec §3: "Kconfig symbols are stored with the
// prefix CONFIG_").
const KconfigPrefix = "CONFIG_"

// LookupPrefix returns the storage-key prefix applied to raw identifiers
// tokenized under family f (empty for every family except K).
func LookupPrefix(f Family) string {
	if f == K {
		return KconfigPrefix
	}
	return ""
}
