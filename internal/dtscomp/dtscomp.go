// Package dtscomp extracts devicetree "compatible" strings from C,
// DTS/DTSI and bindings-documentation source lines, in process — unlike
// C1/C2, this runs directly over blob bytes already fetched through
// vcsadapter.Adapter.GetBlob rather than through another subprocess line
// protocol (spec §6's `dts-comp` sub-command only reports the on/off
// toggle; the original implementation's FindCompatibleDTS does this
// extraction locally in Python, and this package is its Go line-by-line
// regex translation, grounded on
// original_source/find_compatible_dts.py).
package dtscomp

import (
	"bufio"
	"bytes"
	"fmt"
	"net/url"
	"regexp"

	"github.com/bootlin/elixir/internal/family"
)

var (
	reC        = regexp.MustCompile(`\s*\{*\s*\.compatible\s*=\s*"(.+?)"`)
	reDTSGuard = regexp.MustCompile(`^\s*compatible`)
	reDTSQuote = regexp.MustCompile(`"(.+?)"`)
	reBindings = regexp.MustCompile(`[\w-]+,?[\w-]+`)
)

// Match is one compatible string found on a line, with its 1-based line
// number. Ident is percent-encoded, matching the storage/lookup
// convention of spec §4.5 ("the identifier is percent-encoded before
// lookup").
type Match struct {
	Ident string
	Line  int
}

// Find scans content line by line for compatible strings appropriate to
// fam (spec §4.4: "Comps ... skipping families K,M and None" — callers
// are expected to only invoke Find for C, D or B).
func Find(content []byte, fam family.Family) ([]Match, error) {
	var extract func(line string) []string
	switch fam {
	case family.C:
		extract = extractC
	case family.D:
		extract = extractDTS
	case family.B:
		extract = extractBindings
	default:
		return nil, fmt.Errorf("dtscomp: unsupported family %q", fam.String())
	}

	var out []Match
	sc := bufio.NewScanner(bytes.NewReader(content))
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		for _, m := range extract(sc.Text()) {
			out = append(out, Match{Ident: url.QueryEscape(m), Line: lineNo})
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func extractC(line string) []string {
	var out []string
	for _, m := range reC.FindAllStringSubmatch(line, -1) {
		out = append(out, m[1])
	}
	return out
}

func extractDTS(line string) []string {
	if !reDTSGuard.MatchString(line) {
		return nil
	}
	var out []string
	for _, m := range reDTSQuote.FindAllStringSubmatch(line, -1) {
		out = append(out, m[1])
	}
	return out
}

func extractBindings(line string) []string {
	return reBindings.FindAllString(line, -1)
}
