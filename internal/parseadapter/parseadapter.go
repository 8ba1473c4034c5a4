// Package parseadapter implements C2, the parser adapter of spec §6:
// tokenize-file, parse-defs and parse-docs sub-commands, each run as a
// child process against a single blob (the dts-comp probe lives in
// vcsadapter.DTCompEnabled). It shares vcsadapter's subprocess/limiter
// idiom (spec §5: "parser subprocess invocations"
// are a blocking operation the update pipeline schedules, one per
// partitioned worker).
package parseadapter

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"golang.org/x/time/rate"

	"github.com/bootlin/elixir/internal/family"
	"github.com/bootlin/elixir/internal/logx"
	"github.com/bootlin/elixir/internal/xrefdata"
	"github.com/bootlin/elixir/internal/xrerrors"
)

// Token is one emission of `tokenize-file`: either a candidate
// identifier (IsIdent) or interstitial text. Interstitial text carries
// embedded newlines encoded as 0x01 (spec §4.5: "the tokenizer encodes
// newlines inside tokens as 0x01 so that line counts survive").
type Token struct {
	Text    string
	IsIdent bool
}

// Def is one `<ident> <kind-letter> <line>` line from parse-defs.
type Def struct {
	Ident string
	Kind  xrefdata.Kind
	Line  uint32
}

// Doc is one `<ident> <line>` line from parse-docs.
type Doc struct {
	Ident string
	Line  uint32
}

// Adapter shells out to the project's parser-backend script.
type Adapter struct {
	scriptPath string
	limiter    *rate.Limiter
	log        *logx.Logger
}

// New builds an Adapter invoking scriptPath as `scriptPath <subcommand>
// <args...>`. The limiter is built with rate.Inf and burst maxConcurrent,
// so its Wait never blocks: the number of subprocesses in flight is not
// bounded by maxConcurrent.
func New(scriptPath string, maxConcurrent int) *Adapter {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Adapter{
		scriptPath: scriptPath,
		limiter:    rate.NewLimiter(rate.Inf, maxConcurrent),
		log:        logx.With("component", "parseadapter"),
	}
}

func (a *Adapter) run(ctx context.Context, args ...string) ([]byte, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	cmd := exec.CommandContext(ctx, a.scriptPath, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		a.log.Error("parser subcommand failed", "args", args, "stderr", stderr.String(), "err", err)
		return nil, fmt.Errorf("%w: parser command %v: %v: %s", xrerrors.ErrParserFailure, args, err, stderr.String())
	}
	return stdout.Bytes(), nil
}

func splitLines(out []byte) []string {
	s := string(out)
	s = strings.TrimSuffix(s, "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

// TokenizeFile tokenizes the blob at hash under fam. binary selects the
// `-b` flag (spec §6: "tokenize-file [-b] <hash-or-tag-and-path>
// <family>"), used for the defs-acceptance pass over binary-unsafe
// parsers.
func (a *Adapter) TokenizeFile(ctx context.Context, hash string, fam family.Family, binary bool) ([]Token, error) {
	return a.tokenizeFile(ctx, []string{hash}, fam, binary)
}

// TokenizeFileAt is the two-argument form of tokenize-file's
// hash-or-tag-and-path slot, used by the query surface's `file` command
// (original_source/elixir/query.py: `scriptLines('tokenize-file',
// version, path, family)`), which has a tag/path pair rather than a
// resolved blob hash.
func (a *Adapter) TokenizeFileAt(ctx context.Context, tag, path string, fam family.Family, binary bool) ([]Token, error) {
	return a.tokenizeFile(ctx, []string{tag, path}, fam, binary)
}

func (a *Adapter) tokenizeFile(ctx context.Context, locator []string, fam family.Family, binary bool) ([]Token, error) {
	args := []string{"tokenize-file"}
	if binary {
		args = append(args, "-b")
	}
	args = append(args, locator...)
	args = append(args, fam.String())
	out, err := a.run(ctx, args...)
	if err != nil {
		return nil, err
	}
	lines := splitLines(out)
	tokens := make([]Token, 0, len(lines))
	for i, l := range lines {
		tokens = append(tokens, Token{Text: unescapeNewlines(l), IsIdent: i%2 == 0})
	}
	return tokens, nil
}

// unescapeNewlines turns the wire encoding 0x01 back into '\n' for
// interstitial-text tokens (spec §4.5).
func unescapeNewlines(s string) string {
	return strings.ReplaceAll(s, "\x01", "\n")
}

// ParseDefs runs the ctags-style definition parser over the blob
// identified by hash, interpreted as filename under fam (spec §6
// `parse-defs <hash> <filename> <family>`).
func (a *Adapter) ParseDefs(ctx context.Context, hash, filename string, fam family.Family) ([]Def, error) {
	out, err := a.run(ctx, "parse-defs", hash, filename, fam.String())
	if err != nil {
		return nil, err
	}
	var defs []Def
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 3 {
			return nil, fmt.Errorf("%w: malformed parse-defs line %q", xrerrors.ErrParserFailure, line)
		}
		kind, ok := xrefdata.ParseKindLetter(fields[1][0])
		if !ok {
			continue
		}
		n, err := strconv.ParseUint(fields[2], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: parse-defs line number %q: %v", xrerrors.ErrParserFailure, fields[2], err)
		}
		defs = append(defs, Def{Ident: fields[0], Kind: kind, Line: uint32(n)})
	}
	return defs, nil
}

// ParseDocs runs the doc-comment parser over the blob identified by
// hash, interpreted as filename (spec §6 `parse-docs <hash> <filename>`).
func (a *Adapter) ParseDocs(ctx context.Context, hash, filename string) ([]Doc, error) {
	out, err := a.run(ctx, "parse-docs", hash, filename)
	if err != nil {
		return nil, err
	}
	var docs []Doc
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			return nil, fmt.Errorf("%w: malformed parse-docs line %q", xrerrors.ErrParserFailure, line)
		}
		n, err := strconv.ParseUint(fields[1], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: parse-docs line number %q: %v", xrerrors.ErrParserFailure, fields[1], err)
		}
		docs = append(docs, Doc{Ident: fields[0], Line: uint32(n)})
	}
	return docs, nil
}
