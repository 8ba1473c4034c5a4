// Package vcsadapter implements C1, the external repository adapter of
// spec §6: a line-protocol wrapper around a family of `<project>-data`
// sub-commands, each run as a child process, stdout split on "\n" with
// the trailing empty line discarded. It is grounded on the teacher's
// subprocess-free style generalized from its stage-pipeline shelling
// pattern (none of turbo-geth shells out, but its structured logging and
// context-cancellation idiom carries over directly) and on
// ImGajeed76-pgit's os/exec + context.WithTimeout usage for external VCS
// commands.
package vcsadapter

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"golang.org/x/time/rate"

	"github.com/bootlin/elixir/internal/logx"
	"github.com/bootlin/elixir/internal/xrerrors"
)

// Entry is one `<topmenu> <submenu> <tag>` line from `list-tags -h`
// (spec §6). A two-field line sets Topmenu and Tag and leaves Submenu
// empty; a one-field line sets only Tag.
type Entry struct {
	Topmenu string
	Submenu string
	Tag     string
}

// BlobRef is one `<hash> <basename>` or `<hash> <path>` line from
// list-blobs (spec §6).
type BlobRef struct {
	Hash string
	Name string // basename (list-blobs -f) or full path (list-blobs -p)
}

// DirEntry is one `<type> <name> <size> <mode>` line from get-dir.
type DirEntry struct {
	Type string // "blob" or "tree"
	Name string
	Size int64
	Mode string
}

// Adapter shells out to the project's data-backend script, one
// sub-process per call. Every call passes through a rate.Limiter, but
// that limiter has an infinite rate, so calls are neither throttled nor
// bounded in number.
type Adapter struct {
	scriptPath string
	limiter    *rate.Limiter
	log        *logx.Logger
}

// New builds an Adapter invoking scriptPath as `scriptPath <subcommand>
// <args...>`. maxConcurrent becomes the burst of a rate.Inf limiter, whose
// Wait never blocks, so it does not bound the number of in-flight
// subprocesses.
func New(scriptPath string, maxConcurrent int) *Adapter {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Adapter{
		scriptPath: scriptPath,
		limiter:    rate.NewLimiter(rate.Inf, maxConcurrent),
		log:        logx.With("component", "vcsadapter"),
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
		a.log.Error("vcs subcommand failed", "args", args, "stderr", stderr.String(), "err", err)
		return nil, fmt.Errorf("%w: vcs command %v: %v: %s", xrerrors.ErrCorruption, args, err, stderr.String())
	}
	return stdout.Bytes(), nil
}

// splitLines splits on "\n" and discards the trailing empty line (spec
// §6: "the core reads stdout and splits on \n, discarding the trailing
// empty line").
func splitLines(out []byte) []string {
	s := string(out)
	s = strings.TrimSuffix(s, "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

// ListTags returns every tag, without topmenu/submenu grouping.
func (a *Adapter) ListTags(ctx context.Context) ([]string, error) {
	out, err := a.run(ctx, "list-tags")
	if err != nil {
		return nil, err
	}
	return splitLines(out), nil
}

// ListTagsGrouped returns every tag with its topmenu/submenu grouping
// (spec §6 `list-tags -h`; SPEC_FULL.md supplemented feature: "versions
// topmenu/submenu grouping").
func (a *Adapter) ListTagsGrouped(ctx context.Context) ([]Entry, error) {
	out, err := a.run(ctx, "list-tags", "-h")
	if err != nil {
		return nil, err
	}
	lines := splitLines(out)
	entries := make([]Entry, 0, len(lines))
	for _, l := range lines {
		fields := strings.SplitN(l, " ", 3)
		var e Entry
		switch len(fields) {
		case 1:
			e.Tag = fields[0]
		case 2:
			e.Topmenu, e.Tag = fields[0], fields[1]
		case 3:
			e.Topmenu, e.Submenu, e.Tag = fields[0], fields[1], fields[2]
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// GetLatestTags returns tags sorted newest-first, excluding release
// candidates (spec §6 `get-latest-tags`).
func (a *Adapter) GetLatestTags(ctx context.Context) ([]string, error) {
	out, err := a.run(ctx, "get-latest-tags")
	if err != nil {
		return nil, err
	}
	return splitLines(out), nil
}

// ListBlobsByFilename returns `<hash> <basename>` pairs for tag (spec §6
// `list-blobs -f <tag>`), consumed by the Ids stage.
func (a *Adapter) ListBlobsByFilename(ctx context.Context, tag string) ([]BlobRef, error) {
	return a.listBlobs(ctx, "-f", tag)
}

// ListBlobsByPath returns `<hash> <path>` pairs for tag (spec §6
// `list-blobs -p <tag>`), consumed by the Versions stage.
func (a *Adapter) ListBlobsByPath(ctx context.Context, tag string) ([]BlobRef, error) {
	return a.listBlobs(ctx, "-p", tag)
}

func (a *Adapter) listBlobs(ctx context.Context, flag, tag string) ([]BlobRef, error) {
	out, err := a.run(ctx, "list-blobs", flag, tag)
	if err != nil {
		return nil, err
	}
	lines := splitLines(out)
	refs := make([]BlobRef, 0, len(lines))
	for _, l := range lines {
		hash, name, ok := cutSpace(l)
		if !ok {
			continue
		}
		refs = append(refs, BlobRef{Hash: hash, Name: name})
	}
	return refs, nil
}

// GetType reports whether path is a "blob" or "tree" at tag (spec §6
// `get-type <tag> <path>`).
func (a *Adapter) GetType(ctx context.Context, tag, path string) (string, error) {
	out, err := a.run(ctx, "get-type", tag, path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// GetDir lists the entries of a directory at tag (spec §6 `get-dir <tag>
// <path>`).
func (a *Adapter) GetDir(ctx context.Context, tag, path string) ([]DirEntry, error) {
	out, err := a.run(ctx, "get-dir", tag, path)
	if err != nil {
		return nil, err
	}
	var entries []DirEntry
	sc := bufio.NewScanner(strings.NewReader(string(out)))
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 4 {
			return nil, fmt.Errorf("%w: malformed get-dir entry %q", xrerrors.ErrCorruption, line)
		}
		size, err := strconv.ParseInt(fields[2], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: get-dir size field %q: %v", xrerrors.ErrCorruption, fields[2], err)
		}
		entries = append(entries, DirEntry{Type: fields[0], Name: fields[1], Size: size, Mode: fields[3]})
	}
	return entries, nil
}

// GetFile returns the raw bytes of path at tag (spec §6 `get-file <tag>
// <path>`).
func (a *Adapter) GetFile(ctx context.Context, tag, path string) ([]byte, error) {
	return a.run(ctx, "get-file", tag, path)
}

// GetBlob returns the raw bytes of the blob identified by hash (spec §6
// `get-blob <hash>`).
func (a *Adapter) GetBlob(ctx context.Context, hash string) ([]byte, error) {
	return a.run(ctx, "get-blob", hash)
}

// DTCompEnabled reports whether DT-compatible indexing is enabled in
// this project's configuration (spec §6 `dts-comp`).
func (a *Adapter) DTCompEnabled(ctx context.Context) (bool, error) {
	out, err := a.run(ctx, "dts-comp")
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(string(out)) == "1", nil
}

// cutSpace splits "hash name-with-possible-spaces" on the first space,
// matching the <hash> <basename-or-path> shape of list-blobs output.
func cutSpace(s string) (head, rest string, ok bool) {
	i := strings.IndexByte(s, ' ')
	if i < 0 {
		return "", "", false
	}
	return s[:i], s[i+1:], true
}
