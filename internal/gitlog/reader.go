// Package gitlog implements RepoReader (spec.md §4.1): it opens a
// repository by shelling out to the git binary — the same plumbing
// approach the teacher's internal/workspace/git_graph.go uses for its own
// git log parsing — and emits a model.RepoData.
package gitlog

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/sergeknystautas/arachne/internal/model"
)

// logFormat emits, separated by the ASCII unit separator (\x1f): full hash,
// parent hashes (space separated), author name, author email, committer
// time (unix seconds), and the raw subject+body. Each record ends with the
// record separator (\x1e), so multi-line messages survive the split.
const logFormat = "%H%x1f%P%x1f%an%x1f%ae%x1f%ct%x1f%B%x1e"

const recordSep = "\x1e"
const fieldSep = "\x1f"

// Reader reads a repository's commit graph via the git CLI.
type Reader struct {
	// GitBinary overrides the git executable name, for tests.
	GitBinary string
}

// New returns a Reader using the "git" binary found on PATH.
func New() *Reader {
	return &Reader{GitBinary: "git"}
}

func (r *Reader) bin() string {
	if r.GitBinary != "" {
		return r.GitBinary
	}
	return "git"
}

// ReadRepo opens the repository at path and walks up to maxCommits commits
// reachable from the union of all branch and tag tips, per spec.md §4.1.
func (r *Reader) ReadRepo(ctx context.Context, path string, maxCommits int) (*model.RepoData, error) {
	if maxCommits <= 0 {
		maxCommits = 500
	}

	if err := r.checkRepo(ctx, path); err != nil {
		return nil, err
	}

	branches, err := r.listBranches(ctx, path)
	if err != nil {
		// Partial data is acceptable per spec.md §4.1 ("emit partial RepoData
		// when recoverable"); ref enumeration failure on an otherwise-openable
		// repo still lets us proceed with zero branches.
		branches = nil
	}

	tips := make([]string, 0, len(branches))
	tipSet := make(map[string]struct{}, len(branches))
	for _, b := range branches {
		h := b.Tip.String()
		if _, ok := tipSet[h]; ok {
			continue
		}
		tipSet[h] = struct{}{}
		tips = append(tips, h)
	}

	if len(tips) == 0 {
		// Unborn or detached-to-missing HEAD with no other refs: still try
		// HEAD itself, falling back to an empty result if that fails too.
		if head, herr := r.resolve(ctx, path, "HEAD"); herr == nil {
			tips = append(tips, head)
		} else {
			return &model.RepoData{Commits: nil, Branches: branches, Tips: map[model.Oid]struct{}{}}, nil
		}
	}

	commits, err := r.walk(ctx, path, tips, maxCommits)
	if err != nil {
		return nil, model.WrapError(model.ErrWalk, err, "walk commits")
	}

	tipOids := make(map[model.Oid]struct{}, len(tips))
	for _, h := range tips {
		if oid, perr := model.ParseOid(h); perr == nil {
			tipOids[oid] = struct{}{}
		}
	}

	return &model.RepoData{Commits: commits, Branches: branches, Tips: tipOids}, nil
}

func (r *Reader) checkRepo(ctx context.Context, path string) error {
	cmd := exec.CommandContext(ctx, r.bin(), "rev-parse", "--git-dir")
	cmd.Dir = path
	if out, err := cmd.CombinedOutput(); err != nil {
		return model.WrapError(model.ErrRepoOpen, err, fmt.Sprintf("open repository at %s: %s", path, strings.TrimSpace(string(out))))
	}
	return nil
}

func (r *Reader) resolve(ctx context.Context, path, ref string) (string, error) {
	cmd := exec.CommandContext(ctx, r.bin(), "rev-parse", "--verify", ref)
	cmd.Dir = path
	out, err := cmd.Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// refListing is one line of `git for-each-ref` output.
type refListing struct {
	name string
	oid  string
	kind model.BranchKind
}

func (r *Reader) listBranches(ctx context.Context, path string) ([]model.BranchInfo, error) {
	cmd := exec.CommandContext(ctx, r.bin(), "for-each-ref",
		"--format=%(refname)%1f%(objectname)",
		"refs/heads", "refs/remotes", "refs/tags")
	cmd.Dir = path
	out, err := cmd.Output()
	if err != nil {
		return nil, errors.Wrap(err, "for-each-ref")
	}

	var branches []model.BranchInfo
	scanner := bufio.NewScanner(strings.NewReader(string(out)))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, fieldSep, 2)
		if len(parts) != 2 {
			continue
		}
		refname, hash := parts[0], parts[1]
		oid, perr := model.ParseOid(hash)
		if perr != nil {
			continue
		}

		bi, ok := classifyRef(refname, oid)
		if !ok {
			continue
		}
		branches = append(branches, bi)
	}
	return branches, scanner.Err()
}

func classifyRef(refname string, oid model.Oid) (model.BranchInfo, bool) {
	switch {
	case strings.HasPrefix(refname, "refs/heads/"):
		name := strings.TrimPrefix(refname, "refs/heads/")
		return model.BranchInfo{Name: name, Tip: oid, Kind: model.BranchLocal}, true
	case strings.HasPrefix(refname, "refs/remotes/"):
		rest := strings.TrimPrefix(refname, "refs/remotes/")
		seg := strings.SplitN(rest, "/", 2)
		if len(seg) != 2 || seg[1] == "HEAD" {
			return model.BranchInfo{}, false
		}
		return model.BranchInfo{Name: seg[1], Tip: oid, Kind: model.BranchRemote, RemotePrefix: seg[0]}, true
	case strings.HasPrefix(refname, "refs/tags/"):
		name := strings.TrimPrefix(refname, "refs/tags/")
		return model.BranchInfo{Name: name, Tip: oid, Kind: model.BranchTag}, true
	default:
		return model.BranchInfo{}, false
	}
}

func (r *Reader) walk(ctx context.Context, path string, tips []string, maxCommits int) ([]model.CommitInfo, error) {
	args := []string{"log",
		"--format=" + logFormat,
		"--date-order",
		fmt.Sprintf("--max-count=%d", maxCommits),
	}
	args = append(args, tips...)

	cmd := exec.CommandContext(ctx, r.bin(), args...)
	cmd.Dir = path
	out, err := cmd.Output()
	if err != nil {
		if ee, ok := err.(*exec.ExitError); ok {
			return nil, errors.Errorf("git log: %v: %s", err, string(ee.Stderr))
		}
		return nil, errors.Wrap(err, "git log")
	}

	return parseLog(string(out)), nil
}

// parseLog splits git log output on the record separator (git emits
// \x1e at the end of %B's trailing newline, so entries are clean) and
// parses each record's fields.
func parseLog(output string) []model.CommitInfo {
	records := strings.Split(output, recordSep)
	commits := make([]model.CommitInfo, 0, len(records))
	seen := make(map[model.Oid]struct{}, len(records))

	for _, rec := range records {
		rec = strings.Trim(rec, "\n")
		if rec == "" {
			continue
		}
		fields := strings.SplitN(rec, fieldSep, 6)
		if len(fields) != 6 {
			continue
		}

		oid, err := model.ParseOid(fields[0])
		if err != nil {
			continue
		}
		if _, dup := seen[oid]; dup {
			continue
		}
		seen[oid] = struct{}{}

		var parents []model.Oid
		if fields[1] != "" {
			for _, p := range strings.Fields(fields[1]) {
				if poid, perr := model.ParseOid(p); perr == nil {
					parents = append(parents, poid)
				}
			}
		}

		ctime, _ := strconv.ParseInt(strings.TrimSpace(fields[4]), 10, 64)
		message := fields[5]

		commits = append(commits, model.CommitInfo{
			Oid:           oid,
			Parents:       parents,
			AuthorName:    fields[2],
			AuthorEmail:   fields[3],
			CommitterTime: ctime,
			Summary:       model.SanitizeSummary(message),
			Message:       message,
		})
	}
	return commits
}

// WorkingTreeStatus runs `git status --porcelain` for the additive
// dirty-state annotation described in SPEC_FULL.md §4.
func (r *Reader) WorkingTreeStatus(ctx context.Context, path string) (model.WorkingTreeStatus, error) {
	cmd := exec.CommandContext(ctx, r.bin(), "status", "--porcelain")
	cmd.Dir = path
	out, err := cmd.Output()
	if err != nil {
		return model.WorkingTreeStatus{}, model.WrapError(model.ErrRepoOpen, err, "git status")
	}

	var status model.WorkingTreeStatus
	scanner := bufio.NewScanner(strings.NewReader(string(out)))
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		status.FilesChanged++
	}

	diffCmd := exec.CommandContext(ctx, r.bin(), "diff", "--shortstat", "HEAD")
	diffCmd.Dir = path
	if diffOut, derr := diffCmd.Output(); derr == nil {
		added, removed := parseShortstat(string(diffOut))
		status.LinesAdded += added
		status.LinesRemoved += removed
	}

	return status, nil
}

func parseShortstat(s string) (added, removed int) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, 0
	}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		switch {
		case strings.Contains(part, "insertion"):
			fmt.Sscanf(part, "%d", &added)
		case strings.Contains(part, "deletion"):
			fmt.Sscanf(part, "%d", &removed)
		}
	}
	return added, removed
}
