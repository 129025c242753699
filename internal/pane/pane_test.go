package pane

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/sergeknystautas/arachne/internal/model"
)

func runGit(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(),
		"GIT_AUTHOR_NAME=Test", "GIT_AUTHOR_EMAIL=test@example.com",
		"GIT_COMMITTER_NAME=Test", "GIT_COMMITTER_EMAIL=test@example.com",
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("git %v failed: %v\n%s", args, err, out)
	}
}

func initRepoWithCommits(t *testing.T, n int) string {
	t.Helper()
	dir := t.TempDir()
	runGit(t, dir, "init", "-q", "-b", "main")
	for i := 0; i < n; i++ {
		name := filepath.Join(dir, "a.txt")
		if err := os.WriteFile(name, []byte{byte('a' + i)}, 0644); err != nil {
			t.Fatalf("write file: %v", err)
		}
		runGit(t, dir, "add", "a.txt")
		runGit(t, dir, "commit", "-q", "-m", "commit")
	}
	return dir
}

func TestRebuildFromRepo_PopulatesRows(t *testing.T) {
	dir := initRepoWithCommits(t, 3)
	p := New(dir, 500, []string{"main"}, "test-pane")

	if err := p.RebuildFromRepo(context.Background()); err != nil {
		t.Fatalf("RebuildFromRepo() error: %v", err)
	}
	if len(p.Rows) != 3 {
		t.Fatalf("len(Rows) = %d, want 3", len(p.Rows))
	}
	if p.LastError != nil {
		t.Errorf("LastError = %v, want nil", p.LastError)
	}
}

func TestRebuildFromRepo_PreservesSelectionByOid(t *testing.T) {
	dir := initRepoWithCommits(t, 3)
	p := New(dir, 500, []string{"main"}, "")
	if err := p.RebuildFromRepo(context.Background()); err != nil {
		t.Fatalf("RebuildFromRepo() error: %v", err)
	}

	p.Selection = 1
	selectedOid := p.Rows[1].Oid

	if err := p.RebuildFromRepo(context.Background()); err != nil {
		t.Fatalf("second RebuildFromRepo() error: %v", err)
	}
	if p.Rows[p.Selection].Oid != selectedOid {
		t.Errorf("selection after rebuild points at %v, want %v", p.Rows[p.Selection].Oid, selectedOid)
	}
}

func TestApplyFilterAndClearFilter(t *testing.T) {
	dir := initRepoWithCommits(t, 3)
	p := New(dir, 500, []string{"main"}, "")
	if err := p.RebuildFromRepo(context.Background()); err != nil {
		t.Fatalf("RebuildFromRepo() error: %v", err)
	}

	excluded := p.Rows[0].Oid
	p.ApplyFilter(func(o model.Oid) bool { return o != excluded })
	if len(p.Rows) != 2 {
		t.Fatalf("after filter len(Rows) = %d, want 2", len(p.Rows))
	}

	p.ClearFilter()
	if len(p.Rows) != 3 {
		t.Fatalf("after clear filter len(Rows) = %d, want 3", len(p.Rows))
	}
}

func TestShowForksExcludesForkBranches(t *testing.T) {
	dir := initRepoWithCommits(t, 2)
	p := New(dir, 500, []string{"main"}, "")
	if err := p.RebuildFromRepo(context.Background()); err != nil {
		t.Fatalf("RebuildFromRepo() error: %v", err)
	}

	p.repoData.Branches = append(p.repoData.Branches, model.BranchInfo{
		Name: "fork/feature",
		Tip:  p.Rows[0].Oid,
		Kind: model.BranchFork,
	})

	p.ShowForks = true
	p.ClearFilter()
	if !containsForkKind(p.branches) {
		t.Error("branches after recompute lack the fork branch with ShowForks=true")
	}

	p.ShowForks = false
	p.ClearFilter()
	if containsForkKind(p.branches) {
		t.Error("branches after recompute still include a fork branch with ShowForks=false")
	}
}

func containsForkKind(branches []model.BranchInfo) bool {
	for _, b := range branches {
		if b.Kind == model.BranchFork {
			return true
		}
	}
	return false
}

func TestFindClosestByTime(t *testing.T) {
	dir := initRepoWithCommits(t, 4)
	p := New(dir, 500, []string{"main"}, "")
	if err := p.RebuildFromRepo(context.Background()); err != nil {
		t.Fatalf("RebuildFromRepo() error: %v", err)
	}

	target := p.Rows[2].Time
	idx := p.FindClosestByTime(target)
	if p.Rows[idx].Time != target {
		t.Errorf("FindClosestByTime(%d) = row with time %d, want exact match", target, p.Rows[idx].Time)
	}
}
