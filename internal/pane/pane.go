// Package pane implements PaneModel (spec.md §4.7): per-pane cached
// pipeline state plus view state (selection, viewport, filters).
package pane

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/sergeknystautas/arachne/internal/branch"
	"github.com/sergeknystautas/arachne/internal/dag"
	"github.com/sergeknystautas/arachne/internal/filter"
	"github.com/sergeknystautas/arachne/internal/forge"
	"github.com/sergeknystautas/arachne/internal/gitlog"
	"github.com/sergeknystautas/arachne/internal/layout"
	"github.com/sergeknystautas/arachne/internal/model"
)

// PaneModel holds one repository's pipeline outputs and view state.
type PaneModel struct {
	ID   string
	Name string

	RepoPath   string
	MaxCommits int
	TrunkOrder []string

	// ShowForks gates whether Fork-kind branches (spec.md §6) are included
	// in branch assignment and layout. Defaults to true in New.
	ShowForks bool

	reader *gitlog.Reader

	repoData   *model.RepoData
	dag        *dag.Dag
	identities map[model.Oid]model.BranchIdentity
	branches   []model.BranchInfo // post-filter branch list currently backing layout

	filterPredicate func(model.Oid) bool
	filterActive    bool

	Rows         []model.GraphRow
	timeIndex    []int // indices into Rows sorted by committer time ascending
	Viewport     int
	Selection    int
	ViewportSize int

	LastError *model.Error
	Status    model.WorkingTreeStatus
}

// New creates a pane for repoPath. name defaults to a random identifier
// (per the teacher's use of google/uuid for entity IDs) when empty.
func New(repoPath string, maxCommits int, trunkOrder []string, name string) *PaneModel {
	if name == "" {
		name = uuid.NewString()
	}
	return &PaneModel{
		ID:           uuid.NewString(),
		Name:         name,
		RepoPath:     repoPath,
		MaxCommits:   maxCommits,
		TrunkOrder:   trunkOrder,
		ShowForks:    true,
		reader:       gitlog.New(),
		ViewportSize: 20,
	}
}

// RebuildFromRepo re-runs RepoReader -> Dag -> (Filter) -> Assign -> Layout.
func (p *PaneModel) RebuildFromRepo(ctx context.Context) error {
	data, err := p.reader.ReadRepo(ctx, p.RepoPath, p.MaxCommits)
	if err != nil {
		p.setError(err)
		return err
	}
	p.repoData = data
	p.dag = dag.FromRepoData(data)

	if status, serr := p.reader.WorkingTreeStatus(ctx, p.RepoPath); serr == nil {
		p.Status = status
	}

	p.recompute()
	p.LastError = nil
	return nil
}

// ApplyFilter re-runs Filter -> Assign -> Layout against the cached Dag;
// the repository is not re-read.
func (p *PaneModel) ApplyFilter(predicate func(model.Oid) bool) {
	p.filterPredicate = predicate
	p.filterActive = true
	p.recompute()
}

// ClearFilter removes any active author filter and re-runs Assign -> Layout.
func (p *PaneModel) ClearFilter() {
	p.filterPredicate = nil
	p.filterActive = false
	p.recompute()
}

// MergeForge merges a normalized forge payload into the cached Dag, then
// re-runs Assign -> Layout.
func (p *PaneModel) MergeForge(net *forge.ForgeNetwork) error {
	if p.dag == nil {
		return model.NewError(model.ErrWalk, "merge_forge called before an initial rebuild")
	}
	if err := forge.MergeInto(p.dag, net); err != nil {
		p.setError(err)
		return err
	}
	p.recompute()
	return nil
}

// recompute runs whichever of Assign/Filter/Layout are needed against the
// cached Dag and writes the new Rows, preserving selection/viewport by oid.
func (p *PaneModel) recompute() {
	if p.dag == nil {
		return
	}

	prevOid, hadSelection := p.selectedOid()
	prevTime := p.SelectedTime()

	baseBranches := p.repoData.Branches
	if !p.ShowForks {
		baseBranches = excludeForks(baseBranches)
	}

	workingDag := p.dag
	workingBranches := baseBranches

	if p.filterActive && p.filterPredicate != nil {
		result := filter.Apply(p.dag, p.filterPredicate, baseBranches)
		workingDag = result.Dag
		workingBranches = result.Branches
	}

	identities := branch.Assign(workingDag, workingBranches, p.TrunkOrder)
	rows := layout.Compute(workingDag, identities, workingBranches, p.TrunkOrder)

	p.identities = identities
	p.branches = workingBranches
	p.Rows = rows
	p.rebuildTimeIndex()

	p.restoreSelection(prevOid, hadSelection, prevTime)
}

func (p *PaneModel) rebuildTimeIndex() {
	idx := make([]int, len(p.Rows))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool {
		return p.Rows[idx[a]].Time < p.Rows[idx[b]].Time
	})
	p.timeIndex = idx
}

func (p *PaneModel) selectedOid() (model.Oid, bool) {
	if p.Selection < 0 || p.Selection >= len(p.Rows) {
		return model.Oid{}, false
	}
	return p.Rows[p.Selection].Oid, true
}

// restoreSelection moves selection to the row whose oid matches prevOid;
// if absent, to the row nearest by committer time; then adjusts the
// viewport to keep selection on screen (spec.md §4.7).
func (p *PaneModel) restoreSelection(prevOid model.Oid, had bool, prevTime int64) {
	if len(p.Rows) == 0 {
		p.Selection = 0
		p.Viewport = 0
		return
	}

	newSelection := 0
	found := false
	if had {
		for i, r := range p.Rows {
			if r.Oid == prevOid {
				newSelection = i
				found = true
				break
			}
		}
	}
	if !found && had {
		// The previously selected commit is gone (filtered out, or beyond
		// the walker cutoff after a rebuild); search Rows directly by
		// absolute time difference, breaking ties toward the smaller index
		// (spec.md §4.7).
		best := 0
		bestDiff := abs64(p.Rows[0].Time - prevTime)
		for i := 1; i < len(p.Rows); i++ {
			d := abs64(p.Rows[i].Time - prevTime)
			if d < bestDiff {
				best = i
				bestDiff = d
			}
		}
		newSelection = best
	}

	p.Selection = newSelection
	p.adjustViewport()
}

func (p *PaneModel) adjustViewport() {
	if p.ViewportSize <= 0 {
		return
	}
	if p.Selection < p.Viewport {
		p.Viewport = p.Selection
	}
	if p.Selection >= p.Viewport+p.ViewportSize {
		p.Viewport = p.Selection - p.ViewportSize + 1
	}
	if p.Viewport < 0 {
		p.Viewport = 0
	}
}

// FindClosestByTime returns the row index whose Time is nearest ts,
// breaking ties toward the smaller row index, via binary search on the
// time-sorted index (spec.md §4.7, §8).
func (p *PaneModel) FindClosestByTime(ts int64) int {
	if len(p.timeIndex) == 0 {
		return 0
	}
	n := len(p.timeIndex)
	i := sort.Search(n, func(i int) bool {
		return p.Rows[p.timeIndex[i]].Time >= ts
	})

	// Rows sharing a time sit in no particular order within timeIndex, so
	// each candidate is the smallest row index among its equal-time run.
	candidates := make([]int, 0, 2)
	if i < n {
		c := p.timeIndex[i]
		for j := i + 1; j < n && p.Rows[p.timeIndex[j]].Time == p.Rows[c].Time; j++ {
			if p.timeIndex[j] < c {
				c = p.timeIndex[j]
			}
		}
		candidates = append(candidates, c)
	}
	if i > 0 {
		c := p.timeIndex[i-1]
		for j := i - 2; j >= 0 && p.Rows[p.timeIndex[j]].Time == p.Rows[c].Time; j-- {
			if p.timeIndex[j] < c {
				c = p.timeIndex[j]
			}
		}
		candidates = append(candidates, c)
	}
	if len(candidates) == 0 {
		return 0
	}

	best := candidates[0]
	bestDiff := abs64(p.Rows[best].Time - ts)
	for _, c := range candidates[1:] {
		d := abs64(p.Rows[c].Time - ts)
		if d < bestDiff || (d == bestDiff && c < best) {
			best = c
			bestDiff = d
		}
	}
	return best
}

// SyncToTime moves Selection to the row closest to ts by committer time
// (ties favor the smaller row index, per FindClosestByTime) and adjusts the
// viewport to keep it on screen. The event loop calls this on every pane
// but the active one each frame, keeping multi-pane viewports
// time-synchronized (spec.md §1, §4.7, §8 scenario 5) without panes ever
// holding a pointer to each other (spec.md §9) — the driver reads the
// active pane's SelectedTime and pushes it into peers from the outside.
func (p *PaneModel) SyncToTime(ts int64) {
	if len(p.Rows) == 0 {
		return
	}
	p.Selection = p.FindClosestByTime(ts)
	p.adjustViewport()
}

// SelectedTime returns the committer time of the selected row.
func (p *PaneModel) SelectedTime() int64 {
	if p.Selection < 0 || p.Selection >= len(p.Rows) {
		return 0
	}
	return p.Rows[p.Selection].Time
}

// MoveSelection shifts Selection by delta rows, clamped to [0, len(Rows)),
// and adjusts the viewport to keep it on screen. This is the one piece of
// input-driven state change PaneModel itself owns; decoding which key maps
// to which delta is the consumer's job (spec.md §1).
func (p *PaneModel) MoveSelection(delta int) {
	if len(p.Rows) == 0 {
		return
	}
	next := p.Selection + delta
	if next < 0 {
		next = 0
	}
	if next >= len(p.Rows) {
		next = len(p.Rows) - 1
	}
	p.Selection = next
	p.adjustViewport()
}

func (p *PaneModel) setError(err error) {
	if e, ok := err.(*model.Error); ok {
		p.LastError = e
		return
	}
	p.LastError = model.WrapError(model.ErrWalk, err, "pane rebuild failed")
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

// excludeForks drops Fork-kind branches, for show_forks=false (spec.md §6:
// "Include fork-kind branches in layout"). Commits unique to a dropped
// fork simply go unreached by branch.Assign and land in the orphan
// identity rather than being removed from the Dag outright.
func excludeForks(branches []model.BranchInfo) []model.BranchInfo {
	kept := make([]model.BranchInfo, 0, len(branches))
	for _, b := range branches {
		if b.Kind == model.BranchFork {
			continue
		}
		kept = append(kept, b)
	}
	return kept
}
