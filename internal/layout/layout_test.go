package layout

import (
	"testing"

	"github.com/sergeknystautas/arachne/internal/branch"
	"github.com/sergeknystautas/arachne/internal/dag"
	"github.com/sergeknystautas/arachne/internal/model"
)

func oid(b byte) model.Oid {
	var o model.Oid
	o[0] = b
	return o
}

func commit(o model.Oid, t int64, parents ...model.Oid) model.CommitInfo {
	return model.CommitInfo{Oid: o, CommitterTime: t, Parents: parents}
}

// Scenario 1 (spec.md §8): A(t=100, no parents), B(t=200, parent=A);
// branch main -> B, trunk_branches=["main"]. Expected: B at lane 0 (newest
// first), A at lane 0, vertical edge between them, both identity main.
func TestCompute_Scenario1(t *testing.T) {
	a, b := oid(1), oid(2)
	data := &model.RepoData{Commits: []model.CommitInfo{
		commit(a, 100),
		commit(b, 200, a),
	}}
	d := dag.FromRepoData(data)
	branches := []model.BranchInfo{{Name: "main", Tip: b, Kind: model.BranchLocal}}
	identities := branch.Assign(d, branches, []string{"main"})

	rows := Compute(d, identities, branches, []string{"main"})

	if len(rows) != 2 {
		t.Fatalf("len(rows) = %d, want 2", len(rows))
	}
	if rows[0].Oid != b || rows[1].Oid != a {
		t.Fatalf("rows order = [%v %v], want [b a] (newest first)", rows[0].Oid, rows[1].Oid)
	}
	if rows[0].Lane != 0 || rows[1].Lane != 0 {
		t.Errorf("lanes = [%d %d], want [0 0]", rows[0].Lane, rows[1].Lane)
	}
	if rows[0].Identity.Name != "main" || rows[1].Identity.Name != "main" {
		t.Errorf("identities = [%q %q], want [main main]", rows[0].Identity.Name, rows[1].Identity.Name)
	}

	found := false
	for _, e := range rows[0].Edges {
		if e.ToLane == 0 && e.Direction == model.EdgeVertical {
			found = true
		}
	}
	if !found {
		t.Errorf("row[0].Edges = %+v, want a vertical edge to lane 0", rows[0].Edges)
	}
}

// Scenario 2 (spec.md §8): A, B parent A, C parent A, M parents [B, C];
// main -> M, feature -> C, trunk=["main"]. B and C tie on time, and with
// these oids the oid tie-break puts C above B, so rows top-down are
// M(lane 0, Merge), C(1), B(0), A(0); diagonal segment from M to C's lane.
func TestCompute_Scenario2_MergeWithDivergentParent(t *testing.T) {
	a, b, c, m := oid(1), oid(2), oid(3), oid(4)
	data := &model.RepoData{Commits: []model.CommitInfo{
		commit(a, 100),
		commit(b, 200, a),
		commit(c, 200, a),
		commit(m, 300, b, c),
	}}
	d := dag.FromRepoData(data)
	branches := []model.BranchInfo{
		{Name: "main", Tip: m, Kind: model.BranchLocal},
		{Name: "feature", Tip: c, Kind: model.BranchLocal},
	}
	identities := branch.Assign(d, branches, []string{"main"})

	rows := Compute(d, identities, branches, []string{"main"})

	if len(rows) != 4 {
		t.Fatalf("len(rows) = %d, want 4", len(rows))
	}
	if rows[0].Oid != m {
		t.Fatalf("rows[0] = %v, want m", rows[0].Oid)
	}
	if rows[0].Lane != 0 || !rows[0].IsMerge {
		t.Errorf("m: lane=%d isMerge=%v, want lane 0 merge", rows[0].Lane, rows[0].IsMerge)
	}

	var diagonal bool
	for _, e := range rows[0].Edges {
		if e.Direction == model.EdgeDiagonal {
			diagonal = true
		}
	}
	if !diagonal {
		t.Errorf("m.Edges = %+v, want a diagonal edge toward c's lane", rows[0].Edges)
	}
}

func TestCompute_TrunkLaneReservedExclusively(t *testing.T) {
	a, b, f := oid(1), oid(2), oid(3)
	data := &model.RepoData{Commits: []model.CommitInfo{
		commit(a, 100),
		commit(b, 200, a),
		commit(f, 150, a),
	}}
	d := dag.FromRepoData(data)
	branches := []model.BranchInfo{
		{Name: "main", Tip: b, Kind: model.BranchLocal},
		{Name: "feature", Tip: f, Kind: model.BranchLocal},
	}
	identities := branch.Assign(d, branches, []string{"main"})
	rows := Compute(d, identities, branches, []string{"main"})

	for _, row := range rows {
		if row.Identity.Name == "main" && row.Lane != 0 {
			t.Errorf("main commit %v at lane %d, want 0", row.Oid, row.Lane)
		}
		if row.Identity.Name != "main" && row.Lane == 0 {
			t.Errorf("non-main commit %v occupies reserved lane 0", row.Oid)
		}
	}
}

func TestCompute_EmptyRepo(t *testing.T) {
	d := dag.FromRepoData(&model.RepoData{})
	rows := Compute(d, map[model.Oid]model.BranchIdentity{}, nil, nil)
	if len(rows) != 0 {
		t.Errorf("len(rows) = %d, want 0", len(rows))
	}
}

func TestCompute_SingleCommitNoBranch(t *testing.T) {
	a := oid(1)
	data := &model.RepoData{Commits: []model.CommitInfo{commit(a, 100)}}
	d := dag.FromRepoData(data)
	identities := branch.Assign(d, nil, nil)

	rows := Compute(d, identities, nil, nil)
	if len(rows) != 1 {
		t.Fatalf("len(rows) = %d, want 1", len(rows))
	}
	if rows[0].Lane != 0 {
		t.Errorf("lane = %d, want 0", rows[0].Lane)
	}
	if rows[0].Identity.Name != model.OrphanIdentity {
		t.Errorf("identity = %q, want orphan", rows[0].Identity.Name)
	}
}

func TestCompute_DanglingParentMarksRowDangling(t *testing.T) {
	child := oid(2)
	missingParent := oid(1)
	data := &model.RepoData{Commits: []model.CommitInfo{
		commit(child, 200, missingParent),
	}}
	d := dag.FromRepoData(data)
	identities := branch.Assign(d, nil, nil)

	rows := Compute(d, identities, nil, nil)
	if len(rows) != 1 {
		t.Fatalf("len(rows) = %d, want 1", len(rows))
	}
	if !rows[0].Dangling {
		t.Error("row.Dangling = false, want true (parent not in graph)")
	}
}

func TestCompute_CellsCoverOwnLaneWithNodeOrMerge(t *testing.T) {
	a, b, f := oid(1), oid(2), oid(3)
	data := &model.RepoData{Commits: []model.CommitInfo{
		commit(a, 100),
		commit(b, 200, a),
		commit(f, 150, a),
	}}
	d := dag.FromRepoData(data)
	branches := []model.BranchInfo{
		{Name: "main", Tip: b, Kind: model.BranchLocal},
		{Name: "feature", Tip: f, Kind: model.BranchLocal},
	}
	identities := branch.Assign(d, branches, []string{"main"})
	rows := Compute(d, identities, branches, []string{"main"})

	for _, row := range rows {
		if len(row.Cells) != row.Lane+1 && len(row.Cells) <= row.Lane {
			t.Errorf("row %v: len(Cells)=%d <= Lane=%d", row.Oid, len(row.Cells), row.Lane)
		}
		sym := row.Cells[row.Lane].Symbol
		if sym != model.CellNode && sym != model.CellMerge {
			t.Errorf("row %v: cell at its own lane = %v, want Node or Merge", row.Oid, sym)
		}
	}
}
