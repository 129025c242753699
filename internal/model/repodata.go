package model

// RepoData is the output of RepoReader: a deduplicated commit set plus the
// refs pointing into it.
type RepoData struct {
	Commits  []CommitInfo
	Branches []BranchInfo
	Tips     map[Oid]struct{} // tip oids; a tip may be dangling (not in Commits)
}

// WorkingTreeStatus is an additive annotation (not in the distilled spec's
// PaneState, see SPEC_FULL.md §4) describing uncommitted changes.
type WorkingTreeStatus struct {
	FilesChanged int
	LinesAdded   int
	LinesRemoved int
}

// ByOid indexes Commits by oid for O(1) lookup.
func (r *RepoData) ByOid() map[Oid]*CommitInfo {
	idx := make(map[Oid]*CommitInfo, len(r.Commits))
	for i := range r.Commits {
		idx[r.Commits[i].Oid] = &r.Commits[i]
	}
	return idx
}
