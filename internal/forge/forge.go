// Package forge implements ForgeNetworkMerger (spec.md §4.6): it
// normalizes a hosted-forge response into the commits/branches shape the
// Dag already understands, then merges it in. The fetch itself is the
// injectable half of the interface — spec.md §1 places "the concrete forge
// API client" out of core scope, so Fetcher is the narrow trait the outer
// program implements against (spec.md §9 design notes), and GitHubFetcher
// below is the default, concrete implementation Arachne ships.
package forge

import (
	"context"

	"github.com/sergeknystautas/arachne/internal/model"
)

// NetworkCommit is one commit as delivered by a forge, per spec.md §6's
// abstract ForgeNetwork contract.
type NetworkCommit struct {
	Oid     string
	Parents []string
	Author  string
	Time    int64
	Summary string
}

// NetworkBranch is one branch/fork ref as delivered by a forge.
type NetworkBranch struct {
	Name string
	Tip  string
	Kind model.BranchKind
}

// ForgeNetwork is the normalized payload ForgeNetworkMerger consumes.
type ForgeNetwork struct {
	Commits  []NetworkCommit
	Branches []NetworkBranch
}

// Fetcher is the narrow interface the core depends on; concrete forge
// clients (GitHub, GitLab, ...) are injected by the outer program. Fetch
// runs as pure async I/O with no repository handle, so it's safe to run
// concurrently with driver-task work per spec.md §5.
type Fetcher interface {
	Fetch(ctx context.Context, repo RepoInfo) (*ForgeNetwork, error)
}

// Normalize converts a ForgeNetwork into model commits/branches. A
// delivered branch of kind BranchLocal (the zero value) is tagged Fork;
// any other kind is kept as delivered.
func Normalize(net *ForgeNetwork) ([]model.CommitInfo, []model.BranchInfo, error) {
	commits := make([]model.CommitInfo, 0, len(net.Commits))
	for _, c := range net.Commits {
		oid, err := model.ParseOid(c.Oid)
		if err != nil {
			// A malformed oid from a forge is a recoverable per-commit skip,
			// not a fatal error — the checked-access policy from spec.md §7.
			continue
		}
		var parents []model.Oid
		for _, p := range c.Parents {
			if poid, perr := model.ParseOid(p); perr == nil {
				parents = append(parents, poid)
			}
		}
		commits = append(commits, model.CommitInfo{
			Oid:           oid,
			Parents:       parents,
			AuthorName:    c.Author,
			CommitterTime: c.Time,
			Summary:       model.SanitizeSummary(c.Summary),
			Message:       c.Summary,
		})
	}

	branches := make([]model.BranchInfo, 0, len(net.Branches))
	for _, b := range net.Branches {
		oid, err := model.ParseOid(b.Tip)
		if err != nil {
			continue
		}
		kind := b.Kind
		if kind == model.BranchLocal {
			kind = model.BranchFork
		}
		branches = append(branches, model.BranchInfo{Name: b.Name, Tip: oid, Kind: kind})
	}

	return commits, branches, nil
}

// Merger merges normalized forge payloads into a target Dag-like sink.
// The sink is whatever exposes MergeRemote — internal/dag.Dag in practice —
// kept as an interface here so forge stays independent of the dag package.
type Merger interface {
	MergeRemote(commits []model.CommitInfo, branches []model.BranchInfo)
}

// MergeInto normalizes net and merges it into dst.
func MergeInto(dst Merger, net *ForgeNetwork) error {
	commits, branches, err := Normalize(net)
	if err != nil {
		return err
	}
	dst.MergeRemote(commits, branches)
	return nil
}
