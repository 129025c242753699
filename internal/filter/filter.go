// Package filter implements AuthorFilter (spec.md §4.4): it hides commits
// not matching a predicate while rewriting parent edges so the kept
// commits' ancestry stays connected.
package filter

import (
	"github.com/sergeknystautas/arachne/internal/dag"
	"github.com/sergeknystautas/arachne/internal/model"
)

// Result is the output of Apply: the rebuilt Dag over kept commits only,
// the parent rewrites that produced it (keyed by kept commit), and the
// branches that survive the filter with their tips remapped.
type Result struct {
	Dag      *dag.Dag
	Rewrites map[model.Oid][]model.Oid
	Branches []model.BranchInfo
}

// Apply filters d to commits for which keep returns true, rewriting each
// kept commit's parents to its nearest kept ancestors. Ancestor resolution
// is a single forward pass over d's topological order — each commit's
// parents were already resolved earlier in that order, so no recursion and
// no explicit stack is needed to bound the work to O(V+E) (spec.md §4.4,
// §9's "explicit visited sets rather than recursion" note is satisfied by
// this order-driven DP instead of a BFS-per-commit, which is equivalent
// work but doesn't need a visited set at all).
func Apply(d *dag.Dag, keep func(model.Oid) bool, branches []model.BranchInfo) Result {
	order := d.Order()
	nearestKept := make(map[model.Oid][]model.Oid, len(order))

	for _, oid := range order {
		var result []model.Oid
		seen := make(map[model.Oid]bool)
		for _, p := range d.Parents(oid) {
			if !d.Has(p) {
				continue // dangling parent: off-graph, nothing further to resolve
			}
			if keep(p) {
				if !seen[p] {
					result = append(result, p)
					seen[p] = true
				}
				continue
			}
			for _, gp := range nearestKept[p] {
				if !seen[gp] {
					result = append(result, gp)
					seen[gp] = true
				}
			}
		}
		nearestKept[oid] = result
	}

	var filteredCommits []model.CommitInfo
	rewrites := make(map[model.Oid][]model.Oid)
	for _, oid := range order {
		if !keep(oid) {
			continue
		}
		c, ok := d.Commit(oid)
		if !ok {
			continue
		}
		newParents := nearestKept[oid]
		rewrites[oid] = newParents

		rewritten := *c
		rewritten.Parents = newParents
		filteredCommits = append(filteredCommits, rewritten)
	}

	filteredData := &model.RepoData{Commits: filteredCommits}
	filteredDag := dag.FromRepoData(filteredData)

	var keptBranches []model.BranchInfo
	for _, b := range branches {
		tip := b.Tip
		if !keep(tip) {
			candidates := nearestKept[tip]
			if len(candidates) == 0 {
				continue // branch dropped: nothing survives the filter on its path
			}
			tip = candidates[0]
		}
		b.Tip = tip
		keptBranches = append(keptBranches, b)
	}

	return Result{Dag: filteredDag, Rewrites: rewrites, Branches: keptBranches}
}
