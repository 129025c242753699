// Package branch implements BranchAssigner (spec.md §4.3): it propagates a
// single branch identity to each commit using a trunk-first,
// first-parent-walk traversal from branch tips.
package branch

import (
	"sort"

	"github.com/sergeknystautas/arachne/internal/dag"
	"github.com/sergeknystautas/arachne/internal/model"
)

// Assign returns a mapping oid -> BranchIdentity for every commit in d,
// given the branch list and the configured trunk order.
//
// Phase 1 (trunk-first): for each trunk name in config order, if a branch
// with that name exists, walk its first-parent chain from tip backward,
// assigning the trunk identity to every unassigned commit.
//
// Phase 2 (features): remaining branches, sorted by tip commit time
// descending, walk first-parent backward assigning that branch's identity.
//
// Commits never reached by any branch keep the synthetic orphan identity.
//
// Per SPEC_FULL.md §5's open-question decision: when two trunk branches
// share a tip or share history below a divergence point, the first trunk
// in config order to reach a commit during phase 1's walk owns it — trunk
// order alone resolves it, with no extra bookkeeping required.
func Assign(d *dag.Dag, branches []model.BranchInfo, trunkOrder []string) map[model.Oid]model.BranchIdentity {
	assigned := make(map[model.Oid]model.BranchIdentity, d.Len())

	byName := make(map[string][]model.BranchInfo, len(branches))
	for _, b := range branches {
		byName[b.Name] = append(byName[b.Name], b)
	}

	trunkSet := make(map[string]bool, len(trunkOrder))
	for _, t := range trunkOrder {
		trunkSet[t] = true
	}

	// Phase 1: trunk-first, in configured order.
	for _, trunkName := range trunkOrder {
		for _, b := range byName[trunkName] {
			identity := model.NewBranchIdentity(trunkName)
			walkFirstParent(d, b.Tip, identity, assigned)
		}
	}

	// Phase 2: remaining branches, tip time descending.
	var features []model.BranchInfo
	for _, b := range branches {
		if trunkSet[b.Name] {
			continue
		}
		features = append(features, b)
	}
	sort.SliceStable(features, func(i, j int) bool {
		ti := tipTime(d, features[i].Tip)
		tj := tipTime(d, features[j].Tip)
		if ti != tj {
			return ti > tj
		}
		return features[i].Name < features[j].Name
	})

	for _, b := range features {
		identity := model.NewBranchIdentity(b.Name)
		walkFirstParent(d, b.Tip, identity, assigned)
	}

	// Orphans: any commit in the Dag never reached by a branch walk.
	orphan := model.NewBranchIdentity(model.OrphanIdentity)
	for _, oid := range d.Order() {
		if _, ok := assigned[oid]; !ok {
			assigned[oid] = orphan
		}
	}

	return assigned
}

func tipTime(d *dag.Dag, tip model.Oid) int64 {
	if c, ok := d.Commit(tip); ok {
		return c.CommitterTime
	}
	return 0
}

// walkFirstParent assigns identity to oid and every first-parent ancestor,
// stopping at the first commit that already has an identity (it, and
// everything above it, belongs to a branch processed earlier) or at a
// dangling/missing parent.
func walkFirstParent(d *dag.Dag, oid model.Oid, identity model.BranchIdentity, assigned map[model.Oid]model.BranchIdentity) {
	for {
		if !d.Has(oid) {
			return
		}
		if _, already := assigned[oid]; already {
			return
		}
		assigned[oid] = identity

		parents := d.Parents(oid)
		if len(parents) == 0 {
			return
		}
		oid = parents[0]
	}
}
