// Package layout implements LayoutEngine (spec.md §4.5): lane allocation
// with reserved trunk columns and inter-row edge segments.
package layout

import (
	"sort"

	"github.com/sergeknystautas/arachne/internal/dag"
	"github.com/sergeknystautas/arachne/internal/model"
)

// laneSlot tracks what a lane is currently occupied by: an identity, and
// (if a commit further down is expected to land there) the oid it is
// waiting for.
type laneSlot struct {
	identity   model.BranchIdentity
	reserved   bool // true for a trunk's permanently reserved lane
	waitingFor model.Oid
	hasWait    bool
}

// Compute produces one GraphRow per commit, newest-first (the reverse of
// the Dag's parent-before-child topological order), per spec.md §4.5.
func Compute(d *dag.Dag, identities map[model.Oid]model.BranchIdentity, branches []model.BranchInfo, trunkOrder []string) []model.GraphRow {
	order := d.Order()
	rows := make([]model.Oid, len(order))
	for i, oid := range order {
		rows[len(order)-1-i] = oid
	}

	renderIndex := make(map[model.Oid]int, len(rows))
	for i, oid := range rows {
		renderIndex[oid] = i
	}

	existingBranch := make(map[string]bool, len(branches))
	for _, b := range branches {
		existingBranch[b.Name] = true
	}

	lanes := make([]*laneSlot, 0, len(trunkOrder))
	trunkLane := make(map[string]int, len(trunkOrder))
	for i, name := range trunkOrder {
		for len(lanes) <= i {
			lanes = append(lanes, nil)
		}
		if existingBranch[name] {
			lanes[i] = &laneSlot{identity: model.NewBranchIdentity(name), reserved: true}
			trunkLane[name] = i
		}
	}

	isTrunk := func(identity model.BranchIdentity) (int, bool) {
		lane, ok := trunkLane[identity.Name]
		return lane, ok
	}

	allocateLane := func(identity model.BranchIdentity) int {
		if lane, ok := isTrunk(identity); ok {
			return lane
		}
		for idx, slot := range lanes {
			if slot != nil && !slot.reserved && slot.identity.Name == identity.Name {
				return idx
			}
		}
		for idx, slot := range lanes {
			if slot == nil {
				lanes[idx] = &laneSlot{identity: identity}
				return idx
			}
		}
		lanes = append(lanes, &laneSlot{identity: identity})
		return len(lanes) - 1
	}

	result := make([]model.GraphRow, 0, len(rows))

	for i, oid := range rows {
		c, _ := d.Commit(oid)
		identity := identities[oid]

		var lane int
		resolvedFromWait := false
		for idx, slot := range lanes {
			if slot != nil && slot.hasWait && slot.waitingFor == oid {
				lane = idx
				slot.hasWait = false
				resolvedFromWait = true
				break
			}
		}
		if !resolvedFromWait {
			lane = allocateLane(identity)
		}

		maxLane := lane
		for idx, slot := range lanes {
			if slot != nil && idx > maxLane && (slot.hasWait || slot.reserved) {
				maxLane = idx
			}
		}
		cells := make([]model.Cell, maxLane+1)

		parents := d.Parents(oid)
		isMerge := 0
		for _, p := range parents {
			if d.Has(p) {
				isMerge++
			}
		}
		if isMerge >= 2 {
			cells[lane] = model.Cell{Symbol: model.CellMerge, Identity: identity}
		} else {
			cells[lane] = model.Cell{Symbol: model.CellNode, Identity: identity}
		}

		for idx, slot := range lanes {
			if idx == lane || slot == nil {
				continue
			}
			if slot.hasWait || slot.reserved {
				cells[idx] = model.Cell{Symbol: model.CellVertical, Identity: slot.identity}
			}
		}

		row := model.GraphRow{
			Oid:      oid,
			Index:    i,
			Lane:     lane,
			Cells:    cells,
			Summary:  c.Summary,
			Author:   c.AuthorName,
			Time:     c.CommitterTime,
			Identity: identity,
			IsMerge:  isMerge >= 2,
		}

		var danglingAny bool
		type pendingParent struct {
			oid      model.Oid
			identity model.BranchIdentity
			primary  bool
		}
		var divergent []pendingParent

		for k, p := range parents {
			if !d.Has(p) {
				danglingAny = true
				continue
			}
			pIdentity := identities[p]
			if k == 0 && pIdentity.Name == identity.Name {
				lanes[lane] = &laneSlot{identity: identity, waitingFor: p, hasWait: true, reserved: lanes[lane].reserved}
				row.Edges = append(row.Edges, model.Edge{ToLane: lane, Direction: model.EdgeVertical, Identity: identity})
				continue
			}
			divergent = append(divergent, pendingParent{oid: p, identity: pIdentity, primary: k == 0})
		}

		sort.SliceStable(divergent, func(a, b int) bool {
			return renderIndex[divergent[a].oid] < renderIndex[divergent[b].oid]
		})

		for _, dp := range divergent {
			targetLane := allocateLane(dp.identity)
			lanes[targetLane] = &laneSlot{identity: dp.identity, waitingFor: dp.oid, hasWait: true, reserved: lanes[targetLane].reserved}
			_, ontoTrunk := isTrunk(dp.identity)
			row.Edges = append(row.Edges, model.Edge{
				ToLane:    targetLane,
				Direction: model.EdgeDiagonal,
				OntoTrunk: ontoTrunk && dp.identity.Name != identity.Name,
				Identity:  dp.identity,
			})
		}

		row.Dangling = danglingAny

		if !lanes[lane].hasWait && !lanes[lane].reserved {
			lanes[lane] = nil
		}

		result = append(result, row)
	}

	return result
}
