// Package dag implements the Dag component from spec.md §4.2: an
// adjacency-list commit graph with deterministic topological ordering and
// idempotent incremental merge of remote commits.
package dag

import (
	"container/heap"

	"github.com/sergeknystautas/arachne/internal/model"
)

// node is one commit's adjacency record.
type node struct {
	parents  []model.Oid
	children []model.Oid
}

// Dag is an adjacency-list commit graph. Zero value is not usable; build
// one with FromRepoData.
type Dag struct {
	nodes map[model.Oid]*node
	info  map[model.Oid]*model.CommitInfo
	order []model.Oid
	pos   map[model.Oid]int

	// dangling records parent oids referenced by some commit but not
	// themselves present as a node, so a later MergeRemote delivering them
	// can wire existing children correctly (spec.md §4.2).
	dangling map[model.Oid][]model.Oid
}

// FromRepoData builds a Dag from RepoData, wiring children by scanning
// each commit's recorded parents.
func FromRepoData(data *model.RepoData) *Dag {
	d := &Dag{
		nodes:    make(map[model.Oid]*node, len(data.Commits)),
		info:     make(map[model.Oid]*model.CommitInfo, len(data.Commits)),
		dangling: make(map[model.Oid][]model.Oid),
	}

	for i := range data.Commits {
		c := &data.Commits[i]
		d.info[c.Oid] = c
		if _, ok := d.nodes[c.Oid]; !ok {
			d.nodes[c.Oid] = &node{}
		}
	}

	for i := range data.Commits {
		c := &data.Commits[i]
		n := d.nodes[c.Oid]
		n.parents = append(n.parents, c.Parents...)
		for _, p := range c.Parents {
			if pn, ok := d.nodes[p]; ok {
				pn.children = append(pn.children, c.Oid)
			} else {
				d.dangling[p] = append(d.dangling[p], c.Oid)
			}
		}
	}

	d.topoSort()
	return d
}

// Commit returns the CommitInfo for oid, if present.
func (d *Dag) Commit(oid model.Oid) (*model.CommitInfo, bool) {
	c, ok := d.info[oid]
	return c, ok
}

// Parents returns oid's recorded parent oids (including dangling ones).
func (d *Dag) Parents(oid model.Oid) []model.Oid {
	if n, ok := d.nodes[oid]; ok {
		return n.parents
	}
	return nil
}

// Children returns oid's known children (only those present as nodes).
func (d *Dag) Children(oid model.Oid) []model.Oid {
	if n, ok := d.nodes[oid]; ok {
		return n.children
	}
	return nil
}

// Has reports whether oid is a node in the graph.
func (d *Dag) Has(oid model.Oid) bool {
	_, ok := d.nodes[oid]
	return ok
}

// Order returns the current topological order (parent before child),
// most-recent-first per spec.md §4.2's Kahn's-algorithm tie-break.
func (d *Dag) Order() []model.Oid {
	return d.order
}

// Len returns the number of nodes.
func (d *Dag) Len() int { return len(d.nodes) }

// MergeRemote inserts commits delivered by a forge. It is idempotent by
// oid: existing commits are skipped, new ones extend their existing
// parents' children lists, and dangling parents recorded earlier are wired
// up once their node appears. Re-sorts whenever a commit was inserted.
// branches is accepted to satisfy forge.Merger but is not stored: the Dag
// holds commits only.
//
// Per SPEC_FULL.md §5, a commit older than any walker cutoff is inserted
// unconditionally — the spec adopts that choice without a time check here.
func (d *Dag) MergeRemote(commits []model.CommitInfo, branches []model.BranchInfo) {
	changed := false
	for i := range commits {
		c := &commits[i]
		if _, exists := d.nodes[c.Oid]; exists {
			continue
		}
		changed = true

		d.info[c.Oid] = c
		n := &node{parents: append([]model.Oid(nil), c.Parents...)}
		d.nodes[c.Oid] = n

		for _, p := range c.Parents {
			if pn, ok := d.nodes[p]; ok {
				pn.children = append(pn.children, c.Oid)
			} else {
				d.dangling[p] = append(d.dangling[p], c.Oid)
			}
		}

		// This new commit may itself be a parent some earlier dangling
		// reference was waiting on.
		if waiting, ok := d.dangling[c.Oid]; ok {
			n.children = append(n.children, waiting...)
			delete(d.dangling, c.Oid)
		}
	}

	if changed {
		d.topoSort()
	}
}

// heapItem is one entry in the zero-in-degree priority queue, ordered by
// (-committerTime, oid) so ties break deterministically and the most
// recent zero-in-degree candidate is emitted first (spec.md §4.2).
type heapItem struct {
	oid  model.Oid
	time int64
}

type priorityQueue []heapItem

func (pq priorityQueue) Len() int { return len(pq) }
func (pq priorityQueue) Less(i, j int) bool {
	if pq[i].time != pq[j].time {
		return pq[i].time > pq[j].time // more recent first
	}
	return pq[i].oid.String() < pq[j].oid.String()
}
func (pq priorityQueue) Swap(i, j int) { pq[i], pq[j] = pq[j], pq[i] }
func (pq *priorityQueue) Push(x any)   { *pq = append(*pq, x.(heapItem)) }
func (pq *priorityQueue) Pop() any {
	old := *pq
	n := len(old)
	item := old[n-1]
	*pq = old[:n-1]
	return item
}

// topoSort runs Kahn's algorithm: a priority queue of zero-in-degree nodes
// keyed by (-committer_time, oid), per spec.md §4.2.
func (d *Dag) topoSort() {
	indegree := make(map[model.Oid]int, len(d.nodes))
	for oid, n := range d.nodes {
		count := 0
		for _, p := range n.parents {
			if _, ok := d.nodes[p]; ok {
				count++
			}
		}
		indegree[oid] = count
	}

	pq := make(priorityQueue, 0, len(d.nodes))
	for oid, deg := range indegree {
		if deg == 0 {
			pq = append(pq, heapItem{oid: oid, time: d.timeOf(oid)})
		}
	}
	heap.Init(&pq)

	order := make([]model.Oid, 0, len(d.nodes))
	for pq.Len() > 0 {
		item := heap.Pop(&pq).(heapItem)
		order = append(order, item.oid)
		for _, child := range d.nodes[item.oid].children {
			indegree[child]--
			if indegree[child] == 0 {
				heap.Push(&pq, heapItem{oid: child, time: d.timeOf(child)})
			}
		}
	}

	d.order = order
	pos := make(map[model.Oid]int, len(order))
	for i, oid := range order {
		pos[oid] = i
	}
	d.pos = pos
}

func (d *Dag) timeOf(oid model.Oid) int64 {
	if c, ok := d.info[oid]; ok {
		return c.CommitterTime
	}
	return 0
}

// IndexOf returns the position of oid in the current topological order,
// or -1 if oid is not a node. Invariant (spec.md §8): for all (p, c) both
// in the Dag, IndexOf(p) < IndexOf(c).
func (d *Dag) IndexOf(oid model.Oid) int {
	if i, ok := d.pos[oid]; ok {
		return i
	}
	return -1
}
