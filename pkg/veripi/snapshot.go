package veripi

import "fmt"

// SnapshotId indexes a Snapshot within a SnapshotTree's arena: an arena
// of values with index-based links rather than mutable back-references
// between snapshot objects, so the tree can be cloned, merged and
// acyclicity-checked without pointer aliasing hazards.
type SnapshotId int

// edgeKind distinguishes the two ordering relations a snapshot tree
// carries between snapshots of the same cell.
type edgeKind int

const (
	edgeLaterThan           edgeKind = iota // reflexive-transitive partial order
	edgeModifiedOnceLaterThan               // exactly one intervening transition; implies LaterThan
)

type edge struct {
	From, To SnapshotId
	Kind     edgeKind
}

// Snapshot is a node in a SnapshotTree, labelled by a State.
type Snapshot struct {
	State       State
	TransfersTo *State // set only for the snapshot a state-transferring rule mutates from
}

// SnapshotTree is the per-rule DAG of Snapshot nodes plus ordering edges,
// arena-indexed by SnapshotId. It is built incrementally by a
// RuleFactory and becomes immutable once a Rule is finalised.
type SnapshotTree struct {
	nodes []Snapshot
	edges []edge
}

// NewSnapshotTree returns an empty snapshot tree.
func NewSnapshotTree() *SnapshotTree {
	return &SnapshotTree{}
}

// Add registers a new snapshot labelled by state and returns its id.
func (t *SnapshotTree) Add(state State) SnapshotId {
	t.nodes = append(t.nodes, Snapshot{State: state})
	return SnapshotId(len(t.nodes) - 1)
}

// Get returns the snapshot at id.
func (t *SnapshotTree) Get(id SnapshotId) Snapshot {
	return t.nodes[id]
}

// Len returns the number of snapshots in the tree.
func (t *SnapshotTree) Len() int { return len(t.nodes) }

// AddLaterThan records that `later` is LaterThan `earlier` (on the same
// cell; callers are responsible for that invariant, checked at rule
// finalisation by CheckWellFormed).
func (t *SnapshotTree) AddLaterThan(later, earlier SnapshotId) {
	t.edges = append(t.edges, edge{From: later, To: earlier, Kind: edgeLaterThan})
}

// AddModifiedOnceLaterThan records the strictly-stronger "exactly one
// intervening transition" relation. This implies LaterThan, so it also
// registers the weaker edge.
func (t *SnapshotTree) AddModifiedOnceLaterThan(later, earlier SnapshotId) {
	t.edges = append(t.edges, edge{From: later, To: earlier, Kind: edgeModifiedOnceLaterThan})
	t.AddLaterThan(later, earlier)
}

// SetTransfersTo marks snapshot `from` as the source of a state
// transition to `target`, used by state-transferring rules.
func (t *SnapshotTree) SetTransfersTo(from SnapshotId, target State) {
	t.nodes[from].TransfersTo = &target
}

// LaterThan reports whether `later` is related to `earlier` by the
// reflexive-transitive closure of LaterThan edges.
func (t *SnapshotTree) LaterThan(later, earlier SnapshotId) bool {
	if later == earlier {
		return true
	}
	return t.reaches(later, earlier, edgeLaterThan, map[SnapshotId]bool{})
}

// ModifiedOnceLaterThan reports the direct (non-transitive) relation: a
// single intervening transition. Spec.md models this as a one-step
// relation, not a transitive closure, since "exactly one" would lose
// meaning under composition otherwise.
func (t *SnapshotTree) ModifiedOnceLaterThan(later, earlier SnapshotId) bool {
	for _, e := range t.edges {
		if e.Kind == edgeModifiedOnceLaterThan && e.From == later && e.To == earlier {
			return true
		}
	}
	return false
}

func (t *SnapshotTree) reaches(from, to SnapshotId, kind edgeKind, seen map[SnapshotId]bool) bool {
	if seen[from] {
		return false
	}
	seen[from] = true
	for _, e := range t.edges {
		if e.Kind != kind || e.From != from {
			continue
		}
		if e.To == to {
			return true
		}
		if t.reaches(e.To, to, kind, seen) {
			return true
		}
	}
	return false
}

// CheckAcyclic verifies the LaterThan relation contains no cycles
// . Returns a RuleConstructionError
// naming the offending snapshot if one is found.
func (t *SnapshotTree) CheckAcyclic() error {
	visiting := make(map[SnapshotId]bool)
	visited := make(map[SnapshotId]bool)
	var visit func(id SnapshotId) error
	visit = func(id SnapshotId) error {
		if visited[id] {
			return nil
		}
		if visiting[id] {
			return &RuleConstructionError{Msg: fmt.Sprintf("snapshot cycle detected at %d", id)}
		}
		visiting[id] = true
		for _, e := range t.edges {
			if e.Kind == edgeLaterThan && e.From == id {
				if err := visit(e.To); err != nil {
					return err
				}
			}
		}
		visiting[id] = false
		visited[id] = true
		return nil
	}
	for id := range t.nodes {
		if err := visit(SnapshotId(id)); err != nil {
			return err
		}
	}
	return nil
}

// Clone produces a deep, independent copy of the tree (used before
// variable-renaming a rule for composition, so the original is never
// mutated).
func (t *SnapshotTree) Clone() *SnapshotTree {
	out := &SnapshotTree{
		nodes: make([]Snapshot, len(t.nodes)),
		edges: make([]edge, len(t.edges)),
	}
	copy(out.nodes, t.nodes)
	copy(out.edges, t.edges)
	return out
}

// Substitute applies sigma to every state (and transfer target) in the
// tree, returning a new tree. Ids are preserved so any external snapshot
// references (e.g. from a Rule's premises) remain valid.
func (t *SnapshotTree) Substitute(sigma *SigmaMap) *SnapshotTree {
	out := t.Clone()
	for i, n := range out.nodes {
		out.nodes[i].State = n.State.Substitute(sigma)
		if n.TransfersTo != nil {
			sub := n.TransfersTo.Substitute(sigma)
			out.nodes[i].TransfersTo = &sub
		}
	}
	return out
}

// Append merges `other` into a copy of t, offsetting every SnapshotId
// referenced by other's edges by t's current length, and returns the
// offset so the caller can translate any other.SnapshotId handles it
// still holds. Used by rule composition to merge two snapshot trees
// .
func (t *SnapshotTree) Append(other *SnapshotTree) (merged *SnapshotTree, offset SnapshotId) {
	offset = SnapshotId(len(t.nodes))
	merged = t.Clone()
	for _, n := range other.nodes {
		merged.nodes = append(merged.nodes, n)
	}
	for _, e := range other.edges {
		merged.edges = append(merged.edges, edge{From: e.From + offset, To: e.To + offset, Kind: e.Kind})
	}
	return merged, offset
}

// Compress finds sibling traces that became syntactically equal after a
// substitution (two distinct snapshot ids with equal State and identical
// outgoing LaterThan/ModifiedOnceLaterThan targets) and rewrites all
// edges to reference a single representative id, a dedup pass over the
// tree representation. The duplicate node stays in the arena, so ids are
// unchanged, but no edge refers to it any more. It returns the
// compressed tree and a map from dropped ids to their surviving
// representative, for callers (e.g. Rule premises) that hold external
// SnapshotId references and must rewrite them too.
func (t *SnapshotTree) Compress() (compressed *SnapshotTree, remap map[SnapshotId]SnapshotId) {
	remap = make(map[SnapshotId]SnapshotId)
	rep := make(map[SnapshotId]SnapshotId)
	for i := range t.nodes {
		id := SnapshotId(i)
		rep[id] = id
	}
	changed := true
	for changed {
		changed = false
		for i := 0; i < len(t.nodes); i++ {
			a := SnapshotId(i)
			if rep[a] != a {
				continue
			}
			for j := i + 1; j < len(t.nodes); j++ {
				b := SnapshotId(j)
				if rep[b] != b {
					continue
				}
				if t.nodes[a].State.Equal(t.nodes[b].State) && sameOutEdges(t, a, b, rep) {
					rep[b] = a
					changed = true
				}
			}
		}
	}
	for id, r := range rep {
		final := r
		for rep[final] != final {
			final = rep[final]
		}
		remap[id] = final
	}
	out := &SnapshotTree{nodes: t.nodes}
	seen := map[edge]bool{}
	for _, e := range t.edges {
		ne := edge{From: remap[e.From], To: remap[e.To], Kind: e.Kind}
		if ne.From == ne.To || seen[ne] {
			continue
		}
		seen[ne] = true
		out.edges = append(out.edges, ne)
	}
	return out, remap
}

func sameOutEdges(t *SnapshotTree, a, b SnapshotId, rep map[SnapshotId]SnapshotId) bool {
	norm := func(id SnapshotId) SnapshotId {
		for rep[id] != id {
			id = rep[id]
		}
		return id
	}
	setFor := func(id SnapshotId) map[SnapshotId]edgeKind {
		m := map[SnapshotId]edgeKind{}
		for _, e := range t.edges {
			if e.From == id {
				m[norm(e.To)] = e.Kind
			}
		}
		return m
	}
	sa, sb := setFor(a), setFor(b)
	if len(sa) != len(sb) {
		return false
	}
	for k, v := range sa {
		if sb[k] != v {
			return false
		}
	}
	return true
}
