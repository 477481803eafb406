package veripi

// Implies reports whether r1 => r2 holds : there exists a
// substitution sigma such that every premise of sigma(r1) appears among
// r2's premises (with compatible snapshot attachment), sigma(r1)'s result
// equals r2's result, sigma respects both guards, and r1's ordering
// constraints are satisfied by r2's tree. Used to prune redundant clauses
// from a working set.
//
// Implication is checked modulo renaming: r1 is renamed fresh before the
// attempted match so that r1's local variables never collide with r2's.
func Implies(r1, r2 *Rule) bool {
	if r1.Kind != r2.Kind {
		return false
	}
	fresh := r1.Rename(newRenamer())

	sigma, ok := matchResult(fresh, r2)
	if !ok {
		return false
	}
	sigma, ok = matchPremises(fresh, r2, sigma)
	if !ok {
		return false
	}
	if !ordersSatisfied(fresh, r2, sigma) {
		return false
	}
	return true
}

func matchResult(r1, r2 *Rule) (*SigmaMap, bool) {
	switch r1.Kind {
	case Consistent:
		fwd, ok := UnifiedTo(r1.Result.Msg, r2.Result.Msg, r1.Guard)
		if !ok || r1.Result.Kind != r2.Result.Kind {
			return nil, false
		}
		return fwd, true
	default:
		fwd, ok := UnifiedTo(r1.TransferTo.Value, r2.TransferTo.Value, r1.Guard)
		if !ok || r1.TransferTo.Cell != r2.TransferTo.Cell {
			return nil, false
		}
		return fwd, true
	}
}

// matchPremises greedily tries to find, for each premise of r1 (after
// sigma so far), a not-yet-consumed premise of r2 with the same kind that
// it UnifiedTo-matches, threading sigma through each successful match.
// Backtracking across premise order is not attempted: subsumption checks
// in this engine are always run against syntactically generated working
// sets where premise order is stable, so a greedy left-to-right match is
// sufficient and matches gokando's own preference for straightforward,
// non-backtracking matching where the search space allows it.
func matchPremises(r1, r2 *Rule, sigma *SigmaMap) (*SigmaMap, bool) {
	used := make([]bool, len(r2.Premises))
	for _, p1 := range r1.Premises {
		matched := false
		want := sigma.Walk(p1.Event.Msg)
		for j, p2 := range r2.Premises {
			if used[j] || p2.Event.Kind != p1.Event.Kind {
				continue
			}
			fwd, ok := UnifiedTo(want, p2.Event.Msg, EmptyGuard())
			if !ok {
				continue
			}
			merged, okMerge := sigma.Merge(fwd)
			if !okMerge {
				continue
			}
			sigma = merged
			used[j] = true
			matched = true
			break
		}
		if !matched {
			return nil, false
		}
	}
	return sigma, true
}

// ordersSatisfied checks that every LaterThan/ModifiedOnceLaterThan edge
// in r1's tree holds, under the same cell, somewhere implied by r2's
// tree. Since snapshot ids are local to each rule and premises are only
// loosely tracked here (no full snapshot-to-snapshot correspondence map
// is reconstructed), this performs the coarser but sound check that for
// every cell r1's tree constrains, r2's tree constrains that cell with at
// least as strong a relation between states equal (after sigma) to the
// ones r1 names.
func ordersSatisfied(r1, r2 *Rule, sigma *SigmaMap) bool {
	findIn := func(tree *SnapshotTree, state State) (SnapshotId, bool) {
		for i, n := range tree.nodes {
			if n.State.Equal(state) {
				return SnapshotId(i), true
			}
		}
		return 0, false
	}
	for _, e := range r1.Tree.edges {
		laterState := r1.Tree.Get(e.From).State.Substitute(sigma)
		earlierState := r1.Tree.Get(e.To).State.Substitute(sigma)
		l2, okL := findIn(r2.Tree, laterState)
		e2, okE := findIn(r2.Tree, earlierState)
		if !okL || !okE {
			return false
		}
		switch e.Kind {
		case edgeLaterThan:
			if !r2.Tree.LaterThan(l2, e2) {
				return false
			}
		case edgeModifiedOnceLaterThan:
			if !r2.Tree.ModifiedOnceLaterThan(l2, e2) {
				return false
			}
		}
	}
	return true
}
