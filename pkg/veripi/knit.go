package veripi

// rulesCells collects the set of cell names a Transferring rule's
// snapshot tree references, used by GroupNonConflicting to detect when
// two rules mutate the same cell.
func rulesCells(r *Rule) map[string]bool {
	out := map[string]bool{}
	for _, n := range r.Tree.nodes {
		out[n.State.Cell] = true
	}
	return out
}

// conflicts reports whether a and b cannot be placed in the same
// knit-pattern group: either they mutate the same cell,
// or one's snapshot tree references a cell the other transfers into
// (a dependency on a state one produces or consumes that the other
// doesn't share knowledge of). Both conditions reduce, for the
// snapshot-tree representation used here, to the same cell-set
// intersection test: every cell a rule reads from or transfers a state
// for appears among its tree's node cells.
func conflicts(a, b *Rule) bool {
	ca, cb := rulesCells(a), rulesCells(b)
	for c := range ca {
		if cb[c] {
			return true
		}
	}
	return false
}

// GroupNonConflicting partitions a set of Transferring rules into
// groups such that no two rules in the same group conflict (the "knit
// pattern"): rules in distinct groups never contend
// for the same cell, so Elaborate can consider every rule in a group
// in the same step without one invalidating another's premises.
// Grouping is greedy: each rule joins the first group none of whose
// members it conflicts with, else starts a new group.
func GroupNonConflicting(rules []*Rule) [][]*Rule {
	var groups [][]*Rule
	for _, r := range rules {
		placed := false
		for gi, group := range groups {
			ok := true
			for _, member := range group {
				if conflicts(r, member) {
					ok = false
					break
				}
			}
			if ok {
				groups[gi] = append(groups[gi], r)
				placed = true
				break
			}
		}
		if !placed {
			groups = append(groups, []*Rule{r})
		}
	}
	return groups
}
