package veripi

// ApplyTransfer composes a State-Transferring rule str with a
// State-Consistent rule scr  when scr's snapshot tree
// tolerates appending str's source -> target transition under the
// ordering already required. Returns the new State-Consistent rule with
// an extra frame reflecting the mutation, or ok=false if scr needs a
// state str is about to mutate away from (i.e. scr has a snapshot whose
// state equals str's source state, but scr requires something to be
// LaterThan that exact snapshot rather than the post-transfer one — in
// which case applying the transfer would invalidate scr's requirement).
func ApplyTransfer(str, scr *Rule) (*Rule, bool) {
	if str.Kind != Transferring || scr.Kind != Consistent {
		return nil, false
	}
	rn := newRenamer()
	t := str.Rename(rn)
	s := scr.Rename(rn)

	sourceState := t.Tree.Get(t.TransferFrom).State

	// Find every snapshot in s whose state matches the transfer's
	// source state: these are the points scr observes the
	// pre-transition value.
	var matches []SnapshotId
	for i, n := range s.Tree.nodes {
		if n.State.Equal(sourceState) {
			matches = append(matches, SnapshotId(i))
		}
	}
	if len(matches) == 0 {
		return nil, false
	}

	mergedTree, offset := s.Tree.Append(t.Tree)
	newSourceId := t.TransferFrom + offset

	for _, m := range matches {
		// scr's observation of the source state must not be required
		// to be LaterThan anything that would only be true after the
		// transfer: guard against that by refusing composition when m
		// is already the target of an edge claiming it is
		// ModifiedOnceLaterThan some snapshot equal to the transfer
		// target (that would mean scr already expected the post-state
		// at this point, a contradiction with observing the
		// pre-state).
		if postStateAlreadyRequiredAt(mergedTree, m, t.TransferTo) {
			return nil, false
		}
		mergedTree.AddModifiedOnceLaterThan(newSourceId, m)
	}

	newTargetId := mergedTree.Add(t.TransferTo)
	for _, m := range matches {
		mergedTree.AddLaterThan(newTargetId, m)
	}

	var newPremises []Premise
	newPremises = append(newPremises, s.Premises...)
	for _, p := range t.Premises {
		shifted := make([]SnapshotId, len(p.Snapshots))
		for k, sid := range p.Snapshots {
			shifted[k] = sid + offset
		}
		newPremises = append(newPremises, Premise{Event: p.Event, Snapshots: shifted})
	}

	mergedGuard := s.Guard.Union(t.Guard)

	out := &Rule{
		Kind:     Consistent,
		Label:    s.Label,
		Premises: newPremises,
		Tree:     mergedTree,
		Guard:    mergedGuard,
		Result:   s.Result,
	}
	if out.Tree.CheckAcyclic() != nil {
		return nil, false
	}
	return out, true
}

func postStateAlreadyRequiredAt(tree *SnapshotTree, id SnapshotId, postState State) bool {
	for i, n := range tree.nodes {
		if !n.State.Equal(postState) {
			continue
		}
		if tree.ModifiedOnceLaterThan(SnapshotId(i), id) {
			return true
		}
	}
	return false
}
