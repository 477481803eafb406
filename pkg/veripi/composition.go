package veripi

// Compose attempts rule composition : given r1 producing
// event E and r2 having E as a premise, find sigma unifying some premise
// of r2 with r1's result, replace that premise with r1's premises (after
// sigma), and merge the two snapshot trees, attaching r1's ordering
// requirements under the snapshot of the replaced premise. Returns
// ok=false if no premise of r2 unifies with r1's result, or if the
// composed rule would be an immediate tautology (its result reappearing
// among its own premises).
//
// Both rules are renamed fresh first so their local variables cannot
// collide .
func Compose(r1, r2 *Rule) (*Rule, bool) {
	if r1.Kind != Consistent {
		return nil, false // only a Consistent rule's result can serve as a fact to compose against
	}
	rn := newRenamer()
	a := r1.Rename(rn)
	b := r2.Rename(rn)

	for i, p2 := range b.Premises {
		if p2.Event.Kind != a.Result.Kind {
			continue
		}
		fwd, bwd, ok := Unify(a.Result.Msg, p2.Event.Msg, a.Guard, b.Guard)
		if !ok {
			continue
		}
		composed, ok := composeAt(a, b, i, fwd, bwd)
		if !ok {
			continue
		}
		return composed, true
	}
	return nil, false
}

// composeAt builds the composed rule once a matching premise index i has
// been found and fwd/bwd unifiers computed.
func composeAt(a, b *Rule, i int, fwd, bwd *SigmaMap) (*Rule, bool) {
	mergedTree, offset := b.Tree.Substitute(bwd).Append(a.Tree.Substitute(fwd))
	attachAt := b.Premises[i].Snapshots

	// Every snapshot a's premises were attached to must be ordered
	// earlier than (or equal to) the snapshots the replaced premise was
	// attached to, since r1's derivation happens "before" the point r2
	// consumed its result.
	for _, aSnap := range a.Premises {
		for _, as := range aSnap.Snapshots {
			for _, bs := range attachAt {
				mergedTree.AddLaterThan(bs, as+offset)
			}
		}
	}

	var newPremises []Premise
	for j, p := range b.Premises {
		if j == i {
			for _, ap := range a.Premises {
				shifted := make([]SnapshotId, len(ap.Snapshots))
				for k, s := range ap.Snapshots {
					shifted[k] = s + offset
				}
				newPremises = append(newPremises, Premise{Event: ap.Event.Substitute(fwd), Snapshots: shifted})
			}
			continue
		}
		newPremises = append(newPremises, p.Substitute(bwd))
	}

	mergedGuard := substituteGuard(a.Guard, fwd).Union(substituteGuard(b.Guard, bwd))

	var result Event
	var transferTo State
	if b.Kind == Consistent {
		result = b.Result.Substitute(bwd)
		if err := tautologyCheck(newPremises, result); err != nil {
			return nil, false
		}
	} else {
		transferTo = b.TransferTo.Substitute(bwd)
	}

	out := &Rule{
		Kind:         b.Kind,
		Label:        b.Label,
		Premises:     newPremises,
		Tree:         mergedTree,
		Guard:        mergedGuard,
		Result:       result,
		TransferFrom: b.TransferFrom + offset,
		TransferTo:   transferTo,
	}
	if out.Tree.CheckAcyclic() != nil {
		return nil, false
	}
	compressed, remap := out.Tree.Compress()
	out.Tree = compressed
	for idx := range out.Premises {
		for k, s := range out.Premises[idx].Snapshots {
			out.Premises[idx].Snapshots[k] = remap[s]
		}
	}
	if out.Kind == Transferring {
		out.TransferFrom = remap[out.TransferFrom]
	}
	return out, true
}
