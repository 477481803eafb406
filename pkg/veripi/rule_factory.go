package veripi

// RuleFactory is a single-use builder that accumulates premises,
// registered states (returning Snapshot handles), guard clauses, a
// label, and produces exactly one Rule. It mirrors gokando's separation
// between building up search state incrementally and finalising it into
// an immutable value, adapted from a Substitution-accumulation pattern
// to a Rule-accumulation one.
type RuleFactory struct {
	label    string
	premises []Premise
	tree     *SnapshotTree
	guard    *Guard
	used     bool
}

// NewRuleFactory starts a fresh, single-use rule builder.
func NewRuleFactory(label string) *RuleFactory {
	return &RuleFactory{label: label, tree: NewSnapshotTree(), guard: EmptyGuard()}
}

// RegisterState adds a snapshot labelled by state to the factory's
// snapshot tree and returns its handle.
func (f *RuleFactory) RegisterState(state State) SnapshotId {
	return f.tree.Add(state)
}

// LaterThan records an ordering requirement between two already
// registered snapshots.
func (f *RuleFactory) LaterThan(later, earlier SnapshotId) {
	f.tree.AddLaterThan(later, earlier)
}

// ModifiedOnceLaterThan records the stronger one-transition requirement.
func (f *RuleFactory) ModifiedOnceLaterThan(later, earlier SnapshotId) {
	f.tree.AddModifiedOnceLaterThan(later, earlier)
}

// TransfersTo marks snapshot `from` as transitioning to `target`. Only
// meaningful for a rule subsequently finalised with
// CreateStateTransferringRule.
func (f *RuleFactory) TransfersTo(from SnapshotId, target State) {
	f.tree.SetTransfersTo(from, target)
}

// AddPremise registers a premise event, optionally attached to snapshot
// witnesses.
func (f *RuleFactory) AddPremise(e Event, snapshots ...SnapshotId) {
	f.premises = append(f.premises, NewPremise(e, snapshots...))
}

// AddGuard extends the factory's accumulated guard with a disequality.
func (f *RuleFactory) AddGuard(v *Variable, forbidden Message) {
	f.guard = f.guard.WithDisequality(v, forbidden)
}

// categoryCheck enforces the premise/result category invariants: leak
// may never be a premise, init/new may never be a result of a
// derivation rule built by the translator.
func categoryCheck(premises []Premise, result Event, hasResult bool) error {
	for _, p := range premises {
		if p.Event.Kind == Leak {
			return &RuleConstructionError{Msg: "leak event may not appear as a premise"}
		}
	}
	if hasResult && (result.Kind == Init || result.Kind == New) {
		return &RuleConstructionError{Msg: "init/new event may not appear as a rule result"}
	}
	return nil
}

// tautologyCheck rejects a consistent rule whose result already appears
// among its own premises .
func tautologyCheck(premises []Premise, result Event) error {
	for _, p := range premises {
		if p.Event.Equal(result) {
			return &RuleConstructionError{Msg: "rule result already appears among its premises"}
		}
	}
	return nil
}

// CreateStateConsistentRule finalises the factory into a State-Consistent
// Rule concluding `result`, and resets the factory to an unused state
// equivalent to a fresh NewRuleFactory. The factory is single-use per
// construction; resetting rather than panicking on reuse keeps misuse
// recoverable.
func (f *RuleFactory) CreateStateConsistentRule(result Event) (*Rule, error) {
	if err := categoryCheck(f.premises, result, true); err != nil {
		return nil, err
	}
	if err := tautologyCheck(f.premises, result); err != nil {
		return nil, err
	}
	if err := f.tree.CheckAcyclic(); err != nil {
		return nil, err
	}
	r := &Rule{
		Kind:     Consistent,
		Label:    f.label,
		Premises: f.premises,
		Tree:     f.tree,
		Guard:    f.guard,
		Result:   result,
	}
	f.reset()
	return r, nil
}

// CreateStateTransferringRule finalises the factory into a
// State-Transferring Rule. Exactly one snapshot in the tree must carry a
// TransfersTo link (set via RuleFactory.TransfersTo); it is an error for
// zero or more than one snapshot to carry one.
func (f *RuleFactory) CreateStateTransferringRule() (*Rule, error) {
	if err := categoryCheck(f.premises, Event{}, false); err != nil {
		return nil, err
	}
	if err := f.tree.CheckAcyclic(); err != nil {
		return nil, err
	}
	var from SnapshotId
	found := false
	for i, n := range f.tree.nodes {
		if n.TransfersTo != nil {
			if found {
				return nil, &RuleConstructionError{Label: f.label, Msg: "more than one snapshot declares a state transfer"}
			}
			from = SnapshotId(i)
			found = true
		}
	}
	if !found {
		return nil, &RuleConstructionError{Label: f.label, Msg: "no snapshot declares a state transfer"}
	}
	r := &Rule{
		Kind:         Transferring,
		Label:        f.label,
		Premises:     f.premises,
		Tree:         f.tree,
		Guard:        f.guard,
		TransferFrom: from,
		TransferTo:   *f.tree.nodes[from].TransfersTo,
	}
	f.reset()
	return r, nil
}

func (f *RuleFactory) reset() {
	f.premises = nil
	f.tree = NewSnapshotTree()
	f.guard = EmptyGuard()
	f.used = true
}
