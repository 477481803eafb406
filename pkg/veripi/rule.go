package veripi

import "fmt"

// Premise is one hypothesis of a Rule: an Event, optionally attached to
// one or more Snapshots witnessing the state the event depends on.
type Premise struct {
	Event     Event
	Snapshots []SnapshotId
}

func NewPremise(e Event, snapshots ...SnapshotId) Premise {
	return Premise{Event: e, Snapshots: snapshots}
}

func (p Premise) Substitute(sigma *SigmaMap) Premise {
	return Premise{Event: p.Event.Substitute(sigma), Snapshots: p.Snapshots}
}

// RuleKind tags which of the two Rule variants a value holds, replacing
// a class hierarchy with a tagged-variant shape.
type RuleKind int

const (
	// Consistent rules conclude a plain Event from their premises.
	Consistent RuleKind = iota
	// Transferring rules conclude a state mutation: one of the rule's
	// own snapshots transitions to a new State.
	Transferring
)

// Rule is a State-Consistent or State-Transferring rule.
// Variables appearing in a Rule are local to it: Rename must be called
// before composing it with another rule that might share variable ids.
type Rule struct {
	Kind     RuleKind
	Label    string
	Premises []Premise
	Tree     *SnapshotTree
	Guard    *Guard

	// Result is set when Kind == Consistent.
	Result Event

	// TransferFrom/TransferTo are set when Kind == Transferring:
	// TransferFrom names the snapshot in Tree whose state is being
	// left, matching the TransfersTo link recorded on that snapshot.
	TransferFrom SnapshotId
	TransferTo   State
}

func (r *Rule) String() string {
	premStrs := ""
	for i, p := range r.Premises {
		if i > 0 {
			premStrs += ", "
		}
		premStrs += p.Event.String()
	}
	switch r.Kind {
	case Consistent:
		return fmt.Sprintf("%s %s -[ ]-> %s", r.Guard.String(), premStrs, r.Result.String())
	default:
		return fmt.Sprintf("%s %s -[ ]-> <%s>", r.Guard.String(), premStrs, r.TransferTo.String())
	}
}

// Rename produces a copy of r with every local variable replaced by a
// fresh one, using the per-operation counter-based renamer. This must
// precede composing r with another rule drawn from a different context
// to avoid accidental variable capture.
func (r *Rule) Rename(rn *renamer) *Rule {
	sigma := EmptySigma()
	allVars := map[int64]*Variable{}
	collect := func(m Message) {
		for _, v := range m.Vars() {
			allVars[v.Id] = v
		}
	}
	for _, p := range r.Premises {
		collect(p.Event.Msg)
	}
	collect(r.Result.Msg)
	for _, n := range r.Tree.nodes {
		collect(n.State.Value)
		if n.TransfersTo != nil {
			collect(n.TransfersTo.Value)
		}
	}
	for _, v := range r.Guard.Vars() {
		allVars[v.Id] = v
	}
	for id, v := range allVars {
		sigma = sigma.Extend(v, rn.fresh(v))
		_ = id
	}
	out := &Rule{
		Kind:         r.Kind,
		Label:        r.Label,
		Tree:         r.Tree.Substitute(sigma),
		Guard:        r.Guard.Simplify(EmptySigma()),
		TransferFrom: r.TransferFrom,
		TransferTo:   r.TransferTo.Substitute(sigma),
	}
	out.Guard = substituteGuard(r.Guard, sigma)
	for _, p := range r.Premises {
		out.Premises = append(out.Premises, p.Substitute(sigma))
	}
	if r.Kind == Consistent {
		out.Result = r.Result.Substitute(sigma)
	}
	return out
}

// substituteGuard rewrites every disequality term (and variable, when it
// was itself renamed) through sigma.
func substituteGuard(g *Guard, sigma *SigmaMap) *Guard {
	if g.IsEmpty() {
		return g
	}
	out := EmptyGuard()
	for _, d := range g.neq {
		v := d.Var
		if bound, ok := sigma.Lookup(v); ok {
			if nv, isVar := bound.(*Variable); isVar {
				v = nv
			}
		}
		out = out.WithDisequality(v, sigma.Walk(d.Term))
	}
	return out
}

// renamer mints fresh variables for a single rename/composition
// operation, keeping a cache so the same source variable always maps to
// the same fresh variable within that operation.
type renamer struct {
	cache map[int64]*Variable
}

func newRenamer() *renamer { return &renamer{cache: map[int64]*Variable{}} }

func (r *renamer) fresh(v *Variable) *Variable {
	if nv, ok := r.cache[v.Id]; ok {
		return nv
	}
	nv := FreshVariable(v.Name)
	r.cache[v.Id] = nv
	return nv
}
