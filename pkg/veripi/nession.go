package veripi

import "github.com/google/uuid"

// Frame is one step of a Nession's symbolic execution trace: the current
// value of every cell touched so far, and the chain of Transferring
// rules applied to reach it .
type Frame struct {
	Index   int
	States  map[string]State
	Applied []*Rule
}

func newFrame(initial []State) *Frame {
	f := &Frame{States: map[string]State{}}
	for _, s := range initial {
		f.States[s.Cell] = s
	}
	return f
}

func (f *Frame) extend(rule *Rule) *Frame {
	next := &Frame{
		Index:   f.Index + 1,
		States:  make(map[string]State, len(f.States)),
		Applied: append(append([]*Rule{}, f.Applied...), rule),
	}
	for k, v := range f.States {
		next.States[k] = v
	}
	next.States[rule.TransferTo.Cell] = rule.TransferTo
	return next
}

// Nession is a candidate symbolic execution: a sequence of frames
// produced by elaboration, paired with the global set of
// State-Consistent rules available to it. Each nession is one candidate
// interleaving of state-transferring rules; each frame is one step of it.
type Nession struct {
	ID              uuid.UUID
	Frames          []*Frame
	ConsistentRules []*Rule
}

func (n *Nession) last() *Frame { return n.Frames[len(n.Frames)-1] }

// transferApplicable reports whether rule's source state, as registered
// in its own snapshot tree, unifies with frame's current value for that
// cell — the rule is "ready to fire" in this frame.
func transferApplicable(rule *Rule, frame *Frame) bool {
	from := rule.Tree.Get(rule.TransferFrom).State
	cur, ok := frame.States[from.Cell]
	if !ok {
		return false
	}
	_, _, ok = Unify(from.Value, cur.Value, rule.Guard, EmptyGuard())
	return ok
}

// Elaborate builds nessions from an initial state set up to depth steps.
// At each step, the Transferring rules are visited group by group in
// knit-pattern order and checked for applicability against the last
// frame of each nession in the frontier; every applicable rule yields
// its own child nession extended by one frame. Rules of one group are
// not applied together in a single frame, so non-conflicting transfers
// still branch the frontier. A nession with no applicable rule at a
// step is kept as a terminal leaf rather than discarded, since a
// finished trace is still a valid candidate for the query engine.
func Elaborate(initial []State, rules []*Rule, depth int) []*Nession {
	var consistent, transferring []*Rule
	for _, r := range rules {
		if r.Kind == Consistent {
			consistent = append(consistent, r)
		} else {
			transferring = append(transferring, r)
		}
	}
	groups := GroupNonConflicting(transferring)

	frontier := []*Nession{{ID: uuid.New(), Frames: []*Frame{newFrame(initial)}, ConsistentRules: consistent}}
	for step := 0; step < depth; step++ {
		var next []*Nession
		progressed := false
		for _, ns := range frontier {
			fired := false
			for _, group := range groups {
				for _, r := range group {
					if !transferApplicable(r, ns.last()) {
						continue
					}
					child := &Nession{
						ID:              uuid.New(),
						Frames:          append(append([]*Frame{}, ns.Frames...), ns.last().extend(r)),
						ConsistentRules: consistent,
					}
					next = append(next, child)
					fired = true
					progressed = true
				}
			}
			if !fired {
				next = append(next, ns)
			}
		}
		frontier = next
		if !progressed {
			break
		}
	}
	return frontier
}

// SpecialiseClauses collects, for every frame of this nession, every
// ConsistentRule whose premises' snapshot witnesses are satisfiable in
// that frame, and turns each into a rank-annotated HornClause (the rank
// is the frame index) for the query engine .
func (n *Nession) SpecialiseClauses() []*HornClause {
	var out []*HornClause
	for _, frame := range n.Frames {
		for _, r := range n.ConsistentRules {
			if !snapshotsSatisfiable(r, frame) {
				continue
			}
			if hc, ok := FromStateConsistentRule(r, frame.Index); ok {
				out = append(out, hc)
			}
		}
	}
	return out
}

func snapshotsSatisfiable(r *Rule, frame *Frame) bool {
	for _, p := range r.Premises {
		for _, sid := range p.Snapshots {
			st := r.Tree.Get(sid).State
			cur, ok := frame.States[st.Cell]
			if !ok {
				continue // nothing registered yet for this cell: no contradiction
			}
			if _, _, ok := Unify(st.Value, cur.Value, r.Guard, EmptyGuard()); !ok {
				return false
			}
		}
	}
	return true
}
