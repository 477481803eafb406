package veripi

// Guard is a set of disequality constraints `x ~/> t`: no substitution
// may unify variable x with term t. Guard holds disequalities only; the
// positive ("must equal") half of a comparison is kept by
// IfBranchConditions as a SigmaMap next to its Guard.
type Guard struct {
	neq []disequality // x ~/> t
}

type disequality struct {
	Var  *Variable
	Term Message
}

// EmptyGuard is the identity guard: forbids nothing.
func EmptyGuard() *Guard { return &Guard{} }

// IsEmpty reports whether the guard forbids nothing.
func (g *Guard) IsEmpty() bool { return g == nil || len(g.neq) == 0 }

// WithDisequality returns a new guard extending this one with `v ~/> t`.
func (g *Guard) WithDisequality(v *Variable, t Message) *Guard {
	out := &Guard{neq: append([]disequality{}, g.neq...)}
	out.neq = append(out.neq, disequality{Var: v, Term: t})
	return out
}

// Union returns a new guard that is the set union of g and other.
func (g *Guard) Union(other *Guard) *Guard {
	if g.IsEmpty() {
		return other
	}
	if other.IsEmpty() {
		return g
	}
	out := &Guard{neq: append([]disequality{}, g.neq...)}
	out.neq = append(out.neq, other.neq...)
	return out
}

// Forbids reports whether binding v to m (given the bindings already
// accumulated in acc, which m may itself need walking through) would
// violate any disequality this guard holds on v. A disequality `v ~/> t`
// is violated when m, fully walked, is structurally equal to t walked
// through the same accumulator (the "transitive closure of currently
// accumulated bindings" during this walk).
func (g *Guard) Forbids(v *Variable, m Message, acc *SigmaMap) bool {
	if g.IsEmpty() {
		return false
	}
	walked := acc.Walk(m)
	for _, d := range g.neq {
		if d.Var.Id != v.Id {
			continue
		}
		if acc.Walk(d.Term).Equal(walked) {
			return true
		}
	}
	return false
}

// Simplify drops disequalities on variables concretised by sigma (i.e.
// the substitution proves the disequality can no longer be violated
// because the variable is gone from consideration), and rewrites
// remaining terms through sigma. Disequalities on variables not
// mentioned in sigma are left alone.
func (g *Guard) Simplify(sigma *SigmaMap) *Guard {
	if g.IsEmpty() {
		return g
	}
	out := &Guard{}
	for _, d := range g.neq {
		if _, bound := sigma.Lookup(d.Var); bound {
			// The variable itself now has a concrete value; the
			// disequality is checked once at bind time (see Forbids)
			// and need not be carried forward redundantly.
			continue
		}
		out.neq = append(out.neq, disequality{Var: d.Var, Term: sigma.Walk(d.Term)})
	}
	return out
}

// Each calls fn once per disequality this guard holds, in insertion
// order. Used by callers (e.g. the translator) that need to replay a
// guard's constraints onto a different builder.
func (g *Guard) Each(fn func(v *Variable, t Message)) {
	if g.IsEmpty() {
		return
	}
	for _, d := range g.neq {
		fn(d.Var, d.Term)
	}
}

// Vars returns every variable mentioned on either side of this guard's
// disequalities.
func (g *Guard) Vars() []*Variable {
	var out []*Variable
	seen := map[int64]bool{}
	add := func(v *Variable) {
		if !seen[v.Id] {
			seen[v.Id] = true
			out = append(out, v)
		}
	}
	for _, d := range g.neq {
		add(d.Var)
		for _, v := range d.Term.Vars() {
			add(v)
		}
	}
	return out
}

func (g *Guard) String() string {
	if g.IsEmpty() {
		return "[]"
	}
	s := "["
	for i, d := range g.neq {
		if i > 0 {
			s += ", "
		}
		s += d.Var.String() + " ~/> " + d.Term.String()
	}
	return s + "]"
}
