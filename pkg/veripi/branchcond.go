package veripi

// IfBranchConditions is the compiled form of the chain of if/let branch
// restrictions leading to a process point : a forward
// substitution recording which comparisons were established as equalities
// (destructor-application successes, or `=` comparisons), plus a Guard
// recording which were established as disequalities (`<>`, or `let`
// pattern-match failures taking the else branch).
//
// Composition is abelian-monoid-like: Empty is the identity, And combines
// two conditions accumulated along the same branch (their substitutions
// must agree; their guards union), and the resulting structure is
// order-insensitive for the purposes rule construction needs it for
// .
type IfBranchConditions struct {
	Sigma *SigmaMap
	Guard *Guard
}

// EmptyBranchConditions is the identity element: no restriction at all.
func EmptyBranchConditions() IfBranchConditions {
	return IfBranchConditions{Sigma: EmptySigma(), Guard: EmptyGuard()}
}

// And merges two branch conditions accumulated along the same path. It
// fails (ok=false) if the two substitutions disagree on a shared variable,
// mirroring SigmaMap.Merge.
func (c IfBranchConditions) And(other IfBranchConditions) (IfBranchConditions, bool) {
	merged, ok := c.Sigma.Merge(other.Sigma)
	if !ok {
		return IfBranchConditions{}, false
	}
	return IfBranchConditions{Sigma: merged, Guard: c.Guard.Union(other.Guard)}, true
}

// WithEquality records that v was established equal to t along this
// branch (the then-branch of a successful `=` comparison, or a destructor
// application that matched).
func (c IfBranchConditions) WithEquality(v *Variable, t Message) (IfBranchConditions, bool) {
	extended := c.Sigma.Extend(v, t)
	return IfBranchConditions{Sigma: extended, Guard: c.Guard.Simplify(extended)}, true
}

// WithDisequality records that v was established distinct from t along
// this branch (the else-branch of a successful `=` comparison against a
// variable, or the then-branch of a `<>` comparison).
func (c IfBranchConditions) WithDisequality(v *Variable, t Message) IfBranchConditions {
	return IfBranchConditions{Sigma: c.Sigma, Guard: c.Guard.WithDisequality(v, c.Sigma.Walk(t))}
}

// Apply substitutes m under the accumulated equalities, for embedding the
// branch's effect into a rule's premises/result.
func (c IfBranchConditions) Apply(m Message) Message {
	return c.Sigma.Walk(m)
}

// compileComparison compiles one RIf node's Left/Right into a then-branch
// and an else-branch IfBranchConditions, relative to an incoming
// condition set. Two shapes are supported :
//
//   - left is a Variable and right is ground/a term not containing it:
//     then-branch binds left=right, else-branch records left<>right.
//   - left and right are both destructor applications built from the same
//     underlying equational theory (e.g. `dec(enc(x,k),k) = x`): resolved
//     via Unify, which already implements the occurs-check and guard
//     bookkeeping this needs.
//
// Any other shape (mismatched function symbols/arity, or two unrelated
// ground terms) cannot be compiled and is reported as an
// InvalidComparisonError: there is no destructor in scope that relates
// the two sides, so the comparison can never hold or never fail
// symbolically in a way the rule system can represent.
func compileComparison(in IfBranchConditions, left, right Message) (thenC, elseC IfBranchConditions, err error) {
	left = in.Apply(left)
	right = in.Apply(right)

	fwd, bwd, ok := Unify(left, right, in.Guard, in.Guard)
	if !ok {
		return IfBranchConditions{}, IfBranchConditions{}, &InvalidComparisonError{
			Comparison: left.String() + " = " + right.String(),
			Msg:        "sides can never unify under the current branch conditions",
		}
	}
	_ = bwd

	thenSigma, mergeOK := in.Sigma.Merge(fwd)
	if !mergeOK {
		return IfBranchConditions{}, IfBranchConditions{}, &InvalidComparisonError{
			Comparison: left.String() + " = " + right.String(),
			Msg:        "comparison result conflicts with prior branch bindings",
		}
	}
	thenC = IfBranchConditions{Sigma: thenSigma, Guard: in.Guard.Simplify(thenSigma)}

	elseGuard := in.Guard
	if lv, isVar := left.(*Variable); isVar {
		elseGuard = elseGuard.WithDisequality(lv, right)
	} else if rv, isVar := right.(*Variable); isVar {
		elseGuard = elseGuard.WithDisequality(rv, left)
	}
	elseC = IfBranchConditions{Sigma: in.Sigma, Guard: elseGuard}
	return thenC, elseC, nil
}
