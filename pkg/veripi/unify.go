package veripi

// Unify performs symmetric unification of a and b: both may be
// substituted. Given a guard for each side, it returns the forward map
// (applied to a) and backward map (applied to b) such that
// fwd(a) = bwd(b) and no guard is violated, or ok=false on failure.
//
// This mirrors gokando's unify()/unifyWithConstraints two-pass walk
// (primitives.go), generalised from Pair-only structures to Function and
// Tuple, and from a single Substitution to the forward/backward pair the
// asymmetric UnifiedTo mode below also needs.
func Unify(a, b Message, fromGuard, toGuard *Guard) (fwd, bwd *SigmaMap, ok bool) {
	f := NewSigmaFactory(dirBoth, fromGuard, toGuard)
	unifyWalk(a, b, f)
	return f.Result()
}

// UnifiedTo performs asymmetric unification: only a may be substituted;
// b is the fixed target (used when matching a rule's premise pattern
// against a known, already-ground fact).
func UnifiedTo(a, b Message, fromGuard *Guard) (fwd *SigmaMap, ok bool) {
	f := NewSigmaFactory(dirFromOnly, fromGuard, EmptyGuard())
	unifyWalk(a, b, f)
	fwd, _, ok = f.Result()
	return fwd, ok
}

// unifyWalk is the shared recursive descent for both unification modes.
// It walks a and b through the bindings accumulated so far in f, then
// dispatches on their shapes. Function-symbol and tuple-arity mismatches
// fail immediately; the occurs-check is applied before every binding.
func unifyWalk(a, b Message, f *SigmaFactory) {
	if !f.Ok() {
		return
	}
	wa := f.fwd.Walk(a)
	wb := f.bwd.Walk(b)

	if wa.Equal(wb) {
		return
	}

	if va, isVar := wa.(*Variable); isVar {
		if occurs(va, wb, f.fwd) {
			f.Fail()
			return
		}
		f.BindForward(va, wb)
		return
	}
	if vb, isVar := wb.(*Variable); isVar {
		if occurs(vb, wa, f.bwd) {
			f.Fail()
			return
		}
		f.BindBackward(vb, wa)
		return
	}

	switch ta := wa.(type) {
	case *Function:
		tb, ok := wb.(*Function)
		if !ok || ta.Symbol != tb.Symbol || len(ta.Args) != len(tb.Args) {
			f.Fail()
			return
		}
		for i := range ta.Args {
			unifyWalk(ta.Args[i], tb.Args[i], f)
			if !f.Ok() {
				return
			}
		}
	case *Tuple:
		tb, ok := wb.(*Tuple)
		if !ok || len(ta.Elems) != len(tb.Elems) {
			f.Fail()
			return
		}
		for i := range ta.Elems {
			unifyWalk(ta.Elems[i], tb.Elems[i], f)
			if !f.Ok() {
				return
			}
		}
	default:
		// Name or Nonce that failed the Equal check above: no other
		// variant can unify with it.
		f.Fail()
	}
}

// occurs is the occurs-check: true if v appears anywhere inside m once m
// is walked through the bindings accumulated so far. A variable may never
// be bound to a term containing itself .
func occurs(v *Variable, m Message, acc *SigmaMap) bool {
	walked := acc.Walk(m)
	for _, fv := range walked.Vars() {
		if fv.Id == v.Id {
			return true
		}
	}
	return false
}
