package veripi

import "testing"

func TestCompileComparisonVariableEquality(t *testing.T) {
	v := FreshVariable("x")
	n := NewName("n")

	thenC, elseC, err := compileComparison(EmptyBranchConditions(), v, n)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !thenC.Apply(v).Equal(n) {
		t.Fatalf("expected the then-branch to bind the variable to n")
	}
	if !elseC.Guard.Forbids(v, n, EmptySigma()) {
		t.Fatalf("expected the else-branch to forbid the variable from equaling n")
	}
}

func TestCompileComparisonStructuralMatch(t *testing.T) {
	x := FreshVariable("x")
	y := FreshVariable("y")
	left := NewTuple(x, y)
	right := NewTuple(NewName("a"), NewName("b"))

	thenC, _, err := compileComparison(EmptyBranchConditions(), left, right)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !thenC.Apply(x).Equal(NewName("a")) || !thenC.Apply(y).Equal(NewName("b")) {
		t.Fatalf("expected the then-branch to bind each component")
	}
}

func TestCompileComparisonRejectsUnrelatedGroundTerms(t *testing.T) {
	a := NewName("a")
	b := NewName("b")
	_, _, err := compileComparison(EmptyBranchConditions(), a, b)
	if err == nil {
		t.Fatalf("expected distinct ground names to be reported as an invalid comparison")
	}
	if _, ok := err.(*InvalidComparisonError); !ok {
		t.Fatalf("expected an *InvalidComparisonError, got %T", err)
	}
}

func TestIfBranchConditionsAndMergesDisjointBindings(t *testing.T) {
	x := FreshVariable("x")
	y := FreshVariable("y")
	a, _ := EmptyBranchConditions().WithEquality(x, NewName("n1"))
	b, _ := EmptyBranchConditions().WithEquality(y, NewName("n2"))

	merged, ok := a.And(b)
	if !ok {
		t.Fatalf("expected disjoint bindings to merge cleanly")
	}
	if !merged.Apply(x).Equal(NewName("n1")) || !merged.Apply(y).Equal(NewName("n2")) {
		t.Fatalf("expected both bindings to survive the merge")
	}
}

func TestIfBranchConditionsAndRejectsConflictingBindings(t *testing.T) {
	x := FreshVariable("x")
	a, _ := EmptyBranchConditions().WithEquality(x, NewName("n1"))
	b, _ := EmptyBranchConditions().WithEquality(x, NewName("n2"))

	if _, ok := a.And(b); ok {
		t.Fatalf("expected conflicting bindings on the same variable to fail to merge")
	}
}
