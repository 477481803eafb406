package veripi

import "testing"

func TestUnifyBasics(t *testing.T) {
	t.Run("variable unifies with ground term", func(t *testing.T) {
		x := FreshVariable("x")
		fwd, _, ok := Unify(x, NewName("a"), EmptyGuard(), EmptyGuard())
		if !ok {
			t.Fatalf("expected unification to succeed")
		}
		if got, _ := fwd.Lookup(x); !got.Equal(NewName("a")) {
			t.Fatalf("expected x bound to a, got %v", got)
		}
	})

	t.Run("identical ground terms unify with no bindings", func(t *testing.T) {
		fwd, bwd, ok := Unify(NewName("a"), NewName("a"), EmptyGuard(), EmptyGuard())
		if !ok || !fwd.IsEmpty() || !bwd.IsEmpty() {
			t.Fatalf("expected trivial success with empty substitutions")
		}
	})

	t.Run("distinct names fail", func(t *testing.T) {
		if _, _, ok := Unify(NewName("a"), NewName("b"), EmptyGuard(), EmptyGuard()); ok {
			t.Fatalf("expected distinct names to fail unification")
		}
	})

	t.Run("function symbol mismatch fails", func(t *testing.T) {
		a := NewFunction("f", NewName("x"))
		b := NewFunction("g", NewName("x"))
		if _, _, ok := Unify(a, b, EmptyGuard(), EmptyGuard()); ok {
			t.Fatalf("expected mismatched function symbols to fail")
		}
	})

	t.Run("function arity mismatch fails", func(t *testing.T) {
		a := NewFunction("f", NewName("x"))
		b := NewFunction("f", NewName("x"), NewName("y"))
		if _, _, ok := Unify(a, b, EmptyGuard(), EmptyGuard()); ok {
			t.Fatalf("expected mismatched arity to fail")
		}
	})

	t.Run("recursive structural unification binds nested variables", func(t *testing.T) {
		x := FreshVariable("x")
		y := FreshVariable("y")
		a := NewFunction("pair", x, NewName("k"))
		b := NewFunction("pair", NewName("m"), y)
		fwd, bwd, ok := Unify(a, b, EmptyGuard(), EmptyGuard())
		if !ok {
			t.Fatalf("expected unification to succeed")
		}
		if got, _ := fwd.Lookup(x); !got.Equal(NewName("m")) {
			t.Fatalf("expected x bound to m, got %v", got)
		}
		if got, _ := bwd.Lookup(y); !got.Equal(NewName("k")) {
			t.Fatalf("expected y bound to k, got %v", got)
		}
	})

	t.Run("occurs check rejects self-referential binding", func(t *testing.T) {
		x := FreshVariable("x")
		term := NewFunction("f", x)
		if _, _, ok := Unify(x, term, EmptyGuard(), EmptyGuard()); ok {
			t.Fatalf("expected occurs-check failure")
		}
	})

	t.Run("guard disequality rejects a specific binding", func(t *testing.T) {
		x := FreshVariable("x")
		guard := EmptyGuard().WithDisequality(x, NewName("forbidden"))
		if _, _, ok := Unify(x, NewName("forbidden"), guard, EmptyGuard()); ok {
			t.Fatalf("expected guard to reject binding x to forbidden")
		}
		if _, _, ok := Unify(x, NewName("allowed"), guard, EmptyGuard()); !ok {
			t.Fatalf("expected guard to allow binding x to a different term")
		}
	})
}

func TestUnifiedToAsymmetric(t *testing.T) {
	t.Run("only the from side may bind", func(t *testing.T) {
		x := FreshVariable("x")
		fwd, ok := UnifiedTo(x, NewName("a"), EmptyGuard())
		if !ok {
			t.Fatalf("expected match to succeed")
		}
		if got, _ := fwd.Lookup(x); !got.Equal(NewName("a")) {
			t.Fatalf("expected x bound to a")
		}
	})

	t.Run("a free variable on the to side cannot be bound", func(t *testing.T) {
		y := FreshVariable("y")
		if _, ok := UnifiedTo(NewName("a"), y, EmptyGuard()); ok {
			t.Fatalf("expected matching a ground from-term against a to-side variable to fail")
		}
	})

	t.Run("structural match binds every from-side variable", func(t *testing.T) {
		x := FreshVariable("x")
		pattern := NewFunction("dec", x, NewName("k"))
		target := NewFunction("dec", NewName("ciphertext"), NewName("k"))
		fwd, ok := UnifiedTo(pattern, target, EmptyGuard())
		if !ok {
			t.Fatalf("expected structural match to succeed")
		}
		if got, _ := fwd.Lookup(x); !got.Equal(NewName("ciphertext")) {
			t.Fatalf("expected x bound to ciphertext, got %v", got)
		}
	})
}
