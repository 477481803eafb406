package veripi

import "testing"

func TestSigmaMapWalk(t *testing.T) {
	x := FreshVariable("x")
	y := FreshVariable("y")

	sigma := EmptySigma().Extend(x, y).Extend(y, NewName("done"))

	t.Run("chains through transitive bindings", func(t *testing.T) {
		if got := sigma.Walk(x); !got.Equal(NewName("done")) {
			t.Fatalf("Walk(x) = %s, want done", got)
		}
	})

	t.Run("substitutes inside compound terms", func(t *testing.T) {
		term := NewFunction("f", x, NewName("k"))
		got := sigma.Walk(term)
		want := NewFunction("f", NewName("done"), NewName("k"))
		if !got.Equal(want) {
			t.Fatalf("Walk(f(x,k)) = %s, want %s", got, want)
		}
	})

	t.Run("unbound variable passes through unchanged", func(t *testing.T) {
		z := FreshVariable("z")
		if got := sigma.Walk(z); !got.Equal(z) {
			t.Fatalf("Walk(z) = %s, want z unchanged", got)
		}
	})

	t.Run("empty sigma is the identity", func(t *testing.T) {
		term := NewFunction("f", x)
		if got := EmptySigma().Walk(term); !got.Equal(term) {
			t.Fatalf("empty Walk should be identity, got %s", got)
		}
	})
}

func TestSigmaMapMerge(t *testing.T) {
	x := FreshVariable("x")
	y := FreshVariable("y")

	t.Run("disjoint domains merge cleanly", func(t *testing.T) {
		a := EmptySigma().Extend(x, NewName("1"))
		b := EmptySigma().Extend(y, NewName("2"))
		merged, ok := a.Merge(b)
		if !ok {
			t.Fatalf("expected merge to succeed")
		}
		if got, _ := merged.Lookup(x); !got.Equal(NewName("1")) {
			t.Fatalf("merged map lost x's binding")
		}
		if got, _ := merged.Lookup(y); !got.Equal(NewName("2")) {
			t.Fatalf("merged map lost y's binding")
		}
	})

	t.Run("agreeing overlap merges", func(t *testing.T) {
		a := EmptySigma().Extend(x, NewName("1"))
		b := EmptySigma().Extend(x, NewName("1"))
		if _, ok := a.Merge(b); !ok {
			t.Fatalf("expected merge of identical bindings to succeed")
		}
	})

	t.Run("conflicting overlap fails", func(t *testing.T) {
		a := EmptySigma().Extend(x, NewName("1"))
		b := EmptySigma().Extend(x, NewName("2"))
		if _, ok := a.Merge(b); ok {
			t.Fatalf("expected merge of conflicting bindings to fail")
		}
	})
}
