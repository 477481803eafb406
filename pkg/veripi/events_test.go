package veripi

import "testing"

func TestEventEqualityByKindAndMessage(t *testing.T) {
	n := NewName("n")
	a := NewEvent(Know, n)
	b := NewEvent(Know, n)
	c := NewEvent(Leak, n)

	if !a.Equal(b) {
		t.Fatalf("expected two Know events over the same message to be equal")
	}
	if a.Equal(c) {
		t.Fatalf("did not expect events of different kinds to be equal")
	}
}

func TestEventSubstitute(t *testing.T) {
	v := FreshVariable("x")
	n := NewName("n")
	sigma := EmptySigma().Extend(v, n)

	e := NewEvent(Know, v)
	substituted := e.Substitute(sigma)
	if !substituted.Msg.Equal(n) {
		t.Fatalf("expected substitution to resolve the event's message")
	}
}

func TestStateEqualityAndSubstitute(t *testing.T) {
	v := FreshVariable("x")
	n := NewName("n")
	sigma := EmptySigma().Extend(v, n)

	s := NewState("door", v)
	substituted := s.Substitute(sigma)
	if !substituted.Equal(NewState("door", n)) {
		t.Fatalf("expected the substituted state to equal the ground state")
	}
	if s.Equal(NewState("window", v)) {
		t.Fatalf("states on different cells must never be equal")
	}
}
