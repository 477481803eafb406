package veripi

import "testing"

func TestApplyTransferAppendsMutationFrame(t *testing.T) {
	rfT := NewRuleFactory("open")
	from := rfT.RegisterState(State{Cell: "door", Value: StateInitial()})
	rfT.TransfersTo(from, State{Cell: "door", Value: StateWaiting()})
	str, err := rfT.CreateStateTransferringRule()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rfS := NewRuleFactory("observe")
	obsSnap := rfS.RegisterState(State{Cell: "door", Value: StateInitial()})
	rfS.AddPremise(NewEvent(Know, NewName("key")), obsSnap)
	scr, err := rfS.CreateStateConsistentRule(NewEvent(Know, NewName("opened")))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out, ok := ApplyTransfer(str, scr)
	if !ok {
		t.Fatalf("expected the transfer to compose with the observing rule")
	}
	if out.Kind != Consistent {
		t.Fatalf("expected the composed rule to remain State-Consistent")
	}
	if !out.Result.Msg.Equal(NewName("opened")) {
		t.Fatalf("expected the composed rule to keep scr's result")
	}
}

func TestApplyTransferRejectsWrongKinds(t *testing.T) {
	rf := NewRuleFactory("consistent")
	consistent, err := rf.CreateStateConsistentRule(NewEvent(Know, NewName("a")))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := ApplyTransfer(consistent, consistent); ok {
		t.Fatalf("expected ApplyTransfer to reject a Consistent rule as the transferring argument")
	}
}

func TestApplyTransferFailsWithoutMatchingSnapshot(t *testing.T) {
	rfT := NewRuleFactory("open")
	from := rfT.RegisterState(State{Cell: "door", Value: StateInitial()})
	rfT.TransfersTo(from, State{Cell: "door", Value: StateWaiting()})
	str, err := rfT.CreateStateTransferringRule()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rfS := NewRuleFactory("unrelated")
	r, err := rfS.CreateStateConsistentRule(NewEvent(Know, NewName("x")))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, ok := ApplyTransfer(str, r); ok {
		t.Fatalf("expected ApplyTransfer to fail: scr never observes the door's initial state")
	}
}
