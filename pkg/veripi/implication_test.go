package veripi

import "testing"

func TestImpliesSubsumesSpecificByGeneral(t *testing.T) {
	x := FreshVariable("x")
	rfGeneral := NewRuleFactory("general")
	rfGeneral.AddPremise(NewEvent(Know, x))
	general, err := rfGeneral.CreateStateConsistentRule(NewEvent(Know, NewFunction("hash", x)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	k := NewName("k")
	rfSpecific := NewRuleFactory("specific")
	rfSpecific.AddPremise(NewEvent(Know, k))
	specific, err := rfSpecific.CreateStateConsistentRule(NewEvent(Know, NewFunction("hash", k)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !Implies(general, specific) {
		t.Fatalf("expected the general rule to imply its specific instance")
	}
}

func TestImpliesRejectsDifferentKinds(t *testing.T) {
	rf := NewRuleFactory("consistent")
	consistent, err := rf.CreateStateConsistentRule(NewEvent(Know, NewName("a")))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rf2 := NewRuleFactory("transfer")
	from := rf2.RegisterState(State{Cell: "c", Value: StateInitial()})
	rf2.TransfersTo(from, State{Cell: "c", Value: StateWaiting()})
	transferring, err := rf2.CreateStateTransferringRule()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if Implies(consistent, transferring) {
		t.Fatalf("a Consistent rule must never imply a Transferring rule")
	}
}

func TestImpliesRejectsMismatchedResult(t *testing.T) {
	rf1 := NewRuleFactory("knowsA")
	a, err := rf1.CreateStateConsistentRule(NewEvent(Know, NewName("a")))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rf2 := NewRuleFactory("knowsB")
	b, err := rf2.CreateStateConsistentRule(NewEvent(Know, NewName("b")))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if Implies(a, b) {
		t.Fatalf("did not expect a rule concluding a to imply one concluding a different name")
	}
}

func TestImpliesRequiresEveryPremiseMatched(t *testing.T) {
	rfNeedsTwo := NewRuleFactory("needsTwo")
	rfNeedsTwo.AddPremise(NewEvent(Know, NewName("a")))
	rfNeedsTwo.AddPremise(NewEvent(Know, NewName("b")))
	needsTwo, err := rfNeedsTwo.CreateStateConsistentRule(NewEvent(Know, NewName("c")))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rfHasOne := NewRuleFactory("hasOne")
	rfHasOne.AddPremise(NewEvent(Know, NewName("a")))
	hasOne, err := rfHasOne.CreateStateConsistentRule(NewEvent(Know, NewName("c")))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if Implies(needsTwo, hasOne) {
		t.Fatalf("a rule requiring two premises must not imply one satisfying only one of them")
	}
}
