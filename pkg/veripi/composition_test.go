package veripi

import "testing"

func TestComposeChainsTwoRules(t *testing.T) {
	k := NewName("k")
	m := NewName("m")
	ciphertext := NewFunction("enc", m, k)

	rf1 := NewRuleFactory("knowCiphertext")
	r1, err := rf1.CreateStateConsistentRule(NewEvent(Know, ciphertext))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rf2 := NewRuleFactory("decrypt")
	rf2.AddPremise(NewEvent(Know, ciphertext))
	rf2.AddPremise(NewEvent(Know, k))
	r2, err := rf2.CreateStateConsistentRule(NewEvent(Know, m))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	composed, ok := Compose(r1, r2)
	if !ok {
		t.Fatalf("expected composition to succeed")
	}
	if !composed.Result.Msg.Equal(m) {
		t.Fatalf("expected the composed rule to still conclude m")
	}
	if len(composed.Premises) != 1 {
		t.Fatalf("expected the ciphertext premise to be replaced by r1's (empty) premises, leaving just the k premise, got %d", len(composed.Premises))
	}
}

func TestComposeFailsWithoutMatchingPremise(t *testing.T) {
	rf1 := NewRuleFactory("knowA")
	r1, err := rf1.CreateStateConsistentRule(NewEvent(Know, NewName("a")))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rf2 := NewRuleFactory("knowB")
	rf2.AddPremise(NewEvent(Know, NewName("other")))
	r2, err := rf2.CreateStateConsistentRule(NewEvent(Know, NewName("b")))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, ok := Compose(r1, r2); ok {
		t.Fatalf("expected composition to fail: no premise of r2 unifies with r1's result")
	}
}

func TestComposeRejectsTransferringFirstArgument(t *testing.T) {
	rf := NewRuleFactory("transfer")
	from := rf.RegisterState(State{Cell: "c", Value: StateInitial()})
	rf.TransfersTo(from, State{Cell: "c", Value: StateWaiting()})
	transferRule, err := rf.CreateStateTransferringRule()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rf2 := NewRuleFactory("consumer")
	rf2.AddPremise(NewEvent(Know, NewName("x")))
	r2, err := rf2.CreateStateConsistentRule(NewEvent(Know, NewName("y")))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, ok := Compose(transferRule, r2); ok {
		t.Fatalf("expected composition to reject a Transferring rule as the fact-producing side")
	}
}

func TestComposeRejectsTautology(t *testing.T) {
	n := NewName("n")
	m := NewName("m")
	rf1 := NewRuleFactory("reflect")
	rf1.AddPremise(NewEvent(Know, n))
	r1, err := rf1.CreateStateConsistentRule(NewEvent(Know, m))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rf2 := NewRuleFactory("noop")
	rf2.AddPremise(NewEvent(Know, m))
	r2, err := rf2.CreateStateConsistentRule(NewEvent(Know, n))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, ok := Compose(r1, r2); ok {
		t.Fatalf("expected composition to reject a rule whose result reappears among its own premises")
	}
}
