package veripi

import "testing"

func TestCreateStateConsistentRule(t *testing.T) {
	t.Run("builds a rule from accumulated premises", func(t *testing.T) {
		x := FreshVariable("x")
		rf := NewRuleFactory("encTest")
		rf.AddPremise(NewEvent(Know, x))
		rf.AddPremise(NewEvent(Know, NewName("k")))
		rule, err := rf.CreateStateConsistentRule(NewEvent(Know, NewFunction("enc", x, NewName("k"))))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if rule.Kind != Consistent {
			t.Fatalf("expected a Consistent rule")
		}
		if len(rule.Premises) != 2 {
			t.Fatalf("expected 2 premises, got %d", len(rule.Premises))
		}
	})

	t.Run("rejects leak as a premise", func(t *testing.T) {
		rf := NewRuleFactory("bad")
		rf.AddPremise(NewEvent(Leak, NewName("x")))
		if _, err := rf.CreateStateConsistentRule(NewEvent(Know, NewName("y"))); err == nil {
			t.Fatalf("expected an error for leak as a premise")
		}
	})

	t.Run("rejects init/new as a result", func(t *testing.T) {
		rf := NewRuleFactory("bad")
		if _, err := rf.CreateStateConsistentRule(NewEvent(Init, NewName("x"))); err == nil {
			t.Fatalf("expected an error for init as a result")
		}
	})

	t.Run("rejects a tautological result", func(t *testing.T) {
		m := NewName("m")
		rf := NewRuleFactory("tauto")
		rf.AddPremise(NewEvent(Know, m))
		if _, err := rf.CreateStateConsistentRule(NewEvent(Know, m)); err == nil {
			t.Fatalf("expected a tautology error")
		}
	})

	t.Run("factory resets after use", func(t *testing.T) {
		rf := NewRuleFactory("reuse")
		rf.AddPremise(NewEvent(Know, NewName("m")))
		if _, err := rf.CreateStateConsistentRule(NewEvent(Know, NewName("n"))); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		rule, err := rf.CreateStateConsistentRule(NewEvent(Know, NewName("o")))
		if err != nil {
			t.Fatalf("unexpected error after reset: %v", err)
		}
		if len(rule.Premises) != 0 {
			t.Fatalf("expected the reset factory to start with no premises, got %d", len(rule.Premises))
		}
	})
}

func TestCreateStateTransferringRule(t *testing.T) {
	t.Run("requires exactly one transfer", func(t *testing.T) {
		rf := NewRuleFactory("noTransfer")
		rf.RegisterState(State{Cell: "c", Value: StateInitial()})
		if _, err := rf.CreateStateTransferringRule(); err == nil {
			t.Fatalf("expected an error when no snapshot declares a transfer")
		}
	})

	t.Run("rejects more than one transfer", func(t *testing.T) {
		rf := NewRuleFactory("twoTransfers")
		a := rf.RegisterState(State{Cell: "c1", Value: StateInitial()})
		b := rf.RegisterState(State{Cell: "c2", Value: StateInitial()})
		rf.TransfersTo(a, State{Cell: "c1", Value: StateWaiting()})
		rf.TransfersTo(b, State{Cell: "c2", Value: StateWaiting()})
		if _, err := rf.CreateStateTransferringRule(); err == nil {
			t.Fatalf("expected an error when more than one snapshot declares a transfer")
		}
	})

	t.Run("builds a well-formed transferring rule", func(t *testing.T) {
		rf := NewRuleFactory("open")
		from := rf.RegisterState(State{Cell: "socket(c,#0,in)", Value: StateInitial()})
		rf.TransfersTo(from, State{Cell: "socket(c,#0,in)", Value: StateWaiting()})
		rule, err := rf.CreateStateTransferringRule()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if rule.Kind != Transferring {
			t.Fatalf("expected a Transferring rule")
		}
		if rule.TransferTo.Cell != "socket(c,#0,in)" {
			t.Fatalf("unexpected transfer target cell: %s", rule.TransferTo.Cell)
		}
	})

	t.Run("rejects an ordering cycle", func(t *testing.T) {
		rf := NewRuleFactory("cycle")
		a := rf.RegisterState(State{Cell: "c", Value: StateInitial()})
		b := rf.RegisterState(State{Cell: "c", Value: StateWaiting()})
		rf.LaterThan(a, b)
		rf.LaterThan(b, a)
		rf.TransfersTo(a, State{Cell: "c", Value: StateShut()})
		if _, err := rf.CreateStateTransferringRule(); err == nil {
			t.Fatalf("expected a cycle error")
		}
	})
}

func TestRuleRename(t *testing.T) {
	x := FreshVariable("x")
	rf := NewRuleFactory("renameMe")
	rf.AddPremise(NewEvent(Know, x))
	rule, err := rf.CreateStateConsistentRule(NewEvent(Know, NewFunction("hash", x)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	renamed := rule.Rename(newRenamer())
	if renamed.Premises[0].Event.Msg.Equal(x) {
		t.Fatalf("expected the renamed rule's premise variable to differ from the original")
	}
	if !renamed.Result.Msg.(*Function).Args[0].Equal(renamed.Premises[0].Event.Msg) {
		t.Fatalf("expected the same fresh variable to be shared between premise and result")
	}
}
