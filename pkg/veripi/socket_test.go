package veripi

import "testing"

func TestSocketCellName(t *testing.T) {
	c := NewName("c")
	s := &Socket{Channel: c, Branch: FiniteBranch(2), Dir: DirIn}
	got := s.CellName()
	want := "socket(c,#2,in)"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestBranchIdString(t *testing.T) {
	if got := InfiniteBranch().String(); got != "inf" {
		t.Fatalf("expected an infinite branch to render as inf, got %q", got)
	}
	if got := FiniteBranch(3).String(); got != "#3" {
		t.Fatalf("expected a finite branch to render with its chain id, got %q", got)
	}
}

func TestSummarizeBranchesSeparatesParallelChains(t *testing.T) {
	c := NewName("c")
	left := &RIn{Channel: c, Pattern: FreshVariable("x"), Chain: 1, Next: &RNil{}}
	right := &ROut{Channel: c, Term: NewName("m"), Chain: 2, Next: &RNil{}}
	root := &RPar{Branches: []RProc{left, right}}

	summaries := SummarizeBranches(root)

	if _, ok := summaries[1]; !ok {
		t.Fatalf("expected a summary for the left branch's chain")
	}
	if _, ok := summaries[2]; !ok {
		t.Fatalf("expected a summary for the right branch's chain")
	}
	if len(summaries[1].Reads) != 1 {
		t.Fatalf("expected the left chain to record exactly one read socket")
	}
	if len(summaries[2].Writes) != 1 {
		t.Fatalf("expected the right chain to record exactly one write socket")
	}
}

func TestSummarizeBranchesMarksReplicationInfinite(t *testing.T) {
	c := NewName("c")
	body := &RIn{Channel: c, Pattern: FreshVariable("x"), Chain: 1, Next: &RNil{}}
	root := &RRepl{Body: body}

	summaries := SummarizeBranches(root)
	bs, ok := summaries[1]
	if !ok {
		t.Fatalf("expected a summary for the replicated body's chain")
	}
	if !bs.UnderReplication {
		t.Fatalf("expected the replicated chain to be marked UnderReplication")
	}
	sock := bs.Reads[c.String()]
	if sock == nil {
		t.Fatalf("expected a read socket to have been recorded")
	}
	if sock.Branch.Kind != BranchInfinite {
		t.Fatalf("expected a socket under replication to get an Infinite branch id")
	}
}
