package veripi

import (
	"testing"

	"github.com/gitrdm/veripi/internal/lang"
)

func mustParse(t *testing.T, src string) *lang.Network {
	t.Helper()
	net, err := lang.Parse(src)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	return net
}

func TestResolveTracksPublicAndPrivateFrees(t *testing.T) {
	net := mustParse(t, `free c: channel.
free secret: bitstring [private].
query attacker(secret).
process 0`)

	resolved, err := NewResolver(nil).Resolve(net)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resolved.FreeNames) != 2 {
		t.Fatalf("expected 2 free names, got %d", len(resolved.FreeNames))
	}
	if len(resolved.PublicFrees) != 1 || resolved.PublicFrees[0].Symbol != "c" {
		t.Fatalf("expected only c to be public, got %+v", resolved.PublicFrees)
	}
}

func TestResolveRejectsDuplicateFree(t *testing.T) {
	net := mustParse(t, `free c: channel.
free c: channel.
query attacker(c).
process 0`)
	if _, err := NewResolver(nil).Resolve(net); err == nil {
		t.Fatalf("expected a duplicate free declaration to be rejected")
	}
}

func TestResolveRequiresExactlyOneQuery(t *testing.T) {
	net := mustParse(t, `free c: channel.
process 0`)
	if _, err := NewResolver(nil).Resolve(net); err == nil {
		t.Fatalf("expected a missing query to be rejected")
	}
}

func TestResolveAssignsFreshChainsToParallelBranches(t *testing.T) {
	net := mustParse(t, `free c: channel.
query attacker(c).
process out(c, c) | out(c, c)`)
	resolved, err := NewResolver(nil).Resolve(net)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	par, ok := resolved.Process.(*RPar)
	if !ok {
		t.Fatalf("expected the resolved process to be an RPar, got %T", resolved.Process)
	}
	left := par.Branches[0].(*ROut)
	right := par.Branches[1].(*ROut)
	if left.Chain == right.Chain {
		t.Fatalf("expected each parallel branch to get its own chain id")
	}
}

func TestResolveInlinesMacroCalls(t *testing.T) {
	net := mustParse(t, `free c: channel.
let Sender(ch: channel) = out(ch, ch).
query attacker(c).
process Sender(c)`)
	resolved, err := NewResolver(nil).Resolve(net)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := resolved.Process.(*ROut); !ok {
		t.Fatalf("expected the macro call to be inlined into an ROut, got %T", resolved.Process)
	}
}

func TestResolveRejectsRecursiveMacro(t *testing.T) {
	net := mustParse(t, `free c: channel.
let Loop() = Loop().
query attacker(c).
process Loop()`)
	if _, err := NewResolver(nil).Resolve(net); err == nil {
		t.Fatalf("expected a directly recursive macro call to be rejected")
	}
}

func TestResolveDestructorClauses(t *testing.T) {
	net := mustParse(t, `fun enc(bitstring, bitstring): bitstring.
free k: bitstring [private].
reduc forall m: bitstring, key: bitstring; dec(enc(m, key), key) = m.
query attacker(k).
process 0`)
	resolved, err := NewResolver(nil).Resolve(net)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	clauses, ok := resolved.Destructors["dec"]
	if !ok || len(clauses) != 1 {
		t.Fatalf("expected one destructor clause for dec, got %+v", resolved.Destructors)
	}
}
