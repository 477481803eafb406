package veripi

import (
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestAttackString(t *testing.T) {
	secret := NewName("secret")
	hc := &HornClause{Conclusion: secret, Label: "initialKnowledge"}
	attack := &Attack{ID: uuid.New(), Query: secret, Chain: []*HornClause{hc}}

	out := attack.String()
	if !strings.Contains(out, "attacker(secret)") {
		t.Fatalf("expected the rendered attack to name the query, got: %s", out)
	}
	if !strings.Contains(out, "global (rank-independent) derivation") {
		t.Fatalf("expected a nil-nession attack to report a global derivation, got: %s", out)
	}
}

func TestAttackStringWithNession(t *testing.T) {
	secret := NewName("secret")
	hc := &HornClause{Conclusion: secret}
	ns := &Nession{ID: uuid.New(), Frames: []*Frame{{}, {}}}
	attack := &Attack{ID: uuid.New(), Query: secret, Chain: []*HornClause{hc}, Nession: ns}

	out := attack.String()
	if !strings.Contains(out, "2 frame(s)") {
		t.Fatalf("expected the nession's frame count to be reported, got: %s", out)
	}
}
