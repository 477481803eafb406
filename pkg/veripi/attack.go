package veripi

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Attack is the result of a successful backward resolution: the query
// message, the chain of HornClauses selected to derive it (in
// resolution order, the last entry concluding the query), and the
// Nession that supplied the frame-specific clauses, or nil for a
// global (rank-independent) attack found before any nession was
// assessed .
type Attack struct {
	ID      uuid.UUID
	Query   Message
	Chain   []*HornClause
	Nession *Nession
}

// String renders a numbered derivation, matching the source language's
// rule textual form closely enough for diagnostics without claiming to
// be a parser round-trip.
func (a *Attack) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "attack %s: attacker(%s)\n", a.ID, a.Query.String())
	for i, hc := range a.Chain {
		fmt.Fprintf(&b, "  %d. %s\n", i+1, hc.String())
	}
	if a.Nession != nil {
		fmt.Fprintf(&b, "  via nession %s (%d frame(s))\n", a.Nession.ID, len(a.Nession.Frames))
	} else {
		b.WriteString("  via global (rank-independent) derivation\n")
	}
	return b.String()
}
