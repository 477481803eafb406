package veripi

import "strings"

// SourceKind records why a HornClause exists, for diagnostics and attack
// reconstruction.
type SourceKind int

const (
	SourceComposition SourceKind = iota
	SourceSubstitution
	SourceKnowledgeRule
	SourceNessionFrame
)

// ClauseSource carries provenance metadata for a HornClause.
type ClauseSource struct {
	Kind   SourceKind
	Detail string
	// Parents references the HornClauses this one was derived from, for
	// attack-chain reconstruction.
	Parents []*HornClause
}

// UniversalRank marks a HornClause as valid in every nession frame.
const UniversalRank = -1

// HornClause is the pure logical form {premises} |- conclusion used by
// the Query engine: a set of premise messages (always Know-predicate
// messages once extracted from a Rule), a guard, and a
// Rank (the nession-frame index it is valid in, or UniversalRank).
type HornClause struct {
	Premises   []Message
	Conclusion Message
	Guard      *Guard
	Rank       int
	Source     ClauseSource
	Label      string
}

func (h *HornClause) String() string {
	parts := make([]string, len(h.Premises))
	for i, p := range h.Premises {
		parts[i] = "k(" + p.String() + ")"
	}
	return strings.Join(parts, ", ") + " -> k(" + h.Conclusion.String() + ")"
}

// Substitute applies sigma to every message in the clause.
func (h *HornClause) Substitute(sigma *SigmaMap) *HornClause {
	premises := make([]Message, len(h.Premises))
	for i, p := range h.Premises {
		premises[i] = sigma.Walk(p)
	}
	return &HornClause{
		Premises:   premises,
		Conclusion: sigma.Walk(h.Conclusion),
		Guard:      substituteGuard(h.Guard, sigma),
		Rank:       h.Rank,
		Source:     ClauseSource{Kind: SourceSubstitution, Parents: []*HornClause{h}},
		Label:      h.Label,
	}
}

// FromStateConsistentRule extracts the pure Horn form of a
// State-Consistent rule whose premises are all Know events and whose
// result is a Know or Leak event. For any other rule (a Transferring
// rule, or one with another premise or result kind) it reports false,
// and that rule takes no part in backward resolution.
func FromStateConsistentRule(r *Rule, rank int) (*HornClause, bool) {
	if r.Kind != Consistent || (r.Result.Kind != Know && r.Result.Kind != Leak) {
		return nil, false
	}
	var premises []Message
	for _, p := range r.Premises {
		if p.Event.Kind != Know {
			return nil, false
		}
		premises = append(premises, p.Event.Msg)
	}
	return &HornClause{
		Premises:   premises,
		Conclusion: r.Result.Msg,
		Guard:      r.Guard,
		Rank:       rank,
		Source:     ClauseSource{Kind: SourceKnowledgeRule, Detail: r.Label},
		Label:      r.Label,
	}, true
}
