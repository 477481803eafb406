package veripi

import "fmt"

// SigmaMap is a finite mapping from variables to messages. It is the
// substitution type threaded through unification, rule composition and
// translation. SigmaMap values are immutable: every mutating operation
// (Extend) returns a new map, mirroring how gokando's Substitution.Bind
// clones rather than mutates in place, but without the mutex overhead a
// single-threaded cooperative reasoning core does not need.
type SigmaMap struct {
	bindings map[int64]Message
}

// EmptySigma is the identity substitution.
func EmptySigma() *SigmaMap { return &SigmaMap{} }

// IsEmpty reports whether this SigmaMap has no entries.
func (s *SigmaMap) IsEmpty() bool { return s == nil || len(s.bindings) == 0 }

// Lookup returns the message bound to v, and whether it was bound.
func (s *SigmaMap) Lookup(v *Variable) (Message, bool) {
	if s == nil {
		return nil, false
	}
	m, ok := s.bindings[v.Id]
	return m, ok
}

// Extend returns a new SigmaMap with v bound to m, in addition to this
// map's existing bindings. It does not check for cycles or re-walk
// existing bindings through the new one; callers apply substitutions in
// the walking style (see Walk), not the composing style, so this is
// sufficient for the single-pass application used throughout the engine.
func (s *SigmaMap) Extend(v *Variable, m Message) *SigmaMap {
	out := make(map[int64]Message, len(s.bindings)+1)
	for k, val := range s.bindings {
		out[k] = val
	}
	out[v.Id] = m
	return &SigmaMap{bindings: out}
}

// Merge combines two SigmaMaps. It fails (returns nil, false) if both
// maps bind the same variable to messages that are not structurally
// equal, since that signals a genuine substitution conflict (used when
// composing IfBranchConditions, see branchcond.go).
func (s *SigmaMap) Merge(other *SigmaMap) (*SigmaMap, bool) {
	out := make(map[int64]Message, len(s.bindings)+len(other.bindings))
	for k, v := range s.bindings {
		out[k] = v
	}
	for k, v := range other.bindings {
		if existing, ok := out[k]; ok && !existing.Equal(v) {
			return nil, false
		}
		out[k] = v
	}
	return &SigmaMap{bindings: out}, true
}

// Walk follows a chain of variable bindings in s until it reaches a
// non-variable message or an unbound variable, then applies s
// recursively to the result's structure. This is full substitution
// application, not just dereferencing: every Variable reachable anywhere
// in the term is replaced.
func (s *SigmaMap) Walk(m Message) Message {
	if s.IsEmpty() {
		return m
	}
	switch t := m.(type) {
	case *Variable:
		if bound, ok := s.Lookup(t); ok {
			return s.Walk(bound)
		}
		return t
	case *Function:
		args := make([]Message, len(t.Args))
		for i, a := range t.Args {
			args[i] = s.Walk(a)
		}
		return &Function{Symbol: t.Symbol, Args: args}
	case *Tuple:
		elems := make([]Message, len(t.Elems))
		for i, e := range t.Elems {
			elems[i] = s.Walk(e)
		}
		return &Tuple{Elems: elems}
	default:
		// Name, Nonce: ground, nothing to substitute.
		return m
	}
}

func (s *SigmaMap) String() string {
	if s.IsEmpty() {
		return "{}"
	}
	out := "{"
	first := true
	for id, m := range s.bindings {
		if !first {
			out += ", "
		}
		out += fmt.Sprintf("_v%d -> %s", id, m.String())
		first = false
	}
	return out + "}"
}

// Domain returns the variable ids bound by this SigmaMap.
func (s *SigmaMap) Domain() []int64 {
	out := make([]int64, 0, len(s.bindings))
	for id := range s.bindings {
		out = append(out, id)
	}
	return out
}

// direction records which side of a two-term walk is permitted to bind a
// given variable. Unifiable allows either side to bind; UnifiedTo allows
// only the "from" side.
type direction int

const (
	dirBoth direction = iota
	dirFromOnly
)

// SigmaFactory is a mutable builder accumulating two one-way
// substitutions (forward/backward) while unification walks two terms in
// parallel. It mirrors gokando's pattern of building up a Substitution
// incrementally during a single unify pass, but keeps the forward and
// backward maps distinct so asymmetric UnifiedTo unification can report
// which side the binding applies to.
type SigmaFactory struct {
	fwd, bwd *SigmaMap
	mode     direction
	fromGuard, toGuard *Guard
	ok bool
}

// NewSigmaFactory starts a fresh accumulation for a single unification
// call between a "from" term and a "to" term, under the given guards.
func NewSigmaFactory(mode direction, fromGuard, toGuard *Guard) *SigmaFactory {
	return &SigmaFactory{
		fwd: EmptySigma(), bwd: EmptySigma(),
		mode: mode, fromGuard: fromGuard, toGuard: toGuard,
		ok: true,
	}
}

// Fail marks this factory as having encountered an incompatibility.
// Subsequent Bind calls are no-ops.
func (f *SigmaFactory) Fail() { f.ok = false }

// Ok reports whether the factory has not yet failed.
func (f *SigmaFactory) Ok() bool { return f.ok }

// BindForward records that v (a variable on the "from" side) is bound to
// m (walked through the "to" side's perspective), subject to the
// from-side guard. Returns false (and marks failure) if the guard
// forbids it.
func (f *SigmaFactory) BindForward(v *Variable, m Message) bool {
	if !f.ok {
		return false
	}
	if f.fromGuard.Forbids(v, m, f.fwd) {
		f.ok = false
		return false
	}
	f.fwd = f.fwd.Extend(v, m)
	return true
}

// BindBackward records a binding on the "to" side. UnifiedTo mode
// rejects any attempt to bind the to-side (it is the fixed target).
func (f *SigmaFactory) BindBackward(v *Variable, m Message) bool {
	if !f.ok {
		return false
	}
	if f.mode == dirFromOnly {
		f.ok = false
		return false
	}
	if f.toGuard.Forbids(v, m, f.bwd) {
		f.ok = false
		return false
	}
	f.bwd = f.bwd.Extend(v, m)
	return true
}

// Result yields the accumulated forward and backward SigmaMaps if the
// factory has not failed.
func (f *SigmaFactory) Result() (fwd, bwd *SigmaMap, ok bool) {
	if !f.ok {
		return nil, nil, false
	}
	return f.fwd, f.bwd, true
}
