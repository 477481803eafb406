package veripi

import (
	"sync/atomic"

	"github.com/google/uuid"
	hclog "github.com/hashicorp/go-hclog"
)

// defaultClauseBound caps the total number of clause applications a
// single backward resolution search may perform. It is large enough
// for the shallow chains real models produce and small enough that a
// pathological free-variable model terminates quickly.
const defaultClauseBound = 5000

// StepStatus is the outcome of one unit of query engine progress.
type StepStatus int

const (
	StepProgress StepStatus = iota
	StepNeedsInput
	StepDone
)

// phase tracks where a QueryEngine is in its single-threaded,
// resumable procedure: elaborate, check the global clauses once, then
// assess one nession per Step call until the frontier is exhausted.
type phase int

const (
	phasePending phase = iota
	phaseElaborated
	phaseGlobalChecked
	phaseNessions
	phaseDone
)

// QueryEngine drives nession elaboration and backward resolution to
// decide whether the attacker can learn a query message. It is
// single-use: construct one per Translation. Step advances it one unit
// at a time; Execute is a convenience wrapper that runs Step to
// completion and fires callbacks as each unit resolves.
type QueryEngine struct {
	log hclog.Logger

	initial []State
	query   Message
	rules   []*Rule
	depth   int
	limit   int

	cancelled int32 // atomic

	ph          phase
	nessions    []*Nession
	nessionIdx  int
	global      []*HornClause
	globalHit   *Attack
	lastNession *Nession
	lastAttack  *Attack
}

// NewQueryEngine builds a query engine from a Translation's outputs.
func NewQueryEngine(initialStates []State, query Message, rules []*Rule, depth int, log hclog.Logger) *QueryEngine {
	if log == nil {
		log = hclog.NewNullLogger()
	}
	return &QueryEngine{
		log:     log.Named("query"),
		initial: initialStates,
		query:   query,
		rules:   rules,
		depth:   depth,
		limit:   defaultClauseBound,
	}
}

// SetClauseBound overrides the per-search clause-application bound used
// by Step/Execute; n <= 0 leaves defaultClauseBound in effect.
func (q *QueryEngine) SetClauseBound(n int) {
	if n > 0 {
		q.limit = n
	}
}

// Nessions returns the elaborated frontier once Step has passed
// phaseElaborated; nil before that.
func (q *QueryEngine) Nessions() []*Nession { return q.nessions }

// LastAssessed returns the nession and attack (possibly nil) produced
// by the most recent phaseNessions Step call.
func (q *QueryEngine) LastAssessed() (*Nession, *Attack) { return q.lastNession, q.lastAttack }

// GlobalAttack returns the rank-independent attack found during the
// global check, or nil if none was found (valid once past
// phaseGlobalChecked).
func (q *QueryEngine) GlobalAttack() *Attack { return q.globalHit }

// Step performs one unit of the query procedure and reports whether the
// engine is done. The units, in order, are: elaborate the nession
// frontier; run the global (rank-independent) clause check; assess one
// nession per call against the rank-respecting clause set, until the
// frontier is exhausted or the engine is cancelled.
func (q *QueryEngine) Step() StepStatus {
	if q.isCancelled() {
		q.ph = phaseDone
		return StepDone
	}
	switch q.ph {
	case phasePending:
		q.nessions = Elaborate(q.initial, q.rules, q.depth)
		q.global = q.globalClauses()
		q.log.Debug("elaboration complete", "nessions", len(q.nessions), "depth", q.depth)
		q.ph = phaseElaborated
		return StepProgress
	case phaseElaborated:
		if attack, found := q.backwardChain(q.global, q.limit); found {
			q.log.Info("global attack found", "attack", attack.ID)
			q.globalHit = attack
		}
		q.ph = phaseGlobalChecked
		return StepProgress
	case phaseGlobalChecked:
		q.ph = phaseNessions
		return StepProgress
	case phaseNessions:
		if q.nessionIdx >= len(q.nessions) {
			q.ph = phaseDone
			return StepDone
		}
		ns := q.nessions[q.nessionIdx]
		q.nessionIdx++
		clauses := append(append([]*HornClause{}, q.global...), ns.SpecialiseClauses()...)
		attack, found := q.backwardChain(clauses, q.limit)
		q.lastNession = ns
		if found {
			attack.Nession = ns
			q.lastAttack = attack
		} else {
			q.lastAttack = nil
		}
		if q.nessionIdx >= len(q.nessions) {
			q.ph = phaseDone
		}
		return StepProgress
	default:
		return StepDone
	}
}

// Cancel requests the engine stop at its next checkpoint, either
// between nessions or between resolution steps. Idempotent.
func (q *QueryEngine) Cancel() {
	atomic.StoreInt32(&q.cancelled, 1)
}

func (q *QueryEngine) isCancelled() bool {
	return atomic.LoadInt32(&q.cancelled) != 0
}

// globalClauses extracts the subset of this engine's State-Consistent
// rules whose premises carry no snapshot witnesses at all: their
// validity does not depend on any particular nession frame, so they
// are assigned UniversalRank and checked once, independent of
// elaboration .
func (q *QueryEngine) globalClauses() []*HornClause {
	var out []*HornClause
	for _, r := range q.rules {
		if r.Kind != Consistent {
			continue
		}
		stateless := true
		for _, p := range r.Premises {
			if len(p.Snapshots) > 0 {
				stateless = false
				break
			}
		}
		if !stateless {
			continue
		}
		if hc, ok := FromStateConsistentRule(r, UniversalRank); ok {
			out = append(out, hc)
		}
	}
	return out
}

// Execute runs Step to completion, firing callbacks in the order their
// underlying unit resolves: nessions generated (once, after
// elaboration), any global attack (once, after the global check), one
// assessment per nession, then completion. elaborationLimit bounds the
// number of clause applications a single backward resolution may
// perform; 0 selects defaultClauseBound. It is a convenience wrapper —
// a caller that wants to interleave query progress with other work
// should drive Step directly instead (see internal/sched).
func (q *QueryEngine) Execute(
	onNessionsGenerated func([]*Nession),
	onGlobalAttackFound func(*Attack),
	onAttackAssessed func(*Nession, *Attack),
	onCompletion func(),
	elaborationLimit int,
) {
	q.SetClauseBound(elaborationLimit)
	nessionsFired := false
	globalFired := false
	for {
		ph := q.ph
		status := q.Step()
		switch ph {
		case phaseElaborated:
			if !nessionsFired && onNessionsGenerated != nil {
				onNessionsGenerated(q.nessions)
			}
			nessionsFired = true
		case phaseGlobalChecked:
			if !globalFired && q.globalHit != nil && onGlobalAttackFound != nil {
				onGlobalAttackFound(q.globalHit)
			}
			globalFired = true
		case phaseNessions:
			if onAttackAssessed != nil {
				onAttackAssessed(q.LastAssessed())
			}
		}
		if status == StepDone {
			break
		}
	}
	if onCompletion != nil {
		onCompletion()
	}
}

// resolutionState is one node of the backward-resolution worklist: the
// remaining goals still to be derived, the guard accumulated so far,
// the chain of clauses applied to reach this point, and the lowest
// clause rank used (the "current frame" ceiling: once a frame-specific
// clause is used, every later pick in this branch must be compatible
// with that frame or be rank-independent).
type resolutionState struct {
	Goals []Message
	Guard *Guard
	Chain []*HornClause
	Frame int
}

// backwardChain performs SLD-style backward resolution of q.query
// against clauses, preferring rank −1 (universal) clauses over
// frame-specific ones and, among frame-specific clauses, those whose
// rank does not exceed the current frame ceiling. It deduplicates
// worklist entries by their ordered goal list and stops once it has
// attempted clauseBound clause applications.
func (q *QueryEngine) backwardChain(clauses []*HornClause, clauseBound int) (*Attack, bool) {
	if len(clauses) == 0 {
		return nil, false
	}
	start := resolutionState{Goals: []Message{q.query}, Guard: EmptyGuard(), Frame: int(^uint(0) >> 1)}
	worklist := []resolutionState{start}
	seen := map[string]bool{}
	applied := 0

	for len(worklist) > 0 {
		if q.isCancelled() {
			return nil, false
		}
		if applied >= clauseBound {
			q.log.Debug("backward resolution bounded", "clauses", applied)
			return nil, false
		}

		cur := worklist[0]
		worklist = worklist[1:]

		if len(cur.Goals) == 0 {
			return &Attack{ID: uuid.New(), Query: q.query, Chain: cur.Chain}, true
		}

		key := stateKey(cur)
		if seen[key] {
			continue
		}
		seen[key] = true

		goal := cur.Goals[0]
		rest := cur.Goals[1:]

		for _, clause := range orderedCandidates(clauses, cur.Frame) {
			applied++
			renamed := renameClause(clause)
			fwd, bwd, ok := Unify(goal, renamed.Conclusion, cur.Guard, renamed.Guard)
			if !ok {
				continue
			}
			combined, ok := fwd.Merge(bwd)
			if !ok {
				continue
			}

			newGoals := make([]Message, 0, len(rest)+len(renamed.Premises))
			for _, p := range renamed.Premises {
				newGoals = append(newGoals, combined.Walk(p))
			}
			for _, g := range rest {
				newGoals = append(newGoals, combined.Walk(g))
			}

			newGuard := cur.Guard.Union(renamed.Guard).Simplify(combined)
			newFrame := cur.Frame
			if clause.Rank != UniversalRank && clause.Rank < newFrame {
				newFrame = clause.Rank
			}
			next := resolutionState{
				Goals: newGoals,
				Guard: newGuard,
				Chain: append(append([]*HornClause{}, cur.Chain...), clause),
				Frame: newFrame,
			}
			worklist = append(worklist, next)
		}
	}
	return nil, false
}

// orderedCandidates returns the clauses usable at frame, without any
// filtering by goal, sorted so universal clauses come first, then frame-specific clauses at or below frame,
// ascending by rank — the preference order of backward resolution.
// Frame-specific clauses whose rank exceeds frame are skipped: they
// describe facts not yet established at this point in the trace.
func orderedCandidates(clauses []*HornClause, frame int) []*HornClause {
	var universal, framed []*HornClause
	for _, c := range clauses {
		if c.Rank == UniversalRank {
			universal = append(universal, c)
		} else if c.Rank <= frame {
			framed = append(framed, c)
		}
	}
	for i := 0; i < len(framed); i++ {
		for j := i + 1; j < len(framed); j++ {
			if framed[j].Rank < framed[i].Rank {
				framed[i], framed[j] = framed[j], framed[i]
			}
		}
	}
	return append(universal, framed...)
}

// renameClause freshens every variable in a HornClause so resolving
// against it repeatedly, or alongside another clause drawn from the
// same rule, never aliases variables across uses.
func renameClause(h *HornClause) *HornClause {
	sigma := EmptySigma()
	seen := map[int64]bool{}
	collect := func(m Message) {
		for _, v := range m.Vars() {
			if !seen[v.Id] {
				seen[v.Id] = true
				sigma = sigma.Extend(v, FreshVariable(v.Name))
			}
		}
	}
	for _, p := range h.Premises {
		collect(p)
	}
	collect(h.Conclusion)
	for _, v := range h.Guard.Vars() {
		collect(v)
	}
	return h.Substitute(sigma)
}

// stateKey renders a resolutionState's remaining goals, in order, as a
// string for the worklist's duplicate check: two states whose goal lists
// print identically represent the same residual proof obligation and
// need only be explored once. Goal lists that differ only in order, or
// only in variable names, get different keys.
func stateKey(s resolutionState) string {
	key := ""
	for i, g := range s.Goals {
		if i > 0 {
			key += "|"
		}
		key += g.String()
	}
	return key
}
