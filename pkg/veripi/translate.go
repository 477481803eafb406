package veripi

import (
	"strconv"

	"github.com/hashicorp/go-hclog"
	multierror "github.com/hashicorp/go-multierror"
)

// Translation is the Translator's output :
// the initial states of every socket, the full rule set, the query
// messages to search for, and a heuristic elaboration depth.
type Translation struct {
	InitialStates   []State
	Rules           []*Rule
	Query           Message
	NotQueries      []Message
	RecommendedDepth int
}

// privateWrite is one occurrence of `out(c, term)` on a channel this
// translation treats as a direct (non-attacker-observable) wire.
type privateWrite struct {
	Term       Message
	Conditions IfBranchConditions
	Premises   []Event
	Socket     *Socket // the branch's Write socket for this occurrence, if SummarizeBranches found one
	UnderRepl  bool
}

// translator carries the state threaded through the two-pass walk
// described in DESIGN.md: a first pass discovers every private-channel
// write so the second pass can splice readers directly onto them,
// without needing a fixpoint loop. The accumulated branch restrictions
// are realised here as the (Conditions, Premises, underRepl) triple
// threaded through walkEmit.
type translator struct {
	log hclog.Logger

	net *ResolvedNetwork

	publicNames map[string]bool // free names NOT marked [private]
	leaked      map[string]*Name // private channel name -> synthetic token, once reified under replication

	privateWrites map[string][]privateWrite

	// chainSockets is the per-chain socket pre-processing pass result:
	// every chain's Read/Write sockets, keyed by the raw (unsubstituted)
	// channel term they were declared with, the same indexing
	// SummarizeBranches uses.
	chainSockets  map[ChainId]*BranchSummary
	initialStates []State
	gate          *Name // internal knowledge token gating cell-fact rules, minted on first use

	// queryVars are the Variables occurring in net.Query/NotQueries that
	// a `new` declaration's freshly-minted nonce must substitute into
	// before the query is handed to the query engine — `query
	// attacker(new value)` resolves to the *Variable the Resolver's
	// binder introduced, not to any one instance's nonce, since
	// resolution runs before nonces are minted (see resolver.go's
	// handling of the `new NAME` query syntax).
	queryVars    map[int64]bool
	queryRewrite *SigmaMap

	rules            []*Rule
	errs             *multierror.Error
	recommendedDepth int

	fresh int
}

// Translate compiles a resolved network into Horn rules .
func Translate(net *ResolvedNetwork, log hclog.Logger) (*Translation, error) {
	if log == nil {
		log = hclog.NewNullLogger()
	}
	t := &translator{
		log:           log.Named("translate"),
		net:           net,
		publicNames:   map[string]bool{},
		leaked:        map[string]*Name{},
		privateWrites: map[string][]privateWrite{},
		chainSockets:  SummarizeBranches(net.Process),
		queryVars:     map[int64]bool{},
		queryRewrite:  EmptySigma(),
	}
	for _, n := range net.PublicFrees {
		t.publicNames[n.Symbol] = true
	}
	for _, v := range net.Query.Vars() {
		t.queryVars[v.Id] = true
	}
	for _, nq := range net.NotQueries {
		for _, v := range nq.Vars() {
			t.queryVars[v.Id] = true
		}
	}
	t.emitAxioms()
	t.registerSocketLifecycle()

	t.collectPrivateWrites(net.Process, EmptyBranchConditions(), nil, false)
	t.walkEmit(net.Process, EmptyBranchConditions(), nil, false)

	if err := t.errs.ErrorOrNil(); err != nil {
		return nil, err
	}

	notQueries := make([]Message, len(net.NotQueries))
	for i, nq := range net.NotQueries {
		notQueries[i] = t.queryRewrite.Walk(nq)
	}
	return &Translation{
		InitialStates:    t.initialStates,
		Rules:            t.rules,
		Query:            t.queryRewrite.Walk(net.Query),
		NotQueries:       notQueries,
		RecommendedDepth: t.recommendedDepth + 1,
	}, nil
}

// registerSocketLifecycle seeds every socket the pre-processing pass
// found with its Initial state and an OpenSockets State-Transferring
// rule (Initial -> Waiting), before walkEmit wires any particular
// channel's traffic. Without this, the nession engine would have no
// initial frame and no transitions to elaborate: every translation
// contributes real starting states and real transfers, independent of
// whether that socket's channel ever turns out to be attacker-observable.
func (t *translator) registerSocketLifecycle() {
	for _, summary := range t.chainSockets {
		for _, s := range summary.Reads {
			t.openSocket(s)
		}
		for _, s := range summary.Writes {
			t.openSocket(s)
		}
	}
}

func (t *translator) openSocket(s *Socket) {
	t.initialStates = append(t.initialStates, State{Cell: s.CellName(), Value: StateInitial()})
	rules, err := (&MutateRule{
		Kind:       MKOpenSockets,
		Label:      t.freshLabel("openSockets"),
		Conditions: EmptyBranchConditions(),
		Sockets:    []*Socket{s},
	}).GenerateRule()
	if err != nil {
		t.errs = multierror.Append(t.errs, err)
		return
	}
	t.rules = append(t.rules, rules...)
	t.recommendedDepth++
}

// gateFact is an internal knowledge token, minted once and trivially
// known, used only to attach a snapshot witness to a cell-fact rule
// (Read / CrossLinkInfinite) so it is gated by that socket's state
// rather than holding unconditionally in every nession frame.
func (t *translator) gateFact() Message {
	if t.gate == nil {
		t.gate = NewName("cellgate")
		t.finishAxiom(NewRuleFactory(t.freshLabel("cellGate")), NewEvent(Know, t.gate))
	}
	return t.gate
}

// socketFor looks up the Socket the pre-processing pass built for
// chain's use of channel in direction dir. Lookups use the raw,
// unsubstituted channel term, matching how SummarizeBranches indexed
// it, rather than the cond-applied term walkEmit otherwise carries.
func (t *translator) socketFor(chain ChainId, channel Message, dir Direction) *Socket {
	summary, ok := t.chainSockets[chain]
	if !ok {
		return nil
	}
	return summary.socketDir(channel, dir)
}

// emitAxioms seeds the rule set with the Dolev-Yao attacker's base
// capabilities : every free name not marked
// [private] is known outright; every declared constructor can be applied
// to any known arguments to build a new known term; every destructor
// clause can be applied to its known argument terms to derive its
// right-hand side. These are rank -1 global facts/rules the query
// engine's backward resolution can always reach for .
func (t *translator) emitAxioms() {
	for _, n := range t.net.PublicFrees {
		rf := NewRuleFactory(t.freshLabel("initialKnowledge"))
		t.finishAxiom(rf, NewEvent(Know, n))
	}
	for symbol, arity := range t.net.Constructors {
		args := make([]Message, arity)
		rf := NewRuleFactory(t.freshLabel("construct:" + symbol))
		for i := range args {
			v := FreshVariable("a")
			args[i] = v
			rf.AddPremise(NewEvent(Know, v))
		}
		t.finishAxiom(rf, NewEvent(Know, NewFunction(symbol, args...)))
	}
	for symbol, clauses := range t.net.Destructors {
		for i, clause := range clauses {
			fn, ok := clause.Pattern.(*Function)
			if !ok {
				continue
			}
			rf := NewRuleFactory(t.freshLabel(symbol + "#" + strconv.Itoa(i)))
			for _, arg := range fn.Args {
				rf.AddPremise(NewEvent(Know, arg))
			}
			t.finishAxiom(rf, NewEvent(Know, clause.Rhs))
		}
	}
}

func (t *translator) finishAxiom(rf *RuleFactory, result Event) {
	rule, err := rf.CreateStateConsistentRule(result)
	if err != nil {
		t.errs = multierror.Append(t.errs, err)
		return
	}
	t.rules = append(t.rules, rule)
}

func (t *translator) freshLabel(prefix string) string {
	t.fresh++
	return prefix + "#" + strconv.Itoa(t.fresh)
}

// isAttackerKnown reports whether channel, after applying c, is a term
// the attacker can already name: a public free name, a previously leaked
// replication token, or an unbound variable (one the attacker itself
// supplied via an earlier AttackChannel-style binding).
func (t *translator) isAttackerKnown(channel Message, c IfBranchConditions) bool {
	ch := c.Apply(channel)
	switch m := ch.(type) {
	case *Name:
		return t.publicNames[m.Symbol]
	case *Variable:
		return true
	default:
		return false
	}
}

// collectPrivateWrites performs the first pass: it walks every branch
// recording `out(c, term)` occurrences on private channels, but does not
// descend past a private `in` (it has nothing to splice there yet). It
// mirrors walkEmit's structure without emitting any rules.
func (t *translator) collectPrivateWrites(p RProc, cond IfBranchConditions, premises []Event, underRepl bool) {
	switch n := p.(type) {
	case *RNil:
	case *RNew:
		extended, ok := cond.WithEquality(n.Var, NewNonce(n.Var.Name, FreshNonceOrigin()))
		if !ok {
			return
		}
		t.collectPrivateWrites(n.Next, extended, premises, underRepl)
	case *RIn:
		if t.isAttackerKnown(n.Channel, cond) {
			next, nextPremises := t.bindAttackerRead(n.Pattern, cond, premises)
			t.collectPrivateWrites(n.Next, next, nextPremises, underRepl)
			return
		}
		// Private: cannot continue without knowing the written value yet.
	case *ROut:
		if !t.isAttackerKnown(n.Channel, cond) {
			key := cond.Apply(n.Channel).String()
			t.privateWrites[key] = append(t.privateWrites[key], privateWrite{
				Term:       cond.Apply(n.Term),
				Conditions: cond,
				Premises:   append([]Event{}, premises...),
				Socket:     t.socketFor(n.Chain, n.Channel, DirOut),
				UnderRepl:  underRepl,
			})
		}
		t.collectPrivateWrites(n.Next, cond, premises, underRepl)
	case *REvent:
		t.collectPrivateWrites(n.Next, cond, premises, underRepl)
	case *RIf:
		thenC, elseC, err := compileComparison(cond, n.Left, n.Right)
		if err != nil {
			return
		}
		t.collectPrivateWrites(n.Then, thenC, premises, underRepl)
		t.collectPrivateWrites(n.Else, elseC, premises, underRepl)
	case *RLet:
		thenC, elseC, ok := t.resolveLet(n, cond)
		if ok {
			t.collectPrivateWrites(n.Then, thenC, premises, underRepl)
		}
		t.collectPrivateWrites(n.Else, elseC, premises, underRepl)
	case *RPar:
		for _, b := range n.Branches {
			t.collectPrivateWrites(b, cond, premises, underRepl)
		}
	case *RRepl:
		t.collectPrivateWrites(n.Body, cond, premises, true)
	}
}

// bindAttackerRead binds every variable in an attacker-observable
// receive pattern to a fresh Variable carrying its own Know premise,
// modelling the attacker's ability to inject any message it knows into
// such a reader.
func (t *translator) bindAttackerRead(pattern Message, cond IfBranchConditions, premises []Event) (IfBranchConditions, []Event) {
	next := cond
	nextPremises := append([]Event{}, premises...)
	for _, v := range pattern.Vars() {
		fv := FreshVariable(v.Name)
		var ok bool
		next, ok = next.WithEquality(v, fv)
		if !ok {
			continue
		}
		nextPremises = append(nextPremises, NewEvent(Know, fv))
	}
	return next, nextPremises
}

// resolveLet applies destructor rewriting (first-match semantics) to a
// `let` generator and, on success, binds the pattern against the
// rewritten value.
func (t *translator) resolveLet(n *RLet, cond IfBranchConditions) (thenC, elseC IfBranchConditions, ok bool) {
	gen := cond.Apply(n.Generator)
	if fn, isFn := gen.(*Function); isFn {
		clauses := t.net.Destructors[fn.Symbol]
		for _, clause := range clauses {
			fwd, unifyOK := UnifiedTo(clause.Pattern, gen, EmptyGuard())
			if !unifyOK {
				continue
			}
			rhs := fwd.Walk(clause.Rhs)
			return t.bindPattern(n.Pattern, rhs, cond)
		}
		return IfBranchConditions{}, cond, false
	}
	return t.bindPattern(n.Pattern, gen, cond)
}

// bindPattern structurally matches a binder tree (Variables and Tuples
// only — destructor applications are resolved by resolveLet before this
// is called) against a concrete value.
func (t *translator) bindPattern(pattern, value Message, cond IfBranchConditions) (thenC, elseC IfBranchConditions, ok bool) {
	switch p := pattern.(type) {
	case *Variable:
		extended, mergeOK := cond.WithEquality(p, value)
		if !mergeOK {
			return IfBranchConditions{}, cond, false
		}
		return extended, cond, true
	case *Tuple:
		vt, isTuple := value.(*Tuple)
		if !isTuple || len(vt.Elems) != len(p.Elems) {
			return IfBranchConditions{}, cond, false
		}
		cur := cond
		for i, sub := range p.Elems {
			next, _, stepOK := t.bindPattern(sub, vt.Elems[i], cur)
			if !stepOK {
				return IfBranchConditions{}, cond, false
			}
			cur = next
		}
		return cur, cond, true
	default:
		return IfBranchConditions{}, cond, pattern.Equal(value)
	}
}

// walkEmit is the second pass: it performs the same recursive descent as
// collectPrivateWrites, this time actually emitting Horn rules, and
// splicing each private `in` node onto the first privateWrite recorded
// for its channel during the first pass (first-match semantics,
// consistent with the destructor decision above). If that write's term
// does not bind the receive pattern, later writes are not tried and the
// branch emits nothing further.
func (t *translator) walkEmit(p RProc, cond IfBranchConditions, premises []Event, underRepl bool) {
	switch n := p.(type) {
	case *RNil:
	case *RNew:
		nonce := NewNonce(n.Var.Name, FreshNonceOrigin())
		extended, ok := cond.WithEquality(n.Var, nonce)
		if !ok {
			t.errs = multierror.Append(t.errs, &RuleConstructionError{Msg: "new-bound variable already constrained"})
			return
		}
		if t.queryVars[n.Var.Id] && t.queryRewrite.IsEmpty() {
			t.queryRewrite = t.queryRewrite.Extend(n.Var, nonce)
		}
		t.recommendedDepth++
		t.walkEmit(n.Next, extended, premises, underRepl)
	case *RIn:
		t.walkIn(n, cond, premises, underRepl)
	case *ROut:
		t.walkOut(n, cond, premises, underRepl)
	case *REvent:
		t.walkEmit(n.Next, cond, premises, underRepl)
	case *RIf:
		thenC, elseC, err := compileComparison(cond, n.Left, n.Right)
		if err != nil {
			t.errs = multierror.Append(t.errs, err)
			return
		}
		t.walkEmit(n.Then, thenC, premises, underRepl)
		t.walkEmit(n.Else, elseC, premises, underRepl)
	case *RLet:
		thenC, elseC, ok := t.resolveLet(n, cond)
		if ok {
			t.recommendedDepth++
			t.emitLetFacts(n, cond, thenC, premises)
			t.walkEmit(n.Then, thenC, premises, underRepl)
		}
		t.walkEmit(n.Else, elseC, premises, underRepl)
	case *RPar:
		for _, b := range n.Branches {
			t.walkEmit(b, cond, premises, underRepl)
		}
	case *RRepl:
		t.walkEmit(n.Body, cond, premises, true)
	}
}

// emitLetFacts publishes the values a successful `let` just bound as cell
// facts: a plain LetSet when the generator is an ordinary term, or a
// Deconstruction when it applies a destructor, chaining the destructor's
// own argument cells to the bound result's cell rather than treating the
// binding as a bare axiom.
func (t *translator) emitLetFacts(n *RLet, cond, thenC IfBranchConditions, premises []Event) {
	gen := cond.Apply(n.Generator)
	if fn, isFn := gen.(*Function); isFn {
		if _, isDestructor := t.net.Destructors[fn.Symbol]; isDestructor {
			t.emitDeconstructionFacts(n, fn, thenC, premises)
			return
		}
	}
	for _, v := range n.Pattern.Vars() {
		rules, err := (&MutateRule{
			Kind:       MKLetSet,
			Label:      t.freshLabel("letSet"),
			Conditions: thenC,
			Value:      thenC.Apply(v),
			Premises:   append([]Event{}, premises...),
		}).GenerateRule()
		if err != nil {
			t.errs = multierror.Append(t.errs, err)
			continue
		}
		t.rules = append(t.rules, rules...)
	}
}

func (t *translator) emitDeconstructionFacts(n *RLet, fn *Function, thenC IfBranchConditions, premises []Event) {
	argPremises := append([]Event{}, premises...)
	for _, arg := range fn.Args {
		argPremises = append(argPremises, NewEvent(Know, arg))
	}
	for _, v := range n.Pattern.Vars() {
		rules, err := (&MutateRule{
			Kind:       MKDeconstruction,
			Label:      t.freshLabel("deconstruct:" + fn.Symbol),
			Conditions: thenC,
			Premises:   argPremises,
			Result:     NewEvent(Know, thenC.Apply(v)),
		}).GenerateRule()
		if err != nil {
			t.errs = multierror.Append(t.errs, err)
			continue
		}
		t.rules = append(t.rules, rules...)
	}
}

func (t *translator) walkIn(n *RIn, cond IfBranchConditions, premises []Event, underRepl bool) {
	t.recommendedDepth++
	channel := cond.Apply(n.Channel)
	readSock := t.socketFor(n.Chain, n.Channel, DirIn)

	if underRepl && !t.isAttackerKnown(channel, cond) {
		channel = t.reify(channel)
	}

	if t.isAttackerKnown(channel, cond) {
		// AttackChannel : the attacker may inject any
		// value it already knows into this reader. Realised directly as
		// a translation-time substitution (bindAttackerRead) rather than
		// a persisted Horn rule: the resulting Know(freshVar) premises
		// already carry the obligation forward to wherever the bound
		// variable is next used. See DESIGN.md for why this mutate rule
		// has no standalone Rule form on this path.
		next, nextPremises := t.bindAttackerRead(n.Pattern, cond, premises)
		t.walkEmit(n.Next, next, nextPremises, underRepl)
		return
	}

	key := channel.String()
	writes := t.privateWrites[key]
	if len(writes) == 0 {
		t.log.Debug("no writer found for private channel, branch deadlocks", "channel", key)
		return
	}
	w := writes[0] // first-match: deliberate simplification, see DESIGN.md
	merged, ok := cond.And(w.Conditions)
	if !ok {
		return
	}
	thenC, _, bindOK := t.bindPattern(n.Pattern, w.Term, merged)
	if !bindOK {
		return
	}
	mergedPremises := append(append([]Event{}, premises...), w.Premises...)
	t.emitSocketRead(readSock, w.Socket, w.Term, thenC, n.Pattern, mergedPremises)
	t.walkEmit(n.Next, thenC, mergedPremises, underRepl)
}

// emitSocketRead wires the stateful half of a private in/out splice: when
// both the reader's and writer's sockets are Finite, a CrossLinkFinite
// pairing transfers the writer into Write(term) and the reader into
// Read(term) in lockstep, then a Read rule publishes the bound pattern
// variables as cell facts gated on that transfer, followed by a
// ReadReset so the socket can be reused by a later interaction on the
// same chain. Either side living under replication has no bounded
// interaction count to pair against, so the pairing falls back to the
// ProVerif-style CrossLinkInfinite form, publishing the same cell facts
// gated on an always-known internal token instead of a specific
// transfer.
func (t *translator) emitSocketRead(readSock, writeSock *Socket, term Message, cond IfBranchConditions, pattern Message, premises []Event) {
	if readSock == nil {
		return
	}
	vars := pattern.Vars()
	if readSock.Branch.Kind == BranchFinite && writeSock != nil && writeSock.Branch.Kind == BranchFinite {
		linkRules, err := (&MutateRule{
			Kind:        MKCrossLinkFinite,
			Label:       t.freshLabel("crossLink"),
			Conditions:  cond,
			WriteSocket: writeSock,
			ReadSocket:  readSock,
			Term:        term,
		}).GenerateRule()
		if err != nil {
			t.errs = multierror.Append(t.errs, err)
			return
		}
		t.rules = append(t.rules, linkRules...)
		t.recommendedDepth++

		readRules, err := (&MutateRule{
			Kind:       MKRead,
			Label:      t.freshLabel("read"),
			Conditions: cond,
			Socket:     readSock,
			Term:       term,
			Vars:       vars,
			Premises:   append(append([]Event{}, premises...), NewEvent(Know, t.gateFact())),
		}).GenerateRule()
		if err != nil {
			t.errs = multierror.Append(t.errs, err)
			return
		}
		t.rules = append(t.rules, readRules...)

		resetRules, err := (&MutateRule{
			Kind:       MKReadReset,
			Label:      t.freshLabel("readReset"),
			Conditions: cond,
			Socket:     readSock,
		}).GenerateRule()
		if err != nil {
			t.errs = multierror.Append(t.errs, err)
			return
		}
		t.rules = append(t.rules, resetRules...)
		return
	}

	for _, v := range vars {
		rules, err := (&MutateRule{
			Kind:       MKCrossLinkInfinite,
			Label:      t.freshLabel("crossLinkInfinite"),
			Conditions: cond,
			Premises:   append(append([]Event{}, premises...), NewEvent(Know, t.gateFact())),
			Result:     NewEvent(Know, v),
		}).GenerateRule()
		if err != nil {
			t.errs = multierror.Append(t.errs, err)
			continue
		}
		t.rules = append(t.rules, rules...)
	}
}

func (t *translator) walkOut(n *ROut, cond IfBranchConditions, premises []Event, underRepl bool) {
	t.recommendedDepth += 2
	channel := cond.Apply(n.Channel)
	term := cond.Apply(n.Term)
	writeSock := t.socketFor(n.Chain, n.Channel, DirOut)

	if underRepl && !t.isAttackerKnown(channel, cond) {
		channel = t.reify(channel)
	}

	if t.isAttackerKnown(channel, cond) {
		rule, err := (&MutateRule{
			Kind:       MKKnowChannelContent,
			Label:      t.freshLabel("knowChannelContent"),
			Conditions: cond,
			Channel:    channel,
			Premises:   append(append([]Event{}, premises...), NewEvent(Know, channel)),
			Result:     NewEvent(Know, term),
		}).GenerateRule()
		if err != nil {
			t.errs = multierror.Append(t.errs, err)
		} else {
			t.rules = append(t.rules, rule...)
		}
	} else if writeSock != nil {
		t.emitSocketWrite(writeSock, term, cond)
	}
	t.walkEmit(n.Next, cond, premises, underRepl)
}

// emitSocketWrite transitions a private write's socket from Waiting into
// Write(term), the state the matching read's CrossLinkFinite/Read rules
// key off of. An Infinite-branch socket carries no per-instance ordering
// to transfer against, so it still transitions but without a sibling
// interaction count.
func (t *translator) emitSocketWrite(sock *Socket, term Message, cond IfBranchConditions) {
	kind := MKWriteFinite
	if sock.Branch.Kind == BranchInfinite {
		kind = MKWriteInfinite
	}
	rules, err := (&MutateRule{
		Kind:       kind,
		Label:      t.freshLabel("write"),
		Conditions: cond,
		Socket:     sock,
		Term:       term,
	}).GenerateRule()
	if err != nil {
		t.errs = multierror.Append(t.errs, err)
		return
	}
	t.rules = append(t.rules, rules...)
	t.recommendedDepth++
}

// reify replaces a private channel term under unbounded replication with
// a stable synthetic token, the usual resolved-calculus fallback of
// promoting that one channel identity to attacker-visible rather than
// enumerating instances.
func (t *translator) reify(channel Message) Message {
	key := channel.String()
	if tok, ok := t.leaked[key]; ok {
		return tok
	}
	tok := NewName("leaked$" + key)
	t.leaked[key] = tok
	t.publicNames[tok.Symbol] = true
	return tok
}
