package veripi

// MutateKind tags which catalogue entry a MutateRule represents. Kept
// as a plain int-tagged variant rather than a class hierarchy,
// mirroring the Rule/RuleKind split in rule.go.
type MutateKind int

const (
	MKOpenSockets MutateKind = iota
	MKShutSockets
	MKRead
	MKWriteFinite
	MKWriteInfinite
	MKCrossLinkFinite
	MKCrossLinkInfinite
	MKReadReset
	MKKnowChannelContent
	MKAttackChannel
	MKLetSet
	MKDeconstruction
	MKBasic
)

// MutateRule is one arm of the translator's fixed catalogue. Every kind
// carries only the fields it needs; GenerateRule is the single dispatch
// point turning it into the Horn rule(s) it describes. Conditions is the
// IfBranchConditions accumulated from every enclosing if/let at the point
// this mutate rule was emitted.
type MutateRule struct {
	Kind       MutateKind
	Label      string
	Conditions IfBranchConditions

	Sockets  []*Socket // OpenSockets / ShutSockets: sockets transitioning together
	Requires []*Socket // OpenSockets: sockets that must already be Shut

	Socket *Socket // Read / WriteFinite / WriteInfinite / ReadReset

	WriteSocket *Socket // CrossLink*
	ReadSocket  *Socket

	Term Message // the value written, or derived

	Channel Message // KnowChannelContent / AttackChannel

	Var   *Variable // LetSet: the bound variable
	Value Message   // LetSet: the value stored

	Vars []*Variable // Read: the pattern variables to publish a cell fact for

	Premises []Event // Basic / KnowChannelContent / AttackChannel / LetSet / Deconstruction / Read / CrossLinkInfinite
	Result   Event   // Basic / KnowChannelContent / AttackChannel / Deconstruction
}

// applyConditionsGuard replays the guard of c onto a freshly created
// RuleFactory, one AddGuard call per disequality (RuleFactory has no
// bulk setter). It does not apply c's substitution: callers fold that
// into premises/results with c.Apply before registering them.
func applyConditionsGuard(rf *RuleFactory, c IfBranchConditions) {
	c.Guard.Each(func(v *Variable, t Message) {
		rf.AddGuard(v, t)
	})
}

// GenerateRule dispatches mc to its arm and returns the Horn rule(s) it
// describes. Most kinds produce exactly one Rule. OpenSockets and
// ShutSockets produce one State-Transferring rule per socket in the set,
// and CrossLinkFinite produces two (a write side and a read side), since
// a single Rule carries at most one state transfer (rule_factory.go:
// CreateStateTransferringRule requires exactly one). Read produces one
// State-Consistent rule per pattern variable.
func (mc *MutateRule) GenerateRule() ([]*Rule, error) {
	switch mc.Kind {
	case MKOpenSockets:
		return mc.generateOpenSockets()
	case MKShutSockets:
		return mc.generateShutSockets()
	case MKReadReset:
		r, err := mc.generateReadReset()
		return oneOrNone(r, err)
	case MKWriteFinite:
		r, err := mc.generateWrite(false)
		return oneOrNone(r, err)
	case MKWriteInfinite:
		r, err := mc.generateWrite(true)
		return oneOrNone(r, err)
	case MKCrossLinkFinite:
		return mc.generateCrossLinkFinite()
	case MKCrossLinkInfinite:
		r, err := mc.generateCrossLinkInfinite()
		return oneOrNone(r, err)
	case MKRead:
		return mc.generateRead()
	case MKLetSet:
		r, err := mc.generateLetSet()
		return oneOrNone(r, err)
	case MKDeconstruction:
		r, err := mc.generateDeconstruction()
		return oneOrNone(r, err)
	case MKKnowChannelContent, MKAttackChannel, MKBasic:
		r, err := mc.generateKnowStyle()
		return oneOrNone(r, err)
	default:
		return nil, &RuleConstructionError{Label: mc.Label, Msg: "unrecognised mutate rule kind"}
	}
}

func oneOrNone(r *Rule, err error) ([]*Rule, error) {
	if err != nil {
		return nil, err
	}
	return []*Rule{r}, nil
}

func (mc *MutateRule) generateOpenSockets() ([]*Rule, error) {
	var out []*Rule
	for _, s := range mc.Sockets {
		rf := NewRuleFactory(mc.Label)
		applyConditionsGuard(rf, mc.Conditions)
		from := rf.RegisterState(State{Cell: s.CellName(), Value: StateInitial()})
		rf.TransfersTo(from, State{Cell: s.CellName(), Value: StateWaiting()})
		for _, req := range mc.Requires {
			shutSnap := rf.RegisterState(State{Cell: req.CellName(), Value: StateShut()})
			rf.LaterThan(from, shutSnap)
		}
		r, err := rf.CreateStateTransferringRule()
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func (mc *MutateRule) generateShutSockets() ([]*Rule, error) {
	var out []*Rule
	for _, s := range mc.Sockets {
		rf := NewRuleFactory(mc.Label)
		applyConditionsGuard(rf, mc.Conditions)
		from := rf.RegisterState(State{Cell: s.CellName(), Value: StateWaiting()})
		rf.TransfersTo(from, State{Cell: s.CellName(), Value: StateShut()})
		r, err := rf.CreateStateTransferringRule()
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func (mc *MutateRule) generateReadReset() (*Rule, error) {
	rf := NewRuleFactory(mc.Label)
	applyConditionsGuard(rf, mc.Conditions)
	any := FreshVariable("any")
	from := rf.RegisterState(State{Cell: mc.Socket.CellName(), Value: StateRead(any)})
	rf.TransfersTo(from, State{Cell: mc.Socket.CellName(), Value: StateWaiting()})
	return rf.CreateStateTransferringRule()
}

// generateWrite covers both WriteFinite and WriteInfinite: Waiting ->
// Write(term). Both kinds build the same rule: neither carries an
// ordering premise against the interaction counts of sibling sockets.
func (mc *MutateRule) generateWrite(infinite bool) (*Rule, error) {
	rf := NewRuleFactory(mc.Label)
	applyConditionsGuard(rf, mc.Conditions)
	term := mc.Conditions.Apply(mc.Term)
	from := rf.RegisterState(State{Cell: mc.Socket.CellName(), Value: StateWaiting()})
	rf.TransfersTo(from, State{Cell: mc.Socket.CellName(), Value: StateWrite(term)})
	return rf.CreateStateTransferringRule()
}

// generateCrossLinkFinite pairs a Write(v) on WriteSocket with a Waiting
// on ReadSocket and transfers both. A single Rule can declare only one
// transfer, so the pairing is expressed as two rules, each requiring
// (via LaterThan against a registered, non-transferred snapshot of the
// other socket's half) that the counterpart side was in the matching
// state.
func (mc *MutateRule) generateCrossLinkFinite() ([]*Rule, error) {
	term := mc.Conditions.Apply(mc.Term)

	rfWrite := NewRuleFactory(mc.Label + ".write")
	applyConditionsGuard(rfWrite, mc.Conditions)
	writeFrom := rfWrite.RegisterState(State{Cell: mc.WriteSocket.CellName(), Value: StateWrite(term)})
	readWaiting := rfWrite.RegisterState(State{Cell: mc.ReadSocket.CellName(), Value: StateWaiting()})
	rfWrite.LaterThan(writeFrom, readWaiting)
	rfWrite.TransfersTo(writeFrom, State{Cell: mc.WriteSocket.CellName(), Value: StateWaiting()})
	writeRule, err := rfWrite.CreateStateTransferringRule()
	if err != nil {
		return nil, err
	}

	rfRead := NewRuleFactory(mc.Label + ".read")
	applyConditionsGuard(rfRead, mc.Conditions)
	readFrom := rfRead.RegisterState(State{Cell: mc.ReadSocket.CellName(), Value: StateWaiting()})
	writeDone := rfRead.RegisterState(State{Cell: mc.WriteSocket.CellName(), Value: StateWrite(term)})
	rfRead.LaterThan(readFrom, writeDone)
	rfRead.TransfersTo(readFrom, State{Cell: mc.ReadSocket.CellName(), Value: StateRead(term)})
	readRule, err := rfRead.CreateStateTransferringRule()
	if err != nil {
		return nil, err
	}
	return []*Rule{writeRule, readRule}, nil
}

// generateCrossLinkInfinite is the purely ProVerif-style arm: no state,
// a plain Horn clause deriving the attacker's knowledge of the reified
// replicated channel's content directly from its premises. Used in
// place of CrossLinkFinite whenever either end of a pairing has no
// bounded interaction count to pair against.
func (mc *MutateRule) generateCrossLinkInfinite() (*Rule, error) {
	return mc.generateKnowStyle()
}

// generateRead covers MKRead: once a socket is observed holding
// Read(Term), publish a cell fact Know(v) for every pattern variable
// this read bound. Each fact carries a snapshot witness on the
// socket's Read(Term) state, so it only participates in the nession
// frames where that transfer actually fired rather than unconditionally.
func (mc *MutateRule) generateRead() ([]*Rule, error) {
	var out []*Rule
	for _, v := range mc.Vars {
		rf := NewRuleFactory(mc.Label)
		applyConditionsGuard(rf, mc.Conditions)
		snap := rf.RegisterState(State{Cell: mc.Socket.CellName(), Value: StateRead(mc.Term)})
		for _, p := range mc.Premises {
			rf.AddPremise(NewEvent(p.Kind, mc.Conditions.Apply(p.Msg)), snap)
		}
		result := NewEvent(Know, mc.Conditions.Apply(v))
		r, err := rf.CreateStateConsistentRule(result)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// generateLetSet covers MKLetSet: once the enclosing let's condition
// holds, publish Know(var) for the bound variable, requiring whatever
// the generator expression's own free variables need known first.
func (mc *MutateRule) generateLetSet() (*Rule, error) {
	rf := NewRuleFactory(mc.Label)
	applyConditionsGuard(rf, mc.Conditions)
	for _, p := range mc.Premises {
		rf.AddPremise(NewEvent(p.Kind, mc.Conditions.Apply(p.Msg)))
	}
	return rf.CreateStateConsistentRule(NewEvent(Know, mc.Conditions.Apply(mc.Value)))
}

// generateDeconstruction covers MKDeconstruction: applies a destructor
// to a value already published as a source cell fact, chaining that
// premise to a new Know fact for the destructor's result at the
// destination cell.
func (mc *MutateRule) generateDeconstruction() (*Rule, error) {
	rf := NewRuleFactory(mc.Label)
	applyConditionsGuard(rf, mc.Conditions)
	for _, p := range mc.Premises {
		rf.AddPremise(NewEvent(p.Kind, mc.Conditions.Apply(p.Msg)))
	}
	return rf.CreateStateConsistentRule(NewEvent(mc.Result.Kind, mc.Conditions.Apply(mc.Result.Msg)))
}

// generateKnowStyle covers every arm whose conclusion is a plain Event
// (Know/Leak) derived without any snapshot gating: KnowChannelContent,
// AttackChannel, and Basic. All three share the same shape: a set of
// Know premises plus the branch's accumulated guard, concluding one
// Event.
func (mc *MutateRule) generateKnowStyle() (*Rule, error) {
	rf := NewRuleFactory(mc.Label)
	applyConditionsGuard(rf, mc.Conditions)
	for _, p := range mc.Premises {
		rf.AddPremise(NewEvent(p.Kind, mc.Conditions.Apply(p.Msg)))
	}
	result := NewEvent(mc.Result.Kind, mc.Conditions.Apply(mc.Result.Msg))
	return rf.CreateStateConsistentRule(result)
}
