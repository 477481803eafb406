package veripi

// EventKind classifies an Event .
type EventKind int

const (
	// Know is the attacker-knowledge predicate: the attacker has
	// derived this message.
	Know EventKind = iota
	// Leak is the conclusion of a successful attack.
	Leak
	// Accept marks a process-level acceptance event (model boundary).
	Accept
	// Init marks an initialisation event (model boundary).
	Init
	// New marks the generation of a fresh name/nonce (model boundary).
	New
)

func (k EventKind) String() string {
	switch k {
	case Know:
		return "k"
	case Leak:
		return "l"
	case Accept:
		return "a"
	case Init:
		return "i"
	case New:
		return "n"
	default:
		return "?"
	}
}

// Event is a labelled message: a predicate application in the Horn-rule
// surface, e.g. k(m) or l(m).
type Event struct {
	Kind EventKind
	Msg  Message
}

func NewEvent(kind EventKind, m Message) Event { return Event{Kind: kind, Msg: m} }

// Equal compares by kind and message.
func (e Event) Equal(other Event) bool {
	return e.Kind == other.Kind && e.Msg.Equal(other.Msg)
}

func (e Event) String() string {
	return e.Kind.String() + "(" + e.Msg.String() + ")"
}

// Substitute applies sigma to the event's message, producing a new Event.
func (e Event) Substitute(sigma *SigmaMap) Event {
	return Event{Kind: e.Kind, Msg: sigma.Walk(e.Msg)}
}

// State is a pair (CellName, Message): the claim that cell CellName holds
// value Message at some point in a trace.
type State struct {
	Cell  string
	Value Message
}

func NewState(cell string, value Message) State { return State{Cell: cell, Value: value} }

func (s State) Equal(other State) bool {
	return s.Cell == other.Cell && s.Value.Equal(other.Value)
}

func (s State) String() string {
	return s.Cell + "(" + s.Value.String() + ")"
}

func (s State) Substitute(sigma *SigmaMap) State {
	return State{Cell: s.Cell, Value: sigma.Walk(s.Value)}
}
