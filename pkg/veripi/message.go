package veripi

import (
	"fmt"
	"strings"
	"sync/atomic"
)

// Message is a term in the symbolic message algebra: a name, a nonce, a
// variable, a function application, or a tuple. Every Message is
// immutable once constructed; substitution always produces a new tree.
type Message interface {
	// String renders the message in the textual rule form of the
	// diagnostic surface: functions as f(a, b), tuples as (a, b).
	String() string

	// Equal is strict structural equality, not unifiability.
	Equal(other Message) bool

	// IsVar reports whether this message is a Variable.
	IsVar() bool

	// Vars returns the set of free variables occurring in this message,
	// in first-occurrence order, without duplicates.
	Vars() []*Variable
}

// Name is a ground atom distinguished only by its symbol: two Names are
// equal iff their symbols are equal. Resolution makes symbols
// process-global unique, so distinct declared names never collide.
type Name struct {
	Symbol string
}

func NewName(symbol string) *Name { return &Name{Symbol: symbol} }

func (n *Name) String() string        { return n.Symbol }
func (n *Name) IsVar() bool           { return false }
func (n *Name) Vars() []*Variable     { return nil }
func (n *Name) Equal(o Message) bool {
	other, ok := o.(*Name)
	return ok && other.Symbol == n.Symbol
}

// Nonce is a name tagged as freshly generated by a particular rule
// instance. Two nonces with the same symbol are equal only when they were
// produced by the same originating rule invocation, tracked by Origin: a
// monotonically increasing counter assigned when the nonce is minted
// (e.g. at every composition that introduces a `new` event).
type Nonce struct {
	Symbol string
	Origin int64
}

var nonceOrigin int64

// FreshNonceOrigin mints a new, globally unique origin id for a nonce
// produced during rule composition (one `new` event instance).
func FreshNonceOrigin() int64 {
	return atomic.AddInt64(&nonceOrigin, 1)
}

func NewNonce(symbol string, origin int64) *Nonce { return &Nonce{Symbol: symbol, Origin: origin} }

func (n *Nonce) String() string    { return fmt.Sprintf("%s[%d]", n.Symbol, n.Origin) }
func (n *Nonce) IsVar() bool       { return false }
func (n *Nonce) Vars() []*Variable { return nil }
func (n *Nonce) Equal(o Message) bool {
	other, ok := o.(*Nonce)
	return ok && other.Symbol == n.Symbol && other.Origin == n.Origin
}

// Variable is an assignable message: the only Message variant a SigmaMap
// may bind. Variables are compared by Id, which is assigned uniquely
// process-global by the Resolver (or by FreshVariable for
// internally-generated variables, e.g. during rule renaming).
type Variable struct {
	Id   int64
	Name string
}

var variableCounter int64

// FreshVariable mints a variable with a globally unique id. Name is for
// diagnostics only; it plays no role in equality.
func FreshVariable(name string) *Variable {
	id := atomic.AddInt64(&variableCounter, 1)
	return &Variable{Id: id, Name: name}
}

func (v *Variable) String() string {
	if v.Name != "" {
		return fmt.Sprintf("%s_%d", v.Name, v.Id)
	}
	return fmt.Sprintf("_v%d", v.Id)
}
func (v *Variable) IsVar() bool       { return true }
func (v *Variable) Vars() []*Variable { return []*Variable{v} }
func (v *Variable) Equal(o Message) bool {
	other, ok := o.(*Variable)
	return ok && other.Id == v.Id
}

// Function is f(m1, ..., mk), an application of an arity-k function
// symbol (constructor or destructor head) to arguments. Arity 0 is a
// constant function symbol, distinct from a Name: functions participate
// in destructor rewriting, names never do.
type Function struct {
	Symbol string
	Args   []Message
}

func NewFunction(symbol string, args ...Message) *Function {
	return &Function{Symbol: symbol, Args: args}
}

func (f *Function) String() string {
	if len(f.Args) == 0 {
		return f.Symbol + "()"
	}
	parts := make([]string, len(f.Args))
	for i, a := range f.Args {
		parts[i] = a.String()
	}
	return f.Symbol + "(" + strings.Join(parts, ", ") + ")"
}
func (f *Function) IsVar() bool { return false }
func (f *Function) Vars() []*Variable {
	return collectVars(f.Args)
}
func (f *Function) Equal(o Message) bool {
	other, ok := o.(*Function)
	if !ok || other.Symbol != f.Symbol || len(other.Args) != len(f.Args) {
		return false
	}
	for i := range f.Args {
		if !f.Args[i].Equal(other.Args[i]) {
			return false
		}
	}
	return true
}

// Tuple is an ordered, fixed-arity grouping <m1, ..., mk>. It unifies
// only with another Tuple of the same arity, or with a Variable.
type Tuple struct {
	Elems []Message
}

func NewTuple(elems ...Message) *Tuple { return &Tuple{Elems: elems} }

func (t *Tuple) String() string {
	parts := make([]string, len(t.Elems))
	for i, e := range t.Elems {
		parts[i] = e.String()
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
func (t *Tuple) IsVar() bool       { return false }
func (t *Tuple) Vars() []*Variable { return collectVars(t.Elems) }
func (t *Tuple) Equal(o Message) bool {
	other, ok := o.(*Tuple)
	if !ok || len(other.Elems) != len(t.Elems) {
		return false
	}
	for i := range t.Elems {
		if !t.Elems[i].Equal(other.Elems[i]) {
			return false
		}
	}
	return true
}

// collectVars walks a slice of messages and returns the free variables in
// first-occurrence order without duplicates.
func collectVars(msgs []Message) []*Variable {
	var out []*Variable
	seen := make(map[int64]bool)
	for _, m := range msgs {
		for _, v := range m.Vars() {
			if !seen[v.Id] {
				seen[v.Id] = true
				out = append(out, v)
			}
		}
	}
	return out
}
