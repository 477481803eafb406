package veripi

// ChainId identifies a sequential chain of resolved process nodes: two
// nodes share a ChainId iff they lie on the same sequential thread of
// control (linked by `;`, by an `if`'s then/else, or by a `let`'s
// then/else — none of these introduce concurrency). Parallel composition
// and replication each start a fresh chain for their sub-process(es).
//
// ChainId is distinct from the Socket-level BranchId:
// a Socket's BranchId is Infinite when its ChainId's chain lies under a
// replication ancestor, and Finite(chainId) otherwise — that mapping is
// computed by the Translator's pre-processing pass (socket.go), not by
// the Resolver, since "lies under replication" is a property of the
// tree's ancestry that is awkward to push down during a single
// bottom-up-unaware resolve pass.
type ChainId int

// RProc is a node of the resolved process tree: every identifier has
// been replaced by a Message (Name/Nonce/Variable/Function/Tuple),
// macros have been inlined, and every sequential node carries the
// ChainId of its chain.
type RProc interface{ isRProc() }

type RNil struct{}

type RNew struct {
	Var   *Variable
	Chain ChainId
	Next  RProc
}

type RIn struct {
	Channel Message
	Pattern Message // tree of Variables (and possibly ground sub-terms) to unify the received value against
	Chain   ChainId
	Next    RProc
}

type ROut struct {
	Channel Message
	Term    Message
	Chain   ChainId
	Next    RProc
}

type REvent struct {
	Name  string
	Args  []Message
	Chain ChainId
	Next  RProc
}

// RIf is already positivised (De Morgan applied before branch-restriction
// compilation), so Negated is always false in a fully resolved tree; it
// is retained here only as the un-positivised source comparison for
// diagnostics.
type RIf struct {
	Left, Right Message
	Negated     bool
	Then, Else  RProc
}

type RLet struct {
	Pattern   Message
	Generator Message
	Then, Else RProc
}

type RPar struct {
	Branches []RProc
}

type RRepl struct {
	Body RProc
}

func (*RNil) isRProc()   {}
func (*RNew) isRProc()   {}
func (*RIn) isRProc()    {}
func (*ROut) isRProc()   {}
func (*REvent) isRProc() {}
func (*RIf) isRProc()    {}
func (*RLet) isRProc()   {}
func (*RPar) isRProc()   {}
func (*RRepl) isRProc()  {}

// AttackerProfile records whether the attacker is active (default) or
// passive, driven by `set attacker = active|passive` in source. The
// Translator does not read it: a passive profile yields the same
// AttackChannel/KnowChannelContent handling as an active one.
type AttackerProfile int

const (
	ActiveAttacker AttackerProfile = iota
	PassiveAttacker
)

// DestructorClause is one rewrite `dest(pattern...) = rhs`, with its
// forall-bound variables already resolved to fresh Variables shared
// between Pattern and Rhs.
type DestructorClause struct {
	Pattern Message // always a *Function
	Rhs     Message
}

// ResolvedNetwork is the output of Resolve: a process tree plus the
// declarations needed by the Translator (constructor/destructor
// signatures, free/const names and their privacy, the secrecy query, and
// options).
type ResolvedNetwork struct {
	Process RProc

	FreeNames    []*Name // all free-declared names (public and private)
	PublicFrees  []*Name // free names NOT marked [private]: initial attacker knowledge
	ConstNames   []*Name // const-declared names: always public, behave like constructors of arity 0
	Constructors map[string]int // `fun` declarations: symbol -> arity, usable by the attacker to build new terms
	Destructors  map[string][]DestructorClause
	Attacker     AttackerProfile

	// Query is the secrecy target: "can the attacker learn Query?".
	Query Message
	// NotQueries are `not attacker(...)` assertions. Translate carries
	// them into Translation.NotQueries; no search is run against them
	// and the CLI does not report on them.
	NotQueries []Message

	NextChain ChainId // one past the highest ChainId used; callers needing more chains start here
}
