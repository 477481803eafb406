package veripi

import (
	"fmt"

	"github.com/hashicorp/go-hclog"
	multierror "github.com/hashicorp/go-multierror"

	"github.com/gitrdm/veripi/internal/lang"
)

// scope maps a source identifier to the Message it resolves to: a free
// or const Name, or a bound Variable.
type scope map[string]Message

func (s scope) copy() scope {
	out := make(scope, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Resolver performs alpha-renaming, type-checking against declarations,
// macro inlining, and ChainId assignment, turning a parsed lang.Network
// into a ResolvedNetwork . It is single-use: construct one
// per Resolve call.
type Resolver struct {
	log hclog.Logger

	funArity         map[string]int
	constructorArity map[string]int // subset of funArity: genuine `fun` declarations, not reduc heads
	destructors      map[string][]DestructorClause
	eventArity       map[string]int
	macros           map[string]*lang.MacroDecl

	global   scope
	newDecls map[string]Message

	chainCounter ChainId

	publicFrees []*Name
	allFrees    []*Name
	constNames  []*Name
}

// NewResolver constructs a Resolver. A nil logger is replaced with a
// discarding one, matching the nil-safe logger convention this module
// borrows from Nomad's agent packages .
func NewResolver(log hclog.Logger) *Resolver {
	if log == nil {
		log = hclog.NewNullLogger()
	}
	return &Resolver{
		log:              log.Named("resolver"),
		funArity:         map[string]int{},
		constructorArity: map[string]int{},
		destructors:      map[string][]DestructorClause{},
		eventArity:       map[string]int{},
		macros:           map[string]*lang.MacroDecl{},
		global:           scope{},
		newDecls:         map[string]Message{},
	}
}

func (r *Resolver) nextChain() ChainId {
	id := r.chainCounter
	r.chainCounter++
	return id
}

// Resolve converts a parsed Network into a ResolvedNetwork, or a
// combined *multierror.Error describing every declaration problem found.
func (r *Resolver) Resolve(net *lang.Network) (*ResolvedNetwork, error) {
	var errs *multierror.Error

	for _, f := range net.Frees {
		if _, dup := r.global[f.Name]; dup {
			errs = multierror.Append(errs, &ResolveError{Node: f.Name, Msg: "duplicate declaration"})
			continue
		}
		n := NewName(f.Name)
		r.global[f.Name] = n
		r.allFrees = append(r.allFrees, n)
		if !f.Private {
			r.publicFrees = append(r.publicFrees, n)
		}
	}
	for _, c := range net.Consts {
		if _, dup := r.global[c.Name]; dup {
			errs = multierror.Append(errs, &ResolveError{Node: c.Name, Msg: "duplicate declaration"})
			continue
		}
		n := NewName(c.Name)
		r.global[c.Name] = n
		r.constNames = append(r.constNames, n)
		r.publicFrees = append(r.publicFrees, n) // consts are always public
	}
	for _, fn := range net.Funs {
		if _, dup := r.funArity[fn.Name]; dup {
			errs = multierror.Append(errs, &ResolveError{Node: fn.Name, Msg: "duplicate function declaration"})
			continue
		}
		r.funArity[fn.Name] = len(fn.ArgTypes)
		r.constructorArity[fn.Name] = len(fn.ArgTypes)
	}
	for _, ev := range net.Events {
		r.eventArity[ev.Name] = len(ev.ArgTypes)
	}
	for _, m := range net.Macros {
		mCopy := m
		if _, dup := r.macros[m.Name]; dup {
			errs = multierror.Append(errs, &ResolveError{Node: m.Name, Msg: "duplicate macro declaration"})
			continue
		}
		r.macros[m.Name] = &mCopy
	}
	for _, rd := range net.Reducs {
		clauses, err := r.resolveReducDecl(rd)
		if err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		r.destructors[rd.Func] = append(r.destructors[rd.Func], clauses...)
		if _, known := r.funArity[rd.Func]; !known && len(clauses) > 0 {
			r.funArity[rd.Func] = len(clauses[0].Pattern.(*Function).Args)
		}
	}
	for _, td := range net.Tables {
		// Table declarations are parsed for forward compatibility but
		// rejected if the process actually uses one: equational theories
		// beyond user-supplied rewrite rules are out of scope.
		r.global["table:"+td.Name] = nil
	}

	attacker := ActiveAttacker
	for _, opt := range net.Options {
		if opt.Key == "attacker" && opt.Value == "passive" {
			attacker = PassiveAttacker
		}
	}

	if errs.ErrorOrNil() != nil {
		return nil, errs.ErrorOrNil()
	}

	if net.Process == nil {
		return nil, &ResolveError{Msg: "network has no top-level process"}
	}
	proc, err := r.resolveProc(net.Process, r.global, r.nextChain(), map[string]bool{})
	if err != nil {
		return nil, err
	}

	if len(net.Queries) != 1 {
		return nil, &ResolveError{Msg: fmt.Sprintf("expected exactly one query attacker(...) statement, found %d", len(net.Queries))}
	}
	query, err := r.resolveExpr(net.Queries[0].Target, r.global)
	if err != nil {
		return nil, err
	}
	var notQueries []Message
	for _, nq := range net.NotQueries {
		m, err := r.resolveExpr(nq.Target, r.global)
		if err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		notQueries = append(notQueries, m)
	}
	if errs.ErrorOrNil() != nil {
		return nil, errs.ErrorOrNil()
	}

	return &ResolvedNetwork{
		Process:     proc,
		FreeNames:   r.allFrees,
		PublicFrees: r.publicFrees,
		ConstNames:   r.constNames,
		Constructors: r.constructorArity,
		Destructors:  r.destructors,
		Attacker:     attacker,
		Query:       query,
		NotQueries:  notQueries,
		NextChain:   r.chainCounter,
	}, nil
}

func (r *Resolver) resolveReducDecl(rd lang.ReducDecl) ([]DestructorClause, error) {
	var out []DestructorClause
	for _, c := range rd.Clauses {
		env := r.global.copy()
		for _, fv := range c.Foralls {
			env[fv.Name] = FreshVariable(fv.Name)
		}
		lhs, err := r.resolveExpr(c.Pattern, env)
		if err != nil {
			return nil, err
		}
		fn, ok := lhs.(*Function)
		if !ok {
			return nil, &ResolveError{Node: rd.Func, Msg: "reduc pattern must be a function application"}
		}
		rhs, err := r.resolveExpr(c.Rhs, env)
		if err != nil {
			return nil, err
		}
		out = append(out, DestructorClause{Pattern: fn, Rhs: rhs})
	}
	return out, nil
}

// resolveExpr resolves a term-position expression: every identifier must
// already be bound (a free/const name, a macro param, or a process
// variable). A function application whose symbol is a declared
// constructor or destructor must match its arity; an application of an
// undeclared symbol is accepted without an error.
func (r *Resolver) resolveExpr(e lang.Expr, env scope) (Message, error) {
	switch t := e.(type) {
	case *lang.IdentExpr:
		if m, ok := env[t.Name]; ok {
			return m, nil
		}
		return nil, &ResolveError{Node: t.Name, Msg: "undefined identifier"}
	case *lang.TypedIdentExpr:
		return nil, &ResolveError{Node: t.Name, Msg: "type annotation not valid in this position"}
	case *lang.TupleExpr:
		elems := make([]Message, len(t.Elems))
		for i, sub := range t.Elems {
			m, err := r.resolveExpr(sub, env)
			if err != nil {
				return nil, err
			}
			elems[i] = m
		}
		return NewTuple(elems...), nil
	case *lang.FuncExpr:
		if len(t.Name) > 4 && t.Name[:4] == "new " {
			refName := t.Name[4:]
			if m, ok := r.newDecls[refName]; ok {
				return m, nil
			}
			return nil, &ResolveError{Node: refName, Msg: "query references 'new' name with no matching process binder"}
		}
		args := make([]Message, len(t.Args))
		for i, a := range t.Args {
			m, err := r.resolveExpr(a, env)
			if err != nil {
				return nil, err
			}
			args[i] = m
		}
		if arity, known := r.funArity[t.Name]; known && arity != len(args) {
			return nil, &ResolveError{Node: t.Name, Msg: fmt.Sprintf("arity mismatch: expected %d arguments, got %d", arity, len(args))}
		}
		return NewFunction(t.Name, args...), nil
	default:
		return nil, &ResolveError{Msg: "unrecognised expression node"}
	}
}

// resolvePattern resolves a receive/let binder tree, extending env with a
// fresh Variable for every new binder position it introduces.
func (r *Resolver) resolvePattern(e lang.Expr, env scope) (Message, scope, error) {
	switch t := e.(type) {
	case *lang.TypedIdentExpr:
		v := FreshVariable(t.Name)
		next := env.copy()
		next[t.Name] = v
		return v, next, nil
	case *lang.IdentExpr:
		if m, ok := env[t.Name]; ok {
			return m, env, nil // matches an already-bound name literally
		}
		v := FreshVariable(t.Name)
		next := env.copy()
		next[t.Name] = v
		return v, next, nil
	case *lang.TupleExpr:
		elems := make([]Message, len(t.Elems))
		cur := env
		for i, sub := range t.Elems {
			m, next, err := r.resolvePattern(sub, cur)
			if err != nil {
				return nil, nil, err
			}
			elems[i] = m
			cur = next
		}
		return NewTuple(elems...), cur, nil
	case *lang.FuncExpr:
		m, err := r.resolveExpr(t, env)
		if err != nil {
			return nil, nil, err
		}
		return m, env, nil
	default:
		return nil, nil, &ResolveError{Msg: "unrecognised pattern node"}
	}
}

func (r *Resolver) resolveProc(p lang.Proc, env scope, chain ChainId, macroStack map[string]bool) (RProc, error) {
	switch n := p.(type) {
	case *lang.NilProc:
		return &RNil{}, nil
	case *lang.NewProc:
		v := FreshVariable(n.Name)
		next := env.copy()
		next[n.Name] = v
		if _, already := r.newDecls[n.Name]; !already {
			r.newDecls[n.Name] = v
		}
		nextProc, err := r.resolveProc(n.Next, next, chain, macroStack)
		if err != nil {
			return nil, err
		}
		return &RNew{Var: v, Chain: chain, Next: nextProc}, nil
	case *lang.InProc:
		ch, err := r.resolveExpr(n.Channel, env)
		if err != nil {
			return nil, err
		}
		pat, next, err := r.resolvePattern(n.Pattern, env)
		if err != nil {
			return nil, err
		}
		nextProc, err := r.resolveProc(n.Next, next, chain, macroStack)
		if err != nil {
			return nil, err
		}
		return &RIn{Channel: ch, Pattern: pat, Chain: chain, Next: nextProc}, nil
	case *lang.OutProc:
		ch, err := r.resolveExpr(n.Channel, env)
		if err != nil {
			return nil, err
		}
		term, err := r.resolveExpr(n.Term, env)
		if err != nil {
			return nil, err
		}
		nextProc, err := r.resolveProc(n.Next, env, chain, macroStack)
		if err != nil {
			return nil, err
		}
		return &ROut{Channel: ch, Term: term, Chain: chain, Next: nextProc}, nil
	case *lang.EventProc:
		args := make([]Message, len(n.Args))
		for i, a := range n.Args {
			m, err := r.resolveExpr(a, env)
			if err != nil {
				return nil, err
			}
			args[i] = m
		}
		nextProc, err := r.resolveProc(n.Next, env, chain, macroStack)
		if err != nil {
			return nil, err
		}
		return &REvent{Name: n.Name, Args: args, Chain: chain, Next: nextProc}, nil
	case *lang.IfProc:
		left, err := r.resolveExpr(n.Cond.Left, env)
		if err != nil {
			return nil, err
		}
		right, err := r.resolveExpr(n.Cond.Right, env)
		if err != nil {
			return nil, err
		}
		thenRaw, elseRaw := n.Then, n.Else
		if n.Cond.Negated {
			// Positivisation : `if a <> b then T else E`
			// is `if not(a = b) then T else E`, De Morgan'd to the
			// positive comparison with branches swapped.
			thenRaw, elseRaw = elseRaw, thenRaw
		}
		thenProc, err := r.resolveProc(thenRaw, env, chain, macroStack)
		if err != nil {
			return nil, err
		}
		elseProc, err := r.resolveProc(elseRaw, env, chain, macroStack)
		if err != nil {
			return nil, err
		}
		return &RIf{Left: left, Right: right, Then: thenProc, Else: elseProc}, nil
	case *lang.LetProc:
		gen, err := r.resolveExpr(n.Generator, env)
		if err != nil {
			return nil, err
		}
		pat, extended, err := r.resolvePattern(n.Pattern, env)
		if err != nil {
			return nil, err
		}
		thenProc, err := r.resolveProc(n.Then, extended, chain, macroStack)
		if err != nil {
			return nil, err
		}
		elseProc, err := r.resolveProc(n.Else, env, chain, macroStack)
		if err != nil {
			return nil, err
		}
		return &RLet{Pattern: pat, Generator: gen, Then: thenProc, Else: elseProc}, nil
	case *lang.ParProc:
		branches := make([]RProc, len(n.Branches))
		for i, b := range n.Branches {
			rb, err := r.resolveProc(b, env, r.nextChain(), macroStack)
			if err != nil {
				return nil, err
			}
			branches[i] = rb
		}
		return &RPar{Branches: branches}, nil
	case *lang.ReplProc:
		body, err := r.resolveProc(n.Body, env, r.nextChain(), macroStack)
		if err != nil {
			return nil, err
		}
		return &RRepl{Body: body}, nil
	case *lang.CallProc:
		if macroStack[n.Name] {
			return nil, &ResolveError{Node: n.Name, Msg: "recursive macro call"}
		}
		macro, ok := r.macros[n.Name]
		if !ok {
			return nil, &ResolveError{Node: n.Name, Msg: "call to undeclared macro"}
		}
		if len(macro.Params) != len(n.Args) {
			return nil, &ResolveError{Node: n.Name, Msg: fmt.Sprintf("macro arity mismatch: expected %d arguments, got %d", len(macro.Params), len(n.Args))}
		}
		callEnv := r.global.copy()
		for i, param := range macro.Params {
			argVal, err := r.resolveExpr(n.Args[i], env)
			if err != nil {
				return nil, err
			}
			callEnv[param.Name] = argVal
		}
		nextStack := make(map[string]bool, len(macroStack)+1)
		for k := range macroStack {
			nextStack[k] = true
		}
		nextStack[n.Name] = true
		return r.resolveProc(macro.Body, callEnv, chain, nextStack)
	default:
		return nil, &ResolveError{Msg: "unrecognised process node"}
	}
}
