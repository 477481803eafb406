package lang

import "fmt"

// Parser is a recursive-descent parser over a pre-tokenized buffer.
type Parser struct {
	toks []Token
	pos  int
}

// Parse lexes and parses src into a Network.
func Parse(src string) (*Network, error) {
	lx := NewLexer(src)
	var toks []Token
	for {
		t, err := lx.Next()
		if err != nil {
			return nil, err
		}
		toks = append(toks, t)
		if t.Kind == TokEOF {
			break
		}
	}
	p := &Parser{toks: toks}
	return p.parseNetwork()
}

func (p *Parser) cur() Token  { return p.toks[p.pos] }
func (p *Parser) atEOF() bool { return p.cur().Kind == TokEOF }

func (p *Parser) advance() Token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *Parser) is(kind TokKind, text string) bool {
	return p.cur().Kind == kind && p.cur().Text == text
}

func (p *Parser) isPunct(text string) bool   { return p.is(TokPunct, text) }
func (p *Parser) isKeyword(text string) bool { return p.is(TokKeyword, text) }

func (p *Parser) expectPunct(text string) error {
	if !p.isPunct(text) {
		return p.errf("expected %q, got %q", text, p.cur().Text)
	}
	p.advance()
	return nil
}

func (p *Parser) expectKeyword(text string) error {
	if !p.isKeyword(text) {
		return p.errf("expected keyword %q, got %q", text, p.cur().Text)
	}
	p.advance()
	return nil
}

func (p *Parser) expectIdent() (string, error) {
	if p.cur().Kind == TokKeyword {
		switch p.cur().Text {
		case "channel", "bitstring", "bool", "attacker":
			// Builtin type names and the `set attacker = ...` key are
			// keywords to the lexer but names to the grammar.
			return p.advance().Text, nil
		}
	}
	if p.cur().Kind != TokIdent {
		return "", p.errf("expected identifier, got %q", p.cur().Text)
	}
	return p.advance().Text, nil
}

func (p *Parser) errf(format string, args ...interface{}) error {
	return &ParseError{Pos: p.cur().Pos, Message: fmt.Sprintf(format, args...)}
}

func (p *Parser) parseNetwork() (*Network, error) {
	net := &Network{}
	for !p.atEOF() {
		switch {
		case p.isKeyword("free"):
			if err := p.parseFree(net); err != nil {
				return nil, err
			}
		case p.isKeyword("const"):
			if err := p.parseConst(net); err != nil {
				return nil, err
			}
		case p.isKeyword("type"):
			if err := p.parseType(net); err != nil {
				return nil, err
			}
		case p.isKeyword("fun"):
			if err := p.parseFun(net); err != nil {
				return nil, err
			}
		case p.isKeyword("reduc"):
			if err := p.parseReduc(net); err != nil {
				return nil, err
			}
		case p.isKeyword("table"):
			if err := p.parseTable(net); err != nil {
				return nil, err
			}
		case p.isKeyword("event"):
			if err := p.parseEventDecl(net); err != nil {
				return nil, err
			}
		case p.isKeyword("let"):
			if err := p.parseMacroDecl(net); err != nil {
				return nil, err
			}
		case p.isKeyword("set"):
			if err := p.parseSet(net); err != nil {
				return nil, err
			}
		case p.isKeyword("query"):
			if err := p.parseQuery(net); err != nil {
				return nil, err
			}
		case p.isKeyword("not"):
			if err := p.parseNot(net); err != nil {
				return nil, err
			}
		case p.isKeyword("process"):
			p.advance()
			proc, err := p.parseProcess()
			if err != nil {
				return nil, err
			}
			net.Process = proc
			if !p.atEOF() {
				return nil, p.errf("unexpected trailing input after process")
			}
		default:
			return nil, p.errf("unexpected token %q at top level", p.cur().Text)
		}
	}
	if net.Process == nil {
		return nil, p.errf("missing top-level process")
	}
	return net, nil
}

func (p *Parser) parseFree(net *Network) error {
	p.advance()
	for {
		name, err := p.expectIdent()
		if err != nil {
			return err
		}
		if err := p.expectPunct(":"); err != nil {
			return err
		}
		typ, err := p.expectIdent()
		if err != nil {
			return err
		}
		private := false
		if p.isPunct("[private]") {
			p.advance()
			private = true
		}
		net.Frees = append(net.Frees, FreeDecl{Name: name, Type: typ, Private: private})
		if p.isPunct(",") {
			p.advance()
			continue
		}
		break
	}
	return p.expectPunct(".")
}

func (p *Parser) parseConst(net *Network) error {
	p.advance()
	name, err := p.expectIdent()
	if err != nil {
		return err
	}
	if err := p.expectPunct(":"); err != nil {
		return err
	}
	typ, err := p.expectIdent()
	if err != nil {
		return err
	}
	net.Consts = append(net.Consts, ConstDecl{Name: name, Type: typ})
	return p.expectPunct(".")
}

func (p *Parser) parseType(net *Network) error {
	p.advance()
	name, err := p.expectIdent()
	if err != nil {
		return err
	}
	net.Types = append(net.Types, TypeDecl{Name: name})
	return p.expectPunct(".")
}

func (p *Parser) parseTypeList() ([]string, error) {
	if err := p.expectPunct("("); err != nil {
		return nil, err
	}
	var types []string
	if !p.isPunct(")") {
		for {
			t, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			types = append(types, t)
			if p.isPunct(",") {
				p.advance()
				continue
			}
			break
		}
	}
	return types, p.expectPunct(")")
}

func (p *Parser) parseFun(net *Network) error {
	p.advance()
	name, err := p.expectIdent()
	if err != nil {
		return err
	}
	argTypes, err := p.parseTypeList()
	if err != nil {
		return err
	}
	if err := p.expectPunct(":"); err != nil {
		return err
	}
	ret, err := p.expectIdent()
	if err != nil {
		return err
	}
	private := false
	if p.isPunct("[private]") {
		p.advance()
		private = true
	}
	net.Funs = append(net.Funs, FunDecl{Name: name, ArgTypes: argTypes, RetType: ret, Private: private})
	return p.expectPunct(".")
}

func (p *Parser) parseTypedIdentList() ([]TypedIdentExpr, error) {
	var out []TypedIdentExpr
	for {
		pos := p.cur().Pos
		name, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		if err := p.expectPunct(":"); err != nil {
			return nil, err
		}
		typ, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		out = append(out, TypedIdentExpr{Name: name, Type: typ, Pos: pos})
		if p.isPunct(",") {
			p.advance()
			continue
		}
		break
	}
	return out, nil
}

func (p *Parser) parseReduc(net *Network) error {
	p.advance()
	var clauses []ReducClause
	var funcName string
	for {
		if err := p.expectKeyword("forall"); err != nil {
			return err
		}
		foralls, err := p.parseTypedIdentList()
		if err != nil {
			return err
		}
		if err := p.expectPunct(";"); err != nil {
			return err
		}
		lhs, err := p.parseExpr()
		if err != nil {
			return err
		}
		fe, ok := lhs.(*FuncExpr)
		if !ok {
			return p.errf("reduc left-hand side must be a function application")
		}
		if funcName == "" {
			funcName = fe.Name
		}
		if err := p.expectPunct("="); err != nil {
			return err
		}
		rhs, err := p.parseExpr()
		if err != nil {
			return err
		}
		clauses = append(clauses, ReducClause{Foralls: foralls, Pattern: lhs, Rhs: rhs})
		if p.isPunct(",") {
			p.advance()
			continue
		}
		break
	}
	net.Reducs = append(net.Reducs, ReducDecl{Func: funcName, Clauses: clauses})
	return p.expectPunct(".")
}

func (p *Parser) parseTable(net *Network) error {
	p.advance()
	name, err := p.expectIdent()
	if err != nil {
		return err
	}
	types, err := p.parseTypeList()
	if err != nil {
		return err
	}
	net.Tables = append(net.Tables, TableDecl{Name: name, ArgTypes: types})
	return p.expectPunct(".")
}

func (p *Parser) parseEventDecl(net *Network) error {
	p.advance()
	name, err := p.expectIdent()
	if err != nil {
		return err
	}
	types, err := p.parseTypeList()
	if err != nil {
		return err
	}
	net.Events = append(net.Events, EventDecl{Name: name, ArgTypes: types})
	return p.expectPunct(".")
}

func (p *Parser) parseMacroDecl(net *Network) error {
	p.advance() // 'let'
	name, err := p.expectIdent()
	if err != nil {
		return err
	}
	var params []TypedIdentExpr
	if p.isPunct("(") {
		p.advance()
		if !p.isPunct(")") {
			params, err = p.parseTypedIdentList()
			if err != nil {
				return err
			}
		}
		if err := p.expectPunct(")"); err != nil {
			return err
		}
	}
	if err := p.expectPunct("="); err != nil {
		return err
	}
	body, err := p.parseProcess()
	if err != nil {
		return err
	}
	net.Macros = append(net.Macros, MacroDecl{Name: name, Params: params, Body: body})
	return p.expectPunct(".")
}

func (p *Parser) parseSet(net *Network) error {
	p.advance()
	key, err := p.expectIdent()
	if err != nil {
		return err
	}
	if err := p.expectPunct("="); err != nil {
		return err
	}
	val, err := p.expectIdent()
	if err != nil {
		return err
	}
	net.Options = append(net.Options, SetOption{Key: key, Value: val})
	return p.expectPunct(".")
}

func (p *Parser) parseAttackerTarget() (Expr, error) {
	if err := p.expectKeyword("attacker"); err != nil {
		return nil, err
	}
	if err := p.expectPunct("("); err != nil {
		return nil, err
	}
	e, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	return e, p.expectPunct(")")
}

func (p *Parser) parseQuery(net *Network) error {
	p.advance()
	e, err := p.parseAttackerTarget()
	if err != nil {
		return err
	}
	net.Queries = append(net.Queries, QueryDecl{Target: e})
	return p.expectPunct(".")
}

func (p *Parser) parseNot(net *Network) error {
	p.advance()
	e, err := p.parseAttackerTarget()
	if err != nil {
		return err
	}
	net.NotQueries = append(net.NotQueries, NotDecl{Target: e})
	return p.expectPunct(".")
}

// --- Expressions ---

func (p *Parser) parseExpr() (Expr, error) {
	pos := p.cur().Pos
	if p.isKeyword("new") {
		// `new` inside an expression position names a fresh value
		// (used in queries: `query attacker(new value)`).
		p.advance()
		name, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		return &FuncExpr{Name: "new " + name, Pos: pos}, nil
	}
	if p.isPunct("(") {
		p.advance()
		var elems []Expr
		first, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		elems = append(elems, first)
		for p.isPunct(",") {
			p.advance()
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			elems = append(elems, e)
		}
		if err := p.expectPunct(")"); err != nil {
			return nil, err
		}
		if len(elems) == 1 {
			return elems[0], nil
		}
		return &TupleExpr{Elems: elems, Pos: pos}, nil
	}
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if p.isPunct("(") {
		p.advance()
		var args []Expr
		if !p.isPunct(")") {
			for {
				a, err := p.parseExpr()
				if err != nil {
					return nil, err
				}
				args = append(args, a)
				if p.isPunct(",") {
					p.advance()
					continue
				}
				break
			}
		}
		if err := p.expectPunct(")"); err != nil {
			return nil, err
		}
		return &FuncExpr{Name: name, Args: args, Pos: pos}, nil
	}
	return &IdentExpr{Name: name, Pos: pos}, nil
}

// parsePattern parses a receive/let binder tree: idents may carry a
// `:Type` annotation introducing a fresh binder, or appear without one to
// reference an existing name (used rarely; the common case is a fresh
// binder).
func (p *Parser) parsePattern() (Expr, error) {
	pos := p.cur().Pos
	if p.isPunct("(") {
		p.advance()
		var elems []Expr
		first, err := p.parsePattern()
		if err != nil {
			return nil, err
		}
		elems = append(elems, first)
		for p.isPunct(",") {
			p.advance()
			e, err := p.parsePattern()
			if err != nil {
				return nil, err
			}
			elems = append(elems, e)
		}
		if err := p.expectPunct(")"); err != nil {
			return nil, err
		}
		if len(elems) == 1 {
			return elems[0], nil
		}
		return &TupleExpr{Elems: elems, Pos: pos}, nil
	}
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if p.isPunct("(") {
		// destructor application inside a pattern, e.g. checked-let
		// generators; args parsed as plain expressions.
		p.advance()
		var args []Expr
		if !p.isPunct(")") {
			for {
				a, err := p.parseExpr()
				if err != nil {
					return nil, err
				}
				args = append(args, a)
				if p.isPunct(",") {
					p.advance()
					continue
				}
				break
			}
		}
		if err := p.expectPunct(")"); err != nil {
			return nil, err
		}
		return &FuncExpr{Name: name, Args: args, Pos: pos}, nil
	}
	if p.isPunct(":") {
		p.advance()
		typ, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		return &TypedIdentExpr{Name: name, Type: typ, Pos: pos}, nil
	}
	return &IdentExpr{Name: name, Pos: pos}, nil
}

func (p *Parser) parseComparison() (Comparison, error) {
	pos := p.cur().Pos
	left, err := p.parseExpr()
	if err != nil {
		return Comparison{}, err
	}
	negated := false
	switch {
	case p.isPunct("="):
		p.advance()
	case p.isPunct("<>"):
		p.advance()
		negated = true
	default:
		return Comparison{}, p.errf("expected '=' or '<>' in comparison, got %q", p.cur().Text)
	}
	right, err := p.parseExpr()
	if err != nil {
		return Comparison{}, err
	}
	return Comparison{Left: left, Right: right, Negated: negated, Pos: pos}, nil
}

// --- Processes ---

// parseProcess parses the full grammar: parallel composition over
// replication over sequenced atoms.
func (p *Parser) parseProcess() (Proc, error) {
	first, err := p.parseReplTerm()
	if err != nil {
		return nil, err
	}
	if !p.isPunct("|") {
		return first, nil
	}
	branches := []Proc{first}
	for p.isPunct("|") {
		p.advance()
		next, err := p.parseReplTerm()
		if err != nil {
			return nil, err
		}
		branches = append(branches, next)
	}
	return &ParProc{Branches: branches}, nil
}

func (p *Parser) parseReplTerm() (Proc, error) {
	if p.isPunct("!") {
		p.advance()
		body, err := p.parseReplTerm()
		if err != nil {
			return nil, err
		}
		return &ReplProc{Body: body}, nil
	}
	return p.parseSeqTerm()
}

func (p *Parser) parseSeqTerm() (Proc, error) {
	atom, err := p.parseAtom()
	if err != nil {
		return nil, err
	}
	return p.attachContinuation(atom)
}

// attachContinuation wires a `;`-sequenced continuation onto prefix
// nodes (new/in/out/event) that carry a Next slot. if/let/call/par/repl
// do not chain this way; a `;` after them is a parse error, matching the
// source grammar's binding of sequencing to the linear prefix forms.
func (p *Parser) attachContinuation(proc Proc) (Proc, error) {
	hasSemi := p.isPunct(";")
	switch n := proc.(type) {
	case *NewProc:
		if hasSemi {
			p.advance()
			next, err := p.parseSeqTerm()
			if err != nil {
				return nil, err
			}
			n.Next = next
		} else {
			n.Next = &NilProc{}
		}
		return n, nil
	case *InProc:
		if hasSemi {
			p.advance()
			next, err := p.parseSeqTerm()
			if err != nil {
				return nil, err
			}
			n.Next = next
		} else {
			n.Next = &NilProc{}
		}
		return n, nil
	case *OutProc:
		if hasSemi {
			p.advance()
			next, err := p.parseSeqTerm()
			if err != nil {
				return nil, err
			}
			n.Next = next
		} else {
			n.Next = &NilProc{}
		}
		return n, nil
	case *EventProc:
		if hasSemi {
			p.advance()
			next, err := p.parseSeqTerm()
			if err != nil {
				return nil, err
			}
			n.Next = next
		} else {
			n.Next = &NilProc{}
		}
		return n, nil
	default:
		if hasSemi {
			return nil, p.errf("';' not valid after this process form")
		}
		return proc, nil
	}
}

func (p *Parser) parseAtom() (Proc, error) {
	pos := p.cur().Pos
	switch {
	case p.isPunct("("):
		p.advance()
		inner, err := p.parseProcess()
		if err != nil {
			return nil, err
		}
		if err := p.expectPunct(")"); err != nil {
			return nil, err
		}
		return inner, nil
	case p.isKeyword("new"):
		p.advance()
		name, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		typ := ""
		if p.isPunct(":") {
			p.advance()
			typ, err = p.expectIdent()
			if err != nil {
				return nil, err
			}
		}
		return &NewProc{Name: name, Type: typ, Pos: pos}, nil
	case p.isKeyword("in"):
		p.advance()
		if err := p.expectPunct("("); err != nil {
			return nil, err
		}
		ch, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := p.expectPunct(","); err != nil {
			return nil, err
		}
		pat, err := p.parsePattern()
		if err != nil {
			return nil, err
		}
		if err := p.expectPunct(")"); err != nil {
			return nil, err
		}
		return &InProc{Channel: ch, Pattern: pat, Pos: pos}, nil
	case p.isKeyword("out"):
		p.advance()
		if err := p.expectPunct("("); err != nil {
			return nil, err
		}
		ch, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := p.expectPunct(","); err != nil {
			return nil, err
		}
		term, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := p.expectPunct(")"); err != nil {
			return nil, err
		}
		return &OutProc{Channel: ch, Term: term, Pos: pos}, nil
	case p.isKeyword("if"):
		p.advance()
		cmp, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		if err := p.expectKeyword("then"); err != nil {
			return nil, err
		}
		thenP, err := p.parseReplTerm()
		if err != nil {
			return nil, err
		}
		var elseP Proc = &NilProc{}
		if p.isKeyword("else") {
			p.advance()
			elseP, err = p.parseReplTerm()
			if err != nil {
				return nil, err
			}
		}
		return &IfProc{Cond: cmp, Then: thenP, Else: elseP, Pos: pos}, nil
	case p.isKeyword("let"):
		p.advance()
		pat, err := p.parsePattern()
		if err != nil {
			return nil, err
		}
		if err := p.expectPunct("="); err != nil {
			return nil, err
		}
		gen, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := p.expectKeyword("in"); err != nil {
			return nil, err
		}
		thenP, err := p.parseReplTerm()
		if err != nil {
			return nil, err
		}
		var elseP Proc = &NilProc{}
		if p.isKeyword("else") {
			p.advance()
			elseP, err = p.parseReplTerm()
			if err != nil {
				return nil, err
			}
		}
		return &LetProc{Pattern: pat, Generator: gen, Then: thenP, Else: elseP, Pos: pos}, nil
	case p.isKeyword("event"):
		p.advance()
		name, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		var args []Expr
		if p.isPunct("(") {
			p.advance()
			if !p.isPunct(")") {
				for {
					a, err := p.parseExpr()
					if err != nil {
						return nil, err
					}
					args = append(args, a)
					if p.isPunct(",") {
						p.advance()
						continue
					}
					break
				}
			}
			if err := p.expectPunct(")"); err != nil {
				return nil, err
			}
		}
		return &EventProc{Name: name, Args: args, Pos: pos}, nil
	case p.cur().Kind == TokIdent && p.cur().Text == "0":
		p.advance()
		return &NilProc{}, nil
	case p.cur().Kind == TokIdent:
		name, _ := p.expectIdent()
		var args []Expr
		if p.isPunct("(") {
			p.advance()
			if !p.isPunct(")") {
				for {
					a, err := p.parseExpr()
					if err != nil {
						return nil, err
					}
					args = append(args, a)
					if p.isPunct(",") {
						p.advance()
						continue
					}
					break
				}
			}
			if err := p.expectPunct(")"); err != nil {
				return nil, err
			}
		}
		return &CallProc{Name: name, Args: args, Pos: pos}, nil
	default:
		return nil, p.errf("unexpected token %q while parsing a process", p.cur().Text)
	}
}
