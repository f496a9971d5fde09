// Package formula parses and evaluates the small arithmetic expressions used
// by skill and buff tables. Formulas compile once into an operator tree over
// a closed set of variables and whitelisted functions; nothing else is
// reachable from a formula.
package formula

import (
	"fmt"
	"sort"
)

// Expr is a compiled formula.
type Expr struct {
	src  string
	root node
}

// Parse compiles src into an Expr.
func Parse(src string) (*Expr, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{src: src, toks: toks}
	root, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tokEOF {
		t := p.peek()
		return nil, &SyntaxError{Src: src, Pos: t.pos, Msg: fmt.Sprintf("unexpected %q", t.text)}
	}
	return &Expr{src: src, root: root}, nil
}

// MustParse is Parse for formulas known to be valid, such as built-in defaults.
func MustParse(src string) *Expr {
	e, err := Parse(src)
	if err != nil {
		panic(err)
	}
	return e
}

// String returns the source text.
func (e *Expr) String() string {
	return e.src
}

// Vars returns the sorted, de-duplicated variable names the formula reads.
func (e *Expr) Vars() []string {
	seen := map[string]bool{}
	collectVars(e.root, seen)
	out := make([]string, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func collectVars(n node, seen map[string]bool) {
	switch x := n.(type) {
	case varRef:
		seen[string(x)] = true
	case *unary:
		collectVars(x.x, seen)
	case *binary:
		collectVars(x.l, seen)
		collectVars(x.r, seen)
	case *call:
		for _, a := range x.args {
			collectVars(a, seen)
		}
	}
}

type parser struct {
	src  string
	toks []token
	i    int
}

func (p *parser) peek() token {
	return p.toks[p.i]
}

func (p *parser) next() token {
	t := p.toks[p.i]
	if t.kind != tokEOF {
		p.i++
	}
	return t
}

// isOp reports whether the next token is one of the given operators or
// keyword aliases.
func (p *parser) isOp(ops ...string) (string, bool) {
	t := p.peek()
	if t.kind != tokOp && t.kind != tokIdent {
		return "", false
	}
	for _, op := range ops {
		if t.text == op {
			return op, true
		}
	}
	return "", false
}

func (p *parser) errorf(t token, format string, args ...any) error {
	return &SyntaxError{Src: p.src, Pos: t.pos, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) parseOr() (node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for {
		if _, ok := p.isOp("or", "||"); !ok {
			return left, nil
		}
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &binary{op: "or", l: left, r: right}
	}
}

func (p *parser) parseAnd() (node, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for {
		if _, ok := p.isOp("and", "&&"); !ok {
			return left, nil
		}
		p.next()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = &binary{op: "and", l: left, r: right}
	}
}

func (p *parser) parseNot() (node, error) {
	if _, ok := p.isOp("not", "!"); ok {
		p.next()
		x, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &unary{op: "not", x: x}, nil
	}
	return p.parseComparison()
}

func (p *parser) parseComparison() (node, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.isOp("<", "<=", ">", ">=", "==", "!=")
		if !ok {
			return left, nil
		}
		p.next()
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		left = &binary{op: op, l: left, r: right}
	}
}

func (p *parser) parseAdditive() (node, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.isOp("+", "-")
		if !ok {
			return left, nil
		}
		p.next()
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &binary{op: op, l: left, r: right}
	}
}

func (p *parser) parseMultiplicative() (node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.isOp("*", "/", "%")
		if !ok {
			return left, nil
		}
		p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &binary{op: op, l: left, r: right}
	}
}

func (p *parser) parseUnary() (node, error) {
	if op, ok := p.isOp("-", "+"); ok {
		p.next()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &unary{op: op, x: x}, nil
	}
	return p.parsePower()
}

// parsePower is right-associative and binds tighter than unary minus on
// its left operand: -2**2 == -4.
func (p *parser) parsePower() (node, error) {
	base, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	if _, ok := p.isOp("**"); ok {
		p.next()
		exp, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &binary{op: "**", l: base, r: exp}, nil
	}
	return base, nil
}

func (p *parser) parsePrimary() (node, error) {
	t := p.next()
	switch t.kind {
	case tokNumber:
		return numLit(t.num), nil

	case tokLParen:
		x, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.peek().kind != tokRParen {
			return nil, p.errorf(p.peek(), "expected ')'")
		}
		p.next()
		return x, nil

	case tokIdent:
		switch t.text {
		case "true", "True":
			return numLit(1), nil
		case "false", "False":
			return numLit(0), nil
		case "and", "or", "not":
			return nil, p.errorf(t, "unexpected %q", t.text)
		}
		if p.peek().kind == tokLParen {
			return p.parseCall(t)
		}
		return varRef(t.text), nil

	case tokEOF:
		return nil, p.errorf(t, "unexpected end of formula")

	default:
		return nil, p.errorf(t, "unexpected %q", t.text)
	}
}

func (p *parser) parseCall(name token) (node, error) {
	fn, ok := builtins[name.text]
	if !ok {
		return nil, p.errorf(name, "unknown function %q", name.text)
	}
	p.next() // (
	var args []node
	if p.peek().kind != tokRParen {
		for {
			a, err := p.parseOr()
			if err != nil {
				return nil, err
			}
			args = append(args, a)
			if p.peek().kind != tokComma {
				break
			}
			p.next()
		}
	}
	if p.peek().kind != tokRParen {
		return nil, p.errorf(p.peek(), "expected ')' after arguments to %s", name.text)
	}
	p.next()
	if len(args) < fn.minArgs || (fn.maxArgs >= 0 && len(args) > fn.maxArgs) {
		return nil, p.errorf(name, "%s takes %s argument(s), got %d", name.text, fn.arity(), len(args))
	}
	return &call{name: name.text, fn: fn, args: args}, nil
}
