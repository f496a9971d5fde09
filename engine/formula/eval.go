package formula

import (
	"errors"
	"fmt"
	"math"
	"strconv"
)

// Eval errors. Callers that need a neutral fallback use Evaluator.
var (
	ErrUnknownVariable = errors.New("unknown variable")
	ErrDivisionByZero  = errors.New("division by zero")
	ErrNotFinite       = errors.New("result is not finite")
	ErrNoRandom        = errors.New("random source not provided")
)

// Scope is the closed variable set a formula is evaluated against.
type Scope struct {
	Vars map[string]float64
	Rand func() float64 // uniform [0, 1); owned by the caller
}

// Set stores a variable.
func (s *Scope) Set(name string, v float64) {
	if s.Vars == nil {
		s.Vars = map[string]float64{}
	}
	s.Vars[name] = v
}

// SetBool stores a flag as 1 or 0.
func (s *Scope) SetBool(name string, b bool) {
	if b {
		s.Set(name, 1)
		return
	}
	s.Set(name, 0)
}

type node interface {
	eval(s *Scope) (float64, error)
}

type numLit float64

func (n numLit) eval(*Scope) (float64, error) { return float64(n), nil }

type varRef string

func (v varRef) eval(s *Scope) (float64, error) {
	if s != nil {
		if x, ok := s.Vars[string(v)]; ok {
			return x, nil
		}
	}
	return 0, fmt.Errorf("%w %q", ErrUnknownVariable, string(v))
}

type unary struct {
	op string
	x  node
}

func (u *unary) eval(s *Scope) (float64, error) {
	x, err := u.x.eval(s)
	if err != nil {
		return 0, err
	}
	switch u.op {
	case "-":
		return -x, nil
	case "not":
		return boolNum(x == 0), nil
	default:
		return x, nil
	}
}

type binary struct {
	op   string
	l, r node
}

func (b *binary) eval(s *Scope) (float64, error) {
	l, err := b.l.eval(s)
	if err != nil {
		return 0, err
	}
	// Short-circuit so guards like "x != 0 and 10 / x > 1" are safe.
	switch b.op {
	case "and":
		if l == 0 {
			return 0, nil
		}
	case "or":
		if l != 0 {
			return 1, nil
		}
	}
	r, err := b.r.eval(s)
	if err != nil {
		return 0, err
	}
	switch b.op {
	case "+":
		return l + r, nil
	case "-":
		return l - r, nil
	case "*":
		return l * r, nil
	case "/":
		if r == 0 {
			return 0, ErrDivisionByZero
		}
		return l / r, nil
	case "%":
		if r == 0 {
			return 0, ErrDivisionByZero
		}
		return math.Mod(l, r), nil
	case "**":
		return math.Pow(l, r), nil
	case "<":
		return boolNum(l < r), nil
	case "<=":
		return boolNum(l <= r), nil
	case ">":
		return boolNum(l > r), nil
	case ">=":
		return boolNum(l >= r), nil
	case "==":
		return boolNum(l == r), nil
	case "!=":
		return boolNum(l != r), nil
	case "and", "or":
		return boolNum(r != 0), nil
	}
	return 0, fmt.Errorf("unknown operator %q", b.op)
}

type call struct {
	name string
	fn   builtin
	args []node
}

func (c *call) eval(s *Scope) (float64, error) {
	vals := make([]float64, len(c.args))
	for i, a := range c.args {
		v, err := a.eval(s)
		if err != nil {
			return 0, err
		}
		vals[i] = v
	}
	return c.fn.call(s, vals)
}

type builtin struct {
	minArgs int
	maxArgs int // -1 = variadic
	call    func(s *Scope, args []float64) (float64, error)
}

func (b builtin) arity() string {
	switch {
	case b.maxArgs < 0:
		return "at least " + strconv.Itoa(b.minArgs)
	case b.minArgs == b.maxArgs:
		return strconv.Itoa(b.minArgs)
	default:
		return fmt.Sprintf("%d-%d", b.minArgs, b.maxArgs)
	}
}

func unaryFn(f func(float64) float64) builtin {
	return builtin{minArgs: 1, maxArgs: 1, call: func(_ *Scope, a []float64) (float64, error) {
		return f(a[0]), nil
	}}
}

// builtins is the whole function whitelist.
var builtins = map[string]builtin{
	"min": {minArgs: 1, maxArgs: -1, call: func(_ *Scope, a []float64) (float64, error) {
		m := a[0]
		for _, v := range a[1:] {
			m = math.Min(m, v)
		}
		return m, nil
	}},
	"max": {minArgs: 1, maxArgs: -1, call: func(_ *Scope, a []float64) (float64, error) {
		m := a[0]
		for _, v := range a[1:] {
			m = math.Max(m, v)
		}
		return m, nil
	}},
	"clamp": {minArgs: 3, maxArgs: 3, call: func(_ *Scope, a []float64) (float64, error) {
		return math.Max(a[1], math.Min(a[2], a[0])), nil
	}},
	"abs":   unaryFn(math.Abs),
	"round": unaryFn(math.Round),
	"floor": unaryFn(math.Floor),
	"ceil":  unaryFn(math.Ceil),
	"int":   unaryFn(math.Trunc),
	"float": unaryFn(func(x float64) float64 { return x }),
	"sqrt": {minArgs: 1, maxArgs: 1, call: func(_ *Scope, a []float64) (float64, error) {
		if a[0] < 0 {
			return 0, ErrNotFinite
		}
		return math.Sqrt(a[0]), nil
	}},
	"random": {minArgs: 0, maxArgs: 0, call: func(s *Scope, _ []float64) (float64, error) {
		if s == nil || s.Rand == nil {
			return 0, ErrNoRandom
		}
		return s.Rand(), nil
	}},
	"randint": {minArgs: 2, maxArgs: 2, call: func(s *Scope, a []float64) (float64, error) {
		if s == nil || s.Rand == nil {
			return 0, ErrNoRandom
		}
		lo, hi := math.Ceil(a[0]), math.Floor(a[1])
		if hi < lo {
			return 0, fmt.Errorf("randint: empty range [%v, %v]", a[0], a[1])
		}
		return lo + math.Floor(s.Rand()*(hi-lo+1)), nil
	}},
}

// Eval evaluates the formula against scope.
func (e *Expr) Eval(s *Scope) (float64, error) {
	v, err := e.root.eval(s)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, ErrNotFinite
	}
	return v, nil
}

// Bool evaluates the formula as a predicate: non-zero is true.
func (e *Expr) Bool(s *Scope) (bool, error) {
	v, err := e.Eval(s)
	if err != nil {
		return false, err
	}
	return v != 0, nil
}

func boolNum(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
