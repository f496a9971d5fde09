package formula

import (
	"log/slog"
	"strings"
)

// StatNames are the unit stats exposed to formulas, bare and prefixed.
var StatNames = []string{"ATK", "DEF", "AGI", "INT", "CRIT", "HP", "MAX_HP"}

var unitPrefixes = []string{"", "source.", "target.", "owner."}

var contextVars = map[string]bool{
	"stacks":      true,
	"damage":      true,
	"last_damage": true,
	"round":       true,
	"is_crit":     true,
	"is_dodged":   true,
}

var knownVars = buildKnownVars()

func buildKnownVars() map[string]bool {
	m := map[string]bool{}
	for _, p := range unitPrefixes {
		for _, s := range StatNames {
			m[p+s] = true
		}
	}
	for k := range contextVars {
		m[k] = true
	}
	return m
}

// KnownVariable reports whether name belongs to the closed variable set.
// Per-type damage entries ("damage.fire") are open-ended by type.
func KnownVariable(name string) bool {
	if knownVars[name] {
		return true
	}
	return strings.HasPrefix(name, "damage.") && len(name) > len("damage.")
}

// Evaluator evaluates formulas with a neutral fallback. Formulas are
// compiled up front; the cache is never written after construction, so one
// Evaluator can serve many fights at once.
type Evaluator struct {
	compiled map[string]*Expr
}

// NewEvaluator compiles every source. Malformed sources are reported and
// left out of the cache.
func NewEvaluator(sources []string) (*Evaluator, []error) {
	ev := &Evaluator{compiled: map[string]*Expr{}}
	var errs []error
	for _, src := range sources {
		if src == "" {
			continue
		}
		if _, ok := ev.compiled[src]; ok {
			continue
		}
		e, err := Parse(src)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		ev.compiled[src] = e
	}
	return ev, errs
}

// Compiled returns the cached expression for src.
func (ev *Evaluator) Compiled(src string) (*Expr, bool) {
	if ev == nil {
		return nil, false
	}
	e, ok := ev.compiled[src]
	return e, ok
}

func (ev *Evaluator) lookup(src string) (*Expr, error) {
	if e, ok := ev.Compiled(src); ok {
		return e, nil
	}
	return Parse(src)
}

// Number evaluates src and returns 0 on any failure. An empty source is 0.
func (ev *Evaluator) Number(src string, s *Scope) float64 {
	if src == "" {
		return 0
	}
	e, err := ev.lookup(src)
	if err != nil {
		slog.Debug("formula rejected", "formula", src, "err", err)
		return 0
	}
	v, err := e.Eval(s)
	if err != nil {
		slog.Debug("formula evaluation failed", "formula", src, "err", err)
		return 0
	}
	return v
}

// Bool evaluates src as a predicate and returns false on any failure.
func (ev *Evaluator) Bool(src string, s *Scope) bool {
	if src == "" {
		return false
	}
	e, err := ev.lookup(src)
	if err != nil {
		slog.Debug("condition rejected", "formula", src, "err", err)
		return false
	}
	b, err := e.Bool(s)
	if err != nil {
		slog.Debug("condition evaluation failed", "formula", src, "err", err)
		return false
	}
	return b
}
