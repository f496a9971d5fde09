package formula

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scope(vars map[string]float64) *Scope {
	return &Scope{Vars: vars}
}

func TestEval_Arithmetic(t *testing.T) {
	tests := []struct {
		src  string
		vars map[string]float64
		want float64
	}{
		{"1 + 2 * 3", nil, 7},
		{"(1 + 2) * 3", nil, 9},
		{"ATK * 1.6", map[string]float64{"ATK": 50}, 80},
		{"ATK - target.DEF / 2", map[string]float64{"ATK": 50, "target.DEF": 10}, 45},
		{"-2 ** 2", nil, -4},
		{"2 ** 3 ** 2", nil, 512},
		{"7 % 3", nil, 1},
		{"min(3, 1, 2)", nil, 1},
		{"max(3, 1, 2)", nil, 3},
		{"abs(-4)", nil, 4},
		{"floor(2.7) + ceil(2.1)", nil, 5},
		{"round(2.5)", nil, 3},
		{"int(-2.7)", nil, -2},
		{"float(3)", nil, 3},
		{"sqrt(16)", nil, 4},
		{"clamp(150, 0, 100)", nil, 100},
		{"damage.physical * 0.5", map[string]float64{"damage.physical": 40}, 20},
		{".5 + .25", nil, 0.75},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			e, err := Parse(tt.src)
			require.NoError(t, err)
			got, err := e.Eval(scope(tt.vars))
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestEval_Booleans(t *testing.T) {
	tests := []struct {
		src  string
		vars map[string]float64
		want bool
	}{
		{"target.HP < target.MAX_HP * 0.5", map[string]float64{"target.HP": 40, "target.MAX_HP": 100}, true},
		{"target.HP < target.MAX_HP * 0.5", map[string]float64{"target.HP": 60, "target.MAX_HP": 100}, false},
		{"is_crit and not is_dodged", map[string]float64{"is_crit": 1, "is_dodged": 0}, true},
		{"is_crit && !is_dodged", map[string]float64{"is_crit": 1, "is_dodged": 1}, false},
		{"stacks >= 3 or round == 1", map[string]float64{"stacks": 0, "round": 1}, true},
		{"true", nil, true},
		{"False", nil, false},
		{"1 != 1", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			e, err := Parse(tt.src)
			require.NoError(t, err)
			got, err := e.Bool(scope(tt.vars))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEval_ShortCircuit(t *testing.T) {
	e, err := Parse("x != 0 and 10 / x > 1")
	require.NoError(t, err)

	got, err := e.Bool(scope(map[string]float64{"x": 0}))
	require.NoError(t, err)
	assert.False(t, got)
}

func TestParse_Rejects(t *testing.T) {
	tests := []string{
		"",
		"1 +",
		"(1 + 2",
		"ATK ATK",
		"__import__('os')",
		"exec(1)",
		"open()",
		"ATK; DEF",
		"a.",
		"min()",
		"clamp(1, 2)",
		"random(1)",
		"1 = 2",
		"'str'",
	}
	for _, src := range tests {
		t.Run(src, func(t *testing.T) {
			_, err := Parse(src)
			require.Error(t, err)
			var se *SyntaxError
			assert.True(t, errors.As(err, &se), "want *SyntaxError, got %T", err)
		})
	}
}

func TestEval_Errors(t *testing.T) {
	tests := []struct {
		src  string
		want error
	}{
		{"ATK * 2", ErrUnknownVariable},
		{"1 / 0", ErrDivisionByZero},
		{"1 % 0", ErrDivisionByZero},
		{"sqrt(-1)", ErrNotFinite},
		{"10 ** 400", ErrNotFinite},
		{"random()", ErrNoRandom},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			e, err := Parse(tt.src)
			require.NoError(t, err)
			_, err = e.Eval(&Scope{})
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestEval_RandomUsesCallerSource(t *testing.T) {
	e := MustParse("randint(1, 6) + random()")
	s := &Scope{Rand: func() float64 { return 0.5 }}

	got, err := e.Eval(s)
	require.NoError(t, err)
	assert.InDelta(t, 4.5, got, 1e-9)
}

func TestExpr_Vars(t *testing.T) {
	e := MustParse("max(ATK, target.DEF) + ATK * stacks")
	assert.Equal(t, []string{"ATK", "stacks", "target.DEF"}, e.Vars())
	assert.Equal(t, "max(ATK, target.DEF) + ATK * stacks", e.String())
}

func TestKnownVariable(t *testing.T) {
	for _, name := range []string{"ATK", "target.HP", "source.MAX_HP", "owner.CRIT", "stacks", "damage.fire", "last_damage"} {
		assert.True(t, KnownVariable(name), name)
	}
	for _, name := range []string{"os", "target.secret", "damage.", "self.ATK", "__class__"} {
		assert.False(t, KnownVariable(name), name)
	}
}

func TestEvaluator_NeutralFallback(t *testing.T) {
	ev, errs := NewEvaluator([]string{"ATK * 2", "bad (", "ATK * 2"})
	require.Len(t, errs, 1)

	_, ok := ev.Compiled("ATK * 2")
	assert.True(t, ok)
	_, ok = ev.Compiled("bad (")
	assert.False(t, ok)

	s := scope(map[string]float64{"ATK": 10})
	assert.Equal(t, 20.0, ev.Number("ATK * 2", s))
	assert.Equal(t, 0.0, ev.Number("bad (", s))
	assert.Equal(t, 0.0, ev.Number("DEF * 2", s))
	assert.Equal(t, 0.0, ev.Number("", s))
	assert.Equal(t, 5.0, ev.Number("ATK / 2", s), "uncached formulas still evaluate")

	assert.True(t, ev.Bool("ATK > 5", s))
	assert.False(t, ev.Bool("bad (", s))
	assert.False(t, ev.Bool("1 / 0", s))
}

func TestEvaluator_Nil(t *testing.T) {
	var ev *Evaluator
	assert.Equal(t, 3.0, ev.Number("1 + 2", nil))
}

func TestEval_Deterministic(t *testing.T) {
	e := MustParse("ATK * (0.9 + random() * 0.2)")
	draws := []float64{0.1, 0.7, 0.3}

	run := func() []float64 {
		i := 0
		s := &Scope{
			Vars: map[string]float64{"ATK": 100},
			Rand: func() float64 { v := draws[i%len(draws)]; i++; return v },
		}
		var out []float64
		for range draws {
			v, err := e.Eval(s)
			require.NoError(t, err)
			out = append(out, v)
		}
		return out
	}
	assert.Equal(t, run(), run())
}
