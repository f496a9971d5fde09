// Package rules decides whether a trigger applies to an event: role
// matching, formula conditions and the equip rules that grant skills.
package rules

import (
	"github.com/nathoo/duelcore/engine/events"
	"github.com/nathoo/duelcore/engine/formula"
	"github.com/nathoo/duelcore/engine/unit"
)

// Bindings are the units and event a formula is evaluated against. Bare
// stat names resolve to the owner.
type Bindings struct {
	Owner  *unit.Unit
	Source *unit.Unit
	Target *unit.Unit
	Event  *events.Event

	Stacks     int
	Round      int
	LastDamage int
	Rand       func() float64
}

// Scope builds the closed variable set for b.
func (b Bindings) Scope() *formula.Scope {
	s := &formula.Scope{Vars: map[string]float64{}, Rand: b.Rand}
	bindUnit(s, "", b.Owner)
	bindUnit(s, "owner.", b.Owner)
	bindUnit(s, "source.", b.Source)
	bindUnit(s, "target.", b.Target)

	round := b.Round
	if round == 0 && b.Event != nil {
		round = b.Event.Round
	}
	s.Set("stacks", float64(b.Stacks))
	s.Set("round", float64(round))
	s.Set("last_damage", float64(b.LastDamage))
	if ev := b.Event; ev != nil {
		damage := ev.Amount
		if ev.Settled {
			damage = ev.LastAmount
		}
		s.Set("damage", float64(damage))
		for dtype, v := range ev.Breakdown {
			s.Set("damage."+dtype, float64(v))
		}
		s.SetBool("is_crit", ev.Crit)
		s.SetBool("is_dodged", ev.Dodged)
	} else {
		s.Set("damage", 0)
		s.SetBool("is_crit", false)
		s.SetBool("is_dodged", false)
	}
	return s
}

func bindUnit(s *formula.Scope, prefix string, u *unit.Unit) {
	if u == nil {
		for _, name := range formula.StatNames {
			s.Set(prefix+name, 0)
		}
		return
	}
	st := u.Stats()
	s.Set(prefix+"ATK", st.ATK)
	s.Set(prefix+"DEF", st.DEF)
	s.Set(prefix+"AGI", st.AGI)
	s.Set(prefix+"INT", st.INT)
	s.Set(prefix+"CRIT", st.CRIT)
	s.Set(prefix+"HP", float64(u.HP()))
	s.Set(prefix+"MAX_HP", float64(st.MaxHP))
}

// EvalConditions returns true if every condition holds. An empty list is
// vacuously true; a condition that fails to evaluate counts as false.
func EvalConditions(conditions []string, ev *formula.Evaluator, s *formula.Scope) bool {
	for _, c := range conditions {
		if !ev.Bool(c, s) {
			return false
		}
	}
	return true
}
