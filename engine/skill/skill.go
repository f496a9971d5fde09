// Package skill wraps equipped skills and carried buffs as bus subscribers.
// A subscriber fires only when its gate (cooldown and cost), its trigger
// role and every condition pass; activating runs the effect list against
// the resolved targets with the handled event as parent.
package skill

import (
	"log/slog"

	"github.com/nathoo/duelcore/engine/effects"
	"github.com/nathoo/duelcore/engine/events"
	"github.com/nathoo/duelcore/engine/formula"
	"github.com/nathoo/duelcore/engine/resolve"
	"github.com/nathoo/duelcore/engine/rules"
	"github.com/nathoo/duelcore/engine/state"
	"github.com/nathoo/duelcore/engine/unit"
	"github.com/nathoo/duelcore/types"
)

// Env is the per-fight state every subscriber shares.
type Env struct {
	Log      *events.Log
	Settler  effects.Settler
	Rules    *state.RuleTable
	Formulas *formula.Evaluator
	RNG      effects.Rand
	Ops      effects.Table
	Units    []*unit.Unit
	Round    func() int
	Logger   *slog.Logger
}

func (e *Env) round() int {
	if e.Round == nil {
		return 0
	}
	return e.Round()
}

func (e *Env) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

func (e *Env) scope(owner *unit.Unit, ev *events.Event, stacks int) *formula.Scope {
	b := rules.Bindings{
		Owner:  owner,
		Source: resolve.ByID(e.Units, ev.Source),
		Target: resolve.ByID(e.Units, ev.Target),
		Event:  ev,
		Stacks: stacks,
		Round:  e.round(),
	}
	if e.RNG != nil {
		b.Rand = e.RNG.Float64
	}
	return b.Scope()
}

// Skill is an equipped skill bound to its owner.
type Skill struct {
	Slot  *unit.SkillSlot
	Owner *unit.Unit
	env   *Env
}

// New binds slot to owner.
func New(slot *unit.SkillSlot, owner *unit.Unit, env *Env) *Skill {
	return &Skill{Slot: slot, Owner: owner, env: env}
}

// Def returns the skill definition.
func (s *Skill) Def() *types.SkillDef { return s.Slot.Def }

// CanActivate reports whether the skill may fire now. Actives need a ready
// cooldown and affordable costs; passives and auras are gated by triggers
// alone. Fallen owners never act.
func (s *Skill) CanActivate() bool {
	if !s.Owner.Alive() {
		return false
	}
	if s.Def().Kind != types.SkillActive {
		return true
	}
	return s.Slot.Ready() && s.Owner.CanAfford(s.Def().Cost)
}

// Activate pays the skill's cost, starts its cooldown and runs its effects
// with ev as the causing event. Returns the spawned event ids.
func (s *Skill) Activate(ev *events.Event) []int {
	def := s.Def()
	env := s.env
	if def.Kind == types.SkillActive {
		s.Owner.Spend(def.Cost)
		s.Slot.Cooldown = def.Cooldown
	}

	selector := def.Target
	if selector == "" {
		selector = resolve.DefaultSelector(def.Kind)
	}
	targets, err := resolve.Targets(selector, s.Owner, env.Units, ev, env.RNG)
	if err != nil {
		env.logger().Warn("skill target unresolved", "skill", def.ID, "err", err)
		return nil
	}

	var spawned []int
	if def.Kind == types.SkillActive {
		target := ev.Target
		if len(targets) > 0 {
			target = targets[0].ID
		}
		cast := env.Log.Spawn(ev.ID, &events.Event{
			Type:    types.EventCast,
			Op:      events.OpCast,
			Round:   env.round(),
			Source:  s.Owner.ID,
			Target:  target,
			SkillID: def.ID,
			Settled: true,
		})
		spawned = append(spawned, cast.ID)
	}

	env.logger().Debug("skill cast", "skill", def.ID, "owner", s.Owner.Name, "round", env.round())
	ctx := &effects.Context{
		Owner:    s.Owner,
		Event:    ev,
		Log:      env.Log,
		Settler:  env.Settler,
		Rules:    env.Rules,
		Formulas: env.Formulas,
		RNG:      env.RNG,
		SkillID:  def.ID,
		Label:    label(def.Name, def.ID),
		Round:    env.round(),
	}
	return append(spawned, env.Ops.Run(ctx, def.Effects, targets)...)
}

// Handler returns the bus handler for one of the skill's triggers.
func (s *Skill) Handler(tr types.TriggerDef) events.Handler {
	return func(ev *events.Event) events.Result {
		active := s.Def().Kind == types.SkillActive
		if active && ev.ActionTaken {
			return events.Skip
		}
		if !s.CanActivate() {
			return events.Skip
		}
		if !rules.Matches(tr, s.Owner.ID, ev, s.env.Formulas, s.env.scope(s.Owner, ev, 0)) {
			return events.Skip
		}
		s.Activate(ev)
		if active {
			ev.ActionTaken = true
		}
		if tr.StopPropagation {
			return events.Stop
		}
		return events.Fired
	}
}

// BuffHook runs a buff definition's triggered effects for one unit while
// that unit carries the buff.
type BuffHook struct {
	Def   *types.BuffDef
	Owner *unit.Unit
	env   *Env
}

// Handler returns the bus handler for one of the buff's triggers.
func (h *BuffHook) Handler(tr types.TriggerDef) events.Handler {
	return func(ev *events.Event) events.Result {
		b := h.Owner.Buff(h.Def.ID)
		if b == nil || !h.Owner.Alive() {
			return events.Skip
		}
		if !rules.Matches(tr, h.Owner.ID, ev, h.env.Formulas, h.env.scope(h.Owner, ev, b.Stacks)) {
			return events.Skip
		}
		ctx := &effects.Context{
			Owner:    h.Owner,
			Applier:  b.SourceID,
			Event:    ev,
			Log:      h.env.Log,
			Settler:  h.env.Settler,
			Rules:    h.env.Rules,
			Formulas: h.env.Formulas,
			RNG:      h.env.RNG,
			SkillID:  h.Def.ID,
			Label:    b.Name(),
			Stacks:   b.Stacks,
			Round:    h.env.round(),
		}
		h.env.Ops.Run(ctx, h.Def.Effects, []*unit.Unit{h.Owner})
		if tr.StopPropagation {
			return events.Stop
		}
		return events.Fired
	}
}

// Register subscribes every equipped skill of u, and a hook for every buff
// definition with triggers, to bus. Returns the bound skills in equip order.
func Register(bus *events.Bus, u *unit.Unit, env *Env) []*Skill {
	var out []*Skill
	for _, slot := range u.Skills() {
		s := New(slot, u, env)
		for _, tr := range rules.Triggers(slot.Def) {
			bus.Subscribe(tr.Event, tr.Priority, s.Handler(tr))
		}
		out = append(out, s)
	}
	for _, id := range state.SortedIDs(env.Rules.Buffs) {
		def := env.Rules.Buffs[id]
		if len(def.Triggers) == 0 || len(def.Effects) == 0 {
			continue
		}
		h := &BuffHook{Def: def, Owner: u, env: env}
		for _, tr := range def.Triggers {
			bus.Subscribe(tr.Event, tr.Priority, h.Handler(tr))
		}
	}
	return out
}

func label(name, id string) string {
	if name != "" {
		return name
	}
	return id
}
