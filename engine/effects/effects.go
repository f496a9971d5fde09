// Package effects implements the fixed vocabulary of effect operations.
// Every op is one atomic rule: it reads formulas through the context,
// mutates units or the in-flight event, and spawns child events so the
// causal tree stays connected.
package effects

import (
	"fmt"
	"log/slog"

	"github.com/nathoo/duelcore/engine/events"
	"github.com/nathoo/duelcore/engine/formula"
	"github.com/nathoo/duelcore/engine/rules"
	"github.com/nathoo/duelcore/engine/state"
	"github.com/nathoo/duelcore/engine/unit"
	"github.com/nathoo/duelcore/types"
)

// Rand is the random source effects draw from. The battle owns it.
type Rand interface {
	Float64() float64
	Intn(n int) int
	Uniform(lo, hi float64) float64
	Chance(p float64) bool
}

// Settler resolves a spawned event against the units. The battle
// implements it: dodge, damage_calc, mitigation and healing all happen
// there so every source of damage settles the same way.
type Settler interface {
	Settle(ev *events.Event)
	Unit(id string) *unit.Unit
}

// Context is everything an op may read or touch while running one
// activation's effect list.
type Context struct {
	Owner    *unit.Unit
	Applier  string        // is_owner gate id; the buff's applier for buff hooks
	Event    *events.Event // event being handled; parent of spawned events
	Log      *events.Log
	Settler  Settler
	Rules    *state.RuleTable
	Formulas *formula.Evaluator
	RNG      Rand
	SkillID  string
	Label    string // skill or buff name for narration
	Stacks   int
	Round    int

	// Updated as the list runs so later effects can read earlier results.
	LastDamage int
	Dodged     bool
}

// Op is one effect kind. Apply returns the ids of the events it spawned.
type Op interface {
	Apply(spec types.EffectSpec, ctx *Context, target *unit.Unit) []int
}

// OpFunc adapts a function to Op.
type OpFunc func(spec types.EffectSpec, ctx *Context, target *unit.Unit) []int

// Apply calls f.
func (f OpFunc) Apply(spec types.EffectSpec, ctx *Context, target *unit.Unit) []int {
	return f(spec, ctx, target)
}

// Table maps op names to implementations.
type Table map[types.Op]Op

// Default returns the standard op table.
func Default() Table {
	return Table{
		types.OpDamage:          OpFunc(damage),
		types.OpDamageReduction: OpFunc(damageReduction),
		types.OpAddDamage:       OpFunc(addDamage),
		types.OpReflectDamage:   OpFunc(reflectDamage),
		types.OpLeech:           OpFunc(leech),
		types.OpHeal:            OpFunc(heal),
		types.OpApplyBuff:       OpFunc(applyBuff),
		types.OpAddBuff:         OpFunc(applyBuff),
		types.OpStatPct:         OpFunc(statPct),
		types.OpDispel:          OpFunc(dispel),
	}
}

// Run applies specs in order against targets. Self-targeted specs act on
// the owner instead. Unknown ops are ignored.
func (t Table) Run(ctx *Context, specs []types.EffectSpec, targets []*unit.Unit) []int {
	applier := ctx.Applier
	if applier == "" && ctx.Owner != nil {
		applier = ctx.Owner.ID
	}
	var spawned []int
	for _, spec := range specs {
		if !rules.IsOwnerGate(spec, applier, ctx.Event) {
			continue
		}
		op, ok := t[spec.Op]
		if !ok {
			slog.Debug("unknown effect op ignored", "op", spec.Op, "skill", ctx.SkillID)
			continue
		}
		tgts := targets
		if spec.SelfTarget {
			tgts = []*unit.Unit{ctx.Owner}
		}
		for _, target := range tgts {
			if target == nil {
				continue
			}
			spawned = append(spawned, op.Apply(spec, ctx, target)...)
		}
	}
	return spawned
}

// Number evaluates src against target; failures are 0.
func (ctx *Context) Number(src string, target *unit.Unit) float64 {
	return ctx.Formulas.Number(src, ctx.scope(target))
}

func (ctx *Context) scope(target *unit.Unit) *formula.Scope {
	b := rules.Bindings{
		Owner:      ctx.Owner,
		Target:     target,
		Event:      ctx.Event,
		Stacks:     ctx.Stacks,
		Round:      ctx.Round,
		LastDamage: ctx.lastDamage(),
	}
	if ctx.Event != nil && ctx.Settler != nil {
		b.Source = ctx.Settler.Unit(ctx.Event.Source)
	}
	if ctx.RNG != nil {
		b.Rand = ctx.RNG.Float64
	}
	return b.Scope()
}

// lastDamage is the damage dealt earlier in this list, or the settled
// amount of the damage event being handled.
func (ctx *Context) lastDamage() int {
	if ctx.LastDamage > 0 {
		return ctx.LastDamage
	}
	if ev := ctx.Event; ev != nil && ev.IsDamage() && ev.Settled && !ev.Dodged {
		return ev.LastAmount
	}
	return 0
}

func (ctx *Context) parentID() int {
	if ctx.Event == nil {
		return -1
	}
	return ctx.Event.ID
}

func (ctx *Context) spawn(ev *events.Event) *events.Event {
	ev.Round = ctx.Round
	ev.SkillID = ctx.SkillID
	return ctx.Log.Spawn(ctx.parentID(), ev)
}

func (ctx *Context) note(op types.Op, target *unit.Unit, format string, args ...any) []int {
	ev := ctx.spawn(&events.Event{
		Op:      op,
		Source:  ctx.Owner.ID,
		Target:  target.ID,
		Settled: true,
		Note:    fmt.Sprintf(format, args...),
	})
	return []int{ev.ID}
}

func damageType(spec types.EffectSpec) string {
	if spec.DamageType == "" {
		return types.DamagePhysical
	}
	return spec.DamageType
}

// damage evaluates power, jitters it, rolls crit and settles immediately so
// later effects in the list can read the result.
func damage(spec types.EffectSpec, ctx *Context, target *unit.Unit) []int {
	if !target.Alive() {
		return nil
	}
	power := ctx.Number(spec.Power, target)
	if power <= 0 {
		return ctx.note(events.OpNote, target, "%s's %s fizzles", ctx.Owner.Name, ctx.labelOr("attack"))
	}
	if spec.Variance > 0 {
		power *= ctx.RNG.Uniform(1-spec.Variance, 1+spec.Variance)
	}
	amount := max(1, int(power))

	crit := false
	if spec.CanCrit && ctx.RNG.Chance(ctx.Owner.Stats().CRIT) {
		mult := spec.CritMultiplier
		if mult <= 0 {
			mult = ctx.Owner.CritMultiplier()
		}
		amount = int(float64(amount) * mult)
		crit = true
	}

	dtype := damageType(spec)
	ev := ctx.spawn(&events.Event{
		Op:         types.OpDamage,
		Source:     ctx.Owner.ID,
		Target:     target.ID,
		Amount:     amount,
		DamageType: dtype,
		Breakdown:  map[string]int{dtype: amount},
		Crit:       crit,
		CanReflect: true,
		CanReduce:  true,
		CanDodge:   spec.CanDodge,
	})
	ctx.Settler.Settle(ev)
	ctx.LastDamage = ev.LastAmount
	ctx.Dodged = ev.Dodged
	return []int{ev.ID}
}

// inFlight returns the handled event when it is damage still awaiting
// settlement.
func (ctx *Context) inFlight() *events.Event {
	ev := ctx.Event
	if ev == nil || !ev.IsDamage() || ev.Settled || ev.Dodged {
		return nil
	}
	return ev
}

func damageReduction(spec types.EffectSpec, ctx *Context, target *unit.Unit) []int {
	ev := ctx.inFlight()
	if ev == nil || !ev.CanReduce {
		return nil
	}
	reduction := int(ctx.Number(spec.Power, target))
	if reduction <= 0 {
		return nil
	}
	before := ev.Pending()
	ev.AdjustPending(-reduction)
	return ctx.note(types.OpDamageReduction, target, "%s blocks %d damage", ctx.Owner.Name, before-ev.Pending())
}

func addDamage(spec types.EffectSpec, ctx *Context, target *unit.Unit) []int {
	ev := ctx.inFlight()
	if ev == nil {
		return nil
	}
	extra := int(ctx.Number(spec.Power, target))
	if extra <= 0 {
		return nil
	}
	ev.AdjustPending(extra)
	return ctx.note(types.OpAddDamage, target, "%s adds %d damage", ctx.Owner.Name, extra)
}

// reflectDamage sends a share of a settled hit back at its source. The
// reflected hit cannot itself be reflected and settles when drained.
func reflectDamage(spec types.EffectSpec, ctx *Context, target *unit.Unit) []int {
	ev := ctx.Event
	if ev == nil || !ev.IsDamage() || !ev.CanReflect || ev.Dodged {
		return nil
	}
	attacker := ctx.Settler.Unit(ev.Source)
	if attacker == nil || !attacker.Alive() || attacker.ID == ctx.Owner.ID {
		return nil
	}
	amount := int(ctx.Number(spec.Power, attacker))
	if amount <= 0 {
		return nil
	}
	dtype := damageType(spec)
	child := ctx.spawn(&events.Event{
		Op:         types.OpReflectDamage,
		Source:     ctx.Owner.ID,
		Target:     attacker.ID,
		Amount:     amount,
		DamageType: dtype,
		Breakdown:  map[string]int{dtype: amount},
		CanReflect: false,
		CanReduce:  true,
	})
	return []int{child.ID}
}

func leech(spec types.EffectSpec, ctx *Context, target *unit.Unit) []int {
	if ctx.Dodged || (ctx.Event != nil && ctx.Event.Dodged) {
		return nil
	}
	amount := int(ctx.Number(spec.Power, target))
	if amount <= 0 {
		return nil
	}
	ev := ctx.spawn(&events.Event{
		Op:     types.OpLeech,
		Source: ctx.Owner.ID,
		Target: ctx.Owner.ID,
		Amount: amount,
	})
	ctx.Settler.Settle(ev)
	return []int{ev.ID}
}

func heal(spec types.EffectSpec, ctx *Context, target *unit.Unit) []int {
	if !target.Alive() && !spec.AllowRevive {
		return nil
	}
	amount := int(ctx.Number(spec.Power, target))
	if amount <= 0 {
		return nil
	}
	ev := ctx.spawn(&events.Event{
		Op:          types.OpHeal,
		Source:      ctx.Owner.ID,
		Target:      target.ID,
		Amount:      amount,
		AllowRevive: spec.AllowRevive,
	})
	ctx.Settler.Settle(ev)
	return []int{ev.ID}
}

func applyBuff(spec types.EffectSpec, ctx *Context, target *unit.Unit) []int {
	if spec.CanDodge && ctx.Dodged {
		return nil
	}
	if !target.Alive() {
		return nil
	}
	def, err := ctx.Rules.Buff(spec.BuffID)
	if err != nil {
		slog.Warn("apply_buff skipped", "skill", ctx.SkillID, "err", err)
		return nil
	}
	requested := 1
	if spec.Stacks != "" {
		requested = int(ctx.Number(spec.Stacks, target))
	}
	n := target.AddBuff(def, ctx.Owner.ID, requested)
	if n <= 0 {
		return nil
	}
	ev := ctx.spawn(&events.Event{
		Op:      types.OpApplyBuff,
		Source:  ctx.Owner.ID,
		Target:  target.ID,
		Amount:  n,
		Settled: true,
		Note:    fmt.Sprintf("%s gains %s ×%d", target.Name, buffName(def), n),
	})
	return []int{ev.ID}
}

// statPct applies an ad-hoc percent modifier on one stat as a buff that
// refreshes instead of stacking.
func statPct(spec types.EffectSpec, ctx *Context, target *unit.Unit) []int {
	if spec.CanDodge && ctx.Dodged {
		return nil
	}
	if spec.Stat == "" || !target.Alive() {
		return nil
	}
	value := ctx.Number(spec.Power, target)
	if value == 0 {
		return nil
	}
	duration := spec.Duration
	if duration == 0 {
		duration = 1
	}
	def := &types.BuffDef{
		ID:          "stat_pct:" + spec.Stat,
		Name:        fmt.Sprintf("%s %+.0f%%", spec.Stat, value*100),
		Positive:    value > 0,
		Modifiers:   map[string]float64{spec.Stat + "%": value},
		Duration:    duration,
		MaxStack:    1,
		StackMode:   types.StackDuration,
		Dispellable: true,
		TurnEnd:     types.TickDelta{Duration: -1},
	}
	target.AddBuff(def, ctx.Owner.ID, 1)
	ev := ctx.spawn(&events.Event{
		Op:      types.OpApplyBuff,
		Source:  ctx.Owner.ID,
		Target:  target.ID,
		Amount:  1,
		Settled: true,
		Note:    fmt.Sprintf("%s gains %s %+.0f%%", target.Name, spec.Stat, value*100),
	})
	return []int{ev.ID}
}

func dispel(spec types.EffectSpec, ctx *Context, target *unit.Unit) []int {
	count := spec.Count
	if count <= 0 {
		count = 1
	}
	removed := target.Dispel(count, spec.Positive)
	if len(removed) == 0 {
		return nil
	}
	kind := "negative"
	if spec.Positive {
		kind = "positive"
	}
	return ctx.note(types.OpDispel, target, "%s loses %d %s effect(s): %v", target.Name, len(removed), kind, removed)
}

func (ctx *Context) labelOr(fallback string) string {
	if ctx.Label != "" {
		return ctx.Label
	}
	return fallback
}

func buffName(def *types.BuffDef) string {
	if def.Name != "" {
		return def.Name
	}
	return def.ID
}
