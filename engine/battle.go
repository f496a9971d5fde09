package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/nathoo/duelcore/engine/effects"
	"github.com/nathoo/duelcore/engine/events"
	"github.com/nathoo/duelcore/engine/resolve"
	"github.com/nathoo/duelcore/engine/skill"
	"github.com/nathoo/duelcore/engine/state"
	"github.com/nathoo/duelcore/engine/unit"
	"github.com/nathoo/duelcore/types"
)

// Phase is the battle state.
type Phase int

const (
	NotStarted Phase = iota
	Active
	Ended
)

func (p Phase) String() string {
	switch p {
	case NotStarted:
		return "not_started"
	case Active:
		return "active"
	default:
		return "ended"
	}
}

// Policy decides who acts in a round and in which order.
type Policy string

const (
	// PolicyAlternate: every unit acts each round; the first mover is
	// decided by agility once and the order rotates every round.
	PolicyAlternate Policy = "alternate"
	// PolicyInitiative: every unit acts each round in agility order.
	PolicyInitiative Policy = "initiative"
	// PolicyList: every unit acts each round in the order given.
	PolicyList Policy = "list"
)

// TimeoutRule decides the outcome when the round limit is reached.
type TimeoutRule string

const (
	TimeoutDraw      TimeoutRule = "draw"
	TimeoutHighestHP TimeoutRule = "highest_hp"
)

// Defaults.
const (
	DefaultMaxTurns           = 30
	DefaultMaxEventsPerAction = 20
)

// basicAttack is the action taken when no active skill answers an attack.
var basicAttack = types.EffectSpec{
	Op:       types.OpDamage,
	Power:    "ATK",
	CanCrit:  true,
	CanDodge: true,
}

// Options control one fight.
type Options struct {
	MaxTurns           int
	Seed               int64
	Verbosity          Verbosity
	Policy             Policy
	Timeout            TimeoutRule
	MaxEventsPerAction int
	Regen              map[string]int // resource regained per round
	Tuning             *unit.Tuning   // nil keeps each unit's own
	Logger             *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.MaxTurns <= 0 {
		o.MaxTurns = DefaultMaxTurns
	}
	if o.MaxEventsPerAction <= 0 {
		o.MaxEventsPerAction = DefaultMaxEventsPerAction
	}
	if o.Policy == "" {
		o.Policy = PolicyAlternate
	}
	if o.Timeout == "" {
		o.Timeout = TimeoutDraw
	}
	if o.Verbosity == "" {
		o.Verbosity = VerbositySummary
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Battle is one fight between two or more units. It owns its bus, event
// log and random source; nothing is shared with other fights.
type Battle struct {
	units  []*unit.Unit
	table  *state.RuleTable
	opts   Options
	rng    *RNG
	bus    *events.Bus
	log    *events.Log
	ops    effects.Table
	env    *skill.Env
	logger *slog.Logger

	phase     Phase
	round     int
	order     []*unit.Unit
	killed    map[int]bool
	dealt     map[string]int
	truncated int
	blocked   int
	calcDepth int
	standings []string // per round, after the round
	timedOut  bool
	winner    *unit.Unit
}

// NewBattle validates the units against table and wires a fight. A unit
// whose skills reference a missing definition or an unknown target
// selector is a configuration error and no fight is created.
func NewBattle(table *state.RuleTable, units []*unit.Unit, opts Options) (*Battle, error) {
	if table == nil {
		return nil, errors.New("battle needs a rule table")
	}
	if len(units) < 2 {
		return nil, fmt.Errorf("battle needs at least two units, got %d", len(units))
	}
	if err := checkUnits(table, units); err != nil {
		return nil, err
	}

	opts = opts.withDefaults()
	b := &Battle{
		units:  units,
		table:  table,
		opts:   opts,
		rng:    NewRNG(opts.Seed),
		bus:    events.NewBus(table.EventLimits),
		log:    events.NewLog(),
		ops:    effects.Default(),
		logger: opts.Logger,
		killed: map[int]bool{},
		dealt:  map[string]int{},
	}
	if opts.Tuning != nil {
		for _, u := range units {
			u.SetTuning(*opts.Tuning)
		}
	}
	b.bus.Logger = b.logger
	b.bus.OnLimit = b.onLimit
	b.env = &skill.Env{
		Log:      b.log,
		Settler:  b,
		Rules:    table,
		Formulas: table.Formulas(),
		RNG:      b.rng,
		Ops:      b.ops,
		Units:    units,
		Round:    func() int { return b.round },
		Logger:   b.logger,
	}
	return b, nil
}

func checkUnits(table *state.RuleTable, units []*unit.Unit) error {
	var errs []error
	seen := map[string]bool{}
	for _, u := range units {
		if seen[u.ID] {
			errs = append(errs, fmt.Errorf("duplicate unit id %q", u.ID))
		}
		seen[u.ID] = true
		for _, slot := range u.Skills() {
			if slot.Def == nil {
				errs = append(errs, &state.ConfigError{Kind: "skill", ID: "<nil>", RefBy: "unit " + u.ID})
				continue
			}
			if err := table.CheckSkillRefs(slot.Def); err != nil {
				errs = append(errs, err)
			}
			if slot.Def.Target != "" && !resolve.Known(slot.Def.Target) {
				errs = append(errs, fmt.Errorf("skill %s: %w", slot.Def.ID,
					&resolve.UnknownSelectorError{Selector: slot.Def.Target}))
			}
		}
	}
	return errors.Join(errs...)
}

// Phase returns the current state.
func (b *Battle) Phase() Phase { return b.phase }

// Round returns the current round number, 0 before the first round.
func (b *Battle) Round() int { return b.round }

// Log returns the event arena.
func (b *Battle) Log() *events.Log { return b.log }

// Bus returns the fight's event bus.
func (b *Battle) Bus() *events.Bus { return b.bus }

// Units returns the fighting units.
func (b *Battle) Units() []*unit.Unit { return b.units }

// Unit finds a unit by id.
func (b *Battle) Unit(id string) *unit.Unit { return resolve.ByID(b.units, id) }

// Run plays the fight to the end.
func (b *Battle) Run() {
	b.Start()
	for b.phase == Active {
		b.PlayRound()
	}
}

// Start registers every subscriber and opens the fight.
func (b *Battle) Start() {
	if b.phase != NotStarted {
		return
	}
	for _, u := range b.units {
		skill.Register(b.bus, u, b.env)
	}
	b.phase = Active
	b.logger.Debug("battle start", "units", len(b.units), "seed", b.rng.Seed(), "policy", b.opts.Policy)
	for _, u := range b.units {
		b.dispatch(&events.Event{Type: types.EventBattleStart, Op: events.OpNote, Source: u.ID})
	}
	if b.decided() {
		b.end()
	}
}

// PlayRound runs one full round: upkeep, turn start, one action per
// living unit, turn end and the end check.
func (b *Battle) PlayRound() {
	if b.phase != Active {
		return
	}
	b.round++
	if b.round > 1 {
		b.upkeep()
	}
	b.bus.ResetCounts()

	for _, u := range b.living() {
		b.dispatch(&events.Event{Type: types.EventTurnStart, Op: events.OpNote, Source: u.ID})
	}
	if b.decided() {
		b.standings = append(b.standings, b.Standing())
		b.end()
		return
	}

	for _, actor := range b.actionOrder() {
		if !actor.Alive() {
			continue
		}
		defender := b.pickDefender(actor)
		if defender == nil {
			break
		}
		b.act(actor, defender)
		if b.decided() {
			break
		}
	}

	for _, u := range b.living() {
		b.dispatch(&events.Event{Type: types.EventTurnEnd, Op: events.OpNote, Source: u.ID})
	}
	b.standings = append(b.standings, b.Standing())

	switch {
	case b.decided():
		b.end()
	case b.round >= b.opts.MaxTurns:
		b.timedOut = true
		b.end()
	}
}

func (b *Battle) upkeep() {
	for _, u := range b.units {
		if !u.Alive() {
			continue
		}
		for _, id := range u.UpkeepBuffs() {
			b.narrate(u.ID, "%s's %s wears off", u.Name, b.buffName(id))
		}
		u.UpdateSkillCooldowns()
		for res, n := range b.opts.Regen {
			u.AddResource(res, n)
		}
	}
}

func (b *Battle) buffName(id string) string {
	if def, ok := b.table.Buffs[id]; ok && def.Name != "" {
		return def.Name
	}
	return id
}

// act runs one unit's action: the attack event lets an active skill take
// the action, otherwise the unit makes a basic attack. A unit whose attack
// skills are exhausted for the round still swings.
func (b *Battle) act(actor, defender *unit.Unit) {
	root := b.log.Root(&events.Event{
		Type:   types.EventAttack,
		Op:     events.OpAttack,
		Round:  b.round,
		Source: actor.ID,
		Target: defender.ID,
	})
	if b.bus.Publish(root) == events.Halted && b.bus.Exhausted(types.EventAttack, actor.ID) {
		b.logger.Debug("attack skills exhausted", "unit", actor.ID, "round", b.round)
	}
	if !root.ActionTaken && actor.Alive() && defender.Alive() {
		ctx := &effects.Context{
			Owner:    actor,
			Event:    root,
			Log:      b.log,
			Settler:  b,
			Rules:    b.table,
			Formulas: b.table.Formulas(),
			RNG:      b.rng,
			Label:    "attack",
			Round:    b.round,
		}
		b.ops.Run(ctx, []types.EffectSpec{basicAttack}, []*unit.Unit{defender})
	}
	b.drain()
}

// dispatch publishes a new root event and drains what it caused.
func (b *Battle) dispatch(ev *events.Event) {
	ev.Round = b.round
	b.log.Root(ev)
	b.bus.Publish(ev)
	b.drain()
}

// drain processes spawned events first in, first out. At most
// MaxEventsPerAction events are processed; the rest are dropped unsettled.
func (b *Battle) drain() {
	queue := b.log.TakeFresh()
	processed := 0
	for len(queue) > 0 {
		if processed >= b.opts.MaxEventsPerAction {
			dropped := len(queue) + len(b.log.TakeFresh())
			b.truncated += dropped
			b.logger.Info("event chain truncated", "round", b.round, "dropped", dropped)
			b.narrate("", "the chain of events fizzles out (%d dropped)", dropped)
			return
		}
		ev := b.log.Get(queue[0])
		queue = queue[1:]
		processed++
		b.process(ev)
		queue = append(queue, b.log.TakeFresh()...)
	}
}

// process settles one dequeued event and publishes what follows from it.
func (b *Battle) process(ev *events.Event) {
	switch {
	case ev.IsDamage():
		b.Settle(ev)
		if ev.Dodged {
			b.publishAs(ev, types.EventDodge)
			return
		}
		if ev.LastAmount == 0 && !b.killed[ev.ID] {
			return
		}
		b.publishAs(ev, types.EventReceiveDamage)
		b.publishAs(ev, types.EventDealDamage)
		if b.killed[ev.ID] {
			b.log.Spawn(ev.ID, &events.Event{
				Type:    types.EventDeath,
				Op:      events.OpDeath,
				Round:   b.round,
				Source:  ev.Source,
				Target:  ev.Target,
				Settled: true,
			})
		}
	case ev.IsHeal():
		b.Settle(ev)
		if ev.LastAmount > 0 {
			b.publishAs(ev, types.EventHeal)
		}
	case ev.Op == types.OpApplyBuff:
		b.publishAs(ev, types.EventBuffApply)
	case ev.Op == events.OpCast:
		b.publishAs(ev, types.EventCast)
	case ev.Op == events.OpDeath:
		b.logger.Debug("unit fell", "unit", ev.Target, "round", b.round)
		b.publishAs(ev, types.EventDeath)
	}
}

func (b *Battle) publishAs(ev *events.Event, eventType string) {
	ev.Type = eventType
	b.bus.Publish(ev)
}

// Settle resolves a damage or heal event against its target. Damage is
// checked for a dodge first; a dodged hit settles at 0 and can no longer be
// reduced or reflected. Otherwise damage_calc is published so reductions
// and additions adjust the pending amount before mitigation. Damage raised
// by a damage_calc handler is left unsettled for the action queue, so such
// chains stay under the per-action cap.
func (b *Battle) Settle(ev *events.Event) {
	if ev.Settled || (ev.IsDamage() && b.calcDepth > 0) {
		return
	}
	defer func() { ev.Settled = true }()

	target := b.Unit(ev.Target)
	if target == nil {
		return
	}
	switch {
	case ev.IsDamage():
		if !target.Alive() {
			return
		}
		if ev.CanDodge && target.CheckDodge(b.rng) {
			ev.Dodged = true
			ev.CanReduce = false
			ev.CanReflect = false
			ev.LastAmount = 0
			return
		}
		if ev.CanReduce {
			b.calcDepth++
			b.publishAs(ev, types.EventDamageCalc)
			b.calcDepth--
		}
		ev.LastAmount = target.TakeDamage(ev.Breakdown)
		b.dealt[ev.Source] += ev.LastAmount
		if !target.Alive() {
			b.killed[ev.ID] = true
		}
	case ev.IsHeal():
		ev.LastAmount = target.Heal(ev.Amount, ev.AllowRevive)
	}
}

func (b *Battle) onLimit(ev *events.Event, limit int) {
	b.blocked++
	name := ev.Source
	if u := b.Unit(ev.Source); u != nil {
		name = u.Name
	}
	b.log.Spawn(ev.ID, &events.Event{
		Op:      events.OpNote,
		Round:   b.round,
		Source:  ev.Source,
		Settled: true,
		Note:    fmt.Sprintf("%s has exhausted %s this round", name, ev.Type),
	})
}

// narrate records a root note.
func (b *Battle) narrate(source, format string, args ...any) {
	b.log.Root(&events.Event{
		Op:      events.OpNote,
		Round:   b.round,
		Source:  source,
		Settled: true,
		Note:    fmt.Sprintf(format, args...),
	})
}

func (b *Battle) living() []*unit.Unit {
	var out []*unit.Unit
	for _, u := range b.units {
		if u.Alive() {
			out = append(out, u)
		}
	}
	return out
}

// decided reports whether at most one side still has a living unit.
func (b *Battle) decided() bool {
	sides := map[types.Side]bool{}
	for _, u := range b.living() {
		sides[u.Side] = true
	}
	return len(sides) <= 1
}

// actionOrder returns the units in the order they act this round.
func (b *Battle) actionOrder() []*unit.Unit {
	switch b.opts.Policy {
	case PolicyList:
		return b.units
	case PolicyInitiative:
		return b.initiative(b.living())
	default:
		if b.order == nil {
			b.order = b.initiative(b.units)
		} else {
			b.order = append(b.order[1:], b.order[0])
		}
		return b.order
	}
}

// initiative sorts units by effective agility, fastest first. Exact ties
// are broken by a random draw.
func (b *Battle) initiative(units []*unit.Unit) []*unit.Unit {
	out := append([]*unit.Unit(nil), units...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Stats().AGI > out[j].Stats().AGI
	})
	for i := 0; i < len(out); {
		j := i + 1
		for j < len(out) && out[j].Stats().AGI == out[i].Stats().AGI {
			j++
		}
		tied := out[i:j]
		for k := len(tied) - 1; k > 0; k-- {
			n := b.rng.Intn(k + 1)
			tied[k], tied[n] = tied[n], tied[k]
		}
		i = j
	}
	return out
}

// pickDefender returns the actor's opponent: the only living enemy, or a
// random one when there are several.
func (b *Battle) pickDefender(actor *unit.Unit) *unit.Unit {
	var enemies []*unit.Unit
	for _, u := range b.living() {
		if u.Side != actor.Side {
			enemies = append(enemies, u)
		}
	}
	switch len(enemies) {
	case 0:
		return nil
	case 1:
		return enemies[0]
	default:
		return enemies[b.rng.Intn(len(enemies))]
	}
}

func (b *Battle) end() {
	if b.phase == Ended {
		return
	}
	b.winner = b.decideWinner()
	b.phase = Ended
	src := ""
	if b.winner != nil {
		src = b.winner.ID
	}
	ev := &events.Event{Type: types.EventBattleEnd, Op: events.OpNote, Source: src, Round: b.round, Settled: true}
	b.log.Root(ev)
	b.bus.Publish(ev)
	b.log.TakeFresh()
	b.logger.Debug("battle end", "rounds", b.round, "winner", src, "timeout", b.timedOut)
}

// decideWinner picks the strongest survivor of the only surviving side.
// With no survivors, or at timeout under the draw rule, there is none.
func (b *Battle) decideWinner() *unit.Unit {
	alive := b.living()
	if len(alive) == 0 {
		return nil
	}
	if b.timedOut && !b.decided() {
		if b.opts.Timeout != TimeoutHighestHP {
			return nil
		}
	}
	best := alive[0]
	tie := false
	for _, u := range alive[1:] {
		switch {
		case u.HP() > best.HP():
			best, tie = u, false
		case u.HP() == best.HP() && u.Side != best.Side:
			tie = true
		}
	}
	if tie {
		return nil
	}
	return best
}
