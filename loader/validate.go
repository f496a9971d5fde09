package loader

import (
	"fmt"
	"strings"

	"github.com/nathoo/duelcore/engine/formula"
	"github.com/nathoo/duelcore/engine/resolve"
	"github.com/nathoo/duelcore/engine/state"
	"github.com/nathoo/duelcore/types"
)

// ValidationError collects all validation errors and warnings.
type ValidationError struct {
	Errors   []string
	Warnings []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed with %d error(s):\n  %s",
		len(e.Errors), strings.Join(e.Errors, "\n  "))
}

func (e *ValidationError) errorf(format string, args ...any) {
	e.Errors = append(e.Errors, fmt.Sprintf(format, args...))
}

func (e *ValidationError) warnf(format string, args ...any) {
	e.Warnings = append(e.Warnings, fmt.Sprintf(format, args...))
}

// Known effect ops.
var validOps = map[types.Op]bool{
	types.OpDamage:          true,
	types.OpDamageReduction: true,
	types.OpAddDamage:       true,
	types.OpReflectDamage:   true,
	types.OpLeech:           true,
	types.OpHeal:            true,
	types.OpApplyBuff:       true,
	types.OpAddBuff:         true,
	types.OpStatPct:         true,
	types.OpDispel:          true,
}

// Ops that do nothing without a power formula.
var needsPower = map[types.Op]bool{
	types.OpDamage:          true,
	types.OpDamageReduction: true,
	types.OpAddDamage:       true,
	types.OpReflectDamage:   true,
	types.OpLeech:           true,
	types.OpHeal:            true,
	types.OpStatPct:         true,
}

// Event types the battle publishes.
var knownEvents = map[string]bool{
	types.EventBattleStart:   true,
	types.EventTurnStart:     true,
	types.EventAttack:        true,
	types.EventCast:          true,
	types.EventDamageCalc:    true,
	types.EventReceiveDamage: true,
	types.EventDealDamage:    true,
	types.EventDodge:         true,
	types.EventHeal:          true,
	types.EventBuffApply:     true,
	types.EventTurnEnd:       true,
	types.EventDeath:         true,
	types.EventBattleEnd:     true,
}

var validKinds = map[types.SkillKind]bool{
	types.SkillActive:  true,
	types.SkillPassive: true,
	types.SkillAura:    true,
}

var validRoles = map[types.Role]bool{
	"":               true,
	types.RoleEither: true,
	types.RoleSource: true,
	types.RoleTarget: true,
	types.RoleAny:    true,
}

var validStackModes = map[types.StackMode]bool{
	types.StackNone:      true,
	types.StackDuration:  true,
	types.StackIntensity: true,
	types.StackBoth:      true,
}

var validSides = map[types.Side]bool{
	"":                true,
	types.SideMonster: true,
	types.SideBoss:    true,
}

// validate builds the rule table from b and checks ids, references,
// enumerations and every formula.
func validate(b *bundle) (*state.RuleTable, *ValidationError) {
	ve := &ValidationError{}
	t := state.NewRuleTable()

	origins := map[string]string{}
	claim := func(kind, id, origin string) bool {
		if id == "" {
			ve.errorf("%s in %s has no id", kind, origin)
			return false
		}
		key := kind + ":" + id
		if prev, ok := origins[key]; ok {
			ve.errorf("duplicate %s id %q (%s and %s)", kind, id, prev, origin)
			return false
		}
		origins[key] = origin
		return true
	}

	for _, e := range b.skills {
		if claim("skill", e.def.ID, e.origin) {
			t.Skills[e.def.ID] = e.def
		}
	}
	for _, e := range b.buffs {
		if claim("buff", e.def.ID, e.origin) {
			t.Buffs[e.def.ID] = e.def
		}
	}
	for _, e := range b.monsters {
		if claim("monster", e.def.ID, e.origin) {
			t.Monsters[e.def.ID] = e.def
		}
	}
	for _, e := range b.players {
		if claim("player", e.def.ID, e.origin) {
			t.Players[e.def.ID] = e.def
		}
	}
	for _, e := range b.equip {
		t.EquipRules = append(t.EquipRules, e.def)
	}
	for _, e := range b.limits {
		if !claim("event limit", e.def.ID, e.origin) {
			continue
		}
		switch {
		case e.def.EventType == "":
			ve.errorf("event limit %q has no event type", e.def.ID)
		case e.def.MaxCount < 0:
			ve.errorf("event limit %q needs a max_count of 0 or more", e.def.ID)
		default:
			if _, dup := t.EventLimits[e.def.EventType]; dup {
				ve.errorf("event type %q is limited twice", e.def.EventType)
			}
			t.EventLimits[e.def.EventType] = e.def.MaxCount
		}
	}

	for _, id := range state.SortedIDs(t.Skills) {
		validateSkill(t.Skills[id], t, ve)
	}
	for _, id := range state.SortedIDs(t.Buffs) {
		validateBuff(t.Buffs[id], t, ve)
	}
	for _, id := range state.SortedIDs(t.Monsters) {
		m := t.Monsters[id]
		if m.MaxHP <= 0 {
			ve.errorf("monster %q needs MAX_HP above 0", id)
		}
		if !validSides[m.Tag] {
			ve.errorf("monster %q has unknown tag %q", id, m.Tag)
		}
		validateSkillRefs(m.Skills, "monster "+id, t, ve)
	}
	for _, id := range state.SortedIDs(t.Players) {
		p := t.Players[id]
		for attr, v := range p.Points {
			if v < 0 {
				ve.errorf("player %q has negative %s points", id, attr)
			}
		}
		validateSkillRefs(p.Skills, "player "+id, t, ve)
	}
	for i, r := range t.EquipRules {
		if len(r.Give) == 0 {
			ve.warnf("equip rule %d gives nothing", i+1)
		}
		validateSkillRefs(r.Give, fmt.Sprintf("equip rule %d", i+1), t, ve)
	}

	// Compile once for the fights; syntax was already reported per owner.
	t.Compile()
	return t, ve
}

func validateSkill(s *types.SkillDef, t *state.RuleTable, ve *ValidationError) {
	owner := "skill " + s.ID
	if !validKinds[s.Kind] {
		ve.errorf("%s has unknown kind %q", owner, s.Kind)
	}
	if s.Target != "" && !resolve.Known(s.Target) {
		ve.errorf("%s: %v", owner, &resolve.UnknownSelectorError{Selector: s.Target})
	}
	if s.Cooldown < 0 {
		ve.errorf("%s has negative cooldown", owner)
	}
	if s.Kind == types.SkillPassive && len(s.Triggers) == 0 {
		ve.warnf("%s is passive with no triggers and never fires", owner)
	}
	if len(s.Effects) == 0 {
		ve.warnf("%s has no effects", owner)
	}
	validateTriggers(s.Triggers, owner, t, ve)
	validateEffects(s.Effects, owner, t, ve)
}

func validateBuff(b *types.BuffDef, t *state.RuleTable, ve *ValidationError) {
	owner := "buff " + b.ID
	if !validStackModes[b.StackMode] {
		ve.errorf("%s has unknown stack mode %q", owner, b.StackMode)
	}
	if b.Duration == 0 {
		ve.warnf("%s has duration 0 and expires at the first upkeep", owner)
	}
	for key := range b.Modifiers {
		if !validModifier(key) {
			ve.errorf("%s has unknown modifier %q", owner, key)
		}
	}
	if len(b.Triggers) > 0 && len(b.Effects) == 0 {
		ve.warnf("%s has triggers but no effects", owner)
	}
	validateTriggers(b.Triggers, owner, t, ve)
	validateEffects(b.Effects, owner, t, ve)
}

func validateTriggers(trs []types.TriggerDef, owner string, t *state.RuleTable, ve *ValidationError) {
	for _, tr := range trs {
		if tr.Event == "" {
			ve.errorf("%s has a trigger with no event", owner)
			continue
		}
		if !knownEvents[tr.Event] {
			if _, limited := t.EventLimits[tr.Event]; !limited {
				ve.warnf("%s listens for %q, which the battle never publishes", owner, tr.Event)
			}
		}
		if !validRoles[tr.Role] {
			ve.errorf("%s has unknown trigger role %q", owner, tr.Role)
		}
		for _, c := range tr.Conditions {
			validateFormula(c, owner, ve)
		}
	}
}

func validateEffects(effs []types.EffectSpec, owner string, t *state.RuleTable, ve *ValidationError) {
	for i, e := range effs {
		where := fmt.Sprintf("%s effect %d", owner, i+1)
		if !validOps[e.Op] {
			ve.errorf("%s has unknown op %q", where, e.Op)
			continue
		}
		if needsPower[e.Op] && e.Power == "" {
			ve.errorf("%s (%s) needs a power formula", where, e.Op)
		}
		if e.Op == types.OpStatPct && !validStat(e.Stat) {
			ve.errorf("%s has unknown stat %q", where, e.Stat)
		}
		if e.Op == types.OpApplyBuff || e.Op == types.OpAddBuff {
			if e.BuffID == "" {
				ve.errorf("%s (%s) needs a buff id", where, e.Op)
			} else if _, ok := t.Buffs[e.BuffID]; !ok {
				ve.errorf("%v", &state.ConfigError{Kind: "buff", ID: e.BuffID, RefBy: owner})
			}
		}
		if e.Variance < 0 || e.Variance >= 1 {
			ve.errorf("%s variance %.2f must be in [0, 1)", where, e.Variance)
		}
		validateFormula(e.Power, where, ve)
		validateFormula(e.Stacks, where, ve)
	}
}

// validateFormula reports malformed formulas and variables outside the
// closed set.
func validateFormula(src, owner string, ve *ValidationError) {
	if src == "" {
		return
	}
	expr, err := formula.Parse(src)
	if err != nil {
		ve.errorf("%s: %v", owner, err)
		return
	}
	for _, v := range expr.Vars() {
		if !formula.KnownVariable(v) {
			ve.errorf("%s: formula %q uses unknown variable %q", owner, src, v)
		}
	}
}

func validateSkillRefs(ids []string, owner string, t *state.RuleTable, ve *ValidationError) {
	for _, id := range ids {
		if _, ok := t.Skills[id]; !ok {
			ve.errorf("%v", &state.ConfigError{Kind: "skill", ID: id, RefBy: owner})
		}
	}
}

func validStat(name string) bool {
	for _, s := range formula.StatNames {
		if s == name && s != "HP" {
			return true
		}
	}
	return false
}

// validModifier accepts flat "ATK" and percent "ATK%" keys.
func validModifier(key string) bool {
	name, _ := strings.CutSuffix(key, "%")
	return validStat(strings.ToUpper(name))
}
