package rules

import (
	"github.com/nathoo/duelcore/engine/events"
	"github.com/nathoo/duelcore/engine/formula"
	"github.com/nathoo/duelcore/types"
)

// DefaultActivePriority orders active skills ahead of passives on attack.
const DefaultActivePriority = 10

// MatchesRole checks the owner's position on the event against role.
func MatchesRole(role types.Role, ownerID string, ev *events.Event) bool {
	switch role {
	case types.RoleSource:
		return ev.Source == ownerID
	case types.RoleTarget:
		return ev.Target == ownerID
	case types.RoleAny:
		return true
	default:
		return ev.Source == ownerID || ev.Target == ownerID
	}
}

// Matches reports whether trigger tr applies to ev for the given owner:
// same event type, role satisfied, all conditions true.
func Matches(tr types.TriggerDef, ownerID string, ev *events.Event,
	fe *formula.Evaluator, s *formula.Scope) bool {
	if tr.Event != ev.Type {
		return false
	}
	if !MatchesRole(tr.Role, ownerID, ev) {
		return false
	}
	return EvalConditions(tr.Conditions, fe, s)
}

// Triggers returns the skill's declared triggers, or the defaults for its
// kind when none are declared: actives answer their owner's attack, auras
// fire once at battle start. Passives without triggers never fire.
func Triggers(def *types.SkillDef) []types.TriggerDef {
	if len(def.Triggers) > 0 {
		return def.Triggers
	}
	switch def.Kind {
	case types.SkillActive:
		return []types.TriggerDef{{
			Event:    types.EventAttack,
			Priority: DefaultActivePriority,
			Role:     types.RoleSource,
		}}
	case types.SkillAura:
		return []types.TriggerDef{{
			Event: types.EventBattleStart,
			Role:  types.RoleSource,
		}}
	}
	return nil
}

// IsOwnerGate applies an effect's is_owner flag: when set, the effect only
// runs if the owner's involvement as event source equals the flag.
func IsOwnerGate(spec types.EffectSpec, ownerID string, ev *events.Event) bool {
	if spec.IsOwner == nil || ev == nil {
		return true
	}
	return (ev.Source == ownerID) == *spec.IsOwner
}
