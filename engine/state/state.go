// Package state holds the immutable rule table fights are resolved against,
// with lookups that fail with a typed error when a definition is missing.
package state

import (
	"errors"
	"fmt"
	"sort"

	"github.com/nathoo/duelcore/engine/formula"
	"github.com/nathoo/duelcore/types"
)

// ErrMissingDefinition matches every ConfigError via errors.Is.
var ErrMissingDefinition = errors.New("missing definition")

// ConfigError reports a definition id that the rule table does not contain.
type ConfigError struct {
	Kind  string // "skill", "buff", "monster", "player"
	ID    string
	RefBy string // optional: the definition that referenced it
}

func (e *ConfigError) Error() string {
	if e.RefBy != "" {
		return fmt.Sprintf("%s %q referenced by %s is not defined", e.Kind, e.ID, e.RefBy)
	}
	return fmt.Sprintf("%s %q is not defined", e.Kind, e.ID)
}

// Unwrap lets errors.Is match ErrMissingDefinition.
func (e *ConfigError) Unwrap() error { return ErrMissingDefinition }

// RuleTable holds every definition a fight may reference. It is built once
// by the loader, compiled, and then only read; fights share it freely.
type RuleTable struct {
	Skills      map[string]*types.SkillDef
	Buffs       map[string]*types.BuffDef
	Monsters    map[string]*types.MonsterDef
	Players     map[string]*types.PlayerProfile
	EquipRules  []types.EquipRule
	EventLimits map[string]int

	formulas *formula.Evaluator
}

// NewRuleTable returns an empty table.
func NewRuleTable() *RuleTable {
	return &RuleTable{
		Skills:      map[string]*types.SkillDef{},
		Buffs:       map[string]*types.BuffDef{},
		Monsters:    map[string]*types.MonsterDef{},
		Players:     map[string]*types.PlayerProfile{},
		EventLimits: map[string]int{},
	}
}

// Compile parses every formula in the table once. Malformed formulas are
// returned and evaluate to a neutral value at fight time.
func (t *RuleTable) Compile() []error {
	ev, errs := formula.NewEvaluator(t.FormulaSources())
	t.formulas = ev
	return errs
}

// Formulas returns the compiled evaluator. An uncompiled table parses
// formulas on demand.
func (t *RuleTable) Formulas() *formula.Evaluator {
	return t.formulas
}

// FormulaSources lists every distinct formula in the table, sorted.
func (t *RuleTable) FormulaSources() []string {
	seen := map[string]bool{}
	addTriggers := func(trs []types.TriggerDef) {
		for _, tr := range trs {
			for _, c := range tr.Conditions {
				seen[c] = true
			}
		}
	}
	addEffects := func(effs []types.EffectSpec) {
		for _, e := range effs {
			seen[e.Power] = true
			seen[e.Stacks] = true
		}
	}
	for _, s := range t.Skills {
		addTriggers(s.Triggers)
		addEffects(s.Effects)
	}
	for _, b := range t.Buffs {
		addTriggers(b.Triggers)
		addEffects(b.Effects)
	}
	delete(seen, "")
	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Skill returns the skill definition for id.
func (t *RuleTable) Skill(id string) (*types.SkillDef, error) {
	if s, ok := t.Skills[id]; ok {
		return s, nil
	}
	return nil, &ConfigError{Kind: "skill", ID: id}
}

// Buff returns the buff definition for id.
func (t *RuleTable) Buff(id string) (*types.BuffDef, error) {
	if b, ok := t.Buffs[id]; ok {
		return b, nil
	}
	return nil, &ConfigError{Kind: "buff", ID: id}
}

// Monster returns the monster definition for id.
func (t *RuleTable) Monster(id string) (*types.MonsterDef, error) {
	if m, ok := t.Monsters[id]; ok {
		return m, nil
	}
	return nil, &ConfigError{Kind: "monster", ID: id}
}

// Player returns the player profile for id.
func (t *RuleTable) Player(id string) (*types.PlayerProfile, error) {
	if p, ok := t.Players[id]; ok {
		return p, nil
	}
	return nil, &ConfigError{Kind: "player", ID: id}
}

// CheckSkillRefs verifies that every buff referenced by a skill's effects
// exists. Missing references are reported as ConfigErrors.
func (t *RuleTable) CheckSkillRefs(skill *types.SkillDef) error {
	var errs []error
	check := func(effs []types.EffectSpec) {
		for _, e := range effs {
			switch e.Op {
			case types.OpApplyBuff, types.OpAddBuff:
				if _, ok := t.Buffs[e.BuffID]; !ok {
					errs = append(errs, &ConfigError{Kind: "buff", ID: e.BuffID, RefBy: "skill " + skill.ID})
				}
			}
		}
	}
	check(skill.Effects)
	return errors.Join(errs...)
}

// SortedIDs returns the keys of a definition map in sorted order.
func SortedIDs[V any](m map[string]V) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
