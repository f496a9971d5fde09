package loader

import (
	"strings"
	"testing"

	"github.com/nathoo/duelcore/types"
)

// validBundle returns a small bundle that passes validation.
func validBundle() *bundle {
	return &bundle{
		skills: []entry[*types.SkillDef]{
			{&types.SkillDef{
				ID: "STRIKE", Kind: types.SkillActive, Cooldown: 2,
				Effects: []types.EffectSpec{
					{Op: types.OpDamage, Power: "ATK * 1.6", CanDodge: true},
					{Op: types.OpApplyBuff, BuffID: "haste", SelfTarget: true},
				},
			}, "skills.lua"},
		},
		buffs: []entry[*types.BuffDef]{
			{&types.BuffDef{
				ID: "haste", Duration: 2, MaxStack: 1, StackMode: types.StackDuration,
				Modifiers: map[string]float64{"AGI%": 0.25},
			}, "buffs.yaml"},
		},
		monsters: []entry[*types.MonsterDef]{
			{&types.MonsterDef{ID: "wolf", MaxHP: 100, Skills: []string{"STRIKE"}}, "monsters.yaml"},
		},
	}
}

func TestValidate_ValidBundle(t *testing.T) {
	table, ve := validate(validBundle())
	if len(ve.Errors) > 0 {
		t.Fatalf("expected no errors, got: %v", ve)
	}
	if table.Skills["STRIKE"] == nil || table.Buffs["haste"] == nil || table.Monsters["wolf"] == nil {
		t.Error("table is missing definitions")
	}
	if table.Formulas() == nil {
		t.Error("formulas not compiled")
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(b *bundle)
		want   string
	}{
		{"duplicate skill", func(b *bundle) {
			b.skills = append(b.skills, entry[*types.SkillDef]{&types.SkillDef{ID: "STRIKE", Kind: types.SkillActive}, "extra.yaml"})
		}, `duplicate skill id "STRIKE" (skills.lua and extra.yaml)`},
		{"empty id", func(b *bundle) {
			b.buffs = append(b.buffs, entry[*types.BuffDef]{&types.BuffDef{StackMode: types.StackNone}, "buffs.yaml"})
		}, "buff in buffs.yaml has no id"},
		{"unknown kind", func(b *bundle) {
			b.skills[0].def.Kind = "ultimate"
		}, `unknown kind "ultimate"`},
		{"unknown selector", func(b *bundle) {
			b.skills[0].def.Target = "everyone"
		}, "everyone"},
		{"unknown op", func(b *bundle) {
			b.skills[0].def.Effects[0].Op = "explode"
		}, `unknown op "explode"`},
		{"missing power", func(b *bundle) {
			b.skills[0].def.Effects[0].Power = ""
		}, "needs a power formula"},
		{"missing buff", func(b *bundle) {
			b.skills[0].def.Effects[1].BuffID = "slow"
		}, `buff "slow" referenced by skill STRIKE is not defined`},
		{"formula syntax", func(b *bundle) {
			b.skills[0].def.Effects[0].Power = "ATK * (1.6"
		}, "skill STRIKE effect 1"},
		{"unknown variable", func(b *bundle) {
			b.skills[0].def.Effects[0].Power = "LUCK * 2"
		}, `unknown variable "LUCK"`},
		{"bad condition", func(b *bundle) {
			b.skills[0].def.Triggers = []types.TriggerDef{{Event: types.EventAttack, Conditions: []string{"HP <"}}}
		}, "skill STRIKE"},
		{"bad role", func(b *bundle) {
			b.skills[0].def.Triggers = []types.TriggerDef{{Event: types.EventAttack, Role: "bystander"}}
		}, `unknown trigger role "bystander"`},
		{"bad stack mode", func(b *bundle) {
			b.buffs[0].def.StackMode = "FOREVER"
		}, `unknown stack mode "FOREVER"`},
		{"bad modifier", func(b *bundle) {
			b.buffs[0].def.Modifiers["SPEED%"] = 0.1
		}, `unknown modifier "SPEED%"`},
		{"bad stat_pct stat", func(b *bundle) {
			b.skills[0].def.Effects[0] = types.EffectSpec{Op: types.OpStatPct, Stat: "HP", Power: "0.1"}
		}, `unknown stat "HP"`},
		{"monster missing skill", func(b *bundle) {
			b.monsters[0].def.Skills = []string{"BITE"}
		}, `skill "BITE" referenced by monster wolf is not defined`},
		{"monster without health", func(b *bundle) {
			b.monsters[0].def.MaxHP = 0
		}, "needs MAX_HP above 0"},
		{"equip missing skill", func(b *bundle) {
			b.equip = []entry[types.EquipRule]{{types.EquipRule{Give: []string{"NOPE"}}, "equip.yaml"}}
		}, "equip rule 1"},
		{"player missing skill", func(b *bundle) {
			b.players = []entry[*types.PlayerProfile]{{&types.PlayerProfile{ID: "p", Skills: []string{"NOPE"}}, "players.yaml"}}
		}, "player p"},
		{"limit without count", func(b *bundle) {
			b.limits = []entry[types.EventLimit]{{types.EventLimit{ID: "cap", EventType: "on_heal", MaxCount: -1}, "x.yaml"}}
		}, "max_count of 0 or more"},
		{"limit without event", func(b *bundle) {
			b.limits = []entry[types.EventLimit]{{types.EventLimit{ID: "cap", MaxCount: 1}, "x.yaml"}}
		}, "has no event type"},
		{"event limited twice", func(b *bundle) {
			b.limits = []entry[types.EventLimit]{
				{types.EventLimit{ID: "a", EventType: "on_heal", MaxCount: 1}, "x.yaml"},
				{types.EventLimit{ID: "b", EventType: "on_heal", MaxCount: 2}, "x.yaml"},
			}
		}, `"on_heal" is limited twice`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := validBundle()
			tt.mutate(b)
			_, ve := validate(b)
			assertContains(t, ve.Errors, tt.want)
		})
	}
}

func TestValidate_Warnings(t *testing.T) {
	b := validBundle()
	b.skills = append(b.skills,
		entry[*types.SkillDef]{&types.SkillDef{ID: "IDLE", Kind: types.SkillPassive,
			Effects: []types.EffectSpec{{Op: types.OpHeal, Power: "1"}}}, "skills.lua"},
		entry[*types.SkillDef]{&types.SkillDef{ID: "EAR", Kind: types.SkillPassive,
			Triggers: []types.TriggerDef{{Event: "on_sneeze"}},
			Effects:  []types.EffectSpec{{Op: types.OpHeal, Power: "1"}}}, "skills.lua"},
	)

	_, ve := validate(b)
	if len(ve.Errors) > 0 {
		t.Fatalf("warnings must not fail validation: %v", ve.Errors)
	}
	assertContains(t, ve.Warnings, "skill IDLE is passive with no triggers")
	assertContains(t, ve.Warnings, `"on_sneeze", which the battle never publishes`)
}

func TestValidationError_Format(t *testing.T) {
	ve := &ValidationError{Errors: []string{"first", "second"}}
	got := ve.Error()
	if !strings.HasPrefix(got, "validation failed with 2 error(s):") {
		t.Errorf("Error() = %q", got)
	}
	if !strings.Contains(got, "\n  second") {
		t.Errorf("Error() = %q, want indented lines", got)
	}
}

// assertContains checks that at least one string in the slice contains substr.
func assertContains(t *testing.T, strs []string, substr string) {
	t.Helper()
	for _, s := range strs {
		if strings.Contains(s, substr) {
			return
		}
	}
	t.Errorf("expected one of %v to contain %q", strs, substr)
}
