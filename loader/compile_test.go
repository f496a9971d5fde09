package loader

import (
	"testing"

	lua "github.com/yuin/gopher-lua"

	"github.com/nathoo/duelcore/types"
)

// newTestVM creates a sandboxed Lua VM with the API registered and a fresh collector.
func newTestVM() (*lua.LState, *collector) {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	openSafeLibs(L)
	sandbox(L)
	coll := &collector{}
	registerAPI(L, coll)
	return L, coll
}

// compileString runs src and compiles what it declared.
func compileString(t *testing.T, src string) *bundle {
	t.Helper()
	L, coll := newTestVM()
	defer L.Close()
	coll.file = "test.lua"
	if err := L.DoString(src); err != nil {
		t.Fatal(err)
	}
	b := &bundle{}
	if err := compile(coll, b); err != nil {
		t.Fatal(err)
	}
	return b
}

func TestCompileSkill_Defaults(t *testing.T) {
	b := compileString(t, `Skill "HIT" { effects = { Damage("ATK") } }`)
	if len(b.skills) != 1 {
		t.Fatalf("expected 1 skill, got %d", len(b.skills))
	}
	s := b.skills[0].def
	if s.Kind != types.SkillActive {
		t.Errorf("Kind = %q, want active", s.Kind)
	}
	if s.Name != "HIT" {
		t.Errorf("Name = %q, want id fallback", s.Name)
	}
	if b.skills[0].origin != "test.lua" {
		t.Errorf("origin = %q", b.skills[0].origin)
	}
}

func TestCompileSkill_Aliases(t *testing.T) {
	b := compileString(t, `
		Skill "A" { type = "PASSIVE", cd = 3, trigger = "on_dodge",
			effects = { { op = "heal", formula = 5 } } }
	`)
	s := b.skills[0].def
	if s.Kind != types.SkillPassive {
		t.Errorf("Kind = %q, want passive", s.Kind)
	}
	if s.Cooldown != 3 {
		t.Errorf("Cooldown = %d, want 3", s.Cooldown)
	}
	if len(s.Triggers) != 1 || s.Triggers[0].Event != types.EventDodge {
		t.Errorf("Triggers = %+v", s.Triggers)
	}
	if s.Effects[0].Power != "5" {
		t.Errorf("Power = %q, want number formatted as formula", s.Effects[0].Power)
	}
}

func TestCompileTriggers(t *testing.T) {
	b := compileString(t, `
		Skill "GUARD" { kind = "passive",
			triggers = {
				On("damage_calc", { role = "Target", priority = 5, stop = true,
					conditions = { "HP < MAX_HP", "round > 1" } }),
				On("on_heal"),
			},
			effects = { Reduce("0.5") } }
	`)
	trs := b.skills[0].def.Triggers
	if len(trs) != 2 {
		t.Fatalf("expected 2 triggers, got %d", len(trs))
	}
	first := trs[0]
	if first.Event != types.EventDamageCalc || first.Role != types.RoleTarget || first.Priority != 5 {
		t.Errorf("first trigger = %+v", first)
	}
	if !first.StopPropagation {
		t.Error("stop = true should set StopPropagation")
	}
	if len(first.Conditions) != 2 {
		t.Errorf("Conditions = %v", first.Conditions)
	}
	if trs[1].Role != "" || len(trs[1].Conditions) != 0 {
		t.Errorf("bare On() = %+v", trs[1])
	}
}

func TestCompileEffects_AllHelpers(t *testing.T) {
	b := compileString(t, `
		Skill "ALL" { effects = {
			Damage("ATK", { can_crit = true, can_dodge = true, variance = 0.1, damage_type = "fire" }),
			Reduce("0.2"),
			AddDamage("5"),
			Reflect("damage * 0.15"),
			Leech("damage * 0.2"),
			Heal("10", { allow_revive = true }),
			ApplyBuff("haste", { stacks = 2 }),
			AddBuff("fury"),
			StatPct("def", "-0.1", { duration = 2 }),
			Dispel(2, { positive = false }),
			{ op = "apply_buff", buff = "legacy" },
		} }
	`)
	effs := b.skills[0].def.Effects
	want := []types.Op{
		types.OpDamage, types.OpDamageReduction, types.OpAddDamage, types.OpReflectDamage,
		types.OpLeech, types.OpHeal, types.OpApplyBuff, types.OpAddBuff,
		types.OpStatPct, types.OpDispel, types.OpApplyBuff,
	}
	if len(effs) != len(want) {
		t.Fatalf("expected %d effects, got %d", len(want), len(effs))
	}
	for i, op := range want {
		if effs[i].Op != op {
			t.Errorf("effect %d op = %q, want %q", i, effs[i].Op, op)
		}
	}

	dmg := effs[0]
	if !dmg.CanCrit || !dmg.CanDodge || dmg.Variance != 0.1 || dmg.DamageType != "fire" {
		t.Errorf("damage flags = %+v", dmg)
	}
	if !effs[5].AllowRevive {
		t.Error("heal allow_revive lost")
	}
	if effs[6].BuffID != "haste" || effs[6].Stacks != "2" {
		t.Errorf("apply_buff = %+v", effs[6])
	}
	if effs[8].Stat != "DEF" || effs[8].Power != "-0.1" || effs[8].Duration != 2 {
		t.Errorf("stat_pct = %+v", effs[8])
	}
	if effs[9].Count != 2 || effs[9].Positive {
		t.Errorf("dispel = %+v", effs[9])
	}
	if effs[10].BuffID != "legacy" {
		t.Errorf("buff alias = %q", effs[10].BuffID)
	}
}

func TestCompileBuff_Defaults(t *testing.T) {
	b := compileString(t, `
		Buff "plain" {}
		Buff "bleed" { stack_type = "intensity", max_stack = 5, duration = -1,
			dispellable = false, turn_end = { stack = -1 },
			modifiers = { ["ATK%"] = -0.1, DEF = -2 } }
		Buff "steady" { duration = 3, turn_end = { duration = 0 } }
	`)
	plain := b.buffs[0].def
	if plain.StackMode != types.StackDuration || plain.MaxStack != 1 || plain.Duration != 1 {
		t.Errorf("plain defaults = %+v", plain)
	}
	if !plain.Dispellable {
		t.Error("buffs are dispellable by default")
	}
	if plain.TurnEnd != (types.TickDelta{Duration: -1}) {
		t.Errorf("TurnEnd = %+v", plain.TurnEnd)
	}

	bleed := b.buffs[1].def
	if bleed.StackMode != types.StackIntensity || bleed.MaxStack != 5 || bleed.Duration != -1 {
		t.Errorf("bleed = %+v", bleed)
	}
	if bleed.TurnEnd != (types.TickDelta{Duration: -1, Stack: -1}) {
		t.Errorf("TurnEnd = %+v", bleed.TurnEnd)
	}
	if bleed.Modifiers["ATK%"] != -0.1 || bleed.Modifiers["DEF"] != -2 {
		t.Errorf("Modifiers = %v", bleed.Modifiers)
	}

	steady := b.buffs[2].def
	if steady.TurnEnd != (types.TickDelta{Duration: 0, DurationSet: true}) {
		t.Errorf("authored zero duration delta = %+v", steady.TurnEnd)
	}
}

func TestCompileMonster_BossAndAliases(t *testing.T) {
	b := compileString(t, `
		Monster "rat" { atk = 5, SPD = 9, hp = 30 }
		Boss "king" { ATK = 50, MAX_HP = 900, skills = { "ROAR" } }
	`)
	rat := b.monsters[0].def
	if rat.ATK != 5 || rat.AGI != 9 || rat.MaxHP != 30 {
		t.Errorf("rat = %+v", rat)
	}
	king := b.monsters[1].def
	if king.Tag != types.SideBoss {
		t.Errorf("Boss tag = %q", king.Tag)
	}
	if len(king.Skills) != 1 || king.Skills[0] != "ROAR" {
		t.Errorf("Skills = %v", king.Skills)
	}
}

func TestCompilePlayer(t *testing.T) {
	b := compileString(t, `
		Player "p" { points = { STR = 4 }, weapon = { "b", "2", "S" } }
	`)
	p := b.players[0].def
	if p.Level != 1 {
		t.Errorf("Level = %d, want default 1", p.Level)
	}
	if p.Points["str"] != 4 {
		t.Errorf("Points = %v", p.Points)
	}
	if p.WeaponSlots != [3]int{2, 2, 4} {
		t.Errorf("WeaponSlots = %v", p.WeaponSlots)
	}
}

func TestEquipRule(t *testing.T) {
	tests := []struct {
		name    string
		when    map[string]int
		wantErr bool
		check   func(types.EquipRule) bool
	}{
		{"attr threshold", map[string]int{"STR_gte": 10}, false,
			func(r types.EquipRule) bool { return r.AttrGTE["str"] == 10 }},
		{"score window", map[string]int{"score_gte": 12, "score_lte": 20}, false,
			func(r types.EquipRule) bool { return *r.ScoreGTE == 12 && *r.ScoreLTE == 20 }},
		{"unknown key", map[string]int{"str_lt": 1}, true, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := equipRule(tt.when, []string{"X"})
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.check != nil && !tt.check(r) {
				t.Errorf("rule = %+v", r)
			}
		})
	}
}

func TestCompileEventLimit_MissingCount(t *testing.T) {
	b := compileString(t, `
		EventLimit "cap" { event = "on_heal", max_count = 2 }
		EventLimit "open" { event = "on_dodge" }
	`)
	if b.limits[0].def.MaxCount != 2 {
		t.Errorf("MaxCount = %d", b.limits[0].def.MaxCount)
	}
	if b.limits[1].def.MaxCount != -1 {
		t.Errorf("missing max_count = %d, want -1 for validation", b.limits[1].def.MaxCount)
	}
}
