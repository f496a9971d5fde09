package unit

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nathoo/duelcore/types"
)

type fixedSource float64

func (f fixedSource) Float64() float64 { return float64(f) }

func newUnit(def float64, maxHP int) *Unit {
	return New("b", "Bravo", types.SideMonster, Stats{ATK: 10, DEF: def, AGI: 20, MaxHP: maxHP})
}

func TestTakeDamage_Mitigation(t *testing.T) {
	tests := []struct {
		name   string
		def    float64
		amount int
		want   int
		hp     int
	}{
		{"defense 10", 10, 50, 40, 60},
		{"zero defense", 0, 50, 50, 50},
		{"negative defense doubles", -20, 50, 100, 0},
		{"negative defense halfway", -10, 50, 75, 25},
		{"overkill clamps health", 0, 500, 500, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := newUnit(tt.def, 100)
			got := u.TakeDamage(map[string]int{types.DamagePhysical: tt.amount})
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.hp, u.HP())
			assert.Equal(t, tt.hp > 0, u.Alive())
		})
	}
}

func TestTakeDamage_NonPhysicalPassesThrough(t *testing.T) {
	u := newUnit(1000, 100)
	got := u.TakeDamage(map[string]int{"fire": 30, types.DamagePhysical: 30})
	// 30 fire unmitigated + 30*(1-1000/1040) = 1.
	assert.Equal(t, 31, got)
	assert.Equal(t, 69, u.HP())
}

func TestTakeDamage_MonotonicInDefense(t *testing.T) {
	prev := -1
	for def := 0.0; def <= 400; def += 5 {
		u := newUnit(def, 10000)
		got := u.TakeDamage(map[string]int{types.DamagePhysical: 137})
		if prev >= 0 {
			require.LessOrEqual(t, got, prev, "defense %v", def)
		}
		prev = got
	}
}

func TestHeal(t *testing.T) {
	u := newUnit(0, 100)
	u.SetHealth(90)
	assert.Equal(t, 10, u.Heal(50, false))
	assert.Equal(t, 100, u.HP())
	assert.Equal(t, 0, u.Heal(-5, false))

	u.SetHealth(0)
	require.False(t, u.Alive())
	assert.Equal(t, 0, u.Heal(30, false), "no revive without permission")
	assert.False(t, u.Alive())
	assert.Equal(t, 30, u.Heal(30, true))
	assert.True(t, u.Alive())
}

func TestHealthBounds_RandomSequence(t *testing.T) {
	r := rand.New(rand.NewSource(5))
	u := newUnit(15, 250)
	for i := 0; i < 2000; i++ {
		if r.Intn(2) == 0 {
			u.TakeDamage(map[string]int{types.DamagePhysical: r.Intn(120) - 10, "fire": r.Intn(30)})
		} else {
			u.Heal(r.Intn(150)-10, r.Intn(4) == 0)
		}
		hp := u.HP()
		require.GreaterOrEqual(t, hp, 0)
		require.LessOrEqual(t, hp, u.MaxHP())
	}
}

func TestDodgeChance(t *testing.T) {
	tests := []struct {
		agi  float64
		want float64
	}{
		{0, 0.01},
		{100, 0.5},
		{300, 0.75},
		{1e9, 0.99},
		{-50, 0.01},
	}
	for _, tt := range tests {
		u := New("u", "U", types.SidePlayer, Stats{AGI: tt.agi, MaxHP: 10})
		assert.InDelta(t, tt.want, u.DodgeChance(), 1e-6, "agi %v", tt.agi)
	}

	u := New("u", "U", types.SidePlayer, Stats{AGI: 100, MaxHP: 10})
	assert.True(t, u.CheckDodge(fixedSource(0.49)))
	assert.False(t, u.CheckDodge(fixedSource(0.5)))
}

func TestStats_BuffContributions(t *testing.T) {
	u := New("a", "Alpha", types.SidePlayer, Stats{ATK: 100, DEF: 10, AGI: 20, MaxHP: 100})
	rage := &types.BuffDef{ID: "rage", Modifiers: map[string]float64{"ATK": 5}, Duration: 3, MaxStack: 5, StackMode: types.StackIntensity}
	fury := &types.BuffDef{ID: "fury", Modifiers: map[string]float64{"ATK%": 0.2, "MAX_HP": 50}, Duration: 2, MaxStack: 1, StackMode: types.StackDuration}

	u.AddBuff(rage, "a", 2)
	assert.InDelta(t, 110, u.Stats().ATK, 1e-9)

	u.AddBuff(fury, "a", 1)
	assert.InDelta(t, 132, u.Stats().ATK, 1e-9)
	assert.Equal(t, 150, u.MaxHP())
	assert.Equal(t, 100.0, u.Base().ATK, "base stats never change")
}

func TestAddBuff_StackModes(t *testing.T) {
	tests := []struct {
		name       string
		mode       types.StackMode
		wantStacks int
		wantRemain int
	}{
		{"none", types.StackNone, 1, 1},
		{"duration", types.StackDuration, 1, 3},
		{"intensity", types.StackIntensity, 3, 1},
		{"both", types.StackBoth, 3, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := &types.BuffDef{ID: "x", Duration: 3, MaxStack: 3, StackMode: tt.mode}
			u := newUnit(0, 100)
			u.AddBuff(def, "a", 1)
			u.Buff("x").Remaining = 1
			u.AddBuff(def, "a", 1)
			got := u.AddBuff(def, "a", 1)

			assert.Equal(t, tt.wantStacks, got)
			assert.Equal(t, tt.wantRemain, u.Buff("x").Remaining)
			assert.Len(t, u.Buffs(), 1)
		})
	}
}

func TestAddBuff_DurationIdempotent(t *testing.T) {
	haste := &types.BuffDef{ID: "haste", MaxStack: 1, StackMode: types.StackDuration, Duration: 2}
	u := newUnit(0, 100)

	for i := 0; i < 5; i++ {
		assert.Equal(t, 1, u.AddBuff(haste, "a", 1))
	}
	assert.Equal(t, 1, u.Buff("haste").Stacks)
	assert.Equal(t, 2, u.Buff("haste").Remaining)
}

func TestAddBuff_CapsAndRejects(t *testing.T) {
	def := &types.BuffDef{ID: "poison", Duration: 2, MaxStack: 4, StackMode: types.StackIntensity}
	u := newUnit(0, 100)

	assert.Equal(t, 4, u.AddBuff(def, "a", 10))
	assert.Equal(t, 0, u.AddBuff(def, "a", 0))
	assert.Equal(t, 0, u.AddBuff(nil, "a", 1))
}

func TestUpkeepBuffs(t *testing.T) {
	u := newUnit(0, 100)
	short := &types.BuffDef{ID: "short", Duration: 1, MaxStack: 1}
	long := &types.BuffDef{ID: "long", Duration: 3, MaxStack: 1}
	perm := &types.BuffDef{ID: "perm", Duration: -1, MaxStack: 1}
	fading := &types.BuffDef{ID: "fading", Duration: -1, MaxStack: 3, TurnEnd: types.TickDelta{Stack: -1}}

	u.AddBuff(short, "a", 1)
	u.AddBuff(long, "a", 1)
	u.AddBuff(perm, "a", 1)
	u.AddBuff(fading, "a", 2)

	removed := u.UpkeepBuffs()
	assert.Equal(t, []string{"short"}, removed)
	assert.Equal(t, 2, u.Buff("long").Remaining)
	assert.Equal(t, -1, u.Buff("perm").Remaining)
	assert.Equal(t, 1, u.Buff("fading").Stacks)

	removed = u.UpkeepBuffs()
	assert.Equal(t, []string{"fading"}, removed)
	removed = u.UpkeepBuffs()
	assert.Equal(t, []string{"long"}, removed)
	assert.NotNil(t, u.Buff("perm"))
}

func TestUpkeepBuffs_AuthoredZeroDurationHolds(t *testing.T) {
	u := newUnit(0, 100)
	steady := &types.BuffDef{ID: "steady", Duration: 2, MaxStack: 1,
		TurnEnd: types.TickDelta{Duration: 0, DurationSet: true}}
	zero := &types.BuffDef{ID: "zero", Duration: 2, MaxStack: 1}

	u.AddBuff(steady, "a", 1)
	u.AddBuff(zero, "a", 1)

	for i := 0; i < 3; i++ {
		u.UpkeepBuffs()
	}
	require.NotNil(t, u.Buff("steady"))
	assert.Equal(t, 2, u.Buff("steady").Remaining)
	assert.Nil(t, u.Buff("zero"), "an unset delta still decays by one")
}

func TestDispel(t *testing.T) {
	u := newUnit(0, 100)
	for _, d := range []*types.BuffDef{
		{ID: "shield", Positive: true, Dispellable: true, Duration: 3, MaxStack: 1},
		{ID: "blessing", Positive: true, Dispellable: false, Duration: 3, MaxStack: 1},
		{ID: "haste", Positive: true, Dispellable: true, Duration: 3, MaxStack: 1},
		{ID: "curse", Positive: false, Dispellable: true, Duration: 3, MaxStack: 1},
		{ID: "might", Positive: true, Dispellable: true, Duration: 3, MaxStack: 1},
	} {
		u.AddBuff(d, "a", 1)
	}

	removed := u.Dispel(2, true)
	assert.Equal(t, []string{"shield", "haste"}, removed)
	assert.Nil(t, u.Buff("shield"))
	assert.NotNil(t, u.Buff("blessing"))
	assert.NotNil(t, u.Buff("curse"))
	assert.NotNil(t, u.Buff("might"))
	assert.Nil(t, u.Dispel(0, true))
}

func TestSkillCooldowns(t *testing.T) {
	u := newUnit(0, 100)
	slot := u.Equip(&types.SkillDef{ID: "strike", Cooldown: 2})
	require.True(t, slot.Ready())

	slot.Cooldown = 2
	u.UpdateSkillCooldowns()
	assert.Equal(t, 1, slot.Cooldown)
	u.UpdateSkillCooldowns()
	u.UpdateSkillCooldowns()
	assert.Equal(t, 0, slot.Cooldown)
	assert.True(t, slot.Ready())
}

func TestResources(t *testing.T) {
	u := newUnit(0, 100)
	u.SetResource("mp", 10)
	cost := map[string]int{"mp": 6}

	require.True(t, u.CanAfford(cost))
	u.Spend(cost)
	assert.Equal(t, 4, u.Resource("mp"))
	assert.False(t, u.CanAfford(cost))
	assert.False(t, u.CanAfford(map[string]int{"rage": 1}))
	assert.True(t, u.CanAfford(nil))

	u.AddResource("mp", -100)
	assert.Equal(t, 0, u.Resource("mp"))
}
