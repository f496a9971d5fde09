// Package types defines the shared data structures for the DuelCore engine.
// This package contains only type definitions and constants, no logic.
package types

// Side tags which camp a unit fights for.
type Side string

const (
	SidePlayer  Side = "player"
	SideMonster Side = "monster"
	SideBoss    Side = "boss"
	SideRival   Side = "rival" // the second player in a duel
)

// SkillKind separates cast skills from trigger-only ones.
type SkillKind string

const (
	SkillActive  SkillKind = "active"
	SkillPassive SkillKind = "passive"
	SkillAura    SkillKind = "aura"
)

// StackMode controls what happens when a buff already carried is applied again.
type StackMode string

const (
	StackNone      StackMode = "NONE"
	StackDuration  StackMode = "DURATION"  // refresh duration only
	StackIntensity StackMode = "INTENSITY" // add stacks up to the max
	StackBoth      StackMode = "BOTH"
)

// Op names an effect operation.
type Op string

const (
	OpDamage          Op = "damage"
	OpDamageReduction Op = "damage_reduction"
	OpAddDamage       Op = "add_damage"
	OpReflectDamage   Op = "reflect_damage"
	OpLeech           Op = "leech"
	OpHeal            Op = "heal"
	OpApplyBuff       Op = "apply_buff"
	OpAddBuff         Op = "add_buff"
	OpStatPct         Op = "stat_pct"
	OpDispel          Op = "dispel"
)

// Role restricts which side of an event a trigger owner must be on.
type Role string

const (
	RoleEither Role = "either" // owner is the event source or its target
	RoleSource Role = "source"
	RoleTarget Role = "target"
	RoleAny    Role = "any"
)

// Stat names used in modifier tables and formulas.
const (
	StatATK   = "ATK"
	StatDEF   = "DEF"
	StatAGI   = "AGI"
	StatINT   = "INT"
	StatCRIT  = "CRIT"
	StatMaxHP = "MAX_HP"
)

// Damage types.
const (
	DamagePhysical = "physical"
	DamageTrue     = "true"
)

// Event types published on the battle bus.
const (
	EventBattleStart   = "battle_start"
	EventTurnStart     = "on_turn_start"
	EventAttack        = "attack"
	EventCast          = "on_cast"
	EventDamageCalc    = "damage_calc"
	EventReceiveDamage = "on_receive_damage"
	EventDealDamage    = "on_deal_damage"
	EventDodge         = "on_dodge"
	EventHeal          = "on_heal"
	EventBuffApply     = "buff_apply"
	EventTurnEnd       = "on_turn_end"
	EventDeath         = "on_death"
	EventBattleEnd     = "battle_end"
)

// EffectSpec is one authored effect inside a skill or buff.
type EffectSpec struct {
	Op             Op
	Power          string  // power / formula / reduction / ratio expression
	Variance       float64 // jitter fraction, 0.1 = ±10%
	CanCrit        bool
	CritMultiplier float64 // 0 scales with the actor's crit stat
	DamageType     string
	SelfTarget     bool
	IsOwner        *bool // nil: no gate
	CanDodge       bool
	AllowRevive    bool
	BuffID         string
	Stacks         string // stacks formula, default "1"
	Count          int
	Positive       bool
	Stat           string // stat_pct
	Duration       int    // stat_pct
}

// TriggerDef binds a skill or buff to an event type.
type TriggerDef struct {
	Event           string
	Priority        int
	Role            Role
	Conditions      []string // boolean formulas, all must hold
	StopPropagation bool
}

// SkillDef is an authored skill.
type SkillDef struct {
	ID          string
	Name        string
	Kind        SkillKind
	Description string
	Triggers    []TriggerDef
	Target      string // self, single_enemy, all_enemies, lowest_hp_ally, all_allies, event_source, event_target
	Effects     []EffectSpec
	Cooldown    int
	Cost        map[string]int
}

// TickDelta is the per-upkeep change applied to a buff.
// A zero Duration decays by one unless DurationSet marks it as authored,
// in which case the duration holds.
type TickDelta struct {
	Duration    int
	Stack       int
	DurationSet bool
}

// BuffDef is an authored buff or debuff.
type BuffDef struct {
	ID          string
	Name        string
	Positive    bool
	Modifiers   map[string]float64 // per-stack delta; "ATK%" keys scale multiplicatively
	Triggers    []TriggerDef
	Effects     []EffectSpec
	Duration    int // -1 = permanent
	MaxStack    int
	StackMode   StackMode
	Dispellable bool
	Resistable  bool
	TurnEnd     TickDelta
}

// MonsterDef is an authored monster or boss.
type MonsterDef struct {
	ID        string
	Name      string
	Tag       Side
	Level     int
	ATK       float64
	DEF       float64
	AGI       float64
	INT       float64
	MaxHP     int
	Crit      float64
	Skills    []string
	Resources map[string]int
}

// PlayerProfile is the externally persisted stat sheet of a player.
type PlayerProfile struct {
	ID          string
	Name        string
	Level       int
	Points      map[string]int // str, def, hp, agi, int, crit
	WeaponSlots [3]int         // slot qualities, C=1 B=2 A=3 S=4
	Skills      []string       // learned skills, granted after equip rules
	Resources   map[string]int
}

// EquipRule grants skills when a profile meets thresholds.
type EquipRule struct {
	AttrGTE  map[string]int
	ScoreGTE *int
	ScoreLTE *int
	Give     []string
}

// EventLimit caps successful fires of an event type per source per round.
type EventLimit struct {
	ID        string
	EventType string
	MaxCount  int
}
