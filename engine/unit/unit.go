// Package unit implements combat units: base and effective stats, health,
// buffs, skill cooldowns and resource pools. A unit lives for one fight.
package unit

import (
	"math"

	"github.com/nathoo/duelcore/types"
)

// Stats is a full stat panel. CRIT is a probability in [0, 1].
type Stats struct {
	ATK   float64
	DEF   float64
	AGI   float64
	INT   float64
	CRIT  float64
	MaxHP int
}

// Get returns a stat by its table name.
func (s Stats) Get(name string) float64 {
	switch name {
	case types.StatATK:
		return s.ATK
	case types.StatDEF:
		return s.DEF
	case types.StatAGI:
		return s.AGI
	case types.StatINT:
		return s.INT
	case types.StatCRIT:
		return s.CRIT
	case types.StatMaxHP:
		return float64(s.MaxHP)
	}
	return 0
}

// Source is the random source a unit draws from.
type Source interface {
	Float64() float64
}

// Mitigation turns nominal damage of one type into settled damage.
type Mitigation func(amount int, defender Stats, t Tuning) int

// Tuning holds the combat constants shared by every unit in a fight.
type Tuning struct {
	DefenseK         float64
	NegativeDefenseK float64
	DodgeC           float64
	MinDodge         float64
	MaxDodge         float64
	CritMin          float64
	CritMax          float64
	Policies         map[string]Mitigation // by damage type; absent types pass through
}

// DefaultTuning returns the standard constants with physical mitigation.
func DefaultTuning() Tuning {
	return Tuning{
		DefenseK:         40,
		NegativeDefenseK: 20,
		DodgeC:           100,
		MinDodge:         0.01,
		MaxDodge:         0.99,
		CritMin:          1.5,
		CritMax:          2.5,
		Policies: map[string]Mitigation{
			types.DamagePhysical: PhysicalMitigation,
		},
	}
}

// PhysicalMitigation applies def/(def+K) for non-negative defense and
// def/K2 for negative defense, which amplifies the hit.
func PhysicalMitigation(amount int, d Stats, t Tuning) int {
	var ratio float64
	switch {
	case d.DEF >= 0 && d.DEF+t.DefenseK > 0:
		ratio = d.DEF / (d.DEF + t.DefenseK)
	case d.DEF < 0 && t.NegativeDefenseK > 0:
		ratio = d.DEF / t.NegativeDefenseK
	}
	return max(0, int(float64(amount)*(1-ratio)))
}

// SkillSlot is an equipped skill with its own cooldown counter.
type SkillSlot struct {
	Def      *types.SkillDef
	Cooldown int
}

// Ready reports whether the cooldown has run out.
func (s *SkillSlot) Ready() bool { return s.Cooldown <= 0 }

// Unit is one combatant.
type Unit struct {
	ID   string
	Name string
	Side types.Side

	base      Stats
	hp        int
	buffs     []*Buff
	skills    []*SkillSlot
	resources map[string]int
	tuning    Tuning
}

// New creates a unit at full health.
func New(id, name string, side types.Side, base Stats) *Unit {
	if base.MaxHP < 1 {
		base.MaxHP = 1
	}
	return &Unit{
		ID:        id,
		Name:      name,
		Side:      side,
		base:      base,
		hp:        base.MaxHP,
		resources: map[string]int{},
		tuning:    DefaultTuning(),
	}
}

// SetTuning replaces the combat constants.
func (u *Unit) SetTuning(t Tuning) { u.tuning = t }

// Tuning returns the combat constants the unit was built with.
func (u *Unit) Tuning() Tuning { return u.tuning }

// CritMultiplier scales between the tuning bounds with the unit's crit stat.
func (u *Unit) CritMultiplier() float64 {
	m := u.tuning.CritMin + u.Stats().CRIT*(u.tuning.CritMax-u.tuning.CritMin)
	return math.Max(u.tuning.CritMin, math.Min(u.tuning.CritMax, m))
}

// Base returns the immutable panel stats.
func (u *Unit) Base() Stats { return u.base }

// Stats returns the effective stats: base plus every carried buff's
// contribution, recomputed on each call.
func (u *Unit) Stats() Stats {
	eff := func(name string, base float64) float64 {
		var flat, pct float64
		for _, b := range u.buffs {
			f, p := b.contribution(name)
			flat += f
			pct += p
		}
		return (base + flat) * (1 + pct)
	}
	s := Stats{
		ATK:   eff(types.StatATK, u.base.ATK),
		DEF:   eff(types.StatDEF, u.base.DEF),
		AGI:   eff(types.StatAGI, u.base.AGI),
		INT:   eff(types.StatINT, u.base.INT),
		CRIT:  math.Max(0, math.Min(1, eff(types.StatCRIT, u.base.CRIT))),
		MaxHP: int(math.Round(eff(types.StatMaxHP, float64(u.base.MaxHP)))),
	}
	if s.MaxHP < 1 {
		s.MaxHP = 1
	}
	return s
}

// HP returns current health, clamped to the effective maximum.
func (u *Unit) HP() int {
	return min(u.hp, u.Stats().MaxHP)
}

// MaxHP returns the effective maximum health.
func (u *Unit) MaxHP() int { return u.Stats().MaxHP }

// Alive reports whether current health is above zero.
func (u *Unit) Alive() bool { return u.hp > 0 }

// SetHealth sets current health, clamped to [0, max].
func (u *Unit) SetHealth(hp int) {
	u.hp = max(0, min(hp, u.MaxHP()))
}

// TakeDamage settles a per-type damage map through the mitigation policies
// and subtracts the result from health. Returns the settled damage.
func (u *Unit) TakeDamage(byType map[string]int) int {
	stats := u.Stats()
	total := 0
	for dtype, amount := range byType {
		if amount <= 0 {
			continue
		}
		if policy, ok := u.tuning.Policies[dtype]; ok && policy != nil {
			amount = policy(amount, stats, u.tuning)
		}
		total += max(0, amount)
	}
	u.hp = max(0, min(u.hp, stats.MaxHP)-total)
	return total
}

// Heal restores up to amount health. A fallen unit only heals when
// allowRevive is set. Returns the health actually restored.
func (u *Unit) Heal(amount int, allowRevive bool) int {
	if amount <= 0 {
		return 0
	}
	if u.hp <= 0 && !allowRevive {
		return 0
	}
	maxHP := u.MaxHP()
	cur := min(u.hp, maxHP)
	healed := min(amount, maxHP-cur)
	u.hp = cur + healed
	return healed
}

// DodgeChance returns agility/(agility+C) clamped to the tuning bounds.
func (u *Unit) DodgeChance() float64 {
	agi := u.Stats().AGI
	p := u.tuning.MinDodge
	if agi > 0 && agi+u.tuning.DodgeC > 0 {
		p = agi / (agi + u.tuning.DodgeC)
	}
	return math.Max(u.tuning.MinDodge, math.Min(u.tuning.MaxDodge, p))
}

// CheckDodge draws once against DodgeChance.
func (u *Unit) CheckDodge(r Source) bool {
	return r.Float64() < u.DodgeChance()
}

// Equip appends a skill slot, ready to use.
func (u *Unit) Equip(def *types.SkillDef) *SkillSlot {
	slot := &SkillSlot{Def: def}
	u.skills = append(u.skills, slot)
	return slot
}

// Skills returns the equipped skill slots in equip order.
func (u *Unit) Skills() []*SkillSlot { return u.skills }

// UpdateSkillCooldowns decrements every cooldown, floored at 0.
func (u *Unit) UpdateSkillCooldowns() {
	for _, s := range u.skills {
		if s.Cooldown > 0 {
			s.Cooldown--
		}
	}
}

// Resource returns the current amount of a resource pool.
func (u *Unit) Resource(name string) int { return u.resources[name] }

// SetResource sets a resource pool.
func (u *Unit) SetResource(name string, v int) { u.resources[name] = v }

// AddResource adds to a resource pool, floored at 0.
func (u *Unit) AddResource(name string, delta int) {
	u.resources[name] = max(0, u.resources[name]+delta)
}

// CanAfford reports whether every cost entry is covered.
func (u *Unit) CanAfford(cost map[string]int) bool {
	for name, c := range cost {
		if c > 0 && u.resources[name] < c {
			return false
		}
	}
	return true
}

// Spend deducts cost. Callers check CanAfford first.
func (u *Unit) Spend(cost map[string]int) {
	for name, c := range cost {
		if c > 0 {
			u.resources[name] -= c
		}
	}
}
