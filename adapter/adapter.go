// Package adapter turns persisted player profiles and authored monster
// records into combat units.
package adapter

import (
	"fmt"
	"math"
	"strings"

	"github.com/nathoo/duelcore/engine/rules"
	"github.com/nathoo/duelcore/engine/state"
	"github.com/nathoo/duelcore/engine/unit"
	"github.com/nathoo/duelcore/types"
)

// Weapon slot qualities.
const (
	QualityNone = 0
	QualityC    = 1
	QualityB    = 2
	QualityA    = 3
	QualityS    = 4
)

// ParseQuality maps a quality letter to its slot value.
func ParseQuality(s string) (int, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "-":
		return QualityNone, nil
	case "C":
		return QualityC, nil
	case "B":
		return QualityB, nil
	case "A":
		return QualityA, nil
	case "S":
		return QualityS, nil
	}
	return 0, fmt.Errorf("unknown weapon quality %q (C, B, A, S)", s)
}

// GearScore weights the three weapon slots 1, 2 and 3.
func GearScore(slots [3]int) int {
	return slots[0]*1 + slots[1]*2 + slots[2]*3
}

// DeriveStats computes a player's panel stats from level, attribute
// points and gear score.
func DeriveStats(p *types.PlayerProfile) unit.Stats {
	lv := float64(p.Level)
	pt := func(k string) float64 { return float64(p.Points[k]) }
	score := float64(GearScore(p.WeaponSlots))
	return unit.Stats{
		ATK:   6 + 2*score + lv + 2*pt("str"),
		DEF:   4 + lv + 1.5*pt("def"),
		AGI:   8 + float64(p.Level/2) + 0.6*pt("agi"),
		INT:   pt("int"),
		CRIT:  math.Min(30, 10+0.8*pt("crit")) / 100,
		MaxHP: 80 + 10*p.Level + 12*p.Points["hp"],
	}
}

// PlayerUnit builds a player's unit. Skills granted by the table's equip
// rules come first, in rule order, followed by learned skills not already
// granted. A skill id missing from the table is a configuration error.
func PlayerUnit(p *types.PlayerProfile, table *state.RuleTable) (*unit.Unit, error) {
	name := p.Name
	if name == "" {
		name = p.ID
	}
	u := unit.New(p.ID, name, types.SidePlayer, DeriveStats(p))

	granted := rules.GrantedSkills(table.EquipRules, p.Points, GearScore(p.WeaponSlots))
	seen := map[string]bool{}
	for _, id := range append(granted, p.Skills...) {
		if seen[id] {
			continue
		}
		seen[id] = true
		if err := equip(u, id, table, "player "+p.ID); err != nil {
			return nil, err
		}
	}
	for res, v := range p.Resources {
		u.SetResource(res, v)
	}
	return u, nil
}

// MonsterUnit builds a monster or boss unit from its record.
func MonsterUnit(def *types.MonsterDef, table *state.RuleTable) (*unit.Unit, error) {
	side := def.Tag
	if side == "" {
		side = types.SideMonster
	}
	name := def.Name
	if name == "" {
		name = def.ID
	}
	u := unit.New(def.ID, name, side, unit.Stats{
		ATK:   def.ATK,
		DEF:   def.DEF,
		AGI:   def.AGI,
		INT:   def.INT,
		CRIT:  def.Crit,
		MaxHP: def.MaxHP,
	})
	for _, id := range def.Skills {
		if err := equip(u, id, table, "monster "+def.ID); err != nil {
			return nil, err
		}
	}
	for res, v := range def.Resources {
		u.SetResource(res, v)
	}
	return u, nil
}

func equip(u *unit.Unit, id string, table *state.RuleTable, refBy string) error {
	def, ok := table.Skills[id]
	if !ok {
		return &state.ConfigError{Kind: "skill", ID: id, RefBy: refBy}
	}
	u.Equip(def)
	return nil
}
