package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/nathoo/duelcore/types"
)

// formulaText accepts a YAML string or number as formula source.
type formulaText string

func (f *formulaText) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: formula must be a scalar", node.Line)
	}
	*f = formulaText(node.Value)
	return nil
}

// stringsOrOne accepts a single string or a list of strings.
type stringsOrOne []string

func (s *stringsOrOne) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		*s = []string{node.Value}
		return nil
	}
	var list []string
	if err := node.Decode(&list); err != nil {
		return err
	}
	*s = list
	return nil
}

type yamlTrigger struct {
	Event      string       `yaml:"event"`
	Priority   int          `yaml:"priority"`
	Role       string       `yaml:"role"`
	Conditions stringsOrOne `yaml:"conditions"`
	Stop       bool         `yaml:"stop"`
}

type yamlEffect struct {
	Op             string      `yaml:"op"`
	Power          formulaText `yaml:"power"`
	Formula        formulaText `yaml:"formula"`
	Reduction      formulaText `yaml:"reduction"`
	Ratio          formulaText `yaml:"ratio"`
	Variance       float64     `yaml:"variance"`
	CanCrit        bool        `yaml:"can_crit"`
	CritMultiplier float64     `yaml:"crit_multiplier"`
	DamageType     string      `yaml:"damage_type"`
	SelfTarget     bool        `yaml:"self_target"`
	IsOwner        *bool       `yaml:"is_owner"`
	CanDodge       bool        `yaml:"can_dodge"`
	AllowRevive    bool        `yaml:"allow_revive"`
	BuffID         string      `yaml:"buff_id"`
	Buff           string      `yaml:"buff"`
	Stacks         formulaText `yaml:"stacks"`
	Count          int         `yaml:"count"`
	Positive       *bool       `yaml:"positive"`
	Stat           string      `yaml:"stat"`
	Duration       int         `yaml:"duration"`
}

type yamlSkill struct {
	ID          string         `yaml:"id"`
	Name        string         `yaml:"name"`
	Kind        string         `yaml:"kind"`
	Type        string         `yaml:"type"`
	Description string         `yaml:"description"`
	Trigger     string         `yaml:"trigger"`
	Triggers    []yamlTrigger  `yaml:"triggers"`
	Target      string         `yaml:"target"`
	Effects     []yamlEffect   `yaml:"effects"`
	Cooldown    int            `yaml:"cooldown"`
	CD          int            `yaml:"cd"`
	Cost        map[string]int `yaml:"cost"`
}

type yamlTick struct {
	Duration *int `yaml:"duration"`
	Stack    int  `yaml:"stack"`
}

type yamlBuff struct {
	ID          string             `yaml:"id"`
	Name        string             `yaml:"name"`
	Positive    bool               `yaml:"positive"`
	Modifiers   map[string]float64 `yaml:"modifiers"`
	Triggers    []yamlTrigger      `yaml:"triggers"`
	Effects     []yamlEffect       `yaml:"effects"`
	Duration    *int               `yaml:"duration"`
	MaxStack    int                `yaml:"max_stack"`
	StackType   string             `yaml:"stack_type"`
	Dispellable *bool              `yaml:"dispellable"`
	Resistable  bool               `yaml:"resistable"`
	TurnEnd     *yamlTick          `yaml:"turn_end"`
}

type yamlMonster struct {
	ID        string         `yaml:"id"`
	Name      string         `yaml:"name"`
	Tag       string         `yaml:"tag"`
	Level     int            `yaml:"level"`
	ATK       float64        `yaml:"ATK"`
	DEF       float64        `yaml:"DEF"`
	AGI       float64        `yaml:"AGI"`
	INT       float64        `yaml:"INT"`
	MaxHP     int            `yaml:"MAX_HP"`
	Crit      float64        `yaml:"CRIT"`
	Skills    []string       `yaml:"skills"`
	Resources map[string]int `yaml:"resources"`
}

type yamlPlayer struct {
	ID        string         `yaml:"id"`
	Name      string         `yaml:"name"`
	Level     int            `yaml:"level"`
	Points    map[string]int `yaml:"points"`
	Weapon    []string       `yaml:"weapon"`
	Skills    []string       `yaml:"skills"`
	Resources map[string]int `yaml:"resources"`
}

type yamlEquip struct {
	Rules []struct {
		When map[string]int `yaml:"when"`
		Give []string       `yaml:"give"`
	} `yaml:"rules"`
}

type yamlLimit struct {
	ID        string `yaml:"id"`
	EventType string `yaml:"event_type"`
	MaxCount  *int   `yaml:"max_count"`
}

// loadYAML decodes one table file, chosen by its base name, into b.
func loadYAML(path string, b *bundle) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	origin := filepath.Base(path)
	name := strings.TrimSuffix(origin, filepath.Ext(origin))

	var decodeErr error
	switch name {
	case "skills":
		var list []yamlSkill
		if decodeErr = yaml.Unmarshal(data, &list); decodeErr == nil {
			for _, s := range list {
				b.skills = append(b.skills, entry[*types.SkillDef]{s.toDef(), origin})
			}
		}
	case "buffs":
		var list []yamlBuff
		if decodeErr = yaml.Unmarshal(data, &list); decodeErr == nil {
			for _, s := range list {
				b.buffs = append(b.buffs, entry[*types.BuffDef]{s.toDef(), origin})
			}
		}
	case "monsters", "bosses":
		var list []yamlMonster
		if decodeErr = yaml.Unmarshal(data, &list); decodeErr == nil {
			for _, m := range list {
				def := m.toDef()
				if name == "bosses" && def.Tag == "" {
					def.Tag = types.SideBoss
				}
				b.monsters = append(b.monsters, entry[*types.MonsterDef]{def, origin})
			}
		}
	case "players":
		var list []yamlPlayer
		if decodeErr = yaml.Unmarshal(data, &list); decodeErr == nil {
			for _, p := range list {
				def, err := p.toDef()
				if err != nil {
					return fmt.Errorf("%s: player %s: %w", origin, p.ID, err)
				}
				b.players = append(b.players, entry[*types.PlayerProfile]{def, origin})
			}
		}
	case "equip":
		var eq yamlEquip
		if decodeErr = yaml.Unmarshal(data, &eq); decodeErr == nil {
			for i, r := range eq.Rules {
				rule, err := equipRule(r.When, r.Give)
				if err != nil {
					return fmt.Errorf("%s: rule %d: %w", origin, i+1, err)
				}
				b.equip = append(b.equip, entry[types.EquipRule]{rule, origin})
			}
		}
	case "battle_event_type", "event_limits":
		var list []yamlLimit
		if decodeErr = yaml.Unmarshal(data, &list); decodeErr == nil {
			for _, l := range list {
				limit := -1
				if l.MaxCount != nil {
					limit = *l.MaxCount
				}
				b.limits = append(b.limits, entry[types.EventLimit]{
					types.EventLimit{ID: l.ID, EventType: l.EventType, MaxCount: limit}, origin})
			}
		}
	default:
		return fmt.Errorf("%s: unknown table file (skills, buffs, monsters, bosses, players, equip, battle_event_type)", origin)
	}
	if decodeErr != nil {
		return fmt.Errorf("parsing %s: %w", origin, decodeErr)
	}
	return nil
}

func (s yamlSkill) toDef() *types.SkillDef {
	kind := s.Kind
	if kind == "" {
		kind = s.Type
	}
	cd := s.Cooldown
	if cd == 0 {
		cd = s.CD
	}
	def := &types.SkillDef{
		ID:          s.ID,
		Name:        s.Name,
		Kind:        types.SkillKind(strings.ToLower(kind)),
		Description: s.Description,
		Triggers:    triggersFromYAML(s.Triggers),
		Target:      s.Target,
		Effects:     effectsFromYAML(s.Effects),
		Cooldown:    cd,
		Cost:        s.Cost,
	}
	if s.Trigger != "" {
		def.Triggers = append(def.Triggers, types.TriggerDef{Event: s.Trigger})
	}
	normalizeSkill(def)
	return def
}

func (y yamlBuff) toDef() *types.BuffDef {
	def := &types.BuffDef{
		ID:          y.ID,
		Name:        y.Name,
		Positive:    y.Positive,
		Modifiers:   y.Modifiers,
		Triggers:    triggersFromYAML(y.Triggers),
		Effects:     effectsFromYAML(y.Effects),
		Duration:    1,
		MaxStack:    y.MaxStack,
		StackMode:   types.StackMode(strings.ToUpper(y.StackType)),
		Dispellable: true,
		Resistable:  y.Resistable,
		TurnEnd:     types.TickDelta{Duration: -1},
	}
	if y.Duration != nil {
		def.Duration = *y.Duration
	}
	if y.Dispellable != nil {
		def.Dispellable = *y.Dispellable
	}
	if y.TurnEnd != nil {
		def.TurnEnd.Stack = y.TurnEnd.Stack
		if y.TurnEnd.Duration != nil {
			def.TurnEnd.Duration = *y.TurnEnd.Duration
			def.TurnEnd.DurationSet = true
		}
	}
	normalizeBuff(def)
	return def
}

func (m yamlMonster) toDef() *types.MonsterDef {
	return &types.MonsterDef{
		ID:        m.ID,
		Name:      m.Name,
		Tag:       types.Side(strings.ToLower(m.Tag)),
		Level:     m.Level,
		ATK:       m.ATK,
		DEF:       m.DEF,
		AGI:       m.AGI,
		INT:       m.INT,
		MaxHP:     m.MaxHP,
		Crit:      m.Crit,
		Skills:    m.Skills,
		Resources: m.Resources,
	}
}

func (p yamlPlayer) toDef() (*types.PlayerProfile, error) {
	slots, err := weaponSlots(p.Weapon)
	if err != nil {
		return nil, err
	}
	level := p.Level
	if level == 0 {
		level = 1
	}
	return &types.PlayerProfile{
		ID:          p.ID,
		Name:        p.Name,
		Level:       level,
		Points:      lowerKeys(p.Points),
		WeaponSlots: slots,
		Skills:      p.Skills,
		Resources:   p.Resources,
	}, nil
}

func triggersFromYAML(in []yamlTrigger) []types.TriggerDef {
	var out []types.TriggerDef
	for _, t := range in {
		out = append(out, types.TriggerDef{
			Event:           t.Event,
			Priority:        t.Priority,
			Role:            types.Role(strings.ToLower(t.Role)),
			Conditions:      t.Conditions,
			StopPropagation: t.Stop,
		})
	}
	return out
}

func effectsFromYAML(in []yamlEffect) []types.EffectSpec {
	var out []types.EffectSpec
	for _, e := range in {
		power := firstNonEmpty(e.Power, e.Formula, e.Reduction, e.Ratio)
		buffID := e.BuffID
		if buffID == "" {
			buffID = e.Buff
		}
		positive := true
		if e.Positive != nil {
			positive = *e.Positive
		}
		out = append(out, types.EffectSpec{
			Op:             types.Op(strings.ToLower(e.Op)),
			Power:          power,
			Variance:       e.Variance,
			CanCrit:        e.CanCrit,
			CritMultiplier: e.CritMultiplier,
			DamageType:     e.DamageType,
			SelfTarget:     e.SelfTarget,
			IsOwner:        e.IsOwner,
			CanDodge:       e.CanDodge,
			AllowRevive:    e.AllowRevive,
			BuffID:         buffID,
			Stacks:         string(e.Stacks),
			Count:          e.Count,
			Positive:       positive,
			Stat:           strings.ToUpper(e.Stat),
			Duration:       e.Duration,
		})
	}
	return out
}

func firstNonEmpty(vals ...formulaText) string {
	for _, v := range vals {
		if v != "" {
			return string(v)
		}
	}
	return ""
}
