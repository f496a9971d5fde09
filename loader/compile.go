// Package loader loads Lua and YAML rule tables into a state.RuleTable at
// startup. The Lua VM is discarded after loading; fights never run Lua.
package loader

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	lua "github.com/yuin/gopher-lua"

	"github.com/nathoo/duelcore/adapter"
	"github.com/nathoo/duelcore/types"
)

// entry is a compiled definition with the file it came from.
type entry[T any] struct {
	def    T
	origin string
}

// bundle gathers every definition from every file before validation.
type bundle struct {
	skills   []entry[*types.SkillDef]
	buffs    []entry[*types.BuffDef]
	monsters []entry[*types.MonsterDef]
	players  []entry[*types.PlayerProfile]
	equip    []entry[types.EquipRule]
	limits   []entry[types.EventLimit]
}

// getString returns a string field from a Lua table, or "" if missing.
func getString(tbl *lua.LTable, key string) string {
	v := tbl.RawGetString(key)
	if s, ok := v.(lua.LString); ok {
		return string(s)
	}
	return ""
}

// getFormula returns the first present key as formula text. Numbers are
// accepted and formatted.
func getFormula(tbl *lua.LTable, keys ...string) string {
	for _, key := range keys {
		switch v := tbl.RawGetString(key).(type) {
		case lua.LString:
			return string(v)
		case lua.LNumber:
			return strconv.FormatFloat(float64(v), 'g', -1, 64)
		}
	}
	return ""
}

// getBool returns a bool field from a Lua table, or the default if missing.
func getBool(tbl *lua.LTable, key string, def bool) bool {
	v := tbl.RawGetString(key)
	if b, ok := v.(lua.LBool); ok {
		return bool(b)
	}
	return def
}

// getOptBool returns nil when key is absent.
func getOptBool(tbl *lua.LTable, key string) *bool {
	if b, ok := tbl.RawGetString(key).(lua.LBool); ok {
		v := bool(b)
		return &v
	}
	return nil
}

// getNumber returns the first present numeric key, or 0.
func getNumber(tbl *lua.LTable, keys ...string) float64 {
	for _, key := range keys {
		if n, ok := tbl.RawGetString(key).(lua.LNumber); ok {
			return float64(n)
		}
	}
	return 0
}

// getInt returns the first present numeric key as an int, or 0.
func getInt(tbl *lua.LTable, keys ...string) int {
	return int(getNumber(tbl, keys...))
}

// getOptInt returns def when key is absent.
func getOptInt(tbl *lua.LTable, key string, def int) int {
	if n, ok := tbl.RawGetString(key).(lua.LNumber); ok {
		return int(n)
	}
	return def
}

// getTable returns a table field from a Lua table, or nil if missing.
func getTable(tbl *lua.LTable, key string) *lua.LTable {
	v := tbl.RawGetString(key)
	if t, ok := v.(*lua.LTable); ok {
		return t
	}
	return nil
}

// arrayTables returns the table elements of a Lua array in order.
func arrayTables(tbl *lua.LTable) []*lua.LTable {
	if tbl == nil {
		return nil
	}
	var out []*lua.LTable
	for i := 1; i <= tbl.MaxN(); i++ {
		if t, ok := tbl.RawGetInt(i).(*lua.LTable); ok {
			out = append(out, t)
		}
	}
	return out
}

// stringList accepts a single string or an array of strings or numbers.
func stringList(v lua.LValue) []string {
	switch val := v.(type) {
	case lua.LString:
		return []string{string(val)}
	case *lua.LTable:
		var out []string
		for i := 1; i <= val.MaxN(); i++ {
			switch item := val.RawGetInt(i).(type) {
			case lua.LString:
				out = append(out, string(item))
			case lua.LNumber:
				out = append(out, strconv.FormatFloat(float64(item), 'g', -1, 64))
			}
		}
		return out
	}
	return nil
}

// tableToIntMap converts a Lua table to a map[string]int.
func tableToIntMap(tbl *lua.LTable) map[string]int {
	if tbl == nil {
		return nil
	}
	m := map[string]int{}
	tbl.ForEach(func(k, v lua.LValue) {
		ks, ok := k.(lua.LString)
		if !ok {
			return
		}
		if n, ok := v.(lua.LNumber); ok {
			m[string(ks)] = int(n)
		}
	})
	return m
}

// tableToFloatMap converts a Lua table to a map[string]float64.
func tableToFloatMap(tbl *lua.LTable) map[string]float64 {
	if tbl == nil {
		return nil
	}
	m := map[string]float64{}
	tbl.ForEach(func(k, v lua.LValue) {
		ks, ok := k.(lua.LString)
		if !ok {
			return
		}
		if n, ok := v.(lua.LNumber); ok {
			m[string(ks)] = float64(n)
		}
	})
	return m
}

// compile converts all collected Lua data into the bundle.
func compile(coll *collector, b *bundle) error {
	for _, raw := range coll.skills {
		b.skills = append(b.skills, entry[*types.SkillDef]{compileSkill(raw), raw.origin})
	}
	for _, raw := range coll.buffs {
		b.buffs = append(b.buffs, entry[*types.BuffDef]{compileBuff(raw), raw.origin})
	}
	for _, raw := range coll.monsters {
		b.monsters = append(b.monsters, entry[*types.MonsterDef]{compileMonster(raw), raw.origin})
	}
	for _, raw := range coll.players {
		p, err := compilePlayer(raw)
		if err != nil {
			return fmt.Errorf("compiling player %s: %w", raw.id, err)
		}
		b.players = append(b.players, entry[*types.PlayerProfile]{p, raw.origin})
	}
	for _, raw := range coll.equip {
		r, err := compileEquipRule(raw.table)
		if err != nil {
			return fmt.Errorf("compiling equip rule in %s: %w", raw.origin, err)
		}
		b.equip = append(b.equip, entry[types.EquipRule]{r, raw.origin})
	}
	for _, raw := range coll.limits {
		b.limits = append(b.limits, entry[types.EventLimit]{types.EventLimit{
			ID:        raw.id,
			EventType: getString(raw.table, "event"),
			MaxCount:  getOptInt(raw.table, "max_count", -1),
		}, raw.origin})
	}
	return nil
}

func compileSkill(raw rawDef) *types.SkillDef {
	tbl := raw.table
	kind := getString(tbl, "kind")
	if kind == "" {
		kind = getString(tbl, "type")
	}
	def := &types.SkillDef{
		ID:          raw.id,
		Name:        getString(tbl, "name"),
		Kind:        types.SkillKind(strings.ToLower(kind)),
		Description: getString(tbl, "description"),
		Target:      getString(tbl, "target"),
		Effects:     compileEffects(getTable(tbl, "effects")),
		Cooldown:    getInt(tbl, "cooldown", "cd"),
		Cost:        tableToIntMap(getTable(tbl, "cost")),
	}
	def.Triggers = compileTriggers(getTable(tbl, "triggers"))
	if ev := getString(tbl, "trigger"); ev != "" {
		def.Triggers = append(def.Triggers, types.TriggerDef{Event: ev})
	}
	normalizeSkill(def)
	return def
}

func compileBuff(raw rawDef) *types.BuffDef {
	tbl := raw.table
	stack := getString(tbl, "stack")
	if stack == "" {
		stack = getString(tbl, "stack_type")
	}
	def := &types.BuffDef{
		ID:          raw.id,
		Name:        getString(tbl, "name"),
		Positive:    getBool(tbl, "positive", false),
		Modifiers:   tableToFloatMap(getTable(tbl, "modifiers")),
		Triggers:    compileTriggers(getTable(tbl, "triggers")),
		Effects:     compileEffects(getTable(tbl, "effects")),
		Duration:    getOptInt(tbl, "duration", 1),
		MaxStack:    getOptInt(tbl, "max_stack", 1),
		StackMode:   types.StackMode(strings.ToUpper(stack)),
		Dispellable: getBool(tbl, "dispellable", true),
		Resistable:  getBool(tbl, "resistable", false),
		TurnEnd:     types.TickDelta{Duration: -1},
	}
	if te := getTable(tbl, "turn_end"); te != nil {
		_, authored := te.RawGetString("duration").(lua.LNumber)
		def.TurnEnd = types.TickDelta{
			Duration:    getOptInt(te, "duration", -1),
			Stack:       getOptInt(te, "stack", 0),
			DurationSet: authored,
		}
	}
	normalizeBuff(def)
	return def
}

func compileMonster(raw rawDef) *types.MonsterDef {
	tbl := raw.table
	return &types.MonsterDef{
		ID:        raw.id,
		Name:      getString(tbl, "name"),
		Tag:       types.Side(strings.ToLower(getString(tbl, "tag"))),
		Level:     getInt(tbl, "level"),
		ATK:       getNumber(tbl, "ATK", "atk"),
		DEF:       getNumber(tbl, "DEF", "def"),
		AGI:       getNumber(tbl, "AGI", "agi", "SPD", "spd"),
		INT:       getNumber(tbl, "INT", "int"),
		MaxHP:     getInt(tbl, "MAX_HP", "max_hp", "HP", "hp"),
		Crit:      getNumber(tbl, "CRIT", "crit"),
		Skills:    stringList(tbl.RawGetString("skills")),
		Resources: tableToIntMap(getTable(tbl, "resources")),
	}
}

func compilePlayer(raw rawDef) (*types.PlayerProfile, error) {
	tbl := raw.table
	p := &types.PlayerProfile{
		ID:        raw.id,
		Name:      getString(tbl, "name"),
		Level:     getOptInt(tbl, "level", 1),
		Points:    lowerKeys(tableToIntMap(getTable(tbl, "points"))),
		Skills:    stringList(tbl.RawGetString("skills")),
		Resources: tableToIntMap(getTable(tbl, "resources")),
	}
	slots, err := weaponSlots(stringList(tbl.RawGetString("weapon")))
	if err != nil {
		return nil, err
	}
	p.WeaponSlots = slots
	return p, nil
}

// weaponSlots parses up to three quality letters or slot numbers.
func weaponSlots(qualities []string) ([3]int, error) {
	var slots [3]int
	if len(qualities) > len(slots) {
		return slots, fmt.Errorf("weapon has %d slots, at most 3 allowed", len(qualities))
	}
	for i, q := range qualities {
		if n, err := strconv.Atoi(q); err == nil {
			slots[i] = n
			continue
		}
		n, err := adapter.ParseQuality(q)
		if err != nil {
			return slots, err
		}
		slots[i] = n
	}
	return slots, nil
}

func compileEquipRule(tbl *lua.LTable) (types.EquipRule, error) {
	when := tableToIntMap(getTable(tbl, "when"))
	return equipRule(when, stringList(tbl.RawGetString("give")))
}

// equipRule builds a rule from a "when" map of <attr>_gte, score_gte and
// score_lte thresholds.
func equipRule(when map[string]int, give []string) (types.EquipRule, error) {
	r := types.EquipRule{Give: give}
	keys := make([]string, 0, len(when))
	for k := range when {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := when[k]
		key := strings.ToLower(k)
		switch {
		case key == "score_gte":
			r.ScoreGTE = &v
		case key == "score_lte":
			r.ScoreLTE = &v
		case strings.HasSuffix(key, "_gte"):
			if r.AttrGTE == nil {
				r.AttrGTE = map[string]int{}
			}
			r.AttrGTE[strings.TrimSuffix(key, "_gte")] = v
		default:
			return r, fmt.Errorf("unknown equip threshold %q", k)
		}
	}
	return r, nil
}

func compileTriggers(tbl *lua.LTable) []types.TriggerDef {
	var out []types.TriggerDef
	for _, t := range arrayTables(tbl) {
		out = append(out, types.TriggerDef{
			Event:           getString(t, "event"),
			Priority:        getInt(t, "priority"),
			Role:            types.Role(strings.ToLower(getString(t, "role"))),
			Conditions:      stringList(t.RawGetString("conditions")),
			StopPropagation: getBool(t, "stop", false) || getBool(t, "stop_propagation", false),
		})
	}
	return out
}

func compileEffects(tbl *lua.LTable) []types.EffectSpec {
	var out []types.EffectSpec
	for _, t := range arrayTables(tbl) {
		out = append(out, compileEffect(t))
	}
	return out
}

func compileEffect(tbl *lua.LTable) types.EffectSpec {
	buffID := getString(tbl, "buff_id")
	if buffID == "" {
		buffID = getString(tbl, "buff")
	}
	return types.EffectSpec{
		Op:             types.Op(strings.ToLower(getString(tbl, "op"))),
		Power:          getFormula(tbl, "power", "formula", "reduction", "ratio"),
		Variance:       getNumber(tbl, "variance"),
		CanCrit:        getBool(tbl, "can_crit", false),
		CritMultiplier: getNumber(tbl, "crit_multiplier"),
		DamageType:     getString(tbl, "damage_type"),
		SelfTarget:     getBool(tbl, "self_target", false),
		IsOwner:        getOptBool(tbl, "is_owner"),
		CanDodge:       getBool(tbl, "can_dodge", false),
		AllowRevive:    getBool(tbl, "allow_revive", false),
		BuffID:         buffID,
		Stacks:         getFormula(tbl, "stacks"),
		Count:          getInt(tbl, "count"),
		Positive:       getBool(tbl, "positive", true),
		Stat:           strings.ToUpper(getString(tbl, "stat")),
		Duration:       getInt(tbl, "duration"),
	}
}

// normalizeSkill fills defaults shared by every source format.
func normalizeSkill(def *types.SkillDef) {
	if def.Kind == "" {
		def.Kind = types.SkillActive
	}
	if def.Name == "" {
		def.Name = def.ID
	}
}

// normalizeBuff fills defaults shared by every source format.
func normalizeBuff(def *types.BuffDef) {
	if def.StackMode == "" {
		def.StackMode = types.StackDuration
	}
	if def.MaxStack < 1 {
		def.MaxStack = 1
	}
	if def.Name == "" {
		def.Name = def.ID
	}
}

func lowerKeys(m map[string]int) map[string]int {
	if m == nil {
		return nil
	}
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[strings.ToLower(k)] = v
	}
	return out
}
