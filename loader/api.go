package loader

import (
	lua "github.com/yuin/gopher-lua"

	"github.com/nathoo/duelcore/types"
)

// registerAPI registers all Lua constructors and helpers as globals.
func registerAPI(L *lua.LState, coll *collector) {
	registerConstructors(L, coll)
	registerTriggerHelpers(L)
	registerEffectHelpers(L)
}

// curried returns a constructor used as Name "id" { ... }.
func curried(coll *collector, list *[]rawDef) lua.LGFunction {
	return func(L *lua.LState) int {
		id := L.CheckString(1)
		L.Push(L.NewFunction(func(L *lua.LState) int {
			tbl := L.CheckTable(1)
			coll.add(list, id, tbl)
			return 0
		}))
		return 1
	}
}

func registerConstructors(L *lua.LState, coll *collector) {
	// Skill "id" { ... }
	L.SetGlobal("Skill", L.NewFunction(curried(coll, &coll.skills)))
	// Buff "id" { ... }
	L.SetGlobal("Buff", L.NewFunction(curried(coll, &coll.buffs)))
	// Monster "id" { ... }, Boss "id" { ... } sets tag = "boss".
	L.SetGlobal("Monster", L.NewFunction(curried(coll, &coll.monsters)))
	L.SetGlobal("Boss", L.NewFunction(func(L *lua.LState) int {
		id := L.CheckString(1)
		L.Push(L.NewFunction(func(L *lua.LState) int {
			tbl := L.CheckTable(1)
			tbl.RawSetString("tag", lua.LString(types.SideBoss))
			coll.add(&coll.monsters, id, tbl)
			return 0
		}))
		return 1
	}))
	// Player "id" { ... }
	L.SetGlobal("Player", L.NewFunction(curried(coll, &coll.players)))
	// EventLimit "id" { event = "...", max_count = n }
	L.SetGlobal("EventLimit", L.NewFunction(curried(coll, &coll.limits)))

	// EquipRule { when = { str_gte = 12 }, give = { ... } }
	L.SetGlobal("EquipRule", L.NewFunction(func(L *lua.LState) int {
		tbl := L.CheckTable(1)
		coll.add(&coll.equip, "", tbl)
		return 0
	}))
}

func registerTriggerHelpers(L *lua.LState) {
	// On("event", { role = "...", priority = n, conditions = { ... } })
	L.SetGlobal("On", L.NewFunction(func(L *lua.LState) int {
		event := L.CheckString(1)
		tbl := L.OptTable(2, L.NewTable())
		tbl.RawSetString("event", lua.LString(event))
		L.Push(tbl)
		return 1
	}))
}

// effectHelper builds Name(value, { opts }) returning an effect table with
// op set and value stored under key.
func effectHelper(op types.Op, key string) lua.LGFunction {
	return func(L *lua.LState) int {
		value := L.CheckAny(1)
		tbl := L.OptTable(2, L.NewTable())
		tbl.RawSetString("op", lua.LString(op))
		tbl.RawSetString(key, value)
		L.Push(tbl)
		return 1
	}
}

func registerEffectHelpers(L *lua.LState) {
	helpers := []struct {
		name string
		op   types.Op
		key  string
	}{
		{"Damage", types.OpDamage, "power"},
		{"Reduce", types.OpDamageReduction, "power"},
		{"AddDamage", types.OpAddDamage, "power"},
		{"Reflect", types.OpReflectDamage, "power"},
		{"Leech", types.OpLeech, "power"},
		{"Heal", types.OpHeal, "power"},
		{"ApplyBuff", types.OpApplyBuff, "buff_id"},
		{"AddBuff", types.OpAddBuff, "buff_id"},
		{"Dispel", types.OpDispel, "count"},
	}
	for _, h := range helpers {
		L.SetGlobal(h.name, L.NewFunction(effectHelper(h.op, h.key)))
	}

	// StatPct("ATK", "0.2", { duration = 2 })
	L.SetGlobal("StatPct", L.NewFunction(func(L *lua.LState) int {
		stat := L.CheckString(1)
		power := L.CheckAny(2)
		tbl := L.OptTable(3, L.NewTable())
		tbl.RawSetString("op", lua.LString(types.OpStatPct))
		tbl.RawSetString("stat", lua.LString(stat))
		tbl.RawSetString("power", power)
		L.Push(tbl)
		return 1
	}))
}
