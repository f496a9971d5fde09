package loader

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	lua "github.com/yuin/gopher-lua"

	"github.com/nathoo/duelcore/engine/state"
)

// collector accumulates Lua definitions during file execution.
type collector struct {
	skills   []rawDef
	buffs    []rawDef
	monsters []rawDef
	players  []rawDef
	equip    []rawDef
	limits   []rawDef
	file     string // file being executed
}

// rawDef holds a constructor's table before compilation.
type rawDef struct {
	id     string
	table  *lua.LTable
	origin string
}

func (c *collector) add(list *[]rawDef, id string, tbl *lua.LTable) {
	*list = append(*list, rawDef{id: id, table: tbl, origin: c.file})
}

// Load reads every .lua and .yaml file in dir, compiles them into one rule
// table, validates references and formulas, and returns the table with its
// formulas compiled. The Lua VM is discarded after loading.
func Load(dir string) (*state.RuleTable, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading rules directory %s: %w", dir, err)
	}

	var luaFiles, yamlFiles []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".lua":
			luaFiles = append(luaFiles, e.Name())
		case ".yaml", ".yml":
			yamlFiles = append(yamlFiles, e.Name())
		}
	}
	if len(luaFiles)+len(yamlFiles) == 0 {
		return nil, fmt.Errorf("no .lua or .yaml files found in %s", dir)
	}
	sort.Strings(luaFiles)
	sort.Strings(yamlFiles)

	b := &bundle{}
	if len(luaFiles) > 0 {
		coll, err := runLua(dir, luaFiles)
		if err != nil {
			return nil, err
		}
		if err := compile(coll, b); err != nil {
			return nil, fmt.Errorf("compiling rule tables: %w", err)
		}
	}
	for _, f := range yamlFiles {
		if err := loadYAML(filepath.Join(dir, f), b); err != nil {
			return nil, err
		}
	}

	table, ve := validate(b)
	for _, w := range ve.Warnings {
		slog.Warn("rule table", "warning", w)
	}
	if len(ve.Errors) > 0 {
		return nil, ve
	}
	slog.Debug("rule table loaded", "dir", dir,
		"skills", len(table.Skills), "buffs", len(table.Buffs),
		"monsters", len(table.Monsters), "players", len(table.Players))
	return table, nil
}

func runLua(dir string, files []string) (*collector, error) {
	// Create sandboxed VM.
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	defer L.Close()

	openSafeLibs(L)
	sandbox(L)

	coll := &collector{}
	registerAPI(L, coll)

	for _, f := range files {
		coll.file = f
		if err := L.DoFile(filepath.Join(dir, f)); err != nil {
			return nil, fmt.Errorf("executing %s: %w", f, err)
		}
	}
	return coll, nil
}

// openSafeLibs opens only the safe subset of Lua standard libraries.
func openSafeLibs(L *lua.LState) {
	// Base library (print, type, tostring, tonumber, pairs, ipairs, etc.)
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)
}

// sandbox removes dangerous globals and functions.
func sandbox(L *lua.LState) {
	dangerous := []string{
		"dofile", "loadfile", "load", "loadstring",
		"rawset", "rawget", "rawequal",
		"collectgarbage",
	}
	for _, name := range dangerous {
		L.SetGlobal(name, lua.LNil)
	}

	// Rule files are data; randomness belongs to the fight's seeded RNG.
	if mathTbl := L.GetGlobal("math"); mathTbl != lua.LNil {
		if tbl, ok := mathTbl.(*lua.LTable); ok {
			tbl.RawSetString("random", lua.LNil)
			tbl.RawSetString("randomseed", lua.LNil)
		}
	}
}
