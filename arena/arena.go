// Package arena is the command layer shared by the plain CLI and the TUI.
// A Session turns one line of input into fights against a loaded rule
// table and remembers what the shell needs between lines: the fixed seed,
// report settings, boss health and the last fight for /save.
package arena

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/nathoo/duelcore/adapter"
	"github.com/nathoo/duelcore/engine"
	"github.com/nathoo/duelcore/engine/state"
	"github.com/nathoo/duelcore/engine/unit"
	"github.com/nathoo/duelcore/sim"
	"github.com/nathoo/duelcore/types"
)

// MaxSimFights bounds one sim command.
const MaxSimFights = 10000

// Fighter is one side of the last fight as the status bar shows it.
type Fighter struct {
	Name  string
	HP    int
	MaxHP int
}

// Status summarises the last fight.
type Status struct {
	Kind    string // duel, boss, hunt
	Left    Fighter
	Right   Fighter
	Rounds  int
	Outcome string
}

// Reply is the response to one line of input.
type Reply struct {
	Output []string
	Trace  []string // filled while tracing is on
	Status *Status  // set when a fight was played
	Quit   bool
}

// Session holds everything that survives between commands.
type Session struct {
	Table   *state.RuleTable
	Options engine.Options // Seed 0 draws a fresh seed per fight
	SaveDir string
	Trace   bool
	Logger  *slog.Logger

	bossHP map[string]int
	last   *lastFight
	status *Status
}

type lastFight struct {
	kind  string
	res   engine.Result
	units []*unit.Unit
}

// New creates a session over table with the given fight defaults.
func New(table *state.RuleTable, opts engine.Options) *Session {
	home, _ := os.UserHomeDir()
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		Table:   table,
		Options: opts,
		SaveDir: filepath.Join(home, ".duelcore", "reports"),
		Logger:  logger,
		bossHP:  map[string]int{},
	}
}

// Status returns the last fight's summary, or nil before the first fight.
func (s *Session) Status() *Status { return s.status }

// BossHP returns a boss's persisted health and whether it has been struck.
func (s *Session) BossHP(id string) (int, bool) {
	hp, ok := s.bossHP[id]
	return hp, ok
}

// Step runs one line of input. Lines starting with '/' are meta-commands.
func (s *Session) Step(ctx context.Context, input string) Reply {
	input = strings.TrimSpace(input)
	if input == "" {
		return Reply{}
	}
	if strings.HasPrefix(input, "/") {
		return s.meta(input)
	}

	cmd := ParseCommand(input)
	args := cmd.Args
	var r Reply
	var err error
	switch cmd.Verb {
	case "duel":
		r, err = s.duel(args)
	case "boss":
		r, err = s.boss(args)
	case "hunt":
		r, err = s.hunt(args)
	case "sim":
		r, err = s.simulate(ctx, args)
	case "list":
		r = s.list()
	case "show":
		r, err = s.show(args)
	case "seed":
		r, err = s.setSeed(args)
	case "verbosity":
		r, err = s.setVerbosity(args)
	case "policy":
		r, err = s.setPolicy(args)
	case "help":
		return s.meta("/help")
	default:
		err = fmt.Errorf("unknown command %q, type /help for the list", cmd.Verb)
	}
	if err != nil {
		s.Logger.Debug("command failed", "input", input, "err", err)
		return Reply{Output: []string{"[" + err.Error() + "]"}}
	}
	return r
}

var errUsage = errors.New("usage")

func usage(format string) error {
	return fmt.Errorf("%w: %s", errUsage, format)
}

// contender builds a fresh unit for a player or monster id. Players win
// when both tables use the id.
func (s *Session) contender(id string) (*unit.Unit, error) {
	if p, ok := s.Table.Players[id]; ok {
		return adapter.PlayerUnit(p, s.Table)
	}
	if m, ok := s.Table.Monsters[id]; ok {
		return adapter.MonsterUnit(m, s.Table)
	}
	return nil, &state.ConfigError{Kind: "player or monster", ID: id}
}

// pair builds both contenders, renaming the second on a mirror match.
func (s *Session) pair(a, b string) (*unit.Unit, *unit.Unit, error) {
	left, err := s.contender(a)
	if err != nil {
		return nil, nil, err
	}
	right, err := s.contender(b)
	if err != nil {
		return nil, nil, err
	}
	if left.ID == right.ID {
		mirror(right)
	}
	return left, right, nil
}

func mirror(u *unit.Unit) {
	u.ID += "#2"
	u.Name += " (2)"
}

func (s *Session) options() engine.Options {
	opts := s.Options
	if opts.Seed == 0 {
		opts.Seed = rand.Int63()
	}
	opts.Logger = s.Logger
	return opts
}

func (s *Session) duel(args []string) (Reply, error) {
	if len(args) != 2 {
		return Reply{}, usage("duel <a> <b>")
	}
	a, b, err := s.pair(args[0], args[1])
	if err != nil {
		return Reply{}, err
	}
	res, err := engine.RunDuel(s.Table, a, b, s.options())
	if err != nil {
		return Reply{}, err
	}
	return s.finish("duel", res, a, b), nil
}

func (s *Session) boss(args []string) (Reply, error) {
	if len(args) < 2 || len(args) > 3 {
		return Reply{}, usage("boss <player> <boss> [hp]")
	}
	def, ok := s.Table.Monsters[args[1]]
	if !ok || def.Tag != types.SideBoss {
		return Reply{}, &state.ConfigError{Kind: "boss", ID: args[1]}
	}
	player, err := s.contender(args[0])
	if err != nil {
		return Reply{}, err
	}
	boss, err := adapter.MonsterUnit(def, s.Table)
	if err != nil {
		return Reply{}, err
	}

	hp, struck := s.bossHP[def.ID]
	if len(args) == 3 {
		n, err := strconv.Atoi(args[2])
		if err != nil || n <= 0 {
			return Reply{}, fmt.Errorf("boss hp must be a positive number, got %q", args[2])
		}
		hp, struck = n, true
	}
	if struck {
		boss.SetHealth(hp)
	}

	res, err := engine.RunBossStrike(s.Table, player, boss, s.options())
	if err != nil {
		return Reply{}, err
	}
	r := s.finish("boss", res.Result, player, boss)
	if res.Slain {
		delete(s.bossHP, def.ID)
		r.Output = append(r.Output, fmt.Sprintf("%s is slain! It will return at full strength.", boss.Name))
	} else {
		s.bossHP[def.ID] = res.BossHP
		r.Output = append(r.Output, fmt.Sprintf("%s dealt %d damage; %s has %d/%d HP left.",
			player.Name, res.Dealt, boss.Name, res.BossHP, boss.MaxHP()))
	}
	return r, nil
}

func (s *Session) hunt(args []string) (Reply, error) {
	if len(args) != 2 {
		return Reply{}, usage("hunt <player> <monster>")
	}
	player, err := s.contender(args[0])
	if err != nil {
		return Reply{}, err
	}
	def, ok := s.Table.Monsters[args[1]]
	if !ok || def.Tag == types.SideBoss {
		return Reply{}, &state.ConfigError{Kind: "monster", ID: args[1]}
	}
	monster, err := adapter.MonsterUnit(def, s.Table)
	if err != nil {
		return Reply{}, err
	}
	res, err := engine.RunExpeditionStep(s.Table, player, monster, s.options())
	if err != nil {
		return Reply{}, err
	}
	r := s.finish("hunt", res.Result, player, monster)
	if res.Victory {
		r.Output = append(r.Output, fmt.Sprintf("%s returns with %d/%d HP.", player.Name, res.PlayerHP, player.MaxHP()))
	} else {
		r.Output = append(r.Output, fmt.Sprintf("%s retreats; %s took %d damage.", player.Name, player.Name, res.Taken))
	}
	return r, nil
}

func (s *Session) simulate(ctx context.Context, args []string) (Reply, error) {
	if len(args) != 3 {
		return Reply{}, usage("sim <a> <b> <fights>")
	}
	n, err := strconv.Atoi(args[2])
	if err != nil || n <= 0 || n > MaxSimFights {
		return Reply{}, fmt.Errorf("fight count must be between 1 and %d", MaxSimFights)
	}
	if _, _, err := s.pair(args[0], args[1]); err != nil {
		return Reply{}, err
	}
	opts := s.options()
	opts.Verbosity = engine.VerbosityResult
	opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	sum, err := sim.Run(ctx, sim.Batch{
		Table: s.Table,
		A:     func() (*unit.Unit, error) { return s.contender(args[0]) },
		B: func() (*unit.Unit, error) {
			u, err := s.contender(args[1])
			if err == nil && args[0] == args[1] {
				mirror(u)
			}
			return u, err
		},
		Fights:  n,
		Seed:    opts.Seed,
		Options: opts,
	})
	if err != nil {
		return Reply{}, err
	}
	r := Reply{Output: sum.Lines()}
	if s.Trace {
		r.Trace = []string{fmt.Sprintf("[trace] seeds %d..%d", opts.Seed, opts.Seed+int64(n)-1)}
	}
	return r, nil
}

// finish records a fight for /save and the status bar.
func (s *Session) finish(kind string, res engine.Result, left, right *unit.Unit) Reply {
	s.last = &lastFight{kind: kind, res: res, units: []*unit.Unit{left, right}}
	outcome := ""
	if n := len(res.Log); n > 0 {
		outcome = res.Log[n-1]
	}
	s.status = &Status{
		Kind:    kind,
		Left:    Fighter{Name: left.Name, HP: left.HP(), MaxHP: left.MaxHP()},
		Right:   Fighter{Name: right.Name, HP: right.HP(), MaxHP: right.MaxHP()},
		Rounds:  res.Rounds,
		Outcome: outcome,
	}
	r := Reply{Output: res.Log, Status: s.status}
	if s.Trace {
		r.Trace = []string{
			fmt.Sprintf("[trace] fight %s seed=%d", res.ID, res.Seed),
			fmt.Sprintf("[trace] events=%d truncated=%d blocked=%d elapsed=%s",
				res.Events, res.Truncated, res.Blocked, res.Duration),
		}
	}
	return r
}

func (s *Session) list() Reply {
	var out []string
	section := func(title string, ids []string) {
		if len(ids) == 0 {
			return
		}
		out = append(out, title+": "+strings.Join(ids, ", "))
	}
	var monsters, bosses []string
	for _, id := range state.SortedIDs(s.Table.Monsters) {
		if s.Table.Monsters[id].Tag == types.SideBoss {
			bosses = append(bosses, id)
		} else {
			monsters = append(monsters, id)
		}
	}
	section("Players", state.SortedIDs(s.Table.Players))
	section("Monsters", monsters)
	section("Bosses", bosses)
	section("Skills", state.SortedIDs(s.Table.Skills))
	section("Buffs", state.SortedIDs(s.Table.Buffs))
	if len(out) == 0 {
		out = []string{"The rule table is empty."}
	}
	return Reply{Output: out}
}

func (s *Session) show(args []string) (Reply, error) {
	if len(args) != 1 {
		return Reply{}, usage("show <id>")
	}
	id := args[0]
	if p, ok := s.Table.Players[id]; ok {
		u, err := adapter.PlayerUnit(p, s.Table)
		if err != nil {
			return Reply{}, err
		}
		out := []string{
			fmt.Sprintf("%s (player, level %d, gear score %d)", u.Name, p.Level, adapter.GearScore(p.WeaponSlots)),
			statLine(u.Stats()),
			"Skills: " + skillNames(u),
		}
		return Reply{Output: out}, nil
	}
	if m, ok := s.Table.Monsters[id]; ok {
		u, err := adapter.MonsterUnit(m, s.Table)
		if err != nil {
			return Reply{}, err
		}
		out := []string{fmt.Sprintf("%s (%s, level %d)", u.Name, u.Side, m.Level), statLine(u.Stats())}
		if hp, ok := s.bossHP[id]; ok {
			out = append(out, fmt.Sprintf("Wounded: %d/%d HP", hp, u.MaxHP()))
		}
		out = append(out, "Skills: "+skillNames(u))
		return Reply{Output: out}, nil
	}
	if sk, ok := s.Table.Skills[id]; ok {
		out := []string{fmt.Sprintf("%s (%s skill)", sk.Name, sk.Kind)}
		if sk.Description != "" {
			out = append(out, sk.Description)
		}
		if sk.Cooldown > 0 {
			out = append(out, fmt.Sprintf("Cooldown: %d", sk.Cooldown))
		}
		for _, tr := range sk.Triggers {
			out = append(out, "On "+tr.Event+conditionText(tr.Conditions))
		}
		for _, e := range sk.Effects {
			out = append(out, "  "+effectText(e))
		}
		return Reply{Output: out}, nil
	}
	if b, ok := s.Table.Buffs[id]; ok {
		kind := "debuff"
		if b.Positive {
			kind = "buff"
		}
		out := []string{fmt.Sprintf("%s (%s, %s, max %d, %s)", b.Name, kind, durationText(b.Duration), b.MaxStack, b.StackMode)}
		keys := make([]string, 0, len(b.Modifiers))
		for k := range b.Modifiers {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			out = append(out, fmt.Sprintf("  %s %+g per stack", k, b.Modifiers[k]))
		}
		for _, e := range b.Effects {
			out = append(out, "  "+effectText(e))
		}
		return Reply{Output: out}, nil
	}
	return Reply{}, fmt.Errorf("nothing called %q", id)
}

func statLine(st unit.Stats) string {
	return fmt.Sprintf("HP %d  ATK %.0f  DEF %.0f  AGI %.0f  INT %.0f  CRIT %.0f%%",
		st.MaxHP, st.ATK, st.DEF, st.AGI, st.INT, st.CRIT*100)
}

func skillNames(u *unit.Unit) string {
	if len(u.Skills()) == 0 {
		return "none"
	}
	names := make([]string, len(u.Skills()))
	for i, slot := range u.Skills() {
		names[i] = slot.Def.Name
	}
	return strings.Join(names, ", ")
}

func conditionText(conds []string) string {
	if len(conds) == 0 {
		return ""
	}
	return " when " + strings.Join(conds, " and ")
}

func effectText(e types.EffectSpec) string {
	switch {
	case e.BuffID != "":
		return fmt.Sprintf("%s %s", e.Op, e.BuffID)
	case e.Stat != "":
		return fmt.Sprintf("%s %s %s", e.Op, e.Stat, e.Power)
	case e.Power != "":
		return fmt.Sprintf("%s %s", e.Op, e.Power)
	}
	return string(e.Op)
}

func durationText(d int) string {
	if d < 0 {
		return "permanent"
	}
	return fmt.Sprintf("%d turns", d)
}

func (s *Session) setSeed(args []string) (Reply, error) {
	if len(args) != 1 {
		if s.Options.Seed == 0 {
			return Reply{Output: []string{"[Seed: random per fight]"}}, nil
		}
		return Reply{Output: []string{fmt.Sprintf("[Seed: %d]", s.Options.Seed)}}, nil
	}
	n, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return Reply{}, fmt.Errorf("seed must be a number, got %q", args[0])
	}
	s.Options.Seed = n
	if n == 0 {
		return Reply{Output: []string{"[Seed cleared; each fight draws its own.]"}}, nil
	}
	return Reply{Output: []string{fmt.Sprintf("[Seed fixed at %d.]", n)}}, nil
}

func (s *Session) setVerbosity(args []string) (Reply, error) {
	if len(args) != 1 {
		return Reply{}, usage("verbosity full|summary|result")
	}
	v, err := engine.ParseVerbosity(args[0])
	if err != nil {
		return Reply{}, err
	}
	s.Options.Verbosity = v
	return Reply{Output: []string{fmt.Sprintf("[Verbosity: %s]", v)}}, nil
}

func (s *Session) setPolicy(args []string) (Reply, error) {
	if len(args) != 1 {
		return Reply{}, usage("policy alternate|initiative|list")
	}
	p := engine.Policy(strings.ToLower(args[0]))
	switch p {
	case engine.PolicyAlternate, engine.PolicyInitiative, engine.PolicyList:
	default:
		return Reply{}, fmt.Errorf("unknown policy %q (alternate, initiative, list)", args[0])
	}
	s.Options.Policy = p
	return Reply{Output: []string{fmt.Sprintf("[Action order: %s]", p)}}, nil
}
