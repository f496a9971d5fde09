// Package engine runs fights. A Battle wires one fight's bus, event log
// and random source around the units and a rule table, then plays rounds
// until one side is left standing or the round limit is reached.
// RunDuel, RunBossStrike and RunExpeditionStep are the entry points.
package engine

import (
	"time"

	"github.com/google/uuid"

	"github.com/nathoo/duelcore/engine/state"
	"github.com/nathoo/duelcore/engine/unit"
	"github.com/nathoo/duelcore/types"
)

// Result is the outcome of a finished fight.
type Result struct {
	ID        uuid.UUID
	Seed      int64
	Winner    string // unit id, empty on a draw
	Draw      bool
	TimedOut  bool
	Rounds    int
	Log       []string
	FinalHP   map[string]int
	Events    int
	Truncated int
	Blocked   int
	Duration  time.Duration
}

// BossResult adds what a strike did to a boss whose health persists
// between strikes.
type BossResult struct {
	Result
	BossHP  int  // remaining
	Dealt   int  // health the boss lost in this strike
	Slain   bool // the strike brought the boss down
	Dealers map[string]int
}

// ExpeditionResult adds what a hunt cost both sides.
type ExpeditionResult struct {
	Result
	Victory   bool // the player won
	PlayerHP  int
	MonsterHP int
	Dealt     int // damage the player dealt
	Taken     int // damage the monster dealt
}

// Winner returns the winning unit, or nil.
func (b *Battle) Winner() *unit.Unit { return b.winner }

// Truncated returns how many events were dropped by the per-action cap.
func (b *Battle) Truncated() int { return b.truncated }

// Blocked returns how many dispatches a rate limit stopped.
func (b *Battle) Blocked() int { return b.blocked }

// Dealt returns the settled damage id dealt so far.
func (b *Battle) Dealt(id string) int { return b.dealt[id] }

// TimedOut reports whether the fight ended on the round limit.
func (b *Battle) TimedOut() bool { return b.timedOut }

// Result summarises a finished fight.
func (b *Battle) Result() Result {
	r := Result{
		ID:        uuid.New(),
		Seed:      b.rng.Seed(),
		Draw:      b.winner == nil,
		TimedOut:  b.timedOut,
		Rounds:    b.round,
		Log:       b.Report(),
		FinalHP:   map[string]int{},
		Events:    b.log.Len(),
		Truncated: b.truncated,
		Blocked:   b.blocked,
	}
	if b.winner != nil {
		r.Winner = b.winner.ID
	}
	for _, u := range b.units {
		r.FinalHP[u.ID] = u.HP()
	}
	return r
}

func run(table *state.RuleTable, units []*unit.Unit, opts Options) (*Battle, Result, error) {
	start := time.Now()
	b, err := NewBattle(table, units, opts)
	if err != nil {
		return nil, Result{}, err
	}
	b.Run()
	res := b.Result()
	res.Duration = time.Since(start)
	b.logger.Info("fight finished",
		"id", res.ID, "winner", res.Winner, "rounds", res.Rounds,
		"events", res.Events, "truncated", res.Truncated, "elapsed", res.Duration)
	return b, res, nil
}

// RunDuel plays a fight between two units. Two units of the same side,
// as in a player duel, are split so they face each other: b fights as
// SideRival and gets its own side back when RunDuel returns.
func RunDuel(table *state.RuleTable, a, b *unit.Unit, opts Options) (Result, error) {
	if side := b.Side; a.Side == side {
		b.Side = types.SideRival
		defer func() { b.Side = side }()
	}
	_, res, err := run(table, []*unit.Unit{a, b}, opts)
	return res, err
}

// RunBossStrike plays one strike against a boss. The boss starts at its
// current health, so the caller sets it from the persisted value first.
func RunBossStrike(table *state.RuleTable, player, boss *unit.Unit, opts Options) (BossResult, error) {
	before := boss.HP()
	b, res, err := run(table, []*unit.Unit{player, boss}, opts)
	if err != nil {
		return BossResult{}, err
	}
	return BossResult{
		Result:  res,
		BossHP:  boss.HP(),
		Dealt:   max(0, before-boss.HP()),
		Slain:   before > 0 && !boss.Alive(),
		Dealers: map[string]int{player.ID: b.Dealt(player.ID)},
	}, nil
}

// RunExpeditionStep plays one wild encounter.
func RunExpeditionStep(table *state.RuleTable, player, monster *unit.Unit, opts Options) (ExpeditionResult, error) {
	b, res, err := run(table, []*unit.Unit{player, monster}, opts)
	if err != nil {
		return ExpeditionResult{}, err
	}
	return ExpeditionResult{
		Result:    res,
		Victory:   res.Winner == player.ID,
		PlayerHP:  player.HP(),
		MonsterHP: monster.HP(),
		Dealt:     b.Dealt(player.ID),
		Taken:     b.Dealt(monster.ID),
	}, nil
}
