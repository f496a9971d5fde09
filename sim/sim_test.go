package sim

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nathoo/duelcore/engine"
	"github.com/nathoo/duelcore/engine/state"
	"github.com/nathoo/duelcore/engine/unit"
	"github.com/nathoo/duelcore/types"
)

func factory(id, name string, side types.Side, s unit.Stats) Factory {
	return func() (*unit.Unit, error) {
		return unit.New(id, name, side, s), nil
	}
}

func batch(fights, workers int) Batch {
	return Batch{
		Table:   state.NewRuleTable(),
		A:       factory("knight", "Knight", types.SidePlayer, unit.Stats{ATK: 40, DEF: 20, AGI: 10, MaxHP: 300}),
		B:       factory("rat", "Rat", types.SideMonster, unit.Stats{ATK: 8, AGI: 10, MaxHP: 60}),
		Fights:  fights,
		Seed:    7,
		Workers: workers,
		Options: engine.Options{Verbosity: engine.VerbosityResult},
	}
}

func TestRun_Aggregates(t *testing.T) {
	s, err := Run(context.Background(), batch(20, 4))
	require.NoError(t, err)

	assert.Equal(t, 20, s.Fights)
	assert.Len(t, s.Results, 20)
	assert.Equal(t, 20, s.Wins["knight"], "the knight outclasses the rat")
	assert.Equal(t, 1.0, s.WinRate("knight"))
	assert.Zero(t, s.Draws)
	assert.Equal(t, "Rat", s.Names["rat"])
	assert.Greater(t, s.AvgRounds(), 0.0)
	for i, r := range s.Results {
		assert.Equal(t, int64(7+i), r.Seed)
	}
	assert.Contains(t, s.Lines()[0], "20 fights")
}

func TestRun_SchedulingDoesNotChangeOutcome(t *testing.T) {
	even := Batch{
		Table:   state.NewRuleTable(),
		A:       factory("a", "A", types.SidePlayer, unit.Stats{ATK: 30, DEF: 5, AGI: 10, CRIT: 0.2, MaxHP: 150}),
		B:       factory("b", "B", types.SideMonster, unit.Stats{ATK: 30, DEF: 5, AGI: 10, CRIT: 0.2, MaxHP: 150}),
		Fights:  30,
		Seed:    100,
		Options: engine.Options{Verbosity: engine.VerbositySummary},
	}
	even.Workers = 1
	serial, err := Run(context.Background(), even)
	require.NoError(t, err)
	even.Workers = 8
	parallel, err := Run(context.Background(), even)
	require.NoError(t, err)

	assert.Equal(t, serial.Wins, parallel.Wins)
	assert.Equal(t, serial.Draws, parallel.Draws)
	assert.Equal(t, serial.Rounds, parallel.Rounds)
	for i := range serial.Results {
		assert.Equal(t, serial.Results[i].Log, parallel.Results[i].Log, "fight %d", i)
	}
}

func TestRun_Errors(t *testing.T) {
	_, err := Run(context.Background(), Batch{})
	assert.Error(t, err)

	_, err = Run(context.Background(), batch(0, 1))
	assert.Error(t, err)

	broken := batch(5, 2)
	boom := errors.New("no such player")
	broken.B = func() (*unit.Unit, error) { return nil, boom }
	_, err = Run(context.Background(), broken)
	assert.ErrorIs(t, err, boom)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Run(ctx, batch(5, 1))
	assert.ErrorIs(t, err, context.Canceled)
}
