package arena

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nathoo/duelcore/engine"
	"github.com/nathoo/duelcore/loader"
)

func newTestSession(t *testing.T) *Session {
	t.Helper()
	table, err := loader.Load("../content")
	require.NoError(t, err)
	s := New(table, engine.Options{
		Seed:      11,
		Verbosity: engine.VerbositySummary,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	s.SaveDir = t.TempDir()
	return s
}

func step(s *Session, input string) Reply {
	return s.Step(context.Background(), input)
}

func joined(r Reply) string { return strings.Join(r.Output, "\n") }

func TestSession_List(t *testing.T) {
	s := newTestSession(t)
	out := joined(step(s, "list"))
	assert.Contains(t, out, "Players: hero, rogue, squire")
	assert.Contains(t, out, "Bosses: warlord")
	assert.Contains(t, out, "POWER_STRIKE")
}

func TestSession_Duel(t *testing.T) {
	s := newTestSession(t)
	r := step(s, "duel hero rogue")

	require.NotNil(t, r.Status)
	assert.Equal(t, "duel", r.Status.Kind)
	assert.Equal(t, "Hero", r.Status.Left.Name)
	assert.Equal(t, "Rogue", r.Status.Right.Name)
	assert.Greater(t, r.Status.Rounds, 0)
	last := r.Output[len(r.Output)-1]
	assert.True(t, strings.Contains(last, "wins") || strings.Contains(last, "Draw"), last)
	assert.Same(t, r.Status, s.Status())

	again := newTestSession(t)
	assert.Equal(t, r.Output, step(again, "duel hero rogue").Output, "a fixed seed replays the same fight")
}

func TestSession_NaturalPhrasing(t *testing.T) {
	plain := step(newTestSession(t), "duel hero rogue")
	phrased := step(newTestSession(t), "fight the hero vs rogue")
	require.NotNil(t, phrased.Status, joined(phrased))
	assert.Equal(t, plain.Output, phrased.Output)
}

func TestSession_MirrorMatch(t *testing.T) {
	s := newTestSession(t)
	r := step(s, "duel wolf wolf")
	require.NotNil(t, r.Status, joined(r))
	assert.Equal(t, "Grey Wolf (2)", r.Status.Right.Name)
}

func TestSession_BossHealthCarriesOver(t *testing.T) {
	s := newTestSession(t)
	r := step(s, "boss hero warlord 1500")
	require.NotNil(t, r.Status, joined(r))
	assert.Equal(t, "boss", r.Status.Kind)

	hp, ok := s.BossHP("warlord")
	require.True(t, ok)
	assert.Less(t, hp, 1500)
	assert.Equal(t, hp, r.Status.Right.HP)
	assert.Contains(t, joined(step(s, "show warlord")), "Wounded:")

	r = step(s, "boss hero warlord")
	require.NotNil(t, r.Status)
	after, _ := s.BossHP("warlord")
	assert.LessOrEqual(t, after, hp)
}

func TestSession_Hunt(t *testing.T) {
	s := newTestSession(t)
	r := step(s, "hunt hero wolf")
	require.NotNil(t, r.Status, joined(r))
	assert.Equal(t, "hunt", r.Status.Kind)

	r = step(s, "hunt hero warlord")
	assert.Nil(t, r.Status)
	assert.Contains(t, joined(r), `monster "warlord" is not defined`)
}

func TestSession_Sim(t *testing.T) {
	s := newTestSession(t)
	r := step(s, "sim hero squire 12")
	assert.Contains(t, r.Output[0], "12 fights")
	assert.Nil(t, r.Status, "a batch does not replace the last fight")

	assert.Contains(t, joined(step(s, "sim hero squire 0")), "fight count")
	assert.Contains(t, joined(step(s, "sim hero nobody 3")), `"nobody" is not defined`)
}

func TestSession_Settings(t *testing.T) {
	s := newTestSession(t)
	tests := []struct {
		input string
		want  string
	}{
		{"seed", "[Seed: 11]"},
		{"seed 99", "[Seed fixed at 99.]"},
		{"seed abc", "seed must be a number"},
		{"seed 0", "each fight draws its own"},
		{"verbosity full", "[Verbosity: full]"},
		{"verbosity loud", "unknown verbosity"},
		{"policy initiative", "[Action order: initiative]"},
		{"policy chaos", "unknown policy"},
		{"duel hero", "usage: duel <a> <b>"},
		{"dance", `unknown command "dance"`},
		{"show nothing", `nothing called "nothing"`},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Contains(t, joined(step(s, tt.input)), tt.want)
		})
	}
	assert.Equal(t, int64(0), s.Options.Seed)
	assert.Equal(t, engine.VerbosityFull, s.Options.Verbosity)
	assert.Equal(t, engine.PolicyInitiative, s.Options.Policy)
}

func TestSession_Show(t *testing.T) {
	s := newTestSession(t)
	hero := joined(step(s, "show hero"))
	assert.Contains(t, hero, "gear score 23")
	assert.Contains(t, hero, "Skills: Berserk, Power Strike, Quick Aura, Thorns, Lifesteal, Mend")

	assert.Contains(t, joined(step(s, "show POWER_STRIKE")), "Cooldown: 2")
	assert.Contains(t, joined(step(s, "show haste")), "AGI% +0.25 per stack")
}

func TestSession_SaveAndReplay(t *testing.T) {
	s := newTestSession(t)
	assert.Contains(t, joined(step(s, "/save")), "Nothing to save")

	fight := step(s, "duel hero wolf")
	assert.Contains(t, joined(step(s, "/save first")), "Report saved to first.")

	replay := step(s, "/replay first")
	require.NotEmpty(t, replay.Output)
	assert.Contains(t, replay.Output[0], "duel: Hero vs Grey Wolf, seed 11")
	assert.Equal(t, fight.Output, replay.Output[1:])

	assert.Contains(t, joined(step(s, "/replay missing")), "Replay failed")
}

func TestSession_Meta(t *testing.T) {
	s := newTestSession(t)

	assert.True(t, step(s, "/quit").Quit)
	assert.Contains(t, joined(step(s, "/help")), "boss <player> <boss> [hp]")
	assert.Contains(t, joined(step(s, "/nope")), "Unknown command: /nope")

	assert.Contains(t, joined(step(s, "/trace")), "enabled")
	r := step(s, "duel hero wolf")
	require.Len(t, r.Trace, 2)
	assert.Contains(t, r.Trace[0], "seed=11")
	assert.Contains(t, joined(step(s, "/trace")), "disabled")
	assert.Empty(t, step(s, "duel hero wolf").Trace)

	assert.Equal(t, Reply{}, step(s, "   "))
}
