package tui

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nathoo/duelcore/arena"
	"github.com/nathoo/duelcore/engine"
	"github.com/nathoo/duelcore/engine/state"
	"github.com/nathoo/duelcore/types"
)

func TestClassifyLine(t *testing.T) {
	tests := []struct {
		line string
		want lineKind
	}{
		{"Round 3", kindRound},
		{"Round 2: Hero uses Power Strike: Wolf -48 | Hero 80/100, Wolf 12/60", kindRound},
		{"    Hero critically hits Wolf for 61", kindCrit},
		{"    Wolf falls", kindFall},
		{"Orc Warlord is slain! It will return at full strength.", kindFall},
		{"Hero wins after 4 rounds (Hero 80/100, Wolf 0/60)", kindOutcome},
		{"Draw: time runs out after 30 rounds (Hero 5/100, Wolf 9/60)", kindOutcome},
		{"[Seed fixed at 7.]", kindSystem},
		{"[trace] events=12 truncated=0 blocked=0 elapsed=1ms", kindTrace},
		{"  Hero hits Wolf for 12", kindNarration},
		{"", kindNarration},
	}
	for _, tt := range tests {
		got := classifyLine(tt.line)
		if got != tt.want {
			t.Errorf("classifyLine(%q) = %v, want %v", tt.line, got, tt.want)
		}
	}
}

func TestHPBar(t *testing.T) {
	tests := []struct {
		hp, max int
		want    string
	}{
		{100, 100, "██████████"},
		{0, 100, "░░░░░░░░░░"},
		{1, 100, "█░░░░░░░░░"},
		{50, 100, "█████░░░░░"},
		{150, 100, "██████████"},
		{5, 0, "░░░░░░░░░░"},
	}
	for _, tt := range tests {
		if got := hpBar(tt.hp, tt.max, 10); got != tt.want {
			t.Errorf("hpBar(%d, %d) = %q, want %q", tt.hp, tt.max, got, tt.want)
		}
	}
}

func TestHPStyle(t *testing.T) {
	if hpStyle(90, 100).GetForeground() != styleHPHigh.GetForeground() {
		t.Error("healthy should use the high style")
	}
	if hpStyle(40, 100).GetForeground() != styleHPMid.GetForeground() {
		t.Error("half health should use the mid style")
	}
	if hpStyle(20, 100).GetForeground() != styleHPLow.GetForeground() {
		t.Error("a quarter should use the low style")
	}
}

func TestWordWrap(t *testing.T) {
	tests := []struct {
		text  string
		width int
		want  string
	}{
		{"short", 80, "short"},
		{"hello world", 5, "hello\nworld"},
		{"Hero uses Power Strike: Wolf -48, Wolf falls", 24,
			"Hero uses Power Strike:\nWolf -48, Wolf falls"},
		{"    Hero critically hits Wolf for 61", 20,
			"    Hero critically\n    hits Wolf for 61"},
		{"", 80, ""},
		{"a b c d e", 3, "a b\nc d\ne"},
	}
	for _, tt := range tests {
		got := wordWrap(tt.text, tt.width)
		if got != tt.want {
			t.Errorf("wordWrap(%q, %d) =\n  %q\nwant:\n  %q", tt.text, tt.width, got, tt.want)
		}
	}
}

func TestHistory_PushAndPrev(t *testing.T) {
	h := NewHistory(5)
	h.Push("list")
	h.Push("duel hero wolf")
	h.Push("/save")

	for _, want := range []string{"/save", "duel hero wolf", "list", "list"} {
		prev, ok := h.Prev()
		if !ok || prev != want {
			t.Errorf("expected %q, got %q (ok=%v)", want, prev, ok)
		}
	}
}

func TestHistory_Next(t *testing.T) {
	h := NewHistory(5)
	h.Push("list")
	h.Push("duel hero wolf")

	h.Prev() // "duel hero wolf"
	h.Prev() // "list"

	next, ok := h.Next()
	if !ok || next != "duel hero wolf" {
		t.Errorf("expected 'duel hero wolf', got %q (ok=%v)", next, ok)
	}

	_, ok = h.Next()
	if ok {
		t.Error("expected false when past newest entry")
	}
}

func TestHistory_Empty(t *testing.T) {
	h := NewHistory(5)
	if _, ok := h.Prev(); ok {
		t.Error("expected false on empty history")
	}
	if _, ok := h.Next(); ok {
		t.Error("expected false on empty history")
	}
}

func TestHistory_Wraps(t *testing.T) {
	h := NewHistory(2)
	h.Push("a")
	h.Push("b")
	h.Push("c") // "a" evicted
	h.Push("d") // "b" evicted

	if h.Len() != 2 {
		t.Fatalf("Len = %d, want 2", h.Len())
	}
	for _, want := range []string{"d", "c", "c"} {
		if prev, _ := h.Prev(); prev != want {
			t.Errorf("expected %q, got %q", want, prev)
		}
	}
}

func TestHistory_NoDuplicates(t *testing.T) {
	h := NewHistory(5)
	h.Push("list")
	h.Push("list")
	h.Push("list")

	if h.Len() != 1 {
		t.Errorf("expected 1 entry, got %d", h.Len())
	}
}

func TestHistory_ResetCursor(t *testing.T) {
	h := NewHistory(5)
	h.Push("list")
	h.Push("duel hero wolf")

	h.Prev()
	h.Prev()
	h.ResetCursor()

	if prev, ok := h.Prev(); !ok || prev != "duel hero wolf" {
		t.Errorf("expected 'duel hero wolf' after reset, got %q", prev)
	}
}

func newTestModel(t *testing.T) Model {
	t.Helper()
	table := state.NewRuleTable()
	table.Monsters["wolf"] = &types.MonsterDef{ID: "wolf", Name: "Wolf", ATK: 12, AGI: 10, MaxHP: 60}
	table.Players["hero"] = &types.PlayerProfile{ID: "hero", Name: "Hero", Level: 3, Points: map[string]int{"str": 6}}
	table.Compile()

	s := arena.New(table, engine.Options{
		Seed:      5,
		Verbosity: engine.VerbosityResult,
		Policy:    engine.PolicyAlternate,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	s.SaveDir = t.TempDir()

	m := New(context.Background(), s)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 30})
	return next.(Model)
}

func submit(m Model, input string) (Model, tea.Cmd) {
	m.input.SetValue(input)
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	return next.(Model), cmd
}

func lastText(m Model) string {
	var lines []string
	for _, l := range m.lines {
		lines = append(lines, l.text)
	}
	return strings.Join(lines, "\n")
}

func TestModel_FightUpdatesStatusBar(t *testing.T) {
	m := newTestModel(t)
	if !strings.Contains(m.renderStatusBar(), "no fight yet") {
		t.Error("expected placeholder before the first fight")
	}

	m, _ = submit(m, "duel hero wolf")

	bar := m.renderStatusBar()
	for _, want := range []string{"Hero", "Wolf", "R:", "seed 5", "result", "alternate"} {
		if !strings.Contains(bar, want) {
			t.Errorf("status bar %q missing %q", bar, want)
		}
	}
	if !strings.Contains(lastText(m), "> duel hero wolf") {
		t.Error("expected echoed input")
	}
	if m.history.Len() != 1 {
		t.Errorf("history Len = %d, want 1", m.history.Len())
	}
}

func TestModel_AgainRepeatsFight(t *testing.T) {
	m := newTestModel(t)
	m, _ = submit(m, "g")
	if !strings.Contains(lastText(m), "[Nothing to repeat.]") {
		t.Error("expected nothing-to-repeat")
	}

	m, _ = submit(m, "hunt hero wolf")
	m, _ = submit(m, "/trace")
	m, _ = submit(m, "again")
	if !strings.Contains(lastText(m), "[trace] fight") {
		t.Error("again should rerun the hunt with trace on")
	}
}

func TestModel_HelpAndQuit(t *testing.T) {
	m := newTestModel(t)
	m, _ = submit(m, "/help")
	if !strings.Contains(lastText(m), "PgUp/PgDn") {
		t.Error("expected navigation hint in help")
	}

	m, cmd := submit(m, "/quit")
	if !m.quitting || cmd == nil {
		t.Error("expected /quit to stop the program")
	}
	if m.View() != "" {
		t.Error("expected empty view after quitting")
	}
}

func TestCompleter(t *testing.T) {
	table := state.NewRuleTable()
	table.Monsters["wolf"] = &types.MonsterDef{ID: "wolf"}
	table.Monsters["warlord"] = &types.MonsterDef{ID: "warlord"}
	table.Players["hero"] = &types.PlayerProfile{ID: "hero"}
	table.Skills["POWER_STRIKE"] = &types.SkillDef{ID: "POWER_STRIKE"}
	c := newCompleter(table)

	tests := []struct {
		line string
		want string
	}{
		{"", ""},
		{"du", "duel "},
		{"duel h", "duel h"},
		{"duel her", "duel hero "},
		{"duel hero w", "duel hero w"},
		{"duel hero wo", "duel hero wolf "},
		{"boss hero wa", "boss hero warlord "},
		{"show POW", "show POWER_STRIKE "},
		{"duel hero ", "duel hero "},
		{"duel zz", "duel zz"},
		{"/s", "/save "},
		{"s", "s"},
		{"se", "seed "},
	}
	for _, tt := range tests {
		if got := c.Complete(tt.line); got != tt.want {
			t.Errorf("Complete(%q) = %q, want %q", tt.line, got, tt.want)
		}
	}
}

func TestModel_TabCompletes(t *testing.T) {
	m := newTestModel(t)
	m.input.SetValue("duel her")
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyTab})
	m = next.(Model)
	if got := m.input.Value(); got != "duel hero " {
		t.Errorf("input = %q, want %q", got, "duel hero ")
	}
}
