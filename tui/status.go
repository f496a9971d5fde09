package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/nathoo/duelcore/arena"
)

const barWidth = 10

// hpBar draws hp/max as a fixed-width bar of filled and empty cells.
func hpBar(hp, max, width int) string {
	filled := 0
	if max > 0 && hp > 0 {
		filled = (hp*width + max - 1) / max
	}
	filled = min(filled, width)
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

func fighterText(f arena.Fighter) string {
	bar := hpStyle(f.HP, f.MaxHP).Render(hpBar(f.HP, f.MaxHP, barWidth))
	return fmt.Sprintf("%s %s %d/%d", f.Name, bar, f.HP, f.MaxHP)
}

// renderStatusBar produces a full-width status line with both fighters'
// health from the last fight and the session's settings.
func (m Model) renderStatusBar() string {
	opts := m.session.Options
	seed := "random"
	if opts.Seed != 0 {
		seed = fmt.Sprint(opts.Seed)
	}
	right := fmt.Sprintf("%s | %s | seed %s ", opts.Verbosity, opts.Policy, seed)

	left := " duelcore | no fight yet"
	if st := m.session.Status(); st != nil {
		left = fmt.Sprintf(" %s vs %s | R:%d", fighterText(st.Left), fighterText(st.Right), st.Rounds)
	}

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 0 {
		gap = 0
	}

	bar := left + strings.Repeat(" ", gap) + right
	return styleStatusBar.Width(m.width).Render(bar)
}
