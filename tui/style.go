package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Styles used throughout the TUI.
var (
	styleStatusBar = lipgloss.NewStyle().
			Background(lipgloss.Color("236")).
			Foreground(lipgloss.Color("252")).
			Bold(true)

	styleInputPrompt = lipgloss.NewStyle().
				Foreground(lipgloss.Color("34"))

	styleNarration = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255"))

	styleRound = lipgloss.NewStyle().
			Foreground(lipgloss.Color("75")).
			Bold(true)

	styleCrit = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Bold(true)

	styleFall = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	styleOutcome = lipgloss.NewStyle().
			Foreground(lipgloss.Color("228")).
			Bold(true)

	styleSystem = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	stylePlayerInput = lipgloss.NewStyle().
				Foreground(lipgloss.Color("34"))

	styleTrace = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	styleHPHigh = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	styleHPMid  = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	styleHPLow  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

// lineKind identifies the type of an output line for styling.
type lineKind int

const (
	kindNarration lineKind = iota
	kindRound
	kindCrit
	kindFall
	kindOutcome
	kindSystem
	kindTrace
)

// classifyLine determines what kind of output line this is.
func classifyLine(line string) lineKind {
	trimmed := strings.TrimSpace(line)
	switch {
	case strings.HasPrefix(trimmed, "[trace]"):
		return kindTrace
	case strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]"):
		return kindSystem
	case strings.Contains(trimmed, " wins after "),
		strings.HasPrefix(trimmed, "Draw"):
		return kindOutcome
	case strings.HasPrefix(trimmed, "Round "):
		return kindRound
	case strings.Contains(trimmed, "critically"):
		return kindCrit
	case strings.HasSuffix(trimmed, " falls"),
		strings.Contains(trimmed, " falls,"),
		strings.Contains(trimmed, " is slain"):
		return kindFall
	default:
		return kindNarration
	}
}

// renderLineKind applies the style for a given lineKind.
func renderLineKind(line string, kind lineKind) string {
	switch kind {
	case kindRound:
		return styleRound.Render(line)
	case kindCrit:
		return styleCrit.Render(line)
	case kindFall:
		return styleFall.Render(line)
	case kindOutcome:
		return styleOutcome.Render(line)
	case kindSystem:
		return styleSystem.Render(line)
	case kindTrace:
		return styleTrace.Render(line)
	default:
		return styleNarration.Render(line)
	}
}

// hpStyle colours a health fraction.
func hpStyle(hp, max int) lipgloss.Style {
	switch {
	case max <= 0 || hp*4 <= max:
		return styleHPLow
	case hp*2 <= max:
		return styleHPMid
	default:
		return styleHPHigh
	}
}
