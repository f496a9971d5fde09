package engine

import (
	"fmt"
	"strings"

	"github.com/nathoo/duelcore/engine/events"
	"github.com/nathoo/duelcore/types"
)

// Verbosity selects how much of the event log a report shows.
type Verbosity string

const (
	VerbosityFull    Verbosity = "full"    // every event, indented by cause
	VerbositySummary Verbosity = "summary" // one line per round
	VerbosityResult  Verbosity = "result"  // outcome only
)

// ParseVerbosity validates a verbosity name.
func ParseVerbosity(s string) (Verbosity, error) {
	switch v := Verbosity(strings.ToLower(strings.TrimSpace(s))); v {
	case VerbosityFull, VerbositySummary, VerbosityResult:
		return v, nil
	}
	return "", fmt.Errorf("unknown verbosity %q (full, summary, result)", s)
}

// Report renders the fight's log at the battle's verbosity.
func (b *Battle) Report() []string {
	var lines []string
	switch b.opts.Verbosity {
	case VerbosityFull:
		lines = b.fullReport()
	case VerbositySummary:
		lines = b.summaryReport()
	}
	return append(lines, b.Outcome()+" ("+b.Standing()+")")
}

// Outcome describes who won.
func (b *Battle) Outcome() string {
	switch {
	case b.phase != Ended:
		return fmt.Sprintf("Fight in progress, round %d", b.round)
	case b.winner != nil:
		return fmt.Sprintf("%s wins after %d rounds", b.winner.Name, b.round)
	case b.timedOut:
		return fmt.Sprintf("Draw: time runs out after %d rounds", b.round)
	default:
		return fmt.Sprintf("Draw after %d rounds", b.round)
	}
}

// Standing lists every unit's health.
func (b *Battle) Standing() string {
	parts := make([]string, len(b.units))
	for i, u := range b.units {
		parts[i] = fmt.Sprintf("%s %d/%d", u.Name, u.HP(), u.MaxHP())
	}
	return strings.Join(parts, ", ")
}

func (b *Battle) fullReport() []string {
	var lines []string
	round := -1
	for _, root := range b.log.Roots() {
		ev := b.log.Get(root)
		if ev.Type == types.EventBattleEnd {
			continue
		}
		if ev.Round != round && ev.Round > 0 {
			round = ev.Round
			lines = append(lines, fmt.Sprintf("Round %d", round))
		}
		silent := b.describe(ev) == ""
		b.log.Walk(root, func(e *events.Event, depth int) {
			text := b.describe(e)
			if text == "" {
				return
			}
			if silent {
				depth--
			}
			lines = append(lines, strings.Repeat("  ", depth+1)+text)
		})
	}
	return lines
}

func (b *Battle) summaryReport() []string {
	byRound := map[int][]string{}
	for _, root := range b.log.Roots() {
		ev := b.log.Get(root)
		if ev.Op != events.OpAttack {
			continue
		}
		byRound[ev.Round] = append(byRound[ev.Round], b.summarize(ev))
	}
	lines := make([]string, 0, len(b.standings))
	for i, standing := range b.standings {
		round := i + 1
		actions := strings.Join(byRound[round], "; ")
		if actions == "" {
			actions = "no action"
		}
		lines = append(lines, fmt.Sprintf("Round %d: %s | %s", round, actions, standing))
	}
	return lines
}

// summarize condenses one action into a single line.
func (b *Battle) summarize(root *events.Event) string {
	var casts, fell []string
	var hits []string
	dealt := map[string]int{}
	dodged := false
	b.log.Walk(root.ID, func(e *events.Event, _ int) {
		switch {
		case e.Op == events.OpCast:
			casts = append(casts, b.skillName(e.SkillID))
		case e.IsDamage() && e.Dodged:
			dodged = true
		case e.IsDamage() && e.Settled:
			if _, ok := dealt[e.Target]; !ok {
				hits = append(hits, e.Target)
			}
			dealt[e.Target] += e.LastAmount
		case e.Op == events.OpDeath:
			fell = append(fell, b.name(e.Target))
		}
	})

	var sb strings.Builder
	sb.WriteString(b.name(root.Source))
	if len(casts) > 0 {
		sb.WriteString(" uses " + strings.Join(casts, ", "))
	}
	parts := make([]string, 0, len(hits))
	for _, id := range hits {
		parts = append(parts, fmt.Sprintf("%s -%d", b.name(id), dealt[id]))
	}
	if dodged {
		parts = append(parts, "dodged")
	}
	if len(parts) > 0 {
		sb.WriteString(": " + strings.Join(parts, ", "))
	}
	for _, n := range fell {
		sb.WriteString(", " + n + " falls")
	}
	return sb.String()
}

// describe narrates one event, or returns "" for bookkeeping events.
func (b *Battle) describe(ev *events.Event) string {
	if ev.Note != "" {
		return ev.Note
	}
	src, dst := b.name(ev.Source), b.name(ev.Target)
	switch ev.Op {
	case events.OpAttack:
		return fmt.Sprintf("%s attacks %s", src, dst)
	case events.OpCast:
		return fmt.Sprintf("%s casts %s on %s", src, b.skillName(ev.SkillID), dst)
	case events.OpDeath:
		return fmt.Sprintf("%s falls", dst)
	case types.OpDamage:
		switch {
		case !ev.Settled:
			return fmt.Sprintf("%s's hit on %s never lands", src, dst)
		case ev.Dodged:
			return fmt.Sprintf("%s dodges %s", dst, src)
		case ev.Crit:
			return fmt.Sprintf("%s critically hits %s for %d", src, dst, ev.LastAmount)
		}
		return fmt.Sprintf("%s hits %s for %d", src, dst, ev.LastAmount)
	case types.OpReflectDamage:
		if !ev.Settled {
			return fmt.Sprintf("%s's reflection never reaches %s", src, dst)
		}
		return fmt.Sprintf("%s reflects %d damage to %s", src, ev.LastAmount, dst)
	case types.OpLeech:
		return fmt.Sprintf("%s drains %d HP", src, ev.LastAmount)
	case types.OpHeal:
		if ev.Source == ev.Target {
			return fmt.Sprintf("%s recovers %d HP", dst, ev.LastAmount)
		}
		return fmt.Sprintf("%s heals %s for %d", src, dst, ev.LastAmount)
	}
	return ""
}

func (b *Battle) name(id string) string {
	if u := b.Unit(id); u != nil {
		return u.Name
	}
	return id
}

func (b *Battle) skillName(id string) string {
	if def, ok := b.table.Skills[id]; ok && def.Name != "" {
		return def.Name
	}
	for _, u := range b.units {
		for _, slot := range u.Skills() {
			if slot.Def.ID == id && slot.Def.Name != "" {
				return slot.Def.Name
			}
		}
	}
	return id
}
