// Package resolve maps target selectors to the units an effect list runs
// against, and player-typed names to definition ids.
package resolve

import (
	"fmt"
	"sort"
	"strings"

	"github.com/nathoo/duelcore/engine/events"
	"github.com/nathoo/duelcore/engine/unit"
	"github.com/nathoo/duelcore/types"
)

// Target selectors.
const (
	Self         = "self"
	SingleEnemy  = "single_enemy"
	AllEnemies   = "all_enemies"
	LowestHPAlly = "lowest_hp_ally"
	AllAllies    = "all_allies"
	EventSource  = "event_source"
	EventTarget  = "event_target"
)

// Selectors lists every supported selector.
var Selectors = []string{Self, SingleEnemy, AllEnemies, LowestHPAlly, AllAllies, EventSource, EventTarget}

// Picker draws a uniform index in [0, n).
type Picker interface {
	Intn(n int) int
}

// UnknownSelectorError indicates a target selector outside the vocabulary.
type UnknownSelectorError struct {
	Selector string
}

func (e *UnknownSelectorError) Error() string {
	return fmt.Sprintf("unknown target selector %q", e.Selector)
}

// DefaultSelector is used when a skill leaves its target empty: actives hit
// an enemy, everything else acts on its owner.
func DefaultSelector(kind types.SkillKind) string {
	if kind == types.SkillActive {
		return SingleEnemy
	}
	return Self
}

// Known reports whether selector belongs to the vocabulary.
func Known(selector string) bool {
	for _, s := range Selectors {
		if s == selector {
			return true
		}
	}
	return false
}

// Targets resolves selector for owner among the fight's units. Dead units
// are never selected except by the event selectors, which name a unit
// directly. An empty result means the effect list has nothing to act on.
func Targets(selector string, owner *unit.Unit, units []*unit.Unit,
	ev *events.Event, p Picker) ([]*unit.Unit, error) {

	switch selector {
	case Self:
		return []*unit.Unit{owner}, nil

	case SingleEnemy:
		enemies := living(units, func(u *unit.Unit) bool { return u.Side != owner.Side })
		if len(enemies) == 0 {
			return nil, nil
		}
		// The unit on the other end of the event is the natural target.
		if ev != nil {
			for _, id := range []string{ev.Target, ev.Source} {
				for _, e := range enemies {
					if e.ID == id {
						return []*unit.Unit{e}, nil
					}
				}
			}
		}
		return []*unit.Unit{enemies[p.Intn(len(enemies))]}, nil

	case AllEnemies:
		return living(units, func(u *unit.Unit) bool { return u.Side != owner.Side }), nil

	case LowestHPAlly:
		allies := living(units, func(u *unit.Unit) bool { return u.Side == owner.Side })
		if len(allies) == 0 {
			return nil, nil
		}
		sort.SliceStable(allies, func(i, j int) bool {
			return ratio(allies[i]) < ratio(allies[j])
		})
		return allies[:1], nil

	case AllAllies:
		return living(units, func(u *unit.Unit) bool { return u.Side == owner.Side }), nil

	case EventSource, EventTarget:
		if ev == nil {
			return nil, nil
		}
		id := ev.Source
		if selector == EventTarget {
			id = ev.Target
		}
		if u := ByID(units, id); u != nil {
			return []*unit.Unit{u}, nil
		}
		return nil, nil

	default:
		return nil, &UnknownSelectorError{Selector: selector}
	}
}

// ByID finds a unit by id.
func ByID(units []*unit.Unit, id string) *unit.Unit {
	for _, u := range units {
		if u.ID == id {
			return u
		}
	}
	return nil
}

func living(units []*unit.Unit, keep func(*unit.Unit) bool) []*unit.Unit {
	var out []*unit.Unit
	for _, u := range units {
		if u.Alive() && keep(u) {
			out = append(out, u)
		}
	}
	return out
}

func ratio(u *unit.Unit) float64 {
	return float64(u.HP()) / float64(u.MaxHP())
}

// AmbiguityError indicates multiple definitions matched a name.
type AmbiguityError struct {
	Name       string
	Candidates []string
}

func (e *AmbiguityError) Error() string {
	names := strings.Join(e.Candidates, ", ")
	return fmt.Sprintf("which %s? (%s)", e.Name, names)
}

// NotFoundError indicates no definition matched a name.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no fighter called %q", e.Name)
}

// Name resolves a typed name against definition ids and display names.
// names maps id to display name. Exact id wins, then an exact display
// name, then a single word match within display names.
func Name(query string, names map[string]string) (string, error) {
	if _, ok := names[query]; ok {
		return query, nil
	}
	q := strings.ToLower(strings.TrimSpace(query))

	ids := make([]string, 0, len(names))
	for id := range names {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var exact, partial []string
	for _, id := range ids {
		name := strings.ToLower(names[id])
		idLower := strings.ToLower(id)
		switch {
		case name == q, idLower == q, strings.ReplaceAll(q, " ", "_") == idLower:
			exact = append(exact, id)
		case containsWord(name, q):
			partial = append(partial, id)
		}
	}

	matches := exact
	if len(matches) == 0 {
		matches = partial
	}
	switch len(matches) {
	case 0:
		return "", &NotFoundError{Name: query}
	case 1:
		return matches[0], nil
	default:
		return "", &AmbiguityError{Name: query, Candidates: matches}
	}
}

func containsWord(name, word string) bool {
	for _, w := range strings.Fields(name) {
		if w == word {
			return true
		}
	}
	return false
}
