// Package sim plays many independent fights of the same matchup at once
// and aggregates the outcomes.
package sim

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/nathoo/duelcore/engine"
	"github.com/nathoo/duelcore/engine/state"
	"github.com/nathoo/duelcore/engine/unit"
)

// Factory builds a fresh unit for one fight. Units carry fight state, so
// every fight gets its own.
type Factory func() (*unit.Unit, error)

// Batch describes a run of fights between the same two contenders.
type Batch struct {
	Table   *state.RuleTable
	A, B    Factory
	Fights  int
	Seed    int64 // fight i plays with Seed+i
	Workers int   // 0 means GOMAXPROCS
	Options engine.Options
}

// Summary aggregates a finished batch.
type Summary struct {
	Fights    int
	Wins      map[string]int // by unit id
	Names     map[string]string
	Draws     int
	TimedOut  int
	Rounds    int // total over all fights
	Truncated int
	Results   []engine.Result // in fight order
}

// Run plays every fight of b. Fights share nothing but the rule table, so
// the summary depends only on the seeds, not on scheduling.
func Run(ctx context.Context, b Batch) (*Summary, error) {
	if b.Table == nil || b.A == nil || b.B == nil {
		return nil, errors.New("sim: batch needs a rule table and two factories")
	}
	if b.Fights <= 0 {
		return nil, fmt.Errorf("sim: fight count must be positive, got %d", b.Fights)
	}
	workers := b.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	results := make([]engine.Result, b.Fights)
	sides := make([][2]*unit.Unit, b.Fights)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := 0; i < b.Fights; i++ {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			a, err := b.A()
			if err != nil {
				return fmt.Errorf("fight %d: %w", i+1, err)
			}
			d, err := b.B()
			if err != nil {
				return fmt.Errorf("fight %d: %w", i+1, err)
			}
			opts := b.Options
			opts.Seed = b.Seed + int64(i)
			res, err := engine.RunDuel(b.Table, a, d, opts)
			if err != nil {
				return fmt.Errorf("fight %d: %w", i+1, err)
			}
			results[i] = res
			sides[i] = [2]*unit.Unit{a, d}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	s := &Summary{
		Fights:  b.Fights,
		Wins:    map[string]int{},
		Names:   map[string]string{},
		Results: results,
	}
	for i, r := range results {
		for _, u := range sides[i] {
			s.Names[u.ID] = u.Name
		}
		s.Rounds += r.Rounds
		s.Truncated += r.Truncated
		if r.TimedOut {
			s.TimedOut++
		}
		if r.Draw {
			s.Draws++
			continue
		}
		s.Wins[r.Winner]++
	}
	return s, nil
}

// WinRate returns id's share of all fights.
func (s *Summary) WinRate(id string) float64 {
	if s.Fights == 0 {
		return 0
	}
	return float64(s.Wins[id]) / float64(s.Fights)
}

// AvgRounds returns the mean fight length.
func (s *Summary) AvgRounds() float64 {
	if s.Fights == 0 {
		return 0
	}
	return float64(s.Rounds) / float64(s.Fights)
}

// Lines renders the summary for display.
func (s *Summary) Lines() []string {
	ids := make([]string, 0, len(s.Names))
	for id := range s.Names {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	lines := []string{fmt.Sprintf("%d fights, %.1f rounds on average", s.Fights, s.AvgRounds())}
	for _, id := range ids {
		lines = append(lines, fmt.Sprintf("  %-16s %4d wins (%.1f%%)", s.Names[id], s.Wins[id], 100*s.WinRate(id)))
	}
	lines = append(lines, fmt.Sprintf("  %-16s %4d (%d on time)", "draws", s.Draws, s.TimedOut))
	if s.Truncated > 0 {
		lines = append(lines, fmt.Sprintf("  %d events dropped by the chain cap", s.Truncated))
	}
	return lines
}
