package unit

import (
	"strings"

	"github.com/nathoo/duelcore/types"
)

// Buff is a buff instance carried by a unit.
type Buff struct {
	Def       *types.BuffDef
	SourceID  string // unit that applied it
	Stacks    int
	Remaining int // -1 = permanent
}

// ID returns the definition id.
func (b *Buff) ID() string { return b.Def.ID }

// Name returns the display label, falling back to the id.
func (b *Buff) Name() string {
	if b.Def.Name != "" {
		return b.Def.Name
	}
	return b.Def.ID
}

// Positive reports whether the buff is beneficial.
func (b *Buff) Positive() bool { return b.Def.Positive }

// MaxStacks returns the definition cap, at least 1.
func (b *Buff) MaxStacks() int {
	if b.Def.MaxStack < 1 {
		return 1
	}
	return b.Def.MaxStack
}

// Permanent reports whether the buff never ticks down.
func (b *Buff) Permanent() bool { return b.Remaining < 0 }

// expired reports whether upkeep should remove the buff.
func (b *Buff) expired() bool {
	if b.Stacks <= 0 {
		return true
	}
	return !b.Permanent() && b.Remaining <= 0
}

// contribution returns the flat and percent deltas this buff adds to stat.
func (b *Buff) contribution(stat string) (flat, pct float64) {
	for key, delta := range b.Def.Modifiers {
		name, isPct := strings.CutSuffix(key, "%")
		if !strings.EqualFold(name, stat) {
			continue
		}
		if isPct {
			pct += delta * float64(b.Stacks)
		} else {
			flat += delta * float64(b.Stacks)
		}
	}
	return flat, pct
}

// AddBuff applies def to the unit and returns the resulting stack count.
// A buff already carried follows def's stack mode; a new one is appended.
func (u *Unit) AddBuff(def *types.BuffDef, sourceID string, requested int) int {
	if def == nil || requested <= 0 {
		return 0
	}
	if existing := u.Buff(def.ID); existing != nil {
		switch def.StackMode {
		case types.StackDuration:
			existing.Remaining = refreshDuration(existing.Remaining, def.Duration)
		case types.StackIntensity:
			existing.Stacks = min(existing.MaxStacks(), existing.Stacks+requested)
		case types.StackBoth:
			existing.Remaining = refreshDuration(existing.Remaining, def.Duration)
			existing.Stacks = min(existing.MaxStacks(), existing.Stacks+requested)
		default:
			return existing.Stacks
		}
		existing.SourceID = sourceID
		return existing.Stacks
	}
	b := &Buff{
		Def:       def,
		SourceID:  sourceID,
		Remaining: def.Duration,
	}
	b.Stacks = min(b.MaxStacks(), requested)
	u.buffs = append(u.buffs, b)
	return b.Stacks
}

// refreshDuration keeps the longer of the remaining and fresh durations.
// Permanent wins over any finite duration.
func refreshDuration(remaining, fresh int) int {
	if remaining < 0 || fresh < 0 {
		return -1
	}
	return max(remaining, fresh)
}

// Buff returns the carried buff with the given definition id, or nil.
func (u *Unit) Buff(id string) *Buff {
	for _, b := range u.buffs {
		if b.Def.ID == id {
			return b
		}
	}
	return nil
}

// Buffs returns the carried buffs in application order.
func (u *Unit) Buffs() []*Buff {
	return u.buffs
}

// UpkeepBuffs applies each buff's per-tick deltas and drops expired buffs.
// Returns the ids of removed buffs.
func (u *Unit) UpkeepBuffs() []string {
	var removed []string
	kept := u.buffs[:0]
	for _, b := range u.buffs {
		if !b.Permanent() {
			d := b.Def.TurnEnd.Duration
			if d == 0 && !b.Def.TurnEnd.DurationSet {
				d = -1
			}
			b.Remaining += d
			if b.Remaining < 0 {
				b.Remaining = 0
			}
		}
		b.Stacks = min(b.MaxStacks(), b.Stacks+b.Def.TurnEnd.Stack)
		if b.expired() {
			removed = append(removed, b.Def.ID)
			continue
		}
		kept = append(kept, b)
	}
	u.buffs = kept
	return removed
}

// Dispel removes up to count dispellable buffs of the given polarity, oldest
// first, and returns their ids.
func (u *Unit) Dispel(count int, positive bool) []string {
	if count <= 0 {
		return nil
	}
	var removed []string
	kept := u.buffs[:0]
	for _, b := range u.buffs {
		if len(removed) < count && b.Def.Dispellable && b.Def.Positive == positive {
			removed = append(removed, b.Def.ID)
			continue
		}
		kept = append(kept, b)
	}
	u.buffs = kept
	return removed
}
