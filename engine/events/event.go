// Package events implements the battle event envelope, the per-fight arena
// that records which event caused which, and the priority bus that
// dispatches events to skill and buff subscribers.
package events

import "github.com/nathoo/duelcore/types"

// Ops that only exist on events, never in authored effect lists.
const (
	OpAttack types.Op = "attack"
	OpCast   types.Op = "cast"
	OpNote   types.Op = "note"
	OpDeath  types.Op = "death"
)

// Event is one causal step of a fight. Parent and Children are arena
// indices; a root has Parent -1.
type Event struct {
	ID       int
	Parent   int
	Children []int

	Type    string // bus event type
	Op      types.Op
	Round   int
	Source  string // unit id
	Target  string // unit id
	SkillID string

	Amount     int // nominal
	LastAmount int // settled
	DamageType string
	Breakdown  map[string]int

	Crit        bool
	Dodged      bool
	CanReflect  bool
	CanReduce   bool
	CanDodge    bool
	AllowRevive bool
	Settled     bool
	ActionTaken bool // an active skill already acted for this root

	Note string
}

// IsDamage reports whether the event deals damage when settled.
func (e *Event) IsDamage() bool {
	return e.Op == types.OpDamage || e.Op == types.OpReflectDamage
}

// IsHeal reports whether the event restores health when settled.
func (e *Event) IsHeal() bool {
	return e.Op == types.OpHeal || e.Op == types.OpLeech
}

// Pending returns the nominal damage still to be settled, summed by type.
func (e *Event) Pending() int {
	total := 0
	for _, v := range e.Breakdown {
		total += v
	}
	return total
}

// AdjustPending adds delta to the breakdown entry of the event's damage
// type, floored at 0.
func (e *Event) AdjustPending(delta int) {
	if e.Breakdown == nil {
		e.Breakdown = map[string]int{}
	}
	dtype := e.DamageType
	if dtype == "" {
		dtype = types.DamagePhysical
	}
	e.Breakdown[dtype] = max(0, e.Breakdown[dtype]+delta)
	e.Amount = e.Pending()
}

// Log is the arena holding every event of one fight.
type Log struct {
	events []*Event
	roots  []int
	fresh  []int
}

// NewLog creates an empty arena.
func NewLog() *Log {
	return &Log{}
}

// Root stores ev as a new tree root and returns it with its id assigned.
func (l *Log) Root(ev *Event) *Event {
	ev.ID = len(l.events)
	ev.Parent = -1
	l.events = append(l.events, ev)
	l.roots = append(l.roots, ev.ID)
	return ev
}

// Spawn stores ev as a child of parent. The child is also queued for
// TakeFresh so the orchestrator can drain it.
func (l *Log) Spawn(parent int, ev *Event) *Event {
	if parent < 0 || parent >= len(l.events) {
		return l.Root(ev)
	}
	ev.ID = len(l.events)
	ev.Parent = parent
	l.events = append(l.events, ev)
	p := l.events[parent]
	p.Children = append(p.Children, ev.ID)
	l.fresh = append(l.fresh, ev.ID)
	return ev
}

// Get returns the event with the given id, or nil.
func (l *Log) Get(id int) *Event {
	if id < 0 || id >= len(l.events) {
		return nil
	}
	return l.events[id]
}

// Len returns the number of events recorded.
func (l *Log) Len() int { return len(l.events) }

// Roots returns root ids in creation order.
func (l *Log) Roots() []int { return l.roots }

// TakeFresh returns ids spawned since the last call and clears the list.
func (l *Log) TakeFresh() []int {
	out := l.fresh
	l.fresh = nil
	return out
}

// Walk visits the tree under root depth-first in child order.
func (l *Log) Walk(root int, fn func(ev *Event, depth int)) {
	var visit func(id, depth int)
	visit = func(id, depth int) {
		ev := l.Get(id)
		if ev == nil {
			return
		}
		fn(ev, depth)
		for _, c := range ev.Children {
			visit(c, depth+1)
		}
	}
	visit(root, 0)
}
