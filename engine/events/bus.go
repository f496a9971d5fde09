package events

import (
	"log/slog"
	"sort"
)

// Result is what a handler reports back to the bus.
type Result int

const (
	Skip  Result = iota // did not activate; not counted
	Fired               // activated; counted toward the limit
	Stop                // activated and halts further dispatch
)

// Handler reacts to a published event.
type Handler func(ev *Event) Result

// Outcome summarises one Publish call.
type Outcome int

const (
	NoListeners Outcome = iota
	Delivered
	Halted
)

func (o Outcome) String() string {
	switch o {
	case NoListeners:
		return "no_listeners"
	case Delivered:
		return "delivered"
	default:
		return "halted"
	}
}

type subscriber struct {
	priority int
	order    int
	fn       Handler
}

// Bus dispatches events to subscribers in descending priority order, ties
// in registration order. Successful fires are counted per event type and
// source; a type with a configured limit stops dispatching for a source once
// the count reaches it. Counts are cleared by ResetCounts every round.
type Bus struct {
	subs   map[string][]subscriber
	limits map[string]int
	counts map[string]map[string]int
	order  int

	// OnLimit is called when dispatch is blocked by a rate limit.
	OnLimit func(ev *Event, limit int)
	Logger  *slog.Logger
}

// NewBus creates a bus with per-type limits. Types absent from limits are
// unlimited.
func NewBus(limits map[string]int) *Bus {
	return &Bus{
		subs:   map[string][]subscriber{},
		limits: limits,
		counts: map[string]map[string]int{},
	}
}

// Subscribe registers fn for eventType at the given priority.
func (b *Bus) Subscribe(eventType string, priority int, fn Handler) {
	b.order++
	subs := append(b.subs[eventType], subscriber{priority: priority, order: b.order, fn: fn})
	sort.SliceStable(subs, func(i, j int) bool {
		if subs[i].priority != subs[j].priority {
			return subs[i].priority > subs[j].priority
		}
		return subs[i].order < subs[j].order
	})
	b.subs[eventType] = subs
}

// Subscribers returns the number of handlers registered for eventType.
func (b *Bus) Subscribers(eventType string) int {
	return len(b.subs[eventType])
}

// Publish dispatches ev to the handlers of ev.Type.
func (b *Bus) Publish(ev *Event) Outcome {
	subs := b.subs[ev.Type]
	if len(subs) == 0 {
		return NoListeners
	}
	for _, s := range subs {
		if limit, ok := b.exhausted(ev); ok {
			b.logger().Info("event limit reached",
				"event", ev.Type, "source", ev.Source, "limit", limit, "round", ev.Round)
			if b.OnLimit != nil {
				b.OnLimit(ev, limit)
			}
			return Halted
		}
		switch s.fn(ev) {
		case Fired:
			b.record(ev)
		case Stop:
			b.record(ev)
			return Halted
		}
	}
	return Delivered
}

// ResetCounts clears the per-round fire counters.
func (b *Bus) ResetCounts() {
	b.counts = map[string]map[string]int{}
}

// Count returns the successful fires of eventType recorded for source this round.
func (b *Bus) Count(eventType, source string) int {
	return b.counts[eventType][source]
}

// Limit returns the configured max count for eventType.
func (b *Bus) Limit(eventType string) (int, bool) {
	n, ok := b.limits[eventType]
	return n, ok
}

// Exhausted reports whether source has used up eventType this round.
func (b *Bus) Exhausted(eventType, source string) bool {
	limit, ok := b.limits[eventType]
	return ok && b.counts[eventType][source] >= limit
}

func (b *Bus) exhausted(ev *Event) (int, bool) {
	limit, ok := b.limits[ev.Type]
	if !ok {
		return 0, false
	}
	return limit, b.counts[ev.Type][ev.Source] >= limit
}

func (b *Bus) record(ev *Event) {
	bySource, ok := b.counts[ev.Type]
	if !ok {
		bySource = map[string]int{}
		b.counts[ev.Type] = bySource
	}
	bySource[ev.Source]++
}

func (b *Bus) logger() *slog.Logger {
	if b.Logger != nil {
		return b.Logger
	}
	return slog.Default()
}
