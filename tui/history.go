// Package tui provides a Bubble Tea terminal UI for the arena: a scrolling
// fight log, an HP status bar and a command line with history.
package tui

// History is a ring buffer of submitted commands with cursor navigation.
type History struct {
	ring   []string
	start  int // index of the oldest entry
	size   int
	cursor int // -1 = not navigating, else offset from the oldest entry
}

// NewHistory creates a history holding at most max commands.
func NewHistory(max int) *History {
	if max < 1 {
		max = 1
	}
	return &History{ring: make([]string, max), cursor: -1}
}

// Len returns the number of stored commands.
func (h *History) Len() int { return h.size }

func (h *History) at(offset int) string {
	return h.ring[(h.start+offset)%len(h.ring)]
}

// Push adds a command. Repeating the newest command is a no-op.
func (h *History) Push(cmd string) {
	if h.size > 0 && h.at(h.size-1) == cmd {
		return
	}
	if h.size < len(h.ring) {
		h.ring[(h.start+h.size)%len(h.ring)] = cmd
		h.size++
		return
	}
	h.ring[h.start] = cmd
	h.start = (h.start + 1) % len(h.ring)
}

// Prev steps to the next older command, stopping at the oldest.
func (h *History) Prev() (string, bool) {
	if h.size == 0 {
		return "", false
	}
	switch {
	case h.cursor == -1:
		h.cursor = h.size - 1
	case h.cursor > 0:
		h.cursor--
	}
	return h.at(h.cursor), true
}

// Next steps to the next newer command. Past the newest it returns
// ("", false) and leaves navigation.
func (h *History) Next() (string, bool) {
	if h.cursor == -1 {
		return "", false
	}
	h.cursor++
	if h.cursor >= h.size {
		h.cursor = -1
		return "", false
	}
	return h.at(h.cursor), true
}

// ResetCursor leaves navigation.
func (h *History) ResetCursor() {
	h.cursor = -1
}
