package tui

import (
	"sort"
	"strings"

	"github.com/nathoo/duelcore/engine/state"
)

var verbs = []string{
	"boss", "duel", "help", "hunt", "list", "policy", "seed", "show", "sim", "verbosity",
	"/help", "/quit", "/replay", "/save", "/trace",
}

// completer finishes the word under the cursor from the verbs and the
// ids the rule table defines.
type completer struct {
	words []string
}

func newCompleter(t *state.RuleTable) completer {
	seen := map[string]bool{}
	var words []string
	add := func(w string) {
		if !seen[w] {
			seen[w] = true
			words = append(words, w)
		}
	}
	for _, v := range verbs {
		add(v)
	}
	for id := range t.Players {
		add(id)
	}
	for id := range t.Monsters {
		add(id)
	}
	for id := range t.Skills {
		add(id)
	}
	for id := range t.Buffs {
		add(id)
	}
	sort.Strings(words)
	return completer{words: words}
}

// Complete extends the last word of line to the longest prefix shared by
// every candidate. A single candidate also gets a trailing space.
func (c completer) Complete(line string) string {
	if line == "" || strings.HasSuffix(line, " ") {
		return line
	}
	cut := strings.LastIndex(line, " ") + 1
	head, word := line[:cut], line[cut:]

	var matches []string
	for _, w := range c.words {
		if strings.HasPrefix(w, word) {
			matches = append(matches, w)
		}
	}
	switch len(matches) {
	case 0:
		return line
	case 1:
		return head + matches[0] + " "
	}
	prefix := matches[0]
	for _, m := range matches[1:] {
		for !strings.HasPrefix(m, prefix) {
			prefix = prefix[:len(prefix)-1]
		}
	}
	return head + prefix
}
