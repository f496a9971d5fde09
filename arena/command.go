package arena

import "strings"

// Command is one parsed line of input.
type Command struct {
	Verb string
	Args []string
}

var verbAliases = map[string]string{
	// Duel
	"pvp":    "duel",
	"fight":  "duel",
	"spar":   "duel",
	"versus": "duel",

	// Boss
	"raid":   "boss",
	"strike": "boss",

	// Hunt
	"wild":    "hunt",
	"explore": "hunt",

	// Simulate
	"simulate": "sim",
	"bench":    "sim",

	// Lookups
	"ls":      "list",
	"l":       "list",
	"x":       "show",
	"examine": "show",
	"inspect": "show",
	"info":    "show",

	// Settings
	"v":      "verbosity",
	"detail": "verbosity",
	"order":  "policy",
	"?":      "help",
}

// Words that only make the line read naturally: "duel the hero vs wolf".
var fillers = map[string]bool{
	"the": true, "a": true, "an": true,
	"vs": true, "vs.": true, "versus": true, "against": true,
	"with": true, "at": true, "on": true, "into": true,
	"times": true, "fights": true, "hp": true,
}

// ParseCommand splits a line into a verb and its arguments. The verb is
// lowercased and resolved through aliases; arguments keep their case
// because skill and buff ids are case sensitive.
func ParseCommand(input string) Command {
	words := strings.Fields(strings.TrimSpace(input))
	if len(words) == 0 {
		return Command{}
	}

	verb := strings.ToLower(words[0])
	if alias, ok := verbAliases[verb]; ok {
		verb = alias
	}
	args := make([]string, 0, len(words)-1)
	for _, w := range words[1:] {
		if !fillers[strings.ToLower(w)] {
			args = append(args, w)
		}
	}
	return Command{Verb: verb, Args: args}
}
