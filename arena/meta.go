package arena

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nathoo/duelcore/engine/save"
)

// meta dispatches '/' commands.
func (s *Session) meta(input string) Reply {
	parts := strings.Fields(input)
	cmd := parts[0]
	var arg string
	if len(parts) > 1 {
		arg = parts[1]
	}

	switch cmd {
	case "/quit", "/exit":
		return Reply{Output: []string{"[Goodbye.]"}, Quit: true}
	case "/save":
		return s.cmdSave(arg)
	case "/replay":
		return s.cmdReplay(arg)
	case "/help":
		return Reply{Output: helpText}
	case "/trace":
		s.Trace = !s.Trace
		if s.Trace {
			return Reply{Output: []string{"[Trace output enabled.]"}}
		}
		return Reply{Output: []string{"[Trace output disabled.]"}}
	}
	return Reply{Output: []string{fmt.Sprintf("[Unknown command: %s. Type /help for available commands.]", cmd)}}
}

var helpText = []string{
	"System:",
	"  /save [name]    Save the last fight's report (default: lastfight)",
	"  /replay [name]  Print a saved report",
	"  /trace          Toggle per-fight trace output",
	"  /help           Show this help",
	"  /quit           Exit",
	"",
	"Fights:",
	"  duel <a> <b>              Player or monster against player or monster",
	"  boss <player> <boss> [hp] Strike a boss; its health carries over",
	"  hunt <player> <monster>   One wild encounter",
	"  sim <a> <b> <n>           Play n seeded duels and tally the results",
	"",
	"Table and settings:",
	"  list                      Everything the rule table defines",
	"  show <id>                 Details of a player, monster, skill or buff",
	"  seed [n]                  Fix the seed (0 draws one per fight)",
	"  verbosity full|summary|result",
	"  policy alternate|initiative|list",
	"",
	"Commands read naturally too: \"fight hero vs wolf\", \"sim hero vs wolf 200 times\".",
}

func (s *Session) cmdSave(name string) Reply {
	if s.last == nil {
		return Reply{Output: []string{"[Nothing to save yet; fight first.]"}}
	}
	if name == "" {
		name = "lastfight"
	}
	data, err := save.Save(save.FromResult(s.last.kind, s.last.res, s.last.units...))
	if err != nil {
		return Reply{Output: []string{fmt.Sprintf("[Save failed: %v]", err)}}
	}
	if err := os.MkdirAll(s.SaveDir, 0o755); err != nil {
		return Reply{Output: []string{fmt.Sprintf("[Save failed: %v]", err)}}
	}
	path := filepath.Join(s.SaveDir, name+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return Reply{Output: []string{fmt.Sprintf("[Save failed: %v]", err)}}
	}
	s.Logger.Info("report saved", "path", path, "fight", s.last.res.ID)
	return Reply{Output: []string{fmt.Sprintf("[Report saved to %s.]", name)}}
}

func (s *Session) cmdReplay(name string) Reply {
	if name == "" {
		name = "lastfight"
	}
	data, err := os.ReadFile(filepath.Join(s.SaveDir, name+".json"))
	if err != nil {
		return Reply{Output: []string{fmt.Sprintf("[Replay failed: %v]", err)}}
	}
	r, err := save.Load(data)
	if err != nil {
		return Reply{Output: []string{fmt.Sprintf("[Replay failed: %v]", err)}}
	}
	names := make([]string, len(r.Fighters))
	for i, f := range r.Fighters {
		names[i] = f.Name
	}
	out := []string{fmt.Sprintf("[%s: %s, seed %d, saved %s]",
		r.Kind, strings.Join(names, " vs "), r.Seed, r.SavedAt.Format("2006-01-02 15:04"))}
	return Reply{Output: append(out, r.Log...)}
}
