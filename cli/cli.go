// Package cli provides the plain terminal loop and script playback for
// the arena.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/nathoo/duelcore/arena"
)

// CLI handles line-by-line terminal interaction.
type CLI struct {
	Session   *arena.Session
	In        io.Reader
	Out       io.Writer
	EchoInput bool   // echo each input line after the prompt (for script playback)
	lastCmd   string // for "again"/"g" repeat
}

// New creates a CLI wired to the given session.
func New(s *arena.Session) *CLI {
	return &CLI{
		Session: s,
		In:      os.Stdin,
		Out:     os.Stdout,
	}
}

// Run loops prompt → input → dispatch → output until /quit, end of input
// or ctx is done.
func (c *CLI) Run(ctx context.Context) {
	c.printLine("Type /help for commands.")

	scanner := bufio.NewScanner(c.In)
	for ctx.Err() == nil {
		c.print("> ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		// Skip comment lines (for script files).
		if strings.HasPrefix(input, "#") {
			continue
		}
		if c.EchoInput {
			c.printLine(input)
		}

		// "again" / "g" repeats the last fight command.
		lower := strings.ToLower(input)
		if lower == "again" || lower == "g" {
			if c.lastCmd == "" {
				c.printLine("Nothing to repeat.")
				continue
			}
			input = c.lastCmd
		} else if !strings.HasPrefix(input, "/") {
			c.lastCmd = input
		}

		reply := c.Session.Step(ctx, input)
		c.printReply(reply)
		if reply.Quit {
			return
		}
	}
}

func (c *CLI) printReply(r arena.Reply) {
	for _, line := range r.Output {
		c.printLine(line)
	}
	for _, line := range r.Trace {
		c.printLine(line)
	}
	if r.Status != nil {
		c.printLine(statusLine(r.Status))
	}
}

func statusLine(s *arena.Status) string {
	return fmt.Sprintf("-- %s %d/%d | %s %d/%d | round %d --",
		s.Left.Name, s.Left.HP, s.Left.MaxHP, s.Right.Name, s.Right.HP, s.Right.MaxHP, s.Rounds)
}

func (c *CLI) printLine(text string) {
	fmt.Fprintln(c.Out, text)
}

func (c *CLI) print(text string) {
	fmt.Fprint(c.Out, text)
}
