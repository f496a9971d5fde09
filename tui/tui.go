package tui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nathoo/duelcore/arena"
)

// logLine is one unstyled line of the fight log. Lines are kept raw so a
// resize can wrap and style them again.
type logLine struct {
	text  string
	kind  lineKind
	typed bool // echoed command
}

// Model is the Bubble Tea model for the arena.
type Model struct {
	ctx      context.Context
	session  *arena.Session
	complete completer

	log     viewport.Model
	input   textinput.Model
	history *History
	lines   []logLine

	width, height int
	ready         bool
	quitting      bool
	lastCmd       string
}

// outputMsg delivers lines produced outside Update.
type outputMsg struct {
	input string // empty for the banner
	lines []string
}

// New creates a model that sends every command to s.
func New(ctx context.Context, s *arena.Session) Model {
	in := textinput.New()
	in.Prompt = "> "
	in.PromptStyle = styleInputPrompt
	in.CharLimit = 256
	in.Focus()

	return Model{
		ctx:      ctx,
		session:  s,
		complete: newCompleter(s.Table),
		input:    in,
		history:  NewHistory(100),
	}
}

// Run starts the program and blocks until the player quits or ctx ends.
func Run(ctx context.Context, s *arena.Session) error {
	p := tea.NewProgram(New(ctx, s), tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}

// Init prints the banner followed by the loaded table.
func (m Model) Init() tea.Cmd {
	ctx, s := m.ctx, m.session
	return tea.Batch(textinput.Blink, func() tea.Msg {
		lines := append([]string{"duelcore arena. Type /help for commands, Tab to complete ids.", ""},
			s.Step(ctx, "list").Output...)
		return outputMsg{lines: lines}
	})
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
	case outputMsg:
		m = m.appendOutput(msg)
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, keys.Submit):
			return m.submit()
		case key.Matches(msg, keys.Older):
			if cmd, ok := m.history.Prev(); ok {
				m.setInput(cmd)
			}
			return m, nil
		case key.Matches(msg, keys.Newer):
			cmd, ok := m.history.Next()
			if !ok {
				m.history.ResetCursor()
			}
			m.setInput(cmd)
			return m, nil
		case key.Matches(msg, keys.Complete):
			m.setInput(m.complete.Complete(m.input.Value()))
			return m, nil
		case key.Matches(msg, keys.Scroll):
			var cmd tea.Cmd
			m.log, cmd = m.log.Update(msg)
			return m, cmd
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) resize(w, h int) {
	m.width, m.height = w, h
	logHeight := max(h-2, 1) // status bar and input line
	if m.ready {
		m.log.Width, m.log.Height = w, logHeight
	} else {
		m.log = viewport.New(w, logHeight)
		m.log.KeyMap = logKeyMap()
		m.ready = true
	}
	m.render()
}

func (m *Model) setInput(s string) {
	m.input.SetValue(s)
	m.input.CursorEnd()
}

// submit runs the typed command. "again" and "g" repeat the last fight
// command; meta-commands are never repeated.
func (m Model) submit() (tea.Model, tea.Cmd) {
	input := strings.TrimSpace(m.input.Value())
	m.input.SetValue("")
	if input == "" {
		return m, nil
	}
	m.history.Push(input)
	m.history.ResetCursor()

	switch lower := strings.ToLower(input); {
	case lower == "again" || lower == "g":
		if m.lastCmd == "" {
			return m.appendOutput(outputMsg{input: input, lines: []string{"[Nothing to repeat.]"}}), nil
		}
		input = m.lastCmd
	case !strings.HasPrefix(input, "/"):
		m.lastCmd = input
	}

	reply := m.session.Step(m.ctx, input)
	out := make([]string, 0, len(reply.Output)+len(reply.Trace)+2)
	out = append(out, reply.Output...)
	out = append(out, reply.Trace...)
	if input == "/help" {
		out = append(out, "", "Navigation: PgUp/PgDn to scroll, Up/Down for command history, Tab to complete")
	}
	m = m.appendOutput(outputMsg{input: input, lines: out})
	if reply.Quit {
		m.quitting = true
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) appendOutput(msg outputMsg) Model {
	if msg.input != "" {
		m.lines = append(m.lines, logLine{text: "> " + msg.input, typed: true})
	}
	for _, text := range msg.lines {
		m.lines = append(m.lines, logLine{text: text, kind: classifyLine(text)})
	}
	m.lines = append(m.lines, logLine{})
	m.render()
	return m
}

// render wraps and styles the log at the current width and scrolls to
// the newest line.
func (m *Model) render() {
	if !m.ready {
		return
	}
	width := max(m.width, 10)
	out := make([]string, len(m.lines))
	for i, l := range m.lines {
		switch {
		case l.text == "":
		case l.typed:
			out[i] = stylePlayerInput.Render(wordWrap(l.text, width))
		default:
			out[i] = renderLineKind(wordWrap(l.text, width), l.kind)
		}
	}
	m.log.SetContent(strings.Join(out, "\n"))
	m.log.GotoBottom()
}

// wordWrap breaks text at spaces so no line exceeds width. Continuation
// lines repeat the first line's indentation so nested log entries stay
// aligned.
func wordWrap(text string, width int) string {
	if width <= 0 || len(text) <= width {
		return text
	}
	indent := text[:len(text)-len(strings.TrimLeft(text, " "))]

	var sb strings.Builder
	col := 0
	for _, word := range strings.Fields(text) {
		switch {
		case col == 0:
			sb.WriteString(indent)
			col = len(indent)
		case col+1+len(word) > width:
			sb.WriteString("\n" + indent)
			col = len(indent)
		default:
			sb.WriteByte(' ')
			col++
		}
		sb.WriteString(word)
		col += len(word)
	}
	return sb.String()
}

// View stacks the log, the status bar and the input line.
func (m Model) View() string {
	switch {
	case m.quitting:
		return ""
	case !m.ready:
		return "Loading..."
	}
	return strings.Join([]string{m.log.View(), m.renderStatusBar(), m.input.View()}, "\n")
}
