package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/npezzotti/go-chatclient/internal/session"
	"github.com/npezzotti/go-chatclient/internal/types"
)

const (
	sidebarWidth = 26
	maxLines     = 1000
)

var (
	primaryColor   = lipgloss.Color("#7C3AED")
	secondaryColor = lipgloss.Color("#10B981")
	privateColor   = lipgloss.Color("#F59E0B")
	mutedColor     = lipgloss.Color("#9CA3AF")
	errorColor     = lipgloss.Color("#EF4444")

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			Padding(0, 1)

	sidebarStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(primaryColor).
			Padding(0, 1).
			Width(sidebarWidth)

	chatWindowStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(primaryColor)

	ownMessageStyle   = lipgloss.NewStyle().Foreground(secondaryColor)
	otherMessageStyle = lipgloss.NewStyle()
	privateStyle      = lipgloss.NewStyle().Foreground(privateColor)
	mutedStyle        = lipgloss.NewStyle().Foreground(mutedColor)
	errorStyle        = lipgloss.NewStyle().Foreground(errorColor).Bold(true)

	presenceStyles = map[types.Presence]lipgloss.Style{
		types.PresenceOnline:  lipgloss.NewStyle().Foreground(secondaryColor),
		types.PresenceAway:    lipgloss.NewStyle().Foreground(privateColor),
		types.PresenceOffline: mutedStyle,
	}
)

// Submitter accepts user intents. *session.Session implements it.
type Submitter interface {
	Submit(in session.Intent) error
}

// StateSource is the read-only session state the view is drawn from.
type StateSource interface {
	Snapshot() session.Snapshot
}

// submitResultMsg reports a rejected intent back to the model.
type submitResultMsg struct {
	err error
}

type Model struct {
	submit Submitter
	state  StateSource

	input  textinput.Model
	chat   viewport.Model
	lines  []line
	snap   session.Snapshot
	status line
	width  int
	height int
}

func NewModel(submit Submitter, state StateSource) Model {
	input := textinput.New()
	input.Placeholder = "Type a message or /help..."
	input.CharLimit = 2000
	input.Width = 50
	input.Focus()

	return Model{
		submit: submit,
		state:  state,
		input:  input,
		chat:   viewport.New(80, 20),
		snap:   state.Snapshot(),
	}
}

func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		case "enter":
			text := m.input.Value()
			m.input.Reset()
			return m.handleInput(text)
		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.chat, cmd = m.chat.Update(msg)
			return m, cmd
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		chatWidth := max(m.width-sidebarWidth-6, 20)
		// header, input, status and two borders
		chatHeight := max(m.height-6, 3)
		m.chat = viewport.New(chatWidth, chatHeight)
		m.input.Width = chatWidth - 4
		m.refreshChat()

	case notificationMsg:
		m.snap = m.state.Snapshot()
		m.apply(msg.note)
		return m, nil

	case submitResultMsg:
		if msg.err != nil {
			m.status = line{lineError, msg.err.Error()}
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m Model) handleInput(text string) (tea.Model, tea.Cmd) {
	switch strings.TrimSpace(text) {
	case "/quit":
		return m, tea.Quit
	case "/help":
		for _, l := range strings.Split(session.Usage, "\n") {
			m.appendLine(line{lineSystem, l})
		}
		m.status = line{}
		m.refreshChat()
		return m, nil
	}

	in, err := session.ParseIntent(text)
	if err != nil {
		m.status = line{lineError, err.Error()}
		return m, nil
	}

	m.status = line{}
	return m, submitIntent(m.submit, in)
}

// submitIntent hands the intent to the session off the update loop.
func submitIntent(s Submitter, in session.Intent) tea.Cmd {
	return func() tea.Msg {
		return submitResultMsg{err: s.Submit(in)}
	}
}

func (m *Model) apply(n session.Notification) {
	switch n.(type) {
	case session.ChatOpened, session.ChatSwitched:
		m.lines = nil
	case session.ServerError, session.LocalError:
		for _, l := range describe(n) {
			m.status = l
		}
		return
	}

	for _, l := range describe(n) {
		m.appendLine(l)
	}
	m.refreshChat()
}

func (m *Model) appendLine(l line) {
	m.lines = append(m.lines, l)
	if len(m.lines) > maxLines {
		m.lines = m.lines[len(m.lines)-maxLines:]
	}
}

func (m *Model) refreshChat() {
	var b strings.Builder
	for _, l := range m.lines {
		b.WriteString(render(l))
		b.WriteString("\n")
	}
	m.chat.SetContent(b.String())
	m.chat.GotoBottom()
}

func render(l line) string {
	switch l.kind {
	case lineOwn:
		return ownMessageStyle.Render(l.text)
	case linePrivate:
		return privateStyle.Render(l.text)
	case lineSystem:
		return mutedStyle.Render(l.text)
	case lineError:
		return errorStyle.Render(l.text)
	default:
		return otherMessageStyle.Render(l.text)
	}
}

func (m Model) View() string {
	chat := lipgloss.JoinVertical(lipgloss.Left,
		m.headerView(),
		m.chat.View(),
		render(m.status),
		m.input.View(),
	)

	return lipgloss.JoinHorizontal(lipgloss.Top,
		sidebarStyle.Render(m.sidebarView()),
		chatWindowStyle.Render(chat),
	)
}

func (m Model) headerView() string {
	room := "no room"
	if m.snap.ChatOpen {
		room = "#" + m.snap.CurrentRoom
	}

	name := m.snap.Identity.DisplayName
	if name == "" {
		name = m.snap.Identity.Username
	}

	return headerStyle.Render(fmt.Sprintf("%s  %s %s", room, name, presenceBadge(m.snap.Presence)))
}

func (m Model) sidebarView() string {
	var b strings.Builder

	b.WriteString(headerStyle.Render("Members"))
	b.WriteString("\n")
	if len(m.snap.Roster) == 0 {
		b.WriteString(mutedStyle.Render("  -"))
		b.WriteString("\n")
	}
	for _, e := range m.snap.Roster {
		name := e.DisplayName
		if name == "" {
			name = e.Username
		}
		fmt.Fprintf(&b, "%s %s\n", presenceDot(e.Status), name)
	}

	b.WriteString("\n")
	b.WriteString(headerStyle.Render("Rooms"))
	b.WriteString("\n")
	if len(m.snap.Rooms) == 0 {
		b.WriteString(mutedStyle.Render("  /rooms to list"))
		b.WriteString("\n")
	}
	for _, r := range m.snap.Rooms {
		fmt.Fprintf(&b, "#%s %s\n", r.Name, mutedStyle.Render(fmt.Sprintf("(%d)", r.MemberCount)))
	}

	return b.String()
}

func presenceDot(p types.Presence) string {
	style, ok := presenceStyles[p]
	if !ok {
		style = mutedStyle
	}
	return style.Render("●")
}

func presenceBadge(p types.Presence) string {
	return presenceDot(p) + " " + string(p)
}
