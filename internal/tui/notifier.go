package tui

import (
	"sync/atomic"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/npezzotti/go-chatclient/internal/session"
)

// notificationMsg carries a session notification into the program.
type notificationMsg struct {
	note session.Notification
}

// Notifier forwards session notifications to a bubbletea program. Call
// SetProgram once the program exists; earlier notifications are dropped.
type Notifier struct {
	program atomic.Pointer[tea.Program]
}

func NewNotifier() *Notifier {
	return &Notifier{}
}

func (n *Notifier) SetProgram(p *tea.Program) {
	n.program.Store(p)
}

func (n *Notifier) Notify(note session.Notification) {
	if p := n.program.Load(); p != nil {
		p.Send(notificationMsg{note: note})
	}
}
