package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/npezzotti/go-chatclient/internal/session"
	"github.com/npezzotti/go-chatclient/internal/types"
)

type lineKind int

const (
	lineNone lineKind = iota
	lineChat
	lineOwn
	linePrivate
	lineSystem
	lineError
)

type line struct {
	kind lineKind
	text string
}

// describe renders a notification as the lines a user should see. Changes
// that only affect the sidebar or header produce none.
func describe(n session.Notification) []line {
	switch n := n.(type) {
	case session.MessageAppended:
		return []line{messageLine(n.Message)}

	case session.HistoryLoaded:
		out := make([]line, 0, len(n.Messages)+1)
		out = append(out, line{lineSystem, fmt.Sprintf("-- history for #%s --", n.Room)})
		for _, m := range n.Messages {
			out = append(out, messageLine(m))
		}
		return out

	case session.ChatOpened:
		return []line{{lineSystem, fmt.Sprintf("you joined #%s", n.Room)}}
	case session.ChatSwitched:
		return []line{{lineSystem, fmt.Sprintf("you moved from #%s to #%s", n.From, n.To)}}
	case session.ChatClosed:
		return []line{{lineSystem, fmt.Sprintf("you left #%s", n.Room)}}
	case session.MemberJoined:
		return []line{{lineSystem, fmt.Sprintf("%s joined #%s", n.Username, n.Room)}}
	case session.MemberLeft:
		return []line{{lineSystem, fmt.Sprintf("%s left #%s", n.Username, n.Room)}}
	case session.DisplayNameChanged:
		return []line{{lineSystem, fmt.Sprintf("%s is now known as %s", n.Old, n.New)}}

	case session.RoomListReplaced:
		if len(n.Rooms) == 0 {
			return []line{{lineSystem, "no rooms"}}
		}
		names := make([]string, 0, len(n.Rooms))
		for _, r := range n.Rooms {
			names = append(names, fmt.Sprintf("#%s (%d)", r.Name, r.MemberCount))
		}
		return []line{{lineSystem, "rooms: " + strings.Join(names, ", ")}}

	case session.ProfileStatusChanged:
		return []line{{lineSystem, fmt.Sprintf("profile status: %s", n.Status)}}
	case session.ProfileResolved:
		return []line{{lineSystem, fmt.Sprintf("username: %s", n.Username)}}
	case session.PresenceChanged:
		return []line{{lineSystem, fmt.Sprintf("you are %s", n.Presence)}}

	case session.ConnectionChanged:
		if n.State == "closed" {
			return []line{{lineSystem, "disconnected, /reconnect to try again"}}
		}
		return []line{{lineSystem, "connected"}}

	case session.ServerError:
		return []line{{lineError, "server: " + n.Message}}
	case session.LocalError:
		return []line{{lineError, n.Message}}
	}

	return nil
}

func messageLine(m types.ChatMessage) line {
	name := m.FromDisplayName
	if name == "" {
		name = m.FromUsername
	}

	text := fmt.Sprintf("%s %s: %s", timestamp(m.CreatedAt), name, m.Content)
	switch {
	case m.Private:
		return line{linePrivate, fmt.Sprintf("%s [private] %s: %s", timestamp(m.CreatedAt), name, m.Content)}
	case m.Own:
		return line{lineOwn, text}
	default:
		return line{lineChat, text}
	}
}

// timestamp shortens RFC 3339 times to the local clock; anything else is
// shown as sent.
func timestamp(createdAt string) string {
	if createdAt == "" {
		return "--:--"
	}
	t, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return createdAt
	}
	return t.Local().Format("15:04")
}
