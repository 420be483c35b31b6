package session

import "github.com/npezzotti/go-chatclient/internal/types"

// Notification describes one state change for the rendering collaborator.
type Notification interface {
	notification()
}

// Notifier receives notifications on the session goroutine, in the order
// the changes were applied. Implementations must not block for long and
// must not call back into the session synchronously.
type Notifier interface {
	Notify(n Notification)
}

type NotifierFunc func(n Notification)

func (f NotifierFunc) Notify(n Notification) { f(n) }

type nopNotifier struct{}

func (nopNotifier) Notify(Notification) {}

type (
	IdentityBound struct {
		Id types.UserID
	}
	MessageAppended struct {
		Message types.ChatMessage
	}
	HistoryLoaded struct {
		Room     string
		Messages []types.ChatMessage
	}
	RosterReplaced struct {
		Room   string
		Roster []types.RosterEntry
	}
	ChatOpened struct {
		Room string
	}
	// ChatSwitched replaces the visible room while the chat stays open.
	ChatSwitched struct {
		From string
		To   string
	}
	ChatClosed struct {
		Room string
	}
	MemberJoined struct {
		Room     string
		Username string
	}
	MemberLeft struct {
		Room     string
		Username string
	}
	DisplayNameChanged struct {
		Old string
		New string
	}
	RoomListReplaced struct {
		Rooms []types.RoomListEntry
	}
	RosterStatusChanged struct {
		Username string
		Status   types.Presence
	}
	ProfileStatusChanged struct {
		Status types.Presence
	}
	ProfileResolved struct {
		Username string
	}
	PresenceChanged struct {
		Presence types.Presence
	}
	ConnectionChanged struct {
		State string
	}
	ServerError struct {
		Code    string
		Message string
	}
	LocalError struct {
		Message string
	}
)

func (IdentityBound) notification()        {}
func (MessageAppended) notification()      {}
func (HistoryLoaded) notification()        {}
func (RosterReplaced) notification()       {}
func (ChatOpened) notification()           {}
func (ChatSwitched) notification()         {}
func (ChatClosed) notification()           {}
func (MemberJoined) notification()         {}
func (MemberLeft) notification()           {}
func (DisplayNameChanged) notification()   {}
func (RoomListReplaced) notification()     {}
func (RosterStatusChanged) notification()  {}
func (ProfileStatusChanged) notification() {}
func (ProfileResolved) notification()      {}
func (PresenceChanged) notification()      {}
func (ConnectionChanged) notification()    {}
func (ServerError) notification()          {}
func (LocalError) notification()           {}
