package session

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/npezzotti/go-chatclient/internal/types"
)

// Intent is a user action waiting to be turned into an outbound command.
type Intent interface {
	intent()
}

type JoinRoom struct {
	Room string
}

// LeaveRoom leaves Room, or the current room when Room is empty.
type LeaveRoom struct {
	Room string
}

// Broadcast posts Text to Room, or the current room when Room is empty.
type Broadcast struct {
	Text string
	Room string
}

type SendPrivate struct {
	To   string
	Text string
}

type UpdateStatus struct {
	Status types.Presence
}

type SubscribeProfile struct {
	UserId int
}

type UnsubscribeProfile struct{}

type ChangeDisplayName struct {
	Name string
}

type ListRooms struct{}

type ListRoomUsers struct {
	Room string
}

type ResolveUsername struct {
	DisplayName string
}

type Reconnect struct{}

func (JoinRoom) intent()           {}
func (LeaveRoom) intent()          {}
func (Broadcast) intent()          {}
func (SendPrivate) intent()        {}
func (UpdateStatus) intent()       {}
func (SubscribeProfile) intent()   {}
func (UnsubscribeProfile) intent() {}
func (ChangeDisplayName) intent()  {}
func (ListRooms) intent()          {}
func (ListRoomUsers) intent()      {}
func (ResolveUsername) intent()    {}
func (Reconnect) intent()          {}

var ErrUnknownCommand = errors.New("unknown command")

const Usage = `/join <room>          join a room
/leave [room]         leave the current room
/status online|away   change your status
/nick <name>          change your display name
/rooms                list rooms
/who [room]           list room members
/profile <user id>    follow a user's status
/unprofile            stop following
/whois <display name> look up a username
/msg <user> <text>    private message
/reconnect            reconnect to the server
<text>                send to the current room`

// ParseIntent turns one line of user input into an intent. Lines that do
// not start with a slash are room broadcasts, including blank ones.
func ParseIntent(line string) (Intent, error) {
	if !strings.HasPrefix(line, "/") {
		return Broadcast{Text: line}, nil
	}

	cmd, rest, _ := strings.Cut(strings.TrimPrefix(line, "/"), " ")
	rest = strings.TrimSpace(rest)

	switch strings.ToLower(cmd) {
	case "join":
		if rest == "" {
			return nil, fmt.Errorf("usage: /join <room>")
		}
		return JoinRoom{Room: rest}, nil
	case "leave":
		return LeaveRoom{Room: rest}, nil
	case "status":
		switch p := types.Presence(strings.ToLower(rest)); p {
		case types.PresenceOnline, types.PresenceAway:
			return UpdateStatus{Status: p}, nil
		}
		return nil, fmt.Errorf("usage: /status online|away")
	case "nick":
		if rest == "" {
			return nil, fmt.Errorf("usage: /nick <name>")
		}
		return ChangeDisplayName{Name: rest}, nil
	case "rooms":
		return ListRooms{}, nil
	case "who":
		return ListRoomUsers{Room: rest}, nil
	case "profile":
		id, err := strconv.Atoi(rest)
		if err != nil {
			return nil, fmt.Errorf("usage: /profile <user id>")
		}
		return SubscribeProfile{UserId: id}, nil
	case "unprofile":
		return UnsubscribeProfile{}, nil
	case "whois":
		if rest == "" {
			return nil, fmt.Errorf("usage: /whois <display name>")
		}
		return ResolveUsername{DisplayName: rest}, nil
	case "msg":
		to, text, _ := strings.Cut(rest, " ")
		if to == "" {
			return nil, fmt.Errorf("usage: /msg <user> <text>")
		}
		return SendPrivate{To: to, Text: text}, nil
	case "reconnect":
		return Reconnect{}, nil
	default:
		return nil, fmt.Errorf("%w: /%s", ErrUnknownCommand, cmd)
	}
}
