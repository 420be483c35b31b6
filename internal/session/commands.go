package session

import (
	"errors"
	"log"
	"strings"

	"github.com/npezzotti/go-chatclient/internal/protocol"
	"github.com/npezzotti/go-chatclient/internal/stats"
	"github.com/npezzotti/go-chatclient/internal/types"
)

const (
	blankMessageText = "Message cannot be blank!"
	notInRoomText    = "You are not in a room"
)

var (
	ErrBlankMessage   = errors.New("message cannot be blank")
	ErrNotSent        = errors.New("command not sent")
	ErrNoSubscription = errors.New("no active profile subscription")
)

// Commands builds one outbound envelope per call and hands it to the
// sender. Apart from blank message text nothing is validated locally.
type Commands struct {
	sender Sender
	log    *log.Logger
	stats  stats.StatsProvider
	// profile subscription the server currently holds for this connection
	subscribed *int
}

func NewCommands(sender Sender, l *log.Logger, su stats.StatsProvider) *Commands {
	su.RegisterMetric(stats.CommandsSent)
	return &Commands{sender: sender, log: l, stats: su}
}

func (c *Commands) send(typ string, payload any) error {
	frame, err := protocol.Encode(typ, payload)
	if err != nil {
		c.log.Printf("encode %s: %v", typ, err)
		return err
	}

	if !c.sender.Send(frame) {
		c.log.Printf("%s not sent, connection is not open", typ)
		return ErrNotSent
	}

	c.stats.Incr(stats.CommandsSent)
	return nil
}

func (c *Commands) JoinRoom(name string) error {
	return c.send(protocol.TypeJoinRoom, name)
}

func (c *Commands) LeaveRoom(name string) error {
	return c.send(protocol.TypeLeaveRoom, name)
}

func (c *Commands) RoomBroadcast(text, room string) error {
	if strings.TrimSpace(text) == "" {
		return ErrBlankMessage
	}
	return c.send(protocol.TypeRoomBroadcast, protocol.RoomBroadcast{Payload: text, RoomName: room})
}

func (c *Commands) PrivateMessage(targetUsername, text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrBlankMessage
	}
	return c.send(protocol.TypePrivateMessage, protocol.PrivateMessageCommand{
		Payload:        text,
		TargetUsername: targetUsername,
	})
}

func (c *Commands) UpdateStatus(status types.Presence) error {
	return c.send(protocol.TypeUpdateStatus, status)
}

// SubscribeToProfile asks for live status updates of userId. An existing
// subscription to another user is released first so the server never holds
// more than one for this connection.
func (c *Commands) SubscribeToProfile(userId int) error {
	if c.subscribed != nil && *c.subscribed != userId {
		if err := c.UnsubscribeFromProfile(); err != nil {
			return err
		}
	}

	if err := c.send(protocol.TypeSubscribeToProfile, protocol.ProfileSubscription{UserId: userId}); err != nil {
		return err
	}
	c.subscribed = &userId
	return nil
}

func (c *Commands) UnsubscribeFromProfile() error {
	if c.subscribed == nil {
		return ErrNoSubscription
	}

	if err := c.send(protocol.TypeUnsubscribeFromProfile, protocol.ProfileSubscription{UserId: *c.subscribed}); err != nil {
		return err
	}
	c.subscribed = nil
	return nil
}

// Subscription returns the profile currently subscribed to, if any.
func (c *Commands) Subscription() (int, bool) {
	if c.subscribed == nil {
		return 0, false
	}
	return *c.subscribed, true
}

// resetSubscription forgets the subscription after the server dropped it
// along with the connection.
func (c *Commands) resetSubscription() {
	c.subscribed = nil
}

func (c *Commands) ChangeDisplayName(name string) error {
	return c.send(protocol.TypeChangeDisplayname, protocol.ChangeDisplayname{DisplayName: name})
}

func (c *Commands) GetRoomList() error {
	return c.send(protocol.TypeGetRoomList, nil)
}

func (c *Commands) GetRoomUsers(room string) error {
	return c.send(protocol.TypeGetRoomUsers, room)
}

func (c *Commands) GetUsernameFromDisplayName(name string) error {
	return c.send(protocol.TypeGetUsernameFromDisplayname, name)
}
