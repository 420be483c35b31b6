package session

import (
	"log"

	"github.com/npezzotti/go-chatclient/internal/protocol"
	"github.com/npezzotti/go-chatclient/internal/stats"
	"github.com/npezzotti/go-chatclient/internal/types"
)

// unknownUsername is what the server answers when a display name does not
// resolve to anyone online.
const unknownUsername = "Unknown"

// Dispatcher applies inbound envelopes and connection lifecycle changes to
// State, one at a time, and tells the notifier what changed.
type Dispatcher struct {
	state    *State
	monitor  *Monitor
	sender   Sender
	notifier Notifier
	log      *log.Logger
	stats    stats.StatsProvider
	verbose  bool

	// subscription reports the profile status updates are expected for.
	subscription func() (int, bool)
	// claimedId is the user id carried by the session token, if any.
	claimedId types.UserID
}

func NewDispatcher(state *State, monitor *Monitor, sender Sender, n Notifier, l *log.Logger, su stats.StatsProvider) *Dispatcher {
	if n == nil {
		n = nopNotifier{}
	}

	for _, name := range []string{
		stats.EnvelopesReceived,
		stats.DecodeFailures,
		stats.UnknownEnvelopes,
		stats.PongsSent,
		stats.StaleVerdicts,
	} {
		su.RegisterMetric(name)
	}

	return &Dispatcher{
		state:    state,
		monitor:  monitor,
		sender:   sender,
		notifier: n,
		log:      l,
		stats:    su,
	}
}

// HandleFrame decodes one text frame and dispatches it. Frames that cannot
// be decoded are logged and dropped.
func (d *Dispatcher) HandleFrame(frame []byte) {
	if d.verbose {
		d.log.Println("received frame:", string(frame))
	}

	env, err := protocol.Decode(frame)
	if err != nil {
		d.log.Printf("dropping frame: %v", err)
		d.stats.Incr(stats.DecodeFailures)
		return
	}

	ev, err := protocol.ParseEvent(env)
	if err != nil {
		d.log.Printf("dropping frame: %v", err)
		d.stats.Incr(stats.DecodeFailures)
		return
	}

	d.stats.Incr(stats.EnvelopesReceived)
	d.Dispatch(ev)
}

func (d *Dispatcher) Dispatch(ev protocol.Event) {
	switch e := ev.(type) {
	case protocol.IdentityAnnounced:
		if d.state.bindIdentity(e.Payload) {
			d.log.Printf("identity bound to %s", e.Payload)
			if !d.claimedId.IsZero() && d.claimedId != e.Payload {
				d.log.Printf("announced id %s differs from token user id %s", e.Payload, d.claimedId)
			}
			d.notifier.Notify(IdentityBound{Id: e.Payload})
		}

	case protocol.SendMessage:
		d.notifier.Notify(MessageAppended{Message: types.ChatMessage{
			Room:            d.state.CurrentRoom(),
			FromId:          e.FromId,
			FromUsername:    e.FromUsername,
			FromDisplayName: e.FromDisplayName,
			Content:         e.Payload,
			CreatedAt:       e.CreatedAt,
			EditedAt:        e.EditedAt,
			Own:             d.state.isLocalId(e.FromId),
		}})

	case protocol.PrivateMessage:
		d.notifier.Notify(MessageAppended{Message: types.ChatMessage{
			FromId:          e.FromId,
			FromUsername:    e.FromUsername,
			FromDisplayName: e.FromDisplayName,
			Content:         e.Payload,
			CreatedAt:       e.CreatedAt,
			EditedAt:        e.EditedAt,
			Own:             d.state.isLocalId(e.FromId),
			Private:         true,
		}})

	case protocol.RoomUpdate:
		if d.state.replaceRoster(e.RoomName, e.Users) {
			d.notifier.Notify(RosterReplaced{Room: e.RoomName, Roster: d.state.Roster()})
		}

	case protocol.UserJoined:
		if d.state.isLocalUser(e.Username) {
			prev, wasOpen := d.state.openRoom(e.RoomName)
			switch {
			case !wasOpen:
				d.notifier.Notify(ChatOpened{Room: e.RoomName})
			case prev != e.RoomName:
				d.notifier.Notify(ChatSwitched{From: prev, To: e.RoomName})
			}
			return
		}
		if d.state.noteMember(e.RoomName, e.Username) {
			d.notifier.Notify(MemberJoined{Room: e.RoomName, Username: e.Username})
		}

	case protocol.UserLeft:
		if d.state.isLocalUser(e.Username) {
			if d.state.closeRoom(e.RoomName) {
				d.notifier.Notify(ChatClosed{Room: e.RoomName})
			}
			return
		}
		if d.state.removeMember(e.RoomName, e.Username) {
			d.notifier.Notify(MemberLeft{Room: e.RoomName, Username: e.Username})
		}

	case protocol.DisplaynameChanged:
		if d.state.renameDisplayName(e.Old, e.New) {
			d.notifier.Notify(DisplayNameChanged{Old: e.Old, New: e.New})
		}

	case protocol.RoomList:
		d.state.replaceRoomList(e.Rooms)
		d.notifier.Notify(RoomListReplaced{Rooms: d.state.Snapshot().Rooms})

	case protocol.UserStatusChanged:
		if d.state.setRosterStatus(e.Username, e.Status) {
			d.notifier.Notify(RosterStatusChanged{Username: e.Username, Status: e.Status})
		}

	case protocol.UserStatusUpdate:
		if !d.subscribed() {
			d.log.Printf("ignoring profile status %s without a subscription", e.Status)
			return
		}
		d.state.setProfileStatus(e.Status)
		d.notifier.Notify(ProfileStatusChanged{Status: e.Status})

	case protocol.RecieveUsername:
		if e.Username == "" || e.Username == unknownUsername {
			d.notifier.Notify(LocalError{Message: "User not found"})
			return
		}
		d.notifier.Notify(ProfileResolved{Username: e.Username})

	case protocol.LoadRoomMessages:
		d.loadHistory(e)

	case protocol.Ping:
		if d.monitor.Heartbeat(d.sender) {
			d.stats.Incr(stats.PongsSent)
		}

	case protocol.ServerError:
		d.log.Printf("server error %s: %s", e.Code, e.Message)
		d.notifier.Notify(ServerError{Code: string(e.Code), Message: e.Message})

	case protocol.Unknown:
		d.log.Printf("ignoring envelope with unknown type %q", e.Type)
		d.stats.Incr(stats.UnknownEnvelopes)

	default:
		d.log.Printf("no handler for envelope type %q", ev.EventType())
	}
}

func (d *Dispatcher) subscribed() bool {
	if d.subscription == nil {
		return false
	}
	_, ok := d.subscription()
	return ok
}

func (d *Dispatcher) loadHistory(e protocol.LoadRoomMessages) {
	room := d.state.CurrentRoom()
	if room == "" || e.RoomName != room {
		return
	}

	local := d.state.Identity().Username
	msgs := make([]types.ChatMessage, 0, len(e.Messages))
	for _, m := range e.Messages {
		msgs = append(msgs, types.ChatMessage{
			Room:            e.RoomName,
			FromId:          m.User.Id,
			FromUsername:    m.User.Username,
			FromDisplayName: m.User.DisplayName,
			Content:         m.Content,
			CreatedAt:       m.CreatedAt,
			EditedAt:        m.EditedAt,
			Own:             m.User.Username == local,
		})
	}
	d.notifier.Notify(HistoryLoaded{Room: e.RoomName, Messages: msgs})
}

// connectionOpened arms the liveness monitor and brings presence back
// online.
func (d *Dispatcher) connectionOpened() {
	d.monitor.Start()
	d.notifier.Notify(ConnectionChanged{State: "open"})
	d.setPresence(types.PresenceOnline, true)
}

func (d *Dispatcher) connectionClosed() {
	d.monitor.Stop()
	d.notifier.Notify(ConnectionChanged{State: "closed"})
	d.setPresence(types.PresenceOffline, false)
}

// checkLiveness runs one periodic check. It returns true when the
// connection was declared stale, after which the check must not run again
// until the next open.
func (d *Dispatcher) checkLiveness() bool {
	if !d.monitor.Check() {
		return false
	}

	d.log.Printf("no heartbeat since %s, marking presence offline", d.monitor.LastHeartbeat().Format("15:04:05"))
	d.stats.Incr(stats.StaleVerdicts)
	d.setPresence(types.PresenceOffline, false)
	return true
}

// toggleStatus applies a user-chosen status. Only online and away can be
// chosen, and not while offline.
func (d *Dispatcher) toggleStatus(status types.Presence) bool {
	if status != types.PresenceOnline && status != types.PresenceAway {
		return false
	}
	return d.setPresence(status, false)
}

func (d *Dispatcher) setPresence(p types.Presence, fresh bool) bool {
	if !d.state.setPresence(p, fresh) {
		return false
	}
	d.notifier.Notify(PresenceChanged{Presence: p})
	return true
}

// echoOwnMessage shows a sent broadcast locally; the server does not send
// it back to its author.
func (d *Dispatcher) echoOwnMessage(room, text, createdAt string) {
	id := d.state.Identity()
	d.notifier.Notify(MessageAppended{Message: types.ChatMessage{
		Room:            room,
		FromId:          id.Id,
		FromUsername:    id.Username,
		FromDisplayName: id.DisplayName,
		Content:         text,
		CreatedAt:       createdAt,
		Own:             true,
	}})
}

func (d *Dispatcher) localError(msg string) {
	d.notifier.Notify(LocalError{Message: msg})
}
