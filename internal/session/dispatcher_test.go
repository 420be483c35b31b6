package session

import (
	"bytes"
	"testing"
	"time"

	"github.com/npezzotti/go-chatclient/internal/protocol"
	"github.com/npezzotti/go-chatclient/internal/stats"
	"github.com/npezzotti/go-chatclient/internal/testutil"
	"github.com/npezzotti/go-chatclient/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestNewDispatcher_registersMetrics(t *testing.T) {
	su := &stats.MockStatsUpdater{}
	su.On("RegisterMetric", mock.Anything).Times(5)
	defer su.AssertExpectations(t)

	d := NewDispatcher(NewState(localUser), NewMonitor(0, 0, nil), &journal{}, nil, testutil.TestLogger(t), su)
	assert.NotNil(t, d.notifier, "expected a default notifier")
}

func TestDispatch_ownMessageById(t *testing.T) {
	d, j, _ := newTestDispatcher(t)

	feed(d,
		`{"type":"identity_announced","payload":42}`,
		`{"type":"send_message","payload":"hey","from_id":42}`,
		`{"type":"send_message","payload":"yo","from_id":7,"from_display_name":"Bob"}`,
	)

	msgs := notesOf[MessageAppended](j)
	if assert.Len(t, msgs, 2) {
		assert.True(t, msgs[0].Message.Own, "expected id match to classify as own message")
		assert.Equal(t, "hey", msgs[0].Message.Content)
		assert.False(t, msgs[1].Message.Own, "expected other id to classify as other message")
		assert.Equal(t, "Bob", msgs[1].Message.FromDisplayName)
	}
}

func TestDispatch_messageBeforeIdentityIsNotOwn(t *testing.T) {
	d, j, _ := newTestDispatcher(t)

	feed(d, `{"type":"send_message","payload":"hey","from_id":""}`)

	msgs := notesOf[MessageAppended](j)
	if assert.Len(t, msgs, 1) {
		assert.False(t, msgs[0].Message.Own)
	}
}

func TestDispatch_identityBoundOnce(t *testing.T) {
	d, j, _ := newTestDispatcher(t)

	feed(d,
		`{"type":"identity_announced","payload":"5f1c3d0e-8d2a-4a43-9d4e-0d1d7c2b9a10"}`,
		`{"type":"identity_announced","payload":"other"}`,
	)

	assert.Equal(t, types.UserID("5f1c3d0e-8d2a-4a43-9d4e-0d1d7c2b9a10"), d.state.Identity().Id)
	assert.Len(t, notesOf[IdentityBound](j), 1, "expected a single identity notification")
	assert.Equal(t, "alice", d.state.Identity().Username, "expected out of band identity to be kept")
}

func TestDispatch_privateMessage(t *testing.T) {
	d, j, _ := newTestDispatcher(t)

	feed(d, `{"type":"private_message","payload":"psst","from_id":"9","from_username":"bob","from_display_name":"Bob","created_at":"2024-01-01T00:00:00Z"}`)

	msgs := notesOf[MessageAppended](j)
	if assert.Len(t, msgs, 1) {
		assert.True(t, msgs[0].Message.Private)
		assert.Empty(t, msgs[0].Message.Room, "expected private message not to be tied to a room")
		assert.Equal(t, "bob", msgs[0].Message.FromUsername)
	}
	assert.Equal(t, "", d.state.CurrentRoom())
}

func TestDispatch_pingRepliesBeforeNextEnvelope(t *testing.T) {
	d, j, clock := newTestDispatcher(t)
	d.connectionOpened()

	clock.Advance(30 * time.Second)
	feed(d,
		`{"type":"ping"}`,
		`{"type":"send_message","payload":"after ping","from_id":1}`,
		`{"type":"ping"}`,
	)

	assert.Equal(t, []string{
		"notify:session.ConnectionChanged",
		"notify:session.PresenceChanged",
		"send:pong",
		"notify:session.MessageAppended",
		"send:pong",
	}, j.Entries())
	assert.Equal(t, []string{`{"type":"pong"}`, `{"type":"pong"}`}, j.Frames())
	assert.Equal(t, clock.Now(), d.monitor.LastHeartbeat(), "expected ping to refresh the heartbeat")
}

func TestDispatch_orderPreserved(t *testing.T) {
	d, j, _ := newTestDispatcher(t)

	big := make([]byte, 64*1024)
	for i := range big {
		big[i] = 'x'
	}

	feed(d,
		`{"type":"send_message","payload":"A","from_id":1}`,
		`{"type":"send_message","payload":"`+string(big)+`","from_id":1}`,
		`{"type":"send_message","payload":"C","from_id":1}`,
	)

	msgs := notesOf[MessageAppended](j)
	if assert.Len(t, msgs, 3) {
		assert.Equal(t, "A", msgs[0].Message.Content)
		assert.Len(t, msgs[1].Message.Content, len(big))
		assert.Equal(t, "C", msgs[2].Message.Content)
	}
}

func TestDispatch_unknownTypeIsIgnored(t *testing.T) {
	su := &stats.MockStatsUpdater{}
	su.On("RegisterMetric", mock.Anything)
	su.On("Incr", stats.EnvelopesReceived).Once()
	su.On("Incr", stats.UnknownEnvelopes).Once()
	defer su.AssertExpectations(t)

	j := &journal{}
	d := NewDispatcher(NewState(localUser), NewMonitor(0, 0, nil), j, j, testutil.TestLogger(t), su)
	before := d.state.Snapshot()

	assert.NotPanics(t, func() {
		feed(d, `{"type":"unknown_xyz"}`)
	})

	assert.Equal(t, before, d.state.Snapshot(), "expected no state change")
	assert.Empty(t, j.Entries(), "expected no notification or send")
}

func TestDispatch_decodeFailuresAreDropped(t *testing.T) {
	su := &stats.MockStatsUpdater{}
	su.On("RegisterMetric", mock.Anything)
	su.On("Incr", stats.DecodeFailures).Times(3)
	defer su.AssertExpectations(t)

	j := &journal{}
	d := NewDispatcher(NewState(localUser), NewMonitor(0, 0, nil), j, j, testutil.TestLogger(t), su)

	assert.NotPanics(t, func() {
		feed(d,
			`not json`,
			`{"payload":"no type"}`,
			`{"type":"room_list","rooms":42}`,
		)
	})
	assert.Empty(t, j.Entries())
}

func TestDispatch_userJoinedOpensChatOnce(t *testing.T) {
	d, j, _ := newTestDispatcher(t)

	feed(d,
		`{"type":"user_joined","room_name":"lobby","username":"alice"}`,
		`{"type":"user_joined","room_name":"lobby","username":"bob"}`,
		`{"type":"user_joined","room_name":"lobby","username":"carol"}`,
	)

	opened := notesOf[ChatOpened](j)
	assert.Equal(t, []ChatOpened{{Room: "lobby"}}, opened, "expected one hidden to visible transition")
	assert.Len(t, notesOf[MemberJoined](j), 2)

	snap := d.state.Snapshot()
	assert.True(t, snap.ChatOpen)
	assert.Equal(t, "lobby", snap.CurrentRoom)
	assert.Equal(t, []string{"bob", "carol"}, usernames(snap.Roster))
}

func TestDispatch_rosterBeforeOwnJoinIsKept(t *testing.T) {
	d, _, _ := newTestDispatcher(t)

	feed(d,
		`{"type":"room_update","room_name":"lobby","users":[{"username":"alice","display_name":"Alice","status":"online"},{"username":"bob","display_name":"Bob","status":"away"}]}`,
		`{"type":"user_joined","room_name":"lobby","username":"alice"}`,
	)

	assert.Equal(t, []string{"alice", "bob"}, usernames(d.state.Roster()))
}

func TestDispatch_newRoomInvalidatesRoster(t *testing.T) {
	d, _, _ := newTestDispatcher(t)

	feed(d,
		`{"type":"user_joined","room_name":"lobby","username":"alice"}`,
		`{"type":"room_update","room_name":"lobby","users":[{"username":"alice"},{"username":"bob"}]}`,
		`{"type":"user_joined","room_name":"games","username":"alice"}`,
	)

	assert.Equal(t, "games", d.state.CurrentRoom())
	assert.Empty(t, d.state.Roster(), "expected previous room roster to be dropped")

	feed(d, `{"type":"room_update","room_name":"lobby","users":[{"username":"zed"}]}`)
	assert.Empty(t, d.state.Roster(), "expected other room roster not to become visible")
}

func TestDispatch_switchRoomWhileOpen(t *testing.T) {
	d, j, _ := newTestDispatcher(t)

	feed(d,
		`{"type":"user_joined","room_name":"lobby","username":"alice"}`,
		`{"type":"room_update","room_name":"dev","users":[{"username":"bob","display_name":"Bob"}]}`,
		`{"type":"user_joined","room_name":"dev","username":"alice"}`,
		`{"type":"user_joined","room_name":"dev","username":"alice"}`,
	)

	assert.Equal(t, "dev", d.state.CurrentRoom())
	assert.Equal(t, []string{"bob"}, usernames(d.state.Roster()), "expected roster sent before the join to show")
	assert.Equal(t, []ChatOpened{{Room: "lobby"}}, notesOf[ChatOpened](j))
	assert.Equal(t, []ChatSwitched{{From: "lobby", To: "dev"}}, notesOf[ChatSwitched](j), "expected one switch notification")
}

func TestDispatch_userLeft(t *testing.T) {
	d, j, _ := newTestDispatcher(t)

	feed(d,
		`{"type":"user_joined","room_name":"lobby","username":"alice"}`,
		`{"type":"room_update","room_name":"lobby","users":[{"username":"alice"},{"username":"bob"}]}`,
		`{"type":"user_left","room_name":"lobby","username":"bob"}`,
		`{"type":"user_left","room_name":"lobby","username":"bob"}`,
	)
	assert.Equal(t, []string{"alice"}, usernames(d.state.Roster()))
	assert.Len(t, notesOf[MemberLeft](j), 1)

	feed(d, `{"type":"user_left","room_name":"lobby","username":"alice"}`)
	snap := d.state.Snapshot()
	assert.False(t, snap.ChatOpen, "expected local leave to hide the chat")
	assert.Empty(t, snap.CurrentRoom)
	assert.Empty(t, snap.Roster)
	assert.Equal(t, []ChatClosed{{Room: "lobby"}}, notesOf[ChatClosed](j))
}

func TestDispatch_displaynameChanged(t *testing.T) {
	d, j, _ := newTestDispatcher(t)

	feed(d,
		`{"type":"user_joined","room_name":"lobby","username":"alice"}`,
		`{"type":"room_update","room_name":"lobby","users":[{"username":"alice","display_name":"Alice"},{"username":"bob","display_name":"Bob"}]}`,
		`{"type":"displayname_changed","old":"Alice","new":"Ally"}`,
		`{"type":"displayname_changed","old":"Nobody","new":"Somebody"}`,
	)

	assert.Equal(t, "Ally", d.state.Identity().DisplayName)
	roster := d.state.Roster()
	assert.Equal(t, "Ally", roster[0].DisplayName)
	assert.Equal(t, "Bob", roster[1].DisplayName)
	assert.Equal(t, []DisplayNameChanged{{Old: "Alice", New: "Ally"}}, notesOf[DisplayNameChanged](j))
}

func TestDispatch_roomListReplaced(t *testing.T) {
	d, j, _ := newTestDispatcher(t)

	feed(d,
		`{"type":"room_list","rooms":[{"name":"lobby","count":3},{"name":"games","count":1}]}`,
		`{"type":"room_list","rooms":[{"name":"music","count":2}]}`,
	)

	assert.Equal(t, []types.RoomListEntry{{Name: "music", MemberCount: 2}}, d.state.Snapshot().Rooms)
	assert.Len(t, notesOf[RoomListReplaced](j), 2)
}

func TestDispatch_statusUpdates(t *testing.T) {
	d, j, _ := newTestDispatcher(t)
	c := NewCommands(j, testutil.TestLogger(t), stats.NopStats{})
	assert.NoError(t, c.SubscribeToProfile(7))
	d.subscription = c.Subscription

	feed(d,
		`{"type":"user_joined","room_name":"lobby","username":"alice"}`,
		`{"type":"room_update","room_name":"lobby","users":[{"username":"bob","status":"online"}]}`,
		`{"type":"user_status_changed","username":"bob","status":"away"}`,
		`{"type":"user_status_changed","username":"ghost","status":"away"}`,
		`{"type":"user_status_update","status":"offline"}`,
	)

	assert.Equal(t, types.PresenceAway, d.state.Roster()[0].Status)
	assert.Equal(t, []RosterStatusChanged{{Username: "bob", Status: types.PresenceAway}}, notesOf[RosterStatusChanged](j))
	assert.Equal(t, types.PresenceOffline, d.state.Snapshot().ProfileStatus)
	assert.Equal(t, []ProfileStatusChanged{{Status: types.PresenceOffline}}, notesOf[ProfileStatusChanged](j))
}

func TestDispatch_profileStatusNeedsSubscription(t *testing.T) {
	d, j, _ := newTestDispatcher(t)

	feed(d, `{"type":"user_status_update","status":"away"}`)
	assert.Empty(t, notesOf[ProfileStatusChanged](j), "expected update without subscription to be ignored")
	assert.Empty(t, d.state.Snapshot().ProfileStatus)

	c := NewCommands(j, testutil.TestLogger(t), stats.NopStats{})
	d.subscription = c.Subscription
	assert.NoError(t, c.SubscribeToProfile(7))
	feed(d, `{"type":"user_status_update","status":"away"}`)

	assert.NoError(t, c.UnsubscribeFromProfile())
	feed(d, `{"type":"user_status_update","status":"online"}`)

	assert.Equal(t, []ProfileStatusChanged{{Status: types.PresenceAway}}, notesOf[ProfileStatusChanged](j))
	assert.Equal(t, types.PresenceAway, d.state.Snapshot().ProfileStatus)
}

func TestDispatch_claimedIdMismatchLogged(t *testing.T) {
	d, _, _ := newTestDispatcher(t)
	buf := &bytes.Buffer{}
	d.log.SetOutput(buf)
	d.claimedId = "7"

	feed(d, `{"type":"identity_announced","payload":42}`)

	assert.Equal(t, types.UserID("42"), d.state.Identity().Id, "expected announced id to win")
	assert.Contains(t, buf.String(), "announced id 42 differs from token user id 7")
}

func TestDispatch_numericServerErrorCode(t *testing.T) {
	d, j, _ := newTestDispatcher(t)

	feed(d, `{"type":"error","code":400,"message":"Invalid status"}`)

	assert.Equal(t, []ServerError{{Code: "400", Message: "Invalid status"}}, notesOf[ServerError](j))
}

func TestDispatch_recieveUsername(t *testing.T) {
	d, j, _ := newTestDispatcher(t)

	feed(d,
		`{"type":"recieve_username","username":"bob"}`,
		`{"type":"recieve_username","username":"Unknown"}`,
	)

	assert.Equal(t, []ProfileResolved{{Username: "bob"}}, notesOf[ProfileResolved](j))
	assert.Equal(t, []LocalError{{Message: "User not found"}}, notesOf[LocalError](j))
}

func TestDispatch_serverErrorKeepsState(t *testing.T) {
	d, j, _ := newTestDispatcher(t)
	feed(d, `{"type":"user_joined","room_name":"lobby","username":"alice"}`)
	before := d.state.Snapshot()

	feed(d, `{"type":"error","code":"400","message":"Invalid status. Use: online, away, busy, offline"}`)

	assert.Equal(t, before, d.state.Snapshot())
	assert.Equal(t, []ServerError{{Code: "400", Message: "Invalid status. Use: online, away, busy, offline"}}, notesOf[ServerError](j))
}

func TestDispatch_loadRoomMessages(t *testing.T) {
	d, j, _ := newTestDispatcher(t)

	history := `{"type":"load_room_messages","room_name":"lobby","messages":[` +
		`{"id":1,"content":"first","created_at":"t1","edited_at":null,"message_type":"text","user":{"id":1,"username":"alice","display_name":"Alice"}},` +
		`{"id":2,"content":"second","created_at":"t2","edited_at":"t3","message_type":"text","user":{"id":2,"username":"bob","display_name":"Bob"}}]}`

	feed(d, history)
	assert.Empty(t, notesOf[HistoryLoaded](j), "expected history to be ignored outside a room")

	feed(d, `{"type":"user_joined","room_name":"lobby","username":"alice"}`, history)
	loaded := notesOf[HistoryLoaded](j)
	if assert.Len(t, loaded, 1) && assert.Len(t, loaded[0].Messages, 2) {
		assert.True(t, loaded[0].Messages[0].Own)
		assert.False(t, loaded[0].Messages[1].Own)
		assert.Equal(t, "t3", loaded[0].Messages[1].EditedAt)
	}
}

func TestDispatch_parsedEventsDirectly(t *testing.T) {
	d, j, _ := newTestDispatcher(t)

	d.Dispatch(protocol.ServerError{Code: "404", Message: "gone"})
	d.Dispatch(protocol.Unknown{Type: "future_event"})

	assert.Equal(t, []string{"notify:session.ServerError"}, j.Entries())
}

func usernames(roster []types.RosterEntry) []string {
	out := make([]string, 0, len(roster))
	for _, e := range roster {
		out = append(out, e.Username)
	}
	return out
}
