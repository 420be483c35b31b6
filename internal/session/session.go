package session

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/npezzotti/go-chatclient/internal/stats"
	"github.com/npezzotti/go-chatclient/internal/transport"
	"github.com/npezzotti/go-chatclient/internal/types"
)

const intentBuffer = 64

var (
	ErrQueueFull = errors.New("intent queue full")
	ErrStopped   = errors.New("session stopped")
)

// Transport is the connection the session drives. *transport.Connection
// implements it.
type Transport interface {
	Sender
	Connect(ctx context.Context, credential string)
	Disconnect()
	Events() <-chan transport.Event
	State() transport.State
}

type Options struct {
	Identity          types.Identity
	Credential        string
	HeartbeatInterval time.Duration
	HeartbeatGrace    time.Duration
	Verbose           bool
	// ClaimedId is the user id read from the credential. It is only
	// compared against the announced id.
	ClaimedId types.UserID
	// Now defaults to time.Now.
	Now func() time.Time
}

// Session owns one connection and everything derived from it. Transport
// events, user intents and liveness checks are all handled on the goroutine
// running Run, one at a time and in arrival order.
type Session struct {
	log        *log.Logger
	conn       Transport
	state      *State
	monitor    *Monitor
	dispatcher *Dispatcher
	commands   *Commands
	credential string
	now        func() time.Time
	intents    chan Intent
	done       chan struct{}

	// attempt that last reported open; events from older attempts are stale
	active uuid.UUID
	ticker *time.Ticker
	tick   <-chan time.Time
}

func NewSession(opts Options, conn Transport, n Notifier, l *log.Logger, su stats.StatsProvider) *Session {
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	state := NewState(opts.Identity)
	monitor := NewMonitor(opts.HeartbeatInterval, opts.HeartbeatGrace, now)
	commands := NewCommands(conn, l, su)
	d := NewDispatcher(state, monitor, conn, n, l, su)
	d.verbose = opts.Verbose
	d.claimedId = opts.ClaimedId
	d.subscription = commands.Subscription

	return &Session{
		log:        l,
		conn:       conn,
		state:      state,
		monitor:    monitor,
		dispatcher: d,
		commands:   commands,
		credential: opts.Credential,
		now:        now,
		intents:    make(chan Intent, intentBuffer),
		done:       make(chan struct{}),
	}
}

// State returns the read-only room and presence view.
func (s *Session) State() *State {
	return s.state
}

// Submit queues an intent for the session goroutine. It never blocks.
func (s *Session) Submit(in Intent) error {
	select {
	case <-s.done:
		return ErrStopped
	default:
	}

	select {
	case s.intents <- in:
		return nil
	default:
		s.log.Printf("intent queue full, dropping %T", in)
		return ErrQueueFull
	}
}

// Run connects and processes events until ctx is cancelled.
func (s *Session) Run(ctx context.Context) error {
	defer func() {
		s.stopTicker()
		s.conn.Disconnect()
		close(s.done)
	}()

	s.conn.Connect(ctx, s.credential)

	for {
		select {
		case ev := <-s.conn.Events():
			s.handleTransportEvent(ev)
		case in := <-s.intents:
			s.handleIntent(ctx, in)
		case <-s.tick:
			if s.dispatcher.checkLiveness() {
				s.stopTicker()
			}
		case <-ctx.Done():
			s.log.Println("session stopping:", ctx.Err())
			return nil
		}
	}
}

func (s *Session) handleTransportEvent(ev transport.Event) {
	switch ev.Kind {
	case transport.EventOpen:
		s.log.Printf("connection %s open", ev.ConnId)
		s.active = ev.ConnId
		s.dispatcher.connectionOpened()
		s.startTicker()

	case transport.EventMessage:
		if ev.ConnId != s.active {
			return
		}
		s.dispatcher.HandleFrame(ev.Data)

	case transport.EventError:
		s.log.Printf("connection %s error: %v", ev.ConnId, ev.Err)

	case transport.EventClose:
		if ev.ConnId != s.active && s.active != uuid.Nil {
			return
		}
		s.log.Printf("connection %s closed", ev.ConnId)
		s.active = uuid.Nil
		s.stopTicker()
		s.commands.resetSubscription()
		s.dispatcher.connectionClosed()
	}
}

func (s *Session) handleIntent(ctx context.Context, in Intent) {
	switch in := in.(type) {
	case JoinRoom:
		s.commands.JoinRoom(in.Room)

	case LeaveRoom:
		room := in.Room
		if room == "" {
			room = s.state.CurrentRoom()
		}
		if room == "" {
			s.dispatcher.localError(notInRoomText)
			return
		}
		s.commands.LeaveRoom(room)

	case Broadcast:
		room := in.Room
		if room == "" {
			room = s.state.CurrentRoom()
		}
		if room == "" && strings.TrimSpace(in.Text) != "" {
			s.dispatcher.localError(notInRoomText)
			return
		}
		err := s.commands.RoomBroadcast(in.Text, room)
		if errors.Is(err, ErrBlankMessage) {
			s.dispatcher.localError(blankMessageText)
			return
		}
		if err == nil {
			s.dispatcher.echoOwnMessage(room, in.Text, s.now().UTC().Format(time.RFC3339))
		}

	case SendPrivate:
		if err := s.commands.PrivateMessage(in.To, in.Text); errors.Is(err, ErrBlankMessage) {
			s.dispatcher.localError(blankMessageText)
		}

	case UpdateStatus:
		if s.state.MyPresence() == types.PresenceOffline {
			s.log.Printf("status change to %s ignored while offline", in.Status)
			return
		}
		if err := s.commands.UpdateStatus(in.Status); err == nil {
			s.dispatcher.toggleStatus(in.Status)
		}

	case SubscribeProfile:
		s.commands.SubscribeToProfile(in.UserId)

	case UnsubscribeProfile:
		if err := s.commands.UnsubscribeFromProfile(); errors.Is(err, ErrNoSubscription) {
			s.log.Println("unsubscribe ignored, no active subscription")
		}

	case ChangeDisplayName:
		s.commands.ChangeDisplayName(in.Name)

	case ListRooms:
		if s.conn.State() != transport.StateOpen {
			return
		}
		s.commands.GetRoomList()

	case ListRoomUsers:
		room := in.Room
		if room == "" {
			room = s.state.CurrentRoom()
		}
		s.commands.GetRoomUsers(room)

	case ResolveUsername:
		s.commands.GetUsernameFromDisplayName(in.DisplayName)

	case Reconnect:
		s.conn.Connect(ctx, s.credential)

	default:
		s.log.Printf("no handler for intent %T", in)
	}
}

func (s *Session) startTicker() {
	s.stopTicker()
	s.ticker = time.NewTicker(s.monitor.Interval())
	s.tick = s.ticker.C
}

func (s *Session) stopTicker() {
	if s.ticker != nil {
		s.ticker.Stop()
		s.ticker = nil
	}
	s.tick = nil
}
