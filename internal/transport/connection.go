package transport

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/npezzotti/go-chatclient/internal/stats"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 1 << 20
	sendBufferSize = 256
	eventBuffer    = 256
	tokenParam     = "token"
)

var ErrClosed = errors.New("connection closed")

type State int

const (
	StateClosed State = iota
	StateConnecting
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

type EventKind int

const (
	EventOpen EventKind = iota
	EventMessage
	EventError
	EventClose
)

func (k EventKind) String() string {
	switch k {
	case EventOpen:
		return "open"
	case EventMessage:
		return "message"
	case EventError:
		return "error"
	case EventClose:
		return "close"
	default:
		return "unknown"
	}
}

// Event is a lifecycle transition or an inbound text frame. ConnId names the
// attempt that produced it.
type Event struct {
	Kind   EventKind
	ConnId uuid.UUID
	Data   []byte
	Err    error
}

// Connection owns at most one live websocket to the server. Failures are
// reported on the Events channel; no method returns a transport error.
type Connection struct {
	serverURL string
	dialer    *websocket.Dialer
	log       *log.Logger
	stats     stats.StatsProvider
	events    chan Event
	done      chan struct{}
	closeOnce sync.Once

	mu      sync.Mutex
	state   State
	current *attempt
}

type attempt struct {
	id        uuid.UUID
	conn      *websocket.Conn
	send      chan []byte
	stop      chan struct{}
	closeOnce sync.Once
}

func NewConnection(serverURL string, dialer *websocket.Dialer, l *log.Logger, su stats.StatsProvider) *Connection {
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	su.RegisterMetric(stats.Connects)
	su.RegisterMetric(stats.DroppedSends)

	return &Connection{
		serverURL: serverURL,
		dialer:    dialer,
		log:       l,
		stats:     su,
		events:    make(chan Event, eventBuffer),
		done:      make(chan struct{}),
		state:     StateClosed,
	}
}

func (c *Connection) Events() <-chan Event {
	return c.events
}

func (c *Connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect starts a dial with the given credential. It is a no-op while an
// attempt is connecting or open, and after Close.
func (c *Connection) Connect(ctx context.Context, credential string) {
	select {
	case <-c.done:
		return
	default:
	}

	c.mu.Lock()
	if c.state != StateClosed {
		c.mu.Unlock()
		c.log.Printf("connect ignored, connection is %s", c.state)
		return
	}

	a := &attempt{
		id:   uuid.New(),
		send: make(chan []byte, sendBufferSize),
		stop: make(chan struct{}),
	}
	c.state = StateConnecting
	c.current = a
	c.mu.Unlock()

	c.stats.Incr(stats.Connects)
	go c.dial(ctx, a, credential)
}

func (c *Connection) dial(ctx context.Context, a *attempt, credential string) {
	var conn *websocket.Conn
	target, err := dialURL(c.serverURL, credential)
	if err == nil {
		c.log.Printf("[%s] dialing %s", a.id, redact(target))
		conn, _, err = c.dialer.DialContext(ctx, target, dialHeader(credential))
	}

	if err != nil {
		c.log.Printf("[%s] dial: %v", a.id, err)
		c.setClosed(a)
		c.emit(Event{Kind: EventError, ConnId: a.id, Err: err})
		c.emit(Event{Kind: EventClose, ConnId: a.id, Err: err})
		return
	}

	c.mu.Lock()
	select {
	case <-a.stop:
		// disconnected while the handshake was in flight
		c.mu.Unlock()
		conn.Close()
		c.setClosed(a)
		c.emit(Event{Kind: EventClose, ConnId: a.id, Err: ErrClosed})
		return
	default:
	}
	a.conn = conn
	c.state = StateOpen
	c.mu.Unlock()

	c.log.Printf("[%s] connected", a.id)
	c.emit(Event{Kind: EventOpen, ConnId: a.id})

	go c.write(a)
	go c.read(a)
	go func() {
		select {
		case <-ctx.Done():
			c.closeAttempt(a)
		case <-a.stop:
		}
	}()
}

func (c *Connection) read(a *attempt) {
	var readErr error
	defer func() {
		c.closeAttempt(a)
		c.setClosed(a)
		if readErr != nil {
			c.emit(Event{Kind: EventError, ConnId: a.id, Err: readErr})
		}
		c.emit(Event{Kind: EventClose, ConnId: a.id, Err: readErr})
		c.log.Printf("[%s] read exiting", a.id)
	}()

	a.conn.SetReadLimit(maxMessageSize)
	for {
		msgType, raw, err := a.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				readErr = err
				c.log.Printf("[%s] ws: read: %v", a.id, err)
			}
			return
		}

		if msgType != websocket.TextMessage {
			continue
		}

		c.emit(Event{Kind: EventMessage, ConnId: a.id, Data: raw})
	}
}

func (c *Connection) write(a *attempt) {
	defer func() {
		c.closeAttempt(a)
		c.log.Printf("[%s] write exiting", a.id)
	}()

	for {
		select {
		case frame := <-a.send:
			a.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := a.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.log.Printf("[%s] write message: %s", a.id, err)
				return
			}
		case <-a.stop:
			a.conn.SetWriteDeadline(time.Now().Add(writeWait))
			a.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// Send queues a text frame on the open connection. Frames sent in any other
// state, or when the send buffer is full, are dropped and false is returned.
func (c *Connection) Send(frame []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateOpen || c.current == nil {
		c.stats.Incr(stats.DroppedSends)
		return false
	}

	select {
	case c.current.send <- frame:
	default:
		c.log.Printf("[%s] send buffer full, dropping frame", c.current.id)
		c.stats.Incr(stats.DroppedSends)
		return false
	}

	return true
}

// Disconnect closes the live attempt, if any. A close event follows once the
// read side has wound down.
func (c *Connection) Disconnect() {
	c.mu.Lock()
	a := c.current
	c.mu.Unlock()

	if a != nil {
		c.closeAttempt(a)
	}
}

// Close disconnects and stops event delivery. Connect is a no-op afterwards.
func (c *Connection) Close() error {
	c.Disconnect()
	c.closeOnce.Do(func() { close(c.done) })
	return nil
}

func (c *Connection) closeAttempt(a *attempt) {
	a.closeOnce.Do(func() {
		c.mu.Lock()
		close(a.stop)
		conn := a.conn
		c.mu.Unlock()

		if conn != nil {
			// let the writer send a close frame before tearing down the socket
			time.AfterFunc(100*time.Millisecond, func() { conn.Close() })
		}
	})
}

func (c *Connection) setClosed(a *attempt) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == a {
		c.state = StateClosed
		c.current = nil
	}
}

// emit preserves arrival order; it only gives up once the connection is
// closed for good.
func (c *Connection) emit(ev Event) {
	select {
	case c.events <- ev:
	case <-c.done:
	}
}

func dialURL(serverURL, credential string) (string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}

	q := u.Query()
	q.Set(tokenParam, credential)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// dialHeader also presents the credential as the session cookie the server
// issues at login.
func dialHeader(credential string) http.Header {
	if credential == "" {
		return nil
	}
	cookie := &http.Cookie{Name: tokenParam, Value: credential}
	return http.Header{"Cookie": {cookie.String()}}
}

func redact(target string) string {
	u, err := url.Parse(target)
	if err != nil {
		return target
	}
	q := u.Query()
	if q.Has(tokenParam) {
		q.Set(tokenParam, "xxxxx")
		u.RawQuery = q.Encode()
	}
	return u.String()
}
