package session

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/npezzotti/go-chatclient/internal/protocol"
	"github.com/npezzotti/go-chatclient/internal/stats"
	"github.com/npezzotti/go-chatclient/internal/testutil"
	"github.com/npezzotti/go-chatclient/internal/transport"
	"github.com/npezzotti/go-chatclient/internal/types"
)

// journal records sends and notifications in one sequence so tests can
// assert their relative order.
type journal struct {
	mu      sync.Mutex
	entries []string
	frames  [][]byte
	notes   []Notification
	refuse  bool
}

func (j *journal) Send(frame []byte) bool {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.refuse {
		return false
	}
	env, err := protocol.Decode(frame)
	if err != nil {
		panic(err)
	}
	j.entries = append(j.entries, "send:"+env.Type)
	j.frames = append(j.frames, frame)
	return true
}

func (j *journal) Notify(n Notification) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.entries = append(j.entries, fmt.Sprintf("notify:%T", n))
	j.notes = append(j.notes, n)
}

func (j *journal) Entries() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.entries...)
}

func (j *journal) Frames() []string {
	j.mu.Lock()
	defer j.mu.Unlock()

	out := make([]string, 0, len(j.frames))
	for _, f := range j.frames {
		out = append(out, string(f))
	}
	return out
}

func (j *journal) Notes() []Notification {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]Notification(nil), j.notes...)
}

func notesOf[T Notification](j *journal) []T {
	var out []T
	for _, n := range j.Notes() {
		if v, ok := n.(T); ok {
			out = append(out, v)
		}
	}
	return out
}

var localUser = types.Identity{
	Username:    "alice",
	DisplayName: "Alice",
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *journal, *testutil.Clock) {
	clock := testutil.NewClock()
	j := &journal{}
	state := NewState(localUser)
	monitor := NewMonitor(DefaultHeartbeatInterval, DefaultHeartbeatGrace, clock.Now)
	d := NewDispatcher(state, monitor, j, j, testutil.TestLogger(t), stats.NopStats{})
	return d, j, clock
}

func feed(d *Dispatcher, frames ...string) {
	for _, f := range frames {
		d.HandleFrame([]byte(f))
	}
}

// fakeTransport is a Transport whose events are pushed by the test.
type fakeTransport struct {
	*journal
	mu       sync.Mutex
	state    transport.State
	events   chan transport.Event
	connects int
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		journal: &journal{refuse: true},
		events:  make(chan transport.Event, 16),
	}
}

func (f *fakeTransport) Connect(ctx context.Context, credential string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects++
}

func (f *fakeTransport) Connects() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connects
}

func (f *fakeTransport) Disconnect() {}

func (f *fakeTransport) Events() <-chan transport.Event {
	return f.events
}

func (f *fakeTransport) State() transport.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeTransport) setState(s transport.State) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = s
	f.journal.mu.Lock()
	f.journal.refuse = s != transport.StateOpen
	f.journal.mu.Unlock()
}
