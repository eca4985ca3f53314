package session

import (
	"chat-link/contract"
	"chat-link/domain"
	"chat-link/domain/event"
	stderr "chat-link/errors"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	mu     sync.Mutex
	events chan event.Event
	sent   []event.Command
	closed bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{events: make(chan event.Event, 16)}
}

func (c *fakeConn) Send(_ context.Context, cmd event.Command) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, cmd)
	return nil
}

func (c *fakeConn) Events() <-chan event.Event {
	return c.events
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) sentCommands() []event.Command {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]event.Command, len(c.sent))
	copy(out, c.sent)
	return out
}

// drop simulates the transport closing underneath the session.
func (c *fakeConn) drop() {
	close(c.events)
}

type dialResult struct {
	conn *fakeConn
	err  error
}

type fakeDialer struct {
	mu      sync.Mutex
	results []dialResult
	calls   int
}

func (d *fakeDialer) Dial(_ context.Context, _ string) (contract.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.calls >= len(d.results) {
		return nil, fmt.Errorf("no dial result scripted for call %d", d.calls)
	}
	result := d.results[d.calls]
	d.calls++
	if result.err != nil {
		return nil, result.err
	}
	return result.conn, nil
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

type staticCreds string

func (c staticCreds) Token(_ context.Context) (string, error) {
	return string(c), nil
}

func waitEvent(t *testing.T, events <-chan event.Event) event.Event {
	t.Helper()
	select {
	case ev := <-events:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("no event within deadline")
		return nil
	}
}

func TestManager_Connect_EmitsConnected(t *testing.T) {
	req := require.New(t)
	conn := newFakeConn()
	dialer := &fakeDialer{results: []dialResult{{conn: conn}}}
	manager := NewManager(dialer, staticCreds("token"), 16, slog.Default())
	defer func() { _ = manager.Disconnect() }()

	req.NoError(manager.Connect(context.Background()))

	ev := waitEvent(t, manager.Events())
	req.Equal(event.Connected{Resumed: false}, ev)
	req.Equal(StateConnected, manager.State())
	req.NoError(manager.ConnectionError())
}

func TestManager_Connect_DegradedOnDialFailure(t *testing.T) {
	req := require.New(t)
	dialErr := fmt.Errorf("connection refused")
	dialer := &fakeDialer{results: []dialResult{{err: dialErr}}}
	manager := NewManager(dialer, staticCreds("token"), 16, slog.Default())

	// A transport failure is degraded mode, not an error.
	req.NoError(manager.Connect(context.Background()))

	ev := waitEvent(t, manager.Events())
	degraded, ok := ev.(event.Degraded)
	req.True(ok)
	req.Equal(dialErr.Error(), degraded.Reason)
	req.Equal(StateDisconnected, manager.State())
	req.ErrorIs(manager.ConnectionError(), dialErr)
}

func TestManager_Connect_Idempotent(t *testing.T) {
	req := require.New(t)
	conn := newFakeConn()
	dialer := &fakeDialer{results: []dialResult{{conn: conn}}}
	manager := NewManager(dialer, staticCreds("token"), 16, slog.Default())
	defer func() { _ = manager.Disconnect() }()

	req.NoError(manager.Connect(context.Background()))
	waitEvent(t, manager.Events())

	// A second connect while connected must not dial again.
	req.NoError(manager.Connect(context.Background()))
	req.Equal(1, dialer.dialCount())
}

func TestManager_Invoke_WhileDisconnected(t *testing.T) {
	req := require.New(t)
	manager := NewManager(&fakeDialer{}, staticCreds("token"), 16, slog.Default())

	// Sends surface the queueing affordance; everything else is dropped.
	err := manager.Invoke(context.Background(), event.SendMessage{Body: "hello"})
	req.ErrorIs(err, stderr.ErrNotConnected)

	req.NoError(manager.Invoke(context.Background(), event.StartTyping{Scope: domain.ChannelScope("general")}))
}

func TestManager_ForwardsInboundEvents(t *testing.T) {
	req := require.New(t)
	conn := newFakeConn()
	dialer := &fakeDialer{results: []dialResult{{conn: conn}}}
	manager := NewManager(dialer, staticCreds("token"), 16, slog.Default())
	defer func() { _ = manager.Disconnect() }()

	req.NoError(manager.Connect(context.Background()))
	waitEvent(t, manager.Events())

	conn.events <- event.UserStatusChanged{UserID: "alice", Status: domain.StatusOnline}

	ev := waitEvent(t, manager.Events())
	req.Equal(event.UserStatusChanged{UserID: "alice", Status: domain.StatusOnline}, ev)
}

func TestManager_Reconnect_RejoinsScopes(t *testing.T) {
	req := require.New(t)
	first := newFakeConn()
	second := newFakeConn()
	dialer := &fakeDialer{results: []dialResult{{conn: first}, {conn: second}}}
	manager := NewManager(dialer, staticCreds("token"), 16, slog.Default())
	defer func() { _ = manager.Disconnect() }()

	// Given a connected session with one joined scope
	req.NoError(manager.Connect(context.Background()))
	waitEvent(t, manager.Events())
	scope := domain.ChannelScope("general")
	req.NoError(manager.Invoke(context.Background(), event.JoinScope{Scope: scope}))

	// When the transport drops
	first.drop()

	// Then the session reconnects and rejoins the scope
	req.Equal(event.Reconnecting{Attempt: 0}, waitEvent(t, manager.Events()))
	req.Equal(event.Connected{Resumed: true}, waitEvent(t, manager.Events()))

	req.Eventually(func() bool {
		for _, cmd := range second.sentCommands() {
			if join, ok := cmd.(event.JoinScope); ok && join.Scope == scope {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)
	req.Equal(StateConnected, manager.State())
}

func TestManager_Reconnect_RetriesAfterDialFailure(t *testing.T) {
	req := require.New(t)
	first := newFakeConn()
	second := newFakeConn()
	dialer := &fakeDialer{results: []dialResult{
		{conn: first},
		{err: fmt.Errorf("still down")},
		{conn: second},
	}}
	manager := NewManager(dialer, staticCreds("token"), 16, slog.Default())
	defer func() { _ = manager.Disconnect() }()

	req.NoError(manager.Connect(context.Background()))
	waitEvent(t, manager.Events())

	first.drop()

	// Attempt 0 fails (zero delay), attempt 1 waits 2s then succeeds.
	req.Equal(event.Reconnecting{Attempt: 0}, waitEvent(t, manager.Events()))
	req.Equal(event.Reconnecting{Attempt: 1}, waitEvent(t, manager.Events()))

	select {
	case ev := <-manager.Events():
		req.Equal(event.Connected{Resumed: true}, ev)
	case <-time.After(5 * time.Second):
		t.Fatal("reconnect did not complete")
	}
}

func TestManager_Disconnect(t *testing.T) {
	req := require.New(t)
	conn := newFakeConn()
	dialer := &fakeDialer{results: []dialResult{{conn: conn}}}
	manager := NewManager(dialer, staticCreds("token"), 16, slog.Default())

	req.NoError(manager.Connect(context.Background()))
	waitEvent(t, manager.Events())
	req.NoError(manager.Invoke(context.Background(), event.JoinScope{Scope: domain.ChannelScope("general")}))

	req.NoError(manager.Disconnect())

	req.Equal(event.Disconnected{}, waitEvent(t, manager.Events()))
	req.Equal(StateDisconnected, manager.State())
	req.Empty(manager.JoinedScopes())

	conn.mu.Lock()
	closed := conn.closed
	conn.mu.Unlock()
	req.True(closed)
}
