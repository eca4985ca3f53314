// Package session owns the duplex transport session: its lifecycle, the
// reconnect loop, and the routing of outbound intents. Every other
// component observes the session only through the unified event stream.
package session

import (
	"chat-link/contract"
	"chat-link/domain"
	"chat-link/domain/event"
	stderr "chat-link/errors"
	"context"
	"log/slog"
	"sync"
	"time"
)

type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
)

// Manager supervises one logical session. It pumps every live connection's
// inbound events into a single stream that survives reconnects, interleaved
// with the lifecycle transitions it produces itself.
type Manager struct {
	mu      sync.Mutex
	log     *slog.Logger
	dialer  contract.Dialer
	creds   contract.CredentialProvider
	state   State
	conn    contract.Conn
	cancel  context.CancelFunc
	connErr error
	joined  map[domain.ScopeID]struct{}
	events  chan event.Event
}

func NewManager(dialer contract.Dialer, creds contract.CredentialProvider, eventBuffer int, log *slog.Logger) *Manager {
	return &Manager{
		log:    log,
		dialer: dialer,
		creds:  creds,
		state:  StateDisconnected,
		joined: make(map[domain.ScopeID]struct{}),
		events: make(chan event.Event, eventBuffer),
	}
}

// Events is the unified stream of lifecycle transitions and inbound
// transport events, in the order the manager observed them. The channel is
// never closed; it spans reconnects.
func (m *Manager) Events() <-chan event.Event {
	return m.events
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// ConnectionError reports why the session is degraded, nil when healthy.
func (m *Manager) ConnectionError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connErr
}

// Connect establishes the session. Idempotent: a connect while already
// connected, connecting, or auto-reconnecting is a no-op. A transport-level
// failure is not a failure of Connect: the session enters degraded mode
// (REST only) and the caller's UI stays usable.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	if m.state != StateDisconnected {
		m.mu.Unlock()
		return nil
	}
	m.state = StateConnecting
	m.mu.Unlock()

	conn, err := m.dial(ctx)
	if err != nil {
		m.mu.Lock()
		m.state = StateDisconnected
		m.connErr = err
		m.mu.Unlock()
		m.log.Warn("Session degraded, REST fallback only", "error", err)
		m.emit(event.Degraded{Reason: err.Error()})
		return nil
	}

	sessionCtx, cancel := context.WithCancel(context.Background())
	m.mu.Lock()
	m.state = StateConnected
	m.conn = conn
	m.connErr = nil
	m.cancel = cancel
	m.mu.Unlock()

	m.emit(event.Connected{Resumed: false})
	go m.supervise(sessionCtx, conn)
	return nil
}

// Disconnect tears the session down for good: it cancels any in-flight
// backoff wait, closes the transport, and forgets the joined scope set.
func (m *Manager) Disconnect() error {
	m.mu.Lock()
	cancel := m.cancel
	conn := m.conn
	m.cancel = nil
	m.conn = nil
	m.state = StateDisconnected
	m.connErr = nil
	m.joined = make(map[domain.ScopeID]struct{})
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		_ = conn.Close()
	}
	m.emit(event.Disconnected{})
	return nil
}

// Invoke routes an outbound intent. Send commands get queue semantics: the
// caller keeps them pending on ErrNotConnected and replays after the next
// Connected. Everything else is best-effort and silently dropped while the
// session is down. Join commands are additionally recorded so the scope is
// rejoined after a reconnect.
func (m *Manager) Invoke(ctx context.Context, cmd event.Command) error {
	m.mu.Lock()
	if join, ok := cmd.(event.JoinScope); ok {
		m.joined[join.Scope] = struct{}{}
	}
	state := m.state
	conn := m.conn
	m.mu.Unlock()

	_, isSend := cmd.(event.SendMessage)

	if state != StateConnected || conn == nil {
		if isSend {
			return stderr.ErrNotConnected
		}
		return nil
	}

	if err := conn.Send(ctx, cmd); err != nil {
		if isSend {
			return stderr.ErrNotConnected
		}
		m.log.Debug("Best-effort command dropped", "error", err)
	}
	return nil
}

// JoinedScopes returns the scopes the session will rejoin after a drop.
func (m *Manager) JoinedScopes() []domain.ScopeID {
	m.mu.Lock()
	defer m.mu.Unlock()
	scopes := make([]domain.ScopeID, 0, len(m.joined))
	for scope := range m.joined {
		scopes = append(scopes, scope)
	}
	return scopes
}

func (m *Manager) dial(ctx context.Context) (contract.Conn, error) {
	token, err := m.creds.Token(ctx)
	if err != nil {
		return nil, err
	}
	return m.dialer.Dial(ctx, token)
}

// supervise pumps the live connection and drives the reconnect loop when
// it drops. It exits only when the session context is cancelled by an
// explicit Disconnect.
func (m *Manager) supervise(ctx context.Context, conn contract.Conn) {
	for {
		m.pump(ctx, conn)
		if ctx.Err() != nil {
			return
		}

		m.log.Warn("Transport dropped, reconnecting")
		next, ok := m.reconnect(ctx)
		if !ok {
			return
		}
		conn = next
	}
}

func (m *Manager) pump(ctx context.Context, conn contract.Conn) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, open := <-conn.Events():
			if !open {
				return
			}
			select {
			case m.events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}
}

// reconnect retries indefinitely with the capped backoff schedule. There is
// no give-up state; only Disconnect (context cancellation) stops the loop.
// On success the attempt counter resets and every joined scope is rejoined,
// since membership is not assumed to survive server-side across a drop.
func (m *Manager) reconnect(ctx context.Context) (contract.Conn, bool) {
	for attempt := 0; ; attempt++ {
		m.mu.Lock()
		m.state = StateReconnecting
		m.mu.Unlock()
		m.emit(event.Reconnecting{Attempt: attempt})

		if delay := NextDelay(attempt); delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, false
			case <-timer.C:
			}
		}
		if ctx.Err() != nil {
			return nil, false
		}

		conn, err := m.dial(ctx)
		if err != nil {
			m.log.Warn("Reconnect attempt failed", "attempt", attempt, "error", err)
			continue
		}

		m.mu.Lock()
		m.state = StateConnected
		m.conn = conn
		m.connErr = nil
		scopes := make([]domain.ScopeID, 0, len(m.joined))
		for scope := range m.joined {
			scopes = append(scopes, scope)
		}
		m.mu.Unlock()

		m.emit(event.Connected{Resumed: true})

		for _, scope := range scopes {
			if err := conn.Send(ctx, event.JoinScope{Scope: scope}); err != nil {
				m.log.Warn("Scope rejoin failed", "scope", scope.ID, "error", err)
				break
			}
		}
		return conn, true
	}
}

// emit blocks until the dispatcher takes the event; lifecycle transitions
// and inbound traffic must never be reordered or dropped.
func (m *Manager) emit(ev event.Event) {
	m.events <- ev
}
