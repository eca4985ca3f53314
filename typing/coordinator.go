// Package typing coordinates ephemeral "is typing" state in both
// directions: outbound signals are debounced so rapid keystrokes do not
// flood the transport, and inbound signals expire on a per-(scope, user)
// timer unless refreshed.
package typing

import (
	"chat-link/contract"
	"chat-link/domain"
	"chat-link/domain/event"
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"
)

type key struct {
	scope  domain.ScopeID
	userID string
}

type entry struct {
	state domain.TypingState
	seq   uint64
}

type Coordinator struct {
	mu         sync.Mutex
	log        *slog.Logger
	invoker    contract.Invoker
	debounce   time.Duration
	expiry     time.Duration
	typists    map[key]*entry
	lastSignal map[domain.ScopeID]time.Time
	seq        uint64
}

func NewCoordinator(invoker contract.Invoker, debounce, expiry time.Duration, log *slog.Logger) *Coordinator {
	return &Coordinator{
		log:        log,
		invoker:    invoker,
		debounce:   debounce,
		expiry:     expiry,
		typists:    make(map[key]*entry),
		lastSignal: make(map[domain.ScopeID]time.Time),
	}
}

// StartTyping signals the transport unless a signal for this scope was sent
// within the debounce window. Best-effort: a failed signal is logged and
// forgotten, never retried.
func (c *Coordinator) StartTyping(ctx context.Context, scope domain.ScopeID) {
	c.mu.Lock()
	if last, ok := c.lastSignal[scope]; ok && time.Since(last) < c.debounce {
		c.mu.Unlock()
		return
	}
	c.lastSignal[scope] = time.Now()
	c.mu.Unlock()

	if err := c.invoker.Invoke(ctx, event.StartTyping{Scope: scope}); err != nil {
		c.log.Debug("Typing signal dropped", "scope", scope.ID, "error", err)
	}
}

// StopTyping signals immediately and clears the local suppression window so
// the next StartTyping re-signals.
func (c *Coordinator) StopTyping(ctx context.Context, scope domain.ScopeID) {
	c.mu.Lock()
	delete(c.lastSignal, scope)
	c.mu.Unlock()

	if err := c.invoker.Invoke(ctx, event.StopTyping{Scope: scope}); err != nil {
		c.log.Debug("Stop-typing signal dropped", "scope", scope.ID, "error", err)
	}
}

// Apply folds inbound typing traffic into local state. A TypingStarted
// inserts or refreshes the typist and re-arms their expiry timer; a
// TypingStopped or a message from the typist removes the state immediately.
func (c *Coordinator) Apply(e event.Event) {
	switch ev := e.(type) {
	case event.TypingStarted:
		c.refresh(ev)
	case event.TypingStopped:
		c.remove(ev.Scope, ev.UserID)
	case event.MessageReceived:
		c.remove(ev.Scope, ev.Message.SenderID)
	}
}

func (c *Coordinator) refresh(ev event.TypingStarted) {
	c.mu.Lock()
	defer c.mu.Unlock()

	k := key{scope: ev.Scope, userID: ev.UserID}
	c.seq++
	seq := c.seq
	c.typists[k] = &entry{
		seq: seq,
		state: domain.TypingState{
			Scope:       ev.Scope,
			UserID:      ev.UserID,
			DisplayName: ev.DisplayName,
			Deadline:    time.Now().Add(c.expiry),
		},
	}

	// The timer captures the sequence number so a stale expiry cannot
	// remove a state that has been refreshed since.
	time.AfterFunc(c.expiry, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if current, ok := c.typists[k]; ok && current.seq == seq {
			delete(c.typists, k)
		}
	})
}

func (c *Coordinator) remove(scope domain.ScopeID, userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.typists, key{scope: scope, userID: userID})
}

// Typists returns the users currently typing in scope, sorted by user id.
func (c *Coordinator) Typists(scope domain.ScopeID) []domain.TypingState {
	c.mu.Lock()
	defer c.mu.Unlock()

	var states []domain.TypingState
	for k, e := range c.typists {
		if k.scope == scope {
			states = append(states, e.state)
		}
	}
	sort.Slice(states, func(i, j int) bool { return states[i].UserID < states[j].UserID })
	return states
}

// Clear drops all typing state and suppression windows, e.g. on disconnect.
// Outstanding timers become no-ops through the sequence check.
func (c *Coordinator) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.typists = make(map[key]*entry)
	c.lastSignal = make(map[domain.ScopeID]time.Time)
}
