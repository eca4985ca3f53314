package runtime

import (
	"chat-link/contract"
	"chat-link/domain/event"
	"chat-link/presence"
	"chat-link/reactions"
	"chat-link/registry"
	"chat-link/stream"
	"chat-link/typing"
	"context"
	"log/slog"
	"sync"
	"time"
)

// Dispatcher is the single consumer of the session manager's event stream.
// It hands each event to the component that owns the affected state, in
// arrival order, then forwards it to any registered observer sinks. Running
// it as one worker serializes cross-component effects (unread bookkeeping
// before log append, for example) without a global lock.
type Dispatcher struct {
	log             *slog.Logger
	events          <-chan event.Event
	selfID          string
	snapshotTimeout time.Duration

	api       contract.API
	presence  *presence.Tracker
	typing    *typing.Coordinator
	reactions *reactions.Aggregator
	registry  *registry.Registry
	stream    *stream.Handler

	mu    sync.Mutex
	sinks []contract.EventSink
}

func NewDispatcher(
	events <-chan event.Event,
	selfID string,
	snapshotTimeout time.Duration,
	api contract.API,
	presenceTracker *presence.Tracker,
	typingCoordinator *typing.Coordinator,
	reactionAggregator *reactions.Aggregator,
	scopeRegistry *registry.Registry,
	streamHandler *stream.Handler,
	log *slog.Logger,
) *Dispatcher {
	return &Dispatcher{
		log:             log,
		events:          events,
		selfID:          selfID,
		snapshotTimeout: snapshotTimeout,
		api:             api,
		presence:        presenceTracker,
		typing:          typingCoordinator,
		reactions:       reactionAggregator,
		registry:        scopeRegistry,
		stream:          streamHandler,
	}
}

// AddSink registers an observer that sees every event after the owning
// components have applied it.
func (d *Dispatcher) AddSink(sink contract.EventSink) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sinks = append(d.sinks, sink)
}

func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-d.events:
			if !ok {
				return nil
			}
			d.route(ctx, ev)
			d.notify(ctx, ev)
		}
	}
}

// route is the exhaustive dispatch over the event sum type. Each variant
// touches only its owner; cross-component effects happen here, in one
// fixed order.
func (d *Dispatcher) route(ctx context.Context, ev event.Event) {
	switch e := ev.(type) {
	case event.MessageReceived:
		// A message from a typist is a stronger signal than stop-typing.
		d.typing.Apply(e)
		if e.Message.SenderID != d.selfID {
			d.registry.NoteInbound(e.Scope, e.Message.CreatedAt)
		}
		d.stream.OnMessage(ctx, e)

	case event.ReactionAdded, event.ReactionRemoved:
		d.reactions.Apply(e)

	case event.TypingStarted, event.TypingStopped:
		d.typing.Apply(e)

	case event.UserStatusChanged:
		d.presence.Apply(e)

	case event.SendRejected:
		d.stream.OnRejected(e)

	case event.Connected:
		// Snapshots go over REST and can be slow; fetching them here would
		// stall routing of everything buffered behind the reconnect. Only
		// the outbox replay stays on the loop.
		go d.seed(ctx, d.presence.BeginSeed())
		d.stream.FlushPending(ctx)

	case event.Reconnecting:
		d.log.Info("Session reconnecting", "attempt", e.Attempt)

	case event.Degraded:
		d.log.Warn("Session degraded", "reason", e.Reason)

	case event.Disconnected:
		d.typing.Clear()
		d.presence.Clear()
		d.stream.FailAllPending()
	}
}

// seed refetches the authoritative snapshots after every Connected
// transition: registry listings and the presence roster. It runs off the
// routing loop; the token fences the roster install, so status deltas
// routed while the fetch was in flight win over the snapshot and a fetch
// that outlives its connection installs nothing. A failed snapshot leaves
// the previous state in place and never blocks the session.
func (d *Dispatcher) seed(ctx context.Context, token uint64) {
	seedCtx, cancel := context.WithTimeout(ctx, d.snapshotTimeout)
	defer cancel()

	if err := d.registry.Refresh(seedCtx); err != nil {
		d.log.Warn("Registry snapshot deferred", "error", err)
	}
	roster, err := d.api.OnlineUsers(seedCtx)
	if err != nil {
		d.log.Warn("Roster snapshot deferred", "error", err)
		return
	}
	d.presence.Seed(token, roster)
}

func (d *Dispatcher) notify(ctx context.Context, ev event.Event) {
	d.mu.Lock()
	sinks := make([]contract.EventSink, len(d.sinks))
	copy(sinks, d.sinks)
	d.mu.Unlock()

	for _, sink := range sinks {
		if err := sink.Consume(ctx, ev); err != nil {
			d.log.Debug("Observer sink rejected event", "error", err)
		}
	}
}
