package stream

import (
	"chat-link/contract"
	"chat-link/domain"
	"chat-link/domain/event"
	stderr "chat-link/errors"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ActiveScopeView is the handler's read-only window into the registry.
// The registry stays the sole owner of the active-scope decision.
type ActiveScopeView interface {
	ActiveScope() (domain.ScopeID, bool)
}

// Handler drives the message flow: optimistic sends through the outbox and
// the session manager, lazy log fetches over REST, and reconciliation of
// server echoes back onto their optimistic entries.
type Handler struct {
	mu      sync.Mutex
	log     *slog.Logger
	store   *Store
	outbox  contract.Outbox
	invoker contract.Invoker
	api     contract.API
	active  ActiveScopeView
	self    domain.Participant
}

func NewHandler(store *Store, outbox contract.Outbox, invoker contract.Invoker, api contract.API,
	active ActiveScopeView, self domain.Participant, log *slog.Logger) *Handler {
	return &Handler{
		log:     log,
		store:   store,
		outbox:  outbox,
		invoker: invoker,
		api:     api,
		active:  active,
		self:    self,
	}
}

// Send appends an optimistic pending entry immediately, records it in the
// outbox, then pushes it through the session manager. When the session is
// down the entry simply stays queued; it is replayed on the next Connected
// transition. The mutex serializes sends so the outbox order is exactly
// the submission order.
func (h *Handler) Send(ctx context.Context, scope domain.ScopeID, body, parentID string) (domain.Message, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	correlationID := uuid.NewString()
	msg := domain.Message{
		ID:            correlationID, // provisional until the echo arrives
		CorrelationID: correlationID,
		Scope:         scope,
		SenderID:      h.self.UserID,
		SenderName:    h.self.DisplayName,
		Body:          body,
		ParentID:      parentID,
		CreatedAt:     time.Now().UTC(),
		Delivery:      domain.DeliveryPending,
	}

	h.store.AppendLocal(msg)
	if err := h.outbox.Enqueue(msg); err != nil {
		return msg, fmt.Errorf("outbox enqueue: %w", err)
	}

	err := h.invoker.Invoke(ctx, event.SendMessage{
		Scope:         scope,
		Body:          body,
		ParentID:      parentID,
		CorrelationID: correlationID,
	})
	if err != nil && !errors.Is(err, stderr.ErrNotConnected) {
		h.log.Warn("Send deferred to reconnect", "correlation_id", correlationID, "error", err)
	}
	return msg, nil
}

// OnMessage routes one inbound message. Echoes of our own sends ack the
// outbox and reconcile with their optimistic entry by correlation id; an
// echo with no optimistic entry falls through and is treated as a regular
// inbound message. For everything else only the active scope's log is
// appended to. Other scopes are fetched lazily when opened, which bounds
// memory.
func (h *Handler) OnMessage(ctx context.Context, e event.MessageReceived) {
	if e.Message.CorrelationID != "" && e.Message.SenderID == h.self.UserID {
		// The ack must not depend on an optimistic entry being present: after
		// a restart the outbox still holds the send but the store does not,
		// and an unacked entry would be replayed on every reconnect.
		if err := h.outbox.Ack(e.Message.CorrelationID); err != nil {
			h.log.Warn("Outbox ack failed", "correlation_id", e.Message.CorrelationID, "error", err)
		}
		if h.store.Reconcile(e.Message) {
			return
		}
	}

	if scope, ok := h.active.ActiveScope(); ok && scope == e.Scope {
		h.store.Upsert(e.Scope, e.Message)
	}
}

// OnRejected marks the optimistic entry failed and stops retrying it. The
// entry stays visible in its log; rejection is surfaced, not swallowed.
func (h *Handler) OnRejected(e event.SendRejected) {
	if h.store.MarkFailed(e.CorrelationID) {
		h.log.Warn("Send rejected by server", "correlation_id", e.CorrelationID, "reason", e.Reason)
	}
	if err := h.outbox.Fail(e.CorrelationID); err != nil {
		h.log.Warn("Outbox fail failed", "correlation_id", e.CorrelationID, "error", err)
	}
}

// FlushPending replays queued sends in original submission order. Called on
// every Connected transition; entries leave the outbox only via echo (Ack)
// or rejection (Fail), so a flush interrupted by another drop re-sends the
// remainder next time.
func (h *Handler) FlushPending(ctx context.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()

	pending, err := h.outbox.Pending()
	if err != nil {
		h.log.Error("Outbox read failed", "error", err)
		return
	}

	for _, msg := range pending {
		err := h.invoker.Invoke(ctx, event.SendMessage{
			Scope:         msg.Scope,
			Body:          msg.Body,
			ParentID:      msg.ParentID,
			CorrelationID: msg.CorrelationID,
		})
		if err != nil {
			// The session dropped again mid-flush; the rest of the queue
			// keeps its order for the next attempt.
			h.log.Warn("Flush interrupted", "correlation_id", msg.CorrelationID, "error", err)
			return
		}
	}
}

// FetchLog loads the scope's canonical page over REST and installs it,
// preserving local pending entries. A failed fetch leaves the log empty and
// returns the error so callers can offer a retry.
func (h *Handler) FetchLog(ctx context.Context, scope domain.ScopeID) error {
	page, _, err := h.api.Messages(ctx, scope, nil)
	if err != nil {
		h.log.Warn("Message page fetch failed", "scope", scope.ID, "error", err)
		return err
	}
	h.store.Replace(scope, page)
	return nil
}

// FailAllPending surfaces every queued send as failed. Explicit disconnect
// clears in-flight state; already-received messages are preserved.
func (h *Handler) FailAllPending() {
	h.mu.Lock()
	defer h.mu.Unlock()

	pending, err := h.outbox.Pending()
	if err == nil {
		for _, msg := range pending {
			_ = h.outbox.Fail(msg.CorrelationID)
		}
	}
	h.store.FailAllPending()
}
