// Package reactions decides add-versus-remove for reaction toggles and
// folds inbound reaction traffic into the message store.
package reactions

import (
	"chat-link/contract"
	"chat-link/domain/event"
	stderr "chat-link/errors"
	"chat-link/stream"
	"context"
	"log/slog"
	"sync"
)

type Aggregator struct {
	mu      sync.Mutex
	log     *slog.Logger
	store   *stream.Store
	invoker contract.Invoker
	selfID  string
}

func NewAggregator(store *stream.Store, invoker contract.Invoker, selfID string, log *slog.Logger) *Aggregator {
	return &Aggregator{
		log:     log,
		store:   store,
		invoker: invoker,
		selfID:  selfID,
	}
}

// Toggle picks the network operation from current local state: remove when
// our id is already in the emoji's reactor set, add otherwise. The local
// apply happens under the same lock as the decision, so a rapid second
// toggle observes the flipped state and resolves to the opposite operation
// instead of a duplicated one. The server echo is idempotent against the
// local apply.
func (a *Aggregator) Toggle(ctx context.Context, messageID, emoji string) error {
	a.mu.Lock()
	has, known := a.store.HasReaction(messageID, a.selfID, emoji)
	if !known {
		a.mu.Unlock()
		return stderr.ErrUnknownMessage
	}

	var cmd event.Command
	var err error
	if has {
		err = a.store.ApplyReactionRemoved(messageID, a.selfID, emoji)
		cmd = event.RemoveReaction{MessageID: messageID, Emoji: emoji}
	} else {
		err = a.store.ApplyReactionAdded(messageID, a.selfID, emoji)
		cmd = event.AddReaction{MessageID: messageID, Emoji: emoji}
	}
	a.mu.Unlock()
	if err != nil {
		return err
	}

	// Best-effort: a lost toggle is corrected by the next snapshot
	// fetch, never retried.
	if err := a.invoker.Invoke(ctx, cmd); err != nil {
		a.log.Debug("Reaction toggle dropped", "message_id", messageID, "emoji", emoji, "error", err)
	}
	return nil
}

// Apply folds one inbound reaction event into the store. Unknown message
// ids are normal: the reaction targets a scope we have not fetched.
func (a *Aggregator) Apply(e event.Event) {
	var err error
	switch ev := e.(type) {
	case event.ReactionAdded:
		err = a.store.ApplyReactionAdded(ev.MessageID, ev.UserID, ev.Emoji)
	case event.ReactionRemoved:
		err = a.store.ApplyReactionRemoved(ev.MessageID, ev.UserID, ev.Emoji)
	default:
		return
	}
	if err != nil {
		a.log.Debug("Reaction for unknown message skipped", "error", err)
	}
}
