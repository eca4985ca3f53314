package reactions

import (
	"chat-link/domain"
	"chat-link/domain/event"
	stderr "chat-link/errors"
	"chat-link/stream"
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type recordingInvoker struct {
	mu   sync.Mutex
	cmds []event.Command
	err  error
}

func (r *recordingInvoker) Invoke(_ context.Context, cmd event.Command) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cmds = append(r.cmds, cmd)
	return r.err
}

func (r *recordingInvoker) commands() []event.Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]event.Command, len(r.cmds))
	copy(out, r.cmds)
	return out
}

func storeWithMessage(scope domain.ScopeID, id string) *stream.Store {
	store := stream.NewStore()
	store.Replace(scope, []domain.Message{{
		ID:        id,
		Scope:     scope,
		SenderID:  "alice",
		CreatedAt: time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC),
		Delivery:  domain.DeliverySent,
	}})
	return store
}

func TestAggregator_Toggle_AddsWhenAbsent(t *testing.T) {
	req := require.New(t)
	scope := domain.ChannelScope("general")
	store := storeWithMessage(scope, "42")
	invoker := &recordingInvoker{}
	aggregator := NewAggregator(store, invoker, "me", slog.Default())

	req.NoError(aggregator.Toggle(context.Background(), "42", "👍"))

	// Applied locally before the echo arrives.
	has, known := store.HasReaction("42", "me", "👍")
	req.True(known)
	req.True(has)

	commands := invoker.commands()
	req.Len(commands, 1)
	req.Equal(event.AddReaction{MessageID: "42", Emoji: "👍"}, commands[0])
}

func TestAggregator_Toggle_RemovesWhenPresent(t *testing.T) {
	req := require.New(t)
	scope := domain.ChannelScope("general")
	store := storeWithMessage(scope, "42")
	invoker := &recordingInvoker{}
	aggregator := NewAggregator(store, invoker, "me", slog.Default())

	// A double toggle returns to the original state with one add and one
	// remove, never two adds.
	req.NoError(aggregator.Toggle(context.Background(), "42", "👍"))
	req.NoError(aggregator.Toggle(context.Background(), "42", "👍"))

	has, known := store.HasReaction("42", "me", "👍")
	req.True(known)
	req.False(has)

	commands := invoker.commands()
	req.Len(commands, 2)
	req.Equal(event.AddReaction{MessageID: "42", Emoji: "👍"}, commands[0])
	req.Equal(event.RemoveReaction{MessageID: "42", Emoji: "👍"}, commands[1])
}

func TestAggregator_Toggle_UnknownMessage(t *testing.T) {
	req := require.New(t)
	store := stream.NewStore()
	aggregator := NewAggregator(store, &recordingInvoker{}, "me", slog.Default())

	err := aggregator.Toggle(context.Background(), "missing", "👍")
	req.ErrorIs(err, stderr.ErrUnknownMessage)
}

func TestAggregator_Toggle_BestEffortTransport(t *testing.T) {
	req := require.New(t)
	scope := domain.ChannelScope("general")
	store := storeWithMessage(scope, "42")
	invoker := &recordingInvoker{err: stderr.ErrNotConnected}
	aggregator := NewAggregator(store, invoker, "me", slog.Default())

	// A dropped transport signal does not undo the local apply.
	req.NoError(aggregator.Toggle(context.Background(), "42", "👍"))

	has, _ := store.HasReaction("42", "me", "👍")
	req.True(has)
}

func TestAggregator_EchoIsIdempotent(t *testing.T) {
	req := require.New(t)
	scope := domain.ChannelScope("general")
	store := storeWithMessage(scope, "42")
	aggregator := NewAggregator(store, &recordingInvoker{}, "me", slog.Default())

	req.NoError(aggregator.Toggle(context.Background(), "42", "👍"))
	// The server echoes our own add back.
	aggregator.Apply(event.ReactionAdded{MessageID: "42", UserID: "me", Emoji: "👍"})

	messages := store.Messages(scope)
	req.Len(messages[0].Reactions, 1)
	req.Equal(1, messages[0].Reactions[0].Count)
}

func TestAggregator_Apply_InboundTraffic(t *testing.T) {
	req := require.New(t)
	scope := domain.ChannelScope("general")
	store := storeWithMessage(scope, "42")
	aggregator := NewAggregator(store, &recordingInvoker{}, "me", slog.Default())

	aggregator.Apply(event.ReactionAdded{MessageID: "42", UserID: "bob", Emoji: "🎉"})
	aggregator.Apply(event.ReactionAdded{MessageID: "42", UserID: "clara", Emoji: "🎉"})
	aggregator.Apply(event.ReactionRemoved{MessageID: "42", UserID: "bob", Emoji: "🎉"})

	messages := store.Messages(scope)
	req.Len(messages[0].Reactions, 1)
	group := messages[0].Reactions[0]
	req.Equal(1, group.Count)
	req.Equal([]string{"clara"}, group.Users)
}

func TestAggregator_Apply_UnknownMessageIsSkipped(t *testing.T) {
	store := stream.NewStore()
	aggregator := NewAggregator(store, &recordingInvoker{}, "me", slog.Default())

	// Reactions for unfetched scopes arrive routinely; they must not panic
	// or error the dispatcher.
	aggregator.Apply(event.ReactionAdded{MessageID: "missing", UserID: "bob", Emoji: "👍"})
	aggregator.Apply(event.ReactionRemoved{MessageID: "missing", UserID: "bob", Emoji: "👍"})
}
