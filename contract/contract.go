//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"chat-link/domain"
	"chat-link/domain/event"
	"context"
	"reflect"
)

// Dialer establishes one duplex session attempt. The session manager calls
// it once per connect or reconnect attempt; each success yields a fresh Conn.
type Dialer interface {
	Dial(ctx context.Context, token string) (Conn, error)
}

// Conn is a live duplex session. Events is closed when the link drops,
// which is the manager's only signal that a reconnect is due.
type Conn interface {
	Send(ctx context.Context, cmd event.Command) error
	Events() <-chan event.Event
	Close() error
}

// Invoker routes outbound intents through the live transport, applying the
// queue-or-drop policy when the session is down.
type Invoker interface {
	Invoke(ctx context.Context, cmd event.Command) error
}

// CredentialProvider hands out the opaque bearer token used at connect
// time. The core never inspects credentials beyond expiry bookkeeping.
type CredentialProvider interface {
	Token(ctx context.Context) (string, error)
}

// API is the REST collaborator, used for initial snapshot loads and as the
// fallback surface while the duplex session is down.
type API interface {
	ListChannels(ctx context.Context) ([]domain.Channel, error)
	ListConversations(ctx context.Context) ([]domain.Conversation, error)
	Messages(ctx context.Context, scope domain.ScopeID, cursor *string) ([]domain.Message, *string, error)
	OnlineUsers(ctx context.Context) ([]domain.PresenceEntry, error)
	SearchUsers(ctx context.Context, query string) ([]domain.Participant, error)
	CreateChannel(ctx context.Context, name, description string, visibility domain.Visibility) (domain.Channel, error)
	StartConversation(ctx context.Context, userID string) (domain.Conversation, error)
}

// Outbox holds optimistic sends until the server echoes them back. Pending
// returns entries in original submission order; replay must never reorder.
type Outbox interface {
	Enqueue(msg domain.Message) error
	Pending() ([]domain.Message, error)
	Ack(correlationID string) error
	Fail(correlationID string) error
}

// EventSink receives every dispatched event after the owning components
// have applied it. Used by UIs and tests to observe state transitions.
type EventSink interface {
	Consume(ctx context.Context, e event.Event) error
}

// Worker doesn't protect itself; the supervisor restarts it after a panic.
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker,
// avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}
