// Package event defines the tagged variants flowing between the transport
// and the state-owning components. Inbound events and session lifecycle
// transitions share one sum type so every consumer dispatches with a single
// exhaustive type switch instead of string-keyed handler registration.
package event

import (
	"chat-link/domain"
)

// Event is anything the dispatcher can deliver to a component.
type Event interface {
	isEvent()
}

type MessageReceived struct {
	Scope   domain.ScopeID
	Message domain.Message
}

type ReactionAdded struct {
	MessageID string
	UserID    string
	Emoji     string
}

type ReactionRemoved struct {
	MessageID string
	UserID    string
	Emoji     string
}

type TypingStarted struct {
	Scope       domain.ScopeID
	UserID      string
	DisplayName string
}

type TypingStopped struct {
	Scope  domain.ScopeID
	UserID string
}

type UserStatusChanged struct {
	UserID string
	Status domain.Status
}

// SendRejected is the server's explicit refusal of a previously submitted
// message, matched back to its optimistic entry by correlation id.
type SendRejected struct {
	CorrelationID string
	Reason        string
}

func (MessageReceived) isEvent()   {}
func (ReactionAdded) isEvent()     {}
func (ReactionRemoved) isEvent()   {}
func (TypingStarted) isEvent()     {}
func (TypingStopped) isEvent()     {}
func (UserStatusChanged) isEvent() {}
func (SendRejected) isEvent()      {}
