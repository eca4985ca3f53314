package event

import (
	"chat-link/domain"
)

// Command is an outbound intent routed through the session manager. Send
// commands are queued while the session is down; every other command is
// best-effort and silently dropped when there is no live transport.
type Command interface {
	isCommand()
}

type SendMessage struct {
	Scope         domain.ScopeID
	Body          string
	ParentID      string
	CorrelationID string
}

type AddReaction struct {
	MessageID string
	Emoji     string
}

type RemoveReaction struct {
	MessageID string
	Emoji     string
}

type StartTyping struct {
	Scope domain.ScopeID
}

type StopTyping struct {
	Scope domain.ScopeID
}

type JoinScope struct {
	Scope domain.ScopeID
}

func (SendMessage) isCommand()    {}
func (AddReaction) isCommand()    {}
func (RemoveReaction) isCommand() {}
func (StartTyping) isCommand()    {}
func (StopTyping) isCommand()     {}
func (JoinScope) isCommand()      {}
