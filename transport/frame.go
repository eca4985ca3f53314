// Package transport implements the duplex session: a JSON frame codec and a
// websocket connection with a read pump and a single-writer send queue.
package transport

import (
	stderr "chat-link/errors"
	"chat-link/domain"
	"chat-link/domain/event"
	"encoding/json"
	"fmt"
	"time"
)

// Frame type tags, both directions. Inbound tags the server pushes, outbound
// tags the client submits. Unknown inbound tags are skipped, not fatal: the
// server may be newer than this client.
const (
	frameMessageReceived = "message.received"
	frameReactionAdded   = "reaction.added"
	frameReactionRemoved = "reaction.removed"
	frameTypingStarted   = "typing.started"
	frameTypingStopped   = "typing.stopped"
	framePresenceChanged = "presence.changed"
	frameSendRejected    = "message.rejected"

	frameSendMessage    = "message.send"
	frameAddReaction    = "reaction.add"
	frameRemoveReaction = "reaction.remove"
	frameStartTyping    = "typing.start"
	frameStopTyping     = "typing.stop"
	frameJoinScope      = "scope.join"
)

// ErrUnknownFrame marks inbound frames this client version cannot decode.
type ErrUnknownFrame struct {
	Type string
}

func (e ErrUnknownFrame) Error() string {
	return fmt.Sprintf("unknown frame type %q", e.Type)
}

type frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// wireScope carries exactly one of the two scope identifiers.
type wireScope struct {
	ChannelID      string `json:"channel_id,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
}

func toWireScope(s domain.ScopeID) wireScope {
	if s.Kind == domain.KindConversation {
		return wireScope{ConversationID: s.ID}
	}
	return wireScope{ChannelID: s.ID}
}

func (w wireScope) toDomain() (domain.ScopeID, error) {
	switch {
	case w.ChannelID != "" && w.ConversationID != "":
		return domain.ScopeID{}, stderr.ErrAmbiguousScope
	case w.ChannelID != "":
		return domain.ChannelScope(w.ChannelID), nil
	case w.ConversationID != "":
		return domain.ConversationScope(w.ConversationID), nil
	default:
		return domain.ScopeID{}, stderr.ErrAmbiguousScope
	}
}

type wireMessage struct {
	ID            string     `json:"id"`
	CorrelationID string     `json:"correlation_id,omitempty"`
	SenderID      string     `json:"sender_id"`
	SenderName    string     `json:"sender_name"`
	Body          string     `json:"body"`
	ParentID      string     `json:"parent_id,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	EditedAt      *time.Time `json:"edited_at,omitempty"`
}

type wireMessageReceived struct {
	Scope   wireScope   `json:"scope"`
	Message wireMessage `json:"message"`
}

type wireReaction struct {
	MessageID string `json:"message_id"`
	UserID    string `json:"user_id"`
	Emoji     string `json:"emoji"`
}

type wireTyping struct {
	Scope       wireScope `json:"scope"`
	UserID      string    `json:"user_id"`
	DisplayName string    `json:"display_name,omitempty"`
}

type wirePresence struct {
	UserID string `json:"user_id"`
	Status string `json:"status"`
}

type wireRejection struct {
	CorrelationID string `json:"correlation_id"`
	Reason        string `json:"reason,omitempty"`
}

// DecodeFrame parses one inbound wire frame into its event variant.
func DecodeFrame(data []byte) (event.Event, error) {
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("malformed frame: %w", err)
	}

	switch f.Type {
	case frameMessageReceived:
		var p wireMessageReceived
		if err := json.Unmarshal(f.Payload, &p); err != nil {
			return nil, fmt.Errorf("malformed %s payload: %w", f.Type, err)
		}
		scope, err := p.Scope.toDomain()
		if err != nil {
			return nil, err
		}
		return event.MessageReceived{
			Scope: scope,
			Message: domain.Message{
				ID:            p.Message.ID,
				CorrelationID: p.Message.CorrelationID,
				Scope:         scope,
				SenderID:      p.Message.SenderID,
				SenderName:    p.Message.SenderName,
				Body:          p.Message.Body,
				ParentID:      p.Message.ParentID,
				CreatedAt:     p.Message.CreatedAt,
				EditedAt:      p.Message.EditedAt,
				Delivery:      domain.DeliverySent,
			},
		}, nil

	case frameReactionAdded, frameReactionRemoved:
		var p wireReaction
		if err := json.Unmarshal(f.Payload, &p); err != nil {
			return nil, fmt.Errorf("malformed %s payload: %w", f.Type, err)
		}
		if f.Type == frameReactionAdded {
			return event.ReactionAdded{MessageID: p.MessageID, UserID: p.UserID, Emoji: p.Emoji}, nil
		}
		return event.ReactionRemoved{MessageID: p.MessageID, UserID: p.UserID, Emoji: p.Emoji}, nil

	case frameTypingStarted, frameTypingStopped:
		var p wireTyping
		if err := json.Unmarshal(f.Payload, &p); err != nil {
			return nil, fmt.Errorf("malformed %s payload: %w", f.Type, err)
		}
		scope, err := p.Scope.toDomain()
		if err != nil {
			return nil, err
		}
		if f.Type == frameTypingStarted {
			return event.TypingStarted{Scope: scope, UserID: p.UserID, DisplayName: p.DisplayName}, nil
		}
		return event.TypingStopped{Scope: scope, UserID: p.UserID}, nil

	case framePresenceChanged:
		var p wirePresence
		if err := json.Unmarshal(f.Payload, &p); err != nil {
			return nil, fmt.Errorf("malformed %s payload: %w", f.Type, err)
		}
		return event.UserStatusChanged{UserID: p.UserID, Status: domain.Status(p.Status)}, nil

	case frameSendRejected:
		var p wireRejection
		if err := json.Unmarshal(f.Payload, &p); err != nil {
			return nil, fmt.Errorf("malformed %s payload: %w", f.Type, err)
		}
		return event.SendRejected{CorrelationID: p.CorrelationID, Reason: p.Reason}, nil

	default:
		return nil, ErrUnknownFrame{Type: f.Type}
	}
}

type wireSend struct {
	Scope         wireScope `json:"scope"`
	Body          string    `json:"body"`
	ParentID      string    `json:"parent_id,omitempty"`
	CorrelationID string    `json:"correlation_id"`
}

type wireReactionCmd struct {
	MessageID string `json:"message_id"`
	Emoji     string `json:"emoji"`
}

type wireScopeCmd struct {
	Scope wireScope `json:"scope"`
}

// EncodeCommand serializes an outbound command into its wire frame.
func EncodeCommand(cmd event.Command) ([]byte, error) {
	var f frame
	var payload any

	switch c := cmd.(type) {
	case event.SendMessage:
		f.Type = frameSendMessage
		payload = wireSend{
			Scope:         toWireScope(c.Scope),
			Body:          c.Body,
			ParentID:      c.ParentID,
			CorrelationID: c.CorrelationID,
		}
	case event.AddReaction:
		f.Type = frameAddReaction
		payload = wireReactionCmd{MessageID: c.MessageID, Emoji: c.Emoji}
	case event.RemoveReaction:
		f.Type = frameRemoveReaction
		payload = wireReactionCmd{MessageID: c.MessageID, Emoji: c.Emoji}
	case event.StartTyping:
		f.Type = frameStartTyping
		payload = wireScopeCmd{Scope: toWireScope(c.Scope)}
	case event.StopTyping:
		f.Type = frameStopTyping
		payload = wireScopeCmd{Scope: toWireScope(c.Scope)}
	case event.JoinScope:
		f.Type = frameJoinScope
		payload = wireScopeCmd{Scope: toWireScope(c.Scope)}
	default:
		return nil, fmt.Errorf("unsupported command type %T", cmd)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	f.Payload = raw
	return json.Marshal(f)
}
