package domain

import "time"

// DeliveryState tracks an optimistic entry through its lifecycle.
// Canonical messages received from the server are always DeliverySent.
type DeliveryState string

const (
	DeliveryPending DeliveryState = "pending"
	DeliverySent    DeliveryState = "sent"
	DeliveryFailed  DeliveryState = "failed"
)

// Message is immutable once created; edits mutate Body and EditedAt in
// place but never change the entry's position in a scope's log.
type Message struct {
	ID            string
	CorrelationID string
	Scope         ScopeID
	SenderID      string
	SenderName    string
	Body          string
	ParentID      string
	CreatedAt     time.Time
	EditedAt      *time.Time
	Delivery      DeliveryState
	Reactions     []ReactionGroup
}

// Before reports whether m precedes other in a scope's log.
// Logs are totally ordered by (CreatedAt, ID) and never reordered.
func (m Message) Before(other Message) bool {
	if !m.CreatedAt.Equal(other.CreatedAt) {
		return m.CreatedAt.Before(other.CreatedAt)
	}
	return m.ID < other.ID
}

// ReactionGroup aggregates one emoji on one message.
// Count must equal len(Users) at all times; a user appears at most once.
type ReactionGroup struct {
	Emoji string
	Count int
	Users []string
}

func (g ReactionGroup) HasUser(userID string) bool {
	for _, id := range g.Users {
		if id == userID {
			return true
		}
	}
	return false
}
