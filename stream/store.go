// Package stream owns the per-scope message logs: ordered append, optimistic
// sends, correlation-id reconciliation, and the reaction groups attached to
// each message. No other component mutates a log.
package stream

import (
	"chat-link/domain"
	stderr "chat-link/errors"
	"sync"
)

// Store holds every locally known message log. Only the active scope's log
// is hot; non-active scopes stay empty until they are opened and fetched.
type Store struct {
	mu     sync.RWMutex
	logs   map[domain.ScopeID][]domain.Message
	loaded map[domain.ScopeID]bool
	// scopeOf locates a canonical message for reaction routing without
	// scanning every log.
	scopeOf map[string]domain.ScopeID
}

func NewStore() *Store {
	return &Store{
		logs:    make(map[domain.ScopeID][]domain.Message),
		loaded:  make(map[domain.ScopeID]bool),
		scopeOf: make(map[string]domain.ScopeID),
	}
}

// Replace installs a freshly fetched canonical page as the scope's log.
// Local entries survive the swap: canonical messages pushed over the wire
// while the page was in flight are merged back at their ordered slot, and
// pending and failed entries are re-appended behind the canonical page
// unless the page already contains their echo.
func (s *Store) Replace(scope domain.ScopeID, page []domain.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sortLog(page)

	echoed := make(map[string]bool, len(page))
	pageIDs := make(map[string]bool, len(page))
	for _, msg := range page {
		if msg.CorrelationID != "" {
			echoed[msg.CorrelationID] = true
		}
		pageIDs[msg.ID] = true
		s.scopeOf[msg.ID] = scope
	}

	var pending []domain.Message
	for _, msg := range s.logs[scope] {
		switch {
		case msg.Delivery == domain.DeliverySent:
			// A push that raced the snapshot is not in the page; it must
			// not vanish from a log the user is looking at.
			if !pageIDs[msg.ID] {
				page = insertOrdered(page, msg)
				s.scopeOf[msg.ID] = scope
			}
		case echoed[msg.CorrelationID]:
			// The page itself carries this entry's echo.
		default:
			pending = append(pending, msg)
		}
	}

	s.logs[scope] = append(page, pending...)
	s.loaded[scope] = true
}

// AppendLocal appends an optimistic entry at the tail of its scope's log.
func (s *Store) AppendLocal(msg domain.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs[msg.Scope] = append(s.logs[msg.Scope], msg)
}

// Upsert folds one canonical message into a log. Three cases, in order:
// an entry with the same id is an edit and mutates in place without moving;
// a pending entry with the same correlation id is replaced in place by its
// echo; otherwise the message is inserted at its ordered position.
func (s *Store) Upsert(scope domain.ScopeID, msg domain.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := s.logs[scope]
	s.scopeOf[msg.ID] = scope

	for i := range log {
		if log[i].ID == msg.ID {
			log[i].Body = msg.Body
			log[i].EditedAt = msg.EditedAt
			return
		}
	}

	if msg.CorrelationID != "" {
		for i := range log {
			if log[i].Delivery != domain.DeliverySent && log[i].CorrelationID == msg.CorrelationID {
				// Preserve reactions that raced ahead of the echo.
				msg.Reactions = log[i].Reactions
				log[i] = msg
				return
			}
		}
	}

	s.logs[scope] = insertOrdered(log, msg)
}

// insertOrdered places msg at its (CreatedAt, ID) slot. Arrival jitter must
// not reorder what is already appended, so it walks back from the tail.
func insertOrdered(log []domain.Message, msg domain.Message) []domain.Message {
	idx := len(log)
	for idx > 0 && msg.Before(log[idx-1]) {
		idx--
	}
	log = append(log, domain.Message{})
	copy(log[idx+1:], log[idx:])
	log[idx] = msg
	return log
}

// Reconcile matches a canonical echo to its optimistic entry anywhere in
// the store, searching by correlation id. Returns false when no pending
// entry matches (the echo belongs to another device or an older session).
func (s *Store) Reconcile(msg domain.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for scope, log := range s.logs {
		for i := range log {
			if log[i].Delivery != domain.DeliverySent && log[i].CorrelationID == msg.CorrelationID {
				msg.Scope = scope
				msg.Reactions = log[i].Reactions
				log[i] = msg
				s.scopeOf[msg.ID] = scope
				return true
			}
		}
	}
	return false
}

// MarkFailed flags the optimistic entry for a rejected send. The entry
// stays in the log so the failure is surfaced, never silently removed.
func (s *Store) MarkFailed(correlationID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, log := range s.logs {
		for i := range log {
			if log[i].CorrelationID == correlationID && log[i].Delivery == domain.DeliveryPending {
				log[i].Delivery = domain.DeliveryFailed
				return true
			}
		}
	}
	return false
}

// FailAllPending marks every in-flight entry failed. Used on explicit
// disconnect, which clears in-flight sends but preserves received messages.
func (s *Store) FailAllPending() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, log := range s.logs {
		for i := range log {
			if log[i].Delivery == domain.DeliveryPending {
				log[i].Delivery = domain.DeliveryFailed
			}
		}
	}
}

// Messages returns a copy of the scope's log in order.
func (s *Store) Messages(scope domain.ScopeID) []domain.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	log := s.logs[scope]
	out := make([]domain.Message, len(log))
	copy(out, log)
	return out
}

func (s *Store) Loaded(scope domain.ScopeID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded[scope]
}

// ApplyReactionAdded increments the emoji group on a message, creating it
// on first use. Idempotent per (message, emoji, user): a duplicate add from
// the wire or from the local optimistic apply never double-counts.
func (s *Store) ApplyReactionAdded(messageID, userID, emoji string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg := s.locate(messageID)
	if msg == nil {
		return stderr.ErrUnknownMessage
	}

	for i := range msg.Reactions {
		if msg.Reactions[i].Emoji == emoji {
			if msg.Reactions[i].HasUser(userID) {
				return nil
			}
			msg.Reactions[i].Users = append(msg.Reactions[i].Users, userID)
			msg.Reactions[i].Count = len(msg.Reactions[i].Users)
			return nil
		}
	}
	msg.Reactions = append(msg.Reactions, domain.ReactionGroup{
		Emoji: emoji,
		Count: 1,
		Users: []string{userID},
	})
	return nil
}

// ApplyReactionRemoved removes one user from an emoji group; the group is
// deleted entirely when its last reactor leaves. No zero-count groups.
func (s *Store) ApplyReactionRemoved(messageID, userID, emoji string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg := s.locate(messageID)
	if msg == nil {
		return stderr.ErrUnknownMessage
	}

	for i := range msg.Reactions {
		if msg.Reactions[i].Emoji != emoji {
			continue
		}
		users := msg.Reactions[i].Users
		for j, id := range users {
			if id == userID {
				users = append(users[:j], users[j+1:]...)
				break
			}
		}
		if len(users) == 0 {
			msg.Reactions = append(msg.Reactions[:i], msg.Reactions[i+1:]...)
		} else {
			msg.Reactions[i].Users = users
			msg.Reactions[i].Count = len(users)
		}
		return nil
	}
	return nil
}

// HasReaction reports whether userID currently reacts to messageID with
// emoji. The second return value is false when the message is unknown.
func (s *Store) HasReaction(messageID, userID, emoji string) (bool, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msg := s.locate(messageID)
	if msg == nil {
		return false, false
	}
	for _, group := range msg.Reactions {
		if group.Emoji == emoji {
			return group.HasUser(userID), true
		}
	}
	return false, true
}

// locate returns a pointer into the live log; callers hold s.mu.
func (s *Store) locate(messageID string) *domain.Message {
	if scope, ok := s.scopeOf[messageID]; ok {
		log := s.logs[scope]
		for i := range log {
			if log[i].ID == messageID {
				return &log[i]
			}
		}
	}
	// Optimistic entries are not in the index yet.
	for _, log := range s.logs {
		for i := range log {
			if log[i].ID == messageID {
				return &log[i]
			}
		}
	}
	return nil
}

func sortLog(log []domain.Message) {
	// Insertion sort: REST pages arrive nearly ordered already.
	for i := 1; i < len(log); i++ {
		for j := i; j > 0 && log[j].Before(log[j-1]); j-- {
			log[j], log[j-1] = log[j-1], log[j]
		}
	}
}
