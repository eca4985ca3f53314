// Package registry owns channel and conversation membership, per-scope
// unread counters, last-activity timestamps, and the active-scope decision.
// Other components read this state through methods; only the registry
// mutates it.
package registry

import (
	"chat-link/contract"
	"chat-link/domain"
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/samber/lo"
)

type Registry struct {
	mu            sync.RWMutex
	log           *slog.Logger
	api           contract.API
	channels      map[string]domain.Channel
	conversations map[string]domain.Conversation
	unread        map[domain.ScopeID]int
	lastActivity  map[domain.ScopeID]time.Time
	active        domain.ScopeID
	hasActive     bool
}

func NewRegistry(api contract.API, log *slog.Logger) *Registry {
	return &Registry{
		log:           log,
		api:           api,
		channels:      make(map[string]domain.Channel),
		conversations: make(map[string]domain.Conversation),
		unread:        make(map[domain.ScopeID]int),
		lastActivity:  make(map[domain.ScopeID]time.Time),
	}
}

// Refresh pulls the authoritative channel and conversation snapshots over
// REST. A failed fetch keeps whatever is already cached (possibly nothing)
// and returns the error as the caller's retry affordance; it never blocks
// connection establishment.
func (r *Registry) Refresh(ctx context.Context) error {
	channels, err := r.api.ListChannels(ctx)
	if err != nil {
		r.log.Warn("Channel snapshot failed", "error", err)
		return err
	}
	conversations, err := r.api.ListConversations(ctx)
	if err != nil {
		r.log.Warn("Conversation snapshot failed", "error", err)
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ch := range channels {
		r.channels[ch.ID] = ch
	}
	for _, cv := range conversations {
		r.conversations[cv.ID] = cv
	}
	return nil
}

// Channels returns the known channels sorted by name.
func (r *Registry) Channels() []domain.Channel {
	r.mu.RLock()
	defer r.mu.RUnlock()

	channels := lo.Values(r.channels)
	sort.Slice(channels, func(i, j int) bool { return channels[i].Name < channels[j].Name })
	return channels
}

// Conversations returns the known conversations, most recently active first.
func (r *Registry) Conversations() []domain.Conversation {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conversations := lo.Values(r.conversations)
	sort.Slice(conversations, func(i, j int) bool {
		return r.lastActivity[conversations[i].Scope()].After(r.lastActivity[conversations[j].Scope()])
	})
	return conversations
}

// SetActive marks the scope active and resets its unread counter in the
// same critical section. A message arriving a moment later is counted
// correctly because NoteInbound observes the already-updated active scope.
func (r *Registry) SetActive(scope domain.ScopeID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active = scope
	r.hasActive = true
	r.unread[scope] = 0
}

func (r *Registry) ClearActive() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active = domain.ScopeID{}
	r.hasActive = false
}

// ActiveScope implements stream.ActiveScopeView.
func (r *Registry) ActiveScope() (domain.ScopeID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active, r.hasActive
}

// NoteInbound records message arrival bookkeeping: last activity always,
// unread increment by exactly 1 only when the scope is not active.
func (r *Registry) NoteInbound(scope domain.ScopeID, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if at.After(r.lastActivity[scope]) {
		r.lastActivity[scope] = at
	}
	if r.hasActive && r.active == scope {
		return
	}
	r.unread[scope]++
}

func (r *Registry) Unread(scope domain.ScopeID) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.unread[scope]
}

// TotalUnread is the sum over every scope's counter.
func (r *Registry) TotalUnread() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Sum(lo.Values(r.unread))
}

func (r *Registry) LastActivity(scope domain.ScopeID) time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastActivity[scope]
}

// CreateChannel creates the channel through the collaborator and caches it.
func (r *Registry) CreateChannel(ctx context.Context, name, description string, visibility domain.Visibility) (domain.Channel, error) {
	channel, err := r.api.CreateChannel(ctx, name, description, visibility)
	if err != nil {
		return domain.Channel{}, err
	}
	r.mu.Lock()
	r.channels[channel.ID] = channel
	r.mu.Unlock()
	return channel, nil
}

// StartDirectMessage opens (or returns the existing) direct conversation
// with the user and caches it.
func (r *Registry) StartDirectMessage(ctx context.Context, userID string) (domain.Conversation, error) {
	conversation, err := r.api.StartConversation(ctx, userID)
	if err != nil {
		return domain.Conversation{}, err
	}
	r.mu.Lock()
	r.conversations[conversation.ID] = conversation
	r.mu.Unlock()
	return conversation, nil
}
