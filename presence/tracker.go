// Package presence maintains the roster of currently-reachable users.
// Updates are push-only once connected; the REST snapshot seeds state on
// each Connected transition because pushes can only deliver deltas.
package presence

import (
	"chat-link/domain"
	"chat-link/domain/event"
	"log/slog"
	"sort"
	"sync"
)

type Tracker struct {
	mu     sync.RWMutex
	log    *slog.Logger
	roster map[string]domain.PresenceEntry
	// seedSeq invalidates snapshot fetches that outlive the connection they
	// were started on. delta records status changes applied while a fetch is
	// in flight, with nil marking a removal; the snapshot must not override
	// them, since a push delta is always the fresher signal.
	seedSeq uint64
	delta   map[string]*domain.PresenceEntry
}

func NewTracker(log *slog.Logger) *Tracker {
	return &Tracker{
		log:    log,
		roster: make(map[string]domain.PresenceEntry),
	}
}

// BeginSeed marks the start of a snapshot fetch and returns the token the
// matching Seed call must present. Starting a new fetch or clearing the
// roster invalidates any token handed out earlier.
func (t *Tracker) BeginSeed() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.seedSeq++
	t.delta = make(map[string]*domain.PresenceEntry)
	return t.seedSeq
}

// Seed replaces the roster with the REST snapshot, overlaid with the status
// changes applied since the matching BeginSeed. A stale token is a no-op.
// Offline rows in the snapshot are ignored; the roster only ever holds
// reachable users.
func (t *Tracker) Seed(token uint64, entries []domain.PresenceEntry) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if token != t.seedSeq || t.delta == nil {
		return
	}

	roster := make(map[string]domain.PresenceEntry, len(entries))
	for _, entry := range entries {
		if entry.Status == domain.StatusOffline {
			continue
		}
		roster[entry.UserID] = entry
	}
	for id, d := range t.delta {
		if d == nil {
			delete(roster, id)
		} else {
			roster[id] = *d
		}
	}
	t.roster = roster
	t.delta = nil
}

// Apply folds one status change into the roster: offline removes the entry
// entirely, any other status upserts it.
func (t *Tracker) Apply(e event.UserStatusChanged) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if e.Status == domain.StatusOffline {
		delete(t.roster, e.UserID)
		if t.delta != nil {
			t.delta[e.UserID] = nil
		}
		return
	}
	entry := domain.PresenceEntry{UserID: e.UserID, Status: e.Status}
	t.roster[e.UserID] = entry
	if t.delta != nil {
		t.delta[e.UserID] = &entry
	}
}

// Snapshot returns the roster sorted by user id.
func (t *Tracker) Snapshot() []domain.PresenceEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	entries := make([]domain.PresenceEntry, 0, len(t.roster))
	for _, entry := range t.roster {
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].UserID < entries[j].UserID })
	return entries
}

func (t *Tracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.roster = make(map[string]domain.PresenceEntry)
	t.seedSeq++
	t.delta = nil
}
