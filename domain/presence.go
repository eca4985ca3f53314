package domain

type Status string

const (
	StatusOnline  Status = "online"
	StatusAway    Status = "away"
	StatusBusy    Status = "busy"
	StatusOffline Status = "offline"
)

// PresenceEntry is one row of the roster of currently-reachable users.
// An offline user has no entry at all, it is not merely flagged.
type PresenceEntry struct {
	UserID string
	Status Status
}
