package domain

import "time"

// TypingState is the ephemeral "is typing" marker for one user in one scope.
// It is refreshed by repeated start-typing signals and removed on explicit
// stop-typing, on a message from that user, or when Deadline elapses.
type TypingState struct {
	Scope       ScopeID
	UserID      string
	DisplayName string
	Deadline    time.Time
}
