package session

import "time"

// schedule is the fixed reconnect delay ladder. Attempts beyond the last
// rung keep waiting the final delay; there is no give-up point.
var schedule = []time.Duration{
	0,
	2 * time.Second,
	5 * time.Second,
	10 * time.Second,
	30 * time.Second,
}

// NextDelay returns the wait before reconnect attempt number attempt.
// Pure and deterministic on purpose: reconnection tests rely on the ladder.
func NextDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt >= len(schedule) {
		attempt = len(schedule) - 1
	}
	return schedule[attempt]
}
