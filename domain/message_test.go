package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMessage_Before_OrdersByCreatedAt(t *testing.T) {
	req := require.New(t)
	at := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)

	earlier := Message{ID: "b", CreatedAt: at}
	later := Message{ID: "a", CreatedAt: at.Add(time.Second)}

	req.True(earlier.Before(later))
	req.False(later.Before(earlier))
}

func TestMessage_Before_TieBreaksOnID(t *testing.T) {
	req := require.New(t)
	at := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)

	first := Message{ID: "a", CreatedAt: at}
	second := Message{ID: "b", CreatedAt: at}

	req.True(first.Before(second))
	req.False(second.Before(first))
	req.False(first.Before(first))
}

func TestReactionGroup_HasUser(t *testing.T) {
	req := require.New(t)
	group := ReactionGroup{Emoji: "👍", Count: 2, Users: []string{"alice", "bob"}}

	req.True(group.HasUser("alice"))
	req.False(group.HasUser("clara"))
}
