package rest

import (
	"chat-link/domain"
	stderr "chat-link/errors"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

type tokenProvider string

func (p tokenProvider) Token(_ context.Context) (string, error) {
	return string(p), nil
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(server.URL, tokenProvider("token-123"), server.Client(), slog.Default())
	require.NoError(t, err)
	return client
}

func TestClient_ListChannels(t *testing.T) {
	req := require.New(t)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		req.Equal(http.MethodGet, r.Method)
		req.Equal("/api/channels", r.URL.Path)
		req.Equal("Bearer token-123", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`[
			{"id": "1", "name": "general", "visibility": "public", "member_count": 12},
			{"id": "2", "name": "incidents", "visibility": "private", "member_count": 3}
		]`))
	})

	channels, err := client.ListChannels(context.Background())
	req.NoError(err)
	req.Len(channels, 2)
	req.Equal("general", channels[0].Name)
	req.Equal(domain.VisibilityPublic, channels[0].Visibility)
	req.Equal(12, channels[0].MemberCount)
	req.Equal(domain.VisibilityPrivate, channels[1].Visibility)
}

func TestClient_ListConversations(t *testing.T) {
	req := require.New(t)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		req.Equal("/api/conversations", r.URL.Path)
		_, _ = w.Write([]byte(`[
			{"id": "dm-1", "direct": true, "participants": [
				{"user_id": "me", "display_name": "Me"},
				{"user_id": "bob", "display_name": "Bob"}
			]}
		]`))
	})

	conversations, err := client.ListConversations(context.Background())
	req.NoError(err)
	req.Len(conversations, 1)
	req.True(conversations[0].Direct)
	req.Len(conversations[0].Participants, 2)
	req.Equal("Bob", conversations[0].Participants[1].DisplayName)
}

func TestClient_Messages(t *testing.T) {
	req := require.New(t)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		req.Equal("/api/channels/general/messages", r.URL.Path)
		req.Equal("older-than-42", r.URL.Query().Get("cursor"))
		_, _ = w.Write([]byte(`{
			"messages": [
				{
					"id": "41",
					"sender_id": "alice",
					"sender_name": "Alice",
					"body": "hello",
					"created_at": "2026-08-28T10:00:00Z",
					"reactions": [{"emoji": "👍", "users": ["bob", "clara"]}]
				}
			],
			"next_cursor": "older-than-41"
		}`))
	})

	cursor := "older-than-42"
	messages, next, err := client.Messages(context.Background(), domain.ChannelScope("general"), &cursor)
	req.NoError(err)
	req.Len(messages, 1)
	req.Equal("41", messages[0].ID)
	req.Equal(domain.DeliverySent, messages[0].Delivery)
	req.Equal(domain.ChannelScope("general"), messages[0].Scope)
	req.Len(messages[0].Reactions, 1)
	req.Equal(2, messages[0].Reactions[0].Count)
	req.NotNil(next)
	req.Equal("older-than-41", *next)
}

func TestClient_Messages_ConversationPath(t *testing.T) {
	req := require.New(t)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		req.Equal("/api/conversations/dm-7/messages", r.URL.Path)
		_, _ = w.Write([]byte(`{"messages": [], "next_cursor": null}`))
	})

	messages, next, err := client.Messages(context.Background(), domain.ConversationScope("dm-7"), nil)
	req.NoError(err)
	req.Empty(messages)
	req.Nil(next)
}

func TestClient_OnlineUsers(t *testing.T) {
	req := require.New(t)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		req.Equal("/api/users/online", r.URL.Path)
		_, _ = w.Write([]byte(`[{"user_id": "alice", "status": "online"}, {"user_id": "bob", "status": "away"}]`))
	})

	users, err := client.OnlineUsers(context.Background())
	req.NoError(err)
	req.Len(users, 2)
	req.Equal(domain.StatusAway, users[1].Status)
}

func TestClient_SearchUsers(t *testing.T) {
	req := require.New(t)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		req.Equal("/api/users/search", r.URL.Path)
		req.Equal("ali", r.URL.Query().Get("q"))
		_, _ = w.Write([]byte(`[{"user_id": "alice", "display_name": "Alice"}]`))
	})

	users, err := client.SearchUsers(context.Background(), "ali")
	req.NoError(err)
	req.Len(users, 1)
	req.Equal("alice", users[0].UserID)
}

func TestClient_CreateChannel(t *testing.T) {
	req := require.New(t)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		req.Equal(http.MethodPost, r.Method)
		req.Equal("/api/channels", r.URL.Path)

		var body map[string]string
		req.NoError(json.NewDecoder(r.Body).Decode(&body))
		req.Equal("incidents", body["name"])
		req.Equal("private", body["visibility"])

		_, _ = w.Write([]byte(`{"id": "9", "name": "incidents", "visibility": "private", "member_count": 1}`))
	})

	channel, err := client.CreateChannel(context.Background(), "incidents", "on-call chatter", domain.VisibilityPrivate)
	req.NoError(err)
	req.Equal("9", channel.ID)
}

func TestClient_CreateChannel_RejectsInvalidSpec(t *testing.T) {
	req := require.New(t)
	// The handler must never be reached.
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("validation must reject before any request is sent")
	})

	_, err := client.CreateChannel(context.Background(), "", "", domain.VisibilityPublic)
	req.ErrorIs(err, stderr.ErrInvalidChannelSpec)

	_, err = client.CreateChannel(context.Background(), "incidents", "", domain.Visibility("secret"))
	req.ErrorIs(err, stderr.ErrInvalidChannelSpec)
}

func TestClient_StartConversation(t *testing.T) {
	req := require.New(t)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		req.Equal(http.MethodPost, r.Method)
		req.Equal("/api/conversations", r.URL.Path)
		_, _ = w.Write([]byte(`{"id": "dm-9", "direct": true, "participants": []}`))
	})

	conversation, err := client.StartConversation(context.Background(), "bob")
	req.NoError(err)
	req.Equal("dm-9", conversation.ID)
}

func TestClient_APIError(t *testing.T) {
	req := require.New(t)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"code": "channel_not_found", "message": "no such channel"}`))
	})

	_, err := client.ListChannels(context.Background())
	var apiErr *APIError
	req.ErrorAs(err, &apiErr)
	req.Equal(http.StatusNotFound, apiErr.Status)
	req.Equal("channel_not_found", apiErr.Code)
	req.Equal("no such channel", apiErr.Message)
}

func TestClient_APIError_NonJSONBody(t *testing.T) {
	req := require.New(t)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream timeout"))
	})

	_, err := client.ListChannels(context.Background())
	var apiErr *APIError
	req.ErrorAs(err, &apiErr)
	req.Equal(http.StatusBadGateway, apiErr.Status)
	req.Empty(apiErr.Code)
	req.Contains(apiErr.Message, "upstream timeout")
}
