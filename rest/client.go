// Package rest implements the HTTP/JSON collaborator client. It serves two
// duties: seeding authoritative snapshots when the session connects, and
// acting as the fallback surface while the duplex session is down.
package rest

import (
	"bytes"
	"chat-link/contract"
	"chat-link/domain"
	stderr "chat-link/errors"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
)

var validate = validator.New()

// APIError is a non-2xx response from the collaborator, decoded from the
// standard {"code": ..., "message": ...} error body when present.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	creds      contract.CredentialProvider
	log        *slog.Logger
}

func NewClient(baseURL string, creds contract.CredentialProvider, httpClient *http.Client, log *slog.Logger) (*Client, error) {
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", baseURL, err)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		creds:      creds,
		log:        log,
	}, nil
}

func (c *Client) doRequest(ctx context.Context, method, path string, query url.Values, body any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(data)
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, err
	}
	token, err := c.creds.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("credential lookup: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode, Message: string(data)}
		var decoded struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		if json.Unmarshal(data, &decoded) == nil && decoded.Code != "" {
			apiErr.Code = decoded.Code
			apiErr.Message = decoded.Message
		}
		return nil, apiErr
	}
	return data, nil
}

type apiChannel struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Visibility  string `json:"visibility"`
	MemberCount int    `json:"member_count"`
}

func (ch apiChannel) toDomain() domain.Channel {
	return domain.Channel{
		ID:          ch.ID,
		Name:        ch.Name,
		Description: ch.Description,
		Visibility:  domain.Visibility(ch.Visibility),
		MemberCount: ch.MemberCount,
	}
}

type apiParticipant struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
}

type apiConversation struct {
	ID           string           `json:"id"`
	Direct       bool             `json:"direct"`
	Participants []apiParticipant `json:"participants"`
}

func (cv apiConversation) toDomain() domain.Conversation {
	return domain.Conversation{
		ID:     cv.ID,
		Direct: cv.Direct,
		Participants: lo.Map(cv.Participants, func(p apiParticipant, _ int) domain.Participant {
			return domain.Participant{UserID: p.UserID, DisplayName: p.DisplayName}
		}),
	}
}

func (c *Client) ListChannels(ctx context.Context) ([]domain.Channel, error) {
	data, err := c.doRequest(ctx, http.MethodGet, "/api/channels", nil, nil)
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}
	var channels []apiChannel
	if err := json.Unmarshal(data, &channels); err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}
	return lo.Map(channels, func(ch apiChannel, _ int) domain.Channel { return ch.toDomain() }), nil
}

func (c *Client) ListConversations(ctx context.Context) ([]domain.Conversation, error) {
	data, err := c.doRequest(ctx, http.MethodGet, "/api/conversations", nil, nil)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	var conversations []apiConversation
	if err := json.Unmarshal(data, &conversations); err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return lo.Map(conversations, func(cv apiConversation, _ int) domain.Conversation { return cv.toDomain() }), nil
}

type apiMessage struct {
	ID            string     `json:"id"`
	CorrelationID string     `json:"correlation_id,omitempty"`
	SenderID      string     `json:"sender_id"`
	SenderName    string     `json:"sender_name"`
	Body          string     `json:"body"`
	ParentID      string     `json:"parent_id,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	EditedAt      *time.Time `json:"edited_at,omitempty"`
	Reactions     []struct {
		Emoji string   `json:"emoji"`
		Users []string `json:"users"`
	} `json:"reactions,omitempty"`
}

type messagesPage struct {
	Messages   []apiMessage `json:"messages"`
	NextCursor *string      `json:"next_cursor"`
}

// Messages fetches one page of a scope's log, oldest first. Pagination
// limits are the collaborator's concern.
func (c *Client) Messages(ctx context.Context, scope domain.ScopeID, cursor *string) ([]domain.Message, *string, error) {
	path, err := scopePath(scope)
	if err != nil {
		return nil, nil, err
	}
	query := url.Values{}
	if cursor != nil {
		query.Set("cursor", *cursor)
	}
	data, err := c.doRequest(ctx, http.MethodGet, path+"/messages", query, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch messages: %w", err)
	}
	var page messagesPage
	if err := json.Unmarshal(data, &page); err != nil {
		return nil, nil, fmt.Errorf("fetch messages: %w", err)
	}

	messages := lo.Map(page.Messages, func(m apiMessage, _ int) domain.Message {
		msg := domain.Message{
			ID:            m.ID,
			CorrelationID: m.CorrelationID,
			Scope:         scope,
			SenderID:      m.SenderID,
			SenderName:    m.SenderName,
			Body:          m.Body,
			ParentID:      m.ParentID,
			CreatedAt:     m.CreatedAt,
			EditedAt:      m.EditedAt,
			Delivery:      domain.DeliverySent,
		}
		for _, r := range m.Reactions {
			msg.Reactions = append(msg.Reactions, domain.ReactionGroup{
				Emoji: r.Emoji,
				Count: len(r.Users),
				Users: r.Users,
			})
		}
		return msg
	})
	return messages, page.NextCursor, nil
}

type apiPresence struct {
	UserID string `json:"user_id"`
	Status string `json:"status"`
}

func (c *Client) OnlineUsers(ctx context.Context) ([]domain.PresenceEntry, error) {
	data, err := c.doRequest(ctx, http.MethodGet, "/api/users/online", nil, nil)
	if err != nil {
		return nil, fmt.Errorf("online users: %w", err)
	}
	var users []apiPresence
	if err := json.Unmarshal(data, &users); err != nil {
		return nil, fmt.Errorf("online users: %w", err)
	}
	return lo.Map(users, func(u apiPresence, _ int) domain.PresenceEntry {
		return domain.PresenceEntry{UserID: u.UserID, Status: domain.Status(u.Status)}
	}), nil
}

func (c *Client) SearchUsers(ctx context.Context, query string) ([]domain.Participant, error) {
	q := url.Values{}
	q.Set("q", query)
	data, err := c.doRequest(ctx, http.MethodGet, "/api/users/search", q, nil)
	if err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}
	var users []apiParticipant
	if err := json.Unmarshal(data, &users); err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}
	return lo.Map(users, func(u apiParticipant, _ int) domain.Participant {
		return domain.Participant{UserID: u.UserID, DisplayName: u.DisplayName}
	}), nil
}

type createChannelRequest struct {
	Name        string `json:"name" validate:"required,min=1,max=80"`
	Description string `json:"description" validate:"max=500"`
	Visibility  string `json:"visibility" validate:"required,oneof=public private"`
}

func (c *Client) CreateChannel(ctx context.Context, name, description string, visibility domain.Visibility) (domain.Channel, error) {
	req := createChannelRequest{Name: name, Description: description, Visibility: string(visibility)}
	if err := validate.Struct(req); err != nil {
		return domain.Channel{}, fmt.Errorf("%w: %v", stderr.ErrInvalidChannelSpec, err)
	}
	data, err := c.doRequest(ctx, http.MethodPost, "/api/channels", nil, req)
	if err != nil {
		return domain.Channel{}, fmt.Errorf("create channel: %w", err)
	}
	var channel apiChannel
	if err := json.Unmarshal(data, &channel); err != nil {
		return domain.Channel{}, fmt.Errorf("create channel: %w", err)
	}
	return channel.toDomain(), nil
}

func (c *Client) StartConversation(ctx context.Context, userID string) (domain.Conversation, error) {
	body := map[string]string{"user_id": userID}
	data, err := c.doRequest(ctx, http.MethodPost, "/api/conversations", nil, body)
	if err != nil {
		return domain.Conversation{}, fmt.Errorf("start conversation: %w", err)
	}
	var conversation apiConversation
	if err := json.Unmarshal(data, &conversation); err != nil {
		return domain.Conversation{}, fmt.Errorf("start conversation: %w", err)
	}
	return conversation.toDomain(), nil
}

func scopePath(scope domain.ScopeID) (string, error) {
	switch scope.Kind {
	case domain.KindChannel:
		return "/api/channels/" + url.PathEscape(scope.ID), nil
	case domain.KindConversation:
		return "/api/conversations/" + url.PathEscape(scope.ID), nil
	default:
		return "", stderr.ErrAmbiguousScope
	}
}
