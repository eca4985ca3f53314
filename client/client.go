// Package client assembles the messaging core: session manager, dispatcher,
// and the state-owning components, behind one facade the caller drives.
package client

import (
	"chat-link/contract"
	"chat-link/domain"
	"chat-link/domain/event"
	stderr "chat-link/errors"
	"chat-link/internal"
	"chat-link/presence"
	"chat-link/reactions"
	"chat-link/registry"
	"chat-link/repositories"
	"chat-link/rest"
	"chat-link/runtime"
	"chat-link/session"
	"chat-link/stream"
	"chat-link/transport"
	"chat-link/typing"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// Options configures a Client. Config, Logger, Self and Credentials are
// required; Dialer, API and Outbox default to the websocket transport, the
// REST collaborator and a badger-backed outbox at Config.OutboxPath.
type Options struct {
	Config      internal.Config
	Logger      *slog.Logger
	Self        domain.Participant
	Credentials contract.CredentialProvider
	Dialer      contract.Dialer
	API         contract.API
	Outbox      contract.Outbox
}

type Client struct {
	log        *slog.Logger
	cfg        internal.Config
	self       domain.Participant
	manager    *session.Manager
	store      *stream.Store
	streams    *stream.Handler
	presence   *presence.Tracker
	typing     *typing.Coordinator
	reactions  *reactions.Aggregator
	registry   *registry.Registry
	dispatcher *runtime.Dispatcher
	supervisor *runtime.Supervisor
	api        contract.API
	db         *badger.DB
}

func New(opts Options) (*Client, error) {
	if err := opts.Config.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Credentials == nil {
		return nil, stderr.ErrMissingToken
	}
	log := opts.Logger
	cfg := opts.Config

	api := opts.API
	if api == nil {
		restClient, err := rest.NewClient(cfg.ServerURL, opts.Credentials, nil, log)
		if err != nil {
			return nil, err
		}
		api = restClient
	}

	dialer := opts.Dialer
	if dialer == nil {
		wsDialer, err := transport.NewWebsocketDialer(cfg.ServerURL, cfg.EventBuffer, cfg.SendBuffer, cfg.HandshakeTimeout, log)
		if err != nil {
			return nil, err
		}
		dialer = wsDialer
	}

	c := &Client{
		log:  log,
		cfg:  cfg,
		self: opts.Self,
		api:  api,
	}

	outbox := opts.Outbox
	if outbox == nil {
		db, err := badger.Open(badger.DefaultOptions(cfg.OutboxPath).
			WithLoggingLevel(badger.WARNING))
		if err != nil {
			return nil, fmt.Errorf("outbox database: %w", err)
		}
		badgerOutbox, err := repositories.NewBadgerOutbox(db, log)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		c.db = db
		outbox = badgerOutbox
	}

	c.manager = session.NewManager(dialer, opts.Credentials, cfg.EventBuffer, log)
	c.store = stream.NewStore()
	c.registry = registry.NewRegistry(api, log)
	c.presence = presence.NewTracker(log)
	c.typing = typing.NewCoordinator(c.manager, cfg.TypingDebounce, cfg.TypingExpiry, log)
	c.reactions = reactions.NewAggregator(c.store, c.manager, opts.Self.UserID, log)
	c.streams = stream.NewHandler(c.store, outbox, c.manager, api, c.registry, opts.Self, log)
	c.dispatcher = runtime.NewDispatcher(
		c.manager.Events(), opts.Self.UserID, cfg.SnapshotTimeout,
		api, c.presence, c.typing, c.reactions, c.registry, c.streams, log,
	)
	c.supervisor = runtime.NewSupervisor(log, 200*time.Millisecond)
	c.supervisor.Add(c.dispatcher)
	return c, nil
}

// Start launches the dispatcher under supervision. Call once, before
// Connect; the dispatcher must be draining before lifecycle events flow.
func (c *Client) Start(ctx context.Context) {
	go c.supervisor.Run(ctx)
}

// Connect establishes the duplex session; see session.Manager.Connect for
// the idempotency and degraded-mode contract.
func (c *Client) Connect(ctx context.Context) error {
	return c.manager.Connect(ctx)
}

// Disconnect tears down the session, failing queued sends and clearing
// ephemeral typing and presence state. Received messages are preserved.
func (c *Client) Disconnect() error {
	return c.manager.Disconnect()
}

// Close disconnects, stops the workers, and releases the outbox database.
func (c *Client) Close() error {
	err := c.Disconnect()
	c.supervisor.Stop()
	if c.db != nil {
		if closeErr := c.db.Close(); err == nil {
			err = closeErr
		}
	}
	return err
}

// OpenScope makes the scope active: its unread counter resets immediately,
// the transport joins the scope, and the message log is fetched lazily over
// REST. A failed fetch leaves an empty log and returns the error; the scope
// stays active so the caller can retry.
func (c *Client) OpenScope(ctx context.Context, scope domain.ScopeID) error {
	c.registry.SetActive(scope)
	if err := c.manager.Invoke(ctx, event.JoinScope{Scope: scope}); err != nil {
		c.log.Debug("Scope join deferred", "scope", scope.ID, "error", err)
	}
	return c.streams.FetchLog(ctx, scope)
}

// SendMessage appends an optimistic entry and returns it immediately; the
// canonical echo later replaces it in place. parentID may be empty, or a
// message id to reply in that message's thread.
func (c *Client) SendMessage(ctx context.Context, scope domain.ScopeID, body, parentID string) (domain.Message, error) {
	return c.streams.Send(ctx, scope, body, parentID)
}

// ToggleReaction adds the local user's reaction when absent, removes it
// when present.
func (c *Client) ToggleReaction(ctx context.Context, messageID, emoji string) error {
	return c.reactions.Toggle(ctx, messageID, emoji)
}

func (c *Client) StartTyping(ctx context.Context, scope domain.ScopeID) {
	c.typing.StartTyping(ctx, scope)
}

func (c *Client) StopTyping(ctx context.Context, scope domain.ScopeID) {
	c.typing.StopTyping(ctx, scope)
}

func (c *Client) CreateChannel(ctx context.Context, name, description string, visibility domain.Visibility) (domain.Channel, error) {
	return c.registry.CreateChannel(ctx, name, description, visibility)
}

func (c *Client) StartDirectMessage(ctx context.Context, userID string) (domain.Conversation, error) {
	return c.registry.StartDirectMessage(ctx, userID)
}

func (c *Client) SearchUsers(ctx context.Context, query string) ([]domain.Participant, error) {
	return c.api.SearchUsers(ctx, query)
}

func (c *Client) Channels() []domain.Channel             { return c.registry.Channels() }
func (c *Client) Conversations() []domain.Conversation   { return c.registry.Conversations() }
func (c *Client) Messages(s domain.ScopeID) []domain.Message { return c.store.Messages(s) }
func (c *Client) Roster() []domain.PresenceEntry         { return c.presence.Snapshot() }
func (c *Client) Typists(s domain.ScopeID) []domain.TypingState { return c.typing.Typists(s) }
func (c *Client) Unread(s domain.ScopeID) int            { return c.registry.Unread(s) }
func (c *Client) TotalUnread() int                       { return c.registry.TotalUnread() }
func (c *Client) State() session.State                   { return c.manager.State() }
func (c *Client) ConnectionError() error                 { return c.manager.ConnectionError() }

// Subscribe registers an observer sink that receives every dispatched
// event after the owning components have applied it.
func (c *Client) Subscribe(sink contract.EventSink) {
	c.dispatcher.AddSink(sink)
}
