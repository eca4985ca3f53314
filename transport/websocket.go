package transport

import (
	"chat-link/contract"
	"chat-link/domain/event"
	stderr "chat-link/errors"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WebsocketDialer dials the server's realtime endpoint. One dialer is shared
// across all connect and reconnect attempts; each successful dial yields an
// independent Conn.
type WebsocketDialer struct {
	endpoint         string
	log              *slog.Logger
	eventBuffer      int
	sendBuffer       int
	handshakeTimeout time.Duration
}

func NewWebsocketDialer(serverURL string, eventBuffer, sendBuffer int, handshakeTimeout time.Duration, log *slog.Logger) (*WebsocketDialer, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("invalid server URL %q: %w", serverURL, err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return nil, fmt.Errorf("unsupported scheme %q in server URL", u.Scheme)
	}
	u.Path = "/realtime"

	return &WebsocketDialer{
		endpoint:         u.String(),
		log:              log,
		eventBuffer:      eventBuffer,
		sendBuffer:       sendBuffer,
		handshakeTimeout: handshakeTimeout,
	}, nil
}

func (d *WebsocketDialer) Dial(ctx context.Context, token string) (contract.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: d.handshakeTimeout}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	ws, resp, err := dialer.DialContext(ctx, d.endpoint, header)
	if err != nil {
		if resp != nil {
			_ = resp.Body.Close()
			return nil, fmt.Errorf("websocket dial %s: status %d: %w", d.endpoint, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("websocket dial %s: %w", d.endpoint, err)
	}

	conn := &wsConn{
		ws:     ws,
		log:    d.log,
		events: make(chan event.Event, d.eventBuffer),
		send:   make(chan []byte, d.sendBuffer),
		done:   make(chan struct{}),
	}
	go conn.readPump()
	go conn.writePump()
	return conn, nil
}

// wsConn wraps one websocket connection. All writes go through the send
// channel and a single writer goroutine; gorilla connections do not allow
// concurrent writers.
type wsConn struct {
	ws        *websocket.Conn
	log       *slog.Logger
	events    chan event.Event
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func (c *wsConn) Send(ctx context.Context, cmd event.Command) error {
	data, err := EncodeCommand(cmd)
	if err != nil {
		return err
	}
	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return stderr.ErrNotConnected
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *wsConn) Events() <-chan event.Event {
	return c.events
}

func (c *wsConn) Close() error {
	c.shutdown()
	return nil
}

// readPump is the only goroutine reading the socket and the only closer of
// the events channel. Closing events is the drop signal the session manager
// reacts to.
func (c *wsConn) readPump() {
	defer func() {
		c.shutdown()
		close(c.events)
	}()

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
				// Deliberate close, not a drop worth logging.
			default:
				c.log.Warn("Transport read failed", "error", err)
			}
			return
		}

		ev, err := DecodeFrame(data)
		if err != nil {
			// Skip frames we cannot decode; a malformed or unknown frame
			// must not take the whole session down.
			c.log.Warn("Skipping undecodable frame", "error", err)
			continue
		}

		select {
		case c.events <- ev:
		case <-c.done:
			return
		}
	}
}

func (c *wsConn) writePump() {
	for {
		select {
		case data := <-c.send:
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				c.log.Warn("Transport write failed", "error", err)
				c.shutdown()
				return
			}
		case <-c.done:
			deadline := time.Now().Add(time.Second)
			_ = c.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
			return
		}
	}
}

func (c *wsConn) shutdown() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.ws.Close()
	})
}
