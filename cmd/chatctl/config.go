package main

import "time"

// Config defines the client-side environment variables.
type Config struct {
	ServerURL        string        `env:"SERVER_URL,required=true"`
	Token            string        `env:"CHAT_TOKEN,required=true"`
	UserID           string        `env:"CHAT_USER_ID,required=true"`
	DisplayName      string        `env:"CHAT_DISPLAY_NAME"`
	DefaultChannelID string        `env:"CHAT_CHANNEL_ID"`
	OutboxPath       string        `env:"OUTBOX_PATH,default=.chatctl-outbox"`
	LogLevel         string        `env:"LOG_LEVEL,default=INFO"`
	EventBuffer      int           `env:"EVENT_BUFFER,default=64"`
	SendBuffer       int           `env:"SEND_BUFFER,default=32"`
	HandshakeTimeout time.Duration `env:"HANDSHAKE_TIMEOUT,default=10s"`
	SnapshotTimeout  time.Duration `env:"SNAPSHOT_TIMEOUT,default=15s"`
	TypingDebounce   time.Duration `env:"TYPING_DEBOUNCE,default=2s"`
	TypingExpiry     time.Duration `env:"TYPING_EXPIRY,default=3s"`
}
