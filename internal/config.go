package internal

import (
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

type Config struct {
	ServerURL        string        `env:"SERVER_URL,required=true" validate:"required,url"`
	LogLevel         string        `env:"LOG_LEVEL,default=INFO"`
	OutboxPath       string        `env:"OUTBOX_PATH,required=true" validate:"required"`
	EventBuffer      int           `env:"EVENT_BUFFER,default=64" validate:"gt=0"`
	SendBuffer       int           `env:"SEND_BUFFER,default=32" validate:"gt=0"`
	HandshakeTimeout time.Duration `env:"HANDSHAKE_TIMEOUT,default=10s"`
	SnapshotTimeout  time.Duration `env:"SNAPSHOT_TIMEOUT,default=15s"`
	TypingDebounce   time.Duration `env:"TYPING_DEBOUNCE,default=2s"`
	TypingExpiry     time.Duration `env:"TYPING_EXPIRY,default=3s"`
}

// Validate rejects configurations that would only fail deep inside the
// session manager or transport, where the error is harder to attribute.
func (c Config) Validate() error {
	return validate.Struct(c)
}
