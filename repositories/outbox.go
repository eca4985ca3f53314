// Package repositories persists the pending-send outbox in BadgerDB so a
// queued message survives a process restart and is still replayed in order.
package repositories

import (
	"chat-link/domain"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
)

const outboxPrefix = "out:"

// outboxRecord is the stored form of one pending send.
type outboxRecord struct {
	CorrelationID string    `json:"correlation_id"`
	ScopeKind     string    `json:"scope_kind"`
	ScopeID       string    `json:"scope_id"`
	SenderID      string    `json:"sender_id"`
	SenderName    string    `json:"sender_name"`
	Body          string    `json:"body"`
	ParentID      string    `json:"parent_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// BadgerOutbox stores pending sends under "out:{seq_padded}:{correlation}".
// The 19-digit zero padding makes lexicographical key order equal submission
// order, so a plain prefix scan replays FIFO.
type BadgerOutbox struct {
	mu    sync.Mutex
	db    *badger.DB
	log   *slog.Logger
	seq   uint64
	keyOf map[string][]byte
}

func NewBadgerOutbox(db *badger.DB, log *slog.Logger) (*BadgerOutbox, error) {
	o := &BadgerOutbox{
		db:    db,
		log:   log,
		keyOf: make(map[string][]byte),
	}
	if err := o.load(); err != nil {
		return nil, fmt.Errorf("outbox load: %w", err)
	}
	return o, nil
}

// load rebuilds the correlation index and the sequence counter from keys
// left behind by a previous run.
func (o *BadgerOutbox) load() error {
	return o.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()

		prefix := []byte(outboxPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().KeyCopy(nil)
			var seq uint64
			var correlationID string
			if _, err := fmt.Sscanf(string(key), outboxPrefix+"%d:%s", &seq, &correlationID); err != nil {
				o.log.Warn("Skipping malformed outbox key", "key", string(key))
				continue
			}
			o.keyOf[correlationID] = key
			if seq >= o.seq {
				o.seq = seq + 1
			}
		}
		return nil
	})
}

func (o *BadgerOutbox) Enqueue(msg domain.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	key := []byte(fmt.Sprintf("%s%019d:%s", outboxPrefix, o.seq, msg.CorrelationID))
	record := outboxRecord{
		CorrelationID: msg.CorrelationID,
		ScopeKind:     string(msg.Scope.Kind),
		ScopeID:       msg.Scope.ID,
		SenderID:      msg.SenderID,
		SenderName:    msg.SenderName,
		Body:          msg.Body,
		ParentID:      msg.ParentID,
		CreatedAt:     msg.CreatedAt,
	}
	value, err := json.Marshal(record)
	if err != nil {
		return err
	}

	err = o.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
	if err != nil {
		return err
	}
	o.keyOf[msg.CorrelationID] = key
	o.seq++
	return nil
}

// Pending returns the queued sends in original submission order.
func (o *BadgerOutbox) Pending() ([]domain.Message, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	var messages []domain.Message
	err := o.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(outboxPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(value []byte) error {
				var record outboxRecord
				if err := json.Unmarshal(value, &record); err != nil {
					return err
				}
				messages = append(messages, domain.Message{
					ID:            record.CorrelationID,
					CorrelationID: record.CorrelationID,
					Scope:         domain.ScopeID{Kind: domain.ScopeKind(record.ScopeKind), ID: record.ScopeID},
					SenderID:      record.SenderID,
					SenderName:    record.SenderName,
					Body:          record.Body,
					ParentID:      record.ParentID,
					CreatedAt:     record.CreatedAt,
					Delivery:      domain.DeliveryPending,
				})
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// Ack removes an entry whose echo arrived.
func (o *BadgerOutbox) Ack(correlationID string) error {
	return o.remove(correlationID)
}

// Fail removes an entry the server rejected; the failed state lives on the
// message log entry, not here.
func (o *BadgerOutbox) Fail(correlationID string) error {
	return o.remove(correlationID)
}

func (o *BadgerOutbox) remove(correlationID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	key, ok := o.keyOf[correlationID]
	if !ok {
		return nil
	}
	err := o.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
	if err != nil {
		return err
	}
	delete(o.keyOf, correlationID)
	return nil
}
