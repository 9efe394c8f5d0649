// Package repositories persists chat history in BadgerDB so a newly
// registered session can be caught up on the recent conversation.
package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"minirc/domain"
)

type IHistoryRepository interface {
	Store(message domain.Message) error
	Recent() ([]domain.Message, error)
}

type HistoryRepository struct {
	db    *badger.DB
	log   *slog.Logger
	limit int
}

func NewHistoryRepository(db *badger.DB, log *slog.Logger, limit int) HistoryRepository {
	return HistoryRepository{db: db, log: log, limit: limit}
}

type diskMessage struct {
	ID      uuid.UUID `json:"id"`
	Author  string    `json:"author"`
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

// Store persists a message. The key is "msg:{timestamp_padded}:{uuid}":
//  1. The 19-digit zero padding keeps keys in chronological order under
//     Badger's lexicographical iteration.
//  2. The UUID suffix disconnects collisions if two messages arrive at
//     the same nanosecond.
func (r HistoryRepository) Store(message domain.Message) error {
	key := fmt.Sprintf("msg:%019d:%s", message.CreatedAt.UnixNano(), message.ID)
	value, err := json.Marshal(diskMessage{
		ID:      message.ID,
		Author:  message.Author,
		Content: message.Content,
		At:      message.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("encoding message %s: %w", message.ID, err)
	}
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
}

// Recent returns up to the configured limit of most recent messages in
// chronological order. It scans backwards from the newest key and then
// reverses the batch, so the replay reads top to bottom like live chat.
func (r HistoryRepository) Recent() ([]domain.Message, error) {
	var raw [][]byte
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := []byte("msg:")
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		// Seek past the newest possible key, then walk backwards.
		seekKey := append([]byte{}, prefix...)
		seekKey = append(seekKey, []byte("9999999999999999999:")...)

		for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
			if r.limit >= 0 && len(raw) == r.limit {
				break
			}
			err := it.Item().Value(func(value []byte) error {
				raw = append(raw, append([]byte{}, value...))
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

	messages := make([]domain.Message, 0, len(raw))
	for _, value := range raw {
		var m diskMessage
		if err := json.Unmarshal(value, &m); err != nil {
			return nil, fmt.Errorf("decoding stored message: %w", err)
		}
		messages = append(messages, domain.Message{
			ID:        m.ID,
			Author:    m.Author,
			Content:   m.Content,
			CreatedAt: m.At,
		})
	}
	return lo.Reverse(messages), nil
}
