package workers

import (
	"context"
	"log/slog"

	"minirc/domain"
	"minirc/repositories"
)

// HistoryWorker drains broadcast chat messages into the history store.
// Persistence is off the hot path: the dispatcher enqueues and moves
// on, so a slow disk never delays delivery to connected sessions.
type HistoryWorker struct {
	log        *slog.Logger
	messages   <-chan domain.Message
	repository repositories.IHistoryRepository
}

func NewHistoryWorker(log *slog.Logger, messages <-chan domain.Message, repository repositories.IHistoryRepository) *HistoryWorker {
	return &HistoryWorker{log: log, messages: messages, repository: repository}
}

func (w *HistoryWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Stopping worker")
			return ctx.Err()
		case message, ok := <-w.messages:
			if !ok {
				w.log.Debug("Channel is closed")
				return nil
			}
			if err := w.repository.Store(message); err != nil {
				w.log.Error("Failed to persist message", "author", message.Author, "error", err)
			}
		}
	}
}
