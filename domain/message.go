// This file defines Message events and related rules.
// Messages are immutable and validated by the domain.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Message represents an immutable chat event.
type Message struct {
	ID        uuid.UUID // unique identifier
	Author    string
	Content   string
	CreatedAt time.Time
}
