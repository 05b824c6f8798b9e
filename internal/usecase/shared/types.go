package shared

import (
	"time"

	"billiard-hall/internal/messaging"
	"billiard-hall/internal/pkg/errs"

	"github.com/google/uuid"
)

var ErrIdempotencyKeyTaken = errs.Define(errs.KindContention, "IdempotencyKeyTaken", "correlation id is being processed concurrently")

// IdempotencyRecord remembers the result of a command by its CorrelationID.
type IdempotencyRecord struct {
	Key         uuid.UUID
	CommandKind string
	RequestHash string
	Result      messaging.Result
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

func (r IdempotencyRecord) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// OutboxRecord is an event committed with its state change and not yet published.
type OutboxRecord struct {
	Seq          int64
	Event        messaging.Event
	CreatedAt    time.Time
	DispatchedAt *time.Time
}
