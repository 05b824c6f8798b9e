package messaging

import (
	"encoding/json"
	"strings"
	"time"

	"billiard-hall/internal/pkg/errs"

	"github.com/google/uuid"
)

// Kind is the routing key of a command or event, e.g. "orders.create".
type Kind string

// IsPattern reports whether k is a subscription pattern such as "members.*".
func (k Kind) IsPattern() bool {
	return strings.HasSuffix(string(k), ".*")
}

// Matches reports whether kind is selected by k. A pattern "members.*" matches
// every kind starting with "members.".
func (k Kind) Matches(kind Kind) bool {
	if !k.IsPattern() {
		return k == kind
	}
	return strings.HasPrefix(string(kind), strings.TrimSuffix(string(k), "*"))
}

// DefaultSchemaVersion is stamped on events produced by this process.
// Payload evolution is additive only, so the version only moves on breaking changes.
const DefaultSchemaVersion = "1.0"

// Command is a request to change state. It is routed to exactly one handler.
type Command struct {
	Kind          Kind
	CorrelationID uuid.UUID
	Payload       any
	IssuedAt      time.Time
}

func NewCommand(kind Kind, correlationID uuid.UUID, payload any) Command {
	return Command{
		Kind:          kind,
		CorrelationID: correlationID,
		Payload:       payload,
	}
}

// Event is an immutable fact. Version is the per-aggregate sequence number.
type Event struct {
	ID            uuid.UUID       `json:"id"`
	Kind          Kind            `json:"kind"`
	SchemaVersion string          `json:"schema_version"`
	AggregateID   uuid.UUID       `json:"aggregate_id"`
	Version       uint64          `json:"version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	CorrelationID uuid.UUID       `json:"correlation_id"`
	Payload       json.RawMessage `json:"payload"`
}

func NewEvent(kind Kind, aggregateID uuid.UUID, version uint64, occurredAt time.Time, payload any) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, errs.Wrapf(err, "marshal %s payload", kind)
	}
	return Event{
		ID:            uuid.New(),
		Kind:          kind,
		SchemaVersion: DefaultSchemaVersion,
		AggregateID:   aggregateID,
		Version:       version,
		OccurredAt:    occurredAt.UTC(),
		Payload:       raw,
	}, nil
}

func (e Event) WithCorrelation(id uuid.UUID) Event {
	e.CorrelationID = id
	return e
}

// Decode unmarshals the payload. Unknown fields are ignored.
func (e Event) Decode(v any) error {
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return errs.MarkKind(errs.Wrapf(err, "decode %s v%s payload", e.Kind, e.SchemaVersion), errs.KindValidation)
	}
	return nil
}

func (e Event) Validate() error {
	if e.Kind == "" {
		return errs.Wrap(ErrInvalidEnvelope, "event kind is empty")
	}
	if e.SchemaVersion == "" {
		return errs.Wrapf(ErrMissingSchemaVersion, "event %s", e.Kind)
	}
	if e.AggregateID == uuid.Nil {
		return errs.Wrapf(ErrInvalidEnvelope, "event %s has no aggregate id", e.Kind)
	}
	if e.Version == 0 {
		return errs.Wrapf(ErrInvalidEnvelope, "event %s has no version", e.Kind)
	}
	return nil
}

// Result is returned by command handlers and replayed verbatim for a repeated CorrelationID.
type Result struct {
	AggregateID uuid.UUID `json:"aggregate_id"`
	Version     uint64    `json:"version"`
	Replayed    bool      `json:"-"`
}

// PayloadAs extracts a typed payload from cmd. JSON payloads from other processes are decoded.
func PayloadAs[T any](cmd Command) (T, error) {
	var zero T
	switch p := cmd.Payload.(type) {
	case T:
		return p, nil
	case *T:
		if p != nil {
			return *p, nil
		}
	case json.RawMessage:
		var v T
		if err := json.Unmarshal(p, &v); err != nil {
			return zero, errs.Wrapf(ErrUnexpectedPayload, "%s: %v", cmd.Kind, err)
		}
		return v, nil
	}
	return zero, errs.Wrapf(ErrUnexpectedPayload, "%s: got %T", cmd.Kind, cmd.Payload)
}
