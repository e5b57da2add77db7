package ports

import (
	"context"
	"time"

	contractsv1 "agora/contracts/gen/events/v1"
)

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}

// AuditEntry is one recorded ballot event. Entries are append-only; the
// original envelope payload rides along verbatim for replay and inspection.
type AuditEntry struct {
	EntryID    string
	BallotID   string
	EventID    string
	EventType  string
	Actor      string
	Payload    []byte
	OccurredAt time.Time
	RecordedAt time.Time
}

type AuditSummary struct {
	TotalEntries   int
	Ballots        int
	CountsByType   map[string]int
	LastRecordedAt *time.Time
}

type Repository interface {
	AppendEntry(ctx context.Context, entry AuditEntry) error
	ListBallotActivity(ctx context.Context, ballotID string, limit int) ([]AuditEntry, error)
	GetSummary(ctx context.Context) (AuditSummary, error)
}

// EventDedupStore provides idempotent processing guarantees for consumed events.
type EventDedupStore interface {
	ReserveEvent(ctx context.Context, eventID string, payloadHash string, expiresAt time.Time) (bool, error)
}

// EventEnvelope reuses the canonical cross-runtime envelope contract.
type EventEnvelope = contractsv1.Envelope

// EventSubscriber registers a topic consumer callback.
type EventSubscriber interface {
	Subscribe(
		ctx context.Context,
		topic string,
		consumerGroup string,
		handler func(context.Context, EventEnvelope) error,
	) error
}
