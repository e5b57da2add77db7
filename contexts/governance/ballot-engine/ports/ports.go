package ports

import (
	"context"
	"time"

	"agora/contexts/governance/ballot-engine/domain/entities"
	contractsv1 "agora/contracts/gen/events/v1"
)

// BallotListFilter defines read-side filtering/pagination for the ballot catalog.
type BallotListFilter struct {
	Status entities.BallotStatus
	Cursor string
	Limit  int
}

// BallotMutation applies one state transition to a loaded ballot and returns
// the integration event describing it.
type BallotMutation func(ballot *entities.Ballot) (EventEnvelope, error)

// BallotRepository owns ballot persistence and the write transaction boundary.
type BallotRepository interface {
	// CreateBallotWithOutbox must atomically persist the ballot and outbox event.
	CreateBallotWithOutbox(ctx context.Context, ballot entities.Ballot, event EventEnvelope) error
	GetBallot(ctx context.Context, ballotID string) (entities.Ballot, error)
	ListBallots(ctx context.Context, filter BallotListFilter) ([]entities.Ballot, string, error)
	// UpdateBallotWithOutbox serializes writers on one ballot: it loads the
	// current state, applies mutate while holding exclusive ownership, and
	// atomically persists the mutated ballot plus outbox event. A mutate
	// error aborts the transition with no writes at all.
	UpdateBallotWithOutbox(ctx context.Context, ballotID string, mutate BallotMutation) (entities.Ballot, error)
	// ListExpiredOpenBallots feeds the expiry sweep with open ballots whose
	// scheduled end passed.
	ListExpiredOpenBallots(ctx context.Context, now time.Time, limit int) ([]entities.Ballot, error)
}

// IdempotencyRecord captures dedupe metadata for mutating requests.
type IdempotencyRecord struct {
	Key         string
	RequestHash string
	BallotID    string
	ExpiresAt   time.Time
}

// IdempotencyStore abstracts idempotency persistence with TTL handling.
type IdempotencyStore interface {
	Get(ctx context.Context, key string, now time.Time) (IdempotencyRecord, bool, error)
	Put(ctx context.Context, record IdempotencyRecord) error
}

// Clock allows deterministic testing of TTL/expiry rules.
type Clock interface {
	Now() time.Time
}

// IDGenerator abstracts ballot/event identifier generation.
type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}

// OutboxMessage is a row ready to relay from the module outbox.
type OutboxMessage struct {
	OutboxID     string
	EventType    string
	PartitionKey string
	Payload      []byte
	CreatedAt    time.Time
}

// OutboxRepository models worker-side outbox polling/acknowledgement.
type OutboxRepository interface {
	ListPendingOutbox(ctx context.Context, limit int) ([]OutboxMessage, error)
	MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error
}

// EventEnvelope reuses the canonical cross-runtime envelope contract.
type EventEnvelope = contractsv1.Envelope

// EventPublisher publishes canonical envelopes to a topic.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, event EventEnvelope) error
}
