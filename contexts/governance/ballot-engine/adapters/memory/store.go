package memory

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	application "agora/contexts/governance/ballot-engine/application"
	"agora/contexts/governance/ballot-engine/domain/entities"
	domainerrors "agora/contexts/governance/ballot-engine/domain/errors"
	"agora/contexts/governance/ballot-engine/ports"
)

// Store is an in-memory adapter implementing the ballot-engine ports for
// local runtime and tests. It is not intended as production persistence.
// One write mutex covers every ballot, which satisfies the serialization
// requirement on mutating operations: a mutation observes the state left by
// the previous one.
type Store struct {
	mu          sync.RWMutex
	ballots     map[string]entities.Ballot
	idempotency map[string]ports.IdempotencyRecord
	outbox      map[string]ports.OutboxMessage
	outboxOrder []string
	outboxSent  map[string]time.Time
	sequence    uint64
	logger      *slog.Logger
}

// NewStore seeds ballot state and initializes outbox/idempotency stores.
func NewStore(seedBallots []entities.Ballot, logger *slog.Logger) *Store {
	ballotMap := make(map[string]entities.Ballot, len(seedBallots))
	for _, ballot := range seedBallots {
		ballotMap[ballot.BallotID] = ballot.Clone()
	}
	return &Store{
		ballots:     ballotMap,
		idempotency: make(map[string]ports.IdempotencyRecord),
		outbox:      make(map[string]ports.OutboxMessage),
		outboxOrder: make([]string, 0),
		outboxSent:  make(map[string]time.Time),
		logger:      application.ResolveLogger(logger),
	}
}

func (s *Store) CreateBallotWithOutbox(_ context.Context, ballot entities.Ballot, event ports.EventEnvelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// A single mutex critical section approximates transactional semantics:
	// ballot insert and outbox append succeed or fail together.
	if _, ok := s.ballots[ballot.BallotID]; ok {
		return domainerrors.ErrRepositoryInvariantBroke
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	s.ballots[ballot.BallotID] = ballot.Clone()
	s.outbox[event.EventID] = ports.OutboxMessage{
		OutboxID:     event.EventID,
		EventType:    event.EventType,
		PartitionKey: event.PartitionKey,
		Payload:      payload,
		CreatedAt:    event.OccurredAt,
	}
	s.outboxOrder = append(s.outboxOrder, event.EventID)

	s.logger.Info("ballot and outbox persisted in memory store",
		"event", "memory_create_ballot_with_outbox",
		"module", "governance/ballot-engine",
		"layer", "adapter",
		"ballot_id", ballot.BallotID,
		"outbox_event_id", event.EventID,
	)
	return nil
}

func (s *Store) GetBallot(_ context.Context, ballotID string) (entities.Ballot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ballot, ok := s.ballots[ballotID]
	if !ok {
		return entities.Ballot{}, domainerrors.ErrBallotNotFound
	}
	return ballot.Clone(), nil
}

func (s *Store) ListBallots(_ context.Context, filter ports.BallotListFilter) ([]entities.Ballot, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var filtered []entities.Ballot
	for _, ballot := range s.ballots {
		if filter.Status != "" && ballot.Status != filter.Status {
			continue
		}
		filtered = append(filtered, ballot)
	}
	sort.Slice(filtered, func(i, j int) bool {
		if filtered[i].CreatedAt.Equal(filtered[j].CreatedAt) {
			return filtered[i].BallotID < filtered[j].BallotID
		}
		return filtered[i].CreatedAt.After(filtered[j].CreatedAt)
	})

	start := decodeCursor(filter.Cursor)
	if start > len(filtered) {
		start = len(filtered)
	}
	end := start + filter.Limit
	if filter.Limit <= 0 {
		end = start + 20
	}
	if end > len(filtered) {
		end = len(filtered)
	}

	page := make([]entities.Ballot, 0, end-start)
	for _, ballot := range filtered[start:end] {
		page = append(page, ballot.Clone())
	}
	nextCursor := ""
	if end < len(filtered) {
		nextCursor = encodeCursor(end)
	}
	return page, nextCursor, nil
}

func (s *Store) UpdateBallotWithOutbox(
	_ context.Context,
	ballotID string,
	mutate ports.BallotMutation,
) (entities.Ballot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.ballots[ballotID]
	if !ok {
		return entities.Ballot{}, domainerrors.ErrBallotNotFound
	}

	// mutate runs on a detached copy so a rejected transition never leaks
	// partial writes into the stored state.
	working := current.Clone()
	event, err := mutate(&working)
	if err != nil {
		return entities.Ballot{}, err
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return entities.Ballot{}, err
	}

	s.ballots[ballotID] = working
	s.outbox[event.EventID] = ports.OutboxMessage{
		OutboxID:     event.EventID,
		EventType:    event.EventType,
		PartitionKey: event.PartitionKey,
		Payload:      payload,
		CreatedAt:    event.OccurredAt,
	}
	s.outboxOrder = append(s.outboxOrder, event.EventID)

	s.logger.Info("ballot transition persisted in memory store",
		"event", "memory_update_ballot_with_outbox",
		"module", "governance/ballot-engine",
		"layer", "adapter",
		"ballot_id", ballotID,
		"event_type", event.EventType,
		"outbox_event_id", event.EventID,
	)
	return working.Clone(), nil
}

func (s *Store) ListExpiredOpenBallots(_ context.Context, now time.Time, limit int) ([]entities.Ballot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}
	var expired []entities.Ballot
	for _, ballot := range s.ballots {
		if ballot.Expired(now) {
			expired = append(expired, ballot)
		}
	}
	sort.Slice(expired, func(i, j int) bool {
		if expired[i].EndsAt.Equal(*expired[j].EndsAt) {
			return expired[i].BallotID < expired[j].BallotID
		}
		return expired[i].EndsAt.Before(*expired[j].EndsAt)
	})
	if len(expired) > limit {
		expired = expired[:limit]
	}
	page := make([]entities.Ballot, 0, len(expired))
	for _, ballot := range expired {
		page = append(page, ballot.Clone())
	}
	return page, nil
}

func (s *Store) Get(_ context.Context, key string, now time.Time) (ports.IdempotencyRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.idempotency[key]
	if !ok {
		return ports.IdempotencyRecord{}, false, nil
	}
	// Expired keys are lazily evicted on read.
	if !record.ExpiresAt.IsZero() && now.After(record.ExpiresAt) {
		delete(s.idempotency, key)
		return ports.IdempotencyRecord{}, false, nil
	}
	return record, true, nil
}

func (s *Store) Put(_ context.Context, record ports.IdempotencyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.idempotency[record.Key]; ok {
		if existing.RequestHash != record.RequestHash {
			return domainerrors.ErrIdempotencyConflict
		}
		return nil
	}
	s.idempotency[record.Key] = record
	return nil
}

func (s *Store) ListPendingOutbox(_ context.Context, limit int) ([]ports.OutboxMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}
	messages := make([]ports.OutboxMessage, 0, limit)
	for _, id := range s.outboxOrder {
		if _, published := s.outboxSent[id]; published {
			continue
		}
		if msg, ok := s.outbox[id]; ok {
			messages = append(messages, msg)
		}
		if len(messages) >= limit {
			break
		}
	}
	return messages, nil
}

func (s *Store) MarkOutboxPublished(_ context.Context, outboxID string, publishedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.outbox[outboxID]; !ok {
		return domainerrors.ErrRepositoryInvariantBroke
	}
	s.outboxSent[outboxID] = publishedAt.UTC()
	return nil
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	value := atomic.AddUint64(&s.sequence, 1)
	return fmt.Sprintf("blt-%d", value), nil
}

// OutboxEvents exposes appended outbox rows in order for assertions.
func (s *Store) OutboxEvents() []ports.OutboxMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := make([]ports.OutboxMessage, 0, len(s.outboxOrder))
	for _, id := range s.outboxOrder {
		if evt, ok := s.outbox[id]; ok {
			events = append(events, evt)
		}
	}
	return events
}

func decodeCursor(cursor string) int {
	if strings.TrimSpace(cursor) == "" {
		return 0
	}
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return 0
	}
	index, err := strconv.Atoi(string(raw))
	if err != nil || index < 0 {
		return 0
	}
	return index
}

func encodeCursor(offset int) string {
	return base64.RawURLEncoding.EncodeToString([]byte(strconv.Itoa(offset)))
}
