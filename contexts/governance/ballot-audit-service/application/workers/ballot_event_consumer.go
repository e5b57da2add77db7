package workers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"time"

	application "agora/contexts/governance/ballot-audit-service/application"
	"agora/contexts/governance/ballot-audit-service/ports"
)

const (
	ballotCreatedTopic       = "ballot.created"
	ballotRightGrantedTopic  = "ballot.right_granted"
	ballotVoteDelegatedTopic = "ballot.vote_delegated"
	ballotVoteCastTopic      = "ballot.vote_cast"
	ballotClosedTopic        = "ballot.closed"
	defaultConsumerGroup     = "ballot-audit-cg"
)

type BallotEventConsumer struct {
	Subscriber    ports.EventSubscriber
	Audit         application.Service
	Dedup         ports.EventDedupStore
	Clock         ports.Clock
	ConsumerGroup string
	DedupTTL      time.Duration
	Logger        *slog.Logger
}

func (c BallotEventConsumer) Start(ctx context.Context) error {
	group := c.ConsumerGroup
	if group == "" {
		group = defaultConsumerGroup
	}

	topics := []string{
		ballotCreatedTopic,
		ballotRightGrantedTopic,
		ballotVoteDelegatedTopic,
		ballotVoteCastTopic,
		ballotClosedTopic,
	}
	for _, topic := range topics {
		if err := c.Subscriber.Subscribe(ctx, topic, group, c.handleBallotEvent); err != nil {
			return err
		}
	}
	return nil
}

func (c BallotEventConsumer) handleBallotEvent(ctx context.Context, event ports.EventEnvelope) error {
	logger := application.ResolveLogger(c.Logger)
	now := time.Now().UTC()
	if c.Clock != nil {
		now = c.Clock.Now().UTC()
	}

	payloadHash := hashPayload(event.Data)
	alreadyProcessed, err := c.Dedup.ReserveEvent(ctx, event.EventID, payloadHash, now.Add(c.dedupTTL()))
	if err != nil {
		logger.Error("ballot event dedupe failed",
			"event", "ballot_audit_dedupe_failed",
			"module", "governance/ballot-audit-service",
			"layer", "worker",
			"event_id", event.EventID,
			"event_type", event.EventType,
			"error", err.Error(),
		)
		return err
	}
	if alreadyProcessed {
		logger.Debug("ballot event already processed",
			"event", "ballot_audit_event_replayed",
			"module", "governance/ballot-audit-service",
			"layer", "worker",
			"event_id", event.EventID,
			"event_type", event.EventType,
		)
		return nil
	}

	entry, err := c.Audit.IngestBallotEvent(ctx, event)
	if err != nil {
		logger.Error("ballot event ingestion failed",
			"event", "ballot_audit_ingest_failed",
			"module", "governance/ballot-audit-service",
			"layer", "worker",
			"event_id", event.EventID,
			"event_type", event.EventType,
			"error", err.Error(),
		)
		return err
	}

	logger.Info("ballot event processed",
		"event", "ballot_audit_event_processed",
		"module", "governance/ballot-audit-service",
		"layer", "worker",
		"event_id", event.EventID,
		"event_type", event.EventType,
		"entry_id", entry.EntryID,
		"ballot_id", entry.BallotID,
	)
	return nil
}

func (c BallotEventConsumer) dedupTTL() time.Duration {
	if c.DedupTTL <= 0 {
		return 7 * 24 * time.Hour
	}
	return c.DedupTTL
}

func hashPayload(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}
