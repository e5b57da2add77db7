package application

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	domainerrors "agora/contexts/governance/ballot-audit-service/domain/errors"
	"agora/contexts/governance/ballot-audit-service/ports"
)

type Service struct {
	Repo   ports.Repository
	IDGen  ports.IDGenerator
	Clock  ports.Clock
	Logger *slog.Logger
}

type ballotEventPayload struct {
	BallotID    string `json:"ballot_id"`
	Chairperson string `json:"chairperson"`
	GrantedBy   string `json:"granted_by"`
	Voter       string `json:"voter"`
	ClosedBy    string `json:"closed_by"`
}

// IngestBallotEvent records one consumed envelope as an audit entry. The
// caller is expected to have reserved the event id already; a replayed id
// surfaces as ErrInvariantBroken from the repository.
func (s Service) IngestBallotEvent(ctx context.Context, event ports.EventEnvelope) (ports.AuditEntry, error) {
	if strings.TrimSpace(event.EventID) == "" || strings.TrimSpace(event.EventType) == "" {
		return ports.AuditEntry{}, domainerrors.ErrInvalidRequest
	}

	var payload ballotEventPayload
	if len(event.Data) > 0 {
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return ports.AuditEntry{}, domainerrors.ErrInvalidRequest
		}
	}
	ballotID := strings.TrimSpace(payload.BallotID)
	if ballotID == "" {
		ballotID = strings.TrimSpace(event.PartitionKey)
	}
	if ballotID == "" {
		return ports.AuditEntry{}, domainerrors.ErrInvalidRequest
	}
	actor, err := actorFor(event.EventType, payload)
	if err != nil {
		return ports.AuditEntry{}, err
	}

	entryID, err := s.IDGen.NewID(ctx)
	if err != nil {
		return ports.AuditEntry{}, err
	}
	entry := ports.AuditEntry{
		EntryID:    entryID,
		BallotID:   ballotID,
		EventID:    event.EventID,
		EventType:  event.EventType,
		Actor:      actor,
		Payload:    append([]byte(nil), event.Data...),
		OccurredAt: event.OccurredAt.UTC(),
		RecordedAt: s.now(),
	}
	if err := s.Repo.AppendEntry(ctx, entry); err != nil {
		return ports.AuditEntry{}, err
	}

	ResolveLogger(s.Logger).Info("ballot audit entry recorded",
		"event", "ballot_audit_entry_recorded",
		"module", "governance/ballot-audit-service",
		"layer", "application",
		"entry_id", entry.EntryID,
		"ballot_id", entry.BallotID,
		"event_type", entry.EventType,
	)
	return entry, nil
}

func (s Service) ListBallotActivity(ctx context.Context, ballotID string, limit int) ([]ports.AuditEntry, error) {
	if strings.TrimSpace(ballotID) == "" {
		return nil, domainerrors.ErrInvalidRequest
	}
	return s.Repo.ListBallotActivity(ctx, strings.TrimSpace(ballotID), limit)
}

func (s Service) GetSummary(ctx context.Context) (ports.AuditSummary, error) {
	return s.Repo.GetSummary(ctx)
}

func (s Service) now() time.Time {
	if s.Clock == nil {
		return time.Now().UTC()
	}
	return s.Clock.Now().UTC()
}

func actorFor(eventType string, payload ballotEventPayload) (string, error) {
	switch eventType {
	case "ballot.created":
		return payload.Chairperson, nil
	case "ballot.right_granted":
		return payload.GrantedBy, nil
	case "ballot.vote_delegated", "ballot.vote_cast":
		return payload.Voter, nil
	case "ballot.closed":
		return payload.ClosedBy, nil
	default:
		return "", domainerrors.ErrUnknownEventType
	}
}

