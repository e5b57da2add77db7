package commands

import (
	"encoding/json"
	"time"

	"agora/contexts/governance/ballot-engine/ports"
)

const (
	EventTypeBallotCreated = "ballot.created"
	EventTypeRightGranted  = "ballot.right_granted"
	EventTypeVoteDelegated = "ballot.vote_delegated"
	EventTypeVoteCast      = "ballot.vote_cast"
	EventTypeBallotClosed  = "ballot.closed"
)

func newBallotEnvelope(
	eventID string,
	eventType string,
	ballotID string,
	occurredAt time.Time,
	data map[string]any,
) (ports.EventEnvelope, error) {
	// Command-side events are partitioned by ballot for stable ordering on
	// ballot-scoped consumers.
	payload, err := json.Marshal(data)
	if err != nil {
		return ports.EventEnvelope{}, err
	}
	return ports.EventEnvelope{
		EventID:          eventID,
		EventType:        eventType,
		OccurredAt:       occurredAt.UTC(),
		SourceService:    "ballot-engine",
		TraceID:          eventID,
		SchemaVersion:    1,
		PartitionKeyPath: "ballot_id",
		PartitionKey:     ballotID,
		Data:             payload,
	}, nil
}
