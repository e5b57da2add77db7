package workers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	application "agora/contexts/governance/ballot-engine/application"
	"agora/contexts/governance/ballot-engine/domain/entities"
	domainerrors "agora/contexts/governance/ballot-engine/domain/errors"
	"agora/contexts/governance/ballot-engine/ports"
)

// BallotExpirer sweeps open ballots whose scheduled end passed and closes
// each one through the regular write boundary, so expiry emits the same
// closed event the chairperson path does.
type BallotExpirer struct {
	Ballots   ports.BallotRepository
	IDGen     ports.IDGenerator
	Clock     ports.Clock
	BatchSize int
	Logger    *slog.Logger
}

func (e BallotExpirer) RunOnce(ctx context.Context) error {
	logger := application.ResolveLogger(e.Logger)
	now := time.Now().UTC()
	if e.Clock != nil {
		now = e.Clock.Now().UTC()
	}
	limit := e.BatchSize
	if limit <= 0 {
		limit = 50
	}

	due, err := e.Ballots.ListExpiredOpenBallots(ctx, now, limit)
	if err != nil {
		logger.Error("ballot expiry sweep failed",
			"event", "ballot_expiry_sweep_failed",
			"module", "governance/ballot-engine",
			"layer", "worker",
			"error", err.Error(),
		)
		return err
	}

	closed := 0
	for _, candidate := range due {
		eventID, err := e.IDGen.NewID(ctx)
		if err != nil {
			return err
		}
		_, err = e.Ballots.UpdateBallotWithOutbox(ctx, candidate.BallotID, func(ballot *entities.Ballot) (ports.EventEnvelope, error) {
			if err := ballot.Close(ballot.Chairperson, now); err != nil {
				return ports.EventEnvelope{}, err
			}
			return newExpiryEnvelope(eventID, ballot, now)
		})
		if errors.Is(err, domainerrors.ErrBallotClosed) {
			// Lost the race against a chairperson close; nothing left to do.
			continue
		}
		if err != nil {
			logger.Error("ballot expiry close failed",
				"event", "ballot_expiry_close_failed",
				"module", "governance/ballot-engine",
				"layer", "worker",
				"ballot_id", candidate.BallotID,
				"error", err.Error(),
			)
			return err
		}
		closed++
	}

	if closed > 0 {
		logger.Info("ballot expiry sweep completed",
			"event", "ballot_expiry_sweep_completed",
			"module", "governance/ballot-engine",
			"layer", "worker",
			"closed_count", closed,
		)
	}
	return nil
}

func newExpiryEnvelope(eventID string, ballot *entities.Ballot, now time.Time) (ports.EventEnvelope, error) {
	data, err := json.Marshal(map[string]any{
		"ballot_id":        ballot.BallotID,
		"closed_by":        ballot.Chairperson,
		"reason":           "expired",
		"winning_proposal": ballot.WinningProposal(),
		"winner_name":      ballot.WinnerName(),
		"occurred_at":      now.Format(time.RFC3339),
	})
	if err != nil {
		return ports.EventEnvelope{}, err
	}
	return ports.EventEnvelope{
		EventID:          eventID,
		EventType:        "ballot.closed",
		OccurredAt:       now.UTC(),
		SourceService:    "ballot-engine",
		TraceID:          eventID,
		SchemaVersion:    1,
		PartitionKeyPath: "ballot_id",
		PartitionKey:     ballot.BallotID,
		Data:             data,
	}, nil
}
