package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"agora/contexts/governance/ballot-engine/domain/entities"
	domainerrors "agora/contexts/governance/ballot-engine/domain/errors"
	"agora/contexts/governance/ballot-engine/ports"
)

func newStoredBallot(t *testing.T, store *Store, ballotID string) entities.Ballot {
	t.Helper()
	now := time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)
	ballot, err := entities.NewBallot(ballotID, "chair", []string{"alpha", "beta"}, nil, now)
	if err != nil {
		t.Fatalf("ballot construction failed: %v", err)
	}
	err = store.CreateBallotWithOutbox(context.Background(), ballot, ports.EventEnvelope{
		EventID:      ballotID + "-created",
		EventType:    "ballot.created",
		OccurredAt:   now,
		PartitionKey: ballotID,
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	return ballot
}

func TestUpdateBallotWithOutboxCommitsStateAndEvent(t *testing.T) {
	store := NewStore(nil, nil)
	newStoredBallot(t, store, "ballot-1")
	now := time.Date(2026, time.March, 10, 10, 0, 0, 0, time.UTC)

	updated, err := store.UpdateBallotWithOutbox(context.Background(), "ballot-1", func(ballot *entities.Ballot) (ports.EventEnvelope, error) {
		if err := ballot.GrantRight("chair", "alice"); err != nil {
			return ports.EventEnvelope{}, err
		}
		return ports.EventEnvelope{
			EventID:      "evt-grant",
			EventType:    "ballot.right_granted",
			OccurredAt:   now,
			PartitionKey: "ballot-1",
		}, nil
	})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updated.VoterOf("alice").Weight != 1 {
		t.Fatalf("expected granted weight 1, got %d", updated.VoterOf("alice").Weight)
	}

	stored, err := store.GetBallot(context.Background(), "ballot-1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if stored.VoterOf("alice").Weight != 1 {
		t.Fatalf("expected stored weight 1, got %d", stored.VoterOf("alice").Weight)
	}

	events := store.OutboxEvents()
	if len(events) != 2 {
		t.Fatalf("expected create and grant outbox rows, got %d", len(events))
	}
	if events[1].EventType != "ballot.right_granted" {
		t.Fatalf("expected grant event appended last, got %q", events[1].EventType)
	}
}

func TestUpdateBallotWithOutboxRollsBackOnMutationError(t *testing.T) {
	store := NewStore(nil, nil)
	newStoredBallot(t, store, "ballot-1")

	_, err := store.UpdateBallotWithOutbox(context.Background(), "ballot-1", func(ballot *entities.Ballot) (ports.EventEnvelope, error) {
		// Mutate before failing to prove the commit is all-or-nothing.
		if err := ballot.GrantRight("chair", "alice"); err != nil {
			return ports.EventEnvelope{}, err
		}
		return ports.EventEnvelope{}, domainerrors.ErrInvalidProposal
	})
	if !errors.Is(err, domainerrors.ErrInvalidProposal) {
		t.Fatalf("expected mutation error to propagate, got %v", err)
	}

	stored, err := store.GetBallot(context.Background(), "ballot-1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if stored.VoterOf("alice").Weight != 0 {
		t.Fatalf("expected rejected mutation to leave no writes, got weight %d", stored.VoterOf("alice").Weight)
	}
	if got := len(store.OutboxEvents()); got != 1 {
		t.Fatalf("expected only the create outbox row, got %d", got)
	}
}

func TestGetBallotReturnsDetachedCopy(t *testing.T) {
	store := NewStore(nil, nil)
	newStoredBallot(t, store, "ballot-1")

	first, err := store.GetBallot(context.Background(), "ballot-1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	first.Proposals[0].VoteCount = 42
	first.Voters["intruder"] = entities.Voter{Address: "intruder", Weight: 9}

	second, err := store.GetBallot(context.Background(), "ballot-1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if second.Proposals[0].VoteCount != 0 {
		t.Fatalf("expected stored counts untouched, got %d", second.Proposals[0].VoteCount)
	}
	if _, ok := second.Voters["intruder"]; ok {
		t.Fatalf("expected caller-side writes not to reach the store")
	}
}

func TestListPendingOutboxSkipsPublishedRows(t *testing.T) {
	store := NewStore(nil, nil)
	newStoredBallot(t, store, "ballot-1")
	newStoredBallot(t, store, "ballot-2")

	pending, err := store.ListPendingOutbox(context.Background(), 10)
	if err != nil {
		t.Fatalf("list pending failed: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("expected 2 pending rows, got %d", len(pending))
	}

	if err := store.MarkOutboxPublished(context.Background(), pending[0].OutboxID, time.Now()); err != nil {
		t.Fatalf("mark published failed: %v", err)
	}
	pending, err = store.ListPendingOutbox(context.Background(), 10)
	if err != nil {
		t.Fatalf("list pending failed: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending row after publish, got %d", len(pending))
	}
	if pending[0].OutboxID != "ballot-2-created" {
		t.Fatalf("expected ballot-2 row to stay pending, got %q", pending[0].OutboxID)
	}
}

func TestIdempotencyGetEvictsExpiredRecords(t *testing.T) {
	store := NewStore(nil, nil)
	now := time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)

	record := ports.IdempotencyRecord{
		Key:         "idem-1",
		RequestHash: "hash-a",
		BallotID:    "ballot-1",
		ExpiresAt:   now.Add(time.Hour),
	}
	if err := store.Put(context.Background(), record); err != nil {
		t.Fatalf("put failed: %v", err)
	}

	if _, found, err := store.Get(context.Background(), "idem-1", now); err != nil || !found {
		t.Fatalf("expected record before expiry, found=%v err=%v", found, err)
	}
	if _, found, err := store.Get(context.Background(), "idem-1", now.Add(2*time.Hour)); err != nil || found {
		t.Fatalf("expected record evicted after expiry, found=%v err=%v", found, err)
	}

	conflicting := record
	conflicting.RequestHash = "hash-b"
	if err := store.Put(context.Background(), record); err != nil {
		t.Fatalf("re-put failed: %v", err)
	}
	if err := store.Put(context.Background(), conflicting); !errors.Is(err, domainerrors.ErrIdempotencyConflict) {
		t.Fatalf("expected hash conflict, got %v", err)
	}
}

func TestListExpiredOpenBallotsFiltersAndOrders(t *testing.T) {
	store := NewStore(nil, nil)
	base := time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)

	endsSoon := base.Add(time.Hour)
	endsLater := base.Add(3 * time.Hour)
	for _, item := range []struct {
		id   string
		ends *time.Time
	}{
		{id: "ballot-late", ends: &endsLater},
		{id: "ballot-soon", ends: &endsSoon},
		{id: "ballot-open-ended", ends: nil},
	} {
		ballot, err := entities.NewBallot(item.id, "chair", []string{"alpha"}, item.ends, base)
		if err != nil {
			t.Fatalf("construction failed: %v", err)
		}
		err = store.CreateBallotWithOutbox(context.Background(), ballot, ports.EventEnvelope{
			EventID:    item.id + "-created",
			EventType:  "ballot.created",
			OccurredAt: base,
		})
		if err != nil {
			t.Fatalf("create failed: %v", err)
		}
	}

	expired, err := store.ListExpiredOpenBallots(context.Background(), base.Add(4*time.Hour), 10)
	if err != nil {
		t.Fatalf("list expired failed: %v", err)
	}
	if len(expired) != 2 {
		t.Fatalf("expected 2 expired ballots, got %d", len(expired))
	}
	if expired[0].BallotID != "ballot-soon" || expired[1].BallotID != "ballot-late" {
		t.Fatalf("expected earliest end first, got %q then %q", expired[0].BallotID, expired[1].BallotID)
	}
}
