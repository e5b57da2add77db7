package queries

import (
	"context"
	"errors"
	"testing"
	"time"

	"agora/contexts/governance/ballot-engine/adapters/memory"
	"agora/contexts/governance/ballot-engine/domain/entities"
	domainerrors "agora/contexts/governance/ballot-engine/domain/errors"
	"agora/contexts/governance/ballot-engine/ports"
)

var queryNow = time.Date(2026, time.March, 12, 15, 0, 0, 0, time.UTC)

func seedBallot(t *testing.T, store *memory.Store, ballotID string, mutate func(*entities.Ballot)) {
	t.Helper()
	ballot, err := entities.NewBallot(ballotID, "chair", []string{"alpha", "beta", "gamma"}, nil, queryNow)
	if err != nil {
		t.Fatalf("construction failed: %v", err)
	}
	if mutate != nil {
		mutate(&ballot)
	}
	err = store.CreateBallotWithOutbox(context.Background(), ballot, ports.EventEnvelope{
		EventID:    ballotID + "-created",
		EventType:  "ballot.created",
		OccurredAt: queryNow,
	})
	if err != nil {
		t.Fatalf("seed failed: %v", err)
	}
}

func TestGetBallotNotFound(t *testing.T) {
	uc := GetBallotUseCase{Ballots: memory.NewStore(nil, nil)}

	_, err := uc.Execute(context.Background(), GetBallotQuery{BallotID: "missing"})
	if !errors.Is(err, domainerrors.ErrBallotNotFound) {
		t.Fatalf("expected ErrBallotNotFound, got %v", err)
	}
}

func TestGetResultsComputesWinnerAndWeights(t *testing.T) {
	store := memory.NewStore(nil, nil)
	seedBallot(t, store, "ballot-1", func(ballot *entities.Ballot) {
		if err := ballot.GrantRight("chair", "alice"); err != nil {
			t.Fatalf("grant failed: %v", err)
		}
		if err := ballot.GrantRight("chair", "bob"); err != nil {
			t.Fatalf("grant failed: %v", err)
		}
		if err := ballot.Vote("alice", 1); err != nil {
			t.Fatalf("vote failed: %v", err)
		}
	})

	result, err := GetResultsUseCase{Ballots: store}.Execute(context.Background(), GetResultsQuery{BallotID: "ballot-1"})
	if err != nil {
		t.Fatalf("get results failed: %v", err)
	}
	if result.WinningIndex != 1 || result.WinnerName != "beta" {
		t.Fatalf("expected beta at index 1 to win, got %q at %d", result.WinnerName, result.WinningIndex)
	}
	if result.CountedWeight != 1 {
		t.Fatalf("expected counted weight 1, got %d", result.CountedWeight)
	}
	// chair and bob still hold uncast weight 1 each.
	if result.TotalWeight != 3 {
		t.Fatalf("expected total weight 3, got %d", result.TotalWeight)
	}
}

func TestGetVoterZeroValueForUnknownAddress(t *testing.T) {
	store := memory.NewStore(nil, nil)
	seedBallot(t, store, "ballot-1", nil)

	result, err := GetVoterUseCase{Ballots: store}.Execute(context.Background(), GetVoterQuery{
		BallotID: "ballot-1",
		Address:  "stranger",
	})
	if err != nil {
		t.Fatalf("get voter failed: %v", err)
	}
	if result.Registered {
		t.Fatalf("expected stranger to be unregistered")
	}
	voter := result.Voter
	if voter.Weight != 0 || voter.Voted || voter.Delegate != "" || voter.Vote != nil {
		t.Fatalf("expected zero-value voter, got %+v", voter)
	}
}

func TestListBallotsFiltersByStatus(t *testing.T) {
	store := memory.NewStore(nil, nil)
	seedBallot(t, store, "ballot-open", nil)
	seedBallot(t, store, "ballot-closed", func(ballot *entities.Ballot) {
		if err := ballot.Close("chair", queryNow); err != nil {
			t.Fatalf("close failed: %v", err)
		}
	})

	uc := ListBallotsUseCase{Ballots: store}
	open, err := uc.Execute(context.Background(), ListBallotsQuery{Status: "open"})
	if err != nil {
		t.Fatalf("list open failed: %v", err)
	}
	if len(open.Items) != 1 || open.Items[0].BallotID != "ballot-open" {
		t.Fatalf("expected only the open ballot, got %+v", open.Items)
	}

	all, err := uc.Execute(context.Background(), ListBallotsQuery{})
	if err != nil {
		t.Fatalf("list all failed: %v", err)
	}
	if len(all.Items) != 2 {
		t.Fatalf("expected both ballots without filter, got %d", len(all.Items))
	}

	if _, err := uc.Execute(context.Background(), ListBallotsQuery{Status: "archived"}); !errors.Is(err, domainerrors.ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest for unknown status, got %v", err)
	}
}
