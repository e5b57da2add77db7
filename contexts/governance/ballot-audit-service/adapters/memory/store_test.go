package memory

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	domainerrors "agora/contexts/governance/ballot-audit-service/domain/errors"
	"agora/contexts/governance/ballot-audit-service/ports"
)

var storeNow = time.Date(2026, time.April, 3, 9, 0, 0, 0, time.UTC)

func appendEntries(t *testing.T, store *Store, ballotID string, count int) {
	t.Helper()
	for index := 0; index < count; index++ {
		err := store.AppendEntry(context.Background(), ports.AuditEntry{
			EntryID:    fmt.Sprintf("%s-entry-%d", ballotID, index),
			BallotID:   ballotID,
			EventID:    fmt.Sprintf("%s-evt-%d", ballotID, index),
			EventType:  "ballot.vote_cast",
			Actor:      "alice",
			Payload:    []byte(`{"ballot_id":"` + ballotID + `"}`),
			OccurredAt: storeNow.Add(time.Duration(index) * time.Minute),
			RecordedAt: storeNow.Add(time.Duration(index) * time.Minute),
		})
		if err != nil {
			t.Fatalf("append entry %d: %v", index, err)
		}
	}
}

func TestListBallotActivityReturnsNewestFirst(t *testing.T) {
	store := NewStore()
	appendEntries(t, store, "ballot-1", 3)
	appendEntries(t, store, "ballot-2", 1)

	entries, err := store.ListBallotActivity(context.Background(), "ballot-1", 2)
	if err != nil {
		t.Fatalf("list activity: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected limit to cap entries at 2, got %d", len(entries))
	}
	if entries[0].EntryID != "ballot-1-entry-2" || entries[1].EntryID != "ballot-1-entry-1" {
		t.Fatalf("expected newest first, got %q then %q", entries[0].EntryID, entries[1].EntryID)
	}
}

func TestAppendEntryRejectsDuplicateEventID(t *testing.T) {
	store := NewStore()
	appendEntries(t, store, "ballot-1", 1)

	err := store.AppendEntry(context.Background(), ports.AuditEntry{
		EntryID:   "other-entry",
		BallotID:  "ballot-1",
		EventID:   "ballot-1-evt-0",
		EventType: "ballot.vote_cast",
	})
	if !errors.Is(err, domainerrors.ErrInvariantBroken) {
		t.Fatalf("expected ErrInvariantBroken for duplicate event id, got %v", err)
	}
}

func TestGetSummaryAggregatesEntries(t *testing.T) {
	store := NewStore()
	appendEntries(t, store, "ballot-1", 2)
	appendEntries(t, store, "ballot-2", 1)

	summary, err := store.GetSummary(context.Background())
	if err != nil {
		t.Fatalf("get summary: %v", err)
	}
	if summary.TotalEntries != 3 {
		t.Fatalf("expected 3 entries, got %d", summary.TotalEntries)
	}
	if summary.Ballots != 2 {
		t.Fatalf("expected 2 distinct ballots, got %d", summary.Ballots)
	}
	if summary.CountsByType["ballot.vote_cast"] != 3 {
		t.Fatalf("expected 3 vote_cast entries, got %d", summary.CountsByType["ballot.vote_cast"])
	}
	if summary.LastRecordedAt == nil {
		t.Fatalf("expected last recorded timestamp")
	}
	if !summary.LastRecordedAt.Equal(storeNow.Add(time.Minute)) {
		t.Fatalf("expected last recorded %v, got %v", storeNow.Add(time.Minute), *summary.LastRecordedAt)
	}
}

func TestReserveEventTracksPayloadHash(t *testing.T) {
	store := NewStore()
	expires := storeNow.Add(time.Hour)

	replayed, err := store.ReserveEvent(context.Background(), "evt-1", "hash-a", expires)
	if err != nil {
		t.Fatalf("first reserve: %v", err)
	}
	if replayed {
		t.Fatalf("expected fresh reservation")
	}

	replayed, err = store.ReserveEvent(context.Background(), "evt-1", "hash-a", expires)
	if err != nil {
		t.Fatalf("same-hash reserve: %v", err)
	}
	if !replayed {
		t.Fatalf("expected replay detection for same hash")
	}

	if _, err := store.ReserveEvent(context.Background(), "evt-1", "hash-b", expires); !errors.Is(err, domainerrors.ErrInvariantBroken) {
		t.Fatalf("expected ErrInvariantBroken for hash mismatch, got %v", err)
	}
}
