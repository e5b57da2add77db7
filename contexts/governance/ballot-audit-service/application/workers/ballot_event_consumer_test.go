package workers

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"agora/contexts/governance/ballot-audit-service/adapters/memory"
	"agora/contexts/governance/ballot-audit-service/application"
	"agora/contexts/governance/ballot-audit-service/ports"
)

type recordingSubscriber struct {
	topics   []string
	groups   []string
	handlers map[string]func(context.Context, ports.EventEnvelope) error
}

func (s *recordingSubscriber) Subscribe(
	_ context.Context,
	topic string,
	consumerGroup string,
	handler func(context.Context, ports.EventEnvelope) error,
) error {
	if s.handlers == nil {
		s.handlers = make(map[string]func(context.Context, ports.EventEnvelope) error)
	}
	s.topics = append(s.topics, topic)
	s.groups = append(s.groups, consumerGroup)
	s.handlers[topic] = handler
	return nil
}

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

var consumerNow = time.Date(2026, time.April, 3, 8, 0, 0, 0, time.UTC)

func newConsumer(store *memory.Store, subscriber *recordingSubscriber) BallotEventConsumer {
	return BallotEventConsumer{
		Subscriber: subscriber,
		Audit: application.Service{
			Repo:  store,
			IDGen: store,
			Clock: fixedClock{now: consumerNow},
		},
		Dedup: store,
		Clock: fixedClock{now: consumerNow},
	}
}

func voteCastEnvelope(t *testing.T, eventID string) ports.EventEnvelope {
	t.Helper()
	payload, err := json.Marshal(map[string]any{
		"ballot_id":      "ballot-1",
		"voter":          "alice",
		"proposal_index": 1,
	})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return ports.EventEnvelope{
		EventID:       eventID,
		EventType:     "ballot.vote_cast",
		OccurredAt:    consumerNow.Add(-time.Second),
		SourceService: "ballot-engine",
		SchemaVersion: 1,
		PartitionKey:  "ballot-1",
		Data:          payload,
	}
}

func TestStartSubscribesAllBallotTopics(t *testing.T) {
	subscriber := &recordingSubscriber{}
	consumer := newConsumer(memory.NewStore(), subscriber)

	if err := consumer.Start(context.Background()); err != nil {
		t.Fatalf("start consumer: %v", err)
	}

	want := []string{
		"ballot.created",
		"ballot.right_granted",
		"ballot.vote_delegated",
		"ballot.vote_cast",
		"ballot.closed",
	}
	if len(subscriber.topics) != len(want) {
		t.Fatalf("expected %d subscriptions, got %d", len(want), len(subscriber.topics))
	}
	for index, topic := range want {
		if subscriber.topics[index] != topic {
			t.Fatalf("expected topic %q at position %d, got %q", topic, index, subscriber.topics[index])
		}
		if subscriber.groups[index] != "ballot-audit-cg" {
			t.Fatalf("expected default consumer group, got %q", subscriber.groups[index])
		}
	}
}

func TestHandleBallotEventAppendsEntryOnce(t *testing.T) {
	store := memory.NewStore()
	subscriber := &recordingSubscriber{}
	consumer := newConsumer(store, subscriber)
	if err := consumer.Start(context.Background()); err != nil {
		t.Fatalf("start consumer: %v", err)
	}

	handler := subscriber.handlers["ballot.vote_cast"]
	event := voteCastEnvelope(t, "evt-1")
	if err := handler(context.Background(), event); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	if err := handler(context.Background(), event); err != nil {
		t.Fatalf("redelivery should be a no-op, got %v", err)
	}

	entries, err := store.ListBallotActivity(context.Background(), "ballot-1", 10)
	if err != nil {
		t.Fatalf("list activity: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected one audit entry after redelivery, got %d", len(entries))
	}
	if entries[0].EventID != "evt-1" {
		t.Fatalf("expected entry for evt-1, got %q", entries[0].EventID)
	}
	if entries[0].Actor != "alice" {
		t.Fatalf("expected actor alice, got %q", entries[0].Actor)
	}
}

func TestHandleBallotEventRejectsTamperedReplay(t *testing.T) {
	store := memory.NewStore()
	subscriber := &recordingSubscriber{}
	consumer := newConsumer(store, subscriber)
	if err := consumer.Start(context.Background()); err != nil {
		t.Fatalf("start consumer: %v", err)
	}

	handler := subscriber.handlers["ballot.vote_cast"]
	if err := handler(context.Background(), voteCastEnvelope(t, "evt-1")); err != nil {
		t.Fatalf("first delivery: %v", err)
	}

	tampered := voteCastEnvelope(t, "evt-1")
	tampered.Data = []byte(`{"ballot_id":"ballot-1","voter":"mallory"}`)
	if err := handler(context.Background(), tampered); err == nil {
		t.Fatalf("expected error for same event id with different payload")
	}

	entries, err := store.ListBallotActivity(context.Background(), "ballot-1", 10)
	if err != nil {
		t.Fatalf("list activity: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected tampered replay to record nothing, got %d entries", len(entries))
	}
}
