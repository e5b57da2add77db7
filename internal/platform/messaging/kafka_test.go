package messaging

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/goleak"

	contractsv1 "agora/contracts/gen/events/v1"
)

func testEnvelope(eventID string) contractsv1.Envelope {
	return contractsv1.Envelope{
		EventID:       eventID,
		EventType:     "ballot.created",
		OccurredAt:    time.Date(2026, time.April, 5, 12, 0, 0, 0, time.UTC),
		SourceService: "ballot-engine",
		SchemaVersion: 1,
		PartitionKey:  "ballot-1",
		Data:          json.RawMessage(`{"ballot_id":"ballot-1"}`),
	}
}

func TestPublishFansOutToAllSubscribers(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry := prometheus.NewRegistry()
	bus, err := NewKafka([]string{"localhost:9092"}, registry, nil)
	if err != nil {
		t.Fatalf("new bus: %v", err)
	}

	received := make(chan string, 2)
	subscribe := func(group string) {
		err := bus.Subscribe(ctx, "ballot.created", group, func(_ context.Context, event contractsv1.Envelope) error {
			received <- group + ":" + event.EventID
			return nil
		})
		if err != nil {
			t.Fatalf("subscribe %s: %v", group, err)
		}
	}
	subscribe("audit-cg")
	subscribe("metrics-cg")

	if err := bus.Publish(ctx, "ballot.created", testEnvelope("evt-1")); err != nil {
		t.Fatalf("publish: %v", err)
	}

	got := map[string]bool{}
	for len(got) < 2 {
		select {
		case item := <-received:
			got[item] = true
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for fan-out, got %v", got)
		}
	}
	if !got["audit-cg:evt-1"] || !got["metrics-cg:evt-1"] {
		t.Fatalf("expected both groups to receive evt-1, got %v", got)
	}

	published := testutil.ToFloat64(bus.metrics.publishedTotal.WithLabelValues("ballot.created"))
	if published != 1 {
		t.Fatalf("expected published counter 1, got %v", published)
	}
	delivered := testutil.ToFloat64(bus.metrics.deliveredTotal.WithLabelValues("ballot.created"))
	if delivered != 2 {
		t.Fatalf("expected delivered counter 2, got %v", delivered)
	}
}

func TestPublishDropsWhenSubscriberBacklogged(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(context.Background())

	registry := prometheus.NewRegistry()
	bus, err := NewKafka([]string{"localhost:9092"}, registry, nil)
	if err != nil {
		t.Fatalf("new bus: %v", err)
	}

	var once sync.Once
	started := make(chan struct{})
	release := make(chan struct{})
	err = bus.Subscribe(ctx, "ballot.vote_cast", "slow-cg", func(_ context.Context, _ contractsv1.Envelope) error {
		once.Do(func() { close(started) })
		<-release
		return nil
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	if err := bus.Publish(ctx, "ballot.vote_cast", testEnvelope("evt-0")); err != nil {
		t.Fatalf("publish head event: %v", err)
	}
	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatalf("subscriber never picked up the head event")
	}

	// Handler is parked on evt-0, so the channel buffer absorbs exactly 128
	// more events and the next one must be dropped.
	for index := 0; index < 129; index++ {
		if err := bus.Publish(ctx, "ballot.vote_cast", testEnvelope("evt-flood")); err != nil {
			t.Fatalf("publish flood event %d: %v", index, err)
		}
	}

	dropped := testutil.ToFloat64(bus.metrics.droppedTotal.WithLabelValues("ballot.vote_cast"))
	if dropped != 1 {
		t.Fatalf("expected exactly one dropped event, got %v", dropped)
	}

	close(release)
	cancel()
}

func TestSubscriberStopsOnContextCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(context.Background())
	bus, err := NewKafka(nil, nil, nil)
	if err != nil {
		t.Fatalf("new bus: %v", err)
	}

	if err := bus.Subscribe(ctx, "ballot.closed", "audit-cg", func(context.Context, contractsv1.Envelope) error {
		return nil
	}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	cancel()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		bus.mu.RLock()
		remaining := len(bus.subscribers["ballot.closed"])
		bus.mu.RUnlock()
		if remaining == 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected subscriber to deregister after cancel")
}
