package messaging

import (
	"context"
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	contractsv1 "agora/contracts/gen/events/v1"
)

// Kafka is the event bus adapter used by the outbox relay and consumers.
// Current implementation is in-process publish/subscribe while runtime wiring
// is finalized for external brokers. Both governance services alias their
// envelope ports to contracts/gen/events/v1, so the bus speaks that type.
type Kafka struct {
	mu          sync.RWMutex
	subscribers map[string][]chan contractsv1.Envelope
	logger      *slog.Logger
	metrics     *busMetrics
}

type busMetrics struct {
	publishedTotal *prometheus.CounterVec
	deliveredTotal *prometheus.CounterVec
	droppedTotal   *prometheus.CounterVec
}

func NewKafka(_ []string, promRegistry *prometheus.Registry, logger *slog.Logger) (*Kafka, error) {
	k := &Kafka{
		subscribers: make(map[string][]chan contractsv1.Envelope),
		logger:      logger,
	}
	if promRegistry != nil {
		k.initMetrics(promRegistry)
	}
	return k, nil
}

func (k *Kafka) initMetrics(promRegistry prometheus.Registerer) {
	factory := promauto.With(promRegistry)
	k.metrics = &busMetrics{}
	k.metrics.publishedTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "agora_bus_published_total",
		Help: "events accepted by the bus per topic",
	}, []string{"topic"})
	k.metrics.deliveredTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "agora_bus_delivered_total",
		Help: "events handed to subscriber channels per topic",
	}, []string{"topic"})
	k.metrics.droppedTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "agora_bus_dropped_total",
		Help: "events dropped because a subscriber channel was full",
	}, []string{"topic"})
}

func (k *Kafka) Publish(ctx context.Context, topic string, event contractsv1.Envelope) error {
	k.mu.RLock()
	subs := append([]chan contractsv1.Envelope(nil), k.subscribers[topic]...)
	k.mu.RUnlock()

	if k.metrics != nil {
		k.metrics.publishedTotal.WithLabelValues(topic).Inc()
	}

	for _, sub := range subs {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sub <- event:
			if k.metrics != nil {
				k.metrics.deliveredTotal.WithLabelValues(topic).Inc()
			}
		default:
			if k.metrics != nil {
				k.metrics.droppedTotal.WithLabelValues(topic).Inc()
			}
			if k.logger != nil {
				k.logger.Warn("dropping event for slow subscriber",
					"event", "kafka_publish_drop",
					"module", "internal/platform/messaging",
					"layer", "platform",
					"topic", topic,
					"event_id", event.EventID,
				)
			}
		}
	}

	if k.logger != nil {
		k.logger.Info("event published",
			"event", "kafka_publish",
			"module", "internal/platform/messaging",
			"layer", "platform",
			"topic", topic,
			"event_id", event.EventID,
			"event_type", event.EventType,
		)
	}
	return nil
}

func (k *Kafka) Subscribe(
	ctx context.Context,
	topic string,
	consumerGroup string,
	handler func(context.Context, contractsv1.Envelope) error,
) error {
	ch := make(chan contractsv1.Envelope, 128)

	k.mu.Lock()
	k.subscribers[topic] = append(k.subscribers[topic], ch)
	k.mu.Unlock()

	go func() {
		for {
			select {
			case <-ctx.Done():
				k.removeSubscriber(topic, ch)
				return
			case event := <-ch:
				if err := handler(ctx, event); err != nil && k.logger != nil {
					k.logger.Error("consumer handler failed",
						"event", "kafka_consume_failed",
						"module", "internal/platform/messaging",
						"layer", "platform",
						"topic", topic,
						"consumer_group", consumerGroup,
						"event_id", event.EventID,
						"event_type", event.EventType,
						"error", err.Error(),
					)
				}
			}
		}
	}()
	return nil
}

func (k *Kafka) removeSubscriber(topic string, target chan contractsv1.Envelope) {
	k.mu.Lock()
	defer k.mu.Unlock()

	items := k.subscribers[topic]
	if len(items) == 0 {
		return
	}
	filtered := make([]chan contractsv1.Envelope, 0, len(items))
	for _, item := range items {
		if item != target {
			filtered = append(filtered, item)
		}
	}
	k.subscribers[topic] = filtered
}
