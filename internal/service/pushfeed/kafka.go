package pushfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"FinSight/internal/domain/models"
	drepo "FinSight/internal/domain/repository"
	pkgkafka "FinSight/pkg/kafka"

	"github.com/segmentio/kafka-go"
)

// KafkaFeed implements a PushStream over a Kafka deltas topic. It is an
// alternative transport to the WebSocket feed; messages carry the same
// snake_case delta documents, without the envelope.
type KafkaFeed struct {
	brokers []string
	topic   string
	groupID string

	mu       sync.Mutex
	consumer *pkgkafka.Consumer
	deltas   chan *models.PortfolioMetrics
	errs     chan error
	running  bool
}

// NewKafkaFeed creates a new Kafka PushStream.
func NewKafkaFeed(brokers []string, topic, groupID string) drepo.PushStream {
	if groupID == "" {
		groupID = "finsight-dashboard"
	}
	return &KafkaFeed{
		brokers: brokers,
		topic:   topic,
		groupID: groupID,
	}
}

type deltaHandler struct {
	topic  string
	deltas chan *models.PortfolioMetrics
}

func (h *deltaHandler) Topic() string { return h.topic }

func (h *deltaHandler) Handle(ctx context.Context, b []byte) error {
	var d pushDelta
	if err := json.Unmarshal(b, &d); err != nil {
		if tid, _ := ctx.Value(pkgkafka.CtxTraceID).(string); tid != "" {
			return fmt.Errorf("delta unmarshal (trace %s): %w", tid, err)
		}
		return fmt.Errorf("delta unmarshal: %w", err)
	}
	select {
	case h.deltas <- d.toModel():
	default:
		// drop on backpressure
	}
	return nil
}

var _ pkgkafka.MessageHandler = (*deltaHandler)(nil)

// Connect builds the consumer. Nothing is read until Subscribe.
func (c *KafkaFeed) Connect(_ context.Context) error {
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(c.brokers),
		pkgkafka.WithConsumerGroupID(c.groupID),
		pkgkafka.WithConsumerWorkers(1),
	)
	if err != nil {
		return fmt.Errorf("pushfeed kafka: %w", err)
	}
	// Carry producer trace ids through to handler errors.
	consumer.WithConsumerHook(pkgkafka.HookFuncs{
		Before: func(ctx context.Context, _ string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
			return pkgkafka.WithTraceID(ctx, pkgkafka.ExtractTraceID(km)), km, data, nil
		},
	})
	c.mu.Lock()
	c.consumer = consumer
	c.deltas = make(chan *models.PortfolioMetrics, 256)
	c.errs = make(chan error, 1)
	c.mu.Unlock()
	return nil
}

// Subscribe registers the delta handler and starts consuming.
func (c *KafkaFeed) Subscribe(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.consumer == nil {
		return fmt.Errorf("pushfeed kafka not connected")
	}
	c.consumer.RegisterHandler(&deltaHandler{topic: c.topic, deltas: c.deltas})
	if err := c.consumer.Start(); err != nil {
		return fmt.Errorf("pushfeed kafka start: %w", err)
	}
	c.running = true
	return nil
}

// Read exposes the delta and error channels.
func (c *KafkaFeed) Read(_ context.Context) (<-chan *models.PortfolioMetrics, <-chan error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deltas, c.errs
}

// Reconnect tears the consumer down and builds a fresh one. A stopped
// consumer cannot be restarted.
func (c *KafkaFeed) Reconnect(ctx context.Context) error {
	_ = c.Close()
	if err := c.Connect(ctx); err != nil {
		return err
	}
	return c.Subscribe(ctx)
}

// Close stops the consumer.
func (c *KafkaFeed) Close() error {
	c.mu.Lock()
	consumer := c.consumer
	c.consumer = nil
	c.running = false
	c.mu.Unlock()
	if consumer == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return consumer.Stop(ctx)
}

// IsConnected indicates status.
func (c *KafkaFeed) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}
