// Package notification relays lifecycle events from the outbox to Kafka.
// Owner notifications and public broadcasts go to separate topics, keyed by
// property id so a consumer sees one listing's events in order.
package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kgo"

	"propnest/internal/notification/metrics"
	"propnest/internal/notification/models"
	"propnest/internal/platform/config"
)

const (
	defaultPollInterval = time.Second
	defaultBatchSize    = 100
)

// Store is the outbox as seen by the relay.
type Store interface {
	ListPending(ctx context.Context, limit int) ([]*models.Event, error)
	MarkPublished(ctx context.Context, ids []uuid.UUID, at time.Time) error
}

// Producer is satisfied by *kgo.Client.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// TxRunner holds the row locks taken by ListPending until the batch is
// marked published.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type Relay struct {
	store          Store
	producer       Producer
	tx             TxRunner
	ownerTopic     string
	broadcastTopic string
	interval       time.Duration
	batchSize      int
	now            func() time.Time
	logger         *slog.Logger
	metrics        *metrics.Metrics
}

type Option func(*Relay)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Relay) {
		r.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Relay) {
		r.metrics = m
	}
}

func WithTxRunner(runner TxRunner) Option {
	return func(r *Relay) {
		r.tx = runner
	}
}

func NewRelay(store Store, producer Producer, cfg config.KafkaConfig, opts ...Option) (*Relay, error) {
	if store == nil {
		return nil, fmt.Errorf("outbox store is required")
	}
	if producer == nil {
		return nil, fmt.Errorf("kafka producer is required")
	}
	if cfg.OwnerTopic == "" || cfg.BroadcastTopic == "" {
		return nil, fmt.Errorf("owner and broadcast topics are required")
	}

	r := &Relay{
		store:          store,
		producer:       producer,
		tx:             directRunner{},
		ownerTopic:     cfg.OwnerTopic,
		broadcastTopic: cfg.BroadcastTopic,
		interval:       cfg.PollInterval,
		batchSize:      cfg.BatchSize,
		now:            time.Now,
		logger:         slog.Default(),
	}
	if r.interval <= 0 {
		r.interval = defaultPollInterval
	}
	if r.batchSize <= 0 {
		r.batchSize = defaultBatchSize
	}

	for _, opt := range opts {
		opt(r)
	}

	return r, nil
}

// Run drains the outbox every poll interval until ctx is cancelled. A failed
// batch is logged and retried on the next tick.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.InfoContext(ctx, "notification relay started",
		"owner_topic", r.ownerTopic,
		"broadcast_topic", r.broadcastTopic,
		"interval", r.interval,
	)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			for {
				n, err := r.PublishPending(ctx)
				if err != nil {
					r.logger.ErrorContext(ctx, "failed to relay outbox batch", "error", err)
					break
				}
				// a full batch means more rows are likely waiting
				if n < r.batchSize {
					break
				}
			}
		}
	}
}

// PublishPending produces one batch of pending events and marks them
// published. It returns the number of events relayed.
func (r *Relay) PublishPending(ctx context.Context) (int, error) {
	var published int
	err := r.tx.RunInTx(ctx, func(ctx context.Context) error {
		events, err := r.store.ListPending(ctx, r.batchSize)
		if err != nil {
			return err
		}
		if r.metrics != nil {
			r.metrics.SetBatch(len(events))
		}
		if len(events) == 0 {
			return nil
		}

		records := make([]*kgo.Record, 0, len(events))
		for _, e := range events {
			rec, err := r.record(e)
			if err != nil {
				return err
			}
			records = append(records, rec)
		}
		if err := r.producer.ProduceSync(ctx, records...).FirstErr(); err != nil {
			if r.metrics != nil {
				r.metrics.IncrementFailure()
			}
			return fmt.Errorf("produce outbox batch: %w", err)
		}

		ids := make([]uuid.UUID, len(events))
		for i, e := range events {
			ids[i] = e.ID
		}
		if err := r.store.MarkPublished(ctx, ids, r.now()); err != nil {
			return err
		}
		if r.metrics != nil {
			for _, rec := range records {
				r.metrics.IncrementPublished(rec.Topic)
			}
		}
		published = len(events)
		return nil
	})
	if err != nil {
		return 0, err
	}
	if published > 0 {
		r.logger.DebugContext(ctx, "relayed outbox batch", "events", published)
	}
	return published, nil
}

func (r *Relay) record(e *models.Event) (*kgo.Record, error) {
	value, err := json.Marshal(e.Payload)
	if err != nil {
		return nil, fmt.Errorf("marshal event %s: %w", e.ID, err)
	}
	topic := r.broadcastTopic
	if e.Audience == models.AudienceOwner {
		topic = r.ownerTopic
	}
	headers := []kgo.RecordHeader{
		{Key: "event_id", Value: []byte(e.ID.String())},
		{Key: "event_type", Value: []byte(e.Type)},
	}
	if !e.RecipientID.IsNil() {
		headers = append(headers, kgo.RecordHeader{Key: "recipient_id", Value: []byte(e.RecipientID.String())})
	}
	return &kgo.Record{
		Topic:     topic,
		Key:       []byte(e.PropertyID.String()),
		Value:     value,
		Headers:   headers,
		Timestamp: e.CreatedAt,
	}, nil
}

type directRunner struct{}

func (directRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
