package notification

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	"propnest/internal/notification/metrics"
	"propnest/internal/notification/models"
	"propnest/internal/notification/store"
	"propnest/internal/platform/config"
	propmodels "propnest/internal/property/models"
	id "propnest/pkg/domain"
)

type fakeProducer struct {
	mu      sync.Mutex
	records []*kgo.Record
	err     error
}

func (p *fakeProducer) ProduceSync(_ context.Context, rs ...*kgo.Record) kgo.ProduceResults {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(kgo.ProduceResults, 0, len(rs))
	for _, r := range rs {
		out = append(out, kgo.ProduceResult{Record: r, Err: p.err})
		if p.err == nil {
			p.records = append(p.records, r)
		}
	}
	return out
}

type RelaySuite struct {
	suite.Suite
	store    *store.InMemoryStore
	producer *fakeProducer
	metrics  *metrics.Metrics
	relay    *Relay
	ctx      context.Context
	now      time.Time
	property *propmodels.Property
}

func TestRelaySuite(t *testing.T) {
	suite.Run(t, new(RelaySuite))
}

func (s *RelaySuite) SetupTest() {
	s.store = store.NewInMemoryStore()
	s.producer = &fakeProducer{}
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.ctx = context.Background()
	s.now = time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)

	r, err := NewRelay(s.store, s.producer, config.KafkaConfig{
		OwnerTopic:     "owner",
		BroadcastTopic: "broadcast",
		BatchSize:      2,
	}, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))), WithMetrics(s.metrics))
	s.Require().NoError(err)
	r.now = func() time.Time { return s.now }
	s.relay = r

	p, err := propmodels.NewProperty(id.UserID(uuid.New()), "Farm land near Nashik", propmodels.TransactionSell,
		propmodels.CategoryLand, propmodels.LandDetails{PlotArea: 43560}, s.now)
	s.Require().NoError(err)
	p.Location = propmodels.Location{City: "Nashik", State: "Maharashtra"}
	s.property = p
}

func (s *RelaySuite) appendEvents(events ...*models.Event) {
	s.Require().NoError(s.store.Append(s.ctx, events...))
}

func (s *RelaySuite) TestNewRelayValidates() {
	_, err := NewRelay(nil, s.producer, config.KafkaConfig{OwnerTopic: "a", BroadcastTopic: "b"})
	s.Error(err)
	_, err = NewRelay(s.store, nil, config.KafkaConfig{OwnerTopic: "a", BroadcastTopic: "b"})
	s.Error(err)
	_, err = NewRelay(s.store, s.producer, config.KafkaConfig{OwnerTopic: "a"})
	s.Error(err)

	s.Run("defaults poll interval and batch size", func() {
		r, err := NewRelay(s.store, s.producer, config.KafkaConfig{OwnerTopic: "a", BroadcastTopic: "b"})
		s.Require().NoError(err)
		s.Equal(defaultPollInterval, r.interval)
		s.Equal(defaultBatchSize, r.batchSize)
	})
}

func (s *RelaySuite) TestPublishRoutesByAudience() {
	owner := models.NewEvent(s.property, models.EventListingPublished, models.AudienceOwner, "", s.now)
	public := models.NewEvent(s.property, models.EventListingAdded, models.AudiencePublic, "", s.now.Add(time.Millisecond))
	s.appendEvents(owner, public)

	n, err := s.relay.PublishPending(s.ctx)
	s.Require().NoError(err)
	s.Equal(2, n)

	s.Require().Len(s.producer.records, 2)
	first, second := s.producer.records[0], s.producer.records[1]
	s.Equal("owner", first.Topic)
	s.Equal("broadcast", second.Topic)
	s.Equal(s.property.ID.String(), string(first.Key))
	s.Equal(s.property.ID.String(), string(second.Key))

	var payload models.Payload
	s.Require().NoError(json.Unmarshal(second.Value, &payload))
	s.Equal(models.EventListingAdded, payload.EventType)
	s.Equal("Nashik", payload.Location.City)

	s.Run("owner record carries the recipient header", func() {
		headers := map[string]string{}
		for _, h := range first.Headers {
			headers[h.Key] = string(h.Value)
		}
		s.Equal(s.property.OwnerID.String(), headers["recipient_id"])
		s.Equal("LISTING_PUBLISHED", headers["event_type"])

		for _, h := range second.Headers {
			s.NotEqual("recipient_id", h.Key)
		}
	})

	s.Run("published events are not relayed again", func() {
		n, err := s.relay.PublishPending(s.ctx)
		s.Require().NoError(err)
		s.Zero(n)
		s.Len(s.producer.records, 2)
	})

	s.Equal(1.0, promtest.ToFloat64(s.metrics.EventsPublished.WithLabelValues("owner")))
}

func (s *RelaySuite) TestPublishHonoursBatchSize() {
	for i := 0; i < 5; i++ {
		s.appendEvents(models.NewEvent(s.property, models.EventListingPaused, models.AudienceOwner, "",
			s.now.Add(time.Duration(i)*time.Second)))
	}

	n, err := s.relay.PublishPending(s.ctx)
	s.Require().NoError(err)
	s.Equal(2, n)

	pending, err := s.store.ListPending(s.ctx, 0)
	s.Require().NoError(err)
	s.Len(pending, 3)
	s.True(pending[0].CreatedAt.Equal(s.now.Add(2*time.Second)), "oldest events go first")
}

func (s *RelaySuite) TestFailedProduceLeavesEventsPending() {
	s.producer.err = errors.New("broker not available")
	s.appendEvents(models.NewEvent(s.property, models.EventListingSold, models.AudiencePublic, "", s.now))

	_, err := s.relay.PublishPending(s.ctx)
	s.Error(err)

	pending, err := s.store.ListPending(s.ctx, 0)
	s.Require().NoError(err)
	s.Len(pending, 1)
	s.Equal(1.0, promtest.ToFloat64(s.metrics.PublishFailures))
}

func (s *RelaySuite) TestRunStopsOnCancel() {
	s.appendEvents(models.NewEvent(s.property, models.EventListingResumed, models.AudienceOwner, "", s.now))
	s.relay.interval = 5 * time.Millisecond

	ctx, cancel := context.WithCancel(s.ctx)
	done := make(chan error, 1)
	go func() { done <- s.relay.Run(ctx) }()

	s.Eventually(func() bool {
		s.producer.mu.Lock()
		defer s.producer.mu.Unlock()
		return len(s.producer.records) == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	s.ErrorIs(<-done, context.Canceled)
}
