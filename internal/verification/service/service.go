// Package service is the asset verification engine: it assigns asset ids,
// derives scores and maintains one verification record per property.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	propmodels "propnest/internal/property/models"
	"propnest/internal/verification/metrics"
	"propnest/internal/verification/models"
	id "propnest/pkg/domain"
	dErrors "propnest/pkg/domain-errors"
	audit "propnest/pkg/platform/audit"
	"propnest/pkg/platform/sentinel"
	"propnest/pkg/requestcontext"
)

const defaultMaxRetries = 3

// Store persists verification records. Upsert must be a single atomic
// insert-if-absent that never overwrites the stored asset id.
type Store interface {
	// Upsert reports whether the record was inserted rather than refreshed.
	Upsert(ctx context.Context, rec *models.Record) (*models.Record, bool, error)
	FindByPropertyID(ctx context.Context, propertyID id.PropertyID) (*models.Record, error)
	DeleteByPropertyID(ctx context.Context, propertyID id.PropertyID) error
}

type Service struct {
	store      Store
	identity   *IdentityGenerator
	logger     *slog.Logger
	auditor    audit.Publisher
	metrics    *metrics.Metrics
	tracer     trace.Tracer
	maxRetries uint64
	newBackoff func() backoff.BackOff
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher audit.Publisher) Option {
	return func(s *Service) {
		s.auditor = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = t
	}
}

func WithIdentityGenerator(g *IdentityGenerator) Option {
	return func(s *Service) {
		s.identity = g
	}
}

// WithRetry bounds the transparent upsert retries and sets their backoff.
func WithRetry(maxRetries uint64, newBackoff func() backoff.BackOff) Option {
	return func(s *Service) {
		s.maxRetries = maxRetries
		if newBackoff != nil {
			s.newBackoff = newBackoff
		}
	}
}

func New(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("verification store is required")
	}

	svc := &Service{
		store:      store,
		identity:   NewIdentityGenerator(),
		logger:     slog.Default(),
		tracer:     otel.Tracer("propnest/verification"),
		maxRetries: defaultMaxRetries,
		newBackoff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 20 * time.Millisecond
			b.MaxInterval = 200 * time.Millisecond
			return b
		},
	}

	for _, opt := range opts {
		opt(svc)
	}

	return svc, nil
}

// AssignIdentity returns a fresh asset id.
func (s *Service) AssignIdentity() string {
	return s.identity.AssignIdentity()
}

// ComputeScores is exposed for callers that only need the scores.
func (s *Service) ComputeScores(p *propmodels.Property) models.Scores {
	return models.ComputeScores(p)
}

// Upsert recomputes the record for p and writes it atomically. The asset id
// is only stored when no record exists yet; a later call with a different id
// leaves the original in place. Transient write conflicts are retried.
func (s *Service) Upsert(ctx context.Context, p *propmodels.Property, assetID string) (*models.Record, error) {
	if strings.TrimSpace(assetID) == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "asset id is required")
	}
	if p == nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "property is required")
	}

	ctx, span := s.tracer.Start(ctx, "verification.upsert")
	defer span.End()
	span.SetAttributes(
		attribute.String("property.id", p.ID.String()),
		attribute.String("property.asset_id", assetID),
	)

	start := time.Now()
	rec := models.NewRecord(p, assetID, requestcontext.Now(ctx))

	var (
		stored   *models.Record
		inserted bool
	)
	op := func() error {
		var err error
		stored, inserted, err = s.store.Upsert(ctx, rec)
		if err == nil {
			return nil
		}
		if errors.Is(err, sentinel.ErrUnavailable) {
			return err
		}
		return backoff.Permanent(err)
	}
	notify := func(err error, wait time.Duration) {
		if s.metrics != nil {
			s.metrics.IncrementRetry()
		}
		s.logger.WarnContext(ctx, "retrying verification upsert",
			"property_id", p.ID,
			"wait", wait,
			"error", err,
		)
	}
	b := backoff.WithContext(backoff.WithMaxRetries(s.newBackoff(), s.maxRetries), ctx)
	err := backoff.RetryNotify(op, b, notify)
	if s.metrics != nil {
		s.metrics.ObserveUpsert(start)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "upsert failed")
		if s.metrics != nil {
			s.metrics.IncrementUpsert("failed")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to upsert verification record")
	}

	outcome := "refreshed"
	if inserted {
		outcome = "created"
	}
	if s.metrics != nil {
		s.metrics.IncrementUpsert(outcome)
		s.metrics.IncrementLegalRisk(string(stored.Legal.RiskLevel))
	}
	span.SetAttributes(
		attribute.Int("verification.score", stored.VerificationScore),
		attribute.Int("verification.trust_score", stored.TrustScore),
		attribute.String("verification.legal_risk", string(stored.Legal.RiskLevel)),
	)
	span.SetStatus(codes.Ok, outcome)

	audit.LogAudit(ctx, s.logger, s.auditor, audit.Event{
		Action:  string(audit.EventVerificationUpdate),
		UserID:  p.OwnerID,
		Subject: p.ID.String(),
		Reason:  outcome,
	},
		"property_id", p.ID,
		"asset_id", stored.AssetID,
		"verification_score", stored.VerificationScore,
		"trust_score", stored.TrustScore,
		"legal_risk", stored.Legal.RiskLevel,
	)
	return stored, nil
}

// Get returns the record for a property.
func (s *Service) Get(ctx context.Context, propertyID id.PropertyID) (*models.Record, error) {
	rec, err := s.store.FindByPropertyID(ctx, propertyID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "verification record not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load verification record")
	}
	return rec, nil
}

// Delete removes the record together with its property.
func (s *Service) Delete(ctx context.Context, propertyID id.PropertyID) error {
	if err := s.store.DeleteByPropertyID(ctx, propertyID); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete verification record")
	}
	return nil
}
