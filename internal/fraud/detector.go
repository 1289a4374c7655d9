// Package fraud runs the integrity checks applied to a listing attempt:
// near-duplicate detection, price anomaly flagging and the per-user listing
// rate limit.
package fraud

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"propnest/internal/comparables"
	"propnest/internal/fraud/metrics"
	"propnest/internal/platform/config"
	"propnest/internal/property/models"
	"propnest/internal/similarity"
	id "propnest/pkg/domain"
	dErrors "propnest/pkg/domain-errors"
	audit "propnest/pkg/platform/audit"
	"propnest/pkg/requestcontext"
)

// Store is the slice of the property store the checks read from.
type Store interface {
	FindNearby(ctx context.Context, q models.NearbyQuery) ([]models.Nearby, error)
	CountCreatedSince(ctx context.Context, owner id.UserID, since time.Time) (int, error)
}

type Detector struct {
	store   Store
	corpus  comparables.Corpus
	cfg     config.IntegrityConfig
	logger  *slog.Logger
	auditor audit.Publisher
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

type Option func(*Detector)

func WithLogger(logger *slog.Logger) Option {
	return func(d *Detector) {
		d.logger = logger
	}
}

func WithAuditPublisher(publisher audit.Publisher) Option {
	return func(d *Detector) {
		d.auditor = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Detector) {
		d.metrics = m
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(d *Detector) {
		d.tracer = t
	}
}

// WithConfig overrides the default thresholds.
func WithConfig(cfg config.IntegrityConfig) Option {
	return func(d *Detector) {
		d.cfg = cfg
	}
}

func New(store Store, corpus comparables.Corpus, opts ...Option) (*Detector, error) {
	if store == nil {
		return nil, fmt.Errorf("property store is required")
	}
	if corpus == nil {
		return nil, fmt.Errorf("comparables corpus is required")
	}

	d := &Detector{
		store:  store,
		corpus: corpus,
		cfg:    config.DefaultIntegrity(),
		logger: slog.Default(),
		tracer: otel.Tracer("propnest/fraud"),
	}

	for _, opt := range opts {
		opt(d)
	}

	if err := d.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid integrity config: %w", err)
	}
	return d, nil
}

// DetectDuplicate looks for listings within the duplicate radius whose title
// is close to the candidate's. Listings owned by excludeOwner are ignored so
// a user never collides with their own inventory, which also keeps an edited
// listing from matching itself. A candidate without coordinates yields no
// signal.
func (d *Detector) DetectDuplicate(ctx context.Context, candidate *models.Property, excludeOwner id.UserID) (*DuplicateResult, error) {
	if candidate == nil || !candidate.HasPoint() {
		d.countDuplicate("skipped")
		return &DuplicateResult{}, nil
	}

	ctx, span := d.tracer.Start(ctx, "fraud.detect_duplicate")
	defer span.End()
	start := time.Now()
	defer d.observe("duplicate", start)

	nearby, err := d.store.FindNearby(ctx, models.NearbyQuery{
		Point:        *candidate.Location.Point,
		RadiusMeters: d.cfg.DuplicateRadiusMeters,
		Statuses:     models.DuplicateCandidateStatuses(),
		ExcludeOwner: excludeOwner,
		Limit:        d.cfg.DuplicateMaxMatches,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "nearby lookup failed")
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up nearby listings")
	}

	result := &DuplicateResult{}
	for _, n := range nearby {
		score := similarity.TitleSimilarity(candidate.Title, n.Property.Title)
		if score < d.cfg.DuplicateTitleSimilarity {
			continue
		}
		result.Matches = append(result.Matches, Match{
			ID:              n.Property.ID,
			Title:           n.Property.Title,
			Location:        n.Property.Location,
			DistanceMeters:  n.DistanceMeters,
			TitleSimilarity: score,
		})
	}
	result.IsDuplicate = len(result.Matches) > 0

	span.SetAttributes(
		attribute.Int("fraud.nearby", len(nearby)),
		attribute.Int("fraud.matches", len(result.Matches)),
	)
	if !result.IsDuplicate {
		d.countDuplicate("unique")
		return result, nil
	}

	d.countDuplicate("duplicate")
	ids := make([]string, 0, len(result.Matches))
	for _, m := range result.Matches {
		ids = append(ids, m.ID.String())
	}
	audit.LogAudit(ctx, d.logger, d.auditor, audit.Event{
		Action:   string(audit.EventDuplicateDetected),
		UserID:   candidate.OwnerID,
		Subject:  candidate.ID.String(),
		Decision: "blocked",
	},
		"user_id", candidate.OwnerID,
		"title", candidate.Title,
		"matches", strings.Join(ids, ","),
	)
	return result, nil
}

// DetectPriceAnomaly compares the candidate's price per unit area with the
// aggregate of recent approved listings in the same city and category. The
// result is advisory: lookup failures and thin samples yield no anomaly.
func (d *Detector) DetectPriceAnomaly(ctx context.Context, candidate *models.Property) (*PriceAnomalyResult, error) {
	if candidate == nil {
		return &PriceAnomalyResult{}, nil
	}
	city := strings.TrimSpace(candidate.Location.City)
	price, hasPrice := candidate.Price()
	area, hasArea := candidate.UnitArea()
	if city == "" || !hasPrice || !hasArea {
		d.countPrice("insufficient")
		return &PriceAnomalyResult{}, nil
	}

	ctx, span := d.tracer.Start(ctx, "fraud.detect_price_anomaly")
	defer span.End()
	start := time.Now()
	defer d.observe("price", start)

	comps, err := d.corpus.Recent(ctx, city, candidate.Category)
	if err != nil {
		span.RecordError(err)
		d.logger.WarnContext(ctx, "comparables unavailable, skipping price check",
			"property_id", candidate.ID,
			"city", city,
			"error", err,
		)
		d.countPrice("insufficient")
		return &PriceAnomalyResult{}, nil
	}

	var sumPrice, sumArea float64
	usable := 0
	for _, c := range comps {
		if !c.Usable() {
			continue
		}
		sumPrice += c.Price
		sumArea += c.UnitArea
		usable++
	}
	span.SetAttributes(attribute.Int("fraud.comparables", usable))
	if usable < d.cfg.ComparablesMin {
		d.countPrice("insufficient")
		return &PriceAnomalyResult{ComparableCount: usable}, nil
	}

	average := sumPrice / sumArea
	deviation, ok := similarity.RelativeDeviation(price/area, average)
	if !ok {
		d.countPrice("insufficient")
		return &PriceAnomalyResult{ComparableCount: usable}, nil
	}

	result := &PriceAnomalyResult{
		Deviation:       deviation,
		LocalAverage:    average,
		ComparableCount: usable,
	}
	if deviation <= d.cfg.PriceAnomalyThreshold {
		d.countPrice("normal")
		return result, nil
	}

	result.IsAnomaly = true
	result.Reason = anomalyReason(deviation)
	d.countPrice("anomaly")
	span.SetAttributes(attribute.Float64("fraud.price_deviation", deviation))

	audit.LogAudit(ctx, d.logger, d.auditor, audit.Event{
		Action:   string(audit.EventPriceAnomaly),
		UserID:   candidate.OwnerID,
		Subject:  candidate.ID.String(),
		Decision: "flagged",
		Reason:   result.Reason,
	},
		"user_id", candidate.OwnerID,
		"city", city,
		"category", candidate.Category,
		"deviation", deviation,
		"local_average", average,
		"comparables", usable,
	)
	return result, nil
}

func anomalyReason(deviation float64) string {
	if deviation > 1.0 {
		return "price per unit area is more than 2x the local average"
	}
	return fmt.Sprintf("price per unit area deviates %.0f%% from the local average", deviation*100)
}

// CheckRateLimit counts the listings userID created in the trailing window.
// Allowed is false once the count reaches limit.
func (d *Detector) CheckRateLimit(ctx context.Context, userID id.UserID, limit int) (*RateLimitResult, error) {
	if limit <= 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "rate limit must be positive")
	}

	ctx, span := d.tracer.Start(ctx, "fraud.check_rate_limit")
	defer span.End()
	start := time.Now()
	defer d.observe("rate_limit", start)

	since := requestcontext.Now(ctx).Add(-d.cfg.ListingRateWindow)
	used, err := d.store.CountCreatedSince(ctx, userID, since)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "count failed")
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count recent listings")
	}

	result := &RateLimitResult{
		Allowed:   used < limit,
		Remaining: max(0, limit-used),
		Limit:     limit,
		Used:      used,
		Window:    d.cfg.ListingRateWindow,
	}
	span.SetAttributes(
		attribute.Int("fraud.listings_used", used),
		attribute.Bool("fraud.allowed", result.Allowed),
	)

	if result.Allowed {
		d.countRateLimit("allowed")
		return result, nil
	}
	d.countRateLimit("denied")
	audit.LogAudit(ctx, d.logger, d.auditor, audit.Event{
		Action:   string(audit.EventRateLimitExceeded),
		UserID:   userID,
		Decision: "denied",
	},
		"user_id", userID,
		"limit", limit,
		"used", used,
		"window", d.cfg.ListingRateWindow,
	)
	return result, nil
}

// RateLimit returns the configured listing cap.
func (d *Detector) RateLimit() int {
	return d.cfg.ListingRateLimit
}

func (d *Detector) countDuplicate(result string) {
	if d.metrics != nil {
		d.metrics.IncrementDuplicate(result)
	}
}

func (d *Detector) countPrice(result string) {
	if d.metrics != nil {
		d.metrics.IncrementPrice(result)
	}
}

func (d *Detector) countRateLimit(result string) {
	if d.metrics != nil {
		d.metrics.IncrementRateLimit(result)
	}
}

func (d *Detector) observe(check string, start time.Time) {
	if d.metrics != nil {
		d.metrics.ObserveCheck(check, start)
	}
}
