// Package service orchestrates a listing request across the integrity engine:
// the fraud checks gate creation, the verification engine derives the trust
// record and the lifecycle controller owns every status change.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mssola/useragent"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"propnest/internal/fraud"
	"propnest/internal/lifecycle"
	"propnest/internal/listing"
	"propnest/internal/property/models"
	vmodels "propnest/internal/verification/models"
	id "propnest/pkg/domain"
	dErrors "propnest/pkg/domain-errors"
	audit "propnest/pkg/platform/audit"
	"propnest/pkg/platform/sentinel"
	"propnest/pkg/requestcontext"
)

const (
	// maxAssetIDAttempts bounds re-assignment when a fresh asset id collides
	// with a stored one.
	maxAssetIDAttempts = 3

	defaultListLimit = 20
	maxListLimit     = 100
)

// PropertyStore is the property persistence the service drives.
type PropertyStore interface {
	Create(ctx context.Context, p *models.Property) error
	FindByID(ctx context.Context, propertyID id.PropertyID) (*models.Property, error)
	Update(ctx context.Context, p *models.Property) error
	Delete(ctx context.Context, propertyID id.PropertyID) error
	UpdateVerification(ctx context.Context, propertyID id.PropertyID, summary models.VerificationSummary) error
	IncrementCounter(ctx context.Context, propertyID id.PropertyID, counter models.Counter) error
	List(ctx context.Context, f models.ListFilter) ([]*models.Property, error)
}

// Verifier is the asset verification engine.
type Verifier interface {
	AssignIdentity() string
	Upsert(ctx context.Context, p *models.Property, assetID string) (*vmodels.Record, error)
	Get(ctx context.Context, propertyID id.PropertyID) (*vmodels.Record, error)
	Delete(ctx context.Context, propertyID id.PropertyID) error
}

// Detector runs the fraud and anomaly checks.
type Detector interface {
	DetectDuplicate(ctx context.Context, candidate *models.Property, excludeOwner id.UserID) (*fraud.DuplicateResult, error)
	DetectPriceAnomaly(ctx context.Context, candidate *models.Property) (*fraud.PriceAnomalyResult, error)
	CheckRateLimit(ctx context.Context, userID id.UserID, limit int) (*fraud.RateLimitResult, error)
	RateLimit() int
}

// Lifecycle applies guarded status transitions.
type Lifecycle interface {
	Check(ctx context.Context, p *models.Property, action lifecycle.Action, actor id.Actor) error
	Transition(ctx context.Context, p *models.Property, action lifecycle.Action, actor id.Actor, reason string) (*models.Property, error)
}

// CacheInvalidator drops cached comparables when the approved set changes.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, city string, category models.Category) error
}

// TxRunner runs fn in one transaction.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type Service struct {
	properties PropertyStore
	verifier   Verifier
	detector   Detector
	lifecycle  Lifecycle
	cache      CacheInvalidator
	tx         TxRunner
	logger     *slog.Logger
	auditor    audit.Publisher
	tracer     trace.Tracer
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

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = t
	}
}

func WithCacheInvalidator(c CacheInvalidator) Option {
	return func(s *Service) {
		s.cache = c
	}
}

func WithTxRunner(runner TxRunner) Option {
	return func(s *Service) {
		s.tx = runner
	}
}

func New(properties PropertyStore, verifier Verifier, detector Detector, lc Lifecycle, opts ...Option) (*Service, error) {
	if properties == nil {
		return nil, fmt.Errorf("property store is required")
	}
	if verifier == nil {
		return nil, fmt.Errorf("verification engine is required")
	}
	if detector == nil {
		return nil, fmt.Errorf("fraud detector is required")
	}
	if lc == nil {
		return nil, fmt.Errorf("lifecycle controller is required")
	}

	svc := &Service{
		properties: properties,
		verifier:   verifier,
		detector:   detector,
		lifecycle:  lc,
		tx:         directRunner{},
		logger:     slog.Default(),
		tracer:     otel.Tracer("propnest/listing"),
	}

	for _, opt := range opts {
		opt(svc)
	}

	return svc, nil
}

// Create evaluates an attempt and persists it as a DRAFT. The rate limit and
// duplicate checks block; the price check only adds a warning.
//
// The rate limit is a count followed by an unlocked insert, so concurrent
// submissions by one owner can overshoot the cap.
func (s *Service) Create(ctx context.Context, actor id.Actor, attempt *listing.Attempt) (*listing.CreateResult, error) {
	if actor.UserID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	candidate, err := attempt.Candidate(actor.UserID, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}

	ctx, span := s.tracer.Start(ctx, "listing.create")
	defer span.End()
	span.SetAttributes(
		attribute.String("property.category", string(candidate.Category)),
		attribute.String("property.city", candidate.Location.City),
	)

	quota, err := s.detector.CheckRateLimit(ctx, actor.UserID, s.detector.RateLimit())
	if err != nil {
		return nil, err
	}
	if !quota.Allowed {
		span.SetStatus(codes.Error, "rate limited")
		return nil, &listing.RateLimitExceededError{
			Remaining: quota.Remaining,
			Limit:     quota.Limit,
			Window:    quota.Window,
		}
	}

	dup, err := s.detector.DetectDuplicate(ctx, candidate, actor.UserID)
	if err != nil {
		return nil, err
	}
	if dup.IsDuplicate {
		span.SetStatus(codes.Error, "duplicate")
		return nil, &listing.DuplicateListingError{Matches: dup.Matches}
	}

	price, err := s.detector.DetectPriceAnomaly(ctx, candidate)
	if err != nil {
		return nil, err
	}
	result := &listing.CreateResult{
		PriceCheck:     price,
		RemainingQuota: max(0, quota.Remaining-1),
	}
	if price.IsAnomaly {
		result.Warnings = append(result.Warnings, price.Reason)
	}

	if err := s.insert(ctx, candidate); err != nil {
		span.RecordError(err)
		return nil, err
	}

	rec, err := s.verifier.Upsert(ctx, candidate, candidate.AssetID)
	if err != nil {
		s.discard(ctx, candidate.ID, false)
		return nil, err
	}
	summary := rec.Summary()
	if err := s.properties.UpdateVerification(ctx, candidate.ID, summary); err != nil {
		s.discard(ctx, candidate.ID, true)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store verification summary")
	}
	candidate.Verification = summary
	result.Property = candidate
	result.Verification = rec

	span.SetAttributes(attribute.String("property.id", candidate.ID.String()))
	audit.LogAudit(ctx, s.logger, s.auditor, audit.Event{
		Action:  string(audit.EventListingCreated),
		UserID:  actor.UserID,
		Subject: candidate.ID.String(),
	},
		"property_id", candidate.ID,
		"asset_id", candidate.AssetID,
		"verification_score", rec.VerificationScore,
		"price_warning", price.IsAnomaly,
		"remaining_quota", result.RemainingQuota,
	)
	return result, nil
}

// insert assigns an asset id and stores p, re-assigning when the id is
// already taken.
func (s *Service) insert(ctx context.Context, p *models.Property) error {
	for attempt := 1; attempt <= maxAssetIDAttempts; attempt++ {
		p.AssetID = s.verifier.AssignIdentity()
		err := s.properties.Create(ctx, p)
		if err == nil {
			return nil
		}
		if !errors.Is(err, sentinel.ErrConflict) {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store listing")
		}
		s.logger.WarnContext(ctx, "asset id collision, reassigning",
			"asset_id", p.AssetID,
			"attempt", attempt,
		)
	}
	return dErrors.New(dErrors.CodeConflict, "could not assign a unique asset id")
}

// discard removes a listing whose first verification did not complete, so a
// property never outlives it without a summary.
func (s *Service) discard(ctx context.Context, propertyID id.PropertyID, verified bool) {
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if verified {
			if err := s.verifier.Delete(ctx, propertyID); err != nil {
				return err
			}
		}
		return s.properties.Delete(ctx, propertyID)
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to roll back listing after verification failure",
			"property_id", propertyID,
			"error", err,
		)
	}
}

// Update applies a patch for the owner or an administrator. Changes to
// location, legal or media refresh the verification record under the stored
// asset id. A SOLD or RENTED status goes through the lifecycle controller.
// Every guard runs before the first write and the writes share one
// transaction, so a refused patch leaves the listing as it was.
func (s *Service) Update(ctx context.Context, actor id.Actor, propertyID id.PropertyID, patch *listing.Patch) (*models.Property, error) {
	if actor.UserID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	if patch == nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "patch is required")
	}
	var action lifecycle.Action
	if patch.Status != nil {
		switch *patch.Status {
		case models.StatusSold:
			action = lifecycle.ActionMarkSold
		case models.StatusRented:
			action = lifecycle.ActionMarkRented
		default:
			return nil, dErrors.New(dErrors.CodeInvalidInput, "status can only be set to SOLD or RENTED")
		}
	}

	p, err := s.find(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	if !actor.Owns(p.OwnerID) && !actor.IsAdmin() {
		return nil, dErrors.New(dErrors.CodeForbidden, "only the owner or an administrator can edit a listing")
	}

	edit := patch.HasFieldChanges()
	next, rescore := p, false
	if edit {
		next, rescore, err = patch.Apply(p, requestcontext.Now(ctx))
		if err != nil {
			return nil, err
		}
		if err := s.recheckDuplicate(ctx, p, next); err != nil {
			return nil, err
		}
	}
	if action != "" {
		if err := s.lifecycle.Check(ctx, p, action, actor); err != nil {
			return nil, err
		}
	}

	var closed *models.Property
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if edit {
			if err := s.properties.Update(ctx, next); err != nil {
				if errors.Is(err, sentinel.ErrNotFound) {
					return dErrors.New(dErrors.CodeNotFound, "property not found")
				}
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update listing")
			}
			if rescore {
				if err := s.refreshVerification(ctx, next); err != nil {
					return err
				}
			}
		}
		if action == "" {
			return nil
		}
		var err error
		closed, err = s.lifecycle.Transition(ctx, next, action, actor, "")
		return err
	})
	if err != nil {
		if _, ok := dErrors.From(err); ok {
			return nil, err
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update listing")
	}

	if edit {
		s.logger.InfoContext(ctx, "listing updated",
			"property_id", p.ID,
			"actor_id", actor.UserID,
			"rescored", rescore,
		)
	}
	// the comparables sample only holds APPROVED listings
	var stale []*models.Property
	if p.Status == models.StatusApproved && patch.AffectsComparables() {
		stale = append(stale, p, next)
	}
	if closed != nil && p.Status == models.StatusApproved {
		stale = append(stale, closed)
	}
	s.invalidate(ctx, stale...)
	return s.find(ctx, propertyID)
}

// recheckDuplicate runs the duplicate check again when an edit renames the
// listing or moves its point. The owner's own inventory, this listing
// included, never matches.
func (s *Service) recheckDuplicate(ctx context.Context, before, after *models.Property) error {
	if before.Title == after.Title && samePoint(before.Location.Point, after.Location.Point) {
		return nil
	}
	dup, err := s.detector.DetectDuplicate(ctx, after, after.OwnerID)
	if err != nil {
		return err
	}
	if dup.IsDuplicate {
		return &listing.DuplicateListingError{Matches: dup.Matches}
	}
	return nil
}

func samePoint(a, b *models.GeoPoint) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func (s *Service) refreshVerification(ctx context.Context, p *models.Property) error {
	rec, err := s.verifier.Upsert(ctx, p, p.AssetID)
	if err != nil {
		return err
	}
	if err := s.properties.UpdateVerification(ctx, p.ID, rec.Summary()); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store verification summary")
	}
	return nil
}

// Delete removes a listing and its verification record. Owner only.
func (s *Service) Delete(ctx context.Context, actor id.Actor, propertyID id.PropertyID) error {
	if actor.UserID.IsNil() {
		return dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	p, err := s.find(ctx, propertyID)
	if err != nil {
		return err
	}
	if !actor.Owns(p.OwnerID) {
		return dErrors.New(dErrors.CodeForbidden, "only the owner can delete a listing")
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.verifier.Delete(ctx, propertyID); err != nil {
			return err
		}
		return s.properties.Delete(ctx, propertyID)
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "property not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete listing")
	}
	if p.Status == models.StatusApproved {
		s.invalidate(ctx, p)
	}

	audit.LogAudit(ctx, s.logger, s.auditor, audit.Event{
		Action:  string(audit.EventListingDeleted),
		UserID:  p.OwnerID,
		Subject: p.ID.String(),
		ActorID: actor.UserID.String(),
	},
		"property_id", p.ID,
		"status", p.Status,
	)
	return nil
}

// Get returns a listing. PAUSED listings are only visible to their owner and
// administrators. Views by anyone else are counted unless the client is a bot.
func (s *Service) Get(ctx context.Context, viewer id.Actor, propertyID id.PropertyID) (*models.Property, error) {
	p, err := s.find(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	if p.Status == models.StatusPaused && !privileged(viewer, p.OwnerID) {
		return nil, dErrors.New(dErrors.CodeNotFound, "property not found")
	}
	if viewer.Owns(p.OwnerID) || !countableView(requestcontext.UserAgent(ctx)) {
		return p, nil
	}
	if err := s.properties.IncrementCounter(ctx, p.ID, models.CounterViews); err != nil {
		s.logger.WarnContext(ctx, "failed to count listing view",
			"property_id", p.ID,
			"error", err,
		)
		return p, nil
	}
	p.Counters.Views++
	return p, nil
}

// privileged reports whether viewer may see owner's hidden listings.
func privileged(viewer id.Actor, owner id.UserID) bool {
	if viewer.UserID.IsNil() {
		return false
	}
	return viewer.Owns(owner) || viewer.IsAdmin()
}

// countableView filters crawlers and clients that send no user agent.
func countableView(userAgent string) bool {
	if strings.TrimSpace(userAgent) == "" {
		return false
	}
	return !useragent.New(userAgent).Bot()
}

// List returns listings newest first. The default visibility excludes PAUSED;
// an owner browsing their own listings, or an admin browsing an owner's,
// sees PAUSED too.
func (s *Service) List(ctx context.Context, viewer id.Actor, q listing.ListQuery) ([]*models.Property, error) {
	ownerView := false
	if !q.ListedBy.IsNil() {
		ownerView = privileged(viewer, q.ListedBy)
	}
	if q.Category != "" && !q.Category.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "invalid category")
	}
	if q.TransactionType != "" && !q.TransactionType.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "invalid transaction type")
	}
	if q.Offset < 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "offset cannot be negative")
	}
	limit := q.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	limit = min(limit, maxListLimit)

	out, err := s.properties.List(ctx, models.ListFilter{
		Statuses:        models.VisibleStatuses(ownerView),
		OwnerID:         q.ListedBy,
		City:            strings.TrimSpace(q.City),
		Category:        q.Category,
		TransactionType: q.TransactionType,
		Limit:           limit,
		Offset:          q.Offset,
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list listings")
	}
	return out, nil
}

// Transition loads the listing and applies a lifecycle action to it.
func (s *Service) Transition(ctx context.Context, actor id.Actor, propertyID id.PropertyID, action lifecycle.Action, reason string) (*models.Property, error) {
	p, err := s.find(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, p, action, actor, reason)
}

func (s *Service) transition(ctx context.Context, p *models.Property, action lifecycle.Action, actor id.Actor, reason string) (*models.Property, error) {
	next, err := s.lifecycle.Transition(ctx, p, action, actor, reason)
	if err != nil {
		return nil, err
	}
	// the comparables sample only holds APPROVED listings
	if p.Status == models.StatusApproved || next.Status == models.StatusApproved {
		s.invalidate(ctx, next)
	}
	return next, nil
}

// RecordSave counts a save by an authenticated user.
func (s *Service) RecordSave(ctx context.Context, actor id.Actor, propertyID id.PropertyID) error {
	return s.record(ctx, actor, propertyID, models.CounterSaves)
}

// RecordInquiry counts an inquiry by an authenticated user. Owners cannot
// inquire about their own listing.
func (s *Service) RecordInquiry(ctx context.Context, actor id.Actor, propertyID id.PropertyID) error {
	return s.record(ctx, actor, propertyID, models.CounterInquiries)
}

func (s *Service) record(ctx context.Context, actor id.Actor, propertyID id.PropertyID, counter models.Counter) error {
	if actor.UserID.IsNil() {
		return dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	p, err := s.find(ctx, propertyID)
	if err != nil {
		return err
	}
	owner := actor.Owns(p.OwnerID)
	if p.Status == models.StatusPaused && !owner {
		return dErrors.New(dErrors.CodeNotFound, "property not found")
	}
	if counter == models.CounterInquiries && owner {
		return dErrors.New(dErrors.CodeInvalidInput, "cannot inquire about your own listing")
	}
	if err := s.properties.IncrementCounter(ctx, propertyID, counter); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "property not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record "+string(counter))
	}
	return nil
}

// Verification returns the verification record of a listing visible to viewer.
func (s *Service) Verification(ctx context.Context, viewer id.Actor, propertyID id.PropertyID) (*vmodels.Record, error) {
	p, err := s.find(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	if p.Status == models.StatusPaused && !privileged(viewer, p.OwnerID) {
		return nil, dErrors.New(dErrors.CodeNotFound, "property not found")
	}
	return s.verifier.Get(ctx, propertyID)
}

// Quota reports the caller's remaining listing quota.
func (s *Service) Quota(ctx context.Context, actor id.Actor) (*fraud.RateLimitResult, error) {
	if actor.UserID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	return s.detector.CheckRateLimit(ctx, actor.UserID, s.detector.RateLimit())
}

// CheckDuplicate runs the duplicate check on an attempt without storing it.
func (s *Service) CheckDuplicate(ctx context.Context, actor id.Actor, attempt *listing.Attempt) (*fraud.DuplicateResult, error) {
	if actor.UserID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	candidate, err := attempt.Candidate(actor.UserID, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	return s.detector.DetectDuplicate(ctx, candidate, actor.UserID)
}

// CheckPrice runs the price anomaly check on an attempt without storing it.
func (s *Service) CheckPrice(ctx context.Context, actor id.Actor, attempt *listing.Attempt) (*fraud.PriceAnomalyResult, error) {
	if actor.UserID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	candidate, err := attempt.Candidate(actor.UserID, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	return s.detector.DetectPriceAnomaly(ctx, candidate)
}

func (s *Service) find(ctx context.Context, propertyID id.PropertyID) (*models.Property, error) {
	p, err := s.properties.FindByID(ctx, propertyID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "property not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load property")
	}
	return p, nil
}

// invalidate drops the cached comparables of each listing's (city, category)
// once.
func (s *Service) invalidate(ctx context.Context, ps ...*models.Property) {
	if s.cache == nil {
		return
	}
	seen := make(map[string]bool, len(ps))
	for _, p := range ps {
		if p.Location.City == "" {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(p.Location.City)) + ":" + string(p.Category)
		if seen[key] {
			continue
		}
		seen[key] = true
		if err := s.cache.Invalidate(ctx, p.Location.City, p.Category); err != nil {
			s.logger.WarnContext(ctx, "failed to invalidate comparables cache",
				"property_id", p.ID,
				"city", p.Location.City,
				"error", err,
			)
		}
	}
}

type directRunner struct{}

func (directRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
