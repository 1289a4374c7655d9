// Package lifecycle is the property status state machine. Every transition is
// gated on the actor and the current status, persisted with a conditional
// status write, and recorded in the notification outbox in the same unit of
// work.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"propnest/internal/lifecycle/metrics"
	nmodels "propnest/internal/notification/models"
	"propnest/internal/property/models"
	id "propnest/pkg/domain"
	dErrors "propnest/pkg/domain-errors"
	audit "propnest/pkg/platform/audit"
	"propnest/pkg/platform/sentinel"
	"propnest/pkg/requestcontext"
)

// MinSubmitImages is the number of images a listing needs before submit.
const MinSubmitImages = 3

// Store writes a status change only if the stored status still equals from.
type Store interface {
	UpdateStatus(ctx context.Context, p *models.Property, from models.Status) error
}

// Outbox records lifecycle events for the notification relay.
type Outbox interface {
	Append(ctx context.Context, events ...*nmodels.Event) error
}

// TxRunner runs fn in one transaction.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type Controller struct {
	store         Store
	outbox        Outbox
	tx            TxRunner
	requireReview bool
	logger        *slog.Logger
	auditor       audit.Publisher
	metrics       *metrics.Metrics
	tracer        trace.Tracer
}

type Option func(*Controller)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

func WithAuditPublisher(publisher audit.Publisher) Option {
	return func(c *Controller) {
		c.auditor = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Controller) {
		c.metrics = m
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(c *Controller) {
		c.tracer = t
	}
}

// WithTxRunner makes the status write and the outbox append atomic. Without
// it they run back to back, which is what the in-memory stores need.
func WithTxRunner(runner TxRunner) Option {
	return func(c *Controller) {
		c.tx = runner
	}
}

// WithSubmitRequiresReview routes submit to PENDING for admin review.
func WithSubmitRequiresReview(enabled bool) Option {
	return func(c *Controller) {
		c.requireReview = enabled
	}
}

func New(store Store, outbox Outbox, opts ...Option) (*Controller, error) {
	if store == nil {
		return nil, fmt.Errorf("property store is required")
	}
	if outbox == nil {
		return nil, fmt.Errorf("notification outbox is required")
	}

	c := &Controller{
		store:  store,
		outbox: outbox,
		tx:     directRunner{},
		logger: slog.Default(),
		tracer: otel.Tracer("propnest/lifecycle"),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Transition applies action to p on behalf of actor and returns the updated
// property. p is not modified. reason is only kept for reject.
func (c *Controller) Transition(ctx context.Context, p *models.Property, action Action, actor id.Actor, reason string) (*models.Property, error) {
	if p == nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "property is required")
	}
	if !action.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "unknown lifecycle action")
	}

	ctx, span := c.tracer.Start(ctx, "lifecycle.transition")
	defer span.End()
	span.SetAttributes(
		attribute.String("property.id", p.ID.String()),
		attribute.String("lifecycle.action", string(action)),
		attribute.String("lifecycle.from", string(p.Status)),
	)
	start := time.Now()

	plan, err := c.plan(p, action, actor, reason, requestcontext.Now(ctx))
	if err != nil {
		c.countTransition(action, outcomeOf(err))
		span.SetStatus(codes.Error, "transition refused")
		c.logger.InfoContext(ctx, "lifecycle transition refused",
			"property_id", p.ID,
			"action", action,
			"status", p.Status,
			"actor_id", actor.UserID,
			"error", err,
		)
		return nil, err
	}

	err = c.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := c.store.UpdateStatus(ctx, plan.next, plan.from); err != nil {
			return err
		}
		if len(plan.events) == 0 {
			return nil
		}
		return c.outbox.Append(ctx, plan.events...)
	})
	if c.metrics != nil {
		c.metrics.ObserveTransition(start)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transition failed")
		switch {
		case errors.Is(err, sentinel.ErrInvalidState):
			c.countTransition(action, "conflict")
			return nil, dErrors.New(dErrors.CodeInvalidState, "property status changed concurrently")
		case errors.Is(err, sentinel.ErrNotFound):
			c.countTransition(action, "not_found")
			return nil, dErrors.New(dErrors.CodeNotFound, "property not found")
		default:
			c.countTransition(action, "failed")
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist transition")
		}
	}

	c.countTransition(action, "applied")
	if c.metrics != nil {
		for _, e := range plan.events {
			c.metrics.IncrementEvent(string(e.Type), string(e.Audience))
		}
	}
	span.SetAttributes(attribute.String("lifecycle.to", string(plan.next.Status)))

	audit.LogAudit(ctx, c.logger, c.auditor, audit.Event{
		Action:   string(audit.EventListingTransition),
		UserID:   p.OwnerID,
		Subject:  p.ID.String(),
		Decision: string(plan.next.Status),
		Reason:   plan.next.RejectionReason,
		ActorID:  actor.UserID.String(),
	},
		"property_id", p.ID,
		"action", action,
		"from", plan.from,
		"to", plan.next.Status,
		"events", len(plan.events),
	)
	return plan.next, nil
}

// Check reports whether actor may apply action to p in its current status
// without writing anything.
func (c *Controller) Check(ctx context.Context, p *models.Property, action Action, actor id.Actor) error {
	if p == nil {
		return dErrors.New(dErrors.CodeInvalidInput, "property is required")
	}
	if !action.IsValid() {
		return dErrors.New(dErrors.CodeInvalidInput, "unknown lifecycle action")
	}
	_, err := c.plan(p, action, actor, "", requestcontext.Now(ctx))
	return err
}

type transitionPlan struct {
	from   models.Status
	next   *models.Property
	events []*nmodels.Event
}

// plan checks the guards for action and derives the next state and its
// events. Authorization is always checked before the current status.
func (c *Controller) plan(p *models.Property, action Action, actor id.Actor, reason string, now time.Time) (*transitionPlan, error) {
	if actor.UserID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	owner := actor.Owns(p.OwnerID)

	next := p.Clone()
	next.UpdatedAt = now
	out := &transitionPlan{from: p.Status, next: next}
	event := func(t nmodels.EventType, aud nmodels.Audience, note string) {
		out.events = append(out.events, nmodels.NewEvent(next, t, aud, note, now))
	}

	switch action {
	case ActionSubmit:
		if !owner {
			return nil, dErrors.New(dErrors.CodeForbidden, "only the owner can submit a listing")
		}
		if p.Status != models.StatusDraft {
			return nil, invalidState(action, p.Status)
		}
		if len(p.Media.Images) < MinSubmitImages {
			return nil, dErrors.New(dErrors.CodeInvalidInput,
				fmt.Sprintf("at least %d images are required to submit", MinSubmitImages))
		}
		if c.requireReview {
			next.Status = models.StatusPending
			event(nmodels.EventListingSubmittedForReview, nmodels.AudienceOwner, "")
			return out, nil
		}
		publish(next, now)
		event(nmodels.EventListingPublished, nmodels.AudienceOwner, "")
		event(nmodels.EventListingAdded, nmodels.AudiencePublic, "")

	case ActionApprove:
		if !actor.IsAdmin() {
			return nil, dErrors.New(dErrors.CodeForbidden, "only an administrator can approve a listing")
		}
		if p.Status != models.StatusPending {
			return nil, invalidState(action, p.Status)
		}
		publish(next, now)
		event(nmodels.EventListingApproved, nmodels.AudienceOwner, "")

	case ActionReject:
		if !actor.IsAdmin() {
			return nil, dErrors.New(dErrors.CodeForbidden, "only an administrator can reject a listing")
		}
		if p.Status != models.StatusPending {
			return nil, invalidState(action, p.Status)
		}
		next.Status = models.StatusRejected
		next.RejectionReason = strings.TrimSpace(reason)
		event(nmodels.EventListingRejected, nmodels.AudienceOwner, reason)

	case ActionPause:
		if !owner {
			return nil, dErrors.New(dErrors.CodeForbidden, "only the owner can pause a listing")
		}
		if p.Status != models.StatusApproved {
			return nil, invalidState(action, p.Status)
		}
		next.Status = models.StatusPaused
		event(nmodels.EventListingPaused, nmodels.AudienceOwner, "")

	case ActionResume:
		if !owner {
			return nil, dErrors.New(dErrors.CodeForbidden, "only the owner can resume a listing")
		}
		if p.Status != models.StatusPaused {
			return nil, invalidState(action, p.Status)
		}
		next.Status = models.StatusApproved
		event(nmodels.EventListingResumed, nmodels.AudienceOwner, "")

	case ActionMarkSold, ActionMarkRented:
		if !owner && !actor.IsAdmin() {
			return nil, dErrors.New(dErrors.CodeForbidden, "only the owner or an administrator can close a listing")
		}
		if p.Status.IsTerminal() {
			return nil, invalidState(action, p.Status)
		}
		if action == ActionMarkSold {
			next.Status = models.StatusSold
			event(nmodels.EventListingSold, nmodels.AudiencePublic, "")
		} else {
			next.Status = models.StatusRented
			event(nmodels.EventListingRented, nmodels.AudiencePublic, "")
		}

	default:
		return nil, dErrors.New(dErrors.CodeInvalidInput, "unknown lifecycle action")
	}
	return out, nil
}

func publish(p *models.Property, now time.Time) {
	p.Status = models.StatusApproved
	p.Verified = true
	if p.PublishedAt == nil {
		t := now
		p.PublishedAt = &t
	}
}

func invalidState(action Action, status models.Status) error {
	return dErrors.New(dErrors.CodeInvalidState, fmt.Sprintf("cannot %s a listing in status %s", action, status))
}

func outcomeOf(err error) string {
	switch {
	case dErrors.HasCode(err, dErrors.CodeForbidden), dErrors.HasCode(err, dErrors.CodeUnauthorized):
		return "forbidden"
	case dErrors.HasCode(err, dErrors.CodeInvalidState):
		return "invalid_state"
	default:
		return "invalid"
	}
}

func (c *Controller) countTransition(action Action, outcome string) {
	if c.metrics != nil {
		c.metrics.IncrementTransition(string(action), outcome)
	}
}

type directRunner struct{}

func (directRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
