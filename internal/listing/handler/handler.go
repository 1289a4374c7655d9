package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"propnest/internal/fraud"
	"propnest/internal/lifecycle"
	"propnest/internal/listing"
	"propnest/internal/property/models"
	vmodels "propnest/internal/verification/models"
	id "propnest/pkg/domain"
	dErrors "propnest/pkg/domain-errors"
	"propnest/pkg/platform/httputil"
	"propnest/pkg/platform/middleware/admin"
	"propnest/pkg/platform/middleware/auth"
	"propnest/pkg/platform/middleware/metadata"
	"propnest/pkg/requestcontext"
)

// Service defines the listing operations exposed over HTTP.
type Service interface {
	Create(ctx context.Context, actor id.Actor, attempt *listing.Attempt) (*listing.CreateResult, error)
	Update(ctx context.Context, actor id.Actor, propertyID id.PropertyID, patch *listing.Patch) (*models.Property, error)
	Delete(ctx context.Context, actor id.Actor, propertyID id.PropertyID) error
	Get(ctx context.Context, viewer id.Actor, propertyID id.PropertyID) (*models.Property, error)
	List(ctx context.Context, viewer id.Actor, q listing.ListQuery) ([]*models.Property, error)
	Transition(ctx context.Context, actor id.Actor, propertyID id.PropertyID, action lifecycle.Action, reason string) (*models.Property, error)
	RecordSave(ctx context.Context, actor id.Actor, propertyID id.PropertyID) error
	RecordInquiry(ctx context.Context, actor id.Actor, propertyID id.PropertyID) error
	Verification(ctx context.Context, viewer id.Actor, propertyID id.PropertyID) (*vmodels.Record, error)
	Quota(ctx context.Context, actor id.Actor) (*fraud.RateLimitResult, error)
	CheckDuplicate(ctx context.Context, actor id.Actor, attempt *listing.Attempt) (*fraud.DuplicateResult, error)
	CheckPrice(ctx context.Context, actor id.Actor, attempt *listing.Attempt) (*fraud.PriceAnomalyResult, error)
}

// Handler wires listing endpoints to the listing service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a listing handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Register mounts listing endpoints on the router. The router must already
// run auth.Authenticate so reads can tell owners from anonymous viewers.
func (h *Handler) Register(r chi.Router) {
	r.Get("/properties", h.HandleList)
	r.Get("/properties/{id}", h.HandleGet)
	r.Get("/properties/{id}/verification", h.HandleVerification)

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(h.logger))

		r.Post("/properties", h.HandleCreate)
		r.Patch("/properties/{id}", h.HandleUpdate)
		r.Delete("/properties/{id}", h.HandleDelete)
		r.Post("/properties/{id}/submit", h.handleTransition(lifecycle.ActionSubmit))
		r.Post("/properties/{id}/pause", h.handleTransition(lifecycle.ActionPause))
		r.Post("/properties/{id}/resume", h.handleTransition(lifecycle.ActionResume))
		r.Post("/properties/{id}/save", h.HandleSave)
		r.Post("/properties/{id}/inquiries", h.HandleInquiry)
		r.Post("/properties/checks/duplicate", h.HandleCheckDuplicate)
		r.Post("/properties/checks/price", h.HandleCheckPrice)
		r.Get("/me/listing-quota", h.HandleQuota)

		r.Group(func(r chi.Router) {
			r.Use(admin.RequireAdmin(h.logger))
			r.Post("/admin/properties/{id}/approve", h.handleTransition(lifecycle.ActionApprove))
			r.Post("/admin/properties/{id}/reject", h.handleTransition(lifecycle.ActionReject))
		})
	})
}

// HandleCreate handles POST /properties.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	actor := requestcontext.Actor(ctx)

	req, ok := httputil.DecodeAndPrepare[ListingRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	res, err := h.service.Create(ctx, actor, req.Attempt())
	if err != nil {
		h.logFailure(ctx, "listing create failed", requestID, actor, err)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, toCreateResponse(res))
}

// HandleUpdate handles PATCH /properties/{id}.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	actor := requestcontext.Actor(ctx)

	propertyID, ok := h.propertyID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[PatchRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	p, err := h.service.Update(ctx, actor, propertyID, req.Patch())
	if err != nil {
		h.logFailure(ctx, "listing update failed", requestID, actor, err, "property_id", propertyID)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, toPropertyResponse(p))
}

// HandleDelete handles DELETE /properties/{id}.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	actor := requestcontext.Actor(ctx)

	propertyID, ok := h.propertyID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(ctx, actor, propertyID); err != nil {
		h.logFailure(ctx, "listing delete failed", requestID, actor, err, "property_id", propertyID)
		httputil.WriteError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleGet handles GET /properties/{id}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	viewer := requestcontext.Actor(ctx)

	propertyID, ok := h.propertyID(w, r)
	if !ok {
		return
	}
	p, err := h.service.Get(ctx, viewer, propertyID)
	if err != nil {
		h.logFailure(ctx, "listing get failed", requestID, viewer, err, "property_id", propertyID)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, toPropertyResponse(p))
}

// HandleList handles GET /properties with the listedBy, city, category,
// transactionType, limit and offset query parameters.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	viewer := requestcontext.Actor(ctx)

	q, err := parseListQuery(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	properties, err := h.service.List(ctx, viewer, q)
	if err != nil {
		h.logFailure(ctx, "listing list failed", requestID, viewer, err)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, toPropertyListResponse(properties, q))
}

// HandleVerification handles GET /properties/{id}/verification.
func (h *Handler) HandleVerification(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	viewer := requestcontext.Actor(ctx)

	propertyID, ok := h.propertyID(w, r)
	if !ok {
		return
	}
	rec, err := h.service.Verification(ctx, viewer, propertyID)
	if err != nil {
		h.logFailure(ctx, "verification lookup failed", requestID, viewer, err, "property_id", propertyID)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, toVerificationResponse(rec))
}

func (h *Handler) handleTransition(action lifecycle.Action) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID := requestcontext.RequestID(ctx)
		actor := requestcontext.Actor(ctx)

		propertyID, ok := h.propertyID(w, r)
		if !ok {
			return
		}
		var reason string
		if action == lifecycle.ActionReject && r.ContentLength != 0 {
			req, ok := httputil.DecodeAndPrepare[ReasonRequest](w, r, h.logger, ctx, requestID)
			if !ok {
				return
			}
			reason = req.Reason
		}

		p, err := h.service.Transition(ctx, actor, propertyID, action, reason)
		if err != nil {
			h.logFailure(ctx, "listing transition failed", requestID, actor, err,
				"property_id", propertyID,
				"action", action,
			)
			httputil.WriteError(w, err)
			return
		}

		httputil.WriteJSON(w, http.StatusOK, toPropertyResponse(p))
	}
}

// HandleSave handles POST /properties/{id}/save.
func (h *Handler) HandleSave(w http.ResponseWriter, r *http.Request) {
	h.handleCounter(w, r, h.service.RecordSave)
}

// HandleInquiry handles POST /properties/{id}/inquiries.
func (h *Handler) HandleInquiry(w http.ResponseWriter, r *http.Request) {
	h.handleCounter(w, r, h.service.RecordInquiry)
}

func (h *Handler) handleCounter(w http.ResponseWriter, r *http.Request, record func(context.Context, id.Actor, id.PropertyID) error) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	actor := requestcontext.Actor(ctx)

	propertyID, ok := h.propertyID(w, r)
	if !ok {
		return
	}
	if err := record(ctx, actor, propertyID); err != nil {
		h.logFailure(ctx, "listing engagement failed", requestID, actor, err, "property_id", propertyID)
		httputil.WriteError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleCheckDuplicate handles POST /properties/checks/duplicate.
func (h *Handler) HandleCheckDuplicate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	actor := requestcontext.Actor(ctx)

	req, ok := httputil.DecodeAndPrepare[ListingRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	res, err := h.service.CheckDuplicate(ctx, actor, req.Attempt())
	if err != nil {
		h.logFailure(ctx, "duplicate check failed", requestID, actor, err)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, toDuplicateCheckResponse(res))
}

// HandleCheckPrice handles POST /properties/checks/price.
func (h *Handler) HandleCheckPrice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	actor := requestcontext.Actor(ctx)

	req, ok := httputil.DecodeAndPrepare[ListingRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	res, err := h.service.CheckPrice(ctx, actor, req.Attempt())
	if err != nil {
		h.logFailure(ctx, "price check failed", requestID, actor, err)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, toPriceCheckResponse(res))
}

// HandleQuota handles GET /me/listing-quota.
func (h *Handler) HandleQuota(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	actor := requestcontext.Actor(ctx)

	res, err := h.service.Quota(ctx, actor)
	if err != nil {
		h.logFailure(ctx, "quota lookup failed", requestID, actor, err)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, toQuotaResponse(res))
}

func (h *Handler) propertyID(w http.ResponseWriter, r *http.Request) (id.PropertyID, bool) {
	propertyID, err := id.ParsePropertyID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.PropertyID{}, false
	}
	return propertyID, true
}

// logFailure logs at error level only for failures the caller did not cause.
func (h *Handler) logFailure(ctx context.Context, msg, requestID string, actor id.Actor, err error, attrs ...any) {
	args := append([]any{
		"request_id", requestID,
		"user_id", actor.UserID,
		"client_ip", metadata.GetClientIP(ctx),
		"error", err,
	}, attrs...)
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, msg, args...)
		return
	}
	h.logger.InfoContext(ctx, msg, args...)
}

func parseListQuery(r *http.Request) (listing.ListQuery, error) {
	values := r.URL.Query()
	q := listing.ListQuery{
		City:            values.Get("city"),
		Category:        models.Category(strings.ToUpper(values.Get("category"))),
		TransactionType: models.TransactionType(strings.ToUpper(values.Get("transactionType"))),
	}
	if raw := values.Get("listedBy"); raw != "" {
		owner, err := id.ParseUserID(raw)
		if err != nil {
			return listing.ListQuery{}, err
		}
		q.ListedBy = owner
	}
	var err error
	if q.Limit, err = intParam(values.Get("limit"), "limit"); err != nil {
		return listing.ListQuery{}, err
	}
	if q.Offset, err = intParam(values.Get("offset"), "offset"); err != nil {
		return listing.ListQuery{}, err
	}
	return q, nil
}

func intParam(raw, name string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, dErrors.New(dErrors.CodeValidation, name+" must be an integer")
	}
	return n, nil
}
