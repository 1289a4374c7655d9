package audit

import (
	"time"

	id "propnest/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose.
type EventCategory string

const (
	// CategoryIntegrity covers decisions that blocked or flagged a listing.
	CategoryIntegrity EventCategory = "integrity"
	// CategoryLifecycle covers status changes and deletions.
	CategoryLifecycle EventCategory = "lifecycle"
	// CategoryOperations covers routine activity that can be sampled.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so sinks can fan out.
type Event struct {
	Category  EventCategory
	Timestamp time.Time
	UserID    id.UserID
	// Subject is the property the event concerns, when there is one.
	Subject   string
	Action    string
	Decision  string
	Reason    string
	RequestID string
	// ActorID tracks who performed the action when different from UserID,
	// e.g. an admin approving someone else's listing.
	ActorID string
}

type AuditEvent string

const (
	// Integrity events
	EventRateLimitExceeded  AuditEvent = "listing_rate_limit_exceeded"
	EventDuplicateDetected  AuditEvent = "duplicate_listing_detected"
	EventPriceAnomaly       AuditEvent = "price_anomaly_flagged"
	EventVerificationUpdate AuditEvent = "verification_record_upserted"

	// Lifecycle events
	EventListingCreated    AuditEvent = "listing_created"
	EventListingTransition AuditEvent = "listing_transitioned"
	EventListingDeleted    AuditEvent = "listing_deleted"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventRateLimitExceeded: CategoryIntegrity,
	EventDuplicateDetected: CategoryIntegrity,
	EventPriceAnomaly:      CategoryIntegrity,

	EventListingCreated:    CategoryLifecycle,
	EventListingTransition: CategoryLifecycle,
	EventListingDeleted:    CategoryLifecycle,

	EventVerificationUpdate: CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}
