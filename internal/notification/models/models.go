// Package models holds the lifecycle events handed to the notification
// dispatcher.
package models

import (
	"strings"
	"time"

	"github.com/google/uuid"

	propmodels "propnest/internal/property/models"
	id "propnest/pkg/domain"
)

// Audience decides which topic an event is routed to.
type Audience string

const (
	// AudienceOwner events notify the listing's owner.
	AudienceOwner Audience = "OWNER"
	// AudiencePublic events are broadcast to every subscriber.
	AudiencePublic Audience = "PUBLIC"
)

type EventType string

const (
	EventListingPublished          EventType = "LISTING_PUBLISHED"
	EventListingAdded              EventType = "LISTING_ADDED"
	EventListingSubmittedForReview EventType = "LISTING_SUBMITTED_FOR_REVIEW"
	EventListingApproved           EventType = "LISTING_APPROVED"
	EventListingRejected           EventType = "LISTING_REJECTED"
	EventListingPaused             EventType = "LISTING_PAUSED"
	EventListingResumed            EventType = "LISTING_RESUMED"
	EventListingSold               EventType = "LISTING_SOLD"
	EventListingRented             EventType = "LISTING_RENTED"
)

// Location is the coarse address carried by events. It never includes the
// street address or coordinates.
type Location struct {
	City  string `json:"city,omitempty"`
	Area  string `json:"area,omitempty"`
	State string `json:"state,omitempty"`
}

// Payload is the JSON body published for every lifecycle event.
type Payload struct {
	PropertyID      string    `json:"propertyId"`
	Title           string    `json:"title"`
	Category        string    `json:"category"`
	TransactionType string    `json:"transactionType"`
	Location        *Location `json:"location,omitempty"`
	EventType       EventType `json:"eventType"`
	Reason          string    `json:"reason,omitempty"`
}

// Event is one outbox entry. RecipientID is the owner for owner events and
// nil for broadcasts.
type Event struct {
	ID          uuid.UUID
	Type        EventType
	Audience    Audience
	PropertyID  id.PropertyID
	RecipientID id.UserID
	Payload     Payload
	CreatedAt   time.Time
	PublishedAt *time.Time
}

// NewEvent builds an event describing p. Owner events are addressed to the
// owner; public events carry no recipient.
func NewEvent(p *propmodels.Property, eventType EventType, audience Audience, reason string, now time.Time) *Event {
	e := &Event{
		ID:         uuid.New(),
		Type:       eventType,
		Audience:   audience,
		PropertyID: p.ID,
		Payload: Payload{
			PropertyID:      p.ID.String(),
			Title:           p.Title,
			Category:        string(p.Category),
			TransactionType: string(p.TransactionType),
			EventType:       eventType,
			Reason:          strings.TrimSpace(reason),
		},
		CreatedAt: now,
	}
	if audience == AudienceOwner {
		e.RecipientID = p.OwnerID
	}
	loc := Location{City: p.Location.City, Area: p.Location.Area, State: p.Location.State}
	if loc != (Location{}) {
		e.Payload.Location = &loc
	}
	return e
}

// Clone returns a copy safe to hand out of an in-memory store.
func (e *Event) Clone() *Event {
	c := *e
	if e.Payload.Location != nil {
		loc := *e.Payload.Location
		c.Payload.Location = &loc
	}
	if e.PublishedAt != nil {
		t := *e.PublishedAt
		c.PublishedAt = &t
	}
	return &c
}
