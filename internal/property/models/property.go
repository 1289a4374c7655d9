package models

import (
	"strings"
	"time"

	id "propnest/pkg/domain"
	dErrors "propnest/pkg/domain-errors"
)

// TransactionType is how the lister intends to transact.
type TransactionType string

const (
	TransactionSell       TransactionType = "SELL"
	TransactionRent       TransactionType = "RENT"
	TransactionLease      TransactionType = "LEASE"
	TransactionSubLease   TransactionType = "SUB_LEASE"
	TransactionFractional TransactionType = "FRACTIONAL"
)

// IsValid checks if the transaction type is one of the supported enum values.
func (t TransactionType) IsValid() bool {
	switch t {
	case TransactionSell, TransactionRent, TransactionLease, TransactionSubLease, TransactionFractional:
		return true
	}
	return false
}

// Category is the asset class of a property.
type Category string

const (
	CategoryResidential Category = "RESIDENTIAL"
	CategoryCommercial  Category = "COMMERCIAL"
	CategoryIndustrial  Category = "INDUSTRIAL"
	CategoryLand        Category = "LAND"
	CategorySpecial     Category = "SPECIAL"
)

// IsValid checks if the category is one of the supported enum values.
func (c Category) IsValid() bool {
	switch c {
	case CategoryResidential, CategoryCommercial, CategoryIndustrial, CategoryLand, CategorySpecial:
		return true
	}
	return false
}

// Variant returns the details block the category carries. Industrial units
// share the commercial block; special-purpose assets carry none.
func (c Category) Variant() Variant {
	switch c {
	case CategoryResidential:
		return VariantResidential
	case CategoryCommercial, CategoryIndustrial:
		return VariantCommercial
	case CategoryLand:
		return VariantLand
	}
	return VariantNone
}

// LitigationStatus is the state of any legal dispute over the asset.
type LitigationStatus string

const (
	LitigationNone     LitigationStatus = "NONE"
	LitigationPending  LitigationStatus = "PENDING"
	LitigationResolved LitigationStatus = "RESOLVED"
)

// Legal holds the lister-declared legal flags.
type Legal struct {
	TitleClear         bool             `json:"titleClear"`
	EncumbranceFree    bool             `json:"encumbranceFree"`
	LitigationStatus   LitigationStatus `json:"litigationStatus,omitempty"`
	RegistrationNumber string           `json:"registrationNumber,omitempty"`
}

// Media lists uploaded asset URLs.
type Media struct {
	Images []string `json:"images,omitempty"`
	Videos []string `json:"videos,omitempty"`
}

// Counters track engagement.
type Counters struct {
	Views     int `json:"views"`
	Saves     int `json:"saves"`
	Inquiries int `json:"inquiries"`
}

// Counter names a single engagement counter.
type Counter string

const (
	CounterViews     Counter = "views"
	CounterSaves     Counter = "saves"
	CounterInquiries Counter = "inquiries"
)

// VerificationSummary is the subset of the verification record copied onto
// the property for fast reads.
type VerificationSummary struct {
	VerificationScore int    `json:"verificationScore"`
	TrustScore        int    `json:"trustScore"`
	LegalRisk         string `json:"legalRisk,omitempty"`
	GeoVerified       bool   `json:"geoVerified"`
}

// Property is the listed asset.
type Property struct {
	ID              id.PropertyID
	AssetID         string
	OwnerID         id.UserID
	Title           string
	Description     string
	TransactionType TransactionType
	Category        Category
	Details         Details
	Location        Location
	Pricing         *Pricing
	Legal           Legal
	Media           Media
	Status          Status
	Verified        bool
	PublishedAt     *time.Time
	RejectionReason string
	Counters        Counters
	Verification    VerificationSummary
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NewProperty creates a DRAFT property with domain invariant validation.
func NewProperty(owner id.UserID, title string, tt TransactionType, category Category, details Details, now time.Time) (*Property, error) {
	if owner.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "owner cannot be empty")
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "title cannot be empty")
	}
	if !tt.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "invalid transaction type")
	}
	if !category.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "invalid category")
	}
	if err := CheckDetails(category, details); err != nil {
		return nil, err
	}
	return &Property{
		ID:              id.NewPropertyID(),
		OwnerID:         owner,
		Title:           title,
		TransactionType: tt,
		Category:        category,
		Details:         details,
		Status:          StatusDraft,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// Price returns the resolvable asking price, if any.
func (p *Property) Price() (float64, bool) {
	return p.Pricing.Value()
}

// UnitArea returns the category-dependent area proxy, if resolvable.
func (p *Property) UnitArea() (float64, bool) {
	if p.Details == nil {
		return 0, false
	}
	return p.Details.UnitArea()
}

// HasPoint reports whether the property carries a valid geo point.
func (p *Property) HasPoint() bool {
	return p.Location.Point.Valid()
}

// Clone returns a deep copy safe to hand out of an in-memory store.
func (p *Property) Clone() *Property {
	if p == nil {
		return nil
	}
	c := *p
	if p.Location.Point != nil {
		pt := *p.Location.Point
		c.Location.Point = &pt
	}
	if p.Pricing != nil {
		pr := *p.Pricing
		c.Pricing = &pr
	}
	if p.PublishedAt != nil {
		t := *p.PublishedAt
		c.PublishedAt = &t
	}
	c.Media.Images = append([]string(nil), p.Media.Images...)
	c.Media.Videos = append([]string(nil), p.Media.Videos...)
	return &c
}
