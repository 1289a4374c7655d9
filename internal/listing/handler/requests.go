package handler

import (
	"encoding/json"
	"strings"

	"propnest/internal/listing"
	"propnest/internal/property/models"
	dErrors "propnest/pkg/domain-errors"
	strutil "propnest/pkg/platform/strings"
)

const (
	maxTitleLength       = 200
	maxDescriptionLength = 5000
	maxReasonLength      = 500
	maxMediaItems        = 50
)

// LocationRequest carries an optional GeoJSON-ordered [lng, lat] pair.
type LocationRequest struct {
	Address     string    `json:"address"`
	Area        string    `json:"area"`
	City        string    `json:"city"`
	State       string    `json:"state"`
	Pincode     string    `json:"pincode"`
	Coordinates []float64 `json:"coordinates,omitempty"`
}

func (l *LocationRequest) normalize() {
	l.Address = strings.TrimSpace(l.Address)
	l.Area = strings.TrimSpace(l.Area)
	l.City = strings.TrimSpace(l.City)
	l.State = strings.TrimSpace(l.State)
	l.Pincode = strings.TrimSpace(l.Pincode)
}

func (l *LocationRequest) toModel() (models.Location, error) {
	loc := models.Location{
		Address: l.Address,
		Area:    l.Area,
		City:    l.City,
		State:   l.State,
		Pincode: l.Pincode,
	}
	if l.Coordinates != nil {
		point, err := models.NewGeoPoint(l.Coordinates)
		if err != nil {
			return models.Location{}, err
		}
		loc.Point = point
	}
	return loc, nil
}

// ListingRequest is the body of POST /properties and of the advisory checks.
type ListingRequest struct {
	Title           string          `json:"title"`
	Description     string          `json:"description"`
	TransactionType string          `json:"transactionType"`
	Category        string          `json:"category"`
	Details         json.RawMessage `json:"details,omitempty"`
	Location        LocationRequest `json:"location"`
	Pricing         *models.Pricing `json:"pricing,omitempty"`
	Legal           models.Legal    `json:"legal"`
	Media           models.Media    `json:"media"`

	attempt *listing.Attempt
}

func (r *ListingRequest) Normalize() {
	r.Title = strings.TrimSpace(r.Title)
	r.Description = strings.TrimSpace(r.Description)
	r.TransactionType = strings.ToUpper(strings.TrimSpace(r.TransactionType))
	r.Category = strings.ToUpper(strings.TrimSpace(r.Category))
	r.Location.normalize()
	normalizePricing(r.Pricing)
	normalizeLegal(&r.Legal)
	normalizeMedia(&r.Media)
}

// Validate checks the body and builds the listing attempt.
// Implements httputil.Preparable.
func (r *ListingRequest) Validate() error {
	if len(r.Title) > maxTitleLength {
		return dErrors.New(dErrors.CodeValidation, "title is too long")
	}
	if len(r.Description) > maxDescriptionLength {
		return dErrors.New(dErrors.CodeValidation, "description is too long")
	}
	if len(r.Media.Images) > maxMediaItems || len(r.Media.Videos) > maxMediaItems {
		return dErrors.New(dErrors.CodeValidation, "too many media items")
	}
	if r.Title == "" {
		return dErrors.New(dErrors.CodeValidation, "title is required")
	}
	tt := models.TransactionType(r.TransactionType)
	if !tt.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "transactionType must be one of SELL, RENT, LEASE, SUB_LEASE, FRACTIONAL")
	}
	category := models.Category(r.Category)
	if !category.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "category must be one of RESIDENTIAL, COMMERCIAL, INDUSTRIAL, LAND, SPECIAL")
	}
	details, err := decodeDetails(category, r.Details)
	if err != nil {
		return err
	}
	loc, err := r.Location.toModel()
	if err != nil {
		return err
	}

	r.attempt = &listing.Attempt{
		Title:           r.Title,
		Description:     r.Description,
		TransactionType: tt,
		Category:        category,
		Details:         details,
		Location:        loc,
		Pricing:         r.Pricing,
		Legal:           r.Legal,
		Media:           r.Media,
	}
	return nil
}

// Attempt returns the attempt built by Validate.
func (r *ListingRequest) Attempt() *listing.Attempt {
	return r.attempt
}

// PatchRequest is the body of PATCH /properties/{id}. Absent fields are left
// untouched. Details can only be replaced together with the category.
type PatchRequest struct {
	Title           *string          `json:"title,omitempty"`
	Description     *string          `json:"description,omitempty"`
	TransactionType *string          `json:"transactionType,omitempty"`
	Category        *string          `json:"category,omitempty"`
	Details         json.RawMessage  `json:"details,omitempty"`
	Location        *LocationRequest `json:"location,omitempty"`
	Pricing         *models.Pricing  `json:"pricing,omitempty"`
	Legal           *models.Legal    `json:"legal,omitempty"`
	Media           *models.Media    `json:"media,omitempty"`
	Status          *string          `json:"status,omitempty"`

	patch *listing.Patch
}

func (r *PatchRequest) Normalize() {
	trim := func(s *string, upper bool) {
		if s == nil {
			return
		}
		*s = strings.TrimSpace(*s)
		if upper {
			*s = strings.ToUpper(*s)
		}
	}
	trim(r.Title, false)
	trim(r.Description, false)
	trim(r.TransactionType, true)
	trim(r.Category, true)
	trim(r.Status, true)
	if r.Location != nil {
		r.Location.normalize()
	}
	normalizePricing(r.Pricing)
	if r.Legal != nil {
		normalizeLegal(r.Legal)
	}
	if r.Media != nil {
		normalizeMedia(r.Media)
	}
}

// normalizeMedia drops blank and repeated asset URLs so the image count used
// by the submit guard reflects distinct images.
func normalizeMedia(m *models.Media) {
	m.Images = strutil.DedupeAndTrim(m.Images)
	m.Videos = strutil.DedupeAndTrim(m.Videos)
}

func (r *PatchRequest) Validate() error {
	p := &listing.Patch{
		Title:       r.Title,
		Description: r.Description,
		Pricing:     r.Pricing,
		Legal:       r.Legal,
		Media:       r.Media,
	}
	if r.Title != nil && len(*r.Title) > maxTitleLength {
		return dErrors.New(dErrors.CodeValidation, "title is too long")
	}
	if r.Description != nil && len(*r.Description) > maxDescriptionLength {
		return dErrors.New(dErrors.CodeValidation, "description is too long")
	}
	if r.Media != nil && (len(r.Media.Images) > maxMediaItems || len(r.Media.Videos) > maxMediaItems) {
		return dErrors.New(dErrors.CodeValidation, "too many media items")
	}
	if r.TransactionType != nil {
		tt := models.TransactionType(*r.TransactionType)
		p.TransactionType = &tt
	}
	if r.Category != nil {
		category := models.Category(*r.Category)
		if !category.IsValid() {
			return dErrors.New(dErrors.CodeValidation, "invalid category")
		}
		p.Category = &category
		details, err := decodeDetails(category, r.Details)
		if err != nil {
			return err
		}
		p.Details = details
	} else if len(r.Details) > 0 {
		return dErrors.New(dErrors.CodeValidation, "details can only be changed together with category")
	}
	if r.Location != nil {
		loc, err := r.Location.toModel()
		if err != nil {
			return err
		}
		p.Location = &loc
	}
	if r.Status != nil {
		status := models.Status(*r.Status)
		if !status.IsValid() {
			return dErrors.New(dErrors.CodeValidation, "invalid status")
		}
		p.Status = &status
	}
	if !p.HasFieldChanges() && p.Status == nil {
		return dErrors.New(dErrors.CodeValidation, "no fields to update")
	}
	r.patch = p
	return nil
}

// Patch returns the patch built by Validate.
func (r *PatchRequest) Patch() *listing.Patch {
	return r.patch
}

// ReasonRequest is the optional body of a rejection.
type ReasonRequest struct {
	Reason string `json:"reason"`
}

func (r *ReasonRequest) Normalize() {
	r.Reason = strings.TrimSpace(r.Reason)
}

func (r *ReasonRequest) Validate() error {
	if len(r.Reason) > maxReasonLength {
		return dErrors.New(dErrors.CodeValidation, "reason is too long")
	}
	return nil
}

func decodeDetails(category models.Category, raw json.RawMessage) (models.Details, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	variant := category.Variant()
	if variant == models.VariantNone {
		return nil, dErrors.New(dErrors.CodeValidation, "category "+string(category)+" does not take details")
	}
	details, err := models.UnmarshalDetails(variant, raw)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "invalid "+string(variant)+" details")
	}
	return details, nil
}

func normalizePricing(p *models.Pricing) {
	if p != nil {
		p.Kind = models.PriceKind(strings.ToUpper(strings.TrimSpace(string(p.Kind))))
	}
}

func normalizeLegal(l *models.Legal) {
	l.LitigationStatus = models.LitigationStatus(strings.ToUpper(strings.TrimSpace(string(l.LitigationStatus))))
	l.RegistrationNumber = strings.TrimSpace(l.RegistrationNumber)
}
