// Package listing holds the request-level types shared by the listing
// service and its HTTP handler.
package listing

import (
	"strings"
	"time"

	"propnest/internal/fraud"
	"propnest/internal/property/models"
	vmodels "propnest/internal/verification/models"
	id "propnest/pkg/domain"
	dErrors "propnest/pkg/domain-errors"
)

// Attempt is an inbound listing. It is evaluated by the integrity checks
// before anything is persisted.
type Attempt struct {
	Title           string
	Description     string
	TransactionType models.TransactionType
	Category        models.Category
	Details         models.Details
	Location        models.Location
	Pricing         *models.Pricing
	Legal           models.Legal
	Media           models.Media
}

// Candidate builds the DRAFT property the attempt would create for owner.
func (a *Attempt) Candidate(owner id.UserID, now time.Time) (*models.Property, error) {
	if a == nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "listing is required")
	}
	p, err := models.NewProperty(owner, a.Title, a.TransactionType, a.Category, a.Details, now)
	if err != nil {
		return nil, asValidation(err)
	}
	p.Description = strings.TrimSpace(a.Description)
	p.Location = a.Location
	p.Pricing = a.Pricing
	p.Legal = a.Legal
	p.Media = a.Media
	if err := checkFields(p); err != nil {
		return nil, err
	}
	return p.Clone(), nil
}

// Patch is a partial update. Nil fields are left untouched.
type Patch struct {
	Title           *string
	Description     *string
	TransactionType *models.TransactionType
	Category        *models.Category
	Details         models.Details
	Location        *models.Location
	Pricing         *models.Pricing
	Legal           *models.Legal
	Media           *models.Media
	// Status only accepts SOLD or RENTED; other moves have dedicated actions.
	Status *models.Status
}

// Apply returns a copy of p with the patch applied, and whether a field the
// verification scores depend on changed.
func (pt *Patch) Apply(p *models.Property, now time.Time) (*models.Property, bool, error) {
	next := p.Clone()
	rescore := false
	if pt.Title != nil {
		title := strings.TrimSpace(*pt.Title)
		if title == "" {
			return nil, false, dErrors.New(dErrors.CodeValidation, "title cannot be empty")
		}
		next.Title = title
	}
	if pt.Description != nil {
		next.Description = strings.TrimSpace(*pt.Description)
	}
	if pt.TransactionType != nil {
		if !pt.TransactionType.IsValid() {
			return nil, false, dErrors.New(dErrors.CodeValidation, "invalid transaction type")
		}
		next.TransactionType = *pt.TransactionType
	}
	if pt.Category != nil {
		if !pt.Category.IsValid() {
			return nil, false, dErrors.New(dErrors.CodeValidation, "invalid category")
		}
		next.Category = *pt.Category
	}
	if pt.Details != nil {
		next.Details = pt.Details
	}
	if err := models.CheckDetails(next.Category, next.Details); err != nil {
		return nil, false, err
	}
	if pt.Location != nil {
		loc := *pt.Location
		if loc.Point != nil {
			point := *loc.Point
			loc.Point = &point
		}
		next.Location = loc
		rescore = true
	}
	if pt.Pricing != nil {
		pr := *pt.Pricing
		next.Pricing = &pr
	}
	if pt.Legal != nil {
		next.Legal = *pt.Legal
		rescore = true
	}
	if pt.Media != nil {
		next.Media = models.Media{
			Images: append([]string(nil), pt.Media.Images...),
			Videos: append([]string(nil), pt.Media.Videos...),
		}
		rescore = true
	}
	if err := checkFields(next); err != nil {
		return nil, false, err
	}
	next.UpdatedAt = now
	return next, rescore, nil
}

// HasFieldChanges reports whether the patch touches anything besides status.
func (pt *Patch) HasFieldChanges() bool {
	return pt.Title != nil || pt.Description != nil || pt.TransactionType != nil ||
		pt.Category != nil || pt.Details != nil || pt.Location != nil ||
		pt.Pricing != nil || pt.Legal != nil || pt.Media != nil
}

// AffectsComparables reports whether the patch can move the listing's price
// per unit area or its (city, category) sample.
func (pt *Patch) AffectsComparables() bool {
	return pt.Pricing != nil || pt.Location != nil || pt.Category != nil || pt.Details != nil
}

func checkFields(p *models.Property) error {
	if p.Location.Point != nil && !p.Location.Point.Valid() {
		return dErrors.New(dErrors.CodeInvalidInput, "coordinates out of range")
	}
	if p.Pricing != nil {
		if !p.Pricing.Kind.IsValid() {
			return dErrors.New(dErrors.CodeValidation, "invalid price kind")
		}
		if p.Pricing.Amount < 0 {
			return dErrors.New(dErrors.CodeValidation, "price cannot be negative")
		}
	}
	switch p.Legal.LitigationStatus {
	case "", models.LitigationNone, models.LitigationPending, models.LitigationResolved:
	default:
		return dErrors.New(dErrors.CodeValidation, "invalid litigation status")
	}
	return nil
}

func asValidation(err error) error {
	if de, ok := dErrors.From(err); ok && de.Code == dErrors.CodeInvariantViolation {
		return dErrors.New(dErrors.CodeValidation, de.Message)
	}
	return err
}

// ListQuery selects listings for browsing, newest first.
type ListQuery struct {
	// ListedBy narrows to one owner. The owner (or an admin) also sees PAUSED.
	ListedBy        id.UserID
	City            string
	Category        models.Category
	TransactionType models.TransactionType
	Limit           int
	Offset          int
}

// CreateResult is the outcome of a successful creation.
type CreateResult struct {
	Property     *models.Property
	Verification *vmodels.Record
	PriceCheck   *fraud.PriceAnomalyResult
	// Warnings are advisory and never block the listing.
	Warnings []string
	// RemainingQuota is the listing quota left after this creation.
	RemainingQuota int
}
