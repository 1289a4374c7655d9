// Package models defines the verification record derived from a property's
// location, legal flags and media.
package models

import (
	"time"

	propmodels "propnest/internal/property/models"
	id "propnest/pkg/domain"
)

// RiskLevel buckets the legal risk score.
type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// GeoSourceListing marks coordinates taken from the listing payload.
const GeoSourceListing = "listing_coordinates"

// GeoVerification records whether the listing carries usable coordinates.
type GeoVerification struct {
	Verified   bool
	Point      *propmodels.GeoPoint
	Source     string
	VerifiedAt *time.Time
}

// LegalStatus is the legal sub-record with its derived risk.
type LegalStatus struct {
	TitleClear         bool
	EncumbranceFree    bool
	LitigationStatus   propmodels.LitigationStatus
	RegistrationNumber string
	RiskScore          int
	RiskLevel          RiskLevel
	ComplianceScore    int
}

// Record is the per-property verification record. AssetID is assigned on
// first insert and never changes afterwards.
type Record struct {
	PropertyID        id.PropertyID
	AssetID           string
	Geo               GeoVerification
	Legal             LegalStatus
	VerificationScore int
	TrustScore        int
	InvestmentScore   int
	OverallScore      int
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Summary is the subset copied back onto the property.
func (r *Record) Summary() propmodels.VerificationSummary {
	return propmodels.VerificationSummary{
		VerificationScore: r.VerificationScore,
		TrustScore:        r.TrustScore,
		LegalRisk:         string(r.Legal.RiskLevel),
		GeoVerified:       r.Geo.Verified,
	}
}
