package models

import (
	"math"
	"time"

	propmodels "propnest/internal/property/models"
)

const (
	maxScore = 100

	geoBonus          = 30
	imagesBonus       = 20
	minImagesForBonus = 3
	videoBonus        = 10
	titleClearBonus   = 10
	encumbranceBonus  = 10
	registrationBonus = 10
	verifiedBonus     = 10

	riskLitigationPending  = 70
	riskLitigationResolved = 30
	riskTitleNotClear      = 20
	riskEncumbered         = 10
	riskMediumFloor        = 30
	riskHighFloor          = 60

	// identityPlaceholderBonus stands in for a KYC signal that is not wired yet.
	identityPlaceholderBonus = 20
)

// Scores is the output of ComputeScores.
type Scores struct {
	VerificationScore int
	TrustScore        int
	LegalRiskScore    int
	LegalRisk         RiskLevel
	ComplianceScore   int
	// PriceVsLocalAverage is reserved; there is no market index yet.
	PriceVsLocalAverage float64
}

// ComputeScores derives the verification, legal risk and trust scores from
// the property's current fields. Missing inputs count as zero.
func ComputeScores(p *propmodels.Property) Scores {
	verification := identityPlaceholderBonus
	if p.HasPoint() {
		verification += geoBonus
	}
	if len(p.Media.Images) >= minImagesForBonus {
		verification += imagesBonus
	}
	if len(p.Media.Videos) >= 1 {
		verification += videoBonus
	}
	if p.Legal.TitleClear {
		verification += titleClearBonus
	}
	if p.Legal.EncumbranceFree {
		verification += encumbranceBonus
	}
	verification = clamp(verification)

	risk := 0
	switch p.Legal.LitigationStatus {
	case propmodels.LitigationPending:
		risk = riskLitigationPending
	case propmodels.LitigationResolved:
		risk = riskLitigationResolved
	}
	if !p.Legal.TitleClear {
		risk += riskTitleNotClear
	}
	if !p.Legal.EncumbranceFree {
		risk += riskEncumbered
	}

	trust := verification
	if p.Legal.RegistrationNumber != "" {
		trust += registrationBonus
	}
	if p.Verified {
		trust += verifiedBonus
	}

	return Scores{
		VerificationScore: verification,
		TrustScore:        clamp(trust),
		LegalRiskScore:    risk,
		LegalRisk:         riskLevel(risk),
		ComplianceScore:   clamp(maxScore - risk),
	}
}

func riskLevel(score int) RiskLevel {
	switch {
	case score < riskMediumFloor:
		return RiskLow
	case score < riskHighFloor:
		return RiskMedium
	default:
		return RiskHigh
	}
}

func clamp(v int) int {
	return max(0, min(maxScore, v))
}

// NewRecord builds the record for p from freshly computed scores. The store
// decides whether assetID is kept.
func NewRecord(p *propmodels.Property, assetID string, now time.Time) *Record {
	s := ComputeScores(p)
	rec := &Record{
		PropertyID: p.ID,
		AssetID:    assetID,
		Legal: LegalStatus{
			TitleClear:         p.Legal.TitleClear,
			EncumbranceFree:    p.Legal.EncumbranceFree,
			LitigationStatus:   p.Legal.LitigationStatus,
			RegistrationNumber: p.Legal.RegistrationNumber,
			RiskScore:          s.LegalRiskScore,
			RiskLevel:          s.LegalRisk,
			ComplianceScore:    s.ComplianceScore,
		},
		VerificationScore: s.VerificationScore,
		TrustScore:        s.TrustScore,
		InvestmentScore:   int(s.PriceVsLocalAverage),
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	rec.OverallScore = int(math.Round(float64(s.VerificationScore+s.TrustScore+s.ComplianceScore) / 3))
	if p.HasPoint() {
		pt := *p.Location.Point
		at := now
		rec.Geo = GeoVerification{Verified: true, Point: &pt, Source: GeoSourceListing, VerifiedAt: &at}
	}
	return rec
}
