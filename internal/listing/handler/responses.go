package handler

import (
	"time"

	"propnest/internal/fraud"
	"propnest/internal/listing"
	"propnest/internal/property/models"
	vmodels "propnest/internal/verification/models"
)

type LocationResponse struct {
	Address     string    `json:"address,omitempty"`
	Area        string    `json:"area,omitempty"`
	City        string    `json:"city,omitempty"`
	State       string    `json:"state,omitempty"`
	Pincode     string    `json:"pincode,omitempty"`
	Coordinates []float64 `json:"coordinates,omitempty"`
}

type PropertyResponse struct {
	ID              string                     `json:"id"`
	AssetID         string                     `json:"assetId,omitempty"`
	OwnerID         string                     `json:"ownerId"`
	Title           string                     `json:"title"`
	Description     string                     `json:"description,omitempty"`
	TransactionType string                     `json:"transactionType"`
	Category        string                     `json:"category"`
	Details         models.Details             `json:"details,omitempty"`
	Location        LocationResponse           `json:"location"`
	Pricing         *models.Pricing            `json:"pricing,omitempty"`
	Legal           models.Legal               `json:"legal"`
	Media           models.Media               `json:"media"`
	Status          string                     `json:"status"`
	Verified        bool                       `json:"verified"`
	PublishedAt     *time.Time                 `json:"publishedAt,omitempty"`
	RejectionReason string                     `json:"rejectionReason,omitempty"`
	Counters        models.Counters            `json:"counters"`
	Verification    models.VerificationSummary `json:"verification"`
	CreatedAt       time.Time                  `json:"createdAt"`
	UpdatedAt       time.Time                  `json:"updatedAt"`
}

type PropertyListResponse struct {
	Properties []PropertyResponse `json:"properties"`
	Count      int                `json:"count"`
	Offset     int                `json:"offset"`
}

type GeoResponse struct {
	Verified    bool       `json:"verified"`
	Coordinates []float64  `json:"coordinates,omitempty"`
	Source      string     `json:"source,omitempty"`
	VerifiedAt  *time.Time `json:"verifiedAt,omitempty"`
}

type LegalStatusResponse struct {
	TitleClear         bool   `json:"titleClear"`
	EncumbranceFree    bool   `json:"encumbranceFree"`
	LitigationStatus   string `json:"litigationStatus,omitempty"`
	RegistrationNumber string `json:"registrationNumber,omitempty"`
	RiskScore          int    `json:"riskScore"`
	RiskLevel          string `json:"riskLevel"`
	ComplianceScore    int    `json:"complianceScore"`
}

type VerificationResponse struct {
	PropertyID        string              `json:"propertyId"`
	AssetID           string              `json:"assetId"`
	Geo               GeoResponse         `json:"geo"`
	Legal             LegalStatusResponse `json:"legal"`
	VerificationScore int                 `json:"verificationScore"`
	TrustScore        int                 `json:"trustScore"`
	InvestmentScore   int                 `json:"investmentScore"`
	OverallScore      int                 `json:"overallScore"`
	UpdatedAt         time.Time           `json:"updatedAt"`
}

type PriceCheckResponse struct {
	IsAnomaly       bool    `json:"isAnomaly"`
	Reason          string  `json:"reason,omitempty"`
	Deviation       float64 `json:"deviation,omitempty"`
	LocalAverage    float64 `json:"localAverage,omitempty"`
	ComparableCount int     `json:"comparableCount"`
}

type CreateResponse struct {
	Property       PropertyResponse      `json:"property"`
	Verification   *VerificationResponse `json:"verification,omitempty"`
	PriceCheck     *PriceCheckResponse   `json:"priceCheck,omitempty"`
	Warnings       []string              `json:"warnings"`
	RemainingQuota int                   `json:"remainingQuota"`
}

type MatchResponse struct {
	ID              string           `json:"id"`
	Title           string           `json:"title"`
	Location        LocationResponse `json:"location"`
	DistanceMeters  float64          `json:"distanceMeters"`
	TitleSimilarity float64          `json:"titleSimilarity"`
}

type DuplicateCheckResponse struct {
	IsDuplicate bool            `json:"isDuplicate"`
	Matches     []MatchResponse `json:"matches"`
}

type QuotaResponse struct {
	Allowed       bool `json:"allowed"`
	Remaining     int  `json:"remaining"`
	Limit         int  `json:"limit"`
	Used          int  `json:"used"`
	WindowSeconds int  `json:"windowSeconds"`
}

func toLocationResponse(l models.Location) LocationResponse {
	return LocationResponse{
		Address:     l.Address,
		Area:        l.Area,
		City:        l.City,
		State:       l.State,
		Pincode:     l.Pincode,
		Coordinates: l.Point.Pair(),
	}
}

func toPropertyResponse(p *models.Property) PropertyResponse {
	return PropertyResponse{
		ID:              p.ID.String(),
		AssetID:         p.AssetID,
		OwnerID:         p.OwnerID.String(),
		Title:           p.Title,
		Description:     p.Description,
		TransactionType: string(p.TransactionType),
		Category:        string(p.Category),
		Details:         p.Details,
		Location:        toLocationResponse(p.Location),
		Pricing:         p.Pricing,
		Legal:           p.Legal,
		Media:           p.Media,
		Status:          string(p.Status),
		Verified:        p.Verified,
		PublishedAt:     p.PublishedAt,
		RejectionReason: p.RejectionReason,
		Counters:        p.Counters,
		Verification:    p.Verification,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
	}
}

func toPropertyListResponse(properties []*models.Property, q listing.ListQuery) *PropertyListResponse {
	out := &PropertyListResponse{
		Properties: make([]PropertyResponse, 0, len(properties)),
		Count:      len(properties),
		Offset:     q.Offset,
	}
	for _, p := range properties {
		out.Properties = append(out.Properties, toPropertyResponse(p))
	}
	return out
}

func toVerificationResponse(rec *vmodels.Record) *VerificationResponse {
	if rec == nil {
		return nil
	}
	return &VerificationResponse{
		PropertyID: rec.PropertyID.String(),
		AssetID:    rec.AssetID,
		Geo: GeoResponse{
			Verified:    rec.Geo.Verified,
			Coordinates: rec.Geo.Point.Pair(),
			Source:      rec.Geo.Source,
			VerifiedAt:  rec.Geo.VerifiedAt,
		},
		Legal: LegalStatusResponse{
			TitleClear:         rec.Legal.TitleClear,
			EncumbranceFree:    rec.Legal.EncumbranceFree,
			LitigationStatus:   string(rec.Legal.LitigationStatus),
			RegistrationNumber: rec.Legal.RegistrationNumber,
			RiskScore:          rec.Legal.RiskScore,
			RiskLevel:          string(rec.Legal.RiskLevel),
			ComplianceScore:    rec.Legal.ComplianceScore,
		},
		VerificationScore: rec.VerificationScore,
		TrustScore:        rec.TrustScore,
		InvestmentScore:   rec.InvestmentScore,
		OverallScore:      rec.OverallScore,
		UpdatedAt:         rec.UpdatedAt,
	}
}

func toPriceCheckResponse(res *fraud.PriceAnomalyResult) *PriceCheckResponse {
	if res == nil {
		return nil
	}
	return &PriceCheckResponse{
		IsAnomaly:       res.IsAnomaly,
		Reason:          res.Reason,
		Deviation:       res.Deviation,
		LocalAverage:    res.LocalAverage,
		ComparableCount: res.ComparableCount,
	}
}

func toCreateResponse(res *listing.CreateResult) *CreateResponse {
	warnings := res.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	return &CreateResponse{
		Property:       toPropertyResponse(res.Property),
		Verification:   toVerificationResponse(res.Verification),
		PriceCheck:     toPriceCheckResponse(res.PriceCheck),
		Warnings:       warnings,
		RemainingQuota: res.RemainingQuota,
	}
}

func toDuplicateCheckResponse(res *fraud.DuplicateResult) *DuplicateCheckResponse {
	out := &DuplicateCheckResponse{
		IsDuplicate: res.IsDuplicate,
		Matches:     make([]MatchResponse, 0, len(res.Matches)),
	}
	for _, m := range res.Matches {
		out.Matches = append(out.Matches, MatchResponse{
			ID:              m.ID.String(),
			Title:           m.Title,
			Location:        toLocationResponse(m.Location),
			DistanceMeters:  m.DistanceMeters,
			TitleSimilarity: m.TitleSimilarity,
		})
	}
	return out
}

func toQuotaResponse(res *fraud.RateLimitResult) *QuotaResponse {
	return &QuotaResponse{
		Allowed:       res.Allowed,
		Remaining:     res.Remaining,
		Limit:         res.Limit,
		Used:          res.Used,
		WindowSeconds: int(res.Window.Seconds()),
	}
}
