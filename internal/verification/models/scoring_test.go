package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	propmodels "propnest/internal/property/models"
	id "propnest/pkg/domain"
)

func baseProperty(t *testing.T) *propmodels.Property {
	t.Helper()
	p, err := propmodels.NewProperty(id.UserID(uuid.New()), "Corner plot near highway", propmodels.TransactionSell,
		propmodels.CategoryLand, propmodels.LandDetails{PlotArea: 2400}, time.Now())
	require.NoError(t, err)
	return p
}

func TestComputeScores(t *testing.T) {
	t.Run("bare listing gets only the identity placeholder", func(t *testing.T) {
		s := ComputeScores(baseProperty(t))
		assert.Equal(t, 20, s.VerificationScore)
		assert.Equal(t, 20, s.TrustScore)
		// empty litigation counts as none; title and encumbrance flags are unset
		assert.Equal(t, 30, s.LegalRiskScore)
		assert.Equal(t, RiskMedium, s.LegalRisk)
		assert.Equal(t, 70, s.ComplianceScore)
		assert.Zero(t, s.PriceVsLocalAverage)
	})

	t.Run("fully documented listing is capped at 100", func(t *testing.T) {
		p := baseProperty(t)
		p.Location.Point = &propmodels.GeoPoint{Lat: 12.97, Lng: 77.59}
		p.Media = propmodels.Media{Images: []string{"a", "b", "c"}, Videos: []string{"v"}}
		p.Legal = propmodels.Legal{TitleClear: true, EncumbranceFree: true, LitigationStatus: propmodels.LitigationNone, RegistrationNumber: "KA-123"}
		p.Verified = true

		s := ComputeScores(p)
		assert.Equal(t, 100, s.VerificationScore)
		assert.Equal(t, 100, s.TrustScore)
		assert.Equal(t, 0, s.LegalRiskScore)
		assert.Equal(t, RiskLow, s.LegalRisk)
	})

	t.Run("missing coordinates drop the geo bonus", func(t *testing.T) {
		p := baseProperty(t)
		p.Media = propmodels.Media{Images: []string{"a", "b", "c"}, Videos: []string{"v"}}
		p.Legal = propmodels.Legal{TitleClear: true, EncumbranceFree: true}
		assert.Equal(t, 70, ComputeScores(p).VerificationScore)

		p.Location.Point = &propmodels.GeoPoint{Lat: 91, Lng: 10}
		assert.Equal(t, 70, ComputeScores(p).VerificationScore, "invalid point earns nothing")
	})

	t.Run("legal risk buckets", func(t *testing.T) {
		tests := []struct {
			name  string
			legal propmodels.Legal
			score int
			level RiskLevel
		}{
			{"clean", propmodels.Legal{TitleClear: true, EncumbranceFree: true, LitigationStatus: propmodels.LitigationNone}, 0, RiskLow},
			{"resolved", propmodels.Legal{TitleClear: true, EncumbranceFree: true, LitigationStatus: propmodels.LitigationResolved}, 30, RiskMedium},
			{"resolved and encumbered", propmodels.Legal{TitleClear: true, LitigationStatus: propmodels.LitigationResolved}, 40, RiskMedium},
			{"pending", propmodels.Legal{TitleClear: true, EncumbranceFree: true, LitigationStatus: propmodels.LitigationPending}, 70, RiskHigh},
			{"worst case", propmodels.Legal{LitigationStatus: propmodels.LitigationPending}, 100, RiskHigh},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				p := baseProperty(t)
				p.Legal = tt.legal
				s := ComputeScores(p)
				assert.Equal(t, tt.score, s.LegalRiskScore)
				assert.Equal(t, tt.level, s.LegalRisk)
			})
		}
	})
}

func TestComputeScoresAlwaysInRange(t *testing.T) {
	bools := []bool{false, true}
	litigation := []propmodels.LitigationStatus{"", propmodels.LitigationNone, propmodels.LitigationPending, propmodels.LitigationResolved}
	for _, point := range bools {
		for _, verified := range bools {
			for _, clear := range bools {
				for _, lit := range litigation {
					for images := 0; images <= 4; images += 2 {
						p := baseProperty(t)
						if point {
							p.Location.Point = &propmodels.GeoPoint{Lat: 1, Lng: 1}
						}
						p.Verified = verified
						p.Legal = propmodels.Legal{TitleClear: clear, EncumbranceFree: clear, LitigationStatus: lit, RegistrationNumber: "R"}
						p.Media.Images = make([]string, images)
						p.Media.Videos = make([]string, images/2)

						s := ComputeScores(p)
						assert.GreaterOrEqual(t, s.VerificationScore, 0)
						assert.LessOrEqual(t, s.VerificationScore, 100)
						assert.GreaterOrEqual(t, s.TrustScore, 0)
						assert.LessOrEqual(t, s.TrustScore, 100)
						assert.GreaterOrEqual(t, s.TrustScore, s.VerificationScore)
					}
				}
			}
		}
	}
}

func TestNewRecord(t *testing.T) {
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	t.Run("geo verified from listing coordinates", func(t *testing.T) {
		p := baseProperty(t)
		p.Location.Point = &propmodels.GeoPoint{Lat: 12.97, Lng: 77.59}

		rec := NewRecord(p, "ASSET1", now)
		assert.Equal(t, "ASSET1", rec.AssetID)
		assert.True(t, rec.Geo.Verified)
		assert.Equal(t, GeoSourceListing, rec.Geo.Source)
		require.NotNil(t, rec.Geo.VerifiedAt)
		assert.Equal(t, now, *rec.Geo.VerifiedAt)

		p.Location.Point.Lat = 0
		assert.InDelta(t, 12.97, rec.Geo.Point.Lat, 1e-9, "record keeps its own copy")
	})

	t.Run("no coordinates means geo verification failed", func(t *testing.T) {
		rec := NewRecord(baseProperty(t), "ASSET2", now)
		assert.False(t, rec.Geo.Verified)
		assert.Nil(t, rec.Geo.Point)
		assert.False(t, rec.Summary().GeoVerified)
	})

	t.Run("overall score is the rounded mean", func(t *testing.T) {
		rec := NewRecord(baseProperty(t), "ASSET3", now)
		// verification 20, trust 20, compliance 70
		assert.Equal(t, 37, rec.OverallScore)
		assert.Equal(t, 0, rec.InvestmentScore)
	})
}
