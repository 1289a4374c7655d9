package fraud

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"propnest/internal/comparables"
	"propnest/internal/fraud/metrics"
	"propnest/internal/platform/config"
	"propnest/internal/property/models"
	"propnest/internal/property/store"
	id "propnest/pkg/domain"
	dErrors "propnest/pkg/domain-errors"
	"propnest/pkg/requestcontext"
)

type stubCorpus struct {
	comps []comparables.Comparable
	err   error
}

func (c *stubCorpus) Recent(_ context.Context, _ string, _ models.Category) ([]comparables.Comparable, error) {
	return c.comps, c.err
}

type DetectorSuite struct {
	suite.Suite
	store    *store.InMemoryStore
	corpus   *stubCorpus
	metrics  *metrics.Metrics
	logs     *bytes.Buffer
	detector *Detector
	ctx      context.Context
	now      time.Time
}

func TestDetectorSuite(t *testing.T) {
	suite.Run(t, new(DetectorSuite))
}

func (s *DetectorSuite) SetupTest() {
	s.store = store.NewInMemoryStore()
	s.corpus = &stubCorpus{}
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.logs = &bytes.Buffer{}
	s.now = time.Date(2026, 4, 10, 10, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)

	d, err := New(s.store, s.corpus,
		WithLogger(slog.New(slog.NewJSONHandler(s.logs, nil))),
		WithMetrics(s.metrics),
	)
	s.Require().NoError(err)
	s.detector = d
}

func (s *DetectorSuite) listing(owner id.UserID, title string, point *models.GeoPoint) *models.Property {
	p, err := models.NewProperty(owner, title, models.TransactionSell, models.CategoryResidential,
		models.ResidentialDetails{BHK: 3}, s.now)
	s.Require().NoError(err)
	p.AssetID = uuid.NewString()[:10]
	p.Location = models.Location{Area: "Indiranagar", City: "Bangalore", State: "Karnataka", Point: point}
	return p
}

func (s *DetectorSuite) commercial(price float64, builtUp float64) *models.Property {
	p, err := models.NewProperty(id.UserID(uuid.New()), "Retail shop on 100ft road", models.TransactionSell,
		models.CategoryCommercial, models.CommercialDetails{BuiltUpArea: builtUp}, s.now)
	s.Require().NoError(err)
	p.Location = models.Location{City: "Bangalore"}
	p.Pricing = &models.Pricing{Kind: models.PriceKindExpected, Amount: price}
	return p
}

// =============================================================================
// Constructor
// =============================================================================

func (s *DetectorSuite) TestNewValidatesDependencies() {
	_, err := New(nil, s.corpus)
	s.Error(err)
	_, err = New(s.store, nil)
	s.Error(err)

	s.Run("rejects invalid thresholds", func() {
		cfg := config.DefaultIntegrity()
		cfg.DuplicateTitleSimilarity = 1.5
		_, err := New(s.store, s.corpus, WithConfig(cfg))
		s.Error(err)
	})
}

// =============================================================================
// Duplicate detection
// =============================================================================

func (s *DetectorSuite) TestDetectDuplicate() {
	original := s.listing(id.UserID(uuid.New()), "Spacious 3BHK Apartment in Indiranagar",
		&models.GeoPoint{Lat: 12.9716, Lng: 77.5946})
	s.Require().NoError(s.store.Create(s.ctx, original))

	submitter := id.UserID(uuid.New())
	candidate := s.listing(submitter, "Spacious 3BHK Apartment Indiranagar",
		&models.GeoPoint{Lat: 12.9718, Lng: 77.5948})

	s.Run("near match by another user is a duplicate", func() {
		res, err := s.detector.DetectDuplicate(s.ctx, candidate, submitter)
		s.Require().NoError(err)
		s.True(res.IsDuplicate)
		s.Require().Len(res.Matches, 1)
		s.Equal(original.ID, res.Matches[0].ID)
		s.Equal("Indiranagar", res.Matches[0].Location.Area)
		s.Greater(res.Matches[0].TitleSimilarity, 0.9)
		s.Contains(s.logs.String(), `"event":"duplicate_listing_detected"`)
	})

	s.Run("own listing never matches", func() {
		mine := s.listing(original.OwnerID, candidate.Title, candidate.Location.Point)
		res, err := s.detector.DetectDuplicate(s.ctx, mine, original.OwnerID)
		s.Require().NoError(err)
		s.False(res.IsDuplicate)
		s.Empty(res.Matches)
	})

	s.Run("dissimilar title nearby is not a duplicate", func() {
		other := s.listing(submitter, "Commercial godown for lease", candidate.Location.Point)
		res, err := s.detector.DetectDuplicate(s.ctx, other, submitter)
		s.Require().NoError(err)
		s.False(res.IsDuplicate)
	})

	s.Run("edited listing is excluded with its owner", func() {
		res, err := s.detector.DetectDuplicate(s.ctx, original, original.OwnerID)
		s.Require().NoError(err)
		s.False(res.IsDuplicate)
	})

	s.Equal(1.0, promtest.ToFloat64(s.metrics.DuplicateChecks.WithLabelValues("duplicate")))
}

func (s *DetectorSuite) TestDetectDuplicateOutsideRadius() {
	original := s.listing(id.UserID(uuid.New()), "Spacious 3BHK Apartment in Indiranagar",
		&models.GeoPoint{Lat: 12.9716, Lng: 77.5946})
	s.Require().NoError(s.store.Create(s.ctx, original))

	// roughly 110 m north
	candidate := s.listing(id.UserID(uuid.New()), original.Title, &models.GeoPoint{Lat: 12.9726, Lng: 77.5946})
	res, err := s.detector.DetectDuplicate(s.ctx, candidate, candidate.OwnerID)
	s.Require().NoError(err)
	s.False(res.IsDuplicate)
}

func (s *DetectorSuite) TestDetectDuplicateWithoutCoordinates() {
	res, err := s.detector.DetectDuplicate(s.ctx, s.listing(id.UserID(uuid.New()), "Villa", nil), id.UserID{})
	s.Require().NoError(err)
	s.False(res.IsDuplicate)
	s.Equal(1.0, promtest.ToFloat64(s.metrics.DuplicateChecks.WithLabelValues("skipped")))
}

// =============================================================================
// Price anomaly
// =============================================================================

func (s *DetectorSuite) comps(n int, pricePerUnit float64) []comparables.Comparable {
	out := make([]comparables.Comparable, 0, n)
	for i := 0; i < n; i++ {
		area := float64(500 * (i + 1))
		out = append(out, comparables.Comparable{
			PropertyID: fmt.Sprintf("c%d", i),
			Price:      area * pricePerUnit,
			UnitArea:   area,
		})
	}
	return out
}

func (s *DetectorSuite) TestDetectPriceAnomaly() {
	s.corpus.comps = s.comps(3, 10_000)

	tests := []struct {
		name      string
		price     float64
		anomaly   bool
		reason    string
		deviation float64
	}{
		{"in line with market", 11_000_000, false, "", 0.1},
		{"significant deviation", 16_000_000, true, "price per unit area deviates 60% from the local average", 0.6},
		{"more than double", 30_000_000, true, "price per unit area is more than 2x the local average", 2.0},
		{"far below market", 2_000_000, true, "price per unit area deviates 80% from the local average", 0.8},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			res, err := s.detector.DetectPriceAnomaly(s.ctx, s.commercial(tt.price, 1000))
			s.Require().NoError(err)
			s.Equal(tt.anomaly, res.IsAnomaly)
			s.Equal(tt.reason, res.Reason)
			s.InDelta(tt.deviation, res.Deviation, 1e-9)
			s.InDelta(10_000, res.LocalAverage, 1e-9)
			s.Equal(3, res.ComparableCount)
		})
	}
}

func (s *DetectorSuite) TestPriceAverageIsAggregate() {
	// sum price / sum area = 4_000_000 / 2_000 = 2000, not the mean of ratios
	s.corpus.comps = []comparables.Comparable{
		{Price: 1_000_000, UnitArea: 1000},
		{Price: 1_000_000, UnitArea: 500},
		{Price: 2_000_000, UnitArea: 500},
	}
	res, err := s.detector.DetectPriceAnomaly(s.ctx, s.commercial(2_000_000, 1000))
	s.Require().NoError(err)
	s.InDelta(2000, res.LocalAverage, 1e-9)
	s.False(res.IsAnomaly)
}

func (s *DetectorSuite) TestPriceAnomalyNeedsThreeComparables() {
	s.corpus.comps = append(s.comps(2, 10_000),
		comparables.Comparable{PropertyID: "no-price", UnitArea: 1000},
		comparables.Comparable{PropertyID: "no-area", Price: 5_000_000},
	)

	res, err := s.detector.DetectPriceAnomaly(s.ctx, s.commercial(900_000_000, 1000))
	s.Require().NoError(err)
	s.False(res.IsAnomaly)
	s.Equal(2, res.ComparableCount)
	s.Equal(1.0, promtest.ToFloat64(s.metrics.PriceChecks.WithLabelValues("insufficient")))
}

func (s *DetectorSuite) TestPriceAnomalySkipsIncompleteCandidates() {
	s.corpus.comps = s.comps(5, 10_000)

	s.Run("no city", func() {
		p := s.commercial(90_000_000, 1000)
		p.Location.City = "  "
		res, err := s.detector.DetectPriceAnomaly(s.ctx, p)
		s.Require().NoError(err)
		s.False(res.IsAnomaly)
	})

	s.Run("no price", func() {
		p := s.commercial(90_000_000, 1000)
		p.Pricing = nil
		res, err := s.detector.DetectPriceAnomaly(s.ctx, p)
		s.Require().NoError(err)
		s.False(res.IsAnomaly)
	})

	s.Run("no area", func() {
		res, err := s.detector.DetectPriceAnomaly(s.ctx, s.commercial(90_000_000, 0))
		s.Require().NoError(err)
		s.False(res.IsAnomaly)
	})
}

func (s *DetectorSuite) TestPriceAnomalyDegradesOnCorpusError() {
	s.corpus.err = errors.New("redis down")
	res, err := s.detector.DetectPriceAnomaly(s.ctx, s.commercial(90_000_000, 1000))
	s.Require().NoError(err)
	s.False(res.IsAnomaly)
	s.Contains(s.logs.String(), "comparables unavailable")
}

// =============================================================================
// Rate limit
// =============================================================================

func (s *DetectorSuite) seedListings(owner id.UserID, n int, age time.Duration) {
	for i := 0; i < n; i++ {
		p := s.listing(owner, fmt.Sprintf("Flat %d", i), nil)
		p.CreatedAt = s.now.Add(-age)
		s.Require().NoError(s.store.Create(s.ctx, p))
	}
}

func (s *DetectorSuite) TestCheckRateLimit() {
	owner := id.UserID(uuid.New())

	s.Run("under the cap", func() {
		s.seedListings(owner, 4, time.Hour)
		res, err := s.detector.CheckRateLimit(s.ctx, owner, 10)
		s.Require().NoError(err)
		s.True(res.Allowed)
		s.Equal(6, res.Remaining)
		s.Equal(4, res.Used)
	})

	s.Run("at the cap", func() {
		s.seedListings(owner, 6, 2*time.Hour)
		res, err := s.detector.CheckRateLimit(s.ctx, owner, 10)
		s.Require().NoError(err)
		s.False(res.Allowed)
		s.Equal(0, res.Remaining)
		s.Contains(s.logs.String(), `"event":"listing_rate_limit_exceeded"`)
	})

	s.Run("remaining never goes negative", func() {
		res, err := s.detector.CheckRateLimit(s.ctx, owner, 3)
		s.Require().NoError(err)
		s.False(res.Allowed)
		s.Equal(0, res.Remaining)
	})

	s.Run("listings outside the window do not count", func() {
		fresh := id.UserID(uuid.New())
		s.seedListings(fresh, 10, 25*time.Hour)
		res, err := s.detector.CheckRateLimit(s.ctx, fresh, 10)
		s.Require().NoError(err)
		s.True(res.Allowed)
		s.Equal(10, res.Remaining)
	})
}

func (s *DetectorSuite) TestCheckRateLimitRejectsNonPositiveCap() {
	_, err := s.detector.CheckRateLimit(s.ctx, id.UserID(uuid.New()), 0)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func (s *DetectorSuite) TestRateLimitDefaultsToConfig() {
	d, err := New(s.store, s.corpus, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	s.Require().NoError(err)
	s.Equal(10, d.RateLimit())
}
