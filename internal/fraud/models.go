package fraud

import (
	"time"

	"propnest/internal/property/models"
	id "propnest/pkg/domain"
)

// Match is an existing listing that looks like the candidate.
type Match struct {
	ID              id.PropertyID
	Title           string
	Location        models.Location
	DistanceMeters  float64
	TitleSimilarity float64
}

// DuplicateResult is the outcome of DetectDuplicate. Matches only lists the
// nearby listings whose title crossed the similarity threshold.
type DuplicateResult struct {
	IsDuplicate bool
	Matches     []Match
}

// PriceAnomalyResult is advisory; it never blocks a submission.
type PriceAnomalyResult struct {
	IsAnomaly bool
	Reason    string
	// Deviation is |own - average| / average of price per unit area.
	Deviation       float64
	LocalAverage    float64
	ComparableCount int
}

// RateLimitResult reports the caller's listing quota for the trailing window.
type RateLimitResult struct {
	Allowed   bool
	Remaining int
	Limit     int
	Used      int
	Window    time.Duration
}
