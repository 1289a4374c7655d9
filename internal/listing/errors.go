package listing

import (
	"time"

	"propnest/internal/fraud"
	dErrors "propnest/pkg/domain-errors"
)

// DuplicateListingError blocks a submission that looks like an existing
// listing. It carries the matches so the caller can show them.
type DuplicateListingError struct {
	Matches []fraud.Match
}

func (e *DuplicateListingError) Error() string {
	return "a similar listing already exists nearby"
}

func (e *DuplicateListingError) Unwrap() error {
	return dErrors.New(dErrors.CodeConflict, e.Error())
}

func (e *DuplicateListingError) ErrorDetails() map[string]any {
	matches := make([]map[string]any, 0, len(e.Matches))
	for _, m := range e.Matches {
		matches = append(matches, map[string]any{
			"id":       m.ID.String(),
			"title":    m.Title,
			"location": m.Location,
		})
	}
	return map[string]any{"matches": matches}
}

// RateLimitExceededError blocks a submission once the owner's listing quota
// for the trailing window is used up.
type RateLimitExceededError struct {
	Remaining int
	Limit     int
	Window    time.Duration
}

func (e *RateLimitExceededError) Error() string {
	return "listing limit reached, try again later"
}

func (e *RateLimitExceededError) Unwrap() error {
	return dErrors.New(dErrors.CodeRateLimited, e.Error())
}

func (e *RateLimitExceededError) ErrorDetails() map[string]any {
	return map[string]any{
		"remaining":      e.Remaining,
		"limit":          e.Limit,
		"window_seconds": int(e.Window.Seconds()),
	}
}
