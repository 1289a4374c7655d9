package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"propnest/internal/property/models"
	id "propnest/pkg/domain"
	"propnest/pkg/platform/sentinel"
)

// InMemoryStore keeps properties in a map. Suitable for tests and for running
// without DATABASE_URL; proximity queries scan every listing.
type InMemoryStore struct {
	mu       sync.RWMutex
	byID     map[id.PropertyID]*models.Property
	assetIDs map[string]id.PropertyID
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		byID:     make(map[id.PropertyID]*models.Property),
		assetIDs: make(map[string]id.PropertyID),
	}
}

func (s *InMemoryStore) Create(_ context.Context, p *models.Property) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[p.ID]; ok {
		return sentinel.ErrConflict
	}
	if _, ok := s.assetIDs[p.AssetID]; ok {
		return sentinel.ErrConflict
	}
	s.byID[p.ID] = p.Clone()
	s.assetIDs[p.AssetID] = p.ID
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, propertyID id.PropertyID) (*models.Property, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.byID[propertyID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return p.Clone(), nil
}

// Update persists the editable fields of p. Status, counters and the
// verification summary have dedicated writers.
func (s *InMemoryStore) Update(_ context.Context, p *models.Property) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.byID[p.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	next := p.Clone()
	next.AssetID = cur.AssetID
	next.OwnerID = cur.OwnerID
	next.CreatedAt = cur.CreatedAt
	next.Status = cur.Status
	next.Verified = cur.Verified
	next.PublishedAt = cur.PublishedAt
	next.RejectionReason = cur.RejectionReason
	next.Counters = cur.Counters
	next.Verification = cur.Verification
	s.byID[p.ID] = next
	return nil
}

// UpdateStatus writes the lifecycle fields of p only if the stored status is
// still from.
func (s *InMemoryStore) UpdateStatus(_ context.Context, p *models.Property, from models.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.byID[p.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if cur.Status != from {
		return sentinel.ErrInvalidState
	}
	cur.Status = p.Status
	cur.Verified = p.Verified
	cur.RejectionReason = p.RejectionReason
	cur.UpdatedAt = p.UpdatedAt
	cur.PublishedAt = nil
	if p.PublishedAt != nil {
		t := *p.PublishedAt
		cur.PublishedAt = &t
	}
	return nil
}

func (s *InMemoryStore) UpdateVerification(_ context.Context, propertyID id.PropertyID, summary models.VerificationSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.byID[propertyID]
	if !ok {
		return sentinel.ErrNotFound
	}
	cur.Verification = summary
	return nil
}

func (s *InMemoryStore) IncrementCounter(_ context.Context, propertyID id.PropertyID, counter models.Counter) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.byID[propertyID]
	if !ok {
		return sentinel.ErrNotFound
	}
	switch counter {
	case models.CounterViews:
		cur.Counters.Views++
	case models.CounterSaves:
		cur.Counters.Saves++
	case models.CounterInquiries:
		cur.Counters.Inquiries++
	default:
		return ErrUnknownCounter
	}
	return nil
}

func (s *InMemoryStore) Delete(_ context.Context, propertyID id.PropertyID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.byID[propertyID]
	if !ok {
		return sentinel.ErrNotFound
	}
	delete(s.assetIDs, cur.AssetID)
	delete(s.byID, propertyID)
	return nil
}

func (s *InMemoryStore) FindNearby(_ context.Context, q models.NearbyQuery) ([]models.Nearby, error) {
	statuses := statusSet(q.Statuses)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Nearby
	for _, p := range s.byID {
		if !p.HasPoint() || !statuses[p.Status] {
			continue
		}
		if !q.ExcludeOwner.IsNil() && p.OwnerID == q.ExcludeOwner {
			continue
		}
		d := models.DistanceMeters(q.Point, *p.Location.Point)
		if d > q.RadiusMeters {
			continue
		}
		out = append(out, models.Nearby{Property: p.Clone(), DistanceMeters: d})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].DistanceMeters < out[j].DistanceMeters
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// ListRecentApproved returns APPROVED listings in the same city (case
// insensitive) and category, newest first.
func (s *InMemoryStore) ListRecentApproved(_ context.Context, city string, category models.Category, limit int) ([]*models.Property, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Property
	for _, p := range s.byID {
		if p.Status != models.StatusApproved || p.Category != category {
			continue
		}
		if !strings.EqualFold(p.Location.City, city) {
			continue
		}
		out = append(out, p.Clone())
	}
	sortNewestFirst(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *InMemoryStore) CountCreatedSince(_ context.Context, owner id.UserID, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, p := range s.byID {
		if p.OwnerID == owner && !p.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (s *InMemoryStore) List(_ context.Context, f models.ListFilter) ([]*models.Property, error) {
	statuses := statusSet(f.Statuses)

	s.mu.RLock()
	var out []*models.Property
	for _, p := range s.byID {
		if len(statuses) > 0 && !statuses[p.Status] {
			continue
		}
		if !f.OwnerID.IsNil() && p.OwnerID != f.OwnerID {
			continue
		}
		if f.City != "" && !strings.EqualFold(p.Location.City, f.City) {
			continue
		}
		if f.Category != "" && p.Category != f.Category {
			continue
		}
		if f.TransactionType != "" && p.TransactionType != f.TransactionType {
			continue
		}
		out = append(out, p.Clone())
	}
	s.mu.RUnlock()

	sortNewestFirst(out)
	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return nil, nil
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func statusSet(statuses []models.Status) map[models.Status]bool {
	set := make(map[models.Status]bool, len(statuses))
	for _, st := range statuses {
		set[st] = true
	}
	return set
}

func sortNewestFirst(ps []*models.Property) {
	sort.Slice(ps, func(i, j int) bool {
		if ps[i].CreatedAt.Equal(ps[j].CreatedAt) {
			return ps[i].ID.String() < ps[j].ID.String()
		}
		return ps[i].CreatedAt.After(ps[j].CreatedAt)
	})
}
