// Package store persists verification records with insert-if-absent
// semantics on the property reference.
package store

import (
	"context"
	"sync"

	"propnest/internal/verification/models"
	id "propnest/pkg/domain"
	"propnest/pkg/platform/sentinel"
)

// InMemoryStore keeps one record per property behind a mutex, which makes
// Upsert a single atomic step like the Postgres ON CONFLICT write.
type InMemoryStore struct {
	mu      sync.Mutex
	records map[id.PropertyID]*models.Record
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[id.PropertyID]*models.Record)}
}

// Upsert inserts rec when no record exists for the property and reports
// true. Otherwise it refreshes the derived fields and keeps the stored asset
// id and creation time.
func (s *InMemoryStore) Upsert(_ context.Context, rec *models.Record) (*models.Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := clone(rec)
	cur, exists := s.records[rec.PropertyID]
	if exists {
		next.AssetID = cur.AssetID
		next.CreatedAt = cur.CreatedAt
	}
	s.records[rec.PropertyID] = next
	return clone(next), !exists, nil
}

func (s *InMemoryStore) FindByPropertyID(_ context.Context, propertyID id.PropertyID) (*models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[propertyID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(rec), nil
}

func (s *InMemoryStore) DeleteByPropertyID(_ context.Context, propertyID id.PropertyID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, propertyID)
	return nil
}

func clone(rec *models.Record) *models.Record {
	c := *rec
	if rec.Geo.Point != nil {
		pt := *rec.Geo.Point
		c.Geo.Point = &pt
	}
	if rec.Geo.VerifiedAt != nil {
		t := *rec.Geo.VerifiedAt
		c.Geo.VerifiedAt = &t
	}
	return &c
}
