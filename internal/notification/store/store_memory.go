// Package store is the lifecycle event outbox. Events are appended in the
// same unit of work as the status change and drained by the relay.
package store

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"propnest/internal/notification/models"
	id "propnest/pkg/domain"
)

type InMemoryStore struct {
	mu     sync.Mutex
	events []*models.Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Append(_ context.Context, events ...*models.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range events {
		s.events = append(s.events, e.Clone())
	}
	return nil
}

// ListPending returns up to limit unpublished events, oldest first.
func (s *InMemoryStore) ListPending(_ context.Context, limit int) ([]*models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Event
	for _, e := range s.events {
		if e.PublishedAt != nil {
			continue
		}
		out = append(out, e.Clone())
	}
	slices.SortStableFunc(out, func(a, b *models.Event) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *InMemoryStore) MarkPublished(_ context.Context, ids []uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.events {
		if e.PublishedAt == nil && slices.Contains(ids, e.ID) {
			t := at
			e.PublishedAt = &t
		}
	}
	return nil
}

// ListByProperty returns every event recorded for a property in append order.
func (s *InMemoryStore) ListByProperty(_ context.Context, propertyID id.PropertyID) ([]*models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Event
	for _, e := range s.events {
		if e.PropertyID == propertyID {
			out = append(out, e.Clone())
		}
	}
	return out, nil
}
