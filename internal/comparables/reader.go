// Package comparables reads the sample of recently approved listings that
// price checks compare against.
package comparables

import (
	"context"
	"fmt"
	"strings"
	"time"

	"propnest/internal/property/models"
)

// Comparable is the projection of an approved listing used for price
// statistics. Price and UnitArea are zero when not resolvable.
type Comparable struct {
	PropertyID string    `json:"id"`
	Price      float64   `json:"price"`
	UnitArea   float64   `json:"unitArea"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Usable reports whether the comparable carries both a price and an area.
func (c Comparable) Usable() bool {
	return c.Price > 0 && c.UnitArea > 0
}

// Source lists recently approved listings, newest first.
type Source interface {
	ListRecentApproved(ctx context.Context, city string, category models.Category, limit int) ([]*models.Property, error)
}

// Corpus is the read side consumed by the fraud checks.
type Corpus interface {
	Recent(ctx context.Context, city string, category models.Category) ([]Comparable, error)
}

// Reader reads up to limit comparables straight from the property store.
type Reader struct {
	source Source
	limit  int
}

func NewReader(source Source, limit int) (*Reader, error) {
	if source == nil {
		return nil, fmt.Errorf("comparables source is required")
	}
	if limit <= 0 {
		return nil, fmt.Errorf("comparables limit must be positive")
	}
	return &Reader{source: source, limit: limit}, nil
}

// Recent returns the newest approved listings sharing city and category.
func (r *Reader) Recent(ctx context.Context, city string, category models.Category) ([]Comparable, error) {
	city = strings.TrimSpace(city)
	if city == "" || !category.IsValid() {
		return nil, nil
	}
	props, err := r.source.ListRecentApproved(ctx, city, category, r.limit)
	if err != nil {
		return nil, fmt.Errorf("list comparables: %w", err)
	}
	out := make([]Comparable, 0, len(props))
	for _, p := range props {
		out = append(out, project(p))
	}
	return out, nil
}

func project(p *models.Property) Comparable {
	c := Comparable{PropertyID: p.ID.String(), CreatedAt: p.CreatedAt}
	if price, ok := p.Price(); ok {
		c.Price = price
	}
	if area, ok := p.UnitArea(); ok {
		c.UnitArea = area
	}
	return c
}
