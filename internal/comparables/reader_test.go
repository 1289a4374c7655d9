package comparables

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"propnest/internal/property/models"
	"propnest/internal/property/store"
	id "propnest/pkg/domain"
)

func seed(t *testing.T, s *store.InMemoryStore, n int, city string, category models.Category, details models.Details) {
	t.Helper()
	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		p, err := models.NewProperty(id.UserID(uuid.New()), "Listing", models.TransactionSell, category, details, base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, err)
		p.AssetID = uuid.NewString()
		p.Location.City = city
		p.Status = models.StatusApproved
		p.Pricing = &models.Pricing{Kind: models.PriceKindExpected, Amount: float64(1_000_000 + i)}
		require.NoError(t, s.Create(context.Background(), p))
	}
}

func TestReaderRecent(t *testing.T) {
	ctx := context.Background()
	st := store.NewInMemoryStore()
	seed(t, st, 25, "Pune", models.CategoryLand, models.LandDetails{PlotArea: 1200})
	seed(t, st, 2, "Pune", models.CategoryCommercial, nil)

	r, err := NewReader(st, 20)
	require.NoError(t, err)

	t.Run("capped at limit, newest first", func(t *testing.T) {
		got, err := r.Recent(ctx, "pune", models.CategoryLand)
		require.NoError(t, err)
		require.Len(t, got, 20)
		assert.True(t, got[0].CreatedAt.After(got[19].CreatedAt))
		assert.True(t, got[0].Usable())
		assert.InDelta(t, 1200, got[0].UnitArea, 1e-9)
	})

	t.Run("unresolvable area is zero", func(t *testing.T) {
		got, err := r.Recent(ctx, "Pune", models.CategoryCommercial)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.False(t, got[0].Usable())
	})

	t.Run("blank city reads nothing", func(t *testing.T) {
		got, err := r.Recent(ctx, "  ", models.CategoryLand)
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestNewReaderValidates(t *testing.T) {
	_, err := NewReader(nil, 20)
	assert.Error(t, err)
	_, err = NewReader(store.NewInMemoryStore(), 0)
	assert.Error(t, err)
}

func TestCacheKeyNormalizesCity(t *testing.T) {
	assert.Equal(t, cacheKey(" Mumbai ", models.CategoryResidential), cacheKey("mumbai", models.CategoryResidential))
	assert.NotEqual(t, cacheKey("mumbai", models.CategoryLand), cacheKey("mumbai", models.CategoryResidential))
}
