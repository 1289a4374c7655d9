package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("PROPNEST_ADDR", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("KAFKA_BROKERS", "")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Empty(t, cfg.Database.URL)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Equal(t, DefaultIntegrity(), cfg.Integrity)
	assert.Equal(t, time.Second, cfg.Kafka.PollInterval)
	assert.False(t, cfg.Lifecycle.SubmitRequiresReview)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "a:9092, b:9092,")
	t.Setenv("LISTING_RATE_LIMIT", "3")
	t.Setenv("LISTING_RATE_WINDOW", "1h")
	t.Setenv("DUPLICATE_TITLE_SIMILARITY", "0.9")
	t.Setenv("SUBMIT_REQUIRES_REVIEW", "true")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 3, cfg.Integrity.ListingRateLimit)
	assert.Equal(t, time.Hour, cfg.Integrity.ListingRateWindow)
	assert.InDelta(t, 0.9, cfg.Integrity.DuplicateTitleSimilarity, 1e-9)
	assert.True(t, cfg.Lifecycle.SubmitRequiresReview)
}

func TestFromEnvRejectsBadValues(t *testing.T) {
	t.Run("unparseable", func(t *testing.T) {
		t.Setenv("LISTING_RATE_LIMIT", "ten")
		_, err := FromEnv()
		assert.ErrorContains(t, err, "LISTING_RATE_LIMIT")
	})
	t.Run("out of range", func(t *testing.T) {
		t.Setenv("DUPLICATE_TITLE_SIMILARITY", "1.5")
		_, err := FromEnv()
		assert.ErrorContains(t, err, "DUPLICATE_TITLE_SIMILARITY")
	})
}
