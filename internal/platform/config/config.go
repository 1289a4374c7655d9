package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	strutil "propnest/pkg/platform/strings"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr          string
	JWTSigningKey string
	JWTIssuer     string
	JWTAudience   string
	LogLevel      string

	Database  DatabaseConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	Integrity IntegrityConfig
	Lifecycle LifecycleConfig
}

// DatabaseConfig configures the Postgres pool. An empty URL selects the
// in-memory stores.
type DatabaseConfig struct {
	URL      string
	MaxConns int32
}

// RedisConfig configures the comparables cache. An empty URL disables caching.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig configures the notification relay. No brokers disables it and
// outbox rows stay pending.
type KafkaConfig struct {
	Brokers        []string
	OwnerTopic     string
	BroadcastTopic string
	PollInterval   time.Duration
	BatchSize      int
}

// IntegrityConfig holds the fraud and anomaly thresholds.
type IntegrityConfig struct {
	ListingRateLimit         int
	ListingRateWindow        time.Duration
	DuplicateRadiusMeters    float64
	DuplicateTitleSimilarity float64
	DuplicateMaxMatches      int
	PriceAnomalyThreshold    float64
	ComparablesLimit         int
	ComparablesMin           int
	ComparablesCacheTTL      time.Duration
}

// LifecycleConfig toggles lifecycle policy.
type LifecycleConfig struct {
	// SubmitRequiresReview routes submit to PENDING instead of APPROVED.
	SubmitRequiresReview bool
}

// DefaultIntegrity returns the production thresholds.
func DefaultIntegrity() IntegrityConfig {
	return IntegrityConfig{
		ListingRateLimit:         10,
		ListingRateWindow:        24 * time.Hour,
		DuplicateRadiusMeters:    50,
		DuplicateTitleSimilarity: 0.8,
		DuplicateMaxMatches:      5,
		PriceAnomalyThreshold:    0.5,
		ComparablesLimit:         20,
		ComparablesMin:           3,
		ComparablesCacheTTL:      5 * time.Minute,
	}
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() (Server, error) {
	addr := os.Getenv("PROPNEST_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Use a default for development - should be overridden in production
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	cfg := Server{
		Addr:          addr,
		JWTSigningKey: jwtSigningKey,
		JWTIssuer:     envString("JWT_ISSUER", "propnest"),
		JWTAudience:   envString("JWT_AUDIENCE", "propnest-api"),
		LogLevel:      envString("LOG_LEVEL", "info"),
		Database: DatabaseConfig{
			URL:      os.Getenv("DATABASE_URL"),
			MaxConns: 10,
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Kafka: KafkaConfig{
			Brokers:        strutil.SplitAndDedupe(os.Getenv("KAFKA_BROKERS"), ","),
			OwnerTopic:     envString("KAFKA_OWNER_TOPIC", "listing.owner-events"),
			BroadcastTopic: envString("KAFKA_BROADCAST_TOPIC", "listing.public-events"),
			BatchSize:      100,
		},
		Integrity: DefaultIntegrity(),
	}

	var err error
	p := parser{}
	cfg.Kafka.PollInterval = p.duration("OUTBOX_POLL_INTERVAL", time.Second)
	cfg.Integrity.ListingRateLimit = p.int("LISTING_RATE_LIMIT", cfg.Integrity.ListingRateLimit)
	cfg.Integrity.ListingRateWindow = p.duration("LISTING_RATE_WINDOW", cfg.Integrity.ListingRateWindow)
	cfg.Integrity.DuplicateRadiusMeters = p.float("DUPLICATE_RADIUS_METERS", cfg.Integrity.DuplicateRadiusMeters)
	cfg.Integrity.DuplicateTitleSimilarity = p.float("DUPLICATE_TITLE_SIMILARITY", cfg.Integrity.DuplicateTitleSimilarity)
	cfg.Integrity.DuplicateMaxMatches = p.int("DUPLICATE_MAX_MATCHES", cfg.Integrity.DuplicateMaxMatches)
	cfg.Integrity.PriceAnomalyThreshold = p.float("PRICE_ANOMALY_THRESHOLD", cfg.Integrity.PriceAnomalyThreshold)
	cfg.Integrity.ComparablesLimit = p.int("COMPARABLES_LIMIT", cfg.Integrity.ComparablesLimit)
	cfg.Integrity.ComparablesMin = p.int("COMPARABLES_MIN", cfg.Integrity.ComparablesMin)
	cfg.Integrity.ComparablesCacheTTL = p.duration("COMPARABLES_CACHE_TTL", cfg.Integrity.ComparablesCacheTTL)
	cfg.Lifecycle.SubmitRequiresReview = p.bool("SUBMIT_REQUIRES_REVIEW", false)
	if err = p.err; err != nil {
		return Server{}, err
	}
	if err = cfg.Integrity.Validate(); err != nil {
		return Server{}, err
	}
	return cfg, nil
}

// Validate rejects thresholds that would disable a check silently.
func (c IntegrityConfig) Validate() error {
	switch {
	case c.ListingRateLimit <= 0:
		return fmt.Errorf("LISTING_RATE_LIMIT must be positive")
	case c.ListingRateWindow <= 0:
		return fmt.Errorf("LISTING_RATE_WINDOW must be positive")
	case c.DuplicateRadiusMeters <= 0:
		return fmt.Errorf("DUPLICATE_RADIUS_METERS must be positive")
	case c.DuplicateTitleSimilarity < 0 || c.DuplicateTitleSimilarity > 1:
		return fmt.Errorf("DUPLICATE_TITLE_SIMILARITY must be within [0,1]")
	case c.DuplicateMaxMatches <= 0:
		return fmt.Errorf("DUPLICATE_MAX_MATCHES must be positive")
	case c.PriceAnomalyThreshold <= 0:
		return fmt.Errorf("PRICE_ANOMALY_THRESHOLD must be positive")
	case c.ComparablesLimit <= 0 || c.ComparablesMin <= 0:
		return fmt.Errorf("COMPARABLES_LIMIT and COMPARABLES_MIN must be positive")
	}
	return nil
}

func envString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// parser keeps the first parse error so FromEnv reads top to bottom.
type parser struct {
	err error
}

func (p *parser) lookup(key string) (string, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	return v, v != "" && p.err == nil
}

func (p *parser) int(key string, def int) int {
	v, ok := p.lookup(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.err = fmt.Errorf("parse %s: %w", key, err)
		return def
	}
	return n
}

func (p *parser) float(key string, def float64) float64 {
	v, ok := p.lookup(key)
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.err = fmt.Errorf("parse %s: %w", key, err)
		return def
	}
	return f
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	v, ok := p.lookup(key)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.err = fmt.Errorf("parse %s: %w", key, err)
		return def
	}
	return d
}

func (p *parser) bool(key string, def bool) bool {
	v, ok := p.lookup(key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.err = fmt.Errorf("parse %s: %w", key, err)
		return def
	}
	return b
}
