package redis

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"propnest/internal/platform/config"
)

func TestNewWithoutURL(t *testing.T) {
	client, err := New(context.Background(), config.RedisConfig{}, nil)
	require.NoError(t, err)
	assert.Nil(t, client)
}

func TestNewRejectsBadURL(t *testing.T) {
	_, err := New(context.Background(), config.RedisConfig{URL: "mysql://nope"}, nil)
	assert.ErrorContains(t, err, "parse redis URL")
}

func TestApplyPoolConfig(t *testing.T) {
	opts, err := redis.ParseURL("redis://localhost:6379/2?pool_size=7")
	require.NoError(t, err)

	applyPoolConfig(opts, config.RedisConfig{DialTimeout: time.Second, MinIdleConns: 2})
	assert.Equal(t, 7, opts.PoolSize)
	assert.Equal(t, 2, opts.MinIdleConns)
	assert.Equal(t, time.Second, opts.DialTimeout)
	assert.Equal(t, 2, opts.DB)
}
