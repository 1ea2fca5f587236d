package redis

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slotbook/booking-api/config"
	"github.com/slotbook/booking-api/pkg/circuitbreaker"
)

// unreachable points at a port nothing listens on.
func unreachable() *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		MaxRetries:  -1,
		DialTimeout: 200 * time.Millisecond,
	})
}

func TestNewRedisBrokerRejectsBadURL(t *testing.T) {
	_, err := NewRedisBroker(context.Background(), config.RedisConfig{URL: "http://nope"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse Redis URL")
}

func TestNewRedisBrokerFailsWithoutServer(t *testing.T) {
	_, err := NewRedisBroker(context.Background(), config.RedisConfig{URL: "redis://127.0.0.1:1/0", MaxRetries: -1}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connect to Redis")
}

func TestPublishOpensBreaker(t *testing.T) {
	b := newBroker(unreachable(), nil)
	defer b.Close()

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		err := b.Publish(ctx, "booking.booking.created", []byte("{}"))
		require.Error(t, err)
		assert.NotErrorIs(t, err, circuitbreaker.ErrOpen)
	}
	assert.Equal(t, circuitbreaker.StateOpen, b.BreakerState())

	err := b.Publish(ctx, "booking.booking.created", []byte("{}"))
	assert.ErrorIs(t, err, circuitbreaker.ErrOpen)
}
