package storage

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/eduverify/credtrust/storage/model"
)

func TestRedisOTPStorageTTLFollowsSessionClock(t *testing.T) {
	store := NewRedisOTPStorage(nil, time.Hour)
	issued := time.Date(2001, time.March, 4, 10, 0, 0, 0, time.UTC)
	tests := []struct {
		name     string
		session  model.OTPSession
		expected time.Duration
	}{
		{
			name: "past issuance",
			session: model.OTPSession{
				IssuedAt:  issued,
				ExpiresAt: issued.Add(10 * time.Minute),
			},
			expected: time.Hour + 10*time.Minute,
		},
		{
			name: "future issuance",
			session: model.OTPSession{
				IssuedAt:  issued.AddDate(50, 0, 0),
				ExpiresAt: issued.AddDate(50, 0, 0).Add(5 * time.Minute),
			},
			expected: time.Hour + 5*time.Minute,
		},
	}
	for _, test := range tests {
		t.Run(
			test.name, func(t *testing.T) {
				require.Equal(t, test.expected, store.ttl(test.session))
			},
		)
	}
	t.Run(
		"never non-positive", func(t *testing.T) {
			s := &RedisOTPStorage{}
			require.Equal(
				t, time.Second, s.ttl(
					model.OTPSession{
						IssuedAt:  issued,
						ExpiresAt: issued.Add(-time.Minute),
					},
				),
			)
		},
	)
}

func TestRedisOTPStorage(t *testing.T) {
	// Skip if not running integration tests
	if os.Getenv("RUN_INTEGRATION_TESTS") != "true" {
		t.Skip("Skipping integration test. Set RUN_INTEGRATION_TESTS=true to run")
	}
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("Skipping Redis test. Set REDIS_ADDR environment variable")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Fatalf("Failed to ping redis: %v", err)
	}
	store := NewRedisOTPStorage(client, time.Hour)
	store.prefix = "credtrust-test:" + time.Now().Format(time.RFC3339Nano) + ":"
	testOTPStore(t, store)
}
