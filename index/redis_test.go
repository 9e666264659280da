package index

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

// Set SIMCHECK_TEST_REDIS_ADDR to run these against a live server.
func newTestRedis(t *testing.T) Index {
	t.Helper()
	addr := os.Getenv("SIMCHECK_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("SIMCHECK_TEST_REDIS_ADDR not set")
	}

	ctx := context.Background()
	prefix := fmt.Sprintf("simcheck-test-%d", time.Now().UnixNano())
	idx, err := NewRedis(ctx, RedisConfig{Addr: addr, KeyPrefix: prefix})
	require.NoError(t, err)

	t.Cleanup(func() {
		client := redis.NewClient(&redis.Options{Addr: addr})
		defer client.Close()
		keys, _ := client.Keys(ctx, prefix+":*").Result()
		if len(keys) > 0 {
			client.Del(ctx, keys...)
		}
		_ = idx.Close()
	})
	return idx
}

func TestRedisIndex(t *testing.T) {
	runIndexContract(t, newTestRedis)
}

func TestFpKeyIsHex(t *testing.T) {
	require.Equal(t, "ff", fpKey(255))
}
