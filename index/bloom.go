package index

import (
	"context"
	"fmt"
	"log"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// BloomConfig configures the RedisBloom pre-filter.
type BloomConfig struct {
	Key string
	// Capacity sets the initial BF.RESERVE capacity (number of items)
	Capacity int
	// ErrorRate sets the desired false positive probability (e.g. 0.001)
	ErrorRate float64
}

// RedisBloom answers "was this fingerprint ever indexed?" so that candidate
// lookups can skip posting sets that cannot exist. Deleted documents leave
// their bits set, which only costs an empty SMEMBERS.
type RedisBloom struct {
	client *redis.Client
	key    string
}

// NewRedisBloom reserves the filter if it does not exist yet.
func NewRedisBloom(ctx context.Context, client *redis.Client, cfg BloomConfig) *RedisBloom {
	rb := &RedisBloom{client: client, key: cfg.Key}

	exists, err := client.Exists(ctx, cfg.Key).Result()
	if err == nil && exists == 0 {
		// BF.RESERVE <key> <error_rate> <capacity>
		if err := client.Do(ctx, "BF.RESERVE", cfg.Key, fmt.Sprintf("%f", cfg.ErrorRate), cfg.Capacity).Err(); err != nil {
			log.Printf("Warning: BF.RESERVE %s failed, relying on BF.MADD auto-create: %v", cfg.Key, err)
		}
	}
	return rb
}

// MExists reports membership for each item (BF.MEXISTS).
func (r *RedisBloom) MExists(ctx context.Context, items []string) ([]bool, error) {
	if len(items) == 0 {
		return nil, nil
	}
	args := make([]interface{}, 0, len(items)+2)
	args = append(args, "BF.MEXISTS", r.key)
	for _, it := range items {
		args = append(args, it)
	}
	res, err := r.client.Do(ctx, args...).Slice()
	if err != nil {
		return nil, err
	}
	if len(res) != len(items) {
		return nil, fmt.Errorf("unexpected BF.MEXISTS reply length %d for %d items", len(res), len(items))
	}

	out := make([]bool, len(res))
	for i, v := range res {
		switch x := v.(type) {
		case int64:
			out[i] = x == 1
		case bool:
			out[i] = x
		case string:
			out[i] = x == "1"
		default:
			return nil, fmt.Errorf("unexpected BF.MEXISTS response type %T: %v", v, v)
		}
	}
	return out, nil
}

// MAdd inserts items (BF.MADD).
func (r *RedisBloom) MAdd(ctx context.Context, items []string) error {
	if len(items) == 0 {
		return nil
	}
	args := make([]interface{}, 0, len(items)+2)
	args = append(args, "BF.MADD", r.key)
	for _, it := range items {
		args = append(args, it)
	}
	return r.client.Do(ctx, args...).Err()
}

func fpKey(fp uint64) string {
	return strconv.FormatUint(fp, 16)
}
