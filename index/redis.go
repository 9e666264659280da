package index

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"simcheck/fingerprint"
	"simcheck/types"
)

// RedisConfig configures the Redis-backed index.
type RedisConfig struct {
	Addr      string // e.g. localhost:6379
	Password  string
	DB        int
	KeyPrefix string
	// Bloom enables the RedisBloom pre-filter on candidate lookups.
	Bloom *BloomConfig
}

// lookupBatch bounds the number of SMEMBERS calls per pipeline round trip.
const lookupBatch = 512

// Redis keeps postings in Redis sets so that the index survives restarts and
// can be shared by several scheduler processes:
//
//	<prefix>:fp:<fp>   set of document ids containing fp
//	<prefix>:doc:<id>  set of fingerprints of the document
//	<prefix>:docs      set of indexed document ids
type Redis struct {
	client  *redis.Client
	prefix  string
	bloom   *RedisBloom
	writers *keyedMutex
}

var _ Index = (*Redis)(nil)

// NewRedis connects to Redis and verifies connectivity.
func NewRedis(ctx context.Context, cfg RedisConfig) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}

	return newRedisWithClient(ctx, client, cfg), nil
}

func newRedisWithClient(ctx context.Context, client *redis.Client, cfg RedisConfig) *Redis {
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "simcheck"
	}
	r := &Redis{client: client, prefix: prefix, writers: newKeyedMutex()}
	if cfg.Bloom != nil {
		bc := *cfg.Bloom
		if bc.Key == "" {
			bc.Key = prefix + ":bloom"
		}
		r.bloom = NewRedisBloom(ctx, client, bc)
	}
	return r
}

func (r *Redis) postingKey(fp string) string { return r.prefix + ":fp:" + fp }
func (r *Redis) docKey(id string) string     { return r.prefix + ":doc:" + id }
func (r *Redis) docsKey() string             { return r.prefix + ":docs" }

// Index replaces the postings of documentID in one MULTI/EXEC block.
func (r *Redis) Index(ctx context.Context, documentID string, fps fingerprint.Set) error {
	unlock := r.writers.Lock(documentID)
	defer unlock()

	old, err := r.client.SMembers(ctx, r.docKey(documentID)).Result()
	if err != nil {
		return types.Transient(fmt.Errorf("failed to read postings of %s: %w", documentID, err))
	}

	members := make([]interface{}, 0, len(fps))
	keys := make([]string, 0, len(fps))
	for fp := range fps {
		k := fpKey(fp)
		keys = append(keys, k)
		members = append(members, k)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, k := range old {
			pipe.SRem(ctx, r.postingKey(k), documentID)
		}
		pipe.Del(ctx, r.docKey(documentID))
		for _, k := range keys {
			pipe.SAdd(ctx, r.postingKey(k), documentID)
		}
		if len(members) > 0 {
			pipe.SAdd(ctx, r.docKey(documentID), members...)
		}
		pipe.SAdd(ctx, r.docsKey(), documentID)
		return nil
	})
	if err != nil {
		return types.Transient(fmt.Errorf("failed to index %s: %w", documentID, err))
	}

	if r.bloom != nil {
		if err := r.bloom.MAdd(ctx, keys); err != nil {
			return types.Transient(fmt.Errorf("failed to update bloom filter for %s: %w", documentID, err))
		}
	}
	return nil
}

// Remove drops every posting of documentID.
func (r *Redis) Remove(ctx context.Context, documentID string) error {
	unlock := r.writers.Lock(documentID)
	defer unlock()

	old, err := r.client.SMembers(ctx, r.docKey(documentID)).Result()
	if err != nil {
		return types.Transient(fmt.Errorf("failed to read postings of %s: %w", documentID, err))
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, k := range old {
			pipe.SRem(ctx, r.postingKey(k), documentID)
		}
		pipe.Del(ctx, r.docKey(documentID))
		pipe.SRem(ctx, r.docsKey(), documentID)
		return nil
	})
	if err != nil {
		return types.Transient(fmt.Errorf("failed to remove %s: %w", documentID, err))
	}
	return nil
}

// Candidates counts shared fingerprints per document over batched pipelines.
func (r *Redis) Candidates(ctx context.Context, fps fingerprint.Set, minShared int, excludeID string) ([]Candidate, error) {
	if minShared < 1 {
		minShared = 1
	}

	keys := make([]string, 0, len(fps))
	for fp := range fps {
		keys = append(keys, fpKey(fp))
	}

	if r.bloom != nil {
		present, err := r.bloom.MExists(ctx, keys)
		if err != nil {
			return nil, types.Transient(fmt.Errorf("bloom lookup failed: %w", err))
		}
		filtered := keys[:0]
		for i, k := range keys {
			if present[i] {
				filtered = append(filtered, k)
			}
		}
		keys = filtered
	}

	counts := make(map[string]int)
	for start := 0; start < len(keys); start += lookupBatch {
		end := min(start+lookupBatch, len(keys))

		cmds, err := r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
			for _, k := range keys[start:end] {
				pipe.SMembers(ctx, r.postingKey(k))
			}
			return nil
		})
		if err != nil && err != redis.Nil {
			return nil, types.Transient(fmt.Errorf("posting lookup failed: %w", err))
		}
		for _, cmd := range cmds {
			docs, err := cmd.(*redis.StringSliceCmd).Result()
			if err != nil && err != redis.Nil {
				return nil, types.Transient(fmt.Errorf("posting lookup failed: %w", err))
			}
			for _, doc := range docs {
				if doc != excludeID {
					counts[doc]++
				}
			}
		}
	}

	out := make([]Candidate, 0, len(counts))
	for doc, n := range counts {
		if n >= minShared {
			out = append(out, Candidate{DocumentID: doc, Shared: n})
		}
	}
	sortCandidates(out)
	return out, nil
}

// Count returns the number of indexed documents.
func (r *Redis) Count(ctx context.Context) (int, error) {
	n, err := r.client.SCard(ctx, r.docsKey()).Result()
	if err != nil {
		return 0, types.Transient(err)
	}
	return int(n), nil
}

// Documents returns the members of the document set, sorted.
func (r *Redis) Documents(ctx context.Context) ([]string, error) {
	ids, err := r.client.SMembers(ctx, r.docsKey()).Result()
	if err != nil {
		return nil, types.Transient(err)
	}
	sort.Strings(ids)
	return ids, nil
}

// Close closes the underlying Redis client.
func (r *Redis) Close() error {
	return r.client.Close()
}
