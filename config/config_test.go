package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SHINGLE_SIZE", "")
	t.Setenv("INDEX_BACKEND", "")
	t.Setenv("JOB_TIMEOUT", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultShingleSize, cfg.Fingerprint.ShingleSize)
	assert.Equal(t, DefaultMinTokens, cfg.Fingerprint.MinTokens)
	assert.Equal(t, DefaultReportThreshold, cfg.Scoring.ReportThreshold)
	assert.Equal(t, DefaultJobTimeout, cfg.Scheduler.JobTimeout)
	assert.Equal(t, "memory", cfg.Index.Backend)
	assert.GreaterOrEqual(t, cfg.Scheduler.Workers, 1)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SHINGLE_SIZE", "4")
	t.Setenv("JOB_TIMEOUT", "90")
	t.Setenv("CALL_TIMEOUT", "5s")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("MINHASH_ENABLED", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Fingerprint.ShingleSize)
	assert.True(t, cfg.Fingerprint.MinHashEnabled)
	assert.Equal(t, 90*time.Second, cfg.Scheduler.JobTimeout)
	assert.Equal(t, 5*time.Second, cfg.Scheduler.CallTimeout)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero shingle size", func(c *Config) { c.Fingerprint.ShingleSize = 0 }},
		{"min tokens below shingle size", func(c *Config) { c.Fingerprint.MinTokens = 2 }},
		{"threshold above one", func(c *Config) { c.Scoring.ReportThreshold = 1.5 }},
		{"no workers", func(c *Config) { c.Scheduler.Workers = 0 }},
		{"unknown backend", func(c *Config) { c.Index.Backend = "chroma" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("INDEX_BACKEND", "")
			cfg, err := Load()
			require.NoError(t, err)
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
