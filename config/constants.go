package config

import "time"

// Fingerprinting Constants
const (
	// DefaultShingleSize is the number of tokens per shingle
	DefaultShingleSize = 5

	// DefaultMinTokens is the shortest normalized text that can be fingerprinted
	DefaultMinTokens = 20

	// DefaultMaxTokens truncates pathological inputs before shingling
	DefaultMaxTokens = 200000

	// DefaultMinHashFunctions is the sketch size when min-hash indexing is enabled
	DefaultMinHashFunctions = 64
)

// Scoring Constants
const (
	// DefaultReportThreshold is the minimum similarity a match must reach to be reported
	DefaultReportThreshold = 0.05

	// DefaultMergeGap merges matched runs separated by fewer tokens than this
	DefaultMergeGap = 2

	// DefaultConfidenceScale is the shared-shingle count at which confidence saturates to ~63%
	DefaultConfidenceScale = 25.0

	// DefaultMaxSegments caps the segments stored per match
	DefaultMaxSegments = 100

	// DefaultMinSharedFingerprints is the candidate generation floor
	DefaultMinSharedFingerprints = 1
)

// Scheduling Constants
const (
	// DefaultQueueSize bounds the number of PENDING jobs waiting for a worker
	DefaultQueueSize = 1024

	// DefaultJobTimeout is the wall-clock budget of a single job
	DefaultJobTimeout = 10 * time.Minute

	// DefaultCallTimeout bounds each storage or network call
	DefaultCallTimeout = 30 * time.Second

	// DefaultMaxAttempts is the retry budget for transient failures
	DefaultMaxAttempts = 3

	// DefaultRetryBaseDelay is the first backoff interval
	DefaultRetryBaseDelay = 200 * time.Millisecond

	// DefaultSweepSchedule is the cron schedule of the stale-job sweep
	DefaultSweepSchedule = "@every 1m"

	// DefaultIndexWorkers is the number of concurrent fetches during a rebuild
	DefaultIndexWorkers = 5
)

// Storage Constants
const (
	// DefaultDBPath is the SQLite database holding jobs and results
	DefaultDBPath = "data/simcheck.db"

	// DefaultDocumentPrefix is the S3 key prefix under which documents live
	DefaultDocumentPrefix = "documents/"

	// MaxContentBytes caps the size of a document body read from storage
	MaxContentBytes = 10 << 20

	// DefaultRedisKeyPrefix namespaces index keys in Redis
	DefaultRedisKeyPrefix = "simcheck"
)

// Messaging Constants
const (
	// DefaultDocumentTopic carries document created/deleted events
	DefaultDocumentTopic = "document-events"

	// DefaultResultTopic receives job completion events
	DefaultResultTopic = "detection-results"

	// DefaultConsumerGroup is the Kafka consumer group of the indexer
	DefaultConsumerGroup = "simcheck-indexer"
)
