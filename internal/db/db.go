package db

import (
	"context"
	"time"
)

// Store is the main database facade combining all sub-interfaces.
//
//nolint:interfacebloat // facade; consumers depend on narrow sub-interfaces
type Store interface {
	Pinger
	HashStore
	RevisionStore
	SetStore
	SortedSetStore
	KVStore
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HashStore provides hash-based key-value operations.
type HashStore interface {
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	Exists(ctx context.Context, key string) (bool, error)
}

// RevisionField is the hash field holding the optimistic-lock revision.
const RevisionField = "revision"

// IndexOp names a set write that rides along with a revisioned hash write.
type IndexOp string

const (
	IndexSAdd IndexOp = "sadd"
	IndexSRem IndexOp = "srem"
	IndexZAdd IndexOp = "zadd"
)

// IndexUpdate adds or removes Member in the set at Key. Score applies to IndexZAdd only.
type IndexUpdate struct {
	Op     IndexOp
	Key    string
	Member string
	Score  float64
}

// RevisionStore provides atomic compare-and-swap writes of revisioned hashes.
type RevisionStore interface {
	// HSetIfRevision writes fields only when the stored revision equals expected
	// (a missing hash has revision 0). Empty values delete their field.
	// The index updates are applied in the same atomic step, and only on success.
	// Returns the new revision, or a *ConflictError carrying the current one.
	HSetIfRevision(
		ctx context.Context, key string, expected int64, fields map[string]string, updates ...IndexUpdate,
	) (int64, error)
}

// SetStore provides unordered set reads.
type SetStore interface {
	SMembers(ctx context.Context, key string) ([]string, error)
}

// SortedSetStore provides score-ordered set reads.
type SortedSetStore interface {
	// ZRevRange returns members from highest to lowest score, ranks start..stop inclusive.
	ZRevRange(ctx context.Context, key string, start, stop int64) ([]string, error)
}

// KVStore provides simple key-value operations.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}
