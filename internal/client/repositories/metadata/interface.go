package metadata

import (
	"context"
	"time"
)

// Well-known keys.
const (
	KeyLastSyncAt    = "last_sync_at"
	KeyLastRefreshAt = "last_refresh_at"
)

// Repository is a small key/value store living next to the records.
type Repository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error

	// GetTime returns the zero time when key is absent.
	GetTime(ctx context.Context, key string) (time.Time, error)
	SetTime(ctx context.Context, key string, t time.Time) error
}
