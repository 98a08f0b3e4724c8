package cache

import (
	"context"
	"time"
)

// BytesCache is a best-effort byte store. Implementations may lose entries
// at any time; callers fall back to the source of truth on a miss.
type BytesCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}
