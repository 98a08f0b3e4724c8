// Package geosource abstracts where device fixes come from. The sampler only
// sees the Client interface; concrete sources live in subpackages.
package geosource

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

var (
	// ErrPermissionDenied: the source exists but refuses to give fixes.
	ErrPermissionDenied = errors.New("geosource: permission denied")
	// ErrUnavailable: the source cannot produce a position right now.
	ErrUnavailable = errors.New("geosource: position unavailable")
	// ErrTimeout: no fix arrived within Options.Timeout.
	ErrTimeout = errors.New("geosource: timed out")
)

// Fix is one position reading.
type Fix struct {
	Latitude  float64
	Longitude float64
	Accuracy  float64
	Timestamp time.Time
}

// Options constrain a single fix request. MaxAge zero demands a fresh fix;
// a positive MaxAge lets the source answer from its recent cache.
type Options struct {
	HighAccuracy bool
	Timeout      time.Duration
	MaxAge       time.Duration
}

type Client interface {
	CurrentPosition(ctx context.Context, opts Options) (Fix, error)
}
