package fake

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/BearBump/OrderPulse/internal/integrations/geosource"
)

// FakeClient — детерминированный источник координат (пока нет реального GPS
// на агенте). Двигает точку по кругу вокруг seed-позиции, шаг за шагом.
type FakeClient struct {
	seed string

	mu   sync.Mutex
	step int

	last   geosource.Fix
	hasFix bool
}

func New(seed string) *FakeClient { return &FakeClient{seed: seed} }

func (f *FakeClient) CurrentPosition(ctx context.Context, opts geosource.Options) (geosource.Fix, error) {
	if err := ctx.Err(); err != nil {
		return geosource.Fix{}, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	now := time.Now().UTC()
	if opts.MaxAge > 0 && f.hasFix && now.Sub(f.last.Timestamp) <= opts.MaxAge {
		return f.last, nil
	}

	h := fnv.New32a()
	_, _ = h.Write([]byte(f.seed))
	v := h.Sum32()

	// База в пределах города, дальше маленькие детерминированные сдвиги.
	baseLat := 51.0 + float64(v%1000)/10000.0
	baseLng := 71.0 + float64(v/1000%1000)/10000.0

	fix := geosource.Fix{
		Latitude:  baseLat + float64(f.step%60)*0.0001,
		Longitude: baseLng + float64(f.step%60)*0.0001,
		Accuracy:  10,
		Timestamp: now,
	}
	if opts.HighAccuracy {
		fix.Accuracy = 5
	}
	f.step++
	f.last = fix
	f.hasFix = true
	return fix, nil
}
