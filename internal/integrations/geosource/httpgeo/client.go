// Package httpgeo pulls fixes from a device bridge over HTTP. The bridge is
// a small companion service on the courier's device that exposes the last
// GPS reading at GET /position.
package httpgeo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/BearBump/OrderPulse/internal/integrations/geosource"
)

type Client struct {
	baseURL string
	httpc   *http.Client
}

func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:9100"
	}
	return &Client{
		baseURL: baseURL,
		httpc: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

type positionResp struct {
	Status string `json:"status"`
	Data   struct {
		Latitude  float64   `json:"latitude"`
		Longitude float64   `json:"longitude"`
		Accuracy  float64   `json:"accuracy"`
		Timestamp time.Time `json:"timestamp"`
	} `json:"data"`
}

func (c *Client) CurrentPosition(ctx context.Context, opts geosource.Options) (geosource.Fix, error) {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	u, err := url.Parse(c.baseURL)
	if err != nil {
		return geosource.Fix{}, errors.Wrap(err, "parse base url")
	}
	u.Path = "/position"

	q := u.Query()
	q.Set("maxAgeMs", strconv.FormatInt(opts.MaxAge.Milliseconds(), 10))
	if opts.HighAccuracy {
		q.Set("highAccuracy", "true")
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return geosource.Fix{}, errors.Wrap(err, "new request")
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return geosource.Fix{}, geosource.ErrTimeout
		}
		return geosource.Fix{}, errors.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusForbidden:
		return geosource.Fix{}, geosource.ErrPermissionDenied
	case http.StatusServiceUnavailable:
		return geosource.Fix{}, geosource.ErrUnavailable
	}
	if resp.StatusCode/100 != 2 {
		return geosource.Fix{}, fmt.Errorf("device bridge http %d", resp.StatusCode)
	}

	var r positionResp
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return geosource.Fix{}, errors.Wrap(err, "decode")
	}
	if r.Status != "ok" {
		return geosource.Fix{}, fmt.Errorf("device bridge status=%s", r.Status)
	}

	fix := geosource.Fix{
		Latitude:  r.Data.Latitude,
		Longitude: r.Data.Longitude,
		Accuracy:  r.Data.Accuracy,
		Timestamp: r.Data.Timestamp,
	}
	if fix.Timestamp.IsZero() {
		fix.Timestamp = time.Now().UTC()
	}
	return fix, nil
}
