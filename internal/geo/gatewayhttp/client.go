package gatewayhttp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/UjenziPro/HaulTrack/internal/geo"
	"github.com/pkg/errors"
)

// Client опрашивает HTTP-шлюз GPS-трекера (телефон водителя или бортовой
// модуль) и отдаёт позиции как geo.Source.
type Client struct {
	baseURL  string
	apiKey   string
	deviceID string

	pollInterval time.Duration
	maxFixAge    time.Duration

	httpc *http.Client
}

func New(baseURL, apiKey, deviceID string, pollInterval, maxFixAge time.Duration) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:9000"
	}
	if pollInterval <= 0 {
		pollInterval = 1 * time.Second
	}
	if maxFixAge <= 0 {
		maxFixAge = 5 * time.Second
	}
	return &Client{
		baseURL:      baseURL,
		apiKey:       apiKey,
		deviceID:     deviceID,
		pollInterval: pollInterval,
		maxFixAge:    maxFixAge,
		httpc: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type positionResp struct {
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	Heading    *float64  `json:"heading,omitempty"`
	Speed      *float64  `json:"speed,omitempty"`
	Accuracy   *float64  `json:"accuracy,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Position запрашивает текущую позицию устройства. Кэшированная на шлюзе
// позиция старше maxFixAge считается протухшей.
func (c *Client) Position(ctx context.Context) (geo.Fix, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return geo.Fix{}, errors.Wrap(err, "parse base url")
	}
	u.Path = fmt.Sprintf("/v1/devices/%s/position", url.PathEscape(c.deviceID))
	if c.apiKey != "" {
		q := u.Query()
		q.Set("apiKey", c.apiKey)
		u.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return geo.Fix{}, errors.Wrap(err, "new request")
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return geo.Fix{}, errors.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return geo.Fix{}, fmt.Errorf("device %s not found", c.deviceID)
	}
	if resp.StatusCode/100 != 2 {
		return geo.Fix{}, fmt.Errorf("gps gateway http %d", resp.StatusCode)
	}

	var r positionResp
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return geo.Fix{}, errors.Wrap(err, "decode")
	}

	if age := time.Since(r.RecordedAt); age > c.maxFixAge {
		return geo.Fix{}, fmt.Errorf("stale fix: age %s", age.Truncate(time.Millisecond))
	}

	return geo.Fix{
		Latitude:  r.Latitude,
		Longitude: r.Longitude,
		Heading:   r.Heading,
		Speed:     r.Speed,
		Accuracy:  r.Accuracy,
		At:        r.RecordedAt,
	}, nil
}

func (c *Client) Watch(ctx context.Context) (<-chan geo.Fix, error) {
	out := make(chan geo.Fix)
	go func() {
		defer close(out)
		t := time.NewTicker(c.pollInterval)
		defer t.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				fix, err := c.Position(ctx)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					slog.Warn("gps gateway poll", "device_id", c.deviceID, "error", err.Error())
					continue
				}
				select {
				case out <- fix:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
