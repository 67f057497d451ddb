// Package geocode resolves coordinates to a human-readable address using a
// Nominatim-compatible reverse geocoding endpoint.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"public-eye-service/config"
	"public-eye-service/internal/apperror"

	"github.com/avast/retry-go"
	"go.uber.org/zap"
)

// AddressNotFound is returned when the upstream knows no address for a point.
const AddressNotFound = "Address not found"

const (
	maxAttempts = 3
	retryDelay  = 200 * time.Millisecond
)

type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	logger     *zap.Logger
	retryDelay time.Duration
}

func NewClient(cfg config.GeocoderConfig, logger *zap.Logger) *Client {
	return &Client{
		baseURL:    cfg.BaseURL,
		userAgent:  cfg.UserAgent,
		httpClient: &http.Client{Timeout: cfg.Timeout()},
		logger:     logger,
		retryDelay: retryDelay,
	}
}

type reverseResponse struct {
	DisplayName string `json:"display_name"`
}

// statusError is an upstream reply with a non-2xx status.
type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("geocoder returned %d", e.code)
}

// Reverse returns the address at lat/lon. Network errors and 5xx/429 replies
// are retried; exhausted retries yield an upstream error.
func (c *Client) Reverse(ctx context.Context, lat, lon float64) (string, error) {
	q := url.Values{}
	q.Set("format", "jsonv2")
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	endpoint := c.baseURL + "/reverse?" + q.Encode()

	var address string
	err := retry.Do(
		func() error {
			a, err := c.fetch(ctx, endpoint)
			if err != nil {
				return err
			}
			address = a
			return nil
		},
		retry.Attempts(maxAttempts),
		retry.Delay(c.retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			if ctx.Err() != nil {
				return false
			}
			if se, ok := err.(*statusError); ok {
				return se.code >= 500 || se.code == http.StatusTooManyRequests
			}
			return true
		}),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Warn("geocode: reverse failed, retrying", zap.Uint("attempt", n+1), zap.Error(err))
		}),
	)
	if err != nil {
		return "", apperror.Upstream("failed to fetch address", err)
	}
	return address, nil
}

func (c *Client) fetch(ctx context.Context, endpoint string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &statusError{code: resp.StatusCode}
	}

	var body reverseResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode reply: %w", err)
	}
	if body.DisplayName == "" {
		return AddressNotFound, nil
	}
	return body.DisplayName, nil
}
