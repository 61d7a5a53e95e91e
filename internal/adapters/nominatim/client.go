// internal/adapters/nominatim/client.go
package nominatim

import (
	"context"
	crand "crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"hotel_pricing/internal/adapters/observability"
	"hotel_pricing/internal/domain"
)

// Client geocodes venue addresses against a Nominatim search endpoint.
// The public instance allows one request per second and requires a User-Agent.
type Client struct {
	base         string
	hc           *http.Client
	ua           string
	countryCodes string
	rl           *rate.Limiter
}

func New(base, userAgent string, rps int) (*Client, error) {
	if userAgent == "" {
		return nil, fmt.Errorf("user agent is required")
	}
	if _, err := url.Parse(base); err != nil || base == "" {
		return nil, fmt.Errorf("invalid base url %q", base)
	}
	if rps <= 0 {
		rps = 1
	}
	return &Client{
		base:         strings.TrimRight(base, "/"),
		hc:           &http.Client{Timeout: 20 * time.Second},
		ua:           userAgent,
		countryCodes: "mx",
		rl:           rate.NewLimiter(rate.Limit(rps), rps),
	}, nil
}

// WithCountryCodes restricts results to the given comma separated ISO codes ("" for none).
func (c *Client) WithCountryCodes(codes string) *Client {
	c.countryCodes = codes
	return c
}

type place struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// Geocode returns the best match for query, or nil when Nominatim has none.
func (c *Client) Geocode(ctx context.Context, query string) (*domain.Coords, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("format", "json")
	q.Set("limit", "1")
	if c.countryCodes != "" {
		q.Set("countrycodes", c.countryCodes)
	}

	var out []place
	if err := c.get(ctx, c.base+"/search?"+q.Encode(), &out); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	lat, err := strconv.ParseFloat(out[0].Lat, 64)
	if err != nil {
		return nil, fmt.Errorf("nominatim: bad lat %q: %w", out[0].Lat, err)
	}
	lon, err := strconv.ParseFloat(out[0].Lon, 64)
	if err != nil {
		return nil, fmt.Errorf("nominatim: bad lon %q: %w", out[0].Lon, err)
	}
	return &domain.Coords{Lat: lat, Lon: lon}, nil
}

// ---- Internals ----

var (
	ErrNotFound     = errors.New("nominatim: not found")
	ErrUnauthorized = errors.New("nominatim: unauthorized")
	ErrForbidden    = errors.New("nominatim: forbidden")
)

// get performs a GET with client-side rate limiting, retries, and JSON decode into out.
// Retries on 429 and transient 5xx, honoring Retry-After when provided.
func (c *Client) get(ctx context.Context, url string, out any) error {
	if err := c.rl.Wait(ctx); err != nil {
		return err
	}

	start := time.Now()
	status := 0
	defer func() { observability.ObserveExternal("nominatim", "search", status, time.Since(start)) }()

	var lastErr error
	for i := 0; i < 4; i++ {
		// build a fresh request each attempt
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", c.ua)

		resp, err := c.hc.Do(req)
		if err != nil {
			// network error or context canceled
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = err
			if i < 3 && sleepCtx(ctx, backoff(i)) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return lastErr
		}
		status = resp.StatusCode

		switch resp.StatusCode {
		case http.StatusOK:
			err := json.NewDecoder(resp.Body).Decode(out)
			resp.Body.Close()
			return err

		case http.StatusNoContent:
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			return nil

		case http.StatusNotFound:
			resp.Body.Close()
			return ErrNotFound

		case http.StatusUnauthorized:
			resp.Body.Close()
			return ErrUnauthorized

		case http.StatusForbidden:
			// Nominatim answers 403 to missing/blocked User-Agents.
			resp.Body.Close()
			return ErrForbidden

		case http.StatusTooManyRequests, http.StatusInternalServerError,
			http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			// Prefer server-provided Retry-After; otherwise exponential backoff.
			wait := retryAfter(resp)
			resp.Body.Close()
			if wait == 0 {
				wait = backoff(i)
			}
			lastErr = fmt.Errorf("remote %d", resp.StatusCode)
			if i < 3 && sleepCtx(ctx, wait) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return lastErr

		default:
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			return fmt.Errorf("bad status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
		}
	}

	return lastErr
}

// sleepCtx waits for d or returns early if ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// retryAfter parses Retry-After header (seconds or HTTP-date). Returns 0 if absent/invalid.
func retryAfter(resp *http.Response) time.Duration {
	h := resp.Header.Get("Retry-After")
	if h == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(h)); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(h); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// backoff doubles from 200ms per attempt with up to +50% jitter.
func backoff(i int) time.Duration {
	base := time.Duration(1<<i) * 200 * time.Millisecond
	var b [1]byte
	if _, err := crand.Read(b[:]); err != nil {
		return base
	}
	f := float64(b[0]) / 255.0
	return base + time.Duration(0.5*f*float64(base))
}
