// Package feed fetches advantages from the sportsbook odds API.
package feed

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/vietddude/edgesync/internal/core/domain"
	"github.com/vietddude/edgesync/internal/ingest/metrics"
)

// maxBodyBytes bounds how much of a response is read into memory.
const maxBodyBytes = 32 << 20

// Client performs single requests against the advantages endpoint.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// NewClient creates a feed client with a bounded connect and request timeout.
func NewClient(cfg Config) *Client {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.AdvantageType == "" {
		cfg.AdvantageType = DefaultAdvantageType
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}

	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   cfg.ConnectTimeout,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				TLSClientConfig:     &tls.Config{MinVersion: tls.VersionTLS12},
				TLSHandshakeTimeout: cfg.ConnectTimeout,
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// FetchAdvantages performs one GET against the feed and returns the records
// under "advantages", or an empty slice when the key is absent.
func (c *Client) FetchAdvantages(ctx context.Context) ([]domain.RawAdvantage, error) {
	start := time.Now()
	defer func() {
		metrics.FeedLatency.Observe(time.Since(start).Seconds())
	}()

	endpoint, err := url.Parse(c.cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse feed url: %w", err)
	}
	q := endpoint.Query()
	q.Set("type", c.cfg.AdvantageType)
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("x-rapidapi-key", c.cfg.APIKey)
	req.Header.Set("x-rapidapi-host", c.cfg.APIHost)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.FeedRequestsTotal.WithLabelValues("network").Inc()
		return nil, fmt.Errorf("%w: %w", domain.ErrNetwork, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		metrics.FeedRequestsTotal.WithLabelValues("network").Inc()
		return nil, fmt.Errorf("%w: read response: %w", domain.ErrNetwork, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.FeedRequestsTotal.WithLabelValues(statusClass(resp.StatusCode)).Inc()
		return nil, &domain.HTTPStatusError{
			StatusCode: resp.StatusCode,
			Body:       truncate(string(body), 512),
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}

	advantages, err := decodeAdvantages(body)
	if err != nil {
		metrics.FeedRequestsTotal.WithLabelValues("decode").Inc()
		return nil, err
	}

	metrics.FeedRequestsTotal.WithLabelValues("2xx").Inc()
	return advantages, nil
}

func decodeAdvantages(body []byte) ([]domain.RawAdvantage, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrDecode, err)
	}
	// A JSON null unmarshals into a nil map without error
	if envelope == nil {
		return nil, fmt.Errorf("%w: response is not a JSON object", domain.ErrDecode)
	}

	raw, ok := envelope["advantages"]
	if !ok || string(raw) == "null" {
		return []domain.RawAdvantage{}, nil
	}

	var elements []json.RawMessage
	if err := json.Unmarshal(raw, &elements); err != nil {
		return nil, fmt.Errorf("%w: advantages: %w", domain.ErrDecode, err)
	}

	advantages := make([]domain.RawAdvantage, 0, len(elements))
	for _, element := range elements {
		advantages = append(advantages, decodeAdvantage(element))
	}
	return advantages, nil
}

// decodeAdvantage decodes one record. A record that does not fit the
// expected shape is kept, marked Invalid, so one bad record cannot fail
// the whole response.
func decodeAdvantage(element json.RawMessage) domain.RawAdvantage {
	var adv domain.RawAdvantage
	err := json.Unmarshal(element, &adv)
	if err == nil {
		return adv
	}

	invalid := &domain.DataShapeError{Field: "record", Reason: err.Error()}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		invalid.Field = typeErr.Field
		invalid.Reason = fmt.Sprintf("cannot hold a JSON %s", typeErr.Value)
	}

	var partial struct {
		Key json.RawMessage `json:"key"`
	}
	var key string
	if json.Unmarshal(element, &partial) == nil && json.Unmarshal(partial.Key, &key) == nil && key != "" {
		invalid.Key = key
		return domain.RawAdvantage{Key: &key, Invalid: invalid}
	}
	return domain.RawAdvantage{Invalid: invalid}
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}

func statusClass(code int) string {
	return fmt.Sprintf("%dxx", code/100)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
