// Package enrich resolves review scores for places from the remote scoring
// endpoint. Every failure mode resolves to place.Unavailable; callers never
// handle errors.
package enrich

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/hazyhaar/reviewbuddy/place"
)

// DefaultEndpoint is the public scoring endpoint.
const DefaultEndpoint = "https://score-google-place-api-bnwzz3dieq-zf.a.run.app/predict_google_place"

// Client calls the scoring endpoint. Single attempt per call, no retry.
type Client struct {
	endpoint string
	reviews  int
	timeout  time.Duration
	client   *http.Client
	breaker  *breaker
	logger   *slog.Logger
}

// Option configures a Client.
type Option func(*clientOptions)

type clientOptions struct {
	reviews          int
	timeout          time.Duration
	httpClient       *http.Client
	breakerThreshold int
	breakerReset     time.Duration
	now              func() time.Time
	logger           *slog.Logger
}

// WithReviews sets the number_of_reviews query parameter. Default: 10.
func WithReviews(n int) Option { return func(o *clientOptions) { o.reviews = n } }

// WithTimeout bounds each request. Default: 10s.
func WithTimeout(d time.Duration) Option { return func(o *clientOptions) { o.timeout = d } }

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(c *http.Client) Option { return func(o *clientOptions) { o.httpClient = c } }

// WithBreaker sets the failure threshold and open duration of the circuit
// breaker. Defaults: 5 failures, 30s.
func WithBreaker(threshold int, reset time.Duration) Option {
	return func(o *clientOptions) {
		o.breakerThreshold = threshold
		o.breakerReset = reset
	}
}

// WithClock sets the breaker clock (for testing).
func WithClock(now func() time.Time) Option { return func(o *clientOptions) { o.now = now } }

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option { return func(o *clientOptions) { o.logger = l } }

// New creates a Client for the given endpoint. An empty endpoint uses
// DefaultEndpoint.
func New(endpoint string, opts ...Option) *Client {
	o := clientOptions{
		reviews: 10,
		timeout: 10 * time.Second,
		logger:  slog.Default(),
	}
	for _, fn := range opts {
		fn(&o)
	}
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if o.httpClient == nil {
		o.httpClient = &http.Client{}
	}
	return &Client{
		endpoint: endpoint,
		reviews:  o.reviews,
		timeout:  o.timeout,
		client:   o.httpClient,
		breaker:  newBreaker(o.breakerThreshold, o.breakerReset, o.now),
		logger:   o.logger,
	}
}

// FetchScore resolves the score for r. A record without a city, a tripped
// breaker, a transport error, and a non-2xx answer all yield Unavailable.
func (c *Client) FetchScore(ctx context.Context, r place.Record) place.Score {
	score, err := c.fetch(ctx, r)
	if err != nil {
		level := slog.LevelWarn
		if errors.Is(err, place.ErrMalformedAddress) || errors.Is(err, context.Canceled) {
			level = slog.LevelDebug
		}
		c.logger.Log(ctx, level, "enrich: score unavailable",
			"name", r.Name, "address", r.Address, "error", err)
		return place.Unavailable()
	}
	c.logger.Debug("enrich: score received", "name", r.Name, "score", score)
	return place.Value(score)
}

// RequestURL builds the lookup URL for r. ok is false when r has no city.
func (c *Client) RequestURL(r place.Record) (string, bool) {
	city, ok := r.City()
	if !ok {
		return "", false
	}
	q := url.Values{}
	q.Set("place_name", r.Name+" "+city)
	q.Set("number_of_reviews", fmt.Sprint(c.reviews))
	return c.endpoint + "?" + q.Encode(), true
}

func (c *Client) fetch(ctx context.Context, r place.Record) (float64, error) {
	u, ok := c.RequestURL(r)
	if !ok {
		return 0, fmt.Errorf("enrich: %q: %w", r.Address, place.ErrMalformedAddress)
	}
	if !c.breaker.allow() {
		return 0, fmt.Errorf("enrich: circuit open: %w", place.ErrNetworkFailure)
	}

	score, err := c.get(ctx, u)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			c.breaker.release()
		} else {
			c.breaker.failure()
		}
		return 0, err
	}
	c.breaker.success()
	return score, nil
}

func (c *Client) get(ctx context.Context, u string) (float64, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, fmt.Errorf("enrich: new request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return 0, err
		}
		return 0, fmt.Errorf("enrich: get: %v: %w", err, place.ErrNetworkFailure)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return 0, fmt.Errorf("enrich: status %d: %w", resp.StatusCode, place.ErrNonSuccessResponse)
	}

	var body struct {
		Score *float64 `json:"score"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body); err != nil {
		return 0, fmt.Errorf("enrich: decode: %v: %w", err, place.ErrNetworkFailure)
	}
	if body.Score == nil {
		return 0, fmt.Errorf("enrich: response has no score: %w", place.ErrNetworkFailure)
	}
	return *body.Score, nil
}
