package fred

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/areed1192/tap-federal-reserve/internal/metrics"
)

const (
	DefaultBaseURL = "https://api.stlouisfed.org"

	seriesPath = "/fred/series"
)

var (
	// ErrMissingSeries is returned when a successful response has no seriess key.
	ErrMissingSeries = errors.New("response missing seriess")

	ErrMalformedResponse = errors.New("malformed response")
)

// SeriesResponse is the body of a successful /fred/series call. Series
// records are kept as decoded maps so they can be re-emitted unmodified.
type SeriesResponse struct {
	RealtimeStart string           `json:"realtime_start"`
	RealtimeEnd   string           `json:"realtime_end"`
	Seriess       []map[string]any `json:"seriess"`
}

// APIError is an upstream rejection: any response with status >= 400.
type APIError struct {
	StatusCode int
	Code       int
	Message    string
	Body       []byte
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("fred api rejected request: status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("fred api rejected request: status %d", e.StatusCode)
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(baseURL, "/")
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

type Client struct {
	apiKey     string
	baseURL    string
	userAgent  string
	httpClient *http.Client
	logger     *zap.Logger
	metrics    *metrics.Metrics
}

// New returns a client for the FRED API. No request timeout is set on the
// default transport; callers bound a request through its context.
func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:     apiKey,
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{},
		logger:     zap.NewNop(),
	}

	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetSeries issues a single GET for one series. realtimeStart and
// realtimeEnd are YYYY-MM-DD strings; empty values are omitted from the
// query so the API applies its own default of today.
func (c *Client) GetSeries(ctx context.Context, seriesID, realtimeStart, realtimeEnd string) (*SeriesResponse, error) {
	params := url.Values{}
	params.Set("series_id", seriesID)
	params.Set("api_key", c.apiKey)
	params.Set("file_type", "json")
	if realtimeStart != "" {
		params.Set("realtime_start", realtimeStart)
	}
	if realtimeEnd != "" {
		params.Set("realtime_end", realtimeEnd)
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodGet,
		c.baseURL+seriesPath+"?"+params.Encode(),
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("building series request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	c.logger.Info("fetching series",
		zap.String("series_id", seriesID),
		zap.String("realtime_start", realtimeStart),
		zap.String("realtime_end", realtimeEnd),
	)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.ObserveRequest(0, time.Since(start))
		return nil, fmt.Errorf("requesting series %q: %w", seriesID, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	c.metrics.ObserveRequest(resp.StatusCode, time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("reading series response: %w", err)
	}

	c.logger.Debug("series response",
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(body)),
		zap.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, newAPIError(resp.StatusCode, body)
	}

	return decodeSeries(body)
}

func decodeSeries(body []byte) (*SeriesResponse, error) {
	var raw struct {
		RealtimeStart string            `json:"realtime_start"`
		RealtimeEnd   string            `json:"realtime_end"`
		Seriess       *[]map[string]any `json:"seriess"`
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	// keep upstream numbers exactly as sent
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	if raw.Seriess == nil {
		return nil, ErrMissingSeries
	}

	return &SeriesResponse{
		RealtimeStart: raw.RealtimeStart,
		RealtimeEnd:   raw.RealtimeEnd,
		Seriess:       *raw.Seriess,
	}, nil
}

func newAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{
		StatusCode: status,
		Body:       body,
	}

	var payload struct {
		Code    int    `json:"error_code"`
		Message string `json:"error_message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		apiErr.Code = payload.Code
		apiErr.Message = payload.Message
	}
	return apiErr
}
