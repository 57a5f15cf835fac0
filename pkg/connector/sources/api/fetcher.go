// Package api provides the request plumbing shared by HTTP table sources.
//
// A Fetcher performs one GET per call and returns a Stamp describing the
// exchange: a fresh request id, when the request was sent, the status code,
// how long it took and the raw body. Parse turns a stamp's body into a table.
package api

import (
	"context"
	"io"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"go.uber.org/zap"

	"github.com/ajitpratap0/pitchline/pkg/clients"
	"github.com/ajitpratap0/pitchline/pkg/config"
	"github.com/ajitpratap0/pitchline/pkg/errors"
	"github.com/ajitpratap0/pitchline/pkg/ids"
	"github.com/ajitpratap0/pitchline/pkg/json"
	"github.com/ajitpratap0/pitchline/pkg/logger"
	"github.com/ajitpratap0/pitchline/pkg/metrics"
	"github.com/ajitpratap0/pitchline/pkg/schema"
	"github.com/ajitpratap0/pitchline/pkg/table"
)

// Stamp records one request/response exchange.
type Stamp struct {
	RequestID   string
	RequestTime time.Time
	URL         string
	// Endpoint is the last path segment of URL, e.g. "fixtures"
	Endpoint   string
	StatusCode int
	Elapsed    time.Duration
	Body       []byte
}

// ElapsedMS returns the response time in milliseconds.
func (s *Stamp) ElapsedMS() float64 {
	return float64(s.Elapsed) / float64(time.Millisecond)
}

// Fetcher issues GET requests and parses their bodies into tables.
//
// The only state a Fetcher carries between calls is its id generator, so a
// single Fetcher may serve many sources.
type Fetcher struct {
	client   *clients.HTTPClient
	ids      ids.Generator
	engine   *schema.TypeInferenceEngine
	mem      memory.Allocator
	logger   *zap.Logger
	annotate bool
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithIDGenerator replaces the default UUID generator.
func WithIDGenerator(g ids.Generator) Option {
	return func(f *Fetcher) { f.ids = g }
}

// WithAnnotation appends the request stamp columns to every parsed table.
func WithAnnotation(on bool) Option {
	return func(f *Fetcher) { f.annotate = on }
}

// WithAllocator sets the Arrow allocator for parsed tables.
func WithAllocator(mem memory.Allocator) Option {
	return func(f *Fetcher) { f.mem = mem }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(f *Fetcher) { f.logger = l }
}

// NewFetcher creates a Fetcher sending requests through client.
func NewFetcher(client *clients.HTTPClient, opts ...Option) *Fetcher {
	f := &Fetcher{
		client: client,
		mem:    memory.DefaultAllocator,
		logger: logger.Get(),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.ids == nil {
		f.ids = ids.NewUUIDGenerator()
	}
	f.logger = f.logger.With(zap.String("component", "api_fetcher"))
	f.engine = schema.NewTypeInferenceEngine(f.logger, schema.WithAllocator(f.mem))
	return f
}

// ClientConfig derives HTTP client settings from the source configuration.
func ClientConfig(src config.SourceConfig) *clients.HTTPConfig {
	cfg := clients.DefaultHTTPConfig()
	cfg.RequestTimeout = src.RequestTimeout
	cfg.RateLimit = float64(src.RateLimitPerSec)
	cfg.RateBurst = src.RateLimitPerSec
	if src.UserAgent != "" {
		cfg.UserAgent = src.UserAgent
	}
	cfg.Headers = src.Headers
	return cfg
}

// Get performs a GET on rawURL. A transport failure or a non-2xx status is a
// transport error; in the latter case the returned stamp is still populated.
func (f *Fetcher) Get(ctx context.Context, rawURL string) (*Stamp, error) {
	stamp := &Stamp{
		RequestID:   f.ids.NewID(),
		RequestTime: time.Now().UTC(),
		URL:         rawURL,
		Endpoint:    endpointOf(rawURL),
	}
	log := logger.WithContext(logger.WithRequestID(ctx, stamp.RequestID), f.logger).
		With(zap.String("endpoint", stamp.Endpoint))

	start := time.Now()
	resp, err := f.client.Get(ctx, rawURL, map[string]string{"X-Request-ID": stamp.RequestID})
	if err != nil {
		stamp.Elapsed = time.Since(start)
		metrics.RequestsTotal.WithLabelValues(stamp.Endpoint, "error").Inc()
		log.Error("request failed", zap.Error(err))
		return nil, errors.Wrap(err, errors.ErrorTypeTransport, "request failed").
			WithDetail("url", rawURL).
			WithDetail("request_id", stamp.RequestID)
	}
	defer resp.Body.Close()

	stamp.StatusCode = resp.StatusCode
	body, err := io.ReadAll(resp.Body)
	stamp.Elapsed = time.Since(start)
	metrics.RequestsTotal.WithLabelValues(stamp.Endpoint, strconv.Itoa(resp.StatusCode)).Inc()
	metrics.RequestDuration.WithLabelValues(stamp.Endpoint).Observe(stamp.Elapsed.Seconds())
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeTransport, "failed to read response body").
			WithDetail("url", rawURL).
			WithDetail("request_id", stamp.RequestID)
	}
	stamp.Body = body

	log.Debug("request completed",
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", stamp.Elapsed),
		zap.Int("bytes", len(body)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return stamp, errors.Newf(errors.ErrorTypeTransport, "unexpected status %d from %s", resp.StatusCode, rawURL).
			WithDetail("status", resp.StatusCode).
			WithDetail("request_id", stamp.RequestID)
	}
	return stamp, nil
}

// Parse builds a table from the stamp's body. With an empty key the body is
// the row array and the table is named after the endpoint; otherwise the rows
// are the array under key and the table is named key. A missing or null
// value gives an empty table.
func (f *Fetcher) Parse(stamp *Stamp, key string) (*table.Table, error) {
	name := key
	if name == "" {
		name = stamp.Endpoint
	}

	rows, err := json.DecodeRows(stamp.Body, key)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeSchema, "failed to parse response").
			WithDetail("table", name).
			WithDetail("request_id", stamp.RequestID)
	}

	t, err := f.engine.Build(name, rows)
	if err != nil {
		return nil, err
	}
	if !f.annotate {
		return t, nil
	}
	return Annotate(f.mem, t, stamp)
}

func endpointOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	p := strings.TrimSuffix(u.Path, "/")
	if p == "" {
		return u.Host
	}
	return path.Base(p)
}

