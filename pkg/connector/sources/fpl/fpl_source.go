// Package fpl implements the Fantasy Premier League table source.
package fpl

import (
	"context"
	"iter"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/ajitpratap0/pitchline/pkg/clients"
	"github.com/ajitpratap0/pitchline/pkg/config"
	"github.com/ajitpratap0/pitchline/pkg/connector/core"
	"github.com/ajitpratap0/pitchline/pkg/connector/sources/api"
	"github.com/ajitpratap0/pitchline/pkg/errors"
	"github.com/ajitpratap0/pitchline/pkg/logger"
	"github.com/ajitpratap0/pitchline/pkg/observability"
)

// DefaultBaseURL is the public FPL API root.
const DefaultBaseURL = "https://fantasy.premierleague.com/api/"

// Endpoint is one API path and the keys of its body that hold tables. An
// endpoint without keys returns its rows as the whole body and yields one
// table named after the path.
type Endpoint struct {
	Path string
	Keys []string
}

// DefaultEndpoints lists what a run extracts, in order.
var DefaultEndpoints = []Endpoint{
	{Path: "bootstrap-static", Keys: []string{"events", "phases", "teams", "elements"}},
	{Path: "fixtures"},
}

// Source extracts FPL tables over HTTP.
type Source struct {
	name      string
	base      *url.URL
	endpoints []Endpoint
	client    *clients.HTTPClient
	fetcher   *api.Fetcher
	logger    *zap.Logger
}

// NewSource creates the FPL source from cfg.Source. Fetcher options are
// passed through, mostly to inject id generators and allocators in tests.
func NewSource(cfg *config.Config, opts ...api.Option) (*Source, error) {
	base := cfg.Source.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid base url").WithDetail("base_url", base)
	}

	log := logger.Get().With(zap.String("component", "fpl_source"))
	client := clients.NewHTTPClient(api.ClientConfig(cfg.Source), log)

	opts = append([]api.Option{api.WithAnnotation(cfg.Source.AnnotateRequests), api.WithLogger(log)}, opts...)
	return &Source{
		name:      "fpl",
		base:      u,
		endpoints: DefaultEndpoints,
		client:    client,
		fetcher:   api.NewFetcher(client, opts...),
		logger:    log,
	}, nil
}

// Name returns "fpl".
func (s *Source) Name() string { return s.name }

// Endpoints returns the endpoints the source visits, in order.
func (s *Source) Endpoints() []Endpoint { return s.endpoints }

// URL returns the absolute URL of endpoint path.
func (s *Source) URL(path string) string {
	return s.base.ResolveReference(&url.URL{Path: path}).String()
}

// Generate fetches each endpoint once and yields its tables in order.
func (s *Source) Generate(ctx context.Context) iter.Seq2[core.NamedTable, error] {
	return func(yield func(core.NamedTable, error) bool) {
		for _, ep := range s.endpoints {
			spanCtx, span := observability.StartStage(ctx, "extract", ep.Path)
			stamp, err := s.fetcher.Get(spanCtx, s.URL(ep.Path))
			span.End(err)
			if err != nil {
				yield(core.NamedTable{}, err)
				return
			}

			keys := ep.Keys
			if len(keys) == 0 {
				keys = []string{""}
			}
			for _, key := range keys {
				t, err := s.fetcher.Parse(stamp, key)
				if err != nil {
					yield(core.NamedTable{}, err)
					return
				}
				s.logger.Debug("table extracted",
					zap.String("table", t.Name()),
					zap.String("request_id", stamp.RequestID),
					zap.Int64("rows", t.NumRows()),
					zap.Int("columns", t.NumCols()))
				if !yield(core.NamedTable{Name: t.Name(), Table: t}, nil) {
					return
				}
			}
		}
	}
}

// Stats returns request counters for the source's HTTP client.
func (s *Source) Stats() clients.HTTPStats { return s.client.GetStats() }

// Close logs the request counters and releases idle HTTP connections.
func (s *Source) Close() error {
	stats := s.Stats()
	s.logger.Debug("fpl source closed",
		zap.Int64("requests", stats.TotalRequests),
		zap.Int64("failed_requests", stats.FailedRequests),
		zap.Float64("success_rate", stats.SuccessRate))
	return s.client.Close()
}
