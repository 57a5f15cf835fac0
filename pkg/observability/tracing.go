// Package observability provides tracing for pitchline runs.
//
// Each pipeline stage (extract, clean, transform, write, ddl, upload, load) runs inside a
// span. Tracing is off unless Initialize is called with Enabled set; until then
// spans go to the global no-op provider and cost almost nothing.
package observability

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/ajitpratap0/pitchline"

var (
	mu       sync.RWMutex
	tracer   = otel.Tracer(instrumentationName)
	provider *sdktrace.TracerProvider

	stageHistogram metric.Float64Histogram
	histogramOnce  sync.Once
)

// Config contains tracing configuration
type Config struct {
	Enabled        bool
	ServiceName    string
	ServiceVersion string
	Environment    string
	SamplingRate   float64
	// Output receives exported spans; stderr when nil
	Output io.Writer
}

// Initialize installs the tracer provider described by config. Calling it
// again replaces the previous provider after flushing it.
func Initialize(config Config) error {
	if !config.Enabled {
		return nil
	}
	if config.ServiceName == "" {
		config.ServiceName = "pitchline"
	}

	if err := Shutdown(context.Background()); err != nil {
		return err
	}

	tp, err := initTracing(config)
	if err != nil {
		return err
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	mu.Lock()
	provider = tp
	tracer = tp.Tracer(instrumentationName)
	mu.Unlock()
	return nil
}

// Enabled reports whether a tracer provider is installed.
func Enabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return provider != nil
}

func getTracer() trace.Tracer {
	mu.RLock()
	defer mu.RUnlock()
	return tracer
}

func getHistogram() metric.Float64Histogram {
	histogramOnce.Do(func() {
		h, err := otel.Meter(instrumentationName).Float64Histogram(
			"pitchline.stage.duration",
			metric.WithDescription("Pipeline stage duration"),
			metric.WithUnit("s"),
		)
		if err != nil {
			otel.Handle(err)
		}
		stageHistogram = h
	})
	return stageHistogram
}

// Span wraps a trace span with buffered attributes and timing
type Span struct {
	span       trace.Span
	stage      string
	startTime  time.Time
	attributes []attribute.KeyValue
}

// StartStage starts a span for one pipeline stage on one table.
func StartStage(ctx context.Context, stage, table string) (context.Context, *Span) {
	ctx, span := getTracer().Start(ctx, "pitchline."+stage)
	s := &Span{span: span, stage: stage, startTime: time.Now()}
	s.SetAttribute("pitchline.stage", stage)
	if table != "" {
		s.SetAttribute("pitchline.table", table)
	}
	return ctx, s
}

// SetAttribute adds an attribute, applied when the span ends
func (s *Span) SetAttribute(key string, value interface{}) {
	var attr attribute.KeyValue

	switch v := value.(type) {
	case string:
		attr = attribute.String(key, v)
	case int:
		attr = attribute.Int(key, v)
	case int64:
		attr = attribute.Int64(key, v)
	case float64:
		attr = attribute.Float64(key, v)
	case bool:
		attr = attribute.Bool(key, v)
	default:
		attr = attribute.String(key, fmt.Sprintf("%v", v))
	}

	s.attributes = append(s.attributes, attr)
}

// End records err on the span, if any, and ends it.
func (s *Span) End(err error) {
	if err != nil {
		s.span.RecordError(err)
		s.span.SetStatus(codes.Error, err.Error())
	} else {
		s.span.SetStatus(codes.Ok, "")
	}
	if len(s.attributes) > 0 {
		s.span.SetAttributes(s.attributes...)
	}

	if h := getHistogram(); h != nil {
		h.Record(context.Background(), time.Since(s.startTime).Seconds(),
			metric.WithAttributes(attribute.String("stage", s.stage)))
	}

	s.span.End()
}

// InjectHeaders writes the trace context of ctx into outbound request headers.
func InjectHeaders(ctx context.Context, h http.Header) {
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(h))
}
