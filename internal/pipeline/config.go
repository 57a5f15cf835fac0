package pipeline

import (
	"context"
	"io"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/ajitpratap0/pitchline/pkg/config"
	"github.com/ajitpratap0/pitchline/pkg/connector/destinations/objectstore"
	"github.com/ajitpratap0/pitchline/pkg/connector/destinations/sqldb"
	"github.com/ajitpratap0/pitchline/pkg/connector/registry"
	"github.com/ajitpratap0/pitchline/pkg/transform"
)

// FromConfig builds the source, sinks and pipeline described by cfg. The
// source and sink types must be registered, which the cmd package does
// through blank imports.
func FromConfig(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	source, err := registry.CreateSource(cfg.Source.Type, cfg)
	if err != nil {
		return nil, err
	}
	sink, err := registry.CreateDestination(cfg.Output.Format, cfg)
	if err != nil {
		closeIfCloser(source)
		return nil, err
	}

	opts := []Option{
		WithSink(sink),
		WithOutputDir(cfg.Output.Dir),
		WithPrefix(cfg.Output.Prefix),
	}
	if log != nil {
		opts = append(opts, WithLogger(log))
	}
	if len(cfg.Output.Drop) > 0 {
		opts = append(opts, WithTransform(transform.DropColumns(cfg.Output.Drop...)))
	}
	if len(cfg.Output.Rename) > 0 {
		opts = append(opts, WithTransform(transform.RenameColumns(cfg.Output.Rename)))
	}

	var built []io.Closer
	fail := func(err error) (*Pipeline, error) {
		closeIfCloser(source)
		for _, c := range built {
			_ = c.Close()
		}
		return nil, err
	}

	if cfg.Output.WriteDDL {
		d, err := sqldb.DialectFor(cfg.Output.Dialect)
		if err != nil {
			return fail(err)
		}
		opts = append(opts, WithDDL(d))
	}

	if cfg.Upload.URI != "" {
		u, err := objectstore.New(ctx, cfg.Upload)
		if err != nil {
			return fail(err)
		}
		built = append(built, u)
		opts = append(opts, WithUploader(u))
	}

	if cfg.Database.Mode != config.ModeNone {
		l, err := sqldb.Open(ctx, cfg.Database.Dialect, cfg.Database.DSN)
		if err != nil {
			return fail(err)
		}
		built = append(built, l)
		opts = append(opts, WithLoader(l, cfg.Database.Mode))
	}

	p, err := New(source, opts...)
	if err != nil {
		return fail(err)
	}
	return p, nil
}

// Close releases the source, uploader and loader.
func (p *Pipeline) Close() error {
	var err error
	if c, ok := p.source.(io.Closer); ok {
		err = multierr.Append(err, c.Close())
	}
	if p.uploader != nil {
		err = multierr.Append(err, p.uploader.Close())
	}
	if p.loader != nil {
		err = multierr.Append(err, p.loader.Close())
	}
	return err
}

func closeIfCloser(v interface{}) {
	if c, ok := v.(io.Closer); ok {
		_ = c.Close()
	}
}
