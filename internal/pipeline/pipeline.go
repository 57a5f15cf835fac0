// Package pipeline runs a pitchline extract, clean and load pass.
//
// # Overview
//
// A Pipeline pulls named tables from a TableSource one at a time and takes
// each one through every configured stage before asking for the next:
//   - Clean: nested columns dropped, booleans re-encoded as int8
//   - Transform: optional drop, rename or other reshaping of the clean table
//   - Write: <dir>/<prefix>_<name>.<ext> through a FileSink
//   - DDL: <dir>/<prefix>_<name>.sql with a CREATE TABLE statement
//   - Upload: optional copy of both files to an object store
//   - Load: optional Rebuild or Reload into a database as <PREFIX>_<NAME>
//
// The first error stops the run. It is returned as produced by the failing
// stage, with the table name added to its details.
//
// # Basic Usage
//
//	p, err := pipeline.New(source,
//	    pipeline.WithOutputDir("data"),
//	    pipeline.WithPrefix("fpl"),
//	    pipeline.WithDDL(sqldb.Oracle()),
//	)
//	if err != nil {
//	    return err
//	}
//	report, err := p.Run(ctx)
package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/pitchline/pkg/config"
	"github.com/ajitpratap0/pitchline/pkg/connector/core"
	"github.com/ajitpratap0/pitchline/pkg/connector/destinations/columnar"
	"github.com/ajitpratap0/pitchline/pkg/connector/destinations/sqldb"
	"github.com/ajitpratap0/pitchline/pkg/errors"
	"github.com/ajitpratap0/pitchline/pkg/logger"
	"github.com/ajitpratap0/pitchline/pkg/metrics"
	"github.com/ajitpratap0/pitchline/pkg/observability"
	"github.com/ajitpratap0/pitchline/pkg/table"
	"github.com/ajitpratap0/pitchline/pkg/transform"
)

// Stage names used for spans and the stage duration histogram.
const (
	StageClean     = "clean"
	StageTransform = "transform"
	StageWrite     = "write"
	StageDDL       = "ddl"
	StageUpload    = "upload"
	StageLoad      = "load"
)

// Pipeline moves tables from one source to the configured sinks.
type Pipeline struct {
	source    core.TableSource
	cleaner   *transform.Cleaner
	transform transform.Transform
	sink      core.FileSink
	dir       string
	prefix    string
	dialect   sqldb.Dialect
	uploader  core.Uploader
	loader    core.TableLoader
	mode      string
	logger    *zap.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithSink sets the data file sink. The default is a snappy Parquet writer.
func WithSink(sink core.FileSink) Option {
	return func(p *Pipeline) { p.sink = sink }
}

// WithOutputDir sets the directory receiving data and DDL files.
func WithOutputDir(dir string) Option {
	return func(p *Pipeline) { p.dir = dir }
}

// WithPrefix sets the prefix of file and database table names.
func WithPrefix(prefix string) Option {
	return func(p *Pipeline) { p.prefix = prefix }
}

// WithDDL writes a CREATE TABLE file in dialect d for every table. A nil
// dialect disables DDL files.
func WithDDL(d sqldb.Dialect) Option {
	return func(p *Pipeline) { p.dialect = d }
}

// WithUploader uploads every written file.
func WithUploader(u core.Uploader) Option {
	return func(p *Pipeline) { p.uploader = u }
}

// WithLoader loads every table into a database. mode is config.ModeRebuild
// or config.ModeReload.
func WithLoader(l core.TableLoader, mode string) Option {
	return func(p *Pipeline) {
		p.loader = l
		p.mode = mode
	}
}

// WithCleaner replaces the default cleaner.
func WithCleaner(c *transform.Cleaner) Option {
	return func(p *Pipeline) { p.cleaner = c }
}

// WithTransform runs tr on every table after cleaning. Repeated calls chain
// in order.
func WithTransform(tr transform.Transform) Option {
	return func(p *Pipeline) {
		if tr == nil {
			return
		}
		if p.transform == nil {
			p.transform = tr
			return
		}
		p.transform = transform.Chain(p.transform, tr)
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// New creates a pipeline reading from source.
func New(source core.TableSource, opts ...Option) (*Pipeline, error) {
	if source == nil {
		return nil, errors.New(errors.ErrorTypeConfig, "pipeline needs a source")
	}
	p := &Pipeline{
		source: source,
		dir:    ".",
		logger: logger.Get(),
	}
	for _, opt := range opts {
		opt(p)
	}
	base := p.logger
	p.logger = base.With(zap.String("component", "pipeline"), zap.String("source", source.Name()))

	if p.cleaner == nil {
		p.cleaner = transform.NewCleaner(base)
	}
	if p.sink == nil {
		w, err := columnar.NewWriter(columnar.DefaultWriterConfig(), columnar.WithLogger(base))
		if err != nil {
			return nil, err
		}
		p.sink = w
	}
	if p.loader != nil && p.mode != config.ModeRebuild && p.mode != config.ModeReload {
		return nil, errors.Newf(errors.ErrorTypeConfig, "unknown load mode %q", p.mode)
	}
	return p, nil
}

// BaseName returns the lower-case file stem for a table, e.g. "fpl_teams".
func (p *Pipeline) BaseName(tableName string) string {
	if p.prefix == "" {
		return strings.ToLower(tableName)
	}
	return strings.ToLower(p.prefix + "_" + tableName)
}

// DatabaseName returns the database table name for a table, e.g. "FPL_TEAMS".
func (p *Pipeline) DatabaseName(tableName string) string {
	return strings.ToUpper(p.BaseName(tableName))
}

// Run processes every table the source yields, in order. The returned report
// covers the tables handled before any error.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	report := &Report{Source: p.source.Name(), Started: time.Now()}
	defer func() {
		report.Duration = time.Since(report.Started)
		metrics.LastRunTimestamp.SetToCurrentTime()
	}()

	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		return report, errors.Wrap(err, errors.ErrorTypeIO, "failed to create output directory").
			WithDetail("dir", p.dir)
	}

	p.logger.Info("run started", zap.String("dir", p.dir))
	for nt, err := range p.source.Generate(ctx) {
		if err != nil {
			metrics.TablesProcessed.WithLabelValues(metrics.Status(err)).Inc()
			return report, err
		}
		tr, err := p.process(ctx, nt)
		if tr != nil {
			report.Tables = append(report.Tables, *tr)
		}
		if err != nil {
			metrics.TablesProcessed.WithLabelValues(metrics.Status(err)).Inc()
			return report, withTable(err, nt.Name)
		}
		if tr.Skipped {
			metrics.TablesProcessed.WithLabelValues("skipped").Inc()
		} else {
			metrics.TablesProcessed.WithLabelValues(metrics.Status(nil)).Inc()
		}
	}

	p.logger.Info("run finished",
		zap.Int("tables", len(report.Tables)),
		zap.Int64("rows", report.TotalRows()),
		zap.Duration("duration", time.Since(report.Started)))
	return report, nil
}

// process owns nt.Table and releases it before returning.
func (p *Pipeline) process(ctx context.Context, nt core.NamedTable) (*TableReport, error) {
	start := time.Now()
	ctx = logger.WithTable(ctx, p.source.Name(), nt.Name)
	log := logger.WithContext(ctx, p.logger)

	tbl := nt.Table
	defer func() {
		if tbl != nil {
			tbl.Release()
		}
	}()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tr := &TableReport{Name: nt.Name}

	var res transform.Result
	err := p.stage(ctx, StageClean, nt.Name, func(ctx context.Context) error {
		tbl, res = p.cleaner.Clean(ctx, tbl)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if p.transform != nil {
		in := tbl
		tbl = nil
		err = p.stage(ctx, StageTransform, nt.Name, func(ctx context.Context) error {
			out, err := p.transform(ctx, in)
			tbl = out
			return err
		})
		if err != nil {
			return nil, err
		}
	}

	tr.Rows = tbl.NumRows()
	tr.Columns = tbl.NumCols()
	tr.Dropped = res.Dropped
	tr.Converted = res.Converted
	if len(res.Dropped) > 0 {
		metrics.ColumnsDropped.WithLabelValues(nt.Name).Add(float64(len(res.Dropped)))
	}

	if tbl.NumCols() == 0 {
		log.Warn("table has no columns after cleaning, skipping", zap.Int64("rows", tbl.NumRows()))
		tr.Skipped = true
		tr.Duration = time.Since(start)
		return tr, nil
	}

	base := p.BaseName(nt.Name)
	dataPath := filepath.Join(p.dir, base+"."+p.sink.Extension())
	err = p.stage(ctx, StageWrite, nt.Name, func(ctx context.Context) error {
		return p.sink.Write(ctx, tbl, dataPath)
	})
	if err != nil {
		return tr, err
	}
	tr.Files = append(tr.Files, dataPath)

	if p.dialect != nil {
		ddlPath := filepath.Join(p.dir, base+".sql")
		err = p.stage(ctx, StageDDL, nt.Name, func(ctx context.Context) error {
			return p.writeDDL(tbl, p.DatabaseName(nt.Name), ddlPath)
		})
		if err != nil {
			return tr, err
		}
		tr.Files = append(tr.Files, ddlPath)
	}

	if p.uploader != nil {
		err = p.stage(ctx, StageUpload, nt.Name, func(ctx context.Context) error {
			for _, path := range tr.Files {
				uri, err := p.uploader.Upload(ctx, path, filepath.Base(path))
				if err != nil {
					return err
				}
				tr.Uploaded = append(tr.Uploaded, uri)
			}
			return nil
		})
		if err != nil {
			return tr, err
		}
	}

	if p.loader != nil {
		dbName := p.DatabaseName(nt.Name)
		err = p.stage(ctx, StageLoad, nt.Name, func(ctx context.Context) error {
			var n int64
			var err error
			if p.mode == config.ModeRebuild {
				n, err = p.loader.Rebuild(ctx, dbName, tbl)
			} else {
				n, err = p.loader.Reload(ctx, dbName, tbl)
			}
			tr.RowsLoaded = n
			return err
		})
		if err != nil {
			return tr, err
		}
		tr.DatabaseTable = dbName
	}

	tr.Duration = time.Since(start)
	log.Info("table processed",
		zap.Int64("rows", tr.Rows),
		zap.Int("columns", tr.Columns),
		zap.Strings("files", tr.Files),
		zap.Duration("duration", tr.Duration))
	return tr, nil
}

// stage runs fn inside a span and records its duration.
func (p *Pipeline) stage(ctx context.Context, name, tableName string, fn func(context.Context) error) error {
	ctx, span := observability.StartStage(ctx, name, tableName)
	timer := metrics.NewTimer(name)
	err := fn(ctx)
	timer.ObserveDuration()
	span.End(err)
	return err
}

func (p *Pipeline) writeDDL(t *table.Table, name, path string) error {
	ddl, err := sqldb.CreateTableStatement(p.dialect, t, name)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(ddl+";\n"), 0o644); err != nil {
		return errors.Wrap(err, errors.ErrorTypeIO, "failed to write DDL file").WithDetail("path", path)
	}
	return nil
}

// withTable records the table name on pitchline errors; other errors pass
// through untouched.
func withTable(err error, name string) error {
	var e *errors.Error
	if errors.As(err, &e) {
		e.WithDetail("table", name)
	}
	return err
}
