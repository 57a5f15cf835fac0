// Package columnar writes tables to self-describing columnar files.
//
// Two formats are supported: Apache Parquet (the default) and the Arrow IPC
// file format. Both keep column names, types and row order, and both can be
// read back with Read.
package columnar

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"go.uber.org/zap"

	"github.com/ajitpratap0/pitchline/pkg/errors"
	"github.com/ajitpratap0/pitchline/pkg/logger"
	"github.com/ajitpratap0/pitchline/pkg/metrics"
	"github.com/ajitpratap0/pitchline/pkg/table"
)

// Format represents a columnar file format
type Format string

const (
	Parquet Format = "parquet"
	Arrow   Format = "arrow"
)

// Extension returns the file extension of f without the dot.
func (f Format) Extension() string {
	return string(f)
}

// FormatForPath picks the format from a file name; anything that is not an
// Arrow IPC extension is treated as Parquet.
func FormatForPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".arrow", ".arrows", ".ipc", ".feather":
		return Arrow
	default:
		return Parquet
	}
}

// WriterConfig configures a Writer
type WriterConfig struct {
	Format Format
	// Compression is one of snappy, zstd, gzip, lz4, none. Arrow files only
	// carry lz4 or zstd, so snappy is written as lz4 and gzip as zstd.
	Compression string
}

// DefaultWriterConfig returns snappy-compressed Parquet.
func DefaultWriterConfig() *WriterConfig {
	return &WriterConfig{Format: Parquet, Compression: "snappy"}
}

// Writer writes tables to files in one format.
type Writer struct {
	config *WriterConfig
	mem    memory.Allocator
	logger *zap.Logger
}

// WriterOption configures a Writer.
type WriterOption func(*Writer)

// WithAllocator sets the allocator used while encoding.
func WithAllocator(mem memory.Allocator) WriterOption {
	return func(w *Writer) { w.mem = mem }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) WriterOption {
	return func(w *Writer) { w.logger = l }
}

// NewWriter creates a writer. A nil config means DefaultWriterConfig.
func NewWriter(config *WriterConfig, opts ...WriterOption) (*Writer, error) {
	if config == nil {
		config = DefaultWriterConfig()
	}
	if config.Format == "" {
		config.Format = Parquet
	}
	if config.Format != Parquet && config.Format != Arrow {
		return nil, errors.Newf(errors.ErrorTypeConfig, "unsupported columnar format %q", config.Format)
	}
	if config.Format == Arrow {
		if _, err := arrowCompression(config.Compression); err != nil {
			return nil, err
		}
	} else if _, err := parquetCodec(config.Compression); err != nil {
		return nil, err
	}

	w := &Writer{config: config, mem: memory.DefaultAllocator, logger: logger.Get()}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.With(zap.String("component", "columnar_writer"), zap.String("format", string(config.Format)))
	return w, nil
}

// Extension returns the file extension for the writer's format.
func (w *Writer) Extension() string {
	return w.config.Format.Extension()
}

// Write writes t to path, replacing any existing file. The parent directory
// must already exist. t is not released.
func (w *Writer) Write(ctx context.Context, t *table.Table, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if w.config.Format == Parquet && t.NumCols() == 0 {
		return errors.Newf(errors.ErrorTypeValue, "table %s has no columns; parquet needs at least one", t.Name())
	}

	dir := filepath.Dir(path)
	info, err := os.Stat(dir)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeIO, "output directory is not accessible").WithDetail("path", path)
	}
	if !info.IsDir() {
		return errors.New(errors.ErrorTypeIO, "output parent is not a directory").WithDetail("path", path)
	}

	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeIO, "failed to create output file").WithDetail("path", path)
	}

	switch w.config.Format {
	case Arrow:
		err = w.writeArrow(f, t)
	default:
		err = w.writeParquet(f, t)
	}
	if cerr := f.Close(); err == nil && cerr != nil {
		err = errors.Wrap(cerr, errors.ErrorTypeIO, "failed to close output file")
	}
	if err != nil {
		_ = os.Remove(path)
		return errors.Wrap(err, errors.ErrorTypeIO, "failed to write table").
			WithDetail("table", t.Name()).
			WithDetail("path", path)
	}

	metrics.RowsWritten.WithLabelValues(t.Name(), string(w.config.Format)).Add(float64(t.NumRows()))
	w.logger.Debug("table written",
		zap.String("table", t.Name()),
		zap.String("path", path),
		zap.Int64("rows", t.NumRows()),
		zap.Int("columns", t.NumCols()))
	return nil
}

// Read reads the file at path back into a table named after the file stem.
// The format is chosen from the extension.
func Read(ctx context.Context, path string, mem memory.Allocator) (*table.Table, error) {
	if mem == nil {
		mem = memory.DefaultAllocator
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeIO, "failed to open file").WithDetail("path", path)
	}
	defer f.Close()

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	var t *table.Table
	switch FormatForPath(path) {
	case Arrow:
		t, err = readArrow(name, f, mem)
	default:
		t, err = readParquet(ctx, name, f, mem)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeIO, "failed to read columnar file").WithDetail("path", path)
	}
	return t, nil
}
