// Package file implements a table source over local JSON and CSV files.
package file

import (
	"context"
	"encoding/csv"
	"io"
	"iter"
	"os"
	"path/filepath"
	"strings"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"go.uber.org/zap"

	"github.com/ajitpratap0/pitchline/pkg/connector/core"
	"github.com/ajitpratap0/pitchline/pkg/errors"
	"github.com/ajitpratap0/pitchline/pkg/json"
	"github.com/ajitpratap0/pitchline/pkg/logger"
	"github.com/ajitpratap0/pitchline/pkg/models"
	"github.com/ajitpratap0/pitchline/pkg/schema"
	"github.com/ajitpratap0/pitchline/pkg/table"
)

// Supported formats, by file extension.
const (
	FormatJSON = ".json"
	FormatCSV  = ".csv"
)

var workbookExts = map[string]bool{".xlsx": true, ".xlsm": true, ".xls": true}

// Source reads one file into one table.
type Source struct {
	path      string
	tableName string
	format    string
	engine    *schema.TypeInferenceEngine
	logger    *zap.Logger
}

// Option configures a Source.
type Option func(*Source)

// WithTableName overrides the table name, which defaults to the file stem.
func WithTableName(name string) Option {
	return func(s *Source) {
		if name != "" {
			s.tableName = name
		}
	}
}

// WithAllocator sets the Arrow allocator for the built table.
func WithAllocator(mem memory.Allocator) Option {
	return func(s *Source) { s.engine = schema.NewTypeInferenceEngine(s.logger, schema.WithAllocator(mem)) }
}

// NewSource creates a source for path. Only .json and .csv files are
// supported.
func NewSource(path string, opts ...Option) (*Source, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if workbookExts[ext] {
		return nil, errors.Newf(errors.ErrorTypeValidation,
			"spreadsheet workbooks (%s) are not read directly, export the sheet to csv", ext).
			WithDetail("path", path)
	}
	if ext != FormatJSON && ext != FormatCSV {
		return nil, errors.Newf(errors.ErrorTypeValidation, "unsupported file format %q", ext).WithDetail("path", path)
	}

	log := logger.Get().With(zap.String("component", "file_source"))
	s := &Source{
		path:      path,
		tableName: strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		format:    ext,
		engine:    schema.NewTypeInferenceEngine(log),
		logger:    log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Name returns "file".
func (s *Source) Name() string { return "file" }

// Generate reads the file and yields a single table.
func (s *Source) Generate(ctx context.Context) iter.Seq2[core.NamedTable, error] {
	return func(yield func(core.NamedTable, error) bool) {
		if err := ctx.Err(); err != nil {
			yield(core.NamedTable{}, err)
			return
		}
		t, err := s.read()
		if err != nil {
			yield(core.NamedTable{}, err)
			return
		}
		s.logger.Debug("file read",
			zap.String("path", s.path),
			zap.String("table", t.Name()),
			zap.Int64("rows", t.NumRows()))
		yield(core.NamedTable{Name: t.Name(), Table: t}, nil)
	}
}

func (s *Source) read() (*table.Table, error) {
	var (
		rows []*models.Record
		err  error
	)
	switch s.format {
	case FormatJSON:
		rows, err = s.readJSON()
	default:
		rows, err = s.readCSV()
	}
	if err != nil {
		return nil, err
	}
	return s.engine.Build(s.tableName, rows)
}

func (s *Source) readJSON() ([]*models.Record, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeIO, "failed to read file").WithDetail("path", s.path)
	}
	rows, err := json.DecodeRows(data, "")
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeSchema, "failed to parse file").WithDetail("path", s.path)
	}
	return rows, nil
}

func (s *Source) readCSV() ([]*models.Record, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeIO, "failed to open file").WithDetail("path", s.path)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeSchema, "failed to read csv header").WithDetail("path", s.path)
	}

	var rows []*models.Record
	for {
		cells, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeSchema, "failed to read csv row").
				WithDetail("path", s.path).
				WithDetail("row", len(rows)+1)
		}
		rows = append(rows, schema.RecordFromCells(header, cells))
	}
	return rows, nil
}
