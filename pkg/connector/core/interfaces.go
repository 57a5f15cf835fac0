// Package core defines the interfaces every pitchline connector implements.
package core

import (
	"context"
	"iter"

	"github.com/ajitpratap0/pitchline/pkg/table"
)

// NamedTable pairs a table with the name it is stored under.
type NamedTable struct {
	Name  string
	Table *table.Table
}

// TableSource produces the named tables of one upstream.
//
// Generate is lazy and finite. Each call fetches from scratch; nothing is
// cached between calls. The sequence stops at the first error, which is
// yielded with a zero NamedTable. Ownership of every yielded table passes to
// the consumer.
type TableSource interface {
	Name() string
	Generate(ctx context.Context) iter.Seq2[NamedTable, error]
}

// FileSink writes a table to a self-describing file.
type FileSink interface {
	// Write writes t to path, truncating any existing file. t is not released.
	Write(ctx context.Context, t *table.Table, path string) error
	// Extension is the file extension without the dot, e.g. "parquet".
	Extension() string
}

// Uploader copies a local file to remote storage.
type Uploader interface {
	// Upload stores the file at localPath under key and returns its URI.
	Upload(ctx context.Context, localPath, key string) (string, error)
	Close() error
}

// TableLoader loads a table into a relational database.
type TableLoader interface {
	// Rebuild drops the target if present, recreates it and inserts t.
	Rebuild(ctx context.Context, name string, t *table.Table) (int64, error)
	// Reload empties or creates the target and inserts t.
	Reload(ctx context.Context, name string, t *table.Table) (int64, error)
	Close() error
}
