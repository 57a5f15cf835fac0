package sqldb

import (
	"context"
	"database/sql"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"go.uber.org/zap"

	"github.com/ajitpratap0/pitchline/pkg/errors"
	"github.com/ajitpratap0/pitchline/pkg/json"
	"github.com/ajitpratap0/pitchline/pkg/logger"
	"github.com/ajitpratap0/pitchline/pkg/metrics"
	"github.com/ajitpratap0/pitchline/pkg/table"
)

// Loader writes tables into a database through database/sql.
type Loader struct {
	db      *sql.DB
	dialect Dialect
	logger  *zap.Logger
}

// Open connects to dsn with the driver of the named dialect and pings it.
func Open(ctx context.Context, dialect, dsn string) (*Loader, error) {
	d, err := DialectFor(dialect)
	if err != nil {
		return nil, err
	}
	if d.DriverName() == "" {
		return nil, errors.Newf(errors.ErrorTypeConfig, "no database driver available for dialect %s", d.Name())
	}

	db, err := sql.Open(d.DriverName(), dsn)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeDatabase, "failed to open database").
			WithDetail("dialect", d.Name())
	}
	if d.Name() == "sqlite" {
		// single writer; also keeps :memory: databases on one connection
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(4)
		db.SetMaxIdleConns(2)
		db.SetConnMaxLifetime(30 * time.Minute)
	}

	l := NewLoader(db, d)
	if err := l.Ping(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return l, nil
}

// NewLoader wraps an open database handle.
func NewLoader(db *sql.DB, d Dialect) *Loader {
	return &Loader{
		db:      db,
		dialect: d,
		logger:  logger.Get().With(zap.String("component", "sql_loader"), zap.String("dialect", d.Name())),
	}
}

// Dialect returns the loader's dialect.
func (l *Loader) Dialect() Dialect { return l.dialect }

// Ping checks the connection.
func (l *Loader) Ping(ctx context.Context) error {
	if err := l.db.PingContext(ctx); err != nil {
		return errors.Wrap(err, errors.ErrorTypeDatabase, "failed to ping database").
			WithDetail("dialect", l.dialect.Name())
	}
	return nil
}

// TableExists reports whether name exists in the current schema.
func (l *Loader) TableExists(ctx context.Context, name string) (bool, error) {
	query, args := l.dialect.TableExistsQuery(name)
	var n int64
	if err := l.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return false, l.dbError(err, "failed to check table", name)
	}
	return n > 0, nil
}

// CreateTable creates name with t's columns.
func (l *Loader) CreateTable(ctx context.Context, name string, t *table.Table, primaryKey ...string) error {
	stmt, err := CreateTableStatement(l.dialect, t, name, primaryKey...)
	if err != nil {
		return err
	}
	return l.exec(ctx, stmt, "failed to create table", name)
}

// DropTable drops name.
func (l *Loader) DropTable(ctx context.Context, name string) error {
	return l.exec(ctx, "DROP TABLE "+l.dialect.Quote(name), "failed to drop table", name)
}

// TruncateTable deletes every row of name.
func (l *Loader) TruncateTable(ctx context.Context, name string) error {
	return l.exec(ctx, l.dialect.TruncateStatement(name), "failed to truncate table", name)
}

// CountRows returns the number of rows in name.
func (l *Loader) CountRows(ctx context.Context, name string) (int64, error) {
	var n int64
	if err := l.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+l.dialect.Quote(name)).Scan(&n); err != nil {
		return 0, l.dbError(err, "failed to count rows", name)
	}
	return n, nil
}

// Insert appends every row of t to name in a single transaction.
func (l *Loader) Insert(ctx context.Context, name string, t *table.Table) (int64, error) {
	return l.load(ctx, name, t, insertStatement(l.dialect, name, t.ColumnNames()))
}

// Upsert inserts the rows of t, updating rows whose keys already exist. The
// target needs a unique constraint over keys.
func (l *Loader) Upsert(ctx context.Context, name string, t *table.Table, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, errors.New(errors.ErrorTypeValue, "upsert needs at least one key column")
	}
	for _, k := range keys {
		if t.ColumnIndex(k) < 0 {
			return 0, errors.Newf(errors.ErrorTypeValue, "key column %s not in table", k).WithDetail("table", name)
		}
	}
	return l.load(ctx, name, t, l.dialect.UpsertStatement(name, t.ColumnNames(), keys))
}

// Rebuild drops name if it exists, recreates it from t and inserts t.
func (l *Loader) Rebuild(ctx context.Context, name string, t *table.Table) (int64, error) {
	exists, err := l.TableExists(ctx, name)
	if err != nil {
		return 0, err
	}
	if exists {
		if err := l.DropTable(ctx, name); err != nil {
			return 0, err
		}
	}
	if err := l.CreateTable(ctx, name, t); err != nil {
		return 0, err
	}
	return l.Insert(ctx, name, t)
}

// Reload truncates name, creating it first if needed, and inserts t.
func (l *Loader) Reload(ctx context.Context, name string, t *table.Table) (int64, error) {
	exists, err := l.TableExists(ctx, name)
	if err != nil {
		return 0, err
	}
	if exists {
		err = l.TruncateTable(ctx, name)
	} else {
		err = l.CreateTable(ctx, name, t)
	}
	if err != nil {
		return 0, err
	}
	return l.Insert(ctx, name, t)
}

// Close closes the database handle.
func (l *Loader) Close() error {
	return l.db.Close()
}

func (l *Loader) load(ctx context.Context, name string, t *table.Table, statement string) (int64, error) {
	if t.NumCols() == 0 {
		return 0, errors.Newf(errors.ErrorTypeValue, "table %s has no columns", name)
	}

	start := time.Now()
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, l.dbError(err, "failed to begin transaction", name)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, statement)
	if err != nil {
		return 0, l.dbError(err, "failed to prepare statement", name)
	}
	defer stmt.Close()

	args := make([]interface{}, t.NumCols())
	rows := int(t.NumRows())
	for r := 0; r < rows; r++ {
		for c := range args {
			v, err := sqlValue(t.Column(c), r)
			if err != nil {
				return 0, errors.Wrap(err, errors.ErrorTypeValue, "failed to convert value").
					WithDetail("table", name).
					WithDetail("column", t.Field(c).Name).
					WithDetail("row", r)
			}
			args[c] = v
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return 0, l.dbError(err, "failed to write row", name).WithDetail("row", r)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, l.dbError(err, "failed to commit", name)
	}

	metrics.RowsWritten.WithLabelValues(name, "database").Add(float64(rows))
	l.logger.Info("rows loaded",
		zap.String("table", name),
		zap.Int("rows", rows),
		zap.Duration("duration", time.Since(start)))
	return int64(rows), nil
}

// sqlValue converts one cell to a database/sql argument. Nested values are
// sent as JSON text.
func sqlValue(col arrow.Array, row int) (interface{}, error) {
	if col.IsNull(row) {
		return nil, nil
	}
	switch col.DataType().ID() {
	case arrow.LIST, arrow.LARGE_LIST, arrow.FIXED_SIZE_LIST, arrow.STRUCT, arrow.MAP:
		b, err := json.Marshal(col.GetOneForMarshal(row))
		if err != nil {
			return nil, err
		}
		return string(b), nil
	case arrow.UINT64:
		v := table.ValueAt(col, row).(uint64)
		if v > 1<<63-1 {
			return nil, errors.Newf(errors.ErrorTypeValue, "value %d overflows a signed 64-bit column", v)
		}
		return int64(v), nil
	}

	switch v := table.ValueAt(col, row).(type) {
	case int8:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case uint8:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case float32:
		return float64(v), nil
	default:
		return v, nil
	}
}

func (l *Loader) exec(ctx context.Context, statement, msg, name string) error {
	l.logger.Debug("executing statement", zap.String("table", name), zap.String("sql", statement))
	if _, err := l.db.ExecContext(ctx, statement); err != nil {
		return l.dbError(err, msg, name)
	}
	return nil
}

func (l *Loader) dbError(err error, msg, name string) *errors.Error {
	return errors.Wrap(err, errors.ErrorTypeDatabase, msg).
		WithDetail("table", name).
		WithDetail("dialect", l.dialect.Name())
}
