// Package pitchline extracts Fantasy Premier League data and prepares it for
// relational storage.
//
// A run fetches the bootstrap-static and fixtures endpoints, turns each row
// array into a typed columnar table, cleans it and writes it out:
//   - nested columns are dropped and boolean columns become int8 (0/1)
//   - configured columns are dropped or renamed
//   - every table is written as a Parquet (or Arrow IPC) file
//   - a CREATE TABLE statement is written next to it, Oracle by default
//   - files can be uploaded to S3 or GCS
//   - tables can be rebuilt or reloaded in Postgres, MySQL, SQLite or Snowflake
//
// # Quick Start
//
//	pitchline run --output-dir data --prefix fpl
//	pitchline inspect data/fpl_teams.parquet
//	pitchline ddl data/fpl_teams.parquet --dialect postgres
//
// # Layout
//
//   - cmd/pitchline: the command line tool
//   - internal/pipeline: the per-table clean, write, upload and load pass
//   - pkg/connector: sources (fpl, file) and sinks (columnar, sqldb, objectstore)
//   - pkg/table, pkg/schema, pkg/transform: the in-memory table, type inference, cleaning
//   - pkg/config, pkg/logger, pkg/errors, pkg/metrics, pkg/observability: ambient plumbing
package pitchline
