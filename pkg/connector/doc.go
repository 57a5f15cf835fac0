// Package connector holds the sources and sinks a pitchline run is built from.
//
// # Architecture Overview
//
//   - core: the TableSource, FileSink, Uploader and TableLoader interfaces.
//
//   - registry: name-based factories. Sources and file sinks register
//     themselves in init, so a binary picks them up with a blank import.
//
//   - sources/api: generic HTTP fetch and JSON-to-table parsing, with optional
//     request annotation columns.
//
//   - sources/fpl: the Fantasy Premier League endpoints.
//
//   - sources/file: local JSON and CSV files.
//
//   - destinations/columnar: Parquet and Arrow IPC files.
//
//   - destinations/sqldb: CREATE TABLE rendering per dialect and a
//     database/sql loader.
//
//   - destinations/objectstore: S3 and GCS uploads.
//
// # Registering a Source
//
//	func init() {
//	    _ = registry.RegisterSource("mysource", func(cfg *config.Config) (core.TableSource, error) {
//	        return NewSource(cfg)
//	    })
//	}
package connector
