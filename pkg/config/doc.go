// Package config provides configuration management for pitchline runs.
//
// A run is described by a single Config with one section per stage:
//
//   - Source: which upstream to extract from and how to call it
//   - Output: where columnar files and DDL are written, and in which format
//   - Upload: optional object store destination for written files
//   - Database: optional relational load (rebuild or reload)
//   - Logging and Observability: zap, Prometheus and OpenTelemetry settings
//
// # Usage
//
// ## Loading a file
//
//	cfg, err := config.LoadFile("pitchline.yaml")
//	if err != nil {
//		log.Fatal(err)
//	}
//
// Values of the form ${VAR_NAME} are replaced with the environment variable
// before the YAML is parsed, so credentials can stay out of the file:
//
//	database:
//	  dialect: postgres
//	  dsn: ${PITCHLINE_DATABASE_DSN}
//
// ## Overrides
//
// ApplyOverrides copies any key set in a viper instance (flags bound by the
// CLI, or PITCHLINE_* environment variables) over the loaded file.
//
// ## Validation
//
// Call Validate before use. It returns a config error naming the first
// offending key.
package config
