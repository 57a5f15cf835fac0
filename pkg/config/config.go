package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ajitpratap0/pitchline/pkg/errors"
	"github.com/ajitpratap0/pitchline/pkg/logger"
)

// Config is the complete description of a pitchline run.
type Config struct {
	// Name identifies the run in logs and traces
	Name string `yaml:"name" json:"name"`

	// Source selects and configures the extractor
	Source SourceConfig `yaml:"source" json:"source"`

	// Output configures the columnar file and DDL sinks
	Output OutputConfig `yaml:"output" json:"output"`

	// Upload optionally copies written files to an object store
	Upload UploadConfig `yaml:"upload" json:"upload"`

	// Database optionally loads cleaned tables into a relational database
	Database DatabaseConfig `yaml:"database" json:"database"`

	// Logging configures the global zap logger
	Logging logger.Config `yaml:"logging" json:"logging"`

	// Observability configures metrics and tracing
	Observability ObservabilityConfig `yaml:"observability" json:"observability"`
}

// SourceConfig contains extractor settings.
type SourceConfig struct {
	// Type is the registered source name ("fpl" or "file")
	Type string `yaml:"type" json:"type"`
	// BaseURL overrides the API root for HTTP sources
	BaseURL string `yaml:"base_url" json:"base_url"`
	// Path is the input file for the file source
	Path string `yaml:"path" json:"path"`
	// TableName overrides the table name of the file source (default: file stem)
	TableName string `yaml:"table_name" json:"table_name"`
	// AnnotateRequests appends request_id, request_time, response_code and
	// response_elapsed_ms columns to every extracted table
	AnnotateRequests bool `yaml:"annotate_requests" json:"annotate_requests"`
	// RequestTimeout bounds a single request; zero means no timeout
	RequestTimeout time.Duration `yaml:"request_timeout" json:"request_timeout"`
	// RateLimitPerSec limits outbound requests (0 = unlimited)
	RateLimitPerSec int `yaml:"rate_limit_per_sec" json:"rate_limit_per_sec"`
	// UserAgent is sent with every request
	UserAgent string `yaml:"user_agent" json:"user_agent"`
	// Headers are added to every request
	Headers map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`
}

// OutputConfig contains file sink settings.
type OutputConfig struct {
	// Dir receives one file per table
	Dir string `yaml:"dir" json:"dir"`
	// Prefix is prepended to file and database table names
	Prefix string `yaml:"prefix" json:"prefix"`
	// Format is "parquet" or "arrow"
	Format string `yaml:"format" json:"format"`
	// Compression is one of snappy, zstd, gzip, lz4, none. Arrow files
	// store snappy as lz4 and gzip as zstd.
	Compression string `yaml:"compression" json:"compression"`
	// WriteDDL writes a .sql CREATE TABLE file next to each data file
	WriteDDL bool `yaml:"write_ddl" json:"write_ddl"`
	// Dialect is the SQL dialect of the DDL file
	Dialect string `yaml:"dialect" json:"dialect"`
	// Drop lists columns removed from every table after cleaning
	Drop []string `yaml:"drop,omitempty" json:"drop,omitempty"`
	// Rename maps column names to new names after cleaning and dropping
	Rename map[string]string `yaml:"rename,omitempty" json:"rename,omitempty"`
}

// UploadConfig contains object store settings.
type UploadConfig struct {
	// URI is s3://bucket/prefix or gs://bucket/prefix; empty disables upload
	URI string `yaml:"uri" json:"uri"`
	// Region is the AWS region for s3 URIs; empty uses the SDK default chain
	Region string `yaml:"region,omitempty" json:"region,omitempty"`
	// CredentialsFile is a service account key for gs URIs
	CredentialsFile string `yaml:"credentials_file,omitempty" json:"credentials_file,omitempty"`
}

// DatabaseConfig contains relational loader settings.
type DatabaseConfig struct {
	// Mode is "" (no load), "rebuild" or "reload"
	Mode string `yaml:"mode" json:"mode"`
	// Dialect is postgres, mysql, sqlite or snowflake
	Dialect string `yaml:"dialect" json:"dialect"`
	// DSN is the driver connection string
	DSN string `yaml:"dsn" json:"dsn"`
}

// ObservabilityConfig contains metrics and tracing settings.
type ObservabilityConfig struct {
	// EnableTracing exports spans to stdout
	EnableTracing bool `yaml:"enable_tracing" json:"enable_tracing"`
	// ServiceName is the tracing service name
	ServiceName string `yaml:"service_name" json:"service_name"`
	// MetricsTextfile, when set, receives Prometheus metrics after the run
	MetricsTextfile string `yaml:"metrics_textfile" json:"metrics_textfile"`
}

// Load modes for DatabaseConfig.Mode.
const (
	ModeNone    = ""
	ModeRebuild = "rebuild"
	ModeReload  = "reload"
)

var (
	validFormats      = []string{"parquet", "arrow"}
	validCompressions = []string{"snappy", "zstd", "gzip", "lz4", "none"}
	validDDLDialects  = []string{"oracle", "postgres", "mysql", "sqlite", "snowflake"}
	validDBDialects   = []string{"postgres", "mysql", "sqlite", "snowflake"}
	validModes        = []string{ModeNone, ModeRebuild, ModeReload}
)

// Default returns a configuration that extracts every FPL table into ./data
// as snappy Parquet with Oracle DDL.
func Default() *Config {
	return &Config{
		Name: "pitchline",
		Source: SourceConfig{
			Type:      "fpl",
			UserAgent: "pitchline/1.0",
		},
		Output: OutputConfig{
			Dir:         "data",
			Prefix:      "fpl",
			Format:      "parquet",
			Compression: "snappy",
			WriteDDL:    true,
			Dialect:     "oracle",
		},
		Logging: logger.Config{
			Level:    "info",
			Encoding: "json",
		},
		Observability: ObservabilityConfig{
			ServiceName: "pitchline",
		},
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.Source.Type == "" {
		return invalid("source.type", "is required")
	}
	if c.Source.Type == "file" && c.Source.Path == "" {
		return invalid("source.path", "is required for the file source")
	}
	if c.Source.RequestTimeout < 0 {
		return invalid("source.request_timeout", "cannot be negative")
	}
	if c.Source.RateLimitPerSec < 0 {
		return invalid("source.rate_limit_per_sec", "cannot be negative")
	}
	if c.Output.Dir == "" {
		return invalid("output.dir", "is required")
	}
	if !oneOf(c.Output.Format, validFormats) {
		return invalid("output.format", "must be one of "+strings.Join(validFormats, ", "))
	}
	if !oneOf(c.Output.Compression, validCompressions) {
		return invalid("output.compression", "must be one of "+strings.Join(validCompressions, ", "))
	}
	if c.Output.WriteDDL && !oneOf(c.Output.Dialect, validDDLDialects) {
		return invalid("output.dialect", "must be one of "+strings.Join(validDDLDialects, ", "))
	}
	for from, to := range c.Output.Rename {
		if from == "" || strings.TrimSpace(to) == "" {
			return invalid("output.rename", "cannot map to or from an empty column name")
		}
	}
	if c.Upload.URI != "" && !strings.HasPrefix(c.Upload.URI, "s3://") && !strings.HasPrefix(c.Upload.URI, "gs://") {
		return invalid("upload.uri", "must start with s3:// or gs://")
	}
	if !oneOf(c.Database.Mode, validModes) {
		return invalid("database.mode", "must be rebuild, reload or empty")
	}
	if c.Database.Mode != ModeNone {
		if !oneOf(c.Database.Dialect, validDBDialects) {
			return invalid("database.dialect", "must be one of "+strings.Join(validDBDialects, ", "))
		}
		if c.Database.DSN == "" {
			return invalid("database.dsn", "is required when database.mode is set")
		}
	}
	return nil
}

// ApplyOverrides copies every key that is set in v over c. Keys use the YAML
// paths, e.g. "output.dir" or "source.annotate_requests".
func (c *Config) ApplyOverrides(v *viper.Viper) {
	str := func(key string, dst *string) {
		if v.IsSet(key) {
			*dst = v.GetString(key)
		}
	}
	boolean := func(key string, dst *bool) {
		if v.IsSet(key) {
			*dst = v.GetBool(key)
		}
	}

	str("name", &c.Name)
	str("source.type", &c.Source.Type)
	str("source.base_url", &c.Source.BaseURL)
	str("source.path", &c.Source.Path)
	str("source.table_name", &c.Source.TableName)
	boolean("source.annotate_requests", &c.Source.AnnotateRequests)
	if v.IsSet("source.request_timeout") {
		c.Source.RequestTimeout = v.GetDuration("source.request_timeout")
	}
	if v.IsSet("source.rate_limit_per_sec") {
		c.Source.RateLimitPerSec = v.GetInt("source.rate_limit_per_sec")
	}
	str("output.dir", &c.Output.Dir)
	str("output.prefix", &c.Output.Prefix)
	str("output.format", &c.Output.Format)
	str("output.compression", &c.Output.Compression)
	boolean("output.write_ddl", &c.Output.WriteDDL)
	str("output.dialect", &c.Output.Dialect)
	if v.IsSet("output.drop") {
		c.Output.Drop = v.GetStringSlice("output.drop")
	}
	str("upload.uri", &c.Upload.URI)
	str("upload.region", &c.Upload.Region)
	str("upload.credentials_file", &c.Upload.CredentialsFile)
	str("database.mode", &c.Database.Mode)
	str("database.dialect", &c.Database.Dialect)
	str("database.dsn", &c.Database.DSN)
	str("logging.level", &c.Logging.Level)
	str("logging.encoding", &c.Logging.Encoding)
	boolean("observability.enable_tracing", &c.Observability.EnableTracing)
	str("observability.metrics_textfile", &c.Observability.MetricsTextfile)
}

// OverrideKeys lists the keys ApplyOverrides understands.
func OverrideKeys() []string {
	return []string{
		"name",
		"source.type", "source.base_url", "source.path", "source.table_name",
		"source.annotate_requests", "source.request_timeout", "source.rate_limit_per_sec",
		"output.dir", "output.prefix", "output.format", "output.compression",
		"output.write_ddl", "output.dialect", "output.drop",
		"upload.uri", "upload.region", "upload.credentials_file",
		"database.mode", "database.dialect", "database.dsn",
		"logging.level", "logging.encoding",
		"observability.enable_tracing", "observability.metrics_textfile",
	}
}

func invalid(key, msg string) error {
	return errors.New(errors.ErrorTypeConfig, fmt.Sprintf("%s %s", key, msg)).WithDetail("key", key)
}

func oneOf(v string, allowed []string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

// envKeyReplacer maps "output.dir" to the PITCHLINE_OUTPUT_DIR variable.
var envKeyReplacer = strings.NewReplacer(".", "_")

// NewViper returns a viper instance reading the PITCHLINE_* environment
// variable of every key in OverrideKeys.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("PITCHLINE")
	v.SetEnvKeyReplacer(envKeyReplacer)
	for _, key := range OverrideKeys() {
		_ = v.BindEnv(key)
	}
	return v
}
