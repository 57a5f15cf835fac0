package main

import (
	stderrors "errors"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ajitpratap0/pitchline/pkg/config"
	"github.com/ajitpratap0/pitchline/pkg/logger"
	"github.com/ajitpratap0/pitchline/pkg/metrics"
	"github.com/ajitpratap0/pitchline/pkg/observability"

	// Register sources and sinks
	_ "github.com/ajitpratap0/pitchline/pkg/connector/destinations/columnar"
	_ "github.com/ajitpratap0/pitchline/pkg/connector/sources/file"
	_ "github.com/ajitpratap0/pitchline/pkg/connector/sources/fpl"
)

// app carries state shared by the subcommands of one invocation.
type app struct {
	configFile string
	envFile    string
	viper      *viper.Viper
	cfg        *config.Config
	logger     *zap.Logger
}

// flagKeys binds persistent flags to configuration keys.
var flagKeys = map[string]string{
	"log-level":  "logging.level",
	"output-dir": "output.dir",
	"prefix":     "output.prefix",
	"format":     "output.format",
	"base-url":   "source.base_url",
	"upload":     "upload.uri",
	"db-mode":    "database.mode",
	"db-dialect": "database.dialect",
	"db-dsn":     "database.dsn",
	"drop":       "output.drop",
}

func newRootCommand() *cobra.Command {
	a := &app{viper: config.NewViper()}

	root := &cobra.Command{
		Use:   "pitchline",
		Short: "Pitchline - Fantasy Premier League extract and load",
		Long: `Pitchline fetches tables from the Fantasy Premier League API, cleans them for
relational storage and writes them as Parquet or Arrow files with matching CREATE TABLE statements.
Tables can also be uploaded to S3 or GCS and loaded into a database.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.configFile, "config", "c", "", "Path to YAML configuration file")
	flags.StringVar(&a.envFile, "env-file", ".env", "Environment file loaded before the configuration")
	flags.String("log-level", "", "Log level (debug, info, warn, error)")
	flags.String("output-dir", "", "Directory receiving data and DDL files")
	flags.String("prefix", "", "Prefix of file and database table names")
	flags.String("format", "", "Data file format (parquet, arrow)")
	flags.String("base-url", "", "API root URL")
	flags.String("upload", "", "Upload written files to s3://bucket/prefix or gs://bucket/prefix")
	flags.String("db-mode", "", "Load tables into a database (rebuild, reload)")
	flags.String("db-dialect", "", "Database dialect (postgres, mysql, sqlite, snowflake)")
	flags.String("db-dsn", "", "Database connection string")
	flags.StringSlice("drop", nil, "Columns removed from every table after cleaning")
	for flag, key := range flagKeys {
		_ = a.viper.BindPFlag(key, flags.Lookup(flag))
	}

	root.AddCommand(
		newVersionCommand(),
		newListCommand(),
		newRunCommand(a),
		newLoadCommand(a),
		newDDLCommand(a),
		newInspectCommand(a),
		newConfigCommand(a),
	)
	return root
}

// setup loads .env, the configuration file and overrides, then initializes
// logging and tracing.
func (a *app) setup() error {
	if err := godotenv.Load(a.envFile); err != nil && !stderrors.Is(err, fs.ErrNotExist) {
		return err
	}

	cfg := config.Default()
	if a.configFile != "" {
		var err error
		if cfg, err = config.LoadFile(a.configFile); err != nil {
			return err
		}
	}
	cfg.ApplyOverrides(a.viper)
	a.cfg = cfg

	if err := logger.Init(cfg.Logging); err != nil {
		return err
	}
	a.logger = logger.Get().With(zap.String("component", "cli"))

	tracing := observability.DefaultConfig()
	tracing.Enabled = cfg.Observability.EnableTracing
	tracing.ServiceName = cfg.Observability.ServiceName
	tracing.ServiceVersion = version
	return observability.Initialize(tracing)
}

// exportMetrics writes the metrics textfile if one is configured.
func (a *app) exportMetrics() {
	path := a.cfg.Observability.MetricsTextfile
	if path == "" {
		return
	}
	if err := metrics.WriteTextfile(path); err != nil {
		a.logger.Warn("failed to write metrics textfile", zap.Error(err))
		return
	}
	a.logger.Debug("metrics written", zap.String("path", path))
}

// requireFile fails early with a readable message for a missing input.
func requireFile(path string) error {
	if _, err := os.Stat(path); err != nil {
		return err
	}
	return nil
}
