package main

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/ajitpratap0/pitchline/internal/pipeline"
	"github.com/ajitpratap0/pitchline/pkg/config"
	"github.com/ajitpratap0/pitchline/pkg/connector/destinations/columnar"
	"github.com/ajitpratap0/pitchline/pkg/connector/destinations/sqldb"
	"github.com/ajitpratap0/pitchline/pkg/connector/registry"
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Pitchline v%s\n", version)
			fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
			fmt.Fprintf(out, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}

func newListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List available sources, file formats and SQL dialects",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Sources:")
			for _, s := range registry.ListSources() {
				fmt.Fprintf(out, "  - %s\n", s)
			}
			fmt.Fprintln(out, "\nFile formats:")
			for _, d := range registry.ListDestinations() {
				fmt.Fprintf(out, "  - %s\n", d)
			}
			fmt.Fprintln(out, "\nSQL dialects:")
			for _, d := range sqldb.Dialects() {
				fmt.Fprintf(out, "  - %s\n", d)
			}
		},
	}
}

func newRunCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Fetch, clean and write every table of the configured source",
		Long: `Run the full pipeline for the configured source (the FPL API by default).

Example:
  pitchline run --output-dir data --prefix fpl
  pitchline run -c pitchline.yaml --db-mode rebuild --db-dialect postgres --db-dsn "$PG_DSN"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runPipeline(cmd)
		},
	}
}

func newLoadCommand(a *app) *cobra.Command {
	var tableName string
	cmd := &cobra.Command{
		Use:   "load FILE",
		Short: "Clean and write a local JSON or CSV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireFile(args[0]); err != nil {
				return err
			}
			a.cfg.Source.Type = "file"
			a.cfg.Source.Path = args[0]
			if tableName != "" {
				a.cfg.Source.TableName = tableName
			}
			return a.runPipeline(cmd)
		},
	}
	cmd.Flags().StringVar(&tableName, "table", "", "Table name (default: file stem)")
	return cmd
}

func (a *app) runPipeline(cmd *cobra.Command) error {
	ctx := cmd.Context()
	defer a.exportMetrics()

	p, err := pipeline.FromConfig(ctx, a.cfg, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err := p.Close(); err != nil {
			a.logger.Warn("failed to close pipeline", zap.Error(err))
		}
	}()

	report, err := p.Run(ctx)
	if report != nil {
		if werr := writeYAML(cmd, report); werr != nil && err == nil {
			err = werr
		}
	}
	return err
}

func newDDLCommand(a *app) *cobra.Command {
	var tableName, dialect string
	cmd := &cobra.Command{
		Use:   "ddl FILE",
		Short: "Print the CREATE TABLE statement for a Parquet or Arrow file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := columnar.Read(cmd.Context(), args[0], nil)
			if err != nil {
				return err
			}
			defer t.Release()

			if dialect == "" {
				dialect = a.cfg.Output.Dialect
			}
			d, err := sqldb.DialectFor(dialect)
			if err != nil {
				return err
			}
			if tableName == "" {
				tableName = strings.ToUpper(t.Name())
			}
			ddl, err := sqldb.CreateTableStatement(d, t, tableName)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), ddl+";")
			return nil
		},
	}
	cmd.Flags().StringVar(&tableName, "table", "", "Table name (default: upper-cased file stem)")
	cmd.Flags().StringVar(&dialect, "dialect", "", "SQL dialect (default: output.dialect)")
	return cmd
}

func newInspectCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect FILE",
		Short: "Show the schema and row count of a Parquet or Arrow file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := columnar.Read(cmd.Context(), args[0], nil)
			if err != nil {
				return err
			}
			defer t.Release()

			a.logger.Debug("inspected file", zap.String("path", args[0]))
			return writeYAML(cmd, struct {
				File   string      `yaml:"file"`
				Format string      `yaml:"format"`
				Rows   int64       `yaml:"rows"`
				Schema interface{} `yaml:"schema"`
			}{
				File:   filepath.Base(args[0]),
				Format: string(columnar.FormatForPath(args[0])),
				Rows:   t.NumRows(),
				Schema: t.Describe(),
			})
		},
	}
}

func newConfigCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "config [FILE]",
		Short: "Print the effective configuration, or save it to FILE",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				return config.Save(args[0], a.cfg)
			}
			return writeYAML(cmd, a.cfg)
		},
	}
}

func writeYAML(cmd *cobra.Command, v interface{}) error {
	enc := yaml.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}
