package config_test

import (
	"fmt"

	"github.com/ajitpratap0/pitchline/pkg/config"
)

// ExampleDefault demonstrates the defaults a run starts from.
func ExampleDefault() {
	cfg := config.Default()

	fmt.Printf("Source: %s\n", cfg.Source.Type)
	fmt.Printf("Format: %s (%s)\n", cfg.Output.Format, cfg.Output.Compression)
	fmt.Printf("DDL dialect: %s\n", cfg.Output.Dialect)
	fmt.Printf("Request timeout: %s\n", cfg.Source.RequestTimeout)

	// Output:
	// Source: fpl
	// Format: parquet (snappy)
	// DDL dialect: oracle
	// Request timeout: 0s
}

// ExampleConfig_Validate shows how to validate a configuration
// before using it.
func ExampleConfig_Validate() {
	cfg := config.Default()
	cfg.Database.Mode = config.ModeReload
	cfg.Database.Dialect = "postgres"

	if err := cfg.Validate(); err != nil {
		fmt.Println(err)
	}

	cfg.Database.DSN = "postgres://localhost/fpl"
	if err := cfg.Validate(); err == nil {
		fmt.Println("Configuration is valid!")
	}

	// Output:
	// config: database.dsn is required when database.mode is set
	// Configuration is valid!
}
