package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/pitchline/pkg/errors"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		key    string
	}{
		{"missing source", func(c *Config) { c.Source.Type = "" }, "source.type"},
		{"file without path", func(c *Config) { c.Source.Type = "file" }, "source.path"},
		{"negative timeout", func(c *Config) { c.Source.RequestTimeout = -time.Second }, "source.request_timeout"},
		{"negative rate", func(c *Config) { c.Source.RateLimitPerSec = -1 }, "source.rate_limit_per_sec"},
		{"no output dir", func(c *Config) { c.Output.Dir = "" }, "output.dir"},
		{"bad format", func(c *Config) { c.Output.Format = "csv" }, "output.format"},
		{"bad compression", func(c *Config) { c.Output.Compression = "brotli" }, "output.compression"},
		{"bad dialect", func(c *Config) { c.Output.Dialect = "db2" }, "output.dialect"},
		{"bad upload", func(c *Config) { c.Upload.URI = "ftp://x" }, "upload.uri"},
		{"rename to empty", func(c *Config) { c.Output.Rename = map[string]string{"web_name": " "} }, "output.rename"},
		{"bad mode", func(c *Config) { c.Database.Mode = "append" }, "database.mode"},
		{"oracle load", func(c *Config) {
			c.Database.Mode = ModeRebuild
			c.Database.Dialect = "oracle"
		}, "database.dialect"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

			var e *errors.Error
			require.True(t, errors.As(err, &e))
			assert.Equal(t, tt.key, e.Details["key"])
		})
	}
}

func TestLoadFileSubstitutesEnv(t *testing.T) {
	t.Setenv("PITCHLINE_TEST_DSN", "file:fpl.db")

	path := filepath.Join(t.TempDir(), "pitchline.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: nightly
source:
  annotate_requests: true
  request_timeout: 15s
output:
  dir: /tmp/out
  format: arrow
database:
  mode: reload
  dialect: sqlite
  dsn: ${PITCHLINE_TEST_DSN}
`), 0o600))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "nightly", cfg.Name)
	assert.Equal(t, "fpl", cfg.Source.Type, "unset keys keep defaults")
	assert.True(t, cfg.Source.AnnotateRequests)
	assert.Equal(t, 15*time.Second, cfg.Source.RequestTimeout)
	assert.Equal(t, "arrow", cfg.Output.Format)
	assert.Equal(t, "snappy", cfg.Output.Compression)
	assert.Equal(t, "file:fpl.db", cfg.Database.DSN)
}

func TestLoadFileErrors(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("source: [unterminated"), 0o600))
	_, err = LoadFile(bad)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.yaml")
	cfg := Default()
	cfg.Upload.URI = "s3://bucket/fpl"
	require.NoError(t, Save(path, cfg))

	loaded, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestSubstituteEnvVars(t *testing.T) {
	t.Setenv("A", "1")
	t.Setenv("LOOP", "${LOOP}")

	assert.Equal(t, "x=1 y= z=${LOOP}", substituteEnvVars("x=${A} y=${UNSET_PITCHLINE_VAR} z=${LOOP}"))
	assert.Equal(t, "open ${", substituteEnvVars("open ${"))
}

func TestApplyOverrides(t *testing.T) {
	t.Setenv("PITCHLINE_OUTPUT_DIR", "/env/dir")

	v := viper.New()
	v.SetEnvPrefix("PITCHLINE")
	v.SetEnvKeyReplacer(envKeyReplacer)
	v.AutomaticEnv()
	v.Set("source.annotate_requests", true)
	v.Set("source.request_timeout", "2s")

	cfg := Default()
	cfg.ApplyOverrides(v)

	assert.Equal(t, "/env/dir", cfg.Output.Dir)
	assert.True(t, cfg.Source.AnnotateRequests)
	assert.Equal(t, 2*time.Second, cfg.Source.RequestTimeout)
	assert.Equal(t, "parquet", cfg.Output.Format, "unset keys are untouched")
}

func TestNewViperReadsEnvironment(t *testing.T) {
	t.Setenv("PITCHLINE_OUTPUT_FORMAT", "arrow")
	t.Setenv("PITCHLINE_OUTPUT_DROP", "photo news")

	cfg := Default()
	cfg.ApplyOverrides(NewViper())

	assert.Equal(t, "arrow", cfg.Output.Format)
	assert.Equal(t, []string{"photo", "news"}, cfg.Output.Drop)
	assert.Equal(t, "data", cfg.Output.Dir)
}
