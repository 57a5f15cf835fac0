package columnar

import (
	"github.com/ajitpratap0/pitchline/pkg/config"
	"github.com/ajitpratap0/pitchline/pkg/connector/core"
	"github.com/ajitpratap0/pitchline/pkg/connector/registry"
)

func init() {
	for _, format := range []Format{Parquet, Arrow} {
		format := format
		_ = registry.RegisterDestination(string(format), func(cfg *config.Config) (core.FileSink, error) {
			return NewWriter(&WriterConfig{Format: format, Compression: cfg.Output.Compression})
		})
	}
}
