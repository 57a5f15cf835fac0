package file

import (
	"github.com/ajitpratap0/pitchline/pkg/config"
	"github.com/ajitpratap0/pitchline/pkg/connector/core"
	"github.com/ajitpratap0/pitchline/pkg/connector/registry"
)

func init() {
	_ = registry.RegisterSource("file", func(cfg *config.Config) (core.TableSource, error) {
		return NewSource(cfg.Source.Path, WithTableName(cfg.Source.TableName))
	})
}
