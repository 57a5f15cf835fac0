package fpl

import (
	"github.com/ajitpratap0/pitchline/pkg/config"
	"github.com/ajitpratap0/pitchline/pkg/connector/core"
	"github.com/ajitpratap0/pitchline/pkg/connector/registry"
)

func init() {
	_ = registry.RegisterSource("fpl", func(cfg *config.Config) (core.TableSource, error) {
		return NewSource(cfg)
	})
}
