package config

import (
	"context"

	"github.com/caarlos0/env/v11"
	"github.com/sandevgo/deskbot/pkg/log"
)

type MetricsConfig struct {
	// Addr of the /metrics listener, e.g. ":9090". Empty disables it.
	Addr string `env:"METRICS_ADDR"`
}

func NewMetricsConfig(ctx context.Context) *MetricsConfig {
	c := &MetricsConfig{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse Metrics config")
	}
	return c
}
