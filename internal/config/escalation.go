package config

import (
	"context"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/sandevgo/deskbot/internal/core"
	"github.com/sandevgo/deskbot/pkg/log"
)

type EscalationConfig struct {
	Mode core.EscalationMode `env:"ESCALATION_MODE" envDefault:"passive"`
}

func NewEscalationConfig(ctx context.Context) *EscalationConfig {
	c := &EscalationConfig{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse Escalation config")
	}
	if err := c.Validate(); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("invalid Escalation config")
	}
	return c
}

func (c EscalationConfig) Validate() error {
	switch c.Mode {
	case core.EscalationPassive, core.EscalationActive:
		return nil
	default:
		return fmt.Errorf("unknown escalation mode %q", c.Mode)
	}
}

type HelpdeskConfig struct {
	BaseURL  string        `env:"HELPDESK_URL,required,notEmpty"`
	APIKey   string        `env:"HELPDESK_API_KEY,required,notEmpty"`
	Category string        `env:"HELPDESK_CATEGORY,required,notEmpty"`
	Timeout  time.Duration `env:"HELPDESK_TIMEOUT" envDefault:"10s"`
}

func NewHelpdeskConfig(ctx context.Context) *HelpdeskConfig {
	c := &HelpdeskConfig{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse Helpdesk config")
	}
	return c
}
