package config

import (
	"context"

	"github.com/caarlos0/env/v11"
	"github.com/sandevgo/deskbot/pkg/log"
)

type TelegramConfig struct {
	Token string `env:"TELEGRAM_TOKEN,required,notEmpty"`
	// AdminChatID receives passively escalated questions. Zero disables forwarding.
	AdminChatID int64 `env:"ADMIN_CHAT_ID"`
}

func NewTelegramConfig(ctx context.Context) *TelegramConfig {
	c := &TelegramConfig{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse Telegram config")
	}
	return c
}
