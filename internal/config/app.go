package config

import (
	"context"
	"path/filepath"
	"slices"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/sandevgo/deskbot/pkg/log"
)

type AppConfig struct {
	RuntimePath string `env:"DESKBOT_RUNTIME_PATH" envDefault:".deskbot"`

	// Transport Flags
	EnableTelegram bool `env:"ENABLE_TELEGRAM" envDefault:"true"`

	// FAQFile is the bulk source used by /update_faq. Relative paths resolve against RuntimePath.
	FAQFile string `env:"FAQ_FILE" envDefault:"faq.xlsx"`

	StoreTimeout time.Duration `env:"STORE_TIMEOUT" envDefault:"5s"`

	AdminIDs []int64 `env:"ADMIN_IDS" envSeparator:","`

	// Per-user flood control
	RateLimit float64 `env:"RATE_LIMIT_PER_SEC" envDefault:"1"`
	RateBurst int     `env:"RATE_LIMIT_BURST" envDefault:"5"`
}

func NewAppConfig(ctx context.Context) *AppConfig {
	c := &AppConfig{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse App config")
	}
	c.RuntimePath = resolveRuntimePath(c.RuntimePath)
	return c
}

func (c AppConfig) GetRuntimePath() string {
	return c.RuntimePath
}

func (c AppConfig) GetDatabasePath() string {
	return filepath.Join(c.RuntimePath, "deskbot.db")
}

func (c AppConfig) GetFAQFilePath() string {
	if filepath.IsAbs(c.FAQFile) {
		return c.FAQFile
	}
	return filepath.Join(c.RuntimePath, c.FAQFile)
}

func (c AppConfig) GetStoreTimeout() time.Duration {
	return c.StoreTimeout
}

func (c AppConfig) IsTelegramSelected() bool {
	return c.EnableTelegram
}

func (c AppConfig) IsAdmin(userID int64) bool {
	return slices.Contains(c.AdminIDs, userID)
}
