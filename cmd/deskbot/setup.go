package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/sandevgo/deskbot/internal/config"
	"github.com/sandevgo/deskbot/internal/core"
	"github.com/sandevgo/deskbot/internal/metrics"
	"github.com/sandevgo/deskbot/internal/providers/faqsource"
	"github.com/sandevgo/deskbot/internal/providers/helpdesk"
	"github.com/sandevgo/deskbot/internal/service/command"
	"github.com/sandevgo/deskbot/internal/service/dispatcher"
	"github.com/sandevgo/deskbot/internal/service/escalation"
	"github.com/sandevgo/deskbot/internal/service/faq"
	"github.com/sandevgo/deskbot/internal/service/registration"
	"github.com/sandevgo/deskbot/internal/storage/sqlite"
	"github.com/sandevgo/deskbot/internal/transport/telegram"
	"github.com/sandevgo/deskbot/pkg/log"
	"github.com/sandevgo/deskbot/pkg/srv"
)

// app holds the storage-backed services shared by every subcommand.
type app struct {
	cfg         *config.AppConfig
	db          *sql.DB
	identities  *sqlite.IdentityRepo
	faqs        *sqlite.FAQRepo
	escalations *sqlite.EscalationRepo
	engine      *faq.Engine
	gate        *registration.Gate
}

func newApp(ctx context.Context) (*app, error) {
	if err := initEnv(ctx, config.GetRuntimePath()); err != nil {
		return nil, fmt.Errorf("failed to init env: %w", err)
	}

	cfg := config.NewAppConfig(ctx)

	db, err := sqlite.NewDB(ctx, cfg.GetDatabasePath())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	timeout := cfg.GetStoreTimeout()
	a := &app{
		cfg:         cfg,
		db:          db,
		identities:  sqlite.NewIdentityRepo(db, timeout),
		faqs:        sqlite.NewFAQRepo(db, timeout),
		escalations: sqlite.NewEscalationRepo(db, timeout),
	}
	a.engine = faq.NewEngine(a.faqs, faqsource.NewReader())
	a.gate = registration.NewGate(a.identities)
	return a, nil
}

// newDispatcher wires commands and escalation around the storage services.
// notifier may be nil, in which case passive escalations are only journaled.
func (a *app) newDispatcher(ctx context.Context, notifier core.Notifier) *dispatcher.Dispatcher {
	logger := log.FromCtx(ctx)

	escCfg := config.NewEscalationConfig(ctx)
	router := escalation.NewRouter(escCfg.Mode, a.escalations, a.identities)
	switch escCfg.Mode {
	case core.EscalationActive:
		hdCfg := config.NewHelpdeskConfig(ctx)
		router.WithHelpdesk(helpdesk.NewClient(hdCfg), hdCfg.Category)
		logger.Info().Str("helpdesk", hdCfg.BaseURL).Str("category", hdCfg.Category).Msg("active escalation enabled")
	case core.EscalationPassive:
		if notifier != nil {
			router.WithNotifier(notifier)
		}
	}

	commands := command.NewCommands(a.cfg, a.cfg, a.gate, a.engine, a.escalations)

	return dispatcher.New(commands, a.gate, a.engine, router).
		WithRateLimit(a.cfg.RateLimit, a.cfg.RateBurst)
}

func NewServices(ctx context.Context) []srv.Service {
	logger := log.FromCtx(ctx)
	services := make([]srv.Service, 0)

	a, err := newApp(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to start")
	}
	services = append(services, srv.NewCleanup(a.db.Close))

	metricsCfg := config.NewMetricsConfig(ctx)
	if metricsCfg.Addr != "" {
		services = append(services, srv.NewHTTPService(metricsCfg.Addr, metrics.Handler()))
	}

	transports, err := initTransports(ctx, a)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize transports")
	}
	if len(transports) == 0 {
		logger.Warn().Msg("no transport enabled, use 'deskbot console' to talk to the bot locally")
	}
	services = append(services, transports...)

	return services
}

func initTransports(ctx context.Context, a *app) ([]srv.Service, error) {
	var services []srv.Service

	if a.cfg.IsTelegramSelected() {
		tgCfg := config.NewTelegramConfig(ctx)
		bot, err := telegram.NewBot(ctx, tgCfg)
		if err != nil {
			return nil, err
		}
		d := a.newDispatcher(ctx, bot)
		bot.SetHandler(d)
		// bot stops first so the dispatcher drains only what was already queued
		services = append(services, d, bot)
	}

	return services, nil
}

func initEnv(ctx context.Context, runtimePath string) error {
	logger := log.FromCtx(ctx)
	envFile := filepath.Join(runtimePath, ".env")

	if _, err := os.Stat(envFile); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	if err := godotenv.Load(envFile); err != nil {
		logger.Warn().Err(err).Str("path", envFile).Msg("failed to load .env file")
		return err
	}

	logger.Debug().Str("path", envFile).Msg("loaded .env file")
	return nil
}
