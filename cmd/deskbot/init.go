package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sandevgo/deskbot/internal/config"
	"github.com/sandevgo/deskbot/internal/core"
	"github.com/sandevgo/deskbot/internal/service/ui"
	"github.com/sandevgo/deskbot/internal/storage/sqlite"
	"github.com/sandevgo/deskbot/pkg/env"
	"github.com/sandevgo/deskbot/pkg/log"
	"github.com/spf13/cobra"
)

var initOpts struct {
	force       bool
	noTelegram  bool
	token       string
	adminChatID int64
	adminIDs    []int64
	faqFile     string
	mode        string
	hdURL       string
	hdKey       string
	hdCategory  string
	metricsAddr string
}

var initCmd = &cobra.Command{
	Use:          "init",
	Short:        "Create the runtime directory, .env file and database",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		var flushLog func()
		ctx, flushLog = setupLogger(ctx)
		defer flushLog()
		logger := log.FromCtx(ctx)

		runtimePath := config.GetRuntimePath()
		envPath := filepath.Join(runtimePath, ".env")

		if _, err := os.Stat(envPath); err == nil && !initOpts.force {
			return fmt.Errorf("%s already exists, use --force to overwrite", envPath)
		}

		content, err := buildEnv()
		if err != nil {
			return err
		}

		if err := os.MkdirAll(runtimePath, 0755); err != nil {
			return fmt.Errorf("failed to create runtime directory: %w", err)
		}
		if err := os.WriteFile(envPath, []byte(content), 0600); err != nil {
			return fmt.Errorf("failed to write %s: %w", envPath, err)
		}
		logger.Info().Str("path", envPath).Msg("configuration written")

		db, err := sqlite.NewDB(ctx, filepath.Join(runtimePath, "deskbot.db"))
		if err != nil {
			return err
		}
		defer db.Close()

		fmt.Fprintln(cmd.OutOrStdout(), ui.TitleStyle.Render("DESKBOT INITIALIZED"))
		fmt.Fprintf(cmd.OutOrStdout(), "  %s %s\n", ui.UsageStyle.Render("runtime"), runtimePath)
		fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", ui.DescStyle.Render("Import your FAQ with 'deskbot import <file>', then run 'deskbot start'."))
		return nil
	},
}

// buildEnv renders the flags into .env content, one section per config struct.
func buildEnv() (string, error) {
	mode := core.EscalationMode(strings.ToLower(initOpts.mode))
	if err := (config.EscalationConfig{Mode: mode}).Validate(); err != nil {
		return "", err
	}
	if !initOpts.noTelegram && initOpts.token == "" {
		return "", errors.New("--token is required unless --no-telegram is set")
	}
	if mode == core.EscalationActive && (initOpts.hdURL == "" || initOpts.hdKey == "" || initOpts.hdCategory == "") {
		return "", errors.New("active escalation needs --helpdesk-url, --helpdesk-key and --helpdesk-category")
	}

	sections := []any{
		&config.AppConfig{
			FAQFile:  initOpts.faqFile,
			AdminIDs: initOpts.adminIDs,
		},
		&config.EscalationConfig{Mode: mode},
		&config.MetricsConfig{Addr: initOpts.metricsAddr},
	}
	if !initOpts.noTelegram {
		sections = append(sections, &config.TelegramConfig{
			Token:       initOpts.token,
			AdminChatID: initOpts.adminChatID,
		})
	}
	if mode == core.EscalationActive {
		sections = append(sections, &config.HelpdeskConfig{
			BaseURL:  initOpts.hdURL,
			APIKey:   initOpts.hdKey,
			Category: initOpts.hdCategory,
		})
	}

	var sb strings.Builder
	for _, s := range sections {
		out, err := env.MarshalEnv(s)
		if err != nil {
			return "", err
		}
		sb.WriteString(out)
	}
	// false is the zero value, so MarshalEnv would drop it
	if initOpts.noTelegram {
		sb.WriteString("ENABLE_TELEGRAM=false\n")
	}
	return sb.String(), nil
}

func init() {
	f := initCmd.Flags()
	f.BoolVar(&initOpts.force, "force", false, "overwrite an existing .env")
	f.BoolVar(&initOpts.noTelegram, "no-telegram", false, "disable the Telegram transport")
	f.StringVar(&initOpts.token, "token", "", "Telegram bot token")
	f.Int64Var(&initOpts.adminChatID, "admin-chat", 0, "chat that receives unanswered questions")
	f.Int64SliceVar(&initOpts.adminIDs, "admin-ids", nil, "user ids allowed to run /update_faq and /add_faq")
	f.StringVar(&initOpts.faqFile, "faq-file", "", "FAQ file used by /update_faq")
	f.StringVar(&initOpts.mode, "mode", string(core.EscalationPassive), "escalation mode: passive or active")
	f.StringVar(&initOpts.hdURL, "helpdesk-url", "", "helpdesk base URL")
	f.StringVar(&initOpts.hdKey, "helpdesk-key", "", "helpdesk API key")
	f.StringVar(&initOpts.hdCategory, "helpdesk-category", "", "helpdesk category code for new tickets")
	f.StringVar(&initOpts.metricsAddr, "metrics-addr", "", "listen address for /metrics")
	rootCmd.AddCommand(initCmd)
}
