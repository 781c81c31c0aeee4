package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sandevgo/deskbot/internal/core"
	"github.com/sandevgo/deskbot/internal/transport/cli"
	"github.com/sandevgo/deskbot/pkg/log"
	"github.com/sandevgo/deskbot/pkg/srv"
	"github.com/spf13/cobra"
)

var consoleCmd = &cobra.Command{
	Use:          "console",
	Short:        "Chat with the bot in the terminal",
	Long:         `Runs the full message flow against the local database with a console user instead of Telegram.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		var flushLog func()
		ctx, flushLog = setupLogger(ctx)
		defer flushLog()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		services := []srv.Service{srv.NewCleanup(a.db.Close)}

		d := a.newDispatcher(ctx, logNotifier{})
		rl, err := cli.NewReadLine(d, a.cfg)
		if err != nil {
			return err
		}
		services = append(services, d, rl)

		// log through readline so lines do not tear the prompt
		ctx = log.NewContextWithWriter(ctx, rl.Stdout())

		runErr := rl.Start(ctx)

		shutdownCtx, cancel := context.WithCancel(ctx)
		cancel()
		srv.ShutdownServices(shutdownCtx, services)

		if runErr == context.Canceled {
			return nil
		}
		return runErr
	},
}

// logNotifier stands in for the admin chat when running locally.
type logNotifier struct{}

func (logNotifier) NotifyAdmin(ctx context.Context, identity *core.Identity, question string) error {
	ev := log.FromCtx(ctx).Info().Str("question", question)
	if identity != nil {
		ev = ev.Str("phone", identity.Phone)
	}
	ev.Msg("question forwarded to admin")
	return nil
}

func init() {
	rootCmd.AddCommand(consoleCmd)
}
