package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/sandevgo/deskbot/internal/config"
	"github.com/sandevgo/deskbot/internal/core"
	"github.com/sandevgo/deskbot/pkg/log"
)

// ConsoleUserID is the identity the local console speaks as.
const ConsoleUserID int64 = 1

const contactCommand = "/contact"

type Handler interface {
	Handle(ctx context.Context, msg core.InboundMessage) []core.OutboundMessage
}

// ReadLine is a local chat with the dispatcher, for trying the FAQ without Telegram.
type ReadLine struct {
	cfg     *config.AppConfig
	handler Handler
	rl      *readline.Instance
	userID  int64
}

func NewReadLine(handler Handler, cfg *config.AppConfig) (*ReadLine, error) {
	if err := os.MkdirAll(cfg.RuntimePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create runtime directory: %w", err)
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          ">>> ",
		HistoryFile:     filepath.Join(cfg.RuntimePath, "input_history"),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, err
	}

	return &ReadLine{
		cfg:     cfg,
		handler: handler,
		rl:      rl,
		userID:  ConsoleUserID,
	}, nil
}

// Stdout is safe to log to while a prompt is active.
func (r *ReadLine) Stdout() io.Writer {
	return r.rl.Stdout()
}

func (r *ReadLine) Start(ctx context.Context) error {
	logger := log.FromCtx(ctx)
	logger.Info().Msgf("Console started. Share a phone with '%s +71234567890', type 'exit' to quit.", contactCommand)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line, err := r.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				if len(line) == 0 {
					return nil
				}
				continue
			} else if err == io.EOF {
				return nil
			}
			return err
		}

		line = strings.TrimSpace(line)
		if line == "exit" {
			return nil
		}
		if line == "" {
			continue
		}

		for _, out := range r.handler.Handle(ctx, parseLine(r.userID, line)) {
			render(r.rl.Stdout(), out)
		}
	}
}

func (r *ReadLine) Shutdown(ctx context.Context) error {
	if r.rl != nil {
		return r.rl.Close()
	}
	return nil
}

// parseLine maps console input to the message a chat client would send.
// "/contact <phone>" stands in for the share-contact button.
func parseLine(userID int64, line string) core.InboundMessage {
	msg := core.InboundMessage{
		UserID:   userID,
		Username: "console",
		FullName: "Console User",
		Kind:     core.KindText,
		Text:     line,
	}

	if rest, ok := strings.CutPrefix(line, contactCommand); ok && (rest == "" || rest[0] == ' ') {
		msg.Kind = core.KindIdentityClaim
		msg.Phone = strings.TrimSpace(rest)
		msg.Text = ""
		return msg
	}
	if strings.HasPrefix(line, "/") {
		msg.Kind = core.KindCommand
	}
	return msg
}

func render(w io.Writer, out core.OutboundMessage) {
	fmt.Fprintf(w, "%s\n", strings.TrimRight(out.Text, "\n"))
	if out.Keyboard == core.KeyboardRequestContact {
		fmt.Fprintf(w, "\033[38;5;240m[%s +71234567890]\033[0m\n", contactCommand)
	}
}
