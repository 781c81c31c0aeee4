package command

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/sandevgo/deskbot/internal/core"
	"github.com/sandevgo/deskbot/pkg/log"
)

var errAdminOnly = errors.New("admin only")

type Router struct {
	commands  map[string]core.Command
	formatter *ResponseFormatter
}

func New(commands []core.Command) *Router {
	c := &Router{
		commands:  make(map[string]core.Command),
		formatter: NewResponseFormatter(),
	}

	for _, cmd := range commands {
		c.commands[cmd.Name()] = cmd
	}
	return c
}

// Register adds commands after construction, e.g. /help which lists the router itself.
func (c *Router) Register(cmds ...core.Command) {
	for _, cmd := range cmds {
		c.commands[cmd.Name()] = cmd
	}
}

func (c *Router) Execute(ctx context.Context, msg core.InboundMessage) (core.OutboundMessage, bool) {
	input := strings.TrimSpace(msg.Text)
	if !strings.HasPrefix(input, "/") {
		return core.OutboundMessage{}, false
	}

	parts := strings.Fields(input)
	name := strings.TrimPrefix(parts[0], "/")
	// Telegram appends the bot name in groups: /start@deskbot
	if at := strings.IndexByte(name, '@'); at >= 0 {
		name = name[:at]
	}
	args := parts[1:]

	reply := core.OutboundMessage{UserID: msg.UserID}

	cmd, ok := c.commands[strings.ToLower(name)]
	if !ok {
		reply.Text = fmt.Sprintf("Unknown command: /%s. Send /help for the list of commands.", name)
		return reply, true
	}

	out, err := cmd.Execute(ctx, msg, args)
	if err != nil {
		reply.Text = c.renderError(ctx, name, err)
		return reply, true
	}
	out.UserID = msg.UserID
	return out, true
}

func (c *Router) renderError(ctx context.Context, name string, err error) string {
	var ve *core.ValidationError
	switch {
	case errors.As(err, &ve):
		return c.formatter.Error(TextInvalidPhone)
	case errors.Is(err, errAdminOnly):
		return c.formatter.Error(TextAdminOnly)
	default:
		log.FromCtx(ctx).Error().Err(err).Str("command", name).Msg("command failed")
		return c.formatter.Warning(TextRetryLater)
	}
}

// ListCommands returns commands sorted by name.
func (c *Router) ListCommands() []core.Command {
	res := make([]core.Command, 0, len(c.commands))
	for _, cmd := range c.commands {
		res = append(res, cmd)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Name() < res[j].Name() })
	return res
}
