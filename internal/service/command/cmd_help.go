package command

import (
	"context"
	"fmt"

	"github.com/sandevgo/deskbot/internal/core"
)

type HelpCommand struct {
	router    core.CmdRouter
	access    core.AccessConfig
	formatter *ResponseFormatter
}

func NewHelpCommand(router core.CmdRouter, access core.AccessConfig) *HelpCommand {
	return &HelpCommand{
		router:    router,
		access:    access,
		formatter: NewResponseFormatter(),
	}
}

func (c *HelpCommand) Name() string {
	return "help"
}

func (c *HelpCommand) Description() string {
	return "List commands"
}

func (c *HelpCommand) Execute(ctx context.Context, msg core.InboundMessage, args []string) (core.OutboundMessage, error) {
	isAdmin := c.access.IsAdmin(msg.UserID)

	var lines []string
	for _, cmd := range c.router.ListCommands() {
		if _, adminOnly := cmd.(adminCommand); adminOnly && !isAdmin {
			continue
		}
		lines = append(lines, fmt.Sprintf("/%s - %s", cmd.Name(), cmd.Description()))
	}

	return core.OutboundMessage{
		Text: c.formatter.Combine(c.formatter.Info("Commands"), c.formatter.List(lines)),
	}, nil
}
