package command

import (
	"context"

	"github.com/sandevgo/deskbot/internal/core"
)

type StartCommand struct {
	gate Registrar
}

func NewStartCommand(gate Registrar) *StartCommand {
	return &StartCommand{gate: gate}
}

func (c *StartCommand) Name() string {
	return "start"
}

func (c *StartCommand) Description() string {
	return "Start the conversation"
}

func (c *StartCommand) Execute(ctx context.Context, msg core.InboundMessage, args []string) (core.OutboundMessage, error) {
	ok, err := c.gate.IsRegistered(ctx, msg.UserID)
	if err != nil {
		return core.OutboundMessage{}, err
	}
	if ok {
		return core.OutboundMessage{Text: TextAlreadyReady, Keyboard: core.KeyboardRemove}, nil
	}
	return core.OutboundMessage{Text: TextWelcome, Keyboard: core.KeyboardRequestContact}, nil
}
