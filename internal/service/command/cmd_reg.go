package command

import (
	"context"

	"github.com/sandevgo/deskbot/internal/core"
)

// RegCommand registers a phone typed by hand, for clients that cannot share a contact.
type RegCommand struct {
	gate      Registrar
	formatter *ResponseFormatter
}

func NewRegCommand(gate Registrar) *RegCommand {
	return &RegCommand{
		gate:      gate,
		formatter: NewResponseFormatter(),
	}
}

func (c *RegCommand) Name() string {
	return "reg"
}

func (c *RegCommand) Description() string {
	return "Register with a phone number"
}

func (c *RegCommand) Execute(ctx context.Context, msg core.InboundMessage, args []string) (core.OutboundMessage, error) {
	if len(args) == 0 {
		identity, err := c.gate.Identity(ctx, msg.UserID)
		if err != nil {
			return core.OutboundMessage{}, err
		}
		if identity != nil {
			return core.OutboundMessage{
				Text: c.formatter.Combine(
					c.formatter.Label("Registered phone", identity.Phone),
					"To change it send "+c.formatter.Usage("/reg +71234567890"),
				),
			}, nil
		}
		return core.OutboundMessage{
			Text: c.formatter.Combine(
				"Share your contact with the button below, or send your phone:",
				c.formatter.Usage("/reg +71234567890"),
			),
			Keyboard: core.KeyboardRequestContact,
		}, nil
	}

	if _, err := c.gate.SubmitIdentityClaim(ctx, msg.UserID, args[0], msg.Username, msg.FullName); err != nil {
		return core.OutboundMessage{}, err
	}
	return core.OutboundMessage{Text: c.formatter.Success(TextRegistered), Keyboard: core.KeyboardRemove}, nil
}
