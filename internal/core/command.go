package core

import "context"

type CmdRouter interface {
	Execute(ctx context.Context, msg InboundMessage) (OutboundMessage, bool)
	ListCommands() []Command
}

type Command interface {
	Name() string
	Description() string
	Execute(ctx context.Context, msg InboundMessage, args []string) (OutboundMessage, error)
}
