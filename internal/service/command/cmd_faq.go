package command

import (
	"context"

	"github.com/sandevgo/deskbot/internal/core"
)

const faqTopicsLimit = 10

type FAQCommand struct {
	gate      Registrar
	faq       FAQAdmin
	formatter *ResponseFormatter
}

func NewFAQCommand(gate Registrar, faq FAQAdmin) *FAQCommand {
	return &FAQCommand{
		gate:      gate,
		faq:       faq,
		formatter: NewResponseFormatter(),
	}
}

func (c *FAQCommand) Name() string {
	return "faq"
}

func (c *FAQCommand) Description() string {
	return "Ask a question"
}

func (c *FAQCommand) Execute(ctx context.Context, msg core.InboundMessage, args []string) (core.OutboundMessage, error) {
	// topics are knowledge base content, same gate as questions
	ok, err := c.gate.IsRegistered(ctx, msg.UserID)
	if err != nil {
		return core.OutboundMessage{}, err
	}
	if !ok {
		return core.OutboundMessage{Text: TextNeedContact, Keyboard: core.KeyboardRequestContact}, nil
	}

	questions, err := c.faq.Questions(ctx)
	if err != nil {
		return core.OutboundMessage{}, err
	}
	if len(questions) == 0 {
		return core.OutboundMessage{Text: TextAskQuestion}, nil
	}

	if len(questions) > faqTopicsLimit {
		questions = questions[:faqTopicsLimit]
	}
	return core.OutboundMessage{
		Text: c.formatter.Combine(TextAskQuestion, c.formatter.Info("Popular topics"), c.formatter.List(questions)),
	}, nil
}
