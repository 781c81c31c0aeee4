package command

import (
	"context"
	"fmt"

	"github.com/sandevgo/deskbot/internal/core"
)

const historyLimit = 5

// HistoryCommand shows the user what happened to their unanswered questions.
type HistoryCommand struct {
	history   EscalationHistory
	formatter *ResponseFormatter
}

func NewHistoryCommand(history EscalationHistory) *HistoryCommand {
	return &HistoryCommand{
		history:   history,
		formatter: NewResponseFormatter(),
	}
}

func (c *HistoryCommand) Name() string {
	return "my_questions"
}

func (c *HistoryCommand) Description() string {
	return "Show your forwarded questions"
}

func (c *HistoryCommand) Execute(ctx context.Context, msg core.InboundMessage, args []string) (core.OutboundMessage, error) {
	items, err := c.history.ListEscalations(ctx, msg.UserID, historyLimit)
	if err != nil {
		return core.OutboundMessage{}, err
	}
	if len(items) == 0 {
		return core.OutboundMessage{Text: "You have no forwarded questions."}, nil
	}

	lines := make([]string, 0, len(items))
	for _, e := range items {
		lines = append(lines, fmt.Sprintf("%s  %s", e.CreatedAt.Format("2006-01-02 15:04"), describe(e)))
	}
	return core.OutboundMessage{
		Text: c.formatter.Combine(c.formatter.Info("Your questions"), c.formatter.List(lines)),
	}, nil
}

func describe(e core.Escalation) string {
	switch e.Status {
	case core.OutcomeTicketCreated:
		return fmt.Sprintf("%q: request #%s", e.Question, e.TicketID)
	case core.OutcomeNotified:
		return fmt.Sprintf("%q: passed to an administrator", e.Question)
	default:
		return fmt.Sprintf("%q: not delivered", e.Question)
	}
}
