package command

import (
	"github.com/sandevgo/deskbot/internal/core"
)

func NewCommands(
	cfg core.AppConfig,
	access core.AccessConfig,
	gate Registrar,
	faq FAQAdmin,
	history EscalationHistory,
) *Router {
	router := New([]core.Command{
		NewStartCommand(gate),
		NewRegCommand(gate),
		NewFAQCommand(gate, faq),
		NewHistoryCommand(history),
		NewUpdateFAQCommand(cfg, access, faq),
		NewAddFAQCommand(access, faq),
	})
	router.Register(NewHelpCommand(router, access))
	return router
}
