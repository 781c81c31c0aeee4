package core

import "context"

// Helpdesk is the external ticketing system.
type Helpdesk interface {
	ListCategories(ctx context.Context) ([]Category, error)
	CreateTicket(ctx context.Context, t Ticket) (string, error)
}

// Notifier forwards an unanswered question to a human operator.
type Notifier interface {
	NotifyAdmin(ctx context.Context, identity *Identity, question string) error
}

// FAQSource reads a bulk FAQ file into ordered rows.
type FAQSource interface {
	ReadRows(ctx context.Context, path string) ([]FAQRow, error)
}
