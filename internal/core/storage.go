package core

import "context"

type IdentityRepository interface {
	GetIdentity(ctx context.Context, userID int64) (*Identity, error)
	UpsertIdentity(ctx context.Context, identity Identity) error
}

type FAQRepository interface {
	FindAnswer(ctx context.Context, text string) (string, error)
	GetFAQ(ctx context.Context, question string) (*FAQEntry, error)
	InsertFAQ(ctx context.Context, question, answer string) error
	UpsertFAQ(ctx context.Context, question, answer string) (UpsertResult, error)
	ListFAQQuestions(ctx context.Context) ([]string, error)
}

type EscalationRepository interface {
	SaveEscalation(ctx context.Context, e Escalation) (int64, error)
}
