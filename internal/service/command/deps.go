package command

import (
	"context"

	"github.com/sandevgo/deskbot/internal/core"
)

type Registrar interface {
	IsRegistered(ctx context.Context, userID int64) (bool, error)
	Identity(ctx context.Context, userID int64) (*core.Identity, error)
	SubmitIdentityClaim(ctx context.Context, userID int64, phone, username, fullName string) (*core.Identity, error)
}

type FAQAdmin interface {
	Add(ctx context.Context, question, answer string) error
	ImportFile(ctx context.Context, path string, mode core.MergeMode) (core.MergeResult, error)
	Questions(ctx context.Context) ([]string, error)
}

type EscalationHistory interface {
	ListEscalations(ctx context.Context, userID int64, limit int) ([]core.Escalation, error)
}
