package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/sandevgo/deskbot/internal/core"
)

type EscalationRepo struct {
	conn
}

func NewEscalationRepo(db *sql.DB, timeout time.Duration) *EscalationRepo {
	return &EscalationRepo{conn: newConn(db, timeout)}
}

func (r *EscalationRepo) SaveEscalation(ctx context.Context, e core.Escalation) (int64, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO escalations (user_id, question, mode, status, ticket_id, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.UserID, e.Question, string(e.Mode), string(e.Status), e.TicketID, e.Error, createdAt,
	)
	if err != nil {
		return 0, storeErr("save_escalation", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, storeErr("save_escalation", err)
	}
	return id, nil
}

// ListEscalations returns the journal of one user, newest first.
func (r *EscalationRepo) ListEscalations(ctx context.Context, userID int64, limit int) ([]core.Escalation, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, question, mode, status, ticket_id, error, created_at
		FROM escalations
		WHERE user_id = ?
		ORDER BY id DESC
		LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, storeErr("list_escalations", err)
	}
	defer rows.Close()

	var out []core.Escalation
	for rows.Next() {
		var e core.Escalation
		var mode, status string
		if err := rows.Scan(&e.ID, &e.UserID, &e.Question, &mode, &status, &e.TicketID, &e.Error, &e.CreatedAt); err != nil {
			return nil, storeErr("list_escalations", err)
		}
		e.Mode = core.EscalationMode(mode)
		e.Status = core.OutcomeKind(status)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list_escalations", err)
	}
	return out, nil
}
