package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sandevgo/deskbot/internal/core"
)

type FAQRepo struct {
	conn
}

func NewFAQRepo(db *sql.DB, timeout time.Duration) *FAQRepo {
	return &FAQRepo{conn: newConn(db, timeout)}
}

// FindAnswer returns the answer of the oldest entry whose question is
// contained in text. The match is a plain case-sensitive infix test.
func (r *FAQRepo) FindAnswer(ctx context.Context, text string) (string, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	var answer string
	err := r.db.QueryRowContext(ctx, `
		SELECT answer FROM faq
		WHERE question <> '' AND instr(?, question) > 0
		ORDER BY id ASC
		LIMIT 1`,
		text,
	).Scan(&answer)
	if errors.Is(err, sql.ErrNoRows) {
		return "", core.ErrNotFound
	}
	if err != nil {
		return "", storeErr("find_answer", err)
	}
	return answer, nil
}

func (r *FAQRepo) GetFAQ(ctx context.Context, question string) (*core.FAQEntry, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	var e core.FAQEntry
	err := r.db.QueryRowContext(ctx,
		`SELECT id, question, answer FROM faq WHERE question = ?`, question,
	).Scan(&e.ID, &e.Question, &e.Answer)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, storeErr("get_faq", err)
	}
	return &e, nil
}

func (r *FAQRepo) InsertFAQ(ctx context.Context, question, answer string) error {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `INSERT INTO faq (question, answer) VALUES (?, ?)`, question, answer)
	if isUniqueViolation(err) {
		return fmt.Errorf("faq %q: %w", question, core.ErrAlreadyExists)
	}
	if err != nil {
		return storeErr("insert_faq", err)
	}
	return nil
}

// UpsertFAQ inserts the entry or overwrites its answer inside one transaction.
func (r *FAQRepo) UpsertFAQ(ctx context.Context, question, answer string) (core.UpsertResult, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, storeErr("upsert_faq", err)
	}
	defer tx.Rollback()

	var id int64
	err = tx.QueryRowContext(ctx, `SELECT id FROM faq WHERE question = ?`, question).Scan(&id)

	var result core.UpsertResult
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := tx.ExecContext(ctx, `INSERT INTO faq (question, answer) VALUES (?, ?)`, question, answer); err != nil {
			return 0, storeErr("upsert_faq", err)
		}
		result = core.Inserted
	case err != nil:
		return 0, storeErr("upsert_faq", err)
	default:
		if _, err := tx.ExecContext(ctx, `UPDATE faq SET answer = ? WHERE id = ?`, answer, id); err != nil {
			return 0, storeErr("upsert_faq", err)
		}
		result = core.Updated
	}

	if err := tx.Commit(); err != nil {
		return 0, storeErr("upsert_faq", err)
	}
	return result, nil
}

func (r *FAQRepo) ListFAQQuestions(ctx context.Context) ([]string, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `SELECT question FROM faq ORDER BY id ASC`)
	if err != nil {
		return nil, storeErr("list_faq", err)
	}
	defer rows.Close()

	var questions []string
	for rows.Next() {
		var q string
		if err := rows.Scan(&q); err != nil {
			return nil, storeErr("list_faq", err)
		}
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list_faq", err)
	}
	return questions, nil
}
