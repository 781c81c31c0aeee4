package faq

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sandevgo/deskbot/internal/core"
	"github.com/sandevgo/deskbot/pkg/log"
)

var (
	ErrEmptyQuestion = errors.New("question is empty")
	ErrEmptyAnswer   = errors.New("answer is empty")
)

type Engine struct {
	repo   core.FAQRepository
	source core.FAQSource
}

func NewEngine(repo core.FAQRepository, source core.FAQSource) *Engine {
	return &Engine{
		repo:   repo,
		source: source,
	}
}

// Lookup returns the stored answer for text. hit is false on a miss; err is
// reserved for store failures.
func (e *Engine) Lookup(ctx context.Context, text string) (answer string, hit bool, err error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", false, nil
	}

	answer, err = e.repo.FindAnswer(ctx, text)
	if errors.Is(err, core.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("faq lookup: %w", err)
	}
	return answer, true, nil
}

// Add inserts a single entry; an existing question is rejected with core.ErrAlreadyExists.
func (e *Engine) Add(ctx context.Context, question, answer string) error {
	question, answer, err := normalize(question, answer)
	if err != nil {
		return err
	}
	return e.repo.InsertFAQ(ctx, question, answer)
}

// MergeImport reconciles rows against the store in order. Every row is
// applied atomically on its own; a failing row is reported in
// MergeResult.Errors and the batch continues. Only cancellation of ctx
// aborts the batch.
func (e *Engine) MergeImport(ctx context.Context, rows []core.FAQRow, mode core.MergeMode) (core.MergeResult, error) {
	logger := log.FromCtx(ctx)
	var res core.MergeResult

	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		question, answer, err := normalize(row.Question, row.Answer)
		if err != nil {
			res.Errors = append(res.Errors, &core.ImportRowError{Line: row.Line, Question: row.Question, Err: err})
			continue
		}

		if err := e.applyRow(ctx, question, answer, mode, &res); err != nil {
			logger.Warn().Err(err).Int("line", row.Line).Msg("faq row rejected")
			res.Errors = append(res.Errors, &core.ImportRowError{Line: row.Line, Question: question, Err: err})
		}
	}

	logger.Info().
		Str("mode", string(mode)).
		Int("inserted", res.Inserted).
		Int("updated", res.Updated).
		Int("skipped", res.Skipped).
		Int("errors", len(res.Errors)).
		Msg("faq import finished")
	return res, nil
}

func (e *Engine) applyRow(ctx context.Context, question, answer string, mode core.MergeMode, res *core.MergeResult) error {
	if mode == core.MergeModeMerge {
		result, err := e.repo.UpsertFAQ(ctx, question, answer)
		if err != nil {
			return err
		}
		switch result {
		case core.Inserted:
			res.Inserted++
		case core.Updated:
			res.Updated++
		}
		return nil
	}

	_, err := e.repo.GetFAQ(ctx, question)
	switch {
	case err == nil:
		res.Skipped++
		return nil
	case !errors.Is(err, core.ErrNotFound):
		return err
	}

	err = e.repo.InsertFAQ(ctx, question, answer)
	if errors.Is(err, core.ErrAlreadyExists) {
		// inserted concurrently between the lookup and the insert
		res.Skipped++
		return nil
	}
	if err != nil {
		return err
	}
	res.Inserted++
	return nil
}

// ImportFile reads a bulk source file and merges it.
func (e *Engine) ImportFile(ctx context.Context, path string, mode core.MergeMode) (core.MergeResult, error) {
	rows, err := e.source.ReadRows(ctx, path)
	if err != nil {
		return core.MergeResult{}, fmt.Errorf("read faq source: %w", err)
	}
	return e.MergeImport(ctx, rows, mode)
}

// Questions lists stored questions in insertion order.
func (e *Engine) Questions(ctx context.Context) ([]string, error) {
	return e.repo.ListFAQQuestions(ctx)
}

func ParseMode(s string) (core.MergeMode, error) {
	switch core.MergeMode(strings.ToLower(strings.TrimSpace(s))) {
	case core.MergeModeMerge:
		return core.MergeModeMerge, nil
	case core.MergeModeSkip:
		return core.MergeModeSkip, nil
	default:
		return "", fmt.Errorf("unknown import mode %q (want merge or skip)", s)
	}
}

func normalize(question, answer string) (string, string, error) {
	question = strings.TrimSpace(question)
	answer = strings.TrimSpace(answer)
	if question == "" {
		return "", "", ErrEmptyQuestion
	}
	if answer == "" {
		return "", "", ErrEmptyAnswer
	}
	return question, answer, nil
}
