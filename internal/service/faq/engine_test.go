package faq

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/sandevgo/deskbot/internal/core"
	"github.com/sandevgo/deskbot/internal/storage/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEngine(t *testing.T) (*Engine, *sqlite.FAQRepo) {
	t.Helper()
	db, err := sqlite.NewDB(context.Background(), filepath.Join(t.TempDir(), "faq.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := sqlite.NewFAQRepo(db, time.Second)
	return NewEngine(repo, nil), repo
}

func storedAnswer(t *testing.T, repo *sqlite.FAQRepo, question string) string {
	t.Helper()
	e, err := repo.GetFAQ(context.Background(), question)
	require.NoError(t, err)
	return e.Answer
}

func TestMergeImport_DuplicateInBatch(t *testing.T) {
	engine, repo := newEngine(t)

	res, err := engine.MergeImport(context.Background(), []core.FAQRow{
		{Line: 2, Question: "Q1", Answer: "A1"},
		{Line: 3, Question: "Q1", Answer: "A2"},
	}, core.MergeModeMerge)

	require.NoError(t, err)
	assert.Equal(t, 1, res.Inserted)
	assert.Equal(t, 1, res.Updated)
	assert.Empty(t, res.Errors)
	assert.Equal(t, "A2", storedAnswer(t, repo, "Q1"))
}

func TestMergeImport_SkipModeKeepsExisting(t *testing.T) {
	engine, repo := newEngine(t)
	ctx := context.Background()
	require.NoError(t, engine.Add(ctx, "Q1", "Aold"))

	res, err := engine.MergeImport(ctx, []core.FAQRow{
		{Line: 2, Question: "Q1", Answer: "Anew"},
		{Line: 3, Question: "Q2", Answer: "A2"},
	}, core.MergeModeSkip)

	require.NoError(t, err)
	assert.Equal(t, 1, res.Inserted)
	assert.Equal(t, 0, res.Updated)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, "Aold", storedAnswer(t, repo, "Q1"))
	assert.Equal(t, "A2", storedAnswer(t, repo, "Q2"))
}

func TestMergeImport_MalformedRowsContinue(t *testing.T) {
	engine, repo := newEngine(t)

	res, err := engine.MergeImport(context.Background(), []core.FAQRow{
		{Line: 2, Question: "  ", Answer: "orphan"},
		{Line: 3, Question: "Q1", Answer: "A1"},
		{Line: 4, Question: "Q2", Answer: ""},
		{Line: 5, Question: " Q1 ", Answer: " A1b "},
	}, core.MergeModeMerge)

	require.NoError(t, err)
	assert.Equal(t, 1, res.Inserted)
	assert.Equal(t, 1, res.Updated)
	require.Len(t, res.Errors, 2)

	var rowErr *core.ImportRowError
	require.ErrorAs(t, res.Errors[0], &rowErr)
	assert.Equal(t, 2, rowErr.Line)
	assert.ErrorIs(t, res.Errors[0], ErrEmptyQuestion)
	assert.ErrorIs(t, res.Errors[1], ErrEmptyAnswer)

	assert.Equal(t, "A1b", storedAnswer(t, repo, "Q1"))
	questions, err := engine.Questions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Q1"}, questions)
}

func TestMergeImport_CancelledContext(t *testing.T) {
	engine, _ := newEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := engine.MergeImport(ctx, []core.FAQRow{{Line: 2, Question: "Q1", Answer: "A1"}}, core.MergeModeMerge)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, res.Inserted)
}

func TestLookup(t *testing.T) {
	engine, _ := newEngine(t)
	ctx := context.Background()
	require.NoError(t, engine.Add(ctx, "delivery", "Two business days"))

	answer, hit, err := engine.Lookup(ctx, "  how long does delivery take?  ")
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "Two business days", answer)

	_, hit, err = engine.Lookup(ctx, "refund")
	require.NoError(t, err)
	assert.False(t, hit)

	_, hit, err = engine.Lookup(ctx, "   ")
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestAdd_Duplicate(t *testing.T) {
	engine, _ := newEngine(t)
	ctx := context.Background()
	require.NoError(t, engine.Add(ctx, "Q1", "A1"))

	assert.ErrorIs(t, engine.Add(ctx, "Q1", "A2"), core.ErrAlreadyExists)
	assert.ErrorIs(t, engine.Add(ctx, "Q3", " "), ErrEmptyAnswer)
}

type failingRepo struct {
	core.FAQRepository
	err error
}

func (f failingRepo) FindAnswer(ctx context.Context, text string) (string, error) {
	return "", f.err
}

func (f failingRepo) UpsertFAQ(ctx context.Context, q, a string) (core.UpsertResult, error) {
	return 0, f.err
}

func TestStoreErrorsSurface(t *testing.T) {
	storeErr := &core.StoreError{Op: "find_answer", Err: core.ErrTimeout}
	engine := NewEngine(failingRepo{err: storeErr}, nil)

	_, hit, err := engine.Lookup(context.Background(), "anything")
	assert.False(t, hit)
	assert.ErrorIs(t, err, core.ErrTimeout)

	res, err := engine.MergeImport(context.Background(), []core.FAQRow{{Line: 2, Question: "Q", Answer: "A"}}, core.MergeModeMerge)
	require.NoError(t, err)
	require.Len(t, res.Errors, 1)
	assert.ErrorIs(t, res.Errors[0], core.ErrTimeout)
}

type stubSource struct {
	rows []core.FAQRow
	err  error
	path string
}

func (s *stubSource) ReadRows(ctx context.Context, path string) ([]core.FAQRow, error) {
	s.path = path
	return s.rows, s.err
}

func TestImportFile(t *testing.T) {
	_, repo := newEngine(t)
	src := &stubSource{rows: []core.FAQRow{{Line: 2, Question: "Q1", Answer: "A1"}}}
	engine := NewEngine(repo, src)

	res, err := engine.ImportFile(context.Background(), "/data/faq.xlsx", core.MergeModeMerge)
	require.NoError(t, err)
	assert.Equal(t, "/data/faq.xlsx", src.path)
	assert.Equal(t, 1, res.Inserted)

	src.err = errors.New("corrupt workbook")
	_, err = engine.ImportFile(context.Background(), "/data/faq.xlsx", core.MergeModeMerge)
	assert.ErrorContains(t, err, "corrupt workbook")
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode(" Merge ")
	require.NoError(t, err)
	assert.Equal(t, core.MergeModeMerge, m)

	m, err = ParseMode("skip")
	require.NoError(t, err)
	assert.Equal(t, core.MergeModeSkip, m)

	_, err = ParseMode("overwrite")
	assert.Error(t, err)
}
