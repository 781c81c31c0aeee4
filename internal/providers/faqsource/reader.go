package faqsource

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sandevgo/deskbot/internal/core"
	"github.com/sandevgo/deskbot/pkg/log"
	"github.com/xuri/excelize/v2"
)

const (
	columnQuestion = "question"
	columnAnswer   = "answer"
)

var ErrUnsupportedFormat = errors.New("unsupported faq file format")

// Reader loads a tabular FAQ file (.xlsx or .csv) with a header row naming
// the question and answer columns.
type Reader struct{}

func NewReader() *Reader {
	return &Reader{}
}

func (r *Reader) ReadRows(ctx context.Context, path string) ([]core.FAQRow, error) {
	var (
		records [][]string
		err     error
	)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		records, err = readXLSX(path)
	case ".csv":
		records, err = readCSVFile(path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}

	rows, err := toRows(records)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}

	log.FromCtx(ctx).Debug().Str("path", path).Int("rows", len(rows)).Msg("loaded faq source")
	return rows, nil
}

func readXLSX(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, fmt.Errorf("workbook %s has no sheets", filepath.Base(path))
	}

	records, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}
	return records, nil
}

func readCSVFile(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open csv: %w", err)
	}
	defer f.Close()
	return readCSV(f)
}

func readCSV(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse csv: %w", err)
	}
	return records, nil
}

// toRows maps records to FAQ rows using the header. Blank lines are dropped;
// rows with a missing cell are kept so the importer can reject them.
func toRows(records [][]string) ([]core.FAQRow, error) {
	if len(records) == 0 {
		return nil, errors.New("file is empty")
	}

	qIdx, aIdx := -1, -1
	for i, name := range records[0] {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		switch name {
		case columnQuestion:
			qIdx = i
		case columnAnswer:
			aIdx = i
		}
	}
	if qIdx < 0 || aIdx < 0 {
		return nil, fmt.Errorf("header must contain %q and %q columns", columnQuestion, columnAnswer)
	}

	rows := make([]core.FAQRow, 0, len(records)-1)
	for i, rec := range records[1:] {
		if isBlank(rec) {
			continue
		}
		rows = append(rows, core.FAQRow{
			Line:     i + 2,
			Question: cell(rec, qIdx),
			Answer:   cell(rec, aIdx),
		})
	}
	return rows, nil
}

func cell(rec []string, idx int) string {
	if idx >= len(rec) {
		return ""
	}
	return rec[idx]
}

func isBlank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
