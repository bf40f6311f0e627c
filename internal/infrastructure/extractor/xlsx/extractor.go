package xlsx

import (
	"context"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/dkomarov/doc-analyst/internal/core/domain"
	"github.com/dkomarov/doc-analyst/internal/core/ports"
)

// Extractor flattens spreadsheet content into text, one line per row with
// cells joined by " | ", prefixed with the sheet name so answers can cite
// where a figure came from.
type Extractor struct {
	storage ports.ObjectStorage
}

func NewExtractor(storage ports.ObjectStorage) *Extractor {
	return &Extractor{storage: storage}
}

func (e *Extractor) Extract(ctx context.Context, doc *domain.Document) (string, error) {
	reader, err := e.storage.Open(ctx, doc.StoragePath)
	if err != nil {
		return "", fmt.Errorf("open source document: %w", err)
	}
	defer reader.Close()

	book, err := excelize.OpenReader(reader)
	if err != nil {
		return "", fmt.Errorf("parse spreadsheet %s: %w", doc.Filename, err)
	}
	defer book.Close()

	var b strings.Builder
	for _, sheet := range book.GetSheetList() {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		rows, err := book.GetRows(sheet)
		if err != nil {
			return "", fmt.Errorf("read sheet %s: %w", sheet, err)
		}
		wroteHeader := false
		for _, row := range rows {
			line := strings.TrimSpace(strings.Join(row, " | "))
			if strings.Trim(line, " |") == "" {
				continue
			}
			if !wroteHeader {
				fmt.Fprintf(&b, "Sheet: %s\n", sheet)
				wroteHeader = true
			}
			b.WriteString(line)
			b.WriteString("\n")
		}
		if wroteHeader {
			b.WriteString("\n")
		}
	}

	return strings.TrimSpace(b.String()), nil
}
