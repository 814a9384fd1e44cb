package parser

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/hyperjump/kotae/internal/models"
)

// parsePDF extracts one content block per non-empty page. The page number is
// carried in both the block position and the section label so citations can
// point students at a printable location.
func parsePDF(content []byte) (*models.ParsedDocument, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("open PDF: %w", err)
	}
	doc := &models.ParsedDocument{Type: models.DocTypePDF}
	numPages := r.NumPage()
	for i := 1; i <= numPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("extract page %d: %w", i, err)
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		doc.Blocks = append(doc.Blocks, models.ContentBlock{
			Text:    text,
			Section: fmt.Sprintf("Page %d", i),
			Page:    i,
		})
	}
	doc.RawText = joinBlocks(doc.Blocks)
	return doc, nil
}
