// Package parser turns uploaded course files into structured content blocks.
// Each supported format is parsed into the structural units the chunker
// operates on: pages for PDF, paragraphs for DOCX, slides for PPTX, and
// heading sections for markdown. Plain text falls back to blank-line
// separated paragraphs.
package parser

import (
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/hyperjump/kotae/internal/models"
)

// Parser parses document files into structured blocks.
type Parser struct{}

// New returns a new Parser.
func New() *Parser {
	return &Parser{}
}

// Parse reads the file at path and parses it according to docType.
// Returns an error if the file cannot be read or the format is malformed.
func (p *Parser) Parse(path string, docType models.DocType) (*models.ParsedDocument, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return p.ParseBytes(content, docType)
}

// ParseBytes parses raw file content according to docType.
func (p *Parser) ParseBytes(content []byte, docType models.DocType) (*models.ParsedDocument, error) {
	switch docType {
	case models.DocTypePDF:
		return parsePDF(content)
	case models.DocTypeDocx:
		return parseDocx(content)
	case models.DocTypePPTX:
		return parsePPTX(content)
	case models.DocTypeMarkdown:
		return parseMarkdown(content)
	default:
		return parsePlain(content)
	}
}

// parsePlain splits UTF-8 text into blank-line separated paragraphs.
// Invalid UTF-8 sequences are replaced with the replacement character.
func parsePlain(content []byte) (*models.ParsedDocument, error) {
	if !utf8.Valid(content) {
		content = []byte(strings.ToValidUTF8(string(content), "�"))
	}
	text := strings.ReplaceAll(string(content), "\r\n", "\n")
	doc := &models.ParsedDocument{Type: models.DocTypePlain, RawText: text}
	n := 0
	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		n++
		doc.Blocks = append(doc.Blocks, models.ContentBlock{
			Text:      para,
			Paragraph: n,
		})
	}
	return doc, nil
}

// joinBlocks concatenates block texts into the raw document text.
func joinBlocks(blocks []models.ContentBlock) string {
	parts := make([]string, len(blocks))
	for i, b := range blocks {
		parts[i] = b.Text
	}
	return strings.Join(parts, "\n\n")
}
