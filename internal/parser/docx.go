package parser

import (
	"archive/zip"
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/hyperjump/kotae/internal/models"
)

// docxDocumentXMLPath is the default path to the main document body inside a .docx zip.
const docxDocumentXMLPath = "word/document.xml"

// contentTypesPath is the path to [Content_Types].xml in OOXML packages.
const contentTypesPath = "[Content_Types].xml"

// docxMainContentType is the content type for the main document in DOCX files.
const docxMainContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"

// wpTag matches one <w:p>...</w:p> paragraph element, with any attributes.
var wpTag = regexp.MustCompile(`(?s)<w:p(?:\s[^>]*)?>(.*?)</w:p>`)

// wtTag matches <w:t>text</w:t> or <w:t xml:space="preserve">text</w:t> (and any other attributes).
var wtTag = regexp.MustCompile(`<w:t[^>]*>([^<]*)</w:t>`)

// headingStyle matches a paragraph style marking a heading (Heading1..Heading9).
var headingStyle = regexp.MustCompile(`<w:pStyle[^>]*w:val="Heading[1-9]"`)

// partNameRe extracts PartName from Override elements in [Content_Types].xml.
var partNameRe = regexp.MustCompile(`<Override[^>]+PartName="([^"]+)"[^>]+ContentType="` + regexp.QuoteMeta(docxMainContentType) + `"`)

// partNameRe2 handles the case where ContentType appears before PartName.
var partNameRe2 = regexp.MustCompile(`<Override[^>]+ContentType="` + regexp.QuoteMeta(docxMainContentType) + `"[^>]+PartName="([^"]+)"`)

// findDocxMainDocumentPath finds the main document path from [Content_Types].xml.
// Returns the path without leading slash, or empty string if not found.
func findDocxMainDocumentPath(zr *zip.Reader) string {
	for _, f := range zr.File {
		if f.Name != contentTypesPath {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return ""
		}
		var buf bytes.Buffer
		if _, err := buf.ReadFrom(rc); err != nil {
			_ = rc.Close()
			return ""
		}
		_ = rc.Close()

		content := buf.String()
		// Try both attribute orders
		if matches := partNameRe.FindStringSubmatch(content); len(matches) > 1 {
			return strings.TrimPrefix(matches[1], "/")
		}
		if matches := partNameRe2.FindStringSubmatch(content); len(matches) > 1 {
			return strings.TrimPrefix(matches[1], "/")
		}
		return ""
	}
	return ""
}

// parseDocx extracts one content block per paragraph from .docx bytes. DOCX is
// a ZIP containing word/document.xml (OOXML); we match <w:p> paragraph
// elements and collect their <w:t> text runs. Paragraphs styled Heading1-9
// become section labels for the paragraphs that follow them rather than
// blocks of their own.
func parseDocx(content []byte) (*models.ParsedDocument, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("parse DOCX: not a zip: %w", err)
	}

	docPath := findDocxMainDocumentPath(zr)
	if docPath == "" {
		docPath = docxDocumentXMLPath
	}

	var docXML []byte
	for _, f := range zr.File {
		if f.Name != docPath {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("parse DOCX: open %s: %w", f.Name, err)
		}
		var buf bytes.Buffer
		if _, err := buf.ReadFrom(rc); err != nil {
			_ = rc.Close()
			return nil, fmt.Errorf("parse DOCX: read %s: %w", f.Name, err)
		}
		_ = rc.Close()
		docXML = buf.Bytes()
		break
	}
	if docXML == nil {
		return nil, fmt.Errorf("parse DOCX: %s not found", docPath)
	}

	doc := &models.ParsedDocument{Type: models.DocTypeDocx}
	var section string
	n := 0
	for _, para := range wpTag.FindAllStringSubmatch(string(docXML), -1) {
		text := paragraphText(para[1])
		if text == "" {
			continue
		}
		if headingStyle.MatchString(para[1]) {
			section = text
			continue
		}
		n++
		doc.Blocks = append(doc.Blocks, models.ContentBlock{
			Text:      text,
			Section:   section,
			Paragraph: n,
		})
	}
	doc.RawText = joinBlocks(doc.Blocks)
	return doc, nil
}

// paragraphText joins the <w:t> text runs of one paragraph with spaces.
func paragraphText(paraXML string) string {
	runs := wtTag.FindAllStringSubmatch(paraXML, -1)
	if len(runs) == 0 {
		return ""
	}
	var b strings.Builder
	for _, r := range runs {
		part := strings.TrimSpace(r[1])
		if part == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(part)
	}
	return strings.TrimSpace(b.String())
}
