package parser

import (
	"archive/zip"
	"bytes"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/hyperjump/kotae/internal/models"
)

// slidePath matches ppt/slides/slideN.xml and captures the slide number.
var slidePath = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

// atTag matches <a:t>text</a:t> or <a:t xml:space="preserve">text</a:t> (and any other attributes).
var atTag = regexp.MustCompile(`<a:t[^>]*>([^<]*)</a:t>`)

// parsePPTX extracts one content block per slide from .pptx bytes. PPTX is a
// ZIP containing ppt/slides/slideN.xml (Office Open XML); we collect all
// <a:t>...</a:t> text nodes per slide. Slides are ordered by their number,
// not by zip entry order.
func parsePPTX(content []byte) (*models.ParsedDocument, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("parse PPTX: not a zip: %w", err)
	}

	type slide struct {
		num  int
		text string
	}
	var slides []slide
	for _, f := range zr.File {
		m := slidePath.FindStringSubmatch(f.Name)
		if m == nil {
			continue
		}
		num, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("parse PPTX: open %s: %w", f.Name, err)
		}
		var buf bytes.Buffer
		if _, err := buf.ReadFrom(rc); err != nil {
			_ = rc.Close()
			return nil, fmt.Errorf("parse PPTX: read %s: %w", f.Name, err)
		}
		_ = rc.Close()

		var b strings.Builder
		for _, p := range atTag.FindAllStringSubmatch(buf.String(), -1) {
			part := strings.TrimSpace(p[1])
			if part == "" {
				continue
			}
			if b.Len() > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(part)
		}
		if text := strings.TrimSpace(b.String()); text != "" {
			slides = append(slides, slide{num: num, text: text})
		}
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].num < slides[j].num })

	doc := &models.ParsedDocument{Type: models.DocTypePPTX}
	for _, s := range slides {
		doc.Blocks = append(doc.Blocks, models.ContentBlock{
			Text:    s.text,
			Section: fmt.Sprintf("Slide %d", s.num),
			Slide:   s.num,
		})
	}
	doc.RawText = joinBlocks(doc.Blocks)
	return doc, nil
}
