// Package chunker splits parsed documents into bounded, overlapping chunks
// ready for embedding and retrieval. Sizes, offsets, and the overlap are all
// measured in runes.
package chunker

import (
	"strings"
	"unicode/utf8"

	"github.com/hyperjump/kotae/internal/models"
)

// Chunk type labels carried in chunk metadata. Split parts of an oversized
// unit get the label with a "_part" suffix.
const (
	ChunkTypePage      = "page"
	ChunkTypeParagraph = "paragraph"
	ChunkTypeSlide     = "slide"
	ChunkTypeSection   = "section"
	ChunkTypeRaw       = "raw"
)

// strategy describes how one document type groups content blocks into chunks.
type strategy struct {
	chunkType string
	// sameGroup reports whether two adjacent blocks may share a chunk.
	// A false answer is a structural boundary and always forces a flush.
	sameGroup func(a, b models.ContentBlock) bool
}

func never(a, b models.ContentBlock) bool       { return false }
func always(a, b models.ContentBlock) bool      { return true }
func sameSection(a, b models.ContentBlock) bool { return a.Section == b.Section }

var strategies = map[models.DocType]strategy{
	models.DocTypePDF:      {chunkType: ChunkTypePage, sameGroup: never},
	models.DocTypePPTX:     {chunkType: ChunkTypeSlide, sameGroup: never},
	models.DocTypeMarkdown: {chunkType: ChunkTypeSection, sameGroup: sameSection},
	models.DocTypeDocx:     {chunkType: ChunkTypeParagraph, sameGroup: sameSection},
	models.DocTypePlain:    {chunkType: ChunkTypeRaw, sameGroup: always},
}

// Chunk splits a parsed document into ordered chunks according to policy.
// The grouping strategy follows the document type: pages for PDF, paragraphs
// for DOCX, slides for PPTX, heading sections for markdown, and raw
// paragraph accumulation for plain text. Blocks accumulate into one chunk
// until the next block would exceed policy.MaxChars or crosses a structural
// boundary; only a single block larger than MaxChars is split, keeping its
// structural metadata plus a part ordinal. Chunk indices are contiguous from 0.
func Chunk(doc *models.ParsedDocument, policy models.ChunkPolicy) []models.Chunk {
	if doc == nil || len(doc.Blocks) == 0 {
		return nil
	}
	st, ok := strategies[doc.Type]
	if !ok {
		st = strategies[models.DocTypePlain]
	}
	maxChars := policy.MaxChars
	if maxChars <= 0 {
		maxChars = 800
	}
	overlap := policy.Overlap
	if overlap < 0 {
		overlap = 0
	}

	var chunks []models.Chunk
	var buf []models.ContentBlock
	bufLen := 0
	bufStart := 0
	offset := 0

	flush := func() {
		if len(buf) == 0 {
			return
		}
		text := joinGroup(buf)
		meta := models.ChunkMetadata{
			Section:   buf[0].Section,
			Page:      buf[0].Page,
			Slide:     buf[0].Slide,
			Paragraph: buf[0].Paragraph,
			ChunkType: st.chunkType,
		}
		if utf8.RuneCountInString(text) <= maxChars {
			chunks = append(chunks, models.Chunk{
				Index:       len(chunks),
				Text:        text,
				Metadata:    meta,
				StartOffset: bufStart,
				EndOffset:   bufStart + utf8.RuneCountInString(text),
			})
		} else {
			for i, seg := range split(text, maxChars, overlap) {
				m := meta
				m.ChunkType = st.chunkType + "_part"
				m.Part = i + 1
				chunks = append(chunks, models.Chunk{
					Index:       len(chunks),
					Text:        seg.text,
					Metadata:    m,
					StartOffset: bufStart + seg.start,
					EndOffset:   bufStart + seg.start + utf8.RuneCountInString(seg.text),
				})
			}
		}
		buf = nil
		bufLen = 0
	}

	for _, b := range doc.Blocks {
		if strings.TrimSpace(b.Text) == "" {
			continue
		}
		bl := utf8.RuneCountInString(b.Text)
		if len(buf) > 0 && (!st.sameGroup(buf[len(buf)-1], b) || bufLen+2+bl > maxChars) {
			flush()
		}
		if len(buf) == 0 {
			bufStart = offset
			bufLen = bl
		} else {
			bufLen += 2 + bl
		}
		buf = append(buf, b)
		offset += bl + 2
	}
	flush()
	return chunks
}

// joinGroup concatenates a group of blocks the same way the parser builds the
// document's raw text, so chunk offsets line up with it.
func joinGroup(blocks []models.ContentBlock) string {
	parts := make([]string, len(blocks))
	for i, b := range blocks {
		parts[i] = b.Text
	}
	return strings.Join(parts, "\n\n")
}
