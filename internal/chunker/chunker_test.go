package chunker

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/hyperjump/kotae/internal/models"
)

func TestChunk_pagesFlushPerPage(t *testing.T) {
	doc := &models.ParsedDocument{
		Type: models.DocTypePDF,
		Blocks: []models.ContentBlock{
			{Text: "page one text", Section: "Page 1", Page: 1},
			{Text: "page two text", Section: "Page 2", Page: 2},
			{Text: "page three text", Section: "Page 3", Page: 3},
		},
	}
	chunks := Chunk(doc, models.ChunkPolicy{MaxChars: 800, Overlap: 120})
	if len(chunks) != 3 {
		t.Fatalf("got %d chunks, want 3", len(chunks))
	}
	for i, c := range chunks {
		if c.Index != i {
			t.Errorf("chunk %d has index %d", i, c.Index)
		}
		if c.Metadata.ChunkType != ChunkTypePage {
			t.Errorf("chunk %d type = %q", i, c.Metadata.ChunkType)
		}
		if c.Metadata.Page != i+1 {
			t.Errorf("chunk %d page = %d", i, c.Metadata.Page)
		}
	}
}

func TestChunk_paragraphsAccumulateWithinSection(t *testing.T) {
	doc := &models.ParsedDocument{
		Type: models.DocTypeDocx,
		Blocks: []models.ContentBlock{
			{Text: "Intro paragraph.", Section: "Overview", Paragraph: 1},
			{Text: "More overview.", Section: "Overview", Paragraph: 2},
			{Text: "Grading details.", Section: "Grading", Paragraph: 3},
		},
	}
	chunks := Chunk(doc, models.ChunkPolicy{MaxChars: 800, Overlap: 120})
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2: %+v", len(chunks), chunks)
	}
	if chunks[0].Text != "Intro paragraph.\n\nMore overview." {
		t.Errorf("chunk 0 text = %q", chunks[0].Text)
	}
	if chunks[0].Metadata.Section != "Overview" || chunks[1].Metadata.Section != "Grading" {
		t.Errorf("sections: %q, %q", chunks[0].Metadata.Section, chunks[1].Metadata.Section)
	}
}

func TestChunk_sizeLimitForcesFlush(t *testing.T) {
	doc := &models.ParsedDocument{
		Type: models.DocTypePlain,
		Blocks: []models.ContentBlock{
			{Text: strings.Repeat("a", 60), Paragraph: 1},
			{Text: strings.Repeat("b", 60), Paragraph: 2},
			{Text: strings.Repeat("c", 60), Paragraph: 3},
		},
	}
	chunks := Chunk(doc, models.ChunkPolicy{MaxChars: 130, Overlap: 20})
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(chunks))
	}
	// first two paragraphs fit together (60+2+60=122), the third does not
	if !strings.Contains(chunks[0].Text, "b") || strings.Contains(chunks[0].Text, "c") {
		t.Errorf("chunk 0 grouping wrong: %q", chunks[0].Text)
	}
}

func TestChunk_oversizedUnitSplitsIntoParts(t *testing.T) {
	doc := &models.ParsedDocument{
		Type: models.DocTypePlain,
		Blocks: []models.ContentBlock{
			{Text: strings.Repeat("x", 2000), Paragraph: 1},
		},
	}
	chunks := Chunk(doc, models.ChunkPolicy{MaxChars: 800, Overlap: 120})
	if len(chunks) != 3 {
		t.Fatalf("got %d chunks, want 3", len(chunks))
	}
	for i, c := range chunks {
		if n := utf8.RuneCountInString(c.Text); n > 800 {
			t.Errorf("chunk %d has %d runes, want <= 800", i, n)
		}
		if c.Index != i {
			t.Errorf("chunk %d index = %d", i, c.Index)
		}
		if c.Metadata.ChunkType != "raw_part" {
			t.Errorf("chunk %d type = %q", i, c.Metadata.ChunkType)
		}
		if c.Metadata.Part != i+1 {
			t.Errorf("chunk %d part = %d", i, c.Metadata.Part)
		}
	}
	if chunks[1].StartOffset > 680 {
		t.Errorf("chunk 1 starts at %d, want <= 680", chunks[1].StartOffset)
	}
}

func TestChunk_oversizedSlideKeepsMetadata(t *testing.T) {
	doc := &models.ParsedDocument{
		Type: models.DocTypePPTX,
		Blocks: []models.ContentBlock{
			{Text: "short slide", Section: "Slide 1", Slide: 1},
			{Text: strings.Repeat("s", 1000), Section: "Slide 2", Slide: 2},
		},
	}
	chunks := Chunk(doc, models.ChunkPolicy{MaxChars: 600, Overlap: 100})
	if len(chunks) != 3 {
		t.Fatalf("got %d chunks, want 3", len(chunks))
	}
	if chunks[0].Metadata.ChunkType != ChunkTypeSlide {
		t.Errorf("chunk 0 type = %q", chunks[0].Metadata.ChunkType)
	}
	for _, c := range chunks[1:] {
		if c.Metadata.ChunkType != "slide_part" || c.Metadata.Slide != 2 {
			t.Errorf("split part metadata: %+v", c.Metadata)
		}
	}
}

func TestChunk_offsetsMatchRawText(t *testing.T) {
	doc := &models.ParsedDocument{
		Type: models.DocTypeMarkdown,
		Blocks: []models.ContentBlock{
			{Text: "First section body.", Section: "One"},
			{Text: "Second section body.", Section: "Two"},
		},
	}
	doc.RawText = "First section body.\n\nSecond section body."
	chunks := Chunk(doc, models.ChunkPolicy{MaxChars: 800, Overlap: 120})
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(chunks))
	}
	raw := []rune(doc.RawText)
	for i, c := range chunks {
		got := string(raw[c.StartOffset:c.EndOffset])
		if got != c.Text {
			t.Errorf("chunk %d offsets [%d,%d) give %q, want %q", i, c.StartOffset, c.EndOffset, got, c.Text)
		}
	}
}

func TestChunk_skipsBlankBlocks(t *testing.T) {
	doc := &models.ParsedDocument{
		Type: models.DocTypePlain,
		Blocks: []models.ContentBlock{
			{Text: "   "},
			{Text: "real content"},
		},
	}
	chunks := Chunk(doc, models.ChunkPolicy{MaxChars: 800, Overlap: 120})
	if len(chunks) != 1 || chunks[0].Text != "real content" {
		t.Errorf("got %+v", chunks)
	}
}

func TestChunk_empty(t *testing.T) {
	if chunks := Chunk(nil, models.ChunkPolicy{MaxChars: 800}); chunks != nil {
		t.Errorf("nil doc: %+v", chunks)
	}
	doc := &models.ParsedDocument{Type: models.DocTypePlain}
	if chunks := Chunk(doc, models.ChunkPolicy{MaxChars: 800}); chunks != nil {
		t.Errorf("empty doc: %+v", chunks)
	}
}
