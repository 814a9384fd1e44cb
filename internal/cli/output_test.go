package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/hyperjump/kotae/internal/models"
)

func sampleSearchResponse() *models.SearchResponse {
	return &models.SearchResponse{
		Hits: []*models.SearchHit{
			{
				ChunkID:    "doc1_0",
				Score:      0.9123,
				DocumentID: "doc1",
				Meta:       models.ChunkMetadata{Section: "Chapter 1", Page: 3},
				Snippet:    "Relational databases organize data into tables.",
			},
		},
		Total:     1,
		QueryTime: 12,
		Query:     "what is a table",
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]OutputFormat{
		"":        OutputText,
		"text":    OutputText,
		"json":    OutputJSON,
		"compact": OutputCompact,
	} {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Errorf("ParseFormat(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseFormat("yaml"); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestWriteSearchResultsText(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSearchResults(&buf, sampleSearchResponse(), OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"Found 1 results", "Score: 0.9123", "Chapter 1", "Page: 3", "tables."} {
		if !strings.Contains(out, want) {
			t.Errorf("text output missing %q:\n%s", want, out)
		}
	}
}

func TestWriteSearchResultsJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSearchResults(&buf, sampleSearchResponse(), OutputJSON); err != nil {
		t.Fatal(err)
	}
	var decoded models.SearchResponse
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("json output not parseable: %v", err)
	}
	if decoded.Total != 1 || decoded.Hits[0].ChunkID != "doc1_0" {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestWriteSearchResultsCompact(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSearchResults(&buf, sampleSearchResponse(), OutputCompact); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 || !strings.HasPrefix(lines[0], "0.9123\tdoc1_0") {
		t.Errorf("compact output = %q", buf.String())
	}
}

func TestWriteAskResponseText(t *testing.T) {
	resp := &models.AskResponse{
		QAID:       "qa-1",
		Answer:     "Tables hold rows [1].",
		Confidence: 0.92,
		Citations: []*models.Citation{
			{ChunkID: "doc1_0", DocumentID: "doc1", Section: "Chapter 1", Snippet: "Relational databases organize data into tables."},
		},
		Followups: []string{"What are the applications of this concept?"},
	}
	var buf bytes.Buffer
	if err := WriteAskResponse(&buf, resp, OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"Tables hold rows [1].", "Confidence: 0.92", "QA ID: qa-1", "[1] Chapter 1", "You could also ask"} {
		if !strings.Contains(out, want) {
			t.Errorf("ask output missing %q:\n%s", want, out)
		}
	}
}
