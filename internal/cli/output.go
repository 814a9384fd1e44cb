// Package cli provides output formatting for the Kotae command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/pkg/utils"
)

// OutputFormat selects how command results are rendered.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
	// OutputCompact is one result per line.
	OutputCompact OutputFormat = "compact"
)

// ParseFormat maps a flag value to an OutputFormat.
func ParseFormat(s string) (OutputFormat, error) {
	switch s {
	case "", "text":
		return OutputText, nil
	case "json":
		return OutputJSON, nil
	case "compact":
		return OutputCompact, nil
	default:
		return "", fmt.Errorf("unknown output format %q; use text, compact, or json", s)
	}
}

// WriteSearchResults writes search results to w in the given format.
func WriteSearchResults(w io.Writer, response *models.SearchResponse, format OutputFormat) error {
	switch format {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(response)
	case OutputCompact:
		for _, hit := range response.Hits {
			fmt.Fprintf(w, "%.4f\t%s\t%s\t%s\n", hit.Score, hit.ChunkID, hit.Meta.Section, hit.Snippet)
		}
		return nil
	default:
		writeSearchResultsText(w, response)
		return nil
	}
}

func writeSearchResultsText(w io.Writer, response *models.SearchResponse) {
	fmt.Fprintf(w, "\nFound %d results in %dms for %q\n\n", response.Total, response.QueryTime, response.Query)
	for i, hit := range response.Hits {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		fmt.Fprintf(w, "Rank: %d | Score: %.4f\n", i+1, hit.Score)
		fmt.Fprintf(w, "Chunk: %s (document %s)\n", hit.ChunkID, hit.DocumentID)
		if hit.Meta.Section != "" {
			fmt.Fprintf(w, "Section: %s\n", hit.Meta.Section)
		}
		if hit.Meta.Page > 0 {
			fmt.Fprintf(w, "Page: %d\n", hit.Meta.Page)
		}
		if hit.Meta.Slide > 0 {
			fmt.Fprintf(w, "Slide: %d\n", hit.Meta.Slide)
		}
		fmt.Fprintf(w, "\n%s\n\n", hit.Snippet)
	}
}

// WriteAskResponse writes a question answer to w in the given format.
func WriteAskResponse(w io.Writer, response *models.AskResponse, format OutputFormat) error {
	switch format {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(response)
	case OutputCompact:
		fmt.Fprintf(w, "%.2f\t%s\n", response.Confidence, response.Answer)
		return nil
	default:
		writeAskResponseText(w, response)
		return nil
	}
}

func writeAskResponseText(w io.Writer, response *models.AskResponse) {
	fmt.Fprintf(w, "\n%s\n\n", response.Answer)
	fmt.Fprintf(w, "Confidence: %.2f\n", response.Confidence)
	if response.QAID != "" {
		fmt.Fprintf(w, "QA ID: %s\n", response.QAID)
	}
	if len(response.Citations) > 0 {
		fmt.Fprintln(w, "\nSources:")
		for i, c := range response.Citations {
			label := c.Section
			if label == "" {
				label = c.DocumentID
			}
			fmt.Fprintf(w, "  [%d] %s: %s\n", i+1, label, utils.Truncate(c.Snippet, 120))
		}
	}
	if len(response.Followups) > 0 {
		fmt.Fprintln(w, "\nYou could also ask:")
		for _, f := range response.Followups {
			fmt.Fprintf(w, "  - %s\n", f)
		}
	}
}
