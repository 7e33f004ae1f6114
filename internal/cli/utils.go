// Package cli renders query results and catalog rows for the torikomi command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hyperjump/torikomi/internal/models"
	"github.com/hyperjump/torikomi/internal/vectorstore"
	"github.com/hyperjump/torikomi/pkg/utils"
)

// OutputFormat is the format for CLI result output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
	// OutputCompact is one result per line, for piping into other tools.
	OutputCompact OutputFormat = "compact"
)

// ParseOutputFormat maps a flag value to an OutputFormat. Empty means text.
func ParseOutputFormat(s string) (OutputFormat, error) {
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

// QueryResponse is the query result set shape shared by the HTTP API and the CLI.
type QueryResponse struct {
	Results []*vectorstore.QueryResult `json:"results"`
	Count   int                        `json:"count"`
}

// WriteQueryResults writes query hits to w in the given format.
// Use OutputJSON for parseable output consumable by other apps.
func WriteQueryResults(w io.Writer, resp *QueryResponse, format OutputFormat) error {
	switch format {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	case OutputCompact:
		for _, r := range resp.Results {
			preview := TruncateWords(utils.NormalizeWhitespace(r.Metadata.Content), 15)
			fmt.Fprintf(w, "%.4f\t%s\t%s\n", r.Score, r.ID, preview)
		}
		return nil
	default:
		writeQueryResultsText(w, resp)
		return nil
	}
}

func writeQueryResultsText(w io.Writer, resp *QueryResponse) {
	fmt.Fprintf(w, "\nFound %d matching chunks\n\n", resp.Count)
	for i, r := range resp.Results {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		fmt.Fprintf(w, "Rank: %d | Score: %.4f\n", i+1, r.Score)
		fmt.Fprintf(w, "ID: %s\n", r.ID)
		fmt.Fprintf(w, "Document: %s (%s, chunk %d)\n",
			r.Metadata.DocumentID, r.Metadata.Filename, r.Metadata.ChunkIndex)
		fmt.Fprintf(w, "\n%s\n", utils.Truncate(r.Metadata.Content, 200))
		fmt.Fprintln(w)
	}
}

// WriteRecords writes catalog rows to w in the given format. Compact and text
// render the same line-per-row listing.
func WriteRecords(w io.Writer, records []*models.IngestionRecord, format OutputFormat) error {
	if format == OutputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	}
	if len(records) == 0 {
		fmt.Fprintln(w, "No documents.")
		return nil
	}
	for _, rec := range records {
		fmt.Fprintf(w, "%s  %-10s  %4d chunks  %s", rec.ID, rec.Status, rec.ChunkCount, rec.Filename)
		if rec.Error != "" {
			fmt.Fprintf(w, "  (%s)", utils.Truncate(utils.NormalizeWhitespace(rec.Error), 80))
		}
		fmt.Fprintln(w)
	}
	return nil
}

// TruncateWords returns up to maxWords from the space-separated string.
func TruncateWords(s string, maxWords int) string {
	words := strings.Fields(s)
	if len(words) <= maxWords {
		return s
	}
	return strings.Join(words[:maxWords], " ") + "..."
}
