// Package export renders finished ad creatives for people and files.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/harsh7800/adofly/internal/creative"
)

// Format names an output rendering.
type Format string

const (
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
)

// ParseFormat accepts "json", "markdown" or "md".
func ParseFormat(s string) (Format, error) {
	switch s {
	case "json", "":
		return FormatJSON, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	}
	return "", fmt.Errorf("export: unknown format %q", s)
}

// CreativeExport is the top-level JSON export structure.
type CreativeExport struct {
	ProductName string              `json:"productName"`
	ExportedAt  string              `json:"exportedAt"`
	Creative    creative.AdCreative `json:"creative"`
}

// NewCreativeExport wraps c with the product name and export time.
func NewCreativeExport(req creative.AdRequest, c creative.AdCreative, now time.Time) CreativeExport {
	return CreativeExport{
		ProductName: req.ProductName,
		ExportedAt:  now.UTC().Format(time.RFC3339),
		Creative:    c,
	}
}

// WriteJSON writes e as indented JSON followed by a newline.
func WriteJSON(w io.Writer, e CreativeExport) error {
	out, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return fmt.Errorf("export: marshal JSON: %w", err)
	}
	_, err = w.Write(append(out, '\n'))
	return err
}

// Write renders e in the given format.
func Write(w io.Writer, f Format, e CreativeExport) error {
	switch f {
	case FormatJSON:
		return WriteJSON(w, e)
	case FormatMarkdown:
		_, err := io.WriteString(w, Markdown(e))
		return err
	}
	return fmt.Errorf("export: unknown format %q", f)
}
