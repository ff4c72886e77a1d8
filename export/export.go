// Package export renders an application's published content as Markdown.
// Authors use it to pull a content snapshot out of the store for review,
// versioning or migration.
package export

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"

	"github.com/StreamlinedCMS/client-sdk/content"
)

// Exporter converts content records to a Markdown document.
type Exporter struct {
	conv *converter.Converter
}

// New creates an Exporter.
func New() *Exporter {
	return &Exporter{
		conv: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
	}
}

// isImageSource guesses whether a record holds a media source rather than
// markup. Image records store a bare URL in Content.
func isImageSource(content string) bool {
	s := strings.TrimSpace(content)
	return s != "" && !strings.Contains(s, "<") && !strings.ContainsAny(s, " \n")
}

// Write renders the records as one Markdown document, one section per
// element in sorted-id order. Image records become image references; rich
// records are converted from HTML.
func (e *Exporter) Write(w io.Writer, appID string, records []content.Record) error {
	sorted := append([]content.Record(nil), records...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ElementID < sorted[j].ElementID })

	if _, err := fmt.Fprintf(w, "# %s\n", appID); err != nil {
		return fmt.Errorf("export: write: %w", err)
	}

	for _, rec := range sorted {
		if _, err := fmt.Fprintf(w, "\n## %s\n\n", rec.ElementID); err != nil {
			return fmt.Errorf("export: write: %w", err)
		}

		body, err := e.render(rec)
		if err != nil {
			return fmt.Errorf("export: element %s: %w", rec.ElementID, err)
		}
		if _, err := fmt.Fprintf(w, "%s\n", body); err != nil {
			return fmt.Errorf("export: write: %w", err)
		}
	}
	return nil
}

func (e *Exporter) render(rec content.Record) (string, error) {
	if isImageSource(rec.Content) {
		return fmt.Sprintf("![%s](%s)", rec.ElementID, rec.Content), nil
	}
	md, err := e.conv.ConvertString(rec.Content)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(md), nil
}
