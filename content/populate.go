package content

import (
	"log/slog"

	"github.com/StreamlinedCMS/client-sdk/internal/dom"
)

// Registry is the subset of the element registry Populate needs. It is
// satisfied by editor.Registry.
type Registry interface {
	Get(id string) (dom.Element, bool)
	Replace(id string, el dom.Element)
}

// Populate applies fetched records to the registered elements. Records for
// unknown ids are skipped with a warning. Rich elements are updated in
// place; image elements are swapped for a fresh node (media sources change
// node identity) and the registry entry is updated to the replacement, so
// no caller is left holding the stale node.
func Populate(doc dom.Document, marker string, reg Registry, records []Record, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}

	for _, rec := range records {
		el, ok := reg.Get(rec.ElementID)
		if !ok {
			logger.Warn("content: record for unknown element", "id", rec.ElementID)
			continue
		}

		if el.Kind() == dom.KindImage {
			fresh, err := doc.ReplaceImage(marker, rec.ElementID, rec.Content)
			if err != nil {
				logger.Warn("content: image swap failed", "id", rec.ElementID, "error", err)
				continue
			}
			reg.Replace(rec.ElementID, fresh)
			continue
		}

		if err := el.SetContent(rec.Content); err != nil {
			logger.Warn("content: populate failed", "id", rec.ElementID, "error", err)
		}
	}
}
