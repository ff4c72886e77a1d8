package content

import (
	"testing"

	"github.com/StreamlinedCMS/client-sdk/internal/dom"
	"github.com/StreamlinedCMS/client-sdk/internal/dom/domtest"
)

type mapRegistry map[string]dom.Element

func (m mapRegistry) Get(id string) (dom.Element, bool) {
	el, ok := m[id]
	return el, ok
}

func (m mapRegistry) Replace(id string, el dom.Element) { m[id] = el }

func TestPopulate(t *testing.T) {
	headline := domtest.NewElement("headline", "default")
	hero := domtest.NewImage("hero", "default.png")
	doc := domtest.NewDocument(headline, hero)
	reg := mapRegistry{"headline": headline, "hero": hero}

	Populate(doc, "data-sc-edit", reg, []Record{
		{ElementID: "headline", Content: "<p>published</p>"},
		{ElementID: "hero", Content: "published.png"},
		{ElementID: "ghost", Content: "no such element"},
	}, nil)

	if got, _ := headline.Content(); got != "<p>published</p>" {
		t.Errorf("headline: got %q", got)
	}
	// The image swap changes node identity; the registry must point at the
	// replacement and the document must hold the new node.
	if got, _ := doc.Element("hero").Content(); got != "published.png" {
		t.Errorf("hero src: got %q", got)
	}
	if reg["hero"] == dom.Element(hero) {
		t.Error("registry still references the replaced image node")
	}
}

func TestPopulateSkipsFailures(t *testing.T) {
	good := domtest.NewElement("good", "default")
	bad := domtest.NewElement("bad", "default")
	bad.ContentErr = errForTest{}
	doc := domtest.NewDocument(good, bad)
	reg := mapRegistry{"good": good, "bad": bad}

	Populate(doc, "data-sc-edit", reg, []Record{
		{ElementID: "bad", Content: "won't land"},
		{ElementID: "good", Content: "landed"},
	}, nil)

	if got, _ := good.Content(); got != "landed" {
		t.Errorf("good element: got %q, want %q (failures must not abort the pass)", got, "landed")
	}
}

type errForTest struct{}

func (errForTest) Error() string { return "write refused" }
