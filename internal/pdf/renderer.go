// Package pdf renders the summary document that accompanies every
// submitted tax return. The summary lists the answers of each wizard
// section with German text first and the filing language alongside,
// so the tax office and the applicant can both read it.
package pdf

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/steuerflow/taxfiling-api/internal/domain"
	"github.com/steuerflow/taxfiling-api/internal/i18n"
)

// Renderer implements port.SummaryRenderer on top of fpdf.
type Renderer struct {
	bundle *i18n.Bundle
}

func NewRenderer(bundle *i18n.Bundle) *Renderer {
	return &Renderer{bundle: bundle}
}

// sectionOrder fixes the order sections appear in the document,
// mirroring the wizard. The summary step has no data of its own.
var sectionOrder = []struct {
	labelKey string
	pick     func(f *domain.TaxForm) domain.Section
}{
	{"steps.taxYear", func(f *domain.TaxForm) domain.Section { return f.TaxYear }},
	{"steps.personalInfo", func(f *domain.TaxForm) domain.Section { return f.PersonalInfo }},
	{"steps.employmentIncome", func(f *domain.TaxForm) domain.Section { return f.IncomeInfo }},
	{"steps.rentalIncome", func(f *domain.TaxForm) domain.Section { return f.RentalIncome }},
	{"steps.foreignIncome", func(f *domain.TaxForm) domain.Section { return f.ForeignIncome }},
	{"steps.workRelatedExpenses", func(f *domain.TaxForm) domain.Section { return f.WorkRelatedExpenses }},
	{"steps.specialExpenses", func(f *domain.TaxForm) domain.Section { return f.SpecialExpenses }},
	{"steps.extraordinaryBurdens", func(f *domain.TaxForm) domain.Section { return f.ExtraordinaryBurdens }},
	{"steps.craftsmenServices", func(f *domain.TaxForm) domain.Section { return f.CraftsmenServices }},
	{"steps.businessInfo", func(f *domain.TaxForm) domain.Section { return f.BusinessInfo }},
	{"steps.signature", func(f *domain.TaxForm) domain.Section { return f.Signature }},
}

// bilingual joins the German text with its filing-language counterpart.
// Identical text (German filings, shared words) is printed once.
func bilingual(german, selected string) string {
	if german == selected {
		return german
	}
	return german + " / " + selected
}

// rowLabel builds the label of one field row: the German field label
// with the filing-language label alongside.
func (r *Renderer) rowLabel(language, dotted string) string {
	return bilingual(
		r.bundle.FieldLabel(i18n.DefaultLanguage, dotted),
		r.bundle.FieldLabel(language, dotted),
	)
}

// Render produces the PDF summary of one filing. German is always
// rendered; when the filing language differs, its translation appears
// next to every German title, label and answer.
func (r *Renderer) Render(form *domain.TaxForm, language string) ([]byte, error) {
	doc := fpdf.New("P", "mm", "A4", "")
	tr := doc.UnicodeTranslatorFromDescriptor("")
	doc.SetAutoPageBreak(true, 20)
	doc.AddPage()

	t := func(key string) string {
		return bilingual(r.bundle.T(i18n.DefaultLanguage, key), r.bundle.T(language, key))
	}
	label := func(dotted string) string { return r.rowLabel(language, dotted) }

	doc.SetFont("Helvetica", "B", 16)
	doc.CellFormat(0, 10, tr(r.bundle.T(i18n.DefaultLanguage, "pdf.title")), "", 1, "C", false, 0, "")
	if language != i18n.DefaultLanguage {
		doc.SetFont("Helvetica", "B", 13)
		doc.CellFormat(0, 8, tr(r.bundle.T(language, "pdf.title")), "", 1, "C", false, 0, "")
	}

	doc.SetFont("Helvetica", "", 9)
	doc.SetTextColor(90, 90, 90)
	doc.CellFormat(0, 6, tr(fmt.Sprintf("%s: %s", t("pdf.applicationId"), form.ApplicationID)), "", 1, "C", false, 0, "")
	doc.CellFormat(0, 6, tr(fmt.Sprintf("%s: %s", t("pdf.generated"), time.Now().Format("2006-01-02 15:04"))), "", 1, "C", false, 0, "")
	doc.Ln(4)
	doc.SetTextColor(0, 0, 0)

	for _, s := range sectionOrder {
		sec := s.pick(form)
		if len(sec) == 0 {
			continue
		}
		doc.SetFont("Helvetica", "B", 12)
		doc.SetFillColor(235, 235, 235)
		doc.CellFormat(0, 8, tr(t(s.labelKey)), "", 1, "L", true, 0, "")
		doc.Ln(1)
		r.writeValues(doc, tr, t, label, "", sec)
		doc.Ln(3)
	}

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, fmt.Errorf("render summary: %w", err)
	}
	return buf.Bytes(), nil
}

// writeValues prints the fields of one section, descending into nested
// objects with a dotted prefix. Keys are sorted for a stable document.
func (r *Renderer) writeValues(doc *fpdf.Fpdf, tr, t, label func(string) string, prefix string, values map[string]any) {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		dotted := k
		if prefix != "" {
			dotted = prefix + "." + k
		}
		switch v := values[k].(type) {
		case map[string]any:
			if name, ok := v["name"].(string); ok && len(v) <= 4 {
				// file attachment, print the name only
				r.writeRow(doc, tr, label(dotted), name)
				continue
			}
			r.writeValues(doc, tr, t, label, dotted, v)
		case []any:
			r.writeList(doc, tr, t, label, dotted, v)
		case bool:
			if v {
				r.writeRow(doc, tr, label(dotted), t("pdf.yes"))
			} else {
				r.writeRow(doc, tr, label(dotted), t("pdf.no"))
			}
		case nil:
			r.writeRow(doc, tr, label(dotted), t("pdf.notProvided"))
		case float64:
			r.writeRow(doc, tr, label(dotted), strconv.FormatFloat(v, 'f', -1, 64))
		default:
			s := fmt.Sprintf("%v", v)
			if s == "" {
				s = t("pdf.notProvided")
			}
			r.writeRow(doc, tr, label(dotted), s)
		}
	}
}

func (r *Renderer) writeList(doc *fpdf.Fpdf, tr, t, label func(string) string, dotted string, items []any) {
	if len(items) == 0 {
		r.writeRow(doc, tr, label(dotted), t("pdf.notProvided"))
		return
	}
	for i, item := range items {
		idxDotted := fmt.Sprintf("%s.%d", dotted, i)
		switch v := item.(type) {
		case map[string]any:
			if name, ok := v["name"].(string); ok && len(v) <= 4 {
				r.writeRow(doc, tr, label(idxDotted), name)
				continue
			}
			r.writeValues(doc, tr, t, label, idxDotted, v)
		default:
			r.writeRow(doc, tr, label(idxDotted), fmt.Sprintf("%v", v))
		}
	}
}

// writeRow prints one label/value pair in two columns. Both sides wrap;
// the row advances to whichever column ended lower.
func (r *Renderer) writeRow(doc *fpdf.Fpdf, tr func(string) string, label, value string) {
	doc.SetFont("Helvetica", "", 9)
	x, y := doc.GetX(), doc.GetY()
	doc.SetTextColor(90, 90, 90)
	doc.MultiCell(110, 5, tr(label), "", "L", false)
	labelEnd := doc.GetY()
	doc.SetXY(x+110, y)
	doc.SetTextColor(0, 0, 0)
	doc.MultiCell(0, 5, tr(value), "", "L", false)
	if labelEnd > doc.GetY() {
		doc.SetY(labelEnd)
	}
}
