package form

// StepCount is the number of wizard steps (0 through LastStep).
const StepCount = LastStep + 1

// Step names, used by the HTTP layer and the PDF summary in the order
// the wizard presents them.
var StepNames = [StepCount]string{
	"taxYear",
	"personalInfo",
	"employmentIncome",
	"rentalIncome",
	"foreignIncome",
	"workRelatedExpenses",
	"specialExpenses",
	"extraordinaryBurdens",
	"craftsmenServices",
	"businessInfo",
	"summary",
	"signature",
}

// Wizard tracks a filing's position in the step sequence. Like Draft
// it is a value type with copy-on-write semantics: Apply, Next and
// Back return the updated wizard and leave the receiver untouched.
type Wizard struct {
	Draft      Draft
	Step       int
	ShowErrors bool
}

// NewWizard starts a fresh filing on step 0.
func NewWizard() Wizard {
	return Wizard{Draft: NewDraft()}
}

// Apply sets one field and returns the updated wizard. Answering a
// gate question negatively discards the dependent data so it cannot
// resurface in validation or the final payload.
func (w Wizard) Apply(section string, path Path, value any) Wizard {
	w.Draft = w.Draft.Set(section, path, value)

	if section == "personalInfo" && len(path) == 1 {
		switch path[0] {
		case "hasChildren":
			if b, ok := asBool(value); ok && !b {
				w.Draft = w.Draft.Set(section, Path{"children"}, []any{})
			}
		case "hasForeignResidence":
			if b, ok := asBool(value); ok && !b {
				w.Draft = w.Draft.Set(section, Path{"foreignResidence"}, map[string]any{})
			}
		case "maritalStatus":
			if !whenSpouse(w.Draft.Section(section)) {
				w.Draft = w.Draft.Set(section, Path{"spouse"}, map[string]any{})
			}
		}
	}
	return w
}

// Errors validates the current step. Callers that render inline
// feedback gate on ShowErrors, which only turns on after a blocked
// Next.
func (w Wizard) Errors() Errors {
	return Validate(w.Draft, w.Step)
}

// Next validates the current step and advances on success. On failure
// the wizard stays put with ShowErrors set and the error tree is
// returned. Advancing past the last step is refused; Submit is the
// only way off it.
func (w Wizard) Next() (Wizard, Errors) {
	if w.Step >= LastStep {
		return w, nil
	}
	if errs := Validate(w.Draft, w.Step); !errs.Empty() {
		w.ShowErrors = true
		return w, errs
	}
	w.Step++
	w.ShowErrors = false
	return w, nil
}

// Back moves one step towards the start without validating. Data
// entered on the abandoned step is kept.
func (w Wizard) Back() Wizard {
	if w.Step > 0 {
		w.Step--
		w.ShowErrors = false
	}
	return w
}

// AtLastStep reports whether the wizard sits on the signature step,
// the only step a submission may leave from.
func (w Wizard) AtLastStep() bool {
	return w.Step == LastStep
}
