package form_test

import (
	"testing"

	"github.com/steuerflow/taxfiling-api/internal/form"
)

func TestWizard_NextBlockedByInvalidStep(t *testing.T) {
	w := form.NewWizard()

	w, errs := w.Next()
	if errs.Empty() {
		t.Fatal("expected errors on an empty first step")
	}
	if w.Step != 0 {
		t.Errorf("expected wizard to stay on step 0, got %d", w.Step)
	}
	if !w.ShowErrors {
		t.Error("expected ShowErrors after a blocked advance")
	}
}

func TestWizard_NextAdvancesAndClearsShowErrors(t *testing.T) {
	w := form.NewWizard()
	w, _ = w.Next() // blocked, turns ShowErrors on

	w = w.Apply("taxYear", form.ParsePath("year"), "2023")
	w, errs := w.Next()
	if !errs.Empty() {
		t.Fatalf("expected advance, got %v", errs)
	}
	if w.Step != 1 {
		t.Errorf("expected step 1, got %d", w.Step)
	}
	if w.ShowErrors {
		t.Error("expected ShowErrors cleared after a successful advance")
	}
}

func TestWizard_BackNeverValidates(t *testing.T) {
	w := form.NewWizard()
	w = w.Apply("taxYear", form.ParsePath("year"), "2023")
	w, _ = w.Next()

	w = w.Back()
	if w.Step != 0 {
		t.Errorf("expected step 0, got %d", w.Step)
	}

	w = w.Back()
	if w.Step != 0 {
		t.Errorf("expected Back on step 0 to be a no-op, got %d", w.Step)
	}
}

func TestWizard_BackKeepsEnteredData(t *testing.T) {
	w := form.NewWizard()
	w = w.Apply("taxYear", form.ParsePath("year"), "2023")
	w, _ = w.Next()
	w = w.Apply("personalInfo", form.ParsePath("firstName"), "Anna")

	w = w.Back()
	v, ok := w.Draft.Get("personalInfo", form.ParsePath("firstName"))
	if !ok || v != "Anna" {
		t.Errorf("expected data from the abandoned step to survive, got %v", v)
	}
}

func TestWizard_HasChildrenFalseDiscardsChildren(t *testing.T) {
	w := form.NewWizard()
	w = w.Apply("personalInfo", form.ParsePath("hasChildren"), true)
	w = w.Apply("personalInfo", form.ParsePath("children"), []any{
		map[string]any{"firstName": "Paul"},
	})

	w = w.Apply("personalInfo", form.ParsePath("hasChildren"), false)
	v, _ := w.Draft.Get("personalInfo", form.ParsePath("children"))
	arr, ok := v.([]any)
	if !ok || len(arr) != 0 {
		t.Errorf("expected children cleared, got %v", v)
	}
}

func TestWizard_HasForeignResidenceFalseDiscardsResidence(t *testing.T) {
	w := form.NewWizard()
	w = w.Apply("personalInfo", form.ParsePath("hasForeignResidence"), true)
	w = w.Apply("personalInfo", form.ParsePath("foreignResidence.country"), "other")
	w = w.Apply("personalInfo", form.ParsePath("foreignResidence.otherCountry"), "Norway")

	w = w.Apply("personalInfo", form.ParsePath("hasForeignResidence"), false)
	if _, ok := w.Draft.Get("personalInfo", form.ParsePath("foreignResidence.country")); ok {
		t.Error("expected foreign residence data discarded after the gate flipped")
	}
}

func TestWizard_MaritalStatusChangeDiscardsSpouse(t *testing.T) {
	w := form.NewWizard()
	w = w.Apply("personalInfo", form.ParsePath("maritalStatus"), "married")
	w = w.Apply("personalInfo", form.ParsePath("spouse.firstName"), "Kim")

	w = w.Apply("personalInfo", form.ParsePath("maritalStatus"), "divorced")
	if _, ok := w.Draft.Get("personalInfo", form.ParsePath("spouse.firstName")); ok {
		t.Error("expected spouse data discarded after leaving joint filing")
	}

	// registered partnerships keep the spouse block
	w = w.Apply("personalInfo", form.ParsePath("spouse.firstName"), "Kim")
	w = w.Apply("personalInfo", form.ParsePath("maritalStatus"), "registered_partnership")
	if _, ok := w.Draft.Get("personalInfo", form.ParsePath("spouse.firstName")); !ok {
		t.Error("expected spouse data kept for registered partnership")
	}
}

// fillMinimalSingleFiler answers every step for an unmarried filer with
// no children, no business and no optional expense claims.
func fillMinimalSingleFiler(w form.Wizard) form.Wizard {
	apply := func(section, field string, v any) {
		w = w.Apply(section, form.ParsePath(field), v)
	}

	apply("taxYear", "year", "2023")

	apply("personalInfo", "firstName", "Anna")
	apply("personalInfo", "lastName", "Schmidt")
	apply("personalInfo", "taxId", "12345678901")
	apply("personalInfo", "dateOfBirth", "1985-04-12")
	apply("personalInfo", "maritalStatus", "single")
	apply("personalInfo", "address.street", "Hauptstrasse")
	apply("personalInfo", "address.houseNumber", "12a")
	apply("personalInfo", "address.postalCode", "10115")
	apply("personalInfo", "address.city", "Berlin")
	apply("personalInfo", "hasForeignResidence", false)
	apply("personalInfo", "hasChildren", false)

	apply("incomeInfo", "employment.isEmployed", true)
	apply("incomeInfo", "employment.employer", "ACME GmbH")
	apply("incomeInfo", "employment.employmentIncome", 42000)
	apply("incomeInfo", "employment.hasTaxCertificate", false)
	apply("incomeInfo", "employment.hasTravelSubsidy", false)
	apply("incomeInfo", "business.isBusinessOwner", false)

	apply("incomeInfo", "hasRentalProperty", false)
	apply("incomeInfo", "hasForeignIncome", false)

	apply("expenses", "workRelatedExpenses.commutation.hasCommutingExpenses", false)
	apply("expenses", "workRelatedExpenses.workEquipment.hasWorkEquipment", false)
	apply("expenses", "workRelatedExpenses.homeOffice.hasHomeOffice", false)
	apply("expenses", "workRelatedExpenses.hasDoubleHouseholdMgmt", false)

	apply("expenses", "specialExpenses.insurance.hasInsurance", false)
	apply("expenses", "specialExpenses.donations.hasDonations", false)
	apply("expenses", "specialExpenses.professionalDevelopment.hasProfessionalDevelopment", false)

	apply("expenses", "extraordinaryBurdens.medicalExpenses.hasMedicalExpenses", false)
	apply("expenses", "extraordinaryBurdens.careCosts.hasCareCosts", false)
	apply("expenses", "extraordinaryBurdens.disabilityExpenses.hasDisabilityExpenses", false)

	apply("expenses", "craftsmenServices.hasMaintenancePayments", false)

	apply("businessInfo", "isBusinessOwner", false)

	apply("signature", "fullName", "Anna Schmidt")
	apply("signature", "date", "2024-05-31")
	apply("signature", "confirmSignature", true)

	return w
}

func TestWizard_MinimalFilerReachesLastStep(t *testing.T) {
	w := fillMinimalSingleFiler(form.NewWizard())

	for i := 0; i < form.LastStep; i++ {
		next, errs := w.Next()
		if !errs.Empty() {
			t.Fatalf("step %d blocked: %v", w.Step, errs)
		}
		w = next
	}
	if !w.AtLastStep() {
		t.Fatalf("expected wizard on step %d, got %d", form.LastStep, w.Step)
	}
	if errs := w.Errors(); !errs.Empty() {
		t.Errorf("expected signature step valid, got %v", errs)
	}

	w, _ = w.Next()
	if w.Step != form.LastStep {
		t.Errorf("expected Next on the last step to refuse, got %d", w.Step)
	}
}
