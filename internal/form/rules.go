package form

// A Rule binds one field of a section to a Check. When is an optional
// gate evaluated against the section; a rule whose gate returns false
// is skipped entirely. Each carries element rules for array fields:
// they run once per element, with the element index inserted into the
// error path (children.0.firstName).
type Rule struct {
	Field string
	When  func(sec map[string]any) bool
	Check Check
	Each  []Rule
}

// stepRules groups the rules of one wizard step by the section they
// read. Most steps touch a single section; the income steps share
// incomeInfo.
type stepRules struct {
	Section string
	Rules   []Rule
}

func whenTrue(field string) func(map[string]any) bool {
	p := ParsePath(field)
	return func(sec map[string]any) bool {
		v, ok := lookup(sec, p)
		if !ok {
			return false
		}
		b, ok := asBool(v)
		return ok && b
	}
}

func whenEquals(field, want string) func(map[string]any) bool {
	p := ParsePath(field)
	return func(sec map[string]any) bool {
		v, ok := lookup(sec, p)
		return ok && asString(v) == want
	}
}

// whenPositive gates on a numeric field being strictly greater than
// zero (claimed business trip costs demand a proof document).
func whenPositive(field string) func(map[string]any) bool {
	p := ParsePath(field)
	return func(sec map[string]any) bool {
		v, ok := lookup(sec, p)
		if !ok {
			return false
		}
		n, ok := asNumber(v)
		return ok && n > 0
	}
}

// whenSpouse gates the spouse block: married couples and registered
// partnerships file jointly and must provide partner details.
func whenSpouse(sec map[string]any) bool {
	switch asString(sec["maritalStatus"]) {
	case "married", "registered_partnership":
		return true
	}
	return false
}

func whenAll(gates ...func(map[string]any) bool) func(map[string]any) bool {
	return func(sec map[string]any) bool {
		for _, g := range gates {
			if !g(sec) {
				return false
			}
		}
		return true
	}
}

// LastStep is the signature step; Submit is only legal here.
const LastStep = 11

// ruleTable maps each wizard step to its rules. Step 10 (summary) has
// no inputs of its own and validates vacuously.
var ruleTable = map[int][]stepRules{
	0: {{Section: "taxYear", Rules: []Rule{
		{Field: "year", Check: required},
	}}},

	1: {{Section: "personalInfo", Rules: []Rule{
		{Field: "firstName", Check: required},
		{Field: "lastName", Check: required},
		{Field: "taxId", Check: validTaxID},
		{Field: "dateOfBirth", Check: validDate},
		{Field: "maritalStatus", Check: choiceRequired},
		{Field: "email", Check: optionalEmail},
		{Field: "phone", Check: optionalPhone},
		{Field: "address.street", Check: required},
		{Field: "address.houseNumber", Check: required},
		{Field: "address.postalCode", Check: validPostalCode},
		{Field: "address.city", Check: required},
		{Field: "hasForeignResidence", Check: answerRequired},
		{Field: "foreignResidence.country", When: whenTrue("hasForeignResidence"), Check: choiceRequired},
		{Field: "foreignResidence.otherCountry",
			When:  whenAll(whenTrue("hasForeignResidence"), whenEquals("foreignResidence.country", "other")),
			Check: required},
		{Field: "spouse.firstName", When: whenSpouse, Check: required},
		{Field: "spouse.lastName", When: whenSpouse, Check: required},
		{Field: "spouse.dateOfBirth", When: whenSpouse, Check: validDate},
		{Field: "spouse.taxId", When: whenSpouse, Check: validTaxID},
		{Field: "spouse.hasIncome", When: whenSpouse, Check: answerRequired},
		{Field: "spouse.incomeType",
			When:  whenAll(whenSpouse, whenTrue("spouse.hasIncome")),
			Check: choiceRequired},
		{Field: "spouse.jointTaxation",
			When:  whenAll(whenSpouse, whenTrue("spouse.hasIncome")),
			Check: answerRequired},
		{Field: "hasChildren", Check: answerRequired},
		{Field: "children", When: whenTrue("hasChildren"), Check: nonEmptyArray, Each: []Rule{
			{Field: "firstName", Check: required},
			{Field: "lastName", Check: required},
			{Field: "dateOfBirth", Check: pastDate},
			{Field: "taxId", Check: validTaxID},
		}},
	}}},

	2: {{Section: "incomeInfo", Rules: []Rule{
		{Field: "employment.isEmployed", Check: answerRequired},
		{Field: "employment.employer", When: whenTrue("employment.isEmployed"), Check: required},
		{Field: "employment.employmentIncome", When: whenTrue("employment.isEmployed"), Check: requiredAmount},
		{Field: "employment.hasTaxCertificate", When: whenTrue("employment.isEmployed"), Check: answerRequired},
		{Field: "employment.taxCertificate",
			When:  whenAll(whenTrue("employment.isEmployed"), whenTrue("employment.hasTaxCertificate")),
			Check: fileRequired},
		{Field: "employment.hasTravelSubsidy", When: whenTrue("employment.isEmployed"), Check: answerRequired},
		{Field: "employment.travelDistance",
			When:  whenAll(whenTrue("employment.isEmployed"), whenTrue("employment.hasTravelSubsidy")),
			Check: requiredDistance},
		{Field: "business.isBusinessOwner", Check: answerRequired},
		{Field: "business.businessType", When: whenTrue("business.isBusinessOwner"), Check: required},
		{Field: "business.businessEarnings", When: whenTrue("business.isBusinessOwner"), Check: requiredAmount},
		{Field: "business.businessExpenses", When: whenTrue("business.isBusinessOwner"), Check: requiredAmount},
	}}},

	3: {{Section: "incomeInfo", Rules: []Rule{
		{Field: "hasRentalProperty", Check: answerRequired},
		{Field: "rentalIncome", When: whenTrue("hasRentalProperty"), Check: requiredAmount},
		{Field: "rentalCosts", When: whenTrue("hasRentalProperty"), Check: requiredAmount},
		{Field: "rentalPropertyAddress.street", When: whenTrue("hasRentalProperty"), Check: required},
		{Field: "rentalPropertyAddress.houseNumber", When: whenTrue("hasRentalProperty"), Check: required},
		{Field: "rentalPropertyAddress.postalCode", When: whenTrue("hasRentalProperty"), Check: validPostalCode},
		{Field: "rentalPropertyAddress.city", When: whenTrue("hasRentalProperty"), Check: required},
	}}},

	4: {{Section: "incomeInfo", Rules: []Rule{
		{Field: "hasForeignIncome", Check: answerRequired},
		{Field: "foreignIncomeCountry", When: whenTrue("hasForeignIncome"), Check: required},
		{Field: "foreignIncomeType", When: whenTrue("hasForeignIncome"), Check: required},
		{Field: "foreignIncomeAmount", When: whenTrue("hasForeignIncome"), Check: requiredAmount},
		{Field: "foreignIncomeTaxPaid", When: whenTrue("hasForeignIncome"), Check: requiredAmount},
		{Field: "foreignIncomeTaxCertificateFile", When: whenTrue("hasForeignIncome"), Check: fileRequired},
	}}},

	5: {{Section: "expenses", Rules: []Rule{
		{Field: "workRelatedExpenses.commutation.hasCommutingExpenses", Check: answerRequired},
		{Field: "workRelatedExpenses.commutation.workingDaysCount",
			When:  whenTrue("workRelatedExpenses.commutation.hasCommutingExpenses"),
			Check: workingDays},
		{Field: "workRelatedExpenses.commutation.route.from",
			When:  whenTrue("workRelatedExpenses.commutation.hasCommutingExpenses"),
			Check: completeAddress},
		{Field: "workRelatedExpenses.commutation.route.firstOfficeAddress",
			When:  whenTrue("workRelatedExpenses.commutation.hasCommutingExpenses"),
			Check: completeAddress},
		{Field: "workRelatedExpenses.businessTripsCosts.proof",
			When:  whenPositive("workRelatedExpenses.businessTripsCosts.amount"),
			Check: fileRequired},
		{Field: "workRelatedExpenses.workEquipment.hasWorkEquipment", Check: answerRequired},
		{Field: "workRelatedExpenses.homeOffice.hasHomeOffice", Check: answerRequired},
		{Field: "workRelatedExpenses.homeOffice.workingDaysCount",
			When:  whenTrue("workRelatedExpenses.homeOffice.hasHomeOffice"),
			Check: workingDays},
		{Field: "workRelatedExpenses.hasDoubleHouseholdMgmt", Check: answerRequired},
	}}},

	6: {{Section: "expenses", Rules: []Rule{
		{Field: "specialExpenses.insurance.hasInsurance", Check: answerRequired},
		{Field: "specialExpenses.donations.hasDonations", Check: answerRequired},
		{Field: "specialExpenses.professionalDevelopment.hasProfessionalDevelopment", Check: answerRequired},
	}}},

	7: {{Section: "expenses", Rules: []Rule{
		{Field: "extraordinaryBurdens.medicalExpenses.hasMedicalExpenses", Check: answerRequired},
		{Field: "extraordinaryBurdens.careCosts.hasCareCosts", Check: answerRequired},
		{Field: "extraordinaryBurdens.disabilityExpenses.hasDisabilityExpenses", Check: answerRequired},
	}}},

	8: {{Section: "expenses", Rules: []Rule{
		{Field: "craftsmenServices.hasMaintenancePayments", Check: answerRequired},
		{Field: "craftsmenServices.maintenanceRecipient", When: whenTrue("craftsmenServices.hasMaintenancePayments"), Check: required},
		{Field: "craftsmenServices.maintenanceAmount", When: whenTrue("craftsmenServices.hasMaintenancePayments"), Check: requiredAmount},
		{Field: "craftsmenServices.invoiceCraftsmenServices", When: whenTrue("craftsmenServices.hasMaintenancePayments"), Check: fileRequired},
	}}},

	9: {{Section: "businessInfo", Rules: []Rule{
		{Field: "isBusinessOwner", Check: answerRequired},
		{Field: "businessType", When: whenTrue("isBusinessOwner"), Check: choiceRequired},
		{Field: "businessEarnings", When: whenTrue("isBusinessOwner"), Check: requiredAmount},
		{Field: "businessExpenses", When: whenTrue("isBusinessOwner"), Check: requiredAmount},
		{Field: "businessAddress.street", When: whenTrue("isBusinessOwner"), Check: required},
		{Field: "businessAddress.houseNumber", When: whenTrue("isBusinessOwner"), Check: required},
		{Field: "businessAddress.postalCode", When: whenTrue("isBusinessOwner"), Check: validPostalCode},
		{Field: "businessAddress.city", When: whenTrue("isBusinessOwner"), Check: required},
	}}},

	10: nil,

	11: {{Section: "signature", Rules: []Rule{
		{Field: "fullName", Check: required},
		{Field: "date", Check: requiredDate},
		{Field: "confirmSignature", Check: mustBeTrue},
	}}},
}
