package form

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Message keys attached to invalid fields. The validator emits keys
// only; resolving them to display text is the i18n layer's job.
const (
	KeyRequired           = "required"
	KeySelectionRequired  = "selectionRequired"
	KeyFileRequired       = "fileRequired"
	KeyChildRequired      = "childRequired"
	KeyInvalidDate        = "invalidDate"
	KeyInvalidTaxID       = "invalidTaxId"
	KeyInvalidPostalCode  = "invalidPostalCode"
	KeyInvalidAmount      = "invalidAmount"
	KeyInvalidWorkingDays = "invalidWorkingDays"
	KeyInvalidDistance    = "invalidDistance"
	KeyInvalidAddress     = "invalidAddress"
	KeyInvalidEmail       = "invalidEmail"
	KeyInvalidPhone       = "invalidPhone"
)

var (
	postalCodeRe = regexp.MustCompile(`^\d{5}$`)
	emailRe      = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phoneRe      = regexp.MustCompile(`^\+?[\d\s-]{8,}$`)
)

// A Check inspects one field value and returns a message key, or ""
// when the value is acceptable. present is false when the field was
// never set on the draft.
type Check func(v any, present bool) string

func isEmpty(v any, present bool) bool {
	if !present || v == nil {
		return true
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t) == ""
	case bool:
		return false
	case []any:
		return false
	default:
		return strings.TrimSpace(asString(v)) == ""
	}
}

func asString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

// asNumber accepts the forms a JSON field can arrive in: numbers
// proper, or numeric strings typed into a text input.
func asNumber(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return n, err == nil
	default:
		return 0, false
	}
}

func asBool(v any) (bool, bool) {
	b, ok := v.(bool)
	return b, ok
}

// required — the field must carry a non-blank value.
func required(v any, present bool) string {
	if isEmpty(v, present) {
		return KeyRequired
	}
	return ""
}

// answerRequired — a yes/no gate must have been answered. Any bool
// value (true or false) passes; anything else fails.
func answerRequired(v any, present bool) string {
	if _, ok := asBool(v); !present || !ok {
		return KeySelectionRequired
	}
	return ""
}

// choiceRequired — a select input must carry a non-blank choice.
func choiceRequired(v any, present bool) string {
	if isEmpty(v, present) {
		return KeySelectionRequired
	}
	return ""
}

// mustBeTrue — for confirmation checkboxes.
func mustBeTrue(v any, present bool) string {
	if b, ok := asBool(v); !present || !ok || !b {
		return KeyRequired
	}
	return ""
}

func validDate(v any, present bool) string {
	if isEmpty(v, present) {
		return KeyInvalidDate
	}
	if _, err := parseDate(asString(v)); err != nil {
		return KeyInvalidDate
	}
	return ""
}

// pastDate additionally rejects dates in the future (child birth dates).
func pastDate(v any, present bool) string {
	if isEmpty(v, present) {
		return KeyInvalidDate
	}
	d, err := parseDate(asString(v))
	if err != nil || d.After(time.Now()) {
		return KeyInvalidDate
	}
	return ""
}

// requiredDate distinguishes a missing date from a malformed one.
func requiredDate(v any, present bool) string {
	if isEmpty(v, present) {
		return KeyRequired
	}
	if _, err := parseDate(asString(v)); err != nil {
		return KeyInvalidDate
	}
	return ""
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

// validTaxID is a deliberate placeholder: non-empty and at least eight
// characters. It is not the Steuer-ID check digit algorithm.
func validTaxID(v any, present bool) string {
	if isEmpty(v, present) || len(strings.TrimSpace(asString(v))) < 8 {
		return KeyInvalidTaxID
	}
	return ""
}

// validPostalCode — German format, exactly five digits.
func validPostalCode(v any, present bool) string {
	if !present || !postalCodeRe.MatchString(strings.TrimSpace(asString(v))) {
		return KeyInvalidPostalCode
	}
	return ""
}

// requiredAmount — non-empty and numeric >= 0.
func requiredAmount(v any, present bool) string {
	if isEmpty(v, present) {
		return KeyRequired
	}
	n, ok := asNumber(v)
	if !ok || n < 0 {
		return KeyInvalidAmount
	}
	return ""
}

// requiredDistance — non-empty and strictly positive.
func requiredDistance(v any, present bool) string {
	if isEmpty(v, present) {
		return KeyRequired
	}
	n, ok := asNumber(v)
	if !ok || n <= 0 {
		return KeyInvalidDistance
	}
	return ""
}

// workingDays — bounded to [0, 230], the statutory maximum of
// commuting days per year.
func workingDays(v any, present bool) string {
	if isEmpty(v, present) {
		return KeyRequired
	}
	n, ok := asNumber(v)
	if !ok || n < 0 || n > 230 {
		return KeyInvalidWorkingDays
	}
	return ""
}

// fileRequired — the field must hold a non-empty attachment array.
func fileRequired(v any, present bool) string {
	arr, ok := v.([]any)
	if !present || !ok || len(arr) == 0 {
		return KeyFileRequired
	}
	return ""
}

// nonEmptyArray — at least one entry (children list).
func nonEmptyArray(v any, present bool) string {
	arr, ok := v.([]any)
	if !present || !ok || len(arr) == 0 {
		return KeyChildRequired
	}
	return ""
}

// optionalEmail / optionalPhone validate format only when a value was
// entered; blank is fine.
func optionalEmail(v any, present bool) string {
	if isEmpty(v, present) {
		return ""
	}
	if !emailRe.MatchString(strings.TrimSpace(asString(v))) {
		return KeyInvalidEmail
	}
	return ""
}

func optionalPhone(v any, present bool) string {
	if isEmpty(v, present) {
		return ""
	}
	if !phoneRe.MatchString(strings.TrimSpace(asString(v))) {
		return KeyInvalidPhone
	}
	return ""
}

// completeAddress validates a composite address value: street, house
// number and city non-blank, postal code five digits.
func completeAddress(v any, present bool) string {
	addr, ok := v.(map[string]any)
	if !present || !ok {
		return KeyInvalidAddress
	}
	street, sok := addr["street"]
	house, hok := addr["houseNumber"]
	plz, pok := addr["postalCode"]
	city, cok := addr["city"]
	if isEmpty(street, sok) || isEmpty(house, hok) || isEmpty(city, cok) {
		return KeyInvalidAddress
	}
	if !pok || !postalCodeRe.MatchString(strings.TrimSpace(asString(plz))) {
		return KeyInvalidAddress
	}
	return ""
}
