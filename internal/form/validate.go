package form

import "strconv"

// Errors is the per-field error tree produced by Validate. The first
// level is the section name; below it, message keys sit at the dotted
// path of the offending field (personalInfo -> children.0.taxId).
type Errors map[string]map[string]string

// Empty reports whether no field failed.
func (e Errors) Empty() bool {
	return len(e) == 0
}

// At returns the message key recorded for a field, or "".
func (e Errors) At(section, field string) string {
	sec, ok := e[section]
	if !ok {
		return ""
	}
	return sec[field]
}

func (e Errors) set(section, field, key string) {
	sec, ok := e[section]
	if !ok {
		sec = make(map[string]string)
		e[section] = sec
	}
	sec[field] = key
}

// Tree converts the error map into nested any-typed maps, the shape
// API responses and ErrFormInvalid carry.
func (e Errors) Tree() map[string]any {
	out := make(map[string]any, len(e))
	for section, fields := range e {
		m := make(map[string]any, len(fields))
		for f, k := range fields {
			m[f] = k
		}
		out[section] = m
	}
	return out
}

// Validate runs the rule table for one step against the draft and
// returns every failing field. It is pure: same draft and step, same
// result. An unknown step validates vacuously, as does step 10.
func Validate(d Draft, step int) Errors {
	errs := make(Errors)
	for _, sr := range ruleTable[step] {
		sec := d.Section(sr.Section)
		for _, r := range sr.Rules {
			applyRule(errs, sr.Section, sec, r)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

func applyRule(errs Errors, section string, sec map[string]any, r Rule) {
	if r.When != nil && !r.When(sec) {
		return
	}
	v, ok := lookup(sec, ParsePath(r.Field))
	if key := r.Check(v, ok); key != "" {
		errs.set(section, r.Field, key)
		return
	}
	if len(r.Each) == 0 {
		return
	}
	// Element rules: lookup is relative to the element, the error path
	// is rebased onto the element's array position.
	arr, _ := v.([]any)
	for i, elem := range arr {
		em, _ := elem.(map[string]any)
		for _, sub := range r.Each {
			if sub.When != nil && !sub.When(em) {
				continue
			}
			ev, eok := lookup(em, ParsePath(sub.Field))
			if key := sub.Check(ev, eok); key != "" {
				errs.set(section, r.Field+"."+strconv.Itoa(i)+"."+sub.Field, key)
			}
		}
	}
}
