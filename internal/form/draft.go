// Package form implements the tax return form engine: the draft tree,
// the path-based mutator, the per-step validator and the wizard state
// machine. The engine is pure — it performs no I/O and holds no locks;
// ownership of a draft lies with the filing session that wraps it.
package form

import (
	"strconv"
	"strings"
)

// Path addresses a field inside a section as an explicit key sequence.
// Numeric segments index into arrays (children.0.firstName).
type Path []string

// ParsePath splits a dotted field reference into a Path. The dotted
// form is what the wire protocol carries; internally rules and errors
// always work with key sequences.
func ParsePath(field string) Path {
	if field == "" {
		return nil
	}
	return Path(strings.Split(field, "."))
}

// String joins the path back into its dotted form.
func (p Path) String() string {
	return strings.Join(p, ".")
}

// Draft is the in-progress tax return: a tree of named sections, each a
// nested map. Drafts are never mutated in place — Set returns a new
// draft with the touched branch copied, so a caller holding the old
// value keeps a consistent snapshot.
type Draft map[string]any

// NewDraft returns an empty draft with the sections the wizard touches
// on mount pre-created, matching the initial form state.
func NewDraft() Draft {
	return Draft{
		"taxYear":      map[string]any{},
		"personalInfo": map[string]any{},
		"incomeInfo":   map[string]any{},
		"expenses":     map[string]any{},
	}
}

// Set applies a single field update and returns the resulting draft.
// The section is created if absent. Intermediate objects along the path
// are created as needed; every traversed level is copied so the
// previous draft remains untouched. No validation happens here.
func (d Draft) Set(section string, path Path, value any) Draft {
	next := make(Draft, len(d)+1)
	for k, v := range d {
		next[k] = v
	}

	sec, _ := next[section].(map[string]any)
	next[section] = setIn(sec, path, value)
	return next
}

// setIn copies m and sets path to value, descending recursively.
func setIn(m map[string]any, path Path, value any) map[string]any {
	cp := make(map[string]any, len(m)+1)
	for k, v := range m {
		cp[k] = v
	}
	if len(path) == 0 {
		return cp
	}
	key := path[0]
	if len(path) == 1 {
		cp[key] = value
		return cp
	}
	child, _ := cp[key].(map[string]any)
	cp[key] = setIn(child, path[1:], value)
	return cp
}

// Section returns the named section map, or nil if absent.
func (d Draft) Section(name string) map[string]any {
	sec, _ := d[name].(map[string]any)
	return sec
}

// Get resolves a path inside a section. ok is false when any segment is
// missing; a present-but-nil leaf reports ok=true.
func (d Draft) Get(section string, path Path) (any, bool) {
	return lookup(d.Section(section), path)
}

func lookup(m map[string]any, path Path) (any, bool) {
	if m == nil {
		return nil, false
	}
	var cur any = m
	for _, key := range path {
		switch node := cur.(type) {
		case map[string]any:
			v, ok := node[key]
			if !ok {
				return nil, false
			}
			cur = v
		case []any:
			idx, err := strconv.Atoi(key)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			cur = node[idx]
		default:
			return nil, false
		}
	}
	return cur, true
}

// Walk visits every node of the draft, calling fn with the section
// name, the path within it and the value. Returning false from fn stops
// descent into that branch. Used by the upload pipeline to discover
// file attachments wherever a step placed them.
func (d Draft) Walk(fn func(section string, path Path, value any) bool) {
	for name, v := range d {
		sec, ok := v.(map[string]any)
		if !ok {
			continue
		}
		for k, child := range sec {
			walkValue(name, Path{k}, child, fn)
		}
	}
}

func walkValue(section string, prefix Path, v any, fn func(string, Path, any) bool) {
	if !fn(section, prefix, v) {
		return
	}
	switch node := v.(type) {
	case map[string]any:
		for k, child := range node {
			walkValue(section, append(append(Path{}, prefix...), k), child, fn)
		}
	case []any:
		for i, child := range node {
			walkValue(section, append(append(Path{}, prefix...), strconv.Itoa(i)), child, fn)
		}
	}
}
