// Package i18n resolves validation message keys and form labels into
// display text. Catalogs are embedded at build time; German is the
// default language of the application, English the fallback for keys
// a catalog does not carry.
package i18n

import (
	"embed"
	"fmt"
	"sort"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
	"golang.org/x/text/language"
)

//go:embed catalogs/*.json
var catalogFS embed.FS

// DefaultLanguage is used when no preference is given at all.
const DefaultLanguage = "de"

type Bundle struct {
	catalogs map[string]map[string]string
	tags     []language.Tag
	codes    []string
	matcher  language.Matcher
}

// Language describes one supported language for GET /v1/filings/languages.
type Language struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// Load parses the embedded catalogs. It panics on a malformed catalog
// since that is a build defect, not a runtime condition.
func Load() *Bundle {
	entries, err := catalogFS.ReadDir("catalogs")
	if err != nil {
		panic("i18n: read catalogs: " + err.Error())
	}

	b := &Bundle{catalogs: make(map[string]map[string]string)}
	var codes []string
	for _, e := range entries {
		code := e.Name()[:len(e.Name())-len(".json")]
		raw, err := catalogFS.ReadFile("catalogs/" + e.Name())
		if err != nil {
			panic("i18n: read catalog " + e.Name() + ": " + err.Error())
		}
		var msgs map[string]string
		if err := json.Unmarshal(raw, &msgs); err != nil {
			panic(fmt.Sprintf("i18n: parse catalog %s: %v", e.Name(), err))
		}
		b.catalogs[code] = msgs
		codes = append(codes, code)
	}
	sort.Strings(codes)

	// German first so it wins exact-miss matching, then the rest.
	ordered := []string{DefaultLanguage}
	for _, c := range codes {
		if c != DefaultLanguage {
			ordered = append(ordered, c)
		}
	}
	for _, c := range ordered {
		b.tags = append(b.tags, language.Make(c))
	}
	b.codes = ordered
	b.matcher = language.NewMatcher(b.tags)
	return b
}

// Languages lists the supported languages with their native names.
func (b *Bundle) Languages() []Language {
	out := make([]Language, 0, len(b.codes))
	for _, c := range b.codes {
		out = append(out, Language{Code: c, Name: b.catalogs[c]["language.name"]})
	}
	return out
}

// Match resolves a requested language (a code, or an Accept-Language
// value) to the best supported catalog code.
func (b *Bundle) Match(requested string) string {
	if requested == "" {
		return DefaultLanguage
	}
	tags, _, err := language.ParseAcceptLanguage(requested)
	if err != nil || len(tags) == 0 {
		return DefaultLanguage
	}
	_, idx, _ := b.matcher.Match(tags...)
	return b.codes[idx]
}

// T translates one message key. Unknown keys fall back to English,
// then to the key itself so missing translations stay visible.
func (b *Bundle) T(lang, key string) string {
	if msg, ok := b.catalogs[lang][key]; ok {
		return msg
	}
	if msg, ok := b.catalogs["en"][key]; ok {
		return msg
	}
	return key
}

// FieldLabel renders a dotted draft path as display text, translating
// every segment that carries a fields.* catalog entry. Untranslated
// segments keep their raw name so missing labels stay visible; numeric
// segments (array positions) are shown one-based.
func (b *Bundle) FieldLabel(lang, dotted string) string {
	parts := strings.Split(dotted, ".")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			continue
		}
		if n, err := strconv.Atoi(p); err == nil {
			out = append(out, strconv.Itoa(n+1))
			continue
		}
		key := "fields." + p
		if v := b.T(lang, key); v != key {
			out = append(out, v)
			continue
		}
		out = append(out, p)
	}
	return strings.Join(out, " - ")
}

// Localize walks a validation error tree and replaces every message
// key leaf with its translation.
func (b *Bundle) Localize(errs map[string]any, lang string) map[string]any {
	out := make(map[string]any, len(errs))
	for k, v := range errs {
		switch t := v.(type) {
		case string:
			out[k] = b.T(lang, t)
		case map[string]any:
			out[k] = b.Localize(t, lang)
		default:
			out[k] = v
		}
	}
	return out
}
