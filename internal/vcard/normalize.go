package vcard

import (
	"sort"
	"strings"
	"time"

	"github.com/majcheradam/BetterVCardTools/internal/config"
)

var (
	namePrefixes = map[string]bool{"mr": true, "mrs": true, "ms": true, "dr": true, "prof": true}
	nameSuffixes = map[string]bool{"jr": true, "sr": true, "ii": true, "iii": true, "iv": true, "phd": true, "md": true}

	knownTelTypes = map[string]bool{
		"home": true, "work": true, "cell": true, "voice": true, "fax": true,
		"pager": true, "text": true, "textphone": true, "main": true, "iphone": true,
	}
	knownEmailTypes = map[string]bool{
		"home": true, "work": true, "internet": true, "pref": true, "x-mobileme": true,
	}
)

// Normalize reduces one raw component to a canonical Contact. It never fails:
// any field that cannot be made sense of degrades to absent and the rest of
// the contact survives.
func Normalize(comp Component) Contact {
	var c Contact

	if fn, ok := comp.First(config.PropFN); ok {
		c.DisplayName = fn.Text()
	}
	if n, ok := comp.First(config.PropN); ok {
		c.Name = structuredName(n.Fields())
	} else if c.DisplayName != "" {
		c.Name = SplitDisplayName(c.DisplayName)
	}

	for _, p := range comp.All(config.PropEmail) {
		c.Emails = append(c.Emails, EmailEntry{
			Value: p.Text(),
			Types: ExtractTypes(config.TypeKindEmail, p.Params, nil),
		})
	}
	for _, p := range comp.All(config.PropTel) {
		c.Phones = append(c.Phones, PhoneEntry{
			Value: p.Text(),
			Types: ExtractTypes(config.TypeKindTel, p.Params, nil),
		})
	}

	if org, ok := comp.First(config.PropOrg); ok {
		if fields := org.Fields(); anyNonEmpty(fields) {
			c.Org = fields
		}
	}
	if bday, ok := comp.First(config.PropBDay); ok {
		c.Birthday = parseBirthday(bday.Text())
	}
	for _, p := range comp.All(config.PropNote) {
		c.Notes = append(c.Notes, p.Text())
	}
	return c
}

// anyNonEmpty reports whether at least one component carries text. An ORG
// property with only empty components counts as absent.
func anyNonEmpty(fields []string) bool {
	for _, f := range fields {
		if f != "" {
			return true
		}
	}
	return false
}

// structuredName maps the N components onto a StructuredName, padding
// missing trailing fields with "" and ignoring anything past the fifth.
func structuredName(fields []string) *StructuredName {
	var f [5]string
	copy(f[:], fields)
	return &StructuredName{
		Family:     f[0],
		Given:      f[1],
		Additional: f[2],
		Prefix:     f[3],
		Suffix:     f[4],
	}
}

// SplitDisplayName derives a structured name from a display name. The
// heuristic is deliberately simple and its exact behavior is pinned by
// tests: first token matching the prefix vocabulary becomes the prefix,
// last remaining token matching the suffix vocabulary becomes the suffix,
// the first core token is the given name and the rest the family name.
// When prefix and suffix consume every token, the original first token
// doubles as the given name.
func SplitDisplayName(display string) *StructuredName {
	tokens := strings.Fields(display)
	if len(tokens) == 0 {
		return &StructuredName{}
	}

	var prefix, suffix string
	core := tokens
	if namePrefixes[foldNameToken(core[0])] {
		prefix = core[0]
		core = core[1:]
	}
	if len(core) > 0 && nameSuffixes[foldNameToken(core[len(core)-1])] {
		suffix = core[len(core)-1]
		core = core[:len(core)-1]
	}

	name := &StructuredName{Prefix: prefix, Suffix: suffix}
	switch len(core) {
	case 0:
		name.Given = tokens[0]
	case 1:
		name.Given = core[0]
	default:
		name.Given = core[0]
		name.Family = strings.Join(core[1:], " ")
	}
	return name
}

// foldNameToken prepares a token for vocabulary matching: trailing dots
// stripped ("Jr." matches "jr"), case folded.
func foldNameToken(tok string) string {
	return strings.ToLower(strings.TrimRight(tok, "."))
}

// ExtractTypes collects the type labels of an EMAIL or TEL property: the
// TYPE parameter values, every other parameter key that matches the kind's
// vocabulary (vCard 2.1 bare flags), and any caller-supplied flat extras.
// The result is already canonicalized via NormalizeTypes.
func ExtractTypes(kind string, params Params, extras []string) []string {
	var types []string
	for _, v := range params.Values(config.ParamType) {
		if t := strings.ToLower(strings.TrimSpace(v)); t != "" {
			types = append(types, t)
		}
	}

	vocab := knownEmailTypes
	if kind == config.TypeKindTel {
		vocab = knownTelTypes
	}
	for key := range params {
		if key == config.ParamType {
			continue
		}
		if k := strings.ToLower(key); vocab[k] {
			types = append(types, k)
		}
	}

	for _, v := range extras {
		if t := strings.ToLower(strings.TrimSpace(v)); t != "" {
			types = append(types, t)
		}
	}
	return NormalizeTypes(kind, types)
}

// NormalizeTypes canonicalizes a type list: lowercase, dedup, sorted.
// For email the implicit "internet" label is dropped; for tel "voice" is
// dropped when it is not the only label.
func NormalizeTypes(kind string, types []string) []string {
	set := make(map[string]bool, len(types))
	for _, t := range types {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			set[t] = true
		}
	}
	if kind == config.TypeKindEmail {
		delete(set, config.TypeInternet)
	}
	if kind == config.TypeKindTel && len(set) > 1 {
		delete(set, config.TypeVoice)
	}
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// parseBirthday reduces a BDAY value to a date-only string. Full dates in
// the accepted layouts collapse to YYYY-MM-DD, dropping any time component;
// year-free vCard 4.0 forms keep the --MM-DD shape. Anything else degrades
// to absent.
func parseBirthday(raw string) string {
	value := strings.TrimSpace(raw)
	if value == "" {
		return ""
	}
	fullLayouts := []string{
		config.DateFormatFullDash,
		config.DateFormatFullBasic,
		config.DateFormatRFC3339,
		config.DateFormatFullT,
	}
	for _, layout := range fullLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.Format(config.DateFormatFullDash)
		}
	}
	for _, layout := range []string{config.DateFormatNoYearD, config.DateFormatNoYearB} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.Format(config.DateFormatNoYearD)
		}
	}
	return ""
}
