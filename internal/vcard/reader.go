package vcard

import (
	"errors"
	"strings"

	"github.com/majcheradam/BetterVCardTools/internal/config"
)

// Hard failures of the component state machine. Anything less severe than a
// broken BEGIN/END pairing is skipped, never fatal.
var (
	ErrUnmatchedEnd = errors.New("vcard: END:VCARD without matching BEGIN")
	ErrNestedBegin  = errors.New("vcard: BEGIN:VCARD inside an open component")
	ErrUnterminated = errors.New("vcard: unterminated component at end of input")
)

// knownProperties is the set of property names the reader retains. Everything
// else is dropped during reading, including VERSION: unknown versions are
// parsed best-effort like any other card.
var knownProperties = map[string]bool{
	config.PropFN:    true,
	config.PropN:     true,
	config.PropEmail: true,
	config.PropTel:   true,
	config.PropOrg:   true,
	config.PropBDay:  true,
	config.PropNote:  true,
}

// Params holds the parameters of a single property. Keys are canonicalized
// to upper case; a vCard 2.1 bare parameter (TEL;HOME:...) is present with
// no values.
type Params map[string][]string

func (p Params) add(key, value string) {
	p[key] = append(p[key], value)
}

func (p Params) addBare(key string) {
	if _, ok := p[key]; !ok {
		p[key] = nil
	}
}

// Get returns the first value of the named parameter, or "".
func (p Params) Get(key string) string {
	if vs := p[strings.ToUpper(key)]; len(vs) > 0 {
		return vs[0]
	}
	return ""
}

// Values returns every value of the named parameter in declaration order.
func (p Params) Values(key string) []string {
	return p[strings.ToUpper(key)]
}

// Has reports whether the parameter appeared at all, valueless forms included.
func (p Params) Has(key string) bool {
	_, ok := p[strings.ToUpper(key)]
	return ok
}

// Property is one decoded content line. Value carries the charset- and
// transfer-decoded text with vCard escapes still in place; Text and Fields
// produce the unescaped forms.
type Property struct {
	Name   string
	Params Params
	Value  string
}

// Text returns the unescaped property value, structure untouched.
func (p Property) Text() string {
	return unescapeText(p.Value)
}

// Fields returns the structured components of a compound value, split on
// unescaped semicolons, each component unescaped.
func (p Property) Fields() []string {
	return splitStructured(p.Value)
}

// Component is one BEGIN:VCARD..END:VCARD block, reduced to its known
// properties in occurrence order.
type Component struct {
	props map[string][]Property
}

func (c *Component) add(p Property) {
	if !knownProperties[p.Name] {
		return
	}
	if c.props == nil {
		c.props = make(map[string][]Property)
	}
	c.props[p.Name] = append(c.props[p.Name], p)
}

// All returns every occurrence of the named property in input order.
func (c Component) All(name string) []Property {
	return c.props[strings.ToUpper(name)]
}

// First returns the first occurrence of the named property.
func (c Component) First(name string) (Property, bool) {
	props := c.All(name)
	if len(props) == 0 {
		return Property{}, false
	}
	return props[0], true
}

// Has reports whether the named property occurred at least once.
func (c Component) Has(name string) bool {
	return len(c.All(name)) > 0
}

// ReadComponents parses raw vCard text into its components. The input may
// hold any number of concatenated cards in the 2.1, 3.0 or 4.0 syntax.
//
// Line unfolding, quoted-printable soft breaks and CHARSET conversion are
// resolved here, so downstream consumers only ever see logical UTF-8
// values. Malformed property lines are skipped and content outside
// components is ignored; only a broken BEGIN/END pairing aborts the read.
func ReadComponents(text string) ([]Component, error) {
	r := newLineReader(strings.TrimPrefix(text, "\uFEFF"))

	var comps []Component
	var cur *Component
	for {
		line, ok := r.next()
		if !ok {
			break
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		name, params, value, ok := splitProperty(line)
		if !ok {
			continue
		}
		isVCard := strings.EqualFold(strings.TrimSpace(value), config.VCardComponent)
		switch {
		case name == config.VCardBegin && isVCard:
			if cur != nil {
				return nil, ErrNestedBegin
			}
			cur = &Component{}
		case name == config.VCardEnd && isVCard:
			if cur == nil {
				return nil, ErrUnmatchedEnd
			}
			comps = append(comps, *cur)
			cur = nil
		case cur == nil:
			// Content between cards carries no meaning.
		default:
			cur.add(decodeProperty(r, name, params, value))
		}
	}
	if cur != nil {
		return nil, ErrUnterminated
	}
	return comps, nil
}

// decodeProperty finishes a content line: quoted-printable values absorb
// their soft-break continuations from the reader, then transfer and charset
// decoding collapse the value into plain UTF-8. CHARSET only matters on the
// quoted-printable path; everywhere else the input already is decoded text
// and the parameter is ignored.
func decodeProperty(r *lineReader, name string, params Params, value string) Property {
	if strings.EqualFold(params.Get(config.ParamEncoding), config.EncodingQP) {
		for strings.HasSuffix(value, "=") {
			cont, ok := r.next()
			if !ok {
				break
			}
			value = strings.TrimSuffix(value, "=") + "=\r\n" + cont
		}
		value = decodeQuotedPrintable(value, params.Get(config.ParamCharset))
	} else {
		value = scrubUTF8(value)
	}
	return Property{Name: name, Params: params, Value: value}
}

// lineReader walks physical lines and joins folded continuations, yielding
// logical lines. CRLF and bare LF terminators are both accepted.
type lineReader struct {
	lines []string
	pos   int
}

func newLineReader(text string) *lineReader {
	return &lineReader{lines: strings.Split(text, "\n")}
}

func (r *lineReader) next() (string, bool) {
	if r.pos >= len(r.lines) {
		return "", false
	}
	line := strings.TrimSuffix(r.lines[r.pos], "\r")
	r.pos++
	for r.pos < len(r.lines) {
		cont := strings.TrimSuffix(r.lines[r.pos], "\r")
		if !strings.HasPrefix(cont, " ") && !strings.HasPrefix(cont, "\t") {
			break
		}
		line += cont[1:]
		r.pos++
	}
	return line, true
}

// splitProperty carves one logical line into name, parameters and raw value.
// A missing value colon or empty name marks the line malformed. Group
// prefixes (item1.EMAIL) are dropped; double quotes shield separators inside
// parameter values.
func splitProperty(line string) (string, Params, string, bool) {
	sep := -1
	inQuotes := false
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case '"':
			inQuotes = !inQuotes
		case ':':
			if !inQuotes {
				sep = i
			}
		}
		if sep >= 0 {
			break
		}
	}
	if sep < 0 {
		return "", nil, "", false
	}

	head, value := line[:sep], line[sep+1:]
	segs := splitOutsideQuotes(head, ';')

	name := strings.TrimSpace(segs[0])
	if dot := strings.IndexByte(name, '.'); dot >= 0 {
		name = name[dot+1:]
	}
	if name == "" {
		return "", nil, "", false
	}
	name = strings.ToUpper(name)

	params := make(Params)
	for _, seg := range segs[1:] {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			continue
		}
		eq := strings.IndexByte(seg, '=')
		if eq < 0 {
			params.addBare(strings.ToUpper(seg))
			continue
		}
		key := strings.ToUpper(strings.TrimSpace(seg[:eq]))
		if key == "" {
			continue
		}
		for _, v := range splitOutsideQuotes(seg[eq+1:], ',') {
			params.add(key, strings.Trim(strings.TrimSpace(v), `"`))
		}
	}
	return name, params, value, true
}

func splitOutsideQuotes(s string, sep byte) []string {
	var parts []string
	start := 0
	inQuotes := false
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"':
			inQuotes = !inQuotes
		case sep:
			if !inQuotes {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, s[start:])
}
