package vcard

import (
	"strings"

	"github.com/google/uuid"

	"github.com/majcheradam/BetterVCardTools/internal/config"
)

const crlf = "\r\n"

// UIDSource provides the UID emitted for each serialized contact. It allows
// supplying deterministic identifiers in tests.
type UIDSource interface {
	NewUID() string
}

// RandomUIDSource generates URN-form UUIDs (urn:uuid:...). The underlying
// generator is crypto-rand backed and safe for concurrent use.
type RandomUIDSource struct{}

func (RandomUIDSource) NewUID() string {
	return uuid.New().URN()
}

// Serializer writes contacts as strict vCard 4.0 text. UIDs must be non-nil;
// NewSerializer wires the random default.
type Serializer struct {
	UIDs UIDSource
}

func NewSerializer() *Serializer {
	return &Serializer{UIDs: RandomUIDSource{}}
}

// Serialize emits every contact, in input order, as one self-delimited
// vCard 4.0 component. Property order inside a component is fixed; every
// line ends with CRLF, the final one included. Each contact receives a
// fresh UID on every call, so repeated serializations of the same input
// differ in their UID lines only.
func (s *Serializer) Serialize(contacts []Contact) string {
	var b strings.Builder
	for i := range contacts {
		s.writeContact(&b, &contacts[i])
	}
	return b.String()
}

func (s *Serializer) writeContact(b *strings.Builder, c *Contact) {
	writeLine(b, config.VCardBegin+":"+config.VCardComponent)
	writeLine(b, config.PropVersion+":"+config.VCardVersion40)

	name := c.DisplayName
	if name == "" {
		name = config.FallbackName
	}
	// A nil Name is synthesized from the display name. The Unnamed fallback
	// stays out of N: a contact with no name information at all emits five
	// empty fields.
	n := c.Name
	if n == nil {
		n = &StructuredName{Given: c.DisplayName}
	}
	nFields := []string{
		EscapeText(n.Family),
		EscapeText(n.Given),
		EscapeText(n.Additional),
		EscapeText(n.Prefix),
		EscapeText(n.Suffix),
	}
	writeLine(b, config.PropN+":"+strings.Join(nFields, ";"))
	writeLine(b, config.PropFN+":"+EscapeText(name))

	for _, e := range c.Emails {
		writeLine(b, config.PropEmail+typeParam(config.TypeKindEmail, e.Types)+":"+EscapeText(e.Value))
	}
	for _, p := range c.Phones {
		tel := NormalizeTelURI(p.Value)
		writeLine(b, config.PropTel+typeParam(config.TypeKindTel, p.Types)+
			";"+config.ParamValue+"="+config.ParamValueURI+":"+EscapeText(tel))
	}

	if len(c.Org) > 0 {
		comps := make([]string, len(c.Org))
		for i, comp := range c.Org {
			comps[i] = EscapeText(comp)
		}
		writeLine(b, config.PropOrg+":"+strings.Join(comps, ";"))
	}
	if c.Birthday != "" {
		writeLine(b, config.PropBDay+":"+EscapeText(c.Birthday))
	}
	for _, note := range c.Notes {
		writeLine(b, config.PropNote+":"+EscapeText(note))
	}

	writeLine(b, config.PropProdID+":"+config.VCardProdID)
	writeLine(b, config.PropUID+":"+s.UIDs.NewUID())
	writeLine(b, config.VCardEnd+":"+config.VCardComponent)
}

func writeLine(b *strings.Builder, line string) {
	b.WriteString(line)
	b.WriteString(crlf)
}

// typeParam renders the ";TYPE=a,b" parameter, or "" for an empty list.
// The list is re-normalized so caller-built contacts serialize the same as
// parsed ones.
func typeParam(kind string, types []string) string {
	normalized := NormalizeTypes(kind, types)
	if len(normalized) == 0 {
		return ""
	}
	return ";" + config.ParamType + "=" + strings.Join(normalized, ",")
}
