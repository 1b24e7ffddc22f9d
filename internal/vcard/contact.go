// Package vcard implements the conversion core: a hand-written vCard
// 2.1/3.0/4.0 property reader, a normalizer producing canonical contacts,
// and a strict vCard 4.0 serializer.
//
// The package is pure: it performs no I/O, keeps no global state and never
// logs. Callers that need streams, logging or context handling live in
// internal/engine.
package vcard

// Contact is the canonical in-memory contact produced by normalization.
// A Contact is immutable once built; serialization never mutates it.
type Contact struct {
	// DisplayName is the formatted name (FN). Empty means absent.
	DisplayName string

	// Name is the structured name (N). Nil means absent. Normalization
	// guarantees that Name is non-nil whenever DisplayName is non-empty.
	Name *StructuredName

	// Emails and Phones preserve input order. Their type lists are
	// lowercase, deduplicated and sorted.
	Emails []EmailEntry
	Phones []PhoneEntry

	// Org holds the structured organization components. Nil means absent;
	// an ORG property whose components are all empty counts as absent.
	Org []string

	// Birthday is a best-effort ISO date ("2006-01-02", or "--01-02" when
	// the year is unknown). Empty means absent.
	Birthday string

	// Notes holds every NOTE value in input order. Nil means none.
	Notes []string
}

// StructuredName mirrors the five N components. All fields are always
// present; the empty string stands for "no value".
type StructuredName struct {
	Family     string
	Given      string
	Additional string
	Prefix     string
	Suffix     string
}

// EmailEntry is one EMAIL occurrence with its canonicalized type labels.
type EmailEntry struct {
	Value string
	Types []string
}

// PhoneEntry is one TEL occurrence with its canonicalized type labels.
// Value is the raw input number; URI normalization happens at serialization.
type PhoneEntry struct {
	Value string
	Types []string
}
