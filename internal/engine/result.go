package engine

import "github.com/majcheradam/BetterVCardTools/internal/vcard"

// Result is the outcome of one conversion run, shaped for the HTTP and CLI
// surfaces. It decouples callers from the parsing internals.
type Result struct {
	// VCard40 is the strict vCard 4.0 serialization, CRLF terminated.
	VCard40 string

	// Contacts holds the canonical records in input order.
	Contacts []vcard.Contact

	// Cards counts the vCards found in the input, including ones that
	// normalized to empty contacts.
	Cards int

	// Emails and Phones count entries across all contacts.
	Emails int
	Phones int

	// Birthdays counts contacts that carried a usable birthday.
	Birthdays int
}
