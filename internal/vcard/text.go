package vcard

import (
	"strings"
	"unicode"

	"github.com/majcheradam/BetterVCardTools/internal/config"
)

// escaper rewrites a free-text value for vCard 4.0 output: backslash,
// semicolon, comma and newline gain a backslash escape, bare carriage
// returns are dropped. Single pass: every occurrence is rewritten exactly
// once, never re-escaped.
var escaper = strings.NewReplacer(
	`\`, `\\`,
	";", `\;`,
	",", `\,`,
	"\n", `\n`,
	"\r", "",
)

// unescaper reverses the text escapes produced by escaper. \N is accepted
// as an alias for \n per RFC 6350.
var unescaper = strings.NewReplacer(
	`\\`, `\`,
	`\n`, "\n",
	`\N`, "\n",
	`\;`, ";",
	`\,`, ",",
)

// EscapeText prepares a value for emission inside a vCard 4.0 property.
func EscapeText(value string) string {
	return escaper.Replace(value)
}

func unescapeText(value string) string {
	return unescaper.Replace(value)
}

// splitStructured splits a compound value (N, ORG) on unescaped semicolons
// and unescapes each component.
func splitStructured(raw string) []string {
	fields := make([]string, 0, 5)
	var b strings.Builder
	escaped := false
	for _, r := range raw {
		switch {
		case escaped:
			b.WriteRune(r)
			escaped = false
		case r == '\\':
			b.WriteRune(r)
			escaped = true
		case r == ';':
			fields = append(fields, unescapeText(b.String()))
			b.Reset()
		default:
			b.WriteRune(r)
		}
	}
	return append(fields, unescapeText(b.String()))
}

// NormalizeTelURI converts a raw telephone value into a tel: URI. Whitespace,
// parentheses, dashes and dots are stripped; any other characters (leading +,
// extension digits) pass through. Values already carrying the tel: prefix are
// not prefixed twice.
func NormalizeTelURI(value string) string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || strings.ContainsRune("()-.", r) {
			return -1
		}
		return r
	}, value)
	if !strings.HasPrefix(cleaned, config.TelURIPrefix) {
		cleaned = config.TelURIPrefix + cleaned
	}
	return cleaned
}
