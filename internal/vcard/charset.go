package vcard

import (
	"io"
	"mime/quotedprintable"
	"strings"

	"golang.org/x/text/encoding/ianaindex"

	"github.com/majcheradam/BetterVCardTools/internal/config"
)

// decodeQuotedPrintable decodes a vCard 2.1 ENCODING=QUOTED-PRINTABLE value
// and converts the resulting bytes from the declared charset to UTF-8.
// Decoding is best-effort: malformed escapes keep whatever decoded cleanly,
// and an empty decode falls back to the raw value.
func decodeQuotedPrintable(value, charset string) string {
	decoded, err := io.ReadAll(quotedprintable.NewReader(strings.NewReader(value)))
	if err != nil && len(decoded) == 0 {
		return scrubUTF8(value)
	}
	return decodeCharset(decoded, charset)
}

// decodeCharset converts raw bytes in the named IANA charset to a valid
// UTF-8 string. Unknown charsets and conversion failures degrade to
// scrubbing invalid bytes, never to an error.
func decodeCharset(data []byte, charset string) string {
	if charset == "" || strings.EqualFold(charset, config.DefaultCharset) {
		return scrubUTF8(string(data))
	}
	enc, err := ianaindex.IANA.Encoding(charset)
	if err != nil || enc == nil {
		return scrubUTF8(string(data))
	}
	converted, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return scrubUTF8(string(data))
	}
	return scrubUTF8(string(converted))
}

func scrubUTF8(s string) string {
	return strings.ToValidUTF8(s, "")
}
