package engine

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/majcheradam/BetterVCardTools/internal/config"
	"github.com/majcheradam/BetterVCardTools/internal/vcard"
)

// utf8BOM is stripped from the head of the input before tokenizing.
var utf8BOM = []byte{0xef, 0xbb, 0xbf}

// Converter is the core service turning raw vCard streams into strict 4.0
// output.
type Converter struct {
	Clock Clock           // Interface for time mocking.
	UIDs  vcard.UIDSource // Identifier generation for serialized cards.

	// Fetcher retrieves remote sources. Only needed for URL mode.
	Fetcher VCardFetcher
}

// NewConverter wires the production defaults.
func NewConverter() *Converter {
	return &Converter{
		Clock:   RealClock{},
		UIDs:    vcard.RandomUIDSource{},
		Fetcher: NewHTTPFetcher(),
	}
}

// ConvertSource executes the fetching, parsing and serialization pipeline
// against a configured source.
func (c *Converter) ConvertSource(ctx context.Context, src SourceConfig) (*Result, error) {
	log := slog.With(
		config.LogKeyComponent, config.CompEngine,
		config.LogKeyMode, src.Mode,
	)
	log.InfoContext(ctx, config.MsgConvertStart)

	reader, err := c.acquireStream(ctx, src)
	if err != nil {
		// A context error during acquisition wins over the transport error.
		if cerr := ctx.Err(); cerr != nil {
			return nil, fmt.Errorf("%s: %w", config.ErrCtxCancelled, cerr)
		}
		return nil, err
	}
	// Best effort close. Errors in Close() for read-only sources are rarely
	// actionable here.
	defer func() { _ = reader.Close() }()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", config.ErrCtxCancelled, err)
	}

	return c.Convert(ctx, reader)
}

// Convert runs the pipeline over one input stream: bounded read, best-effort
// text decode, tokenize, normalize, serialize. Malformed lines inside cards
// degrade silently; corrupted card boundaries fail the whole input with no
// partial output.
func (c *Converter) Convert(ctx context.Context, r io.Reader) (*Result, error) {
	start := time.Now()
	log := slog.With(config.LogKeyComponent, config.CompEngine)

	data, err := io.ReadAll(io.LimitReader(r, config.MaxHTTPResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", config.ErrVCardRead, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", config.ErrCtxCancelled, err)
	}

	comps, err := vcard.ReadComponents(sanitize(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", config.ErrVCardParse, err)
	}

	res := &Result{Cards: len(comps)}
	for _, comp := range comps {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%s: %w", config.ErrCtxCancelled, err)
		}
		contact := vcard.Normalize(comp)
		res.Contacts = append(res.Contacts, contact)
		res.Emails += len(contact.Emails)
		res.Phones += len(contact.Phones)
		if contact.Birthday != "" {
			res.Birthdays++
		}
	}

	res.VCard40 = (&vcard.Serializer{UIDs: c.uidSource()}).Serialize(res.Contacts)

	log.Info(config.MsgConvertDone,
		slog.Group(config.LogKeyStats,
			slog.Int(config.LogKeyCards, res.Cards),
			slog.Int(config.LogKeyEmails, res.Emails),
			slog.Int(config.LogKeyPhones, res.Phones),
			slog.Int(config.LogKeyBirthdays, res.Birthdays),
		),
		config.LogKeyDuration, time.Since(start).Milliseconds(),
	)
	return res, nil
}

// SerializeContacts renders an already normalized contact list with the
// converter's UID source. Callers use it to emit a subset of a Result, such
// as a single contact for a QR code.
func (c *Converter) SerializeContacts(contacts []vcard.Contact) string {
	return (&vcard.Serializer{UIDs: c.uidSource()}).Serialize(contacts)
}

// uidSource returns the configured source, falling back to random UUIDs so a
// zero-value Converter still produces valid cards.
func (c *Converter) uidSource() vcard.UIDSource {
	if c.UIDs == nil {
		return vcard.RandomUIDSource{}
	}
	return c.UIDs
}

// sanitize decodes the raw bytes best effort: the UTF-8 BOM is dropped and
// invalid byte sequences are removed rather than failing the stream.
func sanitize(data []byte) string {
	data = bytes.TrimPrefix(data, utf8BOM)
	return strings.ToValidUTF8(string(data), "")
}
