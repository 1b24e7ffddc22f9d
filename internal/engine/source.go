package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	govcard "github.com/emersion/go-vcard"
	"github.com/emersion/go-webdav/carddav"
	"github.com/zalando/go-keyring"

	"github.com/majcheradam/BetterVCardTools/internal/config"
)

// SourceConfig describes where vCard input comes from.
type SourceConfig struct {
	Mode     string // config.SourceModeFile, SourceModeURL or SourceModeDAV
	Path     string // Path to the .vcf file (file mode)
	URL      string // HTTP(S) endpoint or CardDAV server URL
	Username string // HTTP Basic Auth username
	Password string // HTTP Basic Auth password; keyring fallback when empty
}

// acquireStream opens the appropriate data source based on configuration.
func (c *Converter) acquireStream(ctx context.Context, src SourceConfig) (io.ReadCloser, error) {
	switch src.Mode {
	case config.SourceModeFile:
		if src.Path == "" {
			return nil, errors.New(config.ErrFilePathEmpty)
		}
		return os.Open(src.Path)
	case config.SourceModeURL:
		if src.URL == "" {
			return nil, errors.New(config.ErrURLEmpty)
		}
		if c.Fetcher == nil {
			return nil, errors.New(config.ErrFetcherMissing)
		}
		user, pass := resolveCredentials(src)
		return c.Fetcher.Fetch(ctx, src.URL, user, pass)
	case config.SourceModeDAV:
		if src.URL == "" {
			return nil, errors.New(config.ErrURLEmpty)
		}
		return openDAV(ctx, src)
	default:
		return nil, fmt.Errorf("%s: %q", config.ErrModeUnsupport, src.Mode)
	}
}

// resolveCredentials falls back to the system keyring when a username is
// configured without a password.
func resolveCredentials(src SourceConfig) (user, pass string) {
	if src.Password != "" || src.Username == "" {
		return src.Username, src.Password
	}

	log := slog.With(
		config.LogKeyComponent, config.CompSource,
		config.LogKeyUser, src.Username,
	)
	log.Debug(config.MsgKeyringFall)

	p, err := keyring.Get(config.KeyringService, src.Username)
	if err != nil {
		log.Debug(config.MsgKeyringMiss, config.LogKeyError, err)
		return src.Username, ""
	}
	return src.Username, p
}

// basicAuthTransport adds Basic Auth and the standard User-Agent to every
// DAV request.
type basicAuthTransport struct {
	Username  string
	Password  string
	Transport http.RoundTripper
}

func (t *basicAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.Username != "" || t.Password != "" {
		req.SetBasicAuth(t.Username, t.Password)
	}
	req.Header.Set(config.HeaderUserAgent, config.UserAgent)
	return t.Transport.RoundTrip(req)
}

// openDAV discovers the address books behind the endpoint and concatenates
// every card they contain into one stream for the regular pipeline.
func openDAV(ctx context.Context, src SourceConfig) (io.ReadCloser, error) {
	user, pass := resolveCredentials(src)
	httpClient := &http.Client{
		Timeout: config.HTTPTimeout,
		Transport: &basicAuthTransport{
			Username:  user,
			Password:  pass,
			Transport: http.DefaultTransport,
		},
	}

	client, err := carddav.NewClient(httpClient, src.URL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", config.ErrDAVList, err)
	}

	log := slog.With(
		config.LogKeyComponent, config.CompSource,
		config.LogKeyURL, src.URL,
	)
	log.Debug(config.MsgDAVListing)

	principal, err := client.FindCurrentUserPrincipal(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", config.ErrDAVList, err)
	}
	homeSet, err := client.FindAddressBookHomeSet(ctx, principal)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", config.ErrDAVList, err)
	}
	books, err := client.FindAddressBooks(ctx, homeSet)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", config.ErrDAVList, err)
	}

	query := &carddav.AddressBookQuery{
		DataRequest: carddav.AddressDataRequest{AllProp: true},
	}

	var buf bytes.Buffer
	enc := govcard.NewEncoder(&buf)
	total := 0
	for _, book := range books {
		objects, err := client.QueryAddressBook(ctx, book.Path, query)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", config.ErrDAVOpen, err)
		}
		for _, obj := range objects {
			if obj.Card == nil {
				log.Debug(config.MsgDAVSkipped, config.LogKeyPath, obj.Path)
				continue
			}
			if err := enc.Encode(obj.Card); err != nil {
				return nil, fmt.Errorf("%s: %w", config.ErrDAVOpen, err)
			}
			total++
		}
	}

	log.Info(config.MsgDAVFetched, config.LogKeyCount, total)
	return io.NopCloser(&buf), nil
}
