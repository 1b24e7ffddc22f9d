package engine

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/majcheradam/BetterVCardTools/internal/config"
)

// VCardFetcher defines the contract for retrieving vCard data over the
// network. It exists so tests can substitute the transport.
type VCardFetcher interface {
	Fetch(ctx context.Context, url, user, pass string) (io.ReadCloser, error)
}

// HTTPFetcher implements VCardFetcher using the standard net/http library.
type HTTPFetcher struct {
	Client *http.Client
}

// NewHTTPFetcher creates a new HTTPFetcher with the configured timeout.
func NewHTTPFetcher() *HTTPFetcher {
	return &HTTPFetcher{
		Client: &http.Client{
			Timeout: config.HTTPTimeout,
		},
	}
}

// Fetch downloads vCard data from a remote URL. Only http and https are
// accepted, the request negotiates a vCard media type, oversized responses
// are rejected, and query strings stay out of the logs since address book
// URLs may carry tokens.
func (f *HTTPFetcher) Fetch(ctx context.Context, targetURL, user, pass string) (io.ReadCloser, error) {
	u, err := url.Parse(targetURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", config.ErrInvalidURL, err)
	}
	if u.Scheme != config.SchemeHTTP && u.Scheme != config.SchemeHTTPS {
		return nil, fmt.Errorf("%s: %s", config.ErrProtocol, u.Scheme)
	}

	log := slog.With(
		slog.String(config.LogKeyComponent, config.CompFetcher),
		slog.String(config.LogKeyURL, u.Scheme+"://"+u.Host+u.Path),
	)
	log.Debug(config.MsgFetchStart)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set(config.HeaderUserAgent, config.UserAgent)
	req.Header.Set(config.HeaderAccept, config.AcceptVCard)
	if user != "" || pass != "" {
		req.SetBasicAuth(user, pass)
	}

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("network error during fetch: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		log.Warn(config.MsgFetchBadStatus,
			slog.Int(config.LogKeyStatus, resp.StatusCode),
		)
		return nil, fmt.Errorf("server returned unexpected status: %d %s", resp.StatusCode, resp.Status)
	}

	// Reject declared-oversize bodies up front instead of reading 256MB
	// of them first.
	if resp.ContentLength > config.MaxHTTPResponseSize {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("%s: %d bytes", config.ErrResponseSize, resp.ContentLength)
	}

	log.Info(config.MsgFetchBody,
		slog.Int64(config.LogKeySizeBytes, resp.ContentLength),
		slog.String(config.LogKeyMIME, resp.Header.Get(config.HeaderContentType)),
	)

	// Chunked responses never declare a length, so the read itself is
	// capped too.
	return &cappedBody{
		Reader: io.LimitReader(resp.Body, config.MaxHTTPResponseSize),
		body:   resp.Body,
	}, nil
}

// cappedBody reads through a size-limited view of a response while keeping
// the original body so the connection can be closed.
type cappedBody struct {
	io.Reader
	body io.ReadCloser
}

func (c *cappedBody) Close() error {
	return c.body.Close()
}
