package engine_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/majcheradam/BetterVCardTools/internal/config"
	"github.com/majcheradam/BetterVCardTools/internal/engine"
)

// TestHTTPFetcherDownload covers the happy path: the request negotiates a
// vCard media type, carries credentials, and the body arrives intact.
func TestHTTPFetcherDownload(t *testing.T) {
	const body = "BEGIN:VCARD\r\nVERSION:4.0\r\nFN:Remote Contact\r\nEND:VCARD\r\n"

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok, "basic auth header should be present")
		assert.Equal(t, "carol", user)
		assert.Equal(t, "hunter2", pass)

		assert.Equal(t, config.UserAgent, r.Header.Get(config.HeaderUserAgent))
		assert.Equal(t, config.AcceptVCard, r.Header.Get(config.HeaderAccept))

		w.Header().Set(config.HeaderContentType, config.MimeTextVCard)
		_, _ = io.WriteString(w, body)
	}))
	defer ts.Close()

	fetcher := engine.NewHTTPFetcher()
	rc, err := fetcher.Fetch(context.Background(), ts.URL, "carol", "hunter2")
	require.NoError(t, err)
	defer func() { _ = rc.Close() }()

	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, body, string(got))
}

// TestHTTPFetcherAnonymous: credentials are only sent when set.
func TestHTTPFetcherAnonymous(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _, ok := r.BasicAuth()
		assert.False(t, ok, "no auth header expected for anonymous fetch")
	}))
	defer ts.Close()

	fetcher := engine.NewHTTPFetcher()
	rc, err := fetcher.Fetch(context.Background(), ts.URL, "", "")
	require.NoError(t, err)
	_ = rc.Close()
}

// TestHTTPFetcherRejectsURL covers the validation that runs before any
// request goes out.
func TestHTTPFetcherRejectsURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr string
	}{
		{"control character", string([]byte{0x7f}), config.ErrInvalidURL},
		{"ftp scheme", "ftp://example.com/contacts.vcf", config.ErrProtocol},
		{"file scheme", "file:///etc/contacts.vcf", config.ErrProtocol},
	}

	fetcher := engine.NewHTTPFetcher()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rc, err := fetcher.Fetch(context.Background(), tt.url, "", "")
			require.Error(t, err)
			assert.Nil(t, rc)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

// TestHTTPFetcherStatusErrors verifies non-200 statuses surface as errors.
func TestHTTPFetcherStatusErrors(t *testing.T) {
	for _, code := range []int{http.StatusUnauthorized, http.StatusNotFound, http.StatusInternalServerError} {
		t.Run(strconv.Itoa(code), func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(code)
			}))
			defer ts.Close()

			fetcher := engine.NewHTTPFetcher()
			rc, err := fetcher.Fetch(context.Background(), ts.URL, "", "")
			require.Error(t, err)
			assert.Nil(t, rc)
			assert.Contains(t, err.Error(), strconv.Itoa(code))
		})
	}
}

// TestHTTPFetcherOversizedResponse: a declared Content-Length beyond the cap
// is rejected before any of the body is read.
func TestHTTPFetcherOversizedResponse(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(config.HeaderContentType, config.MimeTextVCard)
		w.Header().Set("Content-Length", strconv.FormatInt(config.MaxHTTPResponseSize+1, 10))
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	fetcher := engine.NewHTTPFetcher()
	rc, err := fetcher.Fetch(context.Background(), ts.URL, "", "")
	require.Error(t, err)
	assert.Nil(t, rc)
	assert.Contains(t, err.Error(), config.ErrResponseSize)
}

// TestHTTPFetcherDeadline ensures the client respects context deadlines.
func TestHTTPFetcherDeadline(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	fetcher := engine.NewHTTPFetcher()
	_, err := fetcher.Fetch(ctx, ts.URL, "", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
