package server

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/majcheradam/BetterVCardTools/internal/config"
	"github.com/majcheradam/BetterVCardTools/internal/engine"
	"github.com/majcheradam/BetterVCardTools/internal/vcard"
)

const sampleCard = "BEGIN:VCARD\r\n" +
	"VERSION:3.0\r\n" +
	"N:Doe;John;;;\r\n" +
	"FN:John Doe\r\n" +
	"TEL;TYPE=CELL,HOME: +1 555 0100\r\n" +
	"EMAIL;TYPE=WORK:john.doe@example.com\r\n" +
	"BDAY:1985-07-13\r\n" +
	"END:VCARD\r\n"

func testServer() *Server {
	return NewServer("0", engine.NewConverter()) // Port irrelevant for handler tests
}

// postUpload builds a multipart request carrying one file field.
func postUpload(t *testing.T, target, filename, content string) *http.Request {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile(config.FormFieldFile, filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set(config.HeaderContentType, mw.FormDataContentType())
	return req
}

// -----------------------------------------------------------------------------
// Unit Tests (White-Box Testing of Handler Logic)
// -----------------------------------------------------------------------------

func TestHandler_Health(t *testing.T) {
	srv := testServer()

	req := httptest.NewRequest(http.MethodGet, config.RouteHealth, nil)
	w := httptest.NewRecorder()
	srv.handleHealth(w, req)

	resp := w.Result()
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, config.MimeJSON, resp.Header.Get(config.HeaderContentType))

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, config.HealthBody, string(body))
}

func TestHandler_Health_MethodNotAllowed(t *testing.T) {
	srv := testServer()

	req := httptest.NewRequest(http.MethodPost, config.RouteHealth, nil)
	w := httptest.NewRecorder()
	srv.handleHealth(w, req)

	resp := w.Result()
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	assert.Equal(t, config.AllowedMethodsGet, resp.Header.Get(config.HeaderAllow))
}

// TestHandler_Upload_Converts verifies the complete conversion flow: headers,
// attachment naming and the strict 4.0 payload.
func TestHandler_Upload_Converts(t *testing.T) {
	srv := testServer()

	req := postUpload(t, config.RouteUpload, "mycontacts.vcf", sampleCard)
	w := httptest.NewRecorder()
	srv.handleUpload(w, req)

	resp := w.Result()
	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, config.MimeTextVCard, resp.Header.Get(config.HeaderContentType))
	assert.Equal(t, config.MimeNoSniff, resp.Header.Get(config.HeaderXContentType))
	assert.Equal(t, `attachment; filename="mycontacts-4.0.vcf"`,
		resp.Header.Get(config.HeaderContentDisposition))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := string(body)

	assert.Contains(t, out, "VERSION:4.0\r\n")
	assert.Contains(t, out, "N:Doe;John;;;\r\n")
	assert.Contains(t, out, "EMAIL;TYPE=work:john.doe@example.com\r\n")
	assert.Contains(t, out, "TEL;TYPE=cell,home;VALUE=uri:tel:+15550100\r\n")
	assert.Regexp(t, regexp.MustCompile(`UID:urn:uuid:[0-9a-f-]{36}\r\n`), out)
}

func TestHandler_Upload_MissingFile(t *testing.T) {
	srv := testServer()

	// A form without the expected file field.
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("other", "value"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, config.RouteUpload, &body)
	req.Header.Set(config.HeaderContentType, mw.FormDataContentType())
	w := httptest.NewRecorder()
	srv.handleUpload(w, req)

	resp := w.Result()
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandler_Upload_MethodNotAllowed(t *testing.T) {
	srv := testServer()

	req := httptest.NewRequest(http.MethodGet, config.RouteUpload, nil)
	w := httptest.NewRecorder()
	srv.handleUpload(w, req)

	resp := w.Result()
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	assert.Equal(t, config.AllowedMethodsPost, resp.Header.Get(config.HeaderAllow))
}

// TestHandler_Upload_MalformedInput: a corrupted card boundary is a hard
// failure and must surface as a server error, with no partial payload.
func TestHandler_Upload_MalformedInput(t *testing.T) {
	srv := testServer()

	req := postUpload(t, config.RouteUpload, "broken.vcf",
		"BEGIN:VCARD\r\nVERSION:3.0\r\nFN:Lost\r\n")
	w := httptest.NewRecorder()
	srv.handleUpload(w, req)

	resp := w.Result()
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), config.HTTPMsgParseFailed)
}

// TestHandler_Upload_NoCards: a readable upload with no vCard data inside is
// the caller's mistake, not ours.
func TestHandler_Upload_NoCards(t *testing.T) {
	srv := testServer()

	req := postUpload(t, config.RouteUpload, "empty.vcf", "just some text\n")
	w := httptest.NewRecorder()
	srv.handleUpload(w, req)

	resp := w.Result()
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), config.HTTPMsgNoContacts)
}

func TestDownloadName(t *testing.T) {
	tests := []struct {
		name     string
		uploaded string
		want     string
	}{
		{"plain", "contacts.vcf", "contacts-4.0.vcf"},
		{"vcard extension", "contacts.vcard", "contacts-4.0.vcf"},
		{"uppercase extension", "Phone Backup.VCF", "Phone Backup-4.0.vcf"},
		{"no extension", "export", "export-4.0.vcf"},
		{"foreign extension kept", "addr.book", "addr.book-4.0.vcf"},
		{"single strip only", "twice.vcf.vcf", "twice.vcf-4.0.vcf"},
		{"empty falls back", "", "contacts-4.0.vcf"},
		{"extension only falls back", ".vcf", "contacts-4.0.vcf"},
		{"windows path", `C:\Users\me\export.vcf`, "export-4.0.vcf"},
		{"unix path", "/tmp/export.vcf", "export-4.0.vcf"},
		{"quote stripped", `we"ird.vcf`, "weird-4.0.vcf"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, downloadName(tt.uploaded))
		})
	}
}

// TestHandler_Calendar: the same intake produces an iCalendar download built
// from the parsed birthdays.
func TestHandler_Calendar(t *testing.T) {
	srv := testServer()

	req := postUpload(t, config.RouteCalendar, "contacts.vcf", sampleCard)
	w := httptest.NewRecorder()
	srv.handleCalendar(w, req)

	resp := w.Result()
	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, config.MimeTextCalendar, resp.Header.Get(config.HeaderContentType))
	assert.Equal(t, `attachment; filename="birthdays.ics"`,
		resp.Header.Get(config.HeaderContentDisposition))

	body, _ := io.ReadAll(resp.Body)
	ics := string(body)
	assert.Contains(t, ics, "BEGIN:VCALENDAR")
	assert.Contains(t, ics, "SUMMARY:Birthday: John Doe")
}

// TestHandler_QR: one card in, a scannable PNG out.
func TestHandler_QR(t *testing.T) {
	srv := testServer()

	minimal := "BEGIN:VCARD\r\nVERSION:3.0\r\nFN:QR Person\r\nEND:VCARD\r\n"
	req := postUpload(t, config.RouteQR, "contacts.vcf", minimal)
	w := httptest.NewRecorder()
	srv.handleQR(w, req)

	resp := w.Result()
	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, config.MimeImagePNG, resp.Header.Get(config.HeaderContentType))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(body, []byte("\x89PNG")), "response must be a PNG image")

	decoded, err := vcard.DecodeQR(body)
	require.NoError(t, err)
	assert.Contains(t, decoded, "BEGIN:VCARD")
	assert.Contains(t, decoded, "FN:QR Person")
}

// TestHandler_QR_FirstContactOnly: multi-card uploads collapse to the first
// contact so the payload stays within QR capacity.
func TestHandler_QR_FirstContactOnly(t *testing.T) {
	srv := testServer()

	two := "BEGIN:VCARD\r\nVERSION:3.0\r\nFN:First\r\nEND:VCARD\r\n" +
		"BEGIN:VCARD\r\nVERSION:3.0\r\nFN:Second\r\nEND:VCARD\r\n"
	req := postUpload(t, config.RouteQR, "contacts.vcf", two)
	w := httptest.NewRecorder()
	srv.handleQR(w, req)

	resp := w.Result()
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	decoded, err := vcard.DecodeQR(body)
	require.NoError(t, err)
	assert.Contains(t, decoded, "FN:First")
	assert.NotContains(t, decoded, "FN:Second")
}

// TestHandler_Home verifies the localized upload page.
func TestHandler_Home(t *testing.T) {
	srv := testServer()

	tests := []struct {
		name           string
		acceptLanguage string
		wantFragment   string
	}{
		{"default english", "", "Convert vCard 2.1, 3.0 and 4.0"},
		{"french", "fr-FR,fr;q=0.9", "Convertissez vos carnets"},
		{"unsupported falls back", "de-DE,de;q=0.9", "Convert vCard 2.1, 3.0 and 4.0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, config.RouteRoot, nil)
			if tt.acceptLanguage != "" {
				req.Header.Set(config.HeaderAcceptLanguage, tt.acceptLanguage)
			}
			w := httptest.NewRecorder()
			srv.handleHome(w, req)

			resp := w.Result()
			defer func() { _ = resp.Body.Close() }()

			require.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Equal(t, config.MimeTextHTML, resp.Header.Get(config.HeaderContentType))

			body, _ := io.ReadAll(resp.Body)
			page := string(body)
			assert.Contains(t, page, tt.wantFragment)
			assert.Contains(t, page, `action="/upload"`)
			assert.Contains(t, page, `formaction="/calendar"`)
			assert.Contains(t, page, `formaction="/qr"`)
		})
	}
}

func TestHandler_Home_UnknownPath(t *testing.T) {
	srv := testServer()

	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	w := httptest.NewRecorder()
	srv.handleHome(w, req)

	assert.Equal(t, http.StatusNotFound, w.Result().StatusCode)
}

func TestRoutes_Static(t *testing.T) {
	srv := testServer()

	req := httptest.NewRequest(http.MethodGet, "/static/style.css", nil)
	w := httptest.NewRecorder()
	srv.routes().ServeHTTP(w, req)

	resp := w.Result()
	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "font-family")
}

func TestValidatePort(t *testing.T) {
	tests := []struct {
		name    string
		port    string
		wantErr string
	}{
		{"valid", "8000", ""},
		{"empty", "", config.ErrPortRequired},
		{"not a number", "eighty", config.ErrPortNumber},
		{"zero", "0", config.ErrPortRange},
		{"too high", "70000", config.ErrPortRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validatePort(tt.port)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

// -----------------------------------------------------------------------------
// Integration Tests (Real TCP Lifecycle)
// -----------------------------------------------------------------------------

// TestServer_Lifecycle spins up the actual TCP listener to verify network
// binding, a full upload round-trip and graceful shutdown.
func TestServer_Lifecycle(t *testing.T) {
	const port = "18099"

	srv := NewServer(port, engine.NewConverter())
	ctx, cancel := context.WithCancel(context.Background())
	errChan := make(chan error, 1)

	go func() {
		errChan <- srv.Start(ctx)
	}()

	base := "http://127.0.0.1:" + port

	// Wait for the listener to come up.
	require.Eventually(t, func() bool {
		resp, err := http.Get(base + config.RouteHealth)
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 50*time.Millisecond, "Server failed to bind/listen in time")

	// Full conversion over the wire.
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile(config.FormFieldFile, "net.vcf")
	require.NoError(t, err)
	_, err = fw.Write([]byte(sampleCard))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp, err := http.Post(base+config.RouteUpload, mw.FormDataContentType(), &body)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, config.MimeTextVCard, resp.Header.Get(config.HeaderContentType))

	payload, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(payload), "BEGIN:VCARD\r\nVERSION:4.0\r\n"))

	// Graceful shutdown.
	cancel()

	select {
	case err := <-errChan:
		assert.NoError(t, err, "Server should shutdown gracefully without error")
	case <-time.After(5 * time.Second):
		t.Fatal("Server shutdown timed out")
	}
}

func TestServer_Start_InvalidPort(t *testing.T) {
	srv := NewServer("", engine.NewConverter())

	err := srv.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), config.ErrPortRequired)
}
