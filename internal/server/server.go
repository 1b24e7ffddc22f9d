// Package server exposes the conversion engine over HTTP: an upload page,
// the conversion, calendar and QR endpoints, and a liveness probe.
package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/majcheradam/BetterVCardTools/internal/config"
	"github.com/majcheradam/BetterVCardTools/internal/engine"
	"github.com/majcheradam/BetterVCardTools/internal/vcard"
)

// Server handles the HTTP surface of the converter.
type Server struct {
	Port      string
	Converter *engine.Converter

	i18n *translator
}

// NewServer creates a server around the given converter. The translation
// bundle is loaded eagerly so a broken locale file shows up at startup, not
// on the first page view.
func NewServer(port string, conv *engine.Converter) *Server {
	return &Server{
		Port:      port,
		Converter: conv,
		i18n:      newTranslator(),
	}
}

// Start initializes the HTTP server and blocks until the context is
// cancelled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	if err := validatePort(s.Port); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:         config.AddrSeparator + s.Port,
		Handler:      s.routes(),
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: config.ServerWriteTimeout,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	serverError := make(chan error, 1)

	go func() {
		slog.Info(config.MsgServerListen,
			config.LogKeyComponent, config.CompServer,
			config.LogKeyPort, s.Port,
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverError <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info(config.MsgServerStop, config.LogKeyComponent, config.CompServer)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("%s: %w", config.ErrServerShutdown, err)
		}
		return nil

	case err := <-serverError:
		return fmt.Errorf("%s: %w", config.ErrServerStartup, err)
	}
}

// routes wires every handler behind the access log.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(config.RouteRoot, s.handleHome)
	mux.HandleFunc(config.RouteHealth, s.handleHealth)
	mux.HandleFunc(config.RouteUpload, s.handleUpload)
	mux.HandleFunc(config.RouteCalendar, s.handleCalendar)
	mux.HandleFunc(config.RouteQR, s.handleQR)
	mux.Handle(config.RouteStatic, http.FileServer(http.FS(staticFS)))
	return withRequestLog(mux)
}

// validatePort rejects empty, non-numeric and out-of-range ports before the
// listener ever opens.
func validatePort(port string) error {
	if port == "" {
		return errors.New(config.ErrPortRequired)
	}
	n, err := strconv.Atoi(port)
	if err != nil {
		return errors.New(config.ErrPortNumber)
	}
	if n < config.MinPort || n > config.MaxPort {
		return errors.New(config.ErrPortRange)
	}
	return nil
}

// withRequestLog adds a debug-level access log around the mux.
func withRequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Debug(config.MsgRequestDone,
			config.LogKeyComponent, config.CompServer,
			config.LogKeyMethod, r.Method,
			config.LogKeyPath, r.URL.Path,
			config.LogKeyRemote, r.RemoteAddr,
			config.LogKeyDuration, time.Since(start).Milliseconds(),
		)
	})
}

// handleHome renders the upload page in the visitor's language.
func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet, http.MethodHead) {
		return
	}
	// The root pattern catches every unregistered path.
	if r.URL.Path != config.RouteRoot {
		http.NotFound(w, r)
		return
	}

	// Render into a buffer first so a template failure can still produce a
	// clean error response.
	var buf bytes.Buffer
	if err := homeTemplate.Execute(&buf, s.pageData(r)); err != nil {
		slog.Error(config.ErrTemplateRender,
			config.LogKeyComponent, config.CompServer,
			config.LogKeyError, err,
		)
		http.Error(w, config.HTTPMsgInternalErr, http.StatusInternalServerError)
		return
	}

	w.Header().Set(config.HeaderContentType, config.MimeTextHTML)
	w.Header().Set(config.HeaderXContentType, config.MimeNoSniff)
	writeBody(w, buf.Bytes())
}

// handleHealth reports liveness. It never touches the conversion core.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet, http.MethodHead) {
		return
	}
	w.Header().Set(config.HeaderContentType, config.MimeJSON)
	writeBody(w, []byte(config.HealthBody))
}

// handleUpload converts the uploaded file and streams the vCard 4.0 result
// back as a download named after the upload.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	res, filename, ok := s.convertUpload(w, r)
	if !ok {
		return
	}
	s.sendAttachment(w, config.MimeTextVCard, downloadName(filename), []byte(res.VCard40))
}

// handleCalendar converts the uploaded file and responds with the birthday
// calendar built from its contacts.
func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	res, _, ok := s.convertUpload(w, r)
	if !ok {
		return
	}

	ics, err := s.Converter.BirthdayCalendar(res.Contacts, "")
	if err != nil {
		slog.Error(config.ErrICalEncode,
			config.LogKeyComponent, config.CompServer,
			config.LogKeyError, err,
		)
		http.Error(w, config.HTTPMsgInternalErr, http.StatusInternalServerError)
		return
	}

	s.sendAttachment(w, config.MimeTextCalendar, config.CalendarFileName, ics)
}

// handleQR renders the first uploaded contact as a QR code image.
func (s *Server) handleQR(w http.ResponseWriter, r *http.Request) {
	res, _, ok := s.convertUpload(w, r)
	if !ok {
		return
	}

	text := s.Converter.SerializeContacts(res.Contacts[:1])
	img, err := vcard.QRCode(text, config.DefaultQRSize)
	if err != nil {
		slog.Error(config.ErrQREncode,
			config.LogKeyComponent, config.CompServer,
			config.LogKeyError, err,
		)
		http.Error(w, config.HTTPMsgInternalErr, http.StatusInternalServerError)
		return
	}

	s.sendAttachment(w, config.MimeImagePNG, config.QRFileName, img)
}

// convertUpload runs the shared intake of the three POST endpoints: method
// check, multipart extraction, conversion, empty-upload rejection. When ok
// is false the error response has already been written.
func (s *Server) convertUpload(w http.ResponseWriter, r *http.Request) (*engine.Result, string, bool) {
	file, header, ok := s.readUpload(w, r)
	if !ok {
		return nil, "", false
	}
	defer func() { _ = file.Close() }()

	res, err := s.Converter.Convert(r.Context(), file)
	if err != nil {
		// Field-level degradations never get here; only corrupted card
		// boundaries do.
		slog.Error(config.ErrVCardParse,
			config.LogKeyComponent, config.CompServer,
			config.LogKeyError, err,
		)
		http.Error(w, config.HTTPMsgParseFailed, http.StatusInternalServerError)
		return nil, "", false
	}
	if res.Cards == 0 {
		http.Error(w, config.HTTPMsgNoContacts, http.StatusBadRequest)
		return nil, "", false
	}
	return res, header.Filename, true
}

// readUpload validates the method and extracts the uploaded file. When ok is
// false the error response has already been written.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (multipart.File, *multipart.FileHeader, bool) {
	if !requireMethod(w, r, http.MethodPost) {
		return nil, nil, false
	}

	r.Body = http.MaxBytesReader(w, r.Body, config.MaxUploadSize)

	file, header, err := r.FormFile(config.FormFieldFile)
	if err != nil {
		slog.Warn(config.ErrReadForm,
			config.LogKeyComponent, config.CompServer,
			config.LogKeyError, err,
		)
		http.Error(w, config.HTTPMsgBadUpload, http.StatusBadRequest)
		return nil, nil, false
	}

	slog.Debug(config.MsgUploadReceived,
		config.LogKeyComponent, config.CompServer,
		config.LogKeyFile, header.Filename,
		config.LogKeySizeBytes, header.Size,
	)
	return file, header, true
}

// sendAttachment writes the payload as a named download.
func (s *Server) sendAttachment(w http.ResponseWriter, mime, filename string, data []byte) {
	w.Header().Set(config.HeaderContentType, mime)
	w.Header().Set(config.HeaderXContentType, config.MimeNoSniff)
	w.Header().Set(config.HeaderCacheControl, config.CacheControlNoStore)
	w.Header().Set(config.HeaderContentDisposition, fmt.Sprintf(config.FormatAttachment, filename))
	writeBody(w, data)
}

// requireMethod enforces the allowed methods, answering 405 with an Allow
// header otherwise.
func requireMethod(w http.ResponseWriter, r *http.Request, methods ...string) bool {
	for _, m := range methods {
		if r.Method == m {
			return true
		}
	}
	allow := config.AllowedMethodsPost
	if methods[0] == http.MethodGet {
		allow = config.AllowedMethodsGet
	}
	w.Header().Set(config.HeaderAllow, allow)
	http.Error(w, config.HTTPMsgMethodNotAll, http.StatusMethodNotAllowed)
	return false
}

func writeBody(w http.ResponseWriter, data []byte) {
	if _, err := w.Write(data); err != nil {
		slog.Error(config.ErrWriteResp,
			config.LogKeyComponent, config.CompServer,
			config.LogKeyError, err,
		)
	}
}

// downloadName derives the attachment filename from the uploaded one: base
// name only, one trailing .vcf or .vcard stripped, the conversion suffix
// appended. Uploads without a usable name fall back to the default base.
func downloadName(uploaded string) string {
	// Browsers may send a full client path; either separator style counts.
	base := path.Base(strings.ReplaceAll(uploaded, `\`, "/"))
	for _, ext := range []string{config.ExtVCF, config.ExtVCard} {
		if strings.EqualFold(path.Ext(base), ext) {
			base = base[:len(base)-len(ext)]
			break
		}
	}
	// Keep header-hostile characters out of the quoted filename.
	base = strings.Map(func(r rune) rune {
		if r == '"' || r < 0x20 {
			return -1
		}
		return r
	}, base)
	if base == "" || base == "." || base == "/" {
		base = config.DefaultBaseName
	}
	return base + config.OutputSuffix + config.ExtVCF
}
