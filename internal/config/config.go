package config

import (
	"io/fs"
	"time"
)

// -----------------------------------------------------------------------------
// Build Information
// -----------------------------------------------------------------------------

// Build variables are injected via -ldflags.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// UserAgent identifies the HTTP client.
var UserAgent = "BetterVCardTools/" + Version

// -----------------------------------------------------------------------------
// Application Constants
// -----------------------------------------------------------------------------

const (
	AppName = "BetterVCardTools"
	AppID   = "com.github.majcheradam.bettervcardtools"

	// KeyringService namespaces stored DAV credentials in the OS keyring.
	KeyringService = AppID

	EnvFileName = ".env"
)

// -----------------------------------------------------------------------------
// Exit Codes
// -----------------------------------------------------------------------------

const (
	ExitCodeSuccess = 0
	ExitCodeError   = 1
)

// -----------------------------------------------------------------------------
// CLI Commands, Flags & Environment
// -----------------------------------------------------------------------------

const (
	CmdServe   = "serve"
	CmdConvert = "convert"
	CmdQR      = "qr"
	CmdLogin   = "login"

	FlagPort   = "port"
	FlagDebug  = "debug"
	FlagOutput = "output"
	FlagURL    = "url"
	FlagDAV    = "dav"
	FlagUser   = "user"
	FlagPass   = "pass"
	FlagFormat = "format"
	FlagSize   = "size"

	EnvPort     = "PORT"
	EnvLogLevel = "LOG_LEVEL"
	EnvDAVURL   = "DAV_URL"
	EnvDAVUser  = "DAV_USERNAME"
	EnvDAVPass  = "DAV_PASSWORD"

	UsageApp     = "Convert vCard 2.1/3.0/4.0 contacts to normalized vCard 4.0"
	UsageServe   = "Run the HTTP conversion service"
	UsageConvert = "Convert vCard input from files, a URL or a DAV collection"
	UsageQR      = "Render the first contact of a vCard file as a QR code"
	UsageLogin   = "Store DAV credentials in the system keyring"

	FlagDescPort   = "TCP port for the HTTP server"
	FlagDescDebug  = "Enable debug logging"
	FlagDescOutput = "Output file (default: stdout for text, required for PNG)"
	FlagDescURL    = "Fetch vCard input from an HTTP(S) URL"
	FlagDescDAV    = "Fetch vCard input from a WebDAV collection URL"
	FlagDescUser   = "Username for URL or DAV sources"
	FlagDescPass   = "Password for URL or DAV sources (keyring fallback)"
	FlagDescFormat = "Output format: vcf or ics"
	FlagDescSize   = "QR code image size in pixels"

	MsgVersionOutput = "%s version %s (commit %s, built %s, %s/%s)\n"

	PromptUsername = "Username: "
	PromptPassword = "Password: "
)

// -----------------------------------------------------------------------------
// Translation Keys (I18n)
// -----------------------------------------------------------------------------

const (
	TKeyPageTitle   = "page_title"
	TKeyPageLede    = "page_lede"
	TKeyLblUpload   = "lbl_upload"
	TKeyBtnConvert  = "btn_convert"
	TKeyBtnCalendar = "btn_calendar"
	TKeyBtnQR       = "btn_qr"
	TKeyHelpFormats = "help_formats"
	TKeyLblFooter   = "lbl_footer"
)

// SupportedLanguages defines the list of available page languages (ISO 639-1).
var SupportedLanguages = []string{"en", "fr"}

// -----------------------------------------------------------------------------
// Default Values & Business Logic
// -----------------------------------------------------------------------------

const (
	SourceModeFile = "file"
	SourceModeURL  = "url"
	SourceModeDAV  = "dav"

	FormatVCF = "vcf"
	FormatICS = "ics"

	DefaultPort     = "8000"
	DefaultLanguage = "en"
	DefaultQRSize   = 256
	DefaultLeapYear = 2000 // Leap year fallback for dates like --02-29
	UIDSalt         = "bettervcardtools-v1-"

	// DefaultBaseName is used when an upload carries no usable filename.
	DefaultBaseName = "contacts"
	// OutputSuffix is appended to the stripped base name of converted files.
	OutputSuffix = "-4.0"
)

// -----------------------------------------------------------------------------
// Standards: vCard
// -----------------------------------------------------------------------------

const (
	VCardBegin     = "BEGIN"
	VCardEnd       = "END"
	VCardComponent = "VCARD"
	VCardVersion40 = "4.0"

	PropVersion = "VERSION"
	PropN       = "N"
	PropFN      = "FN"
	PropEmail   = "EMAIL"
	PropTel     = "TEL"
	PropOrg     = "ORG"
	PropBDay    = "BDAY"
	PropNote    = "NOTE"
	PropProdID  = "PRODID"
	PropUID     = "UID"

	ParamType     = "TYPE"
	ParamValue    = "VALUE"
	ParamCharset  = "CHARSET"
	ParamEncoding = "ENCODING"

	EncodingQP     = "QUOTED-PRINTABLE"
	ParamValueURI  = "uri"
	TelURIPrefix   = "tel:"
	TypeKindTel    = "tel"
	TypeKindEmail  = "email"
	TypeInternet   = "internet"
	TypeVoice      = "voice"
	VCardProdID    = "-//BetterVCardTools//v1.0//EN"
	FallbackName   = "Unnamed"
	DefaultCharset = "UTF-8"
)

// -----------------------------------------------------------------------------
// Standards: iCalendar
// -----------------------------------------------------------------------------

const (
	ICalVersion   = "2.0"
	ICalProdID    = "-//BetterVCardTools//Calendar//EN"
	ICalCalName   = "Birthdays"
	ICalMethod    = "PUBLISH"
	ICalScale     = "GREGORIAN"
	ICalComponent = "VALARM"
	ICalAction    = "DISPLAY"
	ICalDomain    = "bettervcardtools"

	ICalPropUID        = "UID"
	ICalPropSummary    = "SUMMARY"
	ICalPropDTStart    = "DTSTART"
	ICalPropDTStamp    = "DTSTAMP"
	ICalPropRefresh    = "REFRESH-INTERVAL"
	ICalPropAction     = "ACTION"
	ICalPropDesc       = "DESCRIPTION"
	ICalPropTrigger    = "TRIGGER"
	ICalPropVersion    = "VERSION"
	ICalPropProdID     = "PRODID"
	ICalPropXWRCalName = "X-WR-CALNAME"
	ICalPropCalScale   = "CALSCALE"
	ICalPropMethod     = "METHOD"

	DefaultICalRefresh = 24 * time.Hour

	EventSummary      = "Birthday: %s"
	EventSummaryAge   = "Birthday: %s (%d)"
	EventSummaryBirth = "Birthday: %s (birth)"
)

// StubVCalendar is the minimal valid iCalendar object used when no contact
// carries a usable birthday.
const StubVCalendar = "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:" + ICalProdID + "\r\nEND:VCALENDAR\r\n"

// -----------------------------------------------------------------------------
// Data Formats, Limits & File Extensions
// -----------------------------------------------------------------------------

const (
	// Date layouts used for parsing vCard BDAY fields
	DateFormatFullDash  = "2006-01-02"
	DateFormatFullBasic = "20060102"
	DateFormatRFC3339   = time.RFC3339
	DateFormatFullT     = "2006-01-02T15:04:05Z"
	DateFormatNoYearD   = "--01-02"
	DateFormatNoYearB   = "--0102"

	// Limits
	MinPort             = 1
	MaxPort             = 65535
	MaxUploadSize       = 32 * 1024 * 1024  // 32MB
	MaxHTTPResponseSize = 256 * 1024 * 1024 // 256MB
	MaxQRPayloadSize    = 2048              // QR version 40 ceiling with margin
	MinQRSize           = 64
	MaxQRSize           = 2048

	// UID Generation (calendar events)
	UIDHashLength   = 16
	FormatHashInput = "%s|%s|%s"
	FormatUID       = "%s-%d@%s"

	// File Extensions
	ExtVCF   = ".vcf"
	ExtVCard = ".vcard"
	ExtICS   = ".ics"
	ExtPNG   = ".png"
)

// FilePermOutput represents -rw-r--r-- for files written by the CLI.
const FilePermOutput fs.FileMode = 0644

// -----------------------------------------------------------------------------
// Network & Timeouts
// -----------------------------------------------------------------------------

const (
	HTTPTimeout        = 30 * time.Second
	ShutdownTimeout    = 5 * time.Second
	ServerReadTimeout  = 30 * time.Second
	ServerWriteTimeout = 60 * time.Second
	ServerIdleTimeout  = 60 * time.Second

	AllowedMethodsGet  = "GET, HEAD"
	AllowedMethodsPost = "POST"

	SchemeHTTP  = "http"
	SchemeHTTPS = "https"

	RouteRoot     = "/"
	RouteHealth   = "/health"
	RouteUpload   = "/upload"
	RouteCalendar = "/calendar"
	RouteQR       = "/qr"
	RouteStatic   = "/static/"

	AddrSeparator = ":"
)

// -----------------------------------------------------------------------------
// HTTP Headers & MIME Types
// -----------------------------------------------------------------------------

const (
	HeaderContentType        = "Content-Type"
	HeaderContentDisposition = "Content-Disposition"
	HeaderAllow              = "Allow"
	HeaderXContentType       = "X-Content-Type-Options"
	HeaderUserAgent          = "User-Agent"
	HeaderAccept             = "Accept"
	HeaderAcceptLanguage     = "Accept-Language"
	HeaderCacheControl       = "Cache-Control"

	// AcceptVCard asks servers for a vCard representation first. Legacy
	// exports still show up as text/x-vcard or text/directory.
	AcceptVCard = "text/vcard, text/x-vcard;q=0.9, text/directory;q=0.8, */*;q=0.1"

	MimeTextVCard    = "text/vcard; charset=utf-8"
	MimeTextCalendar = "text/calendar; charset=utf-8"
	MimeTextHTML     = "text/html; charset=utf-8"
	MimeJSON         = "application/json"
	MimeImagePNG     = "image/png"
	MimeNoSniff      = "nosniff"

	CacheControlNoStore = "no-store"

	// FormatAttachment expects the download filename.
	FormatAttachment = `attachment; filename="%s"`

	FormFieldFile = "file"

	CalendarFileName = "birthdays" + ExtICS
	QRFileName       = "contact" + ExtPNG
)

// -----------------------------------------------------------------------------
// Error Messages (Technical/Logs)
// -----------------------------------------------------------------------------

const (
	ErrFilePathEmpty   = "configuration error: input path is empty"
	ErrURLEmpty        = "configuration error: source URL is empty"
	ErrFetcherMissing  = "internal error: network fetcher is not initialized"
	ErrModeUnsupport   = "configuration error: unsupported source mode"
	ErrServerStartup   = "server startup failed"
	ErrServerShutdown  = "server shutdown failed"
	ErrPortRequired    = "server port is required"
	ErrPortNumber      = "server port must be a number"
	ErrPortRange       = "server port must be between 1 and 65535"
	ErrInvalidURL      = "invalid URL structure"
	ErrProtocol        = "unsupported protocol scheme (http/https only)"
	ErrResponseSize    = "server response exceeds the download size limit"
	ErrCtxCancelled    = "operation cancelled by context"
	ErrVCardParse      = "failed to parse vCard stream"
	ErrVCardRead       = "failed to read vCard input"
	ErrDateParse       = "unrecognized date format"
	ErrICalEncode      = "failed to encode iCalendar data"
	ErrQREncode        = "failed to encode QR code"
	ErrQRTooLarge      = "vCard payload too large for a QR code"
	ErrEmptyInput      = "input contains no vCard data"
	ErrNoContacts      = "input contains no contacts"
	ErrDAVList         = "failed to list DAV collection"
	ErrDAVOpen         = "failed to open DAV object"
	ErrKeyring         = "keyring access failed"
	ErrWriteResp       = "failed to write response body"
	ErrReadForm        = "failed to read multipart form"
	ErrTemplateRender  = "failed to render page template"
	ErrLocalesAccess   = "failed to access embedded locales"
	ErrLocaleLoad      = "failed to load locale file"
	ErrAppFailed       = "application failed unexpectedly"
	ErrOutputRequired  = "an output file is required for binary formats"
	ErrFormatUnsupport = "unsupported output format"
	ErrUserRequired    = "a username is required"
)

// -----------------------------------------------------------------------------
// HTTP Server Responses
// -----------------------------------------------------------------------------

const (
	HTTPMsgMethodNotAll = "Method Not Allowed"
	HTTPMsgInternalErr  = "Internal Server Error"
	HTTPMsgBadUpload    = "Missing or unreadable file upload"
	HTTPMsgParseFailed  = "Malformed vCard input"
	HTTPMsgNoContacts   = "No contacts found in upload"

	HealthBody = `{"status":"ok"}`
)

// -----------------------------------------------------------------------------
// Log Messages
// -----------------------------------------------------------------------------

const (
	MsgAppStarting    = "Starting application"
	MsgAppStop        = "Application stopped gracefully"
	MsgServerListen   = "HTTP server listening"
	MsgServerStop     = "Shutting down HTTP server..."
	MsgConvertStart   = "Conversion started"
	MsgConvertDone    = "Conversion completed"
	MsgBdayToday      = "Birthday occurs today"
	MsgCalendarDone   = "Calendar generation successful"
	MsgSkippedDate    = "Skipping invalid date format"
	MsgUploadReceived = "Upload received"
	MsgFetchStart     = "Fetching vCard source"
	MsgFetchBody      = "Downloading vCard payload"
	MsgFetchBadStatus = "Server returned error status"
	MsgDAVListing     = "Listing DAV collection"
	MsgDAVSkipped     = "Skipping non-vCard DAV object"
	MsgDAVFetched     = "DAV collection fetched"
	MsgKeyringFall    = "Password not supplied, trying keyring"
	MsgKeyringMiss    = "Password retrieval failed (might be empty)"
	MsgKeyringStored  = "Credentials stored in keyring"
	MsgOutputWritten  = "Output written"
	MsgLocaleSkip     = "Skipping non-locale file"
	MsgLocaleBadName  = "Skipping malformed locale filename"
	MsgLocaleLoaded   = "Locale loaded successfully"
	MsgTransMissing   = "Missing translation key"
	MsgRequestDone    = "Request handled"
)

// -----------------------------------------------------------------------------
// Structured Logging Keys (slog)
// -----------------------------------------------------------------------------

const (
	LogKeyComponent = "component"
	LogKeyError     = "error"
	LogKeyURL       = "url"
	LogKeyStatus    = "status_code"
	LogKeyFile      = "file"
	LogKeyLang      = "lang"
	LogKeyKey       = "key"
	LogKeyPort      = "port"
	LogKeyMode      = "mode"
	LogKeyUser      = "user"
	LogKeyCards     = "total_cards"
	LogKeyContacts  = "contacts"
	LogKeyEmails    = "emails"
	LogKeyPhones    = "phones"
	LogKeyBirthdays = "birthdays_found"
	LogKeyToday     = "today"
	LogKeySizeBytes = "size_bytes"
	LogKeyMIME      = "content_type"
	LogKeyCount     = "count"
	LogKeyName      = "name"
	LogKeyValue     = "value"
	LogKeyStats     = "stats"
	LogKeyFormat    = "format"
	LogKeyMethod    = "method"
	LogKeyPath      = "path"
	LogKeyRemote    = "remote_addr"
	LogKeyDuration  = "duration_ms"

	// Startup Info Keys
	LogKeyBuild   = "build"
	LogKeyEnv     = "env"
	LogKeyApp     = "app"
	LogKeyVersion = "version"
	LogKeyGoVer   = "go_version"
	LogKeyOS      = "os"
	LogKeyArch    = "arch"
	LogKeyPID     = "pid"
)

// -----------------------------------------------------------------------------
// Log Components
// -----------------------------------------------------------------------------

const (
	CompMain    = "main"
	CompCLI     = "cli"
	CompEngine  = "engine"
	CompServer  = "server"
	CompFetcher = "fetcher"
	CompSource  = "source"
	CompI18n    = "i18n"
)
