package server

import (
	"embed"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"

	"github.com/majcheradam/BetterVCardTools/internal/config"
)

//go:embed locales/*.json
var localeFS embed.FS

// translator owns the message bundle and the language matcher for the web
// page. Safe for concurrent use once constructed.
type translator struct {
	bundle  *i18n.Bundle
	langs   []string
	matcher language.Matcher
}

// newTranslator loads every embedded locale file into a bundle, detecting
// the available languages from the file names.
func newTranslator() *translator {
	bundle := i18n.NewBundle(language.English)
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)

	var detected []string

	entries, err := localeFS.ReadDir("locales")
	if err != nil {
		slog.Error(config.ErrLocalesAccess,
			config.LogKeyComponent, config.CompI18n,
			config.LogKeyError, err,
		)
	}

	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, "active.") || !strings.HasSuffix(name, ".json") {
			slog.Debug(config.MsgLocaleSkip,
				config.LogKeyComponent, config.CompI18n,
				config.LogKeyFile, name,
			)
			continue
		}

		trimmed := strings.TrimPrefix(name, "active.")
		langCode := strings.TrimSuffix(trimmed, ".json")

		if langCode == "" {
			slog.Warn(config.MsgLocaleBadName,
				config.LogKeyComponent, config.CompI18n,
				config.LogKeyFile, name,
			)
			continue
		}

		if _, err := bundle.LoadMessageFileFS(localeFS, "locales/"+name); err != nil {
			slog.Error(config.ErrLocaleLoad,
				config.LogKeyComponent, config.CompI18n,
				config.LogKeyFile, name,
				config.LogKeyError, err,
			)
			continue
		}

		detected = append(detected, langCode)
		slog.Debug(config.MsgLocaleLoaded,
			config.LogKeyComponent, config.CompI18n,
			config.LogKeyLang, langCode,
			config.LogKeyFile, name,
		)
	}

	// The default language leads so the matcher falls back to it.
	langs := []string{config.DefaultLanguage}
	for _, l := range detected {
		if l != config.DefaultLanguage {
			langs = append(langs, l)
		}
	}
	tags := make([]language.Tag, len(langs))
	for i, l := range langs {
		tags[i] = language.Make(l)
	}

	return &translator{
		bundle:  bundle,
		langs:   langs,
		matcher: language.NewMatcher(tags),
	}
}

// pickLanguage resolves the Accept-Language header against the available
// locales, defaulting when nothing matches.
func (t *translator) pickLanguage(r *http.Request) string {
	accepted, _, err := language.ParseAcceptLanguage(r.Header.Get(config.HeaderAcceptLanguage))
	if err != nil || len(accepted) == 0 {
		return config.DefaultLanguage
	}
	_, idx, _ := t.matcher.Match(accepted...)
	return t.langs[idx]
}

// msg translates a key, falling back to the key itself so a missing
// translation never breaks the page.
func (t *translator) msg(loc *i18n.Localizer, key string) string {
	m, err := loc.Localize(&i18n.LocalizeConfig{MessageID: key})
	if err != nil {
		slog.Debug(config.MsgTransMissing,
			config.LogKeyComponent, config.CompI18n,
			config.LogKeyKey, key,
			config.LogKeyError, err,
		)
		return key
	}
	return m
}

// homePage is the view model of the upload page.
type homePage struct {
	Lang        string
	Title       string
	Lede        string
	UploadLabel string
	Convert     string
	Calendar    string
	QR          string
	FormatsHelp string
	Footer      string
}

// pageData assembles the localized view model for the visitor.
func (s *Server) pageData(r *http.Request) homePage {
	lang := s.i18n.pickLanguage(r)
	loc := i18n.NewLocalizer(s.i18n.bundle, lang)
	return homePage{
		Lang:        lang,
		Title:       s.i18n.msg(loc, config.TKeyPageTitle),
		Lede:        s.i18n.msg(loc, config.TKeyPageLede),
		UploadLabel: s.i18n.msg(loc, config.TKeyLblUpload),
		Convert:     s.i18n.msg(loc, config.TKeyBtnConvert),
		Calendar:    s.i18n.msg(loc, config.TKeyBtnCalendar),
		QR:          s.i18n.msg(loc, config.TKeyBtnQR),
		FormatsHelp: s.i18n.msg(loc, config.TKeyHelpFormats),
		Footer:      s.i18n.msg(loc, config.TKeyLblFooter),
	}
}
