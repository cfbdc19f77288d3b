package middleware

import (
	"embed"
	"encoding/json"

	"github.com/gin-gonic/gin"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

//go:embed locales/*.json
var localeFS embed.FS

const localizerKey = "localizer"

// Translator hält das Übersetzungs-Bundle für die API-Meldungen
type Translator struct {
	bundle *i18n.Bundle
}

// NewTranslator lädt die eingebetteten Übersetzungsdateien
func NewTranslator() (*Translator, error) {
	bundle := i18n.NewBundle(language.English)
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)

	for _, name := range []string{"locales/en.json", "locales/de.json"} {
		data, err := localeFS.ReadFile(name)
		if err != nil {
			return nil, err
		}
		if _, err := bundle.ParseMessageFileBytes(data, name); err != nil {
			return nil, err
		}
	}

	return &Translator{bundle: bundle}, nil
}

// I18n erstellt die Middleware für lokalisierte API-Meldungen. Die Sprache
// kommt aus dem Query-Parameter `lang` oder dem Accept-Language-Header;
// Fallback ist Englisch.
func I18n(translator *Translator) gin.HandlerFunc {
	return func(c *gin.Context) {
		lang := c.Query("lang")
		accept := c.GetHeader("Accept-Language")

		localizer := i18n.NewLocalizer(translator.bundle, lang, accept)
		c.Set(localizerKey, localizer)
		c.Next()
	}
}

// Localize übersetzt eine Meldungs-ID im Kontext der Anfrage. Ohne
// Middleware oder ohne Übersetzung wird der Fallback-Text zurückgegeben.
func Localize(c *gin.Context, messageID, fallback string) string {
	v, ok := c.Get(localizerKey)
	if !ok {
		return fallback
	}
	localizer, ok := v.(*i18n.Localizer)
	if !ok {
		return fallback
	}

	msg, err := localizer.Localize(&i18n.LocalizeConfig{MessageID: messageID})
	if err != nil || msg == "" {
		return fallback
	}
	return msg
}
