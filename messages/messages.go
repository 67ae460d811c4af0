// Package messages holds the user-visible strings of the signup client.
//
// Strings are looked up by ID from go-i18n bundles embedded as TOML. English
// is the default and fallback locale.
package messages

import (
	"embed"
	"fmt"
	"log/slog"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/pelletier/go-toml/v2"
	"golang.org/x/text/language"
)

//go:embed active.*.toml
var localeFS embed.FS

// Message IDs.
const (
	RosterFailed        = "roster_failed"
	NoParticipants      = "no_participants"
	ParticipantsHeading = "participants_heading"
	ScheduleLabel       = "schedule_label"
	AvailabilityLabel   = "availability_label"
	SpotsLeft           = "spots_left"
	GenericError        = "generic_error"
	SignupFailed        = "signup_failed"
	UnregisterFailed    = "unregister_failed"
	LoginSuccess        = "login_success"
	LoginInvalid        = "login_invalid"
	LoginFailed         = "login_failed"
	FormEmailRequired   = "form_email_required"
	FormEmailInvalid    = "form_email_invalid"
	FormActivityMissing = "form_activity_required"
)

var localeFiles = []string{"active.en.toml", "active.fr.toml"}

// Catalog renders messages for one locale.
type Catalog struct {
	tag       language.Tag
	localizer *i18n.Localizer
	logger    *slog.Logger
}

// New loads the embedded bundles and returns a Catalog for locale, e.g. "en"
// or "fr-CA". Unknown message IDs in that locale fall back to English.
func New(locale string, logger *slog.Logger) (*Catalog, error) {
	tag, err := language.Parse(locale)
	if err != nil {
		return nil, fmt.Errorf("invalid locale %q: %w", locale, err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	bundle := i18n.NewBundle(language.English)
	bundle.RegisterUnmarshalFunc("toml", toml.Unmarshal)
	for _, file := range localeFiles {
		if _, err := bundle.LoadMessageFileFS(localeFS, file); err != nil {
			return nil, fmt.Errorf("loading %s: %w", file, err)
		}
	}

	return &Catalog{
		tag:       tag,
		localizer: i18n.NewLocalizer(bundle, tag.String(), language.English.String()),
		logger:    logger,
	}, nil
}

// English returns the default catalog.
func English() *Catalog {
	c, err := New("en", nil)
	if err != nil {
		panic(fmt.Sprintf("loading embedded messages: %v", err))
	}
	return c
}

// Locale returns the requested locale.
func (c *Catalog) Locale() language.Tag {
	return c.tag
}

// T renders the message id. It returns id itself when the message is unknown.
func (c *Catalog) T(id string, data map[string]any) string {
	msg, err := c.localizer.Localize(&i18n.LocalizeConfig{
		MessageID:    id,
		TemplateData: data,
	})
	if err != nil {
		c.logger.Warn("message lookup failed", "id", id, "locale", c.tag.String(), "error", err)
		return id
	}
	return msg
}
