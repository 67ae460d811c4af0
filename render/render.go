// Package render draws session snapshots for the CLI and the dashboard.
//
// Both renderers use the card layout of the signup page: name, description,
// schedule, availability, then the participant list or its placeholder.
package render

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"strings"

	"github.com/nomis52/signupdesk/messages"
	"github.com/nomis52/signupdesk/session"
)

//go:embed templates/*.html
var templatesFS embed.FS

var templates = template.Must(template.New("").Funcs(template.FuncMap{
	"severityClass": severityClass,
}).ParseFS(templatesFS, "templates/*.html"))

// Translator looks up user-visible labels.
type Translator interface {
	T(id string, data map[string]any) string
}

// Text writes snap as plain text.
func Text(w io.Writer, snap session.Snapshot, tr Translator) error {
	var b strings.Builder

	if snap.Roster.Failure != "" {
		fmt.Fprintln(&b, snap.Roster.Failure)
	}
	for i, card := range snap.Roster.Cards {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%s\n", card.Name)
		if card.Description != "" {
			fmt.Fprintf(&b, "  %s\n", card.Description)
		}
		fmt.Fprintf(&b, "  %s %s\n", tr.T(messages.ScheduleLabel, nil), card.Schedule)
		fmt.Fprintf(&b, "  %s %s\n", tr.T(messages.AvailabilityLabel, nil), card.Availability)
		fmt.Fprintf(&b, "  %s\n", tr.T(messages.ParticipantsHeading, nil))
		if len(card.Participants) == 0 {
			fmt.Fprintf(&b, "    %s\n", card.Placeholder)
			continue
		}
		for _, p := range card.Participants {
			fmt.Fprintf(&b, "    - %s\n", p.Email)
		}
	}

	if line := MessageLine(snap.Message); line != "" {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintln(&b, line)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// MessageLine formats a visible message as "[severity] text". Hidden
// messages render as an empty string.
func MessageLine(m session.Message) string {
	if !m.Visible || m.Text == "" {
		return ""
	}
	return fmt.Sprintf("[%s] %s", m.Severity, m.Text)
}

type page struct {
	Snapshot            session.Snapshot
	ScheduleLabel       string
	AvailabilityLabel   string
	ParticipantsHeading string
	Lang                string
}

// HTML writes snap as the dashboard page.
func HTML(w io.Writer, snap session.Snapshot, tr Translator, lang string) error {
	if lang == "" {
		lang = "en"
	}
	return templates.ExecuteTemplate(w, "page.html", page{
		Snapshot:            snap,
		ScheduleLabel:       tr.T(messages.ScheduleLabel, nil),
		AvailabilityLabel:   tr.T(messages.AvailabilityLabel, nil),
		ParticipantsHeading: tr.T(messages.ParticipantsHeading, nil),
		Lang:                lang,
	})
}

func severityClass(s session.Severity) string {
	if s == session.SeverityError {
		return "message error"
	}
	return "message success"
}
