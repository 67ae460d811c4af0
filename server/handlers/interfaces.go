// Package handlers provides HTTP handlers for the signupdesk dashboard.
//
// Handlers use interfaces to reach the session, so tests can drive them with
// a real session backed by an in-memory activity service or with mocks.
package handlers

import (
	"context"

	"github.com/nomis52/signupdesk/logging"
	"github.com/nomis52/signupdesk/session"
)

// SnapshotProvider returns what the session currently shows.
type SnapshotProvider interface {
	Snapshot() (session.Snapshot, error)
}

// Refresher reloads the roster.
type Refresher interface {
	RefreshRoster(ctx context.Context) error
}

// Registrar signs participants up through the signup form.
type Registrar interface {
	SubmitSignupForm(ctx context.Context, activity, email string) error
}

// ParticipantFinder looks up a rendered participant entry.
type ParticipantFinder interface {
	Participant(activity, email string) (session.Participant, bool)
}

// ModalController drives the teacher login modal.
type ModalController interface {
	OpenLoginModal() error
	CloseLoginModal() error
	ClickLoginModal(target session.ClickTarget) error
}

// CredentialVerifier checks teacher credentials.
type CredentialVerifier interface {
	VerifyTeacherCredentials(ctx context.Context, username, password string) error
}

// LogProvider returns captured log lines keyed by operation.
type LogProvider interface {
	GetAllLogs() map[string][]logging.LogEntry
}
