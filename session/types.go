package session

import (
	"context"
	"errors"
)

// ErrStaleControl is returned when a removal control from an earlier render
// is used after the roster was re-rendered.
var ErrStaleControl = errors.New("control belongs to a previous render")

// ErrInvalidForm is returned by SubmitSignup when a field is missing or
// malformed. No request is sent.
var ErrInvalidForm = errors.New("signup form is invalid")

// Severity tags a UI message.
type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
)

// Message is the transient feedback shown to the user.
type Message struct {
	ID       string   `json:"id,omitempty"`
	Text     string   `json:"text"`
	Severity Severity `json:"severity,omitempty"`
	Visible  bool     `json:"visible"`
}

// Participant is one rendered participant entry with its removal control.
type Participant struct {
	Activity string `json:"activity"`
	Email    string `json:"email"`

	generation uint64
	remove     func(ctx context.Context, generation uint64, activity, email string) error
}

// Remove unregisters the participant, exactly like clicking the entry's
// removal control. Entries from an earlier render return ErrStaleControl.
func (p Participant) Remove(ctx context.Context) error {
	if p.remove == nil {
		return ErrStaleControl
	}
	return p.remove(ctx, p.generation, p.Activity, p.Email)
}

// Card is the rendered form of one activity.
type Card struct {
	Name            string        `json:"name"`
	Description     string        `json:"description"`
	Schedule        string        `json:"schedule"`
	MaxParticipants int           `json:"max_participants"`
	SpotsLeft       int           `json:"spots_left"`
	Availability    string        `json:"availability"`
	Participants    []Participant `json:"participants"`
	// Placeholder is set instead of Participants when nobody signed up.
	Placeholder string `json:"placeholder,omitempty"`
}

// RosterView is the rendered activity list. Failure replaces the cards when
// the last fetch failed.
type RosterView struct {
	Cards   []Card `json:"cards"`
	Failure string `json:"failure,omitempty"`
}

// SignupForm mirrors the signup form fields and its activity choices.
type SignupForm struct {
	Email    string   `json:"email"`
	Activity string   `json:"activity"`
	Choices  []string `json:"choices"`
}

// ModalState is the visibility of the teacher login modal.
type ModalState string

const (
	ModalHidden  ModalState = "hidden"
	ModalVisible ModalState = "visible"
)

// ClickTarget identifies what a click on the modal landed on.
type ClickTarget string

const (
	TargetBackdrop ClickTarget = "backdrop"
	TargetContent  ClickTarget = "content"
)

// LoginModal is the teacher login modal and its feedback line.
type LoginModal struct {
	State   ModalState `json:"state"`
	Message Message    `json:"message"`
}

// Snapshot is a copy of everything the session currently shows.
type Snapshot struct {
	Roster  RosterView `json:"roster"`
	Form    SignupForm `json:"form"`
	Message Message    `json:"message"`
	Modal   LoginModal `json:"modal"`
}
