// Package session implements the activity signup client session.
//
// An ActivityClient owns everything the user sees: the rendered roster, the
// signup form, the message region and the teacher login modal. That state
// lives on a single eventloop.Loop; requests to the activity service run on
// the caller's goroutine and their results are applied as loop tasks.
//
// The roster is never patched locally. Every successful mutation is followed
// by a full refresh, and every refresh discards the previous view.
//
// Concurrent mutations are not coordinated. Whichever completion runs last
// decides the message shown and whichever refresh renders last decides the
// roster.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/nomis52/signupdesk/clients/activityservice"
	"github.com/nomis52/signupdesk/eventloop"
	"github.com/nomis52/signupdesk/logging"
	"github.com/nomis52/signupdesk/messages"
	"github.com/nomis52/signupdesk/metrics"
)

const (
	defaultMessageTimeout = 5 * time.Second
	defaultLoginHideDelay = 1 * time.Second
)

// Service is the subset of the activity service API the session uses.
type Service interface {
	ListActivities(ctx context.Context) (activityservice.Roster, error)
	Signup(ctx context.Context, activity, email string) (string, error)
	Unregister(ctx context.Context, activity, email string) (string, error)
	VerifyCredentials(ctx context.Context, username, password string) error
}

// Translator renders user-visible strings.
type Translator interface {
	T(id string, data map[string]any) string
}

// ActivityClient is the client session.
type ActivityClient struct {
	svc            Service
	loop           *eventloop.Loop
	logger         *slog.Logger
	tr             Translator
	messageTimeout time.Duration
	loginHideDelay time.Duration
	newID          func() string
	rosterSize     metrics.Gauge
	shown          metrics.CounterVec

	// Loop-owned state.
	roster     RosterView
	form       SignupForm
	generation uint64
	message    Message
	hideTimer  eventloop.Timer
	modal      LoginModal
	modalHide  uint64
}

// Option configures an ActivityClient.
type Option func(*ActivityClient) error

// WithLogger sets the session logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *ActivityClient) error {
		c.logger = logger
		return nil
	}
}

// WithTranslator sets the message catalog. Defaults to English.
func WithTranslator(tr Translator) Option {
	return func(c *ActivityClient) error {
		c.tr = tr
		return nil
	}
}

// WithMessageTimeout sets how long a message stays visible.
func WithMessageTimeout(d time.Duration) Option {
	return func(c *ActivityClient) error {
		if d <= 0 {
			return fmt.Errorf("message timeout must be positive")
		}
		c.messageTimeout = d
		return nil
	}
}

// WithLoginHideDelay sets how long the modal stays open after a successful
// login.
func WithLoginHideDelay(d time.Duration) Option {
	return func(c *ActivityClient) error {
		if d <= 0 {
			return fmt.Errorf("login hide delay must be positive")
		}
		c.loginHideDelay = d
		return nil
	}
}

// WithMetricsRegistry records roster size and shown messages.
func WithMetricsRegistry(reg metrics.Registry) Option {
	return func(c *ActivityClient) error {
		g, err := reg.NewGauge(prometheus.GaugeOpts{
			Name: "session_roster_activities",
			Help: "Number of activities in the last rendered roster.",
		})
		if err != nil {
			return err
		}
		vec, err := reg.NewCounterVec(prometheus.CounterOpts{
			Name: "session_messages_total",
			Help: "Messages shown to the user by severity.",
		}, []string{"severity"})
		if err != nil {
			return err
		}
		c.rosterSize = g
		c.shown = vec
		return nil
	}
}

// New creates a session bound to svc. The loop must be running before any
// method is called.
func New(svc Service, loop *eventloop.Loop, opts ...Option) (*ActivityClient, error) {
	nop := metrics.Nop()
	rosterSize, _ := nop.NewGauge(prometheus.GaugeOpts{})
	shown, _ := nop.NewCounterVec(prometheus.CounterOpts{}, nil)

	c := &ActivityClient{
		svc:            svc,
		loop:           loop,
		logger:         slog.Default(),
		messageTimeout: defaultMessageTimeout,
		loginHideDelay: defaultLoginHideDelay,
		newID:          uuid.NewString,
		rosterSize:     rosterSize,
		shown:          shown,
		modal:          LoginModal{State: ModalHidden},
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	if c.tr == nil {
		c.tr = messages.English()
	}
	return c, nil
}

// RefreshRoster fetches the roster and rebuilds the activity list and the
// form's activity choices. On failure the list is replaced by a notice and
// the error is logged and returned; the session stays usable.
//
// Like every operation that calls the service, the request outlives
// cancellation of ctx once issued and is bounded by the client timeout.
func (c *ActivityClient) RefreshRoster(ctx context.Context) error {
	logger := c.logger.With(logging.OperationKey, "refresh")

	roster, err := c.svc.ListActivities(context.WithoutCancel(ctx))
	if err != nil {
		logger.Error("failed to fetch activities", "error", err)
		c.apply(logger, func() {
			c.generation++
			c.roster = RosterView{Failure: c.tr.T(messages.RosterFailed, nil)}
		})
		return err
	}

	c.apply(logger, func() { c.render(roster) })
	logger.Debug("roster rendered", "activities", len(roster))
	return nil
}

// RegisterParticipant signs email up for activity. On success the form is
// cleared and the roster refreshed once; on any failure neither happens.
// Exactly one message is shown either way.
func (c *ActivityClient) RegisterParticipant(ctx context.Context, activity, email string) error {
	logger := c.logger.With(logging.OperationKey, "signup", "activity", activity)

	ctx = context.WithoutCancel(ctx)
	text, err := c.svc.Signup(ctx, activity, email)
	c.settle(logger, err, text, messages.SignupFailed, func() {
		c.form = SignupForm{Choices: c.form.Choices}
	})
	if err != nil {
		return err
	}
	c.RefreshRoster(ctx)
	return nil
}

// UnregisterParticipant removes email from activity. On success the roster
// is refreshed once.
func (c *ActivityClient) UnregisterParticipant(ctx context.Context, activity, email string) error {
	logger := c.logger.With(logging.OperationKey, "unregister", "activity", activity)

	ctx = context.WithoutCancel(ctx)
	text, err := c.svc.Unregister(ctx, activity, email)
	c.settle(logger, err, text, messages.UnregisterFailed, nil)
	if err != nil {
		return err
	}
	c.RefreshRoster(ctx)
	return nil
}

// SetSignupEmail types into the form's email field.
func (c *ActivityClient) SetSignupEmail(email string) error {
	return c.apply(c.logger, func() { c.form.Email = email })
}

// SelectActivity picks an activity in the form.
func (c *ActivityClient) SelectActivity(name string) error {
	return c.apply(c.logger, func() { c.form.Activity = name })
}

// SubmitSignup submits the signup form. Missing or malformed fields are
// refused with ErrInvalidForm before any request is made.
func (c *ActivityClient) SubmitSignup(ctx context.Context) error {
	var form SignupForm
	if err := c.apply(c.logger, func() { form = c.form }); err != nil {
		return err
	}
	return c.submit(ctx, form)
}

// SubmitSignupForm fills in both form fields and submits the form, as one
// step with respect to other users of the session.
func (c *ActivityClient) SubmitSignupForm(ctx context.Context, activity, email string) error {
	var form SignupForm
	err := c.apply(c.logger, func() {
		c.form.Activity = activity
		c.form.Email = email
		form = c.form
	})
	if err != nil {
		return err
	}
	return c.submit(ctx, form)
}

func (c *ActivityClient) submit(ctx context.Context, form SignupForm) error {
	email := strings.TrimSpace(form.Email)
	switch {
	case email == "":
		return fmt.Errorf("%w: %s", ErrInvalidForm, c.tr.T(messages.FormEmailRequired, nil))
	case !isEmail(email):
		return fmt.Errorf("%w: %s", ErrInvalidForm, c.tr.T(messages.FormEmailInvalid, nil))
	case form.Activity == "" || !slices.Contains(form.Choices, form.Activity):
		return fmt.Errorf("%w: %s", ErrInvalidForm, c.tr.T(messages.FormActivityMissing, nil))
	}
	return c.RegisterParticipant(ctx, form.Activity, email)
}

// VerifyTeacherCredentials probes the service with basic authentication.
// Success shows a confirmation in the modal and hides it after the login
// hide delay; failure leaves the modal open with an error.
func (c *ActivityClient) VerifyTeacherCredentials(ctx context.Context, username, password string) error {
	logger := c.logger.With(logging.OperationKey, "login")

	err := c.svc.VerifyCredentials(context.WithoutCancel(ctx), username, password)
	var svcErr *activityservice.ServiceError
	switch {
	case err == nil:
		logger.Info("credentials accepted")
		c.apply(logger, func() {
			c.modal.Message = Message{Text: c.tr.T(messages.LoginSuccess, nil), Severity: SeveritySuccess, Visible: true}
			c.scheduleModalHide()
		})
	case errors.As(err, &svcErr):
		logger.Warn("credentials rejected", "status", svcErr.StatusCode)
		c.apply(logger, func() {
			c.modal.Message = Message{Text: c.tr.T(messages.LoginInvalid, nil), Severity: SeverityError, Visible: true}
		})
	default:
		logger.Error("credential probe failed", "error", err)
		c.apply(logger, func() {
			c.modal.Message = Message{Text: c.tr.T(messages.LoginFailed, nil), Severity: SeverityError, Visible: true}
		})
	}
	return err
}

// OpenLoginModal handles a click on the login icon.
func (c *ActivityClient) OpenLoginModal() error {
	return c.apply(c.logger, func() { c.modal.State = ModalVisible })
}

// CloseLoginModal handles a click on the modal's close control.
func (c *ActivityClient) CloseLoginModal() error {
	return c.apply(c.logger, func() { c.modal.State = ModalHidden })
}

// ClickLoginModal handles a click that landed on the modal. Only clicks on
// the backdrop itself close it.
func (c *ActivityClient) ClickLoginModal(target ClickTarget) error {
	return c.apply(c.logger, func() {
		if target == TargetBackdrop {
			c.modal.State = ModalHidden
		}
	})
}

// Participant returns the removal control currently rendered for email in
// activity.
func (c *ActivityClient) Participant(activity, email string) (Participant, bool) {
	var (
		found Participant
		ok    bool
	)
	c.apply(c.logger, func() {
		for _, card := range c.roster.Cards {
			if card.Name != activity {
				continue
			}
			for _, p := range card.Participants {
				if p.Email == email {
					found, ok = p, true
					return
				}
			}
		}
	})
	return found, ok
}

// Snapshot returns a copy of the current view.
func (c *ActivityClient) Snapshot() (Snapshot, error) {
	var s Snapshot
	err := c.apply(c.logger, func() {
		s = Snapshot{
			Roster:  c.roster,
			Form:    c.form,
			Message: c.message,
			Modal:   c.modal,
		}
	})
	return s, err
}

// render rebuilds the view from roster. Runs on the loop.
func (c *ActivityClient) render(roster activityservice.Roster) {
	c.generation++
	gen := c.generation

	names := roster.Names()
	cards := make([]Card, 0, len(names))
	for _, name := range names {
		a := roster[name]
		card := Card{
			Name:            name,
			Description:     a.Description,
			Schedule:        a.Schedule,
			MaxParticipants: a.MaxParticipants,
			SpotsLeft:       a.SpotsLeft(),
			Availability:    c.tr.T(messages.SpotsLeft, map[string]any{"Count": a.SpotsLeft()}),
		}
		if len(a.Participants) == 0 {
			card.Placeholder = c.tr.T(messages.NoParticipants, nil)
		} else {
			card.Participants = make([]Participant, len(a.Participants))
			for i, email := range a.Participants {
				card.Participants[i] = Participant{
					Activity:   name,
					Email:      email,
					generation: gen,
					remove:     c.removeFromControl,
				}
			}
		}
		cards = append(cards, card)
	}

	c.roster = RosterView{Cards: cards}
	c.form.Choices = names
	if !slices.Contains(names, c.form.Activity) {
		c.form.Activity = ""
	}
	c.rosterSize.Set(float64(len(cards)))
}

// removeFromControl is the handler bound to every rendered removal control.
func (c *ActivityClient) removeFromControl(ctx context.Context, generation uint64, activity, email string) error {
	var stale bool
	if err := c.apply(c.logger, func() { stale = generation != c.generation }); err != nil {
		return err
	}
	if stale {
		return ErrStaleControl
	}
	return c.UnregisterParticipant(ctx, activity, email)
}

// settle shows the single message that ends a mutation.
func (c *ActivityClient) settle(logger *slog.Logger, err error, text, failedID string, onSuccess func()) {
	var svcErr *activityservice.ServiceError
	switch {
	case err == nil:
		logger.Info("request succeeded", "message", text)
		c.apply(logger, func() {
			c.showMessage(SeveritySuccess, text)
			if onSuccess != nil {
				onSuccess()
			}
		})
	case errors.As(err, &svcErr):
		logger.Warn("service rejected request", "status", svcErr.StatusCode, "detail", svcErr.Detail)
		detail := svcErr.Detail
		c.apply(logger, func() {
			if detail == "" {
				detail = c.tr.T(messages.GenericError, nil)
			}
			c.showMessage(SeverityError, detail)
		})
	default:
		logger.Error("request failed", "error", err)
		c.apply(logger, func() {
			c.showMessage(SeverityError, c.tr.T(failedID, nil))
		})
	}
}

// showMessage replaces the current message and restarts the hide timer.
// Runs on the loop.
func (c *ActivityClient) showMessage(severity Severity, text string) {
	if c.hideTimer != nil {
		c.hideTimer.Stop()
	}
	id := c.newID()
	c.message = Message{ID: id, Text: text, Severity: severity, Visible: true}
	c.shown.With(prometheus.Labels{"severity": string(severity)}).Inc()
	c.hideTimer = c.loop.AfterFunc(c.messageTimeout, func() {
		if c.message.ID == id {
			c.message.Visible = false
			c.hideTimer = nil
		}
	})
}

// scheduleModalHide hides the modal after the login delay unless a newer
// successful login rescheduled it. Runs on the loop.
func (c *ActivityClient) scheduleModalHide() {
	c.modalHide++
	token := c.modalHide
	c.loop.AfterFunc(c.loginHideDelay, func() {
		if c.modalHide == token {
			c.modal.State = ModalHidden
		}
	})
}

// apply runs fn on the loop and waits for it. Results are applied even if the
// request context was cancelled meanwhile.
func (c *ActivityClient) apply(logger *slog.Logger, fn func()) error {
	if err := c.loop.Do(context.Background(), fn); err != nil {
		logger.Error("failed to update session state", "error", err)
		return err
	}
	return nil
}

func isEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}
