// Package servicetest provides an in-memory ActivityService for tests.
//
// It implements the four endpoints the client relies on with the same status
// codes and JSON shapes as the real service, and counts the calls made to
// each operation so tests can assert on refresh behaviour.
package servicetest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"slices"
	"sync"
	"testing"

	"github.com/gorilla/mux"

	"github.com/nomis52/signupdesk/clients/activityservice"
)

// Operation names used by Calls.
const (
	OpList       = "list"
	OpSignup     = "signup"
	OpUnregister = "unregister"
	OpVerify     = "verify"
)

// Service is an in-memory activity service.
type Service struct {
	mu       sync.Mutex
	roster   activityservice.Roster
	username string
	password string
	calls    map[string]int
	failures map[string][]failure
	router   *mux.Router
}

// Option configures a Service.
type Option func(*Service)

// WithRoster replaces the seeded roster.
func WithRoster(r activityservice.Roster) Option {
	return func(s *Service) {
		s.roster = cloneRoster(r)
	}
}

// WithCredentials sets the only username/password accepted by the
// credential probe.
func WithCredentials(username, password string) Option {
	return func(s *Service) {
		s.username = username
		s.password = password
	}
}

// New creates a Service seeded with DefaultRoster.
func New(opts ...Option) *Service {
	s := &Service{
		roster:   DefaultRoster(),
		username: "teacher",
		password: "secret",
		calls:    make(map[string]int),
		failures: make(map[string][]failure),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := mux.NewRouter()
	r.UseEncodedPath()
	r.HandleFunc("/activities", s.handleList).Methods(http.MethodGet)
	r.HandleFunc("/activities/{name}/signup", s.handleSignup).Methods(http.MethodPost)
	r.HandleFunc("/activities/{name}/unregister", s.handleUnregister).Methods(http.MethodDelete)
	s.router = r
	return s
}

// Start runs a Service behind an httptest.Server that is closed when the test
// finishes.
func Start(t testing.TB, opts ...Option) (*Service, *httptest.Server) {
	t.Helper()
	s := New(opts...)
	ts := httptest.NewServer(s)
	t.Cleanup(ts.Close)
	return s, ts
}

// DefaultRoster returns the roster the service starts with.
func DefaultRoster() activityservice.Roster {
	return activityservice.Roster{
		"Chess Club": {
			Description:     "Learn strategies and compete in chess tournaments",
			Schedule:        "Fridays, 3:30 PM - 5:00 PM",
			MaxParticipants: 12,
			Participants:    []string{"michael@mergington.edu", "daniel@mergington.edu"},
		},
		"Programming Class": {
			Description:     "Learn programming fundamentals and build software projects",
			Schedule:        "Tuesdays and Thursdays, 3:30 PM - 4:30 PM",
			MaxParticipants: 20,
			Participants:    []string{"emma@mergington.edu", "sophia@mergington.edu"},
		},
		"Gym Class": {
			Description:     "Physical education and sports activities",
			Schedule:        "Mondays, Wednesdays, Fridays, 2:00 PM - 3:00 PM",
			MaxParticipants: 30,
			Participants:    []string{},
		},
	}
}

// ServeHTTP implements http.Handler.
func (s *Service) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Calls returns how many requests the given operation has received.
func (s *Service) Calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

// Roster returns a copy of the current roster.
func (s *Service) Roster() activityservice.Roster {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneRoster(s.roster)
}

// failure is a canned response that replaces the next request of an
// operation.
type failure struct {
	status      int
	contentType string
	body        string
}

func (f failure) write(w http.ResponseWriter) {
	w.Header().Set("Content-Type", f.contentType)
	w.WriteHeader(f.status)
	io.WriteString(w, f.body)
}

// FailNext makes the next n requests of op answer 500 with a non-JSON body.
func (s *Service) FailNext(op string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for range n {
		s.failures[op] = append(s.failures[op], failure{
			status:      http.StatusInternalServerError,
			contentType: "text/plain; charset=utf-8",
			body:        "internal error\n",
		})
	}
}

// RespondNext makes the next request of op answer status with the given JSON
// body instead of being served.
func (s *Service) RespondNext(op string, status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = append(s.failures[op], failure{
		status:      status,
		contentType: "application/json",
		body:        body,
	})
}

// begin counts a call and returns the canned failure queued for it, if any.
func (s *Service) begin(op string) (failure, bool) {
	s.calls[op]++
	queued := s.failures[op]
	if len(queued) == 0 {
		return failure{}, false
	}
	s.failures[op] = queued[1:]
	return queued[0], true
}

func (s *Service) handleList(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	op := OpList
	if r.Header.Get("Authorization") != "" {
		op = OpVerify
	}
	if f, fail := s.begin(op); fail {
		f.write(w)
		return
	}
	if op == OpVerify {
		user, pass, ok := r.BasicAuth()
		if !ok || user != s.username || pass != s.password {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Invalid credentials"})
			return
		}
	}
	writeJSON(w, http.StatusOK, s.roster)
}

func (s *Service) handleSignup(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if f, fail := s.begin(OpSignup); fail {
		f.write(w)
		return
	}
	name, email, ok := s.target(w, r)
	if !ok {
		return
	}
	activity := s.roster[name]
	if slices.Contains(activity.Participants, email) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "Student is already signed up"})
		return
	}
	if len(activity.Participants) >= activity.MaxParticipants {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "Activity is full"})
		return
	}
	activity.Participants = append(activity.Participants, email)
	s.roster[name] = activity
	writeJSON(w, http.StatusOK, map[string]string{"message": fmt.Sprintf("Signed up %s for %s", email, name)})
}

func (s *Service) handleUnregister(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if f, fail := s.begin(OpUnregister); fail {
		f.write(w)
		return
	}
	name, email, ok := s.target(w, r)
	if !ok {
		return
	}
	activity := s.roster[name]
	idx := slices.Index(activity.Participants, email)
	if idx < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "Student is not signed up for this activity"})
		return
	}
	activity.Participants = slices.Delete(activity.Participants, idx, idx+1)
	s.roster[name] = activity
	writeJSON(w, http.StatusOK, map[string]string{"message": fmt.Sprintf("Unregistered %s from %s", email, name)})
}

// target resolves the activity name and email of a participant request,
// writing the error response itself when either is unusable.
func (s *Service) target(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	name, err := url.PathUnescape(mux.Vars(r)["name"])
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "Invalid activity name"})
		return "", "", false
	}
	if _, ok := s.roster[name]; !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Activity not found"})
		return "", "", false
	}
	email := r.URL.Query().Get("email")
	if email == "" {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"detail": []string{"email is required"}})
		return "", "", false
	}
	return name, email, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func cloneRoster(r activityservice.Roster) activityservice.Roster {
	out := make(activityservice.Roster, len(r))
	for name, a := range r {
		a.Participants = slices.Clone(a.Participants)
		if a.Participants == nil {
			a.Participants = []string{}
		}
		out[name] = a
	}
	return out
}
