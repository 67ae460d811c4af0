package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nomis52/signupdesk/clients/activityservice"
	"github.com/nomis52/signupdesk/clients/activityservice/servicetest"
	"github.com/nomis52/signupdesk/eventloop"
	"github.com/nomis52/signupdesk/logging"
	"github.com/nomis52/signupdesk/messages"
	"github.com/nomis52/signupdesk/session"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestSession(t *testing.T) (*session.ActivityClient, *servicetest.Service) {
	t.Helper()
	svc, ts := servicetest.Start(t)
	client, err := activityservice.New(ts.URL, activityservice.WithLogger(testLogger()))
	require.NoError(t, err)

	loop := eventloop.New(eventloop.WithLogger(testLogger()))
	ctx, cancel := context.WithCancel(context.Background())
	go loop.Run(ctx)
	t.Cleanup(cancel)

	s, err := session.New(client, loop, session.WithLogger(testLogger()))
	require.NoError(t, err)
	require.NoError(t, s.RefreshRoster(context.Background()))
	return s, svc
}

func serve(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeAction(t *testing.T, w *httptest.ResponseRecorder) ActionResponse {
	t.Helper()
	var resp ActionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

type brokenView struct{}

func (brokenView) Snapshot() (session.Snapshot, error) {
	return session.Snapshot{}, eventloop.ErrStopped
}

func TestHealthHandler(t *testing.T) {
	s, _ := newTestSession(t)

	w := serve(NewHealthHandler(testLogger(), s), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/plain", w.Header().Get("Content-Type"))
	assert.Equal(t, "ok", w.Body.String())

	w = serve(NewHealthHandler(testLogger(), brokenView{}), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestStateHandler(t *testing.T) {
	s, _ := newTestSession(t)

	w := serve(NewStateHandler(testLogger(), s), http.MethodGet, "/api/state", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var snap session.Snapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.Len(t, snap.Roster.Cards, 3)
	assert.Equal(t, []string{"Chess Club", "Gym Class", "Programming Class"}, snap.Form.Choices)
	assert.Equal(t, session.ModalHidden, snap.Modal.State)

	w = serve(NewStateHandler(testLogger(), brokenView{}), http.MethodGet, "/api/state", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestPageHandler(t *testing.T) {
	s, _ := newTestSession(t)

	w := serve(NewPageHandler(testLogger(), s, messages.English(), "en"), http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/html; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "<strong>Availability:</strong> 10 spots left")
	assert.Contains(t, w.Body.String(), "No participants yet")
}

func TestRefreshHandler(t *testing.T) {
	s, svc := newTestSession(t)
	h := NewRefreshHandler(testLogger(), s, s)

	w := serve(h, http.MethodPost, "/api/refresh", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decodeAction(t, w).OK)
	assert.Equal(t, 2, svc.Calls(servicetest.OpList))

	svc.FailNext(servicetest.OpList, 1)
	w = serve(h, http.MethodPost, "/api/refresh", "")
	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeAction(t, w)
	assert.False(t, resp.OK)
	assert.Equal(t, "Failed to load activities. Please try again later.", resp.State.Roster.Failure)
}

func TestSignupHandler(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		wantStatus  int
		wantOK      bool
		wantText    string
		wantError   string
		wantSignups int
	}{
		{
			name:        "success",
			body:        `{"activity":"Gym Class","email":"new@mergington.edu"}`,
			wantStatus:  http.StatusOK,
			wantOK:      true,
			wantText:    "Signed up new@mergington.edu for Gym Class",
			wantSignups: 1,
		},
		{
			name:        "service rejection",
			body:        `{"activity":"Chess Club","email":"michael@mergington.edu"}`,
			wantStatus:  http.StatusOK,
			wantText:    "Student is already signed up",
			wantSignups: 1,
		},
		{
			name:       "missing email",
			body:       `{"activity":"Chess Club"}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "Please fill out the email field.",
		},
		{
			name:       "invalid email",
			body:       `{"activity":"Chess Club","email":"not-an-email"}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "Please enter a valid email address.",
		},
		{
			name:       "activity not offered",
			body:       `{"activity":"Underwater Basket Weaving","email":"new@mergington.edu"}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "Please select an activity.",
		},
		{
			name:       "unknown field",
			body:       `{"activity":"Chess Club","email":"a@x.edu","extra":1}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "unknown field",
		},
		{
			name:       "malformed body",
			body:       `{`,
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid request body",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, svc := newTestSession(t)
			w := serve(NewSignupHandler(testLogger(), s, s), http.MethodPost, "/api/signup", tt.body)
			require.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantSignups, svc.Calls(servicetest.OpSignup))
			if tt.wantStatus != http.StatusOK {
				var resp ErrorResponse
				require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
				assert.Contains(t, resp.Error, tt.wantError)
				return
			}
			resp := decodeAction(t, w)
			assert.Equal(t, tt.wantOK, resp.OK)
			assert.Equal(t, tt.wantText, resp.State.Message.Text)
		})
	}
}

func TestUnregisterHandler(t *testing.T) {
	s, svc := newTestSession(t)
	h := NewUnregisterHandler(testLogger(), s, s)

	w := serve(h, http.MethodPost, "/api/unregister", `{"activity":"Chess Club","email":"daniel@mergington.edu"}`)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeAction(t, w)
	assert.True(t, resp.OK)
	assert.Equal(t, "Unregistered daniel@mergington.edu from Chess Club", resp.State.Message.Text)
	assert.Equal(t, 1, svc.Calls(servicetest.OpUnregister))

	w = serve(h, http.MethodPost, "/api/unregister", `{"activity":"Chess Club","email":"daniel@mergington.edu"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, 1, svc.Calls(servicetest.OpUnregister))
}

type staleFinder struct{}

func (staleFinder) Participant(activity, email string) (session.Participant, bool) {
	return session.Participant{Activity: activity, Email: email}, true
}

func TestUnregisterHandler_StaleControl(t *testing.T) {
	s, _ := newTestSession(t)
	w := serve(NewUnregisterHandler(testLogger(), staleFinder{}, s), http.MethodPost, "/api/unregister",
		`{"activity":"Chess Club","email":"daniel@mergington.edu"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestLoginHandler(t *testing.T) {
	s, _ := newTestSession(t)
	h := NewLoginHandler(testLogger(), s, s)

	w := serve(h, http.MethodPost, "/api/login", `{"username":"teacher","password":"nope"}`)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeAction(t, w)
	assert.False(t, resp.OK)
	assert.Equal(t, "Invalid credentials.", resp.State.Modal.Message.Text)

	w = serve(h, http.MethodPost, "/api/login", `{"username":"teacher","password":"secret"}`)
	require.Equal(t, http.StatusOK, w.Code)
	resp = decodeAction(t, w)
	assert.True(t, resp.OK)
	assert.Equal(t, "Login successful!", resp.State.Modal.Message.Text)
}

func TestModalHandler(t *testing.T) {
	s, _ := newTestSession(t)
	open := NewModalHandler(testLogger(), s, s, ModalOpen)
	closeH := NewModalHandler(testLogger(), s, s, ModalClose)
	click := NewModalHandler(testLogger(), s, s, ModalClick)

	steps := []struct {
		name       string
		handler    http.Handler
		body       string
		wantStatus int
		wantState  session.ModalState
	}{
		{"open", open, "", http.StatusOK, session.ModalVisible},
		{"content click", click, `{"target":"content"}`, http.StatusOK, session.ModalVisible},
		{"bad target", click, `{"target":"header"}`, http.StatusBadRequest, session.ModalVisible},
		{"backdrop click", click, `{"target":"backdrop"}`, http.StatusOK, session.ModalHidden},
		{"reopen", open, "", http.StatusOK, session.ModalVisible},
		{"close", closeH, "", http.StatusOK, session.ModalHidden},
	}
	for _, step := range steps {
		w := serve(step.handler, http.MethodPost, "/api/modal", step.body)
		assert.Equal(t, step.wantStatus, w.Code, step.name)
		snap, err := s.Snapshot()
		require.NoError(t, err)
		assert.Equal(t, step.wantState, snap.Modal.State, step.name)
	}

	w := serve(NewModalHandler(testLogger(), s, s, "toggle"), http.MethodPost, "/api/modal", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

type mockLogProvider struct {
	logs map[string][]logging.LogEntry
}

func (m *mockLogProvider) GetAllLogs() map[string][]logging.LogEntry {
	return m.logs
}

func TestLogsHandler(t *testing.T) {
	provider := &mockLogProvider{logs: map[string][]logging.LogEntry{
		"signup":  {{Level: "INFO", Message: "request succeeded"}},
		"general": {{Level: "INFO", Message: "starting server"}},
	}}
	h := NewLogsHandler(provider)

	w := serve(h, http.MethodGet, "/api/logs", "")
	require.Equal(t, http.StatusOK, w.Code)
	var all map[string][]logging.LogEntry
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &all))
	assert.Len(t, all, 2)

	w = serve(h, http.MethodGet, "/api/logs?operation=signup", "")
	require.Equal(t, http.StatusOK, w.Code)
	var one map[string][]logging.LogEntry
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &one))
	require.Len(t, one["signup"], 1)
	assert.Equal(t, "request succeeded", one["signup"][0].Message)
	assert.NotContains(t, one, "general")
}

func TestWriteActionError(t *testing.T) {
	w := httptest.NewRecorder()
	writeAction(w, testLogger(), brokenView{}, errors.New("ignored"))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
