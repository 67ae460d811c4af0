package messages

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnglish(t *testing.T) {
	c := English()

	tests := []struct {
		id   string
		data map[string]any
		want string
	}{
		{id: SignupFailed, want: "Failed to sign up. Please try again."},
		{id: UnregisterFailed, want: "Failed to unregister. Please try again."},
		{id: GenericError, want: "An error occurred"},
		{id: RosterFailed, want: "Failed to load activities. Please try again later."},
		{id: NoParticipants, want: "No participants yet"},
		{id: LoginSuccess, want: "Login successful!"},
		{id: LoginInvalid, want: "Invalid credentials."},
		{id: LoginFailed, want: "Login failed."},
		{id: SpotsLeft, data: map[string]any{"Count": 7}, want: "7 spots left"},
		{id: SpotsLeft, data: map[string]any{"Count": -1}, want: "-1 spots left"},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			assert.Equal(t, tt.want, c.T(tt.id, tt.data))
		})
	}
}

func TestFrench(t *testing.T) {
	c, err := New("fr", slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	assert.Equal(t, "fr", c.Locale().String())
	assert.Equal(t, "Connexion réussie !", c.T(LoginSuccess, nil))
	assert.Equal(t, "3 places restantes", c.T(SpotsLeft, map[string]any{"Count": 3}))
}

func TestUnsupportedLocaleFallsBackToEnglish(t *testing.T) {
	c, err := New("de", slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	assert.Equal(t, "Login failed.", c.T(LoginFailed, nil))
}

func TestUnknownID(t *testing.T) {
	c, err := New("en", slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	assert.Equal(t, "does_not_exist", c.T("does_not_exist", nil))
}

func TestInvalidLocale(t *testing.T) {
	_, err := New("!!", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid locale")
}
