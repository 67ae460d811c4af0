package activityservice

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
)

// ErrUnauthorized is matched by ServiceErrors carrying a 401 or 403 status.
var ErrUnauthorized = errors.New("unauthorized")

// Activity is a single entry of the roster as served by GET /activities.
type Activity struct {
	Description     string   `json:"description"`
	Schedule        string   `json:"schedule"`
	MaxParticipants int      `json:"max_participants"`
	Participants    []string `json:"participants"`
}

// SpotsLeft is derived on every call and may be negative if the service
// over-filled the activity.
func (a Activity) SpotsLeft() int {
	return a.MaxParticipants - len(a.Participants)
}

// Roster maps activity names to activities.
type Roster map[string]Activity

// Names returns the activity names in a stable order.
func (r Roster) Names() []string {
	names := make([]string, 0, len(r))
	for name := range r {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// confirmation is the success body of signup and unregister.
type confirmation struct {
	Message string `json:"message"`
}

// ServiceError is returned when the service answers with a non-2xx status.
// Detail holds the service-provided explanation and may be empty.
type ServiceError struct {
	Operation  string
	StatusCode int
	Detail     string
}

func (e *ServiceError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: service returned status %d", e.Operation, e.StatusCode)
	}
	return fmt.Sprintf("%s: service returned status %d: %s", e.Operation, e.StatusCode, e.Detail)
}

// Is lets errors.Is(err, ErrUnauthorized) match auth rejections.
func (e *ServiceError) Is(target error) bool {
	if target == ErrUnauthorized {
		return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
	}
	return false
}
