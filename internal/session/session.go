// Package session tracks in-flight bulk operations so observers can
// poll progress by id. Sessions live only for the process lifetime.
package session

import (
	"sync"

	"github.com/google/uuid"

	"coldmailer/internal/mailer"
)

// Status of a bulk session.
const (
	StatusPending    = "pending"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusError      = "error"
)

// Session is a progress snapshot of one bulk operation.
type Session struct {
	ID           string             `json:"session_id"`
	Total        int                `json:"total"`
	Current      int                `json:"current"`
	CurrentEmail string             `json:"current_email"`
	Status       string             `json:"status"`
	Sent         int                `json:"sent"`
	Failed       int                `json:"failed"`
	Skipped      int                `json:"skipped"`
	Errors       []mailer.SendError `json:"errors"`
}

// Registry is a concurrency-safe map of running and finished sessions.
// The bulk worker is the only writer for its session; observers read
// copies.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry creates an empty session registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Create registers a new session in the pending state and returns its id.
func (r *Registry) Create() string {
	id := uuid.New().String()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[id] = &Session{
		ID:     id,
		Status: StatusPending,
		Errors: []mailer.SendError{},
	}
	return id
}

// Get returns a copy of the session, or false when unknown.
func (r *Registry) Get(id string) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[id]
	if !ok {
		return Session{}, false
	}
	return copySession(s), true
}

// Update applies fn to the session under the write lock.
func (r *Registry) Update(id string, fn func(*Session)) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[id]; ok {
		fn(s)
	}
}

// Delete removes a session from the registry.
func (r *Registry) Delete(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

func copySession(s *Session) Session {
	dup := *s
	dup.Errors = make([]mailer.SendError, len(s.Errors))
	copy(dup.Errors, s.Errors)
	return dup
}
