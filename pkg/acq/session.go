package acq

import "sync"

// Session status values.
const (
	StatusIdle    = "idle"
	StatusRunning = "running"
	StatusStopped = "stopped"
	StatusFailed  = "failed"
)

// Session is the externally inspectable state of one acquisition run: a
// status string and the latest published fields. It is a snapshot surface
// for clients, not the system of record.
type Session struct {
	mu     sync.Mutex
	status string
	fields map[string]any
}

// Snapshot is a point-in-time copy of the session state.
type Snapshot struct {
	Status string         `json:"status"`
	Fields map[string]any `json:"fields"`
}

// NewSession creates an idle session.
func NewSession() *Session {
	return &Session{
		status: StatusIdle,
		fields: make(map[string]any),
	}
}

// SetStatus records the session status.
func (s *Session) SetStatus(status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
}

// Status returns the current session status.
func (s *Session) Status() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// UpdateFields merges the given fields into the session's field map.
func (s *Session) UpdateFields(fields map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range fields {
		s.fields[k] = v
	}
}

// Snapshot returns a copy of the session state for external inspection.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	fields := make(map[string]any, len(s.fields))
	for k, v := range s.fields {
		fields[k] = v
	}
	return Snapshot{Status: s.status, Fields: fields}
}
