package users

import (
	"strings"
	"sync"
)

// Session is the signed-in user as seen by request handlers and controllers.
type Session struct {
	UserID      string `json:"uid"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
	PhotoURL    string `json:"photoURL"`
}

// Authenticated reports whether the session carries a usable user id.
func (s *Session) Authenticated() bool {
	return s != nil && strings.TrimSpace(s.UserID) != ""
}

// NameOrAnonymous returns the display name, falling back to "Anonymous".
func (s *Session) NameOrAnonymous() string {
	if s == nil || strings.TrimSpace(s.DisplayName) == "" {
		return "Anonymous"
	}
	return s.DisplayName
}

// SessionSource yields the current session, or nil when nobody is signed in.
type SessionSource interface {
	CurrentSession() *Session
}

// SessionHolder is a SessionSource whose session can be replaced on login and cleared on logout.
type SessionHolder struct {
	mu      sync.RWMutex
	session *Session
}

// NewSessionHolder returns a holder seeded with the provided session, which may be nil.
func NewSessionHolder(initial *Session) *SessionHolder {
	holder := &SessionHolder{}
	holder.Set(initial)
	return holder
}

// CurrentSession returns a copy of the held session.
func (h *SessionHolder) CurrentSession() *Session {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.session == nil {
		return nil
	}
	copied := *h.session
	return &copied
}

// Set replaces the held session.
func (h *SessionHolder) Set(session *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if session == nil {
		h.session = nil
		return
	}
	copied := *session
	h.session = &copied
}

// Clear removes the held session.
func (h *SessionHolder) Clear() {
	h.Set(nil)
}
