package store

import (
	"sync"

	"finch-forex-backend/internal/conversation"
	"finch-forex-backend/internal/gateway"
	"finch-forex-backend/internal/lifecycle"
)

// Session bundles the live per-session state: the conversation log, the
// session-scoped gateway client, and the card lifecycle controller. Built by
// the server layer, owned here.
type Session struct {
	ID        string
	Log       *conversation.Log
	Gateway   gateway.Client
	Lifecycle *lifecycle.Controller
}

// MemoryStore holds all live sessions plus the OAuth handshake state used by
// the login flow. The conversation log itself is only ever mutated through
// its own operations; the store just owns the map.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	// OAuth state mapping per session (CSRF protection), and the reverse
	// mapping to resolve callbacks.
	oauthStateBySession map[string]string
	sessionByOAuthState map[string]string
	// In-memory credential cache; the database or token file is authoritative.
	tokenBySession map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions:            make(map[string]*Session),
		oauthStateBySession: make(map[string]string),
		sessionByOAuthState: make(map[string]string),
		tokenBySession:      make(map[string]string),
	}
}

// Session returns the live session for sid, if any.
func (m *MemoryStore) Session(sid string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[sid]
	return s, ok
}

// GetOrCreate returns the session for sid, building it with build exactly
// once per new session.
func (m *MemoryStore) GetOrCreate(sid string, build func(sid string) *Session) *Session {
	m.mu.RLock()
	if s, ok := m.sessions[sid]; ok {
		m.mu.RUnlock()
		return s
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[sid]; ok {
		return s
	}
	s := build(sid)
	m.sessions[sid] = s
	return s
}

// OAuth helpers

func (m *MemoryStore) SetOAuthState(sid, state string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.oauthStateBySession[sid] = state
	m.sessionByOAuthState[state] = sid
}

func (m *MemoryStore) GetOAuthState(sid string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.oauthStateBySession[sid]
}

func (m *MemoryStore) ClearOAuthState(sid string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if st, ok := m.oauthStateBySession[sid]; ok {
		delete(m.sessionByOAuthState, st)
		delete(m.oauthStateBySession, sid)
	}
}

func (m *MemoryStore) GetSessionByOAuthState(state string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessionByOAuthState[state]
}

// Credential cache

func (m *MemoryStore) SetToken(sid, token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokenBySession[sid] = token
}

func (m *MemoryStore) GetToken(sid string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tokenBySession[sid]
}

func (m *MemoryStore) ClearToken(sid string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tokenBySession, sid)
}
