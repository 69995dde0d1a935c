package store

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finch-forex-backend/internal/conversation"
)

func TestGetOrCreateBuildsOnce(t *testing.T) {
	m := NewMemoryStore()

	builds := 0
	var mu sync.Mutex
	build := func(sid string) *Session {
		mu.Lock()
		builds++
		mu.Unlock()
		return &Session{ID: sid, Log: conversation.NewLog()}
	}

	var wg sync.WaitGroup
	results := make([]*Session, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = m.GetOrCreate("sid-1", build)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, builds)
	for _, s := range results {
		assert.Same(t, results[0], s)
	}

	got, ok := m.Session("sid-1")
	require.True(t, ok)
	assert.Same(t, results[0], got)

	_, ok = m.Session("sid-2")
	assert.False(t, ok)
}

func TestOAuthStateRoundTrip(t *testing.T) {
	m := NewMemoryStore()
	m.SetOAuthState("sid-1", "state-abc")

	assert.Equal(t, "state-abc", m.GetOAuthState("sid-1"))
	assert.Equal(t, "sid-1", m.GetSessionByOAuthState("state-abc"))

	m.ClearOAuthState("sid-1")
	assert.Empty(t, m.GetOAuthState("sid-1"))
	assert.Empty(t, m.GetSessionByOAuthState("state-abc"))
}

func TestTokenCache(t *testing.T) {
	m := NewMemoryStore()
	assert.Empty(t, m.GetToken("sid-1"))

	m.SetToken("sid-1", "tok")
	assert.Equal(t, "tok", m.GetToken("sid-1"))

	m.ClearToken("sid-1")
	assert.Empty(t, m.GetToken("sid-1"))
}

func TestFileTokenStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "token.json")
	s := NewFileTokenStore(path)

	// missing file is not an error
	tok, err := s.Read()
	require.NoError(t, err)
	assert.Nil(t, tok)

	require.NoError(t, s.Write(&SessionToken{AccessToken: "tok-1", TokenType: "bearer", AccountID: "acc-1"}))
	tok, err = s.Read()
	require.NoError(t, err)
	require.NotNil(t, tok)
	assert.Equal(t, "tok-1", tok.AccessToken)
	assert.Equal(t, "acc-1", tok.AccountID)

	require.NoError(t, s.Clear())
	tok, err = s.Read()
	require.NoError(t, err)
	assert.Nil(t, tok)

	// clearing twice is fine
	require.NoError(t, s.Clear())
}

func TestFileTokenStoreRejectsEmptyToken(t *testing.T) {
	s := NewFileTokenStore(filepath.Join(t.TempDir(), "token.json"))
	assert.Error(t, s.Write(nil))
	assert.Error(t, s.Write(&SessionToken{}))
}
