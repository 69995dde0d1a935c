package server

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"finch-forex-backend/internal/store"
)

// GET /api/auth/status
// Returns { authenticated: bool, accountId?: string }
func (s *Server) handleAuthStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	sid := getSessionID(r)

	var authed bool
	var accountID string

	// Same fallback order as sessionCredential.Token: memory cache, database,
	// token file, env token.
	if sid != "" && s.store.GetToken(sid) != "" {
		authed = true
	}
	if !authed && sid != "" && s.databaseStore != nil {
		if auth, err := s.databaseStore.GetSessionAuth(sid); err == nil && auth != nil {
			authed = true
			accountID = auth.AccountID
		}
	}
	if !authed {
		if tok, _ := s.tokenStore.Read(); tok != nil {
			authed = true
			accountID = tok.AccountID
		}
	}
	if !authed && s.cfg.ProcessorToken != "" {
		authed = true
	}

	resp := map[string]any{"authenticated": authed}
	if accountID != "" {
		resp["accountId"] = accountID
	}
	_ = json.NewEncoder(w).Encode(resp)
}

// GET /api/auth/login
// Initiates the OAuth flow and returns { url } to redirect the browser
func (s *Server) handleAuthLogin(w http.ResponseWriter, r *http.Request) {
	if s.oauthCfg == nil || s.oauthCfg.ClientID == "" || s.oauthCfg.ClientSecret == "" {
		s.writeError(w, http.StatusBadRequest, "platform oauth not configured")
		return
	}
	sid := getOrCreateSessionID(r, w)
	state := randomState()
	s.store.SetOAuthState(sid, state)
	url := s.oauthCfg.AuthCodeURL(state)
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Session-Id", sid)
	_ = json.NewEncoder(w).Encode(map[string]string{"url": url, "sessionId": sid})
}

// GET /api/auth/callback?code=...&state=...
// Exchanges the code for a token and persists it for the session
func (s *Server) handleAuthCallback(w http.ResponseWriter, r *http.Request) {
	if s.oauthCfg == nil {
		s.writeError(w, http.StatusBadRequest, "platform oauth not configured")
		return
	}
	state := r.URL.Query().Get("state")
	code := r.URL.Query().Get("code")
	if state == "" || code == "" {
		s.writeError(w, http.StatusBadRequest, "missing state or code")
		return
	}
	sid := s.store.GetSessionByOAuthState(state)
	if sid == "" || s.store.GetOAuthState(sid) != state {
		s.writeError(w, http.StatusBadRequest, "invalid oauth state")
		return
	}

	tok, err := s.oauthCfg.Exchange(r.Context(), code)
	if err != nil {
		s.writeError(w, http.StatusBadGateway, "token exchange failed")
		return
	}

	accountID := strings.TrimSpace(fmt.Sprint(tok.Extra("account_id")))
	if accountID == "<nil>" {
		accountID = ""
	}

	if s.databaseStore != nil {
		if err := s.databaseStore.SaveSessionAuth(sid, tok.AccessToken, accountID); err != nil {
			s.writeError(w, http.StatusInternalServerError, "failed to save session auth")
			return
		}
	} else {
		if err := s.tokenStore.Write(&store.SessionToken{AccessToken: tok.AccessToken, TokenType: tok.TokenType, AccountID: accountID}); err != nil {
			s.writeError(w, http.StatusInternalServerError, "token persist failed")
			return
		}
	}
	s.store.SetToken(sid, tok.AccessToken)
	s.store.ClearOAuthState(sid)

	// Share the session between the popup and the main window
	SetSessionCookie(w, sid)

	http.Redirect(w, r, fmt.Sprintf("%s?auth=success", s.cfg.FrontendURL), http.StatusFound)
}

func randomState() string {
	var b [24]byte
	_, _ = rand.Read(b[:])
	return base64.RawURLEncoding.EncodeToString(b[:])
}
