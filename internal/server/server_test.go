package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finch-forex-backend/internal/config"
	"finch-forex-backend/internal/gateway"
	"finch-forex-backend/internal/intent"
	"finch-forex-backend/internal/store"
	"finch-forex-backend/internal/types"
)

type fakeGateway struct {
	processRaw   intent.RawResult
	processErr   error
	confirmRes   gateway.ConfirmResult
	confirmErr   error
	intents      []intent.RawResult
	accounts     []gateway.Account
	processCalls []string
}

func (f *fakeGateway) Process(ctx context.Context, text string) (intent.RawResult, error) {
	f.processCalls = append(f.processCalls, text)
	return f.processRaw, f.processErr
}

func (f *fakeGateway) Confirm(ctx context.Context, paymentID string) (gateway.ConfirmResult, error) {
	return f.confirmRes, f.confirmErr
}

func (f *fakeGateway) Reject(ctx context.Context, paymentID string) (gateway.ConfirmResult, error) {
	return f.confirmRes, f.confirmErr
}

func (f *fakeGateway) ListPaymentIntents(ctx context.Context) ([]intent.RawResult, error) {
	return f.intents, nil
}

func (f *fakeGateway) GetAccounts(ctx context.Context) ([]gateway.Account, error) {
	return f.accounts, nil
}

func newTestServer(t *testing.T, gw *fakeGateway) *Server {
	return newTestServerWithConfig(t, gw, nil)
}

func newTestServerWithConfig(t *testing.T, gw *fakeGateway, mutate func(*config.Config)) *Server {
	t.Helper()
	cfg := config.Config{
		Port:          "8080",
		AllowedOrigin: "http://localhost:3000",
		ProcessorURL:  "http://unused.invalid",
		TokenFile:     filepath.Join(t.TempDir(), "token.json"),
		RepliesFile:   filepath.Join(t.TempDir(), "missing.yaml"),
	}
	if mutate != nil {
		mutate(&cfg)
	}
	s, err := NewServer(cfg)
	require.NoError(t, err)
	s.newGateway = func(creds gateway.CredentialProvider) gateway.Client { return gw }
	return s
}

func postJSON(t *testing.T, s *Server, path string, body any, sid string) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	if sid != "" {
		req.Header.Set("X-Session-Id", sid)
	}
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	return w
}

func get(t *testing.T, s *Server, path, sid string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if sid != "" {
		req.Header.Set("X-Session-Id", sid)
	}
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, &fakeGateway{})
	w := get(t, s, "/api/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"ok"`)
}

func TestChatPaymentFlow(t *testing.T) {
	gw := &fakeGateway{processRaw: intent.RawResult{
		IntentType: "payment",
		Result: map[string]any{
			"payment_id":  "p1",
			"amount":      "500.00",
			"currency":    "USD",
			"beneficiary": map[string]any{"name": "Bob Smith"},
		},
	}}
	s := newTestServer(t, gw)

	w := postJSON(t, s, "/api/chat", types.ChatRequest{Message: "pay $500 to bob"}, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Session-Id"))

	var resp types.ChatResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.SessionID)
	require.NotNil(t, resp.Message.Action)
	assert.Equal(t, intent.KindPaymentInitiation, resp.Message.Action.Kind)
	assert.Equal(t, "p1", resp.Message.Action.Payment.PaymentID)

	// a session cookie was issued for the fresh session
	found := false
	for _, c := range w.Result().Cookies() {
		if c.Name == CookieName && c.Value == resp.SessionID {
			found = true
		}
	}
	assert.True(t, found, "session cookie set")
}

// Empty input is rejected with no side effects: no processor call, no session
// minted, no cookie set.
func TestChatEmptyMessage(t *testing.T) {
	gw := &fakeGateway{}
	s := newTestServer(t, gw)

	w := postJSON(t, s, "/api/chat", types.ChatRequest{Message: "  "}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, gw.processCalls)
	assert.Empty(t, w.Result().Cookies())
	assert.Empty(t, w.Header().Get("X-Session-Id"))
}

func TestChatInvalidBody(t *testing.T) {
	s := newTestServer(t, &fakeGateway{})
	req := httptest.NewRequest(http.MethodPost, "/api/chat", bytes.NewReader([]byte(`{`)))
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChatAuthExpired(t *testing.T) {
	gw := &fakeGateway{processErr: &gateway.Error{Kind: gateway.KindAuthExpired, Message: "unauthorized"}}
	s := newTestServer(t, gw)

	w := postJSON(t, s, "/api/chat", types.ChatRequest{Message: "pay bob"}, "sid-1")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	var resp types.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "session_expired", resp.Error)
}

func TestChatSessionContinuity(t *testing.T) {
	gw := &fakeGateway{processRaw: intent.RawResult{IntentType: "smalltalk", Message: "hi"}}
	s := newTestServer(t, gw)

	w1 := postJSON(t, s, "/api/chat", types.ChatRequest{Message: "hello"}, "sid-1")
	require.Equal(t, http.StatusOK, w1.Code)
	w2 := postJSON(t, s, "/api/chat", types.ChatRequest{Message: "hello again"}, "sid-1")
	require.Equal(t, http.StatusOK, w2.Code)

	w := get(t, s, "/api/chat/history", "sid-1")
	require.Equal(t, http.StatusOK, w.Code)
	var hist types.HistoryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &hist))
	assert.Len(t, hist.Messages, 4)
	assert.Equal(t, "sid-1", hist.SessionID)
}

func TestSelectSynthesizesCommand(t *testing.T) {
	gw := &fakeGateway{processRaw: intent.RawResult{
		IntentType: "payment",
		Result:     map[string]any{"payment_id": "p2", "amount": "200", "currency": "EUR"},
	}}
	s := newTestServer(t, gw)

	w := postJSON(t, s, "/api/chat/select", types.SelectRequest{Name: "Alice Martin", Amount: "200", Currency: "EUR"}, "sid-1")
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, gw.processCalls, 1)
	assert.Equal(t, "pay Alice Martin 200 EUR", gw.processCalls[0])
}

func TestSelectRequiresName(t *testing.T) {
	gw := &fakeGateway{}
	s := newTestServer(t, gw)

	w := postJSON(t, s, "/api/chat/select", types.SelectRequest{Amount: "200"}, "sid-1")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, gw.processCalls)
}

func TestConfirmPayment(t *testing.T) {
	gw := &fakeGateway{confirmRes: gateway.ConfirmResult{PaymentID: "p1", Status: "completed"}}
	s := newTestServer(t, gw)

	w := postJSON(t, s, "/api/payments/p1/confirm", struct{}{}, "sid-1")
	require.Equal(t, http.StatusOK, w.Code)

	var resp types.PaymentStatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "p1", resp.PaymentID)
	assert.Equal(t, "success", string(resp.State.Status))
}

// A failed confirm still answers 200; the error rides on the card state.
func TestConfirmFailureInlineState(t *testing.T) {
	gw := &fakeGateway{confirmErr: &gateway.Error{Kind: gateway.KindAPI, Message: "insufficient funds"}}
	s := newTestServer(t, gw)

	w := postJSON(t, s, "/api/payments/p1/confirm", struct{}{}, "sid-1")
	require.Equal(t, http.StatusOK, w.Code)

	var resp types.PaymentStatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "error", string(resp.State.Status))
	assert.Equal(t, "insufficient funds", resp.State.ErrorMessage)
}

func TestHistoryReplaysPriorIntents(t *testing.T) {
	gw := &fakeGateway{intents: []intent.RawResult{
		{IntentType: "payment", Result: map[string]any{"payment_id": "old-1", "amount": "50", "currency": "GBP"}},
	}}
	s := newTestServer(t, gw)

	w := get(t, s, "/api/chat/history", "sid-9")
	require.Equal(t, http.StatusOK, w.Code)

	var hist types.HistoryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &hist))
	require.Len(t, hist.Messages, 1)
	require.NotNil(t, hist.Messages[0].Action)
	assert.Equal(t, "old-1", hist.Messages[0].Action.Payment.PaymentID)
}

// Auth status reports the same fallback chain the gateway credential uses:
// session cache, database, token file, env token.
func TestAuthStatus(t *testing.T) {
	type statusResp struct {
		Authenticated bool   `json:"authenticated"`
		AccountID     string `json:"accountId"`
	}
	readStatus := func(t *testing.T, w *httptest.ResponseRecorder) statusResp {
		t.Helper()
		require.Equal(t, http.StatusOK, w.Code)
		var resp statusResp
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		return resp
	}

	t.Run("no credentials anywhere", func(t *testing.T) {
		s := newTestServer(t, &fakeGateway{})
		assert.False(t, readStatus(t, get(t, s, "/api/auth/status", "")).Authenticated)
		assert.False(t, readStatus(t, get(t, s, "/api/auth/status", "sid-1")).Authenticated)
	})

	t.Run("env token authenticates anonymous requests", func(t *testing.T) {
		s := newTestServerWithConfig(t, &fakeGateway{}, func(cfg *config.Config) {
			cfg.ProcessorToken = "env-tok"
		})
		assert.True(t, readStatus(t, get(t, s, "/api/auth/status", "")).Authenticated)
	})

	t.Run("token file authenticates with account id", func(t *testing.T) {
		s := newTestServer(t, &fakeGateway{})
		require.NoError(t, s.tokenStore.Write(&store.SessionToken{AccessToken: "tok", AccountID: "acc-7"}))
		resp := readStatus(t, get(t, s, "/api/auth/status", ""))
		assert.True(t, resp.Authenticated)
		assert.Equal(t, "acc-7", resp.AccountID)
	})

	t.Run("session token cache wins", func(t *testing.T) {
		s := newTestServer(t, &fakeGateway{})
		s.store.SetToken("sid-1", "cached")
		assert.True(t, readStatus(t, get(t, s, "/api/auth/status", "sid-1")).Authenticated)
		assert.False(t, readStatus(t, get(t, s, "/api/auth/status", "sid-2")).Authenticated)
	})
}

func TestAccounts(t *testing.T) {
	gw := &fakeGateway{accounts: []gateway.Account{{ID: "acc-1", Currency: "USD", Balance: "1204.50"}}}
	s := newTestServer(t, gw)

	w := get(t, s, "/api/accounts", "sid-1")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"1204.50"`)
}
