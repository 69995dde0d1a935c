package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingHandler struct {
	calls int32
	fn    http.HandlerFunc
}

func (h *countingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	atomic.AddInt32(&h.calls, 1)
	h.fn(w, r)
}

func (h *countingHandler) count() int32 { return atomic.LoadInt32(&h.calls) }

func TestProcessSuccess(t *testing.T) {
	h := &countingHandler{fn: func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/process", r.URL.Path)
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "pay $500 to bob", body["text"])

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"intent_type":"payment","confidence":0.95,"result":{"payment_id":"p1","amount":"500.00"}}`))
	}}
	srv := httptest.NewServer(h)
	defer srv.Close()

	c := NewHTTPClient(srv.URL, StaticCredential("tok-1"))
	raw, err := c.Process(context.Background(), "pay $500 to bob")
	require.NoError(t, err)
	assert.Equal(t, "payment", raw.IntentType)
	assert.InDelta(t, 0.95, raw.Confidence, 1e-9)
	assert.Equal(t, "p1", raw.Result["payment_id"])
	assert.Equal(t, int32(1), h.count())
}

// Empty text is rejected before any network traffic.
func TestProcessEmptyTextNoRequest(t *testing.T) {
	h := &countingHandler{fn: func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}}
	srv := httptest.NewServer(h)
	defer srv.Close()

	c := NewHTTPClient(srv.URL, nil)
	_, err := c.Process(context.Background(), "   ")
	require.Error(t, err)
	assert.True(t, IsValidation(err))
	assert.Equal(t, int32(0), h.count())
}

func TestProcessUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"token expired"}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, StaticCredential("stale"))
	_, err := c.Process(context.Background(), "pay bob")
	require.Error(t, err)
	assert.True(t, IsAuthExpired(err))
}

func TestProcessAPIErrorShapes(t *testing.T) {
	cases := []struct {
		name     string
		body     string
		wantKind ErrorKind
		wantMsg  string
	}{
		{"error field", `{"error":"beneficiary not found"}`, KindAPI, "beneficiary not found"},
		{"code and message", `{"code":"RATE_UNAVAILABLE","message":"no rate for pair"}`, KindAPI, "no rate for pair"},
		{"non-json body", `<html>bad gateway</html>`, KindParse, "unexpected status 502"},
		{"empty body", ``, KindParse, "unexpected status 502"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
				w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			c := NewHTTPClient(srv.URL, nil)
			_, err := c.Process(context.Background(), "pay bob")
			require.Error(t, err)
			var gerr *Error
			require.ErrorAs(t, err, &gerr)
			assert.Equal(t, tc.wantKind, gerr.Kind)
			assert.Equal(t, tc.wantMsg, gerr.Message)
			assert.Equal(t, tc.body, gerr.Raw)
		})
	}
}

func TestProcessUndecodableSuccessBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"intent_type": `))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, nil)
	_, err := c.Process(context.Background(), "pay bob")
	require.Error(t, err)
	var gerr *Error
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, KindParse, gerr.Kind)
	assert.Equal(t, `{"intent_type": `, gerr.Raw)
}

func TestProcessNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c := NewHTTPClient(srv.URL, nil)
	_, err := c.Process(context.Background(), "pay bob")
	require.Error(t, err)
	var gerr *Error
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, KindNetwork, gerr.Kind)
	assert.NotNil(t, gerr.Cause)
}

func TestConfirmAndReject(t *testing.T) {
	var lastPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lastPath = r.URL.Path
		assert.Equal(t, http.MethodPost, r.Method)
		w.Write([]byte(`{"payment_id":"p1","status":"completed"}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, nil)

	res, err := c.Confirm(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "/api/v1/process/payment/p1/confirm", lastPath)
	assert.Equal(t, "completed", res.Status)

	_, err = c.Reject(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "/api/v1/process/payment/p1/reject", lastPath)
}

func TestConfirmEmptyIDNoRequest(t *testing.T) {
	h := &countingHandler{fn: func(w http.ResponseWriter, r *http.Request) {}}
	srv := httptest.NewServer(h)
	defer srv.Close()

	c := NewHTTPClient(srv.URL, nil)
	_, err := c.Confirm(context.Background(), "")
	require.Error(t, err)
	assert.True(t, IsValidation(err))
	assert.Equal(t, int32(0), h.count())
}

func TestListPaymentIntents(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/payment-intents", r.URL.Path)
		w.Write([]byte(`[{"intent_type":"payment","result":{"payment_id":"p1"}}]`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, nil)
	raws, err := c.ListPaymentIntents(context.Background())
	require.NoError(t, err)
	require.Len(t, raws, 1)
	assert.Equal(t, "payment", raws[0].IntentType)
}

func TestGetAccounts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/accounts", r.URL.Path)
		w.Write([]byte(`[{"id":"acc-1","currency":"USD","balance":"1204.50"}]`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, nil)
	accounts, err := c.GetAccounts(context.Background())
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, "1204.50", accounts[0].Balance)
}

func TestUserMessagePerKind(t *testing.T) {
	assert.Equal(t, "boom", UserMessage(&Error{Kind: KindValidation, Message: "boom"}))
	assert.Equal(t, "no rate", UserMessage(&Error{Kind: KindAPI, Message: "no rate"}))
	assert.NotEmpty(t, UserMessage(&Error{Kind: KindNetwork, Message: "dial tcp: refused"}))
	assert.NotEmpty(t, UserMessage(&Error{Kind: KindParse}))
	assert.NotEmpty(t, UserMessage(context.DeadlineExceeded))
}
