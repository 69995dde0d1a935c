package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"finch-forex-backend/internal/intent"
)

// CredentialProvider supplies the bearer token attached to every request.
// Injected explicitly so the gateway is testable without real session storage.
type CredentialProvider interface {
	Token() string
}

// StaticCredential is a fixed-token provider, used in tests and for the
// env-configured fallback token.
type StaticCredential string

func (s StaticCredential) Token() string { return string(s) }

// ConfirmResult is the processor's reply to a confirm or reject command.
type ConfirmResult struct {
	PaymentID string `json:"payment_id"`
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
}

// Account is one balance row for the header panel.
type Account struct {
	ID       string `json:"id"`
	Currency string `json:"currency"`
	Balance  string `json:"balance"`
}

// Client is the surface the rest of the code programs against.
type Client interface {
	Process(ctx context.Context, text string) (intent.RawResult, error)
	Confirm(ctx context.Context, paymentID string) (ConfirmResult, error)
	Reject(ctx context.Context, paymentID string) (ConfirmResult, error)
	ListPaymentIntents(ctx context.Context) ([]intent.RawResult, error)
	GetAccounts(ctx context.Context) ([]Account, error)
}

// HTTPClient talks to the intent-processing service. It sends exactly one
// outbound request per call and never retries; retry is a caller policy.
type HTTPClient struct {
	httpClient *http.Client
	baseURL    string
	creds      CredentialProvider
}

func NewHTTPClient(baseURL string, creds CredentialProvider) *HTTPClient {
	return &HTTPClient{
		httpClient: &http.Client{Timeout: 20 * time.Second},
		baseURL:    strings.TrimRight(baseURL, "/"),
		creds:      creds,
	}
}

// Process sends raw user text for intent classification. Empty input is a
// caller-side precondition violation and is rejected before any network call.
func (c *HTTPClient) Process(ctx context.Context, text string) (intent.RawResult, error) {
	if strings.TrimSpace(text) == "" {
		return intent.RawResult{}, validationError("text is required")
	}
	body, _ := json.Marshal(map[string]string{"text": text})
	var out intent.RawResult
	if err := c.postJSON(ctx, "/api/v1/process", body, &out); err != nil {
		return intent.RawResult{}, err
	}
	return out, nil
}

func (c *HTTPClient) Confirm(ctx context.Context, paymentID string) (ConfirmResult, error) {
	return c.paymentCommand(ctx, paymentID, "confirm")
}

func (c *HTTPClient) Reject(ctx context.Context, paymentID string) (ConfirmResult, error) {
	return c.paymentCommand(ctx, paymentID, "reject")
}

func (c *HTTPClient) paymentCommand(ctx context.Context, paymentID, command string) (ConfirmResult, error) {
	if strings.TrimSpace(paymentID) == "" {
		return ConfirmResult{}, validationError("payment id is required")
	}
	path := fmt.Sprintf("/api/v1/process/payment/%s/%s", url.PathEscape(paymentID), command)
	var out ConfirmResult
	if err := c.postJSON(ctx, path, nil, &out); err != nil {
		return ConfirmResult{}, err
	}
	return out, nil
}

// ListPaymentIntents returns the session's prior intents for history restore.
func (c *HTTPClient) ListPaymentIntents(ctx context.Context) ([]intent.RawResult, error) {
	var out []intent.RawResult
	if err := c.getJSON(ctx, "/api/v1/payment-intents", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) GetAccounts(ctx context.Context) ([]Account, error) {
	var out []Account
	if err := c.getJSON(ctx, "/api/v1/accounts", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ---- helpers ----

func (c *HTTPClient) do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, &Error{Kind: KindValidation, Message: err.Error(), Cause: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.creds != nil {
		if tok := c.creds.Token(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, networkError(err)
	}
	return resp, nil
}

func (c *HTTPClient) postJSON(ctx context.Context, path string, body []byte, out any) error {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	resp, err := c.do(ctx, http.MethodPost, path, rd)
	if err != nil {
		return err
	}
	return c.decode(resp, out)
}

func (c *HTTPClient) getJSON(ctx context.Context, path string, out any) error {
	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	return c.decode(resp, out)
}

func (c *HTTPClient) decode(resp *http.Response, out any) error {
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return networkError(err)
	}
	if resp.StatusCode == http.StatusUnauthorized {
		return &Error{Kind: KindAuthExpired, Message: "unauthorized"}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apiError(resp.StatusCode, raw)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return &Error{Kind: KindParse, Message: "undecodable response body", Raw: string(raw), Cause: err}
	}
	return nil
}

// apiError extracts the processor's error body. Both observed shapes are
// accepted: {"error": "..."} and {"code": ..., "message": ..., "details": ...}.
func apiError(status int, raw []byte) *Error {
	var body struct {
		Error   string `json:"error"`
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &body); err == nil {
		msg := body.Message
		if msg == "" {
			msg = body.Error
		}
		if msg != "" {
			return &Error{Kind: KindAPI, Code: body.Code, Message: msg, Raw: string(raw)}
		}
	}
	return &Error{
		Kind:    KindParse,
		Message: fmt.Sprintf("unexpected status %d", status),
		Raw:     string(raw),
	}
}
