package types

import (
	"finch-forex-backend/internal/conversation"
	"finch-forex-backend/internal/lifecycle"
)

type ChatRequest struct {
	Message string `json:"message"`
}

// SelectRequest resolves a beneficiary disambiguation card.
type SelectRequest struct {
	Name     string `json:"name"`
	Amount   string `json:"amount,omitempty"`
	Currency string `json:"currency,omitempty"`
}

type ChatResponse struct {
	SessionID string               `json:"sessionId"`
	Message   conversation.Message `json:"message"`
}

type HistoryResponse struct {
	SessionID string                 `json:"sessionId"`
	Messages  []conversation.Message `json:"messages"`
}

// PaymentStatusResponse is the inline card state after a confirm/reject.
type PaymentStatusResponse struct {
	PaymentID string          `json:"paymentId"`
	State     lifecycle.State `json:"state"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
