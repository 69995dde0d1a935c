package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"finch-forex-backend/internal/conversation"
	"finch-forex-backend/internal/gateway"
)

// ErrNoSubmitHandler is returned when a selection arrives but no submit
// handler was wired; the choice must never be silently discarded.
var ErrNoSubmitHandler = errors.New("beneficiary selection has no submit handler wired")

// SubmitFunc re-enters the normal message pipeline.
type SubmitFunc func(ctx context.Context, text string) (conversation.Message, error)

// Resolver turns a beneficiary choice into a follow-up natural-language
// command and feeds it back through the pipeline. The processor's language
// interface stays the single source of truth for intent resolution; there is
// no separate select-beneficiary endpoint.
type Resolver struct {
	submit SubmitFunc
}

func NewResolver(submit SubmitFunc) *Resolver {
	return &Resolver{submit: submit}
}

// Select synthesizes `pay {name} {amount} {currency}` for the chosen
// candidate and submits it as a fresh user message.
func (r *Resolver) Select(ctx context.Context, name, amount, currency string) (conversation.Message, error) {
	if r == nil || r.submit == nil {
		return conversation.Message{}, ErrNoSubmitHandler
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return conversation.Message{}, &gateway.Error{Kind: gateway.KindValidation, Message: "candidate name is required"}
	}
	if strings.TrimSpace(amount) == "" {
		amount = "0"
	}
	if strings.TrimSpace(currency) == "" {
		currency = "USD"
	}
	command := fmt.Sprintf("pay %s %s %s", name, amount, currency)
	return r.submit(ctx, command)
}
