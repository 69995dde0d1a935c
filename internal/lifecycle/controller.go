package lifecycle

import (
	"context"
	"log"
	"strings"
	"sync"

	"finch-forex-backend/internal/conversation"
	"finch-forex-backend/internal/gateway"
)

type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// State is the ephemeral per-payment machine state, read-only to renderers.
type State struct {
	Status       Status `json:"status"`
	ErrorMessage string `json:"errorMessage,omitempty"`
}

// CommandClient is the slice of the gateway the controller needs.
type CommandClient interface {
	Confirm(ctx context.Context, paymentID string) (gateway.ConfirmResult, error)
	Reject(ctx context.Context, paymentID string) (gateway.ConfirmResult, error)
}

// Controller drives confirm/reject decisions for displayed cards. Each
// paymentID owns an independent machine: idle → loading → {success, error},
// with error → loading allowed for retry and success terminal. The loading
// guard ensures at most one in-flight request per paymentID.
type Controller struct {
	mu     sync.Mutex
	states map[string]*State

	client CommandClient
	chat   *conversation.Log

	// Fired after a successful transition, outside the lock.
	OnConfirmed func(paymentID string)
	OnRejected  func(paymentID string)
}

func NewController(client CommandClient, chat *conversation.Log) *Controller {
	return &Controller{
		states: make(map[string]*State),
		client: client,
		chat:   chat,
	}
}

// StateFor returns the current machine state for a paymentID, defaulting to idle.
func (c *Controller) StateFor(paymentID string) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if st, ok := c.states[paymentID]; ok {
		return *st
	}
	return State{Status: StatusIdle}
}

// Confirm transitions the card to success and patches its logical status to
// "completed". A call while loading or after success is a no-op; a failed
// call leaves the card in error with retry allowed.
func (c *Controller) Confirm(ctx context.Context, paymentID string) error {
	return c.dispatch(ctx, paymentID, c.client.Confirm, "completed", func(id string) {
		if c.OnConfirmed != nil {
			c.OnConfirmed(id)
		}
	})
}

// Reject is symmetric to Confirm with terminal card status "rejected".
func (c *Controller) Reject(ctx context.Context, paymentID string) error {
	return c.dispatch(ctx, paymentID, c.client.Reject, "rejected", func(id string) {
		if c.OnRejected != nil {
			c.OnRejected(id)
		}
	})
}

type commandFunc func(ctx context.Context, paymentID string) (gateway.ConfirmResult, error)

func (c *Controller) dispatch(ctx context.Context, paymentID string, call commandFunc, cardStatus string, notify func(string)) error {
	if strings.TrimSpace(paymentID) == "" {
		return &gateway.Error{Kind: gateway.KindValidation, Message: "payment id is required"}
	}
	if !c.begin(paymentID) {
		return nil
	}

	res, err := call(ctx, paymentID)
	if err != nil {
		c.fail(paymentID, gateway.UserMessage(err))
		log.Printf("[lifecycle] %s failed for payment %s: %v", cardStatus, paymentID, err)
		return err
	}

	c.succeed(paymentID)
	status := cardStatus
	if res.Status != "" {
		status = res.Status
	}
	c.chat.PatchMessageAction(paymentID, func(string) string { return status })
	notify(paymentID)
	return nil
}

// begin moves the machine to loading, refusing re-entry while loading or
// after terminal success.
func (c *Controller) begin(paymentID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.states[paymentID]
	if !ok {
		st = &State{Status: StatusIdle}
		c.states[paymentID] = st
	}
	if st.Status == StatusLoading || st.Status == StatusSuccess {
		return false
	}
	st.Status = StatusLoading
	st.ErrorMessage = ""
	return true
}

func (c *Controller) succeed(paymentID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.states[paymentID] = &State{Status: StatusSuccess}
}

func (c *Controller) fail(paymentID, msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.states[paymentID] = &State{Status: StatusError, ErrorMessage: msg}
}
