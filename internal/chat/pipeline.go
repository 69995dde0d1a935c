package chat

import (
	"context"
	"log"
	"strings"

	"finch-forex-backend/internal/conversation"
	"finch-forex-backend/internal/gateway"
	"finch-forex-backend/internal/intent"
)

// ProcessClient is the slice of the gateway the pipeline needs.
type ProcessClient interface {
	Process(ctx context.Context, text string) (intent.RawResult, error)
}

// ErrBusy is returned when a process call is already outstanding for the
// conversation. The submit control is expected to be disabled while loading,
// so hitting this is a race, not a normal path.
var ErrBusy = &gateway.Error{Kind: gateway.KindValidation, Message: "a request is already in progress"}

// Pipeline runs one conversation's submit flow: append the user message and
// a loading placeholder, call the processor, normalize the response, and
// resolve the placeholder with the resulting card.
type Pipeline struct {
	client  ProcessClient
	chat    *conversation.Log
	replies *ReplySpec
}

func NewPipeline(client ProcessClient, chat *conversation.Log, replies *ReplySpec) *Pipeline {
	return &Pipeline{client: client, chat: chat, replies: replies}
}

// Log exposes the owned conversation log.
func (p *Pipeline) Log() *conversation.Log { return p.chat }

// Submit feeds user text through the process pipeline and returns the
// resolved system message.
//
// A non-nil error is returned only when nothing was resolved into the log:
// empty input (no message appended at all), a second submit while one is
// outstanding, or session expiry — the host handles those directly. Processor
// and transport failures resolve the placeholder into an error message and
// return it with a nil error.
func (p *Pipeline) Submit(ctx context.Context, text string) (conversation.Message, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return conversation.Message{}, &gateway.Error{Kind: gateway.KindValidation, Message: "message is required"}
	}
	// Reserving the placeholder appends both messages under one lock, so two
	// racing submits can never both reach the processor.
	if _, ok := p.chat.AppendUserAndPlaceholder(trimmed); !ok {
		return conversation.Message{}, ErrBusy
	}

	raw, err := p.client.Process(ctx, trimmed)
	if err != nil {
		if gateway.IsAuthExpired(err) {
			// The host abandons the session and forces re-auth; the
			// placeholder stays and is reused if the session resumes.
			return conversation.Message{}, err
		}
		log.Printf("[chat] process failed: %v", err)
		id := p.chat.ResolvePlaceholder(nil, gateway.UserMessage(err), conversation.StatusError)
		return p.messageByID(id), nil
	}

	action := intent.Normalize(raw)
	id := p.chat.ResolvePlaceholder(&action, p.replies.Render(&action), conversation.StatusCompleted)
	return p.messageByID(id), nil
}

func (p *Pipeline) messageByID(id int) conversation.Message {
	msgs := p.chat.Messages()
	if id >= 0 && id < len(msgs) {
		return msgs[id]
	}
	return conversation.Message{}
}
