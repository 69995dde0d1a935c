package gateway

import "fmt"

// ErrorKind classifies gateway failures for caller policy decisions.
type ErrorKind string

const (
	// KindValidation: a precondition failed locally; no request was sent.
	KindValidation ErrorKind = "validation"
	// KindAuthExpired: the processor answered 401; the host must force re-auth.
	KindAuthExpired ErrorKind = "auth_expired"
	// KindNetwork: no response was received. User-initiated retry is allowed.
	KindNetwork ErrorKind = "network"
	// KindAPI: a well-formed error response from the processor.
	KindAPI ErrorKind = "api"
	// KindParse: the response body was not valid JSON or not the expected shape.
	KindParse ErrorKind = "parse"
)

// Error is the single error type the gateway returns. Code is preserved for
// logging when the processor sends a structured error; Raw keeps the body of
// an undecodable response for diagnostics.
type Error struct {
	Kind    ErrorKind
	Code    string
	Message string
	Raw     string
	Cause   error
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("gateway %s error [%s]: %s", e.Kind, e.Code, e.Message)
	}
	return fmt.Sprintf("gateway %s error: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// UserMessage is the text safe to surface on a card or chat bubble.
// API error messages render verbatim; parse failures degrade to a generic
// line while Raw retains the details.
func (e *Error) UserMessage() string {
	switch e.Kind {
	case KindParse:
		return "The service returned an unexpected response. Please try again."
	case KindNetwork:
		return "Could not reach the service. Please check your connection and try again."
	case KindAuthExpired:
		return "Your session has expired. Please sign in again."
	default:
		if e.Message != "" {
			return e.Message
		}
		return "Something went wrong. Please try again."
	}
}

func validationError(msg string) *Error {
	return &Error{Kind: KindValidation, Message: msg}
}

func networkError(err error) *Error {
	return &Error{Kind: KindNetwork, Message: err.Error(), Cause: err}
}

// IsAuthExpired reports whether err is the distinguished session-expiry error.
func IsAuthExpired(err error) bool {
	ge, ok := err.(*Error)
	return ok && ge.Kind == KindAuthExpired
}

// IsValidation reports whether err failed before any network call.
func IsValidation(err error) bool {
	ge, ok := err.(*Error)
	return ok && ge.Kind == KindValidation
}

// UserMessage extracts display text from any error, falling back to a
// generic line for non-gateway errors.
func UserMessage(err error) string {
	if ge, ok := err.(*Error); ok {
		return ge.UserMessage()
	}
	return "Something went wrong. Please try again."
}
