package auth

import (
	"errors"
	"fmt"

	"github.com/txn2/bmusic-client/pkg/api"
)

// User-facing messages.
const (
	MsgFillAllFields     = "Please fill in all fields"
	MsgAllFieldsRequired = "All fields are required"
	MsgInvalidEmail      = "Please enter a valid email address (@)"
	MsgLoginFailed       = "Login failed"
	MsgRegisterFailed    = "Could not create account"
)

// ErrBusy is returned when a credential request is submitted while another
// one is still pending.
var ErrBusy = errors.New("a credential request is already in progress")

// ValidationError reports missing or malformed input. No request is sent and
// no state changes.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements error.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// AuthError reports that the remote service rejected the request. Message is
// safe to show to the user.
type AuthError struct {
	StatusCode int // zero when no response was received
	Message    string
	Err        error
}

// Error implements error.
func (e *AuthError) Error() string {
	return e.Message
}

// Unwrap returns the underlying transport error.
func (e *AuthError) Unwrap() error {
	return e.Err
}

// loginError classifies a failed login, preferring the server "error" field,
// then "message", then the generic fallback.
func loginError(err error) *AuthError {
	ae := &AuthError{Message: MsgLoginFailed, Err: err}
	if se, ok := api.AsStatusError(err); ok {
		ae.StatusCode = se.StatusCode
		switch {
		case se.ErrorText != "":
			ae.Message = se.ErrorText
		case se.Message != "":
			ae.Message = se.Message
		}
	}
	return ae
}

// registerError classifies a failed registration using only the server
// "message" field.
func registerError(err error) *AuthError {
	ae := &AuthError{Message: MsgRegisterFailed, Err: err}
	if se, ok := api.AsStatusError(err); ok {
		ae.StatusCode = se.StatusCode
		if se.Message != "" {
			ae.Message = se.Message
		}
	}
	return ae
}

// UserMessage returns the text to show for err: the message of a
// ValidationError or AuthError, or fallback otherwise.
func UserMessage(err error, fallback string) string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Message
	}
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae.Message
	}
	if errors.Is(err, ErrBusy) {
		return ""
	}
	return fallback
}
