package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// StatusError is returned for a non-2xx response. ErrorText and Message hold
// the server-supplied "error" and "message" fields when the body is a JSON
// object carrying them.
type StatusError struct {
	Endpoint   string
	StatusCode int
	ErrorText  string
	Message    string
}

// Error implements error.
func (e *StatusError) Error() string {
	detail := e.ErrorText
	if detail == "" {
		detail = e.Message
	}
	if detail == "" {
		detail = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Endpoint, e.StatusCode, detail)
}

// Unauthorized reports whether the server rejected the credential.
func (e *StatusError) Unauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized
}

func newStatusError(endpoint string, code int, body []byte) *StatusError {
	se := &StatusError{Endpoint: endpoint, StatusCode: code}

	var fields struct {
		Error   any `json:"error"`
		Message any `json:"message"`
	}
	if err := json.Unmarshal(body, &fields); err == nil {
		se.ErrorText = stringField(fields.Error)
		se.Message = stringField(fields.Message)
	}
	return se
}

// stringField keeps only non-empty string values.
func stringField(v any) string {
	s, _ := v.(string)
	return s
}

// AsStatusError unwraps err into a *StatusError.
func AsStatusError(err error) (*StatusError, bool) {
	var se *StatusError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// IsUnauthorized reports whether err is a 401 StatusError.
func IsUnauthorized(err error) bool {
	se, ok := AsStatusError(err)
	return ok && se.Unauthorized()
}
