package gh

import (
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyResult indicates a successful response that is missing the data
// the operation asked for (e.g. a node ID that resolves to nothing).
var ErrEmptyResult = errors.New("empty result")

// TransportError is returned when a request did not complete or the server
// answered with a non-2xx status. StatusCode is 0 for network failures.
type TransportError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("github request failed: %v", e.Err)
	}
	body := strings.TrimSpace(e.Body)
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	return fmt.Sprintf("github returned HTTP %d: %s", e.StatusCode, body)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ProtocolError is returned when the response envelope carries GraphQL errors.
type ProtocolError struct {
	Messages []string
}

func (e *ProtocolError) Error() string {
	return "graphql: " + strings.Join(e.Messages, "; ")
}

// IsTransient reports whether err is worth retrying on a later sync: network
// failures, rate limiting and server errors. Callers still never retry inline.
func IsTransient(err error) bool {
	var te *TransportError
	if !errors.As(err, &te) {
		return false
	}
	return te.StatusCode == 0 || te.StatusCode == 429 || te.StatusCode >= 500
}
