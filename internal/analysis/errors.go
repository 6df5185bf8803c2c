package analysis

import (
	"errors"
	"fmt"
)

// ErrEmptyField is returned before any request is made when a required
// multipart field would be empty.
var ErrEmptyField = errors.New("empty multipart field")

// TransportError reports a failed call to the analysis service: a network
// failure, a timeout, a non-2xx status, or an undecodable body.
type TransportError struct {
	// StatusCode is the HTTP status, or 0 when no response was received.
	StatusCode int
	// Message is the service-supplied error text, if the body carried one.
	Message string
	Err     error
}

func (e *TransportError) Error() string {
	switch {
	case e.Message != "" && e.StatusCode != 0:
		return fmt.Sprintf("analysis service: status %d: %s", e.StatusCode, e.Message)
	case e.StatusCode != 0 && e.Err != nil:
		return fmt.Sprintf("analysis service: status %d: %v", e.StatusCode, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("analysis service: status %d", e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("analysis service: %v", e.Err)
	}
	return "analysis service: request failed"
}

func (e *TransportError) Unwrap() error { return e.Err }

// ServiceMessage returns the service-supplied message carried by err, if any.
func ServiceMessage(err error) string {
	var te *TransportError
	if errors.As(err, &te) {
		return te.Message
	}
	return ""
}
