package session

import "errors"

var (
	// ErrMissingSessionID is returned when a request carries no session id.
	ErrMissingSessionID = errors.New("session ID is required")
	// ErrCredentials is returned when the model provider rejected the
	// credentials even after a refresh.
	ErrCredentials = errors.New("model provider credentials rejected")
	// ErrInternal wraps every other failure while answering.
	ErrInternal = errors.New("internal error")
)
