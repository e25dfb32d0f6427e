package delivery

import "errors"

var (
	// ErrClosed is returned by Send and Start after Close.
	ErrClosed = errors.New("channel closed")

	// ErrTransport wraps connection-level failures. It drives reconnection
	// and is not returned from Send.
	ErrTransport = errors.New("transport error")

	// ErrAlreadyStarted is returned by a second call to Start.
	ErrAlreadyStarted = errors.New("channel already started")

	// ErrFrame is returned for malformed frames.
	ErrFrame = errors.New("malformed frame")
)
