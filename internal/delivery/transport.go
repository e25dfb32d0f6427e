package delivery

import "context"

// Transport opens connections to a relay.
type Transport interface {
	// Dial opens a new connection. It honors ctx for the duration of the dial.
	Dial(ctx context.Context) (Conn, error)
}

// Conn is a message-oriented duplex connection. Send and Receive may be
// called concurrently with each other, but each only from a single goroutine.
type Conn interface {
	// Send writes one message.
	Send(data []byte) error
	// Receive blocks until one message arrives or the connection fails.
	Receive() ([]byte, error)
	// Close closes the connection and unblocks pending Send and Receive calls.
	Close() error
}

// TransportFunc adapts a function to the Transport interface.
type TransportFunc func(ctx context.Context) (Conn, error)

// Dial calls f(ctx).
func (f TransportFunc) Dial(ctx context.Context) (Conn, error) {
	return f(ctx)
}
