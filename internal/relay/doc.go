// Package relay implements the WebSocket relay that delivery channels connect
// to. A connection announces the DID it serves; envelope frames addressed to
// that DID are forwarded to it with the sender's DID filled in. Frames for a
// DID that is not connected are queued, up to a bound, and flushed when the
// DID announces.
//
// The relay sees only opaque envelopes; it cannot read or forge messages.
// A single hub goroutine owns the routing table.
package relay
