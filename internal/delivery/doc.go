// Package delivery keeps a persistent duplex connection to a relay and moves
// envelopes over it.
//
// # Channel
//
// A [Channel] runs a connection state machine in its own goroutine:
//
//	Disconnected -> Connecting -> Connected -> Disconnected -> Connecting ...
//
// On every successful connect it sends an announce frame carrying the local
// DID. When the connection fails it waits for a [Backoff] delay and dials
// again, until [Channel.Close] is called or the start context is canceled.
//
//	ch := delivery.NewChannel(delivery.Config{
//	    Transport: delivery.NewWebSocketTransport("ws://relay.example/ws"),
//	    Self:      myDID,
//	})
//	ch.Start(ctx, func(ctx context.Context, from string, raw []byte) {
//	    // raw is an encoded envelope from peer "from"
//	})
//	defer ch.Close()
//
//	ch.Send(ctx, peerDID, rawEnvelope)
//
// # Delivery Semantics
//
//   - Outgoing envelopes are queued and written while connected. A frame
//     whose write fails is retried first after the next connect.
//   - Incoming envelopes are deduplicated by fingerprint across reconnects.
//   - Incoming envelopes are handed to the handler in arrival order, from a
//     single goroutine per connection.
//   - Transport errors never reach callers of Send; they drive the reconnect
//     loop and are logged.
//
// # Thread Safety
//
// All Channel methods are safe for concurrent use.
package delivery
