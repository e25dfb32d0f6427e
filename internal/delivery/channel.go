package delivery

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/pqmsg/pqmsg/internal/envelope"
	"github.com/sirupsen/logrus"
)

// DefaultOutboxSize is the number of frames queued before Send blocks.
const DefaultOutboxSize = 256

// State is the connection state of a Channel.
type State int32

const (
	// Disconnected means no connection is open.
	Disconnected State = iota
	// Connecting means a dial is in progress.
	Connecting
	// Connected means the announce handshake succeeded.
	Connected
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Handler receives one deduplicated envelope from peer. Calls are made from
// a single goroutine in arrival order.
type Handler func(ctx context.Context, peer string, raw []byte)

// Config configures a Channel.
type Config struct {
	// Transport dials the relay. Required.
	Transport Transport
	// Self is the DID announced after each connect. Required.
	Self string
	// Backoff controls reconnect delays. Zero fields take defaults.
	Backoff Backoff
	// DedupCapacity bounds the fingerprint set. Zero means DefaultDedupCapacity.
	DedupCapacity int
	// OutboxSize bounds queued outgoing frames. Zero means DefaultOutboxSize.
	OutboxSize int
	// Logger receives connection and drop events. Nil means a new logrus logger.
	Logger logrus.FieldLogger
	// OnStateChange, if set, is called from the channel goroutine on every
	// state transition.
	OnStateChange func(State)
}

// Channel is a reconnecting duplex connection to a relay.
type Channel struct {
	transport     Transport
	self          string
	backoff       Backoff
	logger        logrus.FieldLogger
	onStateChange func(State)

	dedup  *Dedup
	outbox chan []byte
	// pending is a frame whose write failed; only the run goroutine uses it.
	pending []byte
	flush   chan chan struct{}
	// flushing holds flush requests interrupted by a write failure; only the
	// run goroutine uses it.
	flushing []chan struct{}

	state         atomic.Int32
	connected     chan struct{}
	connectedOnce sync.Once

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	done    chan struct{}

	closed    chan struct{}
	closeOnce sync.Once
}

// NewChannel returns a channel that is not yet connected.
func NewChannel(cfg Config) *Channel {
	if cfg.OutboxSize <= 0 {
		cfg.OutboxSize = DefaultOutboxSize
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &Channel{
		transport:     cfg.Transport,
		self:          cfg.Self,
		backoff:       cfg.Backoff.withDefaults(),
		logger:        cfg.Logger.WithField("component", "delivery"),
		onStateChange: cfg.OnStateChange,
		dedup:         NewDedup(cfg.DedupCapacity),
		outbox:        make(chan []byte, cfg.OutboxSize),
		flush:         make(chan chan struct{}),
		connected:     make(chan struct{}),
		done:          make(chan struct{}),
		closed:        make(chan struct{}),
	}
}

// State returns the current connection state.
func (c *Channel) State() State {
	return State(c.state.Load())
}

// Connected returns a channel that is closed when the first connection is
// established.
func (c *Channel) Connected() <-chan struct{} {
	return c.connected
}

// Done returns a channel that is closed when the connection loop has exited,
// either after Close or because the backoff gave up.
func (c *Channel) Done() <-chan struct{} {
	return c.done
}

// Start launches the connection loop. Inbound envelopes are passed to handler.
// Start returns immediately.
func (c *Channel) Start(ctx context.Context, handler Handler) error {
	if c.transport == nil {
		return fmt.Errorf("%w: no transport configured", ErrTransport)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	select {
	case <-c.closed:
		return ErrClosed
	default:
	}
	if c.started {
		return ErrAlreadyStarted
	}
	c.started = true

	ctx, c.cancel = context.WithCancel(ctx)
	go c.run(ctx, handler)
	return nil
}

// Send queues an encoded envelope for peer. It blocks only while the outbox
// is full. Errors are limited to ErrClosed and ctx errors.
func (c *Channel) Send(ctx context.Context, peer string, raw []byte) error {
	frame := (&Frame{Kind: FrameEnvelope, Peer: peer, Payload: raw}).Marshal()

	select {
	case <-c.closed:
		return ErrClosed
	default:
	}

	select {
	case c.outbox <- frame:
		return nil
	case <-c.closed:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Flush blocks until every frame queued by an earlier Send has been written
// to a connection.
func (c *Channel) Flush(ctx context.Context) error {
	select {
	case <-c.closed:
		return ErrClosed
	default:
	}

	reply := make(chan struct{})
	select {
	case c.flush <- reply:
	case <-c.closed:
		return ErrClosed
	case <-c.done:
		return fmt.Errorf("%w: connection loop exited", ErrTransport)
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-reply:
		return nil
	case <-c.closed:
		return ErrClosed
	case <-c.done:
		return fmt.Errorf("%w: connection loop exited", ErrTransport)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the connection loop, cancels any pending reconnect timer and
// forgets seen fingerprints. No handler call starts after Close returns.
// Close is idempotent.
func (c *Channel) Close() error {
	c.closeOnce.Do(func() {
		close(c.closed)

		c.mu.Lock()
		started, cancel := c.started, c.cancel
		c.mu.Unlock()

		if started {
			cancel()
			<-c.done
		} else {
			close(c.done)
		}
		c.setState(Disconnected)
		c.dedup.Reset()
	})
	return nil
}

func (c *Channel) setState(s State) {
	if State(c.state.Swap(int32(s))) == s {
		return
	}
	c.logger.WithField("state", s).Debug("channel state changed")
	if c.onStateChange != nil {
		c.onStateChange(s)
	}
}

func (c *Channel) run(ctx context.Context, handler Handler) {
	defer close(c.done)
	defer c.setState(Disconnected)

	attempts := 0
	for {
		if ctx.Err() != nil {
			return
		}

		c.setState(Connecting)
		established, err := c.connect(ctx, handler)
		c.setState(Disconnected)
		if ctx.Err() != nil {
			return
		}

		if established {
			attempts = 0
		}
		c.logger.WithError(err).WithField("attempt", attempts+1).Warn("connection lost, reconnecting")

		if c.backoff.Exhausted(attempts + 1) {
			c.logger.WithField("attempts", attempts+1).Error("giving up reconnecting")
			return
		}
		if c.backoff.Wait(ctx, attempts) != nil {
			return
		}
		attempts++
	}
}

// connect dials, announces and serves one connection until it fails. It
// reports whether the handshake completed.
func (c *Channel) connect(ctx context.Context, handler Handler) (bool, error) {
	conn, err := c.transport.Dial(ctx)
	if err != nil {
		return false, fmt.Errorf("%w: dial: %v", ErrTransport, err)
	}
	defer conn.Close()

	announce := (&Frame{Kind: FrameAnnounce, Peer: c.self}).Marshal()
	if err := conn.Send(announce); err != nil {
		return false, fmt.Errorf("%w: announce: %v", ErrTransport, err)
	}

	c.setState(Connected)
	c.connectedOnce.Do(func() { close(c.connected) })
	c.logger.Info("channel connected")

	return true, c.serve(ctx, conn, handler)
}

// serve writes queued frames and reads inbound frames until either side fails.
func (c *Channel) serve(ctx context.Context, conn Conn, handler Handler) error {
	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		<-connCtx.Done()
		_ = conn.Close()
	}()

	readErr := make(chan error, 1)
	go func() {
		readErr <- c.readLoop(connCtx, conn, handler)
	}()
	// The reader must be gone before the next connection starts, so delivery
	// order never mixes two connections.
	defer func() {
		cancel()
		<-readErr
	}()

	for {
		if c.pending != nil {
			if err := conn.Send(c.pending); err != nil {
				return fmt.Errorf("%w: write: %v", ErrTransport, err)
			}
			c.pending = nil
		}
		if len(c.flushing) > 0 {
			if err := c.drain(conn); err != nil {
				return err
			}
			for _, reply := range c.flushing {
				close(reply)
			}
			c.flushing = nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-readErr:
			// Put it back so the deferred drain does not block.
			readErr <- err
			return err
		case frame := <-c.outbox:
			c.pending = frame
		case reply := <-c.flush:
			c.flushing = append(c.flushing, reply)
		}
	}
}

// drain writes every frame currently in the outbox.
func (c *Channel) drain(conn Conn) error {
	for {
		select {
		case frame := <-c.outbox:
			if err := conn.Send(frame); err != nil {
				c.pending = frame
				return fmt.Errorf("%w: write: %v", ErrTransport, err)
			}
		default:
			return nil
		}
	}
}

func (c *Channel) readLoop(ctx context.Context, conn Conn, handler Handler) error {
	for {
		data, err := conn.Receive()
		if err != nil {
			return fmt.Errorf("%w: read: %v", ErrTransport, err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		frame, err := UnmarshalFrame(data)
		if err != nil {
			c.logger.WithError(err).WithField("reason", "frame").Warn("dropping frame")
			continue
		}

		switch frame.Kind {
		case FrameEnvelope:
			c.deliver(ctx, frame, handler)
		case FrameNotice:
			c.logger.WithField("notice", string(frame.Payload)).Debug("relay notice")
		default:
			c.logger.WithField("kind", frame.Kind).Debug("ignoring frame")
		}
	}
}

// dedupKey fingerprints the canonical encoding of payload when it parses as
// an envelope, so copies differing only in unknown fields collapse to one.
func dedupKey(payload []byte) string {
	if env, err := envelope.Unmarshal(payload); err == nil {
		return envelope.Fingerprint(envelope.Marshal(env))
	}
	return envelope.Fingerprint(payload)
}

func (c *Channel) deliver(ctx context.Context, frame *Frame, handler Handler) {
	fp := envelope.Fingerprint(frame.Payload)
	log := c.logger.WithFields(logrus.Fields{"peer": frame.Peer, "fingerprint": fp})

	if len(frame.Payload) == 0 {
		log.WithField("reason", "empty").Warn("dropping envelope")
		return
	}
	if !c.dedup.Add(dedupKey(frame.Payload)) {
		log.WithField("reason", "duplicate").Debug("dropping envelope")
		return
	}
	if handler != nil {
		handler(ctx, frame.Peer, frame.Payload)
	}
}
