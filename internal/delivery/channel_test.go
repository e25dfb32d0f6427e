package delivery

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/pqmsg/pqmsg/internal/envelope"
	"github.com/sirupsen/logrus"
	"google.golang.org/protobuf/encoding/protowire"
)

type delivered struct {
	peer string
	raw  string
}

type sink struct {
	mu  sync.Mutex
	got []delivered
	ch  chan delivered
}

func newSink() *sink {
	return &sink{ch: make(chan delivered, 64)}
}

func (s *sink) handle(_ context.Context, peer string, raw []byte) {
	d := delivered{peer: peer, raw: string(raw)}
	s.mu.Lock()
	s.got = append(s.got, d)
	s.mu.Unlock()
	s.ch <- d
}

func (s *sink) expect(t *testing.T, want ...string) {
	t.Helper()
	for _, w := range want {
		select {
		case d := <-s.ch:
			if d.raw != w {
				t.Fatalf("delivered %q, want %q", d.raw, w)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for %q", w)
		}
	}
}

func (s *sink) expectNone(t *testing.T) {
	t.Helper()
	select {
	case d := <-s.ch:
		t.Fatalf("unexpected delivery %q", d.raw)
	case <-time.After(50 * time.Millisecond):
	}
}

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newTestChannel(tr Transport, onState func(State)) *Channel {
	return NewChannel(Config{
		Transport:     tr,
		Self:          "did:pqm:self",
		Backoff:       fastBackoff(),
		Logger:        quietLogger(),
		OnStateChange: onState,
	})
}

func envelopeFrame(peer, raw string) []byte {
	return (&Frame{Kind: FrameEnvelope, Peer: peer, Payload: []byte(raw)}).Marshal()
}

func waitState(t *testing.T, c *Channel, want State) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for c.State() != want {
		if time.Now().After(deadline) {
			t.Fatalf("state = %v, want %v", c.State(), want)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestChannel_AnnouncesAndDelivers(t *testing.T) {
	tr := newFakeTransport()
	c := newTestChannel(tr, nil)
	s := newSink()

	if err := c.Start(context.Background(), s.handle); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer c.Close()

	conn := tr.next(t)
	announce := recvFrame(t, conn)
	if announce.Kind != FrameAnnounce || announce.Peer != "did:pqm:self" {
		t.Errorf("first frame = %+v, want announce", announce)
	}

	select {
	case <-c.Connected():
	case <-time.After(5 * time.Second):
		t.Fatal("Connected() not closed")
	}
	waitState(t, c, Connected)

	conn.in <- envelopeFrame("did:pqm:bob", "one")
	conn.in <- envelopeFrame("did:pqm:bob", "two")
	s.expect(t, "one", "two")

	if s.got[0].peer != "did:pqm:bob" {
		t.Errorf("peer = %q", s.got[0].peer)
	}
}

func TestChannel_Dedup(t *testing.T) {
	tr := newFakeTransport()
	c := newTestChannel(tr, nil)
	s := newSink()
	if err := c.Start(context.Background(), s.handle); err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	conn := tr.next(t)
	recvFrame(t, conn)

	conn.in <- envelopeFrame("did:pqm:bob", "same")
	conn.in <- envelopeFrame("did:pqm:bob", "same")
	conn.in <- envelopeFrame("did:pqm:bob", "other")
	s.expect(t, "same", "other")
	s.expectNone(t)
}

func TestChannel_DedupIgnoresUnknownFields(t *testing.T) {
	tr := newFakeTransport()
	c := newTestChannel(tr, nil)
	s := newSink()
	if err := c.Start(context.Background(), s.handle); err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	conn := tr.next(t)
	recvFrame(t, conn)

	raw := envelope.Marshal(&envelope.Envelope{
		Version:         envelope.Version,
		AlgTag:          envelope.AlgAES256GCM,
		IV:              bytes.Repeat([]byte{1}, 12),
		Ciphertext:      []byte("sealed"),
		EncapsulatedKey: bytes.Repeat([]byte{2}, 32),
		Signature:       []byte("sig"),
		Timestamp:       1700000000000,
	})
	padded := protowire.AppendTag(append([]byte(nil), raw...), 99, protowire.VarintType)
	padded = protowire.AppendVarint(padded, 1)

	conn.in <- envelopeFrame("did:pqm:bob", string(raw))
	conn.in <- envelopeFrame("did:pqm:bob", string(padded))
	conn.in <- envelopeFrame("did:pqm:bob", "after")
	s.expect(t, string(raw), "after")
	s.expectNone(t)
}

func TestChannel_DropsMalformedFrames(t *testing.T) {
	tr := newFakeTransport()
	c := newTestChannel(tr, nil)
	s := newSink()
	if err := c.Start(context.Background(), s.handle); err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	conn := tr.next(t)
	recvFrame(t, conn)

	conn.in <- []byte{0xff, 0xff}
	conn.in <- (&Frame{Kind: FrameNotice, Payload: []byte("hello")}).Marshal()
	conn.in <- envelopeFrame("did:pqm:bob", "")
	conn.in <- envelopeFrame("did:pqm:bob", "after")
	s.expect(t, "after")

	if c.State() != Connected {
		t.Errorf("state = %v after malformed frames", c.State())
	}
}

func TestChannel_Reconnect(t *testing.T) {
	var mu sync.Mutex
	var states []State
	tr := newFakeTransport()
	c := newTestChannel(tr, func(s State) {
		mu.Lock()
		states = append(states, s)
		mu.Unlock()
	})
	s := newSink()
	if err := c.Start(context.Background(), s.handle); err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	const n = 5
	for i := 0; i <= n; i++ {
		conn := tr.next(t)
		if f := recvFrame(t, conn); f.Kind != FrameAnnounce {
			t.Fatalf("connection %d: first frame %v", i, f.Kind)
		}
		waitState(t, c, Connected)

		msg := fmt.Sprintf("m%d", i)
		conn.in <- envelopeFrame("did:pqm:bob", msg)
		if i > 0 {
			// Redelivery of the previous connection's envelope.
			conn.in <- envelopeFrame("did:pqm:bob", fmt.Sprintf("m%d", i-1))
		}
		conn.in <- envelopeFrame("did:pqm:bob", msg+"b")
		s.expect(t, msg, msg+"b")
		s.expectNone(t)

		if i < n {
			conn.Close()
		}
	}

	mu.Lock()
	defer mu.Unlock()
	connects := 0
	for _, st := range states {
		if st == Connected {
			connects++
		}
	}
	if connects != n+1 {
		t.Errorf("Connected %d times, want %d (states %v)", connects, n+1, states)
	}
}

func TestChannel_SendQueuedUntilConnected(t *testing.T) {
	tr := newFakeTransport()
	c := newTestChannel(tr, nil)

	if err := c.Send(context.Background(), "did:pqm:bob", []byte("early")); err != nil {
		t.Fatalf("Send() before Start error = %v", err)
	}
	if err := c.Start(context.Background(), nil); err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	conn := tr.next(t)
	if f := recvFrame(t, conn); f.Kind != FrameAnnounce {
		t.Fatalf("first frame = %v", f.Kind)
	}
	f := recvFrame(t, conn)
	if f.Kind != FrameEnvelope || f.Peer != "did:pqm:bob" || string(f.Payload) != "early" {
		t.Errorf("queued frame = %+v", f)
	}
}

func TestChannel_Flush(t *testing.T) {
	tr := newFakeTransport()
	c := newTestChannel(tr, nil)
	if err := c.Start(context.Background(), nil); err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	conn := tr.next(t)
	recvFrame(t, conn)

	for i := 0; i < 3; i++ {
		if err := c.Send(context.Background(), "did:pqm:bob", []byte(fmt.Sprintf("m%d", i))); err != nil {
			t.Fatal(err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Flush(ctx); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	if n := len(conn.out); n != 3 {
		t.Errorf("frames written before Flush returned = %d, want 3", n)
	}

	c.Close()
	if err := c.Flush(ctx); !errors.Is(err, ErrClosed) {
		t.Errorf("Flush() after Close error = %v, want ErrClosed", err)
	}
}

func TestChannel_RequeueOnWriteFailure(t *testing.T) {
	tr := newFakeTransport()
	tr.prepare = func(n int, p *pipeConn) {
		if n == 1 {
			p.sendLimit = 1
		}
	}
	c := newTestChannel(tr, nil)
	if err := c.Start(context.Background(), nil); err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	first := tr.next(t)
	recvFrame(t, first)
	if err := c.Send(context.Background(), "did:pqm:bob", []byte("retry me")); err != nil {
		t.Fatal(err)
	}

	second := tr.next(t)
	recvFrame(t, second)
	f := recvFrame(t, second)
	if string(f.Payload) != "retry me" {
		t.Errorf("requeued payload = %q", f.Payload)
	}
}

func TestChannel_CloseCancelsReconnect(t *testing.T) {
	tr := newFakeTransport()
	tr.failing.Store(true)
	c := NewChannel(Config{
		Transport: tr,
		Self:      "did:pqm:self",
		Backoff:   Backoff{BaseDelay: time.Hour, MaxDelay: time.Hour, Multiplier: 2},
		Logger:    quietLogger(),
	})
	if err := c.Start(context.Background(), nil); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for tr.attempts.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("no dial attempted")
		}
		time.Sleep(time.Millisecond)
	}

	start := time.Now()
	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if time.Since(start) > time.Second {
		t.Error("Close() waited for the reconnect timer")
	}
	select {
	case <-c.Done():
	default:
		t.Error("Done() not closed after Close")
	}
	if c.State() != Disconnected {
		t.Errorf("state = %v after Close", c.State())
	}
	if attempts := tr.attempts.Load(); attempts != 1 {
		t.Errorf("dialed %d times, want 1", attempts)
	}

	if err := c.Send(context.Background(), "p", []byte("x")); !errors.Is(err, ErrClosed) {
		t.Errorf("Send() after Close = %v, want ErrClosed", err)
	}
	if err := c.Start(context.Background(), nil); !errors.Is(err, ErrClosed) {
		t.Errorf("Start() after Close = %v, want ErrClosed", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestChannel_CloseWhileConnected(t *testing.T) {
	tr := newFakeTransport()
	c := newTestChannel(tr, nil)
	s := newSink()
	if err := c.Start(context.Background(), s.handle); err != nil {
		t.Fatal(err)
	}

	conn := tr.next(t)
	recvFrame(t, conn)
	waitState(t, c, Connected)

	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
	select {
	case <-conn.closed:
	default:
		t.Error("connection not closed")
	}

	conn.in <- envelopeFrame("did:pqm:bob", "late")
	s.expectNone(t)
}

func TestChannel_GivesUp(t *testing.T) {
	tr := newFakeTransport()
	tr.failing.Store(true)
	c := NewChannel(Config{
		Transport: tr,
		Self:      "did:pqm:self",
		Backoff:   Backoff{BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1, MaxAttempts: 3},
		Logger:    quietLogger(),
	})
	if err := c.Start(context.Background(), nil); err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	select {
	case <-c.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("channel did not give up")
	}
	if attempts := tr.attempts.Load(); attempts != 3 {
		t.Errorf("dialed %d times, want 3", attempts)
	}
}

func TestChannel_StartErrors(t *testing.T) {
	c := NewChannel(Config{Self: "did:pqm:self", Logger: quietLogger()})
	if err := c.Start(context.Background(), nil); !errors.Is(err, ErrTransport) {
		t.Errorf("Start() without transport = %v, want ErrTransport", err)
	}

	c = newTestChannel(newFakeTransport(), nil)
	if err := c.Start(context.Background(), nil); err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	if err := c.Start(context.Background(), nil); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("second Start() = %v, want ErrAlreadyStarted", err)
	}
}

func TestChannel_SendRespectsContext(t *testing.T) {
	c := NewChannel(Config{Transport: newFakeTransport(), Self: "s", OutboxSize: 1, Logger: quietLogger()})
	defer c.Close()

	if err := c.Send(context.Background(), "p", []byte("fills outbox")); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := c.Send(ctx, "p", []byte("blocked")); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Send() = %v, want DeadlineExceeded", err)
	}
}

func TestState_String(t *testing.T) {
	tests := map[State]string{
		Disconnected: "disconnected",
		Connecting:   "connecting",
		Connected:    "connected",
		State(7):     "State(7)",
	}
	for s, want := range tests {
		if s.String() != want {
			t.Errorf("%d.String() = %q, want %q", int32(s), s.String(), want)
		}
	}
}
