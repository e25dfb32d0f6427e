package delivery

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

var errPipeClosed = errors.New("pipe closed")

// pipeConn is an in-memory Conn. The test side pushes inbound messages to in
// and reads what the channel wrote from out.
type pipeConn struct {
	in     chan []byte
	out    chan []byte
	closed chan struct{}
	once   sync.Once

	// sendLimit, if positive, makes every Send after that many fail.
	sendLimit int
	sends     atomic.Int32
}

func newPipeConn() *pipeConn {
	return &pipeConn{
		in:     make(chan []byte, 64),
		out:    make(chan []byte, 64),
		closed: make(chan struct{}),
	}
}

func (p *pipeConn) Send(data []byte) error {
	if p.sendLimit > 0 && int(p.sends.Add(1)) > p.sendLimit {
		return errors.New("write failed")
	}
	select {
	case <-p.closed:
		return errPipeClosed
	case p.out <- data:
		return nil
	}
}

func (p *pipeConn) Receive() ([]byte, error) {
	select {
	case <-p.closed:
		return nil, errPipeClosed
	case data := <-p.in:
		return data, nil
	}
}

func (p *pipeConn) Close() error {
	p.once.Do(func() { close(p.closed) })
	return nil
}

// fakeTransport hands out pipeConns and lets the test observe every dial.
type fakeTransport struct {
	dials    chan *pipeConn
	failing  atomic.Bool
	attempts atomic.Int32
	// prepare, if set, configures each new connection.
	prepare func(n int, p *pipeConn)
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{dials: make(chan *pipeConn, 64)}
}

func (f *fakeTransport) Dial(ctx context.Context) (Conn, error) {
	n := int(f.attempts.Add(1))
	if f.failing.Load() {
		return nil, errors.New("connection refused")
	}
	p := newPipeConn()
	if f.prepare != nil {
		f.prepare(n, p)
	}
	f.dials <- p
	return p, nil
}

func (f *fakeTransport) next(t *testing.T) *pipeConn {
	t.Helper()
	select {
	case p := <-f.dials:
		return p
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for dial")
		return nil
	}
}

func recvFrame(t *testing.T, p *pipeConn) *Frame {
	t.Helper()
	select {
	case data := <-p.out:
		f, err := UnmarshalFrame(data)
		if err != nil {
			t.Fatalf("channel wrote a bad frame: %v", err)
		}
		return f
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for frame")
		return nil
	}
}

func fastBackoff() Backoff {
	return Backoff{BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Multiplier: 2}
}
