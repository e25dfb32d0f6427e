package pqmsg

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/pqmsg/pqmsg/internal/envelope"
)

func TestWaitConfig_Matches(t *testing.T) {
	msg := &Message{ID: "1", Sender: "did:pqm:alice", Content: "order 42 shipped"}

	tests := []struct {
		name string
		opts []WaitOption
		want bool
	}{
		{"no filters", nil, true},
		{"from match", []WaitOption{WithFrom("did:pqm:alice")}, true},
		{"from mismatch", []WaitOption{WithFrom("did:pqm:bob")}, false},
		{"content match", []WaitOption{WithContent("order 42 shipped")}, true},
		{"content mismatch", []WaitOption{WithContent("order 43")}, false},
		{"regex", []WaitOption{WithContentRegex(regexp.MustCompile(`order \d+`))}, true},
		{"regex mismatch", []WaitOption{WithContentRegex(regexp.MustCompile(`^refund`))}, false},
		{"predicate", []WaitOption{WithPredicate(func(m *Message) bool { return m.ID == "1" })}, true},
		{"predicate mismatch", []WaitOption{WithPredicate(func(m *Message) bool { return false })}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &waitConfig{}
			for _, opt := range tt.opts {
				opt(cfg)
			}
			if got := cfg.Matches(msg); got != tt.want {
				t.Errorf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWaitForMessage_AlreadyReceived(t *testing.T) {
	alice, bob := newPair(t)
	ctx := context.Background()

	env, err := alice.OnSendRequested(ctx, bob.DID(), "early")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := bob.Receive(ctx, alice.DID(), env); err != nil {
		t.Fatal(err)
	}

	msg, err := bob.WaitForMessage(ctx, WithFrom(alice.DID()), WithWaitTimeout(time.Second))
	if err != nil {
		t.Fatalf("WaitForMessage() error = %v", err)
	}
	if msg.Content != "early" {
		t.Errorf("Content = %q", msg.Content)
	}
}

func TestWaitForMessageCount_Live(t *testing.T) {
	alice, bob := newPair(t)
	ctx := context.Background()

	done := make(chan []*Message, 1)
	errs := make(chan error, 1)
	go func() {
		msgs, err := bob.WaitForMessageCount(ctx, 2, WithContentRegex(regexp.MustCompile(`^n`)), WithWaitTimeout(5*time.Second))
		if err != nil {
			errs <- err
			return
		}
		done <- msgs
	}()

	// Let the waiter subscribe.
	time.Sleep(20 * time.Millisecond)
	for _, text := range []string{"n1", "skip", "n2"} {
		env, err := alice.OnSendRequested(ctx, bob.DID(), text)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := bob.Receive(ctx, alice.DID(), env); err != nil {
			t.Fatal(err)
		}
	}

	select {
	case msgs := <-done:
		if len(msgs) != 2 {
			t.Errorf("got %d messages, want 2", len(msgs))
		}
		for _, m := range msgs {
			if m.Content == "skip" {
				t.Error("filtered message returned")
			}
		}
	case err := <-errs:
		t.Fatalf("WaitForMessageCount() error = %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out")
	}
}

func TestWaitForMessage_Timeout(t *testing.T) {
	m, _ := newMessenger(t)
	_, err := m.WaitForMessage(context.Background(), WithWaitTimeout(20*time.Millisecond))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("WaitForMessage() error = %v, want DeadlineExceeded", err)
	}
}

func TestWaitForMessageCount_Bounds(t *testing.T) {
	m, _ := newMessenger(t)
	if _, err := m.WaitForMessageCount(context.Background(), -1); err == nil {
		t.Error("negative count should fail")
	}
	msgs, err := m.WaitForMessageCount(context.Background(), 0)
	if err != nil || len(msgs) != 0 {
		t.Errorf("WaitForMessageCount(0) = %v, %v", msgs, err)
	}
}

func TestWatchFunc_StopsOnCancel(t *testing.T) {
	alice, bob := newPair(t)
	ctx, cancel := context.WithCancel(context.Background())

	got := make(chan string, 1)
	finished := make(chan struct{})
	go func() {
		bob.WatchFunc(ctx, func(m *Message) { got <- m.Content }, alice.DID())
		close(finished)
	}()
	time.Sleep(20 * time.Millisecond)

	env, err := alice.OnSendRequested(context.Background(), bob.DID(), "ping")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := bob.Receive(context.Background(), alice.DID(), env); err != nil {
		t.Fatal(err)
	}

	select {
	case content := <-got:
		if content != "ping" {
			t.Errorf("content = %q", content)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("WatchFunc did not deliver")
	}

	cancel()
	select {
	case <-finished:
	case <-time.After(5 * time.Second):
		t.Fatal("WatchFunc did not return after cancel")
	}
}

func TestWatch_PreservesArrivalOrder(t *testing.T) {
	alice, bob := newPair(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := bob.Watch(ctx, alice.DID())

	// Nothing reads ch while the messages arrive, so delivery must not
	// block on the reader.
	const n = 200
	for i := 0; i < n; i++ {
		env, err := alice.OnSendRequested(ctx, bob.DID(), fmt.Sprintf("m%03d", i))
		if err != nil {
			t.Fatal(err)
		}
		bob.handleEnvelope(ctx, alice.DID(), envelope.Marshal(env))
	}

	for i := 0; i < n; i++ {
		select {
		case msg := <-ch:
			if want := fmt.Sprintf("m%03d", i); msg.Content != want {
				t.Fatalf("message %d = %q, want %q", i, msg.Content, want)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out after %d messages", i)
		}
	}
}

func TestWatchQueue_Limit(t *testing.T) {
	q := &watchQueue{wake: make(chan struct{}, 1)}
	for i := 0; i < watchQueueLimit; i++ {
		if !q.push(&Message{ID: fmt.Sprint(i)}) {
			t.Fatalf("push %d rejected below the limit", i)
		}
	}
	if q.push(&Message{ID: "over"}) {
		t.Error("push accepted past the limit")
	}

	first, ok := q.pop()
	if !ok || first.ID != "0" {
		t.Errorf("pop() = %v, %v, want message 0", first, ok)
	}
	if !q.push(&Message{ID: "again"}) {
		t.Error("push rejected after pop made room")
	}
}
