package pqmsg

import (
	"context"
	"fmt"
	"regexp"
	"sync"
	"time"
)

const defaultWaitTimeout = 60 * time.Second

// waitConfig holds configuration for waiting on messages.
type waitConfig struct {
	from         string
	content      string
	contentRegex *regexp.Regexp
	predicate    func(*Message) bool
	timeout      time.Duration
}

// WaitOption configures message waiting.
type WaitOption func(*waitConfig)

// WithFrom filters messages by sender DID. Unread messages already in the
// history from that sender also match.
func WithFrom(did string) WaitOption {
	return func(c *waitConfig) {
		c.from = did
	}
}

// WithContent filters messages by exact content.
func WithContent(content string) WaitOption {
	return func(c *waitConfig) {
		c.content = content
	}
}

// WithContentRegex filters messages by content regex.
func WithContentRegex(pattern *regexp.Regexp) WaitOption {
	return func(c *waitConfig) {
		c.contentRegex = pattern
	}
}

// WithPredicate filters messages by custom predicate.
func WithPredicate(fn func(*Message) bool) WaitOption {
	return func(c *waitConfig) {
		c.predicate = fn
	}
}

// WithWaitTimeout sets the timeout for waiting.
func WithWaitTimeout(timeout time.Duration) WaitOption {
	return func(c *waitConfig) {
		c.timeout = timeout
	}
}

// Matches checks if a message matches the wait criteria.
func (w *waitConfig) Matches(m *Message) bool {
	if w.from != "" && m.Sender != w.from {
		return false
	}
	if w.content != "" && m.Content != w.content {
		return false
	}
	if w.contentRegex != nil && !w.contentRegex.MatchString(m.Content) {
		return false
	}
	if w.predicate != nil && !w.predicate(m) {
		return false
	}
	return true
}

// Watch returns a channel that receives messages from the given peers, or
// from anyone if none are given, as they arrive.
// The channel is not closed when the context is cancelled; use a select
// on ctx.Done() to detect cancellation.
//
// Example:
//
//	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
//	defer cancel()
//
//	ch := m.Watch(ctx, bob.DID)
//	for {
//	    select {
//	    case <-ctx.Done():
//	        return
//	    case msg := <-ch:
//	        fmt.Printf("%s: %s\n", msg.Sender, msg.Content)
//	    }
//	}
func (m *Messenger) Watch(ctx context.Context, peers ...string) <-chan *Message {
	ch := make(chan *Message, 16)
	q := &watchQueue{wake: make(chan struct{}, 1)}

	unsubscribe := m.subs.subscribe(func(msg *Message) {
		if !q.push(msg) {
			m.logger.WithField("id", msg.ID).Warn("watch queue full, dropping message")
		}
	}, peers...)

	// One forwarder keeps arrival order and never blocks delivery. ch is
	// not closed: WatchFunc and WaitForMessageCount select on ctx instead.
	go func() {
		defer unsubscribe()
		for {
			msg, ok := q.pop()
			if !ok {
				select {
				case <-q.wake:
					continue
				case <-ctx.Done():
					return
				}
			}
			select {
			case ch <- msg:
			case <-ctx.Done():
				return
			}
		}
	}()

	return ch
}

// watchQueueLimit bounds the messages held for a reader that stopped reading.
const watchQueueLimit = 1024

// watchQueue is a FIFO between subscription callbacks and a Watch forwarder.
type watchQueue struct {
	mu    sync.Mutex
	items []*Message
	wake  chan struct{}
}

func (q *watchQueue) push(msg *Message) bool {
	q.mu.Lock()
	if len(q.items) >= watchQueueLimit {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items, msg)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return true
}

func (q *watchQueue) pop() (*Message, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil, false
	}
	msg := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	return msg, true
}

// WatchFunc calls fn for each message until the context is cancelled.
// This is a convenience wrapper around Watch for simpler use cases.
func (m *Messenger) WatchFunc(ctx context.Context, fn func(*Message), peers ...string) {
	msgs := m.Watch(ctx, peers...)
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-msgs:
			if msg != nil {
				fn(msg)
			}
		}
	}
}

// WaitForMessage waits for a received message matching the given criteria.
func (m *Messenger) WaitForMessage(ctx context.Context, opts ...WaitOption) (*Message, error) {
	msgs, err := m.WaitForMessageCount(ctx, 1, opts...)
	if err != nil {
		return nil, err
	}
	return msgs[0], nil
}

// WaitForMessageCount waits until at least count matching messages have been
// received.
func (m *Messenger) WaitForMessageCount(ctx context.Context, count int, opts ...WaitOption) ([]*Message, error) {
	if count < 0 {
		return nil, fmt.Errorf("count must be non-negative, got %d", count)
	}
	if count == 0 {
		return []*Message{}, nil
	}

	cfg := &waitConfig{
		timeout: defaultWaitTimeout,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.timeout)
	defer cancel()

	// Track seen message IDs to avoid duplicates
	seen := make(map[string]struct{})
	var results []*Message

	addIfNew := func(msg *Message) {
		if _, ok := seen[msg.ID]; ok {
			return
		}
		if cfg.Matches(msg) {
			seen[msg.ID] = struct{}{}
			results = append(results, msg)
		}
	}

	// 1. Start watching FIRST to avoid race condition
	var msgs <-chan *Message
	if cfg.from != "" {
		msgs = m.Watch(ctx, cfg.from)
	} else {
		msgs = m.Watch(ctx)
	}

	// 2. Check unread history (handles already-arrived case)
	if cfg.from != "" {
		existing, err := m.History(cfg.from)
		if err != nil {
			return nil, err
		}
		for i := range existing {
			if existing[i].Status == StatusUnread {
				addIfNew(&existing[i])
			}
			if len(results) >= count {
				return results[:count], nil
			}
		}
	}

	// 3. Watch for new messages
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case msg := <-msgs:
			if msg != nil {
				addIfNew(msg)
				if len(results) >= count {
					return results[:count], nil
				}
			}
		}
	}
}
