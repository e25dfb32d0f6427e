package pqmsg

import (
	"sync"
	"sync/atomic"
)

// subscription is one registered callback. A nil peer set matches every
// sender.
type subscription struct {
	peers    map[string]struct{}
	callback func(*Message)
	active   atomic.Bool
}

func (s *subscription) matches(sender string) bool {
	if s.peers == nil {
		return true
	}
	_, ok := s.peers[sender]
	return ok
}

// subscriptionManager fans received messages out to callbacks. Once an
// unsubscribe func returns, its callback is not started again.
type subscriptionManager struct {
	mu     sync.RWMutex
	subs   map[uint64]*subscription
	nextID uint64
}

func newSubscriptionManager() *subscriptionManager {
	return &subscriptionManager{subs: make(map[uint64]*subscription)}
}

// subscribe registers callback for messages from any of peers, or from
// everyone when peers is empty. The returned func is idempotent.
func (m *subscriptionManager) subscribe(callback func(*Message), peers ...string) func() {
	sub := &subscription{callback: callback}
	if len(peers) > 0 {
		sub.peers = make(map[string]struct{}, len(peers))
		for _, p := range peers {
			sub.peers[p] = struct{}{}
		}
	}
	sub.active.Store(true)

	m.mu.Lock()
	m.nextID++
	id := m.nextID
	m.subs[id] = sub
	m.mu.Unlock()

	return func() {
		if !sub.active.Swap(false) {
			return
		}
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}

// notify invokes matching callbacks on the caller's goroutine. The set is
// copied under the read lock so callbacks may subscribe or unsubscribe.
func (m *subscriptionManager) notify(msg *Message) {
	m.mu.RLock()
	var targets []*subscription
	for _, sub := range m.subs {
		if sub.matches(msg.Sender) {
			targets = append(targets, sub)
		}
	}
	m.mu.RUnlock()

	for _, sub := range targets {
		if sub.active.Load() {
			sub.callback(msg)
		}
	}
}

// clear deactivates and drops every subscription.
func (m *subscriptionManager) clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, sub := range m.subs {
		sub.active.Store(false)
		delete(m.subs, id)
	}
}
