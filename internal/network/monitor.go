// Package network exposes connectivity state to the sync engine.
package network

import "sync"

// Monitor reports connectivity and delivers availability transitions.
type Monitor interface {
	// Online reports the current availability.
	Online() bool
	// Subscribe registers a callback invoked on every availability
	// transition. The returned function cancels the subscription.
	Subscribe(fn func(online bool)) (cancel func())
	// NotifyOnce registers a callback delivered for the next transition
	// only; the subscription is removed before the callback runs. The
	// returned function cancels an undelivered subscription.
	NotifyOnce(fn func(online bool)) (cancel func())
}

type subscriber struct {
	fn   func(online bool)
	once bool
}

// StatusMonitor is a mutex-guarded Monitor fed by an external
// connectivity source through SetOnline.
type StatusMonitor struct {
	mu          sync.Mutex
	online      bool
	nextID      int64
	subscribers map[int64]*subscriber
}

// NewStatusMonitor creates a monitor with the given initial state.
func NewStatusMonitor(initiallyOnline bool) *StatusMonitor {
	return &StatusMonitor{
		online:      initiallyOnline,
		subscribers: make(map[int64]*subscriber),
	}
}

// Online implements Monitor.
func (m *StatusMonitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Subscribe implements Monitor.
func (m *StatusMonitor) Subscribe(fn func(online bool)) func() {
	return m.register(&subscriber{fn: fn})
}

// NotifyOnce implements Monitor.
func (m *StatusMonitor) NotifyOnce(fn func(online bool)) func() {
	return m.register(&subscriber{fn: fn, once: true})
}

func (m *StatusMonitor) register(sub *subscriber) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	id := m.nextID
	m.subscribers[id] = sub
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subscribers, id)
	}
}

// SetOnline records a connectivity change. Callbacks fire only on actual
// transitions and run outside the lock; one-shot subscriptions are
// removed before their callback is invoked.
func (m *StatusMonitor) SetOnline(online bool) {
	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return
	}
	m.online = online
	pending := make([]func(bool), 0, len(m.subscribers))
	for id, sub := range m.subscribers {
		pending = append(pending, sub.fn)
		if sub.once {
			delete(m.subscribers, id)
		}
	}
	m.mu.Unlock()

	for _, fn := range pending {
		fn(online)
	}
}
