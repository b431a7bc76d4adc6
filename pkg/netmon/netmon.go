// Package netmon reports network reachability transitions.
package netmon

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status is a reachability snapshot.
type Status struct {
	Online bool
	Since  time.Time
}

// Listener receives status transitions.
type Listener func(Status)

// broadcaster holds the current status and fans transitions out to listeners.
type broadcaster struct {
	mu        sync.Mutex
	status    Status
	listeners map[string]Listener
}

func newBroadcaster(online bool) *broadcaster {
	return &broadcaster{
		status:    Status{Online: online, Since: time.Now()},
		listeners: make(map[string]Listener),
	}
}

func (b *broadcaster) Online() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.status.Online
}

func (b *broadcaster) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.status
}

// Subscribe registers fn for future transitions and returns its cancel func.
func (b *broadcaster) Subscribe(fn Listener) func() {
	id := uuid.NewString()
	b.mu.Lock()
	b.listeners[id] = fn
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.listeners, id)
		b.mu.Unlock()
	}
}

// set records online and notifies listeners if it changed.
func (b *broadcaster) set(online bool) bool {
	b.mu.Lock()
	if b.status.Online == online {
		b.mu.Unlock()
		return false
	}
	b.status = Status{Online: online, Since: time.Now()}
	status := b.status
	listeners := make([]Listener, 0, len(b.listeners))
	for _, fn := range b.listeners {
		listeners = append(listeners, fn)
	}
	b.mu.Unlock()

	for _, fn := range listeners {
		fn(status)
	}
	return true
}

// Manual is a monitor driven by the host, for platforms that already have
// a reachability API and for tests.
type Manual struct {
	*broadcaster
}

// NewManual creates a monitor with the given initial state.
func NewManual(online bool) *Manual {
	return &Manual{broadcaster: newBroadcaster(online)}
}

// Set updates the state, notifying listeners on a transition.
func (m *Manual) Set(online bool) {
	m.set(online)
}
