package cart

import "sync"

// Event announces that a user's cart changed and carries the new item count.
type Event struct {
	UserID string
	Count  int
}

// Notifier fans cart change events out to subscribed views. Delivery is
// best-effort: a subscriber whose buffer is full misses the event and catches
// up on its next read, mirroring how a browser tab misses a storage event it
// was not listening for.
type Notifier struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan Event
}

// NewNotifier constructs an empty notifier.
func NewNotifier() *Notifier {
	return &Notifier{subs: make(map[int]chan Event)}
}

// Subscribe registers a listener and returns its channel along with a cancel
// function that must be called when the listener goes away.
func (n *Notifier) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 8)

	n.mu.Lock()
	id := n.nextID
	n.nextID++
	n.subs[id] = ch
	n.mu.Unlock()

	cancel := func() {
		n.mu.Lock()
		if existing, ok := n.subs[id]; ok {
			delete(n.subs, id)
			close(existing)
		}
		n.mu.Unlock()
	}

	return ch, cancel
}

// Publish delivers the event to every subscriber without blocking.
func (n *Notifier) Publish(event Event) {
	n.mu.Lock()
	defer n.mu.Unlock()

	for _, ch := range n.subs {
		select {
		case ch <- event:
		default:
		}
	}
}
