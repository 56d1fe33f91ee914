package eventhub

import (
	"sync"

	"github.com/AzielCF/wa-gateway/domains/event"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// DefaultBufferSize is the number of pending events a subscriber may hold
// before it is considered too slow and evicted.
const DefaultBufferSize = 100

// Subscription is a single consumer of the hub.
type Subscription struct {
	ID string

	ch     chan event.Event
	mu     sync.Mutex
	closed bool
}

// Events returns the delivery channel. It is closed on unsubscribe.
func (s *Subscription) Events() <-chan event.Event {
	return s.ch
}

// offer performs a non-blocking send. It returns false when the buffer is full.
func (s *Subscription) offer(evt event.Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return true
	}
	select {
	case s.ch <- evt:
		return true
	default:
		return false
	}
}

func (s *Subscription) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

// Hub fans events out to every current subscriber without ever blocking the
// producer. Subscribers that cannot keep up are dropped.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]*Subscription
	bufferSize  int
}

func NewHub(bufferSize int) *Hub {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Hub{
		subscribers: make(map[string]*Subscription),
		bufferSize:  bufferSize,
	}
}

func (h *Hub) Subscribe() *Subscription {
	sub := &Subscription{
		ID: uuid.NewString(),
		ch: make(chan event.Event, h.bufferSize),
	}

	h.mu.Lock()
	h.subscribers[sub.ID] = sub
	total := len(h.subscribers)
	h.mu.Unlock()

	logrus.WithFields(logrus.Fields{"sub_id": sub.ID, "subscribers": total}).Debug("[EVENTS] Subscriber added")
	return sub
}

// Unsubscribe removes the subscriber and closes its channel. Calling it more
// than once is harmless.
func (h *Hub) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}

	h.mu.Lock()
	_, ok := h.subscribers[sub.ID]
	delete(h.subscribers, sub.ID)
	h.mu.Unlock()

	sub.close()
	if ok {
		logrus.WithField("sub_id", sub.ID).Debug("[EVENTS] Subscriber removed")
	}
}

// Broadcast delivers evt to every subscriber. Subscribers whose buffer is
// full are evicted once the pass is complete.
func (h *Hub) Broadcast(evt event.Event) {
	h.mu.RLock()
	targets := make([]*Subscription, 0, len(h.subscribers))
	for _, sub := range h.subscribers {
		targets = append(targets, sub)
	}
	h.mu.RUnlock()

	var slow []*Subscription
	for _, sub := range targets {
		if !sub.offer(evt) {
			slow = append(slow, sub)
		}
	}

	for _, sub := range slow {
		logrus.WithFields(logrus.Fields{
			"sub_id": sub.ID,
			"event":  evt.Type,
		}).Warn("[EVENTS] Evicting slow subscriber")
		h.Unsubscribe(sub)
	}
}

// Count returns the number of live subscribers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// Close unsubscribes everyone.
func (h *Hub) Close() {
	h.mu.Lock()
	subs := h.subscribers
	h.subscribers = make(map[string]*Subscription)
	h.mu.Unlock()

	for _, sub := range subs {
		sub.close()
	}
}
