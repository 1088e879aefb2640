package engagement

import (
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/ritim-app/ritim/internal/domain"
)

// Bus delivers domain events to in-process listeners. Delivery is
// synchronous and best-effort: only listeners subscribed at emission time
// see an event, nothing is queued or replayed.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]func(domain.Event)
	log    *log.Entry
}

// NewBus creates an empty event bus.
func NewBus() *Bus {
	return &Bus{
		subs: make(map[int]func(domain.Event)),
		log:  log.WithField("component", "bus"),
	}
}

// Subscribe registers fn and returns a function that removes it.
func (b *Bus) Subscribe(fn func(domain.Event)) (unsubscribe func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = fn
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		})
	}
}

// Publish delivers events in order to every current listener. A panicking
// listener is logged and skipped; the others still receive the event.
func (b *Bus) Publish(events ...domain.Event) {
	if b == nil || len(events) == 0 {
		return
	}
	b.mu.RLock()
	listeners := make([]func(domain.Event), 0, len(b.subs))
	for _, fn := range b.subs {
		listeners = append(listeners, fn)
	}
	b.mu.RUnlock()

	for _, ev := range events {
		for _, fn := range listeners {
			b.deliver(fn, ev)
		}
	}
}

func (b *Bus) deliver(fn func(domain.Event), ev domain.Event) {
	defer func() {
		if r := recover(); r != nil {
			b.log.WithFields(log.Fields{"event": ev.Type, "panic": r}).Error("listener panicked")
		}
	}()
	fn(ev)
}

// newEvent stamps an event with a fresh ID.
func newEvent(typ domain.EventType, userID string, at time.Time) domain.Event {
	return domain.Event{ID: uuid.NewString(), Type: typ, UserID: userID, At: at}
}
