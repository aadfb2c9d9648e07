// Package pubsub fans out title-update notifications to live subscribers.
// Delivery is at-most-once per subscriber and nothing is retained: a
// subscriber that connects after a publish never sees it.
package pubsub

import "sync"

// TitleEvent announces that a conversation received an auto-generated title.
// Subscribers must check the event against their own session before acting
// on it; the bus itself performs no authorization.
type TitleEvent struct {
	ConversationID int64  `json:"conversation_id"`
	UserID         int64  `json:"user_id"`
	Title          string `json:"title"`
}

// Bus is an in-process fan-out for TitleEvents. One instance is constructed
// at startup and injected; tests build their own isolated copies.
type Bus struct {
	mu     sync.Mutex
	nextID int64
	subs   map[int64]chan TitleEvent
}

func NewBus() *Bus {
	return &Bus{subs: make(map[int64]chan TitleEvent)}
}

// Subscribe registers a subscriber and returns its event channel together
// with an unsubscribe function. Unsubscribing closes the channel; calling
// the returned function more than once is safe.
func (b *Bus) Subscribe(buffer int) (<-chan TitleEvent, func()) {
	if buffer < 1 {
		buffer = 1
	}

	b.mu.Lock()
	b.nextID++
	id := b.nextID
	ch := make(chan TitleEvent, buffer)
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, unsubscribe
}

// Publish delivers the event to every current subscriber. Sends never
// block: a subscriber whose buffer is full misses the event.
func (b *Bus) Publish(ev TitleEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Subscribers returns the number of live subscribers.
func (b *Bus) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
