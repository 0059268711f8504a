// Package bus implements the named-topic publish/subscribe event bus (spec
// §2, §6) used to fan lifecycle signals — playStart, playStop, rowChange,
// sampleLoaded, projectLoaded — out to editor-side observers.
//
// cbegin-mmlfm-go has no equivalent (its player talks to a single UI model
// directly), so this is grounded on the corpus's general callback-registry
// idiom instead: schollz-221e's player.go keeps a slice of callback funcs
// under a mutex and calls them synchronously on state change. This bus
// generalizes that to multiple named topics.
package bus

import "sync"

// Handler receives a topic's payload. Per spec §5, handlers MUST NOT call
// back into mutating engine operations — delivery is synchronous on the
// control thread that published the event.
type Handler func(payload any)

// Bus is a synchronous, named-topic fan-out dispatcher. The zero value is
// ready to use.
type Bus struct {
	mu   sync.Mutex
	subs map[string][]subscription
	next int
}

type subscription struct {
	id      int
	handler Handler
}

// Subscription identifies a registered handler so it can be removed later.
type Subscription struct {
	topic string
	id    int
}

// On registers handler for topic and returns a Subscription usable with Off.
func (b *Bus) On(topic string, handler Handler) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subs == nil {
		b.subs = make(map[string][]subscription)
	}
	b.next++
	id := b.next
	b.subs[topic] = append(b.subs[topic], subscription{id: id, handler: handler})
	return Subscription{topic: topic, id: id}
}

// Off removes a previously registered handler. No-op if already removed.
func (b *Bus) Off(sub Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	handlers := b.subs[sub.topic]
	for i, s := range handlers {
		if s.id == sub.id {
			b.subs[sub.topic] = append(handlers[:i:i], handlers[i+1:]...)
			return
		}
	}
}

// Emit delivers payload to every handler currently subscribed to topic, in
// registration order. Emit takes a snapshot of the subscriber list before
// calling out, so a handler that subscribes or unsubscribes during delivery
// does not affect the current Emit call.
func (b *Bus) Emit(topic string, payload any) {
	b.mu.Lock()
	handlers := append([]subscription(nil), b.subs[topic]...)
	b.mu.Unlock()
	for _, s := range handlers {
		s.handler(payload)
	}
}
