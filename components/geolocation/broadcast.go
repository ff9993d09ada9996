package geolocation

import (
	"sync"

	"github.com/google/uuid"

	"go.viam.com/geolocation/logging"
)

// defaultSubscriberBuffer is the channel capacity handed to each subscriber.
const defaultSubscriberBuffer = 16

type subscriber[T any] struct {
	id      string
	ch      chan T
	dropped int
	closed  bool
}

// broadcaster fans one stream of values out to any number of subscriber channels. Sends never
// block: a subscriber whose buffer is full misses the value.
type broadcaster[T any] struct {
	mu      sync.Mutex
	name    string
	bufSize int
	logger  logging.Logger
	subs    []*subscriber[T]
	closed  bool
}

func newBroadcaster[T any](name string, bufSize int, logger logging.Logger) *broadcaster[T] {
	if bufSize <= 0 {
		bufSize = defaultSubscriberBuffer
	}
	return &broadcaster[T]{
		name:    name,
		bufSize: bufSize,
		logger:  logger,
		subs:    make([]*subscriber[T], 0, 4),
	}
}

// subscribe returns a channel of future values and a func that cancels the subscription and
// closes the channel. The returned channel is already closed if the broadcaster is.
func (b *broadcaster[T]) subscribe() (<-chan T, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &subscriber[T]{id: uuid.NewString(), ch: make(chan T, b.bufSize)}
	if b.closed {
		close(sub.ch)
		return sub.ch, func() {}
	}
	b.subs = append(b.subs, sub)
	return sub.ch, func() { b.unsubscribe(sub) }
}

func (b *broadcaster[T]) unsubscribe(sub *subscriber[T]) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if sub.closed {
		return
	}
	sub.closed = true
	close(sub.ch)
	b.prune()
	b.logger.Debugw("unsubscribed", "stream", b.name, "subscriber", sub.id)
}

// prune drops closed subscribers, keeping the order of the rest.
func (b *broadcaster[T]) prune() {
	kept := b.subs[:0]
	for _, sub := range b.subs {
		if !sub.closed {
			kept = append(kept, sub)
		}
	}
	for i := len(kept); i < len(b.subs); i++ {
		b.subs[i] = nil
	}
	b.subs = kept
}

func (b *broadcaster[T]) send(v T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, sub := range b.subs {
		select {
		case sub.ch <- v:
		default:
			sub.dropped++
			b.logger.Warnw("subscriber buffer full, dropping event", "stream", b.name, "subscriber", sub.id, "dropped", sub.dropped)
		}
	}
}

func (b *broadcaster[T]) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// close closes every subscriber channel. Later subscriptions get a closed channel.
func (b *broadcaster[T]) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, sub := range b.subs {
		if !sub.closed {
			sub.closed = true
			close(sub.ch)
		}
	}
	b.subs = nil
}
