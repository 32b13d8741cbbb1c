// Package events fans executed and rejected ledger records out to interested consumers.
package events

import (
	"sync"

	"github.com/vadiminshakov/rsibot/internal/domain"
)

// Sink receives every transaction a strategy records.
type Sink interface {
	Publish(tx domain.Transaction)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(tx domain.Transaction)

// Publish calls f(tx).
func (f SinkFunc) Publish(tx domain.Transaction) { f(tx) }

// Multi forwards to several sinks in order. Nil sinks are skipped.
type Multi []Sink

// Publish forwards tx to every sink.
func (m Multi) Publish(tx domain.Transaction) {
	for _, s := range m {
		if s != nil {
			s.Publish(tx)
		}
	}
}

// Broadcaster fans out transactions to all subscribers via buffered channels.
type Broadcaster struct {
	mu     sync.RWMutex
	subs   map[chan domain.Transaction]struct{}
	buffer int
}

// NewBroadcaster creates a broadcaster with the given per-subscriber buffer.
func NewBroadcaster(buffer int) *Broadcaster {
	if buffer < 1 {
		buffer = 64
	}
	return &Broadcaster{
		subs:   make(map[chan domain.Transaction]struct{}),
		buffer: buffer,
	}
}

// Publish sends tx to all subscribers, dropping it for readers that fall behind.
func (b *Broadcaster) Publish(tx domain.Transaction) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- tx:
		default:
			// slow consumer
		}
	}
}

// Subscribe returns a channel that receives transactions until Unsubscribe is called.
func (b *Broadcaster) Subscribe() chan domain.Transaction {
	ch := make(chan domain.Transaction, b.buffer)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes the channel and closes it.
func (b *Broadcaster) Unsubscribe(ch chan domain.Transaction) {
	b.mu.Lock()
	if _, ok := b.subs[ch]; ok {
		delete(b.subs, ch)
		close(ch)
	}
	b.mu.Unlock()
}

// Subscribers returns the number of active subscriptions.
func (b *Broadcaster) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
