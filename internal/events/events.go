// Package events provides the asynchronous commit bus that fans datastore
// writes out to the live synchronization layer.
package events

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/frogwatch/frogwatch-go/internal/logging"
)

// Collection identifies which document collection a commit touched.
type Collection string

const (
	CollectionRecordings Collection = "recordings"
	CollectionUsers      Collection = "users"
)

// CommitEvent describes one committed write. Consumers re-query the store for
// the full result set; the event itself carries no document data, so there is
// nothing partial to apply.
type CommitEvent struct {
	Collection Collection
	DocID      string
	At         time.Time
}

// Consumer receives commit events in commit order.
type Consumer interface {
	Name() string
	OnCommit(ev CommitEvent)
}

// Bus delivers commit events to registered consumers without blocking the
// committing writer. A single dispatch worker preserves commit order, which
// downstream snapshot streams depend on.
type Bus struct {
	eventChan chan CommitEvent

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	consumers []Consumer
	running   atomic.Bool

	dropped atomic.Uint64
	logger  *slog.Logger
}

// Config holds bus configuration.
type Config struct {
	BufferSize int
}

// DefaultConfig returns the default bus configuration.
func DefaultConfig() *Config {
	return &Config{BufferSize: 1024}
}

// NewBus creates a commit bus and starts its dispatch worker.
func NewBus(config *Config) *Bus {
	if config == nil {
		config = DefaultConfig()
	}

	ctx, cancel := context.WithCancel(context.Background())
	b := &Bus{
		eventChan: make(chan CommitEvent, config.BufferSize),
		ctx:       ctx,
		cancel:    cancel,
		logger:    logging.ForService("events"),
	}
	if b.logger == nil {
		b.logger = slog.Default()
	}

	b.running.Store(true)
	b.wg.Add(1)
	go b.dispatchLoop()

	return b
}

// RegisterConsumer adds a consumer. Later events are delivered to it in
// commit order; events published before registration are not replayed.
func (b *Bus) RegisterConsumer(consumer Consumer) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.consumers = append(b.consumers, consumer)
	b.logger.Info("registered commit consumer", "consumer", consumer.Name())
}

// UnregisterConsumer removes a consumer by name.
func (b *Bus) UnregisterConsumer(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, c := range b.consumers {
		if c.Name() == name {
			b.consumers = append(b.consumers[:i], b.consumers[i+1:]...)
			return
		}
	}
}

// Publish enqueues a commit event without blocking. When the buffer is full
// the event is dropped and counted; consumers re-query full result sets on
// the next event, so a drop delays a snapshot rather than corrupting one.
func (b *Bus) Publish(ev CommitEvent) {
	if !b.running.Load() {
		return
	}
	select {
	case b.eventChan <- ev:
	default:
		n := b.dropped.Add(1)
		b.logger.Warn("commit event buffer full, dropping event",
			"collection", ev.Collection,
			"dropped_total", n)
	}
}

// Dropped returns the number of events dropped due to a full buffer.
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}

// Shutdown stops the dispatch worker and waits for it to drain.
func (b *Bus) Shutdown() {
	if !b.running.CompareAndSwap(true, false) {
		return
	}
	b.cancel()
	b.wg.Wait()
}

func (b *Bus) dispatchLoop() {
	defer b.wg.Done()
	for {
		select {
		case <-b.ctx.Done():
			// Drain whatever is already queued before exiting.
			for {
				select {
				case ev := <-b.eventChan:
					b.deliver(ev)
				default:
					return
				}
			}
		case ev := <-b.eventChan:
			b.deliver(ev)
		}
	}
}

func (b *Bus) deliver(ev CommitEvent) {
	b.mu.Lock()
	consumers := make([]Consumer, len(b.consumers))
	copy(consumers, b.consumers)
	b.mu.Unlock()

	for _, c := range consumers {
		c.OnCommit(ev)
	}
}
