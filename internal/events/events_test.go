package events

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type captureConsumer struct {
	name string

	mu     sync.Mutex
	events []CommitEvent
}

func (c *captureConsumer) Name() string { return c.name }

func (c *captureConsumer) OnCommit(ev CommitEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

func (c *captureConsumer) snapshot() []CommitEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]CommitEvent, len(c.events))
	copy(out, c.events)
	return out
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestBusPreservesCommitOrder(t *testing.T) {
	defer goleak.VerifyNone(t)

	bus := NewBus(nil)
	defer bus.Shutdown()

	consumer := &captureConsumer{name: "capture"}
	bus.RegisterConsumer(consumer)

	const n = 100
	for i := 0; i < n; i++ {
		bus.Publish(CommitEvent{
			Collection: CollectionRecordings,
			DocID:      string(rune('a' + i%26)),
			At:         time.Now(),
		})
	}

	waitFor(t, func() bool { return len(consumer.snapshot()) == n })

	events := consumer.snapshot()
	require.Len(t, events, n)
	for i := 1; i < n; i++ {
		assert.False(t, events[i].At.Before(events[i-1].At),
			"delivery must follow publish order")
	}
}

func TestBusUnregisterStopsDelivery(t *testing.T) {
	defer goleak.VerifyNone(t)

	bus := NewBus(nil)
	defer bus.Shutdown()

	consumer := &captureConsumer{name: "capture"}
	bus.RegisterConsumer(consumer)

	bus.Publish(CommitEvent{Collection: CollectionUsers, DocID: "u1", At: time.Now()})
	waitFor(t, func() bool { return len(consumer.snapshot()) == 1 })

	bus.UnregisterConsumer("capture")
	bus.Publish(CommitEvent{Collection: CollectionUsers, DocID: "u2", At: time.Now()})

	// Give the dispatch worker a moment; nothing more should arrive.
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, consumer.snapshot(), 1)
}

func TestBusShutdownDrainsQueue(t *testing.T) {
	defer goleak.VerifyNone(t)

	bus := NewBus(&Config{BufferSize: 64})
	consumer := &captureConsumer{name: "capture"}
	bus.RegisterConsumer(consumer)

	for i := 0; i < 10; i++ {
		bus.Publish(CommitEvent{Collection: CollectionRecordings, DocID: "r", At: time.Now()})
	}
	bus.Shutdown()

	assert.Len(t, consumer.snapshot(), 10, "queued events must be delivered before shutdown returns")

	// Publishing after shutdown is a silent no-op.
	bus.Publish(CommitEvent{Collection: CollectionRecordings, DocID: "late", At: time.Now()})
	assert.Len(t, consumer.snapshot(), 10)
}

func TestBusDropsWhenBufferFull(t *testing.T) {
	defer goleak.VerifyNone(t)

	block := make(chan struct{})
	bus := NewBus(&Config{BufferSize: 1})
	defer bus.Shutdown()

	blocking := &blockingConsumer{release: block}
	bus.RegisterConsumer(blocking)

	// First event occupies the worker, the second fills the buffer, further
	// events are dropped and counted.
	for i := 0; i < 10; i++ {
		bus.Publish(CommitEvent{Collection: CollectionRecordings, DocID: "r", At: time.Now()})
	}
	close(block)

	waitFor(t, func() bool { return bus.Dropped() > 0 })
	assert.Positive(t, bus.Dropped())
}

type blockingConsumer struct {
	release chan struct{}
	once    sync.Once
}

func (c *blockingConsumer) Name() string { return "blocking" }

func (c *blockingConsumer) OnCommit(CommitEvent) {
	c.once.Do(func() { <-c.release })
}
