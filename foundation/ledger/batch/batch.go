// Package batch buffers committed-transaction events until enough have
// arrived to seal a block. The buffer is keyed by transaction id so a
// redelivered event replaces its earlier copy instead of duplicating it,
// and arrival order is preserved for the merkle tree.
package batch

import (
	"sync"

	"github.com/google/uuid"

	"github.com/minibank/ledger/foundation/ledger/stream"
)

// DefaultBatchSize is the buffer threshold that triggers sealing when no
// size is configured.
const DefaultBatchSize = 10

// Batcher collects events from concurrent producers and hands them out in
// atomic drained batches. Losing a taken batch before its block is
// persisted loses those events; durability beyond the process is the
// stream's job.
type Batcher struct {
	mu    sync.Mutex
	size  int
	order []uuid.UUID
	buf   map[uuid.UUID]stream.Event
}

// New constructs a batcher sealing at the specified size. A size below 1
// falls back to the default.
func New(size int) *Batcher {
	if size < 1 {
		size = DefaultBatchSize
	}

	return &Batcher{
		size: size,
		buf:  make(map[uuid.UUID]stream.Event),
	}
}

// OnEvent folds an event into the buffer. An event for a transaction
// already buffered replaces the earlier copy in place.
func (b *Batcher) OnEvent(ev stream.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.buf[ev.TransactionID]; !exists {
		b.order = append(b.order, ev.TransactionID)
	}
	b.buf[ev.TransactionID] = ev
}

// ShouldSeal reports whether the buffer has reached the sealing threshold.
func (b *Batcher) ShouldSeal() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.buf) >= b.size
}

// Len returns the current buffer size.
func (b *Batcher) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.buf)
}

// TakeBatch atomically drains the buffer and returns the events in
// arrival order. A concurrent OnEvent lands in the next batch.
func (b *Batcher) TakeBatch() []stream.Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.buf) == 0 {
		return nil
	}

	events := make([]stream.Event, 0, len(b.order))
	for _, id := range b.order {
		events = append(events, b.buf[id])
	}

	b.order = nil
	b.buf = make(map[uuid.UUID]stream.Event)

	return events
}
