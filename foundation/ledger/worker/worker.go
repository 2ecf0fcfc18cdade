// Package worker implements the background sealing pipeline: it consumes
// committed-transaction events off the stream, folds them into the
// batcher and seals a block whenever the threshold is reached or a seal
// is signalled.
package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/minibank/ledger/foundation/ledger/consensus"
	"github.com/minibank/ledger/foundation/ledger/state"
	"github.com/minibank/ledger/foundation/ledger/stream"
)

// consumerGroup names this worker's position on the event stream.
const consumerGroup = "block-sealers"

// Poll backoffs for the consume loop.
const (
	idleBackoff  = time.Second
	errorBackoff = 5 * time.Second
)

// readCount is how many stream entries one poll delivers at most.
const readCount = 16

// Worker manages the sealing goroutine. Consumed entries are acked only
// after they are safely in the batcher, so a crash between read and ack
// redelivers rather than loses them.
type Worker struct {
	state      *state.State
	wg         sync.WaitGroup
	shut       chan struct{}
	sealSignal chan bool
	sealCtx    context.Context
	cancelSeal context.CancelFunc
	evHandler  state.EventHandler
}

// Run creates the worker, registers it with the state and starts the
// consume goroutine. It doesn't return until the goroutine is running.
func Run(st *state.State, evHandler state.EventHandler) {
	ctx, cancel := context.WithCancel(context.Background())

	w := Worker{
		state:      st,
		shut:       make(chan struct{}),
		sealSignal: make(chan bool, 1),
		sealCtx:    ctx,
		cancelSeal: cancel,
		evHandler:  evHandler,
	}

	st.Worker = &w

	hasStarted := make(chan bool)

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		hasStarted <- true
		w.consumeOperations()
	}()

	<-hasStarted
}

// Shutdown terminates the consume goroutine, cancelling any seal in
// flight, and waits for it to finish.
func (w *Worker) Shutdown() {
	w.evHandler("worker: shutdown: started")
	defer w.evHandler("worker: shutdown: completed")

	w.cancelSeal()
	close(w.shut)
	w.wg.Wait()
}

// SignalSeal forces a seal attempt on the next loop iteration even if
// the batcher is under its threshold. Duplicate signals while one is
// pending are dropped.
func (w *Worker) SignalSeal() {
	select {
	case w.sealSignal <- true:
	default:
	}
}

// =============================================================================

// consumeOperations is the main loop: poll the stream, fold and ack,
// seal when due, back off when idle or failing. A failed seal backs off
// before the next attempt so a persistent failure, like an authority
// chain with no eligible validator, never spins the loop.
func (w *Worker) consumeOperations() {
	w.evHandler("worker: consume: G started")
	defer w.evHandler("worker: consume: G completed")

	for !w.isShutdown() {
		n := w.drain()

		if w.state.ShouldSeal() || w.takeSealSignal() {
			if !w.seal() {
				w.pause(errorBackoff)
			}
			continue
		}

		if n == 0 {
			w.pause(idleBackoff)
		}
	}
}

// drain reads a batch of entries off the stream, folds each parsed event
// into the batcher and acks it. A malformed entry is logged and acked so
// it can't wedge the group with endless redelivery.
func (w *Worker) drain() int {
	entries := w.state.Stream().Read(consumerGroup, readCount)

	for _, entry := range entries {
		ev, err := stream.ParseEvent(entry.Values)
		if err != nil {
			w.evHandler("worker: consume: entry[%d]: dropping malformed event: %s", entry.ID, err)
			w.state.Stream().Ack(consumerGroup, entry.ID)
			continue
		}

		w.state.OnEvent(ev)
		w.state.Stream().Ack(consumerGroup, entry.ID)
	}

	return len(entries)
}

// seal runs one seal attempt and reports whether the caller should back
// off. An empty batch is not a failure, just a signal that fired with
// nothing to do; a cancelled seal context means shutdown is in progress.
func (w *Worker) seal() bool {
	block, err := w.state.SealBlock(w.sealCtx)
	if err != nil {
		if errors.Is(err, consensus.ErrEmptyBatch) || errors.Is(err, context.Canceled) {
			return true
		}
		w.evHandler("worker: seal: ERROR: %s", err)
		return false
	}

	w.evHandler("worker: seal: block %d: hash[%s] trans[%d]", block.Number, block.Hash, block.TransactionCount)

	return true
}

// takeSealSignal consumes a pending seal signal without blocking.
func (w *Worker) takeSealSignal() bool {
	select {
	case <-w.sealSignal:
		return true
	default:
		return false
	}
}

// pause sleeps for the duration unless shutdown or a seal signal arrives
// first.
func (w *Worker) pause(d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-w.shut:
	case <-w.sealSignal:
		w.seal()
	case <-t.C:
	}
}

// isShutdown checks if a shutdown has been signaled.
func (w *Worker) isShutdown() bool {
	select {
	case <-w.shut:
		return true
	default:
		return false
	}
}
