// Package state is the core API for the ledger and the one stop shop
// for everything the service and tooling layers need: accounts, money
// movement, the event stream, batching and block sealing sit behind one
// State value wired together at construction.
package state

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"time"

	"github.com/minibank/ledger/foundation/ledger/batch"
	"github.com/minibank/ledger/foundation/ledger/consensus"
	"github.com/minibank/ledger/foundation/ledger/database"
	"github.com/minibank/ledger/foundation/ledger/merkle"
	"github.com/minibank/ledger/foundation/ledger/stream"
	"github.com/minibank/ledger/foundation/ledger/transfer"
)

// Set of consensus modes the state can run under.
const (
	ConsensusPOW = "POW"
	ConsensusPOA = "POA"
)

// ErrNotSealed is returned when a proof operation targets a transaction
// that hasn't been linked into a block yet.
var ErrNotSealed = errors.New("transaction not sealed into a block")

// EventHandler is a function for receiving events from the core packages
// for logging or handling.
type EventHandler func(v string, args ...any)

// Worker interface represents the behavior required to be implemented by
// any package providing support for the background sealing pipeline.
type Worker interface {
	Shutdown()
	SignalSeal()
}

// Config represents the configuration required to start the ledger state.
type Config struct {
	Consensus       string
	Difficulty      int
	BatchSize       int
	TransferTimeout time.Duration
	PrivateKey      *ecdsa.PrivateKey
	EvHandler       EventHandler
}

// State manages the ledger. Block sealing is serialized through sealMu
// so two seals can never race over the chain head.
type State struct {
	evHandler EventHandler

	db       *database.Database
	strm     *stream.Stream
	engine   *merkle.Engine
	batcher  *batch.Batcher
	strategy consensus.Strategy
	registry *consensus.Registry
	transfer *transfer.Engine

	consensusMode string
	batchSize     int

	sealMu chan struct{}

	// Worker is registered by the worker package at startup.
	Worker Worker
}

// New constructs a new state for ledger management.
func New(cfg Config) (*State, error) {
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	if cfg.BatchSize < 1 {
		cfg.BatchSize = batch.DefaultBatchSize
	}

	db := database.New()
	strm := stream.New()
	engine := merkle.New()

	var strategy consensus.Strategy
	switch cfg.Consensus {
	case ConsensusPOW, "":
		cfg.Consensus = ConsensusPOW
		strategy = consensus.NewWork(db, engine, cfg.Difficulty, consensus.EventHandler(ev))
	case ConsensusPOA:
		strategy = consensus.NewAuthority(db, engine, cfg.PrivateKey, consensus.EventHandler(ev))
	default:
		return nil, fmt.Errorf("unknown consensus mode %q", cfg.Consensus)
	}

	s := State{
		evHandler:     ev,
		db:            db,
		strm:          strm,
		engine:        engine,
		batcher:       batch.New(cfg.BatchSize),
		strategy:      strategy,
		registry:      consensus.NewRegistry(db, consensus.EventHandler(ev)),
		transfer:      transfer.New(db, strm, cfg.TransferTimeout, transfer.EventHandler(ev)),
		consensusMode: cfg.Consensus,
		batchSize:     cfg.BatchSize,
		sealMu:        make(chan struct{}, 1),
	}

	ev("state: started: consensus[%s] batch[%d]", cfg.Consensus, cfg.BatchSize)

	return &s, nil
}

// Shutdown cleanly brings the state and its worker down.
func (s *State) Shutdown() error {
	s.evHandler("state: shutdown: started")
	defer s.evHandler("state: shutdown: completed")

	if s.Worker != nil {
		s.Worker.Shutdown()
	}

	return nil
}

// Consensus returns the consensus mode the state runs under.
func (s *State) Consensus() string {
	return s.consensusMode
}

// BatchSize returns the sealing threshold.
func (s *State) BatchSize() int {
	return s.batchSize
}

// Stream returns the event stream for the worker to consume.
func (s *State) Stream() *stream.Stream {
	return s.strm
}

// MerkleStats reports the merkle engine cache sizes.
func (s *State) MerkleStats() merkle.Stats {
	return s.engine.CacheStats()
}
