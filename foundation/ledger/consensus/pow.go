package consensus

import (
	"context"
	"time"

	"github.com/minibank/ledger/foundation/ledger/database"
	"github.com/minibank/ledger/foundation/ledger/merkle"
	"github.com/minibank/ledger/foundation/ledger/signature"
	"github.com/minibank/ledger/foundation/ledger/stream"
)

// checkInterval is how many nonce attempts pass between context checks
// during the search.
const checkInterval = 1 << 16

// Work seals blocks by searching for a nonce whose hash clears the
// difficulty target. The search respects context cancellation so a
// shutdown never strands a half-mined block in the chain.
type Work struct {
	db         *database.Database
	engine     *merkle.Engine
	difficulty int
	evHandler  EventHandler
}

// NewWork constructs the proof-of-work strategy. A difficulty below 1
// falls back to the default.
func NewWork(db *database.Database, engine *merkle.Engine, difficulty int, evHandler EventHandler) *Work {
	if difficulty < 1 {
		difficulty = DefaultDifficulty
	}

	return &Work{
		db:         db,
		engine:     engine,
		difficulty: difficulty,
		evHandler:  evHandler,
	}
}

// Name returns the strategy identifier.
func (w *Work) Name() string {
	return "POW"
}

// Leaf returns the merkle leaf for an event, the hash of its serialized
// form.
func (w *Work) Leaf(ev stream.Event) string {
	return signature.Hash(ev)
}

// CreateBlock assembles the next block over the batch and mines it. The
// block passes through mining status while the nonce search runs and
// comes back mined with its final hash set.
func (w *Work) CreateBlock(ctx context.Context, events []stream.Event) (database.Block, error) {
	if len(events) == 0 {
		return database.Block{}, ErrEmptyBatch
	}

	number, prevHash := nextBlockHeader(w.db)

	leaves := make([]string, len(events))
	for i, ev := range events {
		leaves[i] = w.Leaf(ev)
	}

	block := database.Block{
		Number:           number,
		PreviousHash:     prevHash,
		MerkleRoot:       w.engine.Root(BlockKey(number), leaves),
		Difficulty:       w.difficulty,
		TransactionCount: len(events),
		Timestamp:        time.Now().UTC(),
		Status:           database.BlockPending,
	}

	w.evHandler("consensus: pow: mining block %d: trans[%d] difficulty[%d]", block.Number, block.TransactionCount, block.Difficulty)

	block.Status = database.BlockMining

	nonce, hash, err := w.mine(ctx, block)
	if err != nil {
		return database.Block{}, err
	}

	block.Nonce = nonce
	block.Hash = hash
	block.Status = database.BlockMined

	return block, nil
}

// mine runs the nonce search. It returns the winning nonce and hash or
// the context error if cancelled mid-search.
func (w *Work) mine(ctx context.Context, block database.Block) (uint64, string, error) {
	t := time.Now()

	var attempts uint64
	for nonce := uint64(0); ; nonce++ {
		attempts++
		if attempts%checkInterval == 0 {
			w.evHandler("consensus: pow: mining block %d: attempts[%d]", block.Number, attempts)
			if ctx.Err() != nil {
				return 0, "", ctx.Err()
			}
		}

		hash := block.WorkHash(nonce)
		if database.HashSolved(block.Difficulty, hash) {
			w.evHandler("consensus: pow: mined block %d: attempts[%d] elapsed[%v]", block.Number, attempts, time.Since(t))
			return nonce, hash, nil
		}
	}
}

// VerifyBlock checks a mined block was honestly produced: the hash
// recomputes from the block's own fields, clears its difficulty and the
// block links to its actual predecessor on the chain.
func (w *Work) VerifyBlock(block database.Block) error {
	if !database.HashSolved(block.Difficulty, block.Hash) {
		return ErrBlockVerificationFailed
	}

	if block.WorkHash(block.Nonce) != block.Hash {
		return ErrBlockVerificationFailed
	}

	return verifyLinkage(w.db, block)
}
