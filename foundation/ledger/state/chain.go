package state

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/minibank/ledger/foundation/ledger/consensus"
	"github.com/minibank/ledger/foundation/ledger/database"
	"github.com/minibank/ledger/foundation/ledger/merkle"
	"github.com/minibank/ledger/foundation/ledger/stream"
)

// =============================================================================
// Sealing

// OnEvent folds a committed-transaction event into the batcher and
// reports whether the sealing threshold has been reached.
func (s *State) OnEvent(ev stream.Event) bool {
	s.batcher.OnEvent(ev)
	return s.batcher.ShouldSeal()
}

// ShouldSeal reports whether the batcher has reached the sealing
// threshold.
func (s *State) ShouldSeal() bool {
	return s.batcher.ShouldSeal()
}

// SealBlock drains the current batch and seals it into the next block on
// the chain. Sealing is serialized; a second caller blocks until the
// first finishes or its context expires. A failed seal puts the drained
// events back so they ride in the next attempt.
func (s *State) SealBlock(ctx context.Context) (database.Block, error) {
	select {
	case s.sealMu <- struct{}{}:
		defer func() { <-s.sealMu }()
	case <-ctx.Done():
		return database.Block{}, ctx.Err()
	}

	events := s.batcher.TakeBatch()
	if len(events) == 0 {
		return database.Block{}, consensus.ErrEmptyBatch
	}

	number := uint64(s.db.BlockCount()) + 1

	block, err := s.strategy.CreateBlock(ctx, events)
	if err != nil {
		s.restore(events, number)
		return database.Block{}, err
	}

	if err := s.db.WriteBlock(block); err != nil {
		s.restore(events, block.Number)
		return database.Block{}, fmt.Errorf("writing block %d: %w", block.Number, err)
	}

	s.linkTransactions(block, events)

	s.evHandler("state: sealed block %d: hash[%s] root[%s] trans[%d]", block.Number, block.Hash, block.MerkleRoot, block.TransactionCount)

	return block, nil
}

// restore puts a drained batch back into the batcher after a failed seal
// and drops whatever the merkle engine cached for the attempt. The retry
// will carry a different batch, so a cached root would no longer cover
// the sealed transactions.
func (s *State) restore(events []stream.Event, blockNumber uint64) {
	s.engine.Invalidate(consensus.BlockKey(blockNumber))

	for _, ev := range events {
		s.batcher.OnEvent(ev)
	}
}

// linkTransactions stamps each sealed transaction with its block number,
// merkle leaf and encoded inclusion proof.
func (s *State) linkTransactions(block database.Block, events []stream.Event) {
	blockKey := consensus.BlockKey(block.Number)

	leaves := make([]string, len(events))
	for i, ev := range events {
		leaves[i] = s.strategy.Leaf(ev)
	}

	for i, ev := range events {
		tran, err := s.db.QueryTran(ev.TransactionID)
		if err != nil {
			s.evHandler("state: linking block %d: tran[%s]: %s", block.Number, ev.TransactionID, err)
			continue
		}

		tran.BlockNumber = block.Number
		tran.TxHash = leaves[i]
		tran.MerkleProof = merkle.EncodeProof(s.engine.Proof(blockKey, leaves[i], leaves))

		if err := s.db.UpdateTran(tran); err != nil {
			s.evHandler("state: linking block %d: tran[%s]: %s", block.Number, ev.TransactionID, err)
		}
	}
}

// =============================================================================
// Chain queries

// LatestBlock returns the chain head.
func (s *State) LatestBlock() (database.Block, error) {
	return s.db.LatestBlock()
}

// QueryBlockByNumber retrieves a block by sequence number.
func (s *State) QueryBlockByNumber(number uint64) (database.Block, error) {
	return s.db.QueryBlockByNumber(number)
}

// QueryBlockByHash retrieves a block by hash.
func (s *State) QueryBlockByHash(hash string) (database.Block, error) {
	return s.db.QueryBlockByHash(hash)
}

// Blocks returns a snapshot of the chain in sequence order.
func (s *State) Blocks() []database.Block {
	return s.db.CopyBlocks()
}

// BlockCount returns the chain length.
func (s *State) BlockCount() int {
	return s.db.BlockCount()
}

// =============================================================================
// Verification

// VerifyBlock checks a single block against the consensus rules.
func (s *State) VerifyBlock(number uint64) error {
	block, err := s.db.QueryBlockByNumber(number)
	if err != nil {
		return err
	}

	if err := s.strategy.VerifyBlock(block); err != nil {
		s.db.MarkBlockInvalid(block.Number)
		return err
	}

	return nil
}

// VerifyChain walks the whole chain checking every block's hash and the
// hash linkage between neighbors.
func (s *State) VerifyChain() error {
	blocks := s.db.CopyBlocks()

	for i, block := range blocks {
		if err := s.strategy.VerifyBlock(block); err != nil {
			s.db.MarkBlockInvalid(block.Number)
			return fmt.Errorf("block %d: %w", block.Number, err)
		}

		if i > 0 && block.PreviousHash != blocks[i-1].Hash {
			s.db.MarkBlockInvalid(block.Number)
			return fmt.Errorf("block %d: %w: broken previous hash link", block.Number, consensus.ErrBlockVerificationFailed)
		}
	}

	return nil
}

// TransactionProof returns the decoded inclusion proof stored on a
// sealed transaction.
func (s *State) TransactionProof(tranID uuid.UUID) ([]merkle.ProofStep, error) {
	tran, err := s.db.QueryTran(tranID)
	if err != nil {
		return nil, err
	}

	if tran.BlockNumber == 0 {
		return nil, ErrNotSealed
	}

	return merkle.DecodeProof(tran.MerkleProof)
}

// VerifyTransactionInBlock checks a sealed transaction's inclusion proof
// against the merkle root of its block.
func (s *State) VerifyTransactionInBlock(tranID uuid.UUID) (bool, error) {
	tran, err := s.db.QueryTran(tranID)
	if err != nil {
		return false, err
	}

	if tran.BlockNumber == 0 {
		return false, ErrNotSealed
	}

	block, err := s.db.QueryBlockByNumber(tran.BlockNumber)
	if err != nil {
		return false, err
	}

	proof, err := merkle.DecodeProof(tran.MerkleProof)
	if err != nil {
		return false, err
	}

	return merkle.VerifyProof(tran.TxHash, proof, block.MerkleRoot), nil
}
