// Package consensus implements the two sealing strategies the chain can
// run under. Proof of work searches for a nonce whose block hash clears
// the difficulty target; proof of authority selects a validator by
// priority and signs the block instead of searching. Both produce blocks
// through the same Strategy interface so the sealing pipeline doesn't
// care which one is configured.
package consensus

import (
	"context"
	"errors"
	"fmt"

	"github.com/minibank/ledger/foundation/ledger/database"
	"github.com/minibank/ledger/foundation/ledger/signature"
	"github.com/minibank/ledger/foundation/ledger/stream"
)

// DefaultDifficulty is the number of leading zero hex digits a work hash
// must carry when no difficulty is configured.
const DefaultDifficulty = 4

// Set of errors for sealing and verification.
var (
	ErrNoAuthorizedValidators  = errors.New("no authorized validators available")
	ErrBlockVerificationFailed = errors.New("block verification failed")
	ErrEmptyBatch              = errors.New("batch contains no events")
)

// EventHandler is a function for receiving events about sealing.
type EventHandler func(v string, args ...any)

// Strategy seals batches of committed-transaction events into blocks.
// Leaf exposes the merkle leaf value the strategy uses for an event so
// proofs generated by the pipeline match the sealed root.
type Strategy interface {
	Name() string
	Leaf(ev stream.Event) string
	CreateBlock(ctx context.Context, events []stream.Event) (database.Block, error)
	VerifyBlock(block database.Block) error
}

// BlockKey derives the merkle engine cache key for a block number.
func BlockKey(number uint64) string {
	return fmt.Sprintf("block-%d", number)
}

// nextBlockHeader resolves the sequence number and previous hash for the
// block about to be sealed.
func nextBlockHeader(db *database.Database) (uint64, string) {
	latest, err := db.LatestBlock()
	if err != nil {
		return 1, signature.ZeroHash
	}

	return latest.Number + 1, latest.Hash
}

// verifyLinkage checks the block's stored previous hash against the
// chain. Block 1 must carry the zero hash sentinel; any later block must
// point at the hash of the block actually stored before it.
func verifyLinkage(db *database.Database, block database.Block) error {
	if block.Number == 1 {
		if block.PreviousHash != signature.ZeroHash {
			return fmt.Errorf("%w: first block previous hash is not the zero hash", ErrBlockVerificationFailed)
		}
		return nil
	}

	prev, err := db.QueryBlockByNumber(block.Number - 1)
	if err != nil {
		return fmt.Errorf("%w: no stored block %d to link against", ErrBlockVerificationFailed, block.Number-1)
	}

	if block.PreviousHash != prev.Hash {
		return fmt.Errorf("%w: broken previous hash link", ErrBlockVerificationFailed)
	}

	return nil
}
