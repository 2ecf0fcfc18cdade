package consensus

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"time"

	"github.com/minibank/ledger/foundation/ledger/database"
	"github.com/minibank/ledger/foundation/ledger/merkle"
	"github.com/minibank/ledger/foundation/ledger/signature"
	"github.com/minibank/ledger/foundation/ledger/stream"
)

// Authority seals blocks by validator selection instead of a nonce
// search. The highest priority validator that is authorized, active and
// unlocked seals the block; online validators are preferred, and when
// every candidate has gone quiet selection falls back to the best
// candidate regardless of liveness so the chain keeps moving.
type Authority struct {
	db         *database.Database
	engine     *merkle.Engine
	privateKey *ecdsa.PrivateKey
	evHandler  EventHandler
}

// NewAuthority constructs the proof-of-authority strategy. The private
// key is optional; when present blocks sealed by the validator holding
// the matching public key carry a signature.
func NewAuthority(db *database.Database, engine *merkle.Engine, privateKey *ecdsa.PrivateKey, evHandler EventHandler) *Authority {
	return &Authority{
		db:         db,
		engine:     engine,
		privateKey: privateKey,
		evHandler:  evHandler,
	}
}

// Name returns the strategy identifier.
func (a *Authority) Name() string {
	return "POA"
}

// Leaf returns the merkle leaf for an event, its precomputed content
// hash.
func (a *Authority) Leaf(ev stream.Event) string {
	return ev.ContentHash
}

// SelectValidator picks the validator to seal the next block. Candidates
// are the authorized, active, unlocked validators in descending priority
// order; the first online candidate wins, and when none are online the
// top candidate is used anyway.
func (a *Authority) SelectValidator(now time.Time) (database.Validator, error) {
	var candidates []database.Validator
	for _, v := range a.db.QueryAuthorizedByPriority() {
		if v.CanCreateBlock(now) {
			candidates = append(candidates, v)
		}
	}

	if len(candidates) == 0 {
		return database.Validator{}, ErrNoAuthorizedValidators
	}

	for _, v := range candidates {
		if v.IsOnline(now) {
			return v, nil
		}
	}

	a.evHandler("consensus: poa: no online validators, falling back to %s", candidates[0].Name)

	return candidates[0], nil
}

// CreateBlock assembles and seals the next block under the selected
// validator's authority. The block hash is deterministic, no search is
// involved, and when this node holds the selected validator's key the
// block is signed.
func (a *Authority) CreateBlock(ctx context.Context, events []stream.Event) (database.Block, error) {
	if len(events) == 0 {
		return database.Block{}, ErrEmptyBatch
	}

	now := time.Now().UTC()

	validator, err := a.SelectValidator(now)
	if err != nil {
		return database.Block{}, err
	}

	number, prevHash := nextBlockHeader(a.db)

	leaves := make([]string, len(events))
	for i, ev := range events {
		leaves[i] = a.Leaf(ev)
	}

	block := database.Block{
		Number:           number,
		PreviousHash:     prevHash,
		MerkleRoot:       a.engine.Root(BlockKey(number), leaves),
		TransactionCount: len(events),
		Timestamp:        now,
		Status:           database.BlockPending,
		SignedBy:         validator.Name,
	}

	block.Hash = block.AuthorityHash()

	if a.privateKey != nil && signature.PublicKeyString(a.privateKey) == validator.PublicKey {
		sig, err := signature.Sign(block.Hash, a.privateKey)
		if err != nil {
			return database.Block{}, fmt.Errorf("signing block %d: %w", block.Number, err)
		}
		block.Signature = sig
	}

	block.Status = database.BlockMined

	validator.BlockCreated(now)
	if err := a.db.UpdateValidator(validator); err != nil {
		return database.Block{}, fmt.Errorf("recording block for validator %s: %w", validator.Name, err)
	}

	a.evHandler("consensus: poa: sealed block %d: trans[%d] validator[%s]", block.Number, block.TransactionCount, validator.Name)

	return block, nil
}

// VerifyBlock checks an authority block: the hash recomputes from the
// block's own fields, the sealing validator exists, any signature was
// produced by that validator's key, and the block links to its actual
// predecessor on the chain.
func (a *Authority) VerifyBlock(block database.Block) error {
	if block.AuthorityHash() != block.Hash {
		return ErrBlockVerificationFailed
	}

	validator, err := a.db.QueryValidatorByName(block.SignedBy)
	if err != nil {
		return fmt.Errorf("%w: unknown validator %q", ErrBlockVerificationFailed, block.SignedBy)
	}

	if block.Signature != "" {
		if err := signature.VerifySignature(block.Hash, block.Signature, validator.PublicKey); err != nil {
			return fmt.Errorf("%w: %s", ErrBlockVerificationFailed, err)
		}
	}

	return verifyLinkage(a.db, block)
}
