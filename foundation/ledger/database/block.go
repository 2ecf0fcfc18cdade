package database

import (
	"fmt"
	"strings"
	"time"

	"github.com/minibank/ledger/foundation/ledger/signature"
)

// BlockStatus represents the sealing state of a block.
type BlockStatus string

// Set of block statuses. Mined is the terminal success state; a block
// that reached it is never mutated again.
const (
	BlockPending BlockStatus = "PENDING"
	BlockMining  BlockStatus = "MINING"
	BlockMined   BlockStatus = "MINED"
	BlockInvalid BlockStatus = "INVALID"
)

// Block groups a batch of committed transactions under a merkle root and
// links to its predecessor by hash. Block numbers start at 1 and the first
// block carries the zero-hash sentinel as its previous hash.
type Block struct {
	Number           uint64      `json:"block_number"`
	PreviousHash     string      `json:"previous_hash"`
	MerkleRoot       string      `json:"merkle_root"`
	Hash             string      `json:"block_hash"`
	Nonce            uint64      `json:"nonce"`
	Difficulty       int         `json:"difficulty"`
	TransactionCount int         `json:"transaction_count"`
	Timestamp        time.Time   `json:"timestamp"`
	Status           BlockStatus `json:"status"`

	// Authority sealing metadata, present on PoA chains only.
	SignedBy  string `json:"signed_by,omitempty"`
	Signature string `json:"signature,omitempty"`
}

// WorkHash computes the proof-of-work hash of the block for the given
// nonce: H(number ∥ previousHash ∥ merkleRoot ∥ timestamp ∥ nonce).
func (b Block) WorkHash(nonce uint64) string {
	data := fmt.Sprintf("%d%s%s%s%d", b.Number, b.PreviousHash, b.MerkleRoot, b.stampTime(), nonce)
	return signature.HashString(data)
}

// AuthorityHash computes the proof-of-authority hash of the block, which
// replaces the nonce with the transaction count and needs no search:
// H(number ∥ previousHash ∥ merkleRoot ∥ timestamp ∥ transactionCount).
func (b Block) AuthorityHash() string {
	data := fmt.Sprintf("%d%s%s%s%d", b.Number, b.PreviousHash, b.MerkleRoot, b.stampTime(), b.TransactionCount)
	return signature.HashString(data)
}

// stampTime renders the timestamp in the fixed form hashed into the block.
func (b Block) stampTime() string {
	return b.Timestamp.UTC().Format(time.RFC3339Nano)
}

// HashSolved reports whether the hash satisfies the difficulty predicate
// of the required number of leading zero hex digits.
func HashSolved(difficulty int, hash string) bool {
	if difficulty < 0 || len(hash) < difficulty {
		return false
	}

	return strings.HasPrefix(hash, strings.Repeat("0", difficulty))
}
