package database

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TranType represents the kind of money movement a transaction records.
type TranType string

// Set of transaction types. A deposit has no source account and a
// withdrawal has no destination account.
const (
	TypeTransfer   TranType = "TRANSFER"
	TypeDeposit    TranType = "DEPOSIT"
	TypeWithdrawal TranType = "WITHDRAWAL"
)

// TranStatus represents the processing state of a transaction. Every
// status other than pending is terminal.
type TranStatus string

// Set of transaction statuses.
const (
	StatusPending   TranStatus = "PENDING"
	StatusCompleted TranStatus = "COMPLETED"
	StatusFailed    TranStatus = "FAILED"
	StatusCancelled TranStatus = "CANCELLED"
)

// Tran records a single money movement between accounts. FromAccountID
// and ToAccountID use uuid.Nil when a side is absent. Once the record
// reaches a terminal status it is immutable except for the block-linkage
// fields, which the batching pipeline fills in exactly once.
type Tran struct {
	ID            uuid.UUID       `json:"transaction_id"`
	Code          string          `json:"transaction_code"`
	FromAccountID uuid.UUID       `json:"from_account_id,omitzero"`
	ToAccountID   uuid.UUID       `json:"to_account_id,omitzero"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	Type          TranType        `json:"transaction_type"`
	Status        TranStatus      `json:"status"`
	Memo          string          `json:"memo,omitempty"`
	FailureReason string          `json:"failure_reason,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	ProcessedAt   time.Time       `json:"processed_at,omitzero"`

	// Block linkage, set by the sealing pipeline.
	BlockNumber uint64 `json:"block_number,omitempty"`
	TxHash      string `json:"tx_hash,omitempty"`
	MerkleProof string `json:"merkle_proof,omitempty"`
}

// NewTran constructs a pending transaction with a fresh unique code.
func NewTran(tranType TranType, fromID uuid.UUID, toID uuid.UUID, amount decimal.Decimal, currency string, memo string) Tran {
	return Tran{
		ID:            uuid.New(),
		Code:          newTranCode(),
		FromAccountID: fromID,
		ToAccountID:   toID,
		Amount:        amount,
		Currency:      currency,
		Type:          tranType,
		Status:        StatusPending,
		Memo:          memo,
		CreatedAt:     time.Now().UTC(),
	}
}

// MarkCompleted transitions the transaction to its successful terminal
// state.
func (t *Tran) MarkCompleted() {
	t.Status = StatusCompleted
	t.ProcessedAt = time.Now().UTC()
}

// MarkFailed transitions the transaction to failed with the reason.
func (t *Tran) MarkFailed(reason string) {
	t.Status = StatusFailed
	t.FailureReason = reason
	t.ProcessedAt = time.Now().UTC()
}

// MarkCancelled transitions the transaction to cancelled.
func (t *Tran) MarkCancelled() {
	t.Status = StatusCancelled
	t.ProcessedAt = time.Now().UTC()
}

// IsPending reports whether the transaction is still processing.
func (t Tran) IsPending() bool {
	return t.Status == StatusPending
}

// newTranCode produces the human readable unique transaction code.
func newTranCode() string {
	suffix := strings.ToUpper(uuid.NewString()[:8])
	return fmt.Sprintf("TXN%d%s", time.Now().UnixMilli(), suffix)
}
