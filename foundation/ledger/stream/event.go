package stream

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/minibank/ledger/foundation/ledger/database"
	"github.com/minibank/ledger/foundation/ledger/signature"
)

// Event is the committed-transaction message carried on the stream. The
// account id fields hold uuid.Nil when a side is absent (deposits carry no
// source, withdrawals no destination). ContentHash is the digest of the
// transaction's identifying fields and is what PoA chains use as the
// merkle leaf. Signature and MerkleProof are placeholders filled by later
// pipeline stages.
type Event struct {
	TransactionID uuid.UUID       `json:"transaction_id"`
	Code          string          `json:"transaction_code"`
	FromAccountID uuid.UUID       `json:"from_account_id,omitzero"`
	ToAccountID   uuid.UUID       `json:"to_account_id,omitzero"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	Type          string          `json:"transaction_type"`
	Status        string          `json:"status"`
	Timestamp     time.Time       `json:"timestamp"`
	ContentHash   string          `json:"content_hash"`
	Signature     string          `json:"signature,omitempty"`
	MerkleProof   string          `json:"merkle_proof,omitempty"`
}

// NewEvent builds the committed-transaction event for a transaction
// record, computing its content hash.
func NewEvent(tran database.Tran) Event {
	return Event{
		TransactionID: tran.ID,
		Code:          tran.Code,
		FromAccountID: tran.FromAccountID,
		ToAccountID:   tran.ToAccountID,
		Amount:        tran.Amount,
		Currency:      tran.Currency,
		Type:          string(tran.Type),
		Status:        string(tran.Status),
		Timestamp:     tran.CreatedAt,
		ContentHash:   ContentHash(tran),
	}
}

// ContentHash computes the digest of the transaction's identifying fields.
func ContentHash(tran database.Tran) string {
	data := fmt.Sprintf("%s%s%s%s%s%s",
		tran.Code,
		idString(tran.FromAccountID),
		idString(tran.ToAccountID),
		tran.Amount.String(),
		tran.Type,
		tran.CreatedAt.UTC().Format(time.RFC3339Nano),
	)

	return signature.HashString(data)
}

// ToMap flattens the event to the string map form carried on the stream.
func (e Event) ToMap() map[string]string {
	return map[string]string{
		"transactionId": e.TransactionID.String(),
		"code":          e.Code,
		"fromAccountId": idString(e.FromAccountID),
		"toAccountId":   idString(e.ToAccountID),
		"amount":        e.Amount.String(),
		"currency":      e.Currency,
		"type":          e.Type,
		"status":        e.Status,
		"timestamp":     e.Timestamp.UTC().Format(time.RFC3339Nano),
		"contentHash":   e.ContentHash,
		"signature":     e.Signature,
		"merkleProof":   e.MerkleProof,
	}
}

// ParseEvent rebuilds an event from its string map form.
func ParseEvent(values map[string]string) (Event, error) {
	e := Event{
		Code:        values["code"],
		Currency:    values["currency"],
		Type:        values["type"],
		Status:      values["status"],
		ContentHash: values["contentHash"],
		Signature:   values["signature"],
		MerkleProof: values["merkleProof"],
	}

	var err error
	if e.TransactionID, err = uuid.Parse(values["transactionId"]); err != nil {
		return Event{}, fmt.Errorf("parsing transaction id: %w", err)
	}

	if v := values["fromAccountId"]; v != "" {
		if e.FromAccountID, err = uuid.Parse(v); err != nil {
			return Event{}, fmt.Errorf("parsing from account id: %w", err)
		}
	}

	if v := values["toAccountId"]; v != "" {
		if e.ToAccountID, err = uuid.Parse(v); err != nil {
			return Event{}, fmt.Errorf("parsing to account id: %w", err)
		}
	}

	if e.Amount, err = decimal.NewFromString(values["amount"]); err != nil {
		return Event{}, fmt.Errorf("parsing amount: %w", err)
	}

	if e.Timestamp, err = time.Parse(time.RFC3339Nano, values["timestamp"]); err != nil {
		return Event{}, fmt.Errorf("parsing timestamp: %w", err)
	}

	return e, nil
}

// Emit appends the event to the stream in its flat map form.
func (s *Stream) Emit(ev Event) error {
	s.Add(ev.ToMap())
	return nil
}

// idString renders an account id, with the nil id as the empty string.
func idString(id uuid.UUID) string {
	if id == uuid.Nil {
		return ""
	}
	return id.String()
}
