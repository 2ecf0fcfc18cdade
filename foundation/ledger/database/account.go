package database

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Set of errors the account business methods return.
var (
	ErrInsufficientFunds   = errors.New("insufficient available balance")
	ErrInvalidAccountState = errors.New("account is not active")
)

// AccountStatus represents the lifecycle state of an account.
type AccountStatus string

// Set of account statuses. A closed account is never deleted.
const (
	AccountActive   AccountStatus = "ACTIVE"
	AccountInactive AccountStatus = "INACTIVE"
	AccountFrozen   AccountStatus = "FROZEN"
	AccountClosed   AccountStatus = "CLOSED"
)

// Account represents a balance holder in the ledger. Balance is the full
// ledger balance; AvailableBalance excludes holds and is what transfers
// and withdrawals draw against. Both values never go negative and are
// mutated only through Debit/Credit while the account's lock is held.
type Account struct {
	ID               uuid.UUID       `json:"account_id"`
	Number           string          `json:"account_number"`
	Currency         string          `json:"currency"`
	Balance          decimal.Decimal `json:"balance"`
	AvailableBalance decimal.Decimal `json:"available_balance"`
	Status           AccountStatus   `json:"status"`
	CreatedAt        time.Time       `json:"created_at"`
	LastTransaction  time.Time       `json:"last_transaction,omitzero"`
}

// NewAccount constructs an active account with zero balances.
func NewAccount(number string, currency string) Account {
	return Account{
		ID:        uuid.New(),
		Number:    number,
		Currency:  currency,
		Status:    AccountActive,
		CreatedAt: time.Now().UTC(),
	}
}

// IsActive reports whether the account can take part in money movements.
func (a Account) IsActive() bool {
	return a.Status == AccountActive
}

// HasSufficientBalance reports whether the available balance covers the
// amount.
func (a Account) HasSufficientBalance(amount decimal.Decimal) bool {
	return a.AvailableBalance.GreaterThanOrEqual(amount)
}

// Debit subtracts the amount from both the ledger and available balance.
func (a *Account) Debit(amount decimal.Decimal) error {
	if !a.HasSufficientBalance(amount) {
		return ErrInsufficientFunds
	}

	a.Balance = a.Balance.Sub(amount)
	a.AvailableBalance = a.AvailableBalance.Sub(amount)
	a.LastTransaction = time.Now().UTC()

	return nil
}

// Credit adds the amount to both the ledger and available balance.
func (a *Account) Credit(amount decimal.Decimal) {
	a.Balance = a.Balance.Add(amount)
	a.AvailableBalance = a.AvailableBalance.Add(amount)
	a.LastTransaction = time.Now().UTC()
}
