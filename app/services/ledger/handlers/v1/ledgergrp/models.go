package ledgergrp

import (
	"github.com/shopspring/decimal"

	"github.com/minibank/ledger/business/sys/validate"
)

type newAccount struct {
	Number   string `json:"account_number" validate:"required"`
	Currency string `json:"currency" validate:"required,len=3,uppercase"`
}

// Validate checks the data in the model is considered clean.
func (na newAccount) Validate() error {
	return validate.Check(na)
}

type updateStatus struct {
	Status string `json:"status" validate:"required,oneof=ACTIVE INACTIVE FROZEN CLOSED"`
}

// Validate checks the data in the model is considered clean.
func (us updateStatus) Validate() error {
	return validate.Check(us)
}

type newTransfer struct {
	FromAccountID string          `json:"from_account_id" validate:"required,uuid4"`
	ToAccountID   string          `json:"to_account_id" validate:"required,uuid4"`
	Amount        decimal.Decimal `json:"amount"`
	Memo          string          `json:"memo"`
}

// Validate checks the data in the model is considered clean.
func (nt newTransfer) Validate() error {
	return validate.Check(nt)
}

type newDeposit struct {
	ToAccountID string          `json:"to_account_id" validate:"required,uuid4"`
	Amount      decimal.Decimal `json:"amount"`
	Memo        string          `json:"memo"`
}

// Validate checks the data in the model is considered clean.
func (nd newDeposit) Validate() error {
	return validate.Check(nd)
}

type newWithdrawal struct {
	FromAccountID string          `json:"from_account_id" validate:"required,uuid4"`
	Amount        decimal.Decimal `json:"amount"`
	Memo          string          `json:"memo"`
}

// Validate checks the data in the model is considered clean.
func (nw newWithdrawal) Validate() error {
	return validate.Check(nw)
}
