package state

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/minibank/ledger/foundation/ledger/database"
)

// =============================================================================
// Accounts

// CreateAccount opens a new active account with zero balances.
func (s *State) CreateAccount(number string, currency string) (database.Account, error) {
	account := database.NewAccount(number, currency)

	if err := s.db.CreateAccount(account); err != nil {
		return database.Account{}, err
	}

	s.evHandler("state: created account %s: currency[%s]", account.Number, account.Currency)

	return account, nil
}

// QueryAccount retrieves an account by id.
func (s *State) QueryAccount(id uuid.UUID) (database.Account, error) {
	return s.db.QueryAccount(id)
}

// QueryAccountByNumber retrieves an account by its account number.
func (s *State) QueryAccountByNumber(number string) (database.Account, error) {
	return s.db.QueryAccountByNumber(number)
}

// UpdateAccountStatus moves an account to a new lifecycle status.
func (s *State) UpdateAccountStatus(id uuid.UUID, status database.AccountStatus) (database.Account, error) {
	account, err := s.db.QueryAccount(id)
	if err != nil {
		return database.Account{}, err
	}

	account.Status = status

	if err := s.db.UpdateAccount(account); err != nil {
		return database.Account{}, err
	}

	return account, nil
}

// Accounts returns a snapshot of all accounts.
func (s *State) Accounts() []database.Account {
	return s.db.CopyAccounts()
}

// =============================================================================
// Money movement

// Transfer moves the amount between the two accounts.
func (s *State) Transfer(ctx context.Context, fromID uuid.UUID, toID uuid.UUID, amount decimal.Decimal, memo string) (database.Tran, error) {
	return s.transfer.Transfer(ctx, fromID, toID, amount, memo)
}

// Deposit credits the amount into the account.
func (s *State) Deposit(ctx context.Context, toID uuid.UUID, amount decimal.Decimal, memo string) (database.Tran, error) {
	return s.transfer.Deposit(ctx, toID, amount, memo)
}

// Withdraw debits the amount out of the account.
func (s *State) Withdraw(ctx context.Context, fromID uuid.UUID, amount decimal.Decimal, memo string) (database.Tran, error) {
	return s.transfer.Withdraw(ctx, fromID, amount, memo)
}

// =============================================================================
// Transactions

// QueryTran retrieves a transaction by id.
func (s *State) QueryTran(id uuid.UUID) (database.Tran, error) {
	return s.db.QueryTran(id)
}

// QueryTranByCode retrieves a transaction by its unique code.
func (s *State) QueryTranByCode(code string) (database.Tran, error) {
	return s.db.QueryTranByCode(code)
}

// QueryTransByAccount returns every transaction touching the account.
func (s *State) QueryTransByAccount(accountID uuid.UUID) []database.Tran {
	return s.db.QueryTransByAccount(accountID)
}

// QueryTransByBlock returns the transactions sealed into the block.
func (s *State) QueryTransByBlock(blockNumber uint64) []database.Tran {
	return s.db.QueryTransByBlock(blockNumber)
}
