// Package transfer implements the money movement engine. Every movement
// follows the same shape: validate the accounts, record a pending
// transaction, take the account locks in canonical order, re-validate
// and mutate balances under those locks, then settle the record to its
// terminal status and emit the committed event. Balance mutation and the
// status transition happen under the same locks so no reader ever sees
// one without the other.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/minibank/ledger/foundation/ledger/database"
	"github.com/minibank/ledger/foundation/ledger/stream"
)

// DefaultTimeout bounds how long a movement may wait on account locks
// plus processing before it gives up.
const DefaultTimeout = 30 * time.Second

// Set of errors the engine returns to callers.
var (
	ErrOperationTimeout = errors.New("operation timed out")
	ErrInvalidAmount    = errors.New("amount must be positive")
	ErrCurrencyMismatch = errors.New("accounts hold different currencies")
	ErrSameAccount      = errors.New("source and destination are the same account")
)

// EventHandler is a function for receiving events about transfers.
type EventHandler func(v string, args ...any)

// Emitter publishes committed-transaction events downstream. A failed
// emit never unwinds the movement; the money has moved and the record is
// terminal by the time emission runs.
type Emitter interface {
	Emit(ev stream.Event) error
}

// Engine processes transfers, deposits and withdrawals against the
// ledger database.
type Engine struct {
	db        *database.Database
	emitter   Emitter
	timeout   time.Duration
	evHandler EventHandler
}

// New constructs a transfer engine. A timeout of zero falls back to the
// default.
func New(db *database.Database, emitter Emitter, timeout time.Duration, evHandler EventHandler) *Engine {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Engine{
		db:        db,
		emitter:   emitter,
		timeout:   timeout,
		evHandler: evHandler,
	}
}

// Transfer moves the amount between two accounts. The debit and credit
// are applied under both account locks, taken in canonical order so two
// opposing transfers over the same pair can't deadlock. Insufficient
// funds settles the record as failed and returns the cause.
func (e *Engine) Transfer(ctx context.Context, fromID uuid.UUID, toID uuid.UUID, amount decimal.Decimal, memo string) (database.Tran, error) {
	if !amount.IsPositive() {
		return database.Tran{}, ErrInvalidAmount
	}
	if fromID == toID {
		return database.Tran{}, ErrSameAccount
	}

	from, err := e.db.QueryAccount(fromID)
	if err != nil {
		return database.Tran{}, err
	}
	to, err := e.db.QueryAccount(toID)
	if err != nil {
		return database.Tran{}, err
	}

	if !from.IsActive() || !to.IsActive() {
		return database.Tran{}, database.ErrInvalidAccountState
	}
	if from.Currency != to.Currency {
		return database.Tran{}, ErrCurrencyMismatch
	}

	tran := database.NewTran(database.TypeTransfer, fromID, toID, amount, from.Currency, memo)

	return e.execute(ctx, tran, func() error {
		from, err := e.db.QueryAccount(fromID)
		if err != nil {
			return err
		}
		to, err := e.db.QueryAccount(toID)
		if err != nil {
			return err
		}

		if !from.IsActive() || !to.IsActive() {
			return database.ErrInvalidAccountState
		}

		if err := from.Debit(amount); err != nil {
			return err
		}
		to.Credit(amount)

		if err := e.db.UpdateAccount(from); err != nil {
			return err
		}
		return e.db.UpdateAccount(to)
	}, fromID, toID)
}

// Deposit credits the amount into an account from outside the ledger.
func (e *Engine) Deposit(ctx context.Context, toID uuid.UUID, amount decimal.Decimal, memo string) (database.Tran, error) {
	if !amount.IsPositive() {
		return database.Tran{}, ErrInvalidAmount
	}

	to, err := e.db.QueryAccount(toID)
	if err != nil {
		return database.Tran{}, err
	}
	if !to.IsActive() {
		return database.Tran{}, database.ErrInvalidAccountState
	}

	tran := database.NewTran(database.TypeDeposit, uuid.Nil, toID, amount, to.Currency, memo)

	return e.execute(ctx, tran, func() error {
		to, err := e.db.QueryAccount(toID)
		if err != nil {
			return err
		}
		if !to.IsActive() {
			return database.ErrInvalidAccountState
		}

		to.Credit(amount)

		return e.db.UpdateAccount(to)
	}, toID)
}

// Withdraw debits the amount out of an account to outside the ledger.
func (e *Engine) Withdraw(ctx context.Context, fromID uuid.UUID, amount decimal.Decimal, memo string) (database.Tran, error) {
	if !amount.IsPositive() {
		return database.Tran{}, ErrInvalidAmount
	}

	from, err := e.db.QueryAccount(fromID)
	if err != nil {
		return database.Tran{}, err
	}
	if !from.IsActive() {
		return database.Tran{}, database.ErrInvalidAccountState
	}

	tran := database.NewTran(database.TypeWithdrawal, fromID, uuid.Nil, amount, from.Currency, memo)

	return e.execute(ctx, tran, func() error {
		from, err := e.db.QueryAccount(fromID)
		if err != nil {
			return err
		}
		if !from.IsActive() {
			return database.ErrInvalidAccountState
		}

		if err := from.Debit(amount); err != nil {
			return err
		}

		return e.db.UpdateAccount(from)
	}, fromID)
}

// execute runs the common movement pipeline: persist the pending record,
// take the account locks, apply the balance mutation and settle the
// record, all bounded by the engine timeout.
func (e *Engine) execute(ctx context.Context, tran database.Tran, apply func() error, lockIDs ...uuid.UUID) (database.Tran, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	if err := e.db.CreateTran(tran); err != nil {
		return database.Tran{}, err
	}

	release, err := e.db.LockAccounts(ctx, lockIDs...)
	if err != nil {
		tran.MarkFailed(err.Error())
		if uerr := e.db.UpdateTran(tran); uerr != nil {
			e.evHandler("transfer: %s: settling failed record: %s", tran.Code, uerr)
		}
		return tran, e.timeoutErr(err)
	}
	defer release()

	if err := apply(); err != nil {
		tran.MarkFailed(err.Error())
		if uerr := e.db.UpdateTran(tran); uerr != nil {
			e.evHandler("transfer: %s: settling failed record: %s", tran.Code, uerr)
		}
		e.evHandler("transfer: %s: failed: %s", tran.Code, err)
		return tran, err
	}

	tran.MarkCompleted()
	if err := e.db.UpdateTran(tran); err != nil {
		return tran, err
	}

	e.evHandler("transfer: %s: completed: type[%s] amount[%s %s]", tran.Code, tran.Type, tran.Amount, tran.Currency)

	if err := e.emitter.Emit(stream.NewEvent(tran)); err != nil {
		e.evHandler("transfer: %s: emitting event: %s", tran.Code, err)
	}

	return tran, nil
}

// timeoutErr maps a context deadline hit on lock acquisition to the
// engine's timeout error.
func (e *Engine) timeoutErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s", ErrOperationTimeout, err)
	}
	return err
}
