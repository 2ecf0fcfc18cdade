// Package ledgergrp maintains the group of handlers for account and
// money movement access.
package ledgergrp

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/minibank/ledger/business/sys/validate"
	"github.com/minibank/ledger/business/web/errs"
	"github.com/minibank/ledger/foundation/ledger/database"
	"github.com/minibank/ledger/foundation/ledger/state"
	"github.com/minibank/ledger/foundation/ledger/transfer"
	"github.com/minibank/ledger/foundation/web"
)

// Handlers manages the set of ledger endpoints.
type Handlers struct {
	Log   *zap.SugaredLogger
	State *state.State
}

// CreateAccount opens a new account.
func (h Handlers) CreateAccount(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var na newAccount
	if err := web.Decode(r, &na); err != nil {
		return err
	}

	account, err := h.State.CreateAccount(na.Number, na.Currency)
	if err != nil {
		return trusted(err)
	}

	return web.Respond(ctx, w, account, http.StatusCreated)
}

// QueryAccounts returns all accounts in the ledger.
func (h Handlers) QueryAccounts(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, h.State.Accounts(), http.StatusOK)
}

// QueryAccount returns an account by id.
func (h Handlers) QueryAccount(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	id, err := validate.CheckID(web.Param(r, "id"))
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	account, err := h.State.QueryAccount(id)
	if err != nil {
		return trusted(err)
	}

	return web.Respond(ctx, w, account, http.StatusOK)
}

// UpdateAccountStatus moves an account to a new lifecycle status.
func (h Handlers) UpdateAccountStatus(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	id, err := validate.CheckID(web.Param(r, "id"))
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	var us updateStatus
	if err := web.Decode(r, &us); err != nil {
		return err
	}

	account, err := h.State.UpdateAccountStatus(id, database.AccountStatus(us.Status))
	if err != nil {
		return trusted(err)
	}

	return web.Respond(ctx, w, account, http.StatusOK)
}

// Transfer moves money between two accounts.
func (h Handlers) Transfer(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var nt newTransfer
	if err := web.Decode(r, &nt); err != nil {
		return err
	}

	fromID, err := validate.CheckID(nt.FromAccountID)
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}
	toID, err := validate.CheckID(nt.ToAccountID)
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	h.Log.Infow("transfer", "traceid", web.GetTraceID(ctx), "from", fromID, "to", toID, "amount", nt.Amount)

	tran, err := h.State.Transfer(ctx, fromID, toID, nt.Amount, nt.Memo)
	if err != nil {
		return trusted(err)
	}

	return web.Respond(ctx, w, tran, http.StatusCreated)
}

// Deposit credits money into an account.
func (h Handlers) Deposit(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var nd newDeposit
	if err := web.Decode(r, &nd); err != nil {
		return err
	}

	toID, err := validate.CheckID(nd.ToAccountID)
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	tran, err := h.State.Deposit(ctx, toID, nd.Amount, nd.Memo)
	if err != nil {
		return trusted(err)
	}

	return web.Respond(ctx, w, tran, http.StatusCreated)
}

// Withdraw debits money out of an account.
func (h Handlers) Withdraw(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var nw newWithdrawal
	if err := web.Decode(r, &nw); err != nil {
		return err
	}

	fromID, err := validate.CheckID(nw.FromAccountID)
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	tran, err := h.State.Withdraw(ctx, fromID, nw.Amount, nw.Memo)
	if err != nil {
		return trusted(err)
	}

	return web.Respond(ctx, w, tran, http.StatusCreated)
}

// QueryTran returns a transaction by id.
func (h Handlers) QueryTran(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	id, err := validate.CheckID(web.Param(r, "id"))
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	tran, err := h.State.QueryTran(id)
	if err != nil {
		return trusted(err)
	}

	return web.Respond(ctx, w, tran, http.StatusOK)
}

// QueryTransByAccount returns the transactions touching an account.
func (h Handlers) QueryTransByAccount(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	id, err := validate.CheckID(web.Param(r, "id"))
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	if _, err := h.State.QueryAccount(id); err != nil {
		return trusted(err)
	}

	return web.Respond(ctx, w, h.State.QueryTransByAccount(id), http.StatusOK)
}

// trusted maps the well known ledger errors to status codes the client
// can act on. Anything unmapped stays a 500.
func trusted(err error) error {
	switch {
	case errors.Is(err, database.ErrAccountNotFound),
		errors.Is(err, database.ErrTransactionNotFound):
		return errs.NewTrusted(err, http.StatusNotFound)

	case errors.Is(err, database.ErrDuplicateAccount):
		return errs.NewTrusted(err, http.StatusConflict)

	case errors.Is(err, transfer.ErrOperationTimeout):
		return errs.NewTrusted(err, http.StatusRequestTimeout)

	case errors.Is(err, database.ErrInsufficientFunds),
		errors.Is(err, database.ErrInvalidAccountState),
		errors.Is(err, transfer.ErrInvalidAmount),
		errors.Is(err, transfer.ErrCurrencyMismatch),
		errors.Is(err, transfer.ErrSameAccount):
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	return err
}
