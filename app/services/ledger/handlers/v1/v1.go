// Package v1 contains the full set of handler functions and routes
// supported by the v1 web api.
package v1

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/minibank/ledger/app/services/ledger/handlers/v1/chaingrp"
	"github.com/minibank/ledger/app/services/ledger/handlers/v1/ledgergrp"
	"github.com/minibank/ledger/app/services/ledger/handlers/v1/validatorgrp"
	"github.com/minibank/ledger/foundation/events"
	"github.com/minibank/ledger/foundation/ledger/state"
	"github.com/minibank/ledger/foundation/web"
)

// Config contains all the mandatory systems required by handlers.
type Config struct {
	Log   *zap.SugaredLogger
	State *state.State
	Evts  *events.Events
}

// Routes binds all the version 1 routes.
func Routes(app *web.App, cfg Config) {
	const version = "v1"

	// Register the account and money movement endpoints.
	lgh := ledgergrp.Handlers{
		Log:   cfg.Log,
		State: cfg.State,
	}

	app.Handle(http.MethodPost, version, "/accounts", lgh.CreateAccount)
	app.Handle(http.MethodGet, version, "/accounts", lgh.QueryAccounts)
	app.Handle(http.MethodGet, version, "/accounts/:id", lgh.QueryAccount)
	app.Handle(http.MethodPut, version, "/accounts/:id/status", lgh.UpdateAccountStatus)
	app.Handle(http.MethodPost, version, "/transfers", lgh.Transfer)
	app.Handle(http.MethodPost, version, "/deposits", lgh.Deposit)
	app.Handle(http.MethodPost, version, "/withdrawals", lgh.Withdraw)
	app.Handle(http.MethodGet, version, "/transactions/:id", lgh.QueryTran)
	app.Handle(http.MethodGet, version, "/accounts/:id/transactions", lgh.QueryTransByAccount)

	// Register the chain endpoints.
	cgh := chaingrp.Handlers{
		Log:   cfg.Log,
		State: cfg.State,
		Evts:  cfg.Evts,
	}

	app.Handle(http.MethodGet, version, "/chain/blocks", cgh.QueryBlocks)
	app.Handle(http.MethodGet, version, "/chain/blocks/latest", cgh.QueryLatestBlock)
	app.Handle(http.MethodGet, version, "/chain/blocks/:number", cgh.QueryBlockByNumber)
	app.Handle(http.MethodGet, version, "/chain/blocks/:number/transactions", cgh.QueryBlockTrans)
	app.Handle(http.MethodPost, version, "/chain/seal", cgh.SignalSeal)
	app.Handle(http.MethodGet, version, "/chain/verify", cgh.VerifyChain)
	app.Handle(http.MethodGet, version, "/transactions/:id/proof", cgh.QueryProof)
	app.Handle(http.MethodGet, version, "/transactions/:id/verify", cgh.VerifyTran)
	app.Handle(http.MethodGet, version, "/events", cgh.Events)

	// Register the validator management endpoints.
	vgh := validatorgrp.Handlers{
		Log:   cfg.Log,
		State: cfg.State,
	}

	app.Handle(http.MethodPost, version, "/validators", vgh.Add)
	app.Handle(http.MethodGet, version, "/validators", vgh.Query)
	app.Handle(http.MethodGet, version, "/validators/:name", vgh.QueryByName)
	app.Handle(http.MethodDelete, version, "/validators/:name", vgh.Revoke)
	app.Handle(http.MethodPut, version, "/validators/:name/activate", vgh.Activate)
	app.Handle(http.MethodPut, version, "/validators/:name/deactivate", vgh.Deactivate)
	app.Handle(http.MethodPut, version, "/validators/:name/priority", vgh.UpdatePriority)
	app.Handle(http.MethodPost, version, "/validators/:name/heartbeat", vgh.Heartbeat)
}
