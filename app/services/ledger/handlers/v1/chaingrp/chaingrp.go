// Package chaingrp maintains the group of handlers for chain access and
// verification.
package chaingrp

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/minibank/ledger/business/sys/validate"
	"github.com/minibank/ledger/business/web/errs"
	"github.com/minibank/ledger/foundation/events"
	"github.com/minibank/ledger/foundation/ledger/consensus"
	"github.com/minibank/ledger/foundation/ledger/database"
	"github.com/minibank/ledger/foundation/ledger/state"
	"github.com/minibank/ledger/foundation/web"
)

// Handlers manages the set of chain endpoints.
type Handlers struct {
	Log   *zap.SugaredLogger
	State *state.State
	WS    websocket.Upgrader
	Evts  *events.Events
}

// Events handles a web socket to provide events to a client.
func (h Handlers) Events(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	h.WS.CheckOrigin = func(r *http.Request) bool { return true }

	c, err := h.WS.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	ch := h.Evts.Acquire(v.TraceID)
	defer h.Evts.Release(v.TraceID)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, wd := <-ch:
			if !wd {
				return nil
			}

			if err := c.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return err
			}

		case <-ticker.C:
			if err := c.WriteMessage(websocket.PingMessage, []byte("ping")); err != nil {
				return nil
			}
		}
	}
}

// QueryBlocks returns the full chain.
func (h Handlers) QueryBlocks(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, h.State.Blocks(), http.StatusOK)
}

// QueryLatestBlock returns the chain head.
func (h Handlers) QueryLatestBlock(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	block, err := h.State.LatestBlock()
	if err != nil {
		return trusted(err)
	}

	return web.Respond(ctx, w, block, http.StatusOK)
}

// QueryBlockByNumber returns a block by its sequence number.
func (h Handlers) QueryBlockByNumber(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	number, err := strconv.ParseUint(web.Param(r, "number"), 10, 64)
	if err != nil {
		return errs.NewTrusted(errors.New("block number is not in its proper form"), http.StatusBadRequest)
	}

	block, err := h.State.QueryBlockByNumber(number)
	if err != nil {
		return trusted(err)
	}

	return web.Respond(ctx, w, block, http.StatusOK)
}

// QueryBlockTrans returns the transactions sealed into a block.
func (h Handlers) QueryBlockTrans(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	number, err := strconv.ParseUint(web.Param(r, "number"), 10, 64)
	if err != nil {
		return errs.NewTrusted(errors.New("block number is not in its proper form"), http.StatusBadRequest)
	}

	if _, err := h.State.QueryBlockByNumber(number); err != nil {
		return trusted(err)
	}

	return web.Respond(ctx, w, h.State.QueryTransByBlock(number), http.StatusOK)
}

// SignalSeal asks the worker to seal the current batch even if it is
// under the threshold.
func (h Handlers) SignalSeal(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	h.State.Worker.SignalSeal()

	resp := struct {
		Status string `json:"status"`
	}{
		Status: "seal signaled",
	}

	return web.Respond(ctx, w, resp, http.StatusAccepted)
}

// VerifyChain walks the whole chain checking block hashes and linkage.
func (h Handlers) VerifyChain(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	if err := h.State.VerifyChain(); err != nil {
		return trusted(err)
	}

	resp := struct {
		Status string `json:"status"`
		Blocks int    `json:"blocks"`
	}{
		Status: "chain verified",
		Blocks: h.State.BlockCount(),
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// QueryProof returns the merkle inclusion proof for a sealed
// transaction.
func (h Handlers) QueryProof(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	id, err := validate.CheckID(web.Param(r, "id"))
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	proof, err := h.State.TransactionProof(id)
	if err != nil {
		return trusted(err)
	}

	return web.Respond(ctx, w, proof, http.StatusOK)
}

// VerifyTran checks a sealed transaction's inclusion proof against its
// block.
func (h Handlers) VerifyTran(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	id, err := validate.CheckID(web.Param(r, "id"))
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	ok, err := h.State.VerifyTransactionInBlock(id)
	if err != nil {
		return trusted(err)
	}

	resp := struct {
		Verified bool `json:"verified"`
	}{
		Verified: ok,
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// trusted maps the well known chain errors to status codes the client
// can act on.
func trusted(err error) error {
	switch {
	case errors.Is(err, database.ErrBlockNotFound),
		errors.Is(err, database.ErrTransactionNotFound):
		return errs.NewTrusted(err, http.StatusNotFound)

	case errors.Is(err, state.ErrNotSealed):
		return errs.NewTrusted(err, http.StatusConflict)

	case errors.Is(err, consensus.ErrBlockVerificationFailed):
		return errs.NewTrusted(err, http.StatusConflict)
	}

	return err
}
