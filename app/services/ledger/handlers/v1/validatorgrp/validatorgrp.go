// Package validatorgrp maintains the group of handlers for validator
// set management.
package validatorgrp

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/minibank/ledger/business/sys/validate"
	"github.com/minibank/ledger/business/web/errs"
	"github.com/minibank/ledger/foundation/ledger/database"
	"github.com/minibank/ledger/foundation/ledger/state"
	"github.com/minibank/ledger/foundation/web"
)

// Handlers manages the set of validator endpoints.
type Handlers struct {
	Log   *zap.SugaredLogger
	State *state.State
}

type newValidator struct {
	Name      string `json:"validator_name" validate:"required"`
	PublicKey string `json:"public_key" validate:"required"`
	Priority  int    `json:"priority" validate:"gte=0"`
	NodeURL   string `json:"node_url" validate:"omitempty,url"`
}

// Validate checks the data in the model is considered clean.
func (nv newValidator) Validate() error {
	return validate.Check(nv)
}

type newPriority struct {
	Priority int `json:"priority" validate:"gte=0"`
}

// Validate checks the data in the model is considered clean.
func (np newPriority) Validate() error {
	return validate.Check(np)
}

// Add admits a validator to the authority set.
func (h Handlers) Add(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var nv newValidator
	if err := web.Decode(r, &nv); err != nil {
		return err
	}

	validator, err := h.State.AddValidator(nv.Name, nv.PublicKey, nv.Priority, nv.NodeURL)
	if err != nil {
		return trusted(err)
	}

	return web.Respond(ctx, w, validator, http.StatusCreated)
}

// Query returns the full validator set.
func (h Handlers) Query(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, h.State.Validators(), http.StatusOK)
}

// QueryByName returns a validator by name.
func (h Handlers) QueryByName(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	validator, err := h.State.QueryValidator(web.Param(r, "name"))
	if err != nil {
		return trusted(err)
	}

	return web.Respond(ctx, w, validator, http.StatusOK)
}

// Revoke permanently strips a validator's authority.
func (h Handlers) Revoke(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	if err := h.State.RevokeValidator(web.Param(r, "name")); err != nil {
		return trusted(err)
	}

	return web.Respond(ctx, w, nil, http.StatusNoContent)
}

// Activate returns a deactivated validator to selection.
func (h Handlers) Activate(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	if err := h.State.ActivateValidator(web.Param(r, "name")); err != nil {
		return trusted(err)
	}

	return web.Respond(ctx, w, nil, http.StatusNoContent)
}

// Deactivate removes a validator from selection without revoking it.
func (h Handlers) Deactivate(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	if err := h.State.DeactivateValidator(web.Param(r, "name")); err != nil {
		return trusted(err)
	}

	return web.Respond(ctx, w, nil, http.StatusNoContent)
}

// UpdatePriority changes a validator's selection priority.
func (h Handlers) UpdatePriority(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var np newPriority
	if err := web.Decode(r, &np); err != nil {
		return err
	}

	if err := h.State.UpdateValidatorPriority(web.Param(r, "name"), np.Priority); err != nil {
		return trusted(err)
	}

	return web.Respond(ctx, w, nil, http.StatusNoContent)
}

// Heartbeat records a liveness signal from a validator.
func (h Handlers) Heartbeat(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	if err := h.State.ValidatorHeartbeat(web.Param(r, "name")); err != nil {
		return trusted(err)
	}

	return web.Respond(ctx, w, nil, http.StatusNoContent)
}

// trusted maps the well known validator errors to status codes the
// client can act on.
func trusted(err error) error {
	switch {
	case errors.Is(err, database.ErrValidatorNotFound):
		return errs.NewTrusted(err, http.StatusNotFound)

	case errors.Is(err, database.ErrDuplicateValidator):
		return errs.NewTrusted(err, http.StatusConflict)
	}

	return err
}
