package consensus

import (
	"time"

	"github.com/minibank/ledger/foundation/ledger/database"
)

// Registry manages the validator set behind the authority strategy:
// admission, revocation, liveness and the failure lockout policy.
type Registry struct {
	db        *database.Database
	evHandler EventHandler
}

// NewRegistry constructs a registry over the validator records.
func NewRegistry(db *database.Database, evHandler EventHandler) *Registry {
	return &Registry{
		db:        db,
		evHandler: evHandler,
	}
}

// Add admits a new validator to the set, authorized and active.
func (r *Registry) Add(name string, publicKey string, priority int, nodeURL string) (database.Validator, error) {
	validator := database.NewValidator(name, publicKey, priority, nodeURL)

	if err := r.db.CreateValidator(validator); err != nil {
		return database.Validator{}, err
	}

	r.evHandler("consensus: registry: added validator %s: priority[%d]", name, priority)

	return validator, nil
}

// Revoke strips a validator's authority permanently. A revoked validator
// is also taken out of the active set so a later Activate alone cannot
// return it to selection.
func (r *Registry) Revoke(name string) error {
	validator, err := r.db.QueryValidatorByName(name)
	if err != nil {
		return err
	}

	validator.IsAuthorized = false
	validator.IsActive = false

	if err := r.db.UpdateValidator(validator); err != nil {
		return err
	}

	r.evHandler("consensus: registry: revoked validator %s", name)

	return nil
}

// Activate marks a validator active again after deactivation.
func (r *Registry) Activate(name string) error {
	return r.setActive(name, true)
}

// Deactivate takes a validator out of selection without revoking its
// authority.
func (r *Registry) Deactivate(name string) error {
	return r.setActive(name, false)
}

func (r *Registry) setActive(name string, active bool) error {
	validator, err := r.db.QueryValidatorByName(name)
	if err != nil {
		return err
	}

	validator.IsActive = active

	return r.db.UpdateValidator(validator)
}

// UpdatePriority changes a validator's selection priority.
func (r *Registry) UpdatePriority(name string, priority int) error {
	validator, err := r.db.QueryValidatorByName(name)
	if err != nil {
		return err
	}

	validator.Priority = priority

	return r.db.UpdateValidator(validator)
}

// Heartbeat records a liveness signal from a validator. A heartbeat also
// clears accrued failures and any lock.
func (r *Registry) Heartbeat(name string, now time.Time) error {
	validator, err := r.db.QueryValidatorByName(name)
	if err != nil {
		return err
	}

	validator.Heartbeat(now)

	return r.db.UpdateValidator(validator)
}

// RecordFailure charges a sealing failure to a validator. Reaching the
// failure threshold locks the validator out of selection for the lock
// window.
func (r *Registry) RecordFailure(name string, now time.Time) error {
	validator, err := r.db.QueryValidatorByName(name)
	if err != nil {
		return err
	}

	validator.RecordFailure(now)

	if err := r.db.UpdateValidator(validator); err != nil {
		return err
	}

	if validator.IsLocked(now) {
		r.evHandler("consensus: registry: validator %s locked until %v: failures[%d]", name, validator.LockedUntil, validator.FailedAttempts)
	}

	return nil
}

// Validator retrieves a validator by name.
func (r *Registry) Validator(name string) (database.Validator, error) {
	return r.db.QueryValidatorByName(name)
}

// List returns the full validator set.
func (r *Registry) List() []database.Validator {
	return r.db.CopyValidators()
}

// Online returns the validators heard from within the liveness window
// ending now.
func (r *Registry) Online(now time.Time, window time.Duration) []database.Validator {
	return r.db.QueryOnlineSince(now.Add(-window))
}
