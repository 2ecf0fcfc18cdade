package state

import (
	"time"

	"github.com/minibank/ledger/foundation/ledger/database"
)

// =============================================================================
// Validators

// AddValidator admits a validator to the authority set.
func (s *State) AddValidator(name string, publicKey string, priority int, nodeURL string) (database.Validator, error) {
	return s.registry.Add(name, publicKey, priority, nodeURL)
}

// RevokeValidator permanently strips a validator's authority.
func (s *State) RevokeValidator(name string) error {
	return s.registry.Revoke(name)
}

// ActivateValidator returns a deactivated validator to selection.
func (s *State) ActivateValidator(name string) error {
	return s.registry.Activate(name)
}

// DeactivateValidator removes a validator from selection without
// revoking it.
func (s *State) DeactivateValidator(name string) error {
	return s.registry.Deactivate(name)
}

// UpdateValidatorPriority changes a validator's selection priority.
func (s *State) UpdateValidatorPriority(name string, priority int) error {
	return s.registry.UpdatePriority(name, priority)
}

// ValidatorHeartbeat records a liveness signal from a validator.
func (s *State) ValidatorHeartbeat(name string) error {
	return s.registry.Heartbeat(name, time.Now().UTC())
}

// RecordValidatorFailure charges a sealing failure to a validator.
func (s *State) RecordValidatorFailure(name string) error {
	return s.registry.RecordFailure(name, time.Now().UTC())
}

// QueryValidator retrieves a validator by name.
func (s *State) QueryValidator(name string) (database.Validator, error) {
	return s.registry.Validator(name)
}

// Validators returns a snapshot of the validator set.
func (s *State) Validators() []database.Validator {
	return s.registry.List()
}
