package database

import (
	"time"

	"github.com/google/uuid"
)

// onlineWindow is how recently a validator must have heartbeat to count
// as online.
const onlineWindow = 5 * time.Minute

// Lockout policy: this many consecutive failures locks the validator for
// the lock duration.
const (
	maxFailedAttempts = 3
	lockDuration      = 30 * time.Minute
)

// Validator is an authority that may seal blocks on a PoA chain. Higher
// priority wins selection. Failed attempts accrue toward a timed lock and
// a revoked validator never regains authority.
type Validator struct {
	ID             uuid.UUID `json:"validator_id"`
	Name           string    `json:"validator_name"`
	PublicKey      string    `json:"public_key"`
	NodeURL        string    `json:"node_url,omitempty"`
	IsAuthorized   bool      `json:"is_authorized"`
	IsActive       bool      `json:"is_active"`
	Priority       int       `json:"priority"`
	BlocksCreated  int       `json:"blocks_created"`
	LastBlockTime  time.Time `json:"last_block_time,omitzero"`
	LastHeartbeat  time.Time `json:"last_heartbeat,omitzero"`
	FailedAttempts int       `json:"failed_attempts"`
	LockedUntil    time.Time `json:"locked_until,omitzero"`
	CreatedAt      time.Time `json:"created_at"`
}

// NewValidator constructs an authorized, active validator.
func NewValidator(name string, publicKey string, priority int, nodeURL string) Validator {
	return Validator{
		ID:           uuid.New(),
		Name:         name,
		PublicKey:    publicKey,
		NodeURL:      nodeURL,
		IsAuthorized: true,
		IsActive:     true,
		Priority:     priority,
		CreatedAt:    time.Now().UTC(),
	}
}

// IsLocked reports whether the validator's failure lock is still in effect.
func (v Validator) IsLocked(now time.Time) bool {
	return !v.LockedUntil.IsZero() && now.Before(v.LockedUntil)
}

// CanCreateBlock reports whether the validator may seal a block right now.
func (v Validator) CanCreateBlock(now time.Time) bool {
	return v.IsAuthorized && v.IsActive && !v.IsLocked(now)
}

// IsOnline reports whether the validator has heartbeat recently enough to
// be considered reachable.
func (v Validator) IsOnline(now time.Time) bool {
	if v.LastHeartbeat.IsZero() {
		return false
	}

	return now.Sub(v.LastHeartbeat) < onlineWindow
}

// RecordFailure increments the failure counter and applies the timed lock
// once the threshold is reached.
func (v *Validator) RecordFailure(now time.Time) {
	v.FailedAttempts++
	if v.FailedAttempts >= maxFailedAttempts {
		v.LockedUntil = now.Add(lockDuration)
	}
}

// ResetFailures clears the failure counter and any lock.
func (v *Validator) ResetFailures() {
	v.FailedAttempts = 0
	v.LockedUntil = time.Time{}
}

// Heartbeat records a liveness signal and clears accrued failures.
func (v *Validator) Heartbeat(now time.Time) {
	v.LastHeartbeat = now
	v.ResetFailures()
}

// BlockCreated updates the validator's sealing statistics.
func (v *Validator) BlockCreated(now time.Time) {
	v.BlocksCreated++
	v.LastBlockTime = now
}
