// Package database manages the in-memory arena of ledger records. Every
// entity is stored by value in a map keyed by its id and associations are
// held as id references, never shared pointers, so concurrent readers can
// never observe a half-mutated record. Exclusive per-account locks for the
// transfer path are managed here as well.
package database

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Set of errors for record lookups and uniqueness rules.
var (
	ErrAccountNotFound     = errors.New("account not found")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrBlockNotFound       = errors.New("block not found")
	ErrValidatorNotFound   = errors.New("validator not found")
	ErrDuplicateValidator  = errors.New("validator name or url already exists")
	ErrDuplicateAccount    = errors.New("account number already exists")
)

// Database is the single authority for ledger records. It stands in for
// the persistence collaborators of a deployed system and provides the
// exclusive-lock semantics the transfer engine requires.
type Database struct {
	mu sync.RWMutex

	accounts       map[uuid.UUID]Account
	accountNumbers map[string]uuid.UUID
	trans          map[uuid.UUID]Tran
	tranCodes      map[string]uuid.UUID
	blocks         []Block
	blocksByHash   map[string]int
	validators     map[uuid.UUID]Validator

	locks *lockManager
}

// New constructs an empty database.
func New() *Database {
	return &Database{
		accounts:       make(map[uuid.UUID]Account),
		accountNumbers: make(map[string]uuid.UUID),
		trans:          make(map[uuid.UUID]Tran),
		tranCodes:      make(map[string]uuid.UUID),
		blocksByHash:   make(map[string]int),
		validators:     make(map[uuid.UUID]Validator),
		locks:          newLockManager(),
	}
}

// =============================================================================
// Accounts

// CreateAccount stores a new account. Account numbers are unique.
func (db *Database) CreateAccount(account Account) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, exists := db.accountNumbers[account.Number]; exists {
		return ErrDuplicateAccount
	}

	db.accounts[account.ID] = account
	db.accountNumbers[account.Number] = account.ID

	return nil
}

// QueryAccount retrieves an account by id.
func (db *Database) QueryAccount(id uuid.UUID) (Account, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	account, exists := db.accounts[id]
	if !exists {
		return Account{}, ErrAccountNotFound
	}

	return account, nil
}

// QueryAccountByNumber retrieves an account by its human readable number.
func (db *Database) QueryAccountByNumber(number string) (Account, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	id, exists := db.accountNumbers[number]
	if !exists {
		return Account{}, ErrAccountNotFound
	}

	return db.accounts[id], nil
}

// UpdateAccount persists a mutated account. The caller must hold the
// account's exclusive lock when the mutation touched balances.
func (db *Database) UpdateAccount(account Account) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, exists := db.accounts[account.ID]; !exists {
		return ErrAccountNotFound
	}

	db.accounts[account.ID] = account

	return nil
}

// CopyAccounts returns a snapshot of all accounts.
func (db *Database) CopyAccounts() []Account {
	db.mu.RLock()
	defer db.mu.RUnlock()

	accounts := make([]Account, 0, len(db.accounts))
	for _, account := range db.accounts {
		accounts = append(accounts, account)
	}

	sort.Slice(accounts, func(i, j int) bool {
		return accounts[i].Number < accounts[j].Number
	})

	return accounts
}

// LockAccounts acquires the exclusive locks for the specified accounts in
// canonical ascending-id order, which prevents deadlock when two transfers
// move money between the same pair of accounts in opposite directions.
// The call blocks until every lock is granted or the context expires. The
// returned function releases the locks and must always be called.
func (db *Database) LockAccounts(ctx context.Context, ids ...uuid.UUID) (func(), error) {
	return db.locks.acquire(ctx, ids)
}

// =============================================================================
// Transactions

// CreateTran stores a new transaction record.
func (db *Database) CreateTran(tran Tran) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.trans[tran.ID] = tran
	db.tranCodes[tran.Code] = tran.ID

	return nil
}

// UpdateTran persists a mutated transaction record.
func (db *Database) UpdateTran(tran Tran) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, exists := db.trans[tran.ID]; !exists {
		return ErrTransactionNotFound
	}

	db.trans[tran.ID] = tran

	return nil
}

// QueryTran retrieves a transaction by id.
func (db *Database) QueryTran(id uuid.UUID) (Tran, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	tran, exists := db.trans[id]
	if !exists {
		return Tran{}, ErrTransactionNotFound
	}

	return tran, nil
}

// QueryTranByCode retrieves a transaction by its unique code.
func (db *Database) QueryTranByCode(code string) (Tran, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	id, exists := db.tranCodes[code]
	if !exists {
		return Tran{}, ErrTransactionNotFound
	}

	return db.trans[id], nil
}

// QueryTransByAccount returns every transaction touching the account,
// oldest first.
func (db *Database) QueryTransByAccount(accountID uuid.UUID) []Tran {
	db.mu.RLock()
	defer db.mu.RUnlock()

	var trans []Tran
	for _, tran := range db.trans {
		if tran.FromAccountID == accountID || tran.ToAccountID == accountID {
			trans = append(trans, tran)
		}
	}

	sort.Slice(trans, func(i, j int) bool {
		return trans[i].CreatedAt.Before(trans[j].CreatedAt)
	})

	return trans
}

// QueryTransByBlock returns the transactions linked into the specified
// block, oldest first.
func (db *Database) QueryTransByBlock(blockNumber uint64) []Tran {
	db.mu.RLock()
	defer db.mu.RUnlock()

	var trans []Tran
	for _, tran := range db.trans {
		if tran.BlockNumber == blockNumber {
			trans = append(trans, tran)
		}
	}

	sort.Slice(trans, func(i, j int) bool {
		return trans[i].CreatedAt.Before(trans[j].CreatedAt)
	})

	return trans
}

// =============================================================================
// Blocks

// WriteBlock appends a sealed block to the chain. Sequence numbers are
// enforced strictly increasing by one.
func (db *Database) WriteBlock(block Block) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	next := uint64(len(db.blocks)) + 1
	if block.Number != next {
		return errors.New("block number out of sequence")
	}

	db.blocks = append(db.blocks, block)
	db.blocksByHash[block.Hash] = len(db.blocks) - 1

	return nil
}

// MarkBlockInvalid flags a stored block that failed verification. The
// block stays on the chain as evidence; only its status changes.
func (db *Database) MarkBlockInvalid(number uint64) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if number < 1 || number > uint64(len(db.blocks)) {
		return ErrBlockNotFound
	}

	db.blocks[number-1].Status = BlockInvalid

	return nil
}

// LatestBlock returns the chain head. An empty chain returns
// ErrBlockNotFound.
func (db *Database) LatestBlock() (Block, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if len(db.blocks) == 0 {
		return Block{}, ErrBlockNotFound
	}

	return db.blocks[len(db.blocks)-1], nil
}

// QueryBlockByNumber retrieves a block by sequence number.
func (db *Database) QueryBlockByNumber(number uint64) (Block, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if number < 1 || number > uint64(len(db.blocks)) {
		return Block{}, ErrBlockNotFound
	}

	return db.blocks[number-1], nil
}

// QueryBlockByHash retrieves a block by its hash.
func (db *Database) QueryBlockByHash(hash string) (Block, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	i, exists := db.blocksByHash[hash]
	if !exists {
		return Block{}, ErrBlockNotFound
	}

	return db.blocks[i], nil
}

// BlockCount returns the current chain length.
func (db *Database) BlockCount() int {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return len(db.blocks)
}

// CopyBlocks returns a snapshot of the chain in sequence order.
func (db *Database) CopyBlocks() []Block {
	db.mu.RLock()
	defer db.mu.RUnlock()

	blocks := make([]Block, len(db.blocks))
	copy(blocks, db.blocks)

	return blocks
}

// =============================================================================
// Validators

// CreateValidator stores a new validator. Names and node urls are unique.
func (db *Database) CreateValidator(validator Validator) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, v := range db.validators {
		if v.Name == validator.Name {
			return ErrDuplicateValidator
		}
		if validator.NodeURL != "" && v.NodeURL == validator.NodeURL {
			return ErrDuplicateValidator
		}
	}

	db.validators[validator.ID] = validator

	return nil
}

// UpdateValidator persists a mutated validator.
func (db *Database) UpdateValidator(validator Validator) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, exists := db.validators[validator.ID]; !exists {
		return ErrValidatorNotFound
	}

	db.validators[validator.ID] = validator

	return nil
}

// QueryValidator retrieves a validator by id.
func (db *Database) QueryValidator(id uuid.UUID) (Validator, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	validator, exists := db.validators[id]
	if !exists {
		return Validator{}, ErrValidatorNotFound
	}

	return validator, nil
}

// QueryValidatorByName retrieves a validator by its unique name.
func (db *Database) QueryValidatorByName(name string) (Validator, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	for _, v := range db.validators {
		if v.Name == name {
			return v, nil
		}
	}

	return Validator{}, ErrValidatorNotFound
}

// QueryAuthorizedByPriority returns the authorized, active validators in
// descending priority order.
func (db *Database) QueryAuthorizedByPriority() []Validator {
	db.mu.RLock()
	defer db.mu.RUnlock()

	var validators []Validator
	for _, v := range db.validators {
		if v.IsAuthorized && v.IsActive {
			validators = append(validators, v)
		}
	}

	sort.Slice(validators, func(i, j int) bool {
		if validators[i].Priority != validators[j].Priority {
			return validators[i].Priority > validators[j].Priority
		}
		return validators[i].Name < validators[j].Name
	})

	return validators
}

// QueryOnlineSince returns the validators whose last heartbeat is at or
// after the threshold.
func (db *Database) QueryOnlineSince(threshold time.Time) []Validator {
	db.mu.RLock()
	defer db.mu.RUnlock()

	var validators []Validator
	for _, v := range db.validators {
		if !v.LastHeartbeat.IsZero() && !v.LastHeartbeat.Before(threshold) {
			validators = append(validators, v)
		}
	}

	sort.Slice(validators, func(i, j int) bool {
		return validators[i].Name < validators[j].Name
	})

	return validators
}

// CopyValidators returns a snapshot of all validators.
func (db *Database) CopyValidators() []Validator {
	db.mu.RLock()
	defer db.mu.RUnlock()

	validators := make([]Validator, 0, len(db.validators))
	for _, v := range db.validators {
		validators = append(validators, v)
	}

	sort.Slice(validators, func(i, j int) bool {
		return validators[i].Name < validators[j].Name
	})

	return validators
}

// =============================================================================

// lockManager hands out one exclusive lock per account id. Locks are
// channel based so acquisition can respect a context deadline.
type lockManager struct {
	mu    sync.Mutex
	locks map[uuid.UUID]chan struct{}
}

func newLockManager() *lockManager {
	return &lockManager{
		locks: make(map[uuid.UUID]chan struct{}),
	}
}

// lock returns the channel mutex for the account, creating it on first use.
func (lm *lockManager) lock(id uuid.UUID) chan struct{} {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	l, exists := lm.locks[id]
	if !exists {
		l = make(chan struct{}, 1)
		lm.locks[id] = l
	}

	return l
}

// acquire takes the locks for the ids in canonical ascending order,
// blocking on each until granted or the context expires. On failure any
// locks already held are released.
func (lm *lockManager) acquire(ctx context.Context, ids []uuid.UUID) (func(), error) {
	ordered := make([]uuid.UUID, 0, len(ids))
	seen := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			ordered = append(ordered, id)
		}
	}

	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].String() < ordered[j].String()
	})

	var held []chan struct{}
	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			<-held[i]
		}
	}

	for _, id := range ordered {
		l := lm.lock(id)
		select {
		case l <- struct{}{}:
			held = append(held, l)
		case <-ctx.Done():
			release()
			return nil, ctx.Err()
		}
	}

	return release, nil
}
