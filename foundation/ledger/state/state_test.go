package state_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/minibank/ledger/foundation/ledger/consensus"
	"github.com/minibank/ledger/foundation/ledger/state"
	"github.com/minibank/ledger/foundation/ledger/stream"
	"github.com/minibank/ledger/foundation/ledger/worker"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

var noopEv = func(v string, args ...any) {}

// =============================================================================

func Test_SealingPipeline(t *testing.T) {
	t.Log("Given the need to validate committed transactions seal into verifiable blocks.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen sealing two batches of deposits.", testID)
		{
			st := newState(t, testID, state.Config{Consensus: state.ConsensusPOW, Difficulty: 1, BatchSize: 3})

			account, err := st.CreateAccount("ACC-0001", "USD")
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to create an account: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould be able to create an account.", success, testID)

			for i := 0; i < 3; i++ {
				if _, err := st.Deposit(context.Background(), account.ID, decimal.NewFromInt(10), ""); err != nil {
					t.Fatalf("\t%s\tTest %d:\tShould be able to deposit: %v", failed, testID, err)
				}
			}
			t.Logf("\t%s\tTest %d:\tShould be able to deposit three times.", success, testID)

			drain(st)
			if !st.ShouldSeal() {
				t.Fatalf("\t%s\tTest %d:\tShould reach the sealing threshold.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould reach the sealing threshold.", success, testID)

			block, err := st.SealBlock(context.Background())
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to seal a block: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould be able to seal a block.", success, testID)

			if block.Number != 1 || block.TransactionCount != 3 {
				t.Errorf("\t%s\tTest %d:\tShould seal block 1 with 3 transactions.", failed, testID)
			} else {
				t.Logf("\t%s\tTest %d:\tShould seal block 1 with 3 transactions.", success, testID)
			}

			trans := st.QueryTransByBlock(1)
			if len(trans) != 3 {
				t.Fatalf("\t%s\tTest %d:\tShould link 3 transactions to the block, got %d.", failed, testID, len(trans))
			}
			t.Logf("\t%s\tTest %d:\tShould link 3 transactions to the block.", success, testID)

			for _, tran := range trans {
				if tran.MerkleProof == "" || tran.TxHash == "" {
					t.Fatalf("\t%s\tTest %d:\tShould stamp proof and leaf on every transaction.", failed, testID)
				}

				ok, err := st.VerifyTransactionInBlock(tran.ID)
				if err != nil || !ok {
					t.Errorf("\t%s\tTest %d:\tShould verify transaction %s in its block.", failed, testID, tran.Code)
				}
			}
			t.Logf("\t%s\tTest %d:\tShould verify every transaction in its block.", success, testID)

			if err := st.VerifyChain(); err != nil {
				t.Errorf("\t%s\tTest %d:\tShould verify the chain: %v", failed, testID, err)
			} else {
				t.Logf("\t%s\tTest %d:\tShould verify the chain.", success, testID)
			}

			// Second batch keeps the chain linked.
			for i := 0; i < 3; i++ {
				if _, err := st.Deposit(context.Background(), account.ID, decimal.NewFromInt(5), ""); err != nil {
					t.Fatalf("\t%s\tTest %d:\tShould be able to deposit: %v", failed, testID, err)
				}
			}
			drain(st)

			next, err := st.SealBlock(context.Background())
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to seal the next block: %v", failed, testID, err)
			}

			if next.Number != 2 || next.PreviousHash != block.Hash {
				t.Errorf("\t%s\tTest %d:\tShould link block 2 to block 1.", failed, testID)
			} else {
				t.Logf("\t%s\tTest %d:\tShould link block 2 to block 1.", success, testID)
			}

			if err := st.VerifyChain(); err != nil {
				t.Errorf("\t%s\tTest %d:\tShould verify the extended chain: %v", failed, testID, err)
			} else {
				t.Logf("\t%s\tTest %d:\tShould verify the extended chain.", success, testID)
			}
		}

		testID = 1
		t.Logf("\tTest %d:\tWhen sealing with nothing batched.", testID)
		{
			st := newState(t, testID, state.Config{Consensus: state.ConsensusPOW, Difficulty: 1})

			if _, err := st.SealBlock(context.Background()); !errors.Is(err, consensus.ErrEmptyBatch) {
				t.Errorf("\t%s\tTest %d:\tShould get ErrEmptyBatch, got %v.", failed, testID, err)
			} else {
				t.Logf("\t%s\tTest %d:\tShould get ErrEmptyBatch.", success, testID)
			}
		}

		testID = 2
		t.Logf("\tTest %d:\tWhen asking for a proof before sealing.", testID)
		{
			st := newState(t, testID, state.Config{Consensus: state.ConsensusPOW, Difficulty: 1})

			account, err := st.CreateAccount("ACC-0001", "USD")
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to create an account: %v", failed, testID, err)
			}

			tran, err := st.Deposit(context.Background(), account.ID, decimal.NewFromInt(10), "")
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to deposit: %v", failed, testID, err)
			}

			if _, err := st.TransactionProof(tran.ID); !errors.Is(err, state.ErrNotSealed) {
				t.Errorf("\t%s\tTest %d:\tShould get ErrNotSealed, got %v.", failed, testID, err)
			} else {
				t.Logf("\t%s\tTest %d:\tShould get ErrNotSealed.", success, testID)
			}
		}
	}
}

func Test_FailedSealDropsCachedRoot(t *testing.T) {
	t.Log("Given the need to validate a failed seal leaves no stale merkle state behind.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen mining is cut off by the caller's deadline.", testID)
		{
			st := newState(t, testID, state.Config{Consensus: state.ConsensusPOW, Difficulty: 8, BatchSize: 1})

			account, err := st.CreateAccount("ACC-0001", "USD")
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to create an account: %v", failed, testID, err)
			}

			if _, err := st.Deposit(context.Background(), account.ID, decimal.NewFromInt(10), ""); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to deposit: %v", failed, testID, err)
			}
			drain(st)

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
			defer cancel()

			if _, err := st.SealBlock(ctx); !errors.Is(err, context.DeadlineExceeded) {
				t.Fatalf("\t%s\tTest %d:\tShould fail the seal on the deadline, got %v.", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould fail the seal on the deadline.", success, testID)

			// The root computed over the drained batch must not survive,
			// or the retry would seal its transactions under a root that
			// doesn't cover them.
			if stats := st.MerkleStats(); stats.Roots != 0 || stats.Proofs != 0 {
				t.Errorf("\t%s\tTest %d:\tShould drop the cached merkle state, got %+v.", failed, testID, stats)
			} else {
				t.Logf("\t%s\tTest %d:\tShould drop the cached merkle state.", success, testID)
			}

			if !st.ShouldSeal() {
				t.Errorf("\t%s\tTest %d:\tShould restore the batch for the retry.", failed, testID)
			} else {
				t.Logf("\t%s\tTest %d:\tShould restore the batch for the retry.", success, testID)
			}
		}
	}
}

func Test_AuthorityPipeline(t *testing.T) {
	t.Log("Given the need to validate the pipeline under authority consensus.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen sealing under a live validator.", testID)
		{
			st := newState(t, testID, state.Config{Consensus: state.ConsensusPOA, BatchSize: 2})

			if _, err := st.AddValidator("val-1", "0xAAA", 5, ""); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to add a validator: %v", failed, testID, err)
			}
			if err := st.ValidatorHeartbeat("val-1"); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to heartbeat: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould be able to register a live validator.", success, testID)

			account, err := st.CreateAccount("ACC-0001", "USD")
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to create an account: %v", failed, testID, err)
			}

			for i := 0; i < 2; i++ {
				if _, err := st.Deposit(context.Background(), account.ID, decimal.NewFromInt(10), ""); err != nil {
					t.Fatalf("\t%s\tTest %d:\tShould be able to deposit: %v", failed, testID, err)
				}
			}
			drain(st)

			block, err := st.SealBlock(context.Background())
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to seal a block: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould be able to seal a block.", success, testID)

			if block.SignedBy != "val-1" || block.Nonce != 0 {
				t.Errorf("\t%s\tTest %d:\tShould seal under the validator without a nonce.", failed, testID)
			} else {
				t.Logf("\t%s\tTest %d:\tShould seal under the validator without a nonce.", success, testID)
			}

			if err := st.VerifyChain(); err != nil {
				t.Errorf("\t%s\tTest %d:\tShould verify the chain: %v", failed, testID, err)
			} else {
				t.Logf("\t%s\tTest %d:\tShould verify the chain.", success, testID)
			}

			for _, tran := range st.QueryTransByBlock(1) {
				ok, err := st.VerifyTransactionInBlock(tran.ID)
				if err != nil || !ok {
					t.Errorf("\t%s\tTest %d:\tShould verify transaction %s in its block.", failed, testID, tran.Code)
				}
			}
			t.Logf("\t%s\tTest %d:\tShould verify every transaction in its block.", success, testID)
		}

		testID = 1
		t.Logf("\tTest %d:\tWhen no validator is registered.", testID)
		{
			st := newState(t, testID, state.Config{Consensus: state.ConsensusPOA, BatchSize: 1})

			account, err := st.CreateAccount("ACC-0001", "USD")
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to create an account: %v", failed, testID, err)
			}

			if _, err := st.Deposit(context.Background(), account.ID, decimal.NewFromInt(10), ""); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to deposit: %v", failed, testID, err)
			}
			drain(st)

			if _, err := st.SealBlock(context.Background()); !errors.Is(err, consensus.ErrNoAuthorizedValidators) {
				t.Fatalf("\t%s\tTest %d:\tShould get ErrNoAuthorizedValidators, got %v.", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould get ErrNoAuthorizedValidators.", success, testID)

			// The failed seal put the batch back.
			if !st.ShouldSeal() {
				t.Errorf("\t%s\tTest %d:\tShould restore the batch after a failed seal.", failed, testID)
			} else {
				t.Logf("\t%s\tTest %d:\tShould restore the batch after a failed seal.", success, testID)
			}
		}
	}
}

func Test_Worker(t *testing.T) {
	t.Log("Given the need to validate the background worker seals on its own.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen the batch threshold is reached.", testID)
		{
			st := newState(t, testID, state.Config{Consensus: state.ConsensusPOW, Difficulty: 1, BatchSize: 2})

			worker.Run(st, noopEv)
			defer st.Shutdown()

			account, err := st.CreateAccount("ACC-0001", "USD")
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to create an account: %v", failed, testID, err)
			}

			for i := 0; i < 2; i++ {
				if _, err := st.Deposit(context.Background(), account.ID, decimal.NewFromInt(10), ""); err != nil {
					t.Fatalf("\t%s\tTest %d:\tShould be able to deposit: %v", failed, testID, err)
				}
			}

			if !waitFor(5*time.Second, func() bool { return st.BlockCount() == 1 }) {
				t.Fatalf("\t%s\tTest %d:\tShould seal a block on its own.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould seal a block on its own.", success, testID)

			// One more deposit stays under the threshold until a seal is
			// signaled.
			if _, err := st.Deposit(context.Background(), account.ID, decimal.NewFromInt(1), ""); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to deposit: %v", failed, testID, err)
			}

			// Keep signaling until the worker has drained the event and
			// sealed. A signal that lands before the drain finds an empty
			// batch and is dropped.
			if !waitFor(5*time.Second, func() bool {
				st.Worker.SignalSeal()
				return st.BlockCount() == 2
			}) {
				t.Fatalf("\t%s\tTest %d:\tShould seal the partial batch on signal.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould seal the partial batch on signal.", success, testID)
		}
	}
}

// =============================================================================

func newState(t *testing.T, testID int, cfg state.Config) *state.State {
	t.Helper()

	cfg.EvHandler = noopEv

	st, err := state.New(cfg)
	if err != nil {
		t.Fatalf("\t%s\tTest %d:\tShould be able to construct the state: %v", failed, testID, err)
	}

	return st
}

// drain plays the worker's consume step: move stream entries into the
// batcher and ack them.
func drain(st *state.State) {
	const group = "test-sealers"

	for {
		entries := st.Stream().Read(group, 16)
		if len(entries) == 0 {
			return
		}
		for _, entry := range entries {
			ev, err := stream.ParseEvent(entry.Values)
			if err == nil {
				st.OnEvent(ev)
			}
			st.Stream().Ack(group, entry.ID)
		}
	}
}

func waitFor(limit time.Duration, fn func() bool) bool {
	deadline := time.Now().Add(limit)
	for time.Now().Before(deadline) {
		if fn() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}
