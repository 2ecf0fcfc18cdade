package transfer_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/minibank/ledger/foundation/ledger/database"
	"github.com/minibank/ledger/foundation/ledger/stream"
	"github.com/minibank/ledger/foundation/ledger/transfer"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

var noopEv = func(v string, args ...any) {}

// failEmitter always fails so tests can prove emission never unwinds a
// movement.
type failEmitter struct{}

func (failEmitter) Emit(ev stream.Event) error {
	return errors.New("broker unavailable")
}

// =============================================================================

func Test_Transfer(t *testing.T) {
	t.Log("Given the need to validate money moves between accounts.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen transferring 40 from a 100 balance to a 50 balance.", testID)
		{
			db, strm, from, to := seed(t, testID, "100", "50")
			engine := transfer.New(db, strm, 0, noopEv)

			tran, err := engine.Transfer(context.Background(), from.ID, to.ID, decimal.RequireFromString("40"), "rent")
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to transfer: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould be able to transfer.", success, testID)

			if tran.Status != database.StatusCompleted {
				t.Errorf("\t%s\tTest %d:\tShould settle the record completed, got %s.", failed, testID, tran.Status)
			} else {
				t.Logf("\t%s\tTest %d:\tShould settle the record completed.", success, testID)
			}

			checkBalance(t, testID, db, from.ID, "60")
			checkBalance(t, testID, db, to.ID, "90")

			if strm.Len() != 1 {
				t.Errorf("\t%s\tTest %d:\tShould emit exactly one event, got %d.", failed, testID, strm.Len())
			} else {
				t.Logf("\t%s\tTest %d:\tShould emit exactly one event.", success, testID)
			}

			stored, err := db.QueryTran(tran.ID)
			if err != nil || stored.Status != database.StatusCompleted {
				t.Errorf("\t%s\tTest %d:\tShould persist the completed record.", failed, testID)
			} else {
				t.Logf("\t%s\tTest %d:\tShould persist the completed record.", success, testID)
			}
		}
	}
}

func Test_InsufficientFunds(t *testing.T) {
	t.Log("Given the need to validate an overdraw settles as a failed record.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen transferring more than the available balance.", testID)
		{
			db, strm, from, to := seed(t, testID, "100", "50")
			engine := transfer.New(db, strm, 0, noopEv)

			tran, err := engine.Transfer(context.Background(), from.ID, to.ID, decimal.RequireFromString("200"), "")
			if !errors.Is(err, database.ErrInsufficientFunds) {
				t.Fatalf("\t%s\tTest %d:\tShould get ErrInsufficientFunds, got %v.", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould get ErrInsufficientFunds.", success, testID)

			stored, err := db.QueryTran(tran.ID)
			if err != nil || stored.Status != database.StatusFailed {
				t.Errorf("\t%s\tTest %d:\tShould persist a failed record.", failed, testID)
			} else {
				t.Logf("\t%s\tTest %d:\tShould persist a failed record.", success, testID)
			}

			if stored.FailureReason == "" {
				t.Errorf("\t%s\tTest %d:\tShould record the failure reason.", failed, testID)
			} else {
				t.Logf("\t%s\tTest %d:\tShould record the failure reason.", success, testID)
			}

			checkBalance(t, testID, db, from.ID, "100")
			checkBalance(t, testID, db, to.ID, "50")

			if strm.Len() != 0 {
				t.Errorf("\t%s\tTest %d:\tShould emit no event for a failed movement.", failed, testID)
			} else {
				t.Logf("\t%s\tTest %d:\tShould emit no event for a failed movement.", success, testID)
			}
		}
	}
}

func Test_OperationTimeout(t *testing.T) {
	t.Log("Given the need to validate a blocked movement times out.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen another caller holds an account lock.", testID)
		{
			db, strm, from, to := seed(t, testID, "100", "50")
			engine := transfer.New(db, strm, 50*time.Millisecond, noopEv)

			release, err := db.LockAccounts(context.Background(), to.ID)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to take the lock: %v", failed, testID, err)
			}
			defer release()

			tran, err := engine.Transfer(context.Background(), from.ID, to.ID, decimal.NewFromInt(10), "")
			if !errors.Is(err, transfer.ErrOperationTimeout) {
				t.Fatalf("\t%s\tTest %d:\tShould get ErrOperationTimeout, got %v.", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould get ErrOperationTimeout.", success, testID)

			stored, err := db.QueryTran(tran.ID)
			if err != nil || stored.Status != database.StatusFailed {
				t.Errorf("\t%s\tTest %d:\tShould persist a failed record.", failed, testID)
			} else {
				t.Logf("\t%s\tTest %d:\tShould persist a failed record.", success, testID)
			}

			checkBalance(t, testID, db, from.ID, "100")
		}
	}
}

func Test_EmitFailureNeverUnwinds(t *testing.T) {
	t.Log("Given the need to validate a failed emit never unwinds the movement.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen the event emitter is down.", testID)
		{
			db, _, from, to := seed(t, testID, "100", "50")
			engine := transfer.New(db, failEmitter{}, 0, noopEv)

			tran, err := engine.Transfer(context.Background(), from.ID, to.ID, decimal.NewFromInt(25), "")
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould complete the transfer: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould complete the transfer.", success, testID)

			if tran.Status != database.StatusCompleted {
				t.Errorf("\t%s\tTest %d:\tShould settle the record completed.", failed, testID)
			} else {
				t.Logf("\t%s\tTest %d:\tShould settle the record completed.", success, testID)
			}

			checkBalance(t, testID, db, from.ID, "75")
			checkBalance(t, testID, db, to.ID, "75")
		}
	}
}

func Test_DepositWithdraw(t *testing.T) {
	t.Log("Given the need to validate one sided movements.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen depositing and withdrawing on one account.", testID)
		{
			db, strm, acc, _ := seed(t, testID, "0", "0")
			engine := transfer.New(db, strm, 0, noopEv)

			dep, err := engine.Deposit(context.Background(), acc.ID, decimal.NewFromInt(100), "payroll")
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to deposit: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould be able to deposit.", success, testID)

			if dep.Type != database.TypeDeposit || dep.FromAccountID != uuid.Nil {
				t.Errorf("\t%s\tTest %d:\tShould record a deposit with no source.", failed, testID)
			} else {
				t.Logf("\t%s\tTest %d:\tShould record a deposit with no source.", success, testID)
			}

			if _, err := engine.Withdraw(context.Background(), acc.ID, decimal.NewFromInt(30), ""); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to withdraw: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould be able to withdraw.", success, testID)

			checkBalance(t, testID, db, acc.ID, "70")

			if _, err := engine.Withdraw(context.Background(), acc.ID, decimal.NewFromInt(100), ""); err == nil {
				t.Errorf("\t%s\tTest %d:\tShould reject an overdraw.", failed, testID)
			} else {
				t.Logf("\t%s\tTest %d:\tShould reject an overdraw.", success, testID)
			}
		}

		testID = 1
		t.Logf("\tTest %d:\tWhen the account is frozen.", testID)
		{
			db, strm, acc, _ := seed(t, testID, "100", "0")
			engine := transfer.New(db, strm, 0, noopEv)

			frozen, _ := db.QueryAccount(acc.ID)
			frozen.Status = database.AccountFrozen
			if err := db.UpdateAccount(frozen); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to freeze the account: %v", failed, testID, err)
			}

			if _, err := engine.Withdraw(context.Background(), acc.ID, decimal.NewFromInt(10), ""); !errors.Is(err, database.ErrInvalidAccountState) {
				t.Errorf("\t%s\tTest %d:\tShould get ErrInvalidAccountState, got %v.", failed, testID, err)
			} else {
				t.Logf("\t%s\tTest %d:\tShould get ErrInvalidAccountState.", success, testID)
			}
		}
	}
}

func Test_Conservation(t *testing.T) {
	t.Log("Given the need to validate concurrent opposing transfers conserve money.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen hammering two accounts from both sides.", testID)
		{
			db, strm, a, b := seed(t, testID, "1000", "1000")
			engine := transfer.New(db, strm, 0, noopEv)

			const workers = 10
			var wg sync.WaitGroup
			wg.Add(workers * 2)

			for i := 0; i < workers; i++ {
				go func() {
					defer wg.Done()
					engine.Transfer(context.Background(), a.ID, b.ID, decimal.NewFromInt(7), "")
				}()
				go func() {
					defer wg.Done()
					engine.Transfer(context.Background(), b.ID, a.ID, decimal.NewFromInt(3), "")
				}()
			}
			wg.Wait()

			accA, _ := db.QueryAccount(a.ID)
			accB, _ := db.QueryAccount(b.ID)

			total := accA.Balance.Add(accB.Balance)
			if !total.Equal(decimal.NewFromInt(2000)) {
				t.Errorf("\t%s\tTest %d:\tShould conserve the total balance, got %s.", failed, testID, total)
			} else {
				t.Logf("\t%s\tTest %d:\tShould conserve the total balance.", success, testID)
			}

			if accA.Balance.IsNegative() || accB.Balance.IsNegative() {
				t.Errorf("\t%s\tTest %d:\tShould never drive a balance negative.", failed, testID)
			} else {
				t.Logf("\t%s\tTest %d:\tShould never drive a balance negative.", success, testID)
			}
		}
	}
}

// =============================================================================

// seed creates a database with two active accounts holding the specified
// balances.
func seed(t *testing.T, testID int, balA string, balB string) (*database.Database, *stream.Stream, database.Account, database.Account) {
	t.Helper()

	db := database.New()

	a := database.NewAccount("ACC-0001", "USD")
	a.Credit(decimal.RequireFromString(balA))
	if err := db.CreateAccount(a); err != nil {
		t.Fatalf("\t%s\tTest %d:\tShould be able to create account: %v", failed, testID, err)
	}

	b := database.NewAccount("ACC-0002", "USD")
	b.Credit(decimal.RequireFromString(balB))
	if err := db.CreateAccount(b); err != nil {
		t.Fatalf("\t%s\tTest %d:\tShould be able to create account: %v", failed, testID, err)
	}

	return db, stream.New(), a, b
}

// checkBalance asserts both balances of the account match the expected
// value.
func checkBalance(t *testing.T, testID int, db *database.Database, id uuid.UUID, want string) {
	t.Helper()

	account, err := db.QueryAccount(id)
	if err != nil {
		t.Fatalf("\t%s\tTest %d:\tShould be able to query account: %v", failed, testID, err)
	}

	w := decimal.RequireFromString(want)
	if !account.Balance.Equal(w) || !account.AvailableBalance.Equal(w) {
		t.Errorf("\t%s\tTest %d:\tShould have balance %s, got %s/%s.", failed, testID, want, account.Balance, account.AvailableBalance)
	} else {
		t.Logf("\t%s\tTest %d:\tShould have balance %s.", success, testID, want)
	}
}
