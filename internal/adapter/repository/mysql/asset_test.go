package mysql

import (
	"context"
	"errors"
	"testing"

	assetDomain "cygnus-loan-engine/internal/domain/asset"

	"github.com/shopspring/decimal"
)

func TestAssetLedger_DepositAndTransfer(t *testing.T) {
	db := openTestDB(t)
	ledger := NewAssetLedger(db)
	ctx := context.Background()

	if _, err := ledger.Deposit(ctx, "TKN", "alice", decimal.NewFromInt(500), created); err != nil {
		t.Fatalf("Deposit: %v", err)
	}
	tr, err := ledger.Transfer(ctx, assetDomain.TransferInput{
		Asset: "TKN", From: "alice", To: "bob",
		Amount: decimal.NewFromInt(200), LoanID: assetDomain.LoanRef(3),
		Kind: assetDomain.KindDisbursement, At: created,
	})
	if err != nil {
		t.Fatalf("Transfer: %v", err)
	}
	if len(tr.TransferID) != 32 || tr.From != "alice" || tr.To != "bob" {
		t.Fatalf("unexpected journal row: %+v", tr)
	}

	alice, _ := ledger.Balance(ctx, "TKN", "alice")
	bob, _ := ledger.Balance(ctx, "TKN", "bob")
	if !alice.Equal(decimal.NewFromInt(300)) || !bob.Equal(decimal.NewFromInt(200)) {
		t.Fatalf("balances alice=%s bob=%s", alice, bob)
	}
	if other, _ := ledger.Balance(ctx, "OTHER", "alice"); !other.IsZero() {
		t.Fatalf("unknown asset balance = %s", other)
	}

	journal, err := ledger.TransfersByLoan(ctx, 3)
	if err != nil {
		t.Fatalf("TransfersByLoan: %v", err)
	}
	if len(journal) != 1 || journal[0].Kind != assetDomain.KindDisbursement {
		t.Fatalf("journal = %+v", journal)
	}
}

func TestAssetLedger_InsufficientFundsAppliesNothing(t *testing.T) {
	db := openTestDB(t)
	ledger := NewAssetLedger(db)
	ctx := context.Background()

	if _, err := ledger.Deposit(ctx, "TKN", "alice", decimal.NewFromInt(50), created); err != nil {
		t.Fatal(err)
	}
	_, err := ledger.Transfer(ctx, assetDomain.TransferInput{
		Asset: "TKN", From: "alice", To: "bob",
		Amount: decimal.NewFromInt(51), Kind: assetDomain.KindRepayment,
	})
	if !errors.Is(err, assetDomain.ErrTransferFailed) {
		t.Fatalf("err = %v, want ErrTransferFailed", err)
	}
	alice, _ := ledger.Balance(ctx, "TKN", "alice")
	bob, _ := ledger.Balance(ctx, "TKN", "bob")
	if !alice.Equal(decimal.NewFromInt(50)) || !bob.IsZero() {
		t.Fatalf("balances changed: alice=%s bob=%s", alice, bob)
	}
}

func TestAssetLedger_RejectsBadInput(t *testing.T) {
	ledger := NewAssetLedger(openTestDB(t))
	ctx := context.Background()

	if _, err := ledger.Deposit(ctx, "TKN", "alice", decimal.Zero, created); !errors.Is(err, assetDomain.ErrInvalidAmount) {
		t.Fatalf("zero deposit err = %v", err)
	}
	_, err := ledger.Transfer(ctx, assetDomain.TransferInput{
		Asset: "TKN", From: "alice", To: "alice", Amount: decimal.NewFromInt(1),
	})
	if !errors.Is(err, assetDomain.ErrTransferFailed) {
		t.Fatalf("self transfer err = %v", err)
	}
}
