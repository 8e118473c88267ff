package account

import (
	"context"
	"errors"
	"testing"
	"time"

	"cygnus-loan-engine/internal/adapter/repository/mysql"
	"cygnus-loan-engine/internal/domain/asset"
	"cygnus-loan-engine/internal/domain/authz"
	"cygnus-loan-engine/internal/domain/loan"
	"cygnus-loan-engine/internal/testutil/assetmock"
	"cygnus-loan-engine/internal/testutil/sqlitedb"
	"cygnus-loan-engine/pkg/clock"

	"github.com/shopspring/decimal"
)

var at = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func operatorCtx(principal string) context.Context {
	g := authz.Grants{}
	g.Add(principal, authz.OpDeposit)
	return authz.WithGrants(context.Background(), g)
}

func TestDeposit_CreditsAccount(t *testing.T) {
	ledger := mysql.NewAssetLedger(sqlitedb.Open(t))
	uc := NewUsecase(ledger, authz.ContextAuthorizer{}, clock.NewManual(at), "operator", nil)
	ctx := operatorCtx("operator")

	tr, err := uc.Deposit(ctx, DepositInput{Operator: "operator", Account: "alice", Asset: "TKN", Amount: decimal.NewFromInt(500)})
	if err != nil {
		t.Fatalf("Deposit: %v", err)
	}
	if tr.Kind != asset.KindDeposit || tr.From != asset.ExternalAccount || !tr.CreatedAt.Equal(at) || len(tr.TransferID) != 32 {
		t.Fatalf("transfer = %+v", tr)
	}
	if _, err := uc.Deposit(ctx, DepositInput{Operator: "operator", Account: "alice", Asset: "TKN", Amount: decimal.NewFromInt(250)}); err != nil {
		t.Fatalf("second Deposit: %v", err)
	}

	bal, err := uc.Balance(context.Background(), "TKN", "alice")
	if err != nil || !bal.Amount.Equal(decimal.NewFromInt(750)) {
		t.Fatalf("Balance = %+v, %v", bal, err)
	}
	bal, err = uc.Balance(context.Background(), "TKN", "nobody")
	if err != nil || !bal.Amount.IsZero() {
		t.Fatalf("untouched account = %+v, %v", bal, err)
	}
}

func TestDeposit_RequiresOperatorGrant(t *testing.T) {
	assets := &assetmock.Gateway{
		DepositFn: func(context.Context, string, string, decimal.Decimal, time.Time) (*asset.Transfer, error) {
			t.Fatalf("Deposit must not reach the ledger")
			return nil, nil
		},
	}
	uc := NewUsecase(assets, authz.ContextAuthorizer{}, clock.NewManual(at), "operator", nil)
	in := DepositInput{Operator: "operator", Account: "alice", Asset: "TKN", Amount: decimal.NewFromInt(1)}

	cases := map[string]context.Context{
		"no grants":         context.Background(),
		"grant for someone": operatorCtx("alice"),
	}
	for name, ctx := range cases {
		if _, err := uc.Deposit(ctx, in); !errors.Is(err, loan.ErrUnauthorized) {
			t.Fatalf("%s: err = %v", name, err)
		}
	}

	// a granted principal that is not the configured operator
	in.Operator = "alice"
	if _, err := uc.Deposit(operatorCtx("alice"), in); !errors.Is(err, loan.ErrUnauthorized) {
		t.Fatalf("non-operator: err = %v", err)
	}
}

func TestDeposit_RejectsBadInput(t *testing.T) {
	ledger := mysql.NewAssetLedger(sqlitedb.Open(t))
	uc := NewUsecase(ledger, authz.ContextAuthorizer{}, clock.NewManual(at), "operator", nil)
	ctx := operatorCtx("operator")

	for name, in := range map[string]DepositInput{
		"zero":       {Account: "alice", Asset: "TKN", Amount: decimal.Zero},
		"fractional": {Account: "alice", Asset: "TKN", Amount: decimal.RequireFromString("1.5")},
		"no asset":   {Account: "alice", Amount: decimal.NewFromInt(1)},
		"no account": {Asset: "TKN", Amount: decimal.NewFromInt(1)},
		"external":   {Account: asset.ExternalAccount, Asset: "TKN", Amount: decimal.NewFromInt(1)},

		// ids holding the storage key separator would alias other balances
		"slash account": {Account: "TKN/alice", Asset: "TKN", Amount: decimal.NewFromInt(1)},
		"slash asset":   {Account: "alice", Asset: "TKN/alice", Amount: decimal.NewFromInt(1)},
		"spaced":        {Account: "al ice", Asset: "TKN", Amount: decimal.NewFromInt(1)},
	} {
		in.Operator = "operator"
		if _, err := uc.Deposit(ctx, in); !errors.Is(err, asset.ErrInvalidAmount) {
			t.Fatalf("%s: err = %v", name, err)
		}
	}
	if bal, err := uc.Balance(context.Background(), "TKN", "alice"); err != nil || !bal.Amount.IsZero() {
		t.Fatalf("rejected deposits credited alice: %+v, %v", bal, err)
	}
}

func TestBalance_PropagatesStoreError(t *testing.T) {
	boom := errors.New("store down")
	assets := &assetmock.Gateway{
		BalanceFn: func(context.Context, string, string) (decimal.Decimal, error) { return decimal.Zero, boom },
	}
	uc := NewUsecase(assets, authz.ContextAuthorizer{}, clock.NewManual(at), "operator", nil)
	if _, err := uc.Balance(context.Background(), "TKN", "alice"); !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
}
