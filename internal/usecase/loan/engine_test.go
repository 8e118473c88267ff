package loan

import (
	"context"
	"errors"
	"testing"
	"time"

	"cygnus-loan-engine/internal/adapter/repository/kv"
	"cygnus-loan-engine/internal/adapter/repository/mysql"
	"cygnus-loan-engine/internal/domain/asset"
	"cygnus-loan-engine/internal/domain/authz"
	domain "cygnus-loan-engine/internal/domain/loan"
	"cygnus-loan-engine/internal/domain/uow"
	infradb "cygnus-loan-engine/internal/infrastructure/db"
	"cygnus-loan-engine/internal/testutil/sqlitedb"
	"cygnus-loan-engine/pkg/clock"

	"github.com/shopspring/decimal"
)

const (
	lender   = "lender-1"
	borrower = "borrower-1"
	custody  = "custody"
	tkn      = "TKN"
)

var start = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

type env struct {
	uc     *Usecase
	ledger asset.Gateway
	clk    *clock.Manual
	ctx    context.Context
}

func d(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

// forEachBackend runs fn against the gorm (sqlite) and LevelDB stores.
func forEachBackend(t *testing.T, fn func(t *testing.T, e *env), opts ...Option) {
	t.Run("gorm", func(t *testing.T) {
		db := sqlitedb.Open(t)
		fn(t, newEnv(t, mysql.NewLoanRepository(db), mysql.NewAssetLedger(db), mysql.NewGormUoW(db), opts))
	})
	t.Run("leveldb", func(t *testing.T) {
		ldb, err := infradb.OpenMemLevelDB()
		if err != nil {
			t.Fatalf("leveldb: %v", err)
		}
		s := kv.NewStore(ldb)
		t.Cleanup(func() { _ = s.Close() })
		fn(t, newEnv(t, kv.NewLoanRepository(s), kv.NewAssetLedger(s), kv.NewUoW(s), opts))
	})
}

func newEnv(t *testing.T, loans domain.Repository, ledger asset.Gateway, tx uow.UnitOfWork, opts []Option) *env {
	t.Helper()
	clk := clock.NewManual(start)
	grants := authz.Grants{}
	grants.Add(lender, authz.OpCreateLoan, authz.OpLiquidate)
	grants.Add(borrower, authz.OpCreateLoan, authz.OpMakeRepayment)
	ctx := authz.WithGrants(context.Background(), grants)

	opts = append([]Option{WithCustodyAccount(custody)}, opts...)
	uc := NewUsecase(loans, ledger, tx, authz.ContextAuthorizer{}, clk, opts...)

	// borrower: collateral plus room for interest on top of the disbursed principal
	for acct, amt := range map[string]int64{lender: 100_000, borrower: 160_000} {
		if _, err := ledger.Deposit(ctx, tkn, acct, d(amt), start); err != nil {
			t.Fatalf("fund %s: %v", acct, err)
		}
	}
	return &env{uc: uc, ledger: ledger, clk: clk, ctx: ctx}
}

func exampleInput() CreateLoanInput {
	return CreateLoanInput{
		Lender:           lender,
		Borrower:         borrower,
		Principal:        d(100_000),
		InterestRateBps:  500,
		DurationSecs:     90 * 86400,
		CollateralAmount: d(150_000),
		CollateralAsset:  tkn,
		Installments:     3,
	}
}

func (e *env) balance(t *testing.T, acct string) decimal.Decimal {
	t.Helper()
	b, err := e.ledger.Balance(e.ctx, tkn, acct)
	if err != nil {
		t.Fatalf("Balance(%s): %v", acct, err)
	}
	return b
}

func (e *env) mustCreate(t *testing.T, in CreateLoanInput) uint64 {
	t.Helper()
	res, err := e.uc.Create(e.ctx, in)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return res.LoanID
}

func TestEngine_ThreeRepaymentsCompleteTheLoan(t *testing.T) {
	forEachBackend(t, func(t *testing.T, e *env) {
		id := e.mustCreate(t, exampleInput())
		if id != 0 {
			t.Fatalf("first loan id = %d, want 0", id)
		}
		if !e.balance(t, custody).Equal(d(150_000)) || !e.balance(t, lender).IsZero() {
			t.Fatalf("after create: custody=%s lender=%s", e.balance(t, custody), e.balance(t, lender))
		}

		want := []domain.Status{domain.StatusActive, domain.StatusActive, domain.StatusRepaid}
		for i, ws := range want {
			e.clk.Advance(24 * time.Hour)
			res, err := e.uc.Repay(e.ctx, RepayInput{LoanID: id, Borrower: borrower, Amount: d(35_000)})
			if err != nil {
				t.Fatalf("repayment %d: %v", i, err)
			}
			if res.Status != ws {
				t.Fatalf("repayment %d status = %s, want %s", i, res.Status, ws)
			}
			if i < 2 && !e.balance(t, custody).Equal(d(150_000)) {
				t.Fatalf("collateral released early at repayment %d", i)
			}
		}

		if !e.balance(t, lender).Equal(d(105_000)) {
			t.Fatalf("lender received %s, want 105000", e.balance(t, lender))
		}
		if !e.balance(t, custody).IsZero() {
			t.Fatalf("custody still holds %s", e.balance(t, custody))
		}
		// 160000 deposited + 100000 principal - 105000 repaid
		if !e.balance(t, borrower).Equal(d(155_000)) {
			t.Fatalf("borrower balance = %s", e.balance(t, borrower))
		}

		dto, err := e.uc.Get(e.ctx, id)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if dto.Status != domain.StatusRepaid || !dto.TotalRepaid.Equal(d(105_000)) || !dto.Outstanding.IsZero() {
			t.Fatalf("dto = %+v", dto)
		}
		for _, p := range dto.Schedule {
			if !p.Paid || p.PaidAt == nil {
				t.Fatalf("installment %d not marked paid", p.Seq)
			}
		}

		journal, err := e.uc.Transfers(e.ctx, id)
		if err != nil {
			t.Fatalf("Transfers: %v", err)
		}
		kinds := []asset.Kind{
			asset.KindCollateralLock, asset.KindDisbursement,
			asset.KindRepayment, asset.KindRepayment, asset.KindRepayment,
			asset.KindCollateralRelease,
		}
		if len(journal) != len(kinds) {
			t.Fatalf("journal len = %d, want %d", len(journal), len(kinds))
		}
		for i, k := range kinds {
			if journal[i].Kind != k {
				t.Fatalf("journal[%d] = %s, want %s", i, journal[i].Kind, k)
			}
		}
	})
}

func TestEngine_ZeroInstallmentsLeavesCounter(t *testing.T) {
	forEachBackend(t, func(t *testing.T, e *env) {
		in := exampleInput()
		in.Installments = 0
		if _, err := e.uc.Create(e.ctx, in); !errors.Is(err, domain.ErrInvalidTerms) {
			t.Fatalf("err = %v, want ErrInvalidTerms", err)
		}
		if id := e.mustCreate(t, exampleInput()); id != 0 {
			t.Fatalf("counter moved: next id = %d", id)
		}
	})
}

func TestEngine_CreateRejectsSelfLoan(t *testing.T) {
	forEachBackend(t, func(t *testing.T, e *env) {
		in := exampleInput()
		in.Lender = borrower
		if _, err := e.uc.Create(e.ctx, in); !errors.Is(err, domain.ErrInvalidTerms) {
			t.Fatalf("err = %v, want ErrInvalidTerms", err)
		}
	})
}

func TestEngine_UpdatedAtFollowsEngineClock(t *testing.T) {
	forEachBackend(t, func(t *testing.T, e *env) {
		id := e.mustCreate(t, exampleInput())
		got, err := e.uc.Get(e.ctx, id)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if !got.CreatedAt.Equal(start) || !got.UpdatedAt.Equal(start) {
			t.Fatalf("after create: created=%v updated=%v", got.CreatedAt, got.UpdatedAt)
		}

		e.clk.Advance(36 * time.Hour)
		if _, err := e.uc.Repay(e.ctx, RepayInput{LoanID: id, Borrower: borrower, Amount: d(35_000)}); err != nil {
			t.Fatalf("Repay: %v", err)
		}
		if got, err = e.uc.Get(e.ctx, id); err != nil {
			t.Fatalf("Get: %v", err)
		}
		if !got.CreatedAt.Equal(start) || !got.UpdatedAt.Equal(e.clk.Now()) {
			t.Fatalf("after repay: created=%v updated=%v, want updated %v", got.CreatedAt, got.UpdatedAt, e.clk.Now())
		}
	})
}

func TestEngine_CreateRejectsReservedParties(t *testing.T) {
	forEachBackend(t, func(t *testing.T, e *env) {
		id := e.mustCreate(t, exampleInput())

		// custody now holds loan 0's collateral; a loan funded from it must not exist
		grants := authz.Grants{}
		for _, acct := range []string{lender, borrower, custody, asset.ExternalAccount} {
			grants.Add(acct, authz.OpCreateLoan)
		}
		ctx := authz.WithGrants(context.Background(), grants)

		cases := map[string]func(*CreateLoanInput){
			"custody lender":    func(in *CreateLoanInput) { in.Lender = custody },
			"custody borrower":  func(in *CreateLoanInput) { in.Borrower = custody },
			"external lender":   func(in *CreateLoanInput) { in.Lender = asset.ExternalAccount },
			"external borrower": func(in *CreateLoanInput) { in.Borrower = asset.ExternalAccount },
		}
		for name, mut := range cases {
			in := exampleInput()
			mut(&in)
			if _, err := e.uc.Create(ctx, in); !errors.Is(err, domain.ErrInvalidTerms) {
				t.Fatalf("%s: err = %v, want ErrInvalidTerms", name, err)
			}
		}
		if !e.balance(t, custody).Equal(d(150_000)) {
			t.Fatalf("custody balance = %s, want 150000", e.balance(t, custody))
		}
		if _, err := e.uc.Get(e.ctx, id+1); !errors.Is(err, domain.ErrLoanNotFound) {
			t.Fatalf("rejected create persisted a loan: %v", err)
		}
	})
}

func TestEngine_FailedDisbursementRollsBackEverything(t *testing.T) {
	forEachBackend(t, func(t *testing.T, e *env) {
		in := exampleInput()
		in.Principal = d(100_001) // lender only has 100000
		if _, err := e.uc.Create(e.ctx, in); !errors.Is(err, asset.ErrTransferFailed) {
			t.Fatalf("err = %v, want ErrTransferFailed", err)
		}
		if !e.balance(t, borrower).Equal(d(160_000)) || !e.balance(t, custody).IsZero() {
			t.Fatalf("collateral lock not undone: borrower=%s custody=%s", e.balance(t, borrower), e.balance(t, custody))
		}
		if _, err := e.uc.Get(e.ctx, 0); !errors.Is(err, domain.ErrLoanNotFound) {
			t.Fatalf("loan persisted after failure: %v", err)
		}
		if id := e.mustCreate(t, exampleInput()); id != 0 {
			t.Fatalf("identifier consumed by failed create: %d", id)
		}
	})
}

func TestEngine_RepaymentBelowEveryInstallment(t *testing.T) {
	forEachBackend(t, func(t *testing.T, e *env) {
		id := e.mustCreate(t, exampleInput())
		before := e.balance(t, borrower)

		_, err := e.uc.Repay(e.ctx, RepayInput{LoanID: id, Borrower: borrower, Amount: d(34_999)})
		if !errors.Is(err, domain.ErrInvalidRepayment) {
			t.Fatalf("err = %v, want ErrInvalidRepayment", err)
		}
		dto, _ := e.uc.Get(e.ctx, id)
		if !dto.TotalRepaid.IsZero() {
			t.Fatalf("total_repaid = %s", dto.TotalRepaid)
		}
		for _, p := range dto.Schedule {
			if p.Paid {
				t.Fatalf("installment %d flipped", p.Seq)
			}
		}
		if !e.balance(t, borrower).Equal(before) {
			t.Fatalf("borrower balance moved")
		}

		for _, bad := range []decimal.Decimal{decimal.Zero, d(-1), decimal.RequireFromString("35000.5")} {
			if _, err := e.uc.Repay(e.ctx, RepayInput{LoanID: id, Borrower: borrower, Amount: bad}); !errors.Is(err, domain.ErrInvalidRepayment) {
				t.Fatalf("amount %s: err = %v", bad, err)
			}
		}
	})
}

func TestEngine_ExcessIsNotTransferred(t *testing.T) {
	forEachBackend(t, func(t *testing.T, e *env) {
		id := e.mustCreate(t, exampleInput())
		if _, err := e.uc.Repay(e.ctx, RepayInput{LoanID: id, Borrower: borrower, Amount: d(50_000)}); err != nil {
			t.Fatalf("Repay: %v", err)
		}
		if !e.balance(t, lender).Equal(d(35_000)) {
			t.Fatalf("lender received %s, want 35000", e.balance(t, lender))
		}
		dto, _ := e.uc.Get(e.ctx, id)
		if !dto.TotalRepaid.Equal(d(35_000)) || !dto.Schedule[0].Paid || dto.Schedule[1].Paid {
			t.Fatalf("unexpected state: %+v", dto)
		}
	})
}

func TestEngine_LiquidationNeedsAnOverdueInstallment(t *testing.T) {
	forEachBackend(t, func(t *testing.T, e *env) {
		in := exampleInput()
		in.DurationSecs = 86400
		in.Installments = 1
		id := e.mustCreate(t, in)

		if _, err := e.uc.Liquidate(e.ctx, LiquidateInput{LoanID: id, Lender: lender}); !errors.Is(err, domain.ErrNoDefault) {
			t.Fatalf("early liquidation err = %v, want ErrNoDefault", err)
		}
		// exactly at the due date is not yet overdue
		e.clk.Advance(86400 * time.Second)
		if over, _ := e.uc.IsOverdue(e.ctx, id); over {
			t.Fatal("overdue at the due date itself")
		}

		e.clk.Advance(time.Second)
		over, err := e.uc.IsOverdue(e.ctx, id)
		if err != nil || !over {
			t.Fatalf("IsOverdue = %v, %v", over, err)
		}
		if st, _ := e.uc.Status(e.ctx, id); st != domain.StatusDefaulted {
			t.Fatalf("derived status = %s, want defaulted", st)
		}
		dto, _ := e.uc.Get(e.ctx, id)
		if dto.Status != domain.StatusActive || dto.EffectiveStatus != domain.StatusDefaulted {
			t.Fatalf("stored=%s effective=%s", dto.Status, dto.EffectiveStatus)
		}

		res, err := e.uc.Liquidate(e.ctx, LiquidateInput{LoanID: id, Lender: lender})
		if err != nil {
			t.Fatalf("Liquidate: %v", err)
		}
		if res.Status != domain.StatusLiquidated {
			t.Fatalf("status = %s", res.Status)
		}
		// principal went out at creation, collateral came back in
		if !e.balance(t, lender).Equal(d(150_000)) || !e.balance(t, custody).IsZero() {
			t.Fatalf("lender=%s custody=%s", e.balance(t, lender), e.balance(t, custody))
		}
		if st, _ := e.uc.Status(e.ctx, id); st != domain.StatusLiquidated {
			t.Fatalf("status after liquidation = %s", st)
		}
		if over, _ := e.uc.IsOverdue(e.ctx, id); over {
			t.Fatal("liquidated loan reported overdue")
		}
	})
}

func TestEngine_TerminalLoansRejectFurtherCalls(t *testing.T) {
	forEachBackend(t, func(t *testing.T, e *env) {
		repaidIn := exampleInput()
		repaidIn.Installments = 1
		repaidIn.CollateralAmount = d(50_000)
		repaid := e.mustCreate(t, repaidIn)
		if res, err := e.uc.Repay(e.ctx, RepayInput{LoanID: repaid, Borrower: borrower, Amount: d(105_000)}); err != nil || res.Status != domain.StatusRepaid {
			t.Fatalf("Repay: %+v, %v", res, err)
		}

		// the lender now holds the repayment and can fund a second loan
		liqIn := exampleInput()
		liqIn.Installments = 1
		liqIn.DurationSecs = 60
		liq := e.mustCreate(t, liqIn)
		e.clk.Advance(2 * time.Minute)
		if _, err := e.uc.Liquidate(e.ctx, LiquidateInput{LoanID: liq, Lender: lender}); err != nil {
			t.Fatalf("Liquidate: %v", err)
		}

		for _, id := range []uint64{repaid, liq} {
			if _, err := e.uc.Repay(e.ctx, RepayInput{LoanID: id, Borrower: borrower, Amount: d(105_000)}); !errors.Is(err, domain.ErrLoanNotActive) {
				t.Fatalf("loan %d repay err = %v", id, err)
			}
			if _, err := e.uc.Liquidate(e.ctx, LiquidateInput{LoanID: id, Lender: lender}); !errors.Is(err, domain.ErrLoanNotActive) {
				t.Fatalf("loan %d liquidate err = %v", id, err)
			}
		}
	})
}

func TestEngine_Authorization(t *testing.T) {
	forEachBackend(t, func(t *testing.T, e *env) {
		id := e.mustCreate(t, exampleInput())

		// no grants at all
		bare := context.Background()
		if _, err := e.uc.Create(bare, exampleInput()); !errors.Is(err, domain.ErrUnauthorized) {
			t.Fatalf("create without grants: %v", err)
		}
		if _, err := e.uc.Repay(bare, RepayInput{LoanID: id, Borrower: borrower, Amount: d(35_000)}); !errors.Is(err, domain.ErrUnauthorized) {
			t.Fatalf("repay without grants: %v", err)
		}

		// signed, but not the stored party
		g := authz.Grants{}
		g.Add("mallory", authz.OpMakeRepayment, authz.OpLiquidate)
		ctx := authz.WithGrants(context.Background(), g)
		if _, err := e.uc.Repay(ctx, RepayInput{LoanID: id, Borrower: "mallory", Amount: d(35_000)}); !errors.Is(err, domain.ErrUnauthorized) {
			t.Fatalf("repay by stranger: %v", err)
		}
		if _, err := e.uc.Liquidate(ctx, LiquidateInput{LoanID: id, Lender: "mallory"}); !errors.Is(err, domain.ErrUnauthorized) {
			t.Fatalf("liquidate by stranger: %v", err)
		}

		// borrower granted create but never signed liquidation
		if _, err := e.uc.Liquidate(e.ctx, LiquidateInput{LoanID: id, Lender: borrower}); !errors.Is(err, domain.ErrUnauthorized) {
			t.Fatalf("liquidate with wrong op: %v", err)
		}
		if e.balance(t, lender).IsPositive() {
			t.Fatal("state changed by unauthorized calls")
		}
	})
}

func TestEngine_UnknownLoan(t *testing.T) {
	forEachBackend(t, func(t *testing.T, e *env) {
		if _, err := e.uc.Get(e.ctx, 404); !errors.Is(err, domain.ErrLoanNotFound) {
			t.Fatalf("Get: %v", err)
		}
		if _, err := e.uc.Status(e.ctx, 404); !errors.Is(err, domain.ErrLoanNotFound) {
			t.Fatalf("Status: %v", err)
		}
		if _, err := e.uc.IsOverdue(e.ctx, 404); !errors.Is(err, domain.ErrLoanNotFound) {
			t.Fatalf("IsOverdue: %v", err)
		}
		if _, err := e.uc.Transfers(e.ctx, 404); !errors.Is(err, domain.ErrLoanNotFound) {
			t.Fatalf("Transfers: %v", err)
		}
		if _, err := e.uc.Repay(e.ctx, RepayInput{LoanID: 404, Borrower: borrower, Amount: d(1)}); !errors.Is(err, domain.ErrLoanNotFound) {
			t.Fatalf("Repay: %v", err)
		}
		if _, err := e.uc.Liquidate(e.ctx, LiquidateInput{LoanID: 404, Lender: lender}); !errors.Is(err, domain.ErrLoanNotFound) {
			t.Fatalf("Liquidate: %v", err)
		}
	})
}

func TestEngine_ScanOverdueOnlyReports(t *testing.T) {
	forEachBackend(t, func(t *testing.T, e *env) {
		in := exampleInput()
		in.Principal = d(40_000)
		in.CollateralAmount = d(10_000)
		in.DurationSecs = 3600
		in.Installments = 2
		slow := e.mustCreate(t, in)

		in.DurationSecs = 86400
		e.mustCreate(t, in)

		e.clk.Advance(31 * time.Minute)
		reports, err := e.uc.ScanOverdue(e.ctx)
		if err != nil {
			t.Fatalf("ScanOverdue: %v", err)
		}
		if len(reports) != 1 || reports[0].LoanID != slow || reports[0].Seq != 0 {
			t.Fatalf("reports = %+v", reports)
		}
		dto, _ := e.uc.Get(e.ctx, slow)
		if dto.Status != domain.StatusActive {
			t.Fatalf("scan changed stored status to %s", dto.Status)
		}
	})
}

func TestEngine_FinalInstallmentPolicyCollectsResidual(t *testing.T) {
	forEachBackend(t, func(t *testing.T, e *env) {
		in := exampleInput()
		in.Principal = d(100_000)
		in.InterestRateBps = 501 // due 105010, per 35003, residual 1
		id := e.mustCreate(t, in)

		dto, _ := e.uc.Get(e.ctx, id)
		if !dto.Schedule[2].Amount.Equal(d(35_004)) || !dto.ScheduledTotal.Equal(d(105_010)) {
			t.Fatalf("schedule = %+v", dto.Schedule)
		}
		for _, amt := range []int64{35_003, 35_003} {
			if res, err := e.uc.Repay(e.ctx, RepayInput{LoanID: id, Borrower: borrower, Amount: d(amt)}); err != nil || res.Status != domain.StatusActive {
				t.Fatalf("Repay: %+v, %v", res, err)
			}
		}
		// 35003 no longer covers the last installment
		if _, err := e.uc.Repay(e.ctx, RepayInput{LoanID: id, Borrower: borrower, Amount: d(35_003)}); !errors.Is(err, domain.ErrInvalidRepayment) {
			t.Fatalf("err = %v, want ErrInvalidRepayment", err)
		}
		res, err := e.uc.Repay(e.ctx, RepayInput{LoanID: id, Borrower: borrower, Amount: d(35_004)})
		if err != nil || res.Status != domain.StatusRepaid {
			t.Fatalf("final Repay: %+v, %v", res, err)
		}
		if !e.balance(t, lender).Equal(d(105_010)) {
			t.Fatalf("lender = %s", e.balance(t, lender))
		}
	}, WithResidualPolicy(domain.ResidualFinalInstallment))
}
