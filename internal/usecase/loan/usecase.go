package loan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"cygnus-loan-engine/internal/domain/asset"
	"cygnus-loan-engine/internal/domain/authz"
	"cygnus-loan-engine/internal/domain/event"
	"cygnus-loan-engine/internal/domain/loan"
	"cygnus-loan-engine/internal/domain/uow"
	"cygnus-loan-engine/pkg/clock"

	"github.com/shopspring/decimal"
)

const DefaultCustodyAccount = "loan-engine-custody"

// Metrics is satisfied by metrics.Loans.
type Metrics interface {
	ObserveOp(op, outcome string, d time.Duration)
	SetOverdue(n int)
}

type nopMetrics struct{}

func (nopMetrics) ObserveOp(string, string, time.Duration) {}
func (nopMetrics) SetOverdue(int)                          {}

type Usecase struct {
	loans   loan.Repository
	assets  asset.Gateway
	uow     uow.UnitOfWork
	auth    authz.Authorizer
	clock   clock.Clock
	pub     event.Publisher
	metrics Metrics
	log     *slog.Logger
	custody string
	policy  loan.ResidualPolicy
}

type Option func(*Usecase)

func WithPublisher(p event.Publisher) Option { return func(u *Usecase) { u.pub = p } }
func WithMetrics(m Metrics) Option          { return func(u *Usecase) { u.metrics = m } }
func WithLogger(l *slog.Logger) Option      { return func(u *Usecase) { u.log = l } }

// WithCustodyAccount names the account that holds collateral while loans are active.
func WithCustodyAccount(acct string) Option { return func(u *Usecase) { u.custody = acct } }

func WithResidualPolicy(p loan.ResidualPolicy) Option {
	return func(u *Usecase) { u.policy = p }
}

// NewUsecase wires the engine. loans and assets serve the read paths;
// every write goes through tx.
func NewUsecase(loans loan.Repository, assets asset.Gateway, tx uow.UnitOfWork, auth authz.Authorizer, clk clock.Clock, opts ...Option) *Usecase {
	u := &Usecase{
		loans:   loans,
		assets:  assets,
		uow:     tx,
		auth:    auth,
		clock:   clk,
		pub:     event.Nop{},
		metrics: nopMetrics{},
		log:     slog.Default(),
		custody: DefaultCustodyAccount,
		policy:  loan.ResidualWaive,
	}
	for _, o := range opts {
		o(u)
	}
	return u
}

func (u *Usecase) Create(ctx context.Context, in CreateLoanInput) (*CreateLoanResult, error) {
	start := time.Now()
	res, err := u.create(ctx, in)
	u.observe("create_loan", start, err)
	return res, err
}

func (u *Usecase) create(ctx context.Context, in CreateLoanInput) (*CreateLoanResult, error) {
	if !u.auth.Authorized(ctx, in.Lender, authz.OpCreateLoan) {
		return nil, fmt.Errorf("%w: lender %q did not authorize", loan.ErrUnauthorized, in.Lender)
	}
	if !u.auth.Authorized(ctx, in.Borrower, authz.OpCreateLoan) {
		return nil, fmt.Errorf("%w: borrower %q did not authorize", loan.ErrUnauthorized, in.Borrower)
	}
	if in.Lender == in.Borrower {
		return nil, fmt.Errorf("%w: lender and borrower must differ", loan.ErrInvalidTerms)
	}
	for _, party := range []string{in.Lender, in.Borrower} {
		if party == u.custody || party == asset.ExternalAccount {
			return nil, fmt.Errorf("%w: %q is a reserved account", loan.ErrInvalidTerms, party)
		}
	}

	terms := in.terms()
	now := u.clock.Now()
	schedule, err := loan.BuildSchedule(terms, now, u.policy)
	if err != nil {
		return nil, err
	}

	var l *loan.Loan
	err = u.uow.WithinTx(ctx, func(r uow.Repos) error {
		loanID, err := r.Loans.NextLoanID(ctx)
		if err != nil {
			return err
		}
		l = &loan.Loan{
			LoanID:           loanID,
			Lender:           in.Lender,
			Borrower:         in.Borrower,
			Principal:        terms.Principal,
			InterestRateBps:  terms.InterestRateBps,
			DurationSecs:     terms.DurationSecs,
			CollateralAmount: terms.CollateralAmount,
			CollateralAsset:  terms.CollateralAsset,
			PrincipalAsset:   terms.PrincipalAsset,
			ResidualPolicy:   u.policy,
			Schedule:         schedule,
			Status:           loan.StatusActive,
			TotalRepaid:      decimal.Zero,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		for i := range l.Schedule {
			l.Schedule[i].LoanID = loanID
		}

		if _, err := r.Assets.Transfer(ctx, asset.TransferInput{
			Asset:  l.CollateralAsset,
			From:   l.Borrower,
			To:     u.custody,
			Amount: l.CollateralAmount,
			LoanID: asset.LoanRef(loanID),
			Kind:   asset.KindCollateralLock,
			At:     now,
		}); err != nil {
			return err
		}
		if _, err := r.Assets.Transfer(ctx, asset.TransferInput{
			Asset:  l.PrincipalAsset,
			From:   l.Lender,
			To:     l.Borrower,
			Amount: l.Principal,
			LoanID: asset.LoanRef(loanID),
			Kind:   asset.KindDisbursement,
			At:     now,
		}); err != nil {
			return err
		}
		return r.Loans.Create(ctx, l)
	})
	if err != nil {
		return nil, err
	}

	u.log.InfoContext(ctx, "loan created",
		"loan_id", l.LoanID, "lender", l.Lender, "borrower", l.Borrower,
		"principal", l.Principal.String(), "installments", len(l.Schedule))
	u.publish(ctx, event.Event{
		Type: event.TypeLoanCreated, LoanID: l.LoanID, Account: l.Borrower,
		Asset: l.PrincipalAsset, Amount: l.Principal, Status: string(l.Status), At: now,
	})
	return &CreateLoanResult{LoanID: l.LoanID}, nil
}

// Repay matches amount against the first unpaid installment it covers.
// Only that installment's amount moves to the lender; any excess stays
// with the borrower.
func (u *Usecase) Repay(ctx context.Context, in RepayInput) (*StatusResult, error) {
	start := time.Now()
	res, err := u.repay(ctx, in)
	u.observe("make_repayment", start, err)
	return res, err
}

func (u *Usecase) repay(ctx context.Context, in RepayInput) (*StatusResult, error) {
	if !u.auth.Authorized(ctx, in.Borrower, authz.OpMakeRepayment) {
		return nil, fmt.Errorf("%w: borrower %q did not authorize", loan.ErrUnauthorized, in.Borrower)
	}
	if !in.Amount.IsPositive() || !in.Amount.IsInteger() {
		return nil, fmt.Errorf("%w: amount must be a positive integer", loan.ErrInvalidRepayment)
	}

	now := u.clock.Now()
	var (
		status   loan.Status
		paid     loan.Installment
		repaidOf *loan.Loan
	)
	err := u.uow.WithinLoanTx(ctx, in.LoanID, func(r uow.Repos, l *loan.Loan) error {
		if l.Status != loan.StatusActive {
			return fmt.Errorf("%w: loan %d is %s", loan.ErrLoanNotActive, l.LoanID, l.Status)
		}
		if l.Borrower != in.Borrower {
			return fmt.Errorf("%w: %q is not the borrower of loan %d", loan.ErrUnauthorized, in.Borrower, l.LoanID)
		}
		idx, err := l.MatchInstallment(in.Amount)
		if err != nil {
			return err
		}
		if err := l.MarkPaid(idx, now); err != nil {
			return err
		}
		paid = l.Schedule[idx]

		if _, err := r.Assets.Transfer(ctx, asset.TransferInput{
			Asset:  l.PrincipalAsset,
			From:   l.Borrower,
			To:     l.Lender,
			Amount: paid.Amount,
			LoanID: asset.LoanRef(l.LoanID),
			Kind:   asset.KindRepayment,
			At:     now,
		}); err != nil {
			return err
		}

		if l.FullyRepaid() {
			l.Status = loan.StatusRepaid
			if _, err := r.Assets.Transfer(ctx, asset.TransferInput{
				Asset:  l.CollateralAsset,
				From:   u.custody,
				To:     l.Borrower,
				Amount: l.CollateralAmount,
				LoanID: asset.LoanRef(l.LoanID),
				Kind:   asset.KindCollateralRelease,
				At:     now,
			}); err != nil {
				return err
			}
			repaidOf = l
		}
		l.UpdatedAt = now
		if err := r.Loans.Save(ctx, l); err != nil {
			return err
		}
		status = l.Status
		return nil
	})
	if err != nil {
		return nil, err
	}

	u.log.InfoContext(ctx, "repayment applied",
		"loan_id", in.LoanID, "seq", paid.Seq, "amount", paid.Amount.String(),
		"submitted", in.Amount.String(), "status", status)
	u.publish(ctx, event.Event{
		Type: event.TypeLoanRepayment, LoanID: in.LoanID, Account: in.Borrower,
		Amount: paid.Amount, Status: string(status), At: now,
	})
	if repaidOf != nil {
		u.publish(ctx, event.Event{
			Type: event.TypeLoanRepaid, LoanID: in.LoanID, Account: in.Borrower,
			Asset: repaidOf.CollateralAsset, Amount: repaidOf.CollateralAmount,
			Status: string(status), At: now,
		})
	}
	return &StatusResult{LoanID: in.LoanID, Status: status}, nil
}

// Liquidate hands the full collateral to the lender once an installment
// is overdue. It never runs on its own; the lender has to ask.
func (u *Usecase) Liquidate(ctx context.Context, in LiquidateInput) (*StatusResult, error) {
	start := time.Now()
	res, err := u.liquidate(ctx, in)
	u.observe("liquidate_collateral", start, err)
	return res, err
}

func (u *Usecase) liquidate(ctx context.Context, in LiquidateInput) (*StatusResult, error) {
	if !u.auth.Authorized(ctx, in.Lender, authz.OpLiquidate) {
		return nil, fmt.Errorf("%w: lender %q did not authorize", loan.ErrUnauthorized, in.Lender)
	}

	now := u.clock.Now()
	var liquidated loan.Loan
	err := u.uow.WithinLoanTx(ctx, in.LoanID, func(r uow.Repos, l *loan.Loan) error {
		if l.Lender != in.Lender {
			return fmt.Errorf("%w: %q is not the lender of loan %d", loan.ErrUnauthorized, in.Lender, l.LoanID)
		}
		if l.Status != loan.StatusActive {
			return fmt.Errorf("%w: loan %d is %s", loan.ErrLoanNotActive, l.LoanID, l.Status)
		}
		if !l.IsOverdue(now) {
			return fmt.Errorf("%w: loan %d at %s", loan.ErrNoDefault, l.LoanID, now.Format(time.RFC3339))
		}
		if _, err := r.Assets.Transfer(ctx, asset.TransferInput{
			Asset:  l.CollateralAsset,
			From:   u.custody,
			To:     l.Lender,
			Amount: l.CollateralAmount,
			LoanID: asset.LoanRef(l.LoanID),
			Kind:   asset.KindLiquidation,
			At:     now,
		}); err != nil {
			return err
		}
		l.Status = loan.StatusLiquidated
		l.UpdatedAt = now
		if err := r.Loans.Save(ctx, l); err != nil {
			return err
		}
		liquidated = *l
		return nil
	})
	if err != nil {
		return nil, err
	}

	u.log.WarnContext(ctx, "loan liquidated",
		"loan_id", liquidated.LoanID, "lender", liquidated.Lender,
		"collateral", liquidated.CollateralAmount.String(), "asset", liquidated.CollateralAsset)
	u.publish(ctx, event.Event{
		Type: event.TypeLoanLiquidated, LoanID: liquidated.LoanID, Account: liquidated.Lender,
		Asset: liquidated.CollateralAsset, Amount: liquidated.CollateralAmount,
		Status: string(liquidated.Status), At: now,
	})
	return &StatusResult{LoanID: liquidated.LoanID, Status: liquidated.Status}, nil
}

func (u *Usecase) Get(ctx context.Context, loanID uint64) (*LoanDTO, error) {
	l, err := u.loans.GetByLoanID(ctx, loanID)
	if err != nil {
		return nil, err
	}
	return toDTO(l, u.clock.Now()), nil
}

// Status reports defaulted for an active loan with an overdue installment.
func (u *Usecase) Status(ctx context.Context, loanID uint64) (loan.Status, error) {
	l, err := u.loans.GetByLoanID(ctx, loanID)
	if err != nil {
		return "", err
	}
	return l.EffectiveStatus(u.clock.Now()), nil
}

func (u *Usecase) IsOverdue(ctx context.Context, loanID uint64) (bool, error) {
	l, err := u.loans.GetByLoanID(ctx, loanID)
	if err != nil {
		return false, err
	}
	return l.IsOverdue(u.clock.Now()), nil
}

func (u *Usecase) Transfers(ctx context.Context, loanID uint64) ([]asset.Transfer, error) {
	if _, err := u.loans.GetByLoanID(ctx, loanID); err != nil {
		return nil, err
	}
	return u.assets.TransfersByLoan(ctx, loanID)
}

// ScanOverdue lists active loans with an overdue installment. It only
// reports; liquidation stays with the lender.
func (u *Usecase) ScanOverdue(ctx context.Context) ([]OverdueReport, error) {
	start := time.Now()
	active, err := u.loans.ListActive(ctx)
	if err != nil {
		u.observe("scan_overdue", start, err)
		return nil, err
	}
	now := u.clock.Now()
	var out []OverdueReport
	for i := range active {
		l := &active[i]
		idx := l.FirstOverdue(now)
		if idx < 0 {
			continue
		}
		p := l.Schedule[idx]
		out = append(out, OverdueReport{
			LoanID: l.LoanID, Lender: l.Lender, Borrower: l.Borrower,
			Seq: p.Seq, DueDate: p.DueDate, Amount: p.Amount,
		})
		u.log.WarnContext(ctx, "loan overdue",
			"loan_id", l.LoanID, "seq", p.Seq, "due_date", p.DueDate, "amount", p.Amount.String())
	}
	u.metrics.SetOverdue(len(out))
	u.observe("scan_overdue", start, nil)
	return out, nil
}

func (u *Usecase) publish(ctx context.Context, e event.Event) {
	if err := u.pub.Publish(ctx, e); err != nil {
		u.log.ErrorContext(ctx, "publish event", "type", e.Type, "loan_id", e.LoanID, "err", err)
	}
}

func (u *Usecase) observe(op string, start time.Time, err error) {
	u.metrics.ObserveOp(op, Outcome(err), time.Since(start))
	if err != nil {
		u.log.Debug("loan operation failed", "op", op, "err", err)
	}
}

// Outcome is the metrics label for an operation result.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, loan.ErrInvalidTerms):
		return "invalid_terms"
	case errors.Is(err, loan.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, loan.ErrLoanNotFound):
		return "not_found"
	case errors.Is(err, loan.ErrLoanNotActive):
		return "not_active"
	case errors.Is(err, loan.ErrInvalidRepayment):
		return "invalid_repayment"
	case errors.Is(err, loan.ErrNoDefault):
		return "no_default"
	case errors.Is(err, asset.ErrTransferFailed):
		return "transfer_failed"
	default:
		return "error"
	}
}
