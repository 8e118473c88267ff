package uow

import (
	"context"

	"cygnus-loan-engine/internal/domain/asset"
	"cygnus-loan-engine/internal/domain/loan"
)

// Repos are bound to one transaction: loan writes and asset transfers made
// through them commit or roll back together.
type Repos struct {
	Loans  loan.Repository
	Assets asset.Gateway
}

type UnitOfWork interface {
	// plain tx
	WithinTx(ctx context.Context, fn func(r Repos) error) error
	// convenience: lock loan first, then pass it in; unknown ids fail with
	// loan.ErrLoanNotFound before fn runs
	WithinLoanTx(ctx context.Context, loanID uint64, fn func(r Repos, l *loan.Loan) error) error
}
