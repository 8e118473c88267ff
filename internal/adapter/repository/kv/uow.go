package kv

import (
	"context"

	"cygnus-loan-engine/internal/domain/loan"
	"cygnus-loan-engine/internal/domain/uow"
)

type UoW struct{ s *Store }

func NewUoW(s *Store) *UoW { return &UoW{s: s} }

func repos(s *Store, tx *txn) uow.Repos {
	return uow.Repos{
		Loans:  &LoanRepository{s: s, tx: tx},
		Assets: &AssetLedger{s: s, tx: tx},
	}
}

func (u *UoW) WithinTx(ctx context.Context, fn func(r uow.Repos) error) error {
	return u.s.update(ctx, func(tx *txn) error {
		return fn(repos(u.s, tx))
	})
}

func (u *UoW) WithinLoanTx(ctx context.Context, loanID uint64, fn func(r uow.Repos, l *loan.Loan) error) error {
	return u.s.update(ctx, func(tx *txn) error {
		r := repos(u.s, tx)
		l, err := r.Loans.GetByLoanIDForUpdate(ctx, loanID)
		if err != nil {
			return err
		}
		return fn(r, l)
	})
}
