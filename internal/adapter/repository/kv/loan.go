package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	loanDomain "cygnus-loan-engine/internal/domain/loan"
)

type LoanRepository struct {
	s  *Store
	tx *txn
}

func NewLoanRepository(s *Store) *LoanRepository { return &LoanRepository{s: s} }

func (r *LoanRepository) write(ctx context.Context, fn func(tx *txn) error) error {
	if r.tx != nil {
		return fn(r.tx)
	}
	return r.s.update(ctx, fn)
}

func (r *LoanRepository) reader() *txn {
	if r.tx != nil {
		return r.tx
	}
	return r.s.view()
}

func (r *LoanRepository) NextLoanID(ctx context.Context) (uint64, error) {
	var id uint64
	err := r.write(ctx, func(tx *txn) error {
		var err error
		id, err = tx.next(loanCounterKey)
		return err
	})
	return id, err
}

func (r *LoanRepository) Create(ctx context.Context, l *loanDomain.Loan) error {
	return r.write(ctx, func(tx *txn) error {
		if _, err := tx.get(loanKey(l.LoanID)); err == nil {
			return fmt.Errorf("kv: loan %d already exists", l.LoanID)
		} else if !errors.Is(err, errKeyNotFound) {
			return err
		}
		return putLoan(tx, l)
	})
}

func (r *LoanRepository) Save(ctx context.Context, l *loanDomain.Loan) error {
	return r.write(ctx, func(tx *txn) error {
		if _, err := tx.get(loanKey(l.LoanID)); err != nil {
			return notFound(err, l.LoanID)
		}
		return putLoan(tx, l)
	})
}

func (r *LoanRepository) GetByLoanID(ctx context.Context, loanID uint64) (*loanDomain.Loan, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	v, err := r.reader().get(loanKey(loanID))
	if err != nil {
		return nil, notFound(err, loanID)
	}
	return decodeLoan(v)
}

// GetByLoanIDForUpdate reads through the current transaction; the store
// mutex already excludes other writers.
func (r *LoanRepository) GetByLoanIDForUpdate(ctx context.Context, loanID uint64) (*loanDomain.Loan, error) {
	return r.GetByLoanID(ctx, loanID)
}

func (r *LoanRepository) ListActive(ctx context.Context) ([]loanDomain.Loan, error) {
	entries, err := r.reader().scan(ctx, loanKeyPrefix)
	if err != nil {
		return nil, err
	}
	var out []loanDomain.Loan
	for _, e := range entries {
		l, err := decodeLoan(e.value)
		if err != nil {
			return nil, err
		}
		if l.Status == loanDomain.StatusActive {
			out = append(out, *l)
		}
	}
	return out, nil
}

func putLoan(tx *txn, l *loanDomain.Loan) error {
	b, err := json.Marshal(l)
	if err != nil {
		return err
	}
	return tx.put(loanKey(l.LoanID), b)
}

func decodeLoan(v []byte) (*loanDomain.Loan, error) {
	var l loanDomain.Loan
	if err := json.Unmarshal(v, &l); err != nil {
		return nil, fmt.Errorf("kv: decode loan: %w", err)
	}
	for i := range l.Schedule {
		l.Schedule[i].LoanID = l.LoanID
	}
	return &l, nil
}

func notFound(err error, loanID uint64) error {
	if errors.Is(err, errKeyNotFound) {
		return fmt.Errorf("%w: %d", loanDomain.ErrLoanNotFound, loanID)
	}
	return err
}
