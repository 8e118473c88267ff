package loan

import "context"

type Repository interface {
	// NextLoanID reads the loan counter, stores counter+1 and returns the
	// read value. Only loan creation calls it, inside its transaction.
	NextLoanID(ctx context.Context) (uint64, error)

	Create(ctx context.Context, l *Loan) error
	// Both getters return ErrLoanNotFound for unknown ids.
	GetByLoanID(ctx context.Context, loanID uint64) (*Loan, error)
	GetByLoanIDForUpdate(ctx context.Context, loanID uint64) (*Loan, error)
	// Save persists status, total_repaid and the paid flags of the schedule.
	Save(ctx context.Context, l *Loan) error

	ListActive(ctx context.Context) ([]Loan, error)
}
