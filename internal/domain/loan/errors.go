package loan

import "errors"

var (
	ErrInvalidTerms     = errors.New("loan: invalid terms")
	ErrUnauthorized     = errors.New("loan: unauthorized")
	ErrLoanNotFound     = errors.New("loan: not found")
	ErrLoanNotActive    = errors.New("loan: not active")
	ErrInvalidRepayment = errors.New("loan: invalid repayment")
	ErrNoDefault        = errors.New("loan: no overdue installment")
)
