package loan

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// MatchInstallment returns the index of the first unpaid installment whose
// amount does not exceed the submitted amount.
func (l *Loan) MatchInstallment(amount decimal.Decimal) (int, error) {
	if !isPositiveInt(amount) {
		return -1, fmt.Errorf("%w: amount must be a positive integer", ErrInvalidRepayment)
	}
	for i := range l.Schedule {
		p := &l.Schedule[i]
		if !p.Paid && p.Amount.LessThanOrEqual(amount) {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: no unpaid installment matches %s", ErrInvalidRepayment, amount)
}

// MarkPaid flips the paid flag of installment idx and credits its amount.
func (l *Loan) MarkPaid(idx int, at time.Time) error {
	if idx < 0 || idx >= len(l.Schedule) {
		return fmt.Errorf("%w: installment %d out of range", ErrInvalidRepayment, idx)
	}
	p := &l.Schedule[idx]
	if p.Paid {
		return fmt.Errorf("%w: installment %d already paid", ErrInvalidRepayment, idx)
	}
	paidAt := at
	p.Paid = true
	p.PaidAt = &paidAt
	l.TotalRepaid = l.TotalRepaid.Add(p.Amount)
	return nil
}

func (l *Loan) FullyRepaid() bool {
	return l.TotalRepaid.GreaterThanOrEqual(l.ScheduledTotal())
}

// Outstanding is what remains on the schedule.
func (l *Loan) Outstanding() decimal.Decimal {
	rest := l.ScheduledTotal().Sub(l.TotalRepaid)
	if rest.IsNegative() {
		return decimal.Zero
	}
	return rest
}
