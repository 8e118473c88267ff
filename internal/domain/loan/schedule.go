package loan

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var bpsDenominator = decimal.NewFromInt(10_000)

// MaxInstallments bounds the schedule a single loan may allocate.
const MaxInstallments = 1200

// maxDurationSecs keeps due-date offsets inside time.Duration.
const maxDurationSecs = uint64(math.MaxInt64 / int64(time.Second))

// floorDiv is integer division for non-negative integer-valued decimals.
func floorDiv(a, b decimal.Decimal) decimal.Decimal {
	q, _ := a.QuoRem(b, 0)
	return q
}

func isPositiveInt(d decimal.Decimal) bool { return d.IsPositive() && d.IsInteger() }

// ContractualDue is principal + floor(principal * bps / 10000).
func ContractualDue(principal decimal.Decimal, interestRateBps uint32) decimal.Decimal {
	interest := floorDiv(principal.Mul(decimal.NewFromInt(int64(interestRateBps))), bpsDenominator)
	return principal.Add(interest)
}

func (t Terms) Validate() error {
	switch {
	case t.Installments == 0:
		return fmt.Errorf("%w: installments must be positive", ErrInvalidTerms)
	case t.Installments > MaxInstallments:
		return fmt.Errorf("%w: at most %d installments", ErrInvalidTerms, MaxInstallments)
	case !isPositiveInt(t.Principal):
		return fmt.Errorf("%w: principal must be a positive integer", ErrInvalidTerms)
	case t.DurationSecs == 0:
		return fmt.Errorf("%w: duration must be positive", ErrInvalidTerms)
	case t.DurationSecs > maxDurationSecs:
		return fmt.Errorf("%w: duration too long", ErrInvalidTerms)
	case !isPositiveInt(t.CollateralAmount):
		return fmt.Errorf("%w: collateral amount must be a positive integer", ErrInvalidTerms)
	case strings.TrimSpace(t.CollateralAsset) == "":
		return fmt.Errorf("%w: collateral asset is required", ErrInvalidTerms)
	}
	return nil
}

// BuildSchedule derives the installment sequence for terms starting at
// createdAt. Seq is the zero-based index; due dates are createdAt +
// floor(duration/n)*(i+1) seconds.
func BuildSchedule(t Terms, createdAt time.Time, policy ResidualPolicy) ([]Installment, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	if policy == "" {
		policy = ResidualWaive
	}
	if !policy.Valid() {
		return nil, fmt.Errorf("%w: unknown residual policy %q", ErrInvalidTerms, policy)
	}

	n := decimal.NewFromInt(int64(t.Installments))
	totalDue := ContractualDue(t.Principal, t.InterestRateBps)
	per := floorDiv(totalDue, n)
	if !per.IsPositive() {
		return nil, fmt.Errorf("%w: installment amount rounds to zero", ErrInvalidTerms)
	}
	interval := time.Duration(t.DurationSecs/uint64(t.Installments)) * time.Second

	out := make([]Installment, t.Installments)
	for i := range out {
		out[i] = Installment{
			Seq:     uint32(i),
			DueDate: createdAt.Add(interval * time.Duration(i+1)),
			Amount:  per,
		}
	}
	if policy == ResidualFinalInstallment {
		residual := totalDue.Sub(per.Mul(n))
		last := &out[len(out)-1]
		last.Amount = last.Amount.Add(residual)
	}
	return out, nil
}

// ScheduledTotal is the sum of installment amounts, the value that
// completes the loan.
func (l *Loan) ScheduledTotal() decimal.Decimal {
	sum := decimal.Zero
	for _, p := range l.Schedule {
		sum = sum.Add(p.Amount)
	}
	return sum
}

func (l *Loan) ContractualDue() decimal.Decimal {
	return ContractualDue(l.Principal, l.InterestRateBps)
}
