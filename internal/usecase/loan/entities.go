package loan

import (
	"time"

	"cygnus-loan-engine/internal/domain/loan"

	"github.com/shopspring/decimal"
)

type CreateLoanInput struct {
	Lender           string          `json:"lender"`
	Borrower         string          `json:"borrower"`
	Principal        decimal.Decimal `json:"principal"`
	InterestRateBps  uint32          `json:"interest_rate_bps"`
	DurationSecs     uint64          `json:"duration_s"`
	CollateralAmount decimal.Decimal `json:"collateral_amount"`
	CollateralAsset  string          `json:"collateral_asset"`
	PrincipalAsset   string          `json:"principal_asset,omitempty"`
	Installments     uint32          `json:"installments"`
}

func (in CreateLoanInput) terms() loan.Terms {
	principalAsset := in.PrincipalAsset
	if principalAsset == "" {
		principalAsset = in.CollateralAsset
	}
	return loan.Terms{
		Principal:        in.Principal,
		InterestRateBps:  in.InterestRateBps,
		DurationSecs:     in.DurationSecs,
		CollateralAmount: in.CollateralAmount,
		CollateralAsset:  in.CollateralAsset,
		PrincipalAsset:   principalAsset,
		Installments:     in.Installments,
	}
}

type RepayInput struct {
	LoanID   uint64          `json:"loan_id"`
	Borrower string          `json:"borrower"`
	Amount   decimal.Decimal `json:"amount"`
}

type LiquidateInput struct {
	LoanID uint64 `json:"loan_id"`
	Lender string `json:"lender"`
}

type CreateLoanResult struct {
	LoanID uint64 `json:"loan_id"`
}

type StatusResult struct {
	LoanID uint64      `json:"loan_id"`
	Status loan.Status `json:"status"`
}

type InstallmentDTO struct {
	Seq     uint32          `json:"seq"`
	DueDate time.Time       `json:"due_date"`
	Amount  decimal.Decimal `json:"amount"`
	Paid    bool            `json:"paid"`
	PaidAt  *time.Time      `json:"paid_at,omitempty"`
}

type LoanDTO struct {
	LoanID           uint64              `json:"loan_id"`
	Lender           string              `json:"lender"`
	Borrower         string              `json:"borrower"`
	Principal        decimal.Decimal     `json:"principal"`
	InterestRateBps  uint32              `json:"interest_rate_bps"`
	DurationSecs     uint64              `json:"duration_s"`
	CollateralAmount decimal.Decimal     `json:"collateral_amount"`
	CollateralAsset  string              `json:"collateral_asset"`
	PrincipalAsset   string              `json:"principal_asset"`
	ResidualPolicy   loan.ResidualPolicy `json:"residual_policy"`
	Schedule         []InstallmentDTO    `json:"repayment_schedule"`
	// Status is the stored status; EffectiveStatus adds the derived defaulted.
	Status          loan.Status     `json:"status"`
	EffectiveStatus loan.Status     `json:"effective_status"`
	Overdue         bool            `json:"overdue"`
	TotalDue        decimal.Decimal `json:"total_due"`
	ScheduledTotal  decimal.Decimal `json:"scheduled_total"`
	TotalRepaid     decimal.Decimal `json:"total_repaid"`
	Outstanding     decimal.Decimal `json:"outstanding"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

func toDTO(l *loan.Loan, now time.Time) *LoanDTO {
	sched := make([]InstallmentDTO, len(l.Schedule))
	for i, p := range l.Schedule {
		sched[i] = InstallmentDTO{Seq: p.Seq, DueDate: p.DueDate, Amount: p.Amount, Paid: p.Paid, PaidAt: p.PaidAt}
	}
	return &LoanDTO{
		LoanID:           l.LoanID,
		Lender:           l.Lender,
		Borrower:         l.Borrower,
		Principal:        l.Principal,
		InterestRateBps:  l.InterestRateBps,
		DurationSecs:     l.DurationSecs,
		CollateralAmount: l.CollateralAmount,
		CollateralAsset:  l.CollateralAsset,
		PrincipalAsset:   l.PrincipalAsset,
		ResidualPolicy:   l.ResidualPolicy,
		Schedule:         sched,
		Status:           l.Status,
		EffectiveStatus:  l.EffectiveStatus(now),
		Overdue:          l.IsOverdue(now),
		TotalDue:         l.ContractualDue(),
		ScheduledTotal:   l.ScheduledTotal(),
		TotalRepaid:      l.TotalRepaid,
		Outstanding:      l.Outstanding(),
		CreatedAt:        l.CreatedAt,
		UpdatedAt:        l.UpdatedAt,
	}
}

// OverdueReport is one line of the advisory overdue scan.
type OverdueReport struct {
	LoanID   uint64          `json:"loan_id"`
	Lender   string          `json:"lender"`
	Borrower string          `json:"borrower"`
	Seq      uint32          `json:"seq"`
	DueDate  time.Time       `json:"due_date"`
	Amount   decimal.Decimal `json:"amount"`
}
