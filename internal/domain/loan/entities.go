package loan

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusActive     Status = "active"
	StatusRepaid     Status = "repaid"
	StatusLiquidated Status = "liquidated"
	// StatusDefaulted is never stored. Queries report it for an active loan
	// with an overdue unpaid installment.
	StatusDefaulted Status = "defaulted"
)

func (s Status) Terminal() bool { return s == StatusRepaid || s == StatusLiquidated }

// ResidualPolicy decides who absorbs total_due - per_installment*n.
type ResidualPolicy string

const (
	// ResidualWaive keeps every installment at floor(total_due/n); the
	// remainder is forgiven.
	ResidualWaive ResidualPolicy = "waive"
	// ResidualFinalInstallment adds the remainder to the last installment.
	ResidualFinalInstallment ResidualPolicy = "final_installment"
)

func (p ResidualPolicy) Valid() bool {
	return p == ResidualWaive || p == ResidualFinalInstallment
}

// Terms as requested by lender and borrower at creation.
type Terms struct {
	Principal        decimal.Decimal
	InterestRateBps  uint32
	DurationSecs     uint64
	CollateralAmount decimal.Decimal
	CollateralAsset  string
	// PrincipalAsset defaults to CollateralAsset when empty.
	PrincipalAsset string
	Installments   uint32
}

// Table: loan_installments
type Installment struct {
	ID      uint64          `gorm:"column:id;primaryKey;autoIncrement" json:"-"`
	LoanID  uint64          `gorm:"column:loan_id;not null;uniqueIndex:ux_installments_loan_seq" json:"-"`
	Seq     uint32          `gorm:"column:seq;not null;uniqueIndex:ux_installments_loan_seq" json:"seq"`
	DueDate time.Time       `gorm:"column:due_date;not null" json:"due_date"`
	Amount  decimal.Decimal `gorm:"column:amount;type:decimal(38,0);not null" json:"amount"`
	Paid    bool            `gorm:"column:paid;not null;default:false" json:"paid"`
	PaidAt  *time.Time      `gorm:"column:paid_at" json:"paid_at,omitempty"`
}

func (Installment) TableName() string { return "loan_installments" }

// Table: loans
type Loan struct {
	// Internal numeric PK
	ID uint64 `gorm:"column:id;primaryKey;autoIncrement" json:"-"`
	// Engine identifier handed out by the loan counter (first loan is 0)
	LoanID           uint64          `gorm:"column:loan_id;not null;uniqueIndex:ux_loans_loan_id" json:"loan_id"`
	Lender           string          `gorm:"column:lender;size:128;not null;index:idx_loans_lender" json:"lender"`
	Borrower         string          `gorm:"column:borrower;size:128;not null;index:idx_loans_borrower" json:"borrower"`
	Principal        decimal.Decimal `gorm:"column:principal;type:decimal(38,0);not null" json:"principal"`
	InterestRateBps  uint32          `gorm:"column:interest_rate_bps;not null" json:"interest_rate_bps"`
	DurationSecs     uint64          `gorm:"column:duration_secs;not null" json:"duration_secs"`
	CollateralAmount decimal.Decimal `gorm:"column:collateral_amount;type:decimal(38,0);not null" json:"collateral_amount"`
	CollateralAsset  string          `gorm:"column:collateral_asset;size:128;not null" json:"collateral_asset"`
	PrincipalAsset   string          `gorm:"column:principal_asset;size:128;not null" json:"principal_asset"`
	ResidualPolicy   ResidualPolicy  `gorm:"column:residual_policy;size:32;not null" json:"residual_policy"`
	Schedule         []Installment   `gorm:"foreignKey:LoanID;references:LoanID" json:"repayment_schedule"`
	Status           Status          `gorm:"column:status;size:16;not null;index:idx_loans_status" json:"status"`
	TotalRepaid      decimal.Decimal `gorm:"column:total_repaid;type:decimal(38,0);not null" json:"total_repaid"`
	CreatedAt        time.Time       `gorm:"column:created_at;autoCreateTime:false" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"column:updated_at;autoUpdateTime:false" json:"updated_at"`
}

func (Loan) TableName() string { return "loans" }
