package asset

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrTransferFailed = errors.New("asset: transfer failed")
	ErrInvalidAmount  = errors.New("asset: invalid amount")
)

type Kind string

const (
	KindCollateralLock    Kind = "collateral_lock"
	KindDisbursement      Kind = "disbursement"
	KindRepayment         Kind = "repayment"
	KindCollateralRelease Kind = "collateral_release"
	KindLiquidation       Kind = "liquidation"
	KindDeposit           Kind = "deposit"
)

// Table: asset_balances
type Balance struct {
	ID        uint64          `gorm:"column:id;primaryKey;autoIncrement" json:"-"`
	Asset     string          `gorm:"column:asset;size:128;not null;uniqueIndex:ux_balances_asset_account" json:"asset"`
	Account   string          `gorm:"column:account;size:128;not null;uniqueIndex:ux_balances_asset_account" json:"account"`
	Amount    decimal.Decimal `gorm:"column:amount;type:decimal(38,0);not null" json:"amount"`
	UpdatedAt time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Balance) TableName() string { return "asset_balances" }

// Table: asset_transfers (journal of every applied movement)
type Transfer struct {
	ID uint64 `gorm:"column:id;primaryKey;autoIncrement" json:"-"`
	// Public identifier (32-char lowercase hex)
	TransferID string          `gorm:"column:transfer_id;type:char(32);not null;uniqueIndex:ux_transfers_transfer_id" json:"transfer_id"`
	LoanID     *uint64         `gorm:"column:loan_id;index:idx_transfers_loan" json:"loan_id,omitempty"`
	Kind       Kind            `gorm:"column:kind;size:32;not null" json:"kind"`
	Asset      string          `gorm:"column:asset;size:128;not null" json:"asset"`
	From       string          `gorm:"column:from_account;size:128;not null" json:"from"`
	To         string          `gorm:"column:to_account;size:128;not null" json:"to"`
	Amount     decimal.Decimal `gorm:"column:amount;type:decimal(38,0);not null" json:"amount"`
	CreatedAt  time.Time       `gorm:"column:created_at" json:"created_at"`
}

func (Transfer) TableName() string { return "asset_transfers" }

type TransferInput struct {
	Asset  string
	From   string
	To     string
	Amount decimal.Decimal
	LoanID *uint64
	Kind   Kind
	At     time.Time
}

func (in TransferInput) Validate() error {
	switch {
	case strings.TrimSpace(in.Asset) == "":
		return fmt.Errorf("%w: asset is required", ErrTransferFailed)
	case in.From == "" || in.To == "":
		return fmt.Errorf("%w: both accounts are required", ErrTransferFailed)
	case in.From == in.To:
		return fmt.Errorf("%w: source and destination are the same account", ErrTransferFailed)
	case !in.Amount.IsPositive() || !in.Amount.IsInteger():
		return fmt.Errorf("%w: amount must be a positive integer", ErrTransferFailed)
	}
	return nil
}

// LoanRef is a convenience for filling TransferInput.LoanID.
func LoanRef(id uint64) *uint64 { return &id }
