package event

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type Type string

const (
	TypeLoanCreated    Type = "loan.created"
	TypeLoanRepayment  Type = "loan.repayment"
	TypeLoanRepaid     Type = "loan.repaid"
	TypeLoanLiquidated Type = "loan.liquidated"
)

// Event is published after the operation that produced it has committed.
type Event struct {
	Type    Type            `json:"type"`
	LoanID  uint64          `json:"loan_id"`
	Account string          `json:"account"`
	Asset   string          `json:"asset,omitempty"`
	Amount  decimal.Decimal `json:"amount"`
	Status  string          `json:"status"`
	At      time.Time       `json:"at"`
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
