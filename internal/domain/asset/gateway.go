package asset

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Gateway moves value between accounts. Transfer either applies the whole
// movement or returns an error wrapping ErrTransferFailed and applies
// nothing. Implementations run inside the caller's storage transaction.
type Gateway interface {
	Transfer(ctx context.Context, in TransferInput) (*Transfer, error)
	// Deposit credits account from outside the ledger (operator funding).
	Deposit(ctx context.Context, asset, account string, amount decimal.Decimal, at time.Time) (*Transfer, error)
	// Balance returns zero for accounts that never held the asset.
	Balance(ctx context.Context, asset, account string) (decimal.Decimal, error)
	TransfersByLoan(ctx context.Context, loanID uint64) ([]Transfer, error)
}

// ExternalAccount is the source recorded for deposits.
const ExternalAccount = "external"
