package assetmock

import (
	"context"
	"time"

	domain "cygnus-loan-engine/internal/domain/asset"

	"github.com/shopspring/decimal"
)

var _ domain.Gateway = (*Gateway)(nil)

// Gateway is a function-backed mock that satisfies domain.Gateway.
// Unset transfers succeed and echo their input; unset reads return zero values.
type Gateway struct {
	TransferFn        func(ctx context.Context, in domain.TransferInput) (*domain.Transfer, error)
	DepositFn         func(ctx context.Context, asset, account string, amount decimal.Decimal, at time.Time) (*domain.Transfer, error)
	BalanceFn         func(ctx context.Context, asset, account string) (decimal.Decimal, error)
	TransfersByLoanFn func(ctx context.Context, loanID uint64) ([]domain.Transfer, error)

	// Transfers records every input passed to Transfer, successful or not.
	Transfers []domain.TransferInput
}

func (m *Gateway) Transfer(ctx context.Context, in domain.TransferInput) (*domain.Transfer, error) {
	m.Transfers = append(m.Transfers, in)
	if m.TransferFn != nil {
		return m.TransferFn(ctx, in)
	}
	return &domain.Transfer{
		LoanID: in.LoanID, Kind: in.Kind, Asset: in.Asset,
		From: in.From, To: in.To, Amount: in.Amount, CreatedAt: in.At,
	}, nil
}

func (m *Gateway) Deposit(ctx context.Context, asset, account string, amount decimal.Decimal, at time.Time) (*domain.Transfer, error) {
	if m.DepositFn != nil {
		return m.DepositFn(ctx, asset, account, amount, at)
	}
	return &domain.Transfer{
		Kind: domain.KindDeposit, Asset: asset, From: domain.ExternalAccount,
		To: account, Amount: amount, CreatedAt: at,
	}, nil
}

func (m *Gateway) Balance(ctx context.Context, asset, account string) (decimal.Decimal, error) {
	if m.BalanceFn != nil {
		return m.BalanceFn(ctx, asset, account)
	}
	return decimal.Zero, nil
}

func (m *Gateway) TransfersByLoan(ctx context.Context, loanID uint64) ([]domain.Transfer, error) {
	if m.TransfersByLoanFn != nil {
		return m.TransfersByLoanFn(ctx, loanID)
	}
	return nil, nil
}
