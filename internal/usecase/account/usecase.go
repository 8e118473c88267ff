package account

import (
	"context"
	"fmt"
	"log/slog"

	"cygnus-loan-engine/internal/domain/asset"
	"cygnus-loan-engine/internal/domain/authz"
	"cygnus-loan-engine/internal/domain/loan"
	"cygnus-loan-engine/pkg/clock"

	"github.com/shopspring/decimal"
)

type DepositInput struct {
	Operator string          `json:"operator"`
	Account  string          `json:"account"`
	Asset    string          `json:"asset"`
	Amount   decimal.Decimal `json:"amount"`
}

type BalanceResult struct {
	Account string          `json:"account"`
	Asset   string          `json:"asset"`
	Amount  decimal.Decimal `json:"amount"`
}

// Usecase funds accounts and reads balances. Only the configured operator
// may deposit.
type Usecase struct {
	assets   asset.Gateway
	auth     authz.Authorizer
	clock    clock.Clock
	operator string
	log      *slog.Logger
}

func NewUsecase(assets asset.Gateway, auth authz.Authorizer, clk clock.Clock, operator string, log *slog.Logger) *Usecase {
	if log == nil {
		log = slog.Default()
	}
	return &Usecase{assets: assets, auth: auth, clock: clk, operator: operator, log: log}
}

func (u *Usecase) Deposit(ctx context.Context, in DepositInput) (*asset.Transfer, error) {
	if in.Operator != u.operator || !u.auth.Authorized(ctx, in.Operator, authz.OpDeposit) {
		return nil, fmt.Errorf("%w: %q may not deposit", loan.ErrUnauthorized, in.Operator)
	}
	if !asset.ValidAccountID(in.Account) {
		return nil, fmt.Errorf("%w: invalid account id %q", asset.ErrInvalidAmount, in.Account)
	}
	if !asset.ValidAssetID(in.Asset) {
		return nil, fmt.Errorf("%w: invalid asset id %q", asset.ErrInvalidAmount, in.Asset)
	}
	if in.Account == asset.ExternalAccount {
		return nil, fmt.Errorf("%w: %q cannot be funded", asset.ErrInvalidAmount, in.Account)
	}
	t, err := u.assets.Deposit(ctx, in.Asset, in.Account, in.Amount, u.clock.Now())
	if err != nil {
		return nil, err
	}
	u.log.InfoContext(ctx, "deposit applied",
		"account", in.Account, "asset", in.Asset, "amount", in.Amount.String(), "transfer_id", t.TransferID)
	return t, nil
}

func (u *Usecase) Balance(ctx context.Context, assetID, account string) (*BalanceResult, error) {
	amt, err := u.assets.Balance(ctx, assetID, account)
	if err != nil {
		return nil, err
	}
	return &BalanceResult{Account: account, Asset: assetID, Amount: amt}, nil
}
