package mysql

import (
	"context"
	"errors"
	"fmt"
	"time"

	assetDomain "cygnus-loan-engine/internal/domain/asset"
	"cygnus-loan-engine/pkg/id"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AssetLedger keeps per-account balances and a transfer journal in the
// same database as the loans, so transfers share the loan transaction.
type AssetLedger struct{ db *gorm.DB }

func NewAssetLedger(db *gorm.DB) *AssetLedger { return &AssetLedger{db: db} }

func (r *AssetLedger) Transfer(ctx context.Context, in assetDomain.TransferInput) (*assetDomain.Transfer, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	var out *assetDomain.Transfer
	// nested Transaction becomes a savepoint when r.db is already a tx
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		from, err := lockBalance(tx, in.Asset, in.From)
		if err != nil {
			return err
		}
		if from.Amount.LessThan(in.Amount) {
			return fmt.Errorf("%w: %s holds %s %s, needs %s",
				assetDomain.ErrTransferFailed, in.From, from.Amount, in.Asset, in.Amount)
		}
		to, err := lockBalance(tx, in.Asset, in.To)
		if err != nil {
			return err
		}
		from.Amount = from.Amount.Sub(in.Amount)
		to.Amount = to.Amount.Add(in.Amount)
		if err := tx.Save(from).Error; err != nil {
			return err
		}
		if err := tx.Save(to).Error; err != nil {
			return err
		}
		out, err = journal(tx, in)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *AssetLedger) Deposit(ctx context.Context, asset, account string, amount decimal.Decimal, at time.Time) (*assetDomain.Transfer, error) {
	in := assetDomain.TransferInput{
		Asset:  asset,
		From:   assetDomain.ExternalAccount,
		To:     account,
		Amount: amount,
		Kind:   assetDomain.KindDeposit,
		At:     at,
	}
	if err := in.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", assetDomain.ErrInvalidAmount, err)
	}
	var out *assetDomain.Transfer
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		to, err := lockBalance(tx, asset, account)
		if err != nil {
			return err
		}
		to.Amount = to.Amount.Add(amount)
		if err := tx.Save(to).Error; err != nil {
			return err
		}
		out, err = journal(tx, in)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *AssetLedger) Balance(ctx context.Context, asset, account string) (decimal.Decimal, error) {
	var b assetDomain.Balance
	res := r.db.WithContext(ctx).
		Where("asset = ? AND account = ?", asset, account).
		First(&b)
	if errors.Is(res.Error, gorm.ErrRecordNotFound) {
		return decimal.Zero, nil
	}
	if res.Error != nil {
		return decimal.Zero, res.Error
	}
	return b.Amount, nil
}

func (r *AssetLedger) TransfersByLoan(ctx context.Context, loanID uint64) ([]assetDomain.Transfer, error) {
	var out []assetDomain.Transfer
	res := r.db.WithContext(ctx).
		Where("loan_id = ?", loanID).
		Order("id ASC").
		Find(&out)
	return out, res.Error
}

// lockBalance returns the row for (asset, account), creating a zero row
// on first touch.
func lockBalance(tx *gorm.DB, asset, account string) (*assetDomain.Balance, error) {
	b := assetDomain.Balance{Asset: asset, Account: account, Amount: decimal.Zero}
	res := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("asset = ? AND account = ?", asset, account).
		FirstOrCreate(&b)
	if res.Error != nil {
		return nil, res.Error
	}
	return &b, nil
}

func journal(tx *gorm.DB, in assetDomain.TransferInput) (*assetDomain.Transfer, error) {
	at := in.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	t := &assetDomain.Transfer{
		TransferID: id.NewID32(),
		LoanID:     in.LoanID,
		Kind:       in.Kind,
		Asset:      in.Asset,
		From:       in.From,
		To:         in.To,
		Amount:     in.Amount,
		CreatedAt:  at,
	}
	if err := tx.Create(t).Error; err != nil {
		return nil, err
	}
	return t, nil
}
