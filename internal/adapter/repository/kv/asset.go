package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	assetDomain "cygnus-loan-engine/internal/domain/asset"
	"cygnus-loan-engine/pkg/id"

	"github.com/shopspring/decimal"
)

type AssetLedger struct {
	s  *Store
	tx *txn
}

func NewAssetLedger(s *Store) *AssetLedger { return &AssetLedger{s: s} }

func (r *AssetLedger) write(ctx context.Context, fn func(tx *txn) error) error {
	if r.tx != nil {
		return fn(r.tx)
	}
	return r.s.update(ctx, fn)
}

func (r *AssetLedger) reader() *txn {
	if r.tx != nil {
		return r.tx
	}
	return r.s.view()
}

// Transfer checks everything before its first write, so a failed
// transfer leaves the transaction untouched.
func (r *AssetLedger) Transfer(ctx context.Context, in assetDomain.TransferInput) (*assetDomain.Transfer, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	var out *assetDomain.Transfer
	err := r.write(ctx, func(tx *txn) error {
		from, err := balance(tx, in.Asset, in.From)
		if err != nil {
			return err
		}
		if from.LessThan(in.Amount) {
			return fmt.Errorf("%w: %s holds %s %s, needs %s",
				assetDomain.ErrTransferFailed, in.From, from, in.Asset, in.Amount)
		}
		to, err := balance(tx, in.Asset, in.To)
		if err != nil {
			return err
		}
		if err := tx.put(balanceKey(in.Asset, in.From), []byte(from.Sub(in.Amount).String())); err != nil {
			return err
		}
		if err := tx.put(balanceKey(in.Asset, in.To), []byte(to.Add(in.Amount).String())); err != nil {
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
	err := r.write(ctx, func(tx *txn) error {
		to, err := balance(tx, asset, account)
		if err != nil {
			return err
		}
		if err := tx.put(balanceKey(asset, account), []byte(to.Add(amount).String())); err != nil {
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
	if err := ctx.Err(); err != nil {
		return decimal.Zero, err
	}
	return balance(r.reader(), asset, account)
}

func (r *AssetLedger) TransfersByLoan(ctx context.Context, loanID uint64) ([]assetDomain.Transfer, error) {
	entries, err := r.reader().scan(ctx, transferLoanPrefix(&loanID))
	if err != nil {
		return nil, err
	}
	out := make([]assetDomain.Transfer, 0, len(entries))
	for _, e := range entries {
		var t assetDomain.Transfer
		if err := json.Unmarshal(e.value, &t); err != nil {
			return nil, fmt.Errorf("kv: decode transfer: %w", err)
		}
		out = append(out, t)
	}
	return out, nil
}

func balance(tx *txn, asset, account string) (decimal.Decimal, error) {
	v, err := tx.get(balanceKey(asset, account))
	if errors.Is(err, errKeyNotFound) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(string(v))
}

func journal(tx *txn, in assetDomain.TransferInput) (*assetDomain.Transfer, error) {
	seq, err := tx.next(transferCounterKey)
	if err != nil {
		return nil, err
	}
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
	b, err := json.Marshal(t)
	if err != nil {
		return nil, err
	}
	key := fmt.Sprintf("%s%020d", transferLoanPrefix(in.LoanID), seq)
	if err := tx.put(key, b); err != nil {
		return nil, err
	}
	return t, nil
}
