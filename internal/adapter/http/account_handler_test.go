package http

import (
	"encoding/json"
	stdhttp "net/http"
	"testing"

	"cygnus-loan-engine/internal/domain/asset"
	"cygnus-loan-engine/internal/domain/authz"
	"cygnus-loan-engine/internal/usecase/account"

	"github.com/shopspring/decimal"
)

var operatorGrant = grant(map[string][]authz.Op{"operator": {authz.OpDeposit}})

func TestDeposit(t *testing.T) {
	f := newFixture(t)
	body := map[string]any{"operator": "operator", "asset": "USD", "amount": 2500}

	rec := f.call(t, f.accounts.Deposit, stdhttp.MethodPost, mustJSON(body), operatorGrant, "account", "alice")
	if rec.Code != stdhttp.StatusCreated {
		t.Fatalf("deposit => want 201, got %d body=%s", rec.Code, rec.Body.String())
	}
	var tr asset.Transfer
	if err := json.Unmarshal(rec.Body.Bytes(), &tr); err != nil {
		t.Fatalf("bad json: %v", err)
	}
	if tr.Kind != asset.KindDeposit || tr.To != "alice" || !tr.Amount.Equal(decimal.NewFromInt(2500)) {
		t.Fatalf("transfer = %+v", tr)
	}

	rec = f.call(t, f.accounts.GetBalance, stdhttp.MethodGet, nil, nil, "account", "alice", "asset", "USD")
	var bal account.BalanceResult
	if err := json.Unmarshal(rec.Body.Bytes(), &bal); err != nil || rec.Code != stdhttp.StatusOK {
		t.Fatalf("balance => %d %s", rec.Code, rec.Body.String())
	}
	if !bal.Amount.Equal(decimal.NewFromInt(2500)) || bal.Account != "alice" || bal.Asset != "USD" {
		t.Fatalf("balance = %+v", bal)
	}
}

func TestDeposit_Errors(t *testing.T) {
	f := newFixture(t)
	body := map[string]any{"operator": "operator", "asset": "USD", "amount": 10}

	if rec := f.call(t, f.accounts.Deposit, stdhttp.MethodPost, mustJSON(body), nil, "account", "alice"); rec.Code != stdhttp.StatusForbidden {
		t.Fatalf("no operator grant => want 403, got %d", rec.Code)
	}
	if rec := f.call(t, f.accounts.Deposit, stdhttp.MethodPost, mustJSON(body), operatorGrant, "account", "bad account"); rec.Code != stdhttp.StatusBadRequest {
		t.Fatalf("bad account => want 400, got %d", rec.Code)
	}
	body["amount"] = "2.5"
	if rec := f.call(t, f.accounts.Deposit, stdhttp.MethodPost, mustJSON(body), operatorGrant, "account", "alice"); rec.Code != stdhttp.StatusUnprocessableEntity {
		t.Fatalf("fractional => want 422, got %d", rec.Code)
	}
	body["amount"] = 10
	if rec := f.call(t, f.accounts.Deposit, stdhttp.MethodPost, mustJSON(body), operatorGrant, "account", asset.ExternalAccount); rec.Code != stdhttp.StatusUnprocessableEntity {
		t.Fatalf("external account => want 422, got %d", rec.Code)
	}
}
