package http

import (
	"net/http"

	"cygnus-loan-engine/internal/domain/asset"
	"cygnus-loan-engine/internal/usecase/account"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

type AccountHandler struct{ uc *account.Usecase }

func NewAccountHandler(uc *account.Usecase) *AccountHandler { return &AccountHandler{uc: uc} }

type depositReq struct {
	Operator string          `json:"operator" validate:"required,account"`
	Asset    string          `json:"asset"    validate:"required,asset"`
	Amount   decimal.Decimal `json:"amount"   validate:"posint"`
}

func (h *AccountHandler) Deposit(c echo.Context) error {
	acct := c.Param("account")
	if !asset.ValidAccountID(acct) {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid account path param"})
	}
	var req depositReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	t, err := h.uc.Deposit(c.Request().Context(), account.DepositInput{
		Operator: req.Operator, Account: acct, Asset: req.Asset, Amount: req.Amount,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, t)
}

func (h *AccountHandler) GetBalance(c echo.Context) error {
	acct, assetID := c.Param("account"), c.Param("asset")
	if !asset.ValidAccountID(acct) || !asset.ValidAssetID(assetID) {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid account or asset path param"})
	}
	res, err := h.uc.Balance(c.Request().Context(), assetID, acct)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}
