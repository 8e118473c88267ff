package http

import (
	"net/http"

	"cygnus-loan-engine/internal/usecase/loan"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

type LoanHandler struct{ uc *loan.Usecase }

func NewLoanHandler(uc *loan.Usecase) *LoanHandler { return &LoanHandler{uc: uc} }

type createLoanReq struct {
	Lender           string          `json:"lender"            validate:"required,account"`
	Borrower         string          `json:"borrower"          validate:"required,account"`
	Principal        decimal.Decimal `json:"principal"         validate:"posint"`
	InterestRateBps  uint32          `json:"interest_rate_bps"`
	DurationSecs     uint64          `json:"duration_s"        validate:"gt=0"`
	CollateralAmount decimal.Decimal `json:"collateral_amount" validate:"posint"`
	CollateralAsset  string          `json:"collateral_asset"  validate:"required,asset"`
	PrincipalAsset   string          `json:"principal_asset"   validate:"omitempty,asset"`
	Installments     uint32          `json:"installments"      validate:"gt=0,lte=1200"`
}

type repayReq struct {
	Borrower string          `json:"borrower" validate:"required,account"`
	Amount   decimal.Decimal `json:"amount"   validate:"posint"`
}

type liquidateReq struct {
	Lender string `json:"lender" validate:"required,account"`
}

func (h *LoanHandler) CreateLoan(c echo.Context) error {
	var req createLoanReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	res, err := h.uc.Create(c.Request().Context(), loan.CreateLoanInput(req))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, res)
}

func (h *LoanHandler) MakeRepayment(c echo.Context) error {
	loanID, err := parseLoanID(c)
	if err != nil {
		return badLoanID(c)
	}
	var req repayReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	res, err := h.uc.Repay(c.Request().Context(), loan.RepayInput{LoanID: loanID, Borrower: req.Borrower, Amount: req.Amount})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *LoanHandler) LiquidateCollateral(c echo.Context) error {
	loanID, err := parseLoanID(c)
	if err != nil {
		return badLoanID(c)
	}
	var req liquidateReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	res, err := h.uc.Liquidate(c.Request().Context(), loan.LiquidateInput{LoanID: loanID, Lender: req.Lender})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *LoanHandler) GetLoan(c echo.Context) error {
	loanID, err := parseLoanID(c)
	if err != nil {
		return badLoanID(c)
	}
	dto, err := h.uc.Get(c.Request().Context(), loanID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, dto)
}

func (h *LoanHandler) GetStatus(c echo.Context) error {
	loanID, err := parseLoanID(c)
	if err != nil {
		return badLoanID(c)
	}
	st, err := h.uc.Status(c.Request().Context(), loanID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, loan.StatusResult{LoanID: loanID, Status: st})
}

func (h *LoanHandler) GetOverdue(c echo.Context) error {
	loanID, err := parseLoanID(c)
	if err != nil {
		return badLoanID(c)
	}
	overdue, err := h.uc.IsOverdue(c.Request().Context(), loanID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"loan_id": loanID, "overdue": overdue})
}

func (h *LoanHandler) GetTransfers(c echo.Context) error {
	loanID, err := parseLoanID(c)
	if err != nil {
		return badLoanID(c)
	}
	list, err := h.uc.Transfers(c.Request().Context(), loanID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"loan_id": loanID, "transfers": list})
}
