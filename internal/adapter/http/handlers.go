package http

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

type Handler struct {
	loans    *LoanHandler
	accounts *AccountHandler
}

func NewHandler(loans *LoanHandler, accounts *AccountHandler) *Handler {
	return &Handler{loans: loans, accounts: accounts}
}

func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339Nano),
	})
}

// Register mounts every route on e. mutating wraps the POST routes
// (principal tokens, idempotency); reads stay open.
func (h *Handler) Register(e *echo.Echo, metrics http.Handler, mutating ...echo.MiddlewareFunc) {
	e.GET("/health", h.Health)
	if metrics != nil {
		e.GET("/metrics", echo.WrapHandler(metrics))
	}

	loans := e.Group("/loans")
	loans.GET("/:loan_id", h.loans.GetLoan)
	loans.GET("/:loan_id/status", h.loans.GetStatus)
	loans.GET("/:loan_id/overdue", h.loans.GetOverdue)
	loans.GET("/:loan_id/transfers", h.loans.GetTransfers)
	loans.POST("", h.loans.CreateLoan, mutating...)
	loans.POST("/:loan_id/repayments", h.loans.MakeRepayment, mutating...)
	loans.POST("/:loan_id/liquidation", h.loans.LiquidateCollateral, mutating...)

	accounts := e.Group("/accounts")
	accounts.GET("/:account/balances/:asset", h.accounts.GetBalance)
	accounts.POST("/:account/deposits", h.accounts.Deposit, mutating...)
}
