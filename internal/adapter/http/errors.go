package http

import (
	"errors"
	"log/slog"
	"net/http"

	"cygnus-loan-engine/internal/domain/asset"
	"cygnus-loan-engine/internal/domain/loan"

	"github.com/labstack/echo/v4"
)

// StatusFor maps engine errors to HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, loan.ErrInvalidTerms),
		errors.Is(err, loan.ErrInvalidRepayment),
		errors.Is(err, asset.ErrInvalidAmount):
		return http.StatusUnprocessableEntity
	case errors.Is(err, loan.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, loan.ErrLoanNotFound):
		return http.StatusNotFound
	case errors.Is(err, loan.ErrLoanNotActive),
		errors.Is(err, loan.ErrNoDefault):
		return http.StatusConflict
	case errors.Is(err, asset.ErrTransferFailed):
		return http.StatusPaymentRequired
	default:
		return http.StatusInternalServerError
	}
}

// writeError hides internal failures; engine errors are returned verbatim.
func writeError(c echo.Context, err error) error {
	code := StatusFor(err)
	msg := err.Error()
	if code == http.StatusInternalServerError {
		slog.ErrorContext(c.Request().Context(), "request failed",
			"method", c.Request().Method, "path", c.Path(), "err", err)
		msg = "internal error"
	}
	return c.JSON(code, ErrorResponse{Error: msg})
}
