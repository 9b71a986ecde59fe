package httpserver

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/shop_auth/internal/service"
)

// httpError maps service errors to generic client-facing messages.
func httpError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, service.ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request")
	case errors.Is(err, service.ErrInvalidCredentials):
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid email or password")
	case errors.Is(err, service.ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, "you don't have enough rights")
	case errors.Is(err, service.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	case errors.Is(err, service.ErrConflict):
		return echo.NewHTTPError(http.StatusConflict, "user already exists")
	case errors.Is(err, service.ErrResetExpired):
		return echo.NewHTTPError(http.StatusGone, "reset token expired")
	case errors.Is(err, service.ErrResetUsed):
		return echo.NewHTTPError(http.StatusBadRequest, "reset token already used")
	case errors.Is(err, service.ErrResetNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "reset token not found")
	case errors.Is(err, service.ErrUnauthorized):
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired session")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}
}
