package httpserver

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/shop_auth/internal/logging"
	"github.com/Skotchmaster/shop_auth/internal/service"
	"github.com/Skotchmaster/shop_auth/internal/transport"
)

const forgotPasswordMessage = "If an account with that email exists, a password reset link has been sent."

type ResetHTTP struct {
	Resets *service.ResetManager
	// ExposeToken puts the raw token in the response. Development only.
	ExposeToken bool
}

func (h *ResetHTTP) ForgotPassword(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "forgot_password")

	var req transport.ForgotPasswordRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("forgot_password_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	res, err := h.Resets.CreateResetToken(ctx, req.Email)
	if err != nil {
		return httpError(err)
	}

	out := transport.ForgotPasswordResponse{Success: true, Message: forgotPasswordMessage}
	if h.ExposeToken && res.Success {
		out.Token = res.Token
		out.ExpiresAt = res.ExpiresAt.UTC().Format(time.RFC3339)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *ResetHTTP) ResetPassword(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "reset_password")

	var req transport.ResetPasswordRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("reset_password_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	if err := h.Resets.RedeemResetToken(ctx, req.Token, req.NewPassword); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}
