package httpserver

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/shop_auth/internal/logging"
	"github.com/Skotchmaster/shop_auth/internal/middleware"
	"github.com/Skotchmaster/shop_auth/internal/service"
	"github.com/Skotchmaster/shop_auth/internal/transport"
)

type AccountHTTP struct {
	Sessions *service.SessionManager
}

func (h *AccountHTTP) Register(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_register")

	var req transport.RegisterRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("register_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	u, err := h.Sessions.Register(ctx, req.Name, req.Email, req.Password)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, transport.SessionResponse{Success: true, User: *u})
}

func (h *AccountHTTP) ChangeRole(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin_change_role")

	claims, ok := middleware.ClaimsFrom(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		l.Warn("change_role_error", "status", 400, "reason", "invalid user id")
		return echo.NewHTTPError(http.StatusBadRequest, "invalid user id")
	}

	var req transport.ChangeRoleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	u, err := h.Sessions.ChangeRole(ctx, claims.UserID, uint(id), req.Role)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, transport.SessionResponse{Success: true, User: *u})
}
