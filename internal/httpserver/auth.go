package httpserver

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/shop_auth/internal/logging"
	"github.com/Skotchmaster/shop_auth/internal/middleware"
	"github.com/Skotchmaster/shop_auth/internal/models"
	"github.com/Skotchmaster/shop_auth/internal/service"
	"github.com/Skotchmaster/shop_auth/internal/tokens"
	"github.com/Skotchmaster/shop_auth/internal/transport"
)

// AuthHTTP serves the login, refresh, logout and status endpoints of one track.
type AuthHTTP struct {
	Sessions *service.SessionManager
	Cookies  CookieJar
	Track    tokens.Track
}

func (h *AuthHTTP) Login(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", h.Track.String()+"_login")

	var req transport.LoginRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("login_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	sess, err := h.Sessions.Login(ctx, h.Track, req.Email, req.Password)
	if err != nil {
		return httpError(err)
	}

	h.Cookies.Set(c, h.Track, sess)
	return c.JSON(http.StatusOK, transport.SessionResponse{Success: true, User: sess.User})
}

func (h *AuthHTTP) Refresh(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", h.Track.String()+"_refresh")

	raw := cookieValue(c, h.Track.RefreshCookie())
	if raw == "" {
		l.Warn("refresh_error", "status", 401, "reason", "missing refresh cookie")
		return echo.NewHTTPError(http.StatusUnauthorized, "missing refresh token")
	}

	sess, err := h.Sessions.Refresh(ctx, h.Track, raw)
	if err != nil {
		if !errors.Is(err, service.ErrStorageUnavailable) {
			h.Cookies.Clear(c, h.Track)
		}
		return httpError(err)
	}

	h.Cookies.Set(c, h.Track, sess)
	return c.JSON(http.StatusOK, transport.SessionResponse{Success: true, User: sess.User})
}

// Logout always clears the track cookies and answers success.
func (h *AuthHTTP) Logout(c echo.Context) error {
	ctx := c.Request().Context()

	h.Sessions.Logout(ctx, h.Track,
		cookieValue(c, h.Track.AccessCookie()),
		cookieValue(c, h.Track.RefreshCookie()),
	)
	h.Cookies.Clear(c, h.Track)
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}

func (h *AuthHTTP) Status(c echo.Context) error {
	ctx := c.Request().Context()

	st, err := h.Sessions.Status(ctx, h.Track,
		cookieValue(c, h.Track.AccessCookie()),
		cookieValue(c, h.Track.RefreshCookie()),
	)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, transport.StatusResponse{IsAuthenticated: st.IsAuthenticated, User: st.User})
}

// Me answers with the identity carried by the verified access token.
func (h *AuthHTTP) Me(c echo.Context) error {
	claims, ok := middleware.ClaimsFrom(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	return c.JSON(http.StatusOK, echo.Map{
		"user": models.PublicUser{ID: claims.UserID, Name: claims.Name, Email: claims.Email, Role: claims.Role},
	})
}
