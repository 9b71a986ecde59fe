package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/shop_auth/internal/middleware"
	"github.com/Skotchmaster/shop_auth/internal/models"
	"github.com/Skotchmaster/shop_auth/internal/service"
	"github.com/Skotchmaster/shop_auth/internal/tokens"
)

type Deps struct {
	Sessions *service.SessionManager
	Resets   *service.ResetManager
	Cookies  CookieJar

	ExposeResetToken bool
	// CSRF, when set, guards every state-changing route under /api.
	CSRF *middleware.CSRFConfig
	// Ready reports whether backing stores answer.
	Ready func(ctx context.Context) error
}

func Register(e *echo.Echo, d *Deps) {
	if e.Validator == nil {
		e.Validator = NewValidator()
	}

	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error {
		if d.Ready == nil {
			return c.NoContent(http.StatusOK)
		}
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		if err := d.Ready(ctx); err != nil {
			return c.NoContent(http.StatusServiceUnavailable)
		}
		return c.NoContent(http.StatusOK)
	})

	api := e.Group("/api/v1")
	if d.CSRF != nil {
		api.Use(middleware.CSRF(*d.CSRF))
	}

	customer := &AuthHTTP{Sessions: d.Sessions, Cookies: d.Cookies, Track: tokens.Customer}
	admin := &AuthHTTP{Sessions: d.Sessions, Cookies: d.Cookies, Track: tokens.Admin}
	resets := &ResetHTTP{Resets: d.Resets, ExposeToken: d.ExposeResetToken}
	accounts := &AccountHTTP{Sessions: d.Sessions}

	auth := api.Group("/auth")
	auth.POST("/register", accounts.Register)
	auth.POST("/login", customer.Login)
	auth.POST("/refresh", customer.Refresh)
	auth.POST("/logout", customer.Logout)
	auth.GET("/status", customer.Status)
	auth.POST("/forgot-password", resets.ForgotPassword)
	auth.POST("/reset-password", resets.ResetPassword)

	adminAuth := api.Group("/admin/auth")
	adminAuth.POST("/login", admin.Login)
	adminAuth.POST("/refresh", admin.Refresh)
	adminAuth.POST("/logout", admin.Logout)
	adminAuth.GET("/status", admin.Status)

	account := api.Group("/account", middleware.RequireSession(d.Sessions, tokens.Customer))
	account.GET("/me", customer.Me)

	backOffice := api.Group("/admin",
		middleware.RequireSession(d.Sessions, tokens.Admin),
		middleware.RequireRole(models.RoleAdmin),
	)
	backOffice.GET("/me", admin.Me)
	backOffice.PATCH("/users/:id/role", accounts.ChangeRole)
}
