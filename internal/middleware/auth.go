package middleware

import (
	"context"
	"errors"
	"net/http"

	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/shop_auth/internal/service"
	"github.com/Skotchmaster/shop_auth/internal/tokens"
)

const CtxClaims = "claims"

type Authenticator interface {
	Authenticate(ctx context.Context, track tokens.Track, accessToken string) (*tokens.Claims, error)
}

// RequireSession reads the track's access cookie and admits the request only
// when the token verifies and its session is not blacklisted.
func RequireSession(auth Authenticator, track tokens.Track) echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		ContextKey:  CtxClaims,
		TokenLookup: "cookie:" + track.AccessCookie(),
		ParseTokenFunc: func(c echo.Context, raw string) (interface{}, error) {
			return auth.Authenticate(c.Request().Context(), track, raw)
		},
		ErrorHandler: func(c echo.Context, err error) error {
			if errors.Is(err, service.ErrStorageUnavailable) {
				return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
			}
			if ck, cerr := c.Cookie(track.AccessCookie()); cerr != nil || ck.Value == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing access token")
			}
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired token")
		},
	})
}

func RequireRole(role string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims, ok := ClaimsFrom(c)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid or missing role")
			}
			if claims.Role != role {
				return echo.NewHTTPError(http.StatusForbidden, "you don't have enough rights to see this page")
			}
			return next(c)
		}
	}
}

func ClaimsFrom(c echo.Context) (*tokens.Claims, bool) {
	claims, ok := c.Get(CtxClaims).(*tokens.Claims)
	return claims, ok && claims != nil
}
