package httpserver

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/shop_auth/internal/service"
	"github.com/Skotchmaster/shop_auth/internal/tokens"
)

type CookieJar struct {
	Secure     bool
	SameSite   http.SameSite
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

func (j CookieJar) cookie(name, value string, ttl time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   j.Secure,
		SameSite: j.SameSite,
	}
}

func (j CookieJar) Set(c echo.Context, track tokens.Track, sess *service.Session) {
	c.SetCookie(j.cookie(track.AccessCookie(), sess.AccessToken, j.AccessTTL))
	c.SetCookie(j.cookie(track.RefreshCookie(), sess.RefreshToken, j.RefreshTTL))
}

func (j CookieJar) Clear(c echo.Context, track tokens.Track) {
	for _, name := range []string{track.AccessCookie(), track.RefreshCookie()} {
		ck := j.cookie(name, "", 0)
		ck.MaxAge = -1
		ck.Expires = time.Unix(0, 0)
		c.SetCookie(ck)
	}
}

func cookieValue(c echo.Context, name string) string {
	ck, err := c.Cookie(name)
	if err != nil {
		return ""
	}
	return ck.Value
}
