package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/mkravets/isp-cabinet/internal/session"
)

// SessionCookie is the cookie carrying the web session id.
const SessionCookie = "session_id"

// CtxSession holds the loaded session.Session for web handlers.
const CtxSession = "web_session"

// SessionStore is the slice of session.Store the middleware needs.
type SessionStore interface {
	Get(ctx context.Context, id string) (session.Session, error)
	TTL() time.Duration
}

// SessionAuth authenticates web requests by session cookie. Loading the
// session renews its idle TTL, and the cookie is re-issued with a fresh
// Max-Age so the browser's copy advances with the Redis key; activity
// keeps the cabinet alive while five idle minutes end it. Unauthenticated
// requests are redirected to the login page.
func SessionAuth(store SessionStore) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cookie, err := c.Cookie(SessionCookie)
			if err != nil || cookie.Value == "" {
				return c.Redirect(http.StatusSeeOther, "/")
			}
			sess, err := store.Get(c.Request().Context(), cookie.Value)
			if err != nil {
				if err == session.ErrNotFound {
					return c.Redirect(http.StatusSeeOther, "/")
				}
				return c.JSON(http.StatusInternalServerError, echo.Map{"message": "session check failed"})
			}
			c.SetCookie(&http.Cookie{
				Name:     SessionCookie,
				Value:    cookie.Value,
				Path:     "/",
				HttpOnly: true,
				MaxAge:   int(store.TTL().Seconds()),
			})
			c.Set(CtxSession, sess)
			c.Set(CtxUserUUID, sess.UserUUID)
			c.Set(CtxRole, sess.Role)
			return next(c)
		}
	}
}
