package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// RequireFresh rejects access tokens that were minted through a refresh.
// Sensitive operations (admin tools, API registration) demand a token
// obtained directly from password verification.
func RequireFresh() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			fresh, ok := c.Get(CtxFresh).(bool)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"message": "unauthorized"})
			}
			if !fresh {
				return c.JSON(http.StatusForbidden, echo.Map{"message": "fresh token required"})
			}
			return next(c)
		}
	}
}
