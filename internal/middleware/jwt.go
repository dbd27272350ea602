// Package middleware contains reusable HTTP middleware: bearer token
// validation, role and freshness gates, web session authentication and
// login rate limiting.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/mkravets/isp-cabinet/internal/utils"
)

// Context keys populated by JWTAuth for downstream handlers.
const (
	CtxUserUUID = "user_uuid"
	CtxRole     = "role"
	CtxFresh    = "fresh"
	CtxJTI      = "jti"
)

// BlocklistChecker answers whether an access token id has been revoked.
// Implemented by repository.TokenRepo.
type BlocklistChecker interface {
	IsBlocked(ctx context.Context, jti string) (bool, error)
}

// JWTAuth validates a Bearer access token and injects the subject, role,
// freshness flag and jti into the request context. Bad signature, expiry,
// wrong token type and revoked jti all collapse into the same 401; the
// caller learns nothing about the cause.
func JWTAuth(secret string, blocklist BlocklistChecker) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"message": "unauthorized"})
			}
			raw := strings.TrimPrefix(auth, "Bearer ")

			claims, err := utils.ParseToken(secret, raw, utils.TokenTypeAccess)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"message": "unauthorized"})
			}

			if blocklist != nil {
				blocked, err := blocklist.IsBlocked(c.Request().Context(), claims.JTI)
				if err != nil {
					return c.JSON(http.StatusInternalServerError, echo.Map{"message": "token check failed"})
				}
				if blocked {
					return c.JSON(http.StatusUnauthorized, echo.Map{"message": "unauthorized"})
				}
			}

			c.Set(CtxUserUUID, claims.Subject)
			c.Set(CtxRole, claims.Role)
			c.Set(CtxFresh, claims.Fresh)
			c.Set(CtxJTI, claims.JTI)
			return next(c)
		}
	}
}
