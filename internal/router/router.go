// Package router wires handlers and middleware onto the Echo instance.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/mkravets/isp-cabinet/internal/config"
	"github.com/mkravets/isp-cabinet/internal/handler"
	"github.com/mkravets/isp-cabinet/internal/middleware"
	"github.com/mkravets/isp-cabinet/internal/model"
	"github.com/mkravets/isp-cabinet/internal/session"
)

// RegisterRoutes registers the routes that need no authentication.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAPI registers the JSON API under /api/v1.
//
// GET /api/v1/auth issues a fresh token pair from credentials; the other
// auth endpoints exchange or revoke tokens. Admin mutations sit behind the
// role gate plus the freshness gate, so a refreshed token cannot moderate
// accounts or register users.
func RegisterAPI(e *echo.Echo, cfg config.Config, rdb *redis.Client,
	a *handler.AuthHandler, u *handler.UserHandler, adm *handler.AdminHandler,
	blocklist middleware.BlocklistChecker) {

	limiter := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)
	jwtAuth := middleware.JWTAuth(cfg.JWTSecret, blocklist)

	api := e.Group("/api/v1")

	// Credential endpoints; rate limited against password guessing.
	api.GET("/auth", a.Login, limiter)
	api.POST("/refresh", a.Refresh, limiter)

	// Registration is an admin action and demands a fresh token.
	api.POST("/auth", a.Register, jwtAuth, middleware.RequireRole(model.RoleAdmin), middleware.RequireFresh())

	api.POST("/logout", a.Logout, jwtAuth)

	users := api.Group("/users", jwtAuth)
	users.GET("", u.List)
	users.GET("/:uuid", u.Detail)
	users.POST("/:uuid", u.RedeemCard)
	users.GET("/:uuid/history", u.History)

	admin := api.Group("/admin", jwtAuth, middleware.RequireRole(model.RoleAdmin), middleware.RequireFresh())
	admin.POST("/users/:uuid", adm.Tools)
	admin.GET("/stats", adm.Stats)
}

// RegisterWeb registers the session-based cabinet surface. Sessions expire
// after five idle minutes by default; every authenticated request renews
// the clock.
func RegisterWeb(e *echo.Echo, w *handler.WebHandler, store *session.Store) {
	e.GET("/", w.LoginPage)
	e.POST("/", w.Login)
	e.GET("/logout", w.Logout)

	sessionAuth := middleware.SessionAuth(store)

	cabinet := e.Group("/cabinet", sessionAuth)
	cabinet.GET("", w.Cabinet)
	cabinet.POST("", w.RedeemCard)

	admin := e.Group("/admin", sessionAuth, middleware.RequireRole(model.RoleAdmin))
	admin.GET("/", w.Dashboard)
	admin.POST("/users/:uuid", w.Moderate)
	admin.POST("/register", w.RegisterAccount)
}
