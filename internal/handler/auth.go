// Package handler implements the HTTP surface: the JSON API under /api/v1
// and the session-based web cabinet.
package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/mkravets/isp-cabinet/internal/config"
	"github.com/mkravets/isp-cabinet/internal/middleware"
	"github.com/mkravets/isp-cabinet/internal/model"
	"github.com/mkravets/isp-cabinet/internal/repository"
	"github.com/mkravets/isp-cabinet/internal/utils"
)

// AccountStore is the account lookup/creation surface handlers depend on.
// Implemented by repository.AccountRepo.
type AccountStore interface {
	GetByUsername(ctx context.Context, username string) (model.Account, error)
	GetByUUID(ctx context.Context, id string) (model.Account, error)
	Create(ctx context.Context, a *model.Account, rawPassword string, cost int) error
}

// TokenStore persists refresh token and blocklist state.
// Implemented by repository.TokenRepo.
type TokenStore interface {
	StoreRefresh(ctx context.Context, userID uint64, jti string, exp time.Time) error
	ValidateRefresh(ctx context.Context, jti string) (uint64, error)
	RevokeRefresh(ctx context.Context, jti string) error
	Block(ctx context.Context, userID uint64, jti, reason string) error
}

// AuthHandler bundles dependencies for the token endpoints.
type AuthHandler struct {
	Cfg      config.Config
	Accounts AccountStore
	Tokens   TokenStore
}

func NewAuthHandler(cfg config.Config, accounts AccountStore, tokens TokenStore) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Accounts: accounts, Tokens: tokens}
}

// ----- DTOs -----

type loginReq struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

type registerReq struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Address  string `json:"address"`
	Tariff   string `json:"tariff"`
}

type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenPairResp struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	Fresh        bool   `json:"fresh"`
	ExpiresIn    int64  `json:"expires_in"`
}

func (h *AuthHandler) accessTTL() time.Duration {
	return time.Duration(h.Cfg.AccessTTLMin) * time.Minute
}

func (h *AuthHandler) refreshTTL() time.Duration {
	return time.Duration(h.Cfg.RefreshTTLDays) * 24 * time.Hour
}

// issuePair signs an access/refresh pair for the account and persists the
// refresh jti. Only a password login produces a fresh access token.
func (h *AuthHandler) issuePair(ctx context.Context, a model.Account, fresh bool) (tokenPairResp, error) {
	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, a.UUID, a.Role, fresh, h.accessTTL())
	if err != nil {
		return tokenPairResp{}, err
	}
	refresh, err := utils.NewRefreshToken(h.Cfg.JWTSecret, a.UUID, a.Role, h.refreshTTL())
	if err != nil {
		return tokenPairResp{}, err
	}
	if err := h.Tokens.StoreRefresh(ctx, a.ID, refresh.JTI, refresh.Exp); err != nil {
		return tokenPairResp{}, err
	}
	return tokenPairResp{
		AccessToken:  access.Token,
		RefreshToken: refresh.Token,
		Fresh:        fresh,
		ExpiresIn:    access.Exp.Unix(),
	}, nil
}

// Login handles GET /api/v1/auth: verifies credentials and returns a fresh
// access token plus a refresh token.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid body"})
	}
	fieldErrs := map[string]string{}
	if strings.TrimSpace(req.Login) == "" {
		fieldErrs["login"] = "required"
	}
	if req.Password == "" {
		fieldErrs["password"] = "required"
	}
	if len(fieldErrs) > 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"errors": fieldErrs})
	}

	ctx := c.Request().Context()
	a, err := h.Accounts.GetByUsername(ctx, req.Login)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"message": "Unable to login."})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "query failed"})
	}
	if !utils.VerifyPassword(a.PasswordHash, req.Password) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"message": "Unable to login."})
	}

	pair, err := h.issuePair(ctx, a, true)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "issue tokens failed"})
	}
	return c.JSON(http.StatusOK, pair)
}

// Register handles POST /api/v1/auth. Route middleware already enforced
// an admin role and a fresh token.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid body"})
	}
	if errs := validateRegister(req); len(errs) > 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"errors": errs})
	}

	ctx := c.Request().Context()
	a := model.Account{
		Username: req.Username,
		Role:     model.RoleCustomer,
		Name:     req.Name,
		Email:    req.Email,
		Phone:    req.Phone,
		Address:  req.Address,
		Tariff:   req.Tariff,
	}
	err := h.Accounts.Create(ctx, &a, req.Password, h.Cfg.BcryptCost)
	switch {
	case err == nil:
		return c.JSON(http.StatusCreated, echo.Map{
			"message": "Successfully registered.",
			"uuid":    a.UUID,
		})
	case errors.Is(err, repository.ErrUsernameExists):
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "This user already exists."})
	case errors.Is(err, repository.ErrConflict):
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "Registration conflicts with an existing account."})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Failure. Unable to save."})
	}
}

func validateRegister(req registerReq) map[string]string {
	errs := map[string]string{}
	if strings.TrimSpace(req.Username) == "" {
		errs["username"] = "required"
	}
	if req.Password == "" {
		errs["password"] = "required"
	}
	if strings.TrimSpace(req.Name) == "" {
		errs["name"] = "required"
	}
	if strings.TrimSpace(req.Phone) == "" {
		errs["phone"] = "required"
	}
	if strings.TrimSpace(req.Address) == "" {
		errs["address"] = "required"
	}
	if !model.ValidTariff(req.Tariff) {
		errs["tariff"] = "unknown tariff"
	}
	if req.Email != "" && !strings.Contains(req.Email, "@") {
		errs["email"] = "invalid email"
	}
	return errs
}

// Logout handles POST /api/v1/logout: blocklists the current access
// token's jti. The token stays invalid even before its natural expiry.
func (h *AuthHandler) Logout(c echo.Context) error {
	jti, _ := c.Get(middleware.CtxJTI).(string)
	subject, _ := c.Get(middleware.CtxUserUUID).(string)
	if jti == "" || subject == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"message": "unauthorized"})
	}

	ctx := c.Request().Context()
	a, err := h.Accounts.GetByUUID(ctx, subject)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"message": "unauthorized"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "query failed"})
	}
	if err := h.Tokens.Block(ctx, a.ID, jti, "Logout"); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "logout failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Success."})
}

// Refresh handles POST /api/v1/refresh: exchanges a valid refresh token
// for a new pair. The old refresh jti is revoked (rotation) and the new
// access token is never fresh.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"errors": map[string]string{"refresh_token": "required"}})
	}

	claims, err := utils.ParseToken(h.Cfg.JWTSecret, strings.TrimSpace(req.RefreshToken), utils.TokenTypeRefresh)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"message": "unauthorized"})
	}

	ctx := c.Request().Context()
	if _, err := h.Tokens.ValidateRefresh(ctx, claims.JTI); err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"message": "unauthorized"})
	}
	a, err := h.Accounts.GetByUUID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"message": "unauthorized"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "query failed"})
	}
	// Rotation is the serialization point: only the caller that actually
	// revokes the live jti may mint the next pair.
	if err := h.Tokens.RevokeRefresh(ctx, claims.JTI); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"message": "unauthorized"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "rotate refresh failed"})
	}

	pair, err := h.issuePair(ctx, a, false)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "issue tokens failed"})
	}
	return c.JSON(http.StatusOK, pair)
}
