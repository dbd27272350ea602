package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/mkravets/isp-cabinet/internal/model"
	"github.com/mkravets/isp-cabinet/internal/queue"
	"github.com/mkravets/isp-cabinet/internal/repository"
	"github.com/mkravets/isp-cabinet/internal/service"
)

// AdminStore is the account moderation surface. Implemented by
// repository.AccountRepo.
type AdminStore interface {
	GetByUUID(ctx context.Context, id string) (model.Account, error)
	SetState(ctx context.Context, uuid string, activated bool) error
	Delete(ctx context.Context, uuid string) error
	GetStats(ctx context.Context) (repository.Stats, error)
}

// RefreshRevoker invalidates every active refresh token of a user.
// Implemented by repository.TokenRepo.
type RefreshRevoker interface {
	RevokeAllForUser(ctx context.Context, userID uint64) error
}

// AdminHandler serves the moderation endpoints. Route middleware enforces
// admin role and token freshness before any of these run.
type AdminHandler struct {
	Accounts AdminStore
	Tokens   RefreshRevoker

	// Notify publishes state-change events fire-and-forget; nil disables.
	Notify func(ctx context.Context, ev queue.AccountStateChangedEvent) error
}

func NewAdminHandler(accounts AdminStore, tokens RefreshRevoker) *AdminHandler {
	return &AdminHandler{Accounts: accounts, Tokens: tokens, Notify: service.PublishAccountStateChanged}
}

type adminChoiceReq struct {
	Choice string `json:"choice"`
}

// Tools handles POST /api/v1/admin/users/:uuid with a choice of
// activate, deactivate or delete.
func (h *AdminHandler) Tools(c echo.Context) error {
	var req adminChoiceReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid body"})
	}
	if req.Choice != "activate" && req.Choice != "deactivate" && req.Choice != "delete" {
		return c.JSON(http.StatusBadRequest, echo.Map{"errors": map[string]string{"choice": "must be one of: activate, deactivate, delete"}})
	}

	ctx := c.Request().Context()
	target, err := h.Accounts.GetByUUID(ctx, c.Param("uuid"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"message": "User not found."})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "query failed"})
	}

	if err := h.apply(ctx, target, req.Choice); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Failure."})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Success."})
}

// apply executes the moderation choice against the target account.
// Deactivating or deleting an account also revokes its refresh tokens, so
// a locked-out customer cannot keep minting access tokens; the live access
// token still runs out on its own 30-minute expiry.
func (h *AdminHandler) apply(ctx context.Context, target model.Account, choice string) error {
	var err error
	switch choice {
	case "activate":
		err = h.Accounts.SetState(ctx, target.UUID, true)
	case "deactivate":
		err = h.Accounts.SetState(ctx, target.UUID, false)
	case "delete":
		err = h.Accounts.Delete(ctx, target.UUID)
	}
	if err != nil {
		return err
	}
	if choice != "activate" && h.Tokens != nil {
		if err := h.Tokens.RevokeAllForUser(ctx, target.ID); err != nil {
			return err
		}
	}
	h.publish(ctx, target, choice)
	return nil
}

// Stats handles GET /api/v1/admin/stats.
func (h *AdminHandler) Stats(c echo.Context) error {
	stats, err := h.Accounts.GetStats(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "query failed"})
	}
	return c.JSON(http.StatusOK, stats)
}

func (h *AdminHandler) publish(ctx context.Context, target model.Account, action string) {
	if h.Notify == nil {
		return
	}
	ev := queue.AccountStateChangedEvent{
		UserUUID:  target.UUID,
		Username:  target.Username,
		Action:    action,
		ChangedAt: time.Now().UTC().Format(time.RFC3339),
	}
	if err := h.Notify(ctx, ev); err != nil {
		log.Printf("admin: event publish failed: %v", err)
	}
}
