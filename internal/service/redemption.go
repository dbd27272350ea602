// Package service holds the transactional operations that span multiple
// repositories, chiefly card redemption.
package service

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/mkravets/isp-cabinet/internal/model"
	"github.com/mkravets/isp-cabinet/internal/queue"
	"github.com/mkravets/isp-cabinet/internal/repository"
)

// cardLedger is the slice of the card repository the redemption needs.
type cardLedger interface {
	FindByCodeTx(ctx context.Context, tx *sql.Tx, code string) (model.Card, error)
	DeleteByCodeTx(ctx context.Context, tx *sql.Tx, code string) error
	InsertUsedTx(ctx context.Context, tx *sql.Tx, used *model.UsedCard) error
}

// RedemptionService atomically consumes a payment card and credits the
// acting account. The authorization gate must already have confirmed that
// the caller is the account being credited; admins do not redeem on
// behalf of others.
type RedemptionService struct {
	db     *sql.DB
	ledger cardLedger

	// Notify publishes the redemption event after commit. Fire-and-forget:
	// a nil func disables publication, errors are logged and dropped.
	Notify func(ctx context.Context, ev queue.CardRedeemedEvent) error
}

// NewRedemptionService wires the service to the shared database handle and
// card ledger. Event publication defaults to the RabbitMQ publisher.
func NewRedemptionService(db *sql.DB, ledger *repository.CardRepo) *RedemptionService {
	return &RedemptionService{db: db, ledger: ledger, Notify: PublishCardRedeemed}
}

// Redeem runs the redemption transaction for the given account and code:
//
//  1. lock the account row (serializes concurrent credits per account)
//  2. compare-and-delete the card (first committer wins; the loser
//     observes repository.ErrNotFound)
//  3. credit the balance and append the used_cards row with the
//     post-credit snapshot
//
// Any failure rolls the whole transaction back: balance unchanged, card
// still redeemable, no partial history row. Redeeming a spent code fails
// deterministically with repository.ErrNotFound because the code no
// longer exists in the unredeemed set.
func (s *RedemptionService) Redeem(ctx context.Context, account model.Account, code string) (model.UsedCard, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.UsedCard{}, fmt.Errorf("begin redemption: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var balance float64
	err = tx.QueryRowContext(ctx,
		"SELECT balance FROM users WHERE id=? FOR UPDATE", account.ID).Scan(&balance)
	if err == sql.ErrNoRows {
		return model.UsedCard{}, repository.ErrNotFound
	}
	if err != nil {
		return model.UsedCard{}, fmt.Errorf("lock account: %w", err)
	}

	card, err := s.ledger.FindByCodeTx(ctx, tx, code)
	if err != nil {
		return model.UsedCard{}, err
	}
	if err := s.ledger.DeleteByCodeTx(ctx, tx, code); err != nil {
		return model.UsedCard{}, err
	}

	newBalance := balance + float64(card.Amount)
	if _, err := tx.ExecContext(ctx,
		"UPDATE users SET balance=? WHERE id=?", newBalance, account.ID); err != nil {
		return model.UsedCard{}, fmt.Errorf("credit balance: %w", err)
	}

	used := model.UsedCard{
		Amount:          card.Amount,
		Code:            card.Code,
		BalanceAfterUse: newBalance,
		UsedAt:          time.Now().UTC(),
		UserID:          account.ID,
	}
	if err := s.ledger.InsertUsedTx(ctx, tx, &used); err != nil {
		return model.UsedCard{}, fmt.Errorf("record redemption: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return model.UsedCard{}, fmt.Errorf("commit redemption: %w", err)
	}
	committed = true

	if s.Notify != nil {
		ev := queue.CardRedeemedEvent{
			UserUUID:        account.UUID,
			Username:        account.Username,
			CardCode:        used.Code,
			Amount:          used.Amount,
			BalanceAfterUse: used.BalanceAfterUse,
			UsedAt:          used.UsedAt.Format(time.RFC3339),
		}
		if err := s.Notify(ctx, ev); err != nil {
			log.Printf("redemption: event publish failed: %v", err)
		}
	}
	return used, nil
}
