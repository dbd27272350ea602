package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/mkravets/isp-cabinet/internal/model"
)

// CardRepo is the card ledger: the inventory of unredeemed payment cards
// and the append-only log of redemptions. Consuming a card is expressed as
// a compare-and-delete inside the caller's transaction so that concurrent
// redemptions of the same code serialize to exactly one winner.
type CardRepo struct {
	db *sql.DB
}

func NewCardRepo(db *sql.DB) *CardRepo { return &CardRepo{db: db} }

// FindByCode returns the unredeemed card with the given code.
func (r *CardRepo) FindByCode(ctx context.Context, code string) (model.Card, error) {
	var c model.Card
	err := r.db.QueryRowContext(ctx,
		"SELECT id, uuid, amount, code FROM cards WHERE code=? LIMIT 1", code).
		Scan(&c.ID, &c.UUID, &c.Amount, &c.Code)
	if err == sql.ErrNoRows {
		return c, ErrNotFound
	}
	return c, err
}

// FindByCodeTx is FindByCode within an open transaction.
func (r *CardRepo) FindByCodeTx(ctx context.Context, tx *sql.Tx, code string) (model.Card, error) {
	var c model.Card
	err := tx.QueryRowContext(ctx,
		"SELECT id, uuid, amount, code FROM cards WHERE code=? LIMIT 1", code).
		Scan(&c.ID, &c.UUID, &c.Amount, &c.Code)
	if err == sql.ErrNoRows {
		return c, ErrNotFound
	}
	return c, err
}

// DeleteByCodeTx removes the card from the unredeemed set. It succeeds only
// when exactly one row was deleted; a concurrent redeemer that lost the race
// observes ErrNotFound and the transaction must be rolled back.
func (r *CardRepo) DeleteByCodeTx(ctx context.Context, tx *sql.Tx, code string) error {
	res, err := tx.ExecContext(ctx, "DELETE FROM cards WHERE code=?", code)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n != 1 {
		return ErrNotFound
	}
	return nil
}

// InsertUsedTx appends the redemption record. The row is immutable once
// written; callers supply the post-credit balance snapshot and timestamp.
func (r *CardRepo) InsertUsedTx(ctx context.Context, tx *sql.Tx, used *model.UsedCard) error {
	if used.UUID == "" {
		used.UUID = uuid.NewString()
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO used_cards (uuid, amount, code, balance_after_use, used_at, user_id)
		 VALUES (?,?,?,?,?,?)`,
		used.UUID, used.Amount, used.Code, used.BalanceAfterUse, used.UsedAt, used.UserID)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	used.ID = uint64(id)
	return nil
}

// History returns the account's most recent redemptions, newest first.
// A limit below one falls back to the default of 10.
func (r *CardRepo) History(ctx context.Context, userID uint64, limit int) ([]model.UsedCard, error) {
	if limit < 1 {
		limit = 10
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, uuid, amount, code, balance_after_use, used_at, user_id
		 FROM used_cards WHERE user_id=? ORDER BY id DESC LIMIT ?`,
		userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.UsedCard
	for rows.Next() {
		var u model.UsedCard
		if err := rows.Scan(&u.ID, &u.UUID, &u.Amount, &u.Code,
			&u.BalanceAfterUse, &u.UsedAt, &u.UserID); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// CreateBatch seeds unredeemed cards. Not a hot path; used by cabinetctl
// and tests. Duplicate codes abort the whole batch with ErrCardCodeExists.
func (r *CardRepo) CreateBatch(ctx context.Context, cards []model.Card) error {
	if len(cards) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for i := range cards {
		if cards[i].UUID == "" {
			cards[i].UUID = uuid.NewString()
		}
		res, err := tx.ExecContext(ctx,
			"INSERT INTO cards (uuid, amount, code) VALUES (?,?,?)",
			cards[i].UUID, cards[i].Amount, cards[i].Code)
		if err != nil {
			_ = tx.Rollback()
			if isDuplicate(err, "") {
				return ErrCardCodeExists
			}
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			_ = tx.Rollback()
			return err
		}
		cards[i].ID = uint64(id)
	}
	return tx.Commit()
}
