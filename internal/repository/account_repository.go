package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/mkravets/isp-cabinet/internal/model"
	"github.com/mkravets/isp-cabinet/internal/utils"
)

// AccountRepo owns user identity, credentials, role, activation state and
// balance. Balance is never written here; only the redemption transaction
// mutates it.
type AccountRepo struct {
	db *sql.DB

	// genIP produces random IPv4 candidates. Replaceable in tests to make
	// the uniqueness retry deterministic.
	genIP func() string
}

func NewAccountRepo(db *sql.DB) *AccountRepo {
	return &AccountRepo{db: db, genIP: utils.RandomIPv4}
}

const accountColumns = "id, uuid, username, password_hash, role, " +
	"COALESCE(name,''), COALESCE(email,''), COALESCE(phone,''), COALESCE(address,''), " +
	"COALESCE(tariff,''), COALESCE(ip,''), state, balance, created_at"

func scanAccount(row *sql.Row) (model.Account, error) {
	var a model.Account
	err := row.Scan(&a.ID, &a.UUID, &a.Username, &a.PasswordHash, &a.Role,
		&a.Name, &a.Email, &a.Phone, &a.Address,
		&a.Tariff, &a.IP, &a.State, &a.Balance, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return a, ErrNotFound
	}
	return a, err
}

// ipAttempts bounds the generate-and-check loop for address assignment.
// Collisions are astronomically unlikely, so hitting the bound means the
// pool is effectively exhausted or the generator is broken.
const ipAttempts = 64

// Create hashes the raw password, assigns a uuid when absent and a unique
// random IP, then inserts the account. Uniqueness violations surface as the
// specific conflict sentinels; the unique indexes are the authoritative
// backstop for the IP assignment race, which is resolved by retrying.
func (r *AccountRepo) Create(ctx context.Context, a *model.Account, rawPassword string, cost int) error {
	hash, err := utils.HashPassword(rawPassword, cost)
	if err != nil {
		return err
	}
	a.PasswordHash = hash
	a.Username = strings.TrimSpace(a.Username)
	if a.UUID == "" {
		a.UUID = uuid.NewString()
	}
	if a.Role == "" {
		a.Role = model.RoleCustomer
	}
	if a.State == "" {
		a.State = model.StateDeactivated
	} else if !model.ValidState(a.State) {
		return fmt.Errorf("unknown account state %q", a.State)
	}

	for attempt := 0; attempt < ipAttempts; attempt++ {
		if a.IP == "" {
			a.IP = r.genIP()
		}
		res, err := r.db.ExecContext(ctx,
			`INSERT INTO users (uuid, username, password_hash, role, name, email, phone, address, tariff, ip, state, balance)
			 VALUES (?,?,?,?,?,?,?,?,?,?,?,0)`,
			a.UUID, a.Username, a.PasswordHash, a.Role,
			nullable(a.Name), nullable(a.Email), nullable(a.Phone), nullable(a.Address),
			nullable(a.Tariff), a.IP, a.State)
		switch {
		case err == nil:
			id, err := res.LastInsertId()
			if err != nil {
				return err
			}
			a.ID = uint64(id)
			return nil
		case isDuplicate(err, "uq_users_ip"):
			a.IP = "" // collided with an existing address, pick another
			continue
		case isDuplicate(err, "uq_users_username"):
			return ErrUsernameExists
		case isDuplicate(err, "uq_users_phone"):
			return ErrPhoneExists
		case isDuplicate(err, ""):
			return ErrConflict
		default:
			return err
		}
	}
	return fmt.Errorf("assign ip: %w", ErrIPExists)
}

// GetByUsername fetches an account by login name.
func (r *AccountRepo) GetByUsername(ctx context.Context, username string) (model.Account, error) {
	username = strings.TrimSpace(username)
	return scanAccount(r.db.QueryRowContext(ctx,
		"SELECT "+accountColumns+" FROM users WHERE username=? LIMIT 1", username))
}

// GetByUUID fetches an account by its external id.
func (r *AccountRepo) GetByUUID(ctx context.Context, id string) (model.Account, error) {
	return scanAccount(r.db.QueryRowContext(ctx,
		"SELECT "+accountColumns+" FROM users WHERE uuid=? LIMIT 1", id))
}

// ListAll returns every account, oldest first.
func (r *AccountRepo) ListAll(ctx context.Context) ([]model.Account, error) {
	return r.list(ctx, "SELECT "+accountColumns+" FROM users ORDER BY id")
}

// SearchByUsername returns accounts whose login contains q.
func (r *AccountRepo) SearchByUsername(ctx context.Context, q string) ([]model.Account, error) {
	return r.list(ctx,
		"SELECT "+accountColumns+" FROM users WHERE username LIKE ? ORDER BY id",
		"%"+strings.TrimSpace(q)+"%")
}

func (r *AccountRepo) list(ctx context.Context, query string, args ...any) ([]model.Account, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Account
	for rows.Next() {
		var a model.Account
		if err := rows.Scan(&a.ID, &a.UUID, &a.Username, &a.PasswordHash, &a.Role,
			&a.Name, &a.Email, &a.Phone, &a.Address,
			&a.Tariff, &a.IP, &a.State, &a.Balance, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// SetState switches an account between activated and deactivated.
func (r *AccountRepo) SetState(ctx context.Context, uuid string, activated bool) error {
	state := model.StateDeactivated
	if activated {
		state = model.StateActivated
	}
	res, err := r.db.ExecContext(ctx, "UPDATE users SET state=? WHERE uuid=?", state, uuid)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes the account and, through the cascading foreign key, its
// redemption history. Runs in a transaction so a failed delete leaves no
// partial state; the original error is wrapped and surfaced.
func (r *AccountRepo) Delete(ctx context.Context, uuid string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM users WHERE uuid=?", uuid)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("delete account: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("delete account: %w", err)
	}
	if n == 0 {
		_ = tx.Rollback()
		return ErrNotFound
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	return nil
}

// Stats aggregates the figures shown on the admin dashboard.
type Stats struct {
	TotalAccounts  int     `json:"total_accounts"`
	Activated      int     `json:"activated"`
	Deactivated    int     `json:"deactivated"`
	TotalBalance   float64 `json:"total_balance"`
	RedemptionsNum int     `json:"redemptions"`
	RedemptionsSum int     `json:"redemptions_sum"`
}

// GetStats computes aggregate account and redemption statistics.
func (r *AccountRepo) GetStats(ctx context.Context) (Stats, error) {
	var s Stats
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
		        COALESCE(SUM(state='activated'),0),
		        COALESCE(SUM(state='deactivated'),0),
		        COALESCE(SUM(balance),0)
		 FROM users`).
		Scan(&s.TotalAccounts, &s.Activated, &s.Deactivated, &s.TotalBalance)
	if err != nil {
		return s, err
	}
	err = r.db.QueryRowContext(ctx,
		"SELECT COUNT(*), COALESCE(SUM(amount),0) FROM used_cards").
		Scan(&s.RedemptionsNum, &s.RedemptionsSum)
	return s, err
}

// nullable maps empty strings to NULL; MySQL unique keys admit any number
// of NULLs, so optional columns like phone stay unique only when present.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
