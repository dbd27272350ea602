package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkravets/isp-cabinet/internal/model"
)

const bcryptTestCost = 4

func newAccountRepoMock(t *testing.T) (*AccountRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewAccountRepo(db), mock
}

const insertUserRe = `INSERT INTO users`

func TestAccountCreate_Defaults(t *testing.T) {
	repo, mock := newAccountRepoMock(t)
	repo.genIP = func() string { return "10.0.0.1" }

	mock.ExpectExec(insertUserRe).
		WithArgs(sqlmock.AnyArg(), "john", sqlmock.AnyArg(), model.RoleCustomer,
			"John Doe", nil, "555-0101", "Elm Street 7", "100m", "10.0.0.1", model.StateDeactivated).
		WillReturnResult(sqlmock.NewResult(42, 1))

	a := model.Account{
		Username: "john",
		Name:     "John Doe",
		Phone:    "555-0101",
		Address:  "Elm Street 7",
		Tariff:   "100m",
	}
	err := repo.Create(context.Background(), &a, "secret", bcryptTestCost)
	require.NoError(t, err)

	assert.Equal(t, uint64(42), a.ID)
	assert.NotEmpty(t, a.UUID)
	assert.Equal(t, model.RoleCustomer, a.Role)
	assert.Equal(t, model.StateDeactivated, a.State)
	assert.Equal(t, "10.0.0.1", a.IP)
	assert.NotEqual(t, "secret", a.PasswordHash)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountCreate_RetriesOnIPCollision(t *testing.T) {
	repo, mock := newAccountRepoMock(t)
	ips := []string{"1.1.1.1", "2.2.2.2"}
	repo.genIP = func() string {
		ip := ips[0]
		ips = ips[1:]
		return ip
	}

	dupIP := errors.New("Error 1062 (23000): Duplicate entry '1.1.1.1' for key 'users.uq_users_ip'")
	mock.ExpectExec(insertUserRe).WillReturnError(dupIP)
	mock.ExpectExec(insertUserRe).WillReturnResult(sqlmock.NewResult(7, 1))

	a := model.Account{Username: "john"}
	err := repo.Create(context.Background(), &a, "secret", bcryptTestCost)
	require.NoError(t, err)
	assert.Equal(t, "2.2.2.2", a.IP)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountCreate_Conflicts(t *testing.T) {
	tests := []struct {
		name    string
		driver  error
		wantErr error
	}{
		{
			name:    "duplicate username",
			driver:  errors.New("Error 1062 (23000): Duplicate entry 'john' for key 'users.uq_users_username'"),
			wantErr: ErrUsernameExists,
		},
		{
			name:    "duplicate phone",
			driver:  errors.New("Error 1062 (23000): Duplicate entry '555-0101' for key 'users.uq_users_phone'"),
			wantErr: ErrPhoneExists,
		},
		{
			name:    "other duplicate",
			driver:  errors.New("Error 1062 (23000): Duplicate entry 'x' for key 'users.uq_users_uuid'"),
			wantErr: ErrConflict,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := newAccountRepoMock(t)
			mock.ExpectExec(insertUserRe).WillReturnError(tt.driver)

			a := model.Account{Username: "john", Phone: "555-0101"}
			err := repo.Create(context.Background(), &a, "secret", bcryptTestCost)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.ErrorIs(t, err, ErrConflict)
		})
	}
}

func TestAccountCreate_RejectsUnknownState(t *testing.T) {
	repo, _ := newAccountRepoMock(t)

	a := model.Account{Username: "john", State: "frozen"}
	err := repo.Create(context.Background(), &a, "secret", bcryptTestCost)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "frozen")
}

func TestAccountCreate_ExhaustsIPAttempts(t *testing.T) {
	repo, mock := newAccountRepoMock(t)
	repo.genIP = func() string { return "9.9.9.9" }

	dupIP := errors.New("Error 1062 (23000): Duplicate entry '9.9.9.9' for key 'users.uq_users_ip'")
	for i := 0; i < ipAttempts; i++ {
		mock.ExpectExec(insertUserRe).WillReturnError(dupIP)
	}

	a := model.Account{Username: "john"}
	err := repo.Create(context.Background(), &a, "secret", bcryptTestCost)
	assert.ErrorIs(t, err, ErrIPExists)
}

func accountRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "uuid", "username", "password_hash", "role",
		"name", "email", "phone", "address",
		"tariff", "ip", "state", "balance", "created_at",
	})
}

func TestGetByUsername(t *testing.T) {
	repo, mock := newAccountRepoMock(t)
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT .+ FROM users WHERE username=\?`).
		WithArgs("john").
		WillReturnRows(accountRows().AddRow(
			1, "uuid-1", "john", "hash", "customer",
			"John", "", "555-0101", "Elm Street 7",
			"100m", "10.0.0.1", "activated", 400.0, created))

	a, err := repo.GetByUsername(context.Background(), " john ")
	require.NoError(t, err)
	assert.Equal(t, "uuid-1", a.UUID)
	assert.Equal(t, 400.0, a.Balance)
	assert.Equal(t, created, a.CreatedAt)
}

func TestGetByUUID_NotFound(t *testing.T) {
	repo, mock := newAccountRepoMock(t)
	mock.ExpectQuery(`SELECT .+ FROM users WHERE uuid=\?`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByUUID(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSetState(t *testing.T) {
	repo, mock := newAccountRepoMock(t)
	mock.ExpectExec(`UPDATE users SET state=\? WHERE uuid=\?`).
		WithArgs(model.StateActivated, "uuid-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.SetState(context.Background(), "uuid-1", true))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetState_NotFound(t *testing.T) {
	repo, mock := newAccountRepoMock(t)
	mock.ExpectExec(`UPDATE users SET state=\? WHERE uuid=\?`).
		WithArgs(model.StateDeactivated, "missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, repo.SetState(context.Background(), "missing", false), ErrNotFound)
}

func TestDelete_RollsBackOnError(t *testing.T) {
	repo, mock := newAccountRepoMock(t)
	boom := errors.New("deadlock")
	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM users WHERE uuid=\?`).
		WithArgs("uuid-1").
		WillReturnError(boom)
	mock.ExpectRollback()

	err := repo.Delete(context.Background(), "uuid-1")
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDelete_Commits(t *testing.T) {
	repo, mock := newAccountRepoMock(t)
	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM users WHERE uuid=\?`).
		WithArgs("uuid-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Delete(context.Background(), "uuid-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetStats(t *testing.T) {
	repo, mock := newAccountRepoMock(t)
	mock.ExpectQuery(`SELECT COUNT\(\*\),`).
		WillReturnRows(sqlmock.NewRows([]string{"c", "a", "d", "b"}).AddRow(5, 3, 2, 1200.5))
	mock.ExpectQuery(`SELECT COUNT\(\*\), COALESCE\(SUM\(amount\),0\) FROM used_cards`).
		WillReturnRows(sqlmock.NewRows([]string{"c", "s"}).AddRow(8, 2400))

	s, err := repo.GetStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, s.TotalAccounts)
	assert.Equal(t, 3, s.Activated)
	assert.Equal(t, 1200.5, s.TotalBalance)
	assert.Equal(t, 8, s.RedemptionsNum)
	assert.Equal(t, 2400, s.RedemptionsSum)
}
