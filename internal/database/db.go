package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// Open connects to MySQL and verifies the connection.
func Open(user, pass, host, port, name string) (*sql.DB, error) {
	auth := user
	if pass != "" {
		auth = fmt.Sprintf("%s:%s", user, pass)
	}
	// parseTime=true -> DATETIME -> time.Time | loc=UTC keeps times consistent
	dsn := fmt.Sprintf("%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true&loc=UTC",
		auth, host, port, name)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return db, nil
}

// schema lists the tables the service needs. Statements are idempotent so
// they can run on every startup; full migration tooling is out of scope.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		uuid CHAR(36) NOT NULL,
		username VARCHAR(64) NOT NULL,
		password_hash VARCHAR(128) NOT NULL,
		role ENUM('customer','admin') NOT NULL DEFAULT 'customer',
		name VARCHAR(64) NULL,
		email VARCHAR(120) NULL,
		phone VARCHAR(64) NULL,
		address VARCHAR(64) NULL,
		tariff VARCHAR(32) NULL,
		ip VARCHAR(64) NULL,
		state ENUM('activated','deactivated') NOT NULL DEFAULT 'deactivated',
		balance DOUBLE NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE KEY uq_users_uuid (uuid),
		UNIQUE KEY uq_users_username (username),
		UNIQUE KEY uq_users_phone (phone),
		UNIQUE KEY uq_users_ip (ip)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS cards (
		id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		uuid CHAR(36) NOT NULL,
		amount INT UNSIGNED NOT NULL,
		code VARCHAR(64) NOT NULL,
		UNIQUE KEY uq_cards_uuid (uuid),
		UNIQUE KEY uq_cards_code (code)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS used_cards (
		id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		uuid CHAR(36) NOT NULL,
		amount INT UNSIGNED NOT NULL,
		code VARCHAR(64) NOT NULL,
		balance_after_use DOUBLE NOT NULL DEFAULT 0,
		used_at DATETIME NOT NULL,
		user_id BIGINT UNSIGNED NOT NULL,
		UNIQUE KEY uq_used_cards_uuid (uuid),
		KEY idx_used_cards_user (user_id),
		CONSTRAINT fk_used_cards_user FOREIGN KEY (user_id)
			REFERENCES users (id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS refresh_tokens (
		id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		user_id BIGINT UNSIGNED NOT NULL,
		jti CHAR(36) NOT NULL,
		expires_at DATETIME NOT NULL,
		revoked_at DATETIME NULL,
		UNIQUE KEY uq_refresh_tokens_jti (jti),
		KEY idx_refresh_tokens_user (user_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS token_blocklist (
		id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		user_id BIGINT UNSIGNED NOT NULL,
		jti CHAR(36) NOT NULL,
		reason VARCHAR(64) NOT NULL DEFAULT 'Logout',
		created_at DATETIME NOT NULL,
		UNIQUE KEY uq_token_blocklist_jti (jti)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// EnsureSchema creates any missing tables.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
