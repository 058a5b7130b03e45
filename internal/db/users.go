package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dohr-michael/taskflow/internal/auth"
	"github.com/dohr-michael/taskflow/internal/tasks"
)

const userColumns = `id, username, email, password_hash, created_at, updated_at, is_active`

// CreateUser inserts u. A duplicate email yields auth.ErrUserExists.
func (db *DB) CreateUser(ctx context.Context, u *auth.User) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		var n int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE email = ?`, u.Email).Scan(&n); err != nil {
			return fmt.Errorf("check email: %w", err)
		}
		if n > 0 {
			return auth.ErrUserExists
		}
		active := 0
		if u.IsActive {
			active = 1
		}
		_, err := tx.ExecContext(ctx, `INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			u.ID, u.Username, u.Email, u.PasswordHash, encodeTime(u.CreatedAt), encodeTime(u.UpdatedAt), active)
		if err != nil {
			return fmt.Errorf("insert user: %w", err)
		}
		return nil
	})
}

// GetUser retrieves a user by id.
func (db *DB) GetUser(ctx context.Context, id string) (*auth.User, error) {
	return db.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

// GetUserByEmail retrieves a user by email.
func (db *DB) GetUserByEmail(ctx context.Context, email string) (*auth.User, error) {
	return db.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
}

func (db *DB) getUser(ctx context.Context, query, key string) (*auth.User, error) {
	u, err := scanUser(db.QueryRowContext(ctx, query, key))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &tasks.NotFoundError{Kind: "user", ID: key}
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// ListUsers returns every active user ordered by username.
func (db *DB) ListUsers(ctx context.Context) ([]*auth.User, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+userColumns+` FROM users WHERE is_active = 1 ORDER BY username`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []*auth.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func scanUser(row scanner) (*auth.User, error) {
	var (
		u                auth.User
		created, updated string
		active           int
	)
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &created, &updated, &active); err != nil {
		return nil, err
	}
	var err error
	if u.CreatedAt, err = decodeTime(created); err != nil {
		return nil, fmt.Errorf("decode user created_at: %w", err)
	}
	if u.UpdatedAt, err = decodeTime(updated); err != nil {
		return nil, fmt.Errorf("decode user updated_at: %w", err)
	}
	u.IsActive = active == 1
	return &u, nil
}
