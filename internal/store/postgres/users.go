package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/wallshare/wallpaper-api/internal/models"
	"github.com/wallshare/wallpaper-api/internal/store"
)

func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	query :=
		`INSERT INTO users (id, username, password_hash)
		 VALUES ($1, $2, $3)
		 RETURNING created_at`

	err := s.db.QueryRowContext(ctx, query,
		user.UserID, user.Username, user.PasswordHash).Scan(&user.CreatedAt)
	if err != nil {
		if pgErrorCode(err) == uniqueViolation {
			return store.ErrUserExists
		}
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	query :=
		`SELECT id, username, password_hash, created_at FROM users
		 WHERE username = $1`

	user := &models.User{}
	err := s.db.QueryRowContext(ctx, query, username).
		Scan(&user.UserID, &user.Username, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}
