package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/wallshare/wallpaper-api/internal/models"
	"github.com/wallshare/wallpaper-api/internal/store"
)

const wallpaperColumns = `id, owner_id, owner_username, url, storage_key, created_at`

func (s *Store) CreateWallpaper(ctx context.Context, wp *models.Wallpaper) error {
	query :=
		`INSERT INTO wallpapers (id, owner_id, owner_username, url, storage_key)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at`

	err := s.db.QueryRowContext(ctx, query,
		wp.ID, wp.OwnerID, wp.OwnerUsername, wp.URL, wp.StorageKey).Scan(&wp.CreatedAt)
	if err != nil {
		if pgErrorCode(err) == uniqueViolation {
			return store.ErrWallpaperExists
		}
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

func (s *Store) GetWallpaperByURL(ctx context.Context, url string) (*models.Wallpaper, error) {
	query := `SELECT ` + wallpaperColumns + ` FROM wallpapers WHERE url = $1`

	wp := &models.Wallpaper{}
	err := s.db.QueryRowContext(ctx, query, url).
		Scan(&wp.ID, &wp.OwnerID, &wp.OwnerUsername, &wp.URL, &wp.StorageKey, &wp.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return wp, nil
}

func (s *Store) ListWallpapersByOwner(ctx context.Context, ownerID string) ([]models.Wallpaper, error) {
	query := `SELECT ` + wallpaperColumns + ` FROM wallpapers
		 WHERE owner_id = $1
		 ORDER BY created_at DESC, id`

	return s.queryWallpapers(ctx, query, ownerID)
}

func (s *Store) ListWallpapers(ctx context.Context) ([]models.Wallpaper, error) {
	query := `SELECT ` + wallpaperColumns + ` FROM wallpapers
		 ORDER BY created_at DESC, id`

	return s.queryWallpapers(ctx, query)
}

func (s *Store) DeleteWallpaper(ctx context.Context, id, ownerID string) error {
	// favorites go with it through ON DELETE CASCADE
	query := `DELETE FROM wallpapers WHERE id = $1 AND owner_id = $2`

	res, err := s.db.ExecContext(ctx, query, id, ownerID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}

	return nil
}

func (s *Store) queryWallpapers(ctx context.Context, query string, args ...any) ([]models.Wallpaper, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	wallpapers := make([]models.Wallpaper, 0)
	for rows.Next() {
		var wp models.Wallpaper
		if err := rows.Scan(&wp.ID, &wp.OwnerID, &wp.OwnerUsername, &wp.URL, &wp.StorageKey, &wp.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		wallpapers = append(wallpapers, wp)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return wallpapers, nil
}
