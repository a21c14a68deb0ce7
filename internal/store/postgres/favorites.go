package postgres

import (
	"context"
	"fmt"

	"github.com/wallshare/wallpaper-api/internal/models"
	"github.com/wallshare/wallpaper-api/internal/store"
)

func (s *Store) AddFavorite(ctx context.Context, userID, url string) error {
	query :=
		`INSERT INTO favorites (user_id, wallpaper_url)
		 VALUES ($1, $2)
		 ON CONFLICT (user_id, wallpaper_url) DO NOTHING`

	if _, err := s.db.ExecContext(ctx, query, userID, url); err != nil {
		if pgErrorCode(err) == foreignKeyViolation {
			return store.ErrNotFound
		}
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

func (s *Store) RemoveFavorite(ctx context.Context, userID, url string) error {
	query := `DELETE FROM favorites WHERE user_id = $1 AND wallpaper_url = $2`

	if _, err := s.db.ExecContext(ctx, query, userID, url); err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

func (s *Store) ListFavorites(ctx context.Context, userID string) ([]models.FavoriteEntry, error) {
	query :=
		`SELECT f.wallpaper_url, w.owner_username
		 FROM favorites f
		 JOIN wallpapers w ON w.url = f.wallpaper_url
		 WHERE f.user_id = $1
		 ORDER BY f.created_at DESC, f.wallpaper_url`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	favorites := make([]models.FavoriteEntry, 0)
	for rows.Next() {
		var f models.FavoriteEntry
		if err := rows.Scan(&f.WallpaperURL, &f.Username); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		favorites = append(favorites, f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return favorites, nil
}
