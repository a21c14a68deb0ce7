// Package store defines the persistence contracts the API depends on.
// Uniqueness of usernames, wallpaper URLs and (user, url) favorite pairs is
// enforced by each implementation, never by callers.
package store

import (
	"context"
	"errors"

	"github.com/wallshare/wallpaper-api/internal/models"
)

var (
	ErrNotFound        = errors.New("record not found")
	ErrUserExists      = errors.New("username already exists")
	ErrWallpaperExists = errors.New("wallpaper url already exists")
)

// CredentialStore persists users and their password hashes.
type CredentialStore interface {
	// CreateUser returns ErrUserExists when the username is taken.
	CreateUser(ctx context.Context, user *models.User) error
	// GetUserByUsername returns ErrNotFound for unknown usernames.
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	Ping(ctx context.Context) error
}

// ResourceStore persists wallpapers and favorites.
type ResourceStore interface {
	CreateWallpaper(ctx context.Context, wp *models.Wallpaper) error
	GetWallpaperByURL(ctx context.Context, url string) (*models.Wallpaper, error)
	// ListWallpapersByOwner and ListWallpapers return newest first.
	ListWallpapersByOwner(ctx context.Context, ownerID string) ([]models.Wallpaper, error)
	ListWallpapers(ctx context.Context) ([]models.Wallpaper, error)
	// DeleteWallpaper removes the wallpaper only if ownerID still owns it, along
	// with every favorite pointing at it. ErrNotFound otherwise.
	DeleteWallpaper(ctx context.Context, id, ownerID string) error

	// AddFavorite is a no-op for an existing pair and returns ErrNotFound when
	// url is not a known wallpaper.
	AddFavorite(ctx context.Context, userID, url string) error
	// RemoveFavorite is a no-op for a missing pair.
	RemoveFavorite(ctx context.Context, userID, url string) error
	ListFavorites(ctx context.Context, userID string) ([]models.FavoriteEntry, error)

	Ping(ctx context.Context) error
}
