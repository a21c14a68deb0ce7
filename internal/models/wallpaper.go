package models

import "time"

// Wallpaper is an uploaded image owned by exactly one user. It is never
// rendered directly; handlers project it to GalleryItem or UploadResponse.
type Wallpaper struct {
	ID            string
	OwnerID       string
	OwnerUsername string
	URL           string
	StorageKey    string
	CreatedAt     time.Time
}

// FavoriteEntry is a favorite resolved against the wallpaper's owner
type FavoriteEntry struct {
	WallpaperURL string `json:"wallpaper_url"`
	Username     string `json:"username"`
}

// GalleryItem is one entry of the shared gallery
type GalleryItem struct {
	URL        string    `json:"url"`
	Username   string    `json:"username"`
	CreatedAt  time.Time `json:"created_at"`
	IsFavorite *bool     `json:"is_favorite,omitempty"` // only for authenticated callers
}

// UploadResponse represents upload response
type UploadResponse struct {
	URL string `json:"url"`
}

// FavoriteRequest represents add/remove favorite payload
type FavoriteRequest struct {
	WallpaperURL string `json:"wallpaper_url"`
}

// FavoriteResponse reports the favorite state after a toggle
type FavoriteResponse struct {
	Message      string `json:"message"`
	WallpaperURL string `json:"wallpaper_url"`
	Favorited    bool   `json:"favorited"`
}

// DeleteWallpaperRequest represents delete payload
type DeleteWallpaperRequest struct {
	URL string `json:"url"`
}

// MessageResponse is a plain confirmation
type MessageResponse struct {
	Message string `json:"message"`
}
