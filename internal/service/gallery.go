package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/wallshare/wallpaper-api/internal/blob"
	"github.com/wallshare/wallpaper-api/internal/metrics"
	"github.com/wallshare/wallpaper-api/internal/middleware"
	"github.com/wallshare/wallpaper-api/internal/models"
	"github.com/wallshare/wallpaper-api/internal/store"
	apperrors "github.com/wallshare/wallpaper-api/pkg/errors"
)

type GalleryConfig struct {
	StoreTimeout   time.Duration
	UploadTimeout  time.Duration
	MaxUploadBytes int64
	KeyPrefix      string
}

type GalleryService struct {
	wallpapers store.ResourceStore
	uploader   blob.Uploader
	cfg        GalleryConfig
	logger     *logrus.Logger
}

func NewGalleryService(wallpapers store.ResourceStore, uploader blob.Uploader, cfg GalleryConfig, logger *logrus.Logger) *GalleryService {
	return &GalleryService{
		wallpapers: wallpapers,
		uploader:   uploader,
		cfg:        cfg,
		logger:     logger,
	}
}

// Upload stores the image and records it as owned by the caller. If the
// record cannot be written the uploaded object is removed again.
func (s *GalleryService) Upload(ctx context.Context, owner Identity, body io.Reader, size int64) (*models.Wallpaper, error) {
	ctx, span := middleware.StartSpan(ctx, "gallery.upload")
	defer span.End()
	middleware.AddSpanAttributes(span, map[string]interface{}{
		"user_id":     owner.UserID,
		"upload.size": size,
	})

	if s.cfg.MaxUploadBytes > 0 && size > s.cfg.MaxUploadBytes {
		return nil, apperrors.NewAppErrorf(apperrors.CodePayloadTooLarge, nil, "Image must be at most %d bytes", s.cfg.MaxUploadBytes)
	}

	contentType, content, err := blob.Sniff(body)
	switch {
	case errors.Is(err, blob.ErrEmpty):
		return nil, apperrors.Validation("Image file is empty")
	case errors.Is(err, blob.ErrNotImage):
		return nil, apperrors.Validation("File must be an image")
	case err != nil:
		return nil, apperrors.Validation("Could not read uploaded file")
	}

	key := blob.NewKey(s.cfg.KeyPrefix, owner.UserID, contentType)

	url, err := s.put(ctx, key, contentType, content, size)
	if err != nil {
		middleware.RecordError(span, err)
		return nil, err
	}
	metrics.RecordUploadBytes(size)

	wp := &models.Wallpaper{
		ID:            uuid.NewString(),
		OwnerID:       owner.UserID,
		OwnerUsername: owner.Username,
		URL:           url,
		StorageKey:    key,
	}

	err = storeExec(ctx, s.cfg.StoreTimeout, "create_wallpaper", func(ctx context.Context) error {
		return s.wallpapers.CreateWallpaper(ctx, wp)
	})
	if err != nil {
		middleware.RecordError(span, err)
		s.removeObject(ctx, key)
		return nil, storeError(err)
	}

	s.logger.WithFields(logrus.Fields{
		"user_id":      owner.UserID,
		"wallpaper_id": wp.ID,
		"content_type": contentType,
		"size":         size,
	}).Info("Wallpaper uploaded")

	return wp, nil
}

func (s *GalleryService) put(ctx context.Context, key, contentType string, content io.Reader, size int64) (string, error) {
	if s.cfg.UploadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.UploadTimeout)
		defer cancel()
	}

	url, err := s.uploader.Put(ctx, key, contentType, content, size)
	switch {
	case err == nil:
		return url, nil
	case errors.Is(err, blob.ErrCircuitOpen):
		return "", apperrors.Upstream("Image storage is temporarily unavailable", err)
	case errors.Is(err, context.DeadlineExceeded):
		return "", apperrors.NewAppError(apperrors.CodeUpstreamTimeout, "Image upload timed out", err)
	default:
		return "", apperrors.Upstream("Failed to upload image", err)
	}
}

// removeObject deletes a blob on a best-effort basis, even after the
// request context is done.
func (s *GalleryService) removeObject(ctx context.Context, key string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.uploadTimeout())
	defer cancel()

	if err := s.uploader.Delete(ctx, key); err != nil {
		s.logger.WithError(err).WithField("storage_key", key).Warn("Failed to remove stored object")
	}
}

func (s *GalleryService) uploadTimeout() time.Duration {
	if s.cfg.UploadTimeout > 0 {
		return s.cfg.UploadTimeout
	}
	return 30 * time.Second
}

// ListMine returns the caller's wallpaper URLs, newest first.
func (s *GalleryService) ListMine(ctx context.Context, ownerID string) ([]string, error) {
	ctx, span := middleware.StartSpan(ctx, "gallery.list_mine")
	defer span.End()

	list, err := storeCall(ctx, s.cfg.StoreTimeout, "list_wallpapers_by_owner", func(ctx context.Context) ([]models.Wallpaper, error) {
		return s.wallpapers.ListWallpapersByOwner(ctx, ownerID)
	})
	if err != nil {
		middleware.RecordError(span, err)
		return nil, storeError(err)
	}

	urls := make([]string, len(list))
	for i, wp := range list {
		urls[i] = wp.URL
	}
	return urls, nil
}

// ListAll returns the whole gallery, newest first. When viewer is set each
// item carries whether the viewer has favorited it.
func (s *GalleryService) ListAll(ctx context.Context, viewer *Identity) ([]models.GalleryItem, error) {
	ctx, span := middleware.StartSpan(ctx, "gallery.list_all")
	defer span.End()

	list, err := storeCall(ctx, s.cfg.StoreTimeout, "list_wallpapers", s.wallpapers.ListWallpapers)
	if err != nil {
		middleware.RecordError(span, err)
		return nil, storeError(err)
	}

	var favorited map[string]bool
	if viewer != nil {
		favs, err := s.listFavorites(ctx, viewer.UserID)
		if err != nil {
			middleware.RecordError(span, err)
			return nil, storeError(err)
		}
		favorited = make(map[string]bool, len(favs))
		for _, f := range favs {
			favorited[f.WallpaperURL] = true
		}
	}

	items := make([]models.GalleryItem, len(list))
	for i, wp := range list {
		items[i] = models.GalleryItem{
			URL:       wp.URL,
			Username:  wp.OwnerUsername,
			CreatedAt: wp.CreatedAt,
		}
		if favorited != nil {
			isFavorite := favorited[wp.URL]
			items[i].IsFavorite = &isFavorite
		}
	}
	return items, nil
}

// AddFavorite is idempotent.
func (s *GalleryService) AddFavorite(ctx context.Context, userID, url string) error {
	ctx, span := middleware.StartSpan(ctx, "gallery.add_favorite")
	defer span.End()

	url, err := requireURL(url, "wallpaper_url")
	if err != nil {
		return err
	}

	err = storeExec(ctx, s.cfg.StoreTimeout, "add_favorite", func(ctx context.Context) error {
		return s.wallpapers.AddFavorite(ctx, userID, url)
	})
	switch {
	case errors.Is(err, store.ErrNotFound):
		return apperrors.NotFound("Wallpaper not found")
	case err != nil:
		middleware.RecordError(span, err)
		return storeError(err)
	}
	return nil
}

// RemoveFavorite is idempotent.
func (s *GalleryService) RemoveFavorite(ctx context.Context, userID, url string) error {
	ctx, span := middleware.StartSpan(ctx, "gallery.remove_favorite")
	defer span.End()

	url, err := requireURL(url, "wallpaper_url")
	if err != nil {
		return err
	}

	err = storeExec(ctx, s.cfg.StoreTimeout, "remove_favorite", func(ctx context.Context) error {
		return s.wallpapers.RemoveFavorite(ctx, userID, url)
	})
	if err != nil {
		middleware.RecordError(span, err)
		return storeError(err)
	}
	return nil
}

func (s *GalleryService) ListFavorites(ctx context.Context, userID string) ([]models.FavoriteEntry, error) {
	ctx, span := middleware.StartSpan(ctx, "gallery.list_favorites")
	defer span.End()

	favs, err := s.listFavorites(ctx, userID)
	if err != nil {
		middleware.RecordError(span, err)
		return nil, storeError(err)
	}
	return favs, nil
}

func (s *GalleryService) listFavorites(ctx context.Context, userID string) ([]models.FavoriteEntry, error) {
	return storeCall(ctx, s.cfg.StoreTimeout, "list_favorites", func(ctx context.Context) ([]models.FavoriteEntry, error) {
		return s.wallpapers.ListFavorites(ctx, userID)
	})
}

// DeleteMine removes a wallpaper the caller owns. Someone else's wallpaper
// is left untouched and reported as Forbidden.
func (s *GalleryService) DeleteMine(ctx context.Context, owner Identity, url string) error {
	ctx, span := middleware.StartSpan(ctx, "gallery.delete")
	defer span.End()

	url, err := requireURL(url, "url")
	if err != nil {
		return err
	}

	wp, err := storeCall(ctx, s.cfg.StoreTimeout, "get_wallpaper", func(ctx context.Context) (*models.Wallpaper, error) {
		return s.wallpapers.GetWallpaperByURL(ctx, url)
	})
	switch {
	case errors.Is(err, store.ErrNotFound):
		return apperrors.NotFound("Wallpaper not found")
	case err != nil:
		middleware.RecordError(span, err)
		return storeError(err)
	}

	if wp.OwnerID != owner.UserID {
		s.logger.WithFields(logrus.Fields{
			"user_id":      owner.UserID,
			"wallpaper_id": wp.ID,
		}).Warn("Delete of wallpaper owned by another user refused")
		return apperrors.Forbidden("You can only delete your own wallpapers")
	}

	err = storeExec(ctx, s.cfg.StoreTimeout, "delete_wallpaper", func(ctx context.Context) error {
		return s.wallpapers.DeleteWallpaper(ctx, wp.ID, owner.UserID)
	})
	switch {
	case errors.Is(err, store.ErrNotFound):
		// deleted concurrently
		return apperrors.NotFound("Wallpaper not found")
	case err != nil:
		middleware.RecordError(span, err)
		return storeError(err)
	}

	if wp.StorageKey != "" {
		s.removeObject(ctx, wp.StorageKey)
	}

	s.logger.WithFields(logrus.Fields{
		"user_id":      owner.UserID,
		"wallpaper_id": wp.ID,
	}).Info("Wallpaper deleted")

	return nil
}

func requireURL(url, field string) (string, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return "", apperrors.Validation(fmt.Sprintf("%s is required", field))
	}
	return url, nil
}
