package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/wallshare/wallpaper-api/internal/middleware"
	"github.com/wallshare/wallpaper-api/internal/models"
	"github.com/wallshare/wallpaper-api/internal/service"
	apperrors "github.com/wallshare/wallpaper-api/pkg/errors"
)

type FavoriteHandler struct {
	gallery *service.GalleryService
	logger  *logrus.Logger
}

func NewFavoriteHandler(gallery *service.GalleryService, logger *logrus.Logger) *FavoriteHandler {
	return &FavoriteHandler{
		gallery: gallery,
		logger:  logger,
	}
}

// Add favorites a wallpaper
// @Summary Add favorite
// @Description Mark a wallpaper as favorite. Repeating the call is a no-op.
// @Tags Favorites
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body models.FavoriteRequest true "Wallpaper URL"
// @Success 200 {object} models.FavoriteResponse
// @Failure 400 {object} errors.ErrorResponse "Missing wallpaper_url"
// @Failure 404 {object} errors.ErrorResponse "Unknown wallpaper"
// @Router /favorites [post]
func (h *FavoriteHandler) Add(c *fiber.Ctx) error {
	req, err := parseFavorite(c)
	if err != nil {
		return err
	}

	if err := h.gallery.AddFavorite(c.UserContext(), middleware.GetUserID(c), req.WallpaperURL); err != nil {
		return err
	}

	return c.JSON(models.FavoriteResponse{
		Message:      "Added to favorites",
		WallpaperURL: req.WallpaperURL,
		Favorited:    true,
	})
}

// Remove unfavorites a wallpaper
// @Summary Remove favorite
// @Description Remove a wallpaper from favorites. Removing a missing favorite is a no-op.
// @Tags Favorites
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body models.FavoriteRequest true "Wallpaper URL"
// @Success 200 {object} models.FavoriteResponse
// @Failure 400 {object} errors.ErrorResponse "Missing wallpaper_url"
// @Router /favorites [delete]
func (h *FavoriteHandler) Remove(c *fiber.Ctx) error {
	req, err := parseFavorite(c)
	if err != nil {
		return err
	}

	if err := h.gallery.RemoveFavorite(c.UserContext(), middleware.GetUserID(c), req.WallpaperURL); err != nil {
		return err
	}

	return c.JSON(models.FavoriteResponse{
		Message:      "Removed from favorites",
		WallpaperURL: req.WallpaperURL,
		Favorited:    false,
	})
}

// List returns the caller's favorites
// @Summary My favorites
// @Tags Favorites
// @Produce json
// @Security Bearer
// @Success 200 {array} models.FavoriteEntry
// @Router /favorites [get]
func (h *FavoriteHandler) List(c *fiber.Ctx) error {
	favs, err := h.gallery.ListFavorites(c.UserContext(), middleware.GetUserID(c))
	if err != nil {
		return err
	}
	return c.JSON(favs)
}

func parseFavorite(c *fiber.Ctx) (models.FavoriteRequest, error) {
	var req models.FavoriteRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return req, apperrors.Validation("Invalid request body")
		}
	}
	if req.WallpaperURL == "" {
		req.WallpaperURL = c.Query("wallpaper_url")
	}
	return req, nil
}
