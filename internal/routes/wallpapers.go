package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/wallshare/wallpaper-api/internal/middleware"
	"github.com/wallshare/wallpaper-api/internal/models"
	"github.com/wallshare/wallpaper-api/internal/service"
	apperrors "github.com/wallshare/wallpaper-api/pkg/errors"
)

const uploadField = "image"

type WallpaperHandler struct {
	gallery *service.GalleryService
	logger  *logrus.Logger
}

func NewWallpaperHandler(gallery *service.GalleryService, logger *logrus.Logger) *WallpaperHandler {
	return &WallpaperHandler{
		gallery: gallery,
		logger:  logger,
	}
}

// Upload stores an image for the caller
// @Summary Upload wallpaper
// @Description Upload an image (multipart field "image"). Repeating a request with the same Idempotency-Key replays the first response.
// @Tags Wallpapers
// @Accept multipart/form-data
// @Produce json
// @Security Bearer
// @Param image formData file true "Image file"
// @Param Idempotency-Key header string false "UUID idempotency key"
// @Success 201 {object} models.UploadResponse
// @Failure 400 {object} errors.ErrorResponse "Missing file or not an image"
// @Failure 401 {object} errors.ErrorResponse "Unauthenticated"
// @Failure 413 {object} errors.ErrorResponse "Image too large"
// @Failure 502 {object} errors.ErrorResponse "Image storage failure"
// @Router /upload [post]
func (h *WallpaperHandler) Upload(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile(uploadField)
	if err != nil {
		return apperrors.Validation("An image file is required in the 'image' field")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return apperrors.Validation("Could not read uploaded file")
	}
	defer file.Close()

	wp, err := h.gallery.Upload(c.UserContext(), identity(c), file, fileHeader.Size)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(models.UploadResponse{URL: wp.URL})
}

// ListMine lists the caller's wallpapers
// @Summary My wallpapers
// @Description URLs of the caller's wallpapers, newest first
// @Tags Wallpapers
// @Produce json
// @Security Bearer
// @Success 200 {array} string
// @Failure 401 {object} errors.ErrorResponse "Unauthenticated"
// @Router /my-wallpapers [get]
func (h *WallpaperHandler) ListMine(c *fiber.Ctx) error {
	urls, err := h.gallery.ListMine(c.UserContext(), middleware.GetUserID(c))
	if err != nil {
		return err
	}
	return c.JSON(urls)
}

// ListAll lists the shared gallery
// @Summary All wallpapers
// @Description Every wallpaper with its owner's username, newest first. With a valid token each item also reports is_favorite.
// @Tags Wallpapers
// @Produce json
// @Param Authorization header string false "Optional bearer token"
// @Success 200 {array} models.GalleryItem
// @Router /wallpapers [get]
func (h *WallpaperHandler) ListAll(c *fiber.Ctx) error {
	var viewer *service.Identity
	if middleware.GetUserID(c) != "" {
		id := identity(c)
		viewer = &id
	}

	items, err := h.gallery.ListAll(c.UserContext(), viewer)
	if err != nil {
		return err
	}
	return c.JSON(items)
}

// Delete removes one of the caller's wallpapers
// @Summary Delete wallpaper
// @Description Delete a wallpaper the caller owns, together with its favorites
// @Tags Wallpapers
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body models.DeleteWallpaperRequest true "Wallpaper URL"
// @Success 200 {object} models.MessageResponse
// @Failure 400 {object} errors.ErrorResponse "Missing url"
// @Failure 403 {object} errors.ErrorResponse "Not the owner"
// @Failure 404 {object} errors.ErrorResponse "Unknown wallpaper"
// @Router /wallpaper [delete]
func (h *WallpaperHandler) Delete(c *fiber.Ctx) error {
	var req models.DeleteWallpaperRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return apperrors.Validation("Invalid request body")
		}
	}
	if req.URL == "" {
		req.URL = c.Query("url")
	}

	if err := h.gallery.DeleteMine(c.UserContext(), identity(c), req.URL); err != nil {
		return err
	}

	return c.JSON(models.MessageResponse{Message: "Wallpaper deleted"})
}

func identity(c *fiber.Ctx) service.Identity {
	return service.Identity{
		UserID:   middleware.GetUserID(c),
		Username: middleware.GetUsername(c),
	}
}
