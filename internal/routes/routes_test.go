package routes

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/wallshare/wallpaper-api/internal/auth"
	"github.com/wallshare/wallpaper-api/internal/blob"
	"github.com/wallshare/wallpaper-api/internal/blob/blobtest"
	"github.com/wallshare/wallpaper-api/internal/config"
	"github.com/wallshare/wallpaper-api/internal/middleware"
	"github.com/wallshare/wallpaper-api/internal/models"
	"github.com/wallshare/wallpaper-api/internal/service"
	"github.com/wallshare/wallpaper-api/internal/store/memory"
	apperrors "github.com/wallshare/wallpaper-api/pkg/errors"
)

var pngImage = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDRwallpaper")

type testServer struct {
	app   *fiber.App
	store *memory.Store
	blobs *blobtest.Uploader
}

func testConfig() *config.Config {
	return &config.Config{
		RateLimit: config.RateLimitConfig{
			Enabled:     true,
			RPS:         100,
			Burst:       100,
			AuthRPS:     100,
			AuthBurst:   100,
			ExemptPaths: []string{"/healthz", "/readyz"},
		},
		Idempotency:   config.IdempotencyConfig{TTL: time.Minute},
		Observability: config.ObservabilityConfig{MetricsPath: "/metrics"},
	}
}

func newTestServer(t *testing.T, redisClient redis.UniversalClient) *testServer {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	cfg := testConfig()
	st := memory.New()
	blobs := blobtest.New()

	tokens, err := auth.NewTokenManager("test-secret", time.Hour, "wallpaper-api")
	require.NoError(t, err)
	hasher, err := auth.NewBcryptHasher(bcrypt.MinCost)
	require.NoError(t, err)

	authSvc, err := service.NewAuthService(st, hasher, tokens, time.Second, logger)
	require.NoError(t, err)
	gallery := service.NewGalleryService(st, blobs, service.GalleryConfig{
		StoreTimeout:   time.Second,
		UploadTimeout:  time.Second,
		MaxUploadBytes: 1 << 20,
		KeyPrefix:      "wallpapers",
	}, logger)

	checks := map[string]ReadinessCheck{"store": st.Ping}
	if redisClient != nil {
		checks["redis"] = middleware.RedisHealthCheck(redisClient, logger)
	}

	app := fiber.New(fiber.Config{ErrorHandler: middleware.ErrorHandler(logger)})
	Setup(app, Dependencies{
		Config:          cfg,
		Logger:          logger,
		Middleware:      middleware.NewManagerWithRedis(cfg, tokens, redisClient, logger),
		Auth:            authSvc,
		Gallery:         gallery,
		ReadinessChecks: checks,
		Breaker:         blob.NewCircuitBreaker(blob.BreakerConfig{Name: "routes-test"}, logger),
	})

	return &testServer{app: app, store: st, blobs: blobs}
}

func (s *testServer) do(t *testing.T, req *http.Request) *http.Response {
	t.Helper()
	resp, err := s.app.Test(req, 5000)
	require.NoError(t, err)
	return resp
}

func (s *testServer) send(t *testing.T, method, path, token string, body interface{}) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	return s.do(t, req)
}

func (s *testServer) upload(t *testing.T, token, field string, data []byte, headers map[string]string) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile(field, "wallpaper.png")
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set(fiber.HeaderContentType, w.FormDataContentType())
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return s.do(t, req)
}

func (s *testServer) login(t *testing.T, username string) string {
	t.Helper()
	resp := s.send(t, http.MethodPost, "/register", "", models.RegisterRequest{Username: username, Password: "pw-" + username})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = s.send(t, http.MethodPost, "/login", "", models.LoginRequest{Username: username, Password: "pw-" + username})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out models.AuthResponse
	decode(t, resp, &out)
	require.NotEmpty(t, out.Token)
	return out.Token
}

func (s *testServer) uploadURL(t *testing.T, token string) string {
	t.Helper()
	resp := s.upload(t, token, "image", pngImage, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var out models.UploadResponse
	decode(t, resp, &out)
	require.NotEmpty(t, out.URL)
	return out.URL
}

func decode(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func errorCode(t *testing.T, resp *http.Response) apperrors.ErrorCode {
	t.Helper()
	var body apperrors.ErrorResponse
	decode(t, resp, &body)
	return body.Error.Code
}

func TestRegisterAndLogin(t *testing.T) {
	s := newTestServer(t, nil)

	resp := s.send(t, http.MethodPost, "/register", "", models.RegisterRequest{Username: "alice", Password: "secret"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var reg models.RegisterResponse
	decode(t, resp, &reg)
	assert.Equal(t, "alice", reg.Username)
	assert.NotEmpty(t, reg.UserID)

	resp = s.send(t, http.MethodPost, "/register", "", models.RegisterRequest{Username: "alice", Password: "other"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, apperrors.CodeConflict, errorCode(t, resp))

	resp = s.send(t, http.MethodPost, "/login", "", models.LoginRequest{Username: "alice", Password: "wrong"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, apperrors.CodeInvalidCredentials, errorCode(t, resp))

	resp = s.send(t, http.MethodPost, "/login", "", models.LoginRequest{Username: "alice", Password: "secret"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var login models.AuthResponse
	decode(t, resp, &login)
	assert.Equal(t, reg.UserID, login.UserID)
	assert.Equal(t, 3600, login.ExpiresIn)
}

func TestLogin_BadCredentialsAreBadRequest(t *testing.T) {
	s := newTestServer(t, nil)

	resp := s.send(t, http.MethodPost, "/register", "", models.RegisterRequest{Username: "alice", Password: "secret1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var messages []string
	for _, req := range []models.LoginRequest{
		{Username: "alice", Password: "wrong"},
		{Username: "nobody", Password: "secret1"},
	} {
		resp = s.send(t, http.MethodPost, "/login", "", req)
		require.Equal(t, http.StatusBadRequest, resp.StatusCode, req.Username)

		var body apperrors.ErrorResponse
		decode(t, resp, &body)
		assert.Equal(t, apperrors.CodeInvalidCredentials, body.Error.Code)
		assert.NotEmpty(t, body.Message)
		messages = append(messages, body.Message)
	}
	assert.Equal(t, messages[0], messages[1])
}

func TestRegister_MalformedBody(t *testing.T) {
	s := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/register", strings.NewReader("{not json"))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp := s.do(t, req)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, apperrors.CodeValidation, errorCode(t, resp))
}

func TestUpload_RequiresAuthentication(t *testing.T) {
	s := newTestServer(t, nil)

	resp := s.upload(t, "", "image", pngImage, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, apperrors.CodeUnauthenticated, errorCode(t, resp))

	resp = s.upload(t, "not-a-token", "image", pngImage, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	assert.Zero(t, s.blobs.Puts(), "blob storage untouched")
	all, err := s.store.ListWallpapers(t.Context())
	require.NoError(t, err)
	assert.Empty(t, all, "resource store untouched")
}

func TestUpload_Validation(t *testing.T) {
	s := newTestServer(t, nil)
	token := s.login(t, "alice")

	resp := s.upload(t, token, "file", pngImage, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "wrong field name")

	resp = s.upload(t, token, "image", []byte("plain text is not an image"), nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, apperrors.CodeValidation, errorCode(t, resp))

	assert.Zero(t, s.blobs.Puts())
}

func TestUpload_StorageFailureIsBadGateway(t *testing.T) {
	s := newTestServer(t, nil)
	token := s.login(t, "alice")
	s.blobs.PutErr = errors.New("bucket unavailable")

	resp := s.upload(t, token, "image", pngImage, nil)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, apperrors.CodeUpstreamFailure, errorCode(t, resp))
}

func TestGalleryFlow(t *testing.T) {
	s := newTestServer(t, nil)
	alice := s.login(t, "alice")
	bob := s.login(t, "bob")

	aliceURL := s.uploadURL(t, alice)
	bobURL := s.uploadURL(t, bob)

	// my-wallpapers
	resp := s.send(t, http.MethodGet, "/my-wallpapers", alice, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var mine []string
	decode(t, resp, &mine)
	assert.Equal(t, []string{aliceURL}, mine)

	// favorite bob's wallpaper twice
	for i := 0; i < 2; i++ {
		resp = s.send(t, http.MethodPost, "/favorites", alice, models.FavoriteRequest{WallpaperURL: bobURL})
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	resp = s.send(t, http.MethodGet, "/favorites", alice, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var favs []models.FavoriteEntry
	decode(t, resp, &favs)
	assert.Equal(t, []models.FavoriteEntry{{WallpaperURL: bobURL, Username: "bob"}}, favs)

	// gallery, anonymous then personalised
	resp = s.send(t, http.MethodGet, "/wallpapers", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var raw []map[string]interface{}
	decode(t, resp, &raw)
	require.Len(t, raw, 2)
	assert.NotContains(t, raw[0], "is_favorite")

	resp = s.send(t, http.MethodGet, "/wallpapers", alice, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var items []models.GalleryItem
	decode(t, resp, &items)
	require.Len(t, items, 2)
	assert.Equal(t, bobURL, items[0].URL)
	require.NotNil(t, items[0].IsFavorite)
	assert.True(t, *items[0].IsFavorite)
	require.NotNil(t, items[1].IsFavorite)
	assert.False(t, *items[1].IsFavorite)

	// alice cannot delete bob's wallpaper
	resp = s.send(t, http.MethodDelete, "/wallpaper", alice, models.DeleteWallpaperRequest{URL: bobURL})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, apperrors.CodeForbidden, errorCode(t, resp))

	// bob can, and the favorite goes with it
	resp = s.send(t, http.MethodDelete, "/wallpaper", bob, models.DeleteWallpaperRequest{URL: bobURL})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = s.send(t, http.MethodGet, "/favorites", alice, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	favs = nil
	decode(t, resp, &favs)
	assert.Empty(t, favs)

	resp = s.send(t, http.MethodDelete, "/wallpaper", bob, models.DeleteWallpaperRequest{URL: bobURL})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// unfavorite is idempotent even for a deleted wallpaper
	resp = s.send(t, http.MethodDelete, "/favorites", alice, models.FavoriteRequest{WallpaperURL: bobURL})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestDeleteWallpaper_QueryFallback(t *testing.T) {
	s := newTestServer(t, nil)
	token := s.login(t, "alice")
	url := s.uploadURL(t, token)

	resp := s.send(t, http.MethodDelete, "/wallpaper?url="+url, token, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = s.send(t, http.MethodDelete, "/wallpaper", token, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestFavorites_UnknownWallpaper(t *testing.T) {
	s := newTestServer(t, nil)
	token := s.login(t, "alice")

	resp := s.send(t, http.MethodPost, "/favorites", token, models.FavoriteRequest{WallpaperURL: "https://cdn.test/nope.png"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = s.send(t, http.MethodPost, "/favorites", token, models.FavoriteRequest{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestProtectedRoutesRejectAnonymous(t *testing.T) {
	s := newTestServer(t, nil)

	for _, r := range []struct{ method, path string }{
		{http.MethodGet, "/my-wallpapers"},
		{http.MethodGet, "/favorites"},
		{http.MethodPost, "/favorites"},
		{http.MethodDelete, "/favorites"},
		{http.MethodDelete, "/wallpaper"},
	} {
		resp := s.send(t, r.method, r.path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "%s %s", r.method, r.path)
	}
}

func TestUpload_IdempotentReplay(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })

	s := newTestServer(t, client)
	token := s.login(t, "alice")
	key := uuid.NewString()
	headers := map[string]string{middleware.HeaderIdempotencyKey: key}

	first := s.upload(t, token, "image", pngImage, headers)
	require.Equal(t, http.StatusCreated, first.StatusCode)
	var a models.UploadResponse
	decode(t, first, &a)

	second := s.upload(t, token, "image", pngImage, headers)
	require.Equal(t, http.StatusCreated, second.StatusCode)
	assert.Equal(t, "true", second.Header.Get("X-Idempotency-Cached"))
	var b models.UploadResponse
	decode(t, second, &b)

	assert.Equal(t, a.URL, b.URL)
	assert.Equal(t, 1, s.blobs.Puts())
}

func TestSystemEndpoints(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })

	s := newTestServer(t, client)

	resp := s.send(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = s.send(t, http.MethodGet, "/version", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var version map[string]string
	decode(t, resp, &version)
	assert.Equal(t, "wallpaper-api", version["service"])

	resp = s.send(t, http.MethodGet, "/readyz", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var ready map[string]interface{}
	decode(t, resp, &ready)
	assert.Equal(t, "ready", ready["status"])
	assert.Contains(t, ready, "blob_breaker")

	mr.Close()
	resp = s.send(t, http.MethodGet, "/readyz", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	resp = s.send(t, http.MethodGet, "/no-such-route", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, apperrors.CodeNotFound, errorCode(t, resp))
}
