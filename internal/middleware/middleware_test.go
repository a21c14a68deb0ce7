package middleware

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wallshare/wallpaper-api/internal/auth"
	apperrors "github.com/wallshare/wallpaper-api/pkg/errors"
)

const testSecret = "test-secret"

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newTestApp() *fiber.App {
	return fiber.New(fiber.Config{ErrorHandler: ErrorHandler(quietLogger())})
}

func newTokens(t *testing.T) *auth.TokenManager {
	t.Helper()
	tm, err := auth.NewTokenManager(testSecret, time.Hour, "wallpaper-api")
	require.NoError(t, err)
	return tm
}

func decodeError(t *testing.T, resp *http.Response) apperrors.ErrorResponse {
	t.Helper()
	var body apperrors.ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func TestAuthenticate(t *testing.T) {
	tokens := newTokens(t)
	gate := NewAuthMiddleware(tokens, quietLogger())

	app := newTestApp()
	app.Get("/private", gate.Authenticate(), func(c *fiber.Ctx) error {
		return c.SendString(GetUserID(c) + ":" + GetUsername(c))
	})

	valid, _, err := tokens.Issue("u-1", "alice")
	require.NoError(t, err)

	expiredIssuer, err := auth.NewTokenManager(testSecret, time.Hour, "wallpaper-api")
	require.NoError(t, err)
	expiredIssuer.WithClock(func() time.Time { return time.Now().Add(-2 * time.Hour) })
	expired, _, err := expiredIssuer.Issue("u-1", "alice")
	require.NoError(t, err)

	otherSecret, err := auth.NewTokenManager("another-secret", time.Hour, "wallpaper-api")
	require.NoError(t, err)
	forged, _, err := otherSecret.Issue("u-1", "alice")
	require.NoError(t, err)

	tests := []struct {
		name        string
		header      string
		wantStatus  int
		wantMessage string
	}{
		{"missing header", "", http.StatusUnauthorized, "Authorization header is required"},
		{"not bearer", "Basic dXNlcjpwYXNz", http.StatusUnauthorized, "Invalid or expired token"},
		{"empty bearer", "Bearer ", http.StatusUnauthorized, "Invalid or expired token"},
		{"garbage", "Bearer not.a.jwt", http.StatusUnauthorized, "Invalid or expired token"},
		{"expired", "Bearer " + expired, http.StatusUnauthorized, "Invalid or expired token"},
		{"wrong secret", "Bearer " + forged, http.StatusUnauthorized, "Invalid or expired token"},
		{"valid", "Bearer " + valid, http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/private", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}

			resp, err := app.Test(req)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			if tt.wantStatus == http.StatusOK {
				body, _ := io.ReadAll(resp.Body)
				assert.Equal(t, "u-1:alice", string(body))
				return
			}

			errBody := decodeError(t, resp)
			assert.Equal(t, apperrors.CodeUnauthenticated, errBody.Error.Code)
			assert.Equal(t, tt.wantMessage, errBody.Error.Message)
		})
	}
}

func TestAuthenticate_HandlerNotReachedWithoutToken(t *testing.T) {
	gate := NewAuthMiddleware(newTokens(t), quietLogger())

	reached := false
	app := newTestApp()
	app.Post("/upload", gate.Authenticate(), func(c *fiber.Ctx) error {
		reached = true
		return nil
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/upload", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.False(t, reached)
}

func TestOptional(t *testing.T) {
	tokens := newTokens(t)
	gate := NewAuthMiddleware(tokens, quietLogger())

	app := newTestApp()
	app.Get("/wallpapers", gate.Optional(), func(c *fiber.Ctx) error {
		if GetUserClaims(c) == nil {
			return c.SendString("anonymous")
		}
		return c.SendString(GetUserID(c))
	})

	valid, _, err := tokens.Issue("u-7", "bob")
	require.NoError(t, err)

	for header, want := range map[string]string{
		"":                 "anonymous",
		"Bearer garbage":   "anonymous",
		"Bearer " + valid: "u-7",
		"Token " + valid:  "anonymous",
	} {
		req := httptest.NewRequest(http.MethodGet, "/wallpapers", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		body, _ := io.ReadAll(resp.Body)
		assert.Equal(t, want, string(body), "header %q", header)
	}
}

func TestErrorHandler_Envelope(t *testing.T) {
	app := newTestApp()
	app.Get("/conflict", func(c *fiber.Ctx) error {
		return apperrors.Conflict("Username already exists", nil)
	})
	app.Get("/boom", func(c *fiber.Ctx) error {
		return io.ErrUnexpectedEOF
	})
	app.Get("/fiber", func(c *fiber.Ctx) error {
		return fiber.ErrRequestEntityTooLarge
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/conflict", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	body := decodeError(t, resp)
	assert.Equal(t, apperrors.CodeConflict, body.Error.Code)
	assert.Equal(t, "Username already exists", body.Message)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/boom", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	body = decodeError(t, resp)
	assert.Equal(t, apperrors.CodeInternalError, body.Error.Code)
	assert.Equal(t, "Internal server error", body.Error.Message)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/fiber", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
	assert.Equal(t, apperrors.CodePayloadTooLarge, decodeError(t, resp).Error.Code)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/missing", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, apperrors.CodeNotFound, decodeError(t, resp).Error.Code)
}

func TestErrorLogger_RendersAndLogs(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	hook := &captureHook{}
	logger.AddHook(hook)

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(logger)})
	app.Use(NewErrorLoggerMiddleware(logger).Handle())
	app.Post("/login", func(c *fiber.Ctx) error {
		return apperrors.NewAppError(apperrors.CodeInvalidCredentials, "Invalid username or password", nil)
	})
	app.Get("/fail", func(c *fiber.Ctx) error {
		return apperrors.Internal(io.ErrClosedPipe)
	})

	req := httptest.NewRequest(http.MethodPost, "/login", jsonBody(`{"username":"alice","password":"hunter2"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/fail", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	require.Len(t, hook.entries, 2)
	assert.Equal(t, logrus.WarnLevel, hook.entries[0].Level)
	assert.Equal(t, apperrors.CodeInvalidCredentials, hook.entries[0].Data["error_code"])
	for _, v := range hook.entries[0].Data {
		assert.NotContains(t, toString(v), "hunter2")
	}
	assert.Equal(t, logrus.ErrorLevel, hook.entries[1].Level)
	httpFields, ok := hook.entries[1].Data["http"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, 500, httpFields["status"])
	assert.Equal(t, "/fail", httpFields["route"])
	assert.Contains(t, hook.entries[1].Data, "latency_ms")
}

func TestErrorHandler_RetryAfterOnRetryableErrors(t *testing.T) {
	app := newTestApp()
	app.Get("/upstream", func(c *fiber.Ctx) error {
		return apperrors.Upstream("Failed to store image", io.ErrUnexpectedEOF)
	})
	app.Get("/timeout", func(c *fiber.Ctx) error {
		return apperrors.NewAppError(apperrors.CodeUpstreamTimeout, "Upstream timeout", nil)
	})
	app.Get("/limited", func(c *fiber.Ctx) error {
		c.Set(fiber.HeaderRetryAfter, "30")
		return apperrors.NewAppError(apperrors.CodeRateLimited, "Rate limit exceeded", nil)
	})
	app.Get("/forbidden", func(c *fiber.Ctx) error {
		return apperrors.Forbidden("not yours")
	})

	tests := []struct {
		path       string
		status     int
		retryAfter string
	}{
		{"/upstream", http.StatusBadGateway, "5"},
		{"/timeout", http.StatusGatewayTimeout, "5"},
		{"/limited", http.StatusTooManyRequests, "30"},
		{"/forbidden", http.StatusForbidden, ""},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, err := app.Test(httptest.NewRequest(http.MethodGet, tt.path, nil))
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, tt.retryAfter, resp.Header.Get(fiber.HeaderRetryAfter))
		})
	}
}
