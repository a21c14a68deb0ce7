package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "unit-test-secret"

func newTestManager(t *testing.T, now *time.Time) *TokenManager {
	t.Helper()
	m, err := NewTokenManager(testSecret, time.Hour, "wallpaper-api")
	require.NoError(t, err)
	return m.WithClock(func() time.Time { return *now })
}

func TestNewTokenManager_RejectsEmptySecret(t *testing.T) {
	for _, secret := range []string{"", "   "} {
		_, err := NewTokenManager(secret, time.Hour, "wallpaper-api")
		assert.ErrorIs(t, err, ErrSecretRequired)
	}

	_, err := NewTokenManager(testSecret, 0, "wallpaper-api")
	assert.Error(t, err)
}

func TestTokenManager_IssueAndVerify(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	m := newTestManager(t, &now)

	token, expiresAt, err := m.Issue("user-1", "alice")
	require.NoError(t, err)
	assert.Equal(t, now.Add(time.Hour), expiresAt)

	claims, err := m.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, "wallpaper-api", claims.Issuer)
}

func TestTokenManager_ExpiryBoundary(t *testing.T) {
	issued := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	now := issued
	m := newTestManager(t, &now)

	token, _, err := m.Issue("user-1", "alice")
	require.NoError(t, err)

	now = issued.Add(59 * time.Minute)
	_, err = m.Verify(token)
	assert.NoError(t, err, "token must still be valid at T+59m")

	now = issued.Add(61 * time.Minute)
	_, err = m.Verify(token)
	assert.ErrorIs(t, err, ErrTokenExpired, "token must be rejected at T+61m")
}

func TestTokenManager_InvalidSignature(t *testing.T) {
	now := time.Now()
	m := newTestManager(t, &now)

	other, err := NewTokenManager("another-secret", time.Hour, "wallpaper-api")
	require.NoError(t, err)
	token, _, err := other.Issue("user-1", "alice")
	require.NoError(t, err)

	_, err = m.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidSignature)

	// replace the first signature character; the last one carries padding bits
	good, _, err := m.Issue("user-1", "alice")
	require.NoError(t, err)
	parts := strings.Split(good, ".")
	require.Len(t, parts, 3)
	replacement := "A"
	if parts[2][0] == 'A' {
		replacement = "B"
	}
	parts[2] = replacement + parts[2][1:]
	_, err = m.Verify(strings.Join(parts, "."))
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestTokenManager_RejectsOtherAlgorithms(t *testing.T) {
	now := time.Now()
	m := newTestManager(t, &now)

	claims := Claims{
		UserID: "user-1",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			Issuer:    "wallpaper-api",
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = m.Verify(unsigned)
	assert.ErrorIs(t, err, ErrInvalidSignature)

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	_, err = m.Verify(hs512)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestTokenManager_Malformed(t *testing.T) {
	now := time.Now()
	m := newTestManager(t, &now)

	for _, token := range []string{"", "not-a-token", "a.b.c", strings.Repeat("x", 40)} {
		_, err := m.Verify(token)
		assert.ErrorIs(t, err, ErrMalformedToken, "token %q", token)
	}
}

func TestTokenManager_RequiresExpiryAndSubject(t *testing.T) {
	now := time.Now()
	m := newTestManager(t, &now)

	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID:           "user-1",
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1", Issuer: "wallpaper-api"},
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	_, err = m.Verify(noExp)
	assert.ErrorIs(t, err, ErrMalformedToken)

	noUser, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "wallpaper-api",
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	_, err = m.Verify(noUser)
	assert.ErrorIs(t, err, ErrMalformedToken)
}

func TestTokenManager_IssueRequiresUserID(t *testing.T) {
	now := time.Now()
	m := newTestManager(t, &now)

	_, _, err := m.Issue("", "alice")
	assert.Error(t, err)
}
