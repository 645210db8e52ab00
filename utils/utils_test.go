package utils

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRefreshCookieCoversAuthRoutes(t *testing.T) {
	cookie := RefreshCookie("tok", time.Hour)

	assert.Equal(t, "refreshToken", cookie.Name)
	assert.Equal(t, 3600, cookie.MaxAge)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, http.SameSiteNoneMode, cookie.SameSite)

	// the browser must send the cookie to refresh and to logout, and
	// the clear path must match the set path
	assert.Equal(t, refreshCookiePath, cookie.Path)
	for _, route := range []string{"/auth/refresh", "/auth/logout"} {
		assert.True(t, strings.HasPrefix(route, cookie.Path), route)
	}
}

func TestMaskEmail(t *testing.T) {
	assert.Equal(t, "k***@example.com", MaskEmail("karim@example.com"))
	assert.Equal(t, "a***@mail.co", MaskEmail("a@mail.co"))
	assert.Equal(t, "", MaskEmail(""))
	assert.Equal(t, "", MaskEmail("not-an-email"))
	assert.Equal(t, "", MaskEmail("@nodomain.com"))
}

func TestGenerateSlug(t *testing.T) {
	assert.Equal(t, "passeport-francais", GenerateSlug("Passeport Français"))
	assert.Equal(t, "bank-statement", GenerateSlug("  Bank Statement!  "))
	assert.Equal(t, "releve-d-identite", GenerateSlug("Relevé d'identité"))
	assert.Equal(t, "", GenerateSlug("***"))
}

func TestParseIntDefault(t *testing.T) {
	assert.Equal(t, 7, ParseIntDefault("7", 1))
	assert.Equal(t, 1, ParseIntDefault("", 1))
	assert.Equal(t, 1, ParseIntDefault("abc", 1))
	assert.Equal(t, -3, ParseIntDefault("-3", 1))
}

func TestPasswordHashRoundTrip(t *testing.T) {
	hash, err := HashPassword("s3cret-passw0rd")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret-passw0rd", hash)

	assert.NoError(t, CheckPassword(hash, "s3cret-passw0rd"))
	assert.Error(t, CheckPassword(hash, "wrong"))
}

func TestAccessTokenRoundTrip(t *testing.T) {
	t.Setenv("JWT_SECRET", "unit-test-secret")

	token, err := GenerateAccessToken("651fa1d0c0ffee0000000001", "agent@miravisas.com", "AGENT", AccessTTL())
	require.NoError(t, err)

	claims, err := ValidateToken(token, "unit-test-secret")
	require.NoError(t, err)
	assert.Equal(t, "651fa1d0c0ffee0000000001", claims.UserID)
	assert.Equal(t, "agent@miravisas.com", claims.Email)
	assert.Equal(t, "AGENT", claims.Role)

	_, err = ValidateToken(token, "a-different-secret")
	assert.Error(t, err)
}

func TestBuildObjectName(t *testing.T) {
	name := BuildObjectName("documents", "651fa1d0c0ffee0000000001", "Passeport Français", "scan.PDF")

	assert.True(t, strings.HasPrefix(name, "documents/651fa1d0c0ffee0000000001/passeport-francais/"))
	assert.True(t, strings.HasSuffix(name, ".pdf"))

	// extension-less files still get a usable object name
	name = BuildObjectName("receipts", "651fa1d0c0ffee0000000001", "", "receipt")
	assert.Contains(t, name, "/file/")
	assert.True(t, strings.HasSuffix(name, ".bin"))

	other := BuildObjectName("documents", "651fa1d0c0ffee0000000001", "Passeport Français", "scan.PDF")
	assert.NotEqual(t, name, other)
}

func TestAccessTTLDefaults(t *testing.T) {
	t.Setenv("ACCESS_TOKEN_TTL_MINUTES", "")
	assert.Equal(t, "15m0s", AccessTTL().String())

	t.Setenv("ACCESS_TOKEN_TTL_MINUTES", "30")
	assert.Equal(t, "30m0s", AccessTTL().String())
}
