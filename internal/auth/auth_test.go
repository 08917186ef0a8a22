package auth_test

import (
	"testing"
	"time"

	"crm/internal/auth"
	"crm/internal/model"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testIdentity() auth.Identity {
	user := &model.User{
		ID:       uuid.New(),
		Username: "admin@example.com",
		Role: model.Role{
			ID:          uuid.New(),
			Name:        "Admin",
			Description: "Administrator",
			Permissions: []model.Permission{
				{ID: uuid.New(), Name: "GET:/users/me/", Description: "Permission to GET:/users/me/"},
				{ID: uuid.New(), Name: "GET:/users/*/", Description: "Permission to GET:/users/*/"},
			},
		},
	}
	return auth.NewIdentity(user)
}

func TestTokenRoundTrip(t *testing.T) {
	svc := auth.NewTokenService("secret", 72*time.Hour)
	identity := testIdentity()

	token, err := svc.Issue(identity)
	require.NoError(t, err)

	got, err := svc.Authenticate(token)
	require.NoError(t, err)
	assert.Equal(t, identity.ID, got.ID)
	assert.Equal(t, identity.Username, got.Username)
	assert.Equal(t, identity.Role.Name, got.Role.Name)
	assert.ElementsMatch(t, identity.Permissions(), got.Permissions())
}

func TestTokenExpired(t *testing.T) {
	issuedAt := time.Now().Add(-4 * 24 * time.Hour)
	issuer := auth.NewTokenService("secret", 72*time.Hour).WithClock(func() time.Time { return issuedAt })
	token, err := issuer.Issue(testIdentity())
	require.NoError(t, err)

	_, err = auth.NewTokenService("secret", 72*time.Hour).Authenticate(token)
	assert.ErrorIs(t, err, auth.ErrTokenExpired)
}

func TestTokenWrongSecret(t *testing.T) {
	token, err := auth.NewTokenService("secret", time.Hour).Issue(testIdentity())
	require.NoError(t, err)

	_, err = auth.NewTokenService("other", time.Hour).Authenticate(token)
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
}

func TestTokenMalformed(t *testing.T) {
	_, err := auth.NewTokenService("secret", time.Hour).Authenticate("not.a.token")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
}

func TestTokenSchemaValidation(t *testing.T) {
	now := time.Now()
	identity := testIdentity()

	cases := map[string]*auth.Claims{
		"missing user": {
			Type: auth.TokenType, Action: auth.TokenAction,
			RegisteredClaims: jwt.RegisteredClaims{Subject: identity.ID.String(), ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour))},
		},
		"subject mismatch": {
			Type: auth.TokenType, Action: auth.TokenAction, User: &identity,
			RegisteredClaims: jwt.RegisteredClaims{Subject: uuid.NewString(), ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour))},
		},
		"wrong type": {
			Type: "refresh", Action: auth.TokenAction, User: &identity,
			RegisteredClaims: jwt.RegisteredClaims{Subject: identity.ID.String(), ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour))},
		},
		"no expiry": {
			Type: auth.TokenType, Action: auth.TokenAction, User: &identity,
			RegisteredClaims: jwt.RegisteredClaims{Subject: identity.ID.String()},
		},
	}

	svc := auth.NewTokenService("secret", time.Hour)
	for name, claims := range cases {
		t.Run(name, func(t *testing.T) {
			signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
			require.NoError(t, err)

			_, err = svc.Authenticate(signed)
			assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
		})
	}
}

func TestTokenRejectsNonHMAC(t *testing.T) {
	identity := testIdentity()
	claims := &auth.Claims{
		Type: auth.TokenType, Action: auth.TokenAction, User: &identity,
		RegisteredClaims: jwt.RegisteredClaims{Subject: identity.ID.String(), ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = auth.NewTokenService("secret", time.Hour).Authenticate(signed)
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
}

func TestRequestKeyNormalizesTrailingSlash(t *testing.T) {
	assert.Equal(t, "GET:/leads/", auth.RequestKey("get", "/leads"))
	assert.Equal(t, "GET:/leads/", auth.RequestKey("GET", "/leads/"))
	assert.Equal(t, "POST:/", auth.RequestKey("POST", ""))
}

func TestAuthorize(t *testing.T) {
	perms := []string{"GET:/leads/", "GET:/leads/*/", "PUT:/quotations/*/status/", "POST:/roles/*/permissions/*/"}

	cases := []struct {
		method, path string
		want         bool
	}{
		{"GET", "/leads", true},
		{"GET", "/leads/7b0c", true},
		{"DELETE", "/leads/7b0c", false},
		{"GET", "/leads/7b0c/status", false},
		{"PUT", "/quotations/42/status", true},
		{"PUT", "/quotations/42/line-items", false},
		{"POST", "/roles/1/permissions/2", true},
		{"GET", "/users/me", false},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, auth.Authorize(c.method, c.path, perms), "%s %s", c.method, c.path)
	}
}

func TestAuthorizeSubstringWildcard(t *testing.T) {
	assert.True(t, auth.Authorize("GET", "/audit-logs", []string{"GET:/audit-*/"}))
	assert.True(t, auth.Authorize("DELETE", "/leads/1", []string{"*:/leads/*/"}))
}

func TestAuthorizeFailsClosed(t *testing.T) {
	assert.False(t, auth.Authorize("GET", "/leads", nil))
	assert.False(t, auth.Authorize("GET", "/leads", []string{"GET:/leads/[/"}))
}

func TestAuthorizeIsOrderIndependent(t *testing.T) {
	perms := []string{"GET:/users/me/", "PUT:/leads/*/", "GET:/audit-logs/*/", "POST:/quotations/"}
	keys := [][2]string{
		{"GET", "/users/me"}, {"PUT", "/leads/1"}, {"GET", "/audit-logs/9"},
		{"POST", "/quotations"}, {"DELETE", "/quotations/1"}, {"GET", "/roles"},
	}

	for _, k := range keys {
		want := auth.Authorize(k[0], k[1], perms)
		for shift := 1; shift < len(perms); shift++ {
			rotated := append(append([]string{}, perms[shift:]...), perms[:shift]...)
			assert.Equal(t, want, auth.Authorize(k[0], k[1], rotated), "%v rotated by %d", k, shift)
		}
	}
}

func TestPassword(t *testing.T) {
	hash, err := auth.HashPassword("admin123")
	require.NoError(t, err)

	assert.True(t, auth.CheckPassword("admin123", hash))
	assert.False(t, auth.CheckPassword("admin124", hash))
}
