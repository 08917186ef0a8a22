// Package auth issues and validates API tokens and decides whether an
// identity may call a given route.
package auth

import (
	"errors"
	"fmt"
	"time"

	"crm/internal/model"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	TokenType   = "api"
	TokenAction = "access"
)

var (
	ErrInvalidCredentials = errors.New("could not validate credentials")
	ErrTokenExpired       = errors.New("token has expired")
)

// PermissionClaim is the token copy of a model.Permission.
type PermissionClaim struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
}

// RoleClaim is the token copy of a model.Role.
type RoleClaim struct {
	ID          uuid.UUID         `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Permissions []PermissionClaim `json:"permissions"`
}

// Identity is the authenticated caller as embedded in a token.
type Identity struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
	Role     RoleClaim `json:"role"`
}

// NewIdentity snapshots a user with its preloaded role and permissions.
func NewIdentity(u *model.User) Identity {
	perms := make([]PermissionClaim, 0, len(u.Role.Permissions))
	for _, p := range u.Role.Permissions {
		perms = append(perms, PermissionClaim{ID: p.ID, Name: p.Name, Description: p.Description})
	}
	return Identity{
		ID:       u.ID,
		Username: u.Username,
		Role: RoleClaim{
			ID:          u.Role.ID,
			Name:        u.Role.Name,
			Description: u.Role.Description,
			Permissions: perms,
		},
	}
}

// Permissions returns the permission patterns held by the identity.
func (i Identity) Permissions() []string {
	names := make([]string, 0, len(i.Role.Permissions))
	for _, p := range i.Role.Permissions {
		names = append(names, p.Name)
	}
	return names
}

// HasRole reports whether the identity's role is one of roles.
func (i Identity) HasRole(roles ...string) bool {
	for _, r := range roles {
		if i.Role.Name == r {
			return true
		}
	}
	return false
}

// Claims is the JWT payload.
type Claims struct {
	Type   string    `json:"type"`
	Action string    `json:"action"`
	User   *Identity `json:"user"`
	jwt.RegisteredClaims
}

// TokenService signs and verifies HS256 tokens.
type TokenService struct {
	secretKey []byte
	ttl       time.Duration
	now       func() time.Time
}

func NewTokenService(secret string, ttl time.Duration) *TokenService {
	return &TokenService{
		secretKey: []byte(secret),
		ttl:       ttl,
		now:       time.Now,
	}
}

// WithClock overrides the issue time source.
func (s *TokenService) WithClock(now func() time.Time) *TokenService {
	s.now = now
	return s
}

// TTL is the validity window of issued tokens.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// Issue signs a token for the identity.
func (s *TokenService) Issue(identity Identity) (string, error) {
	now := s.now()
	user := identity
	claims := &Claims{
		Type:   TokenType,
		Action: TokenAction,
		User:   &user,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.ID.String(),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secretKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Authenticate verifies the token and rebuilds the caller identity.
func (s *TokenService) Authenticate(tokenString string) (*Identity, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.secretKey, nil
	}, jwt.WithTimeFunc(s.now))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidCredentials
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidCredentials
	}
	if err := claims.validate(); err != nil {
		return nil, ErrInvalidCredentials
	}
	return claims.User, nil
}

func (c *Claims) validate() error {
	if c.Type != TokenType || c.Action != TokenAction {
		return errors.New("unexpected token type")
	}
	if c.User == nil || c.User.ID == uuid.Nil {
		return errors.New("missing user")
	}
	if c.Subject != c.User.ID.String() {
		return errors.New("subject mismatch")
	}
	if c.User.Username == "" || c.User.Role.Name == "" {
		return errors.New("incomplete user")
	}
	if c.ExpiresAt == nil {
		return errors.New("missing expiry")
	}
	return nil
}
