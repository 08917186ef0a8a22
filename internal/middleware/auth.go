package middleware

import (
	"errors"
	"net/http"
	"strings"

	"crm/internal/auth"
	"crm/pkg/response"

	"github.com/gin-gonic/gin"
)

const (
	identityKey  = "identity"
	authErrorKey = "authError"
)

// Authenticate resolves a bearer token into the caller identity. A missing or
// invalid token leaves the request anonymous; RequirePermission decides what
// anonymous callers may do.
func Authenticate(tokens *auth.TokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if tokenString := bearerToken(c.GetHeader("Authorization")); tokenString != "" {
			identity, err := tokens.Authenticate(tokenString)
			if err != nil {
				c.Set(authErrorKey, err)
			} else {
				c.Set(identityKey, identity)
			}
		}
		c.Next()
	}
}

// RequirePermission rejects anonymous callers with 401 and callers whose
// permissions do not match "METHOD:/path/" with 403.
func RequirePermission() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := CurrentIdentity(c)
		if identity == nil {
			msg := "Not authenticated"
			if v, ok := c.Get(authErrorKey); ok {
				if err, ok := v.(error); ok && errors.Is(err, auth.ErrTokenExpired) {
					msg = "Token has expired"
				} else {
					msg = "Could not validate credentials"
				}
			}
			c.Header("WWW-Authenticate", "Bearer")
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, msg))
			return
		}

		if !auth.Authorize(c.Request.Method, c.Request.URL.Path, identity.Permissions()) {
			c.AbortWithStatusJSON(http.StatusForbidden, response.Error(http.StatusForbidden, "Permission denied"))
			return
		}

		c.Next()
	}
}

// CurrentIdentity returns the authenticated caller, or nil for anonymous requests.
func CurrentIdentity(c *gin.Context) *auth.Identity {
	v, ok := c.Get(identityKey)
	if !ok {
		return nil
	}
	identity, _ := v.(*auth.Identity)
	return identity
}

func bearerToken(header string) string {
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}
