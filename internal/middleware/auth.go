package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"matatu/internal/domain"
)

const principalKey = "principal"

// TokenParser verifies an access token. *auth.TokenManager satisfies it.
type TokenParser interface {
	Parse(token string) (domain.Principal, error)
}

// AuthMiddleware requires a valid bearer token and stores the principal in
// the gin context.
func AuthMiddleware(tokens TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := parseBearer(c, tokens)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
			return
		}
		c.Set(principalKey, p)
		c.Next()
	}
}

// OptionalAuth stores the principal when a valid bearer token is present
// and lets the request through either way.
func OptionalAuth(tokens TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		if p, ok := parseBearer(c, tokens); ok {
			c.Set(principalKey, p)
		}
		c.Next()
	}
}

func parseBearer(c *gin.Context, tokens TokenParser) (domain.Principal, bool) {
	header := c.GetHeader("Authorization")
	token, found := strings.CutPrefix(header, "Bearer ")
	if !found || strings.TrimSpace(token) == "" {
		return domain.Principal{}, false
	}

	p, err := tokens.Parse(strings.TrimSpace(token))
	if err != nil {
		return domain.Principal{}, false
	}
	return p, true
}

// PrincipalFrom returns the principal stored by AuthMiddleware or
// OptionalAuth. The zero principal means anonymous.
func PrincipalFrom(c *gin.Context) domain.Principal {
	if v, ok := c.Get(principalKey); ok {
		if p, ok := v.(domain.Principal); ok {
			return p
		}
	}
	return domain.Principal{}
}
