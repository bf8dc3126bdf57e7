package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"knowledgehub/internal/access"
	"knowledgehub/internal/pkg/jwtutil"
	"knowledgehub/internal/transport/http/response"
)

const ContextPrincipalKey = "principal"

// AuthJWT verifies the bearer token minted by the auth collaborator and
// stores the resulting Principal in the request context.
func AuthJWT(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
		if authHeader == "" {
			response.Error(c, 401, "missing authorization header")
			c.Abort()
			return
		}

		const prefix = "Bearer "
		if !strings.HasPrefix(authHeader, prefix) {
			response.Error(c, 401, "invalid authorization scheme")
			c.Abort()
			return
		}

		token := strings.TrimSpace(strings.TrimPrefix(authHeader, prefix))
		claims, err := jwtutil.ParseToken(secret, token)
		if err != nil {
			response.Error(c, 401, "invalid or expired token")
			c.Abort()
			return
		}

		c.Set(ContextPrincipalKey, claims.Principal())
		c.Next()
	}
}

// PrincipalFromContext extracts the Principal stored by AuthJWT.
func PrincipalFromContext(c *gin.Context) (access.Principal, bool) {
	v, ok := c.Get(ContextPrincipalKey)
	if !ok {
		return access.Principal{}, false
	}
	p, ok := v.(access.Principal)
	return p, ok
}
