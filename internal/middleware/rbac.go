package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/attendfi/attendfi-api/internal/models"
	appErrors "github.com/attendfi/attendfi-api/pkg/errors"
	"github.com/attendfi/attendfi-api/pkg/response"
)

// RequireRoles enforces role-based access control for routes. The protocol
// admin endpoints use it with models.RoleAdmin.
func RequireRoles(roles ...models.AccountRole) gin.HandlerFunc {
	allowed := make(map[models.AccountRole]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}
	return func(c *gin.Context) {
		claims := Claims(c)
		if claims == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		if _, ok := allowed[claims.Role]; !ok {
			response.Error(c, appErrors.Clone(appErrors.ErrNotAdmin, "insufficient role"))
			c.Abort()
			return
		}
		c.Next()
	}
}
