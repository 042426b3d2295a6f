package middlewares

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tabletap/tabletap/utils"
)

// RequireRoles restricts a staff route to an allow-list of roles.
// Runs after AuthMiddleware, which puts the token's role on the
// context. Admins pass every check.
func RequireRoles(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, exists := c.Get("role")
		if !exists {
			utils.RespondError(c, http.StatusUnauthorized, errors.New("role missing from token"))
			c.Abort()
			return
		}

		if role == "admin" {
			c.Next()
			return
		}
		for _, allowed := range roles {
			if role == allowed {
				c.Next()
				return
			}
		}

		utils.RespondError(c, http.StatusForbidden,
			errors.New(strings.Join(roles, " or ")+" access required"))
		c.Abort()
	}
}
