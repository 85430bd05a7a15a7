// internal/middleware/auth.go
package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/crm-governance/internal/authority"
	"github.com/javajoker/crm-governance/internal/i18n"
	"github.com/javajoker/crm-governance/internal/utils"
)

// AuthRequired resolves the acting user from a bearer JWT. Tokens without a
// tenant fall back to defaultTenant.
func AuthRequired(defaultTenant string) gin.HandlerFunc {
	return func(c *gin.Context) {
		lang := utils.GetLangFromContext(c)

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			utils.UnauthorizedResponse(c, i18n.T(lang, i18n.KeyAuthRequired))
			c.Abort()
			return
		}

		// Extract token from "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			utils.UnauthorizedResponse(c, i18n.T(lang, i18n.KeyAuthInvalidToken))
			c.Abort()
			return
		}

		claims, err := utils.ValidateJWT(parts[1])
		if err != nil {
			utils.UnauthorizedResponse(c, i18n.T(lang, i18n.KeyAuthTokenExpired))
			c.Abort()
			return
		}

		actor, err := claims.Actor(defaultTenant)
		if err != nil {
			logrus.WithError(err).Debug("Rejected token claims")
			utils.UnauthorizedResponse(c, i18n.T(lang, i18n.KeyAuthInvalidToken))
			c.Abort()
			return
		}

		// Set user info in context
		utils.SetActor(c, actor)
		c.Set("username", actor.Username)
		c.Next()
	}
}

// PolicyAdminRequired admits only the top authority level.
func PolicyAdminRequired(roles *authority.Hierarchy) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := utils.GetActorFromContext(c)
		if !ok || !roles.IsTop(actor) {
			utils.ForbiddenResponse(c, "")
			c.Abort()
			return
		}
		c.Next()
	}
}
