package middlewares

import (
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/tnqbao/gau-document-gateway/config"
	"github.com/tnqbao/gau-document-gateway/http/controller"
	"github.com/tnqbao/gau-document-gateway/identity"
	"github.com/tnqbao/gau-document-gateway/infra"
	"github.com/tnqbao/gau-document-gateway/utils"
)

// TokenChecker confirms with the issuer that a token has not been revoked.
type TokenChecker interface {
	CheckAccessToken(token string) error
}

// AuthMiddleware verifies the access token and attaches the caller's
// identity.Context to both the gin context and the request context. A nil
// checker skips the remote revocation check.
func AuthMiddleware(checker TokenChecker, classifier identity.Classifier, logger *infra.LoggerClient, config *config.EnvConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		tokenStr := utils.ExtractToken(c)
		if tokenStr == "" {
			utils.JSON401(c, "Authorization token is required")
			c.Abort()
			return
		}

		if checker != nil {
			if err := checker.CheckAccessToken(tokenStr); err != nil {
				logger.WarningWithContextf(ctx, "[Auth] Remote token check failed: %v", err)
				utils.JSON401(c, "Invalid or expired token")
				c.Abort()
				return
			}
		}

		parsedToken, err := utils.ParseToken(tokenStr, config)
		if err != nil || !parsedToken.Valid {
			logger.WarningWithContextf(ctx, "[Auth] Token parse failed: %v", err)
			utils.JSON401(c, "Invalid token")
			c.Abort()
			return
		}

		claims, ok := parsedToken.Claims.(jwt.MapClaims)
		if !ok {
			utils.JSON401(c, "Invalid token claims")
			c.Abort()
			return
		}

		userID, err := utils.UserIDFromClaims(claims)
		if err != nil {
			utils.JSON401(c, "Invalid claims")
			c.Abort()
			return
		}

		caller := identity.New(userID, claims, tokenStr, classifier)
		c.Set("user_id", userID)
		c.Set("permission", caller.Permission())
		c.Set(controller.IdentityKey, caller)
		c.Request = c.Request.WithContext(identity.WithContext(ctx, caller))

		c.Next()
	}
}
