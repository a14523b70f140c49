package middleware

import (
	"krisbot/chat-api/internal/model"
	"krisbot/chat-api/pkg/security"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// NewJWTMiddleware guards protected routes. It expects an
// "Authorization: Bearer <token>" header, verifies signature and expiry
// and resolves the token back to an existing, active user. The user id
// ends up in the context as userID.
func NewJWTMiddleware(d *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.MustGet("requestID").(string)

		tokenStr := extractBearer(c.GetHeader("Authorization"))
		if tokenStr == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":     "Authorization required",
				"requestID": requestID,
			})
			return
		}

		claims, err := security.ParseToken(tokenStr, []byte(viper.GetString("jwt.secret")))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":     "Invalid or expired token",
				"requestID": requestID,
			})
			return
		}

		// Token may outlive the account, so confirm the user still exists
		var user model.User
		err = d.Where("id = ?", claims.UserID).First(&user).Error
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
					"error":     "Invalid or expired token",
					"requestID": requestID,
				})
				return
			}

			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error":     "Internal server error",
				"requestID": requestID,
			})

			zap.L().Error("Failed to check if user exists", zap.Error(err), zap.String("requestID", requestID))
			return
		}

		if !user.IsActive {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":     "Account is deactivated",
				"requestID": requestID,
			})
			return
		}

		c.Set("userID", user.ID)
		c.Next()
	}
}

func extractBearer(header string) string {
	if !strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}
