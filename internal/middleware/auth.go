package middleware

import (
	"net/http"
	"strings"

	"github.com/campuspulse/campuspulse/internal/auth"
	"github.com/campuspulse/campuspulse/internal/models"
	"github.com/campuspulse/campuspulse/internal/types"
	"github.com/gin-gonic/gin"
	"github.com/juju/loggo"
	"gorm.io/gorm"
)

var logger = loggo.GetLogger("campuspulse.middleware")

type AuthenticatedUser struct {
	ID      uint   `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Role    string `json:"role"`
	College string `json:"college"`
}

// authenticate resolves the bearer token to a user. The returned message
// is empty on success.
func authenticate(ctx *gin.Context, db *gorm.DB) (AuthenticatedUser, string) {
	authHeader := ctx.GetHeader("Authorization")

	if authHeader == "" {
		return AuthenticatedUser{}, "Not authorized, no token"
	}

	parts := strings.SplitN(authHeader, " ", 2)

	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return AuthenticatedUser{}, "Authorization header format must be Bearer {token}"
	}

	claims, err := auth.VerifyJWT(parts[1])

	if err != nil {
		return AuthenticatedUser{}, "Not authorized, token failed"
	}

	var user models.User

	if err := db.WithContext(ctx.Request.Context()).First(&user, claims.UserID).Error; err != nil {
		return AuthenticatedUser{}, "Not authorized, user not found"
	}

	return AuthenticatedUser{
		ID:      user.ID,
		Name:    user.Name,
		Email:   user.Email,
		Role:    user.Role,
		College: user.College,
	}, ""
}

func AuthMiddleware(db *gorm.DB) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		user, msg := authenticate(ctx, db)

		if msg != "" {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": msg})
			return
		}

		ctx.Set(types.ContextUserKey, user)
		ctx.Next()
	}
}

// OptionalAuth sets the user when a valid token is present and lets the
// request through either way.
func OptionalAuth(db *gorm.DB) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if ctx.GetHeader("Authorization") == "" {
			ctx.Next()
			return
		}

		user, msg := authenticate(ctx, db)

		if msg != "" {
			logger.Debugf("ignoring credentials on %s: %s", ctx.FullPath(), msg)
		} else {
			ctx.Set(types.ContextUserKey, user)
		}

		ctx.Next()
	}
}

// RequireRoles must run after AuthMiddleware.
func RequireRoles(roles ...string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		value, exists := ctx.Get(types.ContextUserKey)
		user, ok := value.(AuthenticatedUser)

		if !exists || !ok {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Not authorized"})
			return
		}

		for _, role := range roles {
			if user.Role == role {
				ctx.Next()
				return
			}
		}

		ctx.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"message": "User role " + user.Role + " is not authorized to access this route",
		})
	}
}
