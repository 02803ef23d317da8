package utils

import (
	"strconv"

	"github.com/campuspulse/campuspulse/internal/authz"
	"github.com/campuspulse/campuspulse/internal/middleware"
	"github.com/campuspulse/campuspulse/internal/types"
	"github.com/gin-gonic/gin"
	"github.com/juju/errors"
)

func GetCurrentUser(ctx *gin.Context) (middleware.AuthenticatedUser, error) {
	user, exists := ctx.Get(types.ContextUserKey)

	if !exists {
		return middleware.AuthenticatedUser{}, errors.NewUnauthorized(nil, "Not authorized")
	}

	authenticatedUser, ok := user.(middleware.AuthenticatedUser)

	if !ok {
		return middleware.AuthenticatedUser{}, errors.NewUnauthorized(nil, "Not authorized")
	}

	return authenticatedUser, nil
}

// GetCurrentUserID returns 0 for anonymous requests.
func GetCurrentUserID(ctx *gin.Context) uint {
	user, err := GetCurrentUser(ctx)

	if err != nil {
		return 0
	}

	return user.ID
}

// GetActor returns the authenticated caller as an authorization actor.
func GetActor(ctx *gin.Context) (authz.Actor, error) {
	user, err := GetCurrentUser(ctx)

	if err != nil {
		return authz.Actor{}, err
	}

	return authz.Actor{ID: user.ID, Role: user.Role}, nil
}

// ParseID reads a positive numeric path parameter.
func ParseID(ctx *gin.Context, name string) (uint, error) {
	return ParseIDString(ctx.Param(name))
}

// ParseIDString accepts the decimal form of a positive id.
func ParseIDString(s string) (uint, error) {
	id, err := strconv.ParseUint(s, 10, 64)

	if err != nil || id == 0 {
		return 0, errors.NewNotFound(nil, "Resource not found")
	}

	return uint(id), nil
}
