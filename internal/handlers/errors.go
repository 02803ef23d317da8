package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/juju/errors"
)

const serverError = "Server Error"

// statusFor maps an error kind to its HTTP status. Unknown kinds are 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errors.NotValid),
		errors.Is(err, errors.AlreadyExists),
		errors.Is(err, errors.QuotaLimitExceeded),
		errors.Is(err, errors.NotSupported):
		return http.StatusBadRequest
	case errors.Is(err, errors.Unauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, errors.Forbidden):
		return http.StatusForbidden
	case errors.Is(err, errors.NotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// respondError renders err as {"message": ...}. Unexpected errors are
// logged with their trace and reach the client only as "Server Error".
func respondError(ctx *gin.Context, err error) {
	status := statusFor(err)

	if status == http.StatusInternalServerError {
		logger.Errorf("%s %s: %s", ctx.Request.Method, ctx.FullPath(), errors.ErrorStack(err))
		ctx.AbortWithStatusJSON(status, gin.H{"message": serverError})
		return
	}

	ctx.AbortWithStatusJSON(status, gin.H{"message": err.Error()})
}

func badRequest(ctx *gin.Context, msg string) {
	ctx.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": msg})
}
