package utils

import (
	"strconv"
	"strings"

	"github.com/campuspulse/campuspulse/internal/types"
	"github.com/gin-gonic/gin"
)

// ParsePagination reads page and limit (or per_page) from the query string.
// Bad or missing values fall back to the defaults; limit is capped.
func ParsePagination(ctx *gin.Context) types.PageParams {
	page := atoiDefault(ctx.Query("page"), types.DefaultPage)
	if page < 1 {
		page = types.DefaultPage
	}

	limit := atoiDefault(firstNonEmpty(ctx.Query("limit"), ctx.Query("per_page")), types.DefaultPageSize)
	if limit < 1 {
		limit = types.DefaultPageSize
	}
	if limit > types.MaxPageSize {
		limit = types.MaxPageSize
	}

	return types.PageParams{Page: page, Limit: limit}
}

func atoiDefault(s string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return def
	}
	return n
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
