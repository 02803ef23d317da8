package handlers

import (
	"net/http"
	"strconv"

	"github.com/campuspulse/campuspulse/internal/services"
	"github.com/campuspulse/campuspulse/internal/utils"
	"github.com/gin-gonic/gin"
)

func (h *Handler) Dashboard(ctx *gin.Context) {
	actor, err := utils.GetActor(ctx)
	if err != nil {
		respondError(ctx, err)
		return
	}

	dashboard, err := h.svc.Dashboard(ctx.Request.Context(), actor)
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dashboard)
}

func (h *Handler) Trends(ctx *gin.Context) {
	actor, err := utils.GetActor(ctx)
	if err != nil {
		respondError(ctx, err)
		return
	}

	days := services.DefaultTrendDays
	if raw := ctx.Query("days"); raw != "" {
		days, err = strconv.Atoi(raw)
		if err != nil {
			badRequest(ctx, "days must be a number")
			return
		}
	}

	trends, err := h.svc.Trends(ctx.Request.Context(), actor, days)
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, trends)
}

func (h *Handler) EventAnalytics(ctx *gin.Context) {
	actor, err := utils.GetActor(ctx)
	if err != nil {
		respondError(ctx, err)
		return
	}

	id, err := utils.ParseID(ctx, "id")
	if err != nil {
		respondError(ctx, err)
		return
	}

	analytics, err := h.svc.EventAnalytics(ctx.Request.Context(), id, actor)
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, analytics)
}

func (h *Handler) Export(ctx *gin.Context) {
	actor, err := utils.GetActor(ctx)
	if err != nil {
		respondError(ctx, err)
		return
	}

	data, err := h.svc.Export(ctx.Request.Context(), actor, ctx.Param("type"))
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, data)
}
