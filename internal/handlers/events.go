package handlers

import (
	"net/http"

	"github.com/campuspulse/campuspulse/internal/services"
	"github.com/campuspulse/campuspulse/internal/utils"
	"github.com/gin-gonic/gin"
)

func (h *Handler) ListEvents(ctx *gin.Context) {
	filter := services.EventFilter{
		Category: ctx.Query("category"),
		College:  ctx.Query("college"),
		Status:   ctx.Query("status"),
		Search:   ctx.Query("search"),
	}

	page, err := h.svc.ListEvents(ctx.Request.Context(), filter, utils.ParsePagination(ctx))
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, page)
}

func (h *Handler) GetEvent(ctx *gin.Context) {
	id, err := utils.ParseID(ctx, "id")
	if err != nil {
		respondError(ctx, err)
		return
	}

	event, err := h.svc.GetEvent(ctx.Request.Context(), id, utils.GetCurrentUserID(ctx))
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, event)
}

func (h *Handler) CreateEvent(ctx *gin.Context) {
	actor, err := utils.GetActor(ctx)
	if err != nil {
		respondError(ctx, err)
		return
	}

	var in services.EventInput
	if err := ctx.ShouldBindJSON(&in); err != nil {
		badRequest(ctx, "Invalid request body")
		return
	}

	event, err := h.svc.CreateEvent(ctx.Request.Context(), actor, in)
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, event)
}

func (h *Handler) UpdateEvent(ctx *gin.Context) {
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

	var patch services.EventPatch
	if err := ctx.ShouldBindJSON(&patch); err != nil {
		badRequest(ctx, "Invalid request body")
		return
	}

	event, err := h.svc.UpdateEvent(ctx.Request.Context(), id, actor, patch)
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, event)
}

func (h *Handler) DeleteEvent(ctx *gin.Context) {
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

	if err := h.svc.DeleteEvent(ctx.Request.Context(), id, actor); err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"message": "Event deleted successfully"})
}

func (h *Handler) JoinEvent(ctx *gin.Context) {
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

	reg, err := h.svc.JoinEvent(ctx.Request.Context(), id, actor)
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, reg)
}

func (h *Handler) LeaveEvent(ctx *gin.Context) {
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

	count, err := h.svc.LeaveEvent(ctx.Request.Context(), id, actor)
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"message": "Left event successfully", "participantCount": count})
}

func (h *Handler) ListParticipants(ctx *gin.Context) {
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

	participants, err := h.svc.ListParticipants(ctx.Request.Context(), id, actor)
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, participants)
}

func (h *Handler) MyEvents(ctx *gin.Context) {
	actor, err := utils.GetActor(ctx)
	if err != nil {
		respondError(ctx, err)
		return
	}

	events, err := h.svc.ListMyEvents(ctx.Request.Context(), actor)
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, events)
}

func (h *Handler) OrganizedEvents(ctx *gin.Context) {
	actor, err := utils.GetActor(ctx)
	if err != nil {
		respondError(ctx, err)
		return
	}

	events, err := h.svc.ListOrganizedEvents(ctx.Request.Context(), actor)
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, events)
}
