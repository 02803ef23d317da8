package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/campuspulse/campuspulse/internal/utils"
	"github.com/gin-gonic/gin"
)

// Ids arrive as numbers or numeric strings, as QR payloads carry them.
type MarkAttendanceRequest struct {
	EventID json.Number `json:"eventId"`
	UserID  json.Number `json:"userId"`
	Method  string      `json:"method"`
}

type VerifyQRRequest struct {
	EventID json.Number `json:"eventId"`
}

func bodyID(n json.Number) (uint, bool) {
	id, err := utils.ParseIDString(n.String())
	return id, err == nil
}

func (h *Handler) MarkAttendance(ctx *gin.Context) {
	actor, err := utils.GetActor(ctx)
	if err != nil {
		respondError(ctx, err)
		return
	}

	var req MarkAttendanceRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx, "Invalid request body")
		return
	}

	eventID, ok := bodyID(req.EventID)
	if !ok {
		badRequest(ctx, "eventId is required")
		return
	}
	userID, ok := bodyID(req.UserID)
	if !ok {
		badRequest(ctx, "userId is required")
		return
	}

	record, err := h.svc.MarkAttendance(ctx.Request.Context(), eventID, userID, actor, req.Method)
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, record)
}

func (h *Handler) EventAttendance(ctx *gin.Context) {
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

	records, err := h.svc.EventAttendance(ctx.Request.Context(), id, actor)
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, records)
}

func (h *Handler) AttendanceHistory(ctx *gin.Context) {
	actor, err := utils.GetActor(ctx)
	if err != nil {
		respondError(ctx, err)
		return
	}

	records, err := h.svc.AttendanceHistory(ctx.Request.Context(), actor)
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, records)
}

func (h *Handler) VerifyQR(ctx *gin.Context) {
	actor, err := utils.GetActor(ctx)
	if err != nil {
		respondError(ctx, err)
		return
	}

	var req VerifyQRRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx, "Invalid QR code")
		return
	}

	eventID, ok := bodyID(req.EventID)
	if !ok {
		badRequest(ctx, "Invalid QR code")
		return
	}

	result, err := h.svc.VerifyQR(ctx.Request.Context(), eventID, actor)
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, result)
}
