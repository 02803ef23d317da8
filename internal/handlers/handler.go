// Package handlers adapts HTTP requests to the domain services.
package handlers

import (
	"github.com/campuspulse/campuspulse/internal/realtime"
	"github.com/campuspulse/campuspulse/internal/services"
	"github.com/gorilla/websocket"
	"github.com/juju/loggo"
	"gorm.io/gorm"
)

var logger = loggo.GetLogger("campuspulse.handlers")

type Config struct {
	DB             *gorm.DB
	Service        *services.Service
	Hub            *realtime.Hub
	AllowedOrigins []string
}

type Handler struct {
	db       *gorm.DB
	svc      *services.Service
	hub      *realtime.Hub
	upgrader websocket.Upgrader
}

func New(cfg Config) *Handler {
	return &Handler{
		db:       cfg.DB,
		svc:      cfg.Service,
		hub:      cfg.Hub,
		upgrader: newUpgrader(cfg.AllowedOrigins),
	}
}
