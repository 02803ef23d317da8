package router

import (
	"time"

	"github.com/campuspulse/campuspulse/internal/handlers"
	"github.com/campuspulse/campuspulse/internal/middleware"
	"github.com/campuspulse/campuspulse/internal/types"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/juju/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

type Config struct {
	DB             *gorm.DB
	Handler        *handlers.Handler
	Gatherer       prometheus.Gatherer
	AuthLimiter    *middleware.RateLimiter
	AllowedOrigins []string
}

// NewRouter builds the API. AuthLimiter is required; its owner stops it.
func NewRouter(cfg Config) (*gin.Engine, error) {
	if cfg.AuthLimiter == nil {
		return nil, errors.NotValidf("nil AuthLimiter")
	}

	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery(), middleware.RequestID())

	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept", "X-Requested-With", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	h := cfg.Handler
	authenticated := middleware.AuthMiddleware(cfg.DB)
	staff := middleware.RequireRoles(types.RoleOrganizer, types.RoleAdmin)
	admin := middleware.RequireRoles(types.RoleAdmin)

	api := r.Group("/api")
	{
		api.GET("/health", h.HealthCheck)
		api.GET("/ws", h.WebSocket)
		if cfg.Gatherer != nil {
			api.GET("/metrics", gin.WrapH(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
		}

		auth := api.Group("/auth")
		{
			limited := auth.Group("", middleware.RateLimit(cfg.AuthLimiter))
			limited.POST("/register", h.Register)
			limited.POST("/login", h.Login)
			auth.GET("/me", authenticated, h.Me)
		}

		events := api.Group("/events")
		{
			events.GET("", h.ListEvents)
			events.POST("", authenticated, staff, h.CreateEvent)
			events.GET("/my-events", authenticated, h.MyEvents)
			events.GET("/organized", authenticated, staff, h.OrganizedEvents)
			events.GET("/:id", middleware.OptionalAuth(cfg.DB), h.GetEvent)
			events.PUT("/:id", authenticated, staff, h.UpdateEvent)
			events.DELETE("/:id", authenticated, staff, h.DeleteEvent)
			events.POST("/:id/join", authenticated, h.JoinEvent)
			events.DELETE("/:id/leave", authenticated, h.LeaveEvent)
			events.GET("/:id/participants", authenticated, staff, h.ListParticipants)
		}

		attendance := api.Group("/attendance", authenticated)
		{
			attendance.POST("/mark", staff, h.MarkAttendance)
			attendance.GET("/event/:id", staff, h.EventAttendance)
			attendance.GET("/my-history", h.AttendanceHistory)
			attendance.POST("/verify-qr", h.VerifyQR)
		}

		analytics := api.Group("/analytics", authenticated)
		{
			analytics.GET("/dashboard", admin, h.Dashboard)
			analytics.GET("/trends", admin, h.Trends)
			analytics.GET("/event/:id", staff, h.EventAnalytics)
			analytics.GET("/export/:type", admin, h.Export)
		}
	}

	return r, nil
}
