package ginserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	gin "github.com/gin-gonic/gin"

	"rentfleet/internal/infra/config"
	"rentfleet/internal/infra/obs"
)

type AvailabilityHTTP interface {
	CreateBlock(c *gin.Context)
	ListBlocks(c *gin.Context)
	CreateRecurringBlock(c *gin.Context)
	UpdateRecurringBlock(c *gin.Context)
	DeleteRecurringBlock(c *gin.Context)
	RecurringInstances(c *gin.Context)
	CreateBulkBlocks(c *gin.Context)
	Conflicts(c *gin.Context)
	CheckAvailability(c *gin.Context)
	RecordBooking(c *gin.Context)
}

type Handlers struct {
	Availability AvailabilityHTTP
	// Metrics serves the Prometheus exposition; nil disables /metrics.
	Metrics http.Handler
}

func NewServer(cfg config.Config, obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *http.Server {
	mode := configureGinMode(cfg.Env)
	if obsMW.Logger != nil {
		obsMW.Logger.Info("gin initialized", "mode", mode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(obsMW.RequestID())
	router.Use(obsMW.LoggerMiddleware())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization", "Idempotency-Key", actorHeader},
		ExposeHeaders: []string{
			"Content-Length",
			"Content-Type",
			"X-Request-ID",
		},
		MaxAge: 12 * time.Hour,
	}))
	router.Use(ActorMiddleware())

	router.GET("/livez", health.Livez)
	router.GET("/readyz", health.Readyz)
	if h.Metrics != nil {
		router.GET("/metrics", gin.WrapH(h.Metrics))
	}

	api := router.Group("/api/v1")
	if a := h.Availability; a != nil {
		listings := api.Group("/listings/:id")
		listings.POST("/blocks", a.CreateBlock)
		listings.GET("/blocks", a.ListBlocks)
		listings.POST("/recurring-blocks", a.CreateRecurringBlock)
		listings.GET("/conflicts", a.Conflicts)
		listings.POST("/availability-check", a.CheckAvailability)
		listings.PUT("/bookings/:booking_id", a.RecordBooking)

		recurring := api.Group("/recurring-blocks/:id")
		recurring.PATCH("", a.UpdateRecurringBlock)
		recurring.DELETE("", a.DeleteRecurringBlock)
		recurring.GET("/instances", a.RecurringInstances)

		api.POST("/blocks/bulk", a.CreateBulkBlocks)
	}

	return &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 10 * time.Second}
}

func configureGinMode(env string) string {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "debug":
		gin.SetMode(gin.DebugMode)
		return gin.DebugMode
	case "test", "testing":
		gin.SetMode(gin.TestMode)
		return gin.TestMode
	default:
		gin.SetMode(gin.ReleaseMode)
		return gin.ReleaseMode
	}
}
