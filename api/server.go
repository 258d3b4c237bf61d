// Package api exposes the ledger over HTTP.
package api

import (
	"time"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Aidin1998/ledgerd/internal/gateway"
	"github.com/Aidin1998/ledgerd/internal/scheduler"
)

// Server represents the API server
type Server struct {
	router    *gin.Engine
	logger    *zap.Logger
	scheduler *scheduler.Scheduler
	gateway   *gateway.Gateway
}

// NewServer creates a new API server with injected collaborators
func NewServer(logger *zap.Logger, sched *scheduler.Scheduler, gw *gateway.Gateway) *Server {
	server := &Server{
		logger:    logger,
		scheduler: sched,
		gateway:   gw,
	}

	router := gin.New()

	// Add middleware
	router.Use(ginzap.Ginzap(logger, time.RFC3339, true))
	router.Use(ginzap.RecoveryWithZap(logger, true))

	// Configure CORS
	router.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}))

	server.router = router
	server.registerRoutes()
	return server
}

// Router returns the internal Gin engine for testing purposes
func (s *Server) Router() *gin.Engine {
	return s.router
}

// registerRoutes registers all API routes
func (s *Server) registerRoutes() {
	s.router.GET("/healthcheck", s.healthcheck)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	accounts := s.router.Group("/accounts")
	{
		accounts.POST("", s.createAccount)
		accounts.GET("/:id", s.getAccount)
		accounts.PUT("/:id/funds", s.addFunds)
		accounts.POST("/:id/withdrawals", s.createWithdrawal)
		accounts.GET("/:id/withdrawals", s.listWithdrawals)
	}
}

func (s *Server) healthcheck(c *gin.Context) {
	c.String(200, "OK")
}
