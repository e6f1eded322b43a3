package rest

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/openremoteio/remoteio/internal/api/websocket"
	"github.com/openremoteio/remoteio/internal/auth"
	"github.com/openremoteio/remoteio/internal/config"
	"github.com/openremoteio/remoteio/internal/interfaces"
	"go.uber.org/zap"
)

type Server struct {
	router *gin.Engine
	lm     interfaces.LifecycleManager
	logger *zap.Logger
	server *http.Server
	wsHub  *websocket.Hub
	tokens *auth.TokenService
}

func NewServer(cfg *config.Config, lm interfaces.LifecycleManager, logger *zap.Logger, wsHub *websocket.Hub, tokens *auth.TokenService) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		router: gin.New(),
		lm:     lm,
		logger: logger,
		wsHub:  wsHub,
		tokens: tokens,
	}

	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

func (s *Server) Start() error {
	s.logger.Info("Starting REST API server", zap.String("address", s.server.Addr))
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Fatal("REST server failed", zap.Error(err))
		}
	}()
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down REST API server")
	return s.server.Shutdown(ctx)
}

func (s *Server) setupRoutes() {
	// Middleware
	s.router.Use(gin.Recovery())
	s.router.Use(LoggerMiddleware(s.logger))
	s.router.Use(CORSMiddleware())

	// Public routes (no auth required)
	s.router.GET("/health", s.healthCheck)

	// API v1
	v1 := s.router.Group("/api/v1")
	{
		// ==================== SYSTEM ====================
		system := v1.Group("/system")
		system.Use(s.tokens.Middleware())
		{
			system.GET("/status", s.getSystemStatus)
			system.POST("/shutdown", s.shutdown)
		}

		// ==================== MODELS ====================
		models := v1.Group("/models")
		models.Use(s.tokens.Middleware())
		{
			models.GET("", s.listModels)
		}

		// ==================== DEVICES ====================
		devices := v1.Group("/devices")
		devices.Use(s.tokens.Middleware())
		{
			devices.GET("", s.listDevices)
			devices.POST("", s.createDevice)
			devices.GET("/:name", s.getDevice)
			devices.DELETE("/:name", s.deleteDevice)
			devices.POST("/:name/reconnect", s.reconnectDevice)

			// Channel access
			devices.GET("/:name/channels", s.listChannels)
			devices.GET("/:name/channels/:channel", s.readChannel)
			devices.PUT("/:name/channels/:channel", s.writeChannel)

			// Raw register access
			devices.POST("/:name/registers/read", s.readRegisters)
			devices.POST("/:name/registers/write", s.writeRegisters)
		}

		// ==================== WEBSOCKET (Auth via first message) ====================
		ws := v1.Group("/ws")
		{
			ws.GET("/live", s.wsLiveConnection)
			ws.GET("/status", s.tokens.Middleware(), s.wsStatus)
		}
	}
}

// WebSocket handlers
func (s *Server) wsLiveConnection(c *gin.Context) {
	websocket.ServeWs(s.wsHub, c.Writer, c.Request)
}

func (s *Server) wsStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"connected_clients": s.wsHub.GetClientCount(),
	})
}

// Health check (public)
func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().Unix(),
	})
}

// GET /api/v1/models
func (s *Server) listModels(c *gin.Context) {
	models := s.lm.Catalog().Models()
	c.JSON(http.StatusOK, gin.H{
		"models": models,
		"count":  len(models),
	})
}
