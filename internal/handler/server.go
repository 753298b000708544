package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/aragnam/BTMliveTrackerApp/internal/auth"
	"github.com/aragnam/BTMliveTrackerApp/internal/config"
	"github.com/aragnam/BTMliveTrackerApp/internal/metrics"
	"github.com/aragnam/BTMliveTrackerApp/internal/repository"
	"github.com/aragnam/BTMliveTrackerApp/internal/service"
	"github.com/aragnam/BTMliveTrackerApp/pkg/utils"
)

// Server HTTP сервер API трекера
type Server struct {
	router      *gin.Engine
	httpServer  *http.Server
	logger      *utils.Logger
	config      *config.Config
	restHandler *RESTHandler
	wsHandler   *WebSocketHandler
}

// NewServer создает новый HTTP сервер. WebSocket handler создается
// вызывающим кодом, так как служит Broadcaster'ом для Recorder.
func NewServer(cfg *config.Config, repo repository.Repository, recorder *service.Recorder, wsHandler *WebSocketHandler, logger *utils.Logger) *Server {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	router.Use(LoggerMiddleware(logger))
	router.Use(gin.Recovery())
	router.Use(CORSMiddleware())
	router.Use(RateLimitMiddleware())
	router.Use(MetricsMiddleware())

	server := &Server{
		router:      router,
		logger:      logger,
		config:      cfg,
		restHandler: NewRESTHandler(repo, recorder, logger),
		wsHandler:   wsHandler,
	}

	server.httpServer = &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	server.setupRoutes(repo)

	return server
}

// setupRoutes настраивает маршруты API
func (s *Server) setupRoutes(repo repository.Repository) {
	s.router.GET("/health", s.healthCheck)

	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/tracks", s.restHandler.GetTracks)
		v1.GET("/track/:id", s.restHandler.GetTrack)
		v1.DELETE("/track/:id", s.restHandler.DeleteTrack)

		v1.GET("/geofences", s.restHandler.GetGeofences)
		v1.POST("/geofences", s.restHandler.PostGeofence)
		v1.DELETE("/geofences/:id", s.restHandler.DeleteGeofence)

		v1.GET("/alerts", s.restHandler.GetAlerts)

		// Endpoint'ы устройств (требуют Bearer токен)
		validator := auth.NewValidator(repo, s.logger)
		protected := v1.Group("/")
		protected.Use(auth.Middleware(validator, s.logger))
		{
			protected.POST("/session/start", s.restHandler.StartSession)
			protected.POST("/session/stop", s.restHandler.StopSession)
			protected.POST("/position", s.restHandler.PostPosition)
		}
	}

	s.router.GET("/ws/v1/updates", s.wsHandler.HandleConnection)

	if s.config.Monitoring.MetricsEnabled {
		s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}
}

// Start запускает HTTP сервер
func (s *Server) Start() error {
	s.logger.WithFields(map[string]interface{}{
		"address": s.config.Server.Address,
		"mode":    gin.Mode(),
	}).Info("Starting HTTP server")

	return s.httpServer.ListenAndServe()
}

// Shutdown корректное завершение сервера
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")
	s.wsHandler.CloseAll()
	return s.httpServer.Shutdown(ctx)
}

// healthCheck endpoint проверки живости
func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().Unix(),
	})
}

// ==================== Middleware ====================

// LoggerMiddleware логирование запросов
func LoggerMiddleware(logger *utils.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		logger.WithFields(map[string]interface{}{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"latency_ms": time.Since(start).Milliseconds(),
			"client_ip":  c.ClientIP(),
		}).Info("HTTP request completed")
	}
}

// CORSMiddleware настройка CORS
func CORSMiddleware() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins:     []string{"*"}, // В production указать конкретные домены
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"*"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
}

// RateLimitMiddleware ограничение частоты запросов
func RateLimitMiddleware() gin.HandlerFunc {
	limiter := rate.NewLimiter(rate.Limit(100), 200)

	return func(c *gin.Context) {
		if !limiter.Allow() {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"code":    "rate_limit_exceeded",
				"message": "Too many requests",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

// MetricsMiddleware сбор HTTP метрик
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unknown"
		}
		status := strconv.Itoa(c.Writer.Status())

		metrics.HTTPRequestsTotal.WithLabelValues(c.Request.Method, endpoint, status).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(c.Request.Method, endpoint, status).
			Observe(time.Since(start).Seconds())
	}
}

// errorResponse единый формат ошибок API
func errorResponse(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{
		"code":    code,
		"message": message,
	})
}

// requireParam возвращает обязательный параметр пути
func requireParam(c *gin.Context, name string) (string, error) {
	value := c.Param(name)
	if value == "" {
		return "", fmt.Errorf("missing %s", name)
	}
	return value, nil
}
