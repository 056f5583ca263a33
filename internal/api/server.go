package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"quoting/internal/api/handlers"
	"quoting/internal/api/middleware"
	"quoting/internal/config"
	"quoting/internal/database"
	"quoting/internal/dispatch"
	"quoting/internal/logger"

	"github.com/gin-gonic/gin"
)

type Server struct {
	config *config.Config
	logger *logger.Logger
	db     *database.Database
	router *gin.Engine
	server *http.Server
}

// Dependencies carries the externally constructed collaborators; ownership
// (start/stop) stays with the caller.
type Dependencies struct {
	Cin7      handlers.Cin7Dispatcher
	Shopify   handlers.DraftOrderCreator
	Products  handlers.ProductGetter
	Queue     *dispatch.Queue
	Publisher handlers.EventPublisher
}

func New(cfg *config.Config, logger *logger.Logger, db *database.Database, deps Dependencies) *Server {
	// Set Gin mode
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Middleware
	router.Use(middleware.Logger(logger))
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.CORS(cfg.CORSOrigins))

	// Initialize handlers
	webhookHandler := handlers.NewWebhookHandler(db.DB, logger, cfg, deps.Cin7, deps.Queue, deps.Publisher)
	quoteHandler := handlers.NewQuoteHandler(db.DB, logger, cfg, deps.Shopify, deps.Cin7, deps.Queue, deps.Publisher)
	productHandler := handlers.NewProductHandler(logger, deps.Products)

	// Routes
	router.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	v1 := router.Group("/api/v1")
	{
		// Shopify webhooks
		webhooks := v1.Group("/webhooks")
		{
			webhooks.POST("/draft-orders", webhookHandler.DraftOrder)
			webhooks.POST("/orders", webhookHandler.Order)
		}

		// Quotes
		quotes := v1.Group("/quotes")
		{
			quotes.GET("", quoteHandler.List)
			quotes.GET("/:id", quoteHandler.Get)
			quotes.POST("", quoteHandler.Create)
		}

		// Products
		v1.GET("/products/:id", productHandler.Get)
	}

	return &Server{
		config: cfg,
		logger: logger,
		db:     db,
		router: router,
	}
}

func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%s", s.config.APIHost, s.config.APIPort)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("Starting server on " + addr)
	return s.server.ListenAndServe()
}

func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Shutting down server...")
	return s.server.Shutdown(ctx)
}

// GetRouter exposes the router for tests.
func (s *Server) GetRouter() *gin.Engine {
	return s.router
}
