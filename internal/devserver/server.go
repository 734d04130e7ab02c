// Package devserver is a self-contained development backend for the
// voicereply CLI. It serves an in-memory mailbox and composes replies
// either via the Anthropic API or a local echo fallback.
package devserver

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/amaki/voicereply/internal/composer"
	"github.com/amaki/voicereply/internal/config"
)

// Composer turns dictated text into a composed reply.
type Composer interface {
	ComposeReply(ctx context.Context, input composer.ReplyInput) (*composer.Reply, error)
}

// Server represents the HTTP server
type Server struct {
	config   *config.Config
	logger   *slog.Logger
	router   *gin.Engine
	mailbox  *mailbox
	composer Composer
}

// New creates a new Server instance
func New(cfg *config.Config, logger *slog.Logger, comp Composer) *Server {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()

	server := &Server{
		config:   cfg,
		logger:   logger,
		router:   router,
		mailbox:  newMailbox(),
		composer: comp,
	}

	setupSecurityMiddleware(router, cfg, logger)
	server.setupRoutes()

	return server
}

// Router exposes the underlying engine, mainly for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Run starts the HTTP server
func Run(s *Server) error {
	s.logger.Info("Server listening", "port", s.config.Port)
	return s.router.Run(":" + s.config.Port)
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	emails := s.router.Group("/emails")
	emails.Use(requireBearerToken(s.config.DevToken))
	{
		emails.GET("/:id", s.handleFetchEmail)
		emails.POST("/:id/compose-reply", s.handleComposeReply)
		emails.POST("/:id/send-reply", s.handleSendReply)
		emails.POST("/:id/save-draft", s.handleSaveDraft)
	}
}

// handleHealth handles the health check endpoint
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "voicereply-dev",
	})
}
