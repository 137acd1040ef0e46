package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lifeline-hq/lifeline/engine/access"
	accessrouter "github.com/lifeline-hq/lifeline/engine/access/router"
	"github.com/lifeline-hq/lifeline/engine/auth"
	"github.com/lifeline-hq/lifeline/engine/infra/postgres"
	"github.com/lifeline-hq/lifeline/engine/infra/repo"
	"github.com/lifeline-hq/lifeline/engine/notification"
	notificationrouter "github.com/lifeline-hq/lifeline/engine/notification/router"
	projectrouter "github.com/lifeline-hq/lifeline/engine/project/router"
	taskrouter "github.com/lifeline-hq/lifeline/engine/task/router"
	userrouter "github.com/lifeline-hq/lifeline/engine/user/router"
	"github.com/lifeline-hq/lifeline/engine/workflow"
	workflowrouter "github.com/lifeline-hq/lifeline/engine/workflow/router"
	"github.com/lifeline-hq/lifeline/pkg/config"
	"github.com/lifeline-hq/lifeline/pkg/logger"
)

const apiPrefix = "/api/v1"

// Server owns the HTTP surface and the wiring between repositories, the
// decision engines, and the routers.
type Server struct {
	cfg    *config.Config
	log    logger.Logger
	store  *postgres.Store
	engine *gin.Engine
	http   *http.Server
}

// New wires the full application over the given store.
func New(cfg *config.Config, log logger.Logger, store *postgres.Store) *Server {
	s := &Server{cfg: cfg, log: log, store: store}
	s.engine = s.buildEngine()
	return s
}

func (s *Server) buildEngine() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(s.loggerMiddleware(), gin.Recovery())

	provider := repo.NewProvider(s.store.Pool())
	users := provider.NewUserRepo()
	projects := provider.NewProjectRepo()
	tasks := provider.NewTaskRepo()
	accessRepo := provider.NewAccessRepo()
	workflowRepo := provider.NewWorkflowRepo()
	notifications := provider.NewNotificationRepo()

	evaluator := access.NewEvaluator(accessRepo, accessRepo, accessRepo)
	resolver := access.NewResolver(accessRepo, accessRepo, accessRepo, users, access.DefaultRoleAliases())
	guard := workflow.NewGuard(workflowRepo, workflowRepo, accessRepo)

	var sender notification.Sender
	if s.cfg.Telegram.Enabled {
		sender = notification.NewTelegramSender(s.cfg.Telegram.BaseURL, s.cfg.Telegram.Token)
	}
	dispatcher := notification.NewDispatcher(notifications, users, sender)

	tokens := auth.NewTokenManager(s.cfg.Auth.Secret, s.cfg.Auth.TokenTTL)
	authMiddleware := auth.NewMiddleware(tokens, users)

	engine.GET("/health", s.health)

	api := engine.Group(apiPrefix)
	userRoutes := userrouter.New(users, tokens)
	userRoutes.RegisterPublic(api)

	protected := api.Group("", authMiddleware.Authenticate())
	userRoutes.Register(protected)
	projectrouter.New(projects, accessRepo, evaluator).Register(protected)
	taskrouter.New(tasks, evaluator, resolver, guard, dispatcher).Register(protected)
	accessrouter.New(accessRepo).Register(protected)
	workflowrouter.New(workflowRepo, workflowRepo, guard, evaluator).Register(protected)
	notificationrouter.New(notifications).Register(protected)

	return engine
}

// loggerMiddleware injects the application logger into every request context
// and logs completed requests.
func (s *Server) loggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		ctx := logger.ContextWithLogger(c.Request.Context(), s.log)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
		s.log.Debug("request completed",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

func (s *Server) health(c *gin.Context) {
	if err := s.store.HealthCheck(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Run serves until the context is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.http = &http.Server{
		Addr:              s.cfg.Server.Addr(),
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", "addr", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
	defer cancel()
	s.log.Info("shutting down http server")
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

// Handler exposes the configured engine for tests.
func (s *Server) Handler() http.Handler { return s.engine }
