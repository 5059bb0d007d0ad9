package web

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/hpungsan/larder/internal/config"
	"github.com/hpungsan/larder/internal/ops"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

// NewServer creates and configures the HTTP server for the Larder API and report pages.
func NewServer(database *sql.DB, cfg *config.Config, resolver *ops.Resolver, logger *zap.Logger, version string) *http.Server {
	router := newRouter(database, cfg, resolver, logger, version)

	return &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Bind, cfg.Port),
		Handler:           securityHeaders(router),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// newRouter builds the gin engine. Split from NewServer so tests can drive it directly.
func newRouter(database *sql.DB, cfg *config.Config, resolver *ops.Resolver, logger *zap.Logger, version string) *gin.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}

	templateSub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		logger.Fatal("failed to create template sub-FS", zap.Error(err))
	}
	staticSub, err := fs.Sub(staticFS, "static")
	if err != nil {
		logger.Fatal("failed to create static sub-FS", zap.Error(err))
	}

	h := &Handlers{
		db:       database,
		cfg:      cfg,
		resolver: resolver,
		renderer: NewRenderer(templateSub, version, logger),
		logger:   logger,
	}

	router := gin.New()
	_ = router.SetTrustedProxies(nil)
	router.Use(requestLogger(logger), gin.Recovery())
	h.registerRoutes(router)
	router.StaticFS("/static", http.FS(staticSub))

	return router
}

// registerRoutes wires every endpoint onto the router.
func (h *Handlers) registerRoutes(router *gin.Engine) {
	router.GET("/", func(c *gin.Context) {
		c.Redirect(http.StatusFound, "/report/today")
	})
	router.GET("/report/:date", h.HandleReport)

	api := router.Group("/api")
	api.POST("/food-log", h.HandleLogFood)
	api.GET("/food-log/today", h.HandleToday)
	api.GET("/food-log/:date", h.HandleGetDay)
	api.POST("/food-log/:date/repair", h.HandleRepair)
	api.DELETE("/food-log/:date/:meal_type/:entry_id", h.HandleRemove)
	api.POST("/nutrition/resolve", h.HandleResolve)
	api.GET("/foods", h.HandleListFoods)
}

// requestLogger logs one line per request at Info, or Warn for 5xx responses.
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
		}
		if status >= http.StatusInternalServerError {
			logger.Warn("request", fields...)
			return
		}
		logger.Info("request", fields...)
	}
}

// securityHeaders adds security-related HTTP headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy", "default-src 'self'; script-src 'self'; style-src 'self'")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		next.ServeHTTP(w, r)
	})
}

// Run starts the HTTP server and shuts it down gracefully on SIGINT/SIGTERM
// or when ctx is cancelled.
func Run(ctx context.Context, srv *http.Server, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	logger.Info("Larder API running", zap.String("addr", "http://"+srv.Addr))

	if strings.Contains(srv.Addr, "0.0.0.0") || strings.Contains(srv.Addr, "::") {
		logger.Warn("server is binding to all interfaces and may be accessible from the network")
	}

	select {
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
