package gitbot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/lmittmann/tint"
)

const xRequestIDHeader = "X-Request-ID"

// API serves a small status and health endpoint surface over HTTP.
type API struct {
	bot    *GitBot
	config *APIConfig
	logger *slog.Logger
	engine *gin.Engine
	server *http.Server
}

func newAPI(bot *GitBot, cfg *APIConfig) (*API, error) {
	if cfg == nil {
		return nil, errors.New("nil api config")
	}
	logger := bot.logger.With(loggerNameKey, "api")

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	a := &API{
		bot:    bot,
		config: cfg,
		logger: logger,
		engine: engine,
	}

	engine.Use(a.requestIDMiddleware())
	engine.Use(a.loggingMiddleware())
	engine.Use(cors.New(cfg.CORS.GINConfig()))

	engine.GET("/healthz", a.getHealth)
	apiGroup := engine.Group("/api")
	apiGroup.GET("/status", a.getStatus)
	apiGroup.GET("/cache", a.getCacheStats)

	a.server = &http.Server{
		Handler:           engine,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
	return a, nil
}

// requestIDMiddleware assigns each request a random ID, reusing one the
// caller provided.
func (a *API) requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(xRequestIDHeader)
		if requestID == "" {
			generated, err := generateRandomHexString(16)
			if err == nil {
				requestID = generated
			}
		}
		c.Header(xRequestIDHeader, requestID)
		c.Set("request_id", requestID)
		c.Next()
	}
}

func (a *API) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		a.logger.Info(
			"request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
			"request_id", c.GetString("request_id"),
			"client_ip", c.ClientIP(),
		)
	}
}

func (a *API) getHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (a *API) getStatus(c *gin.Context) {
	c.JSON(
		http.StatusOK, gin.H{
			"discord_connected":   a.bot.discord.connected.Load(),
			"discord_connects":    a.bot.discord.metricConnects.Load(),
			"discord_disconnects": a.bot.discord.metricDisconnects.Load(),
			"github_requests":     a.bot.github.RequestCount(),
			"active_lines_views":  a.bot.linesViews.Len(),
		},
	)
}

func (a *API) getCacheStats(c *gin.Context) {
	c.JSON(
		http.StatusOK, gin.H{
			"github": a.bot.github.Cache().Stats(),
			"loc":    a.bot.loc.Cache().Stats(),
		},
	)
}

// Serve listens on the configured address until ctx is cancelled, then
// shuts the server down gracefully.
func (a *API) Serve(ctx context.Context) error {
	network := a.config.ListenNetwork
	if network == "" {
		network = defaultListenNetwork
	}
	listener, err := net.Listen(network, a.config.Listen)
	if err != nil {
		return fmt.Errorf("error listening on %s: %w", a.config.Listen, err)
	}
	a.logger.Info("api listening", "address", listener.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		serveErr := a.server.Serve(listener)
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			errCh <- serveErr
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(
			context.Background(),
			10*time.Second,
		)
		defer cancel()
		if shutdownErr := a.server.Shutdown(shutdownCtx); shutdownErr != nil {
			a.logger.Error("error shutting down api", tint.Err(shutdownErr))
		}
		return ctx.Err()
	case serveErr := <-errCh:
		return serveErr
	}
}
