package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/redis/go-redis/v9"

	"github.com/entrhq/browserbase-mcp/pkg/config"
	"github.com/entrhq/browserbase-mcp/pkg/continuity"
	"github.com/entrhq/browserbase-mcp/pkg/driver"
	"github.com/entrhq/browserbase-mcp/pkg/driver/playwright"
	"github.com/entrhq/browserbase-mcp/pkg/execution"
	"github.com/entrhq/browserbase-mcp/pkg/llm"
	"github.com/entrhq/browserbase-mcp/pkg/llm/openai"
	"github.com/entrhq/browserbase-mcp/pkg/logging"
	"github.com/entrhq/browserbase-mcp/pkg/mcpserver"
	"github.com/entrhq/browserbase-mcp/pkg/security/urlguard"
	"github.com/entrhq/browserbase-mcp/pkg/session"
	"github.com/entrhq/browserbase-mcp/pkg/tools/browser"
)

const shutdownTimeout = 10 * time.Second

// loadConfig reads the config file, applies the environment and then the
// command-line overrides, and validates the result.
func loadConfig(f flags, lookup func(string) (string, bool)) (*config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv(lookup)

	if f.transport != "" {
		cfg.Server.Transport = config.Transport(f.transport)
	}
	if f.addr != "" {
		cfg.Server.Addr = f.addr
	}
	if f.verbosity != "" {
		cfg.Logging.Verbosity = f.verbosity
	}
	if f.deployment != "" {
		cfg.Deployment = config.Deployment(f.deployment)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func serve(ctx context.Context, cfg *config.Config) error {
	level, err := logging.ParseVerbosity(cfg.Logging.Verbosity)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Logging.Dir, "main", level)
	if err != nil {
		logger.Warnf("%v", err)
	}
	defer logger.Close()
	logger.Infof("starting browserbase-mcp %s (deployment=%s, transport=%s)", version, cfg.Deployment, cfg.Server.Transport)

	manager := playwright.NewManager(playwright.Options{
		CDPEndpoint: cfg.Browser.CDPEndpoint,
		APIKey:      cfg.APIKey,
		Logger:      logger.Named("playwright"),
	})
	if err := manager.Initialize(); err != nil {
		return err
	}
	defer func() {
		if err := manager.Shutdown(); err != nil {
			logger.Warnf("failed to stop playwright: %v", err)
		}
	}()

	defaults := driver.SessionOptions{
		Headless: cfg.Browser.Headless,
		Width:    cfg.Browser.Viewport.Width,
		Height:   cfg.Browser.Viewport.Height,
		Proxies:  cfg.Browser.Proxies,
	}
	registry := session.NewRegistry(manager, session.Options{
		MaxSessions:      cfg.Browser.MaxSessions,
		IdleTimeout:      cfg.Browser.IdleTimeout,
		DefaultSessionID: cfg.Execution.DefaultSessionID,
		Defaults:         defaults,
	}, logger.Named("session"))
	defer func() {
		if err := registry.CloseAll(); err != nil {
			logger.Warnf("failed to close sessions: %v", err)
		}
	}()
	go reapIdle(ctx, registry, cfg.Browser.IdleTimeout, logger)

	guard, err := urlguard.New(cfg.Browser.AllowedURLs, cfg.Browser.DeniedURLs)
	if err != nil {
		return err
	}

	var provider llm.Provider
	if cfg.LLMEnabled() {
		p, err := openai.NewProvider(cfg.LLM.APIKey, openai.WithModel(cfg.LLM.Model), openai.WithBaseURL(cfg.LLM.BaseURL))
		if err != nil {
			return err
		}
		provider = p
		logger.Infof("extract and observe use model %s", p.GetModel())
	}

	tools, err := browser.NewToolset(browser.Options{Guard: guard, LLM: provider, Defaults: defaults})
	if err != nil {
		return err
	}

	var cache continuity.Cache
	if cfg.Deployment == config.DeploymentRemote {
		store, closeStore, err := newStore(ctx, cfg.Cache, logger.Named("continuity"))
		if err != nil {
			return err
		}
		defer closeStore()
		cache = store
	}

	dispatcher, err := continuity.NewDispatcher(continuity.DispatcherOptions{
		Tools:      tools,
		Registry:   registry,
		Cache:      cache,
		MaxRetries: cfg.Cache.MaxRetries,

		// Over HTTP each project id is a separate tenant.
		ScopeDefaultSession: cfg.Server.Transport == config.TransportHTTP,

		Execution: execution.Options{
			DefaultSessionID: cfg.Execution.DefaultSessionID,
			SettleDelay:      cfg.Execution.SettleDelay,
			MaxSnapshotChars: cfg.Execution.MaxSnapshotChars,
			SessionDefaults:  defaults,
		},
		Logger: logger.Named("dispatcher"),
	})
	if err != nil {
		return err
	}

	srv, err := mcpserver.New(dispatcher, mcpserver.Options{
		Version:   version,
		ProjectID: cfg.ProjectID,
		Logger:    logger.Named("mcp"),
	})
	if err != nil {
		return err
	}

	if cfg.Server.Transport == config.TransportHTTP {
		return serveHTTP(ctx, cfg.Server.Addr, srv, logger)
	}
	if err := srv.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
		return err
	}
	logger.Infof("shutting down")
	return nil
}

// newStore connects to Redis and returns the continuity store with a
// function closing the client.
func newStore(ctx context.Context, cfg config.CacheConfig, logger *logging.Logger) (*continuity.Store, func(), error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid cache.redis_url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, nil, fmt.Errorf("failed to reach redis: %w", err)
	}

	store, err := continuity.NewStore(continuity.StoreOptions{
		Redis:        rdb,
		KeyPrefix:    cfg.KeyPrefix,
		TTL:          cfg.TTL,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
		Logger:       logger,
	})
	if err != nil {
		_ = rdb.Close()
		return nil, nil, err
	}
	return store, func() { _ = rdb.Close() }, nil
}

// newRouter mounts the MCP endpoint and a health check.
func newRouter(mcpHandler http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/mcp", mcpHandler)
	return r
}

func serveHTTP(ctx context.Context, addr string, srv *mcpserver.Server, logger *logging.Logger) error {
	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           newRouter(srv.Handler()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("listening on %s", addr)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Infof("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

// reapIdle closes idle sessions until ctx is done.
func reapIdle(ctx context.Context, registry *session.Registry, idle time.Duration, logger *logging.Logger) {
	if idle <= 0 {
		return
	}
	ticker := time.NewTicker(idle / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := registry.CleanupIdle(); n > 0 {
				logger.Infof("closed %d idle sessions", n)
			}
		}
	}
}
