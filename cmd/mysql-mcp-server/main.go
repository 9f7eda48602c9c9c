// Command mysql-mcp-server bootstraps the adapter: it loads configuration,
// brings up the connection pool, wires the executor/transaction
// manager/schema introspector/registry/dispatcher, and serves the HTTP
// surface. Flag-based bootstrapping is adapted from the teacher's
// server/config.go; actual request handling lives entirely in internal/.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/neverinfamous/mysql-mcp-go/internal/auth"
	"github.com/neverinfamous/mysql-mcp-go/internal/config"
	"github.com/neverinfamous/mysql-mcp-go/internal/executor"
	"github.com/neverinfamous/mysql-mcp-go/internal/httpapi"
	"github.com/neverinfamous/mysql-mcp-go/internal/metrics"
	"github.com/neverinfamous/mysql-mcp-go/internal/pool"
	"github.com/neverinfamous/mysql-mcp-go/internal/ratelimit"
	"github.com/neverinfamous/mysql-mcp-go/internal/registry"
	"github.com/neverinfamous/mysql-mcp-go/internal/schema"
	"github.com/neverinfamous/mysql-mcp-go/internal/tools"
	"github.com/neverinfamous/mysql-mcp-go/internal/txmanager"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (optional; defaults are used otherwise)")
	dsnOverride := flag.String("mysql-dsn", "", "MySQL DSN, overrides the config file value")
	listenOverride := flag.String("listen", "", "HTTP listen address, overrides the config file value")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			logger.Error("failed to load config", "path", *configPath, "err", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if *dsnOverride != "" {
		cfg.MySQLDSN = *dsnOverride
	}
	if *listenOverride != "" {
		cfg.ListenAddr = *listenOverride
	}
	if cfg.MySQLDSN == "" {
		logger.Error("mysql DSN is required (set mysql_dsn in config or pass -mysql-dsn)")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p := pool.New(cfg.MySQLDSN, cfg.Pool, logger)
	if err := p.Initialize(ctx); err != nil {
		logger.Error("failed to initialize pool", "err", err)
		os.Exit(1)
	}

	exec := executor.New(p)
	txMgr := txmanager.New(p, exec)
	introspector := schema.New(exec)

	reg := registry.New()
	tools.Register(reg, tools.Deps{
		Exec:   exec,
		Tx:     txMgr,
		Schema: introspector,
		PoolStats: func() interface{} { return p.Stats() },
	})
	dispatcher := registry.NewDispatcher(reg, introspector.InvalidateAll)

	discoverer := auth.NewDiscoverer(cfg.Auth.DiscoveryCacheTTL, cfg.Auth.DiscoveryTimeout)
	validator := auth.NewValidator(cfg.Auth, discoverer)
	resourceMeta := auth.NewResourceMetadata(cfg.Auth)

	metricsCollector := metrics.New()
	limiter := ratelimit.New(cfg.RateLimit)
	defer limiter.Stop()

	httpServer := httpapi.New(reg, dispatcher, validator, resourceMeta, p, metricsCollector, limiter, logger)
	if err := httpServer.Start(cfg.ListenAddr); err != nil {
		logger.Error("failed to start http server", "err", err)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Stop(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}

	txMgr.Drain(shutdownCtx, func(h txmanager.Handle, err error) {
		logger.Warn("rollback during drain failed", "handle", string(h), "err", err)
	})

	if err := p.Shutdown(shutdownCtx); err != nil {
		logger.Error("pool shutdown error", "err", err)
	}
}
