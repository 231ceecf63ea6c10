package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	flag "github.com/spf13/pflag"

	"github.com/malbeclabs/datachat/api/handlers"
	"github.com/malbeclabs/datachat/api/mcp/server"
	"github.com/malbeclabs/datachat/api/metrics"
	"github.com/malbeclabs/datachat/internal/app"
	"github.com/malbeclabs/datachat/pkg/config"
	"github.com/malbeclabs/datachat/pkg/logger"
)

var (
	// Set by LDFLAGS
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const (
	defaultListenAddr        = "0.0.0.0:8000"
	defaultMetricsAddr       = "0.0.0.0:8080"
	defaultReadHeaderTimeout = 30 * time.Second
	defaultShutdownTimeout   = 30 * time.Second
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	verboseFlag := flag.Bool("verbose", false, "enable verbose (debug) logging")
	listenAddrFlag := flag.String("listen-addr", defaultListenAddr, "HTTP API listen address (or set LISTEN_ADDR env var)")
	metricsAddrFlag := flag.String("metrics-addr", defaultMetricsAddr, "Address to listen on for prometheus metrics (set to empty string to disable)")
	enableMCPFlag := flag.Bool("enable-mcp", false, "serve MCP tools at /mcp")
	mcpTokensFlag := flag.StringSlice("mcp-token", nil, "bearer tokens allowed to call /mcp (or set MCP_TOKENS env var, comma separated)")
	corsOriginsFlag := flag.StringSlice("cors-origin", []string{"*"}, "allowed CORS origins")
	readHeaderTimeoutFlag := flag.Duration("read-header-timeout", defaultReadHeaderTimeout, "HTTP read header timeout")
	shutdownTimeoutFlag := flag.Duration("shutdown-timeout", defaultShutdownTimeout, "Server shutdown timeout")
	flag.Parse()

	// Load .env file if it exists
	_ = godotenv.Load()

	if env := os.Getenv("LISTEN_ADDR"); env != "" && !flag.CommandLine.Changed("listen-addr") {
		*listenAddrFlag = env
	}
	if env := os.Getenv("MCP_TOKENS"); env != "" && !flag.CommandLine.Changed("mcp-token") {
		*mcpTokensFlag = strings.Split(env, ",")
	}

	log := logger.New(*verboseFlag)

	cfg, err := config.Load(os.LookupEnv)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	metricsServerErrCh := make(chan error, 1)
	if *metricsAddrFlag != "" {
		metrics.BuildInfo.WithLabelValues(version, commit, date).Set(1)
		go func() {
			listener, err := net.Listen("tcp", *metricsAddrFlag)
			if err != nil {
				log.Error("failed to start prometheus metrics server listener", "error", err)
				metricsServerErrCh <- err
				return
			}
			log.Info("prometheus metrics server listening", "address", listener.Addr().String())
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			if err := http.Serve(listener, mux); err != nil {
				log.Error("failed to start prometheus metrics server", "error", err)
				metricsServerErrCh <- err
			}
		}()
	}

	a, err := app.New(ctx, log, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Error("failed to close app", "error", err)
		}
	}()

	hcfg := handlers.Config{
		Logger:         log,
		Orchestrator:   a.Orchestrator,
		AllowedOrigins: *corsOriginsFlag,
	}
	if a.Store != nil {
		hcfg.Documents = a.Store
	}
	if *enableMCPFlag {
		mcpServer, err := server.New(server.Config{
			Logger:        log,
			Orchestrator:  a.Orchestrator,
			Version:       version,
			AllowedTokens: *mcpTokensFlag,
		})
		if err != nil {
			return fmt.Errorf("failed to create mcp server: %w", err)
		}
		hcfg.MCP = mcpServer.Handler()
		log.Info("mcp tools enabled", "path", "/mcp", "auth", len(*mcpTokensFlag) > 0)
	}
	h, err := handlers.New(hcfg)
	if err != nil {
		return fmt.Errorf("failed to create handlers: %w", err)
	}

	srv := &http.Server{
		Addr:              *listenAddrFlag,
		Handler:           h.Router(),
		ReadHeaderTimeout: *readHeaderTimeoutFlag,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	serveErrCh := make(chan error, 1)
	go func() {
		log.Info("server: api listening", "address", *listenAddrFlag, "source", a.Connector.Name(), "version", version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErrCh <- fmt.Errorf("failed to listen and serve: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("server: stopping", "reason", ctx.Err())
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), *shutdownTimeoutFlag)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shutdown server: %w", err)
		}
		log.Info("server: shutdown complete")
		return nil
	case err := <-serveErrCh:
		return err
	case err := <-metricsServerErrCh:
		return fmt.Errorf("metrics server failed: %w", err)
	}
}
