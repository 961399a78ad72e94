package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ironsheep/plate-text-mcp/internal/config"
	"github.com/ironsheep/plate-text-mcp/internal/logger"
	"github.com/ironsheep/plate-text-mcp/internal/metrics"
	"github.com/ironsheep/plate-text-mcp/internal/server"
	"github.com/ironsheep/plate-text-mcp/internal/store"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	configPath := ""

	// Handle --version, --help and --config
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--version", "-v", "version":
			fmt.Printf("plate-text-mcp %s\n", Version)
			fmt.Printf("  Build time: %s\n", BuildTime)
			fmt.Printf("  Git commit: %s\n", GitCommit)
			return
		case "--help", "-h", "help":
			fmt.Println("plate-text-mcp - MCP server that assembles license plate text from detector output")
			fmt.Println()
			fmt.Println("Usage: plate-text-mcp [--config plate-mcp.yaml]")
			fmt.Println()
			fmt.Println("Options:")
			fmt.Println("  --config PATH    Read settings from PATH")
			fmt.Println("  --version, -v    Print version information")
			fmt.Println("  --help, -h       Print this help message")
			fmt.Println()
			fmt.Println("Environment variables:")
			fmt.Println("  PLATE_MCP_LOG_LEVEL=debug          Enable debug logging")
			fmt.Println("  PLATE_MCP_LABEL_MAP=classes.pbtxt  Default label map")
			fmt.Println("  PLATE_MCP_MIN_CONFIDENCE=0.5       Default score cut")
			fmt.Println("  PLATE_MCP_METRICS_ADDR=:9464       Serve Prometheus metrics")
			fmt.Println("  PLATE_MCP_STORE_DRIVER=mysql       Store readings (mysql or postgres)")
			fmt.Println("  PLATE_MCP_STORE_DSN=...            Database DSN")
			fmt.Println()
			fmt.Println("This server communicates via MCP protocol over stdin/stdout.")
			fmt.Println("Configure it in your MCP client (e.g., Claude Desktop).")
			return
		case "--config", "-c":
			if len(os.Args) < 3 {
				log.Fatal("--config requires a path")
			}
			configPath = os.Args[2]
		}
	}

	// Logging goes to stderr (stdout is for MCP protocol)
	log.SetOutput(os.Stderr)
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}

	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}
	lg := logger.New(level, os.Stderr)
	lg.Info("main", "Plate MCP Server v%s (built %s, commit %s)", Version, BuildTime, GitCommit)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := []server.Option{server.WithConfig(cfg), server.WithLogger(lg)}

	if cfg.MetricsAddr != "" {
		m := metrics.New()
		opts = append(opts, server.WithMetrics(m))
		go func() {
			lg.Info("metrics", "Serving /metrics on %s", cfg.MetricsAddr)
			if err := m.Serve(ctx, cfg.MetricsAddr); err != nil {
				lg.Error("metrics", "Metrics server stopped: %v", err)
			}
		}()
	}

	if cfg.Store.Driver != "" {
		st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DSN)
		if err != nil {
			log.Fatalf("Store error: %v", err)
		}
		defer st.Close()
		lg.Info("store", "Saving readings to %s", cfg.Store.Driver)
		opts = append(opts, server.WithSink(st))
	}

	srv := server.New(opts...)
	if err := srv.Run(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			lg.Info("main", "Shutting down")
			return
		}
		lg.Error("main", "Server error: %v", err)
		os.Exit(1)
	}
}
