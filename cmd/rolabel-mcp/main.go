package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/ironsheep/rolabel-mcp/internal/config"
	"github.com/ironsheep/rolabel-mcp/internal/httpapi"
	"github.com/ironsheep/rolabel-mcp/internal/logger"
	"github.com/ironsheep/rolabel-mcp/internal/server"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func usage() {
	out := flag.CommandLine.Output()
	fmt.Fprintln(out, "rolabel-mcp - MCP server for rotated bounding box annotation")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Usage: rolabel-mcp [options]")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Options:")
	flag.PrintDefaults()
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Environment variables:")
	fmt.Fprintf(out, "  %s=debug    Override the configured log level\n", config.EnvLogLevel)
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Without --http the server communicates via MCP protocol over stdin/stdout.")
	fmt.Fprintln(out, "Configure it in your MCP client (e.g., Claude Desktop).")
}

func main() {
	showVersion := flag.Bool("version", false, "Print version information")
	configPath := flag.String("config", "", "Path to a YAML configuration file")
	httpAddr := flag.String("http", "", "Serve the HTTP API on this address (e.g. :8080) instead of stdio")
	writeConfig := flag.String("write-config", "", "Write the effective configuration as YAML to this path and exit")
	flag.Usage = usage
	flag.Parse()

	if *showVersion {
		fmt.Printf("rolabel-mcp %s\n", Version)
		fmt.Printf("  Build time: %s\n", BuildTime)
		fmt.Printf("  Git commit: %s\n", GitCommit)
		return
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	if *httpAddr != "" {
		cfg.Server.HTTPAddr = *httpAddr
	}

	if *writeConfig != "" {
		if err := config.SaveConfig(cfg, *writeConfig); err != nil {
			fmt.Fprintf(os.Stderr, "config error: %v\n", err)
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "configuration written to %s\n", *writeConfig)
		return
	}

	// Logging goes to stderr; stdout is for the MCP protocol
	if err := logger.Init(cfg.Log.Level, cfg.Log.Development); err != nil {
		fmt.Fprintf(os.Stderr, "logger error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	log := logger.Log()
	log.Debug("starting rolabel-mcp",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("commit", GitCommit),
	)

	server.Version = Version
	srv, err := server.New(cfg)
	if err != nil {
		log.Fatal("server setup failed", zap.Error(err))
	}

	if cfg.Server.HTTPAddr != "" {
		err = httpapi.ListenAndServe(cfg.Server.HTTPAddr, srv)
	} else {
		err = srv.Run()
	}
	if err != nil {
		log.Fatal("server error", zap.Error(err))
	}
}
