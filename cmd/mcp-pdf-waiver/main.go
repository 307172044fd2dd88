package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/a3tai/mcp-pdf-waiver/internal/config"
	"github.com/a3tai/mcp-pdf-waiver/internal/mcp"
	"github.com/a3tai/mcp-pdf-waiver/internal/waiver"
	"github.com/a3tai/mcp-pdf-waiver/internal/waiver/delivery"
	"github.com/a3tai/mcp-pdf-waiver/internal/waiver/schema"
)

var (
	version   = "dev"     // This will be set by build flags
	buildTime = "unknown" // This will be set by build flags
	gitCommit = "unknown" // This will be set by build flags
)

// setupLogging configures logging based on the server mode
func setupLogging(cfg *config.Config) {
	if cfg.IsStdioMode() {
		// stdout carries the MCP protocol in stdio mode
		log.SetOutput(os.Stderr)
		if !cfg.IsDebug() {
			log.SetOutput(io.Discard)
		}
	} else {
		log.SetOutput(os.Stderr)
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	}
}

// loadSchema returns the configured field schema, or the embedded waiver schema
func loadSchema(cfg *config.Config) (*schema.Schema, error) {
	if cfg.SchemaPath == "" {
		return schema.Default()
	}
	return schema.LoadFile(cfg.SchemaPath)
}

// buildService wires the schema, template and optional mail delivery into a waiver service
func buildService(cfg *config.Config) (*waiver.Service, error) {
	sch, err := loadSchema(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load schema: %w", err)
	}

	template, err := cfg.ReadTemplate()
	if err != nil {
		return nil, fmt.Errorf("failed to read template: %w", err)
	}

	opts := waiver.Options{
		Schema:          sch,
		Template:        template,
		OutputDirectory: cfg.OutputDirectory,
		SessionTTL:      cfg.SessionTTL,
		Debug:           cfg.IsDebug(),
	}
	if cfg.DeliveryEnabled() {
		sender, err := delivery.NewSMTPSender(cfg.Delivery())
		if err != nil {
			return nil, err
		}
		opts.Sender = sender
	}

	return waiver.NewService(opts)
}

// runServerMode handles server mode execution with signal handling
func runServerMode(ctx context.Context, cancel context.CancelFunc, server *mcp.Server) {
	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- server.Run(ctx)
	}()

	select {
	case sig := <-signalCh:
		log.Printf("Received signal: %s", sig)
		log.Println("Initiating graceful shutdown...")
		cancel()

		if err := <-serverErrCh; err != nil {
			log.Printf("Server shutdown with error: %v", err)
			os.Exit(1)
		}

	case err := <-serverErrCh:
		if err != nil {
			log.Printf("Server error: %v", err)
			os.Exit(1)
		}
	}

	log.Println("Server stopped successfully")
}

// runStdioMode handles stdio mode execution. The parent process controls the lifecycle and
// the server exits when stdin is closed.
func runStdioMode(ctx context.Context, cancel context.CancelFunc, server *mcp.Server) {
	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-signalCh
		cancel()
	}()

	if err := server.Run(ctx); err != nil {
		log.Printf("Server error: %v", err)
		os.Exit(1)
	}
}

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" || arg == "-v" {
			printVersion(os.Stdout)
			return
		}
	}

	cfg, err := config.LoadFromFlags()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	setupLogging(cfg)

	if version != "dev" {
		cfg.Version = version
	}

	if cfg.IsDebug() {
		log.Printf("Starting with configuration: %s", cfg.String())
	}

	service, err := buildService(cfg)
	if err != nil {
		log.Fatalf("Failed to create waiver service: %v", err)
	}

	server, err := mcp.NewServer(cfg, service)
	if err != nil {
		log.Fatalf("Failed to create MCP server: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.IsServerMode() {
		runServerMode(ctx, cancel, server)
	} else {
		runStdioMode(ctx, cancel, server)
	}
}

// printVersion prints version information
func printVersion(w io.Writer) {
	fmt.Fprintf(w, "MCP PDF Waiver\n")
	fmt.Fprintf(w, "Version: %s\n", version)
	fmt.Fprintf(w, "Build Time: %s\n", buildTime)
	fmt.Fprintf(w, "Git Commit: %s\n", gitCommit)
	fmt.Fprintf(w, "Built with: %s\n", runtime.Version())
}
