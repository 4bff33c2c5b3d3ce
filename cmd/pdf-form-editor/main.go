package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/a3tai/pdf-form-editor/internal/config"
	"github.com/a3tai/pdf-form-editor/internal/editor"
	"github.com/a3tai/pdf-form-editor/internal/mcp"
	"github.com/a3tai/pdf-form-editor/internal/viewer"
	"github.com/a3tai/pdf-form-editor/internal/web"
)

var (
	version   = "dev"     // This will be set by build flags
	buildTime = "unknown" // This will be set by build flags
	gitCommit = "unknown" // This will be set by build flags
)

// setupLogging configures logging based on the server mode
func setupLogging(cfg *config.Config) {
	if cfg.IsStdioMode() {
		// stdout carries the MCP protocol
		log.SetOutput(os.Stderr)
		if !cfg.IsDebug() {
			log.SetOutput(io.Discard)
		}
	} else {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	}
}

// newWebServer wires the per-session editors, hosted viewers and HTTP handlers
func newWebServer(cfg *config.Config, logger *log.Logger) *web.Server {
	return web.NewServer(web.Options{
		MaxFileSize: cfg.MaxFileSize,
		Sessions:    cfg.Sessions,
		Viewer: viewer.Config{
			ClientID:    cfg.ViewerClientID,
			ContainerID: cfg.ViewerContainer,
			SDKURL:      cfg.ViewerSDKURL,
			FileName:    cfg.ViewerFileName,
		},
		Logger: logger,
	})
}

// newMCPServer wires a single editor to the MCP tool set
func newMCPServer(cfg *config.Config, logger *log.Logger) (*mcp.Server, error) {
	ed := editor.New(editor.Options{MaxFileSize: cfg.MaxFileSize, Logger: logger})
	return mcp.NewServer(cfg, ed)
}

// runServerMode serves the web editor until a shutdown signal arrives
func runServerMode(ctx context.Context, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer stop()

	server := newWebServer(cfg, log.Default())
	if err := server.ListenAndServe(ctx, cfg.Address()); err != nil {
		return err
	}

	log.Println("Server stopped successfully")
	return nil
}

// runStdioMode serves the MCP tools over stdin/stdout
func runStdioMode(ctx context.Context, cfg *config.Config) error {
	server, err := newMCPServer(cfg, log.Default())
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}
	if err := server.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func main() {
	// Check for version flag before parsing other flags
	if hasVersionFlag(os.Args[1:]) {
		printVersion(os.Stdout)
		return
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

	if cfg.IsServerMode() {
		err = runServerMode(context.Background(), cfg)
	} else {
		err = runStdioMode(context.Background(), cfg)
	}
	if err != nil {
		log.Printf("Server error: %v", err)
		os.Exit(1)
	}
}

func hasVersionFlag(args []string) bool {
	for _, arg := range args {
		if arg == "-version" || arg == "--version" || arg == "-v" {
			return true
		}
	}
	return false
}

// printVersion prints version information
func printVersion(w io.Writer) {
	fmt.Fprintf(w, "PDF Form Editor\n")
	fmt.Fprintf(w, "Version: %s\n", version)
	fmt.Fprintf(w, "Build Time: %s\n", buildTime)
	fmt.Fprintf(w, "Git Commit: %s\n", gitCommit)
	fmt.Fprintf(w, "Built with: %s\n", runtime.Version())
}
