package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// Mode constants
	ModeStdio  = "stdio"
	ModeServer = "server"

	// Default values
	DefaultPort        = 8080
	DefaultHost        = "127.0.0.1"
	DefaultLogLevel    = "info"
	DefaultMaxFileSize = 25 * 1024 * 1024 // 25MB
	DefaultSessions    = 64

	DefaultViewerContainer = "adobe-pdf-viewer"
	DefaultViewerSDKURL    = "https://acrobatservices.adobe.com/view-sdk/viewer.js"
	DefaultViewerFileName  = "Sample.pdf"

	// Directory permissions
	DefaultDirPerm = 0o750

	envPrefix = "PDF_FORM"
)

// Config holds all configuration for the PDF form editor
type Config struct {
	// Server configuration
	Mode string // "server" or "stdio"
	Host string
	Port int

	// PDFDirectory confines the paths the MCP tools may read and write
	PDFDirectory string

	// Editor configuration
	MaxFileSize int64 // Maximum PDF file size in bytes
	Sessions    int   // Maximum concurrent editor sessions in server mode

	// Hosted viewer configuration
	ViewerClientID  string
	ViewerContainer string
	ViewerSDKURL    string
	ViewerFileName  string

	// Application configuration
	Version    string
	ServerName string
	LogLevel   string
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	currentDir, err := os.Getwd()
	if err != nil {
		currentDir = "."
	}

	return &Config{
		Mode:            ModeServer,
		Host:            DefaultHost,
		Port:            DefaultPort,
		PDFDirectory:    currentDir,
		MaxFileSize:     DefaultMaxFileSize,
		Sessions:        DefaultSessions,
		ViewerContainer: DefaultViewerContainer,
		ViewerSDKURL:    DefaultViewerSDKURL,
		ViewerFileName:  DefaultViewerFileName,
		Version:         "1.0.0",
		ServerName:      "pdf-form-editor",
		LogLevel:        DefaultLogLevel,
	}
}

// LoadFromFlags parses command line flags and returns a configuration
func LoadFromFlags() (*Config, error) {
	cfg := DefaultConfig()

	setupViperEnvironment(cfg)
	defineCommandLineFlags(cfg)
	bindFlagsToViper()
	setupUsageMessage()

	// Check for version flag before parsing
	if err := checkVersionFlag(); err != nil {
		return nil, err
	}

	pflag.Parse()

	populateConfigFromViper(cfg)

	if cfg.PDFDirectory != "" {
		if expandedPath, err := filepath.Abs(cfg.PDFDirectory); err == nil {
			cfg.PDFDirectory = expandedPath
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// flagKeys lists every key shared by flags, environment and viper
var flagKeys = []string{
	"mode", "host", "port", "dir", "log-level", "max-file-size", "sessions",
	"viewer-client-id", "viewer-container", "viewer-sdk-url", "viewer-file-name",
}

// setupViperEnvironment configures viper with environment variables and defaults
func setupViperEnvironment(cfg *Config) {
	// PDF_FORM_LOG_LEVEL maps to log-level
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("mode", cfg.Mode)
	viper.SetDefault("host", cfg.Host)
	viper.SetDefault("port", cfg.Port)
	viper.SetDefault("dir", cfg.PDFDirectory)
	viper.SetDefault("log-level", cfg.LogLevel)
	viper.SetDefault("max-file-size", cfg.MaxFileSize)
	viper.SetDefault("sessions", cfg.Sessions)
	viper.SetDefault("viewer-client-id", cfg.ViewerClientID)
	viper.SetDefault("viewer-container", cfg.ViewerContainer)
	viper.SetDefault("viewer-sdk-url", cfg.ViewerSDKURL)
	viper.SetDefault("viewer-file-name", cfg.ViewerFileName)
}

// defineCommandLineFlags sets up all command line flags
func defineCommandLineFlags(cfg *Config) {
	pflag.String("mode", cfg.Mode, "Run mode: 'server' for the HTTP editor, 'stdio' for MCP standard I/O")
	pflag.String("host", cfg.Host, "Server host address (server mode only)")
	pflag.Int("port", cfg.Port, "Server port (server mode only)")
	pflag.String("dir", cfg.PDFDirectory, "Directory MCP tools may load PDF files from and export to")
	pflag.String("log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	pflag.Int64("max-file-size", cfg.MaxFileSize, "Maximum PDF file size in bytes")
	pflag.Int("sessions", cfg.Sessions, "Maximum concurrent editor sessions (server mode only)")
	pflag.String("viewer-client-id", cfg.ViewerClientID, "Client id for the hosted viewer SDK")
	pflag.String("viewer-container", cfg.ViewerContainer, "Element id the hosted viewer renders into")
	pflag.String("viewer-sdk-url", cfg.ViewerSDKURL, "Location of the hosted viewer SDK script")
	pflag.String("viewer-file-name", cfg.ViewerFileName, "File name shown by the hosted viewer")
}

// bindFlagsToViper binds command line flags to viper configuration
func bindFlagsToViper() {
	for _, key := range flagKeys {
		_ = viper.BindPFlag(key, pflag.Lookup(key))
	}
}

// setupUsageMessage configures the custom usage message
func setupUsageMessage() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of %s:\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nPDF Form Editor - fill in PDF forms in the browser or over MCP\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		pflag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s                                         "+
			"# HTTP editor on 127.0.0.1:8080 (default)\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --host=0.0.0.0 --port=8081               # editor on all interfaces\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --mode=stdio --dir=/path/to/pdfs        # MCP tools over stdio\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		for _, key := range flagKeys {
			fmt.Fprintf(os.Stderr, "  %s\n", envName(key))
		}
	}
}

func envName(key string) string {
	return envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, "-", "_"))
}

// checkVersionFlag checks if version flag was requested
func checkVersionFlag() error {
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" || arg == "-v" {
			return fmt.Errorf("version requested")
		}
	}
	return nil
}

// populateConfigFromViper fills the config struct with values from viper
func populateConfigFromViper(cfg *Config) {
	cfg.Mode = viper.GetString("mode")
	cfg.Host = viper.GetString("host")
	cfg.Port = viper.GetInt("port")
	cfg.PDFDirectory = viper.GetString("dir")
	cfg.LogLevel = viper.GetString("log-level")
	cfg.MaxFileSize = viper.GetInt64("max-file-size")
	cfg.Sessions = viper.GetInt("sessions")
	cfg.ViewerClientID = viper.GetString("viewer-client-id")
	cfg.ViewerContainer = viper.GetString("viewer-container")
	cfg.ViewerSDKURL = viper.GetString("viewer-sdk-url")
	cfg.ViewerFileName = viper.GetString("viewer-file-name")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Mode != ModeStdio && c.Mode != ModeServer {
		return errors.New("mode must be either 'stdio' or 'server'")
	}

	// Port and sessions only matter for server mode
	if c.Mode == ModeServer {
		if c.Port < 1 || c.Port > 65535 {
			return errors.New("port must be between 1 and 65535")
		}
		if c.Sessions < 1 {
			return errors.New("sessions must be positive")
		}
	}

	if c.PDFDirectory == "" {
		return errors.New("PDF directory cannot be empty")
	}

	// Create the PDF directory if it doesn't exist
	if _, err := os.Stat(c.PDFDirectory); os.IsNotExist(err) {
		if err := os.MkdirAll(c.PDFDirectory, DefaultDirPerm); err != nil {
			return fmt.Errorf("cannot create PDF directory %s: %w", c.PDFDirectory, err)
		}
	} else if err != nil {
		return fmt.Errorf("cannot access PDF directory %s: %w", c.PDFDirectory, err)
	}

	if c.MaxFileSize <= 0 {
		return errors.New("maximum file size must be positive")
	}

	if c.ViewerContainer == "" {
		return errors.New("viewer container id cannot be empty")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error)", c.LogLevel)
	}

	return nil
}

// Address returns the server address as host:port
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsDebug returns true if debug logging is enabled
func (c *Config) IsDebug() bool {
	return c.LogLevel == "debug"
}

// String returns a string representation of the configuration
func (c *Config) String() string {
	return fmt.Sprintf("Config{Mode: %s, Host: %s, Port: %d, PDFDirectory: %s, LogLevel: %s, "+
		"MaxFileSize: %d, Sessions: %d, ViewerContainer: %s}",
		c.Mode, c.Host, c.Port, c.PDFDirectory, c.LogLevel, c.MaxFileSize, c.Sessions, c.ViewerContainer)
}

// IsServerMode returns true if the HTTP editor is served
func (c *Config) IsServerMode() bool {
	return c.Mode == ModeServer
}

// IsStdioMode returns true if the MCP tools are served over stdio
func (c *Config) IsStdioMode() bool {
	return c.Mode == ModeStdio
}
