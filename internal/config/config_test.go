package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Mode != "server" {
		t.Errorf("Expected default mode to be 'server', got '%s'", cfg.Mode)
	}

	if cfg.Host != "127.0.0.1" {
		t.Errorf("Expected default host to be '127.0.0.1', got '%s'", cfg.Host)
	}

	if cfg.Port != 8080 {
		t.Errorf("Expected default port to be 8080, got %d", cfg.Port)
	}

	if cfg.ServerName != "pdf-form-editor" {
		t.Errorf("Expected default server name to be 'pdf-form-editor', got '%s'", cfg.ServerName)
	}

	if cfg.LogLevel != "info" {
		t.Errorf("Expected default log level to be 'info', got '%s'", cfg.LogLevel)
	}

	if cfg.MaxFileSize != 25*1024*1024 {
		t.Errorf("Expected default max file size to be 25MB, got %d", cfg.MaxFileSize)
	}

	if cfg.Sessions != 64 {
		t.Errorf("Expected default sessions to be 64, got %d", cfg.Sessions)
	}

	if cfg.ViewerContainer != "adobe-pdf-viewer" {
		t.Errorf("Expected default viewer container to be 'adobe-pdf-viewer', got '%s'", cfg.ViewerContainer)
	}

	if cfg.ViewerFileName != "Sample.pdf" {
		t.Errorf("Expected default viewer file name to be 'Sample.pdf', got '%s'", cfg.ViewerFileName)
	}

	currentDir, _ := os.Getwd()
	if cfg.PDFDirectory != currentDir {
		t.Errorf("Expected default PDF directory to be '%s', got '%s'", currentDir, cfg.PDFDirectory)
	}
}

func validConfig(dir string) *Config {
	return &Config{
		Mode:            "server",
		Host:            "127.0.0.1",
		Port:            8080,
		PDFDirectory:    dir,
		LogLevel:        "info",
		MaxFileSize:     1024,
		Sessions:        4,
		ViewerContainer: "viewer",
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(c *Config)
		wantErr bool
	}{
		{
			name:    "valid config - server mode",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "valid config - stdio mode",
			modify:  func(c *Config) { c.Mode = "stdio" },
			wantErr: false,
		},
		{
			name:    "invalid mode",
			modify:  func(c *Config) { c.Mode = "invalid" },
			wantErr: true,
		},
		{
			name:    "invalid port - too low (server mode)",
			modify:  func(c *Config) { c.Port = 0 },
			wantErr: true,
		},
		{
			name:    "invalid port - too high (server mode)",
			modify:  func(c *Config) { c.Port = 70000 },
			wantErr: true,
		},
		{
			name:    "invalid port ignored in stdio mode",
			modify:  func(c *Config) { c.Mode, c.Port = "stdio", 0 },
			wantErr: false,
		},
		{
			name:    "no sessions (server mode)",
			modify:  func(c *Config) { c.Sessions = 0 },
			wantErr: true,
		},
		{
			name:    "no sessions ignored in stdio mode",
			modify:  func(c *Config) { c.Mode, c.Sessions = "stdio", 0 },
			wantErr: false,
		},
		{
			name:    "empty PDF directory",
			modify:  func(c *Config) { c.PDFDirectory = "" },
			wantErr: true,
		},
		{
			name:    "invalid log level",
			modify:  func(c *Config) { c.LogLevel = "invalid" },
			wantErr: true,
		},
		{
			name:    "invalid max file size",
			modify:  func(c *Config) { c.MaxFileSize = 0 },
			wantErr: true,
		},
		{
			name:    "empty viewer container",
			modify:  func(c *Config) { c.ViewerContainer = "" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t.TempDir())
			tt.modify(cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Config.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfigValidateDirectoryCreation(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "non-existent", "pdfs")

	cfg := validConfig(missing)
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Config.Validate() unexpected error: %v", err)
	}

	info, err := os.Stat(missing)
	if err != nil {
		t.Fatalf("Directory should have been created: %v", err)
	}
	if !info.IsDir() {
		t.Errorf("%s should be a directory", missing)
	}
}

func TestConfigValidateLogLevels(t *testing.T) {
	validLevels := []string{"debug", "info", "warn", "error"}
	invalidLevels := []string{"DEBUG", "INFO", "trace", "fatal", ""}

	tempDir := t.TempDir()

	for _, level := range validLevels {
		t.Run("valid_"+level, func(t *testing.T) {
			cfg := validConfig(tempDir)
			cfg.LogLevel = level

			if err := cfg.Validate(); err != nil {
				t.Errorf("Config.Validate() should accept log level '%s', got error: %v", level, err)
			}
		})
	}

	for _, level := range invalidLevels {
		t.Run("invalid_"+level, func(t *testing.T) {
			cfg := validConfig(tempDir)
			cfg.LogLevel = level

			if err := cfg.Validate(); err == nil {
				t.Errorf("Config.Validate() should reject log level '%s'", level)
			}
		})
	}
}

func TestConfigAddress(t *testing.T) {
	cfg := &Config{
		Host: "192.168.1.1",
		Port: 9090,
	}

	expected := "192.168.1.1:9090"
	if got := cfg.Address(); got != expected {
		t.Errorf("Config.Address() = %v, want %v", got, expected)
	}
}

func TestConfigIsDebug(t *testing.T) {
	tests := []struct {
		logLevel string
		want     bool
	}{
		{logLevel: "debug", want: true},
		{logLevel: "info", want: false},
		{logLevel: "warn", want: false},
		{logLevel: "error", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.logLevel, func(t *testing.T) {
			cfg := &Config{LogLevel: tt.logLevel}
			if got := cfg.IsDebug(); got != tt.want {
				t.Errorf("Config.IsDebug() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestConfigString(t *testing.T) {
	cfg := &Config{
		Mode:            "server",
		Host:            "localhost",
		Port:            8080,
		PDFDirectory:    "/home/user/pdfs",
		LogLevel:        "debug",
		MaxFileSize:     1024,
		Sessions:        8,
		ViewerContainer: "viewer",
	}

	result := cfg.String()

	expectedSubstrings := []string{
		"Mode: server",
		"Host: localhost",
		"Port: 8080",
		"PDFDirectory: /home/user/pdfs",
		"LogLevel: debug",
		"MaxFileSize: 1024",
		"Sessions: 8",
		"ViewerContainer: viewer",
	}

	for _, substr := range expectedSubstrings {
		if !strings.Contains(result, substr) {
			t.Errorf("Config.String() result doesn't contain expected substring: %s\nGot: %s", substr, result)
		}
	}
}

func TestConfigModes(t *testing.T) {
	server := &Config{Mode: "server"}
	if !server.IsServerMode() || server.IsStdioMode() {
		t.Errorf("server mode misreported: server=%v stdio=%v", server.IsServerMode(), server.IsStdioMode())
	}

	stdio := &Config{Mode: "stdio"}
	if stdio.IsServerMode() || !stdio.IsStdioMode() {
		t.Errorf("stdio mode misreported: server=%v stdio=%v", stdio.IsServerMode(), stdio.IsStdioMode())
	}
}

func TestEnvName(t *testing.T) {
	tests := map[string]string{
		"mode":             "PDF_FORM_MODE",
		"log-level":        "PDF_FORM_LOG_LEVEL",
		"viewer-client-id": "PDF_FORM_VIEWER_CLIENT_ID",
	}

	for key, want := range tests {
		if got := envName(key); got != want {
			t.Errorf("envName(%q) = %q, want %q", key, got, want)
		}
	}
}
