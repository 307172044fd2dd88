package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/a3tai/mcp-pdf-waiver/internal/testdoc"
)

// resetFlags resets pflag.CommandLine and viper between tests
func resetFlags() {
	pflag.CommandLine = pflag.NewFlagSet(os.Args[0], pflag.ExitOnError)
	viper.Reset()
}

func withArgs(t *testing.T, args ...string) {
	t.Helper()
	originalArgs := os.Args
	t.Cleanup(func() {
		os.Args = originalArgs
		resetFlags()
	})
	os.Args = args
	resetFlags()
}

func TestLoadFromFlags_Defaults(t *testing.T) {
	template := testdoc.WriteBlank(t, 8)
	withArgs(t, "mcp-pdf-waiver", "--template="+template)

	cfg, err := LoadFromFlags()
	if err != nil {
		t.Fatalf("LoadFromFlags() unexpected error: %v", err)
	}

	if cfg.Mode != "stdio" {
		t.Errorf("LoadFromFlags() Mode = %v, want stdio", cfg.Mode)
	}
	if cfg.Port != 8080 {
		t.Errorf("LoadFromFlags() Port = %v, want 8080", cfg.Port)
	}
	if cfg.TemplatePath != template {
		t.Errorf("LoadFromFlags() TemplatePath = %v, want %v", cfg.TemplatePath, template)
	}
	if cfg.SchemaPath != "" {
		t.Errorf("LoadFromFlags() SchemaPath = %v, want embedded", cfg.SchemaPath)
	}
	if cfg.SessionTTL != DefaultSessionTTL {
		t.Errorf("LoadFromFlags() SessionTTL = %v, want %v", cfg.SessionTTL, DefaultSessionTTL)
	}
	if cfg.DeliveryEnabled() {
		t.Error("LoadFromFlags() delivery should be disabled")
	}
}

func TestLoadFromFlags_Flags(t *testing.T) {
	template := testdoc.WriteBlank(t, 8)
	out := filepath.Join(t.TempDir(), "out")
	withArgs(t, "mcp-pdf-waiver",
		"--mode=server",
		"--host=0.0.0.0",
		"--port=9090",
		"--dir="+out,
		"--template="+template,
		"--loglevel=debug",
		"--sessionttl=30m",
		"--smtp-host=smtp.example.com",
		"--smtp-port=2525",
		"--smtp-from=waivers@example.com",
		"--smtp-tls=none",
	)

	cfg, err := LoadFromFlags()
	if err != nil {
		t.Fatalf("LoadFromFlags() unexpected error: %v", err)
	}

	if cfg.Mode != "server" || cfg.Host != "0.0.0.0" || cfg.Port != 9090 {
		t.Errorf("LoadFromFlags() server settings = %s", cfg.Address())
	}
	if cfg.OutputDirectory != out {
		t.Errorf("LoadFromFlags() OutputDirectory = %v, want %v", cfg.OutputDirectory, out)
	}
	if !cfg.IsDebug() {
		t.Error("LoadFromFlags() expected debug log level")
	}
	if cfg.SessionTTL != 30*time.Minute {
		t.Errorf("LoadFromFlags() SessionTTL = %v, want 30m", cfg.SessionTTL)
	}
	if cfg.SMTP.Host != "smtp.example.com" || cfg.SMTP.Port != 2525 || cfg.SMTP.TLS != "none" {
		t.Errorf("LoadFromFlags() SMTP = %+v", cfg.SMTP)
	}
}

func TestLoadFromFlags_Environment(t *testing.T) {
	template := testdoc.WriteBlank(t, 8)
	withArgs(t, "mcp-pdf-waiver")

	t.Setenv("WAIVER_TEMPLATE", template)
	t.Setenv("WAIVER_PORT", "7070")
	t.Setenv("WAIVER_SMTP_HOST", "smtp.example.com")
	t.Setenv("WAIVER_SMTP_FROM", "waivers@example.com")
	t.Setenv("WAIVER_SMTP_PASSWORD", "secret")

	cfg, err := LoadFromFlags()
	if err != nil {
		t.Fatalf("LoadFromFlags() unexpected error: %v", err)
	}

	if cfg.TemplatePath != template {
		t.Errorf("LoadFromFlags() TemplatePath = %v, want %v", cfg.TemplatePath, template)
	}
	if cfg.Port != 7070 {
		t.Errorf("LoadFromFlags() Port = %v, want 7070", cfg.Port)
	}
	if cfg.SMTP.Password != "secret" {
		t.Error("LoadFromFlags() SMTP password not read from environment")
	}
	if !cfg.DeliveryEnabled() {
		t.Error("LoadFromFlags() delivery should be enabled")
	}
}

func TestLoadFromFlags_Invalid(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "missing template", args: []string{"mcp-pdf-waiver"}},
		{name: "invalid mode", args: []string{"mcp-pdf-waiver", "--mode=http"}},
		{name: "version", args: []string{"mcp-pdf-waiver", "--version"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withArgs(t, tt.args...)
			if _, err := LoadFromFlags(); err == nil {
				t.Error("LoadFromFlags() expected error")
			}
		})
	}
}
