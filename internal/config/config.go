package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/a3tai/mcp-pdf-waiver/internal/waiver/delivery"
)

const (
	// Mode constants
	ModeStdio  = "stdio"
	ModeServer = "server"

	// Default values
	DefaultPort        = 8080
	DefaultHost        = "127.0.0.1"
	DefaultLogLevel    = "info"
	DefaultMaxFileSize = 50 * 1024 * 1024 // 50MB
	DefaultSessionTTL  = 2 * time.Hour
	DefaultSMTPPort    = 587
	DefaultSMTPTimeout = 30 * time.Second
	DefaultSMTPSubject = "Your signed waiver"
)

// SMTPConfig holds e-mail delivery settings. Delivery is disabled when Host is empty.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Subject  string
	TLS      string
	Timeout  time.Duration
}

// Config holds all configuration for the waiver MCP server
type Config struct {
	// Server configuration
	Mode string // "server" or "stdio"
	Host string
	Port int

	// Waiver configuration
	OutputDirectory string
	TemplatePath    string
	SchemaPath      string // empty selects the embedded schema
	SessionTTL      time.Duration

	SMTP SMTPConfig

	// Application configuration
	Version     string
	ServerName  string
	LogLevel    string
	MaxFileSize int64 // Maximum template size in bytes
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	currentDir, err := os.Getwd()
	if err != nil {
		currentDir = "."
	}

	return &Config{
		Mode:            ModeStdio,
		Host:            DefaultHost,
		Port:            DefaultPort,
		OutputDirectory: filepath.Join(currentDir, "waivers"),
		SessionTTL:      DefaultSessionTTL,
		SMTP: SMTPConfig{
			Port:    DefaultSMTPPort,
			Subject: DefaultSMTPSubject,
			TLS:     delivery.TLSMandatory,
			Timeout: DefaultSMTPTimeout,
		},
		Version:     "1.0.0",
		ServerName:  "mcp-pdf-waiver",
		LogLevel:    DefaultLogLevel,
		MaxFileSize: DefaultMaxFileSize,
	}
}

// LoadFromFlags parses command line flags and returns a configuration
func LoadFromFlags() (*Config, error) {
	cfg := DefaultConfig()

	setupViperEnvironment(cfg)
	defineCommandLineFlags(cfg)
	bindFlagsToViper()
	setupUsageMessage()

	if err := checkVersionFlag(); err != nil {
		return nil, err
	}

	pflag.Parse()

	populateConfigFromViper(cfg)

	for _, p := range []*string{&cfg.OutputDirectory, &cfg.TemplatePath, &cfg.SchemaPath} {
		if *p == "" {
			continue
		}
		if expandedPath, err := filepath.Abs(*p); err == nil {
			*p = expandedPath
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// setupViperEnvironment configures viper with environment variables and defaults
func setupViperEnvironment(cfg *Config) {
	viper.SetEnvPrefix("WAIVER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("mode", cfg.Mode)
	viper.SetDefault("host", cfg.Host)
	viper.SetDefault("port", cfg.Port)
	viper.SetDefault("dir", cfg.OutputDirectory)
	viper.SetDefault("template", cfg.TemplatePath)
	viper.SetDefault("schema", cfg.SchemaPath)
	viper.SetDefault("sessionttl", cfg.SessionTTL)
	viper.SetDefault("loglevel", cfg.LogLevel)
	viper.SetDefault("maxfilesize", cfg.MaxFileSize)
	viper.SetDefault("smtp.host", cfg.SMTP.Host)
	viper.SetDefault("smtp.port", cfg.SMTP.Port)
	viper.SetDefault("smtp.username", cfg.SMTP.Username)
	viper.SetDefault("smtp.password", cfg.SMTP.Password)
	viper.SetDefault("smtp.from", cfg.SMTP.From)
	viper.SetDefault("smtp.subject", cfg.SMTP.Subject)
	viper.SetDefault("smtp.tls", cfg.SMTP.TLS)
	viper.SetDefault("smtp.timeout", cfg.SMTP.Timeout)
}

// defineCommandLineFlags sets up all command line flags
func defineCommandLineFlags(cfg *Config) {
	pflag.String("mode", cfg.Mode, "Server mode: 'stdio' for MCP standard I/O, 'server' for SSE server")
	pflag.String("host", cfg.Host, "Server host address (server mode only)")
	pflag.Int("port", cfg.Port, "Server port (server mode only)")
	pflag.String("dir", cfg.OutputDirectory, "Directory generated waivers are written to")
	pflag.String("template", cfg.TemplatePath, "Template PDF the waiver is drawn onto")
	pflag.String("schema", cfg.SchemaPath, "Field schema YAML (embedded waiver schema when empty)")
	pflag.Duration("sessionttl", cfg.SessionTTL, "Idle time after which a form session is discarded")
	pflag.String("loglevel", cfg.LogLevel, "Log level (debug, info, warn, error)")
	pflag.Int64("maxfilesize", cfg.MaxFileSize, "Maximum template file size in bytes")
	pflag.String("smtp-host", cfg.SMTP.Host, "SMTP host for e-mail delivery (disabled when empty)")
	pflag.Int("smtp-port", cfg.SMTP.Port, "SMTP port")
	pflag.String("smtp-username", cfg.SMTP.Username, "SMTP username")
	pflag.String("smtp-from", cfg.SMTP.From, "Sender address of delivered waivers")
	pflag.String("smtp-subject", cfg.SMTP.Subject, "Subject of delivered waivers")
	pflag.String("smtp-tls", cfg.SMTP.TLS, "SMTP TLS policy (mandatory, opportunistic, none)")
	pflag.Duration("smtp-timeout", cfg.SMTP.Timeout, "SMTP dial and send timeout")
}

// bindFlagsToViper binds command line flags to viper configuration
func bindFlagsToViper() {
	for _, key := range []string{"mode", "host", "port", "dir", "template", "schema", "sessionttl", "loglevel", "maxfilesize"} {
		_ = viper.BindPFlag(key, pflag.Lookup(key))
	}
	for _, key := range []string{"host", "port", "username", "from", "subject", "tls", "timeout"} {
		_ = viper.BindPFlag("smtp."+key, pflag.Lookup("smtp-"+key))
	}
}

// setupUsageMessage configures the custom usage message
func setupUsageMessage() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of %s:\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nMCP PDF Waiver - A Model Context Protocol server that fills PDF waivers\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		pflag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s --template=waiver.pdf                       "+
			"# stdio mode, embedded schema\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --template=waiver.pdf --schema=fields.yaml  "+
			"# custom field schema\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --mode=server --template=waiver.pdf --port=8081 # SSE server\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  WAIVER_MODE           Server mode\n")
		fmt.Fprintf(os.Stderr, "  WAIVER_HOST           Server host\n")
		fmt.Fprintf(os.Stderr, "  WAIVER_PORT           Server port\n")
		fmt.Fprintf(os.Stderr, "  WAIVER_DIR            Output directory\n")
		fmt.Fprintf(os.Stderr, "  WAIVER_TEMPLATE       Template PDF\n")
		fmt.Fprintf(os.Stderr, "  WAIVER_SCHEMA         Field schema YAML\n")
		fmt.Fprintf(os.Stderr, "  WAIVER_LOGLEVEL       Log level\n")
		fmt.Fprintf(os.Stderr, "  WAIVER_SMTP_HOST      SMTP host\n")
		fmt.Fprintf(os.Stderr, "  WAIVER_SMTP_PASSWORD  SMTP password (environment only)\n")
	}
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
	cfg.OutputDirectory = viper.GetString("dir")
	cfg.TemplatePath = viper.GetString("template")
	cfg.SchemaPath = viper.GetString("schema")
	cfg.SessionTTL = viper.GetDuration("sessionttl")
	cfg.LogLevel = viper.GetString("loglevel")
	cfg.MaxFileSize = viper.GetInt64("maxfilesize")
	cfg.SMTP = SMTPConfig{
		Host:     viper.GetString("smtp.host"),
		Port:     viper.GetInt("smtp.port"),
		Username: viper.GetString("smtp.username"),
		Password: viper.GetString("smtp.password"),
		From:     viper.GetString("smtp.from"),
		Subject:  viper.GetString("smtp.subject"),
		TLS:      viper.GetString("smtp.tls"),
		Timeout:  viper.GetDuration("smtp.timeout"),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Mode != ModeStdio && c.Mode != ModeServer {
		return errors.New("mode must be either 'stdio' or 'server'")
	}

	if c.Mode == ModeServer && (c.Port < 1 || c.Port > 65535) {
		return errors.New("port must be between 1 and 65535")
	}

	if c.OutputDirectory == "" {
		return errors.New("output directory cannot be empty")
	}

	if c.MaxFileSize <= 0 {
		return errors.New("maximum file size must be positive")
	}

	if err := c.validateTemplate(); err != nil {
		return err
	}

	if c.SchemaPath != "" {
		if _, err := os.Stat(c.SchemaPath); err != nil {
			return fmt.Errorf("cannot access schema %s: %w", c.SchemaPath, err)
		}
	}

	if c.SessionTTL <= 0 {
		return errors.New("session ttl must be positive")
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

	if c.DeliveryEnabled() {
		if err := c.Delivery().Validate(); err != nil {
			return fmt.Errorf("invalid smtp configuration: %w", err)
		}
	}

	return nil
}

func (c *Config) validateTemplate() error {
	if c.TemplatePath == "" {
		return errors.New("template path cannot be empty")
	}
	info, err := os.Stat(c.TemplatePath)
	if err != nil {
		return fmt.Errorf("cannot access template %s: %w", c.TemplatePath, err)
	}
	if info.IsDir() {
		return fmt.Errorf("template is a directory, not a file: %s", c.TemplatePath)
	}
	if !strings.HasSuffix(strings.ToLower(c.TemplatePath), ".pdf") {
		return fmt.Errorf("template is not a PDF: %s", c.TemplatePath)
	}
	if info.Size() == 0 {
		return fmt.Errorf("template is empty: %s", c.TemplatePath)
	}
	if info.Size() > c.MaxFileSize {
		return fmt.Errorf("template too large: %d bytes (max: %d bytes)", info.Size(), c.MaxFileSize)
	}
	return nil
}

// ReadTemplate returns the template bytes
func (c *Config) ReadTemplate() ([]byte, error) {
	if err := c.validateTemplate(); err != nil {
		return nil, err
	}
	return os.ReadFile(c.TemplatePath)
}

// DeliveryEnabled reports whether e-mail delivery is configured
func (c *Config) DeliveryEnabled() bool {
	return c.SMTP.Host != ""
}

// Delivery returns the SMTP settings in the form the delivery package expects
func (c *Config) Delivery() delivery.Config {
	return delivery.Config{
		Host:     c.SMTP.Host,
		Port:     c.SMTP.Port,
		Username: c.SMTP.Username,
		Password: c.SMTP.Password,
		From:     c.SMTP.From,
		Subject:  c.SMTP.Subject,
		TLS:      c.SMTP.TLS,
		Timeout:  c.SMTP.Timeout,
	}
}

// Address returns the server address as host:port
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsDebug returns true if debug logging is enabled
func (c *Config) IsDebug() bool {
	return c.LogLevel == "debug"
}

// String returns a string representation of the configuration. The SMTP password is
// never included.
func (c *Config) String() string {
	return fmt.Sprintf("Config{Mode: %s, Host: %s, Port: %d, OutputDirectory: %s, Template: %s, Schema: %s, "+
		"LogLevel: %s, MaxFileSize: %d, SMTPHost: %s}",
		c.Mode, c.Host, c.Port, c.OutputDirectory, c.TemplatePath, c.SchemaPath,
		c.LogLevel, c.MaxFileSize, c.SMTP.Host)
}

// IsServerMode returns true if the server is running in SSE server mode
func (c *Config) IsServerMode() bool {
	return c.Mode == ModeServer
}

// IsStdioMode returns true if the server is running in stdio mode
func (c *Config) IsStdioMode() bool {
	return c.Mode == ModeStdio
}
