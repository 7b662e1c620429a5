package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// Mode constants
	ModeStdio  = "stdio"
	ModeServer = "server"

	// Default values
	DefaultPort              = 8080
	DefaultHost              = "127.0.0.1"
	DefaultLogLevel          = "info"
	DefaultMaxFileSize       = 100 * 1024 * 1024 // 100MB
	DefaultCachePath         = "fieldmap.db"
	DefaultOracleModel       = "gemini-2.5-flash"
	DefaultOracleTimeout     = 120 * time.Second
	DefaultOracleBaseDelay   = 1 * time.Second
	DefaultOracleStepDelay   = 2 * time.Second
	DefaultOracleMaxRetries  = 5
	DefaultCoverageThreshold = 0.90
	DefaultBatchSize         = 30
	DefaultMaxRounds         = 5

	// Directory permissions
	DefaultDirPerm = 0o750
)

// Config holds all configuration for the fieldmap server.
type Config struct {
	// Server configuration
	Mode string // "server" or "stdio"
	Host string
	Port int

	// Form template configuration
	FormsDirectory string
	WatchForms     bool
	MaxFileSize    int64 // Maximum PDF file size in bytes

	// Mapping cache configuration
	CachePath string

	// Reasoning oracle configuration
	OracleAPIKey     string // env only, never a flag
	OracleModel      string
	OracleTimeout    time.Duration
	OracleBaseDelay  time.Duration
	OracleStepDelay  time.Duration
	OracleMaxRetries int

	// Mapping agent configuration
	CoverageThreshold float64
	BatchSize         int
	MaxRounds         int

	// Application configuration
	Version    string
	ServerName string
	LogLevel   string
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	currentDir, err := os.Getwd()
	if err != nil {
		// Fallback to current directory if working directory cannot be determined
		currentDir = "."
	}

	return &Config{
		Mode:              ModeStdio, // Default to stdio mode for MCP compatibility
		Host:              DefaultHost,
		Port:              DefaultPort,
		FormsDirectory:    currentDir,
		WatchForms:        false,
		MaxFileSize:       DefaultMaxFileSize,
		CachePath:         DefaultCachePath,
		OracleModel:       DefaultOracleModel,
		OracleTimeout:     DefaultOracleTimeout,
		OracleBaseDelay:   DefaultOracleBaseDelay,
		OracleStepDelay:   DefaultOracleStepDelay,
		OracleMaxRetries:  DefaultOracleMaxRetries,
		CoverageThreshold: DefaultCoverageThreshold,
		BatchSize:         DefaultBatchSize,
		MaxRounds:         DefaultMaxRounds,
		Version:           "1.0.0",
		ServerName:        "fieldmap",
		LogLevel:          DefaultLogLevel,
	}
}

// LoadFromFlags parses command line flags and returns a configuration.
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

	// Expand paths if needed
	if cfg.FormsDirectory != "" {
		if expandedPath, err := filepath.Abs(cfg.FormsDirectory); err == nil {
			cfg.FormsDirectory = expandedPath
		}
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// setupViperEnvironment configures viper with environment variables and defaults.
func setupViperEnvironment(cfg *Config) {
	// Set environment variable prefix
	viper.SetEnvPrefix("FIELDMAP")
	viper.AutomaticEnv()

	viper.SetDefault("mode", cfg.Mode)
	viper.SetDefault("host", cfg.Host)
	viper.SetDefault("port", cfg.Port)
	viper.SetDefault("dir", cfg.FormsDirectory)
	viper.SetDefault("watch", cfg.WatchForms)
	viper.SetDefault("cache", cfg.CachePath)
	viper.SetDefault("oraclemodel", cfg.OracleModel)
	viper.SetDefault("oracletimeout", cfg.OracleTimeout)
	viper.SetDefault("oraclebasedelay", cfg.OracleBaseDelay)
	viper.SetDefault("oraclestepdelay", cfg.OracleStepDelay)
	viper.SetDefault("oraclemaxretries", cfg.OracleMaxRetries)
	viper.SetDefault("coverage", cfg.CoverageThreshold)
	viper.SetDefault("batchsize", cfg.BatchSize)
	viper.SetDefault("maxrounds", cfg.MaxRounds)
	viper.SetDefault("loglevel", cfg.LogLevel)
	viper.SetDefault("maxfilesize", cfg.MaxFileSize)

	// The oracle key is environment-only so it never shows up in process
	// listings or shell history.
	viper.SetDefault("oracleapikey", "")
	_ = viper.BindEnv("oracleapikey", "FIELDMAP_ORACLE_API_KEY", "GEMINI_API_KEY")
}

// defineCommandLineFlags sets up all command line flags.
func defineCommandLineFlags(cfg *Config) {
	pflag.String("mode", cfg.Mode, "Server mode: 'stdio' for MCP standard I/O, 'server' for HTTP server")
	pflag.String("host", cfg.Host, "Server host address (server mode only)")
	pflag.Int("port", cfg.Port, "Server port (server mode only)")
	pflag.String("dir", cfg.FormsDirectory, "Directory containing PDF form templates")
	pflag.Bool("watch", cfg.WatchForms, "Watch the forms directory and pre-generate mappings for new templates")
	pflag.String("cache", cfg.CachePath, "Path of the mapping cache database")
	pflag.String("oraclemodel", cfg.OracleModel, "Reasoning model used for semantic mapping")
	pflag.Duration("oracletimeout", cfg.OracleTimeout, "Per-call timeout for oracle requests")
	pflag.Duration("oraclebasedelay", cfg.OracleBaseDelay, "Base delay before retrying a throttled oracle call")
	pflag.Duration("oraclestepdelay", cfg.OracleStepDelay, "Per-attempt increment of the oracle retry delay")
	pflag.Int("oraclemaxretries", cfg.OracleMaxRetries, "Retries per oracle call before giving up")
	pflag.Float64("coverage", cfg.CoverageThreshold, "Coverage fraction required for a validated mapping")
	pflag.Int("batchsize", cfg.BatchSize, "Fields per gap-filling oracle call")
	pflag.Int("maxrounds", cfg.MaxRounds, "Maximum gap-filling rounds per mapping run")
	pflag.String("loglevel", cfg.LogLevel, "Log level (debug, info, warn, error)")
	pflag.Int64("maxfilesize", cfg.MaxFileSize, "Maximum PDF file size in bytes")
}

// bindFlagsToViper binds command line flags to viper configuration.
func bindFlagsToViper() {
	_ = viper.BindPFlag("mode", pflag.Lookup("mode"))
	_ = viper.BindPFlag("host", pflag.Lookup("host"))
	_ = viper.BindPFlag("port", pflag.Lookup("port"))
	_ = viper.BindPFlag("dir", pflag.Lookup("dir"))
	_ = viper.BindPFlag("watch", pflag.Lookup("watch"))
	_ = viper.BindPFlag("cache", pflag.Lookup("cache"))
	_ = viper.BindPFlag("oraclemodel", pflag.Lookup("oraclemodel"))
	_ = viper.BindPFlag("oracletimeout", pflag.Lookup("oracletimeout"))
	_ = viper.BindPFlag("oraclebasedelay", pflag.Lookup("oraclebasedelay"))
	_ = viper.BindPFlag("oraclestepdelay", pflag.Lookup("oraclestepdelay"))
	_ = viper.BindPFlag("oraclemaxretries", pflag.Lookup("oraclemaxretries"))
	_ = viper.BindPFlag("coverage", pflag.Lookup("coverage"))
	_ = viper.BindPFlag("batchsize", pflag.Lookup("batchsize"))
	_ = viper.BindPFlag("maxrounds", pflag.Lookup("maxrounds"))
	_ = viper.BindPFlag("loglevel", pflag.Lookup("loglevel"))
	_ = viper.BindPFlag("maxfilesize", pflag.Lookup("maxfilesize"))
}

// setupUsageMessage configures the custom usage message.
func setupUsageMessage() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of %s:\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nfieldmap - semantic form-field mapping and filling over MCP\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		pflag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s                                          "+
			"# stdio mode, current directory (default)\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --dir=/path/to/forms --watch             "+
			"# pre-generate mappings for new templates\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --mode=server --host=0.0.0.0 --port=8081 # HTTP server mode\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  FIELDMAP_MODE            Server mode\n")
		fmt.Fprintf(os.Stderr, "  FIELDMAP_DIR             Forms directory\n")
		fmt.Fprintf(os.Stderr, "  FIELDMAP_CACHE           Mapping cache database path\n")
		fmt.Fprintf(os.Stderr, "  FIELDMAP_ORACLE_API_KEY  Reasoning oracle API key (or GEMINI_API_KEY)\n")
		fmt.Fprintf(os.Stderr, "  FIELDMAP_ORACLEMODEL     Reasoning model name\n")
		fmt.Fprintf(os.Stderr, "  FIELDMAP_LOGLEVEL        Log level\n")
	}
}

// checkVersionFlag checks if version flag was requested.
func checkVersionFlag() error {
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" || arg == "-v" {
			return fmt.Errorf("version requested")
		}
	}
	return nil
}

// populateConfigFromViper fills the config struct with values from viper.
func populateConfigFromViper(cfg *Config) {
	cfg.Mode = viper.GetString("mode")
	cfg.Host = viper.GetString("host")
	cfg.Port = viper.GetInt("port")
	cfg.FormsDirectory = viper.GetString("dir")
	cfg.WatchForms = viper.GetBool("watch")
	cfg.CachePath = viper.GetString("cache")
	cfg.OracleAPIKey = viper.GetString("oracleapikey")
	cfg.OracleModel = viper.GetString("oraclemodel")
	cfg.OracleTimeout = viper.GetDuration("oracletimeout")
	cfg.OracleBaseDelay = viper.GetDuration("oraclebasedelay")
	cfg.OracleStepDelay = viper.GetDuration("oraclestepdelay")
	cfg.OracleMaxRetries = viper.GetInt("oraclemaxretries")
	cfg.CoverageThreshold = viper.GetFloat64("coverage")
	cfg.BatchSize = viper.GetInt("batchsize")
	cfg.MaxRounds = viper.GetInt("maxrounds")
	cfg.LogLevel = viper.GetString("loglevel")
	cfg.MaxFileSize = viper.GetInt64("maxfilesize")
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	// Validate mode
	if c.Mode != ModeStdio && c.Mode != ModeServer {
		return errors.New("mode must be either 'stdio' or 'server'")
	}

	// Validate port range (only for server mode)
	if c.Mode == ModeServer && (c.Port < 1 || c.Port > 65535) {
		return errors.New("port must be between 1 and 65535")
	}

	// Validate forms directory
	if c.FormsDirectory == "" {
		return errors.New("forms directory cannot be empty")
	}

	// Check if forms directory exists, create if it doesn't
	if _, err := os.Stat(c.FormsDirectory); os.IsNotExist(err) {
		if err := os.MkdirAll(c.FormsDirectory, DefaultDirPerm); err != nil {
			return fmt.Errorf("cannot create forms directory %s: %w", c.FormsDirectory, err)
		}
	} else if err != nil {
		return fmt.Errorf("cannot access forms directory %s: %w", c.FormsDirectory, err)
	}

	if c.CachePath == "" {
		return errors.New("cache path cannot be empty")
	}

	if c.CoverageThreshold <= 0 || c.CoverageThreshold > 1 {
		return errors.New("coverage threshold must be in (0, 1]")
	}

	if c.OracleBaseDelay <= 0 || c.OracleStepDelay <= 0 {
		return errors.New("oracle retry delays must be positive")
	}

	if c.OracleMaxRetries < 1 {
		return errors.New("oracle max retries must be positive")
	}

	if c.BatchSize < 1 {
		return errors.New("batch size must be positive")
	}

	if c.MaxRounds < 1 {
		return errors.New("max rounds must be positive")
	}

	// Validate max file size
	if c.MaxFileSize <= 0 {
		return errors.New("maximum file size must be positive")
	}

	// Validate log level
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

// Address returns the server address as host:port.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsDebug returns true if debug logging is enabled.
func (c *Config) IsDebug() bool {
	return c.LogLevel == "debug"
}

// String returns a string representation of the configuration. The oracle
// key is deliberately omitted.
func (c *Config) String() string {
	return fmt.Sprintf("Config{Mode: %s, Host: %s, Port: %d, FormsDirectory: %s, CachePath: %s, OracleModel: %s, Coverage: %.2f, BatchSize: %d, MaxRounds: %d, LogLevel: %s}",
		c.Mode, c.Host, c.Port, c.FormsDirectory, c.CachePath, c.OracleModel, c.CoverageThreshold, c.BatchSize, c.MaxRounds, c.LogLevel)
}

// IsServerMode returns true if the server is running in HTTP server mode.
func (c *Config) IsServerMode() bool {
	return c.Mode == ModeServer
}

// IsStdioMode returns true if the server is running in stdio mode.
func (c *Config) IsStdioMode() bool {
	return c.Mode == ModeStdio
}
