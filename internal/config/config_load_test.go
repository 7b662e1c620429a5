package config

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Helper function to reset pflag.CommandLine for testing
func resetFlags() {
	pflag.CommandLine = pflag.NewFlagSet(os.Args[0], pflag.ExitOnError)
	viper.Reset()
}

// Helper function to set os.Args for testing
func setArgs(args []string) {
	os.Args = args
}

// Helper function to clear environment variables
func clearEnvVars() {
	os.Unsetenv("FIELDMAP_MODE")
	os.Unsetenv("FIELDMAP_HOST")
	os.Unsetenv("FIELDMAP_PORT")
	os.Unsetenv("FIELDMAP_DIR")
	os.Unsetenv("FIELDMAP_CACHE")
	os.Unsetenv("FIELDMAP_LOGLEVEL")
	os.Unsetenv("FIELDMAP_MAXFILESIZE")
	os.Unsetenv("FIELDMAP_ORACLEBASEDELAY")
	os.Unsetenv("FIELDMAP_ORACLESTEPDELAY")
	os.Unsetenv("FIELDMAP_ORACLEMAXRETRIES")
	os.Unsetenv("FIELDMAP_ORACLE_API_KEY")
	os.Unsetenv("GEMINI_API_KEY")
}

func TestLoadFromFlags_DefaultConfig(t *testing.T) {
	// Save original args and environment
	originalArgs := os.Args
	defer func() {
		os.Args = originalArgs
		resetFlags()
		clearEnvVars()
	}()

	// Set minimal args (just program name)
	setArgs([]string{"fieldmap-server"})
	resetFlags()
	clearEnvVars()

	cfg, err := LoadFromFlags()
	if err != nil {
		t.Fatalf("LoadFromFlags() unexpected error: %v", err)
	}

	// Verify default values
	if cfg.Mode != "stdio" {
		t.Errorf("LoadFromFlags() Mode = %v, want %v", cfg.Mode, "stdio")
	}
	if cfg.Host != "127.0.0.1" {
		t.Errorf("LoadFromFlags() Host = %v, want %v", cfg.Host, "127.0.0.1")
	}
	if cfg.Port != 8080 {
		t.Errorf("LoadFromFlags() Port = %v, want %v", cfg.Port, 8080)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LoadFromFlags() LogLevel = %v, want %v", cfg.LogLevel, "info")
	}
	if cfg.MaxFileSize != 100*1024*1024 {
		t.Errorf("LoadFromFlags() MaxFileSize = %v, want %v", cfg.MaxFileSize, 100*1024*1024)
	}
	if cfg.CachePath != "fieldmap.db" {
		t.Errorf("LoadFromFlags() CachePath = %v, want %v", cfg.CachePath, "fieldmap.db")
	}
	if cfg.BatchSize != 30 {
		t.Errorf("LoadFromFlags() BatchSize = %v, want %v", cfg.BatchSize, 30)
	}
	if cfg.MaxRounds != 5 {
		t.Errorf("LoadFromFlags() MaxRounds = %v, want %v", cfg.MaxRounds, 5)
	}
	// FormsDirectory should be current working directory
	if cfg.FormsDirectory == "" {
		t.Error("LoadFromFlags() FormsDirectory should not be empty")
	}
}

func TestLoadFromFlags_ValidFlags(t *testing.T) {
	tests := []struct {
		name          string
		argsTemplate  []string
		wantMode      string
		wantHost      string
		wantPort      int
		wantLogLevel  string
		wantBatchSize int
		wantMaxRounds int
	}{
		{
			name:          "stdio mode with custom directory",
			argsTemplate:  []string{"fieldmap-server", "--dir=%s"},
			wantMode:      "stdio",
			wantHost:      "127.0.0.1",
			wantPort:      8080,
			wantLogLevel:  "info",
			wantBatchSize: 30,
			wantMaxRounds: 5,
		},
		{
			name:          "server mode",
			argsTemplate:  []string{"fieldmap-server", "--mode=server", "--dir=%s"},
			wantMode:      "server",
			wantHost:      "127.0.0.1",
			wantPort:      8080,
			wantLogLevel:  "info",
			wantBatchSize: 30,
			wantMaxRounds: 5,
		},
		{
			name:          "server mode with custom host and port",
			argsTemplate:  []string{"fieldmap-server", "--mode=server", "--host=0.0.0.0", "--port=9090", "--dir=%s"},
			wantMode:      "server",
			wantHost:      "0.0.0.0",
			wantPort:      9090,
			wantLogLevel:  "info",
			wantBatchSize: 30,
			wantMaxRounds: 5,
		},
		{
			name:          "debug logging",
			argsTemplate:  []string{"fieldmap-server", "--loglevel=debug", "--dir=%s"},
			wantMode:      "stdio",
			wantHost:      "127.0.0.1",
			wantPort:      8080,
			wantLogLevel:  "debug",
			wantBatchSize: 30,
			wantMaxRounds: 5,
		},
		{
			name:          "custom agent tuning",
			argsTemplate:  []string{"fieldmap-server", "--batchsize=10", "--maxrounds=3", "--dir=%s"},
			wantMode:      "stdio",
			wantHost:      "127.0.0.1",
			wantPort:      8080,
			wantLogLevel:  "info",
			wantBatchSize: 10,
			wantMaxRounds: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Save original args and environment
			originalArgs := os.Args
			defer func() {
				os.Args = originalArgs
				resetFlags()
				clearEnvVars()
			}()

			// Create temp directory for this test
			tempDir := t.TempDir()

			// Build args with temp directory
			args := make([]string, len(tt.argsTemplate))
			for i, arg := range tt.argsTemplate {
				if arg == "--dir=%s" {
					args[i] = "--dir=" + tempDir
				} else {
					args[i] = arg
				}
			}

			setArgs(args)
			resetFlags()
			clearEnvVars()

			cfg, err := LoadFromFlags()
			if err != nil {
				t.Fatalf("LoadFromFlags() unexpected error: %v", err)
			}

			if cfg.Mode != tt.wantMode {
				t.Errorf("LoadFromFlags() Mode = %v, want %v", cfg.Mode, tt.wantMode)
			}
			if cfg.Host != tt.wantHost {
				t.Errorf("LoadFromFlags() Host = %v, want %v", cfg.Host, tt.wantHost)
			}
			if cfg.Port != tt.wantPort {
				t.Errorf("LoadFromFlags() Port = %v, want %v", cfg.Port, tt.wantPort)
			}
			if cfg.LogLevel != tt.wantLogLevel {
				t.Errorf("LoadFromFlags() LogLevel = %v, want %v", cfg.LogLevel, tt.wantLogLevel)
			}
			if cfg.BatchSize != tt.wantBatchSize {
				t.Errorf("LoadFromFlags() BatchSize = %v, want %v", cfg.BatchSize, tt.wantBatchSize)
			}
			if cfg.MaxRounds != tt.wantMaxRounds {
				t.Errorf("LoadFromFlags() MaxRounds = %v, want %v", cfg.MaxRounds, tt.wantMaxRounds)
			}
			// FormsDirectory should be expanded to absolute path
			if cfg.FormsDirectory == "" {
				t.Error("LoadFromFlags() FormsDirectory should not be empty")
			}
		})
	}
}

func TestLoadFromFlags_OracleBackoffFlags(t *testing.T) {
	originalArgs := os.Args
	defer func() {
		os.Args = originalArgs
		resetFlags()
		clearEnvVars()
	}()

	tempDir := t.TempDir()
	setArgs([]string{
		"fieldmap-server",
		"--oraclebasedelay=3s",
		"--oraclestepdelay=5s",
		"--oraclemaxretries=2",
		"--dir=" + tempDir,
	})
	resetFlags()
	clearEnvVars()

	cfg, err := LoadFromFlags()
	if err != nil {
		t.Fatalf("LoadFromFlags() unexpected error: %v", err)
	}

	if cfg.OracleBaseDelay != 3*time.Second {
		t.Errorf("LoadFromFlags() OracleBaseDelay = %v, want %v", cfg.OracleBaseDelay, 3*time.Second)
	}
	if cfg.OracleStepDelay != 5*time.Second {
		t.Errorf("LoadFromFlags() OracleStepDelay = %v, want %v", cfg.OracleStepDelay, 5*time.Second)
	}
	if cfg.OracleMaxRetries != 2 {
		t.Errorf("LoadFromFlags() OracleMaxRetries = %v, want %v", cfg.OracleMaxRetries, 2)
	}
}

func TestLoadFromFlags_OracleBackoffDefaults(t *testing.T) {
	originalArgs := os.Args
	defer func() {
		os.Args = originalArgs
		resetFlags()
		clearEnvVars()
	}()

	setArgs([]string{"fieldmap-server"})
	resetFlags()
	clearEnvVars()

	cfg, err := LoadFromFlags()
	if err != nil {
		t.Fatalf("LoadFromFlags() unexpected error: %v", err)
	}

	if cfg.OracleBaseDelay != DefaultOracleBaseDelay {
		t.Errorf("LoadFromFlags() OracleBaseDelay = %v, want %v", cfg.OracleBaseDelay, DefaultOracleBaseDelay)
	}
	if cfg.OracleStepDelay != DefaultOracleStepDelay {
		t.Errorf("LoadFromFlags() OracleStepDelay = %v, want %v", cfg.OracleStepDelay, DefaultOracleStepDelay)
	}
	if cfg.OracleMaxRetries != DefaultOracleMaxRetries {
		t.Errorf("LoadFromFlags() OracleMaxRetries = %v, want %v", cfg.OracleMaxRetries, DefaultOracleMaxRetries)
	}
}

func TestLoadFromFlags_EnvironmentVariables(t *testing.T) {
	// Save original args and environment
	originalArgs := os.Args
	defer func() {
		os.Args = originalArgs
		resetFlags()
		clearEnvVars()
	}()

	// Create temp directory for testing
	tempDir := t.TempDir()

	// Set environment variables
	os.Setenv("FIELDMAP_MODE", "server")
	os.Setenv("FIELDMAP_HOST", "192.168.1.1")
	os.Setenv("FIELDMAP_PORT", "3000")
	os.Setenv("FIELDMAP_DIR", tempDir)
	os.Setenv("FIELDMAP_LOGLEVEL", "warn")
	os.Setenv("FIELDMAP_MAXFILESIZE", "200000000")
	os.Setenv("FIELDMAP_ORACLEMAXRETRIES", "7")

	setArgs([]string{"fieldmap-server"})
	resetFlags()

	cfg, err := LoadFromFlags()
	if err != nil {
		t.Fatalf("LoadFromFlags() unexpected error: %v", err)
	}

	if cfg.Mode != "server" {
		t.Errorf("LoadFromFlags() Mode = %v, want %v", cfg.Mode, "server")
	}
	if cfg.Host != "192.168.1.1" {
		t.Errorf("LoadFromFlags() Host = %v, want %v", cfg.Host, "192.168.1.1")
	}
	if cfg.Port != 3000 {
		t.Errorf("LoadFromFlags() Port = %v, want %v", cfg.Port, 3000)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("LoadFromFlags() LogLevel = %v, want %v", cfg.LogLevel, "warn")
	}
	if cfg.MaxFileSize != 200000000 {
		t.Errorf("LoadFromFlags() MaxFileSize = %v, want %v", cfg.MaxFileSize, 200000000)
	}
	if cfg.OracleMaxRetries != 7 {
		t.Errorf("LoadFromFlags() OracleMaxRetries = %v, want %v", cfg.OracleMaxRetries, 7)
	}
}

func TestLoadFromFlags_OracleKeyFromEnvironment(t *testing.T) {
	originalArgs := os.Args
	defer func() {
		os.Args = originalArgs
		resetFlags()
		clearEnvVars()
	}()

	tempDir := t.TempDir()
	os.Setenv("FIELDMAP_DIR", tempDir)
	os.Setenv("FIELDMAP_ORACLE_API_KEY", "test-key-123")

	setArgs([]string{"fieldmap-server"})
	resetFlags()

	cfg, err := LoadFromFlags()
	if err != nil {
		t.Fatalf("LoadFromFlags() unexpected error: %v", err)
	}

	if cfg.OracleAPIKey != "test-key-123" {
		t.Errorf("LoadFromFlags() OracleAPIKey = %v, want %v", cfg.OracleAPIKey, "test-key-123")
	}
}

func TestLoadFromFlags_OracleKeyGeminiFallback(t *testing.T) {
	originalArgs := os.Args
	defer func() {
		os.Args = originalArgs
		resetFlags()
		clearEnvVars()
	}()

	tempDir := t.TempDir()
	os.Setenv("FIELDMAP_DIR", tempDir)
	os.Setenv("GEMINI_API_KEY", "gemini-key-456")

	setArgs([]string{"fieldmap-server"})
	resetFlags()

	cfg, err := LoadFromFlags()
	if err != nil {
		t.Fatalf("LoadFromFlags() unexpected error: %v", err)
	}

	if cfg.OracleAPIKey != "gemini-key-456" {
		t.Errorf("LoadFromFlags() OracleAPIKey = %v, want %v", cfg.OracleAPIKey, "gemini-key-456")
	}
}

func TestLoadFromFlags_FlagOverridesEnvironment(t *testing.T) {
	// Save original args and environment
	originalArgs := os.Args
	defer func() {
		os.Args = originalArgs
		resetFlags()
		clearEnvVars()
	}()

	// Set environment variables
	os.Setenv("FIELDMAP_MODE", "server")
	os.Setenv("FIELDMAP_HOST", "192.168.1.1")
	os.Setenv("FIELDMAP_PORT", "3000")

	// Set args that should override environment
	setArgs([]string{"fieldmap-server", "--mode=stdio", "--host=localhost", "--port=8888"})
	resetFlags()

	cfg, err := LoadFromFlags()
	if err != nil {
		t.Fatalf("LoadFromFlags() unexpected error: %v", err)
	}

	// Flags should override environment variables
	if cfg.Mode != "stdio" {
		t.Errorf("LoadFromFlags() Mode = %v, want %v (should override env)", cfg.Mode, "stdio")
	}
	if cfg.Host != "localhost" {
		t.Errorf("LoadFromFlags() Host = %v, want %v (should override env)", cfg.Host, "localhost")
	}
	if cfg.Port != 8888 {
		t.Errorf("LoadFromFlags() Port = %v, want %v (should override env)", cfg.Port, 8888)
	}
}

func TestLoadFromFlags_InvalidMode(t *testing.T) {
	// Save original args
	originalArgs := os.Args
	defer func() {
		os.Args = originalArgs
		resetFlags()
		clearEnvVars()
	}()

	tempDir := t.TempDir()
	setArgs([]string{"fieldmap-server", "--mode=invalid", "--dir=" + tempDir})
	resetFlags()
	clearEnvVars()

	_, err := LoadFromFlags()
	if err == nil {
		t.Error("LoadFromFlags() expected error for invalid mode")
	}
	if err != nil && !strings.Contains(err.Error(), "mode must be either 'stdio' or 'server'") {
		t.Errorf("LoadFromFlags() error = %v, want error about invalid mode", err)
	}
}

func TestLoadFromFlags_InvalidPort(t *testing.T) {
	// Save original args
	originalArgs := os.Args
	defer func() {
		os.Args = originalArgs
		resetFlags()
		clearEnvVars()
	}()

	tempDir := t.TempDir()
	setArgs([]string{"fieldmap-server", "--mode=server", "--port=99999", "--dir=" + tempDir})
	resetFlags()
	clearEnvVars()

	_, err := LoadFromFlags()
	if err == nil {
		t.Error("LoadFromFlags() expected error for invalid port")
	}
	if err != nil && !strings.Contains(err.Error(), "port must be between 1 and 65535") {
		t.Errorf("LoadFromFlags() error = %v, want error about invalid port", err)
	}
}

func TestLoadFromFlags_InvalidCoverage(t *testing.T) {
	originalArgs := os.Args
	defer func() {
		os.Args = originalArgs
		resetFlags()
		clearEnvVars()
	}()

	tempDir := t.TempDir()
	setArgs([]string{"fieldmap-server", "--coverage=1.5", "--dir=" + tempDir})
	resetFlags()
	clearEnvVars()

	_, err := LoadFromFlags()
	if err == nil {
		t.Error("LoadFromFlags() expected error for invalid coverage threshold")
	}
	if err != nil && !strings.Contains(err.Error(), "coverage threshold") {
		t.Errorf("LoadFromFlags() error = %v, want error about coverage threshold", err)
	}
}

func TestLoadFromFlags_InvalidLogLevel(t *testing.T) {
	// Save original args
	originalArgs := os.Args
	defer func() {
		os.Args = originalArgs
		resetFlags()
		clearEnvVars()
	}()

	tempDir := t.TempDir()
	setArgs([]string{"fieldmap-server", "--loglevel=invalid", "--dir=" + tempDir})
	resetFlags()
	clearEnvVars()

	_, err := LoadFromFlags()
	if err == nil {
		t.Error("LoadFromFlags() expected error for invalid log level")
	}
	if err != nil && !strings.Contains(err.Error(), "invalid log level") {
		t.Errorf("LoadFromFlags() error = %v, want error about invalid log level", err)
	}
}

func TestLoadFromFlags_VersionFlag(t *testing.T) {
	// Save original args
	originalArgs := os.Args
	defer func() {
		os.Args = originalArgs
		resetFlags()
		clearEnvVars()
	}()

	setArgs([]string{"fieldmap-server", "--version"})
	resetFlags()
	clearEnvVars()

	_, err := LoadFromFlags()
	if err == nil {
		t.Error("LoadFromFlags() expected version error")
	}
	if err != nil && err.Error() != "version requested" {
		t.Errorf("LoadFromFlags() error = %v, want 'version requested'", err)
	}
}
