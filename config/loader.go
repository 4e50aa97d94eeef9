// Package config loads the YAML-plus-environment configuration for the
// SAGE reference server and client binaries. Grounded on the teacher's
// own loader.go: godotenv for .env overlay, gopkg.in/yaml.v3 for the file
// format, and ${VAR} expansion against the process environment before
// parsing.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Ambient defaults for knobs the registry/session/hook packages themselves
// leave to the caller; these do not override any of those packages'
// invariants (e.g. the hook's cooldown and daily quota are fixed
// constants, not configurable here).
const (
	DefaultSessionCapacity = 1000
	DefaultSessionMaxAge   = time.Hour
	DefaultFreshnessWindow = 5 * time.Minute
	DefaultListenAddr      = ":8080"
	DefaultServerURL       = "http://localhost:8080"
)

// ServerConfig configures a SAGE reference server: its identity, listen
// address, registry network class and authority, and the session/envelope
// policy knobs described in spec.md §5 and §7.
type ServerConfig struct {
	DID             string        `yaml:"did"`
	ListenAddr      string        `yaml:"listen_addr"`
	SigningKeyFile  string        `yaml:"signing_key_file"`
	KEMKeyFile      string        `yaml:"kem_key_file"`
	Network         string        `yaml:"network"` // "solana" | "evm"
	Authority       string        `yaml:"authority"`
	SessionCapacity int           `yaml:"session_capacity"`
	SessionMaxAge   time.Duration `yaml:"session_max_age"`
	FreshnessWindow time.Duration `yaml:"freshness_window"`
	DevMode         bool          `yaml:"dev_mode"`
}

// ClientConfig configures a SAGE client: its own identity plus the server
// it talks to.
type ClientConfig struct {
	DID            string        `yaml:"did"`
	SigningKeyFile string        `yaml:"signing_key_file"`
	KEMKeyFile     string        `yaml:"kem_key_file"`
	ServerDID      string        `yaml:"server_did"`
	ServerURL      string        `yaml:"server_url"`
	SessionMaxAge  time.Duration `yaml:"session_max_age"`
}

// LoadServerConfig reads a YAML server config from path (if non-empty),
// expanding ${VAR} references against the process environment (and a
// .env file, if present) before parsing, then fills any zero-valued
// field from its corresponding SAGE_* environment variable or ambient
// default.
func LoadServerConfig(path string) (*ServerConfig, error) {
	_ = godotenv.Load()

	var cfg ServerConfig
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read server config: %w", err)
		}
		if err := yaml.Unmarshal([]byte(expandEnvVars(string(data))), &cfg); err != nil {
			return nil, fmt.Errorf("parse server config: %w", err)
		}
	}

	applyServerDefaults(&cfg)
	return &cfg, nil
}

func applyServerDefaults(cfg *ServerConfig) {
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = getEnv("SAGE_LISTEN_ADDR", DefaultListenAddr)
	}
	if cfg.DID == "" {
		cfg.DID = os.Getenv("SAGE_SERVER_DID")
	}
	if cfg.SigningKeyFile == "" {
		cfg.SigningKeyFile = getEnv("SAGE_SIGNING_KEY_FILE", "signing_key.json")
	}
	if cfg.KEMKeyFile == "" {
		cfg.KEMKeyFile = getEnv("SAGE_KEM_KEY_FILE", "kem_key.json")
	}
	if cfg.Network == "" {
		cfg.Network = getEnv("SAGE_NETWORK", "solana")
	}
	if cfg.Authority == "" {
		cfg.Authority = os.Getenv("SAGE_AUTHORITY")
	}
	if cfg.SessionCapacity == 0 {
		cfg.SessionCapacity = getEnvInt("SAGE_SESSION_CAPACITY", DefaultSessionCapacity)
	}
	if cfg.SessionMaxAge == 0 {
		cfg.SessionMaxAge = getEnvDuration("SAGE_SESSION_MAX_AGE", DefaultSessionMaxAge)
	}
	if cfg.FreshnessWindow == 0 {
		cfg.FreshnessWindow = getEnvDuration("SAGE_FRESHNESS_WINDOW", DefaultFreshnessWindow)
	}
	if !cfg.DevMode {
		cfg.DevMode = getEnvBool("SAGE_DEV_MODE", false)
	}
}

// LoadClientConfig reads a YAML client config from path (if non-empty),
// with the same ${VAR} expansion and environment-variable fallback
// behavior as LoadServerConfig.
func LoadClientConfig(path string) (*ClientConfig, error) {
	_ = godotenv.Load()

	var cfg ClientConfig
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read client config: %w", err)
		}
		if err := yaml.Unmarshal([]byte(expandEnvVars(string(data))), &cfg); err != nil {
			return nil, fmt.Errorf("parse client config: %w", err)
		}
	}

	if cfg.DID == "" {
		cfg.DID = os.Getenv("SAGE_CLIENT_DID")
	}
	if cfg.SigningKeyFile == "" {
		cfg.SigningKeyFile = getEnv("SAGE_CLIENT_SIGNING_KEY_FILE", "client_signing_key.json")
	}
	if cfg.KEMKeyFile == "" {
		cfg.KEMKeyFile = getEnv("SAGE_CLIENT_KEM_KEY_FILE", "client_kem_key.json")
	}
	if cfg.ServerDID == "" {
		cfg.ServerDID = os.Getenv("SAGE_SERVER_DID")
	}
	if cfg.ServerURL == "" {
		cfg.ServerURL = getEnv("SAGE_SERVER_URL", DefaultServerURL)
	}
	if cfg.SessionMaxAge == 0 {
		cfg.SessionMaxAge = getEnvDuration("SAGE_SESSION_MAX_AGE", DefaultSessionMaxAge)
	}

	return &cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// expandEnvVars replaces ${VAR_NAME} references with their environment
// variable values before the YAML parser sees the document.
func expandEnvVars(s string) string {
	return os.Expand(s, func(key string) string {
		return os.Getenv(key)
	})
}
