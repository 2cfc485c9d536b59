package config

import (
	"encoding/hex"
	"fmt"
	"log"
	"net/url"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/alexjbarnes/sealbox/internal/auth"
	"github.com/alexjbarnes/sealbox/internal/state"
)

// Config holds all environment-based configuration for sealbox.
type Config struct {
	// Remote store endpoint and bearer token.
	APIURL   string `env:"SEALBOX_API_URL"`
	APIToken string `env:"SEALBOX_API_TOKEN"`

	// Account credentials. The password is prompted for when empty.
	Email    string `env:"SEALBOX_EMAIL"`
	Password string `env:"SEALBOX_PASSWORD"`

	// StatePath is the bbolt database. Defaults to ~/.sealbox/state.db.
	StatePath string `env:"SEALBOX_STATE_PATH"`

	// Environment controls log format and development-only error logging.
	Environment string `env:"ENVIRONMENT" envDefault:"development"`

	MaxEncryptedSize  int64         `env:"SEALBOX_MAX_ENCRYPTED_SIZE" envDefault:"10485760"`
	HexChunkSize      int           `env:"SEALBOX_HEX_CHUNK_SIZE" envDefault:"102400"`
	DeleteConcurrency int           `env:"SEALBOX_DELETE_CONCURRENCY" envDefault:"8"`
	HTTPTimeout       time.Duration `env:"SEALBOX_HTTP_TIMEOUT" envDefault:"30s"`
	HistoryLimit      int           `env:"SEALBOX_HISTORY_LIMIT" envDefault:"200"`

	// MCP server settings (required when MCP is enabled)
	EnableMCP     bool   `env:"ENABLE_MCP" envDefault:"false"`
	MCPListenAddr string `env:"MCP_LISTEN_ADDR" envDefault:"127.0.0.1:8090"`
	MCPAPIKeys    string `env:"MCP_API_KEYS"`
}

// warnInsecureEnvFile checks whether the .env file (if present) has
// overly permissive permissions. On Unix systems, group or world
// readable files risk exposing credentials to other users.
func warnInsecureEnvFile() {
	if runtime.GOOS == "windows" {
		return
	}

	info, err := os.Stat(".env")
	if err != nil {
		return // file does not exist, nothing to check
	}

	mode := info.Mode().Perm()
	if mode&0o077 != 0 {
		log.Printf("WARNING: .env file has insecure permissions %04o; recommended 0600", mode)
	}
}

// Load reads configuration from environment variables.
// It first attempts to load a .env file if present, then parses env vars.
func Load() (*Config, error) {
	_ = godotenv.Load()

	warnInsecureEnvFile()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	if cfg.StatePath == "" {
		p, err := state.DefaultPath()
		if err != nil {
			return nil, err
		}

		cfg.StatePath = p
	} else {
		p, err := state.ExpandPath(cfg.StatePath)
		if err != nil {
			return nil, err
		}

		cfg.StatePath = p
	}

	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")

	return cfg, nil
}

func (c *Config) validate() error {
	if c.APIURL == "" {
		return fmt.Errorf("SEALBOX_API_URL is required")
	}

	u, err := url.Parse(c.APIURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("SEALBOX_API_URL must be an absolute URL")
	}

	if c.APIToken == "" {
		return fmt.Errorf("SEALBOX_API_TOKEN is required")
	}

	if c.Email == "" {
		return fmt.Errorf("SEALBOX_EMAIL is required")
	}

	if c.MaxEncryptedSize <= 0 {
		return fmt.Errorf("SEALBOX_MAX_ENCRYPTED_SIZE must be positive")
	}

	if c.HexChunkSize <= 0 {
		return fmt.Errorf("SEALBOX_HEX_CHUNK_SIZE must be positive")
	}

	if c.DeleteConcurrency <= 0 {
		return fmt.Errorf("SEALBOX_DELETE_CONCURRENCY must be positive")
	}

	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("SEALBOX_HTTP_TIMEOUT must be positive")
	}

	if c.HistoryLimit <= 0 {
		return fmt.Errorf("SEALBOX_HISTORY_LIMIT must be positive")
	}

	if c.EnableMCP && c.MCPAPIKeys == "" {
		return fmt.Errorf("MCP_API_KEYS is required when MCP is enabled")
	}

	return nil
}

// IsProduction returns true when the environment is set to production.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// APIKeyEntry holds a pre-configured API key and its associated user
// identity parsed from MCP_API_KEYS.
type APIKeyEntry struct {
	UserID string
	Key    string
}

// ParseMCPAPIKeys parses the MCP_API_KEYS string.
// Format: "user1:sb_key1,user2:sb_key2"
func (c *Config) ParseMCPAPIKeys() ([]APIKeyEntry, error) {
	if c.MCPAPIKeys == "" {
		return nil, nil
	}

	seenUsers := make(map[string]struct{})

	var entries []APIKeyEntry

	for _, pair := range strings.Split(c.MCPAPIKeys, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}

		idx := strings.Index(pair, ":")
		if idx < 0 {
			return nil, fmt.Errorf("invalid API key entry (missing ':')")
		}

		userID := pair[:idx]

		key := pair[idx+1:]
		if userID == "" || key == "" {
			return nil, fmt.Errorf("empty user or key in entry %d", len(entries)+1)
		}

		if !strings.HasPrefix(key, auth.APIKeyPrefix) {
			return nil, fmt.Errorf("API key must start with %q prefix in entry %d", auth.APIKeyPrefix, len(entries)+1)
		}

		if len(key) < auth.APIKeyMinLen {
			return nil, fmt.Errorf("API key too short in entry %d (minimum %d characters)", len(entries)+1, auth.APIKeyMinLen)
		}

		suffix := key[len(auth.APIKeyPrefix):]
		if _, err := hex.DecodeString(suffix); err != nil {
			return nil, fmt.Errorf("API key contains non-hex characters after %q prefix in entry %d", auth.APIKeyPrefix, len(entries)+1)
		}

		if _, dup := seenUsers[userID]; dup {
			return nil, fmt.Errorf("duplicate user_id %q in MCP_API_KEYS", userID)
		}

		seenUsers[userID] = struct{}{}
		entries = append(entries, APIKeyEntry{UserID: userID, Key: key})
	}

	return entries, nil
}
