// Package config loads server configuration from defaults, an optional TOML
// file, and environment variables, in that order of precedence.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Config holds all configuration for the agentmail server.
// Precedence: environment variables > config file > defaults.
type Config struct {
	Storage     StorageConfig     `toml:"storage"`
	Transport   TransportConfig   `toml:"transport"`
	Attachments AttachmentsConfig `toml:"attachments"`
	Claims      ClaimsConfig      `toml:"claims"`
	Ack         AckConfig         `toml:"ack"`
	Contacts    ContactsConfig    `toml:"contacts"`
	Log         LogConfig         `toml:"log"`
	Metrics     MetricsConfig     `toml:"metrics"`
	Search      SearchConfig      `toml:"search"`
}

// StorageConfig points at the root of the archive/index store.
type StorageConfig struct {
	Root string `toml:"root"`
}

// TransportConfig holds transport-related settings.
type TransportConfig struct {
	// Mode selects the transport: "stdio" (default) or "http".
	Mode string `toml:"mode"`
	// Addr is the HTTP listen address (default: "0.0.0.0:8787"). Only used when Mode is "http".
	Addr string `toml:"addr"`
	// Path is the JSON-RPC endpoint path (default: "/mcp/").
	Path string `toml:"path"`
	// CORSOrigins is a comma-separated list of allowed CORS origins (default: "*").
	CORSOrigins string `toml:"cors_origins"`
}

// AttachmentsConfig controls the attachment pipeline.
type AttachmentsConfig struct {
	ConvertImages        bool  `toml:"convert_images"`
	InlineImageMaxBytes  int64 `toml:"inline_image_max_bytes"`
	KeepOriginalImages   bool  `toml:"keep_original_images"`
}

// ClaimsConfig controls reservation enforcement.
type ClaimsConfig struct {
	EnforcementEnabled        bool  `toml:"enforcement_enabled"`
	ExpiryScanIntervalSeconds int64 `toml:"expiry_scan_interval_seconds"`
}

// AckConfig controls the ACK-TTL escalation worker.
type AckConfig struct {
	Enabled             bool   `toml:"enabled"`
	TTLSeconds          int64  `toml:"ttl_seconds"`
	ScanIntervalSeconds int64  `toml:"scan_interval_seconds"`
	EscalationMode      string `toml:"escalation_mode"` // log|claim
	ClaimTTLSeconds     int64  `toml:"claim_ttl_seconds"`
	ClaimExclusive      bool   `toml:"claim_exclusive"`
	ClaimHolderName     string `toml:"claim_holder_name"`
}

// ContactsConfig controls the Contact Policy Engine.
type ContactsConfig struct {
	EnforcementEnabled bool `toml:"enforcement_enabled"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string `toml:"level"` // debug, info, warn, error
}

// MetricsConfig controls the Prometheus metrics listener.
type MetricsConfig struct {
	Addr string `toml:"addr"` // empty disables the listener
}

// SearchConfig controls the in-process thread-digest cache sitting in front
// of summarize_thread/summarize_threads.
type SearchConfig struct {
	DigestCacheTTLSeconds int64 `toml:"digest_cache_ttl_seconds"`
	DigestCacheMaxEntries int   `toml:"digest_cache_max_entries"`
}

// Load creates a Config by reading from a TOML config file and environment
// variables. Precedence: environment variables > config file > defaults.
//
// Config file search order (first found wins):
//  1. Path passed via configPath parameter (from --config flag)
//  2. AGENTMAIL_CONFIG environment variable
//  3. ./agentmail.toml (current directory)
//  4. ~/.config/agentmail/agentmail.toml (XDG-style)
//
// All fields are optional in the config file. Environment variables always
// override file values.
func Load(configPath string) (*Config, error) {
	cfg := &Config{
		Storage: StorageConfig{
			Root: "./agentmail-data",
		},
		Transport: TransportConfig{
			Mode:        "stdio",
			Addr:        "0.0.0.0:8787",
			Path:        "/mcp/",
			CORSOrigins: "*",
		},
		Attachments: AttachmentsConfig{
			ConvertImages:       true,
			InlineImageMaxBytes: 64 * 1024,
			KeepOriginalImages:  false,
		},
		Claims: ClaimsConfig{
			EnforcementEnabled:        false,
			ExpiryScanIntervalSeconds: 60,
		},
		Ack: AckConfig{
			Enabled:             false,
			TTLSeconds:          3600,
			ScanIntervalSeconds: 300,
			EscalationMode:      "log",
			ClaimTTLSeconds:     1800,
			ClaimExclusive:      true,
			ClaimHolderName:     "ops-ack-monitor",
		},
		Contacts: ContactsConfig{
			EnforcementEnabled: true,
		},
		Log: LogConfig{
			Level: "info",
		},
		Search: SearchConfig{
			DigestCacheTTLSeconds: 120,
			DigestCacheMaxEntries: 500,
		},
	}

	if err := cfg.loadFile(configPath); err != nil {
		return nil, err
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFile finds and parses the TOML config file. If no file is found,
// this is a no-op (config file is optional).
func (c *Config) loadFile(configPath string) error {
	path := resolveConfigPath(configPath)
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	if _, err := toml.DecodeFile(path, c); err != nil {
		return fmt.Errorf("reading config file %s: %w", path, err)
	}

	return nil
}

// resolveConfigPath determines which config file to use. Returns empty string
// if no config file is found (config file is optional).
func resolveConfigPath(explicit string) string {
	if explicit != "" {
		return explicit
	}

	if p := os.Getenv("AGENTMAIL_CONFIG"); p != "" {
		return p
	}

	if _, err := os.Stat("agentmail.toml"); err == nil {
		return "agentmail.toml"
	}

	if home, err := os.UserHomeDir(); err == nil {
		p := home + "/.config/agentmail/agentmail.toml"
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}

// applyEnv overlays environment variables on top of existing config values.
// An env var only takes effect if it is non-empty.
func (c *Config) applyEnv() {
	envOverride("STORAGE_ROOT", &c.Storage.Root)

	envOverride("TRANSPORT_MODE", &c.Transport.Mode)
	envOverride("HTTP_ADDR", &c.Transport.Addr)
	envOverride("HTTP_CORS_ORIGINS", &c.Transport.CORSOrigins)

	envOverride("LOG_LEVEL", &c.Log.Level)
	envOverride("METRICS_ADDR", &c.Metrics.Addr)

	envBool("CONVERT_IMAGES", &c.Attachments.ConvertImages)
	envInt64("INLINE_IMAGE_MAX_BYTES", &c.Attachments.InlineImageMaxBytes)
	envBool("KEEP_ORIGINAL_IMAGES", &c.Attachments.KeepOriginalImages)

	envBool("CLAIMS_ENFORCEMENT_ENABLED", &c.Claims.EnforcementEnabled)
	envInt64("CLAIMS_EXPIRY_SCAN_INTERVAL_SECONDS", &c.Claims.ExpiryScanIntervalSeconds)

	envBool("ACK_TTL_ENABLED", &c.Ack.Enabled)
	envInt64("ACK_TTL_SECONDS", &c.Ack.TTLSeconds)
	envInt64("ACK_TTL_SCAN_INTERVAL_SECONDS", &c.Ack.ScanIntervalSeconds)
	envOverride("ACK_ESCALATION_MODE", &c.Ack.EscalationMode)
	envInt64("ACK_ESCALATION_CLAIM_TTL_SECONDS", &c.Ack.ClaimTTLSeconds)
	envBool("ACK_ESCALATION_CLAIM_EXCLUSIVE", &c.Ack.ClaimExclusive)
	envOverride("ACK_ESCALATION_CLAIM_HOLDER_NAME", &c.Ack.ClaimHolderName)

	envBool("CONTACT_ENFORCEMENT_ENABLED", &c.Contacts.EnforcementEnabled)

	envInt64("SEARCH_DIGEST_CACHE_TTL_SECONDS", &c.Search.DigestCacheTTLSeconds)
	envInt64Int("SEARCH_DIGEST_CACHE_MAX_ENTRIES", &c.Search.DigestCacheMaxEntries)
}

// Validate checks that required fields are present.
func (c *Config) Validate() error {
	switch c.Transport.Mode {
	case "stdio", "http":
	default:
		return fmt.Errorf("invalid transport mode: %q (must be \"stdio\" or \"http\")", c.Transport.Mode)
	}
	switch c.Ack.EscalationMode {
	case "log", "claim":
	default:
		return fmt.Errorf("invalid ack escalation mode: %q (must be \"log\" or \"claim\")", c.Ack.EscalationMode)
	}
	if c.Storage.Root == "" {
		return fmt.Errorf("storage.root must not be empty")
	}
	return nil
}

func envOverride(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envBool(key string, dst *bool) {
	if v := os.Getenv(key); v != "" {
		*dst = v == "true" || v == "1"
	}
}

func envInt64(key string, dst *int64) {
	if v := os.Getenv(key); v != "" {
		var n int64
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil {
			*dst = n
		}
	}
}

func envInt64Int(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil {
			*dst = n
		}
	}
}
