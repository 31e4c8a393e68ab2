// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for chatbot.
//
// Configuration is read from a TOML file, overlaid with environment
// variables, completed with defaults and validated.
//
// Configuration file locations (in order of precedence):
//   - the path given with --config
//   - ~/.chatbot/config.toml
//   - Built-in defaults
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/rizkirmdhn1215/chatbot/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete chatbot configuration.
type Config struct {
	Version string `toml:"version" json:"version"`

	// Server is the HTTP backend configuration.
	Server ServerConfig `toml:"server" json:"server"`

	// Generation configures the hosted text-generation providers.
	Generation GenerationConfig `toml:"generation" json:"generation"`

	// Storage configures where conversation records are written.
	Storage StorageConfig `toml:"storage" json:"storage"`

	// Client configures the terminal front-ends.
	Client ClientConfig `toml:"client" json:"client"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host string `toml:"host" json:"host"`
	Port int    `toml:"port" json:"port"`

	// AdminToken guards the review and training routes. Empty disables auth,
	// which serve only accepts on a loopback host.
	AdminToken string `toml:"admin_token" json:"admin_token"`
	// AdminTokenHash is a bcrypt hash accepted in place of AdminToken.
	AdminTokenHash string `toml:"admin_token_hash" json:"admin_token_hash"`
	// AllowedIPs restricts admin routes to IPs or CIDR ranges.
	AllowedIPs []string `toml:"allowed_ips" json:"allowed_ips"`

	CORSOrigins []string `toml:"cors_origins" json:"cors_origins"`

	// RateLimit is the sustained requests per second allowed per client IP.
	RateLimit float64 `toml:"rate_limit" json:"rate_limit"`
	RateBurst int     `toml:"rate_burst" json:"rate_burst"`

	// ShutdownTimeout is a duration string, e.g. "10s".
	ShutdownTimeout string `toml:"shutdown_timeout" json:"shutdown_timeout"`
}

// GenerationConfig contains provider settings.
type GenerationConfig struct {
	// PromptTemplate wraps the user message; "{message}" is replaced.
	PromptTemplate string `toml:"prompt_template" json:"prompt_template"`
	// Timeout bounds a single upstream request, e.g. "60s".
	Timeout string `toml:"timeout" json:"timeout"`

	HuggingFace HuggingFaceConfig `toml:"huggingface" json:"huggingface"`
	Cohere      CohereConfig      `toml:"cohere" json:"cohere"`
}

// HuggingFaceConfig configures the fallback provider.
type HuggingFaceConfig struct {
	Enabled bool   `toml:"enabled" json:"enabled"`
	APIKey  string `toml:"api_key" json:"api_key"`
	BaseURL string `toml:"base_url" json:"base_url"`

	// Candidates are tried in order until one succeeds.
	Candidates []CandidateConfig `toml:"candidates" json:"candidates"`
}

// CandidateConfig is one entry of the fallback sequence.
type CandidateConfig struct {
	Model       string  `toml:"model" json:"model"`
	MaxLength   int     `toml:"max_length" json:"max_length"`
	Temperature float64 `toml:"temperature" json:"temperature"`
	TopP        float64 `toml:"top_p" json:"top_p"`
}

// CohereConfig configures the single-shot provider.
type CohereConfig struct {
	Enabled   bool   `toml:"enabled" json:"enabled"`
	APIKey    string `toml:"api_key" json:"api_key"`
	BaseURL   string `toml:"base_url" json:"base_url"`
	Model     string `toml:"model" json:"model"`
	MaxTokens int    `toml:"max_tokens" json:"max_tokens"`

	// Temperature is nil when unset so an explicit 0 survives loading.
	Temperature *float64 `toml:"temperature" json:"temperature,omitempty"`
}

// SamplingTemperature returns the configured temperature or the default.
func (c CohereConfig) SamplingTemperature() float64 {
	if c.Temperature == nil {
		return DefaultCohereTemperature
	}
	return *c.Temperature
}

// StorageConfig contains conversation store settings.
type StorageConfig struct {
	// Driver is "sqlite" or "postgres".
	Driver string `toml:"driver" json:"driver"`
	// Path is the SQLite database file.
	Path string `toml:"path" json:"path"`
	// DSN is the PostgreSQL connection string.
	DSN string `toml:"dsn" json:"dsn"`

	// QueueSize bounds pending background writes.
	QueueSize int `toml:"queue_size" json:"queue_size"`
	// Workers is the number of background writers.
	Workers int `toml:"workers" json:"workers"`
	// History is how many finished writes /stats can look back over.
	// Negative keeps none.
	History int `toml:"history" json:"history"`
}

// ClientConfig contains settings for the chat and review commands.
type ClientConfig struct {
	ServerURL  string `toml:"server_url" json:"server_url"`
	UserID     string `toml:"user_id" json:"user_id"`
	AdminToken string `toml:"admin_token" json:"admin_token"`
	Provider   string `toml:"provider" json:"provider"`
	// ToastDuration is how long notifications stay visible, e.g. "3s".
	ToastDuration string `toml:"toast_duration" json:"toast_duration"`
	NoColor       bool   `toml:"no_color" json:"no_color"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

// Defaults applied by SetDefaults.
const (
	DefaultVersion        = "1"
	DefaultHost           = "127.0.0.1"
	DefaultPort           = 8787
	DefaultPromptTemplate = "Question: {message}\n\nPlease provide a helpful and friendly response."
	DefaultTimeout        = "60s"
	DefaultHuggingFaceURL = "https://api-inference.huggingface.co"
	DefaultCohereURL      = "https://api.cohere.ai/v1"
	DefaultCohereModel    = "command"
	DefaultStorageDriver  = "sqlite"
	DefaultQueueSize      = 256
	DefaultWorkers        = 2
	DefaultHistory        = 50
	DefaultToastDuration  = "3s"
	DefaultProvider       = "huggingface"

	DefaultCohereTemperature = 0.8
)

func float64Ptr(v float64) *float64 { return &v }

// DefaultCandidates is the built-in fallback sequence.
func DefaultCandidates() []CandidateConfig {
	return []CandidateConfig{
		{Model: "google/flan-t5-large", MaxLength: 500, Temperature: 0.7, TopP: 0.95},
		{Model: "google/flan-t5-base", MaxLength: 500, Temperature: 0.7, TopP: 0.95},
	}
}

// Default returns a configuration with all defaults applied.
func Default() *Config {
	cfg := &Config{
		Version: DefaultVersion,
		Server: ServerConfig{
			Host:            DefaultHost,
			Port:            DefaultPort,
			CORSOrigins:     []string{"http://localhost:3000", "http://127.0.0.1:3000"},
			RateLimit:       2,
			RateBurst:       20,
			ShutdownTimeout: "10s",
		},
		Generation: GenerationConfig{
			PromptTemplate: DefaultPromptTemplate,
			Timeout:        DefaultTimeout,
			HuggingFace: HuggingFaceConfig{
				Enabled:    true,
				BaseURL:    DefaultHuggingFaceURL,
				Candidates: DefaultCandidates(),
			},
			Cohere: CohereConfig{
				Enabled:     true,
				BaseURL:     DefaultCohereURL,
				Model:       DefaultCohereModel,
				MaxTokens:   500,
				Temperature: float64Ptr(DefaultCohereTemperature),
			},
		},
		Storage: StorageConfig{
			Driver:    DefaultStorageDriver,
			QueueSize: DefaultQueueSize,
			Workers:   DefaultWorkers,
			History:   DefaultHistory,
		},
		Client: ClientConfig{
			ServerURL:     fmt.Sprintf("http://%s:%d", DefaultHost, DefaultPort),
			Provider:      DefaultProvider,
			ToastDuration: DefaultToastDuration,
		},
	}
	if dir, err := ConfigDir(); err == nil {
		cfg.Storage.Path = filepath.Join(dir, "conversations.db")
	}
	return cfg
}

// SetDefaults fills zero values with defaults. Candidates are only defaulted
// when the list was never configured; an explicit empty list is kept.
func (c *Config) SetDefaults() {
	d := Default()

	if c.Version == "" {
		c.Version = d.Version
	}
	if c.Server.Host == "" {
		c.Server.Host = d.Server.Host
	}
	if c.Server.Port == 0 {
		c.Server.Port = d.Server.Port
	}
	if c.Server.RateLimit == 0 {
		c.Server.RateLimit = d.Server.RateLimit
	}
	if c.Server.RateBurst == 0 {
		c.Server.RateBurst = d.Server.RateBurst
	}
	if c.Server.ShutdownTimeout == "" {
		c.Server.ShutdownTimeout = d.Server.ShutdownTimeout
	}
	if c.Generation.PromptTemplate == "" {
		c.Generation.PromptTemplate = d.Generation.PromptTemplate
	}
	if c.Generation.Timeout == "" {
		c.Generation.Timeout = d.Generation.Timeout
	}
	if c.Generation.HuggingFace.BaseURL == "" {
		c.Generation.HuggingFace.BaseURL = d.Generation.HuggingFace.BaseURL
	}
	if c.Generation.HuggingFace.Candidates == nil {
		c.Generation.HuggingFace.Candidates = d.Generation.HuggingFace.Candidates
	}
	for i := range c.Generation.HuggingFace.Candidates {
		cand := &c.Generation.HuggingFace.Candidates[i]
		if cand.MaxLength == 0 {
			cand.MaxLength = 500
		}
	}
	if c.Generation.Cohere.BaseURL == "" {
		c.Generation.Cohere.BaseURL = d.Generation.Cohere.BaseURL
	}
	if c.Generation.Cohere.Model == "" {
		c.Generation.Cohere.Model = d.Generation.Cohere.Model
	}
	if c.Generation.Cohere.MaxTokens == 0 {
		c.Generation.Cohere.MaxTokens = d.Generation.Cohere.MaxTokens
	}
	if c.Generation.Cohere.Temperature == nil {
		c.Generation.Cohere.Temperature = float64Ptr(DefaultCohereTemperature)
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = d.Storage.Driver
	}
	if c.Storage.Path == "" && c.Storage.Driver == "sqlite" {
		c.Storage.Path = d.Storage.Path
	}
	if c.Storage.QueueSize == 0 {
		c.Storage.QueueSize = d.Storage.QueueSize
	}
	if c.Storage.Workers == 0 {
		c.Storage.Workers = d.Storage.Workers
	}
	if c.Storage.History == 0 {
		c.Storage.History = d.Storage.History
	}
	if c.Client.ServerURL == "" {
		c.Client.ServerURL = fmt.Sprintf("http://%s:%d", c.Server.Host, c.Server.Port)
	}
	if c.Client.Provider == "" {
		c.Client.Provider = d.Client.Provider
	}
	if c.Client.ToastDuration == "" {
		c.Client.ToastDuration = d.Client.ToastDuration
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the chatbot configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".chatbot"), nil
}

// ConfigPathTOML returns the path to the default TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// =============================================================================
// LOAD / SAVE
// =============================================================================

// Load loads configuration from the default location.
// A missing file is not an error; defaults and environment are used.
func Load() (*Config, error) {
	path, err := ConfigPathTOML()
	if err != nil {
		path = ""
	}
	return LoadFromPath(path)
}

// LoadFromPath loads configuration from path (if it exists), applies
// environment overrides and defaults, then validates.
func LoadFromPath(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		if _, statErr := os.Stat(path); statErr == nil {
			if err := LoadTOML(cfg, path); err != nil {
				return nil, fmt.Errorf("failed to load TOML config: %w", err)
			}
		} else if !errors.Is(statErr, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to stat config: %w", statErr)
		}
	}

	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML decodes a TOML file into cfg.
func LoadTOML(cfg *Config, path string) error {
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	return nil
}

// SaveTOML writes the configuration to path with 0600 permissions.
func SaveTOML(cfg *Config, path string) error {
	var b strings.Builder
	b.WriteString("# chatbot configuration file\n\n")
	if err := toml.NewEncoder(&b).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, []byte(b.String()), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides.
//
// Supported variables:
//   - HUGGINGFACE_API_KEY / CHATBOT_HUGGINGFACE_KEY
//   - COHERE_API_KEY / CHATBOT_COHERE_KEY
//   - CHATBOT_HOST, CHATBOT_PORT
//   - CHATBOT_ADMIN_TOKEN
//   - CHATBOT_STORAGE_DRIVER, CHATBOT_STORAGE_PATH, CHATBOT_STORAGE_DSN
//   - CHATBOT_SERVER_URL, CHATBOT_USER_ID
func (c *Config) ApplyEnvOverrides() {
	if key := firstEnv("CHATBOT_HUGGINGFACE_KEY", "HUGGINGFACE_API_KEY"); key != "" {
		c.Generation.HuggingFace.APIKey = key
	}
	if key := firstEnv("CHATBOT_COHERE_KEY", "COHERE_API_KEY"); key != "" {
		c.Generation.Cohere.APIKey = key
	}
	if host := os.Getenv("CHATBOT_HOST"); host != "" {
		c.Server.Host = host
	}
	if port := os.Getenv("CHATBOT_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}
	if token := os.Getenv("CHATBOT_ADMIN_TOKEN"); token != "" {
		c.Server.AdminToken = token
		c.Client.AdminToken = token
	}
	if driver := os.Getenv("CHATBOT_STORAGE_DRIVER"); driver != "" {
		c.Storage.Driver = driver
	}
	if path := os.Getenv("CHATBOT_STORAGE_PATH"); path != "" {
		c.Storage.Path = path
	}
	if dsn := os.Getenv("CHATBOT_STORAGE_DSN"); dsn != "" {
		c.Storage.DSN = dsn
	}
	if serverURL := os.Getenv("CHATBOT_SERVER_URL"); serverURL != "" {
		c.Client.ServerURL = serverURL
	}
	if userID := os.Getenv("CHATBOT_USER_ID"); userID != "" {
		c.Client.UserID = userID
	}
}

func firstEnv(names ...string) string {
	for _, name := range names {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate checks structural settings shared by every command.
func (c *Config) Validate() error {
	var errs ValidateErrors

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, ValidationError{
			Field:   "server.port",
			Message: fmt.Sprintf("port %d out of range 1-65535", c.Server.Port),
		})
	}
	if c.Server.RateLimit < 0 {
		errs = append(errs, ValidationError{Field: "server.rate_limit", Message: "must not be negative"})
	}
	if _, err := time.ParseDuration(c.Server.ShutdownTimeout); err != nil {
		errs = append(errs, ValidationError{Field: "server.shutdown_timeout", Message: err.Error()})
	}
	if _, err := time.ParseDuration(c.Generation.Timeout); err != nil {
		errs = append(errs, ValidationError{Field: "generation.timeout", Message: err.Error()})
	}
	if !strings.Contains(c.Generation.PromptTemplate, "{message}") {
		errs = append(errs, ValidationError{
			Field:   "generation.prompt_template",
			Message: "must contain the {message} placeholder",
		})
	}
	for i, cand := range c.Generation.HuggingFace.Candidates {
		field := fmt.Sprintf("generation.huggingface.candidates[%d]", i)
		if strings.TrimSpace(cand.Model) == "" {
			errs = append(errs, ValidationError{Field: field + ".model", Message: "must not be empty"})
		}
		if cand.Temperature < 0 || cand.Temperature > 2 {
			errs = append(errs, ValidationError{Field: field + ".temperature", Message: "must be between 0 and 2"})
		}
		if cand.TopP < 0 || cand.TopP > 1 {
			errs = append(errs, ValidationError{Field: field + ".top_p", Message: "must be between 0 and 1"})
		}
	}
	if t := c.Generation.Cohere.SamplingTemperature(); t < 0 || t > 2 {
		errs = append(errs, ValidationError{Field: "generation.cohere.temperature", Message: "must be between 0 and 2"})
	}
	for _, u := range []struct{ field, value string }{
		{"generation.huggingface.base_url", c.Generation.HuggingFace.BaseURL},
		{"generation.cohere.base_url", c.Generation.Cohere.BaseURL},
		{"client.server_url", c.Client.ServerURL},
	} {
		if parsed, err := url.Parse(u.value); err != nil || parsed.Scheme == "" || parsed.Host == "" {
			errs = append(errs, ValidationError{Field: u.field, Message: fmt.Sprintf("invalid URL %q", u.value)})
		}
	}
	switch c.Storage.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, ValidationError{
			Field:   "storage.driver",
			Message: fmt.Sprintf("invalid driver '%s', must be one of: sqlite, postgres", c.Storage.Driver),
		})
	}
	if c.Storage.Workers < 1 {
		errs = append(errs, ValidationError{Field: "storage.workers", Message: "must be at least 1"})
	}
	if _, err := time.ParseDuration(c.Client.ToastDuration); err != nil {
		errs = append(errs, ValidationError{Field: "client.toast_duration", Message: err.Error()})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// ValidateForServe checks the settings the backend needs before it can
// accept requests: credentials for every enabled provider and a storage
// location. A failure here is an initialization error.
func (c *Config) ValidateForServe() error {
	var errs ValidateErrors

	hf := c.Generation.HuggingFace
	if hf.Enabled && strings.TrimSpace(hf.APIKey) == "" {
		errs = append(errs, ValidationError{
			Field:   "generation.huggingface.api_key",
			Message: "required when the provider is enabled (set HUGGINGFACE_API_KEY)",
		})
	}
	co := c.Generation.Cohere
	if co.Enabled && strings.TrimSpace(co.APIKey) == "" {
		errs = append(errs, ValidationError{
			Field:   "generation.cohere.api_key",
			Message: "required when the provider is enabled (set COHERE_API_KEY)",
		})
	}
	if !hf.Enabled && !co.Enabled {
		errs = append(errs, ValidationError{Field: "generation", Message: "no provider enabled"})
	}
	if !isLoopbackHost(c.Server.Host) && c.Server.AdminToken == "" && c.Server.AdminTokenHash == "" {
		errs = append(errs, ValidationError{
			Field:   "server.admin_token",
			Message: fmt.Sprintf("required when listening on non-loopback host %q (set CHATBOT_ADMIN_TOKEN)", c.Server.Host),
		})
	}
	switch c.Storage.Driver {
	case "sqlite":
		if c.Storage.Path == "" {
			errs = append(errs, ValidationError{Field: "storage.path", Message: "required for sqlite"})
		}
	case "postgres":
		if c.Storage.DSN == "" {
			errs = append(errs, ValidationError{Field: "storage.dsn", Message: "required for postgres"})
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// isLoopbackHost reports whether host only accepts local connections.
// An empty host listens on every interface.
func isLoopbackHost(host string) bool {
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// =============================================================================
// DERIVED VALUES
// =============================================================================

// GenerationTimeout returns the parsed upstream timeout.
func (c *Config) GenerationTimeout() time.Duration {
	return parseDurationOr(c.Generation.Timeout, 60*time.Second)
}

// ShutdownTimeout returns the parsed server shutdown timeout.
func (c *Config) ShutdownTimeout() time.Duration {
	return parseDurationOr(c.Server.ShutdownTimeout, 10*time.Second)
}

// ToastDuration returns the parsed notification lifetime.
func (c *Config) ToastDuration() time.Duration {
	return parseDurationOr(c.Client.ToastDuration, 3*time.Second)
}

// Addr returns the server listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func parseDurationOr(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	clone.Server.AllowedIPs = append([]string(nil), c.Server.AllowedIPs...)
	clone.Server.CORSOrigins = append([]string(nil), c.Server.CORSOrigins...)
	if c.Generation.HuggingFace.Candidates != nil {
		clone.Generation.HuggingFace.Candidates = append([]CandidateConfig{}, c.Generation.HuggingFace.Candidates...)
	}
	if c.Generation.Cohere.Temperature != nil {
		clone.Generation.Cohere.Temperature = float64Ptr(*c.Generation.Cohere.Temperature)
	}
	return &clone
}

// String returns a JSON rendering with secrets redacted.
func (c *Config) String() string {
	safe := c.Clone()
	for _, secret := range []*string{
		&safe.Generation.HuggingFace.APIKey,
		&safe.Generation.Cohere.APIKey,
		&safe.Server.AdminToken,
		&safe.Server.AdminTokenHash,
		&safe.Client.AdminToken,
		&safe.Storage.DSN,
	} {
		if *secret != "" {
			*secret = "[REDACTED]"
		}
	}
	data, _ := json.MarshalIndent(safe, "", "  ")
	return string(data)
}
