package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config holds application configuration.
type Config struct {
	// MaxMacroPer100g is the upper bound for protein, carbs, and fats in a per-100g
	// oracle answer. A gram count above the 100g base is physically impossible.
	MaxMacroPer100g float64 `json:"max_macro_per_100g,omitempty"`

	// MaxCaloriesPer100g rejects oracle answers denser than pure fat.
	MaxCaloriesPer100g float64 `json:"max_calories_per_100g,omitempty"`

	// MaxPieceWeightGrams is the largest plausible single-piece weight.
	MaxPieceWeightGrams float64 `json:"max_piece_weight_grams,omitempty"`

	// OpenAIBaseURL is the chat-completions endpoint root (no trailing /v1).
	OpenAIBaseURL string `json:"openai_base_url,omitempty"`

	// OpenAIModel is the model name sent with every oracle prompt.
	OpenAIModel string `json:"openai_model,omitempty"`

	// OpenAIAPIKey is normally supplied via OPENAI_API_KEY rather than the file.
	OpenAIAPIKey string `json:"-"`

	// OracleTimeoutSeconds bounds a single oracle HTTP call.
	OracleTimeoutSeconds int `json:"oracle_timeout_seconds,omitempty"`

	// Timezone is the IANA zone used to decide "today" and day-end expiry.
	// Empty means the process local zone.
	Timezone string `json:"timezone,omitempty"`

	// SweepIntervalSeconds controls how often expired ledgers are deleted.
	SweepIntervalSeconds int `json:"sweep_interval_seconds,omitempty"`

	// DBMaxOpenConns limits the maximum number of open database connections.
	// 0 means use sql.DB default (unlimited).
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits the maximum number of idle database connections.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	// Unknown tool names are logged as warnings.
	DisabledTools []string `json:"disabled_tools,omitempty"`

	// Bind and Port are the HTTP listen address for `larder serve`.
	Bind string `json:"bind,omitempty"`
	Port int    `json:"port,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		MaxMacroPer100g:      100,
		MaxCaloriesPer100g:   900,
		MaxPieceWeightGrams:  1000,
		OpenAIBaseURL:        "https://api.openai.com",
		OpenAIModel:          "gpt-4o-mini",
		OracleTimeoutSeconds: 15,
		SweepIntervalSeconds: 60,
		Bind:                 "127.0.0.1",
		Port:                 8080,
	}
}

// Load loads configuration from baseDir/config.json.
// Returns default config if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.larder.
func Load(baseDir string) (*Config, error) {
	return loadFile(filepath.Join(baseDir, "config.json"))
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFile loads configuration from a specific file path.
// Returns default config if the file doesn't exist.
func loadFile(configPath string) (*Config, error) {
	cfg, err := loadFileRaw(configPath)
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// ApplyEnv overlays environment variables onto cfg. Call after godotenv.Load
// so values from a .env file are visible.
func ApplyEnv(cfg *Config) *Config {
	overlay := &Config{
		OpenAIAPIKey:  strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
		OpenAIBaseURL: strings.TrimSpace(os.Getenv("LARDER_OPENAI_BASE_URL")),
		OpenAIModel:   strings.TrimSpace(os.Getenv("LARDER_OPENAI_MODEL")),
		Timezone:      strings.TrimSpace(os.Getenv("LARDER_TIMEZONE")),
	}
	return Merge(cfg, overlay)
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	result.MaxMacroPer100g = pickFloat(overlay.MaxMacroPer100g, base.MaxMacroPer100g)
	result.MaxCaloriesPer100g = pickFloat(overlay.MaxCaloriesPer100g, base.MaxCaloriesPer100g)
	result.MaxPieceWeightGrams = pickFloat(overlay.MaxPieceWeightGrams, base.MaxPieceWeightGrams)

	result.OpenAIBaseURL = pickString(overlay.OpenAIBaseURL, base.OpenAIBaseURL)
	result.OpenAIModel = pickString(overlay.OpenAIModel, base.OpenAIModel)
	result.OpenAIAPIKey = pickString(overlay.OpenAIAPIKey, base.OpenAIAPIKey)
	result.Timezone = pickString(overlay.Timezone, base.Timezone)
	result.Bind = pickString(overlay.Bind, base.Bind)

	result.OracleTimeoutSeconds = pickInt(overlay.OracleTimeoutSeconds, base.OracleTimeoutSeconds)
	result.SweepIntervalSeconds = pickInt(overlay.SweepIntervalSeconds, base.SweepIntervalSeconds)
	result.DBMaxOpenConns = pickInt(overlay.DBMaxOpenConns, base.DBMaxOpenConns)
	result.DBMaxIdleConns = pickInt(overlay.DBMaxIdleConns, base.DBMaxIdleConns)
	result.Port = pickInt(overlay.Port, base.Port)

	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)

	return result
}

// Location resolves Timezone, falling back to time.Local for empty or unknown zones.
func (c *Config) Location() *time.Location {
	if c == nil || c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// OracleTimeout returns OracleTimeoutSeconds as a duration.
func (c *Config) OracleTimeout() time.Duration {
	return time.Duration(c.OracleTimeoutSeconds) * time.Second
}

// SweepInterval returns SweepIntervalSeconds as a duration.
func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSeconds) * time.Second
}

func pickFloat(overlay, base float64) float64 {
	if overlay != 0 {
		return overlay
	}
	return base
}

func pickInt(overlay, base int) int {
	if overlay != 0 {
		return overlay
	}
	return base
}

func pickString(overlay, base string) string {
	if overlay != "" {
		return overlay
	}
	return base
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range a {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}
	for _, s := range b {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
