// Package config provides configuration loading and validation for the CLI and server.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Default values applied by MergeWithDefaults.
const (
	DefaultMode         = "fast"
	DefaultThreshold    = 0.56
	DefaultTopK         = 1
	DefaultWorkers      = 1
	DefaultProvider     = "local"
	DefaultEmbedTimeout = "5s"
	DefaultEmbedRetries = 1
	DefaultMinTokens    = 1
	DefaultMaxNgram     = 3
	DefaultPort         = 8080
)

// Config is the engine configuration loaded from a JSON or YAML file.
// All fields are optional; missing values use defaults or are provided via CLI flags.
type Config struct {
	// Paths
	Ontology string `json:"ontology,omitempty" yaml:"ontology,omitempty"` // Ontology file; empty uses the bundled catalog
	Index    string `json:"index,omitempty" yaml:"index,omitempty"`       // Precomputed embedding index file

	// Matching
	Mode       string  `json:"mode,omitempty" yaml:"mode,omitempty" validate:"omitempty,oneof=fast semantic"`
	Threshold  float64 `json:"threshold,omitempty" yaml:"threshold,omitempty" validate:"gte=0,lte=1"` // Semantic similarity cutoff
	TopK       int     `json:"top_k,omitempty" yaml:"top_k,omitempty" validate:"gte=0"`
	Workers    int     `json:"workers,omitempty" yaml:"workers,omitempty" validate:"gte=0,lte=256"` // Concurrent match calls per request
	MaxPhrases int     `json:"max_phrases,omitempty" yaml:"max_phrases,omitempty" validate:"gte=0"` // Cap on phrases sent to the semantic matcher
	MinTokens  int     `json:"min_tokens,omitempty" yaml:"min_tokens,omitempty" validate:"gte=0"`
	MaxNgram   int     `json:"max_ngram,omitempty" yaml:"max_ngram,omitempty" validate:"gte=0,lte=8"`

	// Embedding backend
	Provider     string `json:"provider,omitempty" yaml:"provider,omitempty" validate:"omitempty,oneof=local gemini openai"`
	Model        string `json:"model,omitempty" yaml:"model,omitempty"`
	APIKey       string `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	Dimension    int    `json:"dimension,omitempty" yaml:"dimension,omitempty" validate:"gte=0"`
	EmbedTimeout string `json:"embed_timeout,omitempty" yaml:"embed_timeout,omitempty"` // Go duration, e.g. "5s"
	EmbedRetries int    `json:"embed_retries,omitempty" yaml:"embed_retries,omitempty" validate:"gte=0,lte=10"`

	// Storage and serving
	DatabaseURL string `json:"database_url,omitempty" yaml:"database_url,omitempty"` // PostgreSQL URL holding a stored index
	Port        int    `json:"port,omitempty" yaml:"port,omitempty" validate:"gte=0,lte=65535"`
	Verbose     bool   `json:"verbose,omitempty" yaml:"verbose,omitempty"`
}

var validate = validator.New()

// Defaults returns a Config populated with every default value.
func Defaults() Config {
	return Config{
		Mode:         DefaultMode,
		Threshold:    DefaultThreshold,
		TopK:         DefaultTopK,
		Workers:      DefaultWorkers,
		Provider:     DefaultProvider,
		EmbedTimeout: DefaultEmbedTimeout,
		EmbedRetries: DefaultEmbedRetries,
		MinTokens:    DefaultMinTokens,
		MaxNgram:     DefaultMaxNgram,
		Port:         DefaultPort,
	}
}

// LoadConfig loads configuration from a JSON or YAML file, chosen by extension.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	// Resolve path relative to current directory if not absolute
	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	}

	return &cfg, nil
}

// ApplyEnv overlays environment variables onto empty fields.
// getenv is usually os.Getenv.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := getenv("SKILLSENSE_MODE"); v != "" && c.Mode == "" {
		c.Mode = strings.ToLower(v)
	}
	if v := getenv("SKILLSENSE_THRESHOLD"); v != "" && c.Threshold == 0 {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("config error: SKILLSENSE_THRESHOLD: %w", err)
		}
		c.Threshold = f
	}
	if v := getenv("SKILLSENSE_PROVIDER"); v != "" && c.Provider == "" {
		c.Provider = strings.ToLower(v)
	}
	if v := getenv("SKILLSENSE_ONTOLOGY"); v != "" && c.Ontology == "" {
		c.Ontology = v
	}
	if v := getenv("SKILLSENSE_INDEX"); v != "" && c.Index == "" {
		c.Index = v
	}
	if v := getenv("DATABASE_URL"); v != "" && c.DatabaseURL == "" && c.Index == "" {
		c.DatabaseURL = v
	}
	if c.APIKey == "" {
		switch c.Provider {
		case "gemini":
			c.APIKey = getenv("GEMINI_API_KEY")
		case "openai":
			c.APIKey = getenv("OPENAI_API_KEY")
		}
	}
	return nil
}

// Validate checks that the configuration has valid values.
// Note: This doesn't check for required fields since those are handled
// by CLI flag validation after merging.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			msgs := make([]string, 0, len(fieldErrs))
			for _, fe := range fieldErrs {
				msgs = append(msgs, fmt.Sprintf("'%s' failed %s=%s", fe.Field(), fe.Tag(), fe.Param()))
			}
			return fmt.Errorf("config error: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("config error: %w", err)
	}

	// Validate mutually exclusive fields
	if c.Index != "" && c.DatabaseURL != "" {
		return fmt.Errorf("config error: 'index' and 'database_url' are mutually exclusive")
	}
	if c.MaxNgram > 0 && c.MinTokens > c.MaxNgram {
		return fmt.Errorf("config error: 'min_tokens' must not exceed 'max_ngram'")
	}

	if c.EmbedTimeout != "" {
		d, err := time.ParseDuration(c.EmbedTimeout)
		if err != nil {
			return fmt.Errorf("config error: invalid 'embed_timeout': %w", err)
		}
		if d < 0 {
			return fmt.Errorf("config error: 'embed_timeout' must be non-negative")
		}
	}

	// Validate file paths exist (if specified)
	if c.Ontology != "" {
		if _, err := os.Stat(c.Ontology); os.IsNotExist(err) {
			return fmt.Errorf("config error: ontology file not found: %s", c.Ontology)
		}
	}

	return nil
}

// Timeout returns the parsed embed timeout, or zero when unset or invalid.
func (c *Config) Timeout() time.Duration {
	d, err := time.ParseDuration(c.EmbedTimeout)
	if err != nil {
		return 0
	}
	return d
}

// MergeWithDefaults returns a new Config with empty fields filled from defaults.
// This is used to apply config file values as defaults for CLI flags.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	// String fields: use default if empty
	if result.Ontology == "" {
		result.Ontology = defaults.Ontology
	}
	if result.Index == "" {
		result.Index = defaults.Index
	}
	if result.Mode == "" {
		result.Mode = defaults.Mode
	}
	if result.Provider == "" {
		result.Provider = defaults.Provider
	}
	if result.Model == "" {
		result.Model = defaults.Model
	}
	if result.APIKey == "" {
		result.APIKey = defaults.APIKey
	}
	if result.EmbedTimeout == "" {
		result.EmbedTimeout = defaults.EmbedTimeout
	}
	if result.DatabaseURL == "" {
		result.DatabaseURL = defaults.DatabaseURL
	}

	// Int fields: use default if zero
	if result.TopK == 0 {
		result.TopK = defaults.TopK
	}
	if result.Workers == 0 {
		result.Workers = defaults.Workers
	}
	if result.MaxPhrases == 0 {
		result.MaxPhrases = defaults.MaxPhrases
	}
	if result.MinTokens == 0 {
		result.MinTokens = defaults.MinTokens
	}
	if result.MaxNgram == 0 {
		result.MaxNgram = defaults.MaxNgram
	}
	if result.Dimension == 0 {
		result.Dimension = defaults.Dimension
	}
	if result.EmbedRetries == 0 {
		result.EmbedRetries = defaults.EmbedRetries
	}
	if result.Port == 0 {
		result.Port = defaults.Port
	}

	// Float fields: zero means unset, so a zero threshold cannot be configured from a file
	if result.Threshold == 0 {
		result.Threshold = defaults.Threshold
	}

	// Bool fields: cannot distinguish unset from false, so we don't merge
	// (CLI flags should always win for bools)

	return result
}
