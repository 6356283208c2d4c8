package shared

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

//go:embed config.example.toml
var exampleConf []byte

// Environment variables that override values from the config file.
const (
	EnvEmail       = "GMX_EMAIL"
	EnvPassword    = "GMX_PASSWORD"
	EnvAccessToken = "GMX_ACCESS_TOKEN"
	EnvBaseURL     = "GMX_BASE_URL"
	EnvTokenURL    = "GMX_TOKEN_URL"
)

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	LogLevel    string            `toml:"log_level" validate:"omitempty,oneof=debug info warn error"`
	Credentials CredentialsConfig `toml:"credentials"`
	Service     ServiceConfig     `toml:"service"`
	Suite       SuiteConfig       `toml:"suite"`
	Retry       RetryConfig       `toml:"retry"`
	Database    DatabaseConfig    `toml:"database"`
	Report      ReportConfig      `toml:"report"`
}

// CredentialsConfig contains the account used for the live run.
type CredentialsConfig struct {
	Email        string `toml:"email" validate:"required_without=AccessToken"`
	Password     string `toml:"password" validate:"required_without=AccessToken"`
	AccessToken  string `toml:"access_token"`
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	TokenURL     string `toml:"token_url" validate:"omitempty,url"`
}

// ServiceConfig contains HTTP client settings for the music service proxy.
type ServiceConfig struct {
	BaseURL           string        `toml:"base_url" validate:"required,url"`
	RequestsPerSecond float64       `toml:"requests_per_second" validate:"gte=0"`
	Timeout           time.Duration `toml:"timeout" validate:"gte=0"`
}

// SuiteConfig contains settings for the live suite.
type SuiteConfig struct {
	PlaylistName string `toml:"playlist_name" validate:"required"`
	SampleDir    string `toml:"sample_dir"`
	UniqueTags   bool   `toml:"unique_tags"`
}

// RetryConfig bounds polling for eventual consistency.
type RetryConfig struct {
	MaxAttempts  int           `toml:"max_attempts" validate:"gte=1"`
	InitialDelay time.Duration `toml:"initial_delay" validate:"gte=0"`
	MaxDelay     time.Duration `toml:"max_delay" validate:"gte=0"`
	Multiplier   float64       `toml:"multiplier" validate:"gte=1"`
	Jitter       bool          `toml:"jitter"`
	MaxElapsed   time.Duration `toml:"max_elapsed" validate:"gte=0"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path" validate:"required"`
	MaxOpenConns int    `toml:"max_open_conns" validate:"gte=0"`
	MaxIdleConns int    `toml:"max_idle_conns" validate:"gte=0"`
}

// ReportConfig contains report output settings.
type ReportConfig struct {
	Format      string `toml:"format" validate:"oneof=text json markdown csv"`
	MetricsFile string `toml:"metrics_file"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep their default values.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// LoadEnvFile loads a dotenv file into the process environment.
// A missing file is not an error; variables already set are kept.
func LoadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides credentials and endpoints from GMX_* environment variables.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvEmail); v != "" {
		c.Credentials.Email = v
	}
	if v := os.Getenv(EnvPassword); v != "" {
		c.Credentials.Password = v
	}
	if v := os.Getenv(EnvAccessToken); v != "" {
		c.Credentials.AccessToken = v
	}
	if v := os.Getenv(EnvBaseURL); v != "" {
		c.Service.BaseURL = v
	}
	if v := os.Getenv(EnvTokenURL); v != "" {
		c.Credentials.TokenURL = v
	}
}

// Validate checks the configuration with struct tags.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("%w: %s failed on '%s'", ErrInvalidConfig, verrs[0].Namespace(), verrs[0].Tag())
		}
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// HasCredentials reports whether either an access token or an email/password pair is set.
func (c *Config) HasCredentials() bool {
	if c.Credentials.AccessToken != "" {
		return true
	}
	return c.Credentials.Email != "" && c.Credentials.Password != ""
}

// Redacted returns a copy safe for printing, with secrets masked.
func (c *Config) Redacted() Config {
	r := *c
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		return "***(" + strconv.Itoa(len(s)) + ")"
	}
	r.Credentials.Password = mask(r.Credentials.Password)
	r.Credentials.AccessToken = mask(r.Credentials.AccessToken)
	r.Credentials.ClientSecret = mask(r.Credentials.ClientSecret)
	return r
}
