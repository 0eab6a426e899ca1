package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

const envPrefix = "KOBOMEDIA_"

// Config holds all configuration options for the media downloader
type Config struct {
	// Kobo server endpoints and API token
	Kobo KoboConfig `yaml:"kobo" json:"kobo" toml:"kobo"`

	// Per-run download parameters
	Download DownloadConfig `yaml:"download" json:"download" toml:"download"`

	// Where files and archives are written
	Output OutputConfig `yaml:"output" json:"output" toml:"output"`

	// Transport retry for page fetches
	Retry RetryConfig `yaml:"retry" json:"retry" toml:"retry"`

	// Archive publishing
	Publish PublishConfig `yaml:"publish" json:"publish" toml:"publish"`

	// HTTP dashboard
	Dashboard DashboardConfig `yaml:"dashboard" json:"dashboard" toml:"dashboard"`

	// Run history database
	History HistoryConfig `yaml:"history" json:"history" toml:"history"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging" toml:"logging"`
}

// KoboConfig holds the server settings normally read from kobo.json
type KoboConfig struct {
	KFURL              string `yaml:"kf_url" json:"kf_url" toml:"kf_url"`
	KCURL              string `yaml:"kc_url" json:"kc_url" toml:"kc_url"`
	Token              string `yaml:"token" json:"token" toml:"token"`
	RewriteDownloadURL bool   `yaml:"rewrite_download_url" json:"rewrite_download_url" toml:"rewrite_download_url"`
}

// DownloadConfig holds the dashboard inputs of a run
type DownloadConfig struct {
	QuestionNames  string  `yaml:"question_names" json:"question_names" toml:"question_names"`
	Limit          int     `yaml:"limit" json:"limit" toml:"limit"`
	Query          string  `yaml:"query" json:"query" toml:"query"`
	ChunkSize      int     `yaml:"chunk_size" json:"chunk_size" toml:"chunk_size"`
	Throttle       float64 `yaml:"throttle" json:"throttle" toml:"throttle"`
	Verbosity      int     `yaml:"verbosity" json:"verbosity" toml:"verbosity"`
	TimeoutSeconds int     `yaml:"timeout" json:"timeout" toml:"timeout"`
}

// OutputConfig holds output directory configuration
type OutputConfig struct {
	BaseDirectory    string `yaml:"base_directory" json:"base_directory" toml:"base_directory"`
	ArchiveDirectory string `yaml:"archive_directory" json:"archive_directory" toml:"archive_directory"`
}

// RetryConfig controls retries of page fetches that fail before any
// response arrives. HTTP error statuses are never retried.
type RetryConfig struct {
	MaxAttempts int     `yaml:"max_attempts" json:"max_attempts" toml:"max_attempts"`
	BaseDelay   float64 `yaml:"base_delay" json:"base_delay" toml:"base_delay"`
	MaxDelay    float64 `yaml:"max_delay" json:"max_delay" toml:"max_delay"`
}

// PublishConfig holds archive publishing targets
type PublishConfig struct {
	S3 S3Config `yaml:"s3" json:"s3" toml:"s3"`
}

// S3Config configures the optional S3 upload of finished archives
type S3Config struct {
	Bucket          string `yaml:"bucket" json:"bucket" toml:"bucket"`
	Region          string `yaml:"region" json:"region" toml:"region"`
	Prefix          string `yaml:"prefix" json:"prefix" toml:"prefix"`
	Endpoint        string `yaml:"endpoint" json:"endpoint" toml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id" json:"access_key_id" toml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key" json:"secret_access_key" toml:"secret_access_key"`
	UsePathStyle    bool   `yaml:"use_path_style" json:"use_path_style" toml:"use_path_style"`
}

// Enabled reports whether a bucket is configured
func (s S3Config) Enabled() bool {
	return s.Bucket != ""
}

// DashboardConfig holds HTTP dashboard settings
type DashboardConfig struct {
	ListenAddr string `yaml:"listen_addr" json:"listen_addr" toml:"listen_addr"`
	JWTSecret  string `yaml:"jwt_secret" json:"jwt_secret" toml:"jwt_secret"`
	TokenTTL   int    `yaml:"token_ttl_hours" json:"token_ttl_hours" toml:"token_ttl_hours"`
}

// HistoryConfig holds run history settings
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled" toml:"enabled"`
	Path    string `yaml:"path" json:"path" toml:"path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level" toml:"level"`
	File   string `yaml:"file" json:"file" toml:"file"`
	Format string `yaml:"format" json:"format" toml:"format"`
}

// DefaultConfig returns a Config instance with the dashboard's defaults
func DefaultConfig() *Config {
	return &Config{
		Kobo: KoboConfig{
			KFURL:              "https://kf.kobotoolbox.org",
			KCURL:              "https://kc.kobotoolbox.org",
			RewriteDownloadURL: true,
		},
		Download: DownloadConfig{
			QuestionNames:  "photo,audio",
			Limit:          100,
			ChunkSize:      1024,
			Throttle:       1,
			Verbosity:      3,
			TimeoutSeconds: 30,
		},
		Output: OutputConfig{
			BaseDirectory:    ".",
			ArchiveDirectory: "/tmp",
		},
		Retry: RetryConfig{
			MaxAttempts: 1,
			BaseDelay:   1,
			MaxDelay:    30,
		},
		Publish: PublishConfig{
			S3: S3Config{
				Region: "us-east-1",
			},
		},
		Dashboard: DashboardConfig{
			ListenAddr: ":8501",
			TokenTTL:   24,
		},
		History: HistoryConfig{
			Enabled: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// ThrottleDuration is the pause inserted after every successful download
func (d DownloadConfig) ThrottleDuration() time.Duration {
	return time.Duration(d.Throttle * float64(time.Second))
}

// Timeout is the HTTP client timeout for API and media requests
func (d DownloadConfig) Timeout() time.Duration {
	return time.Duration(d.TimeoutSeconds) * time.Second
}

// LoadFromEnv loads configuration from KOBOMEDIA_* environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	setString := func(key string, dst *string) {
		if v := os.Getenv(envPrefix + key); v != "" {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) {
		if v := os.Getenv(envPrefix + key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, key, err))
				return
			}
			*dst = n
		}
	}
	setFloat := func(key string, dst *float64) {
		if v := os.Getenv(envPrefix + key); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, key, err))
				return
			}
			*dst = f
		}
	}
	setBool := func(key string, dst *bool) {
		if v := os.Getenv(envPrefix + key); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, key, err))
				return
			}
			*dst = b
		}
	}

	setString("TOKEN", &c.Kobo.Token)
	setString("KF_URL", &c.Kobo.KFURL)
	setString("KC_URL", &c.Kobo.KCURL)
	setBool("REWRITE_DOWNLOAD_URL", &c.Kobo.RewriteDownloadURL)

	setString("QUESTION_NAMES", &c.Download.QuestionNames)
	setInt("LIMIT", &c.Download.Limit)
	setString("QUERY", &c.Download.Query)
	setInt("CHUNK_SIZE", &c.Download.ChunkSize)
	setFloat("THROTTLE", &c.Download.Throttle)
	setInt("VERBOSITY", &c.Download.Verbosity)
	setInt("TIMEOUT", &c.Download.TimeoutSeconds)

	setString("OUTPUT_DIR", &c.Output.BaseDirectory)
	setString("ARCHIVE_DIR", &c.Output.ArchiveDirectory)

	setInt("RETRY_MAX_ATTEMPTS", &c.Retry.MaxAttempts)

	setString("S3_BUCKET", &c.Publish.S3.Bucket)
	setString("S3_REGION", &c.Publish.S3.Region)
	setString("S3_PREFIX", &c.Publish.S3.Prefix)
	setString("S3_ENDPOINT", &c.Publish.S3.Endpoint)
	setString("S3_ACCESS_KEY_ID", &c.Publish.S3.AccessKeyID)
	setString("S3_SECRET_ACCESS_KEY", &c.Publish.S3.SecretAccessKey)

	setString("DASHBOARD_ADDR", &c.Dashboard.ListenAddr)
	setString("JWT_SECRET", &c.Dashboard.JWTSecret)

	setBool("HISTORY_ENABLED", &c.History.Enabled)
	setString("HISTORY_PATH", &c.History.Path)

	setString("LOG_LEVEL", &c.Logging.Level)
	setString("LOG_FILE", &c.Logging.File)

	return errors.Join(errs...)
}

// LoadFromFile loads configuration from a YAML, TOML or JSON file.
// The format is chosen by extension, YAML being the fallback.
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = findConfigFile()
		if path == "" {
			return nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		err = toml.Unmarshal(data, c)
	case ".json":
		err = json.Unmarshal(data, c)
	default:
		err = yaml.Unmarshal(data, c)
	}
	if err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return nil
}

// findConfigFile searches for a config file in standard locations
func findConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		".kobomedia.yaml",
		".kobomedia.yml",
		".kobomedia.toml",
		filepath.Join(home, ".config", "kobomedia", "config.yaml"),
		filepath.Join(home, ".config", "kobomedia", "config.yml"),
		filepath.Join(home, ".config", "kobomedia", "config.toml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid. A missing token is not a
// validation error; see RequireToken.
func (c *Config) Validate() error {
	var errs []error

	if err := validateHTTPURL("kf_url", c.Kobo.KFURL); err != nil {
		errs = append(errs, err)
	}
	if c.Kobo.RewriteDownloadURL {
		if err := validateHTTPURL("kc_url", c.Kobo.KCURL); err != nil {
			errs = append(errs, err)
		}
	}

	if c.Download.Limit < 1 {
		errs = append(errs, errors.New("limit must be at least 1"))
	}
	if c.Download.ChunkSize < 1 {
		errs = append(errs, errors.New("chunk size must be at least 1"))
	}
	if c.Download.Throttle < 0 {
		errs = append(errs, errors.New("throttle cannot be negative"))
	}
	if c.Download.Verbosity < 1 || c.Download.Verbosity > 3 {
		errs = append(errs, errors.New("verbosity must be 1, 2 or 3"))
	}
	if c.Download.TimeoutSeconds <= 0 {
		errs = append(errs, errors.New("timeout must be positive"))
	}

	if c.Output.BaseDirectory == "" {
		errs = append(errs, errors.New("output directory is required"))
	}
	if c.Output.ArchiveDirectory == "" {
		errs = append(errs, errors.New("archive directory is required"))
	}

	if c.Retry.MaxAttempts < 1 {
		errs = append(errs, errors.New("retry max attempts must be at least 1"))
	}

	if c.Publish.S3.Enabled() && c.Publish.S3.Region == "" {
		errs = append(errs, errors.New("s3 region is required when a bucket is set"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "disabled": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Errorf("invalid log level %q", c.Logging.Level))
	}
	if f := strings.ToLower(c.Logging.Format); f != "console" && f != "json" {
		errs = append(errs, fmt.Errorf("invalid log format %q", c.Logging.Format))
	}

	return errors.Join(errs...)
}

// RequireToken fails when no API token has been configured from any source
func (c *Config) RequireToken() error {
	if strings.TrimSpace(c.Kobo.Token) == "" {
		return errors.New("kobo API token is required (kobo.json, KOBOMEDIA_TOKEN, --token or 'kobomedia auth login')")
	}
	return nil
}

func validateHTTPURL(name, raw string) error {
	if raw == "" {
		return fmt.Errorf("%s is required", name)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s is not a valid URL: %w", name, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%s must be an absolute http(s) URL", name)
	}
	return nil
}

// Save writes the configuration to path, choosing the format by extension
func (c *Config) Save(path string) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		data, err = toml.Marshal(c)
	case ".json":
		data, err = json.MarshalIndent(c, "", "  ")
	default:
		data, err = yaml.Marshal(c)
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges explicitly set command line flags
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	str := func(key string, dst *string) {
		if v, ok := flags[key].(string); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v, ok := flags[key].(int); ok {
			*dst = v
		}
	}

	str("token", &c.Kobo.Token)
	str("kf-url", &c.Kobo.KFURL)
	str("kc-url", &c.Kobo.KCURL)
	if v, ok := flags["rewrite-url"].(bool); ok {
		c.Kobo.RewriteDownloadURL = v
	}

	if v, ok := flags["question-names"].(string); ok {
		c.Download.QuestionNames = v
	}
	num("limit", &c.Download.Limit)
	if v, ok := flags["query"].(string); ok {
		c.Download.Query = v
	}
	num("chunk-size", &c.Download.ChunkSize)
	if v, ok := flags["throttle"].(float64); ok {
		c.Download.Throttle = v
	}
	num("verbosity", &c.Download.Verbosity)
	num("timeout", &c.Download.TimeoutSeconds)

	str("output", &c.Output.BaseDirectory)
	str("archive-dir", &c.Output.ArchiveDirectory)
	num("max-retries", &c.Retry.MaxAttempts)

	str("s3-bucket", &c.Publish.S3.Bucket)
	str("s3-prefix", &c.Publish.S3.Prefix)
	str("listen", &c.Dashboard.ListenAddr)
	str("history-path", &c.History.Path)
	if v, ok := flags["history"].(bool); ok {
		c.History.Enabled = v
	}

	str("log-level", &c.Logging.Level)
	str("log-format", &c.Logging.Format)
}

// Load loads configuration from all sources with proper precedence.
// Precedence order: flags > environment (.env included) > settings file >
// config file > defaults.
func Load(configPath, settingsPath string, flags map[string]interface{}) (*Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".kobomedia.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	settings, err := LoadSettings(settingsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	config.ApplySettings(settings)

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
