package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// AppName names the XDG data directory.
const AppName = "bizplan"

// Config holds all application configuration
type Config struct {
	App     App     `mapstructure:"app"`
	AI      AI      `mapstructure:"ai"`
	Search  Search  `mapstructure:"search"`
	Cache   Cache   `mapstructure:"cache"`
	Usage   Usage   `mapstructure:"usage"`
	Section Section `mapstructure:"section"`
	Secrets Secrets `mapstructure:"secrets"`
	Logging Logging `mapstructure:"logging"`
	Server  Server  `mapstructure:"server"`
	States  States  `mapstructure:"states"`
}

// App holds general application configuration
type App struct {
	Debug      bool   `mapstructure:"debug"`
	DataDir    string `mapstructure:"data_dir"`
	ConfigFile string `mapstructure:"config_file"`
}

// AI holds generative model configuration
type AI struct {
	Gemini GeminiConfig `mapstructure:"gemini"`
}

// GeminiConfig holds Google Gemini configuration
type GeminiConfig struct {
	APIKey      string  `mapstructure:"api_key"`
	Model       string  `mapstructure:"model"`
	Timeout     string  `mapstructure:"timeout"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float32 `mapstructure:"temperature"`
	TopP        float32 `mapstructure:"top_p"`
	TopK        float32 `mapstructure:"top_k"`
}

// Search holds web search configuration
type Search struct {
	Brave BraveConfig `mapstructure:"brave"`
}

// BraveConfig holds Brave Search API configuration
type BraveConfig struct {
	APIKey     string `mapstructure:"api_key"`
	BaseURL    string `mapstructure:"base_url"`
	Timeout    string `mapstructure:"timeout"`
	MaxRetries int    `mapstructure:"max_retries"`
	Language   string `mapstructure:"language"`
	Country    string `mapstructure:"country"`
	SafeSearch string `mapstructure:"safesearch"`
	Region     string `mapstructure:"region"`
}

// Cache holds cache configuration
type Cache struct {
	Directory     string `mapstructure:"directory"`
	SearchFile    string `mapstructure:"search_file"`
	SearchTTL     string `mapstructure:"search_ttl"`
	GenerationTTL string `mapstructure:"generation_ttl"`
}

// Usage holds usage tracking configuration
type Usage struct {
	Enabled                  bool   `mapstructure:"enabled"`
	Database                 string `mapstructure:"database"`
	MaxGenerationsPerSession int    `mapstructure:"max_generations_per_session"`
}

// States holds saved business-plan state configuration
type States struct {
	Directory string `mapstructure:"directory"` // relative paths live under app.data_dir
}

// Section holds section generation defaults
type Section struct {
	LengthType      string `mapstructure:"length_type"`
	IncludeResearch bool   `mapstructure:"include_research"`
	AutoResearch    bool   `mapstructure:"auto_research"`
}

// Secrets points at the fallback secrets store consulted after the environment.
type Secrets struct {
	File string `mapstructure:"file"`
}

// Logging holds logging configuration
type Logging struct {
	Level     string `mapstructure:"level"`
	FilePath  string `mapstructure:"file_path"`
	MaxSizeMB int    `mapstructure:"max_size_mb"`
	Console   bool   `mapstructure:"console"`
}

// Server holds HTTP API configuration
type Server struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	ReadTimeout  string `mapstructure:"read_timeout"`
	WriteTimeout string `mapstructure:"write_timeout"`
	APIKey       string `mapstructure:"api_key"` // bearer token; empty leaves the API open
	CORS         CORS   `mapstructure:"cors"`
}

// CORS holds cross-origin settings for browser front ends
type CORS struct {
	Enabled        bool     `mapstructure:"enabled"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

var globalConfig *Config

// Load loads the configuration from various sources
func Load(configFile string) (*Config, error) {
	if globalConfig != nil {
		return globalConfig, nil
	}

	// Load .env file if it exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: Error loading .env file: %v\n", err)
		}
	}

	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME")
		viper.SetConfigName(".bizplan")
		viper.SetConfigType("yaml")
	}

	setDefaults()
	bindEnvironmentVariables()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	config.App.ConfigFile = viper.ConfigFileUsed()

	if err := postProcessConfig(config); err != nil {
		return nil, fmt.Errorf("error post-processing config: %w", err)
	}

	if err := validateConfig(config); err != nil {
		return nil, err
	}

	globalConfig = config
	return config, nil
}

// Get returns the global configuration, loading it if necessary
func Get() *Config {
	if globalConfig == nil {
		config, err := Load("")
		if err != nil {
			panic(fmt.Sprintf("Failed to load configuration: %v", err))
		}
		return config
	}
	return globalConfig
}

// DefaultDataDir is the XDG data directory for bizplan.
func DefaultDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// setDefaults sets default configuration values
func setDefaults() {
	dataDir := DefaultDataDir()

	viper.SetDefault("app.debug", false)
	viper.SetDefault("app.data_dir", dataDir)

	viper.SetDefault("ai.gemini.model", "gemini-2.5-pro")
	viper.SetDefault("ai.gemini.timeout", "120s")
	viper.SetDefault("ai.gemini.max_tokens", 4000)
	viper.SetDefault("ai.gemini.temperature", 0.2)
	viper.SetDefault("ai.gemini.top_p", 0.95)
	viper.SetDefault("ai.gemini.top_k", 40)

	viper.SetDefault("search.brave.base_url", "https://api.search.brave.com/res/v1")
	viper.SetDefault("search.brave.timeout", "30s")
	viper.SetDefault("search.brave.max_retries", 4)
	viper.SetDefault("search.brave.language", "it")
	viper.SetDefault("search.brave.country", "IT")
	viper.SetDefault("search.brave.safesearch", "moderate")
	viper.SetDefault("search.brave.region", "Italia")

	viper.SetDefault("cache.directory", dataDir)
	viper.SetDefault("cache.search_file", "brave_search_cache.json")
	viper.SetDefault("cache.search_ttl", "24h")
	viper.SetDefault("cache.generation_ttl", "1h")

	viper.SetDefault("usage.enabled", true)
	viper.SetDefault("usage.database", "usage.db")
	viper.SetDefault("usage.max_generations_per_session", 50)

	viper.SetDefault("states.directory", "states")

	viper.SetDefault("section.length_type", "media")
	viper.SetDefault("section.include_research", true)
	viper.SetDefault("section.auto_research", false)

	viper.SetDefault("secrets.file", ".secrets.env")

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.max_size_mb", 10)
	viper.SetDefault("logging.console", true)

	viper.SetDefault("server.host", "127.0.0.1")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "180s")
	viper.SetDefault("server.cors.enabled", false)
	viper.SetDefault("server.cors.allowed_origins", []string{"http://localhost:8501"})
}

// bindEnvironmentVariables sets up flexible environment variable binding
func bindEnvironmentVariables() {
	bindEnvKeys("ai.gemini.api_key", GeminiEnvKeys)
	bindEnvKeys("search.brave.api_key", BraveEnvKeys)

	bindEnvKeys("app.debug", []string{
		"DEBUG",
		"BIZPLAN_DEBUG",
	})

	bindEnvKeys("logging.level", []string{
		"LOG_LEVEL",
		"BIZPLAN_LOG_LEVEL",
	})

	bindEnvKeys("server.api_key", []string{
		"BIZPLAN_API_KEY",
	})
}

// GeminiEnvKeys are the environment variables searched for the Gemini key, in order.
var GeminiEnvKeys = []string{
	"GEMINI_API_KEY",
	"GOOGLE_GEMINI_API_KEY",
	"GOOGLE_AI_API_KEY",
}

// BraveEnvKeys are the environment variables searched for the Brave key, in order.
var BraveEnvKeys = []string{
	"BRAVE_SEARCH_API_KEY",
	"BRAVE_API_KEY",
}

// bindEnvKeys binds the first found environment variable to a viper key
func bindEnvKeys(viperKey string, envKeys []string) {
	for _, envKey := range envKeys {
		if value := os.Getenv(envKey); value != "" {
			viper.Set(viperKey, value)
			return
		}
	}
}

// postProcessConfig applies post-processing to configuration values
func postProcessConfig(config *Config) error {
	if config.App.DataDir != "" {
		config.App.DataDir = expandPath(config.App.DataDir)
	}
	if config.Cache.Directory != "" {
		config.Cache.Directory = expandPath(config.Cache.Directory)
	}
	if config.Logging.FilePath != "" {
		config.Logging.FilePath = expandPath(config.Logging.FilePath)
	}
	if config.Secrets.File != "" {
		config.Secrets.File = expandPath(config.Secrets.File)
	}
	if config.States.Directory != "" {
		config.States.Directory = expandPath(config.States.Directory)
	}

	durations := map[string]string{
		"ai.gemini.timeout":    config.AI.Gemini.Timeout,
		"search.brave.timeout": config.Search.Brave.Timeout,
		"cache.search_ttl":     config.Cache.SearchTTL,
		"cache.generation_ttl": config.Cache.GenerationTTL,
		"server.read_timeout":  config.Server.ReadTimeout,
		"server.write_timeout": config.Server.WriteTimeout,
	}

	for key, duration := range durations {
		if duration != "" {
			if _, err := time.ParseDuration(duration); err != nil {
				return fmt.Errorf("invalid duration for %s: %s", key, duration)
			}
		}
	}

	return nil
}

// expandPath expands ~ and environment variables in paths
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return os.ExpandEnv(path)
}

// validateConfig ensures configuration values are usable. API keys are not
// required here: the search client fails at construction and the section
// generator reports a missing key in its response.
func validateConfig(config *Config) error {
	var errors []string

	if t := config.AI.Gemini.Temperature; t < 0 || t > 1 {
		errors = append(errors, fmt.Sprintf("ai.gemini.temperature must be within [0,1], got %v", t))
	}
	if config.AI.Gemini.MaxTokens <= 0 {
		errors = append(errors, "ai.gemini.max_tokens must be positive")
	}
	if config.Search.Brave.MaxRetries <= 0 {
		errors = append(errors, "search.brave.max_retries must be positive")
	}
	switch config.Search.Brave.SafeSearch {
	case "off", "moderate", "strict":
	default:
		errors = append(errors, fmt.Sprintf("Unknown safesearch level: %s. Supported: off, moderate, strict", config.Search.Brave.SafeSearch))
	}
	if p := config.Server.Port; p < 0 || p > 65535 {
		errors = append(errors, fmt.Sprintf("server.port out of range: %d", p))
	}
	if config.Usage.MaxGenerationsPerSession < 0 {
		errors = append(errors, "usage.max_generations_per_session cannot be negative")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration errors:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// LogLevel returns the configured level, forced to debug when app.debug is set.
func (c *Config) LogLevel() string {
	if c.App.Debug {
		return "debug"
	}
	return c.Logging.Level
}

// SearchCachePath returns the full path of the persisted search cache.
func (c Cache) SearchCachePath() string {
	if filepath.IsAbs(c.SearchFile) || c.Directory == "" {
		return c.SearchFile
	}
	return filepath.Join(c.Directory, c.SearchFile)
}

// SearchTTLDuration parses SearchTTL, falling back to 24h.
func (c Cache) SearchTTLDuration() time.Duration {
	return parseDurationOr(c.SearchTTL, 24*time.Hour)
}

// GenerationTTLDuration parses GenerationTTL, falling back to 1h.
func (c Cache) GenerationTTLDuration() time.Duration {
	return parseDurationOr(c.GenerationTTL, time.Hour)
}

// TimeoutDuration parses the Brave request timeout, falling back to 30s.
func (b BraveConfig) TimeoutDuration() time.Duration {
	return parseDurationOr(b.Timeout, 30*time.Second)
}

// TimeoutDuration parses the Gemini call timeout, falling back to 120s.
func (g GeminiConfig) TimeoutDuration() time.Duration {
	return parseDurationOr(g.Timeout, 120*time.Second)
}

// ReadTimeoutDuration parses the request read timeout, falling back to 30s.
func (s Server) ReadTimeoutDuration() time.Duration {
	return parseDurationOr(s.ReadTimeout, 30*time.Second)
}

// WriteTimeoutDuration parses the response write timeout, falling back to 180s.
// It must outlast a Gemini call.
func (s Server) WriteTimeoutDuration() time.Duration {
	return parseDurationOr(s.WriteTimeout, 180*time.Second)
}

// Addr returns host:port.
func (s Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabasePath returns the full path of the usage database.
func (u Usage) DatabasePath(dataDir string) string {
	if filepath.IsAbs(u.Database) || dataDir == "" {
		return u.Database
	}
	return filepath.Join(dataDir, u.Database)
}

// Path returns the full path of the saved-state directory.
func (s States) Path(dataDir string) string {
	if filepath.IsAbs(s.Directory) || dataDir == "" {
		return s.Directory
	}
	return filepath.Join(dataDir, s.Directory)
}

func parseDurationOr(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// IsValidAPIKey checks if an API key is valid (not empty and not a placeholder)
func IsValidAPIKey(apiKey string) bool {
	if apiKey == "" {
		return false
	}

	placeholders := []string{
		"your-api-key", "your-gemini-key", "your-brave-key",
		"YOUR_API_KEY", "PLACEHOLDER", "TODO", "CHANGE_ME",
	}

	for _, placeholder := range placeholders {
		if apiKey == placeholder {
			return false
		}
	}

	return true
}

// Reset clears the global configuration (useful for testing)
func Reset() {
	globalConfig = nil
	viper.Reset()
}
