// Package config provides configuration loading and structs for wikichat.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug      bool             `yaml:"debug"`
	Server     ServerConfig     `yaml:"server"`
	Storage    StorageConfig    `yaml:"storage"`
	Wiki       WikiConfig       `yaml:"wiki"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Completion CompletionConfig `yaml:"completion"`
	Index      IndexConfig      `yaml:"index"`
	Chat       ChatConfig       `yaml:"chat"`
	Watch      WatchConfig      `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds paths for the database and indices.
type StorageConfig struct {
	DatabasePath     string `yaml:"database_path"`
	KeywordIndexPath string `yaml:"keyword_index_path"`
	VectorIndexPath  string `yaml:"vector_index_path"`
}

// WikiConfig holds scraper settings.
type WikiConfig struct {
	BaseURL           string   `yaml:"base_url"`
	StartPage         string   `yaml:"start_page"`
	ArticlePrefix     string   `yaml:"article_prefix"`
	ExcludePrefixes   []string `yaml:"exclude_prefixes"`
	ContainerClass    string   `yaml:"container_class"`
	MaxPages          int      `yaml:"max_pages"`
	RequestsPerSecond float64  `yaml:"requests_per_second"`
	UserAgent         string   `yaml:"user_agent"`
	TimeoutSecs       int      `yaml:"timeout_secs"`
	OutputPath        string   `yaml:"output_path"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider    string `yaml:"provider"` // openai or mock
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	Dimensions  int    `yaml:"dimensions"`
	TimeoutSecs int    `yaml:"timeout_secs"` // 0 means no timeout
	CacheSize   int    `yaml:"cache_size"`
}

// APIKey returns the key from the configured environment variable.
func (e *EmbeddingConfig) APIKey() string {
	return os.Getenv(e.APIKeyEnv)
}

// CompletionConfig holds chat completion settings.
type CompletionConfig struct {
	BaseURL      string   `yaml:"base_url"`
	APIKeyEnv    string   `yaml:"api_key_env"`
	Model        string   `yaml:"model"`
	MaxTokens    int      `yaml:"max_tokens"`
	Temperature  *float64 `yaml:"temperature,omitempty"` // unset means 0.7; 0 is a valid value
	TimeoutSecs  int      `yaml:"timeout_secs"`
	SystemPrompt string   `yaml:"system_prompt"`
}

// APIKey returns the key from the configured environment variable.
func (c *CompletionConfig) APIKey() string {
	return os.Getenv(c.APIKeyEnv)
}

// SamplingTemperature returns the configured temperature, or DefaultTemperature when unset.
func (c *CompletionConfig) SamplingTemperature() float64 {
	if c.Temperature == nil {
		return DefaultTemperature
	}
	return *c.Temperature
}

// IndexConfig holds collection and chunking settings.
type IndexConfig struct {
	Collection string       `yaml:"collection"`
	ChunkSize  int          `yaml:"chunk_size"`
	VectorType string       `yaml:"vector_type"` // memory or qdrant
	Qdrant     QdrantConfig `yaml:"qdrant"`
}

// QdrantConfig holds Qdrant connection settings.
type QdrantConfig struct {
	URL       string `yaml:"url"`
	APIKeyEnv string `yaml:"api_key_env"`
}

// APIKey returns the key from the configured environment variable, if any.
func (q *QdrantConfig) APIKey() string {
	if q.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(q.APIKeyEnv)
}

// ChatConfig holds chat bot settings.
type ChatConfig struct {
	Username       string   `yaml:"username"`
	TokenEnv       string   `yaml:"token_env"`
	Channel        string   `yaml:"channel"`
	Prefix         string   `yaml:"prefix"`
	Command        string   `yaml:"command"`
	TopK           int      `yaml:"top_k"`
	MaxReplyLength int      `yaml:"max_reply_length"`
	TopicGuard     bool     `yaml:"topic_guard"`
	TopicKeywords  []string `yaml:"topic_keywords"`
	FallbackReply  string   `yaml:"fallback_reply"`
	QueueSize      int      `yaml:"queue_size"`
}

// Token returns the chat OAuth token from the configured environment variable.
func (c *ChatConfig) Token() string {
	return os.Getenv(c.TokenEnv)
}

// WatchConfig controls rebuilding the collection when the page file changes.
type WatchConfig struct {
	Enabled        bool `yaml:"enabled"`
	DebounceMillis int  `yaml:"debounce_ms"`
}

// Load reads and parses the config file at path, applies defaults and environment
// overrides, and expands paths. A missing file yields the defaults.
// Returns an error if the file exists but cannot be read or parsed.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	ApplyDefaults(&cfg)
	ApplyEnv(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.KeywordIndexPath = expandPath(cfg.Storage.KeywordIndexPath, configDir)
	cfg.Storage.VectorIndexPath = expandPath(cfg.Storage.VectorIndexPath, configDir)
	cfg.Wiki.OutputPath = expandPath(cfg.Wiki.OutputPath, configDir)

	return &cfg, nil
}

// ApplyEnv overrides chat identity settings from the environment.
func ApplyEnv(cfg *Config) {
	if v := os.Getenv("TWITCH_CHANNEL"); v != "" {
		cfg.Chat.Channel = v
	}
	if v := os.Getenv("TWITCH_BOT_USERNAME"); v != "" {
		cfg.Chat.Username = v
	}
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// "~/" paths are relative to the home directory. Other relative paths are left alone.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
