// Package config provides application configuration management with
// multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (CDD_DOCS_* prefix, runtime override)
//  2. Config file (~/.cdd-docs/config.yaml)
//  3. Default values (sensible defaults for quick start)
//
// Main configuration categories:
//   - AI: provider, generation model, embedder model
//   - Storage: PostgreSQL connection for the pgvector chunk store (storage.go)
//   - RAG: chunking sizes, retrieval top-k, history bounds, timeouts
//   - Mermaid: diagram validation command and repair attempt budget
//
// Validation uses sentinel errors so callers can branch with errors.Is().
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment variable overrides,
// e.g. CDD_DOCS_TOP_K=10.
const EnvPrefix = "CDD_DOCS"

// Config stores application configuration.
type Config struct {
	// AI provider and model configuration.
	Provider      string `mapstructure:"provider"`       // "googleai" (default) or "ollama"
	ModelName     string `mapstructure:"model_name"`     // provider-qualified generation model
	EmbedderModel string `mapstructure:"embedder_model"` // embedding model identifier
	OllamaHost    string `mapstructure:"ollama_host"`    // ollama server address

	// PostgreSQL connection for the chunk store (see storage.go).
	PostgresHost     string `mapstructure:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password"`
	PostgresDBName   string `mapstructure:"postgres_dbname"`
	PostgresSSLMode  string `mapstructure:"postgres_sslmode"`

	// Documentation corpus root for the index command.
	DocsPath string `mapstructure:"docs_path"`

	// Chunking parameters, in words.
	ChunkTargetWords  int `mapstructure:"chunk_target_words"`
	ChunkOverlapWords int `mapstructure:"chunk_overlap_words"`
	ChunkMinWords     int `mapstructure:"chunk_min_words"`

	// Retrieval and conversation bounds.
	TopK            int `mapstructure:"top_k"`
	MaxHistoryTurns int `mapstructure:"max_history_turns"`

	// Generation timeouts.
	RewriteTimeout  time.Duration `mapstructure:"rewrite_timeout"`
	GenerateTimeout time.Duration `mapstructure:"generate_timeout"`

	// Mermaid diagram validation.
	MermaidCommand     string        `mapstructure:"mermaid_command"`
	MermaidTimeout     time.Duration `mapstructure:"mermaid_timeout"`
	MermaidMaxAttempts int           `mapstructure:"mermaid_max_attempts"`

	// Session lifecycle.
	SessionTTL time.Duration `mapstructure:"session_ttl"`

	// HTTP server bind address.
	ServerAddr string `mapstructure:"server_addr"`
}

// Load reads configuration from defaults, the optional config file, and
// environment variables, then applies DATABASE_URL if set.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if dir, err := configDir(); err == nil {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(dir)
		// A missing config file is fine; defaults plus env cover everything.
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !asConfigFileNotFound(err, &notFound) {
				return nil, fmt.Errorf("reading config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults registers default values for all configuration keys.
func setDefaults(v *viper.Viper) {
	v.SetDefault("provider", "googleai")
	v.SetDefault("model_name", "googleai/gemini-2.5-flash")
	v.SetDefault("embedder_model", "text-embedding-004")
	v.SetDefault("ollama_host", "http://localhost:11434")

	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", 5432)
	v.SetDefault("postgres_user", "cdd_docs")
	v.SetDefault("postgres_password", "")
	v.SetDefault("postgres_dbname", "cdd_docs")
	v.SetDefault("postgres_sslmode", "disable")

	v.SetDefault("docs_path", "./docs")

	v.SetDefault("chunk_target_words", 200)
	v.SetDefault("chunk_overlap_words", 30)
	v.SetDefault("chunk_min_words", 100)

	v.SetDefault("top_k", 7)
	v.SetDefault("max_history_turns", 5)

	v.SetDefault("rewrite_timeout", 10*time.Second)
	v.SetDefault("generate_timeout", 2*time.Minute)

	v.SetDefault("mermaid_command", "mmdc")
	v.SetDefault("mermaid_timeout", 30*time.Second)
	v.SetDefault("mermaid_max_attempts", 2)

	v.SetDefault("session_ttl", time.Hour)

	v.SetDefault("server_addr", "127.0.0.1:3400")
}

// configDir returns the configuration directory (~/.cdd-docs).
func configDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".cdd-docs"), nil
}

// asConfigFileNotFound reports whether err is a viper "config file not found"
// error. Split out so Load reads linearly.
func asConfigFileNotFound(err error, target *viper.ConfigFileNotFoundError) bool {
	if e, ok := err.(viper.ConfigFileNotFoundError); ok {
		*target = e
		return true
	}
	return false
}
