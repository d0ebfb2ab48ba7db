package config

import "time"

// ProviderType identifies a model provider for chat or embeddings.
type ProviderType string

const (
	ProviderBedrock   ProviderType = "bedrock"
	ProviderAnthropic ProviderType = "anthropic"
	ProviderOpenAI    ProviderType = "openai"
	ProviderOllama    ProviderType = "ollama"
)

// SessionBackend selects where conversation history is kept.
type SessionBackend string

const (
	BackendMemory SessionBackend = "memory"
	BackendSQLite SessionBackend = "sqlite"
	BackendRedis  SessionBackend = "redis"
)

// Config is the top-level productassist configuration, corresponding to .productassist.yml.
type Config struct {
	Provider          ProviderType    `yaml:"provider" koanf:"provider"`
	Model             string          `yaml:"model" koanf:"model"`
	EmbeddingProvider ProviderType    `yaml:"embedding_provider" koanf:"embedding_provider"`
	EmbeddingModel    string          `yaml:"embedding_model" koanf:"embedding_model"`
	Server            ServerConfig    `yaml:"server" koanf:"server"`
	Catalog           CatalogConfig   `yaml:"catalog" koanf:"catalog"`
	AWS               AWSConfig       `yaml:"aws" koanf:"aws"`
	Retrieval         RetrievalConfig `yaml:"retrieval" koanf:"retrieval"`
	Sessions          SessionsConfig  `yaml:"sessions" koanf:"sessions"`
	LLM               LLMConfig       `yaml:"llm" koanf:"llm"`
	Log               LogConfig       `yaml:"log" koanf:"log"`
	Metrics           MetricsConfig   `yaml:"metrics" koanf:"metrics"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Port            int           `yaml:"port" koanf:"port"`
	AllowAllOrigins bool          `yaml:"allow_all_origins" koanf:"allow_all_origins"`
	RequestTimeout  time.Duration `yaml:"request_timeout" koanf:"request_timeout"`
}

// CatalogConfig points at the product catalog and the directory holding
// the persisted index artifacts.
type CatalogConfig struct {
	Paths   []string `yaml:"paths" koanf:"paths"`
	DataDir string   `yaml:"data_dir" koanf:"data_dir"`
}

// AWSConfig controls role assumption for Bedrock access.
type AWSConfig struct {
	Region          string        `yaml:"region" koanf:"region"`
	AssumeRoleARN   string        `yaml:"assume_role_arn" koanf:"assume_role_arn"`
	RoleSessionName string        `yaml:"role_session_name" koanf:"role_session_name"`
	RefreshInterval time.Duration `yaml:"refresh_interval" koanf:"refresh_interval"`
}

// RetrievalConfig tunes the hybrid retriever.
type RetrievalConfig struct {
	TopK          int `yaml:"top_k" koanf:"top_k"`
	SearchWorkers int `yaml:"search_workers" koanf:"search_workers"`
	EmbedBatch    int `yaml:"embed_batch" koanf:"embed_batch"`
}

// SessionsConfig selects and tunes the session history backend.
type SessionsConfig struct {
	Backend      SessionBackend `yaml:"backend" koanf:"backend"`
	TTL          time.Duration  `yaml:"ttl" koanf:"ttl"`
	HistoryLimit int            `yaml:"history_limit" koanf:"history_limit"`
	SQLitePath   string         `yaml:"sqlite_path" koanf:"sqlite_path"`
	Redis        RedisConfig    `yaml:"redis" koanf:"redis"`
}

// RedisConfig holds connection settings for the redis session backend.
type RedisConfig struct {
	Addr     string `yaml:"addr" koanf:"addr"`
	Password string `yaml:"password" koanf:"password"`
	DB       int    `yaml:"db" koanf:"db"`
}

// LLMConfig bounds every call made to a model provider.
type LLMConfig struct {
	Timeout           time.Duration `yaml:"timeout" koanf:"timeout"`
	MaxRetries        int           `yaml:"max_retries" koanf:"max_retries"`
	RequestsPerMinute int           `yaml:"requests_per_minute" koanf:"requests_per_minute"`
}

// LogConfig selects the slog level and handler format.
type LogConfig struct {
	Level  string `yaml:"level" koanf:"level"`
	Format string `yaml:"format" koanf:"format"`
}

// MetricsConfig toggles the prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled" koanf:"enabled"`
}
