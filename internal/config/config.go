package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix for environment variable overrides.
const EnvPrefix = "PRODUCTASSIST_"

// Load reads configuration from the given YAML file, then overlays
// environment variable overrides (PRODUCTASSIST_*). A double underscore
// separates nested keys: PRODUCTASSIST_SERVER__PORT -> server.port.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	cfg := DefaultConfig()

	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("accessing config %s: %w", path, err)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	return cfg, nil
}

func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// Save writes the configuration to the given YAML file path.
func (c *Config) Save(path string) error {
	data, err := yamlv3.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

var validProviders = map[ProviderType]bool{
	ProviderBedrock:   true,
	ProviderAnthropic: true,
	ProviderOpenAI:    true,
	ProviderOllama:    true,
}

// Anthropic has no embeddings endpoint.
var validEmbeddingProviders = map[ProviderType]bool{
	ProviderBedrock: true,
	ProviderOpenAI:  true,
	ProviderOllama:  true,
}

var validBackends = map[SessionBackend]bool{
	BackendMemory: true,
	BackendSQLite: true,
	BackendRedis:  true,
}

var validLogFormats = map[string]bool{
	"text": true,
	"json": true,
}

// Validate checks that the configuration contains valid values.
func (c *Config) Validate() error {
	if c.Provider == "" {
		return fmt.Errorf("provider is required")
	}
	if !validProviders[c.Provider] {
		return fmt.Errorf("invalid provider %q: must be one of bedrock, anthropic, openai, ollama", c.Provider)
	}
	if c.Model == "" {
		return fmt.Errorf("model is required")
	}

	if c.EmbeddingProvider == "" {
		return fmt.Errorf("embedding_provider is required")
	}
	if !validEmbeddingProviders[c.EmbeddingProvider] {
		return fmt.Errorf("invalid embedding_provider %q: must be one of bedrock, openai, ollama", c.EmbeddingProvider)
	}
	if c.EmbeddingModel == "" {
		return fmt.Errorf("embedding_model is required")
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Server.RequestTimeout < 0 {
		return fmt.Errorf("server.request_timeout must be non-negative")
	}

	if len(c.Catalog.Paths) == 0 {
		return fmt.Errorf("catalog.paths requires at least one path or glob")
	}
	if c.Catalog.DataDir == "" {
		return fmt.Errorf("catalog.data_dir is required")
	}

	if c.UsesBedrock() {
		if c.AWS.Region == "" {
			return fmt.Errorf("aws.region is required for bedrock")
		}
		if c.AWS.AssumeRoleARN != "" && c.AWS.RefreshInterval <= 0 {
			return fmt.Errorf("aws.refresh_interval must be positive when assuming a role")
		}
	}

	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("retrieval.top_k must be positive")
	}
	if c.Retrieval.SearchWorkers <= 0 {
		return fmt.Errorf("retrieval.search_workers must be positive")
	}
	if c.Retrieval.EmbedBatch <= 0 {
		return fmt.Errorf("retrieval.embed_batch must be positive")
	}

	if !validBackends[c.Sessions.Backend] {
		return fmt.Errorf("invalid sessions.backend %q: must be one of memory, sqlite, redis", c.Sessions.Backend)
	}
	if c.Sessions.TTL < 0 {
		return fmt.Errorf("sessions.ttl must be non-negative")
	}
	if c.Sessions.HistoryLimit < 0 {
		return fmt.Errorf("sessions.history_limit must be non-negative")
	}
	if c.Sessions.Backend == BackendSQLite && c.Sessions.SQLitePath == "" {
		return fmt.Errorf("sessions.sqlite_path is required for the sqlite backend")
	}
	if c.Sessions.Backend == BackendRedis && c.Sessions.Redis.Addr == "" {
		return fmt.Errorf("sessions.redis.addr is required for the redis backend")
	}

	if c.LLM.Timeout < 0 {
		return fmt.Errorf("llm.timeout must be non-negative")
	}
	if c.LLM.MaxRetries < 0 {
		return fmt.Errorf("llm.max_retries must be non-negative")
	}
	if c.LLM.RequestsPerMinute < 0 {
		return fmt.Errorf("llm.requests_per_minute must be non-negative")
	}

	if c.Log.Format != "" && !validLogFormats[c.Log.Format] {
		return fmt.Errorf("invalid log.format %q: must be text or json", c.Log.Format)
	}

	return nil
}

// UsesBedrock reports whether either model provider is Bedrock.
func (c *Config) UsesBedrock() bool {
	return c.Provider == ProviderBedrock || c.EmbeddingProvider == ProviderBedrock
}

// APIKeyEnvVar returns the conventional environment variable name for
// the API key of the given provider. Bedrock authenticates through AWS
// credentials instead.
func APIKeyEnvVar(provider ProviderType) string {
	switch provider {
	case ProviderAnthropic:
		return "ANTHROPIC_API_KEY"
	case ProviderOpenAI:
		return "OPENAI_API_KEY"
	default:
		return ""
	}
}
