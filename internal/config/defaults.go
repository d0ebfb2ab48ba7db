package config

import "time"

// ModelPreset describes the chat and embedding models used by default
// for a provider.
type ModelPreset struct {
	Model          string
	EmbeddingModel string
}

var modelPresets = map[ProviderType]ModelPreset{
	ProviderBedrock:   {Model: "anthropic.claude-3-5-sonnet-20240620-v1:0", EmbeddingModel: "amazon.titan-embed-text-v2:0"},
	ProviderAnthropic: {Model: "claude-sonnet-4-5-20250929", EmbeddingModel: "text-embedding-3-small"},
	ProviderOpenAI:    {Model: "gpt-4o", EmbeddingModel: "text-embedding-3-small"},
	ProviderOllama:    {Model: "llama3", EmbeddingModel: "nomic-embed-text"},
}

// DefaultConfigPath is where init writes and every command reads by default.
const DefaultConfigPath = ".productassist.yml"

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	preset := modelPresets[ProviderBedrock]
	return &Config{
		Provider:          ProviderBedrock,
		Model:             preset.Model,
		EmbeddingProvider: ProviderBedrock,
		EmbeddingModel:    preset.EmbeddingModel,
		Server: ServerConfig{
			Port:            8000,
			AllowAllOrigins: true,
			RequestTimeout:  2 * time.Minute,
		},
		Catalog: CatalogConfig{
			Paths:   []string{"data/*.csv"},
			DataDir: ".productassist",
		},
		AWS: AWSConfig{
			Region:          "us-east-1",
			RoleSessionName: "productassist",
			RefreshInterval: time.Hour,
		},
		Retrieval: RetrievalConfig{
			TopK:          6,
			SearchWorkers: 5,
			EmbedBatch:    32,
		},
		Sessions: SessionsConfig{
			Backend:      BackendMemory,
			TTL:          24 * time.Hour,
			HistoryLimit: 20,
			SQLitePath:   ".productassist/sessions.db",
			Redis: RedisConfig{
				Addr: "localhost:6379",
			},
		},
		LLM: LLMConfig{
			Timeout:           60 * time.Second,
			MaxRetries:        3,
			RequestsPerMinute: 0,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// GetPreset returns the model preset for the given provider.
// Returns the Bedrock preset if the provider is unknown.
func GetPreset(provider ProviderType) ModelPreset {
	if p, ok := modelPresets[provider]; ok {
		return p
	}
	return modelPresets[ProviderBedrock]
}
