package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/manifoldco/promptui"
)

// catalogPatterns maps a catalog file extension to the glob suggested
// when files of that kind are found in the data directory.
var catalogPatterns = map[string]string{
	".csv":  "data/*.csv",
	".json": "data/*.json",
}

// detectCatalog looks for catalog files under ./data.
func detectCatalog() string {
	for ext, pattern := range catalogPatterns {
		matches, _ := filepath.Glob(filepath.Join("data", "*"+ext))
		if len(matches) > 0 {
			return pattern
		}
	}
	return "data/*.csv"
}

// RunWizard runs an interactive configuration wizard and saves the
// result to path.
func RunWizard(path string) (*Config, error) {
	fmt.Println("Welcome to productassist! Let's configure the service.")
	fmt.Println()

	cfg := DefaultConfig()

	providerPrompt := promptui.Select{
		Label: "Select chat model provider",
		Items: []string{"bedrock", "anthropic", "openai", "ollama"},
	}
	_, providerStr, err := providerPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("provider selection: %w", err)
	}
	cfg.Provider = ProviderType(providerStr)
	cfg.Model = GetPreset(cfg.Provider).Model
	cfg.EmbeddingProvider = embeddingProviderFor(cfg.Provider)
	cfg.EmbeddingModel = GetPreset(cfg.EmbeddingProvider).EmbeddingModel

	if cfg.UsesBedrock() {
		regionPrompt := promptui.Prompt{
			Label:   "AWS region",
			Default: cfg.AWS.Region,
		}
		if cfg.AWS.Region, err = regionPrompt.Run(); err != nil {
			return nil, fmt.Errorf("aws region: %w", err)
		}
		rolePrompt := promptui.Prompt{
			Label:   "Role ARN to assume (blank to use ambient credentials)",
			Default: "",
		}
		if cfg.AWS.AssumeRoleARN, err = rolePrompt.Run(); err != nil {
			return nil, fmt.Errorf("role arn: %w", err)
		}
	}

	catalogPrompt := promptui.Prompt{
		Label:   "Catalog files (comma-separated globs)",
		Default: detectCatalog(),
	}
	catalogStr, err := catalogPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("catalog paths: %w", err)
	}
	cfg.Catalog.Paths = splitAndTrim(catalogStr)

	backendPrompt := promptui.Select{
		Label: "Where should conversation history live",
		Items: []string{"memory", "sqlite", "redis"},
	}
	_, backendStr, err := backendPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("session backend: %w", err)
	}
	cfg.Sessions.Backend = SessionBackend(backendStr)
	if cfg.Sessions.Backend == BackendRedis {
		addrPrompt := promptui.Prompt{
			Label:   "Redis address",
			Default: cfg.Sessions.Redis.Addr,
		}
		if cfg.Sessions.Redis.Addr, err = addrPrompt.Run(); err != nil {
			return nil, fmt.Errorf("redis addr: %w", err)
		}
	}

	portPrompt := promptui.Prompt{
		Label:   "HTTP port",
		Default: strconv.Itoa(cfg.Server.Port),
		Validate: func(s string) error {
			n, err := strconv.Atoi(s)
			if err != nil || n <= 0 || n > 65535 {
				return fmt.Errorf("enter a port between 1 and 65535")
			}
			return nil
		},
	}
	portStr, err := portPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("port: %w", err)
	}
	cfg.Server.Port, _ = strconv.Atoi(portStr)

	if envVar := APIKeyEnvVar(cfg.Provider); envVar != "" && os.Getenv(envVar) == "" {
		fmt.Printf("\nNote: Set %s in your environment before running productassist serve.\n", envVar)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Save(path); err != nil {
		return nil, fmt.Errorf("saving config: %w", err)
	}

	fmt.Printf("\nConfiguration saved to %s\n", path)
	return cfg, nil
}

// embeddingProviderFor returns the default embedding provider for a
// chat provider. Anthropic has no embeddings API so OpenAI is used.
func embeddingProviderFor(p ProviderType) ProviderType {
	if p == ProviderAnthropic {
		return ProviderOpenAI
	}
	return p
}

// splitAndTrim splits a comma-separated string and drops empty entries.
func splitAndTrim(s string) []string {
	var result []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			result = append(result, part)
		}
	}
	return result
}
