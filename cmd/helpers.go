package cmd

import (
	"context"
	"fmt"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"github.com/ziadkadry99/productassist/internal/advisor"
	"github.com/ziadkadry99/productassist/internal/bedrock"
	"github.com/ziadkadry99/productassist/internal/catalog"
	"github.com/ziadkadry99/productassist/internal/config"
	"github.com/ziadkadry99/productassist/internal/credentials"
	"github.com/ziadkadry99/productassist/internal/db"
	"github.com/ziadkadry99/productassist/internal/embeddings"
	"github.com/ziadkadry99/productassist/internal/llm"
	"github.com/ziadkadry99/productassist/internal/logging"
	"github.com/ziadkadry99/productassist/internal/metrics"
	"github.com/ziadkadry99/productassist/internal/progress"
	"github.com/ziadkadry99/productassist/internal/retriever"
	"github.com/ziadkadry99/productassist/internal/session"
)

// loadConfig loads and validates the config, providing a user-friendly
// error, and installs the logger it describes.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w\nRun `productassist init` to create a config file", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", cfgFile, err)
	}
	level := cfg.Log.Level
	if verbose {
		level = "debug"
	}
	logging.Setup(level, cfg.Log.Format)
	return cfg, nil
}

// app holds the components every command builds from the config.
type app struct {
	cfg       *config.Config
	metrics   *metrics.Metrics
	creds     *credentials.Manager[bedrock.Invoker]
	embedder  embeddings.Embedder
	retriever *retriever.Retriever
}

// newApp wires credentials, the embedder, and an uninitialized retriever.
// interactive selects a progress bar over periodic log lines for index
// builds. m may be nil.
func newApp(ctx context.Context, cfg *config.Config, m *metrics.Metrics, interactive bool) (*app, error) {
	a := &app{cfg: cfg, metrics: m}

	if cfg.UsesBedrock() {
		creds, err := newCredentialManager(ctx, cfg, m)
		if err != nil {
			return nil, err
		}
		a.creds = creds
	}

	e, err := embeddings.New(string(cfg.EmbeddingProvider), cfg.EmbeddingModel, a.runtime())
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}
	a.embedder = embeddings.WithRetry(e, cfg.LLM.MaxRetries, cfg.LLM.Timeout)

	a.retriever = retriever.New(a.embedder, retriever.Options{
		DataDir:   cfg.Catalog.DataDir,
		BatchSize: cfg.Retrieval.EmbedBatch,
		Workers:   cfg.Retrieval.SearchWorkers,
		Reporter:  progress.NewReporter(interactive),
		Metrics:   m,
	})
	return a, nil
}

// runtime returns the Bedrock runtime, or nil when Bedrock is not used.
// A nil manager must not leak into the interface.
func (a *app) runtime() bedrock.Runtime {
	if a.creds == nil {
		return nil
	}
	return a.creds
}

// newCredentialManager fetches the first AWS credential, either by
// assuming the configured role or from the default chain.
func newCredentialManager(ctx context.Context, cfg *config.Config, m *metrics.Metrics) (*credentials.Manager[bedrock.Invoker], error) {
	base, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	var source credentials.Source = &credentials.ProviderSource{Provider: base.Credentials}
	if cfg.AWS.AssumeRoleARN != "" {
		source = &credentials.AssumeRoleSource{
			API:         sts.NewFromConfig(base),
			RoleARN:     cfg.AWS.AssumeRoleARN,
			SessionName: cfg.AWS.RoleSessionName,
		}
	}

	creds, err := credentials.NewManager(ctx, source, bedrock.NewBuilder(base), credentials.Options{
		Interval: cfg.AWS.RefreshInterval,
		Metrics:  m,
	})
	if err != nil {
		return nil, fmt.Errorf("creating credential manager: %w", err)
	}
	return creds, nil
}

// createLLMProvider creates the chat provider wrapped with rate limiting
// and retries.
func (a *app) createLLMProvider() (llm.Provider, error) {
	p, err := llm.NewProvider(string(a.cfg.Provider), a.cfg.Model, llm.Options{Bedrock: a.runtime()})
	if err != nil {
		return nil, fmt.Errorf("creating LLM provider: %w", err)
	}
	p = llm.NewRateLimitedProvider(p, a.cfg.LLM.RequestsPerMinute)
	return llm.NewRetryingProvider(p, a.cfg.LLM.MaxRetries, a.cfg.LLM.Timeout), nil
}

// loadIndex reads the catalog and initializes the retriever. rebuild
// ignores persisted artifacts.
func (a *app) loadIndex(ctx context.Context, rebuild bool) error {
	cat, err := catalog.Load(a.cfg.Catalog.Paths)
	if err != nil {
		return fmt.Errorf("loading catalog: %w", err)
	}
	if rebuild {
		err = a.retriever.Rebuild(ctx, cat)
	} else {
		err = a.retriever.Initialize(ctx, cat)
	}
	if err != nil {
		return fmt.Errorf("building catalog index: %w", err)
	}
	return nil
}

// newCoordinator opens the configured session store and builds the
// answer pipeline in front of it. The caller closes the store.
func (a *app) newCoordinator(ctx context.Context) (*session.Coordinator, session.Store, error) {
	provider, err := a.createLLMProvider()
	if err != nil {
		return nil, nil, err
	}
	store, err := openStore(ctx, a.cfg)
	if err != nil {
		return nil, nil, err
	}
	pipeline := advisor.New(provider, a.cfg.Model, a.retriever, advisor.Options{
		TopK:    a.cfg.Retrieval.TopK,
		Metrics: a.metrics,
	})
	return session.NewCoordinator(pipeline, store, a.metrics), store, nil
}

// openStore creates the session store for the configured backend.
func openStore(ctx context.Context, cfg *config.Config) (session.Store, error) {
	limit, ttl := cfg.Sessions.HistoryLimit, cfg.Sessions.TTL
	switch cfg.Sessions.Backend {
	case config.BackendSQLite:
		d, err := db.Open(cfg.Sessions.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("opening session database: %w", err)
		}
		return session.NewSQLiteStore(d, limit, ttl), nil
	case config.BackendRedis:
		store, err := session.NewRedisStore(ctx, session.RedisOptions{
			Addr:     cfg.Sessions.Redis.Addr,
			Password: cfg.Sessions.Redis.Password,
			DB:       cfg.Sessions.Redis.DB,
		}, limit, ttl)
		if err != nil {
			return nil, fmt.Errorf("connecting to session redis: %w", err)
		}
		return store, nil
	default:
		return session.NewMemoryStore(limit, ttl), nil
	}
}

// janitorInterval is how often idle sessions are swept. Zero disables
// the sweep.
func janitorInterval(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return 0
	}
	return max(ttl/10, time.Minute)
}
