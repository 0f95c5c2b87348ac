// Package cli implements the Fiscalia command-line interface using
// cobra. Commands share a lazily-initialised dependency graph: the
// first command that needs storage or providers triggers setup.
package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/ledgerline/fiscalia/internal/adapters/driven/config/file"
	embgateway "github.com/ledgerline/fiscalia/internal/adapters/driven/embedding/gateway"
	embgemini "github.com/ledgerline/fiscalia/internal/adapters/driven/embedding/gemini"
	embollama "github.com/ledgerline/fiscalia/internal/adapters/driven/embedding/ollama"
	embopenai "github.com/ledgerline/fiscalia/internal/adapters/driven/embedding/openai"
	llmanthropic "github.com/ledgerline/fiscalia/internal/adapters/driven/llm/anthropic"
	llmgemini "github.com/ledgerline/fiscalia/internal/adapters/driven/llm/gemini"
	llmollama "github.com/ledgerline/fiscalia/internal/adapters/driven/llm/ollama"
	llmopenai "github.com/ledgerline/fiscalia/internal/adapters/driven/llm/openai"
	"github.com/ledgerline/fiscalia/internal/adapters/driven/storage/sqlite"
	"github.com/ledgerline/fiscalia/internal/chunker"
	"github.com/ledgerline/fiscalia/internal/core/ports/driven"
	"github.com/ledgerline/fiscalia/internal/core/ports/driving"
	"github.com/ledgerline/fiscalia/internal/core/services"
	"github.com/ledgerline/fiscalia/internal/logger"
)

// version is set from main via Execute.
var version = "dev"

// Shared flags.
var (
	verboseFlag bool
	dataDirFlag string
	confDirFlag string
)

// Shared dependencies, populated by setup().
var (
	configStore   driven.ConfigStore
	store         *sqlite.Store
	docStore      driven.DocumentStore
	jobStore      driven.JobStore
	ingestService driving.IngestService
	searchService driving.SearchService
	ragService    driving.RAGService
	workerPool    driving.WorkerPool
)

var rootCmd = &cobra.Command{
	Use:   "fiscalia",
	Short: "Fiscal document retrieval and analysis",
	Long: `Fiscalia turns extracted fiscal documents into retrievable knowledge:
it chunks and embeds submitted text asynchronously, serves filtered
similarity search, and answers questions grounded on retrieved context
with cached, reusable results.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verboseFlag)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&dataDirFlag, "data-dir", "", "data directory (default ~/.fiscalia/data)")
	rootCmd.PersistentFlags().StringVar(&confDirFlag, "config-dir", "", "config directory (default ~/.fiscalia)")
}

// Execute runs the root command.
func Execute(v string) error {
	if v != "" {
		version = v
	}
	defer func() {
		if store != nil {
			store.Close() //nolint:errcheck
		}
	}()
	return rootCmd.Execute()
}

// setup builds the dependency graph once. Commands that only print
// static information never pay the cost.
func setup() error {
	if store != nil {
		return nil
	}

	cfg, err := file.NewConfigStore(confDirFlag)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	configStore = cfg

	store, err = sqlite.NewStore(dataDirFlag)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	docStore = store.DocumentStore()
	jobStore = store.JobStore()

	embedder, err := buildEmbeddingGateway(cfg)
	if err != nil {
		return err
	}

	ch := buildChunker(cfg)
	ingestService = services.NewIngestService(docStore, jobStore, ch)
	searchService = services.NewSearchService(docStore, embedder)

	workerCount := cfg.GetInt(file.KeyWorkerCount)
	var poolOpts []services.PoolOption
	if workerCount > 0 {
		poolOpts = append(poolOpts, services.WithWorkers(workerCount))
	}
	if mins := cfg.GetInt(file.KeyWorkerLeaseMinutes); mins > 0 {
		poolOpts = append(poolOpts, services.WithLease(time.Duration(mins)*time.Minute))
	}
	workerPool = services.NewWorkerPool(jobStore, docStore, embedder, poolOpts...)

	if llm := buildLLM(cfg); llm != nil {
		var ragOpts []services.RAGOption
		if min := cfg.GetFloat(file.KeyRAGMinSimilarity); min > 0 {
			ragOpts = append(ragOpts, services.WithMinSimilarity(min))
		}
		if budget := cfg.GetInt(file.KeyRAGContextBudget); budget > 0 {
			ragOpts = append(ragOpts, services.WithContextBudget(budget))
		}
		if days := cfg.GetInt(file.KeyRAGCacheTTLDays); days > 0 {
			ragOpts = append(ragOpts, services.WithCacheTTL(time.Duration(days)*24*time.Hour))
		}
		ragService = services.NewRAGService(docStore, store.CacheStore(), embedder, llm, ragOpts...)
	}

	return nil
}

// buildChunker applies configured chunk sizing.
func buildChunker(cfg driven.ConfigStore) *chunker.Chunker {
	var opts []chunker.Option
	if size := cfg.GetInt(file.KeyChunkSize); size > 0 {
		opts = append(opts, chunker.WithChunkSize(size))
	}
	if overlap := cfg.GetInt(file.KeyChunkOverlap); overlap > 0 {
		opts = append(opts, chunker.WithOverlap(overlap))
	}
	return chunker.New(opts...)
}

// buildEmbeddingGateway assembles the provider fallback chain from
// configuration. The configured primary provider comes first; a
// fallback provider is appended when one is configured with matching
// dimensionality.
func buildEmbeddingGateway(cfg driven.ConfigStore) (driven.EmbeddingService, error) {
	primary := cfg.GetString(file.KeyEmbeddingProvider)
	if primary == "" {
		primary = "ollama"
	}

	providers := []embgateway.Provider{}

	add := func(name string) error {
		svc, err := buildEmbeddingProvider(cfg, name)
		if err != nil {
			return err
		}
		providers = append(providers, embgateway.Provider{
			Name:    name,
			Service: svc,
			Limiter: buildLimiter(cfg),
		})
		return nil
	}

	if err := add(primary); err != nil {
		return nil, err
	}
	if fallback := cfg.GetString(file.KeyEmbeddingFallback); fallback != "" && fallback != primary {
		if err := add(fallback); err != nil {
			return nil, err
		}
	}

	return embgateway.New(providers)
}

// buildEmbeddingProvider constructs a single named provider.
func buildEmbeddingProvider(cfg driven.ConfigStore, name string) (driven.EmbeddingService, error) {
	model := cfg.GetString(file.KeyEmbeddingModel)
	dims := cfg.GetInt(file.KeyEmbeddingDimensions)

	switch name {
	case "ollama":
		return embollama.NewEmbeddingService(embollama.Config{
			BaseURL:    cfg.GetString(file.KeyOllamaBaseURL),
			Model:      model,
			Dimensions: dims,
		}), nil
	case "openai":
		return embopenai.NewEmbeddingService(embopenai.Config{
			APIKey:     cfg.GetString(file.KeyOpenAIAPIKey),
			Model:      model,
			Dimensions: dims,
		})
	case "gemini":
		return embgemini.NewEmbeddingService(embgemini.Config{
			APIKey:     cfg.GetString(file.KeyGeminiAPIKey),
			Model:      model,
			Dimensions: dims,
		})
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", name)
	}
}

// buildLimiter creates the per-provider client-side rate limiter.
func buildLimiter(cfg driven.ConfigStore) *rate.Limiter {
	rps := cfg.GetFloat(file.KeyEmbeddingRateLimit)
	if rps <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(rps), 1)
}

// buildLLM constructs the configured generative model, or nil when
// answer generation is not configured.
func buildLLM(cfg driven.ConfigStore) driven.LLMService {
	provider := cfg.GetString(file.KeyLLMProvider)
	model := cfg.GetString(file.KeyLLMModel)

	switch provider {
	case "gemini":
		svc, err := llmgemini.NewLLMService(llmgemini.LLMConfig{
			APIKey: cfg.GetString(file.KeyGeminiAPIKey),
			Model:  model,
		})
		if err != nil {
			logger.Debug("gemini llm unavailable: %v", err)
			return nil
		}
		return svc
	case "openai":
		svc, err := llmopenai.NewLLMService(llmopenai.LLMConfig{
			APIKey: cfg.GetString(file.KeyOpenAIAPIKey),
			Model:  model,
		})
		if err != nil {
			logger.Debug("openai llm unavailable: %v", err)
			return nil
		}
		return svc
	case "anthropic":
		svc, err := llmanthropic.NewLLMService(llmanthropic.Config{
			APIKey: cfg.GetString(file.KeyAnthropicAPIKey),
			Model:  model,
		})
		if err != nil {
			logger.Debug("anthropic llm unavailable: %v", err)
			return nil
		}
		return svc
	case "ollama", "":
		return llmollama.NewLLMService(llmollama.LLMConfig{
			BaseURL: cfg.GetString(file.KeyOllamaBaseURL),
			Model:   model,
		})
	default:
		logger.Debug("unknown llm provider %q, generation disabled", provider)
		return nil
	}
}
