// Package cli implements the docqa command line interface. Commands are
// thin: they build events, hand them to the workflow engine, and render
// run results. Service wiring happens once in the persistent pre-run so
// tests can substitute the package-level services directly.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	configfile "github.com/custodia-labs/docqa-cli/internal/adapters/driven/config/file"
	"github.com/custodia-labs/docqa-cli/internal/adapters/driven/embedding/mock"
	"github.com/custodia-labs/docqa-cli/internal/adapters/driven/embedding/ollama"
	"github.com/custodia-labs/docqa-cli/internal/adapters/driven/embedding/openai"
	"github.com/custodia-labs/docqa-cli/internal/adapters/driven/llm/groq"
	storagefile "github.com/custodia-labs/docqa-cli/internal/adapters/driven/storage/file"
	"github.com/custodia-labs/docqa-cli/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/docqa-cli/internal/chunker"
	"github.com/custodia-labs/docqa-cli/internal/core/ports/driven"
	"github.com/custodia-labs/docqa-cli/internal/core/ports/driving"
	"github.com/custodia-labs/docqa-cli/internal/core/services"
	"github.com/custodia-labs/docqa-cli/internal/extractors/pdf"
	"github.com/custodia-labs/docqa-cli/internal/logger"
)

// version is set at build time via ldflags.
var version = "dev"

var (
	verbose   bool
	configDir string
)

// Package-level services, wired in initialise. Tests set these directly.
var (
	engine       driving.WorkflowEngine
	sessionStore driven.SessionStore
	configStore  driven.ConfigStore
)

var rootCmd = &cobra.Command{
	Use:   "docqa",
	Short: "Ask questions about your documents",
	Long: `docqa ingests PDF and text documents into a local vector store and
answers questions about them using retrieval-augmented generation.

Ingestion and querying run as durable workflows: each step's output is
recorded, so an interrupted run can be resumed without re-doing work.

Example usage:
  docqa ingest report.pdf              # Chunk, embed and store a document
  docqa query "what is the budget?"    # Ask a question about ingested documents
  docqa runs list ingest_document      # Inspect past runs`,
	SilenceUsage:      true,
	PersistentPreRunE: initialise,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "configuration directory (default ~/.docqa)")
}

// initialise wires the service graph. A pre-set engine (tests) skips
// wiring entirely.
func initialise(_ *cobra.Command, _ []string) error {
	logger.SetVerbose(verbose)
	if engine != nil {
		return nil
	}

	cfg, err := configfile.NewConfigStore(configDir)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	configStore = cfg

	embedder, err := buildEmbedder(cfg)
	if err != nil {
		return err
	}

	store, err := sqlite.NewStore(cfg.GetString("storage.data_dir"))
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	vectors := store.VectorStore(embedder.Dimensions())

	llm, err := groq.NewLLMService(groq.Config{
		APIKey: firstNonEmpty(os.Getenv("GROQ_API_KEY"), cfg.GetString("llm.api_key")),
		Model:  cfg.GetString("llm.model"),
	})
	if err != nil {
		return fmt.Errorf("configuring LLM: %w", err)
	}

	splitter, err := buildSplitter(cfg)
	if err != nil {
		return err
	}

	sessions, err := storagefile.NewSessionStore(cfg.GetString("storage.sessions_dir"))
	if err != nil {
		return fmt.Errorf("opening session store: %w", err)
	}
	sessionStore = sessions

	eng := services.NewEngine(store.RunStore())
	eng.Register(services.NewIngester(pdf.New(), splitter, embedder, vectors).Workflow())
	eng.Register(services.NewQuerier(embedder, vectors, services.NewSynthesizer(llm)).Workflow())
	engine = eng

	logger.Debug("services initialised (embedding=%s, llm=%s, db=%s)",
		embedder.ModelName(), llm.ModelName(), store.Path())
	return nil
}

// buildEmbedder constructs the embedding service named by
// embedding.provider. Ollama is the default, needing no API key.
func buildEmbedder(cfg driven.ConfigStore) (driven.EmbeddingService, error) {
	switch provider := cfg.GetString("embedding.provider"); provider {
	case "openai":
		svc, err := openai.NewEmbeddingService(openai.Config{
			APIKey:  firstNonEmpty(os.Getenv("OPENAI_API_KEY"), cfg.GetString("embedding.api_key")),
			BaseURL: cfg.GetString("embedding.base_url"),
			Model:   cfg.GetString("embedding.model"),
		})
		if err != nil {
			return nil, fmt.Errorf("configuring openai embeddings: %w", err)
		}
		return svc, nil
	case "", "ollama":
		return ollama.NewEmbeddingService(ollama.Config{
			BaseURL:    cfg.GetString("embedding.base_url"),
			Model:      cfg.GetString("embedding.model"),
			Dimensions: cfg.GetInt("embedding.dimensions"),
		}), nil
	case "mock":
		return mock.NewEmbeddingService(cfg.GetInt("embedding.dimensions")), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", provider)
	}
}

// buildSplitter constructs the chunker from configuration, falling back
// to package defaults for unset keys.
func buildSplitter(cfg driven.ConfigStore) (*chunker.Splitter, error) {
	var opts []chunker.Option
	if size := cfg.GetInt("chunker.size"); size > 0 {
		opts = append(opts, chunker.WithChunkSize(size))
	}
	if overlap, ok := cfg.Get("chunker.overlap"); ok {
		switch n := overlap.(type) {
		case int64:
			opts = append(opts, chunker.WithOverlap(int(n)))
		case int:
			opts = append(opts, chunker.WithOverlap(n))
		}
	}
	splitter, err := chunker.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("invalid chunker configuration: %w", err)
	}
	return splitter, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
