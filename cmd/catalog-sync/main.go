// Command catalog-sync pushes the component catalog into the Neo4j
// knowledge graph and the common-issue table into the Qdrant index. The two
// targets are written concurrently.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/spf13/cobra"

	"github.com/WessleyAI/wessley-diagnostics/engine/catalog"
	"github.com/WessleyAI/wessley-diagnostics/engine/graph"
	"github.com/WessleyAI/wessley-diagnostics/engine/semantic"
	"github.com/WessleyAI/wessley-diagnostics/engine/suggest"
	"github.com/WessleyAI/wessley-diagnostics/pkg/fn"
)

type config struct {
	catalogPath string
	issuesPath  string
	neo4jURL    string
	neo4jUser   string
	neo4jPass   string
	neo4jDB     string
	qdrantURL   string
	collection  string
	geminiKey   string
	embedModel  string
	ollamaURL   string
	ollamaModel string
	workers     int
	recreate    bool
	skipGraph   bool
	skipIndex   bool
	metricsOut  string
	timeout     time.Duration
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn("could not read .env", "err", err)
	}

	if err := newRootCmd(logger).Execute(); err != nil {
		logger.Error("catalog sync failed", "err", err)
		os.Exit(1)
	}
}

func newRootCmd(logger *slog.Logger) *cobra.Command {
	cfg := config{}
	cmd := &cobra.Command{
		Use:          "catalog-sync",
		Short:        "Sync the component catalog to Neo4j and the issue table to Qdrant",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			if cfg.timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, cfg.timeout)
				defer cancel()
			}
			return run(ctx, cfg, logger)
		},
	}
	f := cmd.Flags()
	f.StringVar(&cfg.catalogPath, "catalog", envOr("CATALOG_PATH", ""), "component catalog YAML (built-in when empty)")
	f.StringVar(&cfg.issuesPath, "issues", envOr("ISSUES_PATH", ""), "common-issue table YAML (built-in when empty)")
	f.StringVar(&cfg.neo4jURL, "neo4j", envOr("NEO4J_URL", "neo4j://localhost:7687"), "Neo4j bolt URL")
	f.StringVar(&cfg.neo4jUser, "neo4j-user", envOr("NEO4J_USER", "neo4j"), "Neo4j username")
	f.StringVar(&cfg.neo4jPass, "neo4j-pass", envOr("NEO4J_PASS", "password"), "Neo4j password")
	f.StringVar(&cfg.neo4jDB, "neo4j-db", envOr("NEO4J_DATABASE", ""), "Neo4j database (server default when empty)")
	f.StringVar(&cfg.qdrantURL, "qdrant", envOr("QDRANT_URL", "localhost:6334"), "Qdrant gRPC address")
	f.StringVar(&cfg.collection, "collection", envOr("QDRANT_COLLECTION", "common_issues"), "Qdrant collection")
	f.StringVar(&cfg.embedModel, "embed-model", envOr("GEMINI_EMBED_MODEL", semantic.DefaultEmbedModel), "Gemini embedding model")
	f.StringVar(&cfg.ollamaURL, "ollama", envOr("OLLAMA_URL", ""), "Ollama base URL; embeds locally instead of through Gemini")
	f.StringVar(&cfg.ollamaModel, "ollama-model", envOr("OLLAMA_EMBED_MODEL", ""), "Ollama embedding model")
	f.IntVar(&cfg.workers, "workers", 4, "concurrent embedding calls")
	f.BoolVar(&cfg.recreate, "recreate", false, "drop the Qdrant collection before indexing")
	f.BoolVar(&cfg.skipGraph, "skip-graph", false, "do not touch Neo4j")
	f.BoolVar(&cfg.skipIndex, "skip-index", false, "do not touch Qdrant")
	f.StringVar(&cfg.metricsOut, "metrics-out", "", "write Prometheus text metrics to this file")
	f.DurationVar(&cfg.timeout, "timeout", 5*time.Minute, "overall deadline")
	cfg.geminiKey = os.Getenv("GEMINI_API_KEY")
	return cmd
}

func run(ctx context.Context, cfg config, logger *slog.Logger) error {
	cat, err := loadCatalog(cfg.catalogPath)
	if err != nil {
		return err
	}
	issues, err := loadIssues(cfg.issuesPath)
	if err != nil {
		return err
	}
	j := job{catalog: cat, issues: issues, workers: cfg.workers, recreate: cfg.recreate, logger: logger}

	if !cfg.skipGraph {
		driver, err := neo4j.NewDriverWithContext(cfg.neo4jURL, neo4j.BasicAuth(cfg.neo4jUser, cfg.neo4jPass, ""))
		if err != nil {
			return fmt.Errorf("neo4j driver: %w", err)
		}
		defer driver.Close(context.Background())
		if err := waitFor(ctx, "neo4j", logger, driver.VerifyConnectivity); err != nil {
			return err
		}
		j.graph = graph.New(driver, cfg.neo4jDB)
	}

	if !cfg.skipIndex {
		emb, err := semantic.NewEmbedder(ctx, semantic.EmbedConfig{
			OllamaURL:   cfg.ollamaURL,
			OllamaModel: cfg.ollamaModel,
			GeminiKey:   cfg.geminiKey,
			GeminiModel: cfg.embedModel,
		})
		if errors.Is(err, semantic.ErrNoBackend) {
			return errors.New("set GEMINI_API_KEY or --ollama to index issues (or pass --skip-index)")
		}
		if err != nil {
			return err
		}
		vs, err := semantic.New(cfg.qdrantURL, cfg.collection)
		if err != nil {
			return err
		}
		defer vs.Close()
		j.index, j.embedder = vs, emb
	}

	syncErr := j.run(ctx)
	if cfg.metricsOut != "" {
		if err := os.WriteFile(cfg.metricsOut, []byte(met.Render()), 0o644); err != nil {
			logger.Warn("metrics not written", "path", cfg.metricsOut, "err", err)
		}
	}
	return syncErr
}

func loadCatalog(path string) (*catalog.Catalog, error) {
	if path == "" {
		return catalog.Default(), nil
	}
	return catalog.LoadFile(path)
}

func loadIssues(path string) ([]suggest.Issue, error) {
	if path == "" {
		return suggest.DefaultStatic().Issues(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open issues: %w", err)
	}
	defer f.Close()
	s, err := suggest.NewStatic(f)
	if err != nil {
		return nil, err
	}
	return s.Issues(), nil
}

var connectRetry = fn.RetryOpts{
	MaxAttempts: 5,
	InitialWait: time.Second,
	MaxWait:     15 * time.Second,
	Jitter:      true,
}

// waitFor retries check until the backend answers.
func waitFor(ctx context.Context, name string, logger *slog.Logger, check func(context.Context) error) error {
	attempt := 0
	_, err := fn.Retry(ctx, connectRetry, func(ctx context.Context) fn.Result[struct{}] {
		attempt++
		err := check(ctx)
		if err != nil {
			logger.Warn("backend not ready", "backend", name, "attempt", attempt, "err", err)
		}
		return fn.FromPair(struct{}{}, err)
	}).Unwrap()
	if err != nil {
		return fmt.Errorf("%s unreachable: %w", name, err)
	}
	logger.Info("connected", "backend", name)
	return nil
}
