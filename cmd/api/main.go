// Package main implements the Wessley diagnostics API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/WessleyAI/wessley-diagnostics/engine/catalog"
	"github.com/WessleyAI/wessley-diagnostics/engine/diagnostic"
	"github.com/WessleyAI/wessley-diagnostics/engine/graph"
	"github.com/WessleyAI/wessley-diagnostics/engine/matcher"
	"github.com/WessleyAI/wessley-diagnostics/engine/narrative"
	"github.com/WessleyAI/wessley-diagnostics/engine/semantic"
	"github.com/WessleyAI/wessley-diagnostics/engine/service"
	"github.com/WessleyAI/wessley-diagnostics/engine/store"
	"github.com/WessleyAI/wessley-diagnostics/engine/suggest"
	"github.com/WessleyAI/wessley-diagnostics/pkg/metrics"
	"github.com/WessleyAI/wessley-diagnostics/pkg/natsutil"
	"github.com/WessleyAI/wessley-diagnostics/pkg/resilience"
)

// Config holds all environment-based configuration. Empty URLs disable the
// corresponding backend.
type Config struct {
	Port             string
	DatabaseURL      string
	NATSURL          string
	Neo4jURL         string
	Neo4jUser        string
	Neo4jPass        string
	Neo4jDB          string
	QdrantURL        string
	Collection       string
	GeminiKey        string
	GeminiModel      string
	EmbedModel       string
	OllamaURL        string
	OllamaModel      string
	NarrativeEnabled bool
	CatalogPath      string
	CORSOrigin       string
	RateLimit        int
	LaborRate        float64
}

func loadConfig() Config {
	return Config{
		Port:             envOr("PORT", "8080"),
		DatabaseURL:      envOr("DATABASE_URL", ""),
		NATSURL:          envOr("NATS_URL", ""),
		Neo4jURL:         envOr("NEO4J_URL", ""),
		Neo4jUser:        envOr("NEO4J_USER", "neo4j"),
		Neo4jPass:        envOr("NEO4J_PASS", "password"),
		Neo4jDB:          envOr("NEO4J_DATABASE", ""),
		QdrantURL:        envOr("QDRANT_URL", ""),
		Collection:       envOr("QDRANT_COLLECTION", "common_issues"),
		GeminiKey:        envOr("GEMINI_API_KEY", ""),
		GeminiModel:      envOr("GEMINI_MODEL", narrative.DefaultOptions().Model),
		EmbedModel:       envOr("GEMINI_EMBED_MODEL", semantic.DefaultEmbedModel),
		OllamaURL:        envOr("OLLAMA_URL", ""),
		OllamaModel:      envOr("OLLAMA_EMBED_MODEL", ""),
		NarrativeEnabled: envBool("NARRATIVE_ENABLED", false),
		CatalogPath:      envOr("CATALOG_PATH", ""),
		CORSOrigin:       envOr("CORS_ORIGIN", "*"),
		RateLimit:        envInt("RATE_LIMIT_PER_MINUTE", 10),
		LaborRate:        envFloat("LABOR_RATE", matcher.DefaultLaborRate),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil && n > 0 {
		return n
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if f, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil && f > 0 && !math.IsInf(f, 0) {
		return f
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if b, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return b
	}
	return fallback
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn("could not read .env", "err", err)
	}
	cfg := loadConfig()

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cat, err := loadCatalog(cfg.CatalogPath)
	if err != nil {
		return err
	}
	m := matcher.New(cat)
	reg := metrics.New()
	srv := &server{
		matcher:    m,
		metrics:    reg,
		checks:     map[string]pinger{},
		corsOrigin: cfg.CORSOrigin,
		logger:     logger,
	}
	deps := service.Deps{
		Engine:  diagnostic.New(m, diagnostic.Options{LaborRate: cfg.LaborRate}),
		Metrics: reg,
		Logger:  logger,
	}

	// --- Datastore ---
	if cfg.DatabaseURL != "" {
		pg, err := store.OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer pg.Close()
		if err := pg.Migrate(ctx); err != nil {
			return err
		}
		deps.Store = pg
		srv.checks["postgres"] = pg
	} else {
		logger.Warn("DATABASE_URL not set, history is kept in memory")
		deps.Store = store.NewMemory()
	}

	// --- NATS ---
	if cfg.NATSURL != "" {
		nc, err := natsutil.Connect(cfg.NATSURL, "wessley-diagnostics-api", logger)
		if err != nil {
			return err
		}
		defer nc.Close()
		deps.Publisher = natsutil.NewPublisher(nc)
		srv.checks["nats"] = pingFunc(func(context.Context) error {
			if !nc.IsConnected() {
				return fmt.Errorf("nats: %s", nc.Status())
			}
			return nil
		})
	}

	// --- Neo4j ---
	if cfg.Neo4jURL != "" {
		driver, err := neo4j.NewDriverWithContext(cfg.Neo4jURL, neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPass, ""))
		if err != nil {
			return fmt.Errorf("neo4j driver: %w", err)
		}
		defer driver.Close(context.Background())
		srv.codes = graph.New(driver, cfg.Neo4jDB)
		srv.checks["neo4j"] = pingFunc(driver.VerifyConnectivity)
	}

	// --- Suggestions: semantic index first, static table second ---
	chain := suggest.Chain{}
	if cfg.QdrantURL != "" {
		emb, err := semantic.NewEmbedder(ctx, semantic.EmbedConfig{
			OllamaURL:   cfg.OllamaURL,
			OllamaModel: cfg.OllamaModel,
			GeminiKey:   cfg.GeminiKey,
			GeminiModel: cfg.EmbedModel,
		})
		switch {
		case errors.Is(err, semantic.ErrNoBackend):
			logger.Warn("semantic lookup disabled", "err", err)
		case err != nil:
			return err
		default:
			vs, err := semantic.New(cfg.QdrantURL, cfg.Collection)
			if err != nil {
				return err
			}
			defer vs.Close()
			chain = append(chain, semantic.NewLookup(vs, emb, 0))
		}
	}
	chain = append(chain, suggest.DefaultStatic())
	cached, err := suggest.NewCached(chain, 1024)
	if err != nil {
		return err
	}
	deps.Suggest = cached

	// --- Narrative ---
	if cfg.NarrativeEnabled && cfg.GeminiKey != "" {
		opts := narrative.DefaultOptions()
		opts.Model = cfg.GeminiModel
		gen, err := narrative.NewGemini(ctx, cfg.GeminiKey, opts, logger)
		if err != nil {
			return err
		}
		deps.Narrator = gen
	}

	srv.svc = service.New(deps)

	counters := resilience.NewMemoryCounters()
	srv.limiter = resilience.NewWindowLimiter(counters, cfg.RateLimit, time.Minute, nil)
	go sweepCounters(ctx, counters, srv.limiter)

	httpSrv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv.routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// --- Graceful shutdown ---
	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "port", cfg.Port, "components", cat.Len())
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutCtx)
}

func loadCatalog(path string) (*catalog.Catalog, error) {
	if path == "" {
		return catalog.Default(), nil
	}
	return catalog.LoadFile(path)
}

// sweepCounters drops expired rate-limit windows once per window.
func sweepCounters(ctx context.Context, c *resilience.MemoryCounters, l *resilience.WindowLimiter) {
	t := time.NewTicker(l.Window())
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			c.Sweep(l.Now(), l.Window())
		}
	}
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }
