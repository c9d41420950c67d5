package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/WessleyAI/wessley-diagnostics/engine/catalog"
	"github.com/WessleyAI/wessley-diagnostics/engine/graph"
	"github.com/WessleyAI/wessley-diagnostics/engine/semantic"
	"github.com/WessleyAI/wessley-diagnostics/engine/suggest"
	"github.com/WessleyAI/wessley-diagnostics/pkg/metrics"
)

var met = metrics.New()

var (
	mGraphNodes  = func(kind string) *metrics.Counter { return met.Counter(metrics.WithLabels("catalog_sync_graph_nodes_total", "kind", kind), "Graph nodes written") }
	mIssuePoints = met.Counter("catalog_sync_issue_points_total", "Issue points upserted")
	mErrors      = func(target string) *metrics.Counter { return met.Counter(metrics.WithLabels("catalog_sync_errors_total", "target", target), "Sync failures") }
	mDuration    = func(target string) *metrics.Histogram { return met.Histogram(metrics.WithLabels("catalog_sync_duration_seconds", "target", target), "Sync duration", nil) }
	mGraphCount  = met.Gauge("catalog_sync_graph_components", "Component nodes present after sync")
)

type graphSyncer interface {
	EnsureSchema(ctx context.Context) error
	SyncCatalog(ctx context.Context, cat *catalog.Catalog) (graph.SyncStats, error)
	CountComponents(ctx context.Context) (int, error)
}

type issueIndex interface {
	EnsureCollection(ctx context.Context, dims int) error
	DeleteCollection(ctx context.Context) error
	UpsertIssues(ctx context.Context, issues []semantic.IssuePoint) error
}

// job is one sync run. A nil graph or index skips that target.
type job struct {
	catalog  *catalog.Catalog
	issues   []suggest.Issue
	graph    graphSyncer
	index    issueIndex
	embedder semantic.Embedder
	workers  int
	recreate bool
	logger   *slog.Logger
}

func (j job) run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	if j.graph != nil {
		g.Go(func() error { return j.syncGraph(ctx) })
	}
	if j.index != nil {
		g.Go(func() error { return j.syncIndex(ctx) })
	}
	return g.Wait()
}

func (j job) syncGraph(ctx context.Context) error {
	defer mDuration("graph").Since(time.Now())
	if err := j.graph.EnsureSchema(ctx); err != nil {
		mErrors("graph").Inc()
		return err
	}
	stats, err := j.graph.SyncCatalog(ctx, j.catalog)
	if err != nil {
		mErrors("graph").Inc()
		return err
	}
	mGraphNodes("component").Add(int64(stats.Components))
	mGraphNodes("symptom").Add(int64(stats.Symptoms))
	mGraphNodes("code").Add(int64(stats.Codes))
	mGraphNodes("make").Add(int64(stats.Makes))

	n, err := j.graph.CountComponents(ctx)
	if err != nil {
		mErrors("graph").Inc()
		return err
	}
	mGraphCount.Set(int64(n))
	if n != j.catalog.Len() {
		mErrors("graph").Inc()
		return fmt.Errorf("graph holds %d components after sync, catalog has %d", n, j.catalog.Len())
	}
	j.logger.Info("graph synced", "components", stats.Components, "symptoms", stats.Symptoms,
		"codes", stats.Codes, "makes", stats.Makes)
	return nil
}

func (j job) syncIndex(ctx context.Context) error {
	defer mDuration("index").Since(time.Now())
	if j.recreate {
		if err := j.index.DeleteCollection(ctx); err != nil {
			j.logger.Warn("collection not dropped", "err", err)
		}
	}
	n, err := semantic.Index(ctx, j.index, j.embedder, j.issues, j.workers)
	if err != nil {
		mErrors("index").Inc()
		return err
	}
	mIssuePoints.Add(int64(n))
	j.logger.Info("issue index synced", "points", n)
	return nil
}
