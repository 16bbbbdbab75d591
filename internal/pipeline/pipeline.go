// Package pipeline runs a full analysis: discovery, assembly, graph building, cycle
// detection and view filtering.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"archmap/internal/assembler"
	"archmap/internal/config"
	"archmap/internal/crawler"
	"archmap/internal/cycles"
	"archmap/internal/graph"
	"archmap/internal/metrics"
	"archmap/internal/model"
	"archmap/internal/tree/python"
)

// Metadata keys added by the pipeline.
const (
	MetaCycleCount    = "cycle_count"
	MetaCycleOverrun  = "cycle_analysis_overrun"
	MetaAnalysisTime  = "analysis_seconds"
	MetaViewNodeCount = "view_nodes"
)

// Result is everything one run produces.
type Result struct {
	// Model is the published model, with cycles attached.
	Model *model.CodeModel
	// CallGraph is the call graph after view filters, with cycle edges marked.
	CallGraph *graph.Graph
	// ModuleGraph is the module dependency graph of the published model.
	ModuleGraph *graph.Graph
	Cycles      cycles.Report
	Stats       cycles.Stats
}

type Pipeline struct {
	cfg    config.Config
	logger *slog.Logger
}

func New(cfg config.Config, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{cfg: cfg, logger: logger}
}

// Run analyzes the project or single file at root.
func (p *Pipeline) Run(ctx context.Context, root string) (*Result, error) {
	start := time.Now()

	project, err := p.discoverStage(root)
	if err != nil {
		return nil, err
	}

	m, err := p.assembleStage(ctx, project)
	if err != nil {
		return nil, err
	}

	calls := p.graphStage(m)

	report := p.cycleStage(ctx, calls)
	res := &Result{Cycles: report}
	found := report.Cycles()
	res.Stats = cycles.Statistics(found)
	res.Model = m.
		WithCycles(found).
		WithMetadata(MetaCycleCount, len(found)).
		WithMetadata(MetaCycleOverrun, report.Overrun)

	view := p.viewStage(calls)
	res.CallGraph = report.MarkEdges(view)
	res.ModuleGraph = graph.ModuleGraph(res.Model)
	res.Model = res.Model.
		WithMetadata(MetaViewNodeCount, res.CallGraph.Len()).
		WithMetadata(MetaAnalysisTime, time.Since(start).Seconds())

	p.logger.Info("pipeline.done",
		slog.String("project", project.Name),
		slog.Int("elements", res.Model.ElementCount()),
		slog.Int("relationships", res.Model.RelationshipCount()),
		slog.Int("cycles", len(found)),
		slog.Int("view_nodes", res.CallGraph.Len()),
		slog.Duration("elapsed", time.Since(start)))
	return res, nil
}

func (p *Pipeline) discoverStage(root string) (*crawler.Project, error) {
	defer p.timed("discover")()

	c, err := crawler.NewCrawler(p.cfg.Parsing.ExcludePatterns, crawler.WithLogger(p.logger))
	if err != nil {
		return nil, fmt.Errorf("invalid exclude pattern: %w", err)
	}
	project, err := c.Discover(root)
	if err != nil {
		return nil, err
	}
	p.logger.Info("pipeline.discovered",
		slog.String("root", project.Root),
		slog.Int("files", len(project.Sources)))
	return project, nil
}

func (p *Pipeline) assembleStage(ctx context.Context, project *crawler.Project) (*model.CodeModel, error) {
	defer p.timed("assemble")()

	parser := python.NewParser(
		python.WithMaxFileSize(p.cfg.Parsing.MaxFileSize()),
		python.WithLogger(p.logger),
	)
	a := assembler.New(os.DirFS(project.Root), parser,
		assembler.WithConfig(assembler.Config{
			Workers:     p.cfg.Parsing.ParallelWorkers,
			MaxFileSize: p.cfg.Parsing.MaxFileSize(),
			FileTimeout: p.cfg.Parsing.Timeout(),
			Filter: assembler.FilterOptions{
				IncludePrivate: p.cfg.Analysis.IncludePrivate,
				MaxNodes:       p.cfg.Analysis.MaxNodes,
				IncludeModules: p.cfg.Analysis.IncludeModules,
				ExcludeModules: p.cfg.Analysis.ExcludeModules,
			},
		}),
		assembler.WithRoot(project.Root),
		assembler.WithLogger(p.logger),
	)
	return a.Assemble(ctx, project.Name, project.Sources)
}

func (p *Pipeline) graphStage(m *model.CodeModel) *graph.Graph {
	defer p.timed("graph")()

	g := graph.CallGraph(m)
	p.logger.Info("pipeline.call_graph", slog.Int("nodes", g.Len()), slog.Int("edges", g.EdgeCount()))
	return g
}

func (p *Pipeline) cycleStage(ctx context.Context, g *graph.Graph) cycles.Report {
	if !p.cfg.Cycles.Detect {
		return cycles.Report{}
	}
	defer p.timed("cycles")()

	d := cycles.New(
		cycles.WithMaxNodes(p.cfg.Cycles.MaxNodes),
		cycles.WithMaxCycles(p.cfg.Cycles.MaxCycles),
		cycles.WithTimeout(p.cfg.Cycles.Timeout()),
		cycles.WithLogger(p.logger),
	)
	return d.Detect(ctx, g)
}

// viewStage applies the module prefixes and the entry point reachability filter.
func (p *Pipeline) viewStage(g *graph.Graph) *graph.Graph {
	defer p.timed("view")()

	view := graph.FilterByModules(g, p.cfg.Analysis.IncludeModules)
	entry := p.cfg.Analysis.EntryPoint
	if entry == "" {
		return view
	}

	depth := p.cfg.Analysis.MaxDepth
	if depth <= 0 {
		depth = view.Len()
	}
	if _, ok := graph.ResolveRoot(view, entry); !ok {
		p.logger.Warn("pipeline.entry_point.missing", slog.String("entry_point", entry))
	}
	return graph.FilterByDepth(view, entry, depth)
}

// timed logs and records the duration of a stage when the returned func runs.
func (p *Pipeline) timed(stage string) func() {
	start := time.Now()
	return func() {
		elapsed := time.Since(start)
		metrics.StageDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
		p.logger.Debug("pipeline.stage", slog.String("stage", stage), slog.Duration("elapsed", elapsed))
	}
}
