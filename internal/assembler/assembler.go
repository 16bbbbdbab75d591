// Package assembler runs the two-phase analysis over a project: extraction of every file
// into a frozen global index, then resolution of every file against that index.
package assembler

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"time"

	"archmap/internal/crawler"
	"archmap/internal/extractor"
	"archmap/internal/metrics"
	"archmap/internal/model"
	"archmap/internal/resolver"
	"archmap/internal/tree"

	"github.com/zeebo/xxh3"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrSourceRead marks a file that could not be read, decoded or parsed.
	ErrSourceRead = errors.New("source read failure")
	// ErrEmptyProject is returned when no file of the project could be parsed.
	ErrEmptyProject = errors.New("no parsable source files")
)

// Config controls the pipeline.
type Config struct {
	Workers     int
	MaxFileSize int64
	FileTimeout time.Duration
	Filter      FilterOptions
}

// DefaultConfig mirrors the configuration defaults.
func DefaultConfig() Config {
	return Config{
		Workers:     4,
		MaxFileSize: 10 * 1024 * 1024,
		FileTimeout: 30 * time.Second,
		Filter: FilterOptions{
			IncludePrivate: true,
			MaxNodes:       150,
		},
	}
}

// Assembler builds a CodeModel from project sources.
type Assembler struct {
	fsys      fs.FS
	parser    tree.Parser
	extractor *extractor.Extractor
	resOpts   []resolver.Option
	cfg       Config
	root      string
	logger    *slog.Logger
}

// Option configures an Assembler.
type Option func(*Assembler)

func WithConfig(cfg Config) Option {
	return func(a *Assembler) { a.cfg = cfg }
}

func WithLogger(l *slog.Logger) Option {
	return func(a *Assembler) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithRoot records the project root on assembled models.
func WithRoot(root string) Option {
	return func(a *Assembler) { a.root = root }
}

// WithExtractor replaces the default extractor, for example to plug in another privacy rule.
func WithExtractor(e *extractor.Extractor) Option {
	return func(a *Assembler) {
		if e != nil {
			a.extractor = e
		}
	}
}

// WithResolverOptions passes options to every resolver the assembler creates.
func WithResolverOptions(opts ...resolver.Option) Option {
	return func(a *Assembler) { a.resOpts = append(a.resOpts, opts...) }
}

// New creates an assembler reading sources from fsys.
func New(fsys fs.FS, parser tree.Parser, opts ...Option) *Assembler {
	a := &Assembler{
		fsys:   fsys,
		parser: parser,
		cfg:    DefaultConfig(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.extractor == nil {
		a.extractor = extractor.New(extractor.WithLogger(a.logger))
	}
	if a.cfg.Workers <= 0 {
		a.cfg.Workers = 1
	}
	return a
}

// fileResult is the phase-1 output for one source.
type fileResult struct {
	source   crawler.Source
	file     tree.File
	module   model.Module
	elements []model.CodeElement
	err      error
}

// Assemble analyzes the sources and returns the filtered model. Per-file failures are
// logged and counted; only a project without a single parsable file is an error.
func (a *Assembler) Assemble(ctx context.Context, project string, sources []crawler.Source) (*model.CodeModel, error) {
	start := time.Now()
	results := a.extractAll(ctx, sources)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	parsed := make([]fileResult, 0, len(results))
	failed := 0
	for _, res := range results {
		if res.err != nil {
			failed++
			metrics.FilesTotal.WithLabelValues("failed").Inc()
			a.logger.Warn("assemble.file.failed",
				slog.String("file", res.source.Path),
				slog.String("error", res.err.Error()))
			continue
		}
		metrics.FilesTotal.WithLabelValues("parsed").Inc()
		parsed = append(parsed, res)
	}
	if len(parsed) == 0 {
		return nil, fmt.Errorf("%w: %d files found, %d failed", ErrEmptyProject, len(sources), failed)
	}

	sort.SliceStable(parsed, func(i, j int) bool {
		if parsed[i].source.Module != parsed[j].source.Module {
			return parsed[i].source.Module < parsed[j].source.Module
		}
		return parsed[i].source.Path < parsed[j].source.Path
	})

	var (
		elements []model.CodeElement
		modules  []model.Module
	)
	for _, res := range parsed {
		elements = append(elements, res.elements...)
		modules = append(modules, res.module)
	}
	metrics.StageDuration.WithLabelValues("extract").Observe(time.Since(start).Seconds())

	// Resolution needs every element in place. The index is frozen here and only read
	// from now on.
	index := model.NewIndex(elements)
	resolveStart := time.Now()
	relationships, stats := a.resolveAll(ctx, index, parsed)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	metrics.StageDuration.WithLabelValues("resolve").Observe(time.Since(resolveStart).Seconds())
	metrics.ReferencesUnresolved.Add(float64(stats.Unresolved))

	m := model.New(project, a.root, modules, index.Elements(), relationships).
		WithMetadata(MetaFilesFound, len(sources)).
		WithMetadata(MetaFilesParsed, len(parsed)).
		WithMetadata(MetaFilesFailed, failed).
		WithMetadata(MetaUnresolved, stats.Unresolved)

	a.logger.Info("assemble.done",
		slog.String("project", project),
		slog.Int("files", len(parsed)),
		slog.Int("failed", failed),
		slog.Int("elements", m.ElementCount()),
		slog.Int("relationships", m.RelationshipCount()),
		slog.Int("unresolved", stats.Unresolved),
		slog.Duration("elapsed", time.Since(start)))

	return Filter(m, a.cfg.Filter), nil
}

// extractAll runs phase 1. Each worker writes only its own result slot.
func (a *Assembler) extractAll(ctx context.Context, sources []crawler.Source) []fileResult {
	results := make([]fileResult, len(sources))
	if len(sources) == 1 {
		results[0] = a.extractFile(ctx, sources[0])
		return results
	}

	g := new(errgroup.Group)
	g.SetLimit(a.cfg.Workers)
	for i, src := range sources {
		i, src := i, src
		g.Go(func() error {
			results[i] = a.extractFile(ctx, src)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (a *Assembler) extractFile(ctx context.Context, src crawler.Source) fileResult {
	res := fileResult{source: src}
	if err := ctx.Err(); err != nil {
		res.err = err
		return res
	}

	content, err := a.read(src.Path)
	if err != nil {
		res.err = err
		return res
	}

	pctx := ctx
	if a.cfg.FileTimeout > 0 {
		var cancel context.CancelFunc
		pctx, cancel = context.WithTimeout(ctx, a.cfg.FileTimeout)
		defer cancel()
	}
	f, err := a.parser.Parse(pctx, src.Path, content)
	if err != nil {
		res.err = fmt.Errorf("%w: parse %s: %v", ErrSourceRead, src.Path, err)
		return res
	}

	res.file = f
	res.elements = a.extractor.Extract(f, src.Module)
	res.module = model.Module{
		Name:        src.Module,
		File:        src.Path,
		Docstring:   f.Docstring(),
		Imports:     importNames(f.Imports(), src.Module, resolver.IsPackageFile(src.Path)),
		ContentHash: fmt.Sprintf("%016x", xxh3.Hash(content)),
	}
	metrics.ElementsExtracted.Add(float64(len(res.elements)))
	return res
}

func (a *Assembler) read(path string) ([]byte, error) {
	if a.cfg.MaxFileSize > 0 {
		info, err := fs.Stat(a.fsys, path)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrSourceRead, path, err)
		}
		if info.Size() > a.cfg.MaxFileSize {
			return nil, fmt.Errorf("%w: %s: size %d exceeds limit %d", ErrSourceRead, path, info.Size(), a.cfg.MaxFileSize)
		}
	}

	raw, err := fs.ReadFile(a.fsys, path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSourceRead, path, err)
	}
	content, err := crawler.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSourceRead, path, err)
	}
	return content, nil
}

// resolveAll runs phase 2 against the frozen index and merges the results in file order.
func (a *Assembler) resolveAll(ctx context.Context, index *model.Index, parsed []fileResult) ([]model.Relationship, resolver.Stats) {
	opts := append([]resolver.Option{resolver.WithLogger(a.logger)}, a.resOpts...)
	res := resolver.New(index, opts...)

	rels := make([][]model.Relationship, len(parsed))
	stats := make([]resolver.Stats, len(parsed))
	resolveOne := func(i int) {
		if ctx.Err() != nil {
			return
		}
		rels[i], stats[i] = res.Resolve(parsed[i].file, parsed[i].source.Module)
	}

	if len(parsed) == 1 {
		resolveOne(0)
	} else {
		g := new(errgroup.Group)
		g.SetLimit(a.cfg.Workers)
		for i := range parsed {
			i := i
			g.Go(func() error {
				resolveOne(i)
				return nil
			})
		}
		_ = g.Wait()
	}

	var (
		out   []model.Relationship
		total resolver.Stats
	)
	for i := range parsed {
		out = append(out, rels[i]...)
		total.Add(stats[i])
		for _, r := range rels[i] {
			metrics.RelationshipsResolved.WithLabelValues(string(r.Kind)).Inc()
		}
	}
	return out, total
}

func importNames(imports []tree.Import, module string, isPackage bool) []string {
	if len(imports) == 0 {
		return nil
	}
	out := make([]string, 0, len(imports))
	for _, imp := range imports {
		if abs := resolver.AbsoluteModule(imp.Module, module, isPackage); abs != "" {
			imp.Module = abs
		}
		out = append(out, imp.String())
	}
	return out
}
