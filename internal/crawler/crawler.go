package crawler

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// ErrPathNotFound is returned when the analysis root does not exist.
var ErrPathNotFound = errors.New("path not found")

// DefaultExcludePatterns skips version control, caches, virtual environments and build
// output. Each pattern must match a whole path segment.
var DefaultExcludePatterns = []string{
	`\.git`, `\.svn`, `\.hg`,
	`__pycache__`, `\.pytest_cache`, `\.mypy_cache`,
	`venv`, `env`, `virtualenv`, `\.venv`,
	`node_modules`, `bower_components`,
	`.*\.egg-info`, `\.eggs`, `dist`, `build`,
	`\.tox`, `\.coverage`, `htmlcov`,
	`site-packages`,
}

// Source is one file to analyze.
type Source struct {
	// Path is slash separated and relative to the project root.
	Path   string
	Module string
}

// Project is the result of a discovery run.
type Project struct {
	Root    string
	Name    string
	Sources []Source
}

// Crawler finds source files below a root directory.
type Crawler struct {
	exclude   *regexp.Regexp
	extension string
	logger    *slog.Logger
}

// Option configures a Crawler.
type Option func(*Crawler)

func WithLogger(l *slog.Logger) Option {
	return func(c *Crawler) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewCrawler compiles the default exclusion patterns plus any extra ones.
func NewCrawler(extraExcludes []string, opts ...Option) (*Crawler, error) {
	patterns := append(append([]string(nil), DefaultExcludePatterns...), extraExcludes...)
	groups := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if p == "" {
			continue
		}
		if _, err := regexp.Compile(p); err != nil {
			return nil, fmt.Errorf("invalid exclude pattern %q: %w", p, err)
		}
		groups = append(groups, "(?:"+p+")")
	}

	c := &Crawler{
		exclude:   regexp.MustCompile("^(?:" + strings.Join(groups, "|") + ")$"),
		extension: ".py",
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Discover lists the source files under path, sorted by relative path. A single file is
// returned on its own with its directory as the root.
func (c *Crawler) Discover(path string) (*Project, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrPathNotFound, path)
		}
		return nil, err
	}

	if !info.IsDir() {
		root := filepath.Dir(abs)
		p := &Project{Root: root, Name: filepath.Base(root)}
		if strings.HasSuffix(abs, c.extension) {
			rel := filepath.Base(abs)
			p.Sources = []Source{{Path: rel, Module: ModuleName(root, rel)}}
		}
		return p, nil
	}

	p := &Project{Root: abs, Name: filepath.Base(abs)}
	err = filepath.WalkDir(abs, func(fp string, d fs.DirEntry, err error) error {
		if err != nil {
			c.logger.Warn("crawl.entry.failed", slog.String("path", fp), slog.String("error", err.Error()))
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			if fp != abs && c.exclude.MatchString(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}

		if !strings.HasSuffix(d.Name(), c.extension) || c.exclude.MatchString(d.Name()) {
			return nil
		}
		rel, err := filepath.Rel(abs, fp)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		p.Sources = append(p.Sources, Source{Path: rel, Module: ModuleName(abs, rel)})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", abs, err)
	}

	sort.Slice(p.Sources, func(i, j int) bool { return p.Sources[i].Path < p.Sources[j].Path })
	c.logger.Debug("crawl.done", slog.String("root", abs), slog.Int("files", len(p.Sources)))
	return p, nil
}

// ModuleName derives the dotted module name of rel, a slash path below root. Parent
// directories contribute while they are packages, that is, while they hold an __init__.py.
// A package's own __init__.py is named after the package.
func ModuleName(root, rel string) string {
	rel = filepath.ToSlash(rel)
	dir, file := splitSlash(rel)
	stem := strings.TrimSuffix(file, filepath.Ext(file))

	var parts []string
	if stem != "__init__" {
		parts = append(parts, stem)
	}

	for dir != "" {
		if _, err := os.Stat(filepath.Join(root, filepath.FromSlash(dir), "__init__.py")); err != nil {
			break
		}
		var name string
		dir, name = splitSlash(dir)
		parts = append([]string{name}, parts...)
	}

	if len(parts) == 0 {
		return filepath.Base(root)
	}
	return strings.Join(parts, ".")
}

func splitSlash(p string) (dir, name string) {
	if i := strings.LastIndexByte(p, '/'); i >= 0 {
		return p[:i], p[i+1:]
	}
	return "", p
}
