// Package python adapts tree-sitter's Python grammar to the tree.File view.
package python

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"archmap/internal/tree"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

var (
	// ErrFileTooLarge is returned when content exceeds the configured size limit.
	ErrFileTooLarge = errors.New("file too large")
	// ErrInvalidContent is returned for content that is not valid UTF-8.
	ErrInvalidContent = errors.New("invalid content")
)

// DefaultMaxFileSize is the size limit used when none is configured.
const DefaultMaxFileSize = 10 * 1024 * 1024

// Parser parses Python source with tree-sitter. Each Parse call creates its own
// tree-sitter parser, so a Parser is safe for concurrent use.
type Parser struct {
	maxFileSize int64
	logger      *slog.Logger
}

// Option configures a Parser.
type Option func(*Parser)

// WithMaxFileSize sets the largest accepted input in bytes.
func WithMaxFileSize(bytes int64) Option {
	return func(p *Parser) {
		if bytes > 0 {
			p.maxFileSize = bytes
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(p *Parser) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewParser creates a Python parser.
func NewParser(opts ...Option) *Parser {
	p := &Parser{
		maxFileSize: DefaultMaxFileSize,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

var _ tree.Parser = (*Parser)(nil)

// Parse builds the normalized view of one file. Syntax errors are tolerated; tree-sitter
// recovers and the well-formed parts are still reported.
func (p *Parser) Parse(ctx context.Context, path string, content []byte) (tree.File, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("parse canceled before start: %w", err)
	}
	if int64(len(content)) > p.maxFileSize {
		return nil, fmt.Errorf("%w: size %d exceeds limit %d", ErrFileTooLarge, len(content), p.maxFileSize)
	}
	if !utf8.Valid(content) {
		return nil, fmt.Errorf("%w: content is not valid UTF-8", ErrInvalidContent)
	}

	parser := sitter.NewParser()
	parser.SetLanguage(python.GetLanguage())
	st, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("tree-sitter parse failed: %w", err)
	}
	defer st.Close()

	root := st.RootNode()
	if root == nil {
		return nil, fmt.Errorf("%w: empty syntax tree", ErrInvalidContent)
	}
	if root.HasError() {
		p.logger.Debug("parse.syntax_error", slog.String("file", path))
	}

	w := &walker{src: content, out: &tree.Static{FilePath: path}}
	w.out.ModuleDoc = w.moduleDocstring(root)
	w.children(root)

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("parse canceled after extraction: %w", err)
	}
	return w.out, nil
}
