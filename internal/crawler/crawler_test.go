package crawler

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
}

func TestCrawler_Discover(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "app.py", "")
	writeFile(t, root, "pkg/__init__.py", "")
	writeFile(t, root, "pkg/core.py", "")
	writeFile(t, root, "pkg/sub/__init__.py", "")
	writeFile(t, root, "pkg/sub/deep.py", "")
	writeFile(t, root, "scripts/tool.py", "")
	writeFile(t, root, "venv/lib/thing.py", "")
	writeFile(t, root, "pkg/__pycache__/core.cpython-312.py", "")
	writeFile(t, root, "environment/settings.py", "")
	writeFile(t, root, "generated/out.py", "")
	writeFile(t, root, "README.md", "")

	c, err := NewCrawler([]string{"generated"})
	require.NoError(t, err)

	p, err := c.Discover(root)
	require.NoError(t, err)
	assert.Equal(t, filepath.Base(root), p.Name)

	modules := make(map[string]string)
	var paths []string
	for _, s := range p.Sources {
		modules[s.Path] = s.Module
		paths = append(paths, s.Path)
	}

	assert.Equal(t, []string{
		"app.py",
		"environment/settings.py",
		"pkg/__init__.py",
		"pkg/core.py",
		"pkg/sub/__init__.py",
		"pkg/sub/deep.py",
		"scripts/tool.py",
	}, paths)

	assert.Equal(t, "app", modules["app.py"])
	assert.Equal(t, "pkg", modules["pkg/__init__.py"])
	assert.Equal(t, "pkg.core", modules["pkg/core.py"])
	assert.Equal(t, "pkg.sub", modules["pkg/sub/__init__.py"])
	assert.Equal(t, "pkg.sub.deep", modules["pkg/sub/deep.py"])
	assert.Equal(t, "tool", modules["scripts/tool.py"], "scripts is not a package")
}

func TestCrawler_SingleFileAndMissingPath(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "solo.py", "print('hi')\n")

	c, err := NewCrawler(nil)
	require.NoError(t, err)

	p, err := c.Discover(filepath.Join(root, "solo.py"))
	require.NoError(t, err)
	require.Len(t, p.Sources, 1)
	assert.Equal(t, Source{Path: "solo.py", Module: "solo"}, p.Sources[0])

	_, err = c.Discover(filepath.Join(root, "nope"))
	assert.ErrorIs(t, err, ErrPathNotFound)
}

func TestNewCrawler_InvalidPattern(t *testing.T) {
	_, err := NewCrawler([]string{"("})
	assert.Error(t, err)
}

func TestDecode(t *testing.T) {
	t.Run("utf8 passes through", func(t *testing.T) {
		out, err := Decode([]byte("naïve = 1\n"))
		require.NoError(t, err)
		assert.Equal(t, "naïve = 1\n", string(out))
	})

	t.Run("bom stripped", func(t *testing.T) {
		out, err := Decode(append([]byte{0xEF, 0xBB, 0xBF}, "x = 1"...))
		require.NoError(t, err)
		assert.Equal(t, "x = 1", string(out))
	})

	t.Run("latin1 fallback", func(t *testing.T) {
		out, err := Decode([]byte{'c', 'a', 'f', 0xE9})
		require.NoError(t, err)
		assert.Equal(t, "café", string(out))
	})
}
